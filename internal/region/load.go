package region

import (
	"encoding/json"
	"encoding/xml"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/jonas-p/go-shp"
	"github.com/paulmach/orb"
	"github.com/paulmach/orb/geojson"
	"github.com/rotisserie/eris"
	"github.com/twpayne/go-geom"
	"github.com/twpayne/go-geom/encoding/wkt"
	"go.uber.org/zap"
	"gopkg.in/yaml.v3"
)

// Load resolves a region spec. Empty or "all" disables filtering; a preset
// name returns the built-in polygon; anything else is read as a file whose
// format follows its extension.
func Load(spec string) (Region, error) {
	spec = strings.TrimSpace(spec)
	if spec == "" || strings.EqualFold(spec, "all") {
		return All{}, nil
	}
	if p, ok := Preset(spec); ok {
		return p, nil
	}
	return LoadFile(spec)
}

// LoadFile reads a polygon from a GeoJSON, WKT, shapefile, KML or YAML file.
func LoadFile(path string) (*Polygon, error) {
	name := strings.TrimSuffix(filepath.Base(path), filepath.Ext(path))
	log := zap.L().With(zap.String("region", path))

	var (
		mp  orb.MultiPolygon
		err error
	)
	switch ext := strings.ToLower(filepath.Ext(path)); ext {
	case ".geojson", ".json":
		mp, err = readFileWith(path, decodeGeoJSON)
	case ".wkt":
		mp, err = readFileWith(path, decodeWKT)
	case ".kml":
		mp, err = readFileWith(path, decodeKML)
	case ".yaml", ".yml":
		mp, err = readFileWith(path, decodeYAML)
	case ".shp":
		mp, err = readShapefile(path)
	default:
		return nil, eris.Errorf("region: unsupported file type %q", ext)
	}
	if err != nil {
		return nil, err
	}

	p, err := NewPolygon(name, mp)
	if err != nil {
		return nil, err
	}
	log.Debug("region loaded", zap.Int("polygons", len(p.shape)))
	return p, nil
}

func readFileWith(path string, decode func([]byte) (orb.MultiPolygon, error)) (orb.MultiPolygon, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, eris.Wrapf(err, "region: read %s", path)
	}
	mp, err := decode(data)
	if err != nil {
		return nil, eris.Wrapf(err, "region: decode %s", path)
	}
	return mp, nil
}

func decodeGeoJSON(data []byte) (orb.MultiPolygon, error) {
	var head struct {
		Type string `json:"type"`
	}
	if err := json.Unmarshal(data, &head); err != nil {
		return nil, eris.Wrap(err, "geojson: parse")
	}

	var geoms []orb.Geometry
	switch head.Type {
	case "FeatureCollection":
		fc, err := geojson.UnmarshalFeatureCollection(data)
		if err != nil {
			return nil, eris.Wrap(err, "geojson: feature collection")
		}
		for _, f := range fc.Features {
			geoms = append(geoms, f.Geometry)
		}
	case "Feature":
		f, err := geojson.UnmarshalFeature(data)
		if err != nil {
			return nil, eris.Wrap(err, "geojson: feature")
		}
		geoms = append(geoms, f.Geometry)
	default:
		g, err := geojson.UnmarshalGeometry(data)
		if err != nil {
			return nil, eris.Wrap(err, "geojson: geometry")
		}
		geoms = append(geoms, g.Geometry())
	}

	var mp orb.MultiPolygon
	for _, g := range geoms {
		mp = appendPolygons(mp, g)
	}
	if len(mp) == 0 {
		return nil, eris.New("geojson: no polygon geometry")
	}
	return mp, nil
}

func appendPolygons(mp orb.MultiPolygon, g orb.Geometry) orb.MultiPolygon {
	switch v := g.(type) {
	case orb.Polygon:
		return append(mp, v)
	case orb.MultiPolygon:
		return append(mp, v...)
	case orb.Collection:
		for _, child := range v {
			mp = appendPolygons(mp, child)
		}
	}
	return mp
}

func decodeWKT(data []byte) (orb.MultiPolygon, error) {
	g, err := wkt.Unmarshal(strings.TrimSpace(string(data)))
	if err != nil {
		return nil, eris.Wrap(err, "wkt: parse")
	}

	switch v := g.(type) {
	case *geom.Polygon:
		return orb.MultiPolygon{geomPolygon(v)}, nil
	case *geom.MultiPolygon:
		mp := make(orb.MultiPolygon, 0, v.NumPolygons())
		for i := 0; i < v.NumPolygons(); i++ {
			mp = append(mp, geomPolygon(v.Polygon(i)))
		}
		return mp, nil
	default:
		return nil, eris.Errorf("wkt: unsupported geometry %T", g)
	}
}

func geomPolygon(p *geom.Polygon) orb.Polygon {
	poly := make(orb.Polygon, 0, p.NumLinearRings())
	for i := 0; i < p.NumLinearRings(); i++ {
		coords := p.LinearRing(i).Coords()
		ring := make(orb.Ring, 0, len(coords))
		for _, c := range coords {
			ring = append(ring, orb.Point{c.X(), c.Y()})
		}
		poly = append(poly, ring)
	}
	return poly
}

// readShapefile groups parts into polygons: clockwise rings are shells,
// counter-clockwise rings are holes of the preceding shell.
func readShapefile(path string) (orb.MultiPolygon, error) {
	reader, err := shp.Open(path)
	if err != nil {
		return nil, eris.Wrapf(err, "region: open shapefile %s", path)
	}
	defer func() { _ = reader.Close() }()

	var mp orb.MultiPolygon
	for reader.Next() {
		_, shape := reader.Shape()
		p, ok := shape.(*shp.Polygon)
		if !ok || p.NumParts == 0 || len(p.Points) == 0 {
			continue
		}

		for i := int32(0); i < p.NumParts; i++ {
			start := p.Parts[i]
			end := int32(len(p.Points))
			if i+1 < p.NumParts {
				end = p.Parts[i+1]
			}

			ring := make(orb.Ring, 0, end-start)
			for j := start; j < end; j++ {
				ring = append(ring, orb.Point{p.Points[j].X, p.Points[j].Y})
			}

			if ring.Orientation() == orb.CCW && len(mp) > 0 {
				last := len(mp) - 1
				mp[last] = append(mp[last], ring)
				continue
			}
			mp = append(mp, orb.Polygon{ring})
		}
	}
	if len(mp) == 0 {
		return nil, eris.Errorf("region: no polygons in %s", path)
	}
	return mp, nil
}

type kmlPolygon struct {
	Outer string   `xml:"outerBoundaryIs>LinearRing>coordinates"`
	Inner []string `xml:"innerBoundaryIs>LinearRing>coordinates"`
}

// decodeKML reads the first <Polygon> in the document. Later polygons are
// ignored.
func decodeKML(data []byte) (orb.MultiPolygon, error) {
	dec := xml.NewDecoder(strings.NewReader(string(data)))

	for {
		tok, err := dec.Token()
		if err == io.EOF {
			return nil, eris.New("kml: no Polygon element")
		}
		if err != nil {
			return nil, eris.Wrap(err, "kml: read token")
		}
		start, ok := tok.(xml.StartElement)
		if !ok || start.Name.Local != "Polygon" {
			continue
		}

		var kp kmlPolygon
		if err := dec.DecodeElement(&kp, &start); err != nil {
			return nil, eris.Wrap(err, "kml: decode polygon")
		}
		outer, err := parseKMLCoordinates(kp.Outer)
		if err != nil {
			return nil, err
		}
		poly := orb.Polygon{outer}
		for _, in := range kp.Inner {
			hole, err := parseKMLCoordinates(in)
			if err != nil {
				return nil, err
			}
			poly = append(poly, hole)
		}
		return orb.MultiPolygon{poly}, nil
	}
}

// parseKMLCoordinates reads "lon,lat[,alt]" tuples separated by whitespace.
func parseKMLCoordinates(s string) (orb.Ring, error) {
	var ring orb.Ring
	for _, tuple := range strings.Fields(s) {
		parts := strings.Split(tuple, ",")
		if len(parts) < 2 {
			return nil, eris.Errorf("kml: bad coordinate %q", tuple)
		}
		lon, err := strconv.ParseFloat(parts[0], 64)
		if err != nil {
			return nil, eris.Wrapf(err, "kml: longitude %q", parts[0])
		}
		lat, err := strconv.ParseFloat(parts[1], 64)
		if err != nil {
			return nil, eris.Wrapf(err, "kml: latitude %q", parts[1])
		}
		ring = append(ring, orb.Point{lon, lat})
	}
	return ring, nil
}

// yamlRegion lists vertices of one polygon. Order is "latlon" (default) or
// "lonlat".
type yamlRegion struct {
	Name     string       `yaml:"name"`
	Order    string       `yaml:"order"`
	Vertices [][2]float64 `yaml:"vertices"`
}

func decodeYAML(data []byte) (orb.MultiPolygon, error) {
	var yr yamlRegion
	if err := yaml.Unmarshal(data, &yr); err != nil {
		return nil, eris.Wrap(err, "yaml: parse")
	}

	lonFirst := false
	switch strings.ToLower(yr.Order) {
	case "", "latlon":
	case "lonlat":
		lonFirst = true
	default:
		return nil, eris.Errorf("yaml: unknown vertex order %q", yr.Order)
	}

	ring := make(orb.Ring, 0, len(yr.Vertices))
	for _, v := range yr.Vertices {
		if lonFirst {
			ring = append(ring, orb.Point{v[0], v[1]})
		} else {
			ring = append(ring, orb.Point{v[1], v[0]})
		}
	}
	return orb.MultiPolygon{{ring}}, nil
}
