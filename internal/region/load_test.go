package region

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/jonas-p/go-shp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeFile(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestLoad_Specs(t *testing.T) {
	r, err := Load("")
	require.NoError(t, err)
	assert.IsType(t, All{}, r)

	r, err = Load("ALL")
	require.NoError(t, err)
	assert.IsType(t, All{}, r)

	r, err = Load("appalachia")
	require.NoError(t, err)
	assert.True(t, r.Contains(-81.12, 37.79))

	_, err = Load(filepath.Join(t.TempDir(), "missing.geojson"))
	require.Error(t, err)

	_, err = Load(writeFile(t, "region.txt", "nothing"))
	require.Error(t, err)
}

func TestLoadFile_GeoJSON(t *testing.T) {
	tests := []struct {
		name    string
		content string
	}{
		{"geometry", `{"type":"Polygon","coordinates":[[[0,0],[10,0],[10,10],[0,10],[0,0]]]}`},
		{"feature", `{"type":"Feature","properties":{},"geometry":{"type":"Polygon","coordinates":[[[0,0],[10,0],[10,10],[0,10],[0,0]]]}}`},
		{"collection", `{"type":"FeatureCollection","features":[
			{"type":"Feature","properties":{},"geometry":{"type":"Point","coordinates":[50,50]}},
			{"type":"Feature","properties":{},"geometry":{"type":"MultiPolygon","coordinates":[[[[0,0],[10,0],[10,10],[0,10],[0,0]]]]}}
		]}`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p, err := LoadFile(writeFile(t, "area.geojson", tt.content))
			require.NoError(t, err)
			assert.Equal(t, "area", p.Name)
			assert.True(t, p.Contains(5, 5))
			assert.False(t, p.Contains(15, 5))
		})
	}
}

func TestLoadFile_GeoJSONNoPolygon(t *testing.T) {
	_, err := LoadFile(writeFile(t, "pt.json", `{"type":"Point","coordinates":[1,2]}`))
	require.Error(t, err)
}

func TestLoadFile_WKT(t *testing.T) {
	p, err := LoadFile(writeFile(t, "area.wkt", "POLYGON ((0 0, 10 0, 10 10, 0 10, 0 0), (4 4, 6 4, 6 6, 4 6, 4 4))\n"))
	require.NoError(t, err)
	assert.True(t, p.Contains(1, 1))
	assert.False(t, p.Contains(5, 5))

	mp, err := LoadFile(writeFile(t, "multi.wkt", "MULTIPOLYGON (((0 0, 1 0, 1 1, 0 1, 0 0)), ((5 5, 6 5, 6 6, 5 6, 5 5)))"))
	require.NoError(t, err)
	assert.True(t, mp.Contains(5.5, 5.5))
	assert.False(t, mp.Contains(3, 3))

	_, err = LoadFile(writeFile(t, "line.wkt", "LINESTRING (0 0, 1 1)"))
	require.Error(t, err)
}

const kmlDoc = `<?xml version="1.0" encoding="UTF-8"?>
<kml xmlns="http://www.opengis.net/kml/2.2">
  <Document>
    <Placemark>
      <name>Service Area</name>
      <Polygon>
        <outerBoundaryIs>
          <LinearRing>
            <coordinates>
              -82,36,0 -80,36,0 -80,38,0 -82,38,0 -82,36,0
            </coordinates>
          </LinearRing>
        </outerBoundaryIs>
        <innerBoundaryIs>
          <LinearRing>
            <coordinates>-81.2,36.8 -80.8,36.8 -80.8,37.2 -81.2,37.2 -81.2,36.8</coordinates>
          </LinearRing>
        </innerBoundaryIs>
      </Polygon>
    </Placemark>
  </Document>
</kml>`

func TestLoadFile_KML(t *testing.T) {
	p, err := LoadFile(writeFile(t, "app_service_area.kml", kmlDoc))
	require.NoError(t, err)
	assert.Equal(t, "app_service_area", p.Name)
	assert.True(t, p.Contains(-81.5, 37.5))
	assert.False(t, p.Contains(-81.0, 37.0), "inside hole")
	assert.False(t, p.Contains(-83, 37))

	_, err = LoadFile(writeFile(t, "empty.kml", `<kml><Document/></kml>`))
	require.Error(t, err)

	_, err = LoadFile(writeFile(t, "bad.kml", `<kml><Polygon><outerBoundaryIs><LinearRing><coordinates>x,y</coordinates></LinearRing></outerBoundaryIs></Polygon></kml>`))
	require.Error(t, err)
}

func TestLoadFile_KMLFirstPolygonOnly(t *testing.T) {
	doc := `<kml><Document>
  <Placemark><Polygon><outerBoundaryIs><LinearRing>
    <coordinates>-82,36 -80,36 -80,38 -82,38 -82,36</coordinates>
  </LinearRing></outerBoundaryIs></Polygon></Placemark>
  <Placemark><Polygon><outerBoundaryIs><LinearRing>
    <coordinates>10,50 12,50 12,52 10,52 10,50</coordinates>
  </LinearRing></outerBoundaryIs></Polygon></Placemark>
</Document></kml>`

	p, err := LoadFile(writeFile(t, "two.kml", doc))
	require.NoError(t, err)
	assert.True(t, p.Contains(-81, 37))
	assert.False(t, p.Contains(11, 51), "second polygon ignored")
}

func TestLoadFile_YAML(t *testing.T) {
	p, err := LoadFile(writeFile(t, "area.yaml", `
name: test
vertices:
  - [36.0, -82.0]
  - [36.0, -80.0]
  - [38.0, -80.0]
  - [38.0, -82.0]
`))
	require.NoError(t, err)
	assert.True(t, p.Contains(-81, 37))
	assert.False(t, p.Contains(-79, 37))

	lonlat, err := LoadFile(writeFile(t, "area.yml", `
order: lonlat
vertices: [[-82, 36], [-80, 36], [-80, 38], [-82, 38]]
`))
	require.NoError(t, err)
	assert.True(t, lonlat.Contains(-81, 37))

	_, err = LoadFile(writeFile(t, "bad.yaml", "order: sideways\nvertices: [[0,0],[1,0],[1,1]]\n"))
	require.Error(t, err)
}

func TestLoadFile_Shapefile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "area.shp")
	w, err := shp.Create(path, shp.POLYGON)
	require.NoError(t, err)
	require.NoError(t, w.SetFields([]shp.Field{shp.StringField("NAME", 25)}))

	// Shell is clockwise, hole counter-clockwise.
	poly := shp.Polygon(*shp.NewPolyLine([][]shp.Point{
		{{X: 0, Y: 0}, {X: 0, Y: 10}, {X: 10, Y: 10}, {X: 10, Y: 0}, {X: 0, Y: 0}},
		{{X: 4, Y: 4}, {X: 6, Y: 4}, {X: 6, Y: 6}, {X: 4, Y: 6}, {X: 4, Y: 4}},
	}))
	w.Write(&poly)
	require.NoError(t, w.WriteAttribute(0, 0, "area"))
	w.Close()

	p, err := LoadFile(path)
	require.NoError(t, err)
	assert.Len(t, p.Shape(), 1)
	assert.True(t, p.Contains(1, 1))
	assert.False(t, p.Contains(5, 5))
	assert.False(t, p.Contains(20, 20))
}
