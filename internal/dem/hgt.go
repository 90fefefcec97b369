package dem

import (
	"context"
	"encoding/binary"
	"fmt"
	"math"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"

	"github.com/sells-group/terrain-cli/internal/terrain"
)

// SRTM tile edge lengths in samples for 3 and 1 arc-second data.
const (
	hgtSize3 = 1201
	hgtSize1 = 3601
)

type tileKey struct {
	lat, lon int
}

// name returns the SRTM file name for the tile whose southwest corner is at
// (lat, lon), e.g. N37W084.hgt.
func (k tileKey) name() string {
	ns, ew := 'N', 'E'
	lat, lon := k.lat, k.lon
	if lat < 0 {
		ns, lat = 'S', -lat
	}
	if lon < 0 {
		ew, lon = 'W', -lon
	}
	return fmt.Sprintf("%c%02d%c%03d.hgt", ns, lat, ew, lon)
}

// TileName returns the SRTM file name of the tile containing (lat, lon).
func TileName(lat, lon float64) string {
	return tileKey{lat: int(math.Floor(lat)), lon: int(math.Floor(wrapLongitude(lon)))}.name()
}

type hgtTile struct {
	key  tileKey
	size int
	data []int16
}

// at returns the nearest cell to (lat, lon). Rows run north to south.
func (t *hgtTile) at(lat, lon float64) float64 {
	span := float64(t.size - 1)
	row := int(math.Round((float64(t.key.lat+1) - lat) * span))
	col := int(math.Round((lon - float64(t.key.lon)) * span))
	row = min(max(row, 0), t.size-1)
	col = min(max(col, 0), t.size-1)
	return float64(t.data[row*t.size+col])
}

func parseHGT(key tileKey, raw []byte) (*hgtTile, error) {
	var size int
	switch len(raw) {
	case 2 * hgtSize3 * hgtSize3:
		size = hgtSize3
	case 2 * hgtSize1 * hgtSize1:
		size = hgtSize1
	default:
		return nil, eris.Errorf("dem: %s has unexpected size %d bytes", key.name(), len(raw))
	}

	data := make([]int16, size*size)
	for i := range data {
		data[i] = int16(binary.BigEndian.Uint16(raw[2*i:]))
	}
	return &hgtTile{key: key, size: size, data: data}, nil
}

// HGT samples a directory of SRTM .hgt tiles. Points in tiles that are not
// present resolve to NoDataValue, so coverage gaps behave like voids.
type HGT struct {
	dir      string
	capacity int

	mu    sync.Mutex
	tiles map[tileKey]*hgtTile // nil entry caches a missing tile
	order []tileKey

	loads singleflight.Group
}

// NewHGT opens a tile directory. cacheTiles bounds how many decoded tiles
// stay in memory.
func NewHGT(dir string, cacheTiles int) (*HGT, error) {
	info, err := os.Stat(dir)
	if err != nil {
		return nil, terrain.NewSourceUnavailableError("hgt", eris.Wrapf(err, "dem: stat %s", dir))
	}
	if !info.IsDir() {
		return nil, terrain.NewSourceUnavailableError("hgt", eris.Errorf("dem: %s is not a directory", dir))
	}
	if cacheTiles <= 0 {
		cacheTiles = 16
	}
	return &HGT{
		dir:      dir,
		capacity: cacheTiles,
		tiles:    make(map[tileKey]*hgtTile),
	}, nil
}

// Name implements Source.
func (h *HGT) Name() string { return "hgt" }

// NoData implements terrain.Source.
func (h *HGT) NoData() float64 { return NoDataValue }

// Close drops the tile cache.
func (h *HGT) Close() error {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.tiles = make(map[tileKey]*hgtTile)
	h.order = nil
	return nil
}

// SampleAt implements terrain.Source. Longitudes wrap at the antimeridian;
// latitudes outside the tiled range resolve to nodata.
func (h *HGT) SampleAt(ctx context.Context, points []terrain.GeoPoint) ([]float64, error) {
	out := make([]float64, len(points))
	for i, p := range points {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		lat, lon := p.Lat, wrapLongitude(p.Lon)
		if math.IsNaN(lat) || math.IsNaN(lon) || lat < -90 || lat >= 90 {
			out[i] = NoDataValue
			continue
		}

		t, err := h.covering(lat, lon)
		if err != nil {
			return nil, err
		}
		if t == nil {
			out[i] = NoDataValue
			continue
		}
		out[i] = t.at(lat, lon)
	}
	return out, nil
}

// covering returns the first present tile containing (lat, lon). Points on an
// integer parallel or meridian are shared with the tile to the south or west,
// whose north row or east column holds the same cells.
func (h *HGT) covering(lat, lon float64) (*hgtTile, error) {
	for _, key := range edgeKeys(lat, lon) {
		t, err := h.tile(key)
		if err != nil {
			return nil, err
		}
		if t != nil {
			return t, nil
		}
	}
	return nil, nil
}

func edgeKeys(lat, lon float64) []tileKey {
	base := tileKey{lat: int(math.Floor(lat)), lon: int(math.Floor(lon))}
	keys := []tileKey{base}
	onLat := lat == math.Floor(lat) && base.lat > -90
	onLon := lon == math.Floor(lon) && base.lon > -180
	if onLat {
		keys = append(keys, tileKey{lat: base.lat - 1, lon: base.lon})
	}
	if onLon {
		keys = append(keys, tileKey{lat: base.lat, lon: base.lon - 1})
	}
	if onLat && onLon {
		keys = append(keys, tileKey{lat: base.lat - 1, lon: base.lon - 1})
	}
	return keys
}

func (h *HGT) tile(key tileKey) (*hgtTile, error) {
	h.mu.Lock()
	t, ok := h.tiles[key]
	h.mu.Unlock()
	if ok {
		return t, nil
	}

	v, err, _ := h.loads.Do(key.name(), func() (any, error) {
		t, err := h.load(key)
		if err != nil {
			return nil, err
		}
		h.put(key, t)
		return t, nil
	})
	if err != nil {
		return nil, err
	}
	return v.(*hgtTile), nil
}

func (h *HGT) load(key tileKey) (*hgtTile, error) {
	for _, name := range []string{key.name(), strings.ToLower(key.name())} {
		raw, err := os.ReadFile(filepath.Join(h.dir, name))
		if os.IsNotExist(err) {
			continue
		}
		if err != nil {
			return nil, eris.Wrapf(err, "dem: read %s", name)
		}
		zap.L().Debug("dem: loaded tile", zap.String("tile", name))
		return parseHGT(key, raw)
	}
	zap.L().Debug("dem: tile not present", zap.String("tile", key.name()))
	return nil, nil
}

func (h *HGT) put(key tileKey, t *hgtTile) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if _, ok := h.tiles[key]; ok {
		return
	}
	if len(h.order) >= h.capacity {
		delete(h.tiles, h.order[0])
		h.order = h.order[1:]
	}
	h.tiles[key] = t
	h.order = append(h.order, key)
}

func wrapLongitude(lon float64) float64 {
	if lon >= -180 && lon < 180 {
		return lon
	}
	lon = math.Mod(lon+180, 360)
	if lon < 0 {
		lon += 360
	}
	return lon - 180
}
