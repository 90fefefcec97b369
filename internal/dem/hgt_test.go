package dem

import (
	"context"
	"encoding/binary"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/terrain-cli/internal/terrain"
)

// writeTile writes a 3 arc-second tile whose cells are given by fn.
func writeTile(t *testing.T, dir, name string, fn func(row, col int) int16) {
	t.Helper()
	buf := make([]byte, 2*hgtSize3*hgtSize3)
	for row := 0; row < hgtSize3; row++ {
		for col := 0; col < hgtSize3; col++ {
			binary.BigEndian.PutUint16(buf[2*(row*hgtSize3+col):], uint16(fn(row, col)))
		}
	}
	require.NoError(t, os.WriteFile(filepath.Join(dir, name), buf, 0o644))
}

func TestTileKey_Name(t *testing.T) {
	tests := []struct {
		key  tileKey
		want string
	}{
		{tileKey{37, -84}, "N37W084.hgt"},
		{tileKey{-1, 0}, "S01E000.hgt"},
		{tileKey{0, 179}, "N00E179.hgt"},
		{tileKey{-34, -180}, "S34W180.hgt"},
	}
	for _, tt := range tests {
		t.Run(tt.want, func(t *testing.T) {
			assert.Equal(t, tt.want, tt.key.name())
		})
	}
}

func TestHGT_SampleNearestCell(t *testing.T) {
	dir := t.TempDir()
	writeTile(t, dir, "N37W084.hgt", func(row, col int) int16 { return int16(row + 2*col) })

	src, err := NewHGT(dir, 4)
	require.NoError(t, err)

	vals, err := src.SampleAt(context.Background(), []terrain.GeoPoint{
		{Lon: -84, Lat: 38},      // northwest corner
		{Lon: -83.5, Lat: 37.5},  // center
		{Lon: -83.0001, Lat: 37}, // southeast edge
	})
	require.NoError(t, err)
	assert.Equal(t, []float64{0, 600 + 2*600, 1200 + 2*1200}, vals)
}

func TestHGT_SampleSharedEdgeFromAdjacentTile(t *testing.T) {
	dir := t.TempDir()
	writeTile(t, dir, "N37W084.hgt", func(row, col int) int16 { return int16(row + 2*col) })

	src, err := NewHGT(dir, 4)
	require.NoError(t, err)

	// N38W084 and N37W083 are absent; their south row and west column
	// coincide with N37W084's north row and east column.
	vals, err := src.SampleAt(context.Background(), []terrain.GeoPoint{
		{Lon: -83.5, Lat: 38}, // north edge
		{Lon: -83, Lat: 37.5}, // east edge
		{Lon: -83, Lat: 38},   // northeast corner
	})
	require.NoError(t, err)
	assert.Equal(t, []float64{2 * 600, 600 + 2*1200, 2 * 1200}, vals)
}

func TestEdgeKeys(t *testing.T) {
	assert.Equal(t, []tileKey{{37, -84}}, edgeKeys(37.5, -83.5))
	assert.Equal(t, []tileKey{{38, -84}, {37, -84}}, edgeKeys(38, -83.5))
	assert.Equal(t, []tileKey{{37, -83}, {37, -84}}, edgeKeys(37.5, -83))
	assert.Equal(t, []tileKey{{38, -83}, {37, -83}, {38, -84}, {37, -84}}, edgeKeys(38, -83))
	assert.Equal(t, []tileKey{{-90, -180}}, edgeKeys(-90, -180))
}

func TestHGT_MissingTileIsNoData(t *testing.T) {
	dir := t.TempDir()
	writeTile(t, dir, "N37W084.hgt", func(int, int) int16 { return 100 })

	src, err := NewHGT(dir, 4)
	require.NoError(t, err)

	vals, err := src.SampleAt(context.Background(), []terrain.GeoPoint{
		{Lon: -83.5, Lat: 37.5},
		{Lon: -82.5, Lat: 37.5},
		{Lon: 10, Lat: 90},
		{Lon: 10, Lat: 95},
	})
	require.NoError(t, err)
	assert.Equal(t, []float64{100, NoDataValue, NoDataValue, NoDataValue}, vals)
	assert.Equal(t, NoDataValue, src.NoData())
}

func TestHGT_VoidCellIsNoData(t *testing.T) {
	dir := t.TempDir()
	writeTile(t, dir, "N37W084.hgt", func(int, int) int16 { return -32768 })

	src, err := NewHGT(dir, 4)
	require.NoError(t, err)

	vals, err := src.SampleAt(context.Background(), []terrain.GeoPoint{{Lon: -83.5, Lat: 37.5}})
	require.NoError(t, err)
	assert.True(t, terrain.IsNoData(vals[0], src.NoData()))
}

func TestHGT_LowercaseFileName(t *testing.T) {
	dir := t.TempDir()
	writeTile(t, dir, "n37w084.hgt", func(int, int) int16 { return 42 })

	src, err := NewHGT(dir, 4)
	require.NoError(t, err)

	vals, err := src.SampleAt(context.Background(), []terrain.GeoPoint{{Lon: -83.5, Lat: 37.5}})
	require.NoError(t, err)
	assert.Equal(t, []float64{42}, vals)
}

func TestHGT_CacheEviction(t *testing.T) {
	dir := t.TempDir()
	writeTile(t, dir, "N37W084.hgt", func(int, int) int16 { return 1 })
	writeTile(t, dir, "N37W083.hgt", func(int, int) int16 { return 2 })

	src, err := NewHGT(dir, 1)
	require.NoError(t, err)

	pts := []terrain.GeoPoint{{Lon: -83.5, Lat: 37.5}, {Lon: -82.5, Lat: 37.5}, {Lon: -83.5, Lat: 37.5}}
	vals, err := src.SampleAt(context.Background(), pts)
	require.NoError(t, err)
	assert.Equal(t, []float64{1, 2, 1}, vals)
	assert.Len(t, src.tiles, 1)

	require.NoError(t, src.Close())
	assert.Empty(t, src.tiles)
}

func TestHGT_CorruptTile(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "N37W084.hgt"), []byte{0, 1, 2}, 0o644))

	src, err := NewHGT(dir, 4)
	require.NoError(t, err)

	_, err = src.SampleAt(context.Background(), []terrain.GeoPoint{{Lon: -83.5, Lat: 37.5}})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unexpected size")
	assert.False(t, terrain.IsFatal(err))
}

func TestHGT_Cancelled(t *testing.T) {
	src, err := NewHGT(t.TempDir(), 4)
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err = src.SampleAt(ctx, []terrain.GeoPoint{{Lon: -83.5, Lat: 37.5}})
	assert.ErrorIs(t, err, context.Canceled)
}

func TestNewHGT_Unavailable(t *testing.T) {
	_, err := NewHGT(filepath.Join(t.TempDir(), "missing"), 4)
	require.Error(t, err)
	assert.True(t, terrain.IsFatal(err))

	file := filepath.Join(t.TempDir(), "tile.hgt")
	require.NoError(t, os.WriteFile(file, nil, 0o644))
	_, err = NewHGT(file, 4)
	require.Error(t, err)
	assert.True(t, terrain.IsFatal(err))
}

func TestWrapLongitude(t *testing.T) {
	assert.InDelta(t, -83.5, wrapLongitude(-83.5), 1e-9)
	assert.InDelta(t, -179.0, wrapLongitude(181), 1e-9)
	assert.InDelta(t, 179.0, wrapLongitude(-181), 1e-9)
	assert.InDelta(t, -180.0, wrapLongitude(180), 1e-9)
}

func TestHGT_AnalyzeRidge(t *testing.T) {
	dir := t.TempDir()
	// 300 m plateau with a 600 m ridge 1-4 km north of the center.
	writeTile(t, dir, "N37W084.hgt", func(row, _ int) int16 {
		if row >= 560 && row <= 595 {
			return 600
		}
		return 300
	})

	src, err := NewHGT(dir, 4)
	require.NoError(t, err)

	field := terrain.MetersToFeet(300)
	a, err := terrain.Analyze(context.Background(), src, terrain.GeoPoint{Lon: -83.5, Lat: 37.5}, field, terrain.Options{
		Spec:       terrain.DefaultSamplingSpec(),
		Thresholds: terrain.DefaultThresholds(),
		Nodata:     terrain.NodataSkip,
	})
	require.NoError(t, err)
	assert.InDelta(t, terrain.MetersToFeet(300), a.Profile.DeltaHighFt, 0.01)
	assert.InDelta(t, 0, a.Profile.DeltaLowFt, 0.01)
	assert.Equal(t, []terrain.Category{terrain.CategoryMountain}, a.Categories)
}

func TestTileName(t *testing.T) {
	assert.Equal(t, "N37W082.hgt", TileName(37.5, -81.5))
	assert.Equal(t, "S01E000.hgt", TileName(-0.2, 0.3))
	assert.Equal(t, "N00W180.hgt", TileName(0.5, 180.5))
}
