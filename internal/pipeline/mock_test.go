package pipeline

import (
	"context"
	"math"
	"sync/atomic"

	"github.com/stretchr/testify/mock"

	"github.com/sells-group/terrain-cli/internal/terrain"
)

// MockSource is a testify mock for terrain.Source.
type MockSource struct {
	mock.Mock
}

func (m *MockSource) SampleAt(ctx context.Context, points []terrain.GeoPoint) ([]float64, error) {
	args := m.Called(ctx, points)
	vals, _ := args.Get(0).([]float64)
	return vals, args.Error(1)
}

func (m *MockSource) NoData() float64 {
	return m.Called().Get(0).(float64)
}

// shape describes the terrain around one airport in meters.
type shape struct {
	center, north, south, side float64
}

const nodataM = -32768.0

// terrainSource answers points near a registered airport with that
// airport's shape and everything else with nodata.
type terrainSource struct {
	shapes map[terrain.GeoPoint]shape
	calls  atomic.Int64
}

func newTerrainSource() *terrainSource {
	return &terrainSource{shapes: make(map[terrain.GeoPoint]shape)}
}

func (s *terrainSource) add(lon, lat float64, sh shape) {
	s.shapes[terrain.GeoPoint{Lon: lon, Lat: lat}] = sh
}

func (s *terrainSource) SampleAt(ctx context.Context, points []terrain.GeoPoint) ([]float64, error) {
	s.calls.Add(1)
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	out := make([]float64, len(points))
	for i, p := range points {
		out[i] = nodataM
		for c, sh := range s.shapes {
			if math.Abs(p.Lat-c.Lat) > 0.05 || math.Abs(p.Lon-c.Lon) > 0.05 {
				continue
			}
			switch {
			case math.Abs(p.Lat-c.Lat) < 1e-9 && math.Abs(p.Lon-c.Lon) < 1e-9:
				out[i] = sh.center
			case p.Lat > c.Lat+1e-9:
				out[i] = sh.north
			case p.Lat < c.Lat-1e-9:
				out[i] = sh.south
			default:
				out[i] = sh.side
			}
		}
	}
	return out, nil
}

func (s *terrainSource) NoData() float64 { return nodataM }
