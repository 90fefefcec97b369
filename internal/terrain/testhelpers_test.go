package terrain

import (
	"context"
)

// funcSource answers each point with fn, in meters.
type funcSource struct {
	fn     func(p GeoPoint) float64
	nodata float64
	err    error
	calls  int
}

func (s *funcSource) SampleAt(_ context.Context, points []GeoPoint) ([]float64, error) {
	s.calls++
	if s.err != nil {
		return nil, s.err
	}
	out := make([]float64, len(points))
	for i, p := range points {
		out[i] = s.fn(p)
	}
	return out, nil
}

func (s *funcSource) NoData() float64 { return s.nodata }

func uniformFeet(ft float64) func(GeoPoint) float64 {
	return func(GeoPoint) float64 { return ft / FeetPerMeter }
}
