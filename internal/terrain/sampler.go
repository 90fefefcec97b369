package terrain

import (
	"context"
	"math"

	"github.com/rotisserie/eris"
)

// FeetPerMeter converts DEM meters to feet.
const FeetPerMeter = 3.28084

// MetersToFeet converts an elevation in meters to feet.
func MetersToFeet(m float64) float64 {
	return m * FeetPerMeter
}

// Source is an elevation data source. SampleAt returns one value in meters
// per input point, in input order. Implementations must be safe for
// concurrent use.
type Source interface {
	SampleAt(ctx context.Context, points []GeoPoint) ([]float64, error)
	// NoData returns the sentinel, in meters, marking a cell without a
	// valid measurement.
	NoData() float64
}

// IsNoData reports whether v is the nodata sentinel or NaN.
func IsNoData(v, nodata float64) bool {
	return math.IsNaN(v) || v == nodata
}

// ElevationSample is one sampled grid point. Feet holds the converted raw
// value even when NoData is set.
type ElevationSample struct {
	Point  GeoPoint `json:"point"`
	Feet   float64  `json:"feet"`
	NoData bool     `json:"nodata,omitempty"`
}

// Sample queries src at every grid point and converts the results to feet.
// Nodata cells are flagged, not dropped or zeroed.
func Sample(ctx context.Context, grid Grid, src Source) ([]ElevationSample, error) {
	if len(grid.Points) == 0 {
		return nil, nil
	}

	raw, err := src.SampleAt(ctx, grid.Points)
	if err != nil {
		if IsFatal(err) {
			return nil, err
		}
		return nil, eris.Wrap(err, "terrain: sample elevation")
	}
	if len(raw) != len(grid.Points) {
		return nil, eris.Errorf("terrain: source returned %d values for %d points", len(raw), len(grid.Points))
	}

	nodata := src.NoData()
	samples := make([]ElevationSample, len(raw))
	for i, m := range raw {
		samples[i] = ElevationSample{
			Point:  grid.Points[i],
			Feet:   MetersToFeet(m),
			NoData: IsNoData(m, nodata),
		}
	}
	return samples, nil
}
