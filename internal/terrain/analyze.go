package terrain

import (
	"context"
)

// Analysis is the outcome of sampling and classifying one location.
type Analysis struct {
	Grid       Grid       `json:"-"`
	Profile    Profile    `json:"profile"`
	Categories []Category `json:"categories"`
}

// Options bundles the policy inputs to Analyze.
type Options struct {
	Spec       SamplingSpec
	Thresholds Thresholds
	Nodata     NodataPolicy
}

// Analyze runs grid, sample, summarize and classify for one center point.
func Analyze(ctx context.Context, src Source, center GeoPoint, fieldElevFt float64, opts Options) (*Analysis, error) {
	grid, err := BuildGrid(center, opts.Spec)
	if err != nil {
		return nil, err
	}

	samples, err := Sample(ctx, grid, src)
	if err != nil {
		return nil, err
	}

	profile, err := Summarize(samples, fieldElevFt, opts.Nodata)
	if err != nil {
		return nil, err
	}

	return &Analysis{
		Grid:       grid,
		Profile:    profile,
		Categories: Classify(profile, opts.Thresholds),
	}, nil
}
