package terrain

import (
	"math"
	"strings"

	"github.com/rotisserie/eris"
)

// NodataPolicy decides how nodata samples take part in aggregation.
type NodataPolicy string

const (
	// NodataSkip drops nodata samples from max/min.
	NodataSkip NodataPolicy = "skip"
	// NodataFail fails the record on any nodata sample.
	NodataFail NodataPolicy = "fail"
	// NodataInclude aggregates the converted sentinel like any other value.
	// NaN samples are still dropped.
	NodataInclude NodataPolicy = "include"
)

// ParseNodataPolicy parses a policy name. Empty means NodataSkip.
func ParseNodataPolicy(s string) (NodataPolicy, error) {
	switch p := NodataPolicy(strings.ToLower(strings.TrimSpace(s))); p {
	case "":
		return NodataSkip, nil
	case NodataSkip, NodataFail, NodataInclude:
		return p, nil
	default:
		return "", NewInputError("nodata_policy", eris.Errorf("unknown policy %q", s))
	}
}

// Profile summarizes the terrain around an airport.
type Profile struct {
	MaxElevFt   float64 `json:"max_elev_ft"`
	MinElevFt   float64 `json:"min_elev_ft"`
	FieldElevFt float64 `json:"field_elev_ft"`
	DeltaHighFt float64 `json:"delta_high_ft"`
	DeltaLowFt  float64 `json:"delta_low_ft"`
	SampleCount int     `json:"sample_count"`
	NoDataCount int     `json:"nodata_count"`
}

// Summarize aggregates samples into max/min and the two deltas against
// fieldElevFt. Either delta may be negative.
func Summarize(samples []ElevationSample, fieldElevFt float64, policy NodataPolicy) (Profile, error) {
	if len(samples) == 0 {
		return Profile{}, &EmptyGridError{}
	}
	if policy == "" {
		policy = NodataSkip
	}

	var (
		nodata    int
		firstMiss *ElevationSample
		used      int
	)
	maxFt := math.Inf(-1)
	minFt := math.Inf(1)

	for i := range samples {
		s := &samples[i]
		if s.NoData {
			nodata++
			if firstMiss == nil {
				firstMiss = s
			}
			// NaN has no value to include.
			if policy != NodataInclude || math.IsNaN(s.Feet) {
				continue
			}
		}
		used++
		maxFt = math.Max(maxFt, s.Feet)
		minFt = math.Min(minFt, s.Feet)
	}

	if policy == NodataFail && nodata > 0 {
		return Profile{}, &NoDataError{Point: firstMiss.Point, Count: nodata}
	}
	if used == 0 {
		return Profile{}, &EmptyGridError{Points: len(samples), NoData: nodata}
	}

	return Profile{
		MaxElevFt:   maxFt,
		MinElevFt:   minFt,
		FieldElevFt: fieldElevFt,
		DeltaHighFt: maxFt - fieldElevFt,
		DeltaLowFt:  fieldElevFt - minFt,
		SampleCount: len(samples),
		NoDataCount: nodata,
	}, nil
}
