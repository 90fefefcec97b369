// Package terrain samples a DEM around a point and classifies the result
// relative to a published field elevation.
package terrain

import (
	"math"

	"github.com/rotisserie/eris"
)

// Kilometre to degree approximations. One degree of longitude is
// KMPerLonDegreeAtEquator scaled by cos(latitude).
const (
	KMPerLatDegree          = 110.574
	KMPerLonDegreeAtEquator = 111.320
)

// Default sampling parameters.
const (
	DefaultRadiusKM = 3.0
	DefaultStepKM   = 1.0
)

// MaxSteps bounds the grid at (2*MaxSteps+1)^2 points.
const MaxSteps = 500

// poleEpsilon treats |cos(lat)| below this as zero. cos(pi/2) is not exactly
// zero in floating point.
const poleEpsilon = 1e-12

// GeoPoint is a WGS84 coordinate in decimal degrees.
type GeoPoint struct {
	Lon float64 `json:"lon"`
	Lat float64 `json:"lat"`
}

// Valid reports whether the point lies inside the legal coordinate ranges.
func (p GeoPoint) Valid() bool {
	return p.Lon >= -180 && p.Lon <= 180 && p.Lat >= -90 && p.Lat <= 90 &&
		!math.IsNaN(p.Lon) && !math.IsNaN(p.Lat)
}

// SamplingSpec sizes the square grid sampled around a center point.
type SamplingSpec struct {
	RadiusKM float64 `json:"radius_km"`
	StepKM   float64 `json:"step_km"`
}

// DefaultSamplingSpec returns a 3 km radius sampled every 1 km.
func DefaultSamplingSpec() SamplingSpec {
	return SamplingSpec{RadiusKM: DefaultRadiusKM, StepKM: DefaultStepKM}
}

// Validate rejects non-positive radius or step. A step larger than the
// radius is allowed and yields a 3x3 grid.
func (s SamplingSpec) Validate() error {
	if !(s.RadiusKM > 0) || math.IsInf(s.RadiusKM, 0) {
		return NewInputError("radius_km", eris.Errorf("must be positive, got %v", s.RadiusKM))
	}
	if !(s.StepKM > 0) || math.IsInf(s.StepKM, 0) {
		return NewInputError("step_km", eris.Errorf("must be positive, got %v", s.StepKM))
	}
	return nil
}

// Steps returns the number of offsets on each side of the center. Ratios
// beyond MaxSteps are clamped to MaxSteps+1 so the int conversion cannot
// overflow; BuildGrid rejects them.
func (s SamplingSpec) Steps() int {
	ratio := math.Ceil(s.RadiusKM / s.StepKM)
	if !(ratio <= MaxSteps) {
		return MaxSteps + 1
	}
	return int(ratio)
}

// LatDegreesPerKM converts kilometres north/south into degrees of latitude.
func LatDegreesPerKM() float64 {
	return 1.0 / KMPerLatDegree
}

// LonDegreesPerKM converts kilometres east/west into degrees of longitude at
// the given latitude. It fails at the poles where the scale is undefined.
func LonDegreesPerKM(lat float64) (float64, error) {
	c := math.Cos(lat * math.Pi / 180)
	if math.Abs(lat) >= 90 || math.Abs(c) < poleEpsilon {
		return 0, NewInputError("latitude", eris.Errorf("longitude scale undefined at latitude %v", lat))
	}
	return 1.0 / (KMPerLonDegreeAtEquator * c), nil
}

// Grid is the lattice of sample coordinates around Center. Points are in
// row-major order: latitude offset outer, longitude offset inner, both
// ascending from -Steps to +Steps.
type Grid struct {
	Center GeoPoint
	Spec   SamplingSpec
	Steps  int
	Points []GeoPoint
}

// Size returns the number of points along one axis.
func (g Grid) Size() int {
	return 2*g.Steps + 1
}

// Index returns the position in Points of the cell at latitude offset i and
// longitude offset j, each in [-Steps, Steps].
func (g Grid) Index(i, j int) int {
	return (i+g.Steps)*g.Size() + (j + g.Steps)
}

// At returns the point at latitude offset i and longitude offset j.
func (g Grid) At(i, j int) GeoPoint {
	return g.Points[g.Index(i, j)]
}

// BuildGrid lays out a (2*steps+1)^2 lattice around center, where
// steps = ceil(radius/step).
//
// The longitude scale is evaluated once at the center latitude and reused
// for every row. Error therefore grows with both the radius and the absolute
// latitude; at 3 km and mid latitudes it is a few metres. Generated
// coordinates are not clamped, so grids near the antimeridian or the poles
// can leave the legal range.
func BuildGrid(center GeoPoint, spec SamplingSpec) (Grid, error) {
	if err := spec.Validate(); err != nil {
		return Grid{}, err
	}
	if !center.Valid() {
		return Grid{}, NewInputError("center", eris.Errorf("coordinate (%v, %v) out of range", center.Lon, center.Lat))
	}

	lonPerKM, err := LonDegreesPerKM(center.Lat)
	if err != nil {
		return Grid{}, err
	}
	latPerKM := LatDegreesPerKM()

	steps := spec.Steps()
	if steps > MaxSteps {
		return Grid{}, NewInputError("step_km", eris.Errorf("radius/step ratio %v exceeds limit of %d steps per side", spec.RadiusKM/spec.StepKM, MaxSteps))
	}
	offsets := make([]float64, 0, 2*steps+1)
	for i := -steps; i <= steps; i++ {
		offsets = append(offsets, float64(i)*spec.StepKM)
	}

	points := make([]GeoPoint, 0, len(offsets)*len(offsets))
	for _, dy := range offsets {
		lat := center.Lat + dy*latPerKM
		for _, dx := range offsets {
			points = append(points, GeoPoint{Lon: center.Lon + dx*lonPerKM, Lat: lat})
		}
	}

	return Grid{Center: center, Spec: spec, Steps: steps, Points: points}, nil
}
