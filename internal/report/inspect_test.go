package report

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/terrain-cli/internal/pipeline"
	"github.com/sells-group/terrain-cli/internal/terrain"
)

func TestGoogleEarthURL(t *testing.T) {
	assert.Equal(t,
		"https://earth.google.com/web/@37.6004,-81.559303,1000a,3000d,0y,0h,0t,0r",
		GoogleEarthURL(37.6004, -81.559303, 3))
	assert.Equal(t,
		"https://earth.google.com/web/@10,20,1000a,2500d,0y,0h,0t,0r",
		GoogleEarthURL(10, 20, 2.5))
}

func TestFAAURL(t *testing.T) {
	assert.Equal(t, "https://adip.faa.gov/agis/public/#/airportData/I16", FAAURL("I16"))
	assert.Equal(t, "", FAAURL("  "))
}

func TestFormatInspection(t *testing.T) {
	in := &pipeline.Inspection{
		Record:     record("KI16", "Kee Field", 37.6004, -81.559303, 1783, "I16"),
		Spec:       terrain.SamplingSpec{RadiusKM: 5, StepKM: 1},
		Thresholds: terrain.DefaultThresholds(),
		GridSize:   121,
		Profile: terrain.Profile{
			MaxElevFt: 3100, MinElevFt: 1100, FieldElevFt: 1783,
			DeltaHighFt: 1317, DeltaLowFt: 683, SampleCount: 121,
		},
		Categories: []terrain.Category{terrain.CategoryMountain, terrain.CategoryMountainTop},
	}

	var b strings.Builder
	require.NoError(t, FormatInspection(&b, in))
	out := b.String()

	assert.Contains(t, out, "Airport: KI16 - Kee Field")
	assert.Contains(t, out, "37.600400, -81.559303")
	assert.Contains(t, out, "Max elevation (5 km)")
	assert.Contains(t, out, "3100.0 ft")
	assert.Contains(t, out, "Delta High (max - field)  : 1317.0 ft")
	assert.Contains(t, out, "Delta Low (field - min)   : 683.0 ft")
	assert.Contains(t, out, "mountain, mountain_top")
	assert.Contains(t, out, "1000a,5000d")
	assert.Contains(t, out, "airportData/I16")
}

func TestFormatInspection_NoCategoriesNoLocalCode(t *testing.T) {
	in := &pipeline.Inspection{
		Record: record("XX01", "Flat", 40, -80, 900, ""),
		Spec:   terrain.SamplingSpec{RadiusKM: 3, StepKM: 1},
	}

	var b strings.Builder
	require.NoError(t, FormatInspection(&b, in))
	assert.Contains(t, b.String(), "Categories                : none")
	assert.Contains(t, b.String(), "FAA Airport Data          : n/a")
}

func TestFormatInspection_Nil(t *testing.T) {
	var b strings.Builder
	assert.Error(t, FormatInspection(&b, nil))
}
