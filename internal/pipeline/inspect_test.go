package pipeline

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/terrain-cli/internal/terrain"
)

func TestInspect(t *testing.T) {
	in, _ := fixture(t)

	insp, err := Inspect(context.Background(), in, "BOTH")
	require.NoError(t, err)
	assert.Equal(t, "BOTH", insp.Record.Ident)
	assert.Equal(t, 49, insp.GridSize)
	assert.InDelta(t, terrain.MetersToFeet(900), insp.Profile.MaxElevFt, 0.01)
	assert.InDelta(t, terrain.MetersToFeet(250), insp.Profile.MinElevFt, 0.01)
	assert.Equal(t, []terrain.Category{terrain.CategoryMountain, terrain.CategoryMountainTop}, insp.Categories)
	assert.Equal(t, terrain.DefaultThresholds(), insp.Thresholds)
}

func TestInspect_MatchesRun(t *testing.T) {
	in, _ := fixture(t)
	res, err := Run(context.Background(), in)
	require.NoError(t, err)

	for _, c := range res.Mountain {
		insp, err := Inspect(context.Background(), in, c.Record.Ident)
		require.NoError(t, err)
		assert.Equal(t, c.Profile, insp.Profile, c.Record.Ident)
	}
}

func TestInspect_ExcludedTypeStillInspected(t *testing.T) {
	in, _ := fixture(t)

	insp, err := Inspect(context.Background(), in, "HELI")
	require.NoError(t, err)
	assert.Contains(t, insp.Categories, terrain.CategoryMountain)
}

func TestInspect_Errors(t *testing.T) {
	in, _ := fixture(t)

	tests := []struct {
		ident string
		want  string
	}{
		{"ZZZZ", "not found in catalog"},
		{"DENV", "outside the configured region"},
		{"NOEL", "no field elevation"},
	}
	for _, tt := range tests {
		t.Run(tt.ident, func(t *testing.T) {
			_, err := Inspect(context.Background(), in, tt.ident)
			require.Error(t, err)
			assert.True(t, terrain.IsInputError(err))
			assert.Contains(t, err.Error(), tt.want)
		})
	}
}

func TestInspect_EmptyGrid(t *testing.T) {
	in, _ := fixture(t)

	_, err := Inspect(context.Background(), in, "VOID")
	require.Error(t, err)
	var eg *terrain.EmptyGridError
	assert.ErrorAs(t, err, &eg)
}
