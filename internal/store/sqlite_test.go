package store

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/terrain-cli/internal/pipeline"
	"github.com/sells-group/terrain-cli/internal/terrain"
)

func newTestSQLiteStore(t *testing.T) *SQLiteStore {
	t.Helper()
	dbPath := filepath.Join(t.TempDir(), "test.db")
	st, err := NewSQLite(dbPath)
	require.NoError(t, err)
	t.Cleanup(func() { st.Close() }) //nolint:errcheck
	require.NoError(t, st.Migrate(context.Background()))
	return st
}

var testParams = RunParams{
	Catalog:                "airports.csv",
	Region:                 "appalachia",
	DEMDriver:              "hgt",
	RadiusKM:               3,
	StepKM:                 1,
	MountainThresholdFt:    800,
	MountainTopThresholdFt: 600,
	NodataPolicy:           "skip",
}

func TestSQLite_CreateAndGetRun(t *testing.T) {
	st := newTestSQLiteStore(t)
	ctx := context.Background()

	run, err := st.CreateRun(ctx, testParams)
	require.NoError(t, err)
	assert.NotEmpty(t, run.ID)
	assert.Equal(t, RunStatusRunning, run.Status)

	got, err := st.GetRun(ctx, run.ID)
	require.NoError(t, err)
	assert.Equal(t, run.ID, got.ID)
	assert.Equal(t, RunStatusRunning, got.Status)
	assert.Equal(t, testParams, got.Params)
	assert.Nil(t, got.Stats)
	assert.Empty(t, got.Error)
}

func TestSQLite_GetRun_NotFound(t *testing.T) {
	st := newTestSQLiteStore(t)

	_, err := st.GetRun(context.Background(), "nope")
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrNotFound))
}

func TestSQLite_CompleteRun(t *testing.T) {
	st := newTestSQLiteStore(t)
	ctx := context.Background()

	run, err := st.CreateRun(ctx, testParams)
	require.NoError(t, err)

	stats := pipeline.Stats{Total: 10, Screened: 8, Failed: 1, Mountain: 2, MountainTop: 1}
	require.NoError(t, st.CompleteRun(ctx, run.ID, stats))

	got, err := st.GetRun(ctx, run.ID)
	require.NoError(t, err)
	assert.Equal(t, RunStatusComplete, got.Status)
	require.NotNil(t, got.Stats)
	assert.Equal(t, stats, *got.Stats)
}

func TestSQLite_FailRun(t *testing.T) {
	st := newTestSQLiteStore(t)
	ctx := context.Background()

	run, err := st.CreateRun(ctx, testParams)
	require.NoError(t, err)
	require.NoError(t, st.FailRun(ctx, run.ID, "dem: source unavailable"))

	got, err := st.GetRun(ctx, run.ID)
	require.NoError(t, err)
	assert.Equal(t, RunStatusFailed, got.Status)
	assert.Equal(t, "dem: source unavailable", got.Error)
}

func TestSQLite_UpdateMissingRun(t *testing.T) {
	st := newTestSQLiteStore(t)
	ctx := context.Background()

	err := st.CompleteRun(ctx, "missing", pipeline.Stats{})
	assert.True(t, errors.Is(err, ErrNotFound))

	err = st.FailRun(ctx, "missing", "x")
	assert.True(t, errors.Is(err, ErrNotFound))
}

func TestSQLite_ListRuns(t *testing.T) {
	st := newTestSQLiteStore(t)
	ctx := context.Background()

	var ids []string
	for i := 0; i < 3; i++ {
		run, err := st.CreateRun(ctx, testParams)
		require.NoError(t, err)
		ids = append(ids, run.ID)
		time.Sleep(5 * time.Millisecond)
	}
	require.NoError(t, st.CompleteRun(ctx, ids[0], pipeline.Stats{Total: 1}))

	all, err := st.ListRuns(ctx, RunFilter{})
	require.NoError(t, err)
	require.Len(t, all, 3)
	assert.Equal(t, ids[2], all[0].ID, "newest first")

	complete, err := st.ListRuns(ctx, RunFilter{Status: RunStatusComplete})
	require.NoError(t, err)
	require.Len(t, complete, 1)
	assert.Equal(t, ids[0], complete[0].ID)

	page, err := st.ListRuns(ctx, RunFilter{Limit: 1, Offset: 1})
	require.NoError(t, err)
	require.Len(t, page, 1)
	assert.Equal(t, ids[1], page[0].ID)
}

func TestSQLite_SaveAndListResults(t *testing.T) {
	st := newTestSQLiteStore(t)
	ctx := context.Background()

	run, err := st.CreateRun(ctx, testParams)
	require.NoError(t, err)

	results, failures := FromResult(run.ID, sampleResult())
	require.NoError(t, st.SaveResults(ctx, run.ID, results, failures))

	all, err := st.ListResults(ctx, run.ID, "")
	require.NoError(t, err)
	require.Len(t, all, 3)

	mtn, err := st.ListResults(ctx, run.ID, terrain.CategoryMountain)
	require.NoError(t, err)
	require.Len(t, mtn, 2)
	assert.Equal(t, "BBB1", mtn[0].Ident, "catalog order, not ident order")
	assert.Equal(t, "AAA1", mtn[1].Ident)
	assert.Equal(t, 1200.0, mtn[0].DeltaFt)

	top, err := st.ListResults(ctx, run.ID, terrain.CategoryMountainTop)
	require.NoError(t, err)
	require.Len(t, top, 1)
	assert.Equal(t, "AAA1", top[0].Ident)
	assert.Equal(t, 700.0, top[0].DeltaFt)

	// Saving again replaces rather than duplicating.
	require.NoError(t, st.SaveResults(ctx, run.ID, results, nil))
	again, err := st.ListResults(ctx, run.ID, "")
	require.NoError(t, err)
	assert.Len(t, again, 3)
}

func TestSQLite_ListResults_UnknownRun(t *testing.T) {
	st := newTestSQLiteStore(t)

	res, err := st.ListResults(context.Background(), "missing", "")
	require.NoError(t, err)
	assert.Empty(t, res)
}
