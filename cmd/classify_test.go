package main

import (
	"bytes"
	"context"
	"encoding/binary"
	"os"
	"path/filepath"
	"testing"

	"github.com/spf13/cobra"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/terrain-cli/internal/config"
	"github.com/sells-group/terrain-cli/internal/pipeline"
	"github.com/sells-group/terrain-cli/internal/report"
	"github.com/sells-group/terrain-cli/internal/store"
	"github.com/sells-group/terrain-cli/internal/terrain"
)

const testCatalog = `id,ident,type,name,latitude_deg,longitude_deg,elevation_ft,iso_region,municipality,local_code
1,LOW1,small_airport,Valley Strip,37.5,-81.5,500,US-WV,Mullens,LW1
2,HIGH,small_airport,Knob Top,37.4,-81.6,3000,US-WV,Pineville,HI1
3,MID1,small_airport,Level Field,37.6,-81.4,1640,US-WV,Beckley,MD1
4,HELI,heliport,Hospital Pad,37.55,-81.45,500,US-WV,Beckley,
5,FAR1,small_airport,Far Away,51.5,-0.5,80,GB-ENG,London,
`

// writeFlatTile writes a 3 arc-second tile with every cell at meters.
func writeFlatTile(t *testing.T, dir, name string, meters int16) {
	t.Helper()
	const size = 1201
	buf := make([]byte, 2*size*size)
	for i := 0; i < size*size; i++ {
		binary.BigEndian.PutUint16(buf[2*i:], uint16(meters))
	}
	require.NoError(t, os.WriteFile(filepath.Join(dir, name), buf, 0o644))
}

func testConfig(t *testing.T) *config.Config {
	t.Helper()
	dir := t.TempDir()

	catalog := filepath.Join(dir, "airports.csv")
	require.NoError(t, os.WriteFile(catalog, []byte(testCatalog), 0o644))

	demDir := filepath.Join(dir, "dem")
	require.NoError(t, os.Mkdir(demDir, 0o755))
	writeFlatTile(t, demDir, "N37W082.hgt", 500)

	return &config.Config{
		Catalog:  config.CatalogConfig{Path: catalog},
		Region:   config.RegionConfig{Path: "all"},
		DEM:      config.DEMConfig{Driver: "hgt", HGTDir: demDir, CacheTiles: 4},
		Sampling: config.SamplingConfig{RadiusKM: 3, StepKM: 1},
		Classify: config.ClassifyConfig{
			MountainThresholdFt:    800,
			MountainTopThresholdFt: 600,
			ExcludedTypes:          []string{"heliport"},
			NodataPolicy:           "skip",
			Concurrency:            2,
			RecordTimeoutSecs:      30,
		},
		Store: config.StoreConfig{Driver: "sqlite", DatabaseURL: filepath.Join(dir, "terrain.db")},
		Log:   config.LogConfig{Level: "info", Format: "json"},
	}
}

func TestInitAnalysis_ClassifyEndToEnd(t *testing.T) {
	c := testConfig(t)
	require.NoError(t, c.Validate("classify"))
	ctx := context.Background()

	env, err := initAnalysis(ctx, c)
	require.NoError(t, err)
	defer env.Close()

	res, err := pipeline.Run(ctx, env.Input)
	require.NoError(t, err)

	// 500 m is 1640.42 ft everywhere.
	require.Len(t, res.Mountain, 1)
	assert.Equal(t, "LOW1", res.Mountain[0].Record.Ident)
	require.Len(t, res.MountainTop, 1)
	assert.Equal(t, "HIGH", res.MountainTop[0].Record.Ident)

	// FAR1 has no tile, so every sample is nodata.
	require.Len(t, res.Failures, 1)
	assert.Equal(t, "FAR1", res.Failures[0].Ident)
	assert.Equal(t, 1, res.Stats.ExcludedType)

	outDir := t.TempDir()
	paths, err := report.WriteOutputs(outDir, report.FormatCSV, res)
	require.NoError(t, err)
	require.Len(t, paths, 3)

	data, err := os.ReadFile(filepath.Join(outDir, "mountain_airports.csv"))
	require.NoError(t, err)
	assert.Contains(t, string(data), "id,ident,type,name,latitude_deg,longitude_deg,elevation_ft,iso_region,municipality,local_code,delta_high,delta_low")
	assert.Contains(t, string(data), "1,LOW1,small_airport,Valley Strip,37.5,-81.5,500,US-WV,Mullens,LW1,")
}

func TestInitAnalysis_Errors(t *testing.T) {
	ctx := context.Background()

	c := testConfig(t)
	c.Catalog.Path = filepath.Join(t.TempDir(), "missing.csv")
	_, err := initAnalysis(ctx, c)
	assert.Error(t, err)

	c = testConfig(t)
	c.Region.Path = filepath.Join(t.TempDir(), "missing.geojson")
	_, err = initAnalysis(ctx, c)
	assert.Error(t, err)

	c = testConfig(t)
	c.DEM.HGTDir = filepath.Join(t.TempDir(), "nope")
	_, err = initAnalysis(ctx, c)
	require.Error(t, err)
	assert.True(t, terrain.IsFatal(err))

	c = testConfig(t)
	c.Classify.NodataPolicy = "ignore"
	_, err = initAnalysis(ctx, c)
	assert.Error(t, err)
}

func TestPersistResult(t *testing.T) {
	c := testConfig(t)
	ctx := context.Background()

	st, err := openStore(ctx, c)
	require.NoError(t, err)
	defer st.Close() //nolint:errcheck

	run, err := st.CreateRun(ctx, runParams(c, 10))
	require.NoError(t, err)

	env, err := initAnalysis(ctx, c)
	require.NoError(t, err)
	defer env.Close()

	res, err := pipeline.Run(ctx, env.Input)
	require.NoError(t, err)
	require.NoError(t, persistResult(ctx, st, run.ID, res))

	got, err := st.GetRun(ctx, run.ID)
	require.NoError(t, err)
	assert.Equal(t, store.RunStatusComplete, got.Status)
	assert.Equal(t, 10, got.Params.Limit)
	assert.Equal(t, "hgt", got.Params.DEMDriver)
	require.NotNil(t, got.Stats)
	assert.Equal(t, res.Stats, *got.Stats)

	results, err := st.ListResults(ctx, run.ID, "")
	require.NoError(t, err)
	assert.Len(t, results, 2)
}

func TestFinishClassify_OutputFailureMarksRunFailed(t *testing.T) {
	c := testConfig(t)
	ctx := context.Background()

	st, err := openStore(ctx, c)
	require.NoError(t, err)
	defer st.Close() //nolint:errcheck

	run, err := st.CreateRun(ctx, runParams(c, 0))
	require.NoError(t, err)

	env, err := initAnalysis(ctx, c)
	require.NoError(t, err)
	defer env.Close()

	res, err := pipeline.Run(ctx, env.Input)
	require.NoError(t, err)

	// A regular file where the output directory should go.
	blocker := filepath.Join(t.TempDir(), "out")
	require.NoError(t, os.WriteFile(blocker, []byte("x"), 0o644))

	_, err = finishClassify(ctx, st, run, filepath.Join(blocker, "reports"), report.FormatCSV, res)
	require.Error(t, err)

	got, err := st.GetRun(ctx, run.ID)
	require.NoError(t, err)
	assert.Equal(t, store.RunStatusFailed, got.Status)
	assert.Contains(t, got.Error, "report: create")
}

func TestFinishClassify_PersistsRun(t *testing.T) {
	c := testConfig(t)
	ctx := context.Background()

	st, err := openStore(ctx, c)
	require.NoError(t, err)
	defer st.Close() //nolint:errcheck

	run, err := st.CreateRun(ctx, runParams(c, 0))
	require.NoError(t, err)

	env, err := initAnalysis(ctx, c)
	require.NoError(t, err)
	defer env.Close()

	res, err := pipeline.Run(ctx, env.Input)
	require.NoError(t, err)

	paths, err := finishClassify(ctx, st, run, t.TempDir(), report.FormatCSV, res)
	require.NoError(t, err)
	assert.NotEmpty(t, paths)

	got, err := st.GetRun(ctx, run.ID)
	require.NoError(t, err)
	assert.Equal(t, store.RunStatusComplete, got.Status)
}

func TestFailRun_NoRun(t *testing.T) {
	cause := assert.AnError
	assert.Equal(t, cause, failRun(context.Background(), nil, nil, cause))
}

func TestInitStore_UnknownDriver(t *testing.T) {
	c := testConfig(t)
	c.Store.Driver = "mysql"
	_, err := initStore(context.Background(), c)
	assert.Error(t, err)
}

func TestApplyClassifyFlags(t *testing.T) {
	cmd := &cobra.Command{Use: "test"}
	cmd.Flags().String("catalog", "", "")
	cmd.Flags().String("region", "", "")
	cmd.Flags().Int("concurrency", 0, "")
	addSamplingFlags(cmd)
	require.NoError(t, cmd.ParseFlags([]string{"--catalog", "world.csv", "--radius", "5", "--concurrency", "3"}))

	c := testConfig(t)
	applyClassifyFlags(cmd, c)

	assert.Equal(t, "world.csv", c.Catalog.Path)
	assert.Equal(t, "all", c.Region.Path, "unchanged flags keep config values")
	assert.Equal(t, 5.0, c.Sampling.RadiusKM)
	assert.Equal(t, 1.0, c.Sampling.StepKM)
	assert.Equal(t, 3, c.Classify.Concurrency)
}

func TestFormatClassifySummary(t *testing.T) {
	res := &pipeline.Result{Stats: pipeline.Stats{Total: 5, OutOfRegion: 1, ExcludedType: 1, Screened: 3, Failed: 1, Mountain: 1, MountainTop: 1}}

	var buf bytes.Buffer
	formatClassifySummary(&buf, res, []string{"out/mountain_airports.csv"}, &store.Run{ID: "run-123"})

	out := buf.String()
	assert.Contains(t, out, "Airports in catalog:")
	assert.Contains(t, out, "Mountain-top airports:")
	assert.Contains(t, out, "run-123")
	assert.Contains(t, out, "out/mountain_airports.csv")
}
