package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"
	"text/tabwriter"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/sells-group/terrain-cli/internal/config"
	"github.com/sells-group/terrain-cli/internal/pipeline"
	"github.com/sells-group/terrain-cli/internal/report"
	"github.com/sells-group/terrain-cli/internal/store"
)

var classifyCmd = &cobra.Command{
	Use:   "classify",
	Short: "Classify every airport in the catalog",
	Long:  "Screens each in-region airport against the elevation model and writes the mountain and mountain-top lists.",
	RunE: func(cmd *cobra.Command, _ []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		applyClassifyFlags(cmd, cfg)
		if err := cfg.Validate("classify"); err != nil {
			return err
		}

		format, err := report.ParseFormat(mustString(cmd, "format"))
		if err != nil {
			return err
		}
		outDir := mustString(cmd, "out-dir")
		limit, _ := cmd.Flags().GetInt("limit")
		persist, _ := cmd.Flags().GetBool("persist")

		env, err := initAnalysis(ctx, cfg)
		if err != nil {
			return err
		}
		defer env.Close()

		in := env.Input
		if limit > 0 {
			in.Catalog = in.Catalog.Limit(limit)
		}

		var (
			st  store.Store
			run *store.Run
		)
		if persist {
			st, err = openStore(ctx, cfg)
			if err != nil {
				return err
			}
			defer st.Close() //nolint:errcheck

			run, err = st.CreateRun(ctx, runParams(cfg, limit))
			if err != nil {
				return err
			}
			zap.L().Info("classify: created run", zap.String("run_id", run.ID))
		}

		res, err := pipeline.Run(ctx, in)
		if err != nil {
			return failRun(ctx, st, run, err)
		}

		paths, err := finishClassify(ctx, st, run, outDir, format, res)
		if err != nil {
			return err
		}

		formatClassifySummary(os.Stdout, res, paths, run)
		return nil
	},
}

// finishClassify writes the report files and, when run is set, persists the
// result. Any failure after the run was created marks it failed.
func finishClassify(ctx context.Context, st store.Store, run *store.Run, outDir string, format report.Format, res *pipeline.Result) ([]string, error) {
	paths, err := report.WriteOutputs(outDir, format, res)
	if err != nil {
		return nil, failRun(ctx, st, run, err)
	}
	if run != nil {
		if err := persistResult(ctx, st, run.ID, res); err != nil {
			return nil, failRun(ctx, st, run, err)
		}
	}
	return paths, nil
}

// failRun records cause on run, if any, and returns cause.
func failRun(ctx context.Context, st store.Store, run *store.Run, cause error) error {
	if run == nil {
		return cause
	}
	if err := st.FailRun(context.WithoutCancel(ctx), run.ID, cause.Error()); err != nil {
		zap.L().Error("classify: mark run failed", zap.String("run_id", run.ID), zap.Error(err))
	}
	return cause
}

func persistResult(ctx context.Context, st store.Store, runID string, res *pipeline.Result) error {
	results, failures := store.FromResult(runID, res)
	if err := st.SaveResults(ctx, runID, results, failures); err != nil {
		return eris.Wrap(err, "classify: save results")
	}
	return eris.Wrap(st.CompleteRun(ctx, runID, res.Stats), "classify: complete run")
}

func runParams(c *config.Config, limit int) store.RunParams {
	return store.RunParams{
		Catalog:                c.Catalog.Path,
		Region:                 c.Region.Path,
		DEMDriver:              c.DEM.Driver,
		RadiusKM:               c.Sampling.RadiusKM,
		StepKM:                 c.Sampling.StepKM,
		MountainThresholdFt:    c.Classify.MountainThresholdFt,
		MountainTopThresholdFt: c.Classify.MountainTopThresholdFt,
		NodataPolicy:           c.Classify.NodataPolicy,
		Limit:                  limit,
	}
}

func applyClassifyFlags(cmd *cobra.Command, c *config.Config) {
	applySamplingFlags(cmd, c)
	if cmd.Flags().Changed("catalog") {
		c.Catalog.Path = mustString(cmd, "catalog")
	}
	if cmd.Flags().Changed("region") {
		c.Region.Path = mustString(cmd, "region")
	}
	if v, _ := cmd.Flags().GetInt("concurrency"); cmd.Flags().Changed("concurrency") {
		c.Classify.Concurrency = v
	}
}

func mustString(cmd *cobra.Command, name string) string {
	v, _ := cmd.Flags().GetString(name)
	return v
}

// formatClassifySummary writes run counts and output paths to w.
func formatClassifySummary(out io.Writer, res *pipeline.Result, paths []string, run *store.Run) {
	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	s := res.Stats
	_, _ = fmt.Fprintf(w, "Airports in catalog:\t%d\n", s.Total)
	_, _ = fmt.Fprintf(w, "Outside region:\t%d\n", s.OutOfRegion)
	_, _ = fmt.Fprintf(w, "Excluded by type:\t%d\n", s.ExcludedType)
	_, _ = fmt.Fprintf(w, "Screened:\t%d\n", s.Screened)
	_, _ = fmt.Fprintf(w, "Failed:\t%d\n", s.Failed)
	_, _ = fmt.Fprintf(w, "Mountain airports:\t%d\n", s.Mountain)
	_, _ = fmt.Fprintf(w, "Mountain-top airports:\t%d\n", s.MountainTop)
	if run != nil {
		_, _ = fmt.Fprintf(w, "Run:\t%s\n", run.ID)
	}
	for _, p := range paths {
		_, _ = fmt.Fprintf(w, "Wrote:\t%s\n", p)
	}
	_ = w.Flush()
}

func init() {
	classifyCmd.Flags().String("catalog", "", "airport catalog CSV (default from config)")
	classifyCmd.Flags().String("region", "", "region preset, \"all\", or polygon file (default from config)")
	classifyCmd.Flags().String("out-dir", ".", "directory for output files")
	classifyCmd.Flags().String("format", "csv", "output format: csv, xlsx or json")
	addSamplingFlags(classifyCmd)
	classifyCmd.Flags().Int("concurrency", 0, "airports screened in parallel (default from config)")
	classifyCmd.Flags().Int("limit", 0, "only screen the first N catalog records (0 = all)")
	classifyCmd.Flags().Bool("persist", false, "save the run and its results to the store")
	rootCmd.AddCommand(classifyCmd)
}
