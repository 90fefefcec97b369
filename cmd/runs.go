package main

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"text/tabwriter"
	"time"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"

	"github.com/sells-group/terrain-cli/internal/store"
	"github.com/sells-group/terrain-cli/internal/terrain"
)

var runsCmd = &cobra.Command{
	Use:   "runs",
	Short: "Inspect classify run history",
	Long:  "Commands for listing, viewing, and summarizing persisted classify runs.",
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		if err := rootCmd.PersistentPreRunE(cmd, args); err != nil {
			return err
		}
		return cfg.Validate("runs")
	},
}

// -- runs list --

var runsListCmd = &cobra.Command{
	Use:   "list",
	Short: "List classify runs",
	RunE: func(cmd *cobra.Command, _ []string) error {
		ctx := cmd.Context()

		st, err := openStore(ctx, cfg)
		if err != nil {
			return err
		}
		defer st.Close() //nolint:errcheck

		status, _ := cmd.Flags().GetString("status")
		limit, _ := cmd.Flags().GetInt("limit")

		runs, err := st.ListRuns(ctx, store.RunFilter{
			Status: store.RunStatus(status),
			Limit:  limit,
		})
		if err != nil {
			return eris.Wrap(err, "runs list")
		}

		if len(runs) == 0 {
			fmt.Fprintln(os.Stderr, "No runs found.")
			return nil
		}

		formatRunsList(os.Stdout, runs)
		return nil
	},
}

// -- runs show --

var runsShowCmd = &cobra.Command{
	Use:   "show <run-id>",
	Short: "Show a run and its classified airports",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		st, err := openStore(ctx, cfg)
		if err != nil {
			return err
		}
		defer st.Close() //nolint:errcheck

		run, err := st.GetRun(ctx, args[0])
		if err != nil {
			return eris.Wrap(err, "runs show")
		}

		category, _ := cmd.Flags().GetString("category")
		results, err := st.ListResults(ctx, run.ID, terrain.Category(category))
		if err != nil {
			return eris.Wrap(err, "runs show")
		}

		if asJSON, _ := cmd.Flags().GetBool("json"); asJSON {
			enc := json.NewEncoder(os.Stdout)
			enc.SetIndent("", "  ")
			return enc.Encode(struct {
				*store.Run
				Results []store.Result `json:"results"`
			}{run, results})
		}

		formatRunDetail(os.Stdout, run, results)
		return nil
	},
}

// -- runs stats --

var runsStatsCmd = &cobra.Command{
	Use:   "stats",
	Short: "Show aggregate run statistics",
	RunE: func(cmd *cobra.Command, _ []string) error {
		ctx := cmd.Context()

		st, err := openStore(ctx, cfg)
		if err != nil {
			return err
		}
		defer st.Close() //nolint:errcheck

		runs, err := st.ListRuns(ctx, store.RunFilter{Limit: 10000})
		if err != nil {
			return eris.Wrap(err, "runs stats")
		}

		since, _ := cmd.Flags().GetDuration("since")
		formatRunStats(os.Stdout, computeRunStats(runs, since, time.Now()))
		return nil
	},
}

func init() {
	runsListCmd.Flags().String("status", "", "filter by run status (running, complete, failed)")
	runsListCmd.Flags().Int("limit", 50, "max number of runs to display")

	runsShowCmd.Flags().String("category", "", "only show one category (mountain, mountain_top)")
	runsShowCmd.Flags().Bool("json", false, "print the run as JSON")

	runsStatsCmd.Flags().Duration("since", 0, "only count runs created within this window (e.g. 24h); 0 counts all")

	runsCmd.AddCommand(runsListCmd)
	runsCmd.AddCommand(runsShowCmd)
	runsCmd.AddCommand(runsStatsCmd)
	rootCmd.AddCommand(runsCmd)
}

// runStats holds aggregate statistics computed from a set of runs.
type runStats struct {
	Total       int
	Complete    int
	Failed      int
	Running     int
	Mountain    int
	MountainTop int
	AvgDurSecs  float64
}

// computeRunStats aggregates runs created after now-since. A zero since
// counts every run.
func computeRunStats(runs []store.Run, since time.Duration, now time.Time) runStats {
	var s runStats

	var totalDur time.Duration
	var durCount int

	for _, r := range runs {
		if since > 0 && r.CreatedAt.Before(now.Add(-since)) {
			continue
		}
		s.Total++
		switch r.Status {
		case store.RunStatusComplete:
			s.Complete++
			totalDur += r.UpdatedAt.Sub(r.CreatedAt)
			durCount++
			if r.Stats != nil {
				s.Mountain += r.Stats.Mountain
				s.MountainTop += r.Stats.MountainTop
			}
		case store.RunStatusFailed:
			s.Failed++
		default:
			s.Running++
		}
	}

	if durCount > 0 {
		s.AvgDurSecs = totalDur.Seconds() / float64(durCount)
	}
	return s
}

// formatRunsList writes a tabular list of runs to w.
func formatRunsList(out io.Writer, runs []store.Run) {
	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	_, _ = fmt.Fprintln(w, "ID\tREGION\tSTATUS\tMOUNTAIN\tMOUNTAIN_TOP\tCREATED\tDURATION")
	_, _ = fmt.Fprintln(w, "--\t------\t------\t--------\t------------\t-------\t--------")

	for _, r := range runs {
		dur := r.UpdatedAt.Sub(r.CreatedAt).Round(time.Second).String()

		mtn, top := "-", "-"
		if r.Stats != nil {
			mtn = fmt.Sprint(r.Stats.Mountain)
			top = fmt.Sprint(r.Stats.MountainTop)
		}

		region := r.Params.Region
		if len(region) > 30 {
			region = region[:27] + "..."
		}

		_, _ = fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\t%s\t%s\n",
			truncateID(r.ID),
			region,
			r.Status,
			mtn,
			top,
			r.CreatedAt.Format("2006-01-02 15:04"),
			dur,
		)
	}
	_ = w.Flush()
}

// formatRunDetail writes a run header and its results to w.
func formatRunDetail(out io.Writer, run *store.Run, results []store.Result) {
	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	_, _ = fmt.Fprintf(w, "Run:\t%s\n", run.ID)
	_, _ = fmt.Fprintf(w, "Status:\t%s\n", run.Status)
	_, _ = fmt.Fprintf(w, "Catalog:\t%s\n", run.Params.Catalog)
	_, _ = fmt.Fprintf(w, "Region:\t%s\n", run.Params.Region)
	_, _ = fmt.Fprintf(w, "Sampling:\t%g km radius, %g km step\n", run.Params.RadiusKM, run.Params.StepKM)
	if run.Error != "" {
		_, _ = fmt.Fprintf(w, "Error:\t%s\n", run.Error)
	}
	if run.Stats != nil {
		_, _ = fmt.Fprintf(w, "Screened:\t%d of %d\n", run.Stats.Screened, run.Stats.Total)
		_, _ = fmt.Fprintf(w, "Failed:\t%d\n", run.Stats.Failed)
	}
	_ = w.Flush()

	if len(results) == 0 {
		return
	}

	_, _ = fmt.Fprintln(out)
	w = tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	_, _ = fmt.Fprintln(w, "CATEGORY\tIDENT\tNAME\tFIELD_FT\tDELTA_FT")
	for _, r := range results {
		_, _ = fmt.Fprintf(w, "%s\t%s\t%s\t%.0f\t%.1f\n", r.Category, r.Ident, r.Name, r.FieldElevFt, r.DeltaFt)
	}
	_ = w.Flush()
}

// formatRunStats writes aggregate stats to w.
func formatRunStats(out io.Writer, s runStats) {
	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	_, _ = fmt.Fprintf(w, "Total runs:\t%d\n", s.Total)
	_, _ = fmt.Fprintf(w, "Complete:\t%d\n", s.Complete)
	_, _ = fmt.Fprintf(w, "Failed:\t%d\n", s.Failed)
	_, _ = fmt.Fprintf(w, "Running:\t%d\n", s.Running)
	_, _ = fmt.Fprintf(w, "Mountain airports:\t%d\n", s.Mountain)
	_, _ = fmt.Fprintf(w, "Mountain-top airports:\t%d\n", s.MountainTop)
	if s.AvgDurSecs > 0 {
		_, _ = fmt.Fprintf(w, "Avg duration:\t%.1fs\n", s.AvgDurSecs)
	}
	_ = w.Flush()
}

// truncateID returns the first 8 characters of a UUID for compact display.
func truncateID(id string) string {
	if len(id) > 8 {
		return id[:8]
	}
	return id
}
