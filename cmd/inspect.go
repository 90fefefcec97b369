package main

import (
	"os"

	"github.com/spf13/cobra"

	"github.com/sells-group/terrain-cli/internal/pipeline"
	"github.com/sells-group/terrain-cli/internal/report"
)

var inspectCmd = &cobra.Command{
	Use:   "inspect <ident>",
	Short: "Show the terrain profile of one airport",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		applySamplingFlags(cmd, cfg)
		if err := cfg.Validate("inspect"); err != nil {
			return err
		}

		env, err := initAnalysis(ctx, cfg)
		if err != nil {
			return err
		}
		defer env.Close()

		insp, err := pipeline.Inspect(ctx, env.Input, args[0])
		if err != nil {
			return err
		}

		if asJSON, _ := cmd.Flags().GetBool("json"); asJSON {
			return report.WriteJSON(os.Stdout, insp)
		}
		return report.FormatInspection(os.Stdout, insp)
	},
}

func init() {
	addSamplingFlags(inspectCmd)
	inspectCmd.Flags().Bool("json", false, "print the inspection as JSON")
	rootCmd.AddCommand(inspectCmd)
}
