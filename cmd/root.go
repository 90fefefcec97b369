package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/sells-group/terrain-cli/internal/config"
)

var cfg *config.Config

var rootCmd = &cobra.Command{
	Use:   "terrain-cli",
	Short: "Screen airports for mountainous terrain",
	Long:  "Samples a digital elevation model around each airport in a catalog and flags mountain and mountain-top airports.",
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		c, err := config.Load()
		if err != nil {
			return fmt.Errorf("load config: %w", err)
		}
		applyLogFlags(cmd, c)
		cfg = c

		if err := config.InitLogger(cfg.Log); err != nil {
			return fmt.Errorf("init logger: %w", err)
		}

		return nil
	},
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		_ = zap.L().Sync()
	},
	SilenceUsage: true,
}

func init() {
	rootCmd.PersistentFlags().String("log-level", "", "override log.level (debug, info, warn, error)")
	rootCmd.PersistentFlags().Bool("console", false, "human-readable console logs instead of JSON")
}

// applyLogFlags lets the persistent flags override the logging config.
func applyLogFlags(cmd *cobra.Command, c *config.Config) {
	if v, _ := cmd.Flags().GetString("log-level"); v != "" {
		c.Log.Level = v
	}
	if v, _ := cmd.Flags().GetBool("console"); v {
		c.Log.Format = "console"
	}
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}
