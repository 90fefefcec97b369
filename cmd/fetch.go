package main

import (
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	"github.com/paulmach/orb"
	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"

	"github.com/sells-group/terrain-cli/internal/config"
	"github.com/sells-group/terrain-cli/internal/fetcher"
	"github.com/sells-group/terrain-cli/internal/region"
)

var fetchCmd = &cobra.Command{
	Use:   "fetch",
	Short: "Download the airport catalog or SRTM tiles",
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		if err := rootCmd.PersistentPreRunE(cmd, args); err != nil {
			return err
		}
		return cfg.Validate("fetch")
	},
}

// -- fetch catalog --

var fetchCatalogCmd = &cobra.Command{
	Use:   "catalog",
	Short: "Download the OurAirports catalog if it changed",
	RunE: func(cmd *cobra.Command, _ []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		url := cfg.Fetch.CatalogURL
		if v, _ := cmd.Flags().GetString("url"); v != "" {
			url = v
		}
		out := cfg.Catalog.Path
		if v, _ := cmd.Flags().GetString("out"); v != "" {
			out = v
		}

		changed, err := fetcher.FetchCatalog(ctx, newFetcher(cfg), url, out)
		if err != nil {
			return err
		}
		if changed {
			fmt.Printf("Catalog written to %s\n", out)
		} else {
			fmt.Printf("Catalog %s is up to date\n", out)
		}
		return nil
	},
}

// -- fetch tiles --

var fetchTilesCmd = &cobra.Command{
	Use:   "tiles",
	Short: "Download the SRTM tiles covering the region",
	Long:  "Downloads every .hgt tile under the region's bounding box, grown by the search radius, into the HGT directory.",
	RunE: func(cmd *cobra.Command, _ []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		if v, _ := cmd.Flags().GetString("region"); v != "" {
			cfg.Region.Path = v
		}
		if v, _ := cmd.Flags().GetString("dir"); v != "" {
			cfg.DEM.HGTDir = v
		}
		applySamplingFlags(cmd, cfg)

		names, err := tilesForConfig(cfg)
		if err != nil {
			return err
		}

		if dry, _ := cmd.Flags().GetBool("dry-run"); dry {
			for _, name := range names {
				fmt.Println(fetcher.TileURL(cfg.Fetch.TileURL, name))
			}
			return nil
		}

		report, err := fetcher.FetchTiles(ctx, newFetcher(cfg), fetcher.TileOptions{
			URLTemplate: cfg.Fetch.TileURL,
			Dir:         cfg.DEM.HGTDir,
			Concurrency: cfg.Fetch.Concurrency,
		}, names)
		if err != nil {
			return err
		}

		formatTileReport(os.Stdout, cfg.DEM.HGTDir, report)
		return nil
	},
}

func init() {
	fetchCatalogCmd.Flags().String("url", "", "catalog URL (default from config)")
	fetchCatalogCmd.Flags().String("out", "", "destination path (default catalog.path)")

	fetchTilesCmd.Flags().String("region", "", "region preset or polygon file (default from config)")
	fetchTilesCmd.Flags().String("dir", "", "tile directory (default dem.hgt_dir)")
	fetchTilesCmd.Flags().Float64("radius", 0, "padding around the region in km (default sampling.radius_km)")
	fetchTilesCmd.Flags().Bool("dry-run", false, "print tile URLs without downloading")

	fetchCmd.AddCommand(fetchCatalogCmd)
	fetchCmd.AddCommand(fetchTilesCmd)
	rootCmd.AddCommand(fetchCmd)
}

// newFetcher builds an HTTP fetcher from the fetch and retry settings.
func newFetcher(c *config.Config) *fetcher.HTTPFetcher {
	return fetcher.NewHTTPFetcher(fetcher.HTTPOptions{
		Timeout: c.Fetch.Timeout(),
		RPS:     c.Fetch.RPS,
		Retry:   c.Retry.Policy(),
	})
}

// tilesForConfig lists the tiles under the configured region padded by the
// sampling radius, so every grid point of an in-region airport is covered.
func tilesForConfig(c *config.Config) ([]string, error) {
	reg, err := region.Load(c.Region.Path)
	if err != nil {
		return nil, eris.Wrap(err, "load region")
	}
	bounded, ok := reg.(interface{ Bound() orb.Bound })
	if !ok {
		return nil, eris.Errorf("region %q has no bounds; name a preset or polygon file", c.Region.Path)
	}
	return fetcher.TilesFor(bounded.Bound(), c.Sampling.RadiusKM)
}

func formatTileReport(w io.Writer, dir string, r *fetcher.TileReport) {
	fmt.Fprintf(w, "Tiles in %s: %d downloaded, %d already present, %d unavailable\n",
		dir, len(r.Downloaded), len(r.Skipped), len(r.Missing))
	for _, name := range r.Missing {
		fmt.Fprintf(w, "  unavailable: %s\n", name)
	}
}
