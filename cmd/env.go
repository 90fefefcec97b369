package main

import (
	"context"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/sells-group/terrain-cli/internal/airport"
	"github.com/sells-group/terrain-cli/internal/config"
	"github.com/sells-group/terrain-cli/internal/dem"
	"github.com/sells-group/terrain-cli/internal/pipeline"
	"github.com/sells-group/terrain-cli/internal/region"
	"github.com/sells-group/terrain-cli/internal/store"
	"github.com/sells-group/terrain-cli/internal/terrain"
)

// analysisEnv holds the loaded catalog, region and elevation source.
type analysisEnv struct {
	Input  pipeline.Input
	Source dem.Source
}

// Close releases the elevation source.
func (e *analysisEnv) Close() {
	if e.Source != nil {
		if err := e.Source.Close(); err != nil {
			zap.L().Warn("close elevation source", zap.Error(err))
		}
	}
}

// initAnalysis loads everything a classify or inspect run needs from c.
func initAnalysis(ctx context.Context, c *config.Config) (*analysisEnv, error) {
	nodata, err := terrain.ParseNodataPolicy(c.Classify.NodataPolicy)
	if err != nil {
		return nil, err
	}

	cat, err := airport.Load(c.Catalog.Path, airport.LoadOptions{Encoding: c.Catalog.Encoding})
	if err != nil {
		return nil, err
	}

	reg, err := region.Load(c.Region.Path)
	if err != nil {
		return nil, eris.Wrap(err, "load region")
	}

	src, err := dem.Open(ctx, c)
	if err != nil {
		return nil, err
	}

	zap.L().Info("analysis ready",
		zap.String("catalog", c.Catalog.Path),
		zap.Int("airports", cat.Len()),
		zap.String("region", c.Region.Path),
		zap.String("dem", src.Name()),
	)

	return &analysisEnv{
		Source: src,
		Input: pipeline.Input{
			Catalog:       cat,
			Region:        reg,
			Source:        src,
			Spec:          c.Sampling.Spec(),
			Thresholds:    c.Classify.Thresholds(),
			ExcludedTypes: c.Classify.ExcludedTypes,
			Nodata:        nodata,
			Concurrency:   c.Classify.Concurrency,
			RecordTimeout: c.Classify.RecordTimeout(),
		},
	}, nil
}

// initStore opens the configured run store.
func initStore(ctx context.Context, c *config.Config) (store.Store, error) {
	switch c.Store.Driver {
	case "sqlite":
		return store.NewSQLite(c.Store.DatabaseURL)
	case "postgres":
		return store.NewPostgres(ctx, c.Store.DatabaseURL)
	default:
		return nil, eris.Errorf("unsupported store driver: %s", c.Store.Driver)
	}
}

// openStore opens and migrates the run store.
func openStore(ctx context.Context, c *config.Config) (store.Store, error) {
	st, err := initStore(ctx, c)
	if err != nil {
		return nil, err
	}
	if err := st.Migrate(ctx); err != nil {
		st.Close() //nolint:errcheck
		return nil, err
	}
	return st, nil
}

// addSamplingFlags registers the --radius and --step overrides.
func addSamplingFlags(cmd *cobra.Command) {
	cmd.Flags().Float64("radius", 0, "search radius in km (default from config)")
	cmd.Flags().Float64("step", 0, "grid step in km (default from config)")
}

func applySamplingFlags(cmd *cobra.Command, c *config.Config) {
	if v, _ := cmd.Flags().GetFloat64("radius"); cmd.Flags().Changed("radius") {
		c.Sampling.RadiusKM = v
	}
	if v, _ := cmd.Flags().GetFloat64("step"); cmd.Flags().Changed("step") {
		c.Sampling.StepKM = v
	}
}
