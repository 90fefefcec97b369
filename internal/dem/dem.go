// Package dem provides the elevation sources behind terrain sampling: SRTM
// .hgt tile directories, PostGIS rasters and OpenTopoData-compatible HTTP
// APIs.
package dem

import (
	"context"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/terrain-cli/internal/config"
	"github.com/sells-group/terrain-cli/internal/terrain"
)

// NoDataValue is the sentinel, in meters, every source reports for cells
// without a measurement. It matches the SRTM void value.
const NoDataValue = -32768.0

// Source is an elevation source that holds resources until closed.
type Source interface {
	terrain.Source
	Name() string
	Close() error
}

// Open builds the source selected by cfg.DEM.Driver. Remote sources are
// wrapped in a circuit breaker. Any failure is a
// *terrain.SourceUnavailableError.
func Open(ctx context.Context, cfg *config.Config) (Source, error) {
	log := zap.L().With(zap.String("driver", cfg.DEM.Driver))

	switch cfg.DEM.Driver {
	case "hgt":
		src, err := NewHGT(cfg.DEM.HGTDir, cfg.DEM.CacheTiles)
		if err != nil {
			return nil, err
		}
		log.Info("dem: opened hgt tile directory", zap.String("dir", cfg.DEM.HGTDir))
		return src, nil

	case "postgis":
		src, err := NewPostGIS(ctx, cfg.DEM.DatabaseURL, cfg.DEM.Table)
		if err != nil {
			return nil, err
		}
		log.Info("dem: connected to postgis raster", zap.String("table", cfg.DEM.Table))
		return NewGuard(src, cfg.Circuit.Breaker()), nil

	case "http":
		src, err := NewHTTP(HTTPConfig{
			BaseURL:      cfg.DEM.HTTP.BaseURL,
			Dataset:      cfg.DEM.HTTP.Dataset,
			RPS:          cfg.DEM.HTTP.RPS,
			MaxLocations: cfg.DEM.HTTP.MaxLocations,
			Timeout:      time.Duration(cfg.DEM.HTTP.TimeoutSecs) * time.Second,
			Retry:        cfg.Retry.Policy(),
		})
		if err != nil {
			return nil, err
		}
		log.Info("dem: using elevation api",
			zap.String("base_url", cfg.DEM.HTTP.BaseURL),
			zap.String("dataset", cfg.DEM.HTTP.Dataset),
		)
		return NewGuard(src, cfg.Circuit.Breaker()), nil

	default:
		return nil, terrain.NewSourceUnavailableError(cfg.DEM.Driver, eris.Errorf("dem: unknown driver %q", cfg.DEM.Driver))
	}
}
