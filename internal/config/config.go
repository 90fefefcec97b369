package config

import (
	"errors"
	"fmt"
	"io/fs"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/rotisserie/eris"
	"github.com/spf13/viper"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/sells-group/terrain-cli/internal/resilience"
	"github.com/sells-group/terrain-cli/internal/terrain"
)

// Config holds the full application configuration.
type Config struct {
	Catalog  CatalogConfig  `yaml:"catalog" mapstructure:"catalog"`
	Region   RegionConfig   `yaml:"region" mapstructure:"region"`
	DEM      DEMConfig      `yaml:"dem" mapstructure:"dem"`
	Sampling SamplingConfig `yaml:"sampling" mapstructure:"sampling"`
	Classify ClassifyConfig `yaml:"classify" mapstructure:"classify"`
	Store    StoreConfig    `yaml:"store" mapstructure:"store"`
	Server   ServerConfig   `yaml:"server" mapstructure:"server"`
	Log      LogConfig      `yaml:"log" mapstructure:"log"`
	Retry    RetryConfig    `yaml:"retry" mapstructure:"retry"`
	Circuit  CircuitConfig  `yaml:"circuit" mapstructure:"circuit"`
	Fetch    FetchConfig    `yaml:"fetch" mapstructure:"fetch"`
}

// CatalogConfig locates the airport catalog.
type CatalogConfig struct {
	Path     string `yaml:"path" mapstructure:"path"`
	Encoding string `yaml:"encoding" mapstructure:"encoding"`
}

// RegionConfig names the region filter: a preset, "all", or a polygon file.
type RegionConfig struct {
	Path string `yaml:"path" mapstructure:"path"`
}

// DEMConfig selects and configures the elevation source.
type DEMConfig struct {
	Driver      string        `yaml:"driver" mapstructure:"driver"`
	HGTDir      string        `yaml:"hgt_dir" mapstructure:"hgt_dir"`
	CacheTiles  int           `yaml:"cache_tiles" mapstructure:"cache_tiles"`
	DatabaseURL string        `yaml:"database_url" mapstructure:"database_url"`
	Table       string        `yaml:"table" mapstructure:"table"`
	HTTP        HTTPDEMConfig `yaml:"http" mapstructure:"http"`
}

// HTTPDEMConfig configures an OpenTopoData-compatible elevation API.
type HTTPDEMConfig struct {
	BaseURL      string  `yaml:"base_url" mapstructure:"base_url"`
	Dataset      string  `yaml:"dataset" mapstructure:"dataset"`
	RPS          float64 `yaml:"rps" mapstructure:"rps"`
	MaxLocations int     `yaml:"max_locations" mapstructure:"max_locations"`
	TimeoutSecs  int     `yaml:"timeout_secs" mapstructure:"timeout_secs"`
}

// SamplingConfig sets the search grid around each airport.
type SamplingConfig struct {
	RadiusKM float64 `yaml:"radius_km" mapstructure:"radius_km"`
	StepKM   float64 `yaml:"step_km" mapstructure:"step_km"`
}

// Spec converts the config to a terrain.SamplingSpec.
func (s SamplingConfig) Spec() terrain.SamplingSpec {
	return terrain.SamplingSpec{RadiusKM: s.RadiusKM, StepKM: s.StepKM}
}

// ClassifyConfig configures thresholds and the batch run.
type ClassifyConfig struct {
	MountainThresholdFt    float64  `yaml:"mountain_threshold_ft" mapstructure:"mountain_threshold_ft"`
	MountainTopThresholdFt float64  `yaml:"mountain_top_threshold_ft" mapstructure:"mountain_top_threshold_ft"`
	ExcludedTypes          []string `yaml:"excluded_types" mapstructure:"excluded_types"`
	NodataPolicy           string   `yaml:"nodata_policy" mapstructure:"nodata_policy"`
	Concurrency            int      `yaml:"concurrency" mapstructure:"concurrency"`
	RecordTimeoutSecs      int      `yaml:"record_timeout_secs" mapstructure:"record_timeout_secs"`
}

// Thresholds converts the config to terrain.Thresholds.
func (c ClassifyConfig) Thresholds() terrain.Thresholds {
	return terrain.Thresholds{MountainFt: c.MountainThresholdFt, MountainTopFt: c.MountainTopThresholdFt}
}

// RecordTimeout returns the per-airport elevation timeout. Zero disables it.
func (c ClassifyConfig) RecordTimeout() time.Duration {
	return time.Duration(c.RecordTimeoutSecs) * time.Second
}

// StoreConfig configures the database backend.
type StoreConfig struct {
	Driver      string `yaml:"driver" mapstructure:"driver"`
	DatabaseURL string `yaml:"database_url" mapstructure:"database_url"`
}

// ServerConfig configures the HTTP server.
type ServerConfig struct {
	Port int `yaml:"port" mapstructure:"port"`
}

// LogConfig configures logging.
type LogConfig struct {
	Level  string `yaml:"level" mapstructure:"level"`
	Format string `yaml:"format" mapstructure:"format"`
}

// RetryConfig configures retries against remote elevation sources.
type RetryConfig struct {
	MaxAttempts      int `yaml:"max_attempts" mapstructure:"max_attempts"`
	InitialBackoffMs int `yaml:"initial_backoff_ms" mapstructure:"initial_backoff_ms"`
	MaxBackoffMs     int `yaml:"max_backoff_ms" mapstructure:"max_backoff_ms"`
}

// Policy converts the settings to a retry policy. Zero values keep the
// resilience defaults.
func (r RetryConfig) Policy() resilience.RetryConfig {
	p := resilience.DefaultRetryConfig()
	if r.MaxAttempts > 0 {
		p.MaxAttempts = r.MaxAttempts
	}
	if r.InitialBackoffMs > 0 {
		p.InitialBackoff = time.Duration(r.InitialBackoffMs) * time.Millisecond
	}
	if r.MaxBackoffMs > 0 {
		p.MaxBackoff = time.Duration(r.MaxBackoffMs) * time.Millisecond
	}
	return p
}

// CircuitConfig configures the breaker in front of remote elevation sources.
type CircuitConfig struct {
	FailureThreshold int `yaml:"failure_threshold" mapstructure:"failure_threshold"`
	ResetTimeoutSecs int `yaml:"reset_timeout_secs" mapstructure:"reset_timeout_secs"`
}

// Breaker converts the settings to a circuit breaker config.
func (c CircuitConfig) Breaker() resilience.CircuitBreakerConfig {
	b := resilience.DefaultCircuitBreakerConfig()
	if c.FailureThreshold > 0 {
		b.FailureThreshold = c.FailureThreshold
	}
	if c.ResetTimeoutSecs > 0 {
		b.ResetTimeout = time.Duration(c.ResetTimeoutSecs) * time.Second
	}
	return b
}

// FetchConfig configures downloads of the catalog and SRTM tiles.
type FetchConfig struct {
	CatalogURL  string  `yaml:"catalog_url" mapstructure:"catalog_url"`
	TileURL     string  `yaml:"tile_url" mapstructure:"tile_url"`
	RPS         float64 `yaml:"rps" mapstructure:"rps"`
	TimeoutSecs int     `yaml:"timeout_secs" mapstructure:"timeout_secs"`
	Concurrency int     `yaml:"concurrency" mapstructure:"concurrency"`
}

// Timeout returns the per-request download timeout.
func (f FetchConfig) Timeout() time.Duration {
	return time.Duration(f.TimeoutSecs) * time.Second
}

// Load reads .env, then configuration from file and environment.
func Load() (*Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, eris.Wrap(err, "config: load .env")
	}

	v := viper.New()

	// Config file
	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")

	// Environment
	v.SetEnvPrefix("TERRAIN")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// Defaults
	v.SetDefault("catalog.path", "airports.csv")
	v.SetDefault("region.path", "appalachia")
	v.SetDefault("dem.driver", "hgt")
	v.SetDefault("dem.hgt_dir", "dem")
	v.SetDefault("dem.cache_tiles", 16)
	v.SetDefault("dem.table", "dem")
	v.SetDefault("dem.http.base_url", "https://api.opentopodata.org")
	v.SetDefault("dem.http.dataset", "srtm30m")
	v.SetDefault("dem.http.rps", 1.0)
	v.SetDefault("dem.http.max_locations", 100)
	v.SetDefault("dem.http.timeout_secs", 30)
	v.SetDefault("sampling.radius_km", terrain.DefaultRadiusKM)
	v.SetDefault("sampling.step_km", terrain.DefaultStepKM)
	v.SetDefault("classify.mountain_threshold_ft", terrain.DefaultMountainThresholdFt)
	v.SetDefault("classify.mountain_top_threshold_ft", terrain.DefaultMountainTopThresholdFt)
	v.SetDefault("classify.excluded_types", []string{"heliport", "seaplane_base", "closed"})
	v.SetDefault("classify.nodata_policy", string(terrain.NodataSkip))
	v.SetDefault("classify.concurrency", 8)
	v.SetDefault("classify.record_timeout_secs", 30)
	v.SetDefault("store.driver", "sqlite")
	v.SetDefault("store.database_url", "terrain.db")
	v.SetDefault("server.port", 8080)
	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "json")
	v.SetDefault("retry.max_attempts", 3)
	v.SetDefault("retry.initial_backoff_ms", 250)
	v.SetDefault("retry.max_backoff_ms", 10000)
	v.SetDefault("circuit.failure_threshold", 5)
	v.SetDefault("circuit.reset_timeout_secs", 30)
	v.SetDefault("fetch.catalog_url", "https://davidmegginson.github.io/ourairports-data/airports.csv")
	v.SetDefault("fetch.tile_url", "https://s3.amazonaws.com/elevation-tiles-prod/skadi/{band}/{tile}.hgt.gz")
	v.SetDefault("fetch.rps", 4.0)
	v.SetDefault("fetch.timeout_secs", 120)
	v.SetDefault("fetch.concurrency", 4)

	// Read config file (optional)
	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, eris.Wrap(err, "config: read file")
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, eris.Wrap(err, "config: unmarshal")
	}

	return &cfg, nil
}

// Validate checks the settings a command mode depends on. Modes are
// "classify", "inspect", "serve", "runs" and "fetch".
func (c *Config) Validate(mode string) error {
	var errs []string

	switch mode {
	case "classify", "inspect", "serve":
		errs = append(errs, c.validateAnalysis()...)
		if c.Catalog.Path == "" {
			errs = append(errs, "catalog.path is required")
		}
	case "runs", "fetch":
	default:
		return eris.Errorf("config: unknown mode %q", mode)
	}

	switch mode {
	case "classify":
		if c.Classify.Concurrency < 1 || c.Classify.Concurrency > 256 {
			errs = append(errs, "classify.concurrency must be between 1 and 256")
		}
		if c.Classify.RecordTimeoutSecs < 0 {
			errs = append(errs, "classify.record_timeout_secs must be >= 0")
		}
		errs = append(errs, c.validateStore()...)
	case "serve":
		if c.Server.Port <= 0 {
			errs = append(errs, "server.port must be > 0")
		}
		errs = append(errs, c.validateStore()...)
	case "runs":
		errs = append(errs, c.validateStore()...)
	case "fetch":
		errs = append(errs, c.validateFetch()...)
	}

	if len(errs) > 0 {
		return eris.Errorf("config: %s", strings.Join(errs, "; "))
	}
	return nil
}

func (c *Config) validateAnalysis() []string {
	var errs []string
	if c.Sampling.RadiusKM <= 0 || c.Sampling.StepKM <= 0 {
		errs = append(errs, "sampling.radius_km and sampling.step_km must be > 0")
	}
	if c.Classify.MountainThresholdFt < 0 || c.Classify.MountainTopThresholdFt < 0 {
		errs = append(errs, "classify thresholds must be >= 0")
	}
	if _, err := terrain.ParseNodataPolicy(c.Classify.NodataPolicy); err != nil {
		errs = append(errs, "classify.nodata_policy must be skip, fail or include")
	}
	switch c.DEM.Driver {
	case "hgt":
		if c.DEM.HGTDir == "" {
			errs = append(errs, "dem.hgt_dir is required")
		}
	case "postgis":
		if c.DEM.DatabaseURL == "" {
			errs = append(errs, "dem.database_url is required")
		}
	case "http":
		if c.DEM.HTTP.BaseURL == "" {
			errs = append(errs, "dem.http.base_url is required")
		}
	default:
		errs = append(errs, fmt.Sprintf("unknown dem.driver %q", c.DEM.Driver))
	}
	return errs
}

func (c *Config) validateFetch() []string {
	var errs []string
	if c.Fetch.CatalogURL == "" || c.Fetch.TileURL == "" {
		errs = append(errs, "fetch.catalog_url and fetch.tile_url are required")
	} else if !strings.Contains(c.Fetch.TileURL, "{tile}") {
		errs = append(errs, "fetch.tile_url must contain {tile}")
	}
	if c.Fetch.RPS <= 0 {
		errs = append(errs, "fetch.rps must be > 0")
	}
	if c.Fetch.Concurrency < 1 || c.Fetch.Concurrency > 64 {
		errs = append(errs, "fetch.concurrency must be between 1 and 64")
	}
	if c.Fetch.TimeoutSecs <= 0 {
		errs = append(errs, "fetch.timeout_secs must be > 0")
	}
	return errs
}

func (c *Config) validateStore() []string {
	switch c.Store.Driver {
	case "sqlite", "postgres":
	default:
		return []string{fmt.Sprintf("unknown store.driver %q", c.Store.Driver)}
	}
	if c.Store.DatabaseURL == "" {
		return []string{"store.database_url is required"}
	}
	return nil
}

// InitLogger initializes the global zap logger.
func InitLogger(cfg LogConfig) error {
	var zapCfg zap.Config
	if cfg.Format == "console" {
		zapCfg = zap.NewDevelopmentConfig()
	} else {
		zapCfg = zap.NewProductionConfig()
	}

	level, err := zapcore.ParseLevel(cfg.Level)
	if err != nil {
		return eris.Wrap(err, "config: parse log level")
	}
	zapCfg.Level.SetLevel(level)

	logger, err := zapCfg.Build()
	if err != nil {
		return eris.Wrap(err, "config: build logger")
	}
	zap.ReplaceGlobals(logger)

	return nil
}
