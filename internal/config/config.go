// Package config loads server and analysis settings from an optional file
// and TIDES_* environment variables.
package config

import (
	"fmt"
	"strings"

	"github.com/spf13/viper"

	"go.ngs.io/tides-analysis/internal/domain"
	"go.ngs.io/tides-analysis/internal/filter"
	"go.ngs.io/tides-analysis/internal/gapfill"
)

// Config is the complete application configuration.
type Config struct {
	Server   ServerConfig   `mapstructure:"server"`
	Analysis AnalysisConfig `mapstructure:"analysis"`
	Filter   FilterConfig   `mapstructure:"filter"`
	Storage  StorageConfig  `mapstructure:"storage"`
	Logging  LoggingConfig  `mapstructure:"logging"`
}

// ServerConfig holds HTTP settings.
type ServerConfig struct {
	Port               string   `mapstructure:"port"`
	CORSAllowedOrigins []string `mapstructure:"cors_allowed_origins"`
	MaxSamples         int      `mapstructure:"max_samples"`
}

// AnalysisConfig holds defaults applied when a request leaves them unset.
type AnalysisConfig struct {
	Rayleigh      float64 `mapstructure:"rayleigh"`
	Trend         bool    `mapstructure:"trend"`
	MissingData   string  `mapstructure:"missing_data"`
	Iavg          int     `mapstructure:"iavg"`
	RemoveExtreme bool    `mapstructure:"remove_extreme"`
	Detrend       bool    `mapstructure:"detrend"`
	Infer         bool    `mapstructure:"infer"`
	MaxIterations int     `mapstructure:"max_iterations"`
	Tolerance     float64 `mapstructure:"tolerance"`
}

// FilterConfig holds filter defaults.
type FilterConfig struct {
	Padding         string  `mapstructure:"padding"`
	PassPeriodHours float64 `mapstructure:"pass_period_hours"`
	StopPeriodHours float64 `mapstructure:"stop_period_hours"`
	ProcessVariance float64 `mapstructure:"process_variance"`
}

// StorageConfig holds the analysis archive location. An empty path disables
// archiving.
type StorageConfig struct {
	SQLitePath string `mapstructure:"sqlite_path"`
	DataDir    string `mapstructure:"data_dir"`
}

// LoggingConfig holds logging settings.
type LoggingConfig struct {
	Debug bool `mapstructure:"debug"`
}

// Load reads configuration from path, when given, and the environment.
func Load(path string) (*Config, error) {
	v := viper.New()
	setDefaults(v)

	v.SetEnvPrefix("TIDES")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// Unprefixed names used by existing deployments.
	_ = v.BindEnv("server.port", "TIDES_SERVER_PORT", "PORT")
	_ = v.BindEnv("server.cors_allowed_origins", "TIDES_SERVER_CORS_ALLOWED_ORIGINS", "CORS_ALLOWED_ORIGINS")
	_ = v.BindEnv("storage.data_dir", "TIDES_STORAGE_DATA_DIR", "DATA_DIR")

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}
	cfg.Server.CORSAllowedOrigins = splitOrigins(cfg.Server.CORSAllowedOrigins)
	return &cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("server.port", "8080")
	v.SetDefault("server.cors_allowed_origins", []string{})
	v.SetDefault("server.max_samples", 500000)

	v.SetDefault("analysis.rayleigh", domain.DefaultRayleighFactor)
	v.SetDefault("analysis.trend", false)
	v.SetDefault("analysis.missing_data", string(gapfill.PolicyFail))
	v.SetDefault("analysis.iavg", gapfill.DefaultIavg)
	v.SetDefault("analysis.remove_extreme", false)
	v.SetDefault("analysis.detrend", false)
	v.SetDefault("analysis.infer", true)
	v.SetDefault("analysis.max_iterations", 0)
	v.SetDefault("analysis.tolerance", 0.0)

	v.SetDefault("filter.padding", string(filter.PadReflect))
	v.SetDefault("filter.pass_period_hours", 40.0)
	v.SetDefault("filter.stop_period_hours", 30.0)
	v.SetDefault("filter.process_variance", 0.0)

	v.SetDefault("storage.sqlite_path", "")
	v.SetDefault("storage.data_dir", "./data")

	v.SetDefault("logging.debug", false)
}

// splitOrigins accepts either a list or a single comma-separated value, the
// form environment variables arrive in.
func splitOrigins(in []string) []string {
	var out []string
	for _, item := range in {
		for _, o := range strings.Split(item, ",") {
			if o = strings.TrimSpace(o); o != "" {
				out = append(out, o)
			}
		}
	}
	return out
}

// Validate checks that all configuration values are usable.
func (c *Config) Validate() error {
	if c.Server.Port == "" {
		return fmt.Errorf("server.port is required")
	}
	if c.Server.MaxSamples < 1 {
		return fmt.Errorf("server.max_samples must be at least 1")
	}
	if c.Analysis.Rayleigh <= 0 {
		return fmt.Errorf("analysis.rayleigh must be positive")
	}
	if _, err := gapfill.ParsePolicy(c.Analysis.MissingData); err != nil {
		return fmt.Errorf("analysis.missing_data: %w", err)
	}
	if c.Analysis.Iavg < 1 {
		return fmt.Errorf("analysis.iavg must be at least 1")
	}
	if c.Analysis.MaxIterations < 0 {
		return fmt.Errorf("analysis.max_iterations must not be negative")
	}
	if c.Analysis.Tolerance < 0 {
		return fmt.Errorf("analysis.tolerance must not be negative")
	}
	if _, err := filter.ParsePadding(c.Filter.Padding); err != nil {
		return fmt.Errorf("filter.padding: %w", err)
	}
	if c.Filter.StopPeriodHours <= 0 || c.Filter.PassPeriodHours <= c.Filter.StopPeriodHours {
		return fmt.Errorf("filter.pass_period_hours must exceed filter.stop_period_hours > 0")
	}
	if c.Filter.ProcessVariance < 0 {
		return fmt.Errorf("filter.process_variance must not be negative")
	}
	return nil
}
