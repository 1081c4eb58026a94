package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/newthinker/rotator/internal/core"
	"github.com/spf13/viper"
)

type Config struct {
	Strategy StrategyConfig `mapstructure:"strategy"`
	Data     DataConfig     `mapstructure:"data"`
	Archive  ArchiveConfig  `mapstructure:"archive"`
	Server   ServerConfig   `mapstructure:"server"`
	Metrics  MetricsConfig  `mapstructure:"metrics"`
	Sweep    SweepConfig    `mapstructure:"sweep"`
}

type ServerConfig struct {
	Host        string `mapstructure:"host"`
	Port        int    `mapstructure:"port"`
	APIKey      string `mapstructure:"api_key"`
	JobTTLHours int    `mapstructure:"job_ttl_hours"`
	MaxJobs     int    `mapstructure:"max_jobs"`
}

// DataConfig selects the price provider used to prefetch history.
type DataConfig struct {
	Provider string       `mapstructure:"provider"` // "yahoo", "alpaca" or "csv"
	CSVDir   string       `mapstructure:"csv_dir"`
	Interval string       `mapstructure:"interval"`
	Alpaca   AlpacaConfig `mapstructure:"alpaca"`
	Cache    CacheConfig  `mapstructure:"cache"`
}

type AlpacaConfig struct {
	APIKey    string `mapstructure:"api_key"`
	APISecret string `mapstructure:"api_secret"`
	BaseURL   string `mapstructure:"base_url"`
}

// CacheConfig enables the redis price cache when Addr is set.
type CacheConfig struct {
	Addr     string        `mapstructure:"addr"`
	Password string        `mapstructure:"password"`
	DB       int           `mapstructure:"db"`
	TTL      time.Duration `mapstructure:"ttl"`
}

type ArchiveConfig struct {
	Type string   `mapstructure:"type"` // "", "localfs" or "s3"
	Path string   `mapstructure:"path"` // For localfs
	S3   S3Config `mapstructure:"s3"`   // For S3
}

type S3Config struct {
	Bucket    string `mapstructure:"bucket"`
	Endpoint  string `mapstructure:"endpoint"`
	Region    string `mapstructure:"region"`
	AccessKey string `mapstructure:"access_key"`
	SecretKey string `mapstructure:"secret_key"`
	Prefix    string `mapstructure:"prefix"`
}

// MetricsConfig holds metrics configuration.
type MetricsConfig struct {
	Enabled bool   `mapstructure:"enabled"`
	Path    string `mapstructure:"path"`
}

// SweepConfig bounds parameter searches.
type SweepConfig struct {
	Parallelism int    `mapstructure:"parallelism"`
	Objective   string `mapstructure:"objective"`
	Samples     int    `mapstructure:"samples"`
	Seed        int64  `mapstructure:"seed"`
}

// Load reads configuration from file
func Load(path string) (*Config, error) {
	// .env is optional; real environment variables win.
	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("loading .env: %w", err)
	}

	v := viper.New()
	v.SetConfigFile(path)
	setDefaults(v)

	// Support environment variable overrides
	v.AutomaticEnv()
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	if err := v.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("reading config: %w", err)
	}

	// Expand environment variables in string values
	for _, key := range v.AllKeys() {
		val := v.GetString(key)
		if strings.HasPrefix(val, "${") && strings.HasSuffix(val, "}") {
			envKey := strings.TrimSuffix(strings.TrimPrefix(val, "${"), "}")
			v.Set(key, os.Getenv(envKey))
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("unmarshaling config: %w", err)
	}

	return &cfg, nil
}

func setDefaults(v *viper.Viper) {
	d := Defaults()
	v.SetDefault("strategy.variant", string(d.Strategy.Variant))
	v.SetDefault("strategy.lookback_period", d.Strategy.LookbackPeriod)
	v.SetDefault("strategy.rebalance_frequency", string(d.Strategy.RebalanceFrequency))
	v.SetDefault("strategy.position_count", d.Strategy.PositionCount)
	v.SetDefault("strategy.strength_method", string(d.Strategy.StrengthMethod))
	v.SetDefault("strategy.initial_capital", d.Strategy.InitialCapital)
	v.SetDefault("strategy.periods_per_year", d.Strategy.PeriodsPerYear)
	v.SetDefault("data.provider", d.Data.Provider)
	v.SetDefault("data.interval", d.Data.Interval)
	v.SetDefault("data.cache.ttl", d.Data.Cache.TTL)
	v.SetDefault("server.host", d.Server.Host)
	v.SetDefault("server.port", d.Server.Port)
	v.SetDefault("server.job_ttl_hours", d.Server.JobTTLHours)
	v.SetDefault("server.max_jobs", d.Server.MaxJobs)
	v.SetDefault("metrics.enabled", d.Metrics.Enabled)
	v.SetDefault("metrics.path", d.Metrics.Path)
	v.SetDefault("sweep.parallelism", d.Sweep.Parallelism)
	v.SetDefault("sweep.objective", d.Sweep.Objective)
	v.SetDefault("sweep.samples", d.Sweep.Samples)
}

// Defaults returns a config with sensible defaults
func Defaults() *Config {
	return &Config{
		Strategy: DefaultStrategy(),
		Data: DataConfig{
			Provider: "yahoo",
			Interval: "1d",
			Cache: CacheConfig{
				TTL: 12 * time.Hour,
			},
		},
		Server: ServerConfig{
			Host:        "0.0.0.0",
			Port:        8080,
			JobTTLHours: 1,
			MaxJobs:     100,
		},
		Metrics: MetricsConfig{
			Enabled: true,
			Path:    "/metrics",
		},
		Sweep: SweepConfig{
			Parallelism: 4,
			Objective:   "sharpe",
			Samples:     20,
		},
	}
}

// Validate checks the configuration for errors.
func (c *Config) Validate() error {
	if err := c.Strategy.Validate(); err != nil {
		return err
	}

	// Server validation
	if c.Server.Port < 1 || c.Server.Port > 65535 {
		return core.WrapError(core.ErrConfigInvalid,
			fmt.Errorf("port must be between 1 and 65535, got %d", c.Server.Port))
	}

	switch c.Data.Provider {
	case "yahoo":
	case "alpaca":
		if c.Data.Alpaca.APIKey == "" || c.Data.Alpaca.APISecret == "" {
			return core.WrapError(core.ErrConfigMissing,
				fmt.Errorf("alpaca api_key and api_secret required when provider is alpaca"))
		}
	case "csv":
		if c.Data.CSVDir == "" {
			return core.WrapError(core.ErrConfigMissing,
				fmt.Errorf("csv_dir required when provider is csv"))
		}
	default:
		return core.WrapError(core.ErrConfigInvalid,
			fmt.Errorf("unknown data provider: %q", c.Data.Provider))
	}

	switch c.Archive.Type {
	case "":
	case "localfs":
		if c.Archive.Path == "" {
			return core.WrapError(core.ErrConfigMissing,
				fmt.Errorf("archive path required for localfs"))
		}
	case "s3":
		if c.Archive.S3.Bucket == "" {
			return core.WrapError(core.ErrConfigMissing,
				fmt.Errorf("archive s3 bucket required for s3"))
		}
	default:
		return core.WrapError(core.ErrConfigInvalid,
			fmt.Errorf("unknown archive type: %q", c.Archive.Type))
	}

	if c.Sweep.Parallelism < 0 {
		return core.WrapError(core.ErrConfigInvalid,
			fmt.Errorf("sweep parallelism cannot be negative, got %d", c.Sweep.Parallelism))
	}

	return nil
}
