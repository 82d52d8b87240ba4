// Package config loads application configuration from file and environment
// and initializes the global logger.
package config

import (
	"strings"
	"time"

	"github.com/rotisserie/eris"
	"github.com/spf13/viper"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/sells-group/product-match/internal/match"
)

// Config holds the full application configuration.
type Config struct {
	Store  StoreConfig       `yaml:"store" mapstructure:"store"`
	Match  match.FuzzyConfig `yaml:"match" mapstructure:"match"`
	Ingest IngestConfig      `yaml:"ingest" mapstructure:"ingest"`
	Sync   SyncConfig        `yaml:"sync" mapstructure:"sync"`
	Server ServerConfig      `yaml:"server" mapstructure:"server"`
	Log    LogConfig         `yaml:"log" mapstructure:"log"`
}

// StoreConfig configures the database backend.
type StoreConfig struct {
	Driver      string `yaml:"driver" mapstructure:"driver"`
	DatabaseURL string `yaml:"database_url" mapstructure:"database_url"`
}

// IngestConfig configures retailer feed ingestion.
type IngestConfig struct {
	BatchSize     int     `yaml:"batch_size" mapstructure:"batch_size"`
	Workers       int     `yaml:"workers" mapstructure:"workers"`
	DownloadRate  float64 `yaml:"download_rate" mapstructure:"download_rate"` // feed downloads per second
	FTPTimeoutSec int     `yaml:"ftp_timeout_secs" mapstructure:"ftp_timeout_secs"`
}

// SyncConfig configures the scheduled sync loop. Retry is the caller-side
// convention around the engine: three attempts with 1s/2s/4s delays.
type SyncConfig struct {
	Interval      time.Duration `yaml:"interval" mapstructure:"interval"`
	RetryAttempts int           `yaml:"retry_attempts" mapstructure:"retry_attempts"`
	RetryBackoff  time.Duration `yaml:"retry_backoff" mapstructure:"retry_backoff"`
}

// ServerConfig configures the HTTP API.
type ServerConfig struct {
	Port int `yaml:"port" mapstructure:"port"`
}

// LogConfig configures logging.
type LogConfig struct {
	Level  string `yaml:"level" mapstructure:"level"`
	Format string `yaml:"format" mapstructure:"format"`
}

// Load reads configuration from file and environment.
func Load() (*Config, error) {
	v := viper.New()

	// Config file
	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")

	// Environment
	v.SetEnvPrefix("PRODUCTMATCH")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// Defaults
	v.SetDefault("store.driver", "postgres")
	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "json")
	v.SetDefault("server.port", 8080)
	v.SetDefault("match.auto_threshold", match.DefaultAutoThreshold)
	v.SetDefault("match.review_threshold", match.DefaultReviewThreshold)
	v.SetDefault("match.name_weight", match.DefaultNameWeight)
	v.SetDefault("match.dimension_weight", match.DefaultDimensionWeight)
	v.SetDefault("match.pair_limit", match.DefaultPairLimit)
	v.SetDefault("ingest.batch_size", 1000)
	v.SetDefault("ingest.workers", 4)
	v.SetDefault("ingest.download_rate", 2)
	v.SetDefault("ingest.ftp_timeout_secs", 60)
	v.SetDefault("sync.interval", time.Hour)
	v.SetDefault("sync.retry_attempts", 3)
	v.SetDefault("sync.retry_backoff", time.Second)

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
