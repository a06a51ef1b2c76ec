package config

import (
	"strings"
	"time"

	"github.com/rotisserie/eris"
	"github.com/spf13/viper"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Config holds the full application configuration.
type Config struct {
	Store    StoreConfig    `yaml:"store" mapstructure:"store"`
	Provider ProviderConfig `yaml:"provider" mapstructure:"provider"`
	Pipeline PipelineConfig `yaml:"pipeline" mapstructure:"pipeline"`
	Rules    RulesConfig    `yaml:"rules" mapstructure:"rules"`
	Sweep    SweepConfig    `yaml:"sweep" mapstructure:"sweep"`
	Server   ServerConfig   `yaml:"server" mapstructure:"server"`
	Log      LogConfig      `yaml:"log" mapstructure:"log"`
}

// StoreConfig configures the database backend.
type StoreConfig struct {
	Driver      string `yaml:"driver" mapstructure:"driver"`
	DatabaseURL string `yaml:"database_url" mapstructure:"database_url"`
	MaxConns    int32  `yaml:"max_conns" mapstructure:"max_conns"`
	MinConns    int32  `yaml:"min_conns" mapstructure:"min_conns"`
}

// ProviderConfig configures the extraction provider adapter.
type ProviderConfig struct {
	Kind          string  `yaml:"kind" mapstructure:"kind"`
	PdfToTextPath string  `yaml:"pdftotext_path" mapstructure:"pdftotext_path"`
	MistralKey    string  `yaml:"mistral_api_key" mapstructure:"mistral_api_key"`
	MistralModel  string  `yaml:"mistral_ocr_model" mapstructure:"mistral_ocr_model"`
	TimeoutSecs   int     `yaml:"timeout_secs" mapstructure:"timeout_secs"`
	MaxAttempts   int     `yaml:"max_attempts" mapstructure:"max_attempts"`
	RatePerSec    float64 `yaml:"rate_per_sec" mapstructure:"rate_per_sec"`
}

// Timeout returns the per-call provider timeout.
func (c ProviderConfig) Timeout() time.Duration {
	if c.TimeoutSecs <= 0 {
		return 30 * time.Second
	}
	return time.Duration(c.TimeoutSecs) * time.Second
}

// PipelineConfig configures ingestion processing.
type PipelineConfig struct {
	AcceptedFileTypes []string `yaml:"accepted_file_types" mapstructure:"accepted_file_types"`
	MaxFileSizeMB     int64    `yaml:"max_file_size_mb" mapstructure:"max_file_size_mb"`
	Workers           int      `yaml:"workers" mapstructure:"workers"`
	SpoolDir          string   `yaml:"spool_dir" mapstructure:"spool_dir"`
}

// RulesConfig configures the discrepancy engine.
type RulesConfig struct {
	RegistryPath        string  `yaml:"registry_path" mapstructure:"registry_path"`
	AmountTolerance     float64 `yaml:"amount_tolerance" mapstructure:"amount_tolerance"`
	SimilarityThreshold float64 `yaml:"similarity_threshold" mapstructure:"similarity_threshold"`
}

// SweepConfig configures the recovery sweep.
type SweepConfig struct {
	IntervalSecs     int `yaml:"interval_secs" mapstructure:"interval_secs"`
	StuckTimeoutMins int `yaml:"stuck_timeout_mins" mapstructure:"stuck_timeout_mins"`
}

// Interval returns the sweep interval.
func (c SweepConfig) Interval() time.Duration {
	if c.IntervalSecs <= 0 {
		return 5 * time.Minute
	}
	return time.Duration(c.IntervalSecs) * time.Second
}

// StuckTimeout returns how long a processing record may sit untouched
// before the sweep reclaims it.
func (c SweepConfig) StuckTimeout() time.Duration {
	if c.StuckTimeoutMins <= 0 {
		return time.Hour
	}
	return time.Duration(c.StuckTimeoutMins) * time.Minute
}

// ServerConfig configures the review/upload HTTP server.
type ServerConfig struct {
	Port           int      `yaml:"port" mapstructure:"port"`
	AllowedOrigins []string `yaml:"allowed_origins" mapstructure:"allowed_origins"`
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
	v.SetEnvPrefix("TRADEDOCS")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// Defaults
	v.SetDefault("store.driver", "postgres")
	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "json")
	v.SetDefault("server.port", 8080)
	v.SetDefault("server.allowed_origins", []string{"*"})
	v.SetDefault("provider.kind", "local")
	v.SetDefault("provider.pdftotext_path", "pdftotext")
	v.SetDefault("provider.mistral_ocr_model", "pixtral-large-latest")
	v.SetDefault("provider.timeout_secs", 30)
	v.SetDefault("provider.max_attempts", 3)
	v.SetDefault("provider.rate_per_sec", 2.0)
	v.SetDefault("pipeline.accepted_file_types", []string{"pdf", "png", "jpg", "jpeg", "tiff", "txt"})
	v.SetDefault("pipeline.max_file_size_mb", 50)
	v.SetDefault("pipeline.workers", 4)
	v.SetDefault("pipeline.spool_dir", "data/uploads")
	v.SetDefault("rules.amount_tolerance", 0)
	v.SetDefault("rules.similarity_threshold", 0.7)
	v.SetDefault("sweep.interval_secs", 300)
	v.SetDefault("sweep.stuck_timeout_mins", 60)

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
