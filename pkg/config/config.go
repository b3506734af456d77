// Package config loads blockaudit settings from a YAML file and BLOCKAUDIT_*
// environment variables.
package config

import (
	"errors"
	"fmt"
	"strings"

	"github.com/spf13/viper"
)

// Sentinel validation errors.
var (
	ErrEmptyDSN             = errors.New("store dsn must not be empty")
	ErrInvalidCursorBackend = errors.New("unknown cursor backend")
	ErrInvalidBatchSize     = errors.New("scan batch size must be positive")
	ErrInvalidLogLevel      = errors.New("unknown log level")
	ErrInvalidLogFormat     = errors.New("unknown log format")
	ErrInvalidSampleRatio   = errors.New("sample ratio must be between 0 and 1")
)

const (
	configName = "blockaudit"
	envPrefix  = "BLOCKAUDIT"
)

// Config holds all blockaudit settings.
type Config struct {
	Store         StoreConfig         `mapstructure:"store"`
	Cursor        CursorConfig        `mapstructure:"cursor"`
	Scan          ScanConfig          `mapstructure:"scan"`
	Logging       LoggingConfig       `mapstructure:"logging"`
	Observability ObservabilityConfig `mapstructure:"observability"`
}

// StoreConfig locates the document database.
type StoreConfig struct {
	DSN string `mapstructure:"dsn"`
}

// CursorConfig selects where scan cursors are kept.
type CursorConfig struct {
	Backend string `mapstructure:"backend"`
	Dir     string `mapstructure:"dir"`
}

// ScanConfig holds batch size and the effective query defaults.
type ScanConfig struct {
	DefaultStatus      string   `mapstructure:"default_status"`
	ExcludedCategories []string `mapstructure:"excluded_categories"`
	BatchSize          int      `mapstructure:"batch_size"`
}

// LoggingConfig holds logging-specific configuration.
type LoggingConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
}

// ObservabilityConfig holds telemetry export settings.
type ObservabilityConfig struct {
	OTLPEndpoint string  `mapstructure:"otlp_endpoint"`
	OTLPHeaders  string  `mapstructure:"otlp_headers"`
	MetricsAddr  string  `mapstructure:"metrics_addr"`
	Environment  string  `mapstructure:"environment"`
	SampleRatio  float64 `mapstructure:"sample_ratio"`
	OTLPInsecure bool    `mapstructure:"otlp_insecure"`
}

// LoadConfig loads configuration from file and environment variables.
// An empty path searches for blockaudit.yaml; a missing file there is not an error.
func LoadConfig(configPath string) (*Config, error) {
	viperCfg := viper.New()

	setDefaults(viperCfg)

	if configPath != "" {
		viperCfg.SetConfigFile(configPath)
	} else {
		viperCfg.SetConfigName(configName)
		viperCfg.SetConfigType("yaml")
		viperCfg.AddConfigPath(".")
		viperCfg.AddConfigPath("./config")
		viperCfg.AddConfigPath("/etc/blockaudit")
	}

	viperCfg.SetEnvPrefix(envPrefix)
	viperCfg.AutomaticEnv()
	viperCfg.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	readErr := viperCfg.ReadInConfig()
	if readErr != nil {
		var notFoundErr viper.ConfigFileNotFoundError
		if !errors.As(readErr, &notFoundErr) {
			return nil, fmt.Errorf("read config: %w", readErr)
		}
	}

	var config Config

	unmarshalErr := viperCfg.Unmarshal(&config)
	if unmarshalErr != nil {
		return nil, fmt.Errorf("unmarshal config: %w", unmarshalErr)
	}

	validateErr := config.Validate()
	if validateErr != nil {
		return nil, validateErr
	}

	return &config, nil
}

func setDefaults(viperCfg *viper.Viper) {
	viperCfg.SetDefault("store.dsn", DefaultStoreDSN)

	viperCfg.SetDefault("cursor.backend", DefaultCursorBackend)
	viperCfg.SetDefault("cursor.dir", DefaultCursorDir)

	viperCfg.SetDefault("scan.batch_size", DefaultScanBatchSize)
	viperCfg.SetDefault("scan.default_status", DefaultScanDefaultStatus)
	viperCfg.SetDefault("scan.excluded_categories", DefaultExcludedCategories())

	viperCfg.SetDefault("logging.level", DefaultLogLevel)
	viperCfg.SetDefault("logging.format", DefaultLogFormat)

	// Registered so AutomaticEnv can see them during Unmarshal.
	viperCfg.SetDefault("observability.otlp_endpoint", "")
	viperCfg.SetDefault("observability.otlp_headers", "")
	viperCfg.SetDefault("observability.otlp_insecure", false)
	viperCfg.SetDefault("observability.metrics_addr", "")
	viperCfg.SetDefault("observability.environment", "")
	viperCfg.SetDefault("observability.sample_ratio", 0.0)
}

// Validate checks every setting, e.g. after command-line overrides.
func (c *Config) Validate() error {
	err := c.validate()
	if err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}

	return nil
}

func (c *Config) validate() error {
	if strings.TrimSpace(c.Store.DSN) == "" {
		return ErrEmptyDSN
	}

	switch c.Cursor.Backend {
	case CursorBackendFile, CursorBackendSQLite:
	default:
		return fmt.Errorf("%w: %q", ErrInvalidCursorBackend, c.Cursor.Backend)
	}

	if c.Scan.BatchSize <= 0 {
		return fmt.Errorf("%w: %d", ErrInvalidBatchSize, c.Scan.BatchSize)
	}

	switch strings.ToLower(c.Logging.Level) {
	case "debug", "info", "warn", "warning", "error":
	default:
		return fmt.Errorf("%w: %q", ErrInvalidLogLevel, c.Logging.Level)
	}

	switch strings.ToLower(c.Logging.Format) {
	case LogFormatText, LogFormatJSON:
	default:
		return fmt.Errorf("%w: %q", ErrInvalidLogFormat, c.Logging.Format)
	}

	ratio := c.Observability.SampleRatio
	if ratio < 0 || ratio > 1 {
		return fmt.Errorf("%w: %v", ErrInvalidSampleRatio, ratio)
	}

	return nil
}
