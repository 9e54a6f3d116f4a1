package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/spf13/viper"
)

// FileName is the configuration file looked up in the working directory
const FileName = "relmap"

// EnvPrefix prefixes every environment override, e.g. RELMAP_DATABASE_URL
const EnvPrefix = "RELMAP"

// Config represents the relmap configuration
type Config struct {
	Model    string         `mapstructure:"model" validate:"required"`
	Dialect  string         `mapstructure:"dialect" validate:"oneof=postgres sqlite"`
	// Naming overrides the model file's naming strategy when set
	Naming   string         `mapstructure:"naming" validate:"omitempty,oneof=identity snake_plural"`
	Log      LogConfig      `mapstructure:"log"`
	Database DatabaseConfig `mapstructure:"database"`
	Cache    CacheConfig    `mapstructure:"cache"`
}

// LogConfig represents logging configuration
type LogConfig struct {
	Level       string `mapstructure:"level" validate:"oneof=debug info warn error"`
	Development bool   `mapstructure:"development"`
}

// DatabaseConfig represents database configuration
type DatabaseConfig struct {
	Driver string `mapstructure:"driver" validate:"oneof=pgx postgres sqlite3"`
	URL    string `mapstructure:"url"`
}

// CacheConfig represents plan cache configuration
type CacheConfig struct {
	Backend  string        `mapstructure:"backend" validate:"oneof=none memory redis"`
	Addr     string        `mapstructure:"addr" validate:"required_if=Backend redis"`
	Password string        `mapstructure:"password"`
	DB       int           `mapstructure:"db" validate:"gte=0"`
	Prefix   string        `mapstructure:"prefix"`
	TTL      time.Duration `mapstructure:"ttl" validate:"gte=0"`
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("model", "model.yml")
	v.SetDefault("dialect", "postgres")
	v.SetDefault("naming", "")
	v.SetDefault("log.level", "info")
	v.SetDefault("log.development", false)
	v.SetDefault("database.driver", "pgx")
	v.SetDefault("database.url", "")
	v.SetDefault("cache.backend", "memory")
	v.SetDefault("cache.addr", "localhost:6379")
	v.SetDefault("cache.password", "")
	v.SetDefault("cache.db", 0)
	v.SetDefault("cache.prefix", "relmap:plan:")
	v.SetDefault("cache.ttl", time.Hour)
}

// Load loads the configuration from relmap.yml in the working directory
func Load() (*Config, error) {
	return load("")
}

// LoadFile loads the configuration from an explicit path, which must exist
func LoadFile(path string) (*Config, error) {
	return load(path)
}

func load(path string) (*Config, error) {
	v := viper.New()
	setDefaults(v)

	if path != "" {
		v.SetConfigFile(path)
	} else {
		v.SetConfigName(FileName)
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
	}

	// Enable environment variable support
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if path != "" || !errors.As(err, &notFound) {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
		// Config file not found - use defaults
	}

	var config Config
	if err := v.Unmarshal(&config); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	if err := validateConfig(&config); err != nil {
		return nil, err
	}
	return &config, nil
}

var validate = validator.New()

// validateConfig validates the configuration
func validateConfig(cfg *Config) error {
	cfg.Dialect = strings.ToLower(cfg.Dialect)
	cfg.Log.Level = strings.ToLower(cfg.Log.Level)
	if err := validate.Struct(cfg); err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}
	return nil
}

// Used reports the config file Load would read, or "" when there is none
func Used() string {
	for _, ext := range []string{".yml", ".yaml"} {
		path := FileName + ext
		if _, err := os.Stat(path); err == nil {
			abs, err := filepath.Abs(path)
			if err != nil {
				return path
			}
			return abs
		}
	}
	return ""
}
