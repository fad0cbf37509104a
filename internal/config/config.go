// Package config loads the backend configuration from a config file, the
// environment and an optional .env file. Source credentials are opaque
// values; token lifecycles are managed outside of this backend.
package config

import (
	"errors"
	"fmt"
	"strings"

	"github.com/joho/godotenv"
	"github.com/ledgersync/backend/internal/etl"
	"github.com/ledgersync/backend/internal/source"
	"github.com/spf13/viper"
)

// Server holds the HTTP server settings.
type Server struct {
	Address string `mapstructure:"address"`
}

// Database holds the sqlite settings.
type Database struct {
	Path string `mapstructure:"path"`
}

// Config is the root configuration.
type Config struct {
	Server   Server          `mapstructure:"server"`
	Database Database        `mapstructure:"database"`
	Sync     etl.Config      `mapstructure:"sync"`
	Sources  []source.Config `mapstructure:"sources"`
}

// Load reads ledgersync.yaml from the given path, overlaid with environment
// variables (prefix LEDGERSYNC_) and a .env file when present.
func Load(path string) (*Config, error) {
	// A missing .env file is fine, production setups use real environment
	// variables.
	_ = godotenv.Load()

	v := viper.New()
	v.SetConfigName("ledgersync")
	v.SetConfigType("yaml")
	v.AddConfigPath(path)

	v.SetDefault("server.address", ":8080")
	v.SetDefault("database.path", "data/ledgersync.db")
	v.SetDefault("sync.concurrency", 2)
	v.SetDefault("sync.timeout", "10m")
	v.SetDefault("sync.lookback_days", 90)

	v.SetEnvPrefix("LEDGERSYNC")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, fmt.Errorf("could not read config file: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("could not parse configuration: %w", err)
	}

	if err := validate(&cfg); err != nil {
		return nil, err
	}

	return &cfg, nil
}

func validate(cfg *Config) error {
	names := make(map[string]bool)
	for _, src := range cfg.Sources {
		if src.Name == "" {
			return source.ErrNoName
		}
		if names[src.Name] {
			return fmt.Errorf("duplicate source name %q", src.Name)
		}
		names[src.Name] = true

		if src.Kind != source.KindCSV && src.Kind != source.KindAPI {
			return fmt.Errorf("source %q: %w: %q", src.Name, source.ErrUnknownKind, src.Kind)
		}
	}

	return nil
}
