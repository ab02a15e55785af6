package config

import (
	"errors"
	"fmt"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/spf13/viper"
)

// EnvPrefix is prepended to every environment variable, e.g. FOLIO_DATABASE_URL.
const EnvPrefix = "FOLIO"

var defaults = map[string]any{
	"server.port":                     8080,
	"server.log_level":                "info",
	"server.shutdown_timeout_seconds": 10,
	"database.driver":                 "pgx",
	"database.url":                    "",
	"database.max_open_conns":         10,
	"api.base_url":                    "",
	"api.default_page_size":           20,
	"api.max_page_size":               100,
}

// Load reads configuration from an optional config.yaml in the working
// directory and from FOLIO_* environment variables. Environment variables
// take precedence over file values.
func Load() (*Config, error) {
	return LoadFile("")
}

// LoadFile is Load with an explicit config file path. An empty path searches
// the working directory for config.yaml and tolerates its absence.
func LoadFile(path string) (*Config, error) {
	v := viper.New()
	for key, val := range defaults {
		v.SetDefault(key, val)
	}

	if path != "" {
		v.SetConfigFile(path)
	} else {
		v.SetConfigName("config")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
	}
	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if path != "" || !errors.As(err, &notFound) {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
	}

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	if err := validator.New().Struct(&cfg); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return &cfg, nil
}
