package config

// Config holds all application configuration.
// It organizes settings into logical groups for better maintainability.
type Config struct {
	Server   ServerConfig   `mapstructure:"server" validate:"required"`
	Database DatabaseConfig `mapstructure:"database" validate:"required"`
	API      APIConfig      `mapstructure:"api" validate:"required"`
}

// ServerConfig contains all server-related configuration settings.
type ServerConfig struct {
	Port            int    `mapstructure:"port" validate:"required,gt=0,lt=65536"`
	LogLevel        string `mapstructure:"log_level" validate:"required,oneof=debug info warn error"`
	ShutdownTimeout int    `mapstructure:"shutdown_timeout_seconds" validate:"gte=0"`
}

// DatabaseConfig contains all database-related configuration settings.
type DatabaseConfig struct {
	// Driver is "pgx" for PostgreSQL or "sqlite" for an embedded database.
	Driver       string `mapstructure:"driver" validate:"required,oneof=pgx sqlite"`
	URL          string `mapstructure:"url" validate:"required"`
	MaxOpenConns int    `mapstructure:"max_open_conns" validate:"gte=0"`
}

// APIConfig controls link generation and pagination.
type APIConfig struct {
	// BaseURL prefixes every generated link. Empty yields root-relative links.
	BaseURL         string `mapstructure:"base_url" validate:"omitempty,url"`
	DefaultPageSize int    `mapstructure:"default_page_size" validate:"required,gt=0,ltefield=MaxPageSize"`
	MaxPageSize     int    `mapstructure:"max_page_size" validate:"required,gt=0"`
}
