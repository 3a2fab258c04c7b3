// Package config loads and validates the server configuration.
package config

import (
	"fmt"
	"time"

	"watcher/internal/server/clickup"
	"watcher/internal/server/service"
	"watcher/internal/server/storage"

	"github.com/spf13/viper"
)

// Config represents the complete server configuration
type Config struct {
	Server   ServerConfig   `mapstructure:"server"`
	Database storage.Config `mapstructure:"database"`
	Monitor  service.Config `mapstructure:"monitor"`
	Clickup  clickup.Config `mapstructure:"clickup"`
	API      APIConfig      `mapstructure:"api"`
	Log      LogConfig      `mapstructure:"log"`
}

// ServerConfig represents the HTTP server configuration
type ServerConfig struct {
	Address      string        `mapstructure:"address"`
	ReadTimeout  time.Duration `mapstructure:"read_timeout"`
	WriteTimeout time.Duration `mapstructure:"write_timeout"`
	IdleTimeout  time.Duration `mapstructure:"idle_timeout"`

	// JWTSecret signs session tokens for the dashboard frontend
	JWTSecret string `mapstructure:"jwt_secret"`
}

// APIConfig represents the API configuration
type APIConfig struct {
	// CORS settings
	CORS CORSConfig `mapstructure:"cors"`

	// Rate limiting
	RateLimit RateLimitConfig `mapstructure:"rate_limit"`
}

// CORSConfig represents the CORS configuration
type CORSConfig struct {
	Enabled        bool     `mapstructure:"enabled"`
	AllowedOrigins []string `mapstructure:"allowed_origins"`
	AllowedMethods []string `mapstructure:"allowed_methods"`
	AllowedHeaders []string `mapstructure:"allowed_headers"`
}

// RateLimitConfig represents the rate limiting configuration
type RateLimitConfig struct {
	Enabled  bool          `mapstructure:"enabled"`
	Requests int           `mapstructure:"requests"`
	Window   time.Duration `mapstructure:"window"`
}

// LogConfig represents the logging configuration
type LogConfig struct {
	Level      string `mapstructure:"level"`
	File       string `mapstructure:"file"`
	MaxSize    int    `mapstructure:"max_size"` // MB
	MaxBackups int    `mapstructure:"max_backups"`
	MaxAge     int    `mapstructure:"max_age"` // days
	Compress   bool   `mapstructure:"compress"`
}

// LoadConfig loads server configuration from file
func LoadConfig(path string) (*Config, error) {
	v := viper.New()
	v.SetConfigFile(path)
	v.SetConfigType("yaml")

	// Secrets come from the environment, never the config file
	bindEnvs(v)

	if err := v.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	var config Config
	if err := v.Unmarshal(&config); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	setDefaults(&config)

	if err := validateConfig(&config); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return &config, nil
}

// bindEnvs binds secret config keys to environment variables
func bindEnvs(v *viper.Viper) {
	_ = v.BindEnv("server.jwt_secret", "WATCHER_JWT_SECRET")
	_ = v.BindEnv("clickup.token", "CLICKUP_API_TOKEN")
	_ = v.BindEnv("clickup.workspace_id", "CLICKUP_WORKSPACE_ID")
	_ = v.BindEnv("clickup.list_id", "CLICKUP_LIST_ID")
}

// setDefaults sets default values for configuration
func setDefaults(config *Config) {
	if config.Server.Address == "" {
		config.Server.Address = ":8080"
	}

	if config.Server.ReadTimeout == 0 {
		config.Server.ReadTimeout = 30 * time.Second
	}

	if config.Server.WriteTimeout == 0 {
		config.Server.WriteTimeout = 30 * time.Second
	}

	if config.Server.IdleTimeout == 0 {
		config.Server.IdleTimeout = 120 * time.Second
	}

	if config.Monitor.OfflineThreshold == 0 {
		config.Monitor.OfflineThreshold = 5 * time.Minute
	}

	if config.Monitor.CheckInterval == 0 {
		config.Monitor.CheckInterval = time.Minute
	}

	if config.Clickup.Timeout == 0 {
		config.Clickup.Timeout = 10 * time.Second
	}

	if config.API.RateLimit.Window == 0 {
		config.API.RateLimit.Window = time.Minute
	}

	if config.API.RateLimit.Requests == 0 {
		config.API.RateLimit.Requests = 120
	}

	if config.Log.MaxSize == 0 {
		config.Log.MaxSize = 100
	}

	if config.Log.MaxBackups == 0 {
		config.Log.MaxBackups = 3
	}

	if config.Log.MaxAge == 0 {
		config.Log.MaxAge = 28
	}

	if len(config.API.CORS.AllowedMethods) == 0 {
		config.API.CORS.AllowedMethods = []string{
			"GET", "POST", "PATCH", "OPTIONS",
		}
	}

	if len(config.API.CORS.AllowedHeaders) == 0 {
		config.API.CORS.AllowedHeaders = []string{
			"Content-Type", "X-Api-Key", "X-Secret", "X-Request-ID",
		}
	}
}

// validateConfig validates the configuration
func validateConfig(config *Config) error {
	if err := validateDatabaseConfig(&config.Database); err != nil {
		return fmt.Errorf("invalid database config: %w", err)
	}

	if err := validateClickupConfig(&config.Clickup); err != nil {
		return fmt.Errorf("invalid clickup config: %w", err)
	}

	return nil
}

// validateDatabaseConfig validates the database configuration
func validateDatabaseConfig(config *storage.Config) error {
	switch config.Driver {
	case "sqlite", "mysql", "postgres":
		if config.DSN == "" {
			return fmt.Errorf("database DSN is required")
		}
	default:
		return fmt.Errorf("unsupported database driver: %s", config.Driver)
	}
	return nil
}

// validateClickupConfig validates the ClickUp configuration.
// The integration is optional; a token without a list id is a
// misconfiguration, not a disabled integration.
func validateClickupConfig(config *clickup.Config) error {
	if config.Token != "" && config.ListID == "" {
		return fmt.Errorf("clickup list id is required when a token is set")
	}
	return nil
}
