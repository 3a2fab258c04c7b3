// Package config loads and validates the agent configuration.
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config represents the complete agent configuration
type Config struct {
	Agent   AgentConfig   `mapstructure:"agent"`
	Monitor MonitorConfig `mapstructure:"monitor"`
	Log     LogConfig     `mapstructure:"log"`
}

// AgentConfig represents the agent identity and server connection
type AgentConfig struct {
	ServerURL string `mapstructure:"server_url"`
	ID        string `mapstructure:"id"`
	APIKey    string `mapstructure:"api_key"`
	Secret    string `mapstructure:"secret"`
	Name      string `mapstructure:"name"` // defaults to hostname
}

// MonitorConfig represents the monitoring schedule and targets
type MonitorConfig struct {
	// Targets are name:port:processName entries
	Targets []string `mapstructure:"targets"`

	HeartbeatInterval time.Duration `mapstructure:"heartbeat_interval"`
	CollectInterval   time.Duration `mapstructure:"collect_interval"`
	HTTPTimeout       time.Duration `mapstructure:"http_timeout"`
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

// Target represents one parsed monitoring target
type Target struct {
	Name        string
	Port        int
	ProcessName string
}

// ParseTarget parses a name:port:processName entry
func ParseTarget(raw string) (Target, error) {
	parts := strings.Split(raw, ":")
	if len(parts) != 3 {
		return Target{}, fmt.Errorf("invalid target %q: want name:port:processName", raw)
	}

	port, err := strconv.Atoi(parts[1])
	if err != nil {
		return Target{}, fmt.Errorf("invalid target %q: bad port: %w", raw, err)
	}

	if parts[0] == "" || parts[2] == "" {
		return Target{}, fmt.Errorf("invalid target %q: empty name or process name", raw)
	}

	return Target{
		Name:        parts[0],
		Port:        port,
		ProcessName: parts[2],
	}, nil
}

// ParsedTargets returns the parsed monitoring targets
func (c *Config) ParsedTargets() ([]Target, error) {
	targets := make([]Target, 0, len(c.Monitor.Targets))
	for _, raw := range c.Monitor.Targets {
		t, err := ParseTarget(raw)
		if err != nil {
			return nil, err
		}
		targets = append(targets, t)
	}
	return targets, nil
}

// LoadConfig loads agent configuration from file
func LoadConfig(path string) (*Config, error) {
	v := viper.New()
	v.SetConfigFile(path)
	v.SetConfigType("yaml")

	bindEnvs(v)

	if err := v.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	var config Config
	if err := v.Unmarshal(&config); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	// the targets env override is a comma-delimited list of entries
	if raw := os.Getenv("WATCHER_MONITOR_TARGETS"); raw != "" {
		config.Monitor.Targets = strings.Split(raw, ",")
	}

	setDefaults(&config)

	if err := validateConfig(&config); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return &config, nil
}

// bindEnvs binds identity and credential keys to environment variables
func bindEnvs(v *viper.Viper) {
	_ = v.BindEnv("agent.server_url", "WATCHER_SERVER_URL")
	_ = v.BindEnv("agent.id", "WATCHER_AGENT_ID")
	_ = v.BindEnv("agent.api_key", "WATCHER_API_KEY")
	_ = v.BindEnv("agent.secret", "WATCHER_SECRET")
	_ = v.BindEnv("agent.name", "WATCHER_AGENT_NAME")
}

// setDefaults sets default values for configuration
func setDefaults(config *Config) {
	if config.Agent.Name == "" {
		if hostname, err := os.Hostname(); err == nil {
			config.Agent.Name = hostname
		}
	}

	if config.Monitor.HeartbeatInterval == 0 {
		config.Monitor.HeartbeatInterval = 30 * time.Second
	}

	if config.Monitor.CollectInterval == 0 {
		config.Monitor.CollectInterval = 60 * time.Second
	}

	// must stay well under the heartbeat period so a hung call
	// cannot starve the next tick
	if config.Monitor.HTTPTimeout == 0 {
		config.Monitor.HTTPTimeout = 10 * time.Second
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
}

// validateConfig validates the configuration
func validateConfig(config *Config) error {
	if config.Agent.ServerURL == "" {
		return fmt.Errorf("agent server_url is required")
	}
	if config.Agent.ID == "" {
		return fmt.Errorf("agent id is required")
	}
	if config.Agent.APIKey == "" || config.Agent.Secret == "" {
		return fmt.Errorf("agent credentials are required")
	}

	if _, err := config.ParsedTargets(); err != nil {
		return err
	}

	return nil
}
