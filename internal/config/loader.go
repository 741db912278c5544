// Package config loads the .task-master/config.yaml harness configuration.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"gopkg.in/yaml.v3"
)

// Default values for Config.
const (
	DefaultModel              = "sonnet"
	DefaultAgentBinary        = "claude"
	DefaultMaxSessions        = 0 // unlimited
	DefaultSessionTimeoutMins = 60
	DefaultSleepSeconds       = 3
	DefaultServerPort         = 7473
)

// DefaultConfig returns a Config with sensible default values.
func DefaultConfig() Config {
	return Config{
		Model:              DefaultModel,
		AgentBinary:        DefaultAgentBinary,
		MaxSessions:        DefaultMaxSessions,
		SessionTimeoutMins: DefaultSessionTimeoutMins,
		SleepSeconds:       DefaultSleepSeconds,
	}
}

// SessionTimeout returns the per-invocation agent timeout as a duration.
func (c *Config) SessionTimeout() time.Duration {
	return time.Duration(c.SessionTimeoutMins) * time.Minute
}

// Sleep returns the loop pacing delay as a duration.
func (c *Config) Sleep() time.Duration {
	return time.Duration(c.SleepSeconds) * time.Second
}

// ValidationError represents a configuration validation error.
type ValidationError struct {
	Field   string
	Message string
}

func (e ValidationError) Error() string {
	return fmt.Sprintf("validation error: %s: %s", e.Field, e.Message)
}

// IsValidationError checks if an error is a ValidationError.
func IsValidationError(err error) bool {
	var ve ValidationError
	return errors.As(err, &ve)
}

// Load reads and parses .task-master/config.yaml from the given base path.
// A missing file yields the defaults; a present file is merged over them.
func Load(basePath string) (*Config, error) {
	configPath := filepath.Join(basePath, ".task-master", "config.yaml")

	data, err := os.ReadFile(configPath)
	if err != nil {
		if os.IsNotExist(err) {
			cfg := DefaultConfig()
			return &cfg, nil
		}
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	cfg := DefaultConfig()
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config file: %w", err)
	}

	if err := Validate(&cfg); err != nil {
		return nil, err
	}

	return &cfg, nil
}

// Validate checks that all config values are valid.
func Validate(cfg *Config) error {
	if cfg.Model == "" {
		return ValidationError{Field: "model", Message: "required field is empty"}
	}
	if cfg.AgentBinary == "" {
		return ValidationError{Field: "agent_binary", Message: "required field is empty"}
	}
	if cfg.MaxSessions < 0 {
		return ValidationError{Field: "max_sessions", Message: "must be zero or positive"}
	}
	if cfg.SessionTimeoutMins <= 0 {
		return ValidationError{Field: "session_timeout_mins", Message: "must be positive"}
	}
	if cfg.SleepSeconds < 0 {
		return ValidationError{Field: "sleep_seconds", Message: "must be zero or positive"}
	}

	if cfg.Server != nil {
		if cfg.Server.Port < 0 || cfg.Server.Port > 65535 {
			return ValidationError{Field: "server.port", Message: "must be between 0 and 65535"}
		}
	}

	return nil
}
