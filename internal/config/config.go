// Package config loads and validates steerstate configuration from flags,
// environment, and YAML files.
package config

import "time"

// Config holds all application configuration.
type Config struct {
	Log      LogConfig      `mapstructure:"log"`
	State    StateConfig    `mapstructure:"state"`
	Detector DetectorConfig `mapstructure:"detector"`
	Serve    ServeConfig    `mapstructure:"serve"`
}

// LogConfig configures logging behavior.
type LogConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
}

// StateConfig configures the state store.
type StateConfig struct {
	// Dir is the root under which each session keeps its files.
	Dir string `mapstructure:"dir"`
	// Backend selects the store implementation: json or sqlite.
	Backend string `mapstructure:"backend"`
	// MaxAttempts is the total save attempt budget.
	MaxAttempts int `mapstructure:"max_attempts"`
	// BaseBackoff is the first retry delay, doubling per attempt.
	BaseBackoff string `mapstructure:"base_backoff"`
}

// Backoff parses the configured base backoff delay.
func (s StateConfig) Backoff() (time.Duration, error) {
	if s.BaseBackoff == "" {
		return 0, nil
	}
	return time.ParseDuration(s.BaseBackoff)
}

// DetectorConfig configures loop detection.
type DetectorConfig struct {
	Window           int     `mapstructure:"window"`
	FailureThreshold float64 `mapstructure:"failure_threshold"`
}

// ServeConfig configures the diagnostics HTTP server.
type ServeConfig struct {
	Host        string   `mapstructure:"host"`
	Port        int      `mapstructure:"port"`
	EnableCORS  bool     `mapstructure:"enable_cors"`
	CORSOrigins []string `mapstructure:"cors_origins"`
}
