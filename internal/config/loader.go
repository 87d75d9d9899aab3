package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/viper"
)

// Loader handles configuration loading from multiple sources.
type Loader struct {
	v          *viper.Viper
	configFile string
	envPrefix  string
}

// NewLoader creates a new configuration loader.
func NewLoader() *Loader {
	return &Loader{
		v:         viper.New(),
		envPrefix: "STEERSTATE",
	}
}

// NewLoaderWithViper creates a loader using an existing viper instance.
// This allows integration with CLI flag bindings.
func NewLoaderWithViper(v *viper.Viper) *Loader {
	return &Loader{
		v:         v,
		envPrefix: "STEERSTATE",
	}
}

// WithConfigFile sets an explicit config file path.
func (l *Loader) WithConfigFile(path string) *Loader {
	l.configFile = path
	return l
}

// Viper returns the underlying viper instance for flag binding.
func (l *Loader) Viper() *viper.Viper {
	return l.v
}

// Load loads configuration from all sources.
// Precedence (highest to lowest):
// 1. CLI flags (set via viper.BindPFlag)
// 2. Environment variables (STEERSTATE_*)
// 3. Project config (.steerstate.yaml in current directory)
// 4. User config (~/.config/steerstate/config.yaml)
// 5. Defaults
func (l *Loader) Load() (*Config, error) {
	l.setDefaults()

	l.v.SetEnvPrefix(l.envPrefix)
	l.v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	l.v.AutomaticEnv()

	if l.configFile != "" {
		l.v.SetConfigFile(l.configFile)
	} else {
		l.v.SetConfigName(".steerstate")
		l.v.SetConfigType("yaml")

		// Project config takes precedence over user config
		l.v.AddConfigPath(".")
		if home, err := os.UserHomeDir(); err == nil {
			l.v.AddConfigPath(filepath.Join(home, ".config", "steerstate"))
		}
	}

	if err := l.v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("reading config: %w", err)
		}
	}

	var cfg Config
	if err := l.v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("unmarshaling config: %w", err)
	}

	// Bound flags left at their zero value shadow viper defaults, so empty
	// fields are backfilled here.
	fillDefaults(&cfg)
	return &cfg, nil
}

func fillDefaults(cfg *Config) {
	if cfg.Log.Level == "" {
		cfg.Log.Level = "info"
	}
	if cfg.Log.Format == "" {
		cfg.Log.Format = "auto"
	}
	if cfg.State.Dir == "" {
		cfg.State.Dir = DefaultStateDir
	}
	if cfg.State.Backend == "" {
		cfg.State.Backend = "json"
	}
	if cfg.State.MaxAttempts == 0 {
		cfg.State.MaxAttempts = 3
	}
	if cfg.State.BaseBackoff == "" {
		cfg.State.BaseBackoff = "50ms"
	}
	if cfg.Detector.Window == 0 {
		cfg.Detector.Window = 20
	}
	if cfg.Detector.FailureThreshold == 0 {
		cfg.Detector.FailureThreshold = 0.5
	}
	if cfg.Serve.Host == "" {
		cfg.Serve.Host = "localhost"
	}
	if cfg.Serve.Port == 0 {
		cfg.Serve.Port = 8643
	}
}

// setDefaults configures default values.
func (l *Loader) setDefaults() {
	l.v.SetDefault("log.level", "info")
	l.v.SetDefault("log.format", "auto")

	l.v.SetDefault("state.dir", DefaultStateDir)
	l.v.SetDefault("state.backend", "json")
	l.v.SetDefault("state.max_attempts", 3)
	l.v.SetDefault("state.base_backoff", "50ms")

	l.v.SetDefault("detector.window", 20)
	l.v.SetDefault("detector.failure_threshold", 0.5)

	l.v.SetDefault("serve.host", "localhost")
	l.v.SetDefault("serve.port", 8643)
	l.v.SetDefault("serve.enable_cors", false)
	l.v.SetDefault("serve.cors_origins", []string{})
}
