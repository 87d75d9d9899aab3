package config

import (
	"fmt"
	"strings"
)

// ValidationError represents a configuration validation error.
type ValidationError struct {
	Field   string
	Value   interface{}
	Message string
}

func (e ValidationError) Error() string {
	return fmt.Sprintf("config validation: %s: %s (got: %v)", e.Field, e.Message, e.Value)
}

// ValidationErrors collects multiple validation errors.
type ValidationErrors []ValidationError

func (e ValidationErrors) Error() string {
	var msgs []string
	for _, err := range e {
		msgs = append(msgs, err.Error())
	}
	return strings.Join(msgs, "; ")
}

// Validate validates a full configuration.
func Validate(cfg *Config) error {
	return NewValidator().Validate(cfg)
}

// Validator validates configuration.
type Validator struct {
	errors ValidationErrors
}

// NewValidator creates a new validator.
func NewValidator() *Validator {
	return &Validator{errors: make(ValidationErrors, 0)}
}

// Validate validates the entire configuration.
func (v *Validator) Validate(cfg *Config) error {
	v.validateLog(&cfg.Log)
	v.validateState(&cfg.State)
	v.validateDetector(&cfg.Detector)
	v.validateServe(&cfg.Serve)

	if len(v.errors) > 0 {
		return v.errors
	}
	return nil
}

func (v *Validator) validateLog(cfg *LogConfig) {
	switch cfg.Level {
	case "debug", "info", "warn", "error":
	default:
		v.addError("log.level", cfg.Level, "must be debug, info, warn, or error")
	}
	switch cfg.Format {
	case "auto", "text", "json":
	default:
		v.addError("log.format", cfg.Format, "must be auto, text, or json")
	}
}

func (v *Validator) validateState(cfg *StateConfig) {
	if strings.TrimSpace(cfg.Dir) == "" {
		v.addError("state.dir", cfg.Dir, "must not be empty")
	}
	switch cfg.Backend {
	case "json", "sqlite":
	default:
		v.addError("state.backend", cfg.Backend, "must be json or sqlite")
	}
	if cfg.MaxAttempts < 1 {
		v.addError("state.max_attempts", cfg.MaxAttempts, "must be at least 1")
	}
	if _, err := cfg.Backoff(); err != nil {
		v.addError("state.base_backoff", cfg.BaseBackoff, "must be a duration like 50ms")
	}
}

func (v *Validator) validateDetector(cfg *DetectorConfig) {
	if cfg.Window < 1 {
		v.addError("detector.window", cfg.Window, "must be at least 1")
	}
	if cfg.FailureThreshold <= 0 || cfg.FailureThreshold >= 1 {
		v.addError("detector.failure_threshold", cfg.FailureThreshold, "must be in (0, 1)")
	}
}

func (v *Validator) validateServe(cfg *ServeConfig) {
	if cfg.Port < 1 || cfg.Port > 65535 {
		v.addError("serve.port", cfg.Port, "must be a valid port")
	}
}

func (v *Validator) addError(field string, value interface{}, message string) {
	v.errors = append(v.errors, ValidationError{Field: field, Value: value, Message: message})
}
