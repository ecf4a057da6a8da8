package core

import (
	"errors"
	"fmt"
)

// ConfigError represents a configuration-related error with actionable instructions.
type ConfigError struct {
	Code    string // Error code for programmatic handling
	Message string // Human-readable error message
	Action  string // Actionable instruction for resolution
}

func (e *ConfigError) Error() string {
	if e.Action != "" {
		return fmt.Sprintf("%s. %s", e.Message, e.Action)
	}
	return e.Message
}

// Error codes for configuration errors
const (
	ErrCodeEnvFileMissing  = "ENV_FILE_MISSING"
	ErrCodeAssetsMissing   = "ASSETS_MISSING"
	ErrCodeInvalidValue    = "INVALID_VALUE"
	ErrCodeInvalidLogLevel = "INVALID_LOG_LEVEL"
	ErrCodeMissingConfig   = "MISSING_CONFIG"
)

// ErrEnvFileMissing returns an error for missing .env file
func ErrEnvFileMissing(path string) *ConfigError {
	return &ConfigError{
		Code:    ErrCodeEnvFileMissing,
		Message: fmt.Sprintf("Configuration file not found: %s", path),
		Action:  "Copy example.env to .env or set the STYLE_* variables in the environment",
	}
}

// ErrAssetsMissing returns an error when the model asset directory cannot be used
func ErrAssetsMissing(dir string, reason string) *ConfigError {
	return &ConfigError{
		Code:    ErrCodeAssetsMissing,
		Message: fmt.Sprintf("Model assets not available at '%s': %s", dir, reason),
		Action:  "Set STYLE_ASSETS_DIR to the directory holding styletransfer.param.bin and the style .bin files",
	}
}

// ErrInvalidValue returns an error for an out-of-range or malformed setting
func ErrInvalidValue(key string, value any, expected string) *ConfigError {
	return &ConfigError{
		Code:    ErrCodeInvalidValue,
		Message: fmt.Sprintf("Invalid %s '%v'", key, value),
		Action:  fmt.Sprintf("Set %s to %s", key, expected),
	}
}

// ErrInvalidLogLevel returns an error for an unknown log level name
func ErrInvalidLogLevel(level string) *ConfigError {
	return &ConfigError{
		Code:    ErrCodeInvalidLogLevel,
		Message: fmt.Sprintf("Unknown log level '%s'", level),
		Action:  "Set STYLE_LOG_LEVEL to one of debug, info, warn, error",
	}
}

// ErrMissingConfig returns an error for a required setting that is empty
func ErrMissingConfig(key string) *ConfigError {
	return &ConfigError{
		Code:    ErrCodeMissingConfig,
		Message: fmt.Sprintf("Missing required configuration: %s", key),
		Action:  fmt.Sprintf("Set %s in your .env file", key),
	}
}

// IsConfigError reports whether err is or wraps a *ConfigError.
func IsConfigError(err error) bool {
	var ce *ConfigError
	return errors.As(err, &ce)
}
