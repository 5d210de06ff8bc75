package domain

import (
	"errors"
	"fmt"
)

// ErrNoActiveConfig is returned when the engine is invoked before any
// weights configuration has been loaded successfully.
var ErrNoActiveConfig = errors.New("no active weights configuration")

// ErrUnknownSector marks a record whose sector has no base rate in the
// active configuration. Caught per-record by the batch aggregator.
var ErrUnknownSector = errors.New("unknown sector")

// ConfigError reports a malformed or logically invalid weights
// configuration. Raised only from reload; the active snapshot is never
// changed by a failed reload.
type ConfigError struct {
	Field  string
	Detail string
}

func (e *ConfigError) Error() string {
	if e.Field == "" {
		return "invalid weights config: " + e.Detail
	}
	return fmt.Sprintf("invalid weights config: %s: %s", e.Field, e.Detail)
}

// NewConfigError builds a ConfigError for a config field.
func NewConfigError(field, format string, args ...any) *ConfigError {
	return &ConfigError{Field: field, Detail: fmt.Sprintf(format, args...)}
}

// IsConfigError reports whether err is (or wraps) a ConfigError.
func IsConfigError(err error) bool {
	var ce *ConfigError
	return errors.As(err, &ce)
}
