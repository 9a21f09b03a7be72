package domain

import (
	"errors"
	"fmt"
)

// ErrJurisdictionNotFound is returned when a request names a jurisdiction
// code with no loaded rule set. The check fails fast; it is never silently
// defaulted to another jurisdiction's rules.
var ErrJurisdictionNotFound = errors.New("jurisdiction not found")

// ErrProviderUnavailable marks a transient provider failure after retries
// are exhausted. It never leaves the orchestrator as an error: it is folded
// into the flag set and biases the decision toward escalation (fail closed).
var ErrProviderUnavailable = errors.New("provider unavailable")

// ConfigError reports a malformed or inconsistent jurisdiction config file.
// It is fatal at load time: the affected jurisdiction is not served until
// the file is fixed.
type ConfigError struct {
	File   string
	Reason string
	Err    error
}

func (e *ConfigError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("config %s: %s: %v", e.File, e.Reason, e.Err)
	}
	return fmt.Sprintf("config %s: %s", e.File, e.Reason)
}

func (e *ConfigError) Unwrap() error { return e.Err }

// ValidationError reports a request the provider (or this service) rejected
// as malformed. Retrying will not help, so it is surfaced to the caller.
type ValidationError struct {
	Source string // "kyc", "aml", or "request"
	Reason string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("%s validation failed: %s", e.Source, e.Reason)
}

// IsValidation reports whether err is (or wraps) a ValidationError.
func IsValidation(err error) bool {
	var ve *ValidationError
	return errors.As(err, &ve)
}
