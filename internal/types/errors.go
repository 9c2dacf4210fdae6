package types

import (
	"errors"
	"fmt"
	"net/http"
)

// ConfigurationError reports an unknown task or a strict-routing violation.
// It is always surfaced to the caller and never escalated.
type ConfigurationError struct {
	Task    string
	Message string
}

func (e *ConfigurationError) Error() string {
	if e.Task == "" {
		return fmt.Sprintf("configuration error: %s", e.Message)
	}
	return fmt.Sprintf("configuration error for task %q: %s", e.Task, e.Message)
}

// NewConfigurationError creates a configuration error for a task identifier
func NewConfigurationError(task, format string, args ...interface{}) *ConfigurationError {
	return &ConfigurationError{
		Task:    task,
		Message: fmt.Sprintf(format, args...),
	}
}

// ProviderError reports a non-success response from an invoked tier
type ProviderError struct {
	Provider   string
	Model      string
	Tier       Tier
	StatusCode int
	Message    string
	Cause      error
}

func (e *ProviderError) Error() string {
	msg := fmt.Sprintf("provider %s (model %s, tier %s)", e.Provider, e.Model, e.Tier)
	if e.StatusCode > 0 {
		msg = fmt.Sprintf("%s returned status %d", msg, e.StatusCode)
	} else {
		msg += " failed"
	}
	if e.Message != "" {
		msg += ": " + e.Message
	}
	if e.Cause != nil && e.Message == "" {
		msg += ": " + e.Cause.Error()
	}
	return msg
}

func (e *ProviderError) Unwrap() error {
	return e.Cause
}

// IsAuthFailure reports whether the provider rejected our credentials
func (e *ProviderError) IsAuthFailure() bool {
	return e.StatusCode == http.StatusUnauthorized || e.StatusCode == http.StatusForbidden
}

// NetworkError reports a transport-level failure or an attempt timeout
type NetworkError struct {
	Provider string
	Model    string
	Tier     Tier
	Cause    error
}

func (e *NetworkError) Error() string {
	return fmt.Sprintf("network error calling %s (model %s, tier %s): %v", e.Provider, e.Model, e.Tier, e.Cause)
}

func (e *NetworkError) Unwrap() error {
	return e.Cause
}

// ParseError reports structured output that could not be decoded. It is
// logged and replaced by the caller's fallback value, never returned.
type ParseError struct {
	Task    string
	Model   string
	Snippet string
	Cause   error
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("failed to parse structured output for %s from %s: %v", e.Task, e.Model, e.Cause)
}

func (e *ParseError) Unwrap() error {
	return e.Cause
}

// IsConfigurationError reports whether err is or wraps a ConfigurationError
func IsConfigurationError(err error) bool {
	var cfgErr *ConfigurationError
	return errors.As(err, &cfgErr)
}

// IsRetryable reports whether err should advance the escalation chain.
// Everything except configuration errors escalates.
func IsRetryable(err error) bool {
	if err == nil {
		return false
	}
	return !IsConfigurationError(err)
}

// WithTier stamps tier information onto provider and network errors
func WithTier(err error, tier Tier, model string) error {
	var provErr *ProviderError
	if errors.As(err, &provErr) {
		provErr.Tier = tier
		if provErr.Model == "" {
			provErr.Model = model
		}
		return err
	}
	var netErr *NetworkError
	if errors.As(err, &netErr) {
		netErr.Tier = tier
		if netErr.Model == "" {
			netErr.Model = model
		}
	}
	return err
}
