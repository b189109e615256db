package resilience

import (
	"errors"
	"fmt"
)

// ProviderError is an error returned by the document provider's API,
// carrying the HTTP status code so the retry layer can classify it.
type ProviderError struct {
	StatusCode int
	Err        error
}

func (e *ProviderError) Error() string {
	return fmt.Sprintf("provider error (status %d): %v", e.StatusCode, e.Err)
}

func (e *ProviderError) Unwrap() error { return e.Err }

// NewProviderError wraps err with the provider HTTP status code.
func NewProviderError(err error, statusCode int) *ProviderError {
	return &ProviderError{StatusCode: statusCode, Err: err}
}

// ConfigurationError indicates missing or invalid credentials/settings.
// Fails fast; never retried.
type ConfigurationError struct {
	Msg string
}

func (e *ConfigurationError) Error() string { return "configuration: " + e.Msg }

// NewConfigurationError creates a ConfigurationError with the given message.
func NewConfigurationError(msg string) *ConfigurationError {
	return &ConfigurationError{Msg: msg}
}

// DownloadError indicates a PDF download failure. The vision path aborts on
// it but document processing continues on fallback text or API-only fields.
type DownloadError struct {
	DocumentID string
	Err        error
}

func (e *DownloadError) Error() string {
	return fmt.Sprintf("download %s: %v", e.DocumentID, e.Err)
}

func (e *DownloadError) Unwrap() error { return e.Err }

// IsRetryable reports whether err should be retried: only rate limiting
// (429) and server errors (5xx) qualify. Everything else, including other
// 4xx responses and local failures, propagates on first occurrence.
func IsRetryable(err error) bool {
	if err == nil {
		return false
	}
	var pe *ProviderError
	if errors.As(err, &pe) {
		return IsRetryableStatus(pe.StatusCode)
	}
	return false
}

// IsRetryableStatus reports whether an HTTP status code is retry-eligible.
func IsRetryableStatus(statusCode int) bool {
	return statusCode == 429 || statusCode >= 500
}
