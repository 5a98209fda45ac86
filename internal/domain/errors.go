package domain

import (
	"errors"
	"fmt"
	"strings"
)

var (
	// ErrNotFound is returned when a catalog, brand or stats record does not exist
	ErrNotFound = errors.New("record not found")

	// ErrDuplicateEntry is returned when a catalog entry with the same normalized key already exists
	ErrDuplicateEntry = errors.New("catalog entry already exists")

	// ErrInvalidRequest is returned when request parameters are invalid
	ErrInvalidRequest = errors.New("invalid request parameters")

	// ErrCacheMiss is returned when data is not found in cache
	ErrCacheMiss = errors.New("cache miss")

	// ErrConfiguration is matched by every *ConfigurationError
	ErrConfiguration = errors.New("configuration error")

	// ErrBackendUnavailable marks a backend that does not exist or cannot serve the request.
	// Recovered locally by advancing to the next transport or candidate.
	ErrBackendUnavailable = errors.New("inference backend unavailable")

	// ErrBackendRejected marks quota, permission and other backend refusals. Never retried.
	ErrBackendRejected = errors.New("inference backend rejected request")

	// ErrParse is returned when a backend response is not the expected structured JSON
	ErrParse = errors.New("malformed inference response")

	// ErrRecognitionFailed is matched by the terminal *RecognitionError
	ErrRecognitionFailed = errors.New("recognition failed")

	// ErrImageSearchFailure is returned when the web image search API request fails
	ErrImageSearchFailure = errors.New("image search request failed")
)

// ConfigurationError reports a missing or invalid setting. It is fatal and never retried.
type ConfigurationError struct {
	Setting     string
	Remediation string
}

func (e *ConfigurationError) Error() string {
	if e.Remediation == "" {
		return fmt.Sprintf("configuration error: %s is missing", e.Setting)
	}
	return fmt.Sprintf("configuration error: %s is missing (%s)", e.Setting, e.Remediation)
}

// Is makes errors.Is(err, ErrConfiguration) true.
func (e *ConfigurationError) Is(target error) bool {
	return target == ErrConfiguration
}

// BackendError is a classified failure of one inference backend call.
type BackendError struct {
	Kind       error // ErrBackendUnavailable, ErrBackendRejected or ErrParse
	Model      string
	Transport  string
	StatusCode int
	Message    string
	Cause      error
}

func (e *BackendError) Error() string {
	var parts []string
	parts = append(parts, e.Kind.Error())
	if e.Transport != "" {
		parts = append(parts, "transport="+e.Transport)
	}
	if e.Model != "" {
		parts = append(parts, "model="+e.Model)
	}
	if e.StatusCode > 0 {
		parts = append(parts, fmt.Sprintf("HTTP %d", e.StatusCode))
	}
	if e.Message != "" {
		parts = append(parts, e.Message)
	}

	msg := strings.Join(parts, " ")
	if e.Cause != nil {
		return fmt.Sprintf("%s: %v", msg, e.Cause)
	}
	return msg
}

// Is matches the error kind.
func (e *BackendError) Is(target error) bool {
	return target == e.Kind
}

// Unwrap returns the underlying cause for errors.Is/As.
func (e *BackendError) Unwrap() error {
	return e.Cause
}

// Fallthrough reports whether the orchestrator may try the next transport or
// candidate after this error. Parse errors count as unavailability.
func Fallthrough(err error) bool {
	return errors.Is(err, ErrBackendUnavailable) || errors.Is(err, ErrParse)
}

// RecognitionError is the single terminal error returned when every candidate backend failed.
type RecognitionError struct {
	Attempts []string // "model/transport" in the order tried
	LastErr  error
	Hints    []string
}

func (e *RecognitionError) Error() string {
	var b strings.Builder
	fmt.Fprintf(&b, "recognition failed after %d backend attempt(s)", len(e.Attempts))
	if e.LastErr != nil {
		fmt.Fprintf(&b, ": last error: %v", e.LastErr)
	}
	if len(e.Hints) > 0 {
		b.WriteString("; check: ")
		b.WriteString(strings.Join(e.Hints, "; "))
	}
	return b.String()
}

// Unwrap exposes both the sentinel and the last backend failure.
func (e *RecognitionError) Unwrap() []error {
	if e.LastErr == nil {
		return []error{ErrRecognitionFailed}
	}
	return []error{ErrRecognitionFailed, e.LastErr}
}
