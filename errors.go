package llmwire

import (
	"errors"
	"fmt"
	"runtime"
)

// Sentinel errors for common failure modes.
// These can be checked with errors.Is().
var (
	// ErrInvalidAPIKey indicates the API key is missing, malformed, or unauthorized.
	ErrInvalidAPIKey = errors.New("llmwire: invalid API key")

	// ErrRateLimited indicates the provider's rate limit has been exceeded.
	ErrRateLimited = errors.New("llmwire: rate limit exceeded")

	// ErrTimeout indicates the provider timed out the request.
	ErrTimeout = errors.New("llmwire: request timeout")

	// ErrUnsupportedFeature indicates the requested feature is not available for a provider.
	ErrUnsupportedFeature = errors.New("llmwire: unsupported feature")

	// ErrInvalidRequest indicates the request parameters are invalid.
	ErrInvalidRequest = errors.New("llmwire: invalid request")

	// ErrCast indicates a payload could not be normalized into a canonical type.
	ErrCast = errors.New("llmwire: cast failed")

	// ErrProviderUnavailable indicates the provider service is down or unreachable.
	ErrProviderUnavailable = errors.New("llmwire: provider unavailable")

	// ErrUnknownProvider indicates a provider id is not registered.
	ErrUnknownProvider = errors.New("llmwire: unknown provider")

	// ErrStreamIncomplete indicates a stream ended before a terminal chunk.
	// The partially accumulated message must not be treated as a result.
	ErrStreamIncomplete = errors.New("llmwire: stream ended before completion")
)

// ValidationError represents a request that fails field-level constraints
// before any network call. It is never retried.
type ValidationError struct {
	Field  string // The parameter field that failed validation
	Value  any    // The invalid value
	Reason string // Human-readable constraint
	Err    error  // Wrapped error (usually ErrInvalidRequest)
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("validation failed for '%s' (value: %v): %s", e.Field, e.Value, e.Reason)
}

func (e *ValidationError) Unwrap() error {
	if e.Err == nil {
		return ErrInvalidRequest
	}
	return e.Err
}

// CastError represents a content block, message, or tool payload with an
// unrecognized discriminator or malformed shape. It is never retried.
type CastError struct {
	Kind     string     // What was being cast: "content", "role", "tool", ...
	Value    any        // The offending value or discriminator
	Reason   string     // Human-readable explanation
	Provider ProviderID // Registry that rejected the value, if any
}

func (e *CastError) Error() string {
	if e.Provider != "" {
		return fmt.Sprintf("%s: cannot cast %s (%v): %s", e.Provider, e.Kind, e.Value, e.Reason)
	}
	return fmt.Sprintf("cannot cast %s (%v): %s", e.Kind, e.Value, e.Reason)
}

func (e *CastError) Unwrap() error {
	return ErrCast
}

// ProviderError represents an error from the underlying provider API.
type ProviderError struct {
	Provider   ProviderID // The provider name
	StatusCode int        // HTTP status code (if applicable)
	Message    string     // Error message from provider
	Retryable  bool       // Whether this error is transient
	Err        error      // Wrapped sentinel error (ErrRateLimited, ErrProviderUnavailable, etc.)
}

func (e *ProviderError) Error() string {
	if e.StatusCode > 0 {
		return fmt.Sprintf("provider '%s' error (status %d): %s", e.Provider, e.StatusCode, e.Message)
	}
	return fmt.Sprintf("provider '%s' error: %s", e.Provider, e.Message)
}

func (e *ProviderError) Unwrap() error {
	return e.Err
}

// ParseError reports a structured-output body that is not valid JSON.
// It is informational: the pipeline logs it and keeps the raw string.
type ParseError struct {
	Raw string
	Err error
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("structured output is not valid JSON: %v", e.Err)
}

func (e *ParseError) Unwrap() error {
	return e.Err
}

// GenerationProviderError is the single normalized error surfaced for
// provider failures, after retries are exhausted or immediately for
// non-retryable errors.
type GenerationProviderError struct {
	Provider ProviderID
	Message  string
	Class    string         // Go type of the original error, e.g. "*llmwire.ProviderError"
	Attempts int            // Number of attempts made
	Frames   []runtime.Frame // Call stack captured where the original error was wrapped
	Verbose  bool
	Err      error
}

func (e *GenerationProviderError) Error() string {
	if e.Verbose && e.Class != "" {
		return fmt.Sprintf("%s: %s", e.Class, e.Message)
	}
	return e.Message
}

func (e *GenerationProviderError) Unwrap() error {
	return e.Err
}

// wrapGenerationError normalizes err into a *GenerationProviderError.
func wrapGenerationError(provider ProviderID, err error, attempts int, verbose bool) *GenerationProviderError {
	var existing *GenerationProviderError
	if errors.As(err, &existing) {
		return existing
	}
	return &GenerationProviderError{
		Provider: provider,
		Message:  err.Error(),
		Class:    fmt.Sprintf("%T", err),
		Attempts: attempts,
		Frames:   callerFrames(3),
		Verbose:  verbose,
		Err:      err,
	}
}

func callerFrames(skip int) []runtime.Frame {
	pcs := make([]uintptr, 32)
	n := runtime.Callers(skip, pcs)
	frames := runtime.CallersFrames(pcs[:n])

	var out []runtime.Frame
	for {
		frame, more := frames.Next()
		out = append(out, frame)
		if !more {
			break
		}
	}
	return out
}

// IsRetryable checks if an error is potentially retryable.
// Returns true for rate limits, timeouts and temporary unavailability.
func IsRetryable(err error) bool {
	if err == nil {
		return false
	}

	var providerErr *ProviderError
	if errors.As(err, &providerErr) {
		return providerErr.Retryable
	}

	return errors.Is(err, ErrRateLimited) ||
		errors.Is(err, ErrTimeout) ||
		errors.Is(err, ErrProviderUnavailable)
}

// IsInvalidRequest checks if an error indicates invalid request parameters.
// These errors are not retryable and require request changes.
func IsInvalidRequest(err error) bool {
	if err == nil {
		return false
	}

	if errors.Is(err, ErrInvalidRequest) || errors.Is(err, ErrUnsupportedFeature) {
		return true
	}

	var validationErr *ValidationError
	return errors.As(err, &validationErr)
}

// IsCastError checks if an error came from normalization of a malformed payload.
func IsCastError(err error) bool {
	var castErr *CastError
	return errors.As(err, &castErr)
}

// IsAuthError checks if an error is related to authentication.
func IsAuthError(err error) bool {
	if err == nil {
		return false
	}

	if errors.Is(err, ErrInvalidAPIKey) {
		return true
	}

	var providerErr *ProviderError
	if errors.As(err, &providerErr) {
		return providerErr.StatusCode == 401 || providerErr.StatusCode == 403
	}

	return false
}
