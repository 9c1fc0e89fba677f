package errs

import (
	"errors"
	"fmt"
	"net/http"
)

var (
	// ErrConfiguration is returned when a credential or required setting is missing.
	ErrConfiguration = errors.New("configuration error")
	// ErrNotConnected is a configuration error for a provider whose tokens were never stored or were disconnected.
	ErrNotConnected = fmt.Errorf("%w: provider not connected", ErrConfiguration)
	ErrValidation   = errors.New("validation error")
	ErrUnknownTool  = errors.New("unknown tool")
	// ErrMaxIterations stops the agent loop when the model keeps requesting tools.
	ErrMaxIterations = errors.New("max iterations reached")
	ErrNotFound      = errors.New("not found")
	ErrUnauthorized  = errors.New("unauthorized")
)

// ProviderError wraps an upstream HTTP failure or transport error.
type ProviderError struct {
	Provider   string
	StatusCode int
	Body       string
	Err        error
}

func (e *ProviderError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s provider error: %v", e.Provider, e.Err)
	}
	return fmt.Sprintf("%s provider error (%d): %s", e.Provider, e.StatusCode, e.Body)
}

func (e *ProviderError) Unwrap() error {
	return e.Err
}

// NewStatusError builds a ProviderError from a non-success response.
func NewStatusError(provider string, statusCode int, body []byte) error {
	text := string(body)
	if len(text) > 512 {
		text = text[:512]
	}
	return &ProviderError{Provider: provider, StatusCode: statusCode, Body: text}
}

// NewTransportError builds a ProviderError from a failed request.
func NewTransportError(provider string, err error) error {
	return &ProviderError{Provider: provider, Err: err}
}

func Configuration(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrConfiguration, fmt.Sprintf(format, args...))
}

func Validation(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrValidation, fmt.Sprintf(format, args...))
}

func NotFound(what string) error {
	return fmt.Errorf("%s %w", what, ErrNotFound)
}

// IsProvider reports whether err came from an upstream provider.
func IsProvider(err error) bool {
	var pe *ProviderError
	return errors.As(err, &pe)
}

// HTTPStatus maps an error to the status code handlers respond with.
func HTTPStatus(err error) int {
	switch {
	case errors.Is(err, ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, ErrValidation):
		return http.StatusBadRequest
	case errors.Is(err, ErrNotConnected):
		return http.StatusConflict
	case errors.Is(err, ErrUnauthorized):
		return http.StatusUnauthorized
	default:
		return http.StatusInternalServerError
	}
}
