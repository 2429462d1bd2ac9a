package llm

import (
	"errors"
	"fmt"
	"net/http"
)

// Error kinds. Provider adapters wrap every failure in a *ProviderError carrying one of these.
var (
	ErrRateLimited     = errors.New("rate limited")
	ErrUnauthorized    = errors.New("unauthorized")
	ErrUnavailable     = errors.New("provider unavailable")
	ErrInvalidResponse = errors.New("invalid response")
)

var (
	// ErrMissingCredential is a configuration error reported at startup
	ErrMissingCredential = errors.New("missing API credential")

	// ErrAllProvidersFailed is returned when no configured provider produced a reply
	ErrAllProvidersFailed = errors.New("all LLM providers failed")

	// ErrNoProviders is returned when the gateway has nothing to call
	ErrNoProviders = errors.New("no LLM providers configured")
)

// ProviderError is a classified provider failure
type ProviderError struct {
	Provider   string
	StatusCode int
	Kind       error
	Err        error
}

func (e *ProviderError) Error() string {
	if e.StatusCode != 0 {
		return fmt.Sprintf("%s: %v (HTTP %d): %v", e.Provider, e.Kind, e.StatusCode, e.Err)
	}
	return fmt.Sprintf("%s: %v: %v", e.Provider, e.Kind, e.Err)
}

// Unwrap exposes both the kind sentinel and the underlying cause to errors.Is/As
func (e *ProviderError) Unwrap() []error {
	return []error{e.Kind, e.Err}
}

// statusError classifies an HTTP status code
func statusError(provider string, status int, err error) *ProviderError {
	var kind error
	switch {
	case status == http.StatusTooManyRequests:
		kind = ErrRateLimited
	case status == http.StatusUnauthorized || status == http.StatusForbidden:
		kind = ErrUnauthorized
	case status == http.StatusRequestTimeout || status >= 500:
		kind = ErrUnavailable
	default:
		kind = ErrInvalidResponse
	}
	return &ProviderError{Provider: provider, StatusCode: status, Kind: kind, Err: err}
}

// transportError wraps a network/timeout failure
func transportError(provider string, err error) *ProviderError {
	return &ProviderError{Provider: provider, Kind: ErrUnavailable, Err: err}
}

// invalidResponse wraps an undecodable or empty reply
func invalidResponse(provider string, err error) *ProviderError {
	return &ProviderError{Provider: provider, Kind: ErrInvalidResponse, Err: err}
}

func isRetryable(err error) bool {
	return errors.Is(err, ErrRateLimited) || errors.Is(err, ErrUnavailable)
}
