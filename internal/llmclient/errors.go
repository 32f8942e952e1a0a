// internal/llmclient/errors.go
package llmclient

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
)

// ErrEmptyResponse is returned when a provider answers without any text.
// It is treated as transient; a second attempt usually succeeds.
var ErrEmptyResponse = errors.New("model returned an empty response")

// StatusError is a provider failure annotated with the HTTP status it came
// with. StatusCode is 0 when the request never got a response.
type StatusError struct {
	Provider   string
	StatusCode int
	Err        error
}

func (e *StatusError) Error() string {
	if e.StatusCode == 0 {
		return fmt.Sprintf("%s request failed: %v", e.Provider, e.Err)
	}
	return fmt.Sprintf("%s API error (status %d): %v", e.Provider, e.StatusCode, e.Err)
}

func (e *StatusError) Unwrap() error { return e.Err }

// Transient reports whether the request is worth repeating.
func (e *StatusError) Transient() bool {
	switch e.StatusCode {
	case 0,
		http.StatusRequestTimeout,
		http.StatusTooManyRequests,
		http.StatusInternalServerError,
		http.StatusBadGateway,
		http.StatusServiceUnavailable,
		http.StatusGatewayTimeout:
		return true
	}
	return false
}

// IsTransient decides whether err should be retried. Context errors never
// are: the caller has given up.
func IsTransient(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return false
	}
	if errors.Is(err, ErrEmptyResponse) {
		return true
	}
	var se *StatusError
	if errors.As(err, &se) {
		return se.Transient()
	}
	var ne net.Error
	return errors.As(err, &ne)
}
