package apiclient

import (
	"errors"
	"fmt"
	"net/http"
	"sort"
)

// Status codes synthesised by the client for failures that never produced an HTTP response.
const (
	StatusNetworkError = 0
	StatusTimeout      = http.StatusRequestTimeout
)

const timeoutMessage = "Request timeout"

// RequestError is the single error shape callers observe for HTTP, transport,
// timeout and decode failures.
type RequestError struct {
	Status  int
	Message string
	Errors  map[string][]string
	Err     error
}

// Error implements the error interface.
func (e *RequestError) Error() string {
	if e == nil {
		return "<nil>"
	}
	return fmt.Sprintf("api request failed (status %d): %s", e.Status, e.Message)
}

// Unwrap exposes the underlying transport or decode error when one exists.
func (e *RequestError) Unwrap() error {
	if e == nil {
		return nil
	}
	return e.Err
}

// Timeout reports whether the request was aborted by a deadline or cancellation.
func (e *RequestError) Timeout() bool {
	return e != nil && e.Status == StatusTimeout
}

// Unauthorized reports whether the backend rejected the credentials.
func (e *RequestError) Unauthorized() bool {
	return e != nil && e.Status == http.StatusUnauthorized
}

// FieldErrors flattens Errors to the first message per field.
func (e *RequestError) FieldErrors() map[string]string {
	if e == nil || len(e.Errors) == 0 {
		return nil
	}
	out := make(map[string]string, len(e.Errors))
	for field, msgs := range e.Errors {
		if len(msgs) > 0 {
			out[field] = msgs[0]
		}
	}
	return out
}

// Fields returns the field names carrying errors in sorted order.
func (e *RequestError) Fields() []string {
	if e == nil {
		return nil
	}
	fields := make([]string, 0, len(e.Errors))
	for field := range e.Errors {
		fields = append(fields, field)
	}
	sort.Strings(fields)
	return fields
}

// AsRequestError extracts a *RequestError from err.
func AsRequestError(err error) (*RequestError, bool) {
	var reqErr *RequestError
	if errors.As(err, &reqErr) {
		return reqErr, true
	}
	return nil, false
}

// Message returns the user-facing message carried by err, falling back to err.Error().
func Message(err error) string {
	if err == nil {
		return ""
	}
	if reqErr, ok := AsRequestError(err); ok && reqErr.Message != "" {
		return reqErr.Message
	}
	return err.Error()
}
