package client

import (
	"errors"
	"fmt"
)

// HTTPError is a non-2xx response from the auth backend or the diagram service.
type HTTPError struct {
	StatusCode int
	Message    string
}

func (e *HTTPError) Error() string {
	if e.Message == "" {
		return fmt.Sprintf("HTTP %d", e.StatusCode)
	}
	return fmt.Sprintf("HTTP %d: %s", e.StatusCode, e.Message)
}

// StatusOf returns the status code carried by err, or 0 when err is not an
// HTTPError (transport failures, decode errors).
func StatusOf(err error) int {
	var httpErr *HTTPError
	if errors.As(err, &httpErr) {
		return httpErr.StatusCode
	}
	return 0
}

// IsStatus returns true if err (or any wrapped error) is an HTTPError with the given status code.
func IsStatus(err error, code int) bool {
	got := StatusOf(err)
	return got != 0 && got == code
}
