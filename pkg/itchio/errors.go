package itchio

import (
	"errors"
	"fmt"
	"strings"
)

// ErrEmptyKey is returned when a session is used without an API key
var ErrEmptyKey = errors.New("itchio: empty API key")

// HTTPError is a wire-level failure: the server answered with a non-200 status
type HTTPError struct {
	StatusCode int
}

func (e *HTTPError) Error() string {
	return fmt.Sprintf("HTTP %d", e.StatusCode)
}

// APIError is a failure reported by the backend in the errors field of the body
type APIError struct {
	Errors []string
}

func (e *APIError) Error() string {
	return strings.Join(e.Errors, ", ")
}

func (e *APIError) String() string {
	return "API Error: " + e.Error()
}

// IsAPIError reports whether err is, or wraps, an *APIError
func IsAPIError(err error) bool {
	var apiErr *APIError
	return errors.As(err, &apiErr)
}

// StatusCode returns the status carried by an *HTTPError in err's chain, or 0
func StatusCode(err error) int {
	var httpErr *HTTPError
	if errors.As(err, &httpErr) {
		return httpErr.StatusCode
	}
	return 0
}
