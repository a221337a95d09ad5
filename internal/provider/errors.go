package provider

import (
	"errors"
	"fmt"
	"net/http"
)

var ErrNotFound = errors.New("user not found")

// Error is a failure reported by an identity provider. Its message is the
// provider's own text so it can be shown to the operator unchanged.
type Error struct {
	Op         string
	StatusCode int
	Message    string
	Err        error
}

func (e *Error) Error() string {
	if e.Message != "" {
		return e.Message
	}
	if e.Err != nil {
		return e.Err.Error()
	}
	if e.StatusCode != 0 {
		return fmt.Sprintf("%s: HTTP %d", e.Op, e.StatusCode)
	}
	return ""
}

func (e *Error) Unwrap() error { return e.Err }

// Temporary reports whether retrying the same call may succeed: network
// failures, 408, 429 and 5xx responses.
func (e *Error) Temporary() bool {
	switch {
	case e.StatusCode == 0:
		return e.Err != nil && !errors.Is(e.Err, ErrNotFound)
	case e.StatusCode == http.StatusRequestTimeout, e.StatusCode == http.StatusTooManyRequests:
		return true
	case e.StatusCode >= 500:
		return true
	}
	return false
}

// IsTemporary reports whether err carries a temporary provider failure.
func IsTemporary(err error) bool {
	var perr *Error
	if errors.As(err, &perr) {
		return perr.Temporary()
	}
	return false
}
