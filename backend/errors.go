package backend

import (
	"fmt"
	"net/http"

	donorAuth "github.com/bloodlink/donorauth"
)

// APIError is a non-2xx answer from the backend. Message is the server's
// {"message": ...} text when it sent one; it is meant for logs, not users.
type APIError struct {
	StatusCode int
	Message    string
	RequestID  string
	Method     string
	Path       string
}

func (e *APIError) Error() string {
	msg := e.Message
	if msg == "" {
		msg = http.StatusText(e.StatusCode)
	}
	return fmt.Sprintf("%s %s: %d %s", e.Method, e.Path, e.StatusCode, msg)
}

// Unwrap exposes the donorAuth sentinels the status maps to.
func (e *APIError) Unwrap() []error {
	switch e.StatusCode {
	case http.StatusUnauthorized:
		return []error{donorAuth.ErrBackend, donorAuth.ErrUnauthenticated}
	case http.StatusForbidden:
		return []error{donorAuth.ErrBackend, donorAuth.ErrForbidden}
	default:
		return []error{donorAuth.ErrBackend}
	}
}
