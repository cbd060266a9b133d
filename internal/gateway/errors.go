package gateway

import (
	"errors"
	"fmt"
	"net/http"

	"github.com/Togather-Foundation/eventhive/internal/session"
)

// Kind classifies a failed gateway call.
type Kind string

const (
	// KindUnauthenticated: no session, or the server rejected the credential (401).
	KindUnauthenticated Kind = "unauthenticated"
	// KindForbidden: the credential is valid but lacks privilege (403).
	KindForbidden Kind = "forbidden"
	// KindNotFound: 404.
	KindNotFound Kind = "not_found"
	// KindServerError: any 5xx.
	KindServerError Kind = "server_error"
	// KindNetworkError: no response reached the client.
	KindNetworkError Kind = "network_error"
	// KindRejected: any other 4xx, usually a validation failure.
	KindRejected Kind = "rejected"
	// KindMalformed: a 2xx response whose body could not be decoded.
	KindMalformed Kind = "malformed"
)

// ErrNoSession marks an Unauthenticated failure raised before dispatch.
var ErrNoSession = errors.New("no session for domain")

// Error is the failure returned by Client.Do.
type Error struct {
	Kind   Kind
	Domain session.Domain
	Method string
	Path   string
	// Status is the HTTP status code; zero when no response was received.
	Status int
	// Message is the server-supplied {"error": "..."} text, if any.
	Message string
	Err     error
}

func (e *Error) Error() string {
	switch {
	case e.Status != 0 && e.Message != "":
		return fmt.Sprintf("%s %s: %s (%d): %s", e.Method, e.Path, e.Kind, e.Status, e.Message)
	case e.Status != 0:
		return fmt.Sprintf("%s %s: %s (%d)", e.Method, e.Path, e.Kind, e.Status)
	case e.Err != nil:
		return fmt.Sprintf("%s %s: %s: %v", e.Method, e.Path, e.Kind, e.Err)
	default:
		return fmt.Sprintf("%s %s: %s", e.Method, e.Path, e.Kind)
	}
}

func (e *Error) Unwrap() error {
	return e.Err
}

// Dispatched reports whether the request reached the network.
func (e *Error) Dispatched() bool {
	return !errors.Is(e.Err, ErrNoSession)
}

// KindOf returns the Kind of a gateway error, or "" for other errors.
func KindOf(err error) Kind {
	var gwErr *Error
	if errors.As(err, &gwErr) {
		return gwErr.Kind
	}
	return ""
}

func kindForStatus(status int) Kind {
	switch {
	case status == http.StatusUnauthorized:
		return KindUnauthenticated
	case status == http.StatusForbidden:
		return KindForbidden
	case status == http.StatusNotFound:
		return KindNotFound
	case status >= http.StatusInternalServerError:
		return KindServerError
	default:
		return KindRejected
	}
}
