// Package problem maps every failure the client can produce into the closed
// set of typed errors that pages are allowed to render.
package problem

import (
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/Togather-Foundation/eventhive/internal/gateway"
	"github.com/Togather-Foundation/eventhive/internal/session"
)

// Kind is the closed failure taxonomy.
type Kind string

const (
	// Local, pre-network failures.
	KindIncompleteDraft Kind = "incomplete_draft"
	KindMissingImage    Kind = "missing_image"
	KindInvalidInput    Kind = "invalid_input"

	// Remote failures.
	KindUnauthenticated Kind = "unauthenticated"
	KindForbidden       Kind = "forbidden"
	KindNotFound        Kind = "not_found"
	KindServerError     Kind = "server_error"
	KindNetworkError    Kind = "network_error"
	KindRejected        Kind = "rejected"

	// Display-only claims decoding failure.
	KindDecodeFailure Kind = "decode_failure"

	// Anything the mapping does not recognise.
	KindUnexpected Kind = "unexpected"
)

// User-facing messages.
const (
	MsgSessionExpired     = "Session expired. Please sign in again."
	MsgInvalidCredentials = "Invalid email or password."
	MsgGeneric            = "Something went wrong. Please try again."
	MsgNetwork            = "Could not reach the server. Check your connection and try again."
	MsgMissingImage       = "Please upload an event image."
	MsgDecodeFailure      = "Could not read account details from the session."
	MsgUnreadableReply    = "The server accepted the request but its reply could not be read. Check the result before trying again."
)

// Problem is the only failure shape pages render.
type Problem struct {
	Kind      Kind
	Message   string
	Retryable bool
	// Status is the HTTP status behind a remote failure, zero otherwise.
	Status int
	// Fields names the draft or form fields a local failure is about.
	Fields []string
	Err    error
}

func (p *Problem) Error() string {
	if p.Err != nil {
		return fmt.Sprintf("%s: %s: %v", p.Kind, p.Message, p.Err)
	}
	return fmt.Sprintf("%s: %s", p.Kind, p.Message)
}

func (p *Problem) Unwrap() error {
	return p.Err
}

// NeedsSignIn reports whether the page should offer a direct sign-in action.
func (p *Problem) NeedsSignIn() bool {
	return p.Kind == KindUnauthenticated
}

// IncompleteDraft builds the local failure for missing draft fields.
func IncompleteDraft(fields ...string) *Problem {
	msg := "Please fill in all required fields before generating a description."
	if len(fields) > 0 {
		msg = fmt.Sprintf("Please fill in all required fields before generating a description (missing: %s).", strings.Join(fields, ", "))
	}
	return &Problem{Kind: KindIncompleteDraft, Message: msg, Fields: fields}
}

// MissingImage builds the local failure for a submission without an image.
func MissingImage() *Problem {
	return &Problem{Kind: KindMissingImage, Message: MsgMissingImage, Fields: []string{"image"}}
}

// InvalidInput builds a local form validation failure.
func InvalidInput(message string, fields ...string) *Problem {
	return &Problem{Kind: KindInvalidInput, Message: message, Fields: fields}
}

// Is matches on Kind so callers can write errors.Is(err, &Problem{Kind: KindMissingImage}).
func (p *Problem) Is(target error) bool {
	t, ok := target.(*Problem)
	if !ok {
		return false
	}
	return t.Kind == p.Kind
}

// Normalize maps any error to a *Problem. A nil error yields nil, an existing
// *Problem passes through unchanged.
func Normalize(err error) *Problem {
	if err == nil {
		return nil
	}

	var p *Problem
	if errors.As(err, &p) {
		return p
	}

	var gwErr *gateway.Error
	if errors.As(err, &gwErr) {
		return fromGateway(gwErr)
	}

	if errors.Is(err, session.ErrDecodeFailure) {
		return &Problem{Kind: KindDecodeFailure, Message: MsgDecodeFailure, Err: err}
	}

	return &Problem{Kind: KindUnexpected, Message: MsgGeneric, Retryable: true, Err: err}
}

func fromGateway(e *gateway.Error) *Problem {
	p := &Problem{Status: e.Status, Err: e}

	switch e.Kind {
	case gateway.KindUnauthenticated:
		p.Kind = KindUnauthenticated
		if e.Domain == session.None {
			// Credential exchange (sign-in) rather than an expired session.
			p.Message = orDefault(e.Message, MsgInvalidCredentials)
		} else {
			p.Message = MsgSessionExpired
		}
	case gateway.KindForbidden:
		p.Kind = KindForbidden
		p.Message = fmt.Sprintf("Access denied. %s role required.", e.Domain.Label())
	case gateway.KindNotFound:
		p.Kind = KindNotFound
		p.Message = orDefault(e.Message, MsgGeneric)
		p.Retryable = true
	case gateway.KindServerError:
		p.Kind = KindServerError
		p.Message = orDefault(e.Message, MsgGeneric)
		p.Retryable = true
	case gateway.KindNetworkError:
		p.Kind = KindNetworkError
		p.Message = MsgNetwork
		p.Retryable = true
	case gateway.KindRejected:
		p.Kind = KindRejected
		p.Message = orDefault(e.Message, MsgGeneric)
	case gateway.KindMalformed:
		p.Kind = KindUnexpected
		if e.Status != 0 && !idempotentMethod(e.Method) {
			// The server already acted on the request; repeating it may duplicate the effect.
			p.Message = MsgUnreadableReply
			break
		}
		p.Message = MsgGeneric
		p.Retryable = true
	default:
		p.Kind = KindUnexpected
		p.Message = MsgGeneric
		p.Retryable = true
	}
	return p
}

func idempotentMethod(method string) bool {
	switch method {
	case http.MethodGet, http.MethodHead, http.MethodOptions, http.MethodPut, http.MethodDelete:
		return true
	}
	return false
}

func orDefault(message, fallback string) string {
	if message == "" {
		return fallback
	}
	return message
}
