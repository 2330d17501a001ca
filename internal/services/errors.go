package services

import (
	"errors"
	"fmt"
)

// Kind classifies a service failure; handlers map it to an HTTP status.
type Kind int

const (
	KindInternal Kind = iota
	KindBadRequest
	KindUnauthorized
	KindForbidden
	KindNotFound
)

func (k Kind) String() string {
	switch k {
	case KindBadRequest:
		return "bad_request"
	case KindUnauthorized:
		return "unauthorized"
	case KindForbidden:
		return "forbidden"
	case KindNotFound:
		return "not_found"
	default:
		return "internal"
	}
}

// Error is returned by every service operation that fails. Message is safe
// to show to the client; Err, when set, is the underlying cause.
type Error struct {
	Kind    Kind
	Message string
	Err     error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Err)
	}
	return e.Message
}

func (e *Error) Unwrap() error {
	return e.Err
}

// KindOf returns the kind of err, KindInternal for foreign errors.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return KindInternal
}

func badRequest(msg string) error   { return &Error{Kind: KindBadRequest, Message: msg} }
func unauthorized(msg string) error { return &Error{Kind: KindUnauthorized, Message: msg} }
func forbidden(msg string) error    { return &Error{Kind: KindForbidden, Message: msg} }
func notFound(msg string) error     { return &Error{Kind: KindNotFound, Message: msg} }

func internal(msg string, err error) error {
	return &Error{Kind: KindInternal, Message: msg, Err: err}
}
