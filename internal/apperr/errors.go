// Package apperr classifies failures surfaced by the rating client.
package apperr

import (
	"context"
	"errors"
	"fmt"
)

// Type identifies a category of failure.
type Type string

const (
	TypeValidation        Type = "VALIDATION"
	TypeAuthentication    Type = "AUTHENTICATION"
	TypeRemote            Type = "REMOTE"
	TypeTimeout           Type = "TIMEOUT"
	TypeMalformedResponse Type = "MALFORMED_RESPONSE"
	TypeNotFound          Type = "NOT_FOUND"
)

// Typed is implemented by every classified error, including the field-level
// validation errors of the rating package.
type Typed interface {
	error
	ErrorType() Type
}

// Error is a classified application error.
type Error struct {
	Type    Type
	Message string
	Err     error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Type, e.Message, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Type, e.Message)
}

func (e *Error) Unwrap() error {
	return e.Err
}

// ErrorType implements Typed.
func (e *Error) ErrorType() Type {
	return e.Type
}

// NewValidation creates a validation error without field detail.
func NewValidation(message string) *Error {
	return &Error{Type: TypeValidation, Message: message}
}

// NewAuthentication creates an error for a missing or rejected session.
func NewAuthentication(message string) *Error {
	return &Error{Type: TypeAuthentication, Message: message}
}

// NewRemote wraps a failure reported by (or while talking to) a collaborator.
func NewRemote(message string, err error) *Error {
	return &Error{Type: TypeRemote, Message: message, Err: err}
}

// NewTimeout reports that a collaborator did not answer in time.
func NewTimeout(message string, err error) *Error {
	return &Error{Type: TypeTimeout, Message: message, Err: err}
}

// NewMalformedResponse reports a collaborator response that does not decode
// into the expected shape.
func NewMalformedResponse(message string, err error) *Error {
	return &Error{Type: TypeMalformedResponse, Message: message, Err: err}
}

// NewNotFound creates a not-found error.
func NewNotFound(message string) *Error {
	return &Error{Type: TypeNotFound, Message: message}
}

// TypeOf returns the type of the first classified error in err's chain, or
// the empty Type when err is unclassified.
func TypeOf(err error) Type {
	var typed Typed
	if errors.As(err, &typed) {
		return typed.ErrorType()
	}
	return ""
}

// Is reports whether err is classified as t.
func Is(err error, t Type) bool {
	return err != nil && TypeOf(err) == t
}

// FromCollaborator classifies an error returned by a collaborator call made
// under ctx. Classified errors pass through; an expired deadline becomes a
// timeout and anything else a remote error.
func FromCollaborator(ctx context.Context, op string, err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(ctx.Err(), context.DeadlineExceeded) {
		return NewTimeout(op+" timed out", err)
	}
	if TypeOf(err) != "" {
		return err
	}
	return NewRemote(op+" failed", err)
}

// UserMessage renders err for display.
func UserMessage(err error) string {
	if err == nil {
		return ""
	}
	var typed Typed
	if !errors.As(err, &typed) {
		return "Something went wrong. Please try again."
	}
	switch typed.ErrorType() {
	case TypeValidation:
		var appErr *Error
		if errors.As(err, &appErr) {
			return appErr.Message
		}
		return typed.Error()
	case TypeAuthentication:
		return "You need to be logged in to do that."
	case TypeTimeout:
		return "The server took too long to answer. Please try again."
	case TypeMalformedResponse:
		return "The server sent an unexpected response."
	case TypeNotFound:
		return "The requested item could not be found."
	default:
		return "Could not reach the server. Please try again."
	}
}
