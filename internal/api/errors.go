package api

import (
	"context"
	"errors"
	"fmt"

	"expenex/internal/core"
)

// ErrorKind classifies a failure for logging and for the 401 redirect.
type ErrorKind string

const (
	KindTransport    ErrorKind = "transport"
	KindServer       ErrorKind = "server"
	KindValidation   ErrorKind = "validation"
	KindUnauthorized ErrorKind = "unauthorized"
	KindNotFound     ErrorKind = "not_found"
)

var (
	ErrUnauthorized = errors.New("unauthorized")
	ErrNotFound     = errors.New("not found")
)

// Error is returned by every Client call that fails after the request was built.
type Error struct {
	Kind ErrorKind
	Op   string
	// Status is the HTTP status, 0 for transport failures.
	Status int
	// Message is the server supplied "message" field, if any.
	Message string
	Err     error
}

func (e *Error) Error() string {
	switch {
	case e.Message != "":
		return fmt.Sprintf("%s: %s (status %d): %s", e.Op, e.Kind, e.Status, e.Message)
	case e.Err != nil:
		return fmt.Sprintf("%s: %s: %v", e.Op, e.Kind, e.Err)
	default:
		return fmt.Sprintf("%s: %s (status %d)", e.Op, e.Kind, e.Status)
	}
}

func (e *Error) Unwrap() error { return e.Err }

func (e *Error) Is(target error) bool {
	switch target {
	case ErrUnauthorized:
		return e.Kind == KindUnauthorized
	case ErrNotFound:
		return e.Kind == KindNotFound
	}
	return false
}

// Classify maps any error seen by a page to its kind. Client-side required
// field failures are validation errors; unknown errors count as server errors.
func Classify(err error) ErrorKind {
	var apiErr *Error
	switch {
	case err == nil:
		return ""
	case errors.As(err, &apiErr):
		return apiErr.Kind
	case errors.Is(err, core.ErrMissingFields),
		errors.Is(err, core.ErrInvalidAmount),
		errors.Is(err, core.ErrInvalidCategory),
		errors.Is(err, core.ErrInvalidRange),
		errors.Is(err, core.ErrIncompleteDate):
		return KindValidation
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return KindTransport
	}
	return KindServer
}

// Message returns the server supplied message carried by err, or fallback.
func Message(err error, fallback string) string {
	var apiErr *Error
	if errors.As(err, &apiErr) && apiErr.Message != "" {
		return apiErr.Message
	}
	return fallback
}
