// Package apierrors is the transport-independent error taxonomy shared by the
// RBAC repository, key registry, and JWT signer. Every error returned across
// a component boundary is one of the kinds defined here so that an (external,
// out-of-scope) transport layer can map them to HTTP status codes without
// inspecting implementation details.
package apierrors

import (
	"errors"
	"fmt"
	"net/http"
)

// Kind classifies an error for status-code mapping and programmatic checks.
type Kind int

const (
	KindUnknown Kind = iota
	KindValidationFailed
	KindNotFound
	KindAlreadyExists
	KindUnauthorized
	KindForbidden
	KindTransactionAborted
	KindSigningUnavailable
	KindSigningForbidden
	KindInternal
)

// Error is the concrete error type for every taxonomy kind.
type Error struct {
	Kind Kind

	// Field/Reason populate ValidationFailed.
	Field  string
	Reason string

	// Identity/EntityKind populate NotFound and AlreadyExists.
	EntityKind string
	Identity   string

	// Cause populates TransactionAborted and wraps any underlying error.
	Cause error

	// Conflict distinguishes a TransactionAborted caused by a concurrent
	// writer (409) from any other aborting cause (503).
	Conflict bool
}

func (e *Error) Error() string {
	switch e.Kind {
	case KindValidationFailed:
		return fmt.Sprintf("validation failed: field %q: %s", e.Field, e.Reason)
	case KindNotFound:
		return fmt.Sprintf("%s not found: %s", e.EntityKind, e.Identity)
	case KindAlreadyExists:
		return fmt.Sprintf("%s already exists: %s", e.EntityKind, e.Identity)
	case KindUnauthorized:
		return "unauthorized"
	case KindForbidden:
		return "forbidden"
	case KindTransactionAborted:
		if e.Cause != nil {
			return fmt.Sprintf("transaction aborted: %v", e.Cause)
		}
		return "transaction aborted"
	case KindSigningUnavailable:
		return "signing service unavailable"
	case KindSigningForbidden:
		return "signing request denied"
	case KindInternal:
		if e.Cause != nil {
			return fmt.Sprintf("internal error: %v", e.Cause)
		}
		return "internal error"
	default:
		return "unknown error"
	}
}

func (e *Error) Unwrap() error { return e.Cause }

// Is supports errors.Is comparisons against the sentinel values below by
// comparing Kind only, ignoring the instance-specific fields.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	return e.Kind == t.Kind
}

// StatusCode maps the error kind to the HTTP status spec §6 assigns it. The
// (out-of-scope) transport layer is expected to call this; apierrors itself
// never constructs an http.Handler or http.ResponseWriter.
func (e *Error) StatusCode() int {
	switch e.Kind {
	case KindValidationFailed:
		return http.StatusUnprocessableEntity
	case KindNotFound:
		return http.StatusNotFound
	case KindAlreadyExists:
		return http.StatusConflict
	case KindUnauthorized:
		return http.StatusUnauthorized
	case KindForbidden:
		return http.StatusForbidden
	case KindTransactionAborted:
		if e.Conflict {
			return http.StatusConflict
		}
		return http.StatusServiceUnavailable
	case KindSigningUnavailable:
		return http.StatusServiceUnavailable
	case KindSigningForbidden:
		return http.StatusInternalServerError
	default:
		return http.StatusInternalServerError
	}
}

// Sentinel values for errors.Is comparisons, e.g. errors.Is(err, apierrors.ErrNotFound).
var (
	ErrValidationFailed   = &Error{Kind: KindValidationFailed}
	ErrNotFound           = &Error{Kind: KindNotFound}
	ErrAlreadyExists      = &Error{Kind: KindAlreadyExists}
	ErrUnauthorized       = &Error{Kind: KindUnauthorized}
	ErrForbidden          = &Error{Kind: KindForbidden}
	ErrTransactionAborted = &Error{Kind: KindTransactionAborted}
	ErrSigningUnavailable = &Error{Kind: KindSigningUnavailable}
	ErrSigningForbidden   = &Error{Kind: KindSigningForbidden}
	ErrInternal           = &Error{Kind: KindInternal}
)

// NewValidationFailed builds a ValidationFailed error for the named field.
func NewValidationFailed(field, reason string) *Error {
	return &Error{Kind: KindValidationFailed, Field: field, Reason: reason}
}

// NewNotFound builds a NotFound error for the given entity kind/identity.
func NewNotFound(entityKind, identity string) *Error {
	return &Error{Kind: KindNotFound, EntityKind: entityKind, Identity: identity}
}

// NewAlreadyExists builds an AlreadyExists error for the given entity kind/identity.
func NewAlreadyExists(entityKind, identity string) *Error {
	return &Error{Kind: KindAlreadyExists, EntityKind: entityKind, Identity: identity}
}

// NewTransactionAborted wraps the underlying store error; conflict indicates
// the abort was caused by a concurrent writer (maps to 409 instead of 503).
func NewTransactionAborted(cause error, conflict bool) *Error {
	return &Error{Kind: KindTransactionAborted, Cause: cause, Conflict: conflict}
}

// NewInternal wraps an unexpected error.
func NewInternal(cause error) *Error {
	return &Error{Kind: KindInternal, Cause: cause}
}

// AggregateError collects multiple independent violations discovered in a
// single validation pass (key registry startup) and reports them together
// instead of failing on the first.
type AggregateError struct {
	Errors []error
}

func (a *AggregateError) Error() string {
	return errors.Join(a.Errors...).Error()
}

func (a *AggregateError) Unwrap() []error { return a.Errors }

// Add appends a violation. No-op if err is nil.
func (a *AggregateError) Add(err error) {
	if err == nil {
		return
	}
	a.Errors = append(a.Errors, err)
}

// ErrorOrNil returns the aggregate if it has any member errors, else nil --
// a nil *AggregateError converted to error would otherwise be a non-nil
// interface with a nil underlying value.
func (a *AggregateError) ErrorOrNil() error {
	if a == nil || len(a.Errors) == 0 {
		return nil
	}
	return a
}
