// Package apperr defines the error kinds surfaced by the trust engine and maps
// them to the small set of outcomes the HTTP boundary exposes.
package apperr

import (
	"errors"
	"fmt"
	"net/http"
)

// Kind classifies an error by how the caller should react to it.
type Kind string

const (
	KindUnauthorized       Kind = "UNAUTHORIZED"
	KindForbidden          Kind = "FORBIDDEN"
	KindNotFound           Kind = "NOT_FOUND"
	KindInvalidInput       Kind = "INVALID_INPUT"
	KindConflictingState   Kind = "CONFLICTING_STATE"
	KindPersistenceFailure Kind = "PERSISTENCE_FAILURE"
)

// Error is a classified error. Err, when set, is the underlying cause.
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

// Is lets errors.Is match on kind alone, e.g. errors.Is(err, apperr.ErrNotFound).
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	return t.Message == "" && t.Err == nil && t.Kind == e.Kind
}

// Sentinels usable with errors.Is.
var (
	ErrUnauthorized       = &Error{Kind: KindUnauthorized}
	ErrForbidden          = &Error{Kind: KindForbidden}
	ErrNotFound           = &Error{Kind: KindNotFound}
	ErrInvalidInput       = &Error{Kind: KindInvalidInput}
	ErrConflictingState   = &Error{Kind: KindConflictingState}
	ErrPersistenceFailure = &Error{Kind: KindPersistenceFailure}
)

func Unauthorized(format string, args ...any) error {
	return &Error{Kind: KindUnauthorized, Message: fmt.Sprintf(format, args...)}
}

func Forbidden(format string, args ...any) error {
	return &Error{Kind: KindForbidden, Message: fmt.Sprintf(format, args...)}
}

func NotFound(format string, args ...any) error {
	return &Error{Kind: KindNotFound, Message: fmt.Sprintf(format, args...)}
}

func InvalidInput(format string, args ...any) error {
	return &Error{Kind: KindInvalidInput, Message: fmt.Sprintf(format, args...)}
}

func Conflict(format string, args ...any) error {
	return &Error{Kind: KindConflictingState, Message: fmt.Sprintf(format, args...)}
}

// Persistence wraps a store failure. A nil cause returns nil.
func Persistence(err error, msg string) error {
	if err == nil {
		return nil
	}
	return &Error{Kind: KindPersistenceFailure, Message: msg, Err: err}
}

// KindOf returns the kind of err. Unclassified errors count as persistence
// failures since they can only originate below the engine.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return KindPersistenceFailure
}

// HTTPStatus maps err to the status code returned at the boundary.
func HTTPStatus(err error) int {
	switch KindOf(err) {
	case KindUnauthorized:
		return http.StatusUnauthorized
	case KindForbidden:
		return http.StatusForbidden
	case KindNotFound:
		return http.StatusNotFound
	case KindInvalidInput:
		return http.StatusBadRequest
	case KindConflictingState:
		return http.StatusConflict
	default:
		return http.StatusInternalServerError
	}
}

// PublicMessage returns text safe to show a client. Persistence failures never
// expose their cause.
func PublicMessage(err error) string {
	var e *Error
	if !errors.As(err, &e) || e.Kind == KindPersistenceFailure {
		return "internal server error"
	}
	return e.Message
}

// ErrLedgerWrite marks a failed audit ledger insert. The account mutation it
// accompanied was rolled back.
var ErrLedgerWrite = errors.New("audit ledger write failed")

// ErrCommitUnknown marks a failed transaction commit. Whether the account
// mutation and its ledger entry persisted is unknown to the caller.
var ErrCommitUnknown = errors.New("transaction commit failed")
