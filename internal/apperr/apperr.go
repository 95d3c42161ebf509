// Package apperr defines the error taxonomy returned by the engagement ledger.
// The kind of an error is stable; its message text is not.
package apperr

import (
	"context"
	"errors"
	"fmt"
)

// Kind classifies a ledger failure.
type Kind string

const (
	KindNotFound     Kind = "not_found"
	KindNotAllowed   Kind = "not_allowed"
	KindCapacityFull Kind = "capacity_full"
	// KindCapacity rejects a capacity edit that would drop below the
	// current attendee count.
	KindCapacity   Kind = "capacity"
	KindState      Kind = "invalid_state"
	KindValidation Kind = "validation"
	// KindConflict and KindUnavailable are retryable by the caller.
	KindConflict    Kind = "conflict"
	KindUnavailable Kind = "unavailable"
)

// Reasons refine a kind without changing how it is classified.
const (
	ReasonNotHost         = "not_host"
	ReasonAlreadyReserved = "already_reserved"
	ReasonAlreadyUpvoted  = "already_upvoted"
)

// Error is the typed failure surfaced by every ledger operation.
type Error struct {
	Kind    Kind
	Reason  string
	Message string
	Cause   error
}

// Error implements the error interface.
func (e *Error) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Cause)
	}
	return e.Message
}

// Unwrap returns the underlying cause for error chain traversal.
func (e *Error) Unwrap() error {
	return e.Cause
}

// Is matches by kind, and additionally by reason when the target carries one.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	if e.Kind != t.Kind {
		return false
	}
	return t.Reason == "" || e.Reason == t.Reason
}

// Retryable reports whether the caller may retry the operation as-is.
func (e *Error) Retryable() bool {
	return e.Kind == KindConflict || e.Kind == KindUnavailable
}

// Sentinels for errors.Is matching.
var (
	ErrNotFound        = &Error{Kind: KindNotFound, Message: "not found"}
	ErrNotAllowed      = &Error{Kind: KindNotAllowed, Message: "not allowed"}
	ErrNotHost         = &Error{Kind: KindNotAllowed, Reason: ReasonNotHost, Message: "you are not the host of this event"}
	ErrAlreadyReserved = &Error{Kind: KindNotAllowed, Reason: ReasonAlreadyReserved, Message: "already reserved"}
	ErrAlreadyUpvoted  = &Error{Kind: KindNotAllowed, Reason: ReasonAlreadyUpvoted, Message: "already upvoted"}
	ErrCapacityFull    = &Error{Kind: KindCapacityFull, Message: "event is at capacity"}
	ErrCapacity        = &Error{Kind: KindCapacity, Message: "capacity below attendee count"}
	ErrState           = &Error{Kind: KindState, Message: "invalid event state"}
	ErrValidation      = &Error{Kind: KindValidation, Message: "validation failed"}
	ErrConflict        = &Error{Kind: KindConflict, Message: "concurrent modification"}
	ErrUnavailable     = &Error{Kind: KindUnavailable, Message: "store unavailable"}
)

// New creates an error of the given kind.
func New(kind Kind, message string) *Error {
	return &Error{Kind: kind, Message: message}
}

// Newf creates an error of the given kind with a formatted message.
func Newf(kind Kind, format string, args ...any) *Error {
	return &Error{Kind: kind, Message: fmt.Sprintf(format, args...)}
}

// WithReason creates an error of the given kind and reason.
func WithReason(kind Kind, reason, message string) *Error {
	return &Error{Kind: kind, Reason: reason, Message: message}
}

// Wrap creates an error of the given kind around an underlying cause.
func Wrap(kind Kind, message string, cause error) *Error {
	return &Error{Kind: kind, Message: message, Cause: cause}
}

// KindOf returns the kind of err, or "" when err is not an *Error.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return ""
}

// ReasonOf returns the reason of err, or "" when none is set.
func ReasonOf(err error) string {
	var e *Error
	if errors.As(err, &e) {
		return e.Reason
	}
	return ""
}

// FromStore classifies a raw store failure: deadline expiry becomes a
// retryable Unavailable error, anything else is wrapped with op context.
func FromStore(op string, err error) error {
	if err == nil {
		return nil
	}
	var e *Error
	if errors.As(err, &e) {
		return err
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return Wrap(KindUnavailable, op+": store timed out", err)
	}
	return fmt.Errorf("%s: %w", op, err)
}
