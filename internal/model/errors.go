package model

import (
	"errors"
	"fmt"
)

// Error kinds.  Every error produced by the booking core matches exactly one
// of these through errors.Is; HTTP handlers translate the kind into a status
// code.
var (
	ErrValidation     = errors.New("validation error")
	ErrConflict       = errors.New("conflict")
	ErrNotFound       = errors.New("not found")
	ErrAuthentication = errors.New("authentication required")
	ErrInternal       = errors.New("internal error")
)

// kindError is a specific error belonging to a kind.
type kindError struct {
	kind error
	msg  string
}

func (e *kindError) Error() string        { return e.msg }
func (e *kindError) Is(target error) bool { return target == e.kind }

// NewError returns a distinct error value of the given kind.
func NewError(kind error, msg string) error { return &kindError{kind: kind, msg: msg} }

var (
	ErrRollRequired     = NewError(ErrValidation, "roll number is required")
	ErrSeatRequired     = NewError(ErrValidation, "seat number is required")
	ErrStartRequired    = NewError(ErrValidation, "start time is required")
	ErrStartInPast      = NewError(ErrValidation, "start time is in the past")
	ErrInvalidDuration  = NewError(ErrValidation, "duration outside allowed bounds")
	ErrOutsideHours     = NewError(ErrValidation, "booking falls outside working hours")
	ErrAlreadyBooked    = NewError(ErrConflict, "you already have a pending or active booking")
	ErrSeatTaken        = NewError(ErrConflict, "seat is already booked or pending")
	ErrBusy             = NewError(ErrConflict, "seat is being updated, try again")
	ErrAlreadyActive    = NewError(ErrConflict, "user already has an active session")
	ErrSeatNotFound     = NewError(ErrNotFound, "seat not found")
	ErrUserNotFound     = NewError(ErrNotFound, "user not found")
	ErrNoPendingBooking = NewError(ErrNotFound, "no pending booking found for this roll number")
	ErrNoActiveBooking  = NewError(ErrNotFound, "no active booking")
)

// IllegalTransition reports an event that the state machine rejects in the
// seat's current state.
func IllegalTransition(from SeatStatus, ev Event) error {
	return &kindError{kind: ErrConflict, msg: fmt.Sprintf("event %s not allowed for %s seat", ev, from)}
}

// internalError wraps a persistence or infrastructure failure.
type internalError struct{ err error }

func (e *internalError) Error() string        { return "internal error: " + e.err.Error() }
func (e *internalError) Unwrap() error        { return e.err }
func (e *internalError) Is(target error) bool { return target == ErrInternal }

// Internal classifies err.  Errors that already carry a kind are returned
// unchanged, anything else becomes an internal error.
func Internal(err error) error {
	if err == nil || KindOf(err) != nil {
		return err
	}
	return &internalError{err: err}
}

// KindOf returns the kind sentinel err matches, or nil.
func KindOf(err error) error {
	for _, k := range []error{ErrValidation, ErrConflict, ErrNotFound, ErrAuthentication, ErrInternal} {
		if errors.Is(err, k) {
			return k
		}
	}
	return nil
}
