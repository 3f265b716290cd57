package model

import (
	"errors"
	"fmt"
	"strings"
)

// Sentinels for errors.Is checks. Every typed error below matches exactly
// one of them.
var (
	ErrArgument               = errors.New("invalid argument")
	ErrInvalidStateTransition = errors.New("invalid state transition")
	ErrNotSupported           = errors.New("not supported")
	ErrConflict               = errors.New("conflict")

	// ErrStreamNotFound is wrapped by an ArgumentError when an operation
	// targets a stream that was never created or has been deleted.
	ErrStreamNotFound = errors.New("stream does not exist")
)

// ArgumentError reports null, invalid or reserved input supplied by a caller.
type ArgumentError struct {
	Param  string
	Reason string
	Err    error
}

func (e *ArgumentError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("invalid argument %s: %s: %v", e.Param, e.Reason, e.Err)
	}
	return fmt.Sprintf("invalid argument %s: %s", e.Param, e.Reason)
}

func (e *ArgumentError) Is(target error) bool { return target == ErrArgument }

func (e *ArgumentError) Unwrap() error { return e.Err }

// NewArgumentError builds an ArgumentError with a formatted reason.
func NewArgumentError(param, format string, args ...any) error {
	return &ArgumentError{Param: param, Reason: fmt.Sprintf(format, args...)}
}

// InvalidStateTransitionError is returned when the current handling status of
// a (record, concern) pair does not allow the requested transition.
type InvalidStateTransitionError struct {
	Locator          string
	InternalRecordID int64
	Concern          string
	Transition       string
	Current          HandlingStatus
	Expected         []HandlingStatus
}

func (e *InvalidStateTransitionError) Error() string {
	expected := make([]string, 0, len(e.Expected))
	for _, s := range e.Expected {
		expected = append(expected, s.String())
	}
	return fmt.Sprintf("cannot %s record %d for concern %q on %s: status is %s, expected one of [%s]",
		e.Transition, e.InternalRecordID, e.Concern, e.Locator, e.Current, strings.Join(expected, ", "))
}

func (e *InvalidStateTransitionError) Is(target error) bool {
	return target == ErrInvalidStateTransition
}

// NotSupportedError is returned when an internal switch meets an enum value
// or locator kind it has no branch for.
type NotSupportedError struct {
	What  string
	Value any
}

func (e *NotSupportedError) Error() string {
	return fmt.Sprintf("%s not supported: %v", e.What, e.Value)
}

func (e *NotSupportedError) Is(target error) bool { return target == ErrNotSupported }

// ConflictError is returned when a Throw strategy finds an existing record
// or stream.
type ConflictError struct {
	Reason            string
	ExistingRecordIDs []int64
}

func (e *ConflictError) Error() string {
	if len(e.ExistingRecordIDs) == 0 {
		return "conflict: " + e.Reason
	}
	return fmt.Sprintf("conflict: %s (existing records %v)", e.Reason, e.ExistingRecordIDs)
}

func (e *ConflictError) Is(target error) bool { return target == ErrConflict }
