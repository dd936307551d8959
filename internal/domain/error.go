package domain

import (
	"errors"
	"fmt"
)

var (
	// Common domain errors
	ErrNotFound            = errors.New("entity not found")
	ErrAlreadyExists       = errors.New("entity already exists")
	ErrInvalidArgument     = errors.New("invalid argument")
	ErrInvalidAmount       = errors.New("amount must be positive")
	ErrInsufficientCredits = errors.New("insufficient credits")
	ErrEmptyImage          = errors.New("image is empty")
	ErrForbidden           = errors.New("forbidden")
	ErrLockHeld            = errors.New("lock held by another owner")

	// Job pipeline errors
	ErrDispatchFailed    = errors.New("dispatch to processor failed")
	ErrMalformedCallback = errors.New("callback payload has no job id")
	ErrReadDatabaseRow   = errors.New("failed to read database row")
)

// DispatchError carries the upstream detail of a rejected submission.
type DispatchError struct {
	Status int    // HTTP status from the processor, 0 for transport errors
	Detail string // truncated response body or transport error text
	Err    error
}

func (e *DispatchError) Error() string {
	if e.Status > 0 {
		return fmt.Sprintf("processor error %d: %s", e.Status, e.Detail)
	}
	return fmt.Sprintf("processor unreachable: %s", e.Detail)
}

func (e *DispatchError) Unwrap() []error {
	if e.Err == nil {
		return []error{ErrDispatchFailed}
	}
	return []error{ErrDispatchFailed, e.Err}
}
