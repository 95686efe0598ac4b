package conversation

import (
	"errors"
	"fmt"
)

var (
	ErrNotFound    = errors.New("not found")
	ErrCapacity    = errors.New("capacity error")
	ErrValidation  = errors.New("validation error")
	ErrPersistence = errors.New("persistence error")
)

// NotFoundError reports a lookup of an unknown channel, thread, message or file.
type NotFoundError struct {
	Kind string
	ID   string
}

func (e *NotFoundError) Error() string {
	if e == nil {
		return ErrNotFound.Error()
	}
	return fmt.Sprintf("%s %q not found", e.Kind, e.ID)
}

func (e *NotFoundError) Is(target error) bool { return target == ErrNotFound }

// CapacityError reports an attempt to delete the last channel or the last
// thread of a channel.
type CapacityError struct {
	Kind string
	ID   string
}

func (e *CapacityError) Error() string {
	if e == nil {
		return ErrCapacity.Error()
	}
	return fmt.Sprintf("%s: cannot delete the last %s (%s)", ErrCapacity, e.Kind, e.ID)
}

func (e *CapacityError) Is(target error) bool { return target == ErrCapacity }

// ValidationError reports invalid arguments to a mutation.
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	if e == nil {
		return ErrValidation.Error()
	}
	if e.Field == "" {
		return fmt.Sprintf("%s: %s", ErrValidation, e.Reason)
	}
	return fmt.Sprintf("%s (%s): %s", ErrValidation, e.Field, e.Reason)
}

func (e *ValidationError) Is(target error) bool { return target == ErrValidation }

// PersistenceError wraps a failure to load or save the snapshot.
type PersistenceError struct {
	Op  string
	Err error
}

func (e *PersistenceError) Error() string {
	if e == nil {
		return ErrPersistence.Error()
	}
	return fmt.Sprintf("%s during %s: %v", ErrPersistence, e.Op, e.Err)
}

func (e *PersistenceError) Is(target error) bool { return target == ErrPersistence }

func (e *PersistenceError) Unwrap() error {
	if e == nil {
		return nil
	}
	return e.Err
}
