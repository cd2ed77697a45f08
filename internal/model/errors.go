package model

import (
	"errors"
	"fmt"
)

// Sentinel errors for errors.Is checks across transports.
var (
	ErrNotFound     = errors.New("not found")
	ErrKindMismatch = errors.New("kind mismatch")
	ErrStorage      = errors.New("storage failure")
)

// NotFoundError reports a lookup of an id that does not exist.
type NotFoundError struct {
	Resource string
	ID       string
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("%s %s not found", e.Resource, e.ID)
}

func (e *NotFoundError) Is(target error) bool { return target == ErrNotFound }

// EventTypeNotFound is returned when an event type id is unknown.
func EventTypeNotFound(id fmt.Stringer) error {
	return &NotFoundError{Resource: "event type", ID: id.String()}
}

// KindMismatchError reports event data that does not fit the declared kind.
// Reason is set when the tags agree but the payload violates the schema.
type KindMismatchError struct {
	Declared EventDataKind
	Got      KindTag
	Reason   string
}

func (e *KindMismatchError) Error() string {
	if e.Reason != "" {
		return fmt.Sprintf("kind mismatch: %s", e.Reason)
	}
	return fmt.Sprintf("kind mismatch: event type declares %s, got %q", e.Declared.Type, e.Got)
}

func (e *KindMismatchError) Is(target error) bool { return target == ErrKindMismatch }

// StorageError wraps a persistence failure with the operation that hit it.
type StorageError struct {
	Op  string
	Err error
}

func (e *StorageError) Error() string {
	return fmt.Sprintf("storage: %s: %v", e.Op, e.Err)
}

func (e *StorageError) Unwrap() error { return e.Err }

func (e *StorageError) Is(target error) bool { return target == ErrStorage }

// WrapStorage returns err as a *StorageError unless it is nil or already
// classified as not-found.
func WrapStorage(op string, err error) error {
	if err == nil || errors.Is(err, ErrNotFound) || errors.Is(err, ErrStorage) {
		return err
	}
	return &StorageError{Op: op, Err: err}
}
