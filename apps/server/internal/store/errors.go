package store

import (
	"errors"
	"fmt"
)

var (
	ErrNotFound        = errors.New("document not found")
	ErrInvalidKey      = errors.New("invalid document key")
	ErrPathEscape      = errors.New("document path escapes storage root")
	ErrTooLarge        = errors.New("document too large")
	ErrTooManyElements = errors.New("document array too long")
	ErrSchema          = errors.New("document schema violation")
)

// PersistenceError wraps any failure to read or write a document.
type PersistenceError struct {
	Op  string // "save", "load", "delete"
	Key string
	Err error
}

func (e *PersistenceError) Error() string {
	return fmt.Sprintf("persistence: %s %s: %v", e.Op, e.Key, e.Err)
}

func (e *PersistenceError) Unwrap() error { return e.Err }

func wrap(op, key string, err error) error {
	if err == nil {
		return nil
	}
	var pe *PersistenceError
	if errors.As(err, &pe) {
		return err
	}
	return &PersistenceError{Op: op, Key: key, Err: err}
}
