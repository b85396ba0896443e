package types

import (
	"errors"
	"fmt"
)

// ErrEmptyGeneration is returned when the generator produced no usable text
var ErrEmptyGeneration = errors.New("generator returned no test cases")

// PersistenceError wraps a failure of the backing store.
// It is fatal during initialization and fails only the current story afterwards.
type PersistenceError struct {
	Op  string
	Err error
}

func (e *PersistenceError) Error() string {
	return fmt.Sprintf("persistence error during %s: %v", e.Op, e.Err)
}

func (e *PersistenceError) Unwrap() error {
	return e.Err
}

// NewPersistenceError wraps err, or returns nil when err is nil
func NewPersistenceError(op string, err error) error {
	if err == nil {
		return nil
	}
	return &PersistenceError{Op: op, Err: err}
}

// Collaborator names an external service the pipeline depends on
type Collaborator string

const (
	CollaboratorTracker   Collaborator = "tracker"
	CollaboratorGenerator Collaborator = "generator"
)

// CollaboratorError reports that the tracker or the generator call failed.
// It is never fatal: the affected story or cycle step is skipped.
type CollaboratorError struct {
	Collaborator Collaborator
	Op           string
	Err          error
}

func (e *CollaboratorError) Error() string {
	return fmt.Sprintf("%s unavailable during %s: %v", e.Collaborator, e.Op, e.Err)
}

func (e *CollaboratorError) Unwrap() error {
	return e.Err
}

// NewCollaboratorError wraps err, or returns nil when err is nil
func NewCollaboratorError(c Collaborator, op string, err error) error {
	if err == nil {
		return nil
	}
	return &CollaboratorError{Collaborator: c, Op: op, Err: err}
}

// IsPersistenceError reports whether err came from the store
func IsPersistenceError(err error) bool {
	var pe *PersistenceError
	return errors.As(err, &pe)
}

// IsCollaboratorError reports whether err came from the tracker or generator
func IsCollaboratorError(err error) bool {
	var ce *CollaboratorError
	return errors.As(err, &ce)
}
