// Package apperr defines the error kinds shared across quill packages.
package apperr

import (
	"errors"
	"fmt"
	"net/http"
)

var (
	ErrNotFound      = errors.New("not found")
	ErrConflict      = errors.New("conflict")
	ErrAlreadyExists = errors.New("already exists")
	ErrInvalid       = errors.New("invalid input")
	ErrConfig        = errors.New("configuration error")
	ErrUnauthorized  = errors.New("unauthorized")
)

// StatusError is a failure reported by the remote repository host.
// Status is zero for transport failures that never produced a response.
type StatusError struct {
	Op      string
	Path    string
	Status  int
	Message string
	Err     error
}

func (e *StatusError) Error() string {
	msg := fmt.Sprintf("%s %s: host status %d", e.Op, e.Path, e.Status)
	if e.Status == 0 {
		msg = fmt.Sprintf("%s %s: transport failure", e.Op, e.Path)
	}
	if e.Message != "" {
		msg += ": " + e.Message
	}
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

// Unwrap maps well-known host statuses onto the sentinel kinds.
func (e *StatusError) Unwrap() []error {
	var errs []error
	switch e.Status {
	case http.StatusNotFound:
		errs = append(errs, ErrNotFound)
	case http.StatusConflict, http.StatusPreconditionFailed:
		errs = append(errs, ErrConflict)
	case http.StatusUnauthorized, http.StatusForbidden:
		errs = append(errs, ErrUnauthorized)
	}
	if e.Err != nil {
		errs = append(errs, e.Err)
	}
	return errs
}

// HostStatus returns the host status carried by err, or 0 when none.
func HostStatus(err error) int {
	var se *StatusError
	if errors.As(err, &se) {
		return se.Status
	}
	return 0
}

// ValidationError wraps field-level validation failures.
type ValidationError struct {
	Err error
}

func (e *ValidationError) Error() string {
	return "validation failed: " + e.Err.Error()
}

func (e *ValidationError) Unwrap() []error {
	return []error{ErrInvalid, e.Err}
}

// Invalid wraps err as a validation failure; nil stays nil.
func Invalid(err error) error {
	if err == nil {
		return nil
	}
	return &ValidationError{Err: err}
}
