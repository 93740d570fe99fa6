// Package errors provides error types shared by the build loop and its collaborators.
package errors

import (
	"errors"
	"fmt"
	"runtime/debug"
	"strings"
)

var (
	// ErrBuildRunning is returned when a build is requested while another is active.
	ErrBuildRunning = errors.New("a build is already running")
	// ErrNoBuild is returned when an operation needs a build and none was started.
	ErrNoBuild = errors.New("no build in progress")
)

// PanicError wraps a recovered panic together with its stack trace.
type PanicError struct {
	Value      any
	StackTrace string
}

func (e *PanicError) Error() string {
	return fmt.Sprintf("panic: %v", e.Value)
}

// Recover runs fn and converts a panic into a *PanicError.
func Recover(fn func() error) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = &PanicError{Value: r, StackTrace: string(debug.Stack())}
		}
	}()
	return fn()
}

// TransientError marks a failure of a best-effort operation. The operation may
// succeed on a later attempt and the caller is expected to keep going.
type TransientError struct {
	Op  string
	Err error
}

// NewTransientError wraps err as a transient failure of op.
func NewTransientError(op string, err error) *TransientError {
	return &TransientError{Op: op, Err: err}
}

func (e *TransientError) Error() string {
	return fmt.Sprintf("%s: %v", e.Op, e.Err)
}

func (e *TransientError) Unwrap() error {
	return e.Err
}

// IsTransient reports whether err wraps a *TransientError.
func IsTransient(err error) bool {
	var te *TransientError
	return errors.As(err, &te)
}

// MultiError collects several errors, e.g. during shutdown.
type MultiError struct {
	Errors []error
}

// Append adds a non-nil error.
func (m *MultiError) Append(err error) {
	if err != nil {
		m.Errors = append(m.Errors, err)
	}
}

// ErrorOrNil returns nil when no errors were collected.
func (m *MultiError) ErrorOrNil() error {
	if m == nil || len(m.Errors) == 0 {
		return nil
	}
	return m
}

func (m *MultiError) Error() string {
	if len(m.Errors) == 1 {
		return m.Errors[0].Error()
	}
	msgs := make([]string, len(m.Errors))
	for i, err := range m.Errors {
		msgs[i] = err.Error()
	}
	return fmt.Sprintf("%d errors occurred: %s", len(m.Errors), strings.Join(msgs, "; "))
}

// Unwrap exposes the collected errors to errors.Is and errors.As.
func (m *MultiError) Unwrap() []error {
	return m.Errors
}
