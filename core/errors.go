package core

import "github.com/pkg/errors"

// FieldError is used to indicate an error with a specific struct field.
type FieldError struct {
	Field string
	Error string
}

type ValidationError struct {
	Err    error
	Fields []FieldError
}

func NewValidationError(err error, flds ...FieldError) error {
	return &ValidationError{err, flds}
}

func (err ValidationError) Error() string {
	if err.Err == nil {
		return ""
	}
	return err.Err.Error()
}

// PartialWriteError reports a dual-write sequence that half-succeeded:
// the first write is committed, the second failed and there is no
// transactional boundary to roll it back. Callers must surface Pending
// to the user as explicit reconciliation guidance; treating this as a
// total failure would hide the committed write.
type PartialWriteError struct {
	Err     error
	Done    string // what is already committed
	Pending string // what the user must reconcile manually
}

func NewPartialWriteError(err error, done, pending string) error {
	return &PartialWriteError{Err: err, Done: done, Pending: pending}
}

func (err PartialWriteError) Error() string {
	msg := "partial write: " + err.Done + "; pending: " + err.Pending
	if err.Err != nil {
		msg += ": " + err.Err.Error()
	}
	return msg
}

func (err PartialWriteError) Unwrap() error { return err.Err }

type shutdown struct {
	message string
}

func NewShutdownError(msg string) error {
	return &shutdown{message: msg}
}

func (s shutdown) Error() string {
	return s.message
}

func IsShutdown(err error) bool {
	_, ok := errors.Cause(err).(*shutdown)
	return ok
}
