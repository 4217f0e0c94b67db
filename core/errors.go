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

// ConflictError indicates that a submission was already recorded: a duplicate
// registration email or an announcement phase that was already sent.
type ConflictError struct {
	message string
}

func NewConflictError(msg string) error {
	return &ConflictError{message: msg}
}

func (err ConflictError) Error() string {
	return err.message
}

func IsConflict(err error) bool {
	_, ok := errors.Cause(err).(*ConflictError)
	return ok
}

// ForwardError indicates that a downstream delivery (webhook post or
// delayed-dispatch scheduling call) was unreachable or returned a non-2xx.
type ForwardError struct {
	message string
	Status  int
}

func NewForwardError(msg string, status int) error {
	return &ForwardError{message: msg, Status: status}
}

func (err ForwardError) Error() string {
	return err.message
}

func IsForwardError(err error) bool {
	_, ok := errors.Cause(err).(*ForwardError)
	return ok
}

// ConfigError indicates a missing secret or misconfigured destination; not
// user-recoverable.
type ConfigError struct {
	message string
}

func NewConfigError(msg string) error {
	return &ConfigError{message: msg}
}

func (err ConfigError) Error() string {
	return err.message
}

func IsConfigError(err error) bool {
	_, ok := errors.Cause(err).(*ConfigError)
	return ok
}

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
