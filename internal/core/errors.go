package core

import (
	"errors"
	"fmt"
)

// NotFoundError reports an unknown entity name or lookup key.
type NotFoundError struct {
	Entity string
	Key    string
}

func (e *NotFoundError) Error() string {
	if e.Key == "" {
		return fmt.Sprintf("entity %q not found", e.Entity)
	}
	return fmt.Sprintf("%s %s not found", e.Entity, e.Key)
}

// ValidationError reports malformed input: unknown filter keys, bad page
// arguments, invalid records.
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	if e.Field == "" {
		return "validation failed: " + e.Reason
	}
	return fmt.Sprintf("invalid %s: %s", e.Field, e.Reason)
}

// InvalidPeriodError is returned by ResolvePeriod for an unknown token.
type InvalidPeriodError struct {
	Token string
}

func (e *InvalidPeriodError) Error() string {
	return fmt.Sprintf("unsupported period %q", e.Token)
}

// StorageError wraps a failure of the underlying store.
type StorageError struct {
	Op     string
	Entity string
	Err    error
}

func (e *StorageError) Error() string {
	if e.Entity == "" {
		return fmt.Sprintf("storage: %s: %v", e.Op, e.Err)
	}
	return fmt.Sprintf("storage: %s %s: %v", e.Op, e.Entity, e.Err)
}

func (e *StorageError) Unwrap() error { return e.Err }

// ErrorKind classifies errors for the transport layers.
type ErrorKind string

const (
	KindNotFound   ErrorKind = "not_found"
	KindValidation ErrorKind = "validation"
	KindStorage    ErrorKind = "storage"
	KindInternal   ErrorKind = "internal"
)

// KindOf returns the class of err. InvalidPeriodError is a validation error.
func KindOf(err error) ErrorKind {
	var (
		nf  *NotFoundError
		ve  *ValidationError
		ipe *InvalidPeriodError
		se  *StorageError
	)
	switch {
	case errors.As(err, &nf):
		return KindNotFound
	case errors.As(err, &ve), errors.As(err, &ipe):
		return KindValidation
	case errors.As(err, &se):
		return KindStorage
	default:
		return KindInternal
	}
}

// Invalid is shorthand for a *ValidationError.
func Invalid(field, format string, args ...any) error {
	return &ValidationError{Field: field, Reason: fmt.Sprintf(format, args...)}
}
