package domain

import (
	"errors"
	"fmt"
	"strings"
)

var (
	ErrLicenseNotFound   = errors.New("license not found")
	ErrInvalidInput      = errors.New("invalid input")
	ErrTemporary         = errors.New("temporary failure")
	ErrUnsupportedFormat = errors.New("unsupported format")
	ErrBusy              = errors.New("busy")
	ErrExtractionFailed  = errors.New("extraction failed")
	ErrPersistenceFailed = errors.New("persistence failed")
	ErrInvalidTransition = errors.New("invalid workflow transition")
	ErrSessionClosed     = errors.New("review session closed")
)

// DefaultPersistMessage is reported when the persistence service gives no detail.
const DefaultPersistMessage = "error saving license"

// WrapError preserves typed semantic errors with operation context.
func WrapError(kind error, operation string, err error) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf("%s: %w: %w", operation, kind, err)
}

func IsKind(err error, kind error) bool {
	return errors.Is(err, kind)
}

// ExtractionError is returned by the intake controller when the extraction
// service could not produce a result.
type ExtractionError struct {
	Cause string
	Err   error
}

func (e *ExtractionError) Error() string {
	if e.Cause == "" {
		return ErrExtractionFailed.Error()
	}
	return ErrExtractionFailed.Error() + ": " + e.Cause
}

func (e *ExtractionError) Is(target error) bool { return target == ErrExtractionFailed }

func (e *ExtractionError) Unwrap() error { return e.Err }

func NewExtractionError(err error) *ExtractionError {
	cause := "unknown error"
	if err != nil {
		cause = strings.TrimSpace(err.Error())
	}
	return &ExtractionError{Cause: cause, Err: err}
}

// PersistenceError carries the message reported by the persistence service.
type PersistenceError struct {
	Message string
	Err     error
}

func (e *PersistenceError) Error() string {
	return ErrPersistenceFailed.Error() + ": " + e.Message
}

func (e *PersistenceError) Is(target error) bool { return target == ErrPersistenceFailed }

func (e *PersistenceError) Unwrap() error { return e.Err }

// DetailedError is implemented by transport errors that carry a
// service-provided message.
type DetailedError interface {
	error
	Detail() string
}

// NewPersistenceError picks the service detail when err exposes one and falls
// back to DefaultPersistMessage otherwise.
func NewPersistenceError(err error) *PersistenceError {
	message := DefaultPersistMessage
	var detailed DetailedError
	if errors.As(err, &detailed) {
		if d := strings.TrimSpace(detailed.Detail()); d != "" {
			message = d
		}
	}
	return &PersistenceError{Message: message, Err: err}
}

// RejectionError is a business-rule refusal whose reason is safe to show to
// the operator verbatim.
type RejectionError struct {
	Reason string
}

func (e *RejectionError) Error() string { return e.Reason }

func (e *RejectionError) Detail() string { return e.Reason }

func (e *RejectionError) Is(target error) bool { return target == ErrInvalidInput }

func Reject(reason string) error {
	return &RejectionError{Reason: reason}
}
