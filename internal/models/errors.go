package models

import (
	"errors"
	"fmt"
	"strings"
)

// Sentinel errors for the error taxonomy. Use errors.Is to classify.
var (
	ErrFormat     = errors.New("unsupported or unparseable file")
	ErrValidation = errors.New("validation failed")
	ErrNotFound   = errors.New("not found")
	ErrBackend    = errors.New("backend failure")
)

// FormatError reports a file whose extension is not supported or whose content could not be parsed.
type FormatError struct {
	Path      string
	Ext       string
	Supported []string
	Err       error
}

func (e *FormatError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("cannot parse %s file %q: %v", e.Ext, e.Path, e.Err)
	}
	return fmt.Sprintf("unsupported file extension %q (supported: %s)", e.Ext, strings.Join(e.Supported, ", "))
}

func (e *FormatError) Is(target error) bool { return target == ErrFormat }

func (e *FormatError) Unwrap() error { return e.Err }

// ValidationError reports missing required metadata, a malformed filter, or invalid input.
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	if e.Field == "" {
		return "validation: " + e.Reason
	}
	return fmt.Sprintf("validation: %s: %s", e.Field, e.Reason)
}

func (e *ValidationError) Is(target error) bool { return target == ErrValidation }

// NewValidationError returns a ValidationError for field.
func NewValidationError(field, reason string) error {
	return &ValidationError{Field: field, Reason: reason}
}

// BackendError wraps a failure of the generation, embedding, search, or storage backend.
type BackendError struct {
	Op  string
	Err error
}

func (e *BackendError) Error() string {
	return fmt.Sprintf("%s: %v", e.Op, e.Err)
}

func (e *BackendError) Is(target error) bool { return target == ErrBackend }

func (e *BackendError) Unwrap() error { return e.Err }

// NewBackendError wraps err as a BackendError for op. A nil err yields nil.
func NewBackendError(op string, err error) error {
	if err == nil {
		return nil
	}
	return &BackendError{Op: op, Err: err}
}
