package service

import (
	"errors"
	"fmt"
	"strings"
)

var (
	ErrValidation          = errors.New("validation failed")
	ErrDuplicateSubmission = errors.New("feedback already submitted for this round")
	ErrNotFound            = errors.New("not found")
	ErrAccessScope         = errors.New("outside of access scope")
	ErrInvalidFilter       = errors.New("invalid filter")
	ErrStorageFailure      = errors.New("storage failure")
	ErrSessionClosed       = errors.New("feedback session is not active")
)

// FieldError describes a problem with a single request field.
type FieldError struct {
	Field   string `json:"field"`
	Message string `json:"message"`
}

type ValidationError struct {
	Fields []FieldError
}

func (e *ValidationError) Error() string {
	if len(e.Fields) == 0 {
		return ErrValidation.Error()
	}
	parts := make([]string, len(e.Fields))
	for i, f := range e.Fields {
		parts[i] = f.Field + ": " + f.Message
	}
	return fmt.Sprintf("%s: %s", ErrValidation, strings.Join(parts, "; "))
}

func (e *ValidationError) Unwrap() error { return ErrValidation }

func invalidFilter(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrInvalidFilter, fmt.Sprintf(format, args...))
}

func storageFailure(err error) error {
	return fmt.Errorf("%w: %v", ErrStorageFailure, err)
}
