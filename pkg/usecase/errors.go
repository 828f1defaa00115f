package usecase

import (
	"errors"
	"fmt"
)

// AlternativeCourseError signals a legitimate business outcome other than the
// main success scenario ("not found", "validation failed", ...). Response
// processors translate it into output; any other error is re-raised.
type AlternativeCourseError struct {
	Code    int
	Message string
	Err     error
}

// NewAlternativeCourse creates an AlternativeCourseError.
func NewAlternativeCourse(code int, message string) *AlternativeCourseError {
	return &AlternativeCourseError{Code: code, Message: message}
}

// WrapAlternativeCourse creates an AlternativeCourseError caused by err.
func WrapAlternativeCourse(code int, message string, err error) *AlternativeCourseError {
	return &AlternativeCourseError{Code: code, Message: message, Err: err}
}

func (e *AlternativeCourseError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Err)
	}
	return e.Message
}

func (e *AlternativeCourseError) Unwrap() error {
	return e.Err
}

// AsAlternativeCourse reports whether err is (or wraps) an AlternativeCourseError.
func AsAlternativeCourse(err error) (*AlternativeCourseError, bool) {
	var alt *AlternativeCourseError
	if errors.As(err, &alt) {
		return alt, true
	}
	return nil, false
}

// RequestTypeNotFoundError is returned when no request type can be determined
// or instantiated for a use case.
type RequestTypeNotFoundError struct {
	UseCase  string
	TypeName string
	Reason   string
	Err      error
}

func (e *RequestTypeNotFoundError) Error() string {
	msg := "request type not found"
	if e.UseCase != "" {
		msg = fmt.Sprintf("request type for use case %q not found", e.UseCase)
	}
	if e.TypeName != "" {
		msg += fmt.Sprintf(" (type %q)", e.TypeName)
	}
	if e.Reason != "" {
		msg += ": " + e.Reason
	}
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

func (e *RequestTypeNotFoundError) Unwrap() error {
	return e.Err
}
