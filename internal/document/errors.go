package document

import (
	"errors"
	"fmt"
)

// ErrorType classifies failures so the HTTP layer and metrics can react to them.
type ErrorType string

const (
	ErrorTypeValidation  ErrorType = "validation"
	ErrorTypeConversion  ErrorType = "conversion"
	ErrorTypePageTimeout ErrorType = "page_timeout"
	ErrorTypePageProcess ErrorType = "page_process"
	ErrorTypeEmptyResult ErrorType = "empty_result"
)

// Error carries a user-facing message plus the underlying cause.
type Error struct {
	Type    ErrorType
	Message string
	Err     error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("[%s] %s: %v", e.Type, e.Message, e.Err)
	}
	return fmt.Sprintf("[%s] %s", e.Type, e.Message)
}

func (e *Error) Unwrap() error {
	return e.Err
}

// NewError creates a typed error.
func NewError(t ErrorType, message string, err error) *Error {
	return &Error{Type: t, Message: message, Err: err}
}

func ValidationError(message string, err error) *Error {
	return NewError(ErrorTypeValidation, message, err)
}

func ConversionError(message string, err error) *Error {
	return NewError(ErrorTypeConversion, message, err)
}

func PageTimeoutError(message string, err error) *Error {
	return NewError(ErrorTypePageTimeout, message, err)
}

func PageProcessError(message string, err error) *Error {
	return NewError(ErrorTypePageProcess, message, err)
}

func EmptyResultError(message string) *Error {
	return NewError(ErrorTypeEmptyResult, message, nil)
}

// TypeOf returns the ErrorType of the first *Error in err's chain, or "" if none.
func TypeOf(err error) ErrorType {
	var de *Error
	if errors.As(err, &de) {
		return de.Type
	}
	return ""
}

// IsType reports whether err carries the given ErrorType.
func IsType(err error, t ErrorType) bool {
	return err != nil && TypeOf(err) == t
}

// MessageOf prefers the typed message over the full wrapped chain.
func MessageOf(err error) string {
	var de *Error
	if errors.As(err, &de) {
		return de.Message
	}
	if err == nil {
		return ""
	}
	return err.Error()
}
