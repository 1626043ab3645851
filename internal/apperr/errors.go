// Package apperr defines the error taxonomy shared by the extraction pipeline.
package apperr

import (
	"errors"
	"fmt"
)

// Code identifies an error class independently of the message.
type Code string

const (
	CodeExtractionUnavailable  Code = "EXTRACTION_UNAVAILABLE"
	CodeInvalidQuery           Code = "INVALID_QUERY"
	CodeProviderTimeout        Code = "PROVIDER_TIMEOUT"
	CodeRunExhausted           Code = "RUN_EXHAUSTED"
	CodeConcurrentModification Code = "CONCURRENT_MODIFICATION"
	CodeNotFound               Code = "NOT_FOUND"
	CodeForbidden              Code = "FORBIDDEN"
)

// Sentinels for errors.Is checks. Every *Error with the matching code compares
// equal to its sentinel.
var (
	ErrExtractionUnavailable  = &Error{Code: CodeExtractionUnavailable, Message: "extraction backend unavailable"}
	ErrInvalidQuery           = &Error{Code: CodeInvalidQuery, Message: "no usable search terms"}
	ErrProviderTimeout        = &Error{Code: CodeProviderTimeout, Message: "provider call timed out"}
	ErrRunExhausted           = &Error{Code: CodeRunExhausted, Message: "every strand failed or produced nothing"}
	ErrConcurrentModification = &Error{Code: CodeConcurrentModification, Message: "record changed underneath the patch"}
	ErrNotFound               = &Error{Code: CodeNotFound, Message: "resource not found"}
	ErrForbidden              = &Error{Code: CodeForbidden, Message: "caller does not own the resource"}
)

// Error is a structured pipeline error.
type Error struct {
	Code    Code
	Op      string
	Message string
	Cause   error
}

func (e *Error) Error() string {
	prefix := string(e.Code)
	if e.Op != "" {
		prefix = e.Op + ": " + prefix
	}
	if e.Cause != nil {
		return fmt.Sprintf("%s: %s (caused by: %v)", prefix, e.Message, e.Cause)
	}
	return fmt.Sprintf("%s: %s", prefix, e.Message)
}

func (e *Error) Unwrap() error {
	return e.Cause
}

// Is matches on Code so wrapped instances satisfy errors.Is against the sentinels.
func (e *Error) Is(target error) bool {
	var t *Error
	if !errors.As(target, &t) {
		return false
	}
	return t.Code == e.Code
}

// Factory functions for common errors

func ExtractionUnavailable(op string, cause error) *Error {
	return &Error{Code: CodeExtractionUnavailable, Op: op, Message: "extraction backend unavailable", Cause: cause}
}

func InvalidQuery(op, message string) *Error {
	return &Error{Code: CodeInvalidQuery, Op: op, Message: message}
}

func ProviderTimeout(op string, cause error) *Error {
	return &Error{Code: CodeProviderTimeout, Op: op, Message: "provider call timed out", Cause: cause}
}

func RunExhausted(runID string) *Error {
	return &Error{Code: CodeRunExhausted, Op: "run " + runID, Message: "every strand failed or produced nothing"}
}

func ConcurrentModification(bookID string) *Error {
	return &Error{Code: CodeConcurrentModification, Op: "patch " + bookID, Message: "owner guard rejected the patch"}
}

func NotFound(kind, id string) *Error {
	return &Error{Code: CodeNotFound, Message: fmt.Sprintf("%s %s not found", kind, id)}
}

func Forbidden(kind, id string) *Error {
	return &Error{Code: CodeForbidden, Message: fmt.Sprintf("%s %s belongs to another owner", kind, id)}
}

// CodeOf returns the code of the first *Error in err's chain, or "".
func CodeOf(err error) Code {
	var e *Error
	if errors.As(err, &e) {
		return e.Code
	}
	return ""
}
