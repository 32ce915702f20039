package errors

import (
	"errors"
	"fmt"
)

type ErrorCode string

const (
	CodeNotFound             ErrorCode = "NOT_FOUND"
	CodeValidationError      ErrorCode = "VALIDATION_ERROR"
	CodeInternal             ErrorCode = "INTERNAL_ERROR"
	CodeNotSupported         ErrorCode = "NOT_SUPPORTED"
	CodePermissionDenied     ErrorCode = "PERMISSION_DENIED"
	CodeIO                   ErrorCode = "IO_ERROR"
	CodeMalformedReference   ErrorCode = "MALFORMED_REFERENCE"
	CodeRoundTripAmbiguity   ErrorCode = "ROUND_TRIP_AMBIGUITY"
	CodeDestructiveOperation ErrorCode = "DESTRUCTIVE_OPERATION"
)

type DomainError struct {
	Code    ErrorCode
	Message string
	Err     error
	Context map[string]interface{}
}

const (
	CtxPath      = "path"
	CtxOperation = "operation"
	CtxLine      = "line"
	CtxStrategy  = "strategy"
)

func (e *DomainError) WithContext(key string, value interface{}) *DomainError {
	if e.Context == nil {
		e.Context = make(map[string]interface{})
	}
	e.Context[key] = value
	return e
}

func (e *DomainError) Error() string {
	msg := fmt.Sprintf("[%s] %s", e.Code, e.Message)
	if e.Err != nil {
		msg = fmt.Sprintf("%s: %v", msg, e.Err)
	}
	if len(e.Context) > 0 {
		msg += fmt.Sprintf(" %v", e.Context)
	}
	return msg
}

func (e *DomainError) Unwrap() error {
	return e.Err
}

func New(code ErrorCode, msg string) error {
	return &DomainError{Code: code, Message: msg}
}

func Wrap(err error, code ErrorCode, msg string) error {
	return &DomainError{Code: code, Message: msg, Err: err}
}

// WrapPath wraps an I/O failure with the path it happened on.
func WrapPath(err error, op, path string) error {
	if err == nil {
		return nil
	}
	de := &DomainError{Code: CodeIO, Message: op, Err: err}
	return de.WithContext(CtxPath, path)
}

func AddContext(err error, key string, value interface{}) error {
	var de *DomainError
	if errors.As(err, &de) {
		de.WithContext(key, value)
		return de
	}
	return &DomainError{
		Code:    CodeInternal,
		Message: "wrapped error",
		Err:     err,
		Context: map[string]interface{}{key: value},
	}
}

// coder is implemented by the typed transform errors below.
type coder interface {
	Code() ErrorCode
}

// IsCode checks if an error, or anything it wraps, carries a specific code.
func IsCode(err error, code ErrorCode) bool {
	for err != nil {
		switch e := err.(type) {
		case *DomainError:
			if e.Code == code {
				return true
			}
		case coder:
			if e.Code() == code {
				return true
			}
		}
		err = errors.Unwrap(err)
	}
	return false
}

// Is and As are re-exported so callers importing this package under the
// name "errors" keep access to the standard helpers.
func Is(err, target error) bool { return errors.Is(err, target) }

func As(err error, target any) bool { return errors.As(err, target) }

// MalformedReferenceError reports a directive that could not be parsed.
// It is fatal for the file being processed, never for the batch.
type MalformedReferenceError struct {
	Path      string
	Line      int
	Directive string
	Err       error
}

func (e *MalformedReferenceError) Error() string {
	msg := fmt.Sprintf("[%s] %s:%d: malformed directive %q", CodeMalformedReference, e.Path, e.Line, e.Directive)
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

func (e *MalformedReferenceError) Unwrap() error   { return e.Err }
func (e *MalformedReferenceError) Code() ErrorCode { return CodeMalformedReference }

// RoundTripAmbiguityError reports an artifact that cannot be reversed
// deterministically: the inverse strategy differs from the one that built
// it, or the forward output does not invert back to its input.
type RoundTripAmbiguityError struct {
	Path     string
	Expected string
	Found    string
	Reason   string
}

func (e *RoundTripAmbiguityError) Error() string {
	msg := fmt.Sprintf("[%s] %s: %s", CodeRoundTripAmbiguity, e.Path, e.Reason)
	if e.Expected != "" || e.Found != "" {
		msg += fmt.Sprintf(" (expected strategy %q, found %q)", e.Expected, e.Found)
	}
	return msg
}

func (e *RoundTripAmbiguityError) Code() ErrorCode { return CodeRoundTripAmbiguity }

// DestructiveOperationError reports a failed clean-before-write. A partial
// deletion leaves the destination inconsistent, so the whole batch stops.
type DestructiveOperationError struct {
	Path string
	Err  error
}

func (e *DestructiveOperationError) Error() string {
	return fmt.Sprintf("[%s] clean %s: %v", CodeDestructiveOperation, e.Path, e.Err)
}

func (e *DestructiveOperationError) Unwrap() error   { return e.Err }
func (e *DestructiveOperationError) Code() ErrorCode { return CodeDestructiveOperation }
