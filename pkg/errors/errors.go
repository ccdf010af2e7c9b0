// Package errors provides the coded error type shared by the gateway components.
package errors

import (
	"errors"
	"fmt"
)

// Error codes surfaced by classification, dispatch and persistence.
const (
	CodeInvalidRequest    = "INVALID_REQUEST"
	CodePermissionDenied  = "PERMISSION_DENIED"
	CodeUnsupportedKind   = "UNSUPPORTED_KIND"
	CodeExecutionFailed   = "EXECUTION_FAILED"
	CodeQueryFailed       = "QUERY_FAILED"
	CodePersistenceFailed = "PERSISTENCE_FAILED"
	CodeDispatchInFlight  = "DISPATCH_IN_FLIGHT"
	CodeUnauthenticated   = "UNAUTHENTICATED"
	CodeConnectionFailed  = "CONNECTION_FAILED"
	CodeUnavailable       = "UNAVAILABLE"
	CodeDeadlineExceeded  = "DEADLINE_EXCEEDED"
	CodeInternal          = "INTERNAL_ERROR"
)

// DetailPermission is the detail key naming the capability a denied request lacked.
const DetailPermission = "permission"

// Error is a gateway error with code, message, and optional details.
type Error struct {
	Code    string                 `json:"code"`
	Message string                 `json:"message"`
	Details map[string]interface{} `json:"details,omitempty"`
	Cause   error                  `json:"-"`
}

// Error implements the error interface.
func (e *Error) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %s (caused by: %v)", e.Code, e.Message, e.Cause)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// Unwrap returns the underlying error.
func (e *Error) Unwrap() error {
	return e.Cause
}

// Is matches any *Error carrying the same code.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	return e.Code == t.Code
}

// WithDetail adds a single detail to the error.
func (e *Error) WithDetail(key string, value interface{}) *Error {
	if e.Details == nil {
		e.Details = make(map[string]interface{})
	}
	e.Details[key] = value
	return e
}

// Sentinels for errors.Is comparisons.
var (
	ErrInvalidRequest    = &Error{Code: CodeInvalidRequest, Message: "invalid request"}
	ErrPermissionDenied  = &Error{Code: CodePermissionDenied, Message: "permission denied"}
	ErrUnsupportedKind   = &Error{Code: CodeUnsupportedKind, Message: "unsupported query kind"}
	ErrExecutionFailed   = &Error{Code: CodeExecutionFailed, Message: "execution failed"}
	ErrPersistenceFailed = &Error{Code: CodePersistenceFailed, Message: "history persistence failed"}
	ErrDispatchInFlight  = &Error{Code: CodeDispatchInFlight, Message: "a query is already executing in this session"}
	ErrUnauthenticated   = &Error{Code: CodeUnauthenticated, Message: "unauthenticated"}
)

// New creates a new Error with the given code and message.
func New(code, message string) *Error {
	return &Error{
		Code:    code,
		Message: message,
	}
}

// Newf creates a new Error with a formatted message.
func Newf(code, format string, args ...interface{}) *Error {
	return &Error{
		Code:    code,
		Message: fmt.Sprintf(format, args...),
	}
}

// Wrap wraps err with a coded Error. A nil err yields nil.
func Wrap(err error, code, message string) *Error {
	if err == nil {
		return nil
	}
	return &Error{
		Code:    code,
		Message: message,
		Cause:   err,
	}
}

// Wrapf wraps an error with a formatted message.
func Wrapf(err error, code, format string, args ...interface{}) *Error {
	if err == nil {
		return nil
	}
	return &Error{
		Code:    code,
		Message: fmt.Sprintf(format, args...),
		Cause:   err,
	}
}

// PermissionDenied reports that the named capability is required but not granted.
func PermissionDenied(permission string) *Error {
	return New(CodePermissionDenied, fmt.Sprintf("permission %q is required", permission)).
		WithDetail(DetailPermission, permission)
}

// MissingPermission returns the capability a permission error names, if any.
func MissingPermission(err error) (string, bool) {
	var e *Error
	if !errors.As(err, &e) || e.Code != CodePermissionDenied {
		return "", false
	}
	p, ok := e.Details[DetailPermission].(string)
	return p, ok
}

func hasCode(err error, code string) bool {
	var e *Error
	if errors.As(err, &e) {
		return e.Code == code
	}
	return false
}

// IsInvalidRequest checks if an error is an invalid request error.
func IsInvalidRequest(err error) bool { return hasCode(err, CodeInvalidRequest) }

// IsPermissionDenied checks if an error is a permission denial.
func IsPermissionDenied(err error) bool { return hasCode(err, CodePermissionDenied) }

// IsUnsupportedKind checks if an error reports an unmapped query kind.
func IsUnsupportedKind(err error) bool { return hasCode(err, CodeUnsupportedKind) }

// IsExecutionFailed checks if an error is a handler execution failure.
func IsExecutionFailed(err error) bool { return hasCode(err, CodeExecutionFailed) }

// IsInternal checks if an error is an internal error.
func IsInternal(err error) bool { return hasCode(err, CodeInternal) }

// GetCode extracts the error code from an error.
func GetCode(err error) string {
	var e *Error
	if errors.As(err, &e) {
		return e.Code
	}
	return CodeInternal
}

// GetMessage extracts the error message from an error.
func GetMessage(err error) string {
	var e *Error
	if errors.As(err, &e) {
		return e.Message
	}
	return err.Error()
}
