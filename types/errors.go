package types

import (
	"errors"
	"fmt"
)

// ErrorCode is the wire-level error code returned to callers. Codes are
// stable strings, never raw stack traces.
type ErrorCode string

const (
	CodeStateUnavailable   ErrorCode = "StateUnavailable"
	CodeConflict           ErrorCode = "Conflict"
	CodeInsufficientFunds  ErrorCode = "InsufficientFunds"
	CodeNotRegistered      ErrorCode = "NotRegistered"
	CodeAlreadyRegistered  ErrorCode = "AlreadyRegistered"
	CodeDuplicateKey       ErrorCode = "DuplicateKey"
	CodeNotFound           ErrorCode = "NotFound"
	CodeValidationRejected ErrorCode = "ValidationRejected"
	CodeMalformedRequest   ErrorCode = "MalformedRequest"
)

// Sentinel errors, one per code. Use errors.Is against these to classify
// any error returned by this module; wrapping preserves the code.
var (
	ErrStateUnavailable   = &ProtocolError{Code: CodeStateUnavailable, Reason: "required ledger state is unavailable"}
	ErrConflict           = &ProtocolError{Code: CodeConflict, Reason: "ledger state changed underneath the operation"}
	ErrInsufficientFunds  = &ProtocolError{Code: CodeInsufficientFunds, Reason: "available inputs do not cover the requested value"}
	ErrNotRegistered      = &ProtocolError{Code: CodeNotRegistered, Reason: "asset policy is not registered"}
	ErrAlreadyRegistered  = &ProtocolError{Code: CodeAlreadyRegistered, Reason: "asset policy is already registered"}
	ErrDuplicateKey       = &ProtocolError{Code: CodeDuplicateKey, Reason: "key is already present in the list"}
	ErrNotFound           = &ProtocolError{Code: CodeNotFound, Reason: "key is not present in the list"}
	ErrValidationRejected = &ProtocolError{Code: CodeValidationRejected, Reason: "transaction would fail ledger validation"}
	ErrMalformedRequest   = &ProtocolError{Code: CodeMalformedRequest, Reason: "request is malformed"}
)

type ProtocolError struct {
	Code   ErrorCode
	Reason string
	cause  error
}

func (e *ProtocolError) Error() string {
	if e.cause != nil {
		return fmt.Sprintf("%s: %s: %v", e.Code, e.Reason, e.cause)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Reason)
}

func (e *ProtocolError) Unwrap() error { return e.cause }

// Is reports code equality so that wrapped errors match the sentinels above.
func (e *ProtocolError) Is(target error) bool {
	t, ok := target.(*ProtocolError)
	return ok && t.Code == e.Code
}

// NewError creates an error with the given code and a human readable reason.
func NewError(code ErrorCode, format string, args ...any) *ProtocolError {
	return &ProtocolError{Code: code, Reason: fmt.Sprintf(format, args...)}
}

// WrapError attaches a code to an underlying cause.
func WrapError(code ErrorCode, cause error, format string, args ...any) *ProtocolError {
	return &ProtocolError{Code: code, Reason: fmt.Sprintf(format, args...), cause: cause}
}

// CodeOf extracts the error code, or empty string for foreign errors.
func CodeOf(err error) ErrorCode {
	var pe *ProtocolError
	if errors.As(err, &pe) {
		return pe.Code
	}
	return ""
}

// IsRetryable reports whether the operation may be retried after re-reading
// ledger state. Only transient snapshot problems qualify; a rejected plan
// will be rejected again.
func IsRetryable(err error) bool {
	return errors.Is(err, ErrStateUnavailable) || errors.Is(err, ErrConflict)
}
