// Package domainerrors defines the coded errors surfaced by ledger components.
//
// Stores return sentinel facts (see pkg/platform/sentinel); components translate
// them into a Code here so transports can render a stable error contract.
package domainerrors

import (
	"errors"
)

// Code is a machine readable error category.
type Code string

const (
	// Ledger error kinds.
	CodeDuplicateCode    Code = "duplicate_code"
	CodeUnknownCode      Code = "unknown_code"
	CodeUnknownToken     Code = "unknown_token"
	CodeUnknownIdentity  Code = "unknown_identity"
	CodeAlreadyActivated Code = "already_activated"
	CodeAlreadyVerified  Code = "already_verified"
	CodeAlreadyLinked    Code = "already_linked"
	CodeCodeNotAvailable Code = "code_not_available"
	CodeQuotaExhausted   Code = "quota_exhausted"
	CodeInvalidSignature Code = "invalid_signature"
	CodeUnauthorized     Code = "unauthorized"
	CodeNotVerified      Code = "not_verified"

	// Ambient kinds.
	CodeValidation Code = "validation_error"
	CodeBadRequest Code = "bad_request"
	CodeConflict   Code = "conflict"
	CodeForbidden  Code = "forbidden"
	CodeNotFound   Code = "not_found"
	CodeTimeout    Code = "timeout"
	CodeInternal   Code = "internal_error"
)

// Error carries a Code, a caller-safe message and an optional cause.
type Error struct {
	Code    Code
	Message string
	Err     error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return e.Message + ": " + e.Err.Error()
	}
	return e.Message
}

func (e *Error) Unwrap() error {
	return e.Err
}

// New builds a coded error without a cause.
func New(code Code, msg string) error {
	return &Error{Code: code, Message: msg}
}

// Wrap attaches a code and message to err. A nil err yields nil.
func Wrap(err error, code Code, msg string) error {
	if err == nil {
		return nil
	}
	return &Error{Code: code, Message: msg, Err: err}
}

// CodeOf returns the outermost code in err's chain, or CodeInternal when none is set.
func CodeOf(err error) Code {
	var de *Error
	if errors.As(err, &de) {
		return de.Code
	}
	return CodeInternal
}

// HasCode reports whether the outermost coded error in err's chain has the given code.
func HasCode(err error, code Code) bool {
	var de *Error
	if errors.As(err, &de) {
		return de.Code == code
	}
	return false
}

// Message returns the caller-safe message of the outermost coded error.
func Message(err error) string {
	var de *Error
	if errors.As(err, &de) {
		return de.Message
	}
	return ""
}
