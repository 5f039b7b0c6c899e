// Package domainerrors provides coded errors for domain and service layers.
//
// Stores return sentinel errors (pkg/sentinel) for infrastructure facts;
// services translate those into coded errors; the transport edge translates
// codes into HTTP status once. Nothing below the transport layer should
// reference net/http.
package domainerrors

import (
	"errors"
	"fmt"
	"net/http"
)

// Code classifies a domain error for transport translation and callers that
// need to branch on failure kind.
type Code string

const (
	// CodeInvariantViolation marks a business-rule violation detected by an
	// aggregate constructor or mutator (non-positive amount, past due date,
	// invalid payment method). Recoverable by correcting input; never retried.
	CodeInvariantViolation Code = "invariant_violation"

	// CodeValidation marks request-shape validation failures at the service
	// boundary (missing fields, malformed email).
	CodeValidation Code = "validation"

	// CodeBadRequest marks an unreadable or structurally invalid request.
	CodeBadRequest Code = "bad_request"

	// CodeOverpayment rejects a payment exceeding the debt's remaining
	// balance. Distinguished from generic invariant errors so callers can
	// surface user-facing messaging.
	CodeOverpayment Code = "overpayment"

	// CodeInsufficientStock rejects a stock removal exceeding the quantity on
	// hand. Distinguished for the same reason as CodeOverpayment.
	CodeInsufficientStock Code = "insufficient_stock"

	// CodeNotFound covers both absent aggregates and aggregates owned by a
	// different user; the two must be indistinguishable to the caller.
	CodeNotFound Code = "not_found"

	// CodeConflict marks a lost optimistic-concurrency race or a uniqueness
	// violation. The caller should reload and retry at the transaction
	// boundary.
	CodeConflict Code = "conflict"

	CodeUnauthorized Code = "unauthorized"
	CodeForbidden    Code = "forbidden"
	CodeTimeout      Code = "timeout"
	CodeInternal     Code = "internal"
)

// Error is a coded error with an optional wrapped cause.
type Error struct {
	Code    Code
	Message string
	Err     error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Code, e.Message, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

func (e *Error) Unwrap() error { return e.Err }

// New constructs a coded error.
func New(code Code, message string) error {
	return &Error{Code: code, Message: message}
}

// Newf constructs a coded error with a formatted message.
func Newf(code Code, format string, args ...any) error {
	return &Error{Code: code, Message: fmt.Sprintf(format, args...)}
}

// Wrap attaches a code and message to an underlying error, preserving the
// cause for errors.Is/errors.As.
func Wrap(err error, code Code, message string) error {
	if err == nil {
		return nil
	}
	return &Error{Code: code, Message: message, Err: err}
}

// HasCode reports whether err (or anything it wraps) carries the given code.
func HasCode(err error, code Code) bool {
	var coded *Error
	if errors.As(err, &coded) {
		return coded.Code == code
	}
	return false
}

// Is is an alias for HasCode kept for readability at call sites.
func Is(err error, code Code) bool {
	return HasCode(err, code)
}

// CodeOf extracts the code from err, defaulting to CodeInternal for uncoded
// errors.
func CodeOf(err error) Code {
	var coded *Error
	if errors.As(err, &coded) {
		return coded.Code
	}
	return CodeInternal
}

// Message extracts the caller-safe message from err. Uncoded errors yield a
// generic message so internals never leak to clients.
func Message(err error) string {
	var coded *Error
	if errors.As(err, &coded) {
		return coded.Message
	}
	return "internal error"
}

// ToHTTPStatus maps a code to its HTTP status. Lives here rather than in the
// transport package so every handler maps codes identically.
func ToHTTPStatus(code Code) int {
	switch code {
	case CodeInvariantViolation, CodeValidation, CodeBadRequest,
		CodeOverpayment, CodeInsufficientStock:
		return http.StatusBadRequest
	case CodeNotFound:
		return http.StatusNotFound
	case CodeConflict:
		return http.StatusConflict
	case CodeUnauthorized:
		return http.StatusUnauthorized
	case CodeForbidden:
		return http.StatusForbidden
	case CodeTimeout:
		return http.StatusGatewayTimeout
	default:
		return http.StatusInternalServerError
	}
}
