// Package domainerrors provides coded errors for the registry. Services create
// them at the point where a precondition fails; transport translates codes to
// HTTP statuses. Infrastructure layers return sentinel errors instead (see
// pkg/platform/sentinel) and services wrap them with a code here.
package domainerrors

import (
	"errors"
	"fmt"
	"net/http"
)

// Code identifies a class of domain failure.
type Code string

const (
	CodeInvalidInput Code = "invalid_input"
	CodeBadRequest   Code = "bad_request"
	CodeUnauthorized Code = "unauthorized"
	CodeNotFound     Code = "not_found"
	CodeConflict     Code = "conflict"

	// Uniqueness violations.
	CodeAlreadyExists    Code = "already_exists"
	CodeAlreadyConsented Code = "already_consented"
	CodeAlreadyClaimed   Code = "already_claimed"

	// Missing or wrong-state preconditions.
	CodeNotConsented    Code = "not_consented"
	CodeConsentRequired Code = "consent_required"
	CodeStudyInactive   Code = "study_inactive"

	// Integrity-level: the vault cannot cover a claim it should cover.
	CodeInsufficientVaultBalance Code = "insufficient_vault_balance"

	CodeTimeout  Code = "timeout"
	CodeInternal Code = "internal"
)

// Error is a coded domain error. The whole operation that produced it was
// rejected; no partial state survives.
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

// New creates a coded error.
func New(code Code, message string) error {
	return &Error{Code: code, Message: message}
}

// Wrap attaches a code and message to an underlying error.
func Wrap(err error, code Code, message string) error {
	return &Error{Code: code, Message: message, Err: err}
}

// HasCode reports whether err (or anything it wraps) carries the given code.
func HasCode(err error, code Code) bool {
	var domainErr *Error
	if errors.As(err, &domainErr) {
		return domainErr.Code == code
	}
	return false
}

// CodeOf extracts the code from err, defaulting to CodeInternal.
func CodeOf(err error) Code {
	var domainErr *Error
	if errors.As(err, &domainErr) {
		return domainErr.Code
	}
	return CodeInternal
}

// ToHTTPStatus maps a domain code to an HTTP status for the transport layer.
func ToHTTPStatus(code Code) int {
	switch code {
	case CodeInvalidInput, CodeBadRequest:
		return http.StatusBadRequest
	case CodeUnauthorized:
		return http.StatusUnauthorized
	case CodeNotFound:
		return http.StatusNotFound
	case CodeConflict, CodeAlreadyExists, CodeAlreadyConsented, CodeAlreadyClaimed:
		return http.StatusConflict
	case CodeNotConsented, CodeConsentRequired, CodeStudyInactive:
		return http.StatusPreconditionFailed
	case CodeTimeout:
		return http.StatusGatewayTimeout
	case CodeInsufficientVaultBalance:
		// Accounting bug upstream, not a client mistake.
		return http.StatusInternalServerError
	default:
		return http.StatusInternalServerError
	}
}
