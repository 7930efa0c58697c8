package ledger

import (
	"errors"
	"fmt"
)

// OpError represents a rejected ledger operation.
//
// Every failure is local, synchronous, and non-retryable from the ledger's
// point of view: the operation aborted with zero side effects and the
// caller receives the specific code. Nothing here is fatal to the process.
type OpError struct {
	// Code identifies the rejection category.
	Code OpErrorCode

	// Message is a human-readable description.
	Message string

	// Addr identifies the affected entity address, when one was derived
	// before the rejection.
	Addr string
}

// OpErrorCode categorizes rejected operations.
type OpErrorCode string

const (
	// ErrCodeUnauthorized indicates the caller is not the required identity.
	ErrCodeUnauthorized OpErrorCode = "UNAUTHORIZED"

	// ErrCodeRecordNotActive indicates a mutation against an inactive or
	// absent record.
	ErrCodeRecordNotActive OpErrorCode = "RECORD_NOT_ACTIVE"

	// ErrCodeGrantNotActive indicates a revoke against an already-revoked
	// grant.
	ErrCodeGrantNotActive OpErrorCode = "GRANT_NOT_ACTIVE"

	// ErrCodeInvalidGrantState indicates a grant whose recorded granter no
	// longer matches the record owner. Defensive: ownership is immutable,
	// so this should never trigger under normal operation.
	ErrCodeInvalidGrantState OpErrorCode = "INVALID_GRANT_STATE"

	// ErrCodeAlreadyExists indicates a duplicate record registration.
	ErrCodeAlreadyExists OpErrorCode = "ALREADY_EXISTS"

	// ErrCodeNotFound indicates an operation against a non-existent address.
	ErrCodeNotFound OpErrorCode = "NOT_FOUND"

	// ErrCodeSeedTooLong indicates an address seed exceeding the bound.
	ErrCodeSeedTooLong OpErrorCode = "SEED_TOO_LONG"

	// ErrCodeStringTooLong indicates a field exceeding its size bound.
	ErrCodeStringTooLong OpErrorCode = "STRING_TOO_LONG"
)

// Error implements the error interface.
func (e *OpError) Error() string {
	if e.Addr != "" {
		return fmt.Sprintf("%s: %s (addr=%s)", e.Code, e.Message, e.Addr)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// CodeOf extracts the OpErrorCode from err, or "" if err is not an
// OpError. Uses errors.As to handle wrapped errors.
func CodeOf(err error) OpErrorCode {
	var oe *OpError
	if errors.As(err, &oe) {
		return oe.Code
	}
	return ""
}

// IsUnauthorized reports whether err is an UNAUTHORIZED rejection.
func IsUnauthorized(err error) bool { return CodeOf(err) == ErrCodeUnauthorized }

// IsNotFound reports whether err is a NOT_FOUND rejection.
func IsNotFound(err error) bool { return CodeOf(err) == ErrCodeNotFound }

// IsAlreadyExists reports whether err is an ALREADY_EXISTS rejection.
func IsAlreadyExists(err error) bool { return CodeOf(err) == ErrCodeAlreadyExists }

// IsRecordNotActive reports whether err is a RECORD_NOT_ACTIVE rejection.
func IsRecordNotActive(err error) bool { return CodeOf(err) == ErrCodeRecordNotActive }

// IsGrantNotActive reports whether err is a GRANT_NOT_ACTIVE rejection.
func IsGrantNotActive(err error) bool { return CodeOf(err) == ErrCodeGrantNotActive }

func opErr(code OpErrorCode, addr, format string, args ...any) *OpError {
	return &OpError{
		Code:    code,
		Message: fmt.Sprintf(format, args...),
		Addr:    addr,
	}
}
