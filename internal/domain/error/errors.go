// Package error defines the domain error taxonomy for the session and
// caching subsystem. Every rejection carries a stable machine-readable
// code alongside a human-readable message.
package error

import (
	"errors"
	"fmt"
)

// Kind classifies an error for transport mapping and handling policy.
type Kind string

const (
	KindValidation   Kind = "validation"
	KindUnauthorized Kind = "unauthorized"
	KindForbidden    Kind = "forbidden"
	KindNotFound     Kind = "not_found"
	KindConflict     Kind = "conflict"
	KindInternal     Kind = "internal"
)

// Code is a stable machine-readable error code.
type Code string

// Token and credential error codes.
const (
	CodeTokenInvalid         Code = "TOKEN_INVALID"
	CodeTokenExpired         Code = "TOKEN_EXPIRED"
	CodeTokenRevoked         Code = "TOKEN_REVOKED"
	CodeTokenReuseDetected   Code = "TOKEN_REUSE_DETECTED"
	CodeDeviceMismatch       Code = "DEVICE_MISMATCH"
	CodeRefreshTokenInvalid  Code = "REFRESH_TOKEN_INVALID"
	CodeRefreshTokenRequired Code = "REFRESH_TOKEN_REQUIRED"
)

// Principal error codes.
const (
	CodePrincipalNotFound   Code = "PRINCIPAL_NOT_FOUND"
	CodePrincipalIDRequired Code = "PRINCIPAL_ID_REQUIRED"
	CodePrincipalInactive   Code = "PRINCIPAL_INACTIVE"
	CodePrincipalLocked     Code = "PRINCIPAL_LOCKED"
	CodeDeviceIDRequired    Code = "DEVICE_ID_REQUIRED"
)

// Infrastructure error codes. Never surfaced to callers of the cache
// layer; cache-dependent reads degrade to the backing store instead.
const (
	CodeCacheUnavailable Code = "CACHE_UNAVAILABLE"
	CodeInternal         Code = "INTERNAL"
)

// Error is a domain error with kind, code, and optional wrapped cause.
type Error struct {
	kind    Kind
	code    Code
	message string
	cause   error
}

// New creates a new domain error.
func New(kind Kind, code Code, message string) *Error {
	return &Error{kind: kind, code: code, message: message}
}

// Newf creates a new domain error with a formatted message.
func Newf(kind Kind, code Code, format string, args ...any) *Error {
	return &Error{kind: kind, code: code, message: fmt.Sprintf(format, args...)}
}

func (e *Error) Error() string {
	if e.cause != nil {
		return fmt.Sprintf("%s: %v", e.message, e.cause)
	}
	return e.message
}

func (e *Error) Kind() Kind      { return e.kind }
func (e *Error) Code() Code      { return e.code }
func (e *Error) Message() string { return e.message }
func (e *Error) Unwrap() error   { return e.cause }

// WithCause returns a copy of the error wrapping the given cause.
func (e *Error) WithCause(cause error) *Error {
	clone := *e
	clone.cause = cause
	return &clone
}

// Is matches by code, so errors.Is works against the sentinel values
// below even after WithCause has produced a copy.
func (e *Error) Is(target error) bool {
	var other *Error
	if !errors.As(target, &other) {
		return false
	}
	return e.code == other.code
}

// Rejection is the wire envelope for a rejected request.
type Rejection struct {
	Success bool   `json:"success"`
	Message string `json:"message"`
	Code    Code   `json:"code"`
}

// Rejection renders the error as a response envelope.
func (e *Error) Rejection() Rejection {
	return Rejection{Success: false, Message: e.message, Code: e.code}
}

// CodeOf extracts the machine-readable code from err, or CodeInternal
// when err carries no domain error.
func CodeOf(err error) Code {
	var domainErr *Error
	if errors.As(err, &domainErr) {
		return domainErr.Code()
	}
	return CodeInternal
}

// KindOf extracts the kind from err, or KindInternal.
func KindOf(err error) Kind {
	var domainErr *Error
	if errors.As(err, &domainErr) {
		return domainErr.Kind()
	}
	return KindInternal
}

// Token errors
var (
	ErrTokenInvalid = New(KindUnauthorized, CodeTokenInvalid, "token is invalid")

	ErrTokenExpired = New(KindUnauthorized, CodeTokenExpired, "token has expired")

	ErrTokenRevoked = New(KindUnauthorized, CodeTokenRevoked, "token has been revoked")

	ErrTokenReuseDetected = New(KindUnauthorized, CodeTokenReuseDetected, "refresh token reuse detected")

	ErrDeviceMismatch = New(KindUnauthorized, CodeDeviceMismatch, "device does not match token")

	// ErrRefreshTokenInvalid doubles as the rejection for unknown token
	// values: it never reveals whether the value ever existed.
	ErrRefreshTokenInvalid = New(KindUnauthorized, CodeRefreshTokenInvalid, "refresh token is invalid")

	ErrRefreshTokenRequired = New(KindValidation, CodeRefreshTokenRequired, "refresh token is required")
)

// Principal errors
var (
	ErrPrincipalNotFound = New(KindNotFound, CodePrincipalNotFound, "principal not found")

	ErrPrincipalIDRequired = New(KindValidation, CodePrincipalIDRequired, "principal ID is required")

	ErrPrincipalInactive = New(KindForbidden, CodePrincipalInactive, "account is deactivated")

	ErrPrincipalLocked = New(KindForbidden, CodePrincipalLocked, "account is locked")

	ErrDeviceIDRequired = New(KindValidation, CodeDeviceIDRequired, "device ID is required")
)

// Infrastructure errors
var (
	ErrCacheUnavailable = New(KindInternal, CodeCacheUnavailable, "cache backend unavailable")
)
