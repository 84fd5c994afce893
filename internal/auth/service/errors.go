package service

import (
	"errors"
	"fmt"
	"time"
)

// Code is the closed set of failure kinds the gateway reports. The HTTP layer
// maps each one to a status and clients switch on it.
type Code string

const (
	CodeValidation         Code = "VALIDATION_ERROR"
	CodeInvalidCredentials Code = "INVALID_CREDENTIALS"
	CodeOTPNotFound        Code = "OTP_NOT_FOUND"
	CodeOTPExpired         Code = "OTP_EXPIRED"
	CodeOTPAlreadyUsed     Code = "OTP_ALREADY_USED"
	CodeInvalidOTP         Code = "INVALID_OTP"
	CodeEmailTaken         Code = "EMAIL_TAKEN"
	CodeNoAccount          Code = "NO_ACCOUNT"
	CodeDeliveryFailure    Code = "DELIVERY_FAILURE"
	CodeTokenInvalid       Code = "TOKEN_INVALID"
	CodeTokenExpired       Code = "TOKEN_EXPIRED"
	CodeAdminNotConfigured Code = "ADMIN_NOT_CONFIGURED"
	CodeAdminForbidden     Code = "ADMIN_FORBIDDEN"
	CodeRateLimited        Code = "RATE_LIMITED"
	CodeNotFound           Code = "NOT_FOUND"
	CodeConflict           Code = "CONFLICT"
	CodeUnauthorized       Code = "UNAUTHORIZED"
	CodeInternal           Code = "INTERNAL"
)

// Error is the tagged failure returned by every gateway operation.
type Error struct {
	Code    Code
	Message string

	// Details are diagnostic only. The HTTP layer drops them in production.
	Details *ErrorDetails

	err error
}

// ErrorDetails carries the OTP timing diagnostics.
type ErrorDetails struct {
	ExpiresAt  *time.Time
	ServerTime time.Time
}

func (e *Error) Error() string {
	if e.err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Code, e.Message, e.err)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

func (e *Error) Unwrap() error { return e.err }

// Is matches on the code so errors.Is(err, &Error{Code: CodeOTPExpired}) works.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	return ok && t.Code == e.Code
}

func newError(code Code, msg string) *Error {
	return &Error{Code: code, Message: msg}
}

func wrapError(code Code, msg string, err error) *Error {
	return &Error{Code: code, Message: msg, err: err}
}

// internal hides err behind a generic message. The cause stays reachable
// through Unwrap for logging.
func internal(err error) *Error {
	return wrapError(CodeInternal, "Something went wrong. Please try again.", err)
}

// ErrorCode extracts the code from err. Errors outside the taxonomy are
// reported as CodeInternal.
func ErrorCode(err error) Code {
	var e *Error
	if errors.As(err, &e) {
		return e.Code
	}
	return CodeInternal
}

// AsError converts any error into an *Error, wrapping foreign errors as
// internal ones.
func AsError(err error) *Error {
	var e *Error
	if errors.As(err, &e) {
		return e
	}
	return internal(err)
}

// Canonical messages.
const (
	msgInvalidCredentials = "Invalid credentials"
	msgOTPAlreadyUsed     = "OTP already used. Please request a new code."
	msgOTPExpired         = "OTP expired. Please request a new code."
	msgOTPNotFound        = "No valid OTP found. Please request a new code."
	msgInvalidOTP         = "Invalid OTP"
	msgDeliveryFailure    = "Failed to send OTP email. Try again later."
	msgTooManyAttempts    = "Too many attempts. Please wait before trying again."
)

var (
	errInvalidCredentials = newError(CodeInvalidCredentials, msgInvalidCredentials)
	errInvalidOTP         = newError(CodeInvalidOTP, msgInvalidOTP)
)
