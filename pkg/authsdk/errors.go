package authsdk

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"
)

// Error codes returned in the "error" field of every failure body.
const (
	CodeValidation         = "VALIDATION_ERROR"
	CodeInvalidCredentials = "INVALID_CREDENTIALS"
	CodeOTPNotFound        = "OTP_NOT_FOUND"
	CodeOTPExpired         = "OTP_EXPIRED"
	CodeOTPAlreadyUsed     = "OTP_ALREADY_USED"
	CodeInvalidOTP         = "INVALID_OTP"
	CodeEmailTaken         = "EMAIL_TAKEN"
	CodeNoAccount          = "NO_ACCOUNT"
	CodeDeliveryFailure    = "DELIVERY_FAILURE"
	CodeTokenInvalid       = "TOKEN_INVALID"
	CodeTokenExpired       = "TOKEN_EXPIRED"
	CodeAdminNotConfigured = "ADMIN_NOT_CONFIGURED"
	CodeAdminForbidden     = "ADMIN_FORBIDDEN"
	CodeRateLimited        = "RATE_LIMITED"
	CodeNotFound           = "NOT_FOUND"
	CodeConflict           = "CONFLICT"
	CodeUnauthorized       = "UNAUTHORIZED"
	CodeInternal           = "INTERNAL"
)

// APIError is a decoded error response.
type APIError struct {
	StatusCode int
	Code       string
	Message    string

	// Diagnostics, zero unless the server runs outside production.
	ExpiresAt  time.Time
	ServerTime time.Time
}

func (e *APIError) Error() string {
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// IsCode reports whether err is an APIError carrying code.
func IsCode(err error, code string) bool {
	var apiErr *APIError
	return errors.As(err, &apiErr) && apiErr.Code == code
}

// NeedsNewOTP reports whether the caller should request a fresh code rather
// than re-enter the current one.
func NeedsNewOTP(err error) bool {
	return IsCode(err, CodeOTPExpired) || IsCode(err, CodeOTPAlreadyUsed) || IsCode(err, CodeOTPNotFound)
}

// parseErrorResponse turns a non-2xx response body into an *APIError. Bodies
// that are not ours fall back to the status text.
func parseErrorResponse(resp *http.Response, body []byte) error {
	if resp.StatusCode >= 200 && resp.StatusCode < 300 {
		return nil
	}

	var errResp ErrorResponse
	if err := json.Unmarshal(body, &errResp); err == nil && errResp.Error != "" {
		return &APIError{
			StatusCode: resp.StatusCode,
			Code:       errResp.Error,
			Message:    errResp.Message,
			ExpiresAt:  parseTime(errResp.ExpiresAt),
			ServerTime: parseTime(errResp.ServerTime),
		}
	}

	code := CodeInternal
	if resp.StatusCode == http.StatusUnauthorized {
		code = CodeUnauthorized
	}
	return &APIError{
		StatusCode: resp.StatusCode,
		Code:       code,
		Message:    fmt.Sprintf("HTTP %d: %s", resp.StatusCode, http.StatusText(resp.StatusCode)),
	}
}

func parseTime(s string) time.Time {
	if s == "" {
		return time.Time{}
	}
	t, err := time.Parse(time.RFC3339Nano, s)
	if err != nil {
		return time.Time{}
	}
	return t
}
