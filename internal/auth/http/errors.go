package http

import (
	"net/http"
	"time"

	"github.com/aussiebroadwan/otpgate/internal/auth/service"
	"github.com/aussiebroadwan/otpgate/pkg/httpx"
	"github.com/aussiebroadwan/otpgate/pkg/slogx"
)

// statusFor maps every taxonomy code to its HTTP status. Token failures
// default to 401, the refresh endpoint overrides them with 403.
func statusFor(code service.Code) int {
	switch code {
	case service.CodeValidation:
		return http.StatusBadRequest
	case service.CodeInvalidCredentials,
		service.CodeOTPNotFound,
		service.CodeOTPExpired,
		service.CodeOTPAlreadyUsed,
		service.CodeInvalidOTP,
		service.CodeTokenInvalid,
		service.CodeTokenExpired,
		service.CodeUnauthorized:
		return http.StatusUnauthorized
	case service.CodeAdminNotConfigured, service.CodeAdminForbidden:
		return http.StatusForbidden
	case service.CodeEmailTaken, service.CodeConflict:
		return http.StatusConflict
	case service.CodeNoAccount, service.CodeNotFound:
		return http.StatusNotFound
	case service.CodeRateLimited:
		return http.StatusTooManyRequests
	case service.CodeDeliveryFailure, service.CodeInternal:
		return http.StatusInternalServerError
	default:
		return http.StatusInternalServerError
	}
}

// responder writes service errors as JSON error bodies.
type responder struct {
	diagnostics bool
}

func (rs responder) fail(w http.ResponseWriter, r *http.Request, err error) {
	e := service.AsError(err)
	rs.write(w, r, statusFor(e.Code), e)
}

func (rs responder) write(w http.ResponseWriter, r *http.Request, status int, e *service.Error) {
	log := slogx.FromContext(r.Context())
	if status >= http.StatusInternalServerError {
		log.Error("request failed", "code", e.Code, "err", e)
	} else {
		log.Info("request rejected", "code", e.Code, "msg", e.Message)
	}

	body := httpx.ErrorBody{Error: string(e.Code), Message: e.Message}
	if rs.diagnostics && e.Details != nil {
		body.ServerTime = e.Details.ServerTime.UTC().Format(time.RFC3339Nano)
		if e.Details.ExpiresAt != nil {
			body.ExpiresAt = e.Details.ExpiresAt.UTC().Format(time.RFC3339Nano)
		}
	}
	httpx.WriteJSON(w, status, body)
}

func (rs responder) badRequest(w http.ResponseWriter, r *http.Request, msg string) {
	rs.write(w, r, http.StatusBadRequest, &service.Error{Code: service.CodeValidation, Message: msg})
}
