package http

import (
	"net/http"

	"github.com/aussiebroadwan/otpgate/internal/auth/domain"
	"github.com/aussiebroadwan/otpgate/internal/auth/service"
	"github.com/aussiebroadwan/otpgate/pkg/authsdk"
	"github.com/aussiebroadwan/otpgate/pkg/httpx"
)

// DevCodeHeader carries the raw OTP when dev mode is on.
const DevCodeHeader = "X-OTP-Dev-Code"

// AuthHandler serves the unauthenticated login, registration, reset and
// refresh endpoints.
type AuthHandler struct {
	AuthService *service.AuthService
	Cookie      CookieConfig

	responder
}

func (h *AuthHandler) decode(w http.ResponseWriter, r *http.Request, v any) bool {
	if err := httpx.DecodeJSON(w, r, v); err != nil {
		h.badRequest(w, r, "Bad request")
		return false
	}
	return true
}

// otpChallenge builds the challenge body and exposes the dev code header
// when the engine handed one out.
func otpChallenge(w http.ResponseWriter, msg string, issued service.IssuedOTP) authsdk.OTPChallengeResponse {
	if issued.DevCode != "" {
		w.Header().Set(DevCodeHeader, issued.DevCode)
	}
	return authsdk.OTPChallengeResponse{
		Message:     msg,
		RequiresOTP: true,
		OTPID:       issued.ID,
	}
}

func (h *AuthHandler) challenge(w http.ResponseWriter, msg string, issued service.IssuedOTP) {
	httpx.WriteJSON(w, http.StatusOK, otpChallenge(w, msg, issued))
}

// HandleLogin handles POST /login
//
//	@Summary		Submit credentials
//	@Description	Checks email and password and emails a login OTP. Never returns tokens.
//	@Tags			Auth
//	@Accept			json
//	@Produce		json
//	@Param			request	body		authsdk.CredentialsRequest		true	"Credentials"
//	@Success		200		{object}	authsdk.OTPChallengeResponse	"OTP sent"
//	@Failure		400		{object}	authsdk.ErrorResponse			"VALIDATION_ERROR"
//	@Failure		401		{object}	authsdk.ErrorResponse			"INVALID_CREDENTIALS"
//	@Failure		500		{object}	authsdk.ErrorResponse			"DELIVERY_FAILURE"
//	@Router			/login [post].
func (h *AuthHandler) HandleLogin(w http.ResponseWriter, r *http.Request) {
	var req authsdk.CredentialsRequest
	if !h.decode(w, r, &req) {
		return
	}
	issued, err := h.AuthService.Login(r.Context(), req.Email, req.Password)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	h.challenge(w, "OTP sent", issued)
}

// HandleResendOTP handles POST /resend-otp
//
//	@Summary		Resend the login OTP
//	@Description	Re-checks the credentials and emails a fresh login OTP. Older codes are not revoked.
//	@Tags			Auth
//	@Accept			json
//	@Produce		json
//	@Param			request	body		authsdk.CredentialsRequest		true	"Credentials"
//	@Success		200		{object}	authsdk.OTPChallengeResponse	"OTP resent"
//	@Failure		400		{object}	authsdk.ErrorResponse			"VALIDATION_ERROR"
//	@Failure		401		{object}	authsdk.ErrorResponse			"INVALID_CREDENTIALS"
//	@Failure		500		{object}	authsdk.ErrorResponse			"DELIVERY_FAILURE"
//	@Router			/resend-otp [post].
func (h *AuthHandler) HandleResendOTP(w http.ResponseWriter, r *http.Request) {
	var req authsdk.CredentialsRequest
	if !h.decode(w, r, &req) {
		return
	}
	issued, err := h.AuthService.ResendOTP(r.Context(), req.Email, req.Password)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	h.challenge(w, "OTP resent", issued)
}

// HandleVerifyOTP handles POST /verify-otp
//
//	@Summary		Verify the login OTP
//	@Description	Consumes the OTP and returns an access token. The refresh token is set as the refreshToken cookie.
//	@Tags			Auth
//	@Accept			json
//	@Produce		json
//	@Param			request	body		authsdk.VerifyOTPRequest	true	"Email, code and optional OTP id"
//	@Success		200		{object}	authsdk.LoginResponse		"Access token and user"
//	@Failure		400		{object}	authsdk.ErrorResponse		"VALIDATION_ERROR"
//	@Failure		401		{object}	authsdk.ErrorResponse		"INVALID_OTP, OTP_EXPIRED, OTP_ALREADY_USED or OTP_NOT_FOUND"
//	@Failure		429		{object}	authsdk.ErrorResponse		"RATE_LIMITED"
//	@Router			/verify-otp [post].
func (h *AuthHandler) HandleVerifyOTP(w http.ResponseWriter, r *http.Request) {
	var req authsdk.VerifyOTPRequest
	if !h.decode(w, r, &req) {
		return
	}
	u, pair, err := h.AuthService.VerifyLoginOTP(r.Context(), req.Email, req.Code, req.OTPID)
	if err != nil {
		h.fail(w, r, err)
		return
	}

	h.Cookie.set(w, pair.RefreshToken, pair.RefreshExpiresIn)
	httpx.WriteJSON(w, http.StatusOK, authsdk.LoginResponse{
		AccessToken: pair.AccessToken,
		ExpiresIn:   int64(pair.AccessExpiresIn.Seconds()),
		User:        sessionUser(u),
	})
}

// HandleRegister handles POST /register
//
//	@Summary		Register an account
//	@Description	Creates the account and emails a login OTP. The account is removed again if the OTP cannot be sent.
//	@Tags			Auth
//	@Accept			json
//	@Produce		json
//	@Param			request	body		authsdk.RegisterRequest		true	"Email, password and optional name"
//	@Success		200		{object}	authsdk.RegisterResponse	"OTP sent"
//	@Failure		400		{object}	authsdk.ErrorResponse		"VALIDATION_ERROR"
//	@Failure		409		{object}	authsdk.ErrorResponse		"EMAIL_TAKEN"
//	@Failure		500		{object}	authsdk.ErrorResponse		"DELIVERY_FAILURE"
//	@Router			/register [post].
func (h *AuthHandler) HandleRegister(w http.ResponseWriter, r *http.Request) {
	var req authsdk.RegisterRequest
	if !h.decode(w, r, &req) {
		return
	}
	u, issued, err := h.AuthService.Register(r.Context(), service.RegisterInput{
		Email:    req.Email,
		Password: req.Password,
		Name:     req.Name,
	})
	if err != nil {
		h.fail(w, r, err)
		return
	}

	httpx.WriteJSON(w, http.StatusOK, authsdk.RegisterResponse{
		OTPChallengeResponse: otpChallenge(w, "Registration successful", issued),
		User:                 sessionUser(u),
	})
}

// HandleForgotPassword handles POST /forgot-password
//
//	@Summary		Request a password reset OTP
//	@Tags			Auth
//	@Accept			json
//	@Produce		json
//	@Param			request	body		authsdk.ForgotPasswordRequest	true	"Account email"
//	@Success		200		{object}	authsdk.OTPChallengeResponse	"OTP sent"
//	@Failure		400		{object}	authsdk.ErrorResponse			"VALIDATION_ERROR"
//	@Failure		404		{object}	authsdk.ErrorResponse			"NO_ACCOUNT"
//	@Failure		500		{object}	authsdk.ErrorResponse			"DELIVERY_FAILURE"
//	@Router			/forgot-password [post].
func (h *AuthHandler) HandleForgotPassword(w http.ResponseWriter, r *http.Request) {
	var req authsdk.ForgotPasswordRequest
	if !h.decode(w, r, &req) {
		return
	}
	issued, err := h.AuthService.ForgotPassword(r.Context(), req.Email)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	h.challenge(w, "OTP sent", issued)
}

// HandleResetPassword handles POST /reset-password
//
//	@Summary		Reset the password with an OTP
//	@Tags			Auth
//	@Accept			json
//	@Produce		json
//	@Param			request	body		authsdk.ResetPasswordRequest	true	"Email, code, optional OTP id and new password"
//	@Success		200		{object}	authsdk.MessageResponse			"Password updated"
//	@Failure		400		{object}	authsdk.ErrorResponse			"VALIDATION_ERROR"
//	@Failure		401		{object}	authsdk.ErrorResponse			"INVALID_OTP, OTP_EXPIRED, OTP_ALREADY_USED or OTP_NOT_FOUND"
//	@Failure		404		{object}	authsdk.ErrorResponse			"NO_ACCOUNT"
//	@Router			/reset-password [post].
func (h *AuthHandler) HandleResetPassword(w http.ResponseWriter, r *http.Request) {
	var req authsdk.ResetPasswordRequest
	if !h.decode(w, r, &req) {
		return
	}
	err := h.AuthService.ResetPassword(r.Context(), service.ResetInput{
		Email:       req.Email,
		Code:        req.Code,
		OTPID:       req.OTPID,
		NewPassword: req.NewPassword,
	})
	if err != nil {
		h.fail(w, r, err)
		return
	}
	httpx.WriteJSON(w, http.StatusOK, authsdk.MessageResponse{Message: "Password updated"})
}

// HandleRefresh handles POST /refresh
//
//	@Summary		Rotate tokens
//	@Description	Exchanges the refreshToken cookie for a new access token and a rotated cookie.
//	@Tags			Auth
//	@Produce		json
//	@Success		200	{object}	authsdk.RefreshResponse	"New access token"
//	@Failure		401	{object}	authsdk.ErrorResponse	"UNAUTHORIZED (no cookie)"
//	@Failure		403	{object}	authsdk.ErrorResponse	"TOKEN_INVALID or TOKEN_EXPIRED"
//	@Router			/refresh [post].
func (h *AuthHandler) HandleRefresh(w http.ResponseWriter, r *http.Request) {
	token := h.Cookie.read(r)
	if token == "" {
		h.write(w, r, http.StatusUnauthorized, &service.Error{Code: service.CodeUnauthorized, Message: "Missing refresh token"})
		return
	}

	_, pair, err := h.AuthService.Refresh(r.Context(), token)
	if err != nil {
		e := service.AsError(err)
		status := statusFor(e.Code)
		// A bad refresh token forces a full login rather than a retry.
		if e.Code == service.CodeTokenInvalid || e.Code == service.CodeTokenExpired {
			status = http.StatusForbidden
		}
		h.write(w, r, status, e)
		return
	}

	h.Cookie.set(w, pair.RefreshToken, pair.RefreshExpiresIn)
	httpx.WriteJSON(w, http.StatusOK, authsdk.RefreshResponse{
		AccessToken: pair.AccessToken,
		ExpiresIn:   int64(pair.AccessExpiresIn.Seconds()),
	})
}

// HandleLogout handles POST /logout
//
//	@Summary		Log out
//	@Description	Clears the refresh cookie. Refresh tokens are stateless, a copied token stays valid until it expires.
//	@Tags			Auth
//	@Produce		json
//	@Success		200	{object}	authsdk.MessageResponse	"Logged out"
//	@Router			/logout [post].
func (h *AuthHandler) HandleLogout(w http.ResponseWriter, r *http.Request) {
	h.Cookie.clear(w)
	httpx.WriteJSON(w, http.StatusOK, authsdk.MessageResponse{Message: "Logged out"})
}

func sessionUser(u domain.User) authsdk.SessionUser {
	return authsdk.SessionUser{ID: u.ID, Email: u.Email, Name: u.Name}
}
