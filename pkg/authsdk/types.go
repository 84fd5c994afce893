package authsdk

import (
	"time"

	"github.com/aussiebroadwan/otpgate/pkg/httpx"
	"github.com/aussiebroadwan/otpgate/pkg/jwtx"
)

// ============================================================================
// Errors
// ============================================================================

// ErrorResponse is the JSON body of every non-2xx response.
type ErrorResponse = httpx.ErrorBody

// MessageResponse is returned by endpoints with nothing else to report.
type MessageResponse struct {
	Message string `json:"message"`
}

// ============================================================================
// Login / OTP
// ============================================================================

// CredentialsRequest is the body of POST /login and POST /resend-otp.
type CredentialsRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

// OTPChallengeResponse tells the caller an OTP was sent and which one.
type OTPChallengeResponse struct {
	Message     string `json:"message,omitempty"`
	RequiresOTP bool   `json:"requiresOtp"`
	OTPID       string `json:"otpId"`

	// DevCode is filled by the Client from the X-OTP-Dev-Code header when
	// the server runs in OTP dev mode.
	DevCode string `json:"-"`
}

// VerifyOTPRequest is the body of POST /verify-otp. OTPID is optional, the
// newest code for the account is used without it.
type VerifyOTPRequest struct {
	Email string `json:"email"`
	Code  string `json:"code"`
	OTPID string `json:"otpId,omitempty"`
}

// SessionUser is the minimal identity returned after login.
type SessionUser struct {
	ID    string `json:"id"`
	Email string `json:"email"`
	Name  string `json:"name"`
}

// LoginResponse is returned by POST /verify-otp. The refresh token travels
// in the refreshToken cookie only.
type LoginResponse struct {
	AccessToken string      `json:"accessToken"`
	ExpiresIn   int64       `json:"expiresIn"`
	User        SessionUser `json:"user"`
}

// RefreshResponse is returned by POST /refresh.
type RefreshResponse struct {
	AccessToken string `json:"accessToken"`
	ExpiresIn   int64  `json:"expiresIn"`
}

// ============================================================================
// Registration / Password reset
// ============================================================================

// RegisterRequest is the body of POST /register.
type RegisterRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
	Name     string `json:"name,omitempty"`
}

// RegisterResponse is the OTP challenge plus the created account.
type RegisterResponse struct {
	OTPChallengeResponse
	User SessionUser `json:"user"`
}

// ForgotPasswordRequest is the body of POST /forgot-password.
type ForgotPasswordRequest struct {
	Email string `json:"email"`
}

// ResetPasswordRequest is the body of POST /reset-password.
type ResetPasswordRequest struct {
	Email       string `json:"email"`
	Code        string `json:"code"`
	OTPID       string `json:"otpId,omitempty"`
	NewPassword string `json:"newPassword"`
}

// ============================================================================
// Profile
// ============================================================================

// User is the public account shape.
type User struct {
	ID        string    `json:"id"`
	Email     string    `json:"email"`
	Name      *string   `json:"name"`
	ImageURL  *string   `json:"imageUrl"`
	CreatedAt time.Time `json:"createdAt"`
}

// ProtectedUser is the caller as seen by GET /protected.
type ProtectedUser struct {
	ID       string `json:"id"`
	Email    string `json:"email"`
	Name     string `json:"name"`
	ImageURL string `json:"imageUrl"`
	IsAdmin  bool   `json:"isAdmin"`
}

// ProtectedResponse is returned by GET /protected.
type ProtectedResponse struct {
	Message   string        `json:"message"`
	User      ProtectedUser `json:"user"`
	Scope     []string      `json:"scope"`
	Timestamp time.Time     `json:"timestamp"`
}

// UpdateProfileRequest is the body of PATCH /profile. Omitted fields are
// left unchanged.
type UpdateProfileRequest struct {
	Name     *string `json:"name,omitempty"`
	ImageURL *string `json:"imageUrl,omitempty"`
}

// ProfileResponse wraps the updated user.
type ProfileResponse struct {
	User User `json:"user"`
}

// ChangePasswordRequest is the body of POST /change-password.
type ChangePasswordRequest struct {
	CurrentPassword string `json:"currentPassword"`
	NewPassword     string `json:"newPassword"`
}

// ============================================================================
// Admin
// ============================================================================

// AdminUsersResponse is returned by GET /admin/users.
type AdminUsersResponse struct {
	Users []User `json:"users"`
}

// OTPListing is an OTP with its owner. Code digests are never exposed.
type OTPListing struct {
	ID        string     `json:"id"`
	UserID    string     `json:"userId"`
	Purpose   string     `json:"purpose"`
	ExpiresAt time.Time  `json:"expiresAt"`
	UsedAt    *time.Time `json:"usedAt"`
	CreatedAt time.Time  `json:"createdAt"`
	User      OTPOwner   `json:"user"`
}

// OTPOwner identifies the account an OTP belongs to.
type OTPOwner struct {
	Email string  `json:"email"`
	Name  *string `json:"name"`
}

// AdminOTPsResponse is returned by GET /admin/otps.
type AdminOTPsResponse struct {
	OTPs []OTPListing `json:"otps"`
}

// OverviewTotals are the dashboard counters.
type OverviewTotals struct {
	Users      int `json:"users"`
	OTPs       int `json:"otps"`
	ActiveOTPs int `json:"activeOtps"`
}

// OverviewResponse is returned by GET /admin/overview.
type OverviewResponse struct {
	Totals     OverviewTotals `json:"totals"`
	LatestOTP  *OTPListing    `json:"latestOtp"`
	LatestUser *User          `json:"latestUser"`
}

// RevokeOTPRequest is the body of POST /admin/otps/revoke.
type RevokeOTPRequest struct {
	ID string `json:"id"`
}

// RevokedOTP is the OTP after revocation.
type RevokedOTP struct {
	ID        string     `json:"id"`
	UserID    string     `json:"userId"`
	Purpose   string     `json:"purpose"`
	ExpiresAt time.Time  `json:"expiresAt"`
	UsedAt    *time.Time `json:"usedAt"`
	CreatedAt time.Time  `json:"createdAt"`
}

// RevokeOTPResponse is returned by POST /admin/otps/revoke.
type RevokeOTPResponse struct {
	Message string     `json:"message"`
	OTP     RevokedOTP `json:"otp"`
}

// ============================================================================
// System
// ============================================================================

// HealthChecks reports the state of critical dependencies.
type HealthChecks struct {
	Database string `json:"database"`
	Signer   string `json:"signer"`
}

// HealthResponse is returned by /livez and /readyz.
type HealthResponse struct {
	Status  string        `json:"status"`
	Uptime  string        `json:"uptime"`
	Version string        `json:"version"`
	Checks  *HealthChecks `json:"checks,omitempty"`
}

// JWKSResponse is the public key set for EdDSA deployments.
type JWKSResponse = jwtx.JWKS
