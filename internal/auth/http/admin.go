package http

import (
	"net/http"

	"github.com/aussiebroadwan/otpgate/internal/auth/domain"
	"github.com/aussiebroadwan/otpgate/internal/auth/service"
	"github.com/aussiebroadwan/otpgate/pkg/authsdk"
	"github.com/aussiebroadwan/otpgate/pkg/httpx"
	"github.com/aussiebroadwan/otpgate/pkg/slogx"
)

// RequireAdmin runs after AuthnMiddleware and checks the token's email
// claim against the allow-list on every request.
func RequireAdmin(policy *service.AdminPolicy) httpx.Middleware {
	rs := responder{}
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			claims, ok := httpx.ClaimsFromContext(r.Context())
			if !ok {
				rs.write(w, r, http.StatusUnauthorized, &service.Error{Code: service.CodeUnauthorized, Message: "Missing access token"})
				return
			}
			if err := policy.Authorize(claims.Email); err != nil {
				slogx.FromContext(r.Context()).Warn("admin access denied",
					"user_id", claims.Subject,
					"code", service.ErrorCode(err),
				)
				rs.fail(w, r, err)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

// AdminHandler serves the admin dashboard endpoints.
type AdminHandler struct {
	AdminService *service.AdminService

	responder
}

// HandleListUsers handles GET /admin/users
//
//	@Summary		List users
//	@Description	Newest 50 accounts.
//	@Tags			Admin
//	@Security		BearerAuth
//	@Produce		json
//	@Success		200	{object}	authsdk.AdminUsersResponse	"Users"
//	@Failure		401	{object}	authsdk.ErrorResponse		"Missing, invalid or expired access token"
//	@Failure		403	{object}	authsdk.ErrorResponse		"ADMIN_FORBIDDEN or ADMIN_NOT_CONFIGURED"
//	@Router			/admin/users [get].
func (h *AdminHandler) HandleListUsers(w http.ResponseWriter, r *http.Request) {
	users, err := h.AdminService.ListUsers(r.Context())
	if err != nil {
		h.fail(w, r, err)
		return
	}
	out := make([]authsdk.User, 0, len(users))
	for _, u := range users {
		out = append(out, publicUser(u))
	}
	httpx.WriteJSON(w, http.StatusOK, authsdk.AdminUsersResponse{Users: out})
}

// HandleListOTPs handles GET /admin/otps
//
//	@Summary		List OTPs
//	@Description	Newest 50 OTPs with their owners. Code digests are never returned.
//	@Tags			Admin
//	@Security		BearerAuth
//	@Produce		json
//	@Success		200	{object}	authsdk.AdminOTPsResponse	"OTPs"
//	@Failure		401	{object}	authsdk.ErrorResponse		"Missing, invalid or expired access token"
//	@Failure		403	{object}	authsdk.ErrorResponse		"ADMIN_FORBIDDEN or ADMIN_NOT_CONFIGURED"
//	@Router			/admin/otps [get].
func (h *AdminHandler) HandleListOTPs(w http.ResponseWriter, r *http.Request) {
	otps, err := h.AdminService.ListOTPs(r.Context())
	if err != nil {
		h.fail(w, r, err)
		return
	}
	out := make([]authsdk.OTPListing, 0, len(otps))
	for _, o := range otps {
		out = append(out, otpListing(o))
	}
	httpx.WriteJSON(w, http.StatusOK, authsdk.AdminOTPsResponse{OTPs: out})
}

// HandleOverview handles GET /admin/overview
//
//	@Summary		Dashboard overview
//	@Tags			Admin
//	@Security		BearerAuth
//	@Produce		json
//	@Success		200	{object}	authsdk.OverviewResponse	"Totals and latest records"
//	@Failure		401	{object}	authsdk.ErrorResponse		"Missing, invalid or expired access token"
//	@Failure		403	{object}	authsdk.ErrorResponse		"ADMIN_FORBIDDEN or ADMIN_NOT_CONFIGURED"
//	@Router			/admin/overview [get].
func (h *AdminHandler) HandleOverview(w http.ResponseWriter, r *http.Request) {
	ov, err := h.AdminService.Overview(r.Context())
	if err != nil {
		h.fail(w, r, err)
		return
	}

	resp := authsdk.OverviewResponse{
		Totals: authsdk.OverviewTotals{
			Users:      ov.TotalUsers,
			OTPs:       ov.TotalOTPs,
			ActiveOTPs: ov.ActiveOTPs,
		},
	}
	if ov.LatestOTP != nil {
		l := otpListing(*ov.LatestOTP)
		resp.LatestOTP = &l
	}
	if ov.LatestUser != nil {
		u := publicUser(*ov.LatestUser)
		resp.LatestUser = &u
	}
	httpx.WriteJSON(w, http.StatusOK, resp)
}

// HandleRevokeOTP handles POST /admin/otps/revoke
//
//	@Summary		Revoke an OTP
//	@Description	Marks an unused OTP as used so it can no longer authenticate.
//	@Tags			Admin
//	@Security		BearerAuth
//	@Accept			json
//	@Produce		json
//	@Param			request	body		authsdk.RevokeOTPRequest	true	"OTP id"
//	@Success		200		{object}	authsdk.RevokeOTPResponse	"OTP revoked"
//	@Failure		400		{object}	authsdk.ErrorResponse		"OTP id required"
//	@Failure		403		{object}	authsdk.ErrorResponse		"ADMIN_FORBIDDEN or ADMIN_NOT_CONFIGURED"
//	@Failure		404		{object}	authsdk.ErrorResponse		"OTP not found"
//	@Failure		409		{object}	authsdk.ErrorResponse		"OTP already used"
//	@Router			/admin/otps/revoke [post].
func (h *AdminHandler) HandleRevokeOTP(w http.ResponseWriter, r *http.Request) {
	var req authsdk.RevokeOTPRequest
	if err := httpx.DecodeJSON(w, r, &req); err != nil {
		h.badRequest(w, r, "Bad request")
		return
	}

	o, err := h.AdminService.RevokeOTP(r.Context(), req.ID)
	if err != nil {
		h.fail(w, r, err)
		return
	}

	slogx.FromContext(r.Context()).Info("admin revoked otp",
		"otp_id", o.ID,
		"by", httpx.UserIDFromContext(r.Context()),
	)
	httpx.WriteJSON(w, http.StatusOK, authsdk.RevokeOTPResponse{
		Message: "OTP revoked",
		OTP: authsdk.RevokedOTP{
			ID:        o.ID,
			UserID:    o.UserID,
			Purpose:   string(o.Purpose),
			ExpiresAt: o.ExpiresAt,
			UsedAt:    o.UsedAt,
			CreatedAt: o.CreatedAt,
		},
	})
}

func otpListing(o domain.OTPListing) authsdk.OTPListing {
	return authsdk.OTPListing{
		ID:        o.ID,
		UserID:    o.UserID,
		Purpose:   string(o.Purpose),
		ExpiresAt: o.ExpiresAt,
		UsedAt:    o.UsedAt,
		CreatedAt: o.CreatedAt,
		User:      authsdk.OTPOwner{Email: o.UserEmail, Name: o.UserName},
	}
}
