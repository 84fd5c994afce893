package http

import (
	"net/http"
	"time"

	"github.com/aussiebroadwan/otpgate/internal/auth/domain"
	"github.com/aussiebroadwan/otpgate/internal/auth/service"
	"github.com/aussiebroadwan/otpgate/pkg/authsdk"
	"github.com/aussiebroadwan/otpgate/pkg/httpx"
)

// AccountHandler serves the bearer-authenticated user endpoints.
type AccountHandler struct {
	AuthService *service.AuthService
	AdminPolicy *service.AdminPolicy

	responder
}

// HandleProtected handles GET /protected
//
//	@Summary		Protected resource
//	@Description	Returns the caller, the token scope and whether the caller is an admin.
//	@Tags			Account
//	@Security		BearerAuth
//	@Produce		json
//	@Success		200	{object}	authsdk.ProtectedResponse	"Protected data"
//	@Failure		401	{object}	authsdk.ErrorResponse		"Missing, invalid or expired access token"
//	@Router			/protected [get].
func (h *AccountHandler) HandleProtected(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	claims, _ := httpx.ClaimsFromContext(ctx)

	u, err := h.AuthService.CurrentUser(ctx, claims.Subject)
	if err != nil {
		h.fail(w, r, err)
		return
	}

	httpx.WriteJSON(w, http.StatusOK, authsdk.ProtectedResponse{
		Message: "Protected data delivered",
		User: authsdk.ProtectedUser{
			ID:       u.ID,
			Email:    u.Email,
			Name:     u.Name,
			ImageURL: u.ImageURL,
			IsAdmin:  h.AdminPolicy.IsAdmin(u.Email),
		},
		Scope:     claims.Scope,
		Timestamp: time.Now().UTC(),
	})
}

// HandleUpdateProfile handles PATCH /profile
//
//	@Summary		Update profile
//	@Tags			Account
//	@Security		BearerAuth
//	@Accept			json
//	@Produce		json
//	@Param			request	body		authsdk.UpdateProfileRequest	true	"Fields to change"
//	@Success		200		{object}	authsdk.ProfileResponse			"Updated user"
//	@Failure		400		{object}	authsdk.ErrorResponse			"Nothing to update or name too long"
//	@Failure		401		{object}	authsdk.ErrorResponse			"Missing, invalid or expired access token"
//	@Router			/profile [patch].
func (h *AccountHandler) HandleUpdateProfile(w http.ResponseWriter, r *http.Request) {
	var req authsdk.UpdateProfileRequest
	if err := httpx.DecodeJSON(w, r, &req); err != nil {
		h.badRequest(w, r, "Bad request")
		return
	}

	u, err := h.AuthService.UpdateProfile(r.Context(), httpx.UserIDFromContext(r.Context()), domain.ProfileUpdate{
		Name:     req.Name,
		ImageURL: req.ImageURL,
	})
	if err != nil {
		h.fail(w, r, err)
		return
	}
	httpx.WriteJSON(w, http.StatusOK, authsdk.ProfileResponse{User: publicUser(u.Public())})
}

// HandleChangePassword handles POST /change-password
//
//	@Summary		Change password
//	@Tags			Account
//	@Security		BearerAuth
//	@Accept			json
//	@Produce		json
//	@Param			request	body		authsdk.ChangePasswordRequest	true	"Current and new password"
//	@Success		200		{object}	authsdk.MessageResponse			"Password updated"
//	@Failure		400		{object}	authsdk.ErrorResponse			"Wrong current password or new password too short"
//	@Failure		401		{object}	authsdk.ErrorResponse			"Missing, invalid or expired access token"
//	@Router			/change-password [post].
func (h *AccountHandler) HandleChangePassword(w http.ResponseWriter, r *http.Request) {
	var req authsdk.ChangePasswordRequest
	if err := httpx.DecodeJSON(w, r, &req); err != nil {
		h.badRequest(w, r, "Bad request")
		return
	}

	err := h.AuthService.ChangePassword(r.Context(), httpx.UserIDFromContext(r.Context()), req.CurrentPassword, req.NewPassword)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	httpx.WriteJSON(w, http.StatusOK, authsdk.MessageResponse{Message: "Password updated"})
}

func publicUser(u domain.PublicUser) authsdk.User {
	return authsdk.User{
		ID:        u.ID,
		Email:     u.Email,
		Name:      u.Name,
		ImageURL:  u.ImageURL,
		CreatedAt: u.CreatedAt,
	}
}
