package authsdk

import (
	"context"
	"net/http"
)

// Protected fetches the bearer-protected user payload.
func (c *Coordinator) Protected(ctx context.Context) (*ProtectedResponse, error) {
	var out ProtectedResponse
	if err := c.call(ctx, http.MethodGet, "/protected", nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// UpdateProfile changes the display name and/or image URL. Nil fields are
// left alone.
func (c *Coordinator) UpdateProfile(ctx context.Context, req UpdateProfileRequest) (*User, error) {
	var out ProfileResponse
	if err := c.call(ctx, http.MethodPatch, "/profile", req, &out); err != nil {
		return nil, err
	}
	return &out.User, nil
}

// ChangePassword replaces the password after re-checking the current one.
func (c *Coordinator) ChangePassword(ctx context.Context, current, next string) error {
	return c.call(ctx, http.MethodPost, "/change-password", ChangePasswordRequest{
		CurrentPassword: current,
		NewPassword:     next,
	}, nil)
}
