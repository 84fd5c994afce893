package authsdk

import (
	"context"
	"net/http"
)

// ListUsers returns the newest accounts. Admin only.
func (c *Coordinator) ListUsers(ctx context.Context) ([]User, error) {
	var out AdminUsersResponse
	if err := c.call(ctx, http.MethodGet, "/admin/users", nil, &out); err != nil {
		return nil, err
	}
	return out.Users, nil
}

// ListOTPs returns the newest OTPs with their owners. Admin only.
func (c *Coordinator) ListOTPs(ctx context.Context) ([]OTPListing, error) {
	var out AdminOTPsResponse
	if err := c.call(ctx, http.MethodGet, "/admin/otps", nil, &out); err != nil {
		return nil, err
	}
	return out.OTPs, nil
}

// Overview returns dashboard totals. Admin only.
func (c *Coordinator) Overview(ctx context.Context) (*OverviewResponse, error) {
	var out OverviewResponse
	if err := c.call(ctx, http.MethodGet, "/admin/overview", nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// RevokeOTP marks an unused OTP as used. Admin only.
func (c *Coordinator) RevokeOTP(ctx context.Context, id string) (*RevokedOTP, error) {
	var out RevokeOTPResponse
	if err := c.call(ctx, http.MethodPost, "/admin/otps/revoke", RevokeOTPRequest{ID: id}, &out); err != nil {
		return nil, err
	}
	return &out.OTP, nil
}
