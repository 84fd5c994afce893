package service

import (
	"context"
	"strings"
	"time"

	"github.com/aussiebroadwan/otpgate/internal/auth/domain"
	"github.com/aussiebroadwan/otpgate/internal/auth/store"
)

// AdminListLimit caps the admin listings.
const AdminListLimit = 50

// AdminPolicy is the single admin predicate: a normalized email allow-list.
type AdminPolicy struct {
	emails map[string]struct{}
}

// NewAdminPolicy builds a policy from raw addresses. Blank entries are
// ignored, so an empty policy means admin access is not configured at all.
func NewAdminPolicy(emails ...string) *AdminPolicy {
	p := &AdminPolicy{emails: make(map[string]struct{}, len(emails))}
	for _, e := range emails {
		if n := NormalizeEmail(e); n != "" {
			p.emails[n] = struct{}{}
		}
	}
	return p
}

// ParseAdminEmails splits a comma separated list, falling back to a single
// address when the list is blank.
func ParseAdminEmails(list, single string) []string {
	src := list
	if strings.TrimSpace(src) == "" {
		src = single
	}
	var out []string
	for _, e := range strings.Split(src, ",") {
		if n := NormalizeEmail(e); n != "" {
			out = append(out, n)
		}
	}
	return out
}

// Configured reports whether anyone could ever be admin.
func (p *AdminPolicy) Configured() bool { return p != nil && len(p.emails) > 0 }

// IsAdmin reports whether email is on the allow-list.
func (p *AdminPolicy) IsAdmin(email string) bool {
	if !p.Configured() {
		return false
	}
	_, ok := p.emails[NormalizeEmail(email)]
	return ok
}

// Authorize distinguishes "nobody can be admin" (ADMIN_NOT_CONFIGURED) from
// "this caller is not admin" (ADMIN_FORBIDDEN).
func (p *AdminPolicy) Authorize(email string) error {
	if !p.Configured() {
		return newError(CodeAdminNotConfigured, "Admin access is not configured")
	}
	if !p.IsAdmin(email) {
		return newError(CodeAdminForbidden, "Admin access required")
	}
	return nil
}

// AdminService backs the admin dashboard.
type AdminService struct {
	Store store.Store
	OTP   *OTPEngine
	Now   func() time.Time
}

func (s *AdminService) now() time.Time {
	if s.Now != nil {
		return s.Now().UTC()
	}
	return time.Now().UTC()
}

// ListUsers returns the newest users.
func (s *AdminService) ListUsers(ctx context.Context) ([]domain.PublicUser, error) {
	users, err := s.Store.Users().ListUsers(ctx, AdminListLimit)
	if err != nil {
		return nil, internal(err)
	}
	out := make([]domain.PublicUser, 0, len(users))
	for _, u := range users {
		out = append(out, u.Public())
	}
	return out, nil
}

// ListOTPs returns the newest OTPs with their owners. Code hashes are never
// included.
func (s *AdminService) ListOTPs(ctx context.Context) ([]domain.OTPListing, error) {
	otps, err := s.Store.OTPs().ListOTPs(ctx, AdminListLimit)
	if err != nil {
		return nil, internal(err)
	}
	if otps == nil {
		otps = []domain.OTPListing{}
	}
	return otps, nil
}

// Overview summarises users and OTPs.
func (s *AdminService) Overview(ctx context.Context) (domain.Overview, error) {
	var (
		ov  domain.Overview
		err error
	)
	if ov.TotalUsers, err = s.Store.Users().CountUsers(ctx); err != nil {
		return domain.Overview{}, internal(err)
	}
	if ov.TotalOTPs, err = s.Store.OTPs().CountOTPs(ctx); err != nil {
		return domain.Overview{}, internal(err)
	}
	if ov.ActiveOTPs, err = s.Store.OTPs().CountActiveOTPs(ctx, s.now()); err != nil {
		return domain.Overview{}, internal(err)
	}

	otps, err := s.Store.OTPs().ListOTPs(ctx, 1)
	if err != nil {
		return domain.Overview{}, internal(err)
	}
	if len(otps) > 0 {
		ov.LatestOTP = &otps[0]
	}

	users, err := s.Store.Users().ListUsers(ctx, 1)
	if err != nil {
		return domain.Overview{}, internal(err)
	}
	if len(users) > 0 {
		pu := users[0].Public()
		ov.LatestUser = &pu
	}
	return ov, nil
}

// RevokeOTP marks an unused OTP as used.
func (s *AdminService) RevokeOTP(ctx context.Context, id string) (domain.OTP, error) {
	return s.OTP.Revoke(ctx, strings.TrimSpace(id))
}
