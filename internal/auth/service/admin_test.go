package service

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/aussiebroadwan/otpgate/internal/auth/domain"
)

func TestAdminPolicy(t *testing.T) {
	t.Parallel()

	t.Run("not configured", func(t *testing.T) {
		p := NewAdminPolicy("", "  ")
		require.False(t, p.Configured())
		requireCode(t, p.Authorize("a@x.com"), CodeAdminNotConfigured)

		var nilPolicy *AdminPolicy
		requireCode(t, nilPolicy.Authorize("a@x.com"), CodeAdminNotConfigured)
	})

	t.Run("listed email is normalized", func(t *testing.T) {
		p := NewAdminPolicy(" Boss@X.com ")
		require.NoError(t, p.Authorize("boss@x.com"))
		require.NoError(t, p.Authorize("BOSS@x.com "))
		require.True(t, p.IsAdmin("boss@x.com"))
	})

	t.Run("other email forbidden", func(t *testing.T) {
		p := NewAdminPolicy("boss@x.com")
		requireCode(t, p.Authorize("a@x.com"), CodeAdminForbidden)
		require.False(t, p.IsAdmin("a@x.com"))
	})
}

func TestParseAdminEmails(t *testing.T) {
	t.Parallel()

	require.Equal(t, []string{"a@x.com", "b@x.com"}, ParseAdminEmails(" A@x.com, ,b@x.com ", "c@x.com"))
	require.Equal(t, []string{"c@x.com"}, ParseAdminEmails("", " C@x.com"))
	require.Empty(t, ParseAdminEmails("", ""))
}

func TestAdminOverviewAndListings(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	ov, err := env.admin.Overview(ctx)
	require.NoError(t, err)
	require.Zero(t, ov.TotalUsers)
	require.Nil(t, ov.LatestOTP)
	require.Nil(t, ov.LatestUser)

	env.registerAndVerify(t, "a@x.com", "password123")
	env.clock.Advance(time.Second)
	_, _, err = env.auth.Register(ctx, RegisterInput{Email: "b@x.com", Password: "password123", Name: "Bee"})
	require.NoError(t, err)

	ov, err = env.admin.Overview(ctx)
	require.NoError(t, err)
	require.Equal(t, 2, ov.TotalUsers)
	require.Equal(t, 2, ov.TotalOTPs)
	require.Equal(t, 1, ov.ActiveOTPs)
	require.NotNil(t, ov.LatestUser)
	require.Equal(t, "b@x.com", ov.LatestUser.Email)
	require.NotNil(t, ov.LatestOTP)
	require.Equal(t, "b@x.com", ov.LatestOTP.UserEmail)
	require.Equal(t, domain.PurposeLogin, ov.LatestOTP.Purpose)

	users, err := env.admin.ListUsers(ctx)
	require.NoError(t, err)
	require.Len(t, users, 2)
	require.Equal(t, "b@x.com", users[0].Email)

	otps, err := env.admin.ListOTPs(ctx)
	require.NoError(t, err)
	require.Len(t, otps, 2)

	revoked, err := env.admin.RevokeOTP(ctx, " "+otps[0].ID+" ")
	require.NoError(t, err)
	require.True(t, revoked.Used())

	ov, err = env.admin.Overview(ctx)
	require.NoError(t, err)
	require.Zero(t, ov.ActiveOTPs)
}
