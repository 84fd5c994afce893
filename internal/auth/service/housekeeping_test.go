package service

import (
	"context"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/aussiebroadwan/otpgate/internal/auth/domain"
)

func TestHousekeepingSweepHonoursRetention(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	u := env.registerAndVerify(t, "a@x.com", "password123")

	pending, err := env.otp.Issue(ctx, u.ID, u.Email, domain.PurposeLogin)
	require.NoError(t, err)

	hk := NewHousekeepingService(env.store, slog.New(slog.NewTextHandler(io.Discard, nil)), time.Minute, 24*time.Hour)
	hk.Now = env.clock.Now

	// Nothing has been expired for a full day yet.
	require.Zero(t, hk.Sweep(ctx))

	env.clock.Advance(25 * time.Hour)
	require.Equal(t, int64(2), hk.Sweep(ctx), "registration and login otps")

	_, err = env.store.OTPs().GetOTPByID(ctx, pending.ID)
	require.Error(t, err)

	total, err := env.store.OTPs().CountOTPs(ctx)
	require.NoError(t, err)
	require.Zero(t, total)
}

func TestHousekeepingDefaults(t *testing.T) {
	hk := NewHousekeepingService(nil, slog.Default(), 0, -time.Second)
	require.Equal(t, DefaultHousekeepingInterval, hk.Interval)
	require.Equal(t, DefaultOTPRetention, hk.Retention)
}

func TestHousekeepingStartStop(t *testing.T) {
	env := newTestEnv(t)
	hk := NewHousekeepingService(env.store, slog.New(slog.NewTextHandler(io.Discard, nil)), time.Hour, time.Hour)
	hk.Start()
	hk.Stop()
}

func TestHousekeepingStopWithoutStart(t *testing.T) {
	hk := NewHousekeepingService(nil, slog.New(slog.NewTextHandler(io.Discard, nil)), time.Hour, time.Hour)
	hk.Stop()
}
