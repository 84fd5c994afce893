package auth_test

import (
	"net/http"
	"testing"

	"github.com/aussiebroadwan/otpgate/pkg/authsdk"
	"github.com/stretchr/testify/require"
)

// TestRateLimitLoginEndpoint verifies that /login is rate limited per IP and
// email. The strict profile allows 10 requests per minute.
func TestRateLimitLoginEndpoint(t *testing.T) {
	baseURL, cleanup := setupAuthContainerWithDefaultRateLimits(t)
	defer cleanup()

	client := authsdk.NewClient(baseURL)
	ctx := t.Context()

	for i := range 10 {
		_, err := client.Login(ctx, "victim@example.com", "wrong-password")
		assertCode(t, err, http.StatusUnauthorized, authsdk.CodeInvalidCredentials)
		t.Logf("request %d rejected by credentials, not the limiter", i+1)
	}

	_, err := client.Login(ctx, "victim@example.com", "wrong-password")
	assertCode(t, err, http.StatusTooManyRequests, authsdk.CodeRateLimited)

	// A different email has its own bucket.
	_, err = client.Login(ctx, "other@example.com", "wrong-password")
	assertCode(t, err, http.StatusUnauthorized, authsdk.CodeInvalidCredentials)
}

// TestRateLimitVerifyOTPEndpoint verifies that OTP guessing hits the limiter.
func TestRateLimitVerifyOTPEndpoint(t *testing.T) {
	baseURL, cleanup := setupAuthContainerWithDefaultRateLimits(t)
	defer cleanup()

	client := authsdk.NewClient(baseURL)
	ctx := t.Context()

	var limited bool
	for range 12 {
		_, err := client.VerifyOTP(ctx, "guess@example.com", "123456", "")
		require.Error(t, err)
		if authsdk.IsCode(err, authsdk.CodeRateLimited) {
			limited = true
			break
		}
	}
	require.True(t, limited, "OTP guessing should be rate limited")
}

// TestRateLimitDoesNotAffectHealth verifies polling probes stay within the
// lenient budget.
func TestRateLimitDoesNotAffectHealth(t *testing.T) {
	baseURL, cleanup := setupAuthContainerWithDefaultRateLimits(t)
	defer cleanup()

	client := authsdk.NewClient(baseURL)
	for range 50 {
		health, err := client.GetLiveness(t.Context())
		assertHealthy(t, health, err)
	}
}
