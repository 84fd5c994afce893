package auth_test

import (
	"errors"
	"maps"
	"net/http"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/aussiebroadwan/otpgate/pkg/authsdk"
	"github.com/stretchr/testify/require"
)

// TestRefreshRotatesAccessToken verifies the refresh cookie set at login
// yields a new access token.
func TestRefreshRotatesAccessToken(t *testing.T) {
	baseURL, cleanup := setupAuthContainer(t)
	defer cleanup()

	coord := registerAndLogin(t, baseURL, "refresh@example.com", "", userPassword)
	oldAccessToken := coord.Session.AccessToken()

	resp, err := coord.Client.Refresh(t.Context())
	require.NoError(t, err)
	require.NotEmpty(t, resp.AccessToken)
	require.Positive(t, resp.ExpiresIn)
	require.NotEqual(t, oldAccessToken, resp.AccessToken, "Access token should be rotated")

	// Both tokens stay valid until they expire.
	coord.Session.SetAccessToken(resp.AccessToken)
	_, err = coord.Protected(t.Context())
	require.NoError(t, err)
}

// TestRefreshWithoutCookie verifies a client without a session is rejected.
func TestRefreshWithoutCookie(t *testing.T) {
	baseURL, cleanup := setupAuthContainer(t)
	defer cleanup()

	client := authsdk.NewClient(baseURL)
	_, err := client.Refresh(t.Context())
	assertCode(t, err, http.StatusUnauthorized, authsdk.CodeUnauthorized)
}

// TestSilentRefresh runs the service with a two second access token so the
// coordinator has to refresh behind concurrent protected calls.
func TestSilentRefresh(t *testing.T) {
	env := baseEnv()
	maps.Copy(env, relaxedRateLimits())
	env["AUTH_ACCESS_TOKEN_TTL"] = "2s"
	baseURL, cleanup := startContainer(t, env)
	defer cleanup()

	coord := registerAndLogin(t, baseURL, "silent@example.com", "", userPassword)
	expired := coord.Session.AccessToken()

	var failures atomic.Int32
	coord.OnAuthFailure = func(error) { failures.Add(1) }

	time.Sleep(3 * time.Second)

	const n = 6
	var wg sync.WaitGroup
	errs := make([]error, n)
	for i := range n {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, errs[i] = coord.Protected(t.Context())
		}()
	}
	wg.Wait()

	for i, err := range errs {
		require.NoError(t, err, "request %d", i)
	}
	require.NotEqual(t, expired, coord.Session.AccessToken())
	require.False(t, coord.Session.Refreshing())
	require.Zero(t, failures.Load())
}

// TestLogoutEndsSession verifies logout clears both the local token and the
// refresh cookie, after which bearer calls report ErrNotLoggedIn.
func TestLogoutEndsSession(t *testing.T) {
	baseURL, cleanup := setupAuthContainer(t)
	defer cleanup()

	coord := registerAndLogin(t, baseURL, "logout@example.com", "", userPassword)
	ctx := t.Context()

	require.NoError(t, coord.Logout(ctx))
	require.Empty(t, coord.Session.AccessToken())

	_, err := coord.Client.Refresh(ctx)
	assertCode(t, err, http.StatusUnauthorized, authsdk.CodeUnauthorized)

	var failures atomic.Int32
	coord.OnAuthFailure = func(error) { failures.Add(1) }

	_, err = coord.Protected(ctx)
	require.Error(t, err)
	require.True(t, errors.Is(err, authsdk.ErrNotLoggedIn), "got %v", err)
	require.Equal(t, int32(1), failures.Load())
}
