package service

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/require"

	"github.com/aussiebroadwan/otpgate/internal/auth/domain"
	"github.com/aussiebroadwan/otpgate/internal/auth/limiter"
	"github.com/aussiebroadwan/otpgate/internal/auth/store"
)

func TestLoginOnlyIssuesOTP(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	env.registerAndVerify(t, "a@x.com", "password123")

	issued, err := env.auth.Login(ctx, "  A@X.com ", "password123")
	require.NoError(t, err)
	require.NotEmpty(t, issued.ID)

	msg := env.outbox.last(t)
	require.Equal(t, "a@x.com", msg.To)
	require.Equal(t, domain.PurposeLogin, msg.Purpose)
}

func TestLoginInvalidCredentialsAreUniform(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	env.registerAndVerify(t, "a@x.com", "password123")

	_, errUnknown := env.auth.Login(ctx, "nobody@x.com", "password123")
	_, errWrong := env.auth.Login(ctx, "a@x.com", "wrong-password")

	requireCode(t, errUnknown, CodeInvalidCredentials)
	requireCode(t, errWrong, CodeInvalidCredentials)
	require.Equal(t, errUnknown.Error(), errWrong.Error())
}

func TestLoginValidation(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	tests := []struct {
		name, email, password string
	}{
		{"missing email", "", "password123"},
		{"missing password", "a@x.com", ""},
		{"bad email", "not-an-email", "password123"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := env.auth.Login(ctx, tt.email, tt.password)
			requireCode(t, err, CodeValidation)
		})
	}
}

func TestLoginDeliveryFailureLeavesNoOTP(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	env.registerAndVerify(t, "a@x.com", "password123")

	env.outbox.failWith(errors.New("smtp down"))
	_, err := env.auth.Login(ctx, "a@x.com", "password123")
	requireCode(t, err, CodeDeliveryFailure)

	n, err := env.store.OTPs().CountOTPs(ctx)
	require.NoError(t, err)
	require.Equal(t, 1, n, "only the registration OTP remains")
}

func TestRegisterVerifyScenario(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	u, issued, err := env.auth.Register(ctx, RegisterInput{Email: "a@x.com", Password: "password123"})
	require.NoError(t, err)
	require.Equal(t, "a@x.com", u.Email)
	require.NotEmpty(t, issued.ID)
	code := env.outbox.last(t).Code

	wrong := "000000"
	if code == wrong {
		wrong = "111111"
	}
	_, _, err = env.auth.VerifyLoginOTP(ctx, "a@x.com", wrong, issued.ID)
	requireCode(t, err, CodeInvalidOTP)

	got, pair, err := env.auth.VerifyLoginOTP(ctx, "a@x.com", code, issued.ID)
	require.NoError(t, err)
	require.Equal(t, u.ID, got.ID)
	require.NotEmpty(t, pair.AccessToken)
	require.NotEmpty(t, pair.RefreshToken)
	require.Equal(t, 15*time.Minute, pair.AccessExpiresIn)

	_, _, err = env.auth.VerifyLoginOTP(ctx, "a@x.com", code, issued.ID)
	requireCode(t, err, CodeOTPAlreadyUsed)

	_, _, err = env.auth.VerifyLoginOTP(ctx, "a@x.com", code, "")
	requireCode(t, err, CodeOTPAlreadyUsed)
}

func TestVerifyLoginOTPExpired(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	_, issued, err := env.auth.Register(ctx, RegisterInput{Email: "a@x.com", Password: "password123"})
	require.NoError(t, err)
	code := env.outbox.last(t).Code

	env.clock.Advance(10*time.Minute + time.Second)
	_, _, err = env.auth.VerifyLoginOTP(ctx, "a@x.com", code, issued.ID)
	requireCode(t, err, CodeOTPExpired)

	_, _, err = env.auth.VerifyLoginOTP(ctx, "a@x.com", code, "")
	requireCode(t, err, CodeOTPExpired)
}

func TestVerifyLoginOTPValidation(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	_, _, err := env.auth.VerifyLoginOTP(ctx, "a@x.com", "", "")
	requireCode(t, err, CodeValidation)
	_, _, err = env.auth.VerifyLoginOTP(ctx, "a@x.com", "12345", "")
	requireCode(t, err, CodeValidation)
	_, _, err = env.auth.VerifyLoginOTP(ctx, "nobody@x.com", "123456", "")
	requireCode(t, err, CodeInvalidCredentials)
}

func TestVerifyLoginOTPConcurrent(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	_, issued, err := env.auth.Register(ctx, RegisterInput{Email: "a@x.com", Password: "password123"})
	require.NoError(t, err)
	code := env.outbox.last(t).Code

	const n = 8
	var (
		wg   sync.WaitGroup
		errs = make([]error, n)
	)
	for i := range n {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, _, errs[i] = env.auth.VerifyLoginOTP(ctx, "a@x.com", code, issued.ID)
		}(i)
	}
	wg.Wait()

	wins := 0
	for _, err := range errs {
		if err == nil {
			wins++
			continue
		}
		require.Equal(t, CodeOTPAlreadyUsed, ErrorCode(err), "error: %v", err)
	}
	require.Equal(t, 1, wins)
}

func TestResendSupersedesButKeepsOlderResolvable(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	env.registerAndVerify(t, "a@x.com", "password123")

	first, err := env.auth.Login(ctx, "a@x.com", "password123")
	require.NoError(t, err)
	firstCode := env.outbox.last(t).Code

	env.clock.Advance(time.Second)
	second, err := env.auth.ResendOTP(ctx, "a@x.com", "password123")
	require.NoError(t, err)
	require.NotEqual(t, first.ID, second.ID)
	secondCode := env.outbox.last(t).Code

	_, _, err = env.auth.VerifyLoginOTP(ctx, "a@x.com", secondCode, "")
	require.NoError(t, err)

	// Without an id only the newest record counts, and it is spent.
	_, _, err = env.auth.VerifyLoginOTP(ctx, "a@x.com", secondCode, "")
	requireCode(t, err, CodeOTPAlreadyUsed)
	_, _, err = env.auth.VerifyLoginOTP(ctx, "a@x.com", firstCode, "")
	requireCode(t, err, CodeOTPAlreadyUsed)

	_, _, err = env.auth.VerifyLoginOTP(ctx, "a@x.com", firstCode, first.ID)
	require.NoError(t, err)

	_, err = env.auth.ResendOTP(ctx, "a@x.com", "wrong-password")
	requireCode(t, err, CodeInvalidCredentials)
}

func TestRegisterEmailTaken(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	_, _, err := env.auth.Register(ctx, RegisterInput{Email: "a@x.com", Password: "password123"})
	require.NoError(t, err)

	_, _, err = env.auth.Register(ctx, RegisterInput{Email: "  A@X.COM ", Password: "password123"})
	requireCode(t, err, CodeEmailTaken)
}

func TestRegisterValidation(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	long := make([]rune, MaxNameLength+1)
	for i := range long {
		long[i] = 'é'
	}

	tests := []struct {
		name string
		in   RegisterInput
	}{
		{"missing email", RegisterInput{Password: "password123"}},
		{"bad email", RegisterInput{Email: "a@x", Password: "password123"}},
		{"short password", RegisterInput{Email: "a@x.com", Password: "short"}},
		{"long name", RegisterInput{Email: "a@x.com", Password: "password123", Name: string(long)}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, _, err := env.auth.Register(ctx, tt.in)
			requireCode(t, err, CodeValidation)
		})
	}

	u, _, err := env.auth.Register(ctx, RegisterInput{Email: "b@x.com", Password: "password123", Name: string(long[:MaxNameLength])})
	require.NoError(t, err)
	require.Equal(t, string(long[:MaxNameLength]), u.Name)
}

func TestRegisterDeliveryFailureRemovesUser(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	env.outbox.failWith(errors.New("smtp down"))
	_, _, err := env.auth.Register(ctx, RegisterInput{Email: "a@x.com", Password: "password123"})
	requireCode(t, err, CodeDeliveryFailure)

	_, err = env.store.Users().GetUserByEmail(ctx, "a@x.com")
	require.ErrorIs(t, err, store.ErrNotFound)
	n, err := env.store.OTPs().CountOTPs(ctx)
	require.NoError(t, err)
	require.Zero(t, n)

	env.outbox.failWith(nil)
	_, _, err = env.auth.Register(ctx, RegisterInput{Email: "a@x.com", Password: "password123"})
	require.NoError(t, err, "email must be free again")
}

func TestPasswordReset(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	env.registerAndVerify(t, "a@x.com", "password123")

	_, err := env.auth.ForgotPassword(ctx, "nobody@x.com")
	requireCode(t, err, CodeNoAccount)

	issued, err := env.auth.ForgotPassword(ctx, "A@x.com")
	require.NoError(t, err)
	code := env.outbox.last(t).Code

	_, _, err = env.auth.VerifyLoginOTP(ctx, "a@x.com", code, issued.ID)
	require.Error(t, err, "a reset code is never a login code")

	err = env.auth.ResetPassword(ctx, ResetInput{Email: "a@x.com", Code: code, OTPID: issued.ID, NewPassword: "short"})
	requireCode(t, err, CodeValidation)

	wrong := "000000"
	if code == wrong {
		wrong = "111111"
	}
	err = env.auth.ResetPassword(ctx, ResetInput{Email: "a@x.com", Code: wrong, OTPID: issued.ID, NewPassword: "new-password"})
	requireCode(t, err, CodeInvalidOTP)

	_, err = env.auth.Login(ctx, "a@x.com", "password123")
	require.NoError(t, err, "failed reset must keep the old password")

	require.NoError(t, env.auth.ResetPassword(ctx, ResetInput{Email: "a@x.com", Code: code, OTPID: issued.ID, NewPassword: "new-password"}))

	_, err = env.auth.Login(ctx, "a@x.com", "password123")
	requireCode(t, err, CodeInvalidCredentials)
	_, err = env.auth.Login(ctx, "a@x.com", "new-password")
	require.NoError(t, err)

	err = env.auth.ResetPassword(ctx, ResetInput{Email: "a@x.com", Code: code, OTPID: issued.ID, NewPassword: "other-password"})
	requireCode(t, err, CodeOTPAlreadyUsed)

	err = env.auth.ResetPassword(ctx, ResetInput{Email: "nobody@x.com", Code: code, NewPassword: "other-password"})
	requireCode(t, err, CodeNoAccount)
}

func TestRefresh(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	_, issued, err := env.auth.Register(ctx, RegisterInput{Email: "a@x.com", Password: "password123"})
	require.NoError(t, err)
	u, pair, err := env.auth.VerifyLoginOTP(ctx, "a@x.com", env.outbox.last(t).Code, issued.ID)
	require.NoError(t, err)

	t.Run("rotates", func(t *testing.T) {
		env.clock.Advance(time.Second)
		got, next, err := env.auth.Refresh(ctx, pair.RefreshToken)
		require.NoError(t, err)
		require.Equal(t, u.ID, got.ID)
		require.NotEqual(t, pair.RefreshToken, next.RefreshToken)

		claims, err := env.tokens.VerifyAccessToken(next.AccessToken)
		require.NoError(t, err)
		require.Equal(t, u.Email, claims.Email)
	})

	t.Run("access token is not a refresh token", func(t *testing.T) {
		_, _, err := env.auth.Refresh(ctx, pair.AccessToken)
		requireCode(t, err, CodeTokenInvalid)
	})

	t.Run("missing", func(t *testing.T) {
		_, _, err := env.auth.Refresh(ctx, "")
		requireCode(t, err, CodeUnauthorized)
	})

	t.Run("deleted user", func(t *testing.T) {
		require.NoError(t, env.store.Users().DeleteUser(ctx, u.ID))
		_, _, err := env.auth.Refresh(ctx, pair.RefreshToken)
		requireCode(t, err, CodeTokenInvalid)
	})

	t.Run("expired", func(t *testing.T) {
		env.clock.Advance(8 * 24 * time.Hour)
		_, _, err := env.auth.Refresh(ctx, pair.RefreshToken)
		requireCode(t, err, CodeTokenExpired)
	})
}

func TestUpdateProfile(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	u := env.registerAndVerify(t, "a@x.com", "password123")

	_, err := env.auth.UpdateProfile(ctx, u.ID, domain.ProfileUpdate{})
	requireCode(t, err, CodeValidation)

	name := "  Ada  "
	img := " https://cdn.example.com/a.png "
	got, err := env.auth.UpdateProfile(ctx, u.ID, domain.ProfileUpdate{Name: &name, ImageURL: &img})
	require.NoError(t, err)
	require.Equal(t, "Ada", got.Name)
	require.Equal(t, "https://cdn.example.com/a.png", got.ImageURL)
	require.Equal(t, "a@x.com", got.Email)

	tooLong := strings.Repeat("x", MaxNameLength+1)
	_, err = env.auth.UpdateProfile(ctx, u.ID, domain.ProfileUpdate{Name: &tooLong})
	requireCode(t, err, CodeValidation)

	_, err = env.auth.UpdateProfile(ctx, "missing", domain.ProfileUpdate{Name: &name})
	requireCode(t, err, CodeUnauthorized)
}

func TestChangePassword(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	u := env.registerAndVerify(t, "a@x.com", "password123")

	requireCode(t, env.auth.ChangePassword(ctx, u.ID, "", "new-password"), CodeValidation)
	requireCode(t, env.auth.ChangePassword(ctx, u.ID, "password123", "short"), CodeValidation)
	requireCode(t, env.auth.ChangePassword(ctx, u.ID, "wrong-password", "new-password"), CodeValidation)
	requireCode(t, env.auth.ChangePassword(ctx, "missing", "password123", "new-password"), CodeUnauthorized)

	require.NoError(t, env.auth.ChangePassword(ctx, u.ID, "password123", "new-password"))
	_, err := env.auth.Login(ctx, "a@x.com", "new-password")
	require.NoError(t, err)
}

func TestOTPAttemptLimiter(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	mr, err := miniredis.Run()
	require.NoError(t, err)
	t.Cleanup(mr.Close)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = rdb.Close() })
	env.auth.Limiter = limiter.NewRedis(rdb, 2, time.Minute)

	_, issued, err := env.auth.Register(ctx, RegisterInput{Email: "a@x.com", Password: "password123"})
	require.NoError(t, err)
	code := env.outbox.last(t).Code
	wrong := "000000"
	if code == wrong {
		wrong = "111111"
	}

	for range 2 {
		_, _, err := env.auth.VerifyLoginOTP(ctx, "a@x.com", wrong, issued.ID)
		requireCode(t, err, CodeInvalidOTP)
	}
	_, _, err = env.auth.VerifyLoginOTP(ctx, "a@x.com", code, issued.ID)
	requireCode(t, err, CodeRateLimited)

	mr.FastForward(time.Minute + time.Second)
	_, _, err = env.auth.VerifyLoginOTP(ctx, "a@x.com", code, issued.ID)
	require.NoError(t, err)

	t.Run("fails open when redis is down", func(t *testing.T) {
		mr.Close()
		_, _, err := env.auth.VerifyLoginOTP(ctx, "a@x.com", code, issued.ID)
		requireCode(t, err, CodeOTPAlreadyUsed)
	})
}
