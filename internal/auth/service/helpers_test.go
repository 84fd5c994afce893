package service

import (
	"context"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/aussiebroadwan/otpgate/internal/auth/domain"
	"github.com/aussiebroadwan/otpgate/internal/auth/limiter"
	"github.com/aussiebroadwan/otpgate/internal/auth/mailer"
	"github.com/aussiebroadwan/otpgate/internal/auth/store/drivers/sqlite"
	"github.com/aussiebroadwan/otpgate/pkg/cryptox"
	"github.com/aussiebroadwan/otpgate/pkg/jwtx"
)

const (
	testIssuer   = "otpgate-test"
	testAudience = "otpgate-test-api"
)

var testSecret = []byte(strings.Repeat("k", 32))

// fakeClock is a settable clock shared by every component under test.
type fakeClock struct {
	mu sync.Mutex
	t  time.Time
}

func newFakeClock() *fakeClock {
	return &fakeClock{t: time.Now().UTC().Truncate(time.Second)}
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.t
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.t = c.t.Add(d)
}

// outbox records delivered messages and fails on demand.
type outbox struct {
	mu   sync.Mutex
	sent []mailer.Message
	err  error
}

func (o *outbox) SendOTP(_ context.Context, m mailer.Message) error {
	o.mu.Lock()
	defer o.mu.Unlock()
	if o.err != nil {
		return o.err
	}
	o.sent = append(o.sent, m)
	return nil
}

func (o *outbox) failWith(err error) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.err = err
}

func (o *outbox) last(t *testing.T) mailer.Message {
	t.Helper()
	o.mu.Lock()
	defer o.mu.Unlock()
	require.NotEmpty(t, o.sent, "no message delivered")
	return o.sent[len(o.sent)-1]
}

type testEnv struct {
	store  *sqlite.Store
	clock  *fakeClock
	outbox *outbox
	otp    *OTPEngine
	tokens *TokenService
	auth   *AuthService
	admin  *AdminService
}

// fastHasher keeps argon2 cheap so the suite stays quick.
func fastHasher() *cryptox.PasswordHasher {
	return &cryptox.PasswordHasher{
		Pepper: "test-pepper",
		Params: cryptox.Argon2Params{Memory: 64, Iterations: 1, Parallelism: 1, KeyLength: 32, SaltLength: 16},
	}
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()

	st, err := sqlite.NewStore(filepath.Join(t.TempDir(), "auth.db"))
	require.NoError(t, err)
	require.NoError(t, st.ApplyMigrations())
	t.Cleanup(func() { _ = st.Close() })

	clock := newFakeClock()
	box := &outbox{}

	signer, err := jwtx.NewSignerHS256(testSecret)
	require.NoError(t, err)

	otp := &OTPEngine{
		Store:      st,
		Mailer:     box,
		TTL:        10 * time.Minute,
		BcryptCost: 4,
		Now:        clock.Now,
	}
	tokens := &TokenService{
		Signer: signer,
		Verifier: jwtx.NewVerifierHS256(testSecret, jwtx.VerifyOptions{
			Issuer: testIssuer, Audience: testAudience, Now: clock.Now,
		}),
		Issuer:     testIssuer,
		Audience:   testAudience,
		AccessTTL:  15 * time.Minute,
		RefreshTTL: 7 * 24 * time.Hour,
		Now:        clock.Now,
	}

	return &testEnv{
		store:  st,
		clock:  clock,
		outbox: box,
		otp:    otp,
		tokens: tokens,
		auth: &AuthService{
			Store:   st,
			Hasher:  fastHasher(),
			OTP:     otp,
			Tokens:  tokens,
			Limiter: limiter.Noop{},
			Now:     clock.Now,
		},
		admin: &AdminService{Store: st, OTP: otp, Now: clock.Now},
	}
}

// registerAndVerify creates an account and completes its first login.
func (e *testEnv) registerAndVerify(t *testing.T, email, password string) domain.User {
	t.Helper()
	ctx := context.Background()

	_, issued, err := e.auth.Register(ctx, RegisterInput{Email: email, Password: password})
	require.NoError(t, err)

	u, _, err := e.auth.VerifyLoginOTP(ctx, email, e.outbox.last(t).Code, issued.ID)
	require.NoError(t, err)
	return u
}

func requireCode(t *testing.T, err error, want Code) {
	t.Helper()
	require.Error(t, err)
	require.Equal(t, want, ErrorCode(err), "error: %v", err)
}
