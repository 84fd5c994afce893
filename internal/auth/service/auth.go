package service

import (
	"context"
	"errors"
	"log/slog"
	"strings"
	"time"

	"github.com/aussiebroadwan/otpgate/internal/auth/domain"
	"github.com/aussiebroadwan/otpgate/internal/auth/limiter"
	"github.com/aussiebroadwan/otpgate/internal/auth/store"
	"github.com/aussiebroadwan/otpgate/pkg/cryptox"
	"github.com/aussiebroadwan/otpgate/pkg/idx"
	"github.com/aussiebroadwan/otpgate/pkg/slogx"
)

// AuthService runs the login, registration, reset and refresh flows. Login
// never yields tokens directly: a correct password only moves the caller to
// the OTP step.
type AuthService struct {
	Store   store.Store
	Hasher  *cryptox.PasswordHasher
	OTP     *OTPEngine
	Tokens  *TokenService
	Limiter limiter.Limiter

	Now func() time.Time
}

// RegisterInput is the payload of a registration.
type RegisterInput struct {
	Email    string
	Password string
	Name     string
}

// ResetInput is the payload of a password reset.
type ResetInput struct {
	Email       string
	Code        string
	OTPID       string
	NewPassword string
}

func (s *AuthService) now() time.Time {
	if s.Now != nil {
		return s.Now().UTC()
	}
	return time.Now().UTC()
}

func (s *AuthService) limiter() limiter.Limiter {
	if s.Limiter == nil {
		return limiter.Noop{}
	}
	return s.Limiter
}

// Login checks the credentials and issues a login OTP.
func (s *AuthService) Login(ctx context.Context, email, password string) (IssuedOTP, error) {
	u, err := s.authenticate(ctx, email, password)
	if err != nil {
		return IssuedOTP{}, err
	}
	return s.OTP.Issue(ctx, u.ID, u.Email, domain.PurposeLogin)
}

// ResendOTP re-checks the credentials and issues a fresh login OTP. Earlier
// codes are left to expire.
func (s *AuthService) ResendOTP(ctx context.Context, email, password string) (IssuedOTP, error) {
	return s.Login(ctx, email, password)
}

// VerifyLoginOTP consumes a login OTP and mints a token pair.
func (s *AuthService) VerifyLoginOTP(ctx context.Context, email, code, otpID string) (domain.User, domain.TokenPair, error) {
	if strings.TrimSpace(email) == "" || strings.TrimSpace(code) == "" {
		return domain.User{}, domain.TokenPair{}, newError(CodeValidation, "Email and code required")
	}
	e, err := validateEmail(email)
	if err != nil {
		return domain.User{}, domain.TokenPair{}, err
	}
	c, err := validateCode(code)
	if err != nil {
		return domain.User{}, domain.TokenPair{}, err
	}

	u, err := s.Store.Users().GetUserByEmail(ctx, e)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return domain.User{}, domain.TokenPair{}, newError(CodeInvalidCredentials, "Invalid verification attempt")
		}
		return domain.User{}, domain.TokenPair{}, internal(err)
	}

	if err := s.consumeOTP(ctx, s.Store, u, domain.PurposeLogin, c, strings.TrimSpace(otpID)); err != nil {
		return domain.User{}, domain.TokenPair{}, err
	}

	pair, err := s.Tokens.IssuePair(u)
	if err != nil {
		return domain.User{}, domain.TokenPair{}, err
	}
	slogx.FromContext(ctx).Info("login completed", slog.String("user_id", u.ID))
	return u, pair, nil
}

// Register creates the account and starts the login OTP step. If the OTP
// cannot be delivered the account is removed again.
func (s *AuthService) Register(ctx context.Context, in RegisterInput) (domain.User, IssuedOTP, error) {
	l := slogx.FromContext(ctx)

	if strings.TrimSpace(in.Email) == "" || in.Password == "" {
		return domain.User{}, IssuedOTP{}, newError(CodeValidation, "Email and password required")
	}
	email, err := validateEmail(in.Email)
	if err != nil {
		return domain.User{}, IssuedOTP{}, err
	}
	if err := validatePassword(in.Password); err != nil {
		return domain.User{}, IssuedOTP{}, err
	}
	name, err := normalizeName(in.Name)
	if err != nil {
		return domain.User{}, IssuedOTP{}, err
	}

	_, err = s.Store.Users().GetUserByEmail(ctx, email)
	switch {
	case err == nil:
		return domain.User{}, IssuedOTP{}, newError(CodeEmailTaken, "Email already registered")
	case errors.Is(err, store.ErrNotFound):
	default:
		return domain.User{}, IssuedOTP{}, internal(err)
	}

	hash, err := s.Hasher.Hash(in.Password)
	if err != nil {
		return domain.User{}, IssuedOTP{}, internal(err)
	}

	now := s.now()
	u := domain.User{
		ID:           idx.NewAt(now).String(),
		Email:        email,
		Name:         name,
		PasswordHash: hash,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	if err := s.Store.Users().CreateUser(ctx, u); err != nil {
		if errors.Is(err, store.ErrAlreadyExists) {
			return domain.User{}, IssuedOTP{}, newError(CodeEmailTaken, "Email already registered")
		}
		return domain.User{}, IssuedOTP{}, internal(err)
	}

	issued, err := s.OTP.Issue(ctx, u.ID, u.Email, domain.PurposeLogin)
	if err != nil {
		if derr := s.Store.Users().DeleteUser(context.WithoutCancel(ctx), u.ID); derr != nil {
			l.Error("registration rollback failed", slog.String("user_id", u.ID), slog.Any("err", derr))
		}
		return domain.User{}, IssuedOTP{}, err
	}

	l.Info("user registered", slog.String("user_id", u.ID), slogx.Email("email", u.Email))
	return u, issued, nil
}

// ForgotPassword issues a reset OTP for an existing account.
func (s *AuthService) ForgotPassword(ctx context.Context, email string) (IssuedOTP, error) {
	e, err := validateEmail(email)
	if err != nil {
		return IssuedOTP{}, err
	}
	u, err := s.Store.Users().GetUserByEmail(ctx, e)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return IssuedOTP{}, newError(CodeNoAccount, "No account found with that email")
		}
		return IssuedOTP{}, internal(err)
	}
	return s.OTP.Issue(ctx, u.ID, u.Email, domain.PurposeReset)
}

// ResetPassword consumes a reset OTP and replaces the password hash. Both
// writes share one transaction.
func (s *AuthService) ResetPassword(ctx context.Context, in ResetInput) error {
	if strings.TrimSpace(in.Email) == "" || strings.TrimSpace(in.Code) == "" || in.NewPassword == "" {
		return newError(CodeValidation, "Email, code, and new password are required")
	}
	email, err := validateEmail(in.Email)
	if err != nil {
		return err
	}
	code, err := validateCode(in.Code)
	if err != nil {
		return err
	}
	if err := validatePassword(in.NewPassword); err != nil {
		return err
	}

	u, err := s.Store.Users().GetUserByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return newError(CodeNoAccount, "No account found with that email")
		}
		return internal(err)
	}

	hash, err := s.Hasher.Hash(in.NewPassword)
	if err != nil {
		return internal(err)
	}

	err = s.Store.WithTx(ctx, func(tx store.Tx) error {
		if err := s.consumeOTP(ctx, tx, u, domain.PurposeReset, code, strings.TrimSpace(in.OTPID)); err != nil {
			return err
		}
		if err := tx.Users().UpdatePasswordHash(ctx, u.ID, hash, s.now()); err != nil {
			return internal(err)
		}
		return nil
	})
	if err != nil {
		return AsError(err)
	}

	slogx.FromContext(ctx).Info("password reset", slog.String("user_id", u.ID))
	return nil
}

// Refresh validates a refresh token and rotates both tokens.
func (s *AuthService) Refresh(ctx context.Context, refreshToken string) (domain.User, domain.TokenPair, error) {
	claims, err := s.Tokens.VerifyRefreshToken(refreshToken)
	if err != nil {
		return domain.User{}, domain.TokenPair{}, err
	}

	u, err := s.Store.Users().GetUserByID(ctx, claims.Subject)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return domain.User{}, domain.TokenPair{}, newError(CodeTokenInvalid, "User not found")
		}
		return domain.User{}, domain.TokenPair{}, internal(err)
	}

	pair, err := s.Tokens.IssuePair(u)
	if err != nil {
		return domain.User{}, domain.TokenPair{}, err
	}
	return u, pair, nil
}

// CurrentUser loads the account behind a verified access token.
func (s *AuthService) CurrentUser(ctx context.Context, userID string) (domain.User, error) {
	u, err := s.Store.Users().GetUserByID(ctx, userID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return domain.User{}, newError(CodeUnauthorized, "User not found")
		}
		return domain.User{}, internal(err)
	}
	return u, nil
}

// UpdateProfile changes the display name and avatar reference.
func (s *AuthService) UpdateProfile(ctx context.Context, userID string, p domain.ProfileUpdate) (domain.User, error) {
	if p.Empty() {
		return domain.User{}, newError(CodeValidation, "Nothing to update")
	}
	if p.Name != nil {
		n, err := normalizeName(*p.Name)
		if err != nil {
			return domain.User{}, err
		}
		p.Name = &n
	}
	if p.ImageURL != nil {
		img := strings.TrimSpace(*p.ImageURL)
		p.ImageURL = &img
	}

	u, err := s.Store.Users().UpdateProfile(ctx, userID, p, s.now())
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return domain.User{}, newError(CodeUnauthorized, "User not found")
		}
		return domain.User{}, internal(err)
	}
	return u, nil
}

// ChangePassword replaces the password after checking the current one.
func (s *AuthService) ChangePassword(ctx context.Context, userID, current, next string) error {
	if current == "" || next == "" {
		return newError(CodeValidation, "Current password and new password are required")
	}
	if err := validatePassword(next); err != nil {
		return err
	}

	u, err := s.CurrentUser(ctx, userID)
	if err != nil {
		return err
	}
	if !s.Hasher.Verify(current, u.PasswordHash) {
		return newError(CodeValidation, "Current password is incorrect")
	}

	hash, err := s.Hasher.Hash(next)
	if err != nil {
		return internal(err)
	}
	if err := s.Store.Users().UpdatePasswordHash(ctx, u.ID, hash, s.now()); err != nil {
		return internal(err)
	}
	slogx.FromContext(ctx).Info("password changed", slog.String("user_id", u.ID))
	return nil
}

// authenticate answers INVALID_CREDENTIALS for both an unknown email and a
// wrong password, and spends the same hashing work on either path.
func (s *AuthService) authenticate(ctx context.Context, email, password string) (domain.User, error) {
	if strings.TrimSpace(email) == "" || password == "" {
		return domain.User{}, newError(CodeValidation, "Email and password required")
	}
	e, err := validateEmail(email)
	if err != nil {
		return domain.User{}, err
	}

	u, err := s.Store.Users().GetUserByEmail(ctx, e)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			s.Hasher.DummyVerify(password)
			return domain.User{}, errInvalidCredentials
		}
		return domain.User{}, internal(err)
	}
	if !s.Hasher.Verify(password, u.PasswordHash) {
		slogx.FromContext(ctx).Info("password mismatch", slog.String("user_id", u.ID))
		return domain.User{}, errInvalidCredentials
	}
	return u, nil
}

// consumeOTP resolves, checks and spends an OTP through st. A wrong code
// leaves the OTP usable and counts against the attempt limiter.
func (s *AuthService) consumeOTP(ctx context.Context, st store.Store, u domain.User, purpose domain.Purpose, code, otpID string) error {
	key := string(purpose) + ":" + u.ID
	if err := s.allow(ctx, key); err != nil {
		return err
	}

	otp, err := s.OTP.resolve(ctx, st, u.ID, purpose, otpID)
	if err != nil {
		return err
	}
	if !s.OTP.Verify(otp, code) {
		s.limiterCall(ctx, "fail", s.limiter().Fail(ctx, key))
		return errInvalidOTP
	}
	if err := s.OTP.markUsed(ctx, st, otp.ID); err != nil {
		return err
	}
	s.limiterCall(ctx, "reset", s.limiter().Reset(ctx, key))
	return nil
}

func (s *AuthService) allow(ctx context.Context, key string) error {
	err := s.limiter().Allow(ctx, key)
	if errors.Is(err, limiter.ErrLimited) {
		return newError(CodeRateLimited, msgTooManyAttempts)
	}
	s.limiterCall(ctx, "allow", err)
	return nil
}

// limiterCall logs limiter backend errors. The limiter fails open.
func (s *AuthService) limiterCall(ctx context.Context, op string, err error) {
	if err != nil {
		slogx.FromContext(ctx).Warn("otp limiter unavailable", slog.String("op", op), slog.Any("err", err))
	}
}
