package service

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/aussiebroadwan/otpgate/internal/auth/domain"
	"github.com/aussiebroadwan/otpgate/internal/auth/mailer"
	"github.com/aussiebroadwan/otpgate/internal/auth/store"
	"github.com/aussiebroadwan/otpgate/pkg/cryptox"
	"github.com/aussiebroadwan/otpgate/pkg/idx"
	"github.com/aussiebroadwan/otpgate/pkg/slogx"
)

// DefaultOTPTTL is how long an issued code stays valid.
const DefaultOTPTTL = 10 * time.Minute

// IssuedOTP is the outcome of a successful Issue. DevCode is only populated
// in dev mode.
type IssuedOTP struct {
	ID        string
	ExpiresAt time.Time
	DevCode   string
}

// OTPEngine issues, resolves and consumes one-time passcodes.
type OTPEngine struct {
	Store      store.Store
	Mailer     mailer.Sender
	TTL        time.Duration
	BcryptCost int

	// DevMode hands the raw code back to the caller. Never enable it where
	// the mail channel is the only trusted path to the user.
	DevMode bool

	Now func() time.Time
}

func (e *OTPEngine) now() time.Time {
	if e.Now != nil {
		return e.Now().UTC()
	}
	return time.Now().UTC()
}

func (e *OTPEngine) ttl() time.Duration {
	if e.TTL > 0 {
		return e.TTL
	}
	return DefaultOTPTTL
}

// Issue creates and delivers a code for (userID, purpose). When delivery
// fails the stored record is deleted again so no OTP exists without an
// attempted delivery.
func (e *OTPEngine) Issue(ctx context.Context, userID, email string, purpose domain.Purpose) (IssuedOTP, error) {
	l := slogx.FromContext(ctx)
	now := e.now()

	code, err := cryptox.GenerateNumericCode(OTPDigits)
	if err != nil {
		return IssuedOTP{}, internal(err)
	}
	cost := e.BcryptCost
	if cost == 0 {
		cost = cryptox.DefaultCodeCost
	}
	hash, err := cryptox.HashCode(code, cost)
	if err != nil {
		return IssuedOTP{}, internal(err)
	}

	otp := domain.OTP{
		ID:        idx.NewAt(now).String(),
		UserID:    userID,
		CodeHash:  hash,
		Purpose:   purpose,
		ExpiresAt: now.Add(e.ttl()),
		CreatedAt: now,
	}
	if err := e.Store.OTPs().CreateOTP(ctx, otp); err != nil {
		return IssuedOTP{}, internal(err)
	}

	msg := mailer.Message{To: email, Code: code, Purpose: purpose, ExpiresAt: otp.ExpiresAt}
	if err := e.Mailer.SendOTP(ctx, msg); err != nil {
		l.Error("otp delivery failed, rolling back",
			slog.String("otp_id", otp.ID),
			slogx.Email("email", email),
			slog.Any("err", err),
		)
		// Use a fresh context so a cancelled request still cleans up.
		if derr := e.Store.OTPs().DeleteOTP(context.WithoutCancel(ctx), otp.ID); derr != nil && !errors.Is(derr, store.ErrNotFound) {
			l.Error("otp rollback failed", slog.String("otp_id", otp.ID), slog.Any("err", derr))
		}
		return IssuedOTP{}, wrapError(CodeDeliveryFailure, msgDeliveryFailure, err)
	}

	l.Info("otp issued",
		slog.String("otp_id", otp.ID),
		slog.String("purpose", string(purpose)),
		slogx.Email("email", email),
	)

	issued := IssuedOTP{ID: otp.ID, ExpiresAt: otp.ExpiresAt}
	if e.DevMode {
		issued.DevCode = code
	}
	return issued, nil
}

// Resolve picks the OTP a verification attempt targets.
//
// An explicit id is looked up within (userID, purpose). A missing or unknown
// id falls back to the newest record for (userID, purpose), so once the
// newest code is spent a superseded one cannot be replayed without its id.
// A used record fails with OTP_ALREADY_USED and an expired one with
// OTP_EXPIRED. Older unused codes stay resolvable by id until they expire.
func (e *OTPEngine) Resolve(ctx context.Context, userID string, purpose domain.Purpose, explicitID string) (domain.OTP, error) {
	return e.resolve(ctx, e.Store, userID, purpose, explicitID)
}

func (e *OTPEngine) resolve(ctx context.Context, s store.Store, userID string, purpose domain.Purpose, explicitID string) (domain.OTP, error) {
	now := e.now()
	var (
		otp   domain.OTP
		found bool
	)

	if explicitID != "" {
		o, err := s.OTPs().GetUserOTP(ctx, explicitID, userID, purpose)
		switch {
		case err == nil:
			otp, found = o, true
		case errors.Is(err, store.ErrNotFound):
		default:
			return domain.OTP{}, internal(err)
		}
	}

	if !found {
		o, err := s.OTPs().LatestOTP(ctx, userID, purpose)
		switch {
		case err == nil:
			otp, found = o, true
		case errors.Is(err, store.ErrNotFound):
		default:
			return domain.OTP{}, internal(err)
		}
	}

	if !found {
		return domain.OTP{}, &Error{
			Code:    CodeOTPNotFound,
			Message: msgOTPNotFound,
			Details: &ErrorDetails{ServerTime: now},
		}
	}
	if otp.Used() {
		return domain.OTP{}, newError(CodeOTPAlreadyUsed, msgOTPAlreadyUsed)
	}
	if otp.Expired(now) {
		exp := otp.ExpiresAt
		return domain.OTP{}, &Error{
			Code:    CodeOTPExpired,
			Message: msgOTPExpired,
			Details: &ErrorDetails{ExpiresAt: &exp, ServerTime: now},
		}
	}
	return otp, nil
}

// Verify compares code against the stored digest.
func (e *OTPEngine) Verify(otp domain.OTP, code string) bool {
	return cryptox.CompareCode(otp.CodeHash, code)
}

// MarkUsed consumes the OTP. Only the first caller wins, later or concurrent
// callers get OTP_ALREADY_USED.
func (e *OTPEngine) MarkUsed(ctx context.Context, id string) error {
	return e.markUsed(ctx, e.Store, id)
}

func (e *OTPEngine) markUsed(ctx context.Context, s store.Store, id string) error {
	err := s.OTPs().MarkOTPUsed(ctx, id, e.now())
	switch {
	case err == nil:
		return nil
	case errors.Is(err, store.ErrConflict):
		return newError(CodeOTPAlreadyUsed, msgOTPAlreadyUsed)
	case errors.Is(err, store.ErrNotFound):
		return newError(CodeOTPNotFound, msgOTPNotFound)
	default:
		return internal(err)
	}
}

// Revoke is the administrative MarkUsed. It reports NOT_FOUND for unknown
// ids and CONFLICT for OTPs that are already used.
func (e *OTPEngine) Revoke(ctx context.Context, id string) (domain.OTP, error) {
	if id == "" {
		return domain.OTP{}, newError(CodeValidation, "OTP id required")
	}

	err := e.Store.OTPs().MarkOTPUsed(ctx, id, e.now())
	switch {
	case err == nil:
	case errors.Is(err, store.ErrNotFound):
		return domain.OTP{}, newError(CodeNotFound, "OTP not found")
	case errors.Is(err, store.ErrConflict):
		return domain.OTP{}, newError(CodeConflict, "OTP already used")
	default:
		return domain.OTP{}, internal(err)
	}

	otp, err := e.Store.OTPs().GetOTPByID(ctx, id)
	if err != nil {
		return domain.OTP{}, internal(err)
	}
	slogx.FromContext(ctx).Info("otp revoked", slog.String("otp_id", id))
	return otp, nil
}
