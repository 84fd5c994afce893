// Package mailer delivers one-time passcodes out of band. Delivery is a
// fallible capability: callers roll back the OTP when SendOTP fails.
package mailer

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/aussiebroadwan/otpgate/internal/auth/domain"
	"github.com/aussiebroadwan/otpgate/pkg/slogx"
)

// ErrNotConfigured is returned by senders that lack the settings to deliver.
var ErrNotConfigured = errors.New("mailer: delivery is not configured")

// Message is one OTP delivery.
type Message struct {
	To        string
	Code      string
	Purpose   domain.Purpose
	ExpiresAt time.Time
}

// Sender delivers OTP messages.
type Sender interface {
	SendOTP(ctx context.Context, m Message) error
}

// SenderFunc adapts a function to Sender.
type SenderFunc func(ctx context.Context, m Message) error

func (f SenderFunc) SendOTP(ctx context.Context, m Message) error { return f(ctx, m) }

// LogSender pretends to deliver by logging that a code was issued. The code
// itself is never logged. Only meant for local development together with the
// dev code header.
type LogSender struct {
	Logger *slog.Logger
}

func (s LogSender) SendOTP(ctx context.Context, m Message) error {
	l := s.Logger
	if l == nil {
		l = slogx.FromContext(ctx)
	}
	l.Info("otp delivery skipped (log sender)",
		slogx.Email("to", m.To),
		"purpose", m.Purpose,
		"expires_at", m.ExpiresAt,
	)
	return nil
}

// FailingSender fails every delivery with Err, or ErrNotConfigured when Err
// is nil.
type FailingSender struct {
	Err error
}

func (s FailingSender) SendOTP(context.Context, Message) error {
	if s.Err != nil {
		return s.Err
	}
	return ErrNotConfigured
}
