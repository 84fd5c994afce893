// Package limiter caps failed OTP verification attempts per key within a
// fixed window.
package limiter

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

var (
	// ErrLimited means the key exhausted its attempts for the current window.
	ErrLimited = errors.New("limiter: too many attempts")
	// ErrUnavailable wraps backend failures. Callers fail open on it.
	ErrUnavailable = errors.New("limiter: backend unavailable")
)

const (
	DefaultMaxAttempts = 5
	DefaultWindow      = 15 * time.Minute

	keyPrefix = "otpgate:otp:"
)

// Limiter tracks failures for a key.
type Limiter interface {
	// Allow returns ErrLimited when the key has no attempts left.
	Allow(ctx context.Context, key string) error
	// Fail records one failed attempt.
	Fail(ctx context.Context, key string) error
	// Reset forgets the key, typically after a successful verification.
	Reset(ctx context.Context, key string) error
}

// Noop never limits.
type Noop struct{}

func (Noop) Allow(context.Context, string) error { return nil }
func (Noop) Fail(context.Context, string) error  { return nil }
func (Noop) Reset(context.Context, string) error { return nil }

// Redis is a fixed window counter. The window starts at the first failure.
type Redis struct {
	client      redis.Cmdable
	maxAttempts int64
	window      time.Duration
}

// NewRedis returns a limiter backed by client. Non-positive arguments take
// the defaults.
func NewRedis(client redis.Cmdable, maxAttempts int, window time.Duration) *Redis {
	if maxAttempts <= 0 {
		maxAttempts = DefaultMaxAttempts
	}
	if window <= 0 {
		window = DefaultWindow
	}
	return &Redis{client: client, maxAttempts: int64(maxAttempts), window: window}
}

func (l *Redis) key(k string) string { return keyPrefix + k }

func (l *Redis) Allow(ctx context.Context, key string) error {
	count, err := l.client.Get(ctx, l.key(key)).Int64()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil
		}
		return fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	if count >= l.maxAttempts {
		return ErrLimited
	}
	return nil
}

func (l *Redis) Fail(ctx context.Context, key string) error {
	count, err := l.client.Incr(ctx, l.key(key)).Result()
	if err != nil {
		return fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	if count == 1 {
		if err := l.client.Expire(ctx, l.key(key), l.window).Err(); err != nil {
			return fmt.Errorf("%w: %v", ErrUnavailable, err)
		}
	}
	return nil
}

func (l *Redis) Reset(ctx context.Context, key string) error {
	if err := l.client.Del(ctx, l.key(key)).Err(); err != nil {
		return fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	return nil
}
