package service

import (
	"context"
	"log/slog"
	"sync/atomic"
	"time"

	"github.com/aussiebroadwan/otpgate/internal/auth/store"
)

const (
	DefaultHousekeepingInterval = time.Hour
	DefaultOTPRetention         = 7 * 24 * time.Hour
)

// HousekeepingService periodically deletes OTPs that expired more than
// Retention ago so the otps table does not grow without bound. Recently
// expired records are kept, verification still reports them as expired and
// the admin listing still shows them.
type HousekeepingService struct {
	Store     store.Store
	Logger    *slog.Logger
	Interval  time.Duration
	Retention time.Duration
	Now       func() time.Time

	started atomic.Bool
	stopped atomic.Bool
	stopCh  chan struct{}
	doneCh  chan struct{}
}

// NewHousekeepingService returns a stopped service. Non-positive durations
// take the defaults.
func NewHousekeepingService(st store.Store, logger *slog.Logger, interval, retention time.Duration) *HousekeepingService {
	if interval <= 0 {
		interval = DefaultHousekeepingInterval
	}
	if retention <= 0 {
		retention = DefaultOTPRetention
	}

	return &HousekeepingService{
		Store:     st,
		Logger:    logger,
		Interval:  interval,
		Retention: retention,
		stopCh:    make(chan struct{}),
		doneCh:    make(chan struct{}),
	}
}

// Start runs a sweep immediately and then every Interval until Stop. A
// service runs at most once.
func (s *HousekeepingService) Start() {
	if !s.started.CompareAndSwap(false, true) {
		return
	}
	go s.run()
	s.Logger.Info("housekeeping service started", "interval", s.Interval, "otp_retention", s.Retention)
}

// Stop blocks until an in-progress sweep has finished. It is a no-op when
// the service was never started.
func (s *HousekeepingService) Stop() {
	if !s.started.Load() || !s.stopped.CompareAndSwap(false, true) {
		return
	}
	close(s.stopCh)
	<-s.doneCh
	s.Logger.Info("housekeeping service stopped")
}

func (s *HousekeepingService) run() {
	defer close(s.doneCh)

	ticker := time.NewTicker(s.Interval)
	defer ticker.Stop()

	s.Sweep(context.Background())

	for {
		select {
		case <-ticker.C:
			s.Sweep(context.Background())
		case <-s.stopCh:
			return
		}
	}
}

// Sweep deletes OTPs whose expiry is older than Retention and returns the
// count. Failures are logged, the next tick tries again.
func (s *HousekeepingService) Sweep(ctx context.Context) int64 {
	now := time.Now().UTC()
	if s.Now != nil {
		now = s.Now().UTC()
	}

	n, err := s.Store.OTPs().DeleteExpiredOTPs(ctx, now.Add(-s.Retention))
	if err != nil {
		s.Logger.Error("failed to delete expired otps", "error", err)
		return 0
	}
	if n > 0 {
		s.Logger.Info("deleted expired otps", "count", n)
	} else {
		s.Logger.Debug("no expired otps to delete")
	}
	return n
}
