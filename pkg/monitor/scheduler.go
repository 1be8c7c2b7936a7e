package monitor

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/weilai0412/dormwatt/internal/config"
	"github.com/weilai0412/dormwatt/pkg/portal"
)

// SessionSource owns the authenticated portal session.
type SessionSource interface {
	EnsureSession(ctx context.Context) (*portal.Session, error)
	Invalidate()
}

// BalanceFetcher retrieves one room's balance using a borrowed session.
type BalanceFetcher interface {
	FetchBalance(ctx context.Context, sess *portal.Session, roomID string) (portal.Reading, error)
}

// Dispatcher delivers a triggered decision to a room's recipients and
// returns the number of failed sends.
type Dispatcher interface {
	Dispatch(ctx context.Context, dec Decision, q config.RoomQuery) int
}

// SleepFunc waits between cycles. It returns early with ctx.Err() on
// cancellation.
type SleepFunc func(ctx context.Context, d time.Duration) error

// Scheduler runs poll cycles over all configured rooms, sequentially, one
// worker: concurrent logins are a known path to account lockouts.
type Scheduler struct {
	cfg        *config.Config
	sessions   SessionSource
	fetcher    BalanceFetcher
	dispatcher Dispatcher
	sleep      SleepFunc
	logger     *slog.Logger
}

// Option customises a Scheduler.
type Option func(*Scheduler)

// WithSleep replaces the inter-cycle wait, used by tests to observe the
// cadence without real sleeping.
func WithSleep(fn SleepFunc) Option {
	return func(s *Scheduler) { s.sleep = fn }
}

// NewScheduler wires a poll scheduler.
func NewScheduler(cfg *config.Config, sessions SessionSource, fetcher BalanceFetcher, dispatcher Dispatcher, logger *slog.Logger, opts ...Option) *Scheduler {
	s := &Scheduler{
		cfg:        cfg,
		sessions:   sessions,
		fetcher:    fetcher,
		dispatcher: dispatcher,
		sleep:      defaultSleep,
		logger:     logger,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Run drives the cadence. A zero check interval runs exactly one cycle and
// returns its outcome. A positive interval loops until ctx is cancelled,
// sleeping between cycle completions; cycle-fatal errors are logged and the
// loop keeps going, since the process runs unattended for long stretches.
func (s *Scheduler) Run(ctx context.Context) error {
	if s.cfg.CheckInterval == 0 {
		return s.runCycle(ctx)
	}

	interval := time.Duration(s.cfg.CheckInterval) * time.Second
	for {
		if err := s.runCycle(ctx); err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			s.logger.Error("cycle failed", "error", err)
		}
		if err := s.sleep(ctx, interval); err != nil {
			return err
		}
	}
}

// runCycle authenticates once, then fetches, evaluates and dispatches per
// room in configured order. The cycle holds a single re-authentication
// budget covering both a rejected login retry and a mid-cycle session
// expiry, so no cycle authenticates more than twice.
func (s *Scheduler) runCycle(ctx context.Context) error {
	log := s.logger.With("cycle", uuid.NewString())
	reauths := 0

	sess, err := s.sessions.EnsureSession(ctx)
	if errors.Is(err, portal.ErrAuthFailed) && reauths == 0 {
		reauths++
		log.Warn("login rejected, retrying once this cycle", "error", err)
		sess, err = s.sessions.EnsureSession(ctx)
	}
	if err != nil {
		return fmt.Errorf("acquire session: %w", err)
	}

	for _, q := range s.cfg.Queries {
		reading, err := s.fetcher.FetchBalance(ctx, sess, q.RoomName)
		if errors.Is(err, portal.ErrAuthExpired) && reauths == 0 {
			reauths++
			log.Warn("session expired mid-cycle, re-authenticating", "room", q.RoomName)
			s.sessions.Invalidate()
			sess, err = s.sessions.EnsureSession(ctx)
			if err != nil {
				return fmt.Errorf("re-acquire session: %w", err)
			}
			reading, err = s.fetcher.FetchBalance(ctx, sess, q.RoomName)
		}
		if err != nil {
			log.Error("room skipped this cycle", "room", q.RoomName, "error", err)
			continue
		}

		log.Info("balance read", "room", reading.Room, "balance", reading.Balance)

		dec := Evaluate(reading, s.cfg.AlertBalance)
		if !dec.Triggered {
			continue
		}
		log.Warn("balance below threshold",
			"room", dec.Room,
			"balance", dec.Balance,
			"threshold", dec.Threshold,
		)
		if failed := s.dispatcher.Dispatch(ctx, dec, q); failed > 0 {
			log.Error("notifications failed", "room", dec.Room, "failed", failed)
		}
	}
	return nil
}

func defaultSleep(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
