// Package scheduler keeps an active session fresh by invoking the refresh
// operation on a fixed period in the background.
package scheduler

import (
	"context"
	"sync"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

// DefaultInterval is the period between refresh ticks.
const DefaultInterval = 30 * time.Minute

// Refresher is the slice of the auth service the scheduler drives.
type Refresher interface {
	IsSessionValid() bool
	RefreshSession(ctx context.Context) error
}

// Scheduler runs a single background loop between Start and Stop. Ticks with
// no stored session are skipped; a failed refresh is logged and the loop
// simply waits for the next tick rather than retrying immediately.
type Scheduler struct {
	refresher Refresher
	interval  time.Duration
	log       zerolog.Logger

	mu     sync.Mutex
	cancel context.CancelFunc
	done   chan struct{}
}

// Option configures a Scheduler.
type Option func(*Scheduler)

// WithInterval overrides the tick period.
func WithInterval(d time.Duration) Option {
	return func(s *Scheduler) {
		s.interval = d
	}
}

// WithLogger sets the scheduler logger.
func WithLogger(l zerolog.Logger) Option {
	return func(s *Scheduler) {
		s.log = l
	}
}

// New creates an idle Scheduler.
func New(refresher Refresher, options ...Option) *Scheduler {
	s := &Scheduler{
		refresher: refresher,
		interval:  DefaultInterval,
		log:       log.Logger,
	}
	for _, opt := range options {
		opt(s)
	}
	return s
}

// Start moves the scheduler to Running. Idempotent: calling Start while
// Running never spawns a second loop.
func (s *Scheduler) Start() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.cancel != nil {
		return
	}

	ctx, cancel := context.WithCancel(context.Background())
	s.cancel = cancel
	s.done = make(chan struct{})
	go s.run(ctx, s.done)
	s.log.Info().Dur("interval", s.interval).Msg("refresh scheduler started")
}

// Stop moves the scheduler to Idle and waits for the loop to exit, so no
// refresh call happens after Stop returns. A sleeping tick is interrupted
// promptly. Safe to call when already Idle.
func (s *Scheduler) Stop() {
	s.mu.Lock()
	if s.cancel == nil {
		s.mu.Unlock()
		return
	}
	cancel := s.cancel
	done := s.done
	s.cancel = nil
	s.done = nil
	s.mu.Unlock()

	cancel()
	<-done
	s.log.Info().Msg("refresh scheduler stopped")
}

// Running reports whether the background loop is active.
func (s *Scheduler) Running() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.cancel != nil
}

func (s *Scheduler) run(ctx context.Context, done chan struct{}) {
	defer close(done)

	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.tick(ctx)
		}
	}
}

func (s *Scheduler) tick(ctx context.Context) {
	if !s.refresher.IsSessionValid() {
		s.log.Debug().Msg("refresh tick: no active session, skipping")
		return
	}
	if err := s.refresher.RefreshSession(ctx); err != nil {
		// Left for the next tick; a transient failure must not hammer the
		// identity service or log the user out.
		s.log.Warn().Err(err).Msg("refresh tick failed")
		return
	}
	s.log.Debug().Msg("refresh tick succeeded")
}
