package scheduler

import (
	"context"
	"fmt"
	"time"

	"github.com/go-co-op/gocron"

	"github.com/vytor/bizquest/internal/logger"
	"github.com/vytor/bizquest/internal/metrics"
)

// SessionPurger removes expired and revoked sessions.
type SessionPurger interface {
	Purge(ctx context.Context) (int64, error)
}

// Scheduler runs periodic maintenance tasks
type Scheduler struct {
	scheduler *gocron.Scheduler
	purger    SessionPurger
	metrics   *metrics.Metrics
	interval  time.Duration
	ctx       context.Context
}

// New creates a scheduler. ctx carries the logger used by the tasks and
// bounds their lifetime.
func New(ctx context.Context, purger SessionPurger, m *metrics.Metrics, interval time.Duration) *Scheduler {
	s := gocron.NewScheduler(time.UTC)
	s.SingletonModeAll()
	return &Scheduler{
		scheduler: s,
		purger:    purger,
		metrics:   m,
		interval:  interval,
		ctx:       ctx,
	}
}

// Start registers the tasks and runs them in the background
func (s *Scheduler) Start() error {
	if s.interval <= 0 {
		return fmt.Errorf("purge interval must be positive, got %s", s.interval)
	}
	if _, err := s.scheduler.Every(s.interval).Do(s.purgeSessions); err != nil {
		return fmt.Errorf("schedule session purge: %w", err)
	}
	s.scheduler.StartAsync()
	logger.FromContext(s.ctx).WithPrefix("scheduler").Info("session purge scheduled every %s", s.interval)
	return nil
}

// Stop terminates all scheduled tasks
func (s *Scheduler) Stop() {
	s.scheduler.Stop()
}

func (s *Scheduler) purgeSessions() {
	log := logger.FromContext(s.ctx).WithPrefix("scheduler")
	if s.ctx.Err() != nil {
		return
	}

	n, err := s.purger.Purge(s.ctx)
	if err != nil {
		log.Error("session purge failed: %v", err)
		return
	}
	s.metrics.ObserveSessionsPurged(n)
	if n > 0 {
		log.Info("purged %d sessions", n)
	}
}
