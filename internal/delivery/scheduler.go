package delivery

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/go-co-op/gocron"
)

// SweepInterval is how often idle sessions are swept.
const SweepInterval = time.Minute

// Sweeper drops idle in-memory sessions.
type Sweeper interface {
	SweepIdle(maxAge time.Duration) int
}

// SchedulerConfig configures the periodic jobs.
type SchedulerConfig struct {
	DeliveryInterval time.Duration
	SessionIdleTTL   time.Duration
}

// Scheduler runs summary delivery and idle-session sweeping in the
// background.
type Scheduler struct {
	scheduler *gocron.Scheduler
	deliverer *Deliverer
	sweeper   Sweeper
	cfg       SchedulerConfig
	logger    *slog.Logger
}

// NewScheduler returns a Scheduler. Either of deliverer and sweeper may
// be nil to skip its job.
func NewScheduler(deliverer *Deliverer, sweeper Sweeper, cfg SchedulerConfig, logger *slog.Logger) *Scheduler {
	if logger == nil {
		logger = slog.Default()
	}
	return &Scheduler{
		scheduler: gocron.NewScheduler(time.UTC),
		deliverer: deliverer,
		sweeper:   sweeper,
		cfg:       cfg,
		logger:    logger,
	}
}

// Start registers the jobs and starts them without blocking.
func (s *Scheduler) Start() error {
	s.scheduler.SingletonModeAll()
	if s.deliverer != nil && s.cfg.DeliveryInterval > 0 {
		if _, err := s.scheduler.Every(s.cfg.DeliveryInterval).Do(s.runDelivery); err != nil {
			return fmt.Errorf("schedule delivery: %w", err)
		}
	}
	if s.sweeper != nil && s.cfg.SessionIdleTTL > 0 {
		if _, err := s.scheduler.Every(SweepInterval).Do(s.runSweep); err != nil {
			return fmt.Errorf("schedule sweep: %w", err)
		}
	}
	s.scheduler.StartAsync()
	return nil
}

// Stop halts the jobs.
func (s *Scheduler) Stop() {
	s.scheduler.Stop()
}

// Jobs returns the number of registered jobs.
func (s *Scheduler) Jobs() int {
	return len(s.scheduler.Jobs())
}

func (s *Scheduler) runDelivery() {
	if _, err := s.deliverer.DeliverPending(context.Background()); err != nil {
		s.logger.Warn("delivery run", "error", err)
	}
}

func (s *Scheduler) runSweep() {
	if n := s.sweeper.SweepIdle(s.cfg.SessionIdleTTL); n > 0 {
		s.logger.Info("swept idle sessions", "count", n)
	}
}
