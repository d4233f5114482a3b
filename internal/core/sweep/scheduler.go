package sweep

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/robfig/cron/v3"
)

// Runner runs one pass. *Service implements it.
type Runner interface {
	RunPass(ctx context.Context) error
}

// Scheduler runs passes on a cron schedule. A pass that is still running when the next one is
// due causes that tick to be skipped, so passes never overlap.
type Scheduler struct {
	runner   Runner
	cron     *cron.Cron
	logger   *slog.Logger
	fatal    chan error
	schedule string
	mu       sync.Mutex
	running  bool
}

// NewScheduler creates a scheduler for runner using a standard five-field cron expression.
func NewScheduler(runner Runner, schedule string, logger *slog.Logger) (*Scheduler, error) {
	if logger == nil {
		logger = slog.Default()
	}
	logger = logger.With("component", "sweep.scheduler")

	if _, err := cron.ParseStandard(schedule); err != nil {
		return nil, fmt.Errorf("invalid cron schedule %q: %w", schedule, err)
	}

	// cron reports recovered panics and skipped ticks through this
	cronLogger := cron.PrintfLogger(slog.NewLogLogger(logger.Handler(), slog.LevelError))

	return &Scheduler{
		runner:   runner,
		schedule: schedule,
		logger:   logger,
		fatal:    make(chan error, 1),
		cron: cron.New(cron.WithChain(
			cron.Recover(cronLogger),
			cron.SkipIfStillRunning(cronLogger),
		)),
	}, nil
}

// Start schedules passes and returns immediately. The scheduler stops when ctx is cancelled.
func (s *Scheduler) Start(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.running {
		return nil
	}

	if _, err := s.cron.AddFunc(s.schedule, func() { s.runPass(ctx) }); err != nil {
		return fmt.Errorf("failed to schedule passes: %w", err)
	}

	s.cron.Start()
	s.running = true

	s.logger.Info("scheduler started", "schedule", s.schedule)

	go func() {
		<-ctx.Done()
		s.Stop()
	}()

	return nil
}

// Wait blocks until ctx is cancelled or a pass fails with a bad credential, which no later pass
// could recover from. It returns that failure, or nil on cancellation.
func (s *Scheduler) Wait(ctx context.Context) error {
	select {
	case <-ctx.Done():
		s.Stop()
		return nil
	case err := <-s.fatal:
		s.Stop()
		return err
	}
}

func (s *Scheduler) runPass(ctx context.Context) {
	if ctx.Err() != nil {
		return
	}

	s.logger.Info("starting scheduled pass")

	err := s.runner.RunPass(ctx)
	if err == nil {
		s.logger.Info("scheduled pass completed", "next_run", s.NextRun())
		return
	}

	classified := Classify(err)
	if classified.Kind == KindBadCredential {
		s.logger.Error("credential rejected, stopping scheduler", "error", err)
		select {
		case s.fatal <- classified:
		default:
		}
		return
	}

	s.logger.Error("scheduled pass failed, will retry at the next tick", "kind", classified.Kind, "error", err)
}

// Stop stops the scheduler and waits for a running pass to finish.
func (s *Scheduler) Stop() {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.running {
		done := s.cron.Stop()
		<-done.Done()
		s.running = false
		s.logger.Info("scheduler stopped")
	}
}

// IsRunning returns true if the scheduler is running.
func (s *Scheduler) IsRunning() bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.running
}

// NextRun returns the next scheduled pass, or nil when nothing is scheduled.
func (s *Scheduler) NextRun() *time.Time {
	entries := s.cron.Entries()
	if len(entries) == 0 {
		return nil
	}

	next := entries[0].Next
	return &next
}
