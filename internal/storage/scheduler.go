package storage

import (
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/go-co-op/gocron/v2"
)

// scheduler is a thin wrapper around gocron for the Manager's periodic jobs
// (GC, tier sweeps). Unlike the teacher's per-subsystem scheduler, it only
// needs named cron registration and a clean shutdown; job progress tracking
// and rebuild-on-concurrency-change are not needed at this scale.
type scheduler struct {
	mu        sync.Mutex
	scheduler gocron.Scheduler
	jobs      map[string]gocron.Job
	now       func() time.Time
	logger    *slog.Logger
}

func newScheduler(logger *slog.Logger, maxConcurrent int, now func() time.Time) (*scheduler, error) {
	if maxConcurrent <= 0 {
		maxConcurrent = 4
	}
	s, err := gocron.NewScheduler(
		gocron.WithLimitConcurrentJobs(uint(maxConcurrent), gocron.LimitModeWait),
	)
	if err != nil {
		return nil, fmt.Errorf("create cron scheduler: %w", err)
	}
	s.Start()
	return &scheduler{
		scheduler: s,
		jobs:      make(map[string]gocron.Job),
		now:       now,
		logger:    logger,
	}, nil
}

// AddJob registers a named cron job. fn is invoked with no arguments on
// every tick; it must handle its own logging and error recovery.
func (s *scheduler) AddJob(name, cronExpr string, fn func()) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, exists := s.jobs[name]; exists {
		return fmt.Errorf("scheduled job already exists: %s", name)
	}
	j, err := s.scheduler.NewJob(
		gocron.CronJob(cronExpr, true),
		gocron.NewTask(fn),
		gocron.WithName(name),
	)
	if err != nil {
		return fmt.Errorf("create scheduled job %s: %w", name, err)
	}
	s.jobs[name] = j
	s.logger.Info("scheduled job added", "name", name, "cron", cronExpr)
	return nil
}

// Shutdown stops the scheduler and releases its goroutines.
func (s *scheduler) Shutdown() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.scheduler.Shutdown()
}
