package jobs

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/robfig/cron/v3"
)

// Schedules are six-field cron expressions (seconds first), evaluated in UTC.
type Schedules struct {
	CleanIdempotency   string
	ReportStalePending string
	SweepRateLimiter   string
}

type Scheduler struct {
	cron   *cron.Cron
	logger *slog.Logger
}

func NewScheduler(runner *Runner, schedules Schedules, logger *slog.Logger) (*Scheduler, error) {
	c := cron.New(
		cron.WithLocation(time.UTC),
		cron.WithSeconds(),
		cron.WithChain(cron.SkipIfStillRunning(cron.DiscardLogger)),
	)

	jobs := []struct {
		name string
		spec string
		fn   func()
	}{
		{"clean_idempotency", schedules.CleanIdempotency, runner.CleanExpiredIdempotency},
		{"report_stale_pending", schedules.ReportStalePending, runner.ReportStalePendingDeposits},
		{"sweep_rate_limiter", schedules.SweepRateLimiter, runner.SweepRateLimiter},
	}
	for _, j := range jobs {
		if j.spec == "" {
			continue
		}
		if _, err := c.AddFunc(j.spec, j.fn); err != nil {
			return nil, fmt.Errorf("NewScheduler: %s %q: %w", j.name, j.spec, err)
		}
	}

	return &Scheduler{cron: c, logger: logger}, nil
}

func (s *Scheduler) Start() {
	s.cron.Start()
	s.logger.Info("cron scheduler started", "jobs", len(s.cron.Entries()))
}

// Stop waits for running jobs to finish or for ctx to expire.
func (s *Scheduler) Stop(ctx context.Context) error {
	done := s.cron.Stop()
	select {
	case <-done.Done():
		s.logger.Info("cron scheduler stopped")
		return nil
	case <-ctx.Done():
		return fmt.Errorf("Scheduler.Stop: %w", ctx.Err())
	}
}
