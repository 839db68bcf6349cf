package jobs

import (
	"context"
	"log/slog"
	"time"

	"github.com/josh-kwaku/carmart-wallet/internal/logging"
	"github.com/josh-kwaku/carmart-wallet/internal/metrics"
)

type idempotencyStore interface {
	DeleteExpired(ctx context.Context, now time.Time) (int64, error)
}

type pendingCounter interface {
	CountStalePending(ctx context.Context, cutoff time.Time) (int, error)
}

type sweeper interface {
	Sweep() int
}

// Runner holds the periodic maintenance work. None of it moves money:
// PENDING deposits are reported, never expired or settled.
type Runner struct {
	idempotency idempotencyStore
	deposits    pendingCounter
	limiter     sweeper
	pendingAge  time.Duration
	timeout     time.Duration
	logger      *slog.Logger
	now         func() time.Time
}

func NewRunner(idempotency idempotencyStore, deposits pendingCounter, limiter sweeper, pendingAge time.Duration, logger *slog.Logger) *Runner {
	return &Runner{
		idempotency: idempotency,
		deposits:    deposits,
		limiter:     limiter,
		pendingAge:  pendingAge,
		timeout:     30 * time.Second,
		logger:      logger,
		now:         func() time.Time { return time.Now().UTC() },
	}
}

func (r *Runner) jobContext(name string) (context.Context, context.CancelFunc) {
	ctx, cancel := context.WithTimeout(context.Background(), r.timeout)
	return logging.WithLogger(ctx, r.logger.With("job", name)), cancel
}

func (r *Runner) CleanExpiredIdempotency() {
	ctx, cancel := r.jobContext("clean_idempotency")
	defer cancel()
	log := logging.FromContext(ctx)

	n, err := r.idempotency.DeleteExpired(ctx, r.now())
	if err != nil {
		log.Error("idempotency cleanup failed", "error", err)
		return
	}
	log.Info("idempotency cleanup done", "deleted", n)
}

func (r *Runner) ReportStalePendingDeposits() {
	ctx, cancel := r.jobContext("report_stale_pending")
	defer cancel()
	log := logging.FromContext(ctx)

	cutoff := r.now().Add(-r.pendingAge)
	n, err := r.deposits.CountStalePending(ctx, cutoff)
	if err != nil {
		log.Error("stale pending count failed", "error", err)
		return
	}
	metrics.StalePendingDeposits.Set(float64(n))
	if n > 0 {
		log.Warn("deposits pending past report age", "count", n, "older_than", cutoff)
		return
	}
	log.Debug("no stale pending deposits")
}

func (r *Runner) SweepRateLimiter() {
	if n := r.limiter.Sweep(); n > 0 {
		r.logger.Debug("rate limiter buckets evicted", "job", "sweep_rate_limiter", "evicted", n)
	}
}
