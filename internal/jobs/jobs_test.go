package jobs

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/josh-kwaku/carmart-wallet/internal/metrics"
)

type fakeIdempotency struct {
	calledWith time.Time
	err        error
}

func (f *fakeIdempotency) DeleteExpired(_ context.Context, now time.Time) (int64, error) {
	f.calledWith = now
	return 3, f.err
}

type fakePending struct {
	cutoff time.Time
	count  int
	err    error
}

func (f *fakePending) CountStalePending(_ context.Context, cutoff time.Time) (int, error) {
	f.cutoff = cutoff
	return f.count, f.err
}

type fakeSweeper struct{ calls int }

func (f *fakeSweeper) Sweep() int {
	f.calls++
	return 2
}

var fixedNow = time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

func newTestRunner(idem *fakeIdempotency, pending *fakePending, sw *fakeSweeper) *Runner {
	r := NewRunner(idem, pending, sw, 24*time.Hour, slog.New(slog.NewTextHandler(io.Discard, nil)))
	r.now = func() time.Time { return fixedNow }
	return r
}

func TestRunner_CleanExpiredIdempotency(t *testing.T) {
	idem := &fakeIdempotency{}
	newTestRunner(idem, &fakePending{}, &fakeSweeper{}).CleanExpiredIdempotency()
	assert.Equal(t, fixedNow, idem.calledWith)
}

func TestRunner_CleanExpiredIdempotency_ErrorIsLogged(t *testing.T) {
	idem := &fakeIdempotency{err: errors.New("db down")}
	assert.NotPanics(t, newTestRunner(idem, &fakePending{}, &fakeSweeper{}).CleanExpiredIdempotency)
}

func TestRunner_ReportStalePendingDeposits(t *testing.T) {
	pending := &fakePending{count: 4}
	newTestRunner(&fakeIdempotency{}, pending, &fakeSweeper{}).ReportStalePendingDeposits()

	assert.Equal(t, fixedNow.Add(-24*time.Hour), pending.cutoff)
	assert.Equal(t, float64(4), testutil.ToFloat64(metrics.StalePendingDeposits))
}

func TestRunner_ReportStalePendingDeposits_KeepsGaugeOnError(t *testing.T) {
	metrics.StalePendingDeposits.Set(7)
	pending := &fakePending{err: errors.New("timeout")}
	newTestRunner(&fakeIdempotency{}, pending, &fakeSweeper{}).ReportStalePendingDeposits()

	assert.Equal(t, float64(7), testutil.ToFloat64(metrics.StalePendingDeposits))
}

func TestRunner_SweepRateLimiter(t *testing.T) {
	sw := &fakeSweeper{}
	newTestRunner(&fakeIdempotency{}, &fakePending{}, sw).SweepRateLimiter()
	assert.Equal(t, 1, sw.calls)
}

func TestNewScheduler(t *testing.T) {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	runner := newTestRunner(&fakeIdempotency{}, &fakePending{}, &fakeSweeper{})

	t.Run("registers every scheduled job", func(t *testing.T) {
		s, err := NewScheduler(runner, Schedules{
			CleanIdempotency:   "0 0 * * * *",
			ReportStalePending: "0 */15 * * * *",
			SweepRateLimiter:   "0 */5 * * * *",
		}, logger)
		require.NoError(t, err)
		assert.Len(t, s.cron.Entries(), 3)
	})

	t.Run("empty schedule disables a job", func(t *testing.T) {
		s, err := NewScheduler(runner, Schedules{CleanIdempotency: "0 0 * * * *"}, logger)
		require.NoError(t, err)
		assert.Len(t, s.cron.Entries(), 1)
	})

	t.Run("five-field expression is rejected", func(t *testing.T) {
		_, err := NewScheduler(runner, Schedules{CleanIdempotency: "0 * * * *"}, logger)
		assert.Error(t, err)
	})
}

func TestScheduler_StartStop(t *testing.T) {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	runner := newTestRunner(&fakeIdempotency{}, &fakePending{}, &fakeSweeper{})
	s, err := NewScheduler(runner, Schedules{CleanIdempotency: "0 0 * * * *"}, logger)
	require.NoError(t, err)

	s.Start()
	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	assert.NoError(t, s.Stop(ctx))
}
