package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/josh-kwaku/carmart-wallet/internal/auth"
)

func fixedClockLimiter(rps float64, burst int) (*RateLimiter, *time.Time) {
	l := NewRateLimiter(rps, burst)
	now := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	l.now = func() time.Time { return now }
	return l, &now
}

func TestRateLimiter_BurstThenReject(t *testing.T) {
	l, _ := fixedClockLimiter(1, 3)
	h := l.Middleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))

	for i := 0; i < 3; i++ {
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/api/v1/webhooks/payment", nil))
		require.Equal(t, http.StatusOK, rec.Code, "request %d", i)
	}

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/api/v1/webhooks/payment", nil))
	assert.Equal(t, http.StatusTooManyRequests, rec.Code)
	assert.Equal(t, "1", rec.Header().Get("Retry-After"))
	assert.Equal(t, "RATE_LIMITED", errorCode(t, rec))
}

func TestRateLimiter_Refills(t *testing.T) {
	l, now := fixedClockLimiter(2, 1)

	ok, _ := l.allow("ip:10.0.0.1")
	require.True(t, ok)
	ok, wait := l.allow("ip:10.0.0.1")
	require.False(t, ok)
	assert.Equal(t, 500*time.Millisecond, wait)

	*now = now.Add(500 * time.Millisecond)
	ok, _ = l.allow("ip:10.0.0.1")
	assert.True(t, ok)
}

func TestRateLimiter_SeparateBucketsPerCaller(t *testing.T) {
	l, _ := fixedClockLimiter(1, 1)
	h := l.Middleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))

	send := func(userID uuid.UUID) int {
		req := httptest.NewRequest(http.MethodPost, "/api/v1/listings/x/purchase", nil)
		req = req.WithContext(auth.ContextWithUserID(req.Context(), userID))
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, req)
		return rec.Code
	}

	alice, bob := uuid.New(), uuid.New()
	assert.Equal(t, http.StatusOK, send(alice))
	assert.Equal(t, http.StatusTooManyRequests, send(alice))
	assert.Equal(t, http.StatusOK, send(bob))
}

func TestRateLimiter_Sweep(t *testing.T) {
	l, now := fixedClockLimiter(1, 1)
	l.allow("ip:a")
	*now = now.Add(5 * time.Minute)
	l.allow("ip:b")
	*now = now.Add(6 * time.Minute)

	assert.Equal(t, 1, l.Sweep())
	_, ok := l.buckets["ip:b"]
	assert.True(t, ok)
}

func TestCallerKey(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.RemoteAddr = "192.0.2.7:5555"
	assert.Equal(t, "ip:192.0.2.7", callerKey(req))

	id := uuid.New()
	req = req.WithContext(auth.ContextWithUserID(req.Context(), id))
	assert.Equal(t, "user:"+id.String(), callerKey(req))
}
