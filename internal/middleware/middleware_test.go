package middleware

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/josh-kwaku/carmart-wallet/internal/auth"
	"github.com/josh-kwaku/carmart-wallet/internal/handler"
	"github.com/josh-kwaku/carmart-wallet/internal/logging"
)

const (
	testSecret = "middleware-test-secret"
	testIssuer = "carmart-auth"
)

func errorCode(t *testing.T, rec *httptest.ResponseRecorder) string {
	t.Helper()
	var resp handler.APIResponse
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&resp))
	require.False(t, resp.Success)
	require.NotNil(t, resp.Error)
	return resp.Error.Code
}

func TestAuth(t *testing.T) {
	userID := uuid.New()
	valid, err := auth.GenerateToken(userID, testSecret, testIssuer, time.Hour)
	require.NoError(t, err)
	foreign, err := auth.GenerateToken(userID, "other-secret", testIssuer, time.Hour)
	require.NoError(t, err)

	var seen uuid.UUID
	next := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		seen, _ = auth.UserIDFromContext(r.Context())
		w.WriteHeader(http.StatusNoContent)
	})
	h := Auth(testSecret, testIssuer)(next)

	tests := []struct {
		name   string
		header string
		status int
		code   string
	}{
		{"missing header", "", http.StatusUnauthorized, "MISSING_TOKEN"},
		{"not bearer", "Basic abc", http.StatusUnauthorized, "INVALID_TOKEN"},
		{"empty bearer", "Bearer ", http.StatusUnauthorized, "INVALID_TOKEN"},
		{"wrong secret", "Bearer " + foreign, http.StatusUnauthorized, "INVALID_TOKEN"},
		{"garbage", "Bearer not.a.jwt", http.StatusUnauthorized, "INVALID_TOKEN"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/api/v1/wallet", nil)
			if tt.header != "" {
				req.Header.Set("Authorization", tt.header)
			}
			rec := httptest.NewRecorder()
			h.ServeHTTP(rec, req)

			assert.Equal(t, tt.status, rec.Code)
			assert.Equal(t, tt.code, errorCode(t, rec))
		})
	}

	t.Run("valid token", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/api/v1/wallet", nil)
		req.Header.Set("Authorization", "Bearer "+valid)
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, req)

		assert.Equal(t, http.StatusNoContent, rec.Code)
		assert.Equal(t, userID, seen)
	})
}

func TestTracing(t *testing.T) {
	var seen string
	h := Tracing(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		seen = TraceIDFromContext(r.Context())
	}))

	t.Run("propagates caller id", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/", nil)
		req.Header.Set("X-Request-ID", "abc-123")
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, req)

		assert.Equal(t, "abc-123", seen)
		assert.Equal(t, "abc-123", rec.Header().Get("X-Request-ID"))
	})

	t.Run("mints id when absent", func(t *testing.T) {
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))

		_, err := uuid.Parse(seen)
		assert.NoError(t, err)
		assert.Equal(t, seen, rec.Header().Get("X-Request-ID"))
	})

	t.Run("replaces oversized id", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/", nil)
		long := make([]byte, maxRequestIDLen+1)
		for i := range long {
			long[i] = 'a'
		}
		req.Header.Set("X-Request-ID", string(long))
		h.ServeHTTP(httptest.NewRecorder(), req)

		_, err := uuid.Parse(seen)
		assert.NoError(t, err)
	})
}

func TestRecovery(t *testing.T) {
	h := Recovery(http.HandlerFunc(func(http.ResponseWriter, *http.Request) {
		panic("boom")
	}))
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/api/v1/deposits", nil))

	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.Equal(t, "INTERNAL_ERROR", errorCode(t, rec))
}

func TestLogging_InstallsRequestLogger(t *testing.T) {
	var hasLogger bool
	h := Tracing(Logging(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hasLogger = logging.FromContext(r.Context()) != nil
		w.WriteHeader(http.StatusTeapot)
	})))
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/v1/wallet", nil))

	assert.True(t, hasLogger)
	assert.Equal(t, http.StatusTeapot, rec.Code)
}

func TestLogging_SkipsHealthChecks(t *testing.T) {
	for _, path := range []string{"/health", "/ready", "/metrics"} {
		called := false
		h := Logging(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			called = true
		}))
		h.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, path, nil))
		assert.True(t, called, path)
	}
}
