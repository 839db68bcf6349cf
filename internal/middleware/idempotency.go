package middleware

import (
	"bytes"
	"context"
	"crypto/sha256"
	"encoding/hex"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/google/uuid"

	"github.com/josh-kwaku/carmart-wallet/internal/auth"
	"github.com/josh-kwaku/carmart-wallet/internal/handler"
	"github.com/josh-kwaku/carmart-wallet/internal/logging"
	"github.com/josh-kwaku/carmart-wallet/internal/repository"
)

type idempotencyRepository interface {
	Get(ctx context.Context, key string, ownerID uuid.UUID) (*repository.IdempotencyRecord, error)
	Reserve(ctx context.Context, rec *repository.IdempotencyRecord) (bool, error)
	Complete(ctx context.Context, rec *repository.IdempotencyRecord) error
	Release(ctx context.Context, key string, ownerID uuid.UUID) error
}

const (
	idempotencyHeader = "Idempotency-Key"
	replayedHeader    = "X-Idempotent-Replayed"
	idempotencyTTL    = 24 * time.Hour
	// A claim left behind by a crashed request frees the key after this.
	reservationTTL    = 5 * time.Minute
	maxIdempotencyKey = 255
	maxIdempotentBody = 1 << 20
)

type idempotency struct {
	repo idempotencyRepository
	now  func() time.Time
}

// Idempotency replays the stored response for a repeated Idempotency-Key
// from the same user. The key is claimed before the handler runs, so a
// concurrent duplicate gets IDEMPOTENCY_IN_PROGRESS instead of running twice.
// Only final outcomes are stored: 5xx responses such as BUSY release the
// claim and stay retryable under the same key. Must run after Auth.
func Idempotency(repo idempotencyRepository) func(http.Handler) http.Handler {
	m := &idempotency{repo: repo, now: func() time.Time { return time.Now().UTC() }}
	return m.wrap
}

func (m *idempotency) wrap(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.Method {
		case http.MethodGet, http.MethodHead, http.MethodOptions:
			next.ServeHTTP(w, r)
			return
		}

		key := r.Header.Get(idempotencyHeader)
		if key == "" || len(key) > maxIdempotencyKey {
			handler.RespondAppError(w, handler.ErrMissingIdempotencyKey, nil)
			return
		}
		ownerID, ok := auth.UserIDFromContext(r.Context())
		if !ok {
			handler.RespondAppError(w, handler.ErrMissingToken, nil)
			return
		}

		body, err := io.ReadAll(io.LimitReader(r.Body, maxIdempotentBody))
		if err != nil {
			handler.RespondAppError(w, handler.ErrInvalidRequest, nil)
			return
		}
		r.Body = io.NopCloser(bytes.NewReader(body))
		fingerprint := requestFingerprint(r.Method, r.URL.Path, body)

		log := logging.FromContext(r.Context()).With("idempotency_key", key)

		now := m.now()
		claim := &repository.IdempotencyRecord{
			Key:         key,
			OwnerID:     ownerID,
			RequestHash: fingerprint,
			CreatedAt:   now,
			ExpiresAt:   now.Add(reservationTTL),
		}
		reserved, err := m.repo.Reserve(r.Context(), claim)
		if err != nil {
			log.Error("idempotency reserve failed", "error", err)
			handler.RespondAppError(w, handler.ErrInternalError, nil)
			return
		}
		if !reserved {
			m.answerExisting(w, r, log, claim)
			return
		}

		// The outcome is recorded even if the client has gone away.
		ctx := context.WithoutCancel(r.Context())
		defer func() {
			if p := recover(); p != nil {
				if err := m.repo.Release(ctx, key, ownerID); err != nil {
					log.Error("idempotency release failed", "error", err)
				}
				panic(p)
			}
		}()

		rec := &bufferingWriter{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(rec, r)

		if rec.status >= http.StatusInternalServerError {
			if err := m.repo.Release(ctx, key, ownerID); err != nil {
				log.Error("idempotency release failed", "error", err)
			}
			return
		}
		claim.StatusCode = rec.status
		claim.ResponseBody = rec.buf.Bytes()
		claim.ExpiresAt = m.now().Add(idempotencyTTL)
		if err := m.repo.Complete(ctx, claim); err != nil {
			log.Error("idempotency store failed", "error", err)
		}
	})
}

// answerExisting responds to a request whose key is already held.
func (m *idempotency) answerExisting(w http.ResponseWriter, r *http.Request, log *slog.Logger, claim *repository.IdempotencyRecord) {
	prior, err := m.repo.Get(r.Context(), claim.Key, claim.OwnerID)
	if err != nil {
		log.Error("idempotency lookup failed", "error", err)
		handler.RespondAppError(w, handler.ErrInternalError, nil)
		return
	}
	switch {
	case prior == nil:
		// Released between the failed claim and this lookup; the client may retry.
		handler.RespondAppError(w, handler.ErrIdempotencyInProgress, nil)
	case prior.RequestHash != claim.RequestHash:
		handler.RespondAppError(w, handler.ErrIdempotencyConflict, nil)
	case prior.InProgress():
		handler.RespondAppError(w, handler.ErrIdempotencyInProgress, nil)
	default:
		replay(w, prior)
	}
}

func replay(w http.ResponseWriter, prior *repository.IdempotencyRecord) {
	w.Header().Set("Content-Type", "application/json")
	w.Header().Set(replayedHeader, "true")
	w.WriteHeader(prior.StatusCode)
	_, _ = w.Write(prior.ResponseBody)
}

func requestFingerprint(method, path string, body []byte) string {
	h := sha256.New()
	h.Write([]byte(method))
	h.Write([]byte{0})
	h.Write([]byte(path))
	h.Write([]byte{0})
	h.Write(body)
	return hex.EncodeToString(h.Sum(nil))
}

// bufferingWriter passes the response through while keeping a copy.
type bufferingWriter struct {
	http.ResponseWriter
	status int
	buf    bytes.Buffer
}

func (b *bufferingWriter) WriteHeader(code int) {
	b.status = code
	b.ResponseWriter.WriteHeader(code)
}

func (b *bufferingWriter) Write(p []byte) (int, error) {
	b.buf.Write(p)
	return b.ResponseWriter.Write(p)
}
