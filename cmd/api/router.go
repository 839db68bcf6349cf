package main

import (
	"context"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/cors"
	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/josh-kwaku/carmart-wallet/api"
	"github.com/josh-kwaku/carmart-wallet/internal/config"
	"github.com/josh-kwaku/carmart-wallet/internal/handler"
	"github.com/josh-kwaku/carmart-wallet/internal/middleware"
	"github.com/josh-kwaku/carmart-wallet/internal/repository"
)

type idempotencyStore interface {
	Get(ctx context.Context, key string, ownerID uuid.UUID) (*repository.IdempotencyRecord, error)
	Reserve(ctx context.Context, rec *repository.IdempotencyRecord) (bool, error)
	Complete(ctx context.Context, rec *repository.IdempotencyRecord) error
	Release(ctx context.Context, key string, ownerID uuid.UUID) error
}

type routerDeps struct {
	cfg         *config.Config
	health      *handler.HealthHandler
	deposits    *handler.DepositHandler
	webhooks    *handler.WebhookHandler
	purchases   *handler.PurchaseHandler
	wallet      *handler.WalletHandler
	idempotency idempotencyStore
	limiter     *middleware.RateLimiter
}

func newRouter(d routerDeps) http.Handler {
	r := chi.NewRouter()

	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   d.cfg.CORSAllowedOrigins,
		AllowedMethods:   []string{http.MethodGet, http.MethodPost, http.MethodOptions},
		AllowedHeaders:   []string{"Authorization", "Content-Type", "Idempotency-Key", "X-Request-ID"},
		ExposedHeaders:   []string{"X-Request-ID", "X-Idempotent-Replayed", "Retry-After"},
		AllowCredentials: false,
		MaxAge:           300,
	}))
	r.Use(middleware.Tracing)
	r.Use(middleware.Logging)
	r.Use(middleware.Recovery)
	r.Use(middleware.Metrics)

	r.Get("/health", d.health.Liveness)
	r.Get("/ready", d.health.Readiness)
	r.Handle("/metrics", promhttp.Handler())
	r.Get("/docs", handler.ServeDocs("/docs/openapi.yaml"))
	r.Get("/docs/openapi.yaml", handler.ServeSpec(api.Spec))

	r.NotFound(func(w http.ResponseWriter, r *http.Request) {
		handler.RespondAppError(w, handler.ErrResourceNotFound, nil)
	})

	r.Route("/api/v1", func(r chi.Router) {
		r.With(d.limiter.Middleware).Post("/webhooks/payment", d.webhooks.ReceivePayment)

		r.Group(func(r chi.Router) {
			r.Use(middleware.Auth(d.cfg.JWTSecret, d.cfg.JWTIssuer))

			r.Get("/wallet", d.wallet.Balance)
			r.Get("/wallet/deposits", d.wallet.Deposits)
			r.With(middleware.Idempotency(d.idempotency)).
				Post("/wallet/deposits", d.deposits.Create)
			r.With(d.limiter.Middleware, middleware.Idempotency(d.idempotency)).
				Post("/listings/{id}/purchase", d.purchases.Buy)
		})
	})

	return r
}
