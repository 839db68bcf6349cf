package handler

import (
	"context"
	"net/http"
	"time"

	"github.com/josh-kwaku/carmart-wallet/internal/logging"
)

type pinger interface {
	PingContext(ctx context.Context) error
}

const readinessTimeout = 2 * time.Second

// HealthHandler serves the liveness and readiness checks. Readiness only
// checks Postgres: a gateway outage still lets balances and purchases work.
type HealthHandler struct {
	db pinger
}

func NewHealthHandler(db pinger) *HealthHandler {
	return &HealthHandler{db: db}
}

type healthDTO struct {
	Status    string            `json:"status"`
	Timestamp string            `json:"timestamp"`
	Checks    map[string]string `json:"checks,omitempty"`
}

func (h *HealthHandler) Liveness(w http.ResponseWriter, r *http.Request) {
	RespondJSON(w, http.StatusOK, healthDTO{Status: "ok", Timestamp: nowRFC3339()})
}

func (h *HealthHandler) Readiness(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), readinessTimeout)
	defer cancel()

	report := healthDTO{Status: "ok", Timestamp: nowRFC3339(), Checks: map[string]string{"database": "ok"}}
	status := http.StatusOK
	if err := h.db.PingContext(ctx); err != nil {
		logging.FromContext(r.Context()).Warn("readiness: database unreachable", "error", err)
		report.Status = "down"
		report.Checks["database"] = "down"
		status = http.StatusServiceUnavailable
	}
	RespondJSON(w, status, report)
}

func nowRFC3339() string {
	return time.Now().UTC().Format(time.RFC3339)
}
