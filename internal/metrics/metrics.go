package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const namespace = "carmart"

// Webhook outcomes.
const (
	WebhookSettled          = "settled"
	WebhookDuplicate        = "duplicate"
	WebhookUnknownOrder     = "unknown_order"
	WebhookNotPaid          = "not_paid"
	WebhookInvalidSignature = "invalid_signature"
)

// Purchase outcomes.
const (
	PurchaseSucceeded    = "succeeded"
	PurchaseNotFound     = "not_found"
	PurchaseNotAvailable = "not_available"
	PurchaseSelf         = "self_purchase"
	PurchaseInsufficient = "insufficient_balance"
	PurchaseBusy         = "busy"
	PurchaseError        = "error"
)

var (
	DepositsCreated = promauto.NewCounter(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "deposits_created_total",
			Help:      "Pending deposits created",
		},
	)

	Webhooks = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "webhooks_total",
			Help:      "Gateway webhook deliveries by outcome",
		},
		[]string{"outcome"},
	)

	Purchases = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "purchases_total",
			Help:      "Listing purchase attempts by outcome",
		},
		[]string{"outcome"},
	)

	StalePendingDeposits = promauto.NewGauge(
		prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "deposits_stale_pending",
			Help:      "PENDING deposits older than the report age at the last report run",
		},
	)

	SettlementDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "settlement_duration_seconds",
			Help:      "Time spent inside a settlement transaction",
			Buckets:   prometheus.DefBuckets,
		},
		[]string{"kind"},
	)

	HTTPRequests = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "http_requests_total",
			Help:      "HTTP requests by method, route pattern and status code",
		},
		[]string{"method", "route", "status"},
	)

	HTTPDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "http_request_duration_seconds",
			Help:      "HTTP request latency by method and route pattern",
			Buckets:   prometheus.DefBuckets,
		},
		[]string{"method", "route"},
	)

	PanicsRecovered = promauto.NewCounter(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "http_panics_recovered_total",
			Help:      "Handler panics caught by the recovery middleware",
		},
	)

	RateLimited = promauto.NewCounter(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "http_rate_limited_total",
			Help:      "Requests rejected by the rate limiter",
		},
	)
)
