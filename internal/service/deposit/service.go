package deposit

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/josh-kwaku/carmart-wallet/internal/config"
	"github.com/josh-kwaku/carmart-wallet/internal/domain"
	"github.com/josh-kwaku/carmart-wallet/internal/gateway"
	"github.com/josh-kwaku/carmart-wallet/internal/logging"
	"github.com/josh-kwaku/carmart-wallet/internal/metrics"
)

type txBeginner interface {
	BeginTx(ctx context.Context, opts *sql.TxOptions) (*sql.Tx, error)
}

type depositRepo interface {
	Create(ctx context.Context, tx *sql.Tx, ownerID uuid.UUID, amount domain.Amount) (*domain.LedgerEntry, error)
	GetForUpdate(ctx context.Context, tx *sql.Tx, orderCode int64) (*domain.LedgerEntry, error)
	MarkSuccess(ctx context.Context, tx *sql.Tx, entry *domain.LedgerEntry) error
}

type accountRepo interface {
	Ensure(ctx context.Context, tx *sql.Tx, ownerID uuid.UUID) error
	Credit(ctx context.Context, tx *sql.Tx, ownerID uuid.UUID, amount domain.Amount) error
}

type paymentGateway interface {
	CreateHostedPayment(ctx context.Context, req gateway.CheckoutRequest) (string, error)
	VerifyWebhook(raw []byte) (*gateway.Notification, error)
}

type URLs struct {
	Return string
	Cancel string
}

// Service creates deposits and settles them from gateway callbacks.
type Service struct {
	db       txBeginner
	deposits depositRepo
	accounts accountRepo
	gateway  paymentGateway
	limits   config.DepositLimits
	urls     URLs
}

func NewService(
	db txBeginner,
	deposits depositRepo,
	accounts accountRepo,
	gw paymentGateway,
	limits config.DepositLimits,
	urls URLs,
) *Service {
	return &Service{
		db:       db,
		deposits: deposits,
		accounts: accounts,
		gateway:  gw,
		limits:   limits,
		urls:     urls,
	}
}

// Checkout is what the payer needs to complete a deposit.
type Checkout struct {
	OrderCode   int64
	CheckoutURL string
	Amount      domain.Amount
	Fee         domain.Amount
	Total       domain.Amount
}

// CreateDeposit records a PENDING deposit for amount and asks the gateway
// for a checkout page charging amount plus the fixed fee. A gateway failure
// leaves the PENDING entry behind; it is never settled.
func (s *Service) CreateDeposit(ctx context.Context, ownerID uuid.UUID, amount domain.Amount) (*Checkout, error) {
	log := logging.FromContext(ctx)

	if amount.Cmp(s.limits.Min) < 0 || amount.Cmp(s.limits.Max) > 0 {
		return nil, fmt.Errorf("CreateDeposit: %w", &domain.RangeError{Min: s.limits.Min, Max: s.limits.Max})
	}
	total := amount.Add(s.limits.Fee)

	entry, err := s.createPending(ctx, ownerID, amount)
	if err != nil {
		return nil, fmt.Errorf("CreateDeposit: %w", err)
	}
	metrics.DepositsCreated.Inc()

	log.Info("deposit created",
		"order_code", entry.OrderCode,
		"owner_id", ownerID,
		"amount", amount,
		"total", total,
	)

	url, err := s.gateway.CreateHostedPayment(ctx, gateway.CheckoutRequest{
		OrderCode:   entry.OrderCode,
		Amount:      total,
		Description: fmt.Sprintf("DEP %d", entry.OrderCode),
		CancelURL:   s.urls.Cancel,
		ReturnURL:   s.urls.Return,
	})
	if err != nil {
		log.Error("checkout request failed, deposit stays pending",
			"order_code", entry.OrderCode,
			"error", err,
		)
		return nil, fmt.Errorf("CreateDeposit: %w", err)
	}

	return &Checkout{
		OrderCode:   entry.OrderCode,
		CheckoutURL: url,
		Amount:      amount,
		Fee:         s.limits.Fee,
		Total:       total,
	}, nil
}

func (s *Service) createPending(ctx context.Context, ownerID uuid.UUID, amount domain.Amount) (*domain.LedgerEntry, error) {
	// A disconnecting caller must not abort the transaction; lock_timeout bounds it.
	ctx = context.WithoutCancel(ctx)
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("createPending: begin tx: %w", err)
	}
	defer tx.Rollback()

	if err := s.accounts.Ensure(ctx, tx, ownerID); err != nil {
		return nil, fmt.Errorf("createPending: %w", err)
	}

	entry, err := s.deposits.Create(ctx, tx, ownerID, amount)
	if err != nil {
		return nil, fmt.Errorf("createPending: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("createPending: commit: %w", err)
	}
	return entry, nil
}

// HandleWebhook settles the deposit a gateway callback refers to. It is
// safe to call any number of times with the same payload: only the first
// delivery credits the account. Unknown orders and unpaid notifications
// are absorbed so the gateway stops retrying them. The only error a caller
// should act on is domain.ErrInvalidSignature; anything else is transient.
func (s *Service) HandleWebhook(ctx context.Context, raw []byte) error {
	log := logging.FromContext(ctx)

	n, err := s.gateway.VerifyWebhook(raw)
	if err != nil {
		metrics.Webhooks.WithLabelValues(metrics.WebhookInvalidSignature).Inc()
		log.Warn("webhook rejected", "error", err)
		return fmt.Errorf("HandleWebhook: %w", err)
	}

	ctx = logging.With(ctx, "order_code", n.OrderCode)
	log = logging.FromContext(ctx)

	if !n.Paid {
		metrics.Webhooks.WithLabelValues(metrics.WebhookNotPaid).Inc()
		log.Info("webhook reports unpaid order, nothing to settle", "reference", n.Reference)
		return nil
	}

	outcome, err := s.settle(ctx, n)
	if err != nil {
		log.Error("deposit settlement failed", "error", err)
		return fmt.Errorf("HandleWebhook: %w", err)
	}
	metrics.Webhooks.WithLabelValues(outcome).Inc()
	return nil
}

func (s *Service) settle(ctx context.Context, n *gateway.Notification) (string, error) {
	ctx = context.WithoutCancel(ctx)
	log := logging.FromContext(ctx)
	start := time.Now()
	defer func() {
		metrics.SettlementDuration.WithLabelValues("deposit").Observe(time.Since(start).Seconds())
	}()

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return "", fmt.Errorf("settle: begin tx: %w", err)
	}
	defer tx.Rollback()

	entry, err := s.deposits.GetForUpdate(ctx, tx, n.OrderCode)
	if errors.Is(err, domain.ErrNotFound) {
		log.Warn("webhook for unknown order, ignoring")
		return metrics.WebhookUnknownOrder, nil
	}
	if err != nil {
		return "", fmt.Errorf("settle: %w", err)
	}

	if entry.IsSettled() {
		log.Info("duplicate webhook, deposit already settled", "settled_at", entry.SettledAt)
		return metrics.WebhookDuplicate, nil
	}

	// The gateway reports the gross charge. The credit is always the stored
	// net amount, so a mismatch is only worth a warning.
	if expected := entry.Amount.Add(s.limits.Fee); !n.Amount.Equal(expected) {
		log.Warn("webhook gross amount differs from expected charge",
			"gross", n.Amount,
			"expected", expected,
		)
	}

	if err := s.deposits.MarkSuccess(ctx, tx, entry); err != nil {
		return "", fmt.Errorf("settle: %w", err)
	}
	if err := s.accounts.Credit(ctx, tx, entry.OwnerID, entry.Amount); err != nil {
		return "", fmt.Errorf("settle: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return "", fmt.Errorf("settle: commit: %w", err)
	}

	log.Info("deposit settled",
		"owner_id", entry.OwnerID,
		"amount", entry.Amount,
		"reference", n.Reference,
	)
	return metrics.WebhookSettled, nil
}
