package purchase

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/josh-kwaku/carmart-wallet/internal/domain"
	"github.com/josh-kwaku/carmart-wallet/internal/logging"
	"github.com/josh-kwaku/carmart-wallet/internal/metrics"
)

type txBeginner interface {
	BeginTx(ctx context.Context, opts *sql.TxOptions) (*sql.Tx, error)
}

type listingRepo interface {
	GetForUpdate(ctx context.Context, tx *sql.Tx, id uuid.UUID) (*domain.Listing, error)
	MarkSold(ctx context.Context, tx *sql.Tx, listing *domain.Listing, buyerID uuid.UUID) error
}

type accountRepo interface {
	Ensure(ctx context.Context, tx *sql.Tx, ownerID uuid.UUID) error
	GetForUpdate(ctx context.Context, tx *sql.Tx, ownerID uuid.UUID) (*domain.Account, error)
	Debit(ctx context.Context, tx *sql.Tx, ownerID uuid.UUID, amount domain.Amount) error
	Credit(ctx context.Context, tx *sql.Tx, ownerID uuid.UUID, amount domain.Amount) error
}

// Service settles listing purchases. Locks are always taken in the order
// listing, buyer account, seller account.
type Service struct {
	db       txBeginner
	listings listingRepo
	accounts accountRepo
}

func NewService(db txBeginner, listings listingRepo, accounts accountRepo) *Service {
	return &Service{db: db, listings: listings, accounts: accounts}
}

// Buy moves the listing price from buyer to seller and marks the listing
// SOLD in one transaction. Either all three changes commit or none do.
func (s *Service) Buy(ctx context.Context, listingID, buyerID uuid.UUID) (*domain.Listing, error) {
	ctx = logging.With(ctx, "listing_id", listingID, "buyer_id", buyerID)
	log := logging.FromContext(ctx)

	start := time.Now()
	listing, err := s.buy(ctx, listingID, buyerID)
	metrics.SettlementDuration.WithLabelValues("purchase").Observe(time.Since(start).Seconds())
	metrics.Purchases.WithLabelValues(outcome(err)).Inc()

	if err != nil {
		log.Info("purchase rejected", "error", err)
		return nil, fmt.Errorf("Buy: %w", err)
	}

	log.Info("listing sold",
		"seller_id", listing.SellerID,
		"price", listing.Price,
	)
	return listing, nil
}

func (s *Service) buy(ctx context.Context, listingID, buyerID uuid.UUID) (*domain.Listing, error) {
	// Once started, a purchase commits or rolls back on its own terms, never
	// because the caller went away. lock_timeout bounds how long it waits.
	ctx = context.WithoutCancel(ctx)
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("buy: begin tx: %w", err)
	}
	defer tx.Rollback()

	listing, err := s.listings.GetForUpdate(ctx, tx, listingID)
	if err != nil {
		return nil, fmt.Errorf("buy: lock listing: %w", err)
	}
	if listing.Status != domain.ListingStatusAvailable {
		return nil, fmt.Errorf("buy: listing is %s: %w", listing.Status, domain.ErrNotAvailable)
	}
	if listing.SellerID == buyerID {
		return nil, fmt.Errorf("buy: %w", domain.ErrSelfPurchase)
	}

	// A buyer who never held funds has no row and fails NotFound here.
	buyer, err := s.accounts.GetForUpdate(ctx, tx, buyerID)
	if err != nil {
		return nil, fmt.Errorf("buy: lock buyer: %w", err)
	}
	if buyer.Balance.Cmp(listing.Price) < 0 {
		return nil, fmt.Errorf("buy: balance %s, price %s: %w", buyer.Balance, listing.Price, domain.ErrInsufficientBalance)
	}

	// The seller row is read under its own lock here, never from a copy
	// taken before this transaction. It is provisioned on first sale.
	if err := s.accounts.Ensure(ctx, tx, listing.SellerID); err != nil {
		return nil, fmt.Errorf("buy: %w", err)
	}
	if _, err := s.accounts.GetForUpdate(ctx, tx, listing.SellerID); err != nil {
		return nil, fmt.Errorf("buy: lock seller: %w", err)
	}

	if err := s.accounts.Debit(ctx, tx, buyerID, listing.Price); err != nil {
		return nil, fmt.Errorf("buy: %w", err)
	}
	if err := s.accounts.Credit(ctx, tx, listing.SellerID, listing.Price); err != nil {
		return nil, fmt.Errorf("buy: %w", err)
	}
	if err := s.listings.MarkSold(ctx, tx, listing, buyerID); err != nil {
		return nil, fmt.Errorf("buy: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("buy: commit: %w", err)
	}
	return listing, nil
}

func outcome(err error) string {
	switch {
	case err == nil:
		return metrics.PurchaseSucceeded
	case errors.Is(err, domain.ErrNotFound):
		return metrics.PurchaseNotFound
	case errors.Is(err, domain.ErrNotAvailable):
		return metrics.PurchaseNotAvailable
	case errors.Is(err, domain.ErrSelfPurchase):
		return metrics.PurchaseSelf
	case errors.Is(err, domain.ErrInsufficientBalance):
		return metrics.PurchaseInsufficient
	case errors.Is(err, domain.ErrBusy):
		return metrics.PurchaseBusy
	default:
		return metrics.PurchaseError
	}
}
