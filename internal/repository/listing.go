package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/josh-kwaku/carmart-wallet/internal/domain"
)

const listingColumns = `id, seller_id, price, status, buyer_id, sold_at, updated_at`

// ListingRepository touches only the settlement-relevant listing columns.
type ListingRepository struct {
	db *sql.DB
}

func NewListingRepository(db *sql.DB) *ListingRepository {
	return &ListingRepository{db: db}
}

func (r *ListingRepository) GetByID(ctx context.Context, id uuid.UUID) (*domain.Listing, error) {
	row := r.db.QueryRowContext(ctx,
		`SELECT `+listingColumns+` FROM listings WHERE id = $1`, id,
	)
	l, err := scanListing(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("GetByID: %w", domain.ErrNotFound)
		}
		return nil, fmt.Errorf("GetByID: %w", err)
	}
	return l, nil
}

func (r *ListingRepository) GetForUpdate(ctx context.Context, tx *sql.Tx, id uuid.UUID) (*domain.Listing, error) {
	row := tx.QueryRowContext(ctx,
		`SELECT `+listingColumns+` FROM listings WHERE id = $1 FOR UPDATE`, id,
	)
	l, err := scanListing(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("GetForUpdate: %w", domain.ErrNotFound)
		}
		return nil, fmt.Errorf("GetForUpdate: %w", translate(err))
	}
	return l, nil
}

// MarkSold performs the AVAILABLE -> SOLD transition on a locked listing
// and records the buyer.
func (r *ListingRepository) MarkSold(ctx context.Context, tx *sql.Tx, listing *domain.Listing, buyerID uuid.UUID) error {
	now := time.Now().UTC()
	res, err := tx.ExecContext(ctx,
		`UPDATE listings SET status = $1, buyer_id = $2, sold_at = $3, updated_at = $3
		WHERE id = $4 AND status = $5`,
		domain.ListingStatusSold, buyerID, now, listing.ID, domain.ListingStatusAvailable,
	)
	if err != nil {
		return fmt.Errorf("MarkSold: %w", translate(err))
	}

	rows, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("MarkSold: rows affected: %w", err)
	}
	if rows == 0 {
		return fmt.Errorf("MarkSold: %w", domain.ErrNotAvailable)
	}

	listing.Status = domain.ListingStatusSold
	listing.BuyerID = &buyerID
	listing.SoldAt = &now
	listing.UpdatedAt = now
	return nil
}

func scanListing(s scanner) (*domain.Listing, error) {
	var l domain.Listing
	var buyerID uuid.NullUUID
	err := s.Scan(
		&l.ID, &l.SellerID, &l.Price, &l.Status,
		&buyerID, &l.SoldAt, &l.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	if buyerID.Valid {
		l.BuyerID = &buyerID.UUID
	}
	return &l, nil
}
