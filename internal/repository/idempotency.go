package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// IdempotencyRecord is a cached HTTP response for a client-supplied
// Idempotency-Key, scoped to the authenticated owner.
type IdempotencyRecord struct {
	Key          string
	OwnerID      uuid.UUID
	RequestHash  string
	StatusCode   int
	ResponseBody []byte
	CreatedAt    time.Time
	ExpiresAt    time.Time
}

type IdempotencyRepository struct {
	db *sql.DB
}

func NewIdempotencyRepository(db *sql.DB) *IdempotencyRepository {
	return &IdempotencyRepository{db: db}
}

// Get returns nil, nil when no live record exists. A record still being
// served is returned with InProgress set.
func (r *IdempotencyRepository) Get(ctx context.Context, key string, ownerID uuid.UUID) (*IdempotencyRecord, error) {
	var rec IdempotencyRecord
	err := r.db.QueryRowContext(ctx,
		`SELECT idempotency_key, owner_id, request_hash, status_code, response_body, created_at, expires_at
		FROM idempotency_keys
		WHERE idempotency_key = $1 AND owner_id = $2 AND expires_at > now()`,
		key, ownerID,
	).Scan(&rec.Key, &rec.OwnerID, &rec.RequestHash, &rec.StatusCode, &rec.ResponseBody, &rec.CreatedAt, &rec.ExpiresAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("Get: %w", err)
	}
	return &rec, nil
}

// InProgress reports whether the record is a claim whose request has not
// finished yet.
func (rec *IdempotencyRecord) InProgress() bool {
	return rec.StatusCode == 0
}

// Reserve claims the key for one request by inserting a record with no
// response yet. It returns false when a live record already holds the key.
// An expired record is taken over.
func (r *IdempotencyRepository) Reserve(ctx context.Context, rec *IdempotencyRecord) (bool, error) {
	res, err := r.db.ExecContext(ctx,
		`INSERT INTO idempotency_keys (idempotency_key, owner_id, request_hash, status_code, response_body, created_at, expires_at)
		VALUES ($1, $2, $3, 0, NULL, $4, $5)
		ON CONFLICT (idempotency_key, owner_id) DO UPDATE
		SET request_hash = EXCLUDED.request_hash,
			status_code = 0,
			response_body = NULL,
			created_at = EXCLUDED.created_at,
			expires_at = EXCLUDED.expires_at
		WHERE idempotency_keys.expires_at <= now()`,
		rec.Key, rec.OwnerID, rec.RequestHash, rec.CreatedAt, rec.ExpiresAt,
	)
	if err != nil {
		return false, fmt.Errorf("Reserve: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("Reserve: rows affected: %w", err)
	}
	return n == 1, nil
}

// Complete stores the final response on a reserved key.
func (r *IdempotencyRepository) Complete(ctx context.Context, rec *IdempotencyRecord) error {
	_, err := r.db.ExecContext(ctx,
		`UPDATE idempotency_keys
		SET status_code = $3, response_body = $4, expires_at = $5
		WHERE idempotency_key = $1 AND owner_id = $2 AND status_code = 0`,
		rec.Key, rec.OwnerID, rec.StatusCode, rec.ResponseBody, rec.ExpiresAt,
	)
	if err != nil {
		return fmt.Errorf("Complete: %w", err)
	}
	return nil
}

// Release drops an unfinished reservation so the key can be retried.
func (r *IdempotencyRepository) Release(ctx context.Context, key string, ownerID uuid.UUID) error {
	_, err := r.db.ExecContext(ctx,
		`DELETE FROM idempotency_keys WHERE idempotency_key = $1 AND owner_id = $2 AND status_code = 0`,
		key, ownerID,
	)
	if err != nil {
		return fmt.Errorf("Release: %w", err)
	}
	return nil
}

func (r *IdempotencyRepository) DeleteExpired(ctx context.Context, now time.Time) (int64, error) {
	res, err := r.db.ExecContext(ctx,
		`DELETE FROM idempotency_keys WHERE expires_at < $1`, now,
	)
	if err != nil {
		return 0, fmt.Errorf("DeleteExpired: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("DeleteExpired: rows affected: %w", err)
	}
	return n, nil
}
