package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"math/rand/v2"
	"time"

	"github.com/google/uuid"

	"github.com/josh-kwaku/carmart-wallet/internal/domain"
)

const depositColumns = `order_code, owner_id, amount, status, created_at, updated_at, settled_at`

const (
	orderCodeSuffixRange = 1000
	orderCodeAttempts    = 5
)

// DepositRepository stores one ledger entry per gateway order.
type DepositRepository struct {
	db     *sql.DB
	now    func() time.Time
	suffix func() int64
}

func NewDepositRepository(db *sql.DB) *DepositRepository {
	return &DepositRepository{
		db:     db,
		now:    time.Now,
		suffix: func() int64 { return rand.Int64N(orderCodeSuffixRange) },
	}
}

// NewOrderCode combines the current unix millisecond with a random
// three digit suffix. The result stays below 2^53 until the year 2255,
// so gateways that carry it as a JSON number do not lose precision.
func (r *DepositRepository) NewOrderCode() int64 {
	return r.now().UnixMilli()*orderCodeSuffixRange + r.suffix()
}

// Create inserts a PENDING entry under a freshly generated order code.
// A code that is already taken is regenerated rather than failing the
// enclosing transaction.
func (r *DepositRepository) Create(ctx context.Context, tx *sql.Tx, ownerID uuid.UUID, amount domain.Amount) (*domain.LedgerEntry, error) {
	now := r.now().UTC()
	for range orderCodeAttempts {
		entry := &domain.LedgerEntry{
			OrderCode: r.NewOrderCode(),
			OwnerID:   ownerID,
			Amount:    amount,
			Status:    domain.DepositStatusPending,
			CreatedAt: now,
			UpdatedAt: now,
		}

		res, err := tx.ExecContext(ctx,
			`INSERT INTO deposits (order_code, owner_id, amount, status, created_at, updated_at)
			VALUES ($1, $2, $3, $4, $5, $6)
			ON CONFLICT (order_code) DO NOTHING`,
			entry.OrderCode, entry.OwnerID, entry.Amount, entry.Status, entry.CreatedAt, entry.UpdatedAt,
		)
		if err != nil {
			return nil, fmt.Errorf("Create: %w", translate(err))
		}

		rows, err := res.RowsAffected()
		if err != nil {
			return nil, fmt.Errorf("Create: rows affected: %w", err)
		}
		if rows == 1 {
			return entry, nil
		}
	}
	return nil, fmt.Errorf("Create: %w", domain.ErrOrderCodeCollision)
}

func (r *DepositRepository) GetByOrderCode(ctx context.Context, orderCode int64) (*domain.LedgerEntry, error) {
	row := r.db.QueryRowContext(ctx,
		`SELECT `+depositColumns+` FROM deposits WHERE order_code = $1`, orderCode,
	)
	e, err := scanDeposit(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("GetByOrderCode: %w", domain.ErrNotFound)
		}
		return nil, fmt.Errorf("GetByOrderCode: %w", err)
	}
	return e, nil
}

func (r *DepositRepository) GetForUpdate(ctx context.Context, tx *sql.Tx, orderCode int64) (*domain.LedgerEntry, error) {
	row := tx.QueryRowContext(ctx,
		`SELECT `+depositColumns+` FROM deposits WHERE order_code = $1 FOR UPDATE`, orderCode,
	)
	e, err := scanDeposit(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("GetForUpdate: %w", domain.ErrNotFound)
		}
		return nil, fmt.Errorf("GetForUpdate: %w", translate(err))
	}
	return e, nil
}

// MarkSuccess moves a locked entry from PENDING to SUCCESS. Callers check
// IsSettled first; reaching this with a settled entry returns
// domain.ErrDepositSettled and leaves the row untouched.
func (r *DepositRepository) MarkSuccess(ctx context.Context, tx *sql.Tx, entry *domain.LedgerEntry) error {
	if entry.IsSettled() {
		return fmt.Errorf("MarkSuccess: order %d: %w", entry.OrderCode, domain.ErrDepositSettled)
	}

	now := r.now().UTC()
	res, err := tx.ExecContext(ctx,
		`UPDATE deposits SET status = $1, settled_at = $2, updated_at = $2
		WHERE order_code = $3 AND status = $4`,
		domain.DepositStatusSuccess, now, entry.OrderCode, domain.DepositStatusPending,
	)
	if err != nil {
		return fmt.Errorf("MarkSuccess: %w", translate(err))
	}

	rows, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("MarkSuccess: rows affected: %w", err)
	}
	if rows == 0 {
		return fmt.Errorf("MarkSuccess: order %d: %w", entry.OrderCode, domain.ErrDepositSettled)
	}

	entry.Status = domain.DepositStatusSuccess
	entry.SettledAt = &now
	entry.UpdatedAt = now
	return nil
}

func (r *DepositRepository) ListByOwner(ctx context.Context, ownerID uuid.UUID, limit, offset int) ([]domain.LedgerEntry, int, error) {
	var total int
	err := r.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM deposits WHERE owner_id = $1`, ownerID,
	).Scan(&total)
	if err != nil {
		return nil, 0, fmt.Errorf("ListByOwner: count: %w", err)
	}

	rows, err := r.db.QueryContext(ctx,
		`SELECT `+depositColumns+` FROM deposits
		WHERE owner_id = $1 ORDER BY created_at DESC, order_code DESC LIMIT $2 OFFSET $3`,
		ownerID, limit, offset,
	)
	if err != nil {
		return nil, 0, fmt.Errorf("ListByOwner: %w", err)
	}
	defer rows.Close()

	var entries []domain.LedgerEntry
	for rows.Next() {
		e, err := scanDeposit(rows)
		if err != nil {
			return nil, 0, fmt.Errorf("ListByOwner: scan: %w", err)
		}
		entries = append(entries, *e)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, fmt.Errorf("ListByOwner: rows: %w", err)
	}
	return entries, total, nil
}

// CountStalePending counts PENDING entries created before cutoff. Such
// entries are never expired automatically.
func (r *DepositRepository) CountStalePending(ctx context.Context, cutoff time.Time) (int, error) {
	var n int
	err := r.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM deposits WHERE status = $1 AND created_at < $2`,
		domain.DepositStatusPending, cutoff,
	).Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("CountStalePending: %w", err)
	}
	return n, nil
}

func scanDeposit(s scanner) (*domain.LedgerEntry, error) {
	var e domain.LedgerEntry
	err := s.Scan(
		&e.OrderCode, &e.OwnerID, &e.Amount, &e.Status,
		&e.CreatedAt, &e.UpdatedAt, &e.SettledAt,
	)
	if err != nil {
		return nil, err
	}
	return &e, nil
}
