package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/lib/pq"

	"github.com/josh-kwaku/carmart-wallet/internal/domain"
)

type scanner interface {
	Scan(dest ...any) error
}

// DB opens settlement transactions. Each transaction carries a lock_timeout
// so a blocked row lock surfaces as domain.ErrBusy instead of hanging.
type DB struct {
	pool        *sql.DB
	lockTimeout time.Duration
}

func NewDB(pool *sql.DB, lockTimeout time.Duration) *DB {
	return &DB{pool: pool, lockTimeout: lockTimeout}
}

func (d *DB) Conn() *sql.DB {
	return d.pool
}

func (d *DB) BeginTx(ctx context.Context, opts *sql.TxOptions) (*sql.Tx, error) {
	tx, err := d.pool.BeginTx(ctx, opts)
	if err != nil {
		return nil, fmt.Errorf("BeginTx: %w", translate(err))
	}
	if ms := d.lockTimeout.Milliseconds(); ms > 0 {
		// SET does not accept bind parameters.
		if _, err := tx.ExecContext(ctx, fmt.Sprintf("SET LOCAL lock_timeout = %d", ms)); err != nil {
			_ = tx.Rollback()
			return nil, fmt.Errorf("BeginTx: set lock_timeout: %w", translate(err))
		}
	}
	return tx, nil
}

const (
	codeSerializationFailure = "40001"
	codeDeadlockDetected     = "40P01"
	codeLockNotAvailable     = "55P03"
)

// translate maps Postgres contention failures to domain.ErrBusy. All other
// errors pass through untouched.
func translate(err error) error {
	var pqErr *pq.Error
	if !errors.As(err, &pqErr) {
		return err
	}
	switch pqErr.Code {
	case codeLockNotAvailable, codeDeadlockDetected, codeSerializationFailure:
		return fmt.Errorf("%w: %s", domain.ErrBusy, pqErr.Message)
	default:
		return err
	}
}
