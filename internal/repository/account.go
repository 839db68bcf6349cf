package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/google/uuid"

	"github.com/josh-kwaku/carmart-wallet/internal/domain"
)

const accountColumns = `owner_id, balance, created_at, updated_at`

// AccountRepository is the only writer of account balances. Every mutation
// runs inside the caller's transaction under a row lock.
type AccountRepository struct {
	db *sql.DB
}

func NewAccountRepository(db *sql.DB) *AccountRepository {
	return &AccountRepository{db: db}
}

// Querier is satisfied by both *sql.DB and *sql.Tx.
type Querier interface {
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

// Get is a plain read without a lock, on the pool or inside the caller's
// transaction. Never use its result to compute a new balance.
func (r *AccountRepository) Get(ctx context.Context, q Querier, ownerID uuid.UUID) (*domain.Account, error) {
	row := q.QueryRowContext(ctx,
		`SELECT `+accountColumns+` FROM accounts WHERE owner_id = $1`, ownerID,
	)
	a, err := scanAccount(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("Get: %w", domain.ErrNotFound)
		}
		return nil, fmt.Errorf("Get: %w", err)
	}
	return a, nil
}

// Ensure creates a zero-balance account if none exists.
func (r *AccountRepository) Ensure(ctx context.Context, tx *sql.Tx, ownerID uuid.UUID) error {
	_, err := tx.ExecContext(ctx,
		`INSERT INTO accounts (owner_id, balance) VALUES ($1, '0')
		ON CONFLICT (owner_id) DO NOTHING`,
		ownerID,
	)
	if err != nil {
		return fmt.Errorf("Ensure: %w", translate(err))
	}
	return nil
}

func (r *AccountRepository) GetForUpdate(ctx context.Context, tx *sql.Tx, ownerID uuid.UUID) (*domain.Account, error) {
	row := tx.QueryRowContext(ctx,
		`SELECT `+accountColumns+` FROM accounts WHERE owner_id = $1 FOR UPDATE`, ownerID,
	)
	a, err := scanAccount(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("GetForUpdate: %w", domain.ErrNotFound)
		}
		return nil, fmt.Errorf("GetForUpdate: %w", translate(err))
	}
	return a, nil
}

func (r *AccountRepository) Credit(ctx context.Context, tx *sql.Tx, ownerID uuid.UUID, amount domain.Amount) error {
	if amount.IsZero() {
		return nil
	}

	acct, err := r.GetForUpdate(ctx, tx, ownerID)
	if err != nil {
		return fmt.Errorf("Credit: %w", err)
	}

	if err := r.setBalance(ctx, tx, ownerID, acct.Balance.Add(amount)); err != nil {
		return fmt.Errorf("Credit: %w", err)
	}
	return nil
}

func (r *AccountRepository) Debit(ctx context.Context, tx *sql.Tx, ownerID uuid.UUID, amount domain.Amount) error {
	if amount.IsZero() {
		return nil
	}

	acct, err := r.GetForUpdate(ctx, tx, ownerID)
	if err != nil {
		return fmt.Errorf("Debit: %w", err)
	}

	newBalance, err := acct.Balance.Sub(amount)
	if err != nil {
		return fmt.Errorf("Debit: balance %s, amount %s: %w", acct.Balance, amount, domain.ErrInsufficientBalance)
	}

	if err := r.setBalance(ctx, tx, ownerID, newBalance); err != nil {
		return fmt.Errorf("Debit: %w", err)
	}
	return nil
}

func (r *AccountRepository) setBalance(ctx context.Context, tx *sql.Tx, ownerID uuid.UUID, balance domain.Amount) error {
	res, err := tx.ExecContext(ctx,
		`UPDATE accounts SET balance = $1, updated_at = now() WHERE owner_id = $2`,
		balance, ownerID,
	)
	if err != nil {
		return fmt.Errorf("setBalance: %w", translate(err))
	}

	rows, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("setBalance: rows affected: %w", err)
	}
	if rows == 0 {
		return fmt.Errorf("setBalance: %w", domain.ErrNotFound)
	}
	return nil
}

func scanAccount(s scanner) (*domain.Account, error) {
	var a domain.Account
	err := s.Scan(&a.OwnerID, &a.Balance, &a.CreatedAt, &a.UpdatedAt)
	if err != nil {
		return nil, err
	}
	return &a, nil
}
