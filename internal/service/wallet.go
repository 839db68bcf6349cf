package service

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"

	"github.com/josh-kwaku/carmart-wallet/internal/domain"
	"github.com/josh-kwaku/carmart-wallet/internal/repository"
)

type walletAccountRepo interface {
	Get(ctx context.Context, q repository.Querier, ownerID uuid.UUID) (*domain.Account, error)
}

type walletDepositRepo interface {
	ListByOwner(ctx context.Context, ownerID uuid.UUID, limit, offset int) ([]domain.LedgerEntry, int, error)
}

// WalletService is the read side of the wallet. Nothing it returns may be
// used to compute a new balance.
type WalletService struct {
	db       repository.Querier
	accounts walletAccountRepo
	deposits walletDepositRepo
}

func NewWalletService(db repository.Querier, accounts walletAccountRepo, deposits walletDepositRepo) *WalletService {
	return &WalletService{db: db, accounts: accounts, deposits: deposits}
}

// GetBalance reports a zero balance for owners that have never deposited
// or sold anything.
func (s *WalletService) GetBalance(ctx context.Context, ownerID uuid.UUID) (*domain.Account, error) {
	acct, err := s.accounts.Get(ctx, s.db, ownerID)
	if errors.Is(err, domain.ErrNotFound) {
		return &domain.Account{OwnerID: ownerID, Balance: domain.ZeroAmount}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("GetBalance: %w", err)
	}
	return acct, nil
}

func (s *WalletService) ListDeposits(ctx context.Context, ownerID uuid.UUID, limit, offset int) ([]domain.LedgerEntry, int, error) {
	entries, total, err := s.deposits.ListByOwner(ctx, ownerID, limit, offset)
	if err != nil {
		return nil, 0, fmt.Errorf("ListDeposits: %w", err)
	}
	return entries, total, nil
}
