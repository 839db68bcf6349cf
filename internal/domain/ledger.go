package domain

import (
	"time"

	"github.com/google/uuid"
)

type DepositStatus string

const (
	DepositStatusPending DepositStatus = "PENDING"
	DepositStatusSuccess DepositStatus = "SUCCESS"
)

// LedgerEntry records one deposit attempt, correlated with the payment
// gateway by OrderCode. Amount is the net amount credited on settlement;
// the processing fee charged on top is never credited.
type LedgerEntry struct {
	OrderCode int64
	OwnerID   uuid.UUID
	Amount    Amount
	Status    DepositStatus
	CreatedAt time.Time
	UpdatedAt time.Time
	SettledAt *time.Time
}

// IsSettled reports whether the entry reached its terminal state.
func (e *LedgerEntry) IsSettled() bool {
	return e.Status == DepositStatusSuccess
}
