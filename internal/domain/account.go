package domain

import (
	"time"

	"github.com/google/uuid"
)

// Account is the single wallet balance of a user.
type Account struct {
	OwnerID   uuid.UUID
	Balance   Amount
	CreatedAt time.Time
	UpdatedAt time.Time
}
