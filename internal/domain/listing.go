package domain

import (
	"time"

	"github.com/google/uuid"
)

type ListingStatus string

const (
	ListingStatusAvailable ListingStatus = "AVAILABLE"
	ListingStatusSold      ListingStatus = "SOLD"
	ListingStatusHidden    ListingStatus = "HIDDEN"
	ListingStatusPending   ListingStatus = "PENDING_REVIEW"
)

// Listing holds the subset of car listing attributes that settlement reads
// and writes. BuyerID and SoldAt are set by the AVAILABLE -> SOLD transition.
type Listing struct {
	ID        uuid.UUID
	SellerID  uuid.UUID
	Price     Amount
	Status    ListingStatus
	BuyerID   *uuid.UUID
	SoldAt    *time.Time
	UpdatedAt time.Time
}
