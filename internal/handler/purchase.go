package handler

import (
	"context"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/josh-kwaku/carmart-wallet/internal/auth"
	"github.com/josh-kwaku/carmart-wallet/internal/domain"
	"github.com/josh-kwaku/carmart-wallet/internal/logging"
)

type purchaseService interface {
	Buy(ctx context.Context, listingID, buyerID uuid.UUID) (*domain.Listing, error)
}

type PurchaseHandler struct {
	purchases purchaseService
}

func NewPurchaseHandler(purchases purchaseService) *PurchaseHandler {
	return &PurchaseHandler{purchases: purchases}
}

type listingDTO struct {
	ID       uuid.UUID     `json:"id"`
	SellerID uuid.UUID     `json:"seller_id"`
	BuyerID  *uuid.UUID    `json:"buyer_id"`
	Price    domain.Amount `json:"price"`
	Status   string        `json:"status"`
	SoldAt   *time.Time    `json:"sold_at"`
}

func (h *PurchaseHandler) Buy(w http.ResponseWriter, r *http.Request) {
	buyerID, ok := auth.UserIDFromContext(r.Context())
	if !ok {
		RespondAppError(w, ErrMissingToken, nil)
		return
	}

	listingID, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		RespondAppError(w, ErrResourceNotFound, nil)
		return
	}

	listing, err := h.purchases.Buy(r.Context(), listingID, buyerID)
	if err != nil {
		logging.FromContext(r.Context()).Info("purchase failed", "listing_id", listingID, "error", err)
		RespondDomainError(w, err)
		return
	}

	RespondSuccess(w, http.StatusOK, listingDTO{
		ID:       listing.ID,
		SellerID: listing.SellerID,
		BuyerID:  listing.BuyerID,
		Price:    listing.Price,
		Status:   string(listing.Status),
		SoldAt:   listing.SoldAt,
	})
}
