package handler

import (
	"context"
	"encoding/json"
	"net/http"

	"github.com/google/uuid"

	"github.com/josh-kwaku/carmart-wallet/internal/auth"
	"github.com/josh-kwaku/carmart-wallet/internal/domain"
	"github.com/josh-kwaku/carmart-wallet/internal/logging"
	"github.com/josh-kwaku/carmart-wallet/internal/service/deposit"
)

type depositService interface {
	CreateDeposit(ctx context.Context, ownerID uuid.UUID, amount domain.Amount) (*deposit.Checkout, error)
}

type DepositHandler struct {
	deposits depositService
}

func NewDepositHandler(deposits depositService) *DepositHandler {
	return &DepositHandler{deposits: deposits}
}

type createDepositRequest struct {
	Amount string `json:"amount" validate:"required,amount"`
}

type checkoutDTO struct {
	OrderCode   int64         `json:"order_code"`
	CheckoutURL string        `json:"checkout_url"`
	Amount      domain.Amount `json:"amount"`
	Fee         domain.Amount `json:"fee"`
	Total       domain.Amount `json:"total"`
}

func (h *DepositHandler) Create(w http.ResponseWriter, r *http.Request) {
	ownerID, ok := auth.UserIDFromContext(r.Context())
	if !ok {
		RespondAppError(w, ErrMissingToken, nil)
		return
	}

	var req createDepositRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		RespondAppError(w, ErrInvalidRequest, nil)
		return
	}

	if fields := validateStruct(req); len(fields) > 0 {
		RespondValidationError(w, fields)
		return
	}

	amount, err := domain.ParseAmount(req.Amount)
	if err != nil {
		RespondDomainError(w, err)
		return
	}

	checkout, err := h.deposits.CreateDeposit(r.Context(), ownerID, amount)
	if err != nil {
		logging.FromContext(r.Context()).Error("failed to create deposit", "error", err)
		RespondDomainError(w, err)
		return
	}

	RespondSuccess(w, http.StatusCreated, checkoutDTO{
		OrderCode:   checkout.OrderCode,
		CheckoutURL: checkout.CheckoutURL,
		Amount:      checkout.Amount,
		Fee:         checkout.Fee,
		Total:       checkout.Total,
	})
}
