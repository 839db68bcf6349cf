package handler

import (
	"context"
	"net/http"
	"strconv"
	"time"

	"github.com/google/uuid"

	"github.com/josh-kwaku/carmart-wallet/internal/auth"
	"github.com/josh-kwaku/carmart-wallet/internal/domain"
	"github.com/josh-kwaku/carmart-wallet/internal/logging"
)

type walletService interface {
	GetBalance(ctx context.Context, ownerID uuid.UUID) (*domain.Account, error)
	ListDeposits(ctx context.Context, ownerID uuid.UUID, limit, offset int) ([]domain.LedgerEntry, int, error)
}

type WalletHandler struct {
	wallet walletService
}

func NewWalletHandler(wallet walletService) *WalletHandler {
	return &WalletHandler{wallet: wallet}
}

type balanceDTO struct {
	OwnerID uuid.UUID     `json:"owner_id"`
	Balance domain.Amount `json:"balance"`
}

type depositDTO struct {
	OrderCode int64         `json:"order_code"`
	Amount    domain.Amount `json:"amount"`
	Status    string        `json:"status"`
	CreatedAt time.Time     `json:"created_at"`
	SettledAt *time.Time    `json:"settled_at"`
}

type depositPage struct {
	Items  []depositDTO `json:"items"`
	Total  int          `json:"total"`
	Limit  int          `json:"limit"`
	Offset int          `json:"offset"`
}

type pageParams struct {
	Limit  int `json:"limit" validate:"min=1,max=100"`
	Offset int `json:"offset" validate:"min=0"`
}

func (h *WalletHandler) Balance(w http.ResponseWriter, r *http.Request) {
	ownerID, ok := auth.UserIDFromContext(r.Context())
	if !ok {
		RespondAppError(w, ErrMissingToken, nil)
		return
	}

	acct, err := h.wallet.GetBalance(r.Context(), ownerID)
	if err != nil {
		logging.FromContext(r.Context()).Error("failed to get balance", "error", err)
		RespondDomainError(w, err)
		return
	}

	RespondSuccess(w, http.StatusOK, balanceDTO{OwnerID: acct.OwnerID, Balance: acct.Balance})
}

func (h *WalletHandler) Deposits(w http.ResponseWriter, r *http.Request) {
	ownerID, ok := auth.UserIDFromContext(r.Context())
	if !ok {
		RespondAppError(w, ErrMissingToken, nil)
		return
	}

	params, fields := parsePage(r)
	if len(fields) > 0 {
		RespondValidationError(w, fields)
		return
	}

	entries, total, err := h.wallet.ListDeposits(r.Context(), ownerID, params.Limit, params.Offset)
	if err != nil {
		logging.FromContext(r.Context()).Error("failed to list deposits", "error", err)
		RespondDomainError(w, err)
		return
	}

	items := make([]depositDTO, len(entries))
	for i, e := range entries {
		items[i] = depositDTO{
			OrderCode: e.OrderCode,
			Amount:    e.Amount,
			Status:    string(e.Status),
			CreatedAt: e.CreatedAt,
			SettledAt: e.SettledAt,
		}
	}

	RespondSuccess(w, http.StatusOK, depositPage{
		Items:  items,
		Total:  total,
		Limit:  params.Limit,
		Offset: params.Offset,
	})
}

func parsePage(r *http.Request) (pageParams, []FieldError) {
	p := pageParams{Limit: 20}
	q := r.URL.Query()

	var fields []FieldError
	if v := q.Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			fields = append(fields, FieldError{Field: "limit", Message: "must be an integer"})
		}
		p.Limit = n
	}
	if v := q.Get("offset"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			fields = append(fields, FieldError{Field: "offset", Message: "must be an integer"})
		}
		p.Offset = n
	}
	if len(fields) > 0 {
		return p, fields
	}
	return p, validateStruct(p)
}
