package handler

import (
	"context"
	"errors"
	"io"
	"net/http"

	"github.com/josh-kwaku/carmart-wallet/internal/domain"
	"github.com/josh-kwaku/carmart-wallet/internal/logging"
)

const maxWebhookBody = 1 << 20

type webhookService interface {
	HandleWebhook(ctx context.Context, raw []byte) error
}

// WebhookHandler receives payment gateway callbacks. Any 2xx tells the
// gateway to stop retrying, so only settled or deliberately ignored
// deliveries get one.
type WebhookHandler struct {
	deposits webhookService
}

func NewWebhookHandler(deposits webhookService) *WebhookHandler {
	return &WebhookHandler{deposits: deposits}
}

func (h *WebhookHandler) ReceivePayment(w http.ResponseWriter, r *http.Request) {
	log := logging.FromContext(r.Context())

	body, err := io.ReadAll(io.LimitReader(r.Body, maxWebhookBody))
	if err != nil {
		log.Error("failed to read webhook body", "error", err)
		RespondAppError(w, ErrInvalidRequest, nil)
		return
	}

	if err := h.deposits.HandleWebhook(r.Context(), body); err != nil {
		if !errors.Is(err, domain.ErrInvalidSignature) {
			log.Error("webhook processing failed", "error", err)
		}
		RespondDomainError(w, err)
		return
	}

	RespondSuccess(w, http.StatusOK, map[string]string{"status": "ok"})
}
