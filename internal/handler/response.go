package handler

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/josh-kwaku/carmart-wallet/internal/domain"
)

type APIResponse struct {
	Success bool      `json:"success"`
	Data    any       `json:"data"`
	Error   *APIError `json:"error"`
}

type APIError struct {
	Code    string `json:"code"`
	Message string `json:"message"`
	Details any    `json:"details,omitempty"`
}

type FieldError struct {
	Field   string `json:"field"`
	Message string `json:"message"`
}

func RespondJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(payload); err != nil {
		slog.Error("failed to encode response", "error", err)
	}
}

func RespondSuccess(w http.ResponseWriter, status int, data any) {
	RespondJSON(w, status, APIResponse{
		Success: true,
		Data:    data,
		Error:   nil,
	})
}

func RespondAppError(w http.ResponseWriter, appErr *AppError, details any) {
	RespondJSON(w, appErr.Status, APIResponse{
		Success: false,
		Data:    nil,
		Error: &APIError{
			Code:    appErr.Code,
			Message: appErr.Message,
			Details: details,
		},
	})
}

func RespondValidationError(w http.ResponseWriter, fields []FieldError) {
	RespondAppError(w, ErrValidationFailed, fields)
}

func RespondDomainError(w http.ResponseWriter, err error) {
	var appErr *AppError

	var rangeErr *domain.RangeError
	if errors.As(err, &rangeErr) {
		// The message names the configured bounds.
		RespondAppError(w, &AppError{
			Status:  ErrAmountOutOfRange.Status,
			Code:    ErrAmountOutOfRange.Code,
			Message: rangeErr.Error(),
		}, map[string]string{"min": rangeErr.Min.String(), "max": rangeErr.Max.String()})
		return
	}

	switch {
	case errors.Is(err, domain.ErrNotFound):
		appErr = ErrResourceNotFound
	case errors.Is(err, domain.ErrInvalidAmount):
		appErr = ErrInvalidAmount
	case errors.Is(err, domain.ErrAmountOutOfRange):
		appErr = ErrAmountOutOfRange
	case errors.Is(err, domain.ErrInvalidSignature):
		appErr = ErrInvalidSignature
	case errors.Is(err, domain.ErrNotAvailable):
		appErr = ErrNotAvailable
	case errors.Is(err, domain.ErrSelfPurchase):
		appErr = ErrSelfPurchase
	case errors.Is(err, domain.ErrInsufficientBalance):
		appErr = ErrInsufficientBalance
	case errors.Is(err, domain.ErrBusy):
		appErr = ErrBusy
	case errors.Is(err, domain.ErrGatewayUnavailable):
		appErr = ErrGatewayUnavailable
	default:
		slog.Error("unhandled domain error", "error", err)
		appErr = ErrInternalError
	}

	RespondAppError(w, appErr, nil)
}
