package handler

import "net/http"

type AppError struct {
	Status  int
	Code    string
	Message string
}

func (e *AppError) Error() string { return e.Message }

var (
	ErrMissingToken     = &AppError{http.StatusUnauthorized, "MISSING_TOKEN", "Authorization header required"}
	ErrInvalidToken     = &AppError{http.StatusUnauthorized, "INVALID_TOKEN", "Token is invalid or expired"}
	ErrInvalidRequest   = &AppError{http.StatusBadRequest, "INVALID_REQUEST", "Invalid request body"}
	ErrValidationFailed = &AppError{http.StatusBadRequest, "VALIDATION_FAILED", "Validation failed"}
	ErrResourceNotFound = &AppError{http.StatusNotFound, "RESOURCE_NOT_FOUND", "Resource not found"}
	ErrInternalError    = &AppError{http.StatusInternalServerError, "INTERNAL_ERROR", "An unexpected error occurred"}
	ErrRateLimited      = &AppError{http.StatusTooManyRequests, "RATE_LIMITED", "Too many requests, slow down"}

	ErrMissingIdempotencyKey = &AppError{http.StatusBadRequest, "MISSING_IDEMPOTENCY_KEY", "Idempotency-Key header is required"}
	ErrIdempotencyConflict   = &AppError{http.StatusConflict, "IDEMPOTENCY_CONFLICT", "Idempotency key already used with a different request"}
	ErrIdempotencyInProgress = &AppError{http.StatusConflict, "IDEMPOTENCY_IN_PROGRESS", "A request with this idempotency key is still being processed"}

	ErrInvalidAmount       = &AppError{http.StatusBadRequest, "INVALID_AMOUNT", "Amount must be a string of decimal digits"}
	ErrAmountOutOfRange    = &AppError{http.StatusUnprocessableEntity, "AMOUNT_OUT_OF_RANGE", "Amount is outside the allowed deposit range"}
	ErrInvalidSignature    = &AppError{http.StatusUnauthorized, "INVALID_SIGNATURE", "Webhook signature is invalid"}
	ErrNotAvailable        = &AppError{http.StatusConflict, "NOT_AVAILABLE", "This listing has already been sold or is no longer available"}
	ErrSelfPurchase        = &AppError{http.StatusUnprocessableEntity, "SELF_PURCHASE", "You cannot buy your own listing"}
	ErrInsufficientBalance = &AppError{http.StatusUnprocessableEntity, "INSUFFICIENT_BALANCE", "Your wallet balance is too low for this purchase"}
	ErrBusy                = &AppError{http.StatusServiceUnavailable, "BUSY", "The resource is busy, please retry"}
	ErrGatewayUnavailable  = &AppError{http.StatusBadGateway, "GATEWAY_UNAVAILABLE", "The payment gateway could not create a checkout, please retry"}
)
