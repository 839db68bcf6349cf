package domain

import (
	"errors"
	"fmt"
)

var (
	ErrNotFound            = errors.New("not found")
	ErrInvalidAmount       = errors.New("invalid amount")
	ErrAmountOutOfRange    = errors.New("amount out of range")
	ErrInvalidSignature    = errors.New("invalid webhook signature")
	ErrNotAvailable        = errors.New("listing not available")
	ErrSelfPurchase        = errors.New("cannot buy your own listing")
	ErrInsufficientBalance = errors.New("insufficient balance")
	ErrUnderflow           = errors.New("amount underflow")
	ErrBusy                = errors.New("resource busy, retry later")
	ErrDepositSettled      = errors.New("deposit already settled")
	ErrOrderCodeCollision  = errors.New("could not allocate a unique order code")
	ErrGatewayUnavailable  = errors.New("payment gateway unavailable")
)

// RangeError reports a deposit amount outside the configured bounds.
type RangeError struct {
	Min Amount
	Max Amount
}

func (e *RangeError) Error() string {
	return fmt.Sprintf("amount must be between %s and %s", e.Min, e.Max)
}

func (e *RangeError) Unwrap() error { return ErrAmountOutOfRange }
