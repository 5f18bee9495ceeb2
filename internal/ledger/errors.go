package ledger

import "errors"

// Failure taxonomy surfaced to callers. Every rejected operation wraps exactly
// one of these sentinels; no operation partially applies.
var (
	ErrNotFound          = errors.New("not found")
	ErrInvalidInput      = errors.New("invalid input")
	ErrInsufficientStock = errors.New("insufficient stock")
	ErrPaymentMismatch   = errors.New("payment mismatch")
	ErrInvalidTransition = errors.New("invalid transition")
	ErrUnauthorized      = errors.New("unauthorized")
)
