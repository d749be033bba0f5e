package core

import "errors"

// User-facing failures. Every public operation that fails with one of
// these leaves the vault and book exactly as they were before the call.
// Invariant violations (unlock or settle exceeding a locked balance) are
// a distinct fatal class and panic instead: they indicate a bug in the
// engine, and recovering would mask a solvency defect.
var (
	ErrInsufficientBalance   = errors.New("insufficient balance")
	ErrInsufficientAllowance = errors.New("insufficient allowance")
	ErrInvalidOrder          = errors.New("invalid order")
	ErrInvalidPrice          = errors.New("invalid price")
	ErrInvalidQuantity       = errors.New("invalid quantity")
)
