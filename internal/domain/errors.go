package domain

import (
	"errors"
	"fmt"
)

// Sentinel errors for domain-level error handling. Callers branch on
// these with errors.Is; every rejection an order can receive maps to
// exactly one of them.
var (
	// Risk engine rejections, in the order the checks run.
	ErrAccountNotFound       = errors.New("account_not_found")
	ErrAccountExists         = errors.New("account_already_exists")
	ErrOrderValueExceeded    = errors.New("order_value_exceeded")
	ErrInsufficientFunds     = errors.New("insufficient_funds")
	ErrPositionLimitExceeded = errors.New("position_limit_exceeded")

	// Order book rejections.
	ErrUnknownOrder    = errors.New("unknown_order")
	ErrAlreadyTerminal = errors.New("order_already_terminal")
	ErrInvalidOrder    = errors.New("invalid_order")

	// Admission rejections.
	ErrNoLiquidity        = errors.New("no_liquidity")
	ErrInstrumentNotFound = errors.New("instrument_not_found")
)

// ValidationError represents a request validation failure.
type ValidationError struct {
	Message string
}

func (e *ValidationError) Error() string {
	return e.Message
}

// SettlementError reports that a trade mutated the book but one side of
// its settlement failed. It is fatal: the engine's books and accounts
// no longer agree, and callers must not treat it as a rejection.
type SettlementError struct {
	TradeID    string
	AccountID  string
	Instrument string
	Err        error
}

func (e *SettlementError) Error() string {
	return fmt.Sprintf("settlement inconsistency: trade %s account %s instrument %s: %v",
		e.TradeID, e.AccountID, e.Instrument, e.Err)
}

func (e *SettlementError) Unwrap() error {
	return e.Err
}
