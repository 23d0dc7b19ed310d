package domain

import (
	"github.com/shopspring/decimal"
)

// MaxScale is the maximum number of decimal places accepted on submitted
// prices and quantities. Arithmetic inside the engine is exact, but
// admitting unbounded scale would let basis prices grow digits forever.
const MaxScale = 8

// CheckPrice validates a submitted limit price: strictly positive with
// at most MaxScale decimal places.
func CheckPrice(p decimal.Decimal) error {
	if !p.IsPositive() {
		return &ValidationError{Message: "price must be positive"}
	}
	if p.Exponent() < -MaxScale {
		return &ValidationError{Message: "price must have at most 8 decimal places"}
	}
	return nil
}

// CheckQuantity validates a submitted order quantity: strictly positive
// with at most MaxScale decimal places.
func CheckQuantity(q decimal.Decimal) error {
	if !q.IsPositive() {
		return &ValidationError{Message: "quantity must be positive"}
	}
	if q.Exponent() < -MaxScale {
		return &ValidationError{Message: "quantity must have at most 8 decimal places"}
	}
	return nil
}

// Notional returns price × quantity.
func Notional(price, quantity decimal.Decimal) decimal.Decimal {
	return price.Mul(quantity)
}
