package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

// Trade represents a matched execution between a buy and a sell order.
// Trades are immutable once created; the price is always the resting
// order's price.
type Trade struct {
	ID            string
	Instrument    string
	Price         decimal.Decimal
	Quantity      decimal.Decimal
	AggressorSide Side
	BuyOrderID    string
	SellOrderID   string
	BuyAccountID  string
	SellAccountID string
	ExecutedAt    time.Time
}

// Notional returns price × quantity, the cash value exchanged.
func (t *Trade) Notional() decimal.Decimal {
	return t.Price.Mul(t.Quantity)
}

// OrderID returns the trade's order id on the given side.
func (t *Trade) OrderID(side Side) string {
	if side == SideBuy {
		return t.BuyOrderID
	}
	return t.SellOrderID
}

// AccountID returns the trade's account id on the given side.
func (t *Trade) AccountID(side Side) string {
	if side == SideBuy {
		return t.BuyAccountID
	}
	return t.SellAccountID
}
