package domain

import "github.com/shopspring/decimal"

// PriceLevel is an aggregated view of one price point on one side of
// the book.
type PriceLevel struct {
	Price         decimal.Decimal
	TotalQuantity decimal.Decimal
	OrderCount    int
}

// Depth is a point-in-time snapshot of the top of the book. Bids and
// Asks are ordered best-first. LastTradePrice is zero until the
// instrument's first trade.
type Depth struct {
	Instrument     string
	Bids           []PriceLevel
	Asks           []PriceLevel
	LastTradePrice decimal.Decimal
}
