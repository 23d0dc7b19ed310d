package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

// OrderType distinguishes limit orders from market orders.
type OrderType string

const (
	OrderTypeLimit  OrderType = "limit"
	OrderTypeMarket OrderType = "market"
)

// Side indicates whether an order buys or sells the instrument.
type Side string

const (
	SideBuy  Side = "buy"
	SideSell Side = "sell"
)

// Opposite returns the other side of the book.
func (s Side) Opposite() Side {
	if s == SideBuy {
		return SideSell
	}
	return SideBuy
}

// OrderStatus represents the lifecycle state of an order.
type OrderStatus string

const (
	OrderStatusNew             OrderStatus = "new"
	OrderStatusPartiallyFilled OrderStatus = "partially_filled"
	OrderStatusFilled          OrderStatus = "filled"
	OrderStatusCanceled        OrderStatus = "canceled"
	OrderStatusRejected        OrderStatus = "rejected"
)

// Terminal reports whether the status admits no further transitions.
func (s OrderStatus) Terminal() bool {
	switch s {
	case OrderStatusFilled, OrderStatusCanceled, OrderStatusRejected:
		return true
	}
	return false
}

// Order represents a buy or sell instruction submitted by an account.
type Order struct {
	ID             string
	Instrument     string
	Side           Side
	Type           OrderType
	Price          decimal.Decimal // zero for market orders
	Quantity       decimal.Decimal
	FilledQuantity decimal.Decimal
	Status         OrderStatus
	AccountID      string
	SubmittedAt    time.Time
	ExpiresAt      *time.Time // nil means good-till-canceled
}

// Remaining returns the quantity not yet filled.
func (o *Order) Remaining() decimal.Decimal {
	return o.Quantity.Sub(o.FilledQuantity)
}

// Snapshot returns a detached value copy of the order, suitable for
// embedding in events after the originating pointer keeps mutating.
func (o *Order) Snapshot() Order {
	c := *o
	if o.ExpiresAt != nil {
		t := *o.ExpiresAt
		c.ExpiresAt = &t
	}
	return c
}
