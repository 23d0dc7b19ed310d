package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

// EventType identifies the kind of a domain event.
type EventType string

const (
	EventTypeOrderAccepted   EventType = "order.accepted"
	EventTypeOrderRejected   EventType = "order.rejected"
	EventTypeTradeExecuted   EventType = "trade.executed"
	EventTypePositionUpdated EventType = "position.updated"
)

// EventMeta carries the fields shared by every event. Sequence is
// strictly increasing per exchange, so consumers can re-establish the
// order in which state changes happened.
type EventMeta struct {
	Sequence   uint64
	OccurredAt time.Time
}

// Meta returns the shared event fields.
func (m EventMeta) Meta() EventMeta {
	return m
}

// Event is a domain event published to the exchange's event sink. All
// payloads are value snapshots detached from live engine state.
type Event interface {
	EventType() EventType
	Meta() EventMeta
}

// OrderAccepted is published when an order passes validation and is
// processed by the book. Order carries the post-matching snapshot.
type OrderAccepted struct {
	EventMeta
	Order Order
}

func (OrderAccepted) EventType() EventType { return EventTypeOrderAccepted }

// OrderRejected is published when an order fails validation or cannot
// be admitted. Reason holds the rejection's error string.
type OrderRejected struct {
	EventMeta
	Order  Order
	Reason string
}

func (OrderRejected) EventType() EventType { return EventTypeOrderRejected }

// TradeExecuted is published once per trade.
type TradeExecuted struct {
	EventMeta
	Trade Trade
}

func (TradeExecuted) EventType() EventType { return EventTypeTradeExecuted }

// PositionUpdated is published for each side of a settled trade with
// the account's post-settlement position and cash.
type PositionUpdated struct {
	EventMeta
	AccountID  string
	Instrument string
	Position   Position
	Cash       decimal.Decimal
}

func (PositionUpdated) EventType() EventType { return EventTypePositionUpdated }
