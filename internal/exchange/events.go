package exchange

import (
	"log/slog"
	"sync/atomic"

	"github.com/dmorandi/tradecore/internal/domain"
)

// EventSink receives the exchange's domain events. Publish is called
// inside the instrument's critical section, so implementations must
// return quickly and must not call back into the exchange.
type EventSink interface {
	Publish(e domain.Event)
}

// NopSink discards every event.
type NopSink struct{}

// Publish implements EventSink.
func (NopSink) Publish(domain.Event) {}

// ChannelSink forwards events to a buffered channel for an out-of-band
// consumer. When the buffer is full the event is dropped rather than
// blocking the matching path; Dropped reports how many were lost.
type ChannelSink struct {
	ch      chan domain.Event
	dropped atomic.Uint64
}

// NewChannelSink creates a ChannelSink with the given buffer capacity.
func NewChannelSink(buffer int) *ChannelSink {
	if buffer < 1 {
		buffer = 1
	}
	return &ChannelSink{
		ch: make(chan domain.Event, buffer),
	}
}

// Publish implements EventSink.
func (s *ChannelSink) Publish(e domain.Event) {
	select {
	case s.ch <- e:
	default:
		s.dropped.Add(1)
	}
}

// Events returns the channel consumers read events from.
func (s *ChannelSink) Events() <-chan domain.Event {
	return s.ch
}

// Dropped returns the number of events discarded due to a full buffer.
func (s *ChannelSink) Dropped() uint64 {
	return s.dropped.Load()
}

// Close closes the event channel. Publish must not be called after
// Close.
func (s *ChannelSink) Close() {
	close(s.ch)
}

// SlogSink logs every event with structured attributes.
type SlogSink struct {
	log *slog.Logger
}

// NewSlogSink creates a SlogSink writing to the given logger.
func NewSlogSink(log *slog.Logger) *SlogSink {
	return &SlogSink{log: log}
}

// Publish implements EventSink.
func (s *SlogSink) Publish(e domain.Event) {
	meta := e.Meta()
	attrs := []any{
		slog.Uint64("sequence", meta.Sequence),
		slog.String("event", string(e.EventType())),
	}

	switch ev := e.(type) {
	case domain.OrderAccepted:
		attrs = append(attrs,
			slog.String("order_id", ev.Order.ID),
			slog.String("instrument", ev.Order.Instrument),
			slog.String("side", string(ev.Order.Side)),
			slog.String("status", string(ev.Order.Status)),
			slog.String("filled", ev.Order.FilledQuantity.String()),
		)
	case domain.OrderRejected:
		attrs = append(attrs,
			slog.String("order_id", ev.Order.ID),
			slog.String("instrument", ev.Order.Instrument),
			slog.String("reason", ev.Reason),
		)
	case domain.TradeExecuted:
		attrs = append(attrs,
			slog.String("trade_id", ev.Trade.ID),
			slog.String("instrument", ev.Trade.Instrument),
			slog.String("price", ev.Trade.Price.String()),
			slog.String("quantity", ev.Trade.Quantity.String()),
		)
	case domain.PositionUpdated:
		attrs = append(attrs,
			slog.String("account_id", ev.AccountID),
			slog.String("instrument", ev.Instrument),
			slog.String("position", ev.Position.Quantity.String()),
			slog.String("cash", ev.Cash.String()),
		)
	}

	s.log.Info("event", attrs...)
}
