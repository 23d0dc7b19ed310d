package exchange

import (
	"bytes"
	"log/slog"
	"strings"
	"testing"

	"github.com/dmorandi/tradecore/internal/domain"
)

func TestChannelSinkBuffersAndDrops(t *testing.T) {
	s := NewChannelSink(2)

	for seq := uint64(1); seq <= 3; seq++ {
		s.Publish(domain.OrderAccepted{EventMeta: domain.EventMeta{Sequence: seq}})
	}

	if s.Dropped() != 1 {
		t.Errorf("expected 1 dropped event, got %d", s.Dropped())
	}

	first := <-s.Events()
	second := <-s.Events()
	if first.Meta().Sequence != 1 || second.Meta().Sequence != 2 {
		t.Errorf("expected events 1 and 2, got %d and %d",
			first.Meta().Sequence, second.Meta().Sequence)
	}

	s.Close()
	if _, open := <-s.Events(); open {
		t.Error("expected channel closed")
	}
}

func TestSlogSinkLogsEveryKind(t *testing.T) {
	var buf bytes.Buffer
	s := NewSlogSink(slog.New(slog.NewJSONHandler(&buf, nil)))

	s.Publish(domain.OrderAccepted{EventMeta: domain.EventMeta{Sequence: 1}, Order: domain.Order{ID: "o1"}})
	s.Publish(domain.OrderRejected{EventMeta: domain.EventMeta{Sequence: 2}, Order: domain.Order{ID: "o2"}, Reason: "no_liquidity"})
	s.Publish(domain.TradeExecuted{EventMeta: domain.EventMeta{Sequence: 3}, Trade: domain.Trade{ID: "t1"}})
	s.Publish(domain.PositionUpdated{EventMeta: domain.EventMeta{Sequence: 4}, AccountID: "alice"})

	out := buf.String()
	for _, want := range []string{"order.accepted", "order.rejected", "trade.executed", "position.updated", "no_liquidity"} {
		if !strings.Contains(out, want) {
			t.Errorf("expected log output to contain %q", want)
		}
	}
}
