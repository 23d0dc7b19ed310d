package store

import (
	"sync"

	"github.com/dmorandi/tradecore/internal/domain"
)

// TradeStore is a thread-safe in-memory store for trades,
// keyed by instrument. Trades are append-only and chronological.
type TradeStore struct {
	mu     sync.RWMutex
	trades map[string][]*domain.Trade // instrument → trades (chronological)
}

// NewTradeStore creates an empty TradeStore.
func NewTradeStore() *TradeStore {
	return &TradeStore{
		trades: make(map[string][]*domain.Trade),
	}
}

// Append adds a trade to the instrument's chronological list.
func (s *TradeStore) Append(instrument string, t *domain.Trade) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.trades[instrument] = append(s.trades[instrument], t)
}

// GetByInstrument returns all trades for an instrument in chronological
// order. Returns an empty slice if no trades exist for the instrument.
func (s *TradeStore) GetByInstrument(instrument string) []*domain.Trade {
	s.mu.RLock()
	defer s.mu.RUnlock()

	trades := s.trades[instrument]
	if trades == nil {
		return []*domain.Trade{}
	}

	// Return a copy to avoid callers mutating the internal slice.
	result := make([]*domain.Trade, len(trades))
	copy(result, trades)
	return result
}
