package exchange

import (
	"fmt"
	"time"

	"github.com/shopspring/decimal"

	"github.com/dmorandi/tradecore/internal/domain"
	"github.com/dmorandi/tradecore/internal/engine"
)

// PriceInfo is the reference-price view of an instrument: VWAP over the
// trailing window, falling back to the last trade when the window is
// empty. HasPrice is false until the instrument trades at all.
type PriceInfo struct {
	Instrument     string
	Price          decimal.Decimal
	HasPrice       bool
	Window         string
	TradesInWindow int
	LastTradeAt    *time.Time
}

// ReferencePrice computes the instrument's reference price as the
// volume-weighted average price of trades inside the configured window.
func (e *Exchange) ReferencePrice(instrument string) (PriceInfo, error) {
	if !e.registry.Exists(instrument) {
		return PriceInfo{}, domain.ErrInstrumentNotFound
	}

	info := PriceInfo{
		Instrument: instrument,
		Window:     formatDuration(e.vwapWindow),
	}

	trades := e.trades.GetByInstrument(instrument)
	if len(trades) == 0 {
		return info, nil
	}

	last := trades[len(trades)-1]
	info.LastTradeAt = &last.ExecutedAt

	// Walk backwards from the most recent trade until we leave the
	// window.
	windowStart := time.Now().Add(-e.vwapWindow)
	sumPriceQty := decimal.Zero
	sumQty := decimal.Zero
	for i := len(trades) - 1; i >= 0; i-- {
		t := trades[i]
		if t.ExecutedAt.Before(windowStart) {
			break
		}
		sumPriceQty = sumPriceQty.Add(t.Price.Mul(t.Quantity))
		sumQty = sumQty.Add(t.Quantity)
		info.TradesInWindow++
	}

	info.HasPrice = true
	if sumQty.IsPositive() {
		info.Price = sumPriceQty.Div(sumQty)
	} else {
		info.Price = last.Price
	}
	return info, nil
}

// Quote simulates a market order of the given size against the current
// book without placing anything.
func (e *Exchange) Quote(instrument string, side domain.Side, quantity decimal.Decimal) (engine.QuoteResult, error) {
	if !e.registry.Exists(instrument) {
		return engine.QuoteResult{}, domain.ErrInstrumentNotFound
	}
	if side != domain.SideBuy && side != domain.SideSell {
		return engine.QuoteResult{}, &domain.ValidationError{Message: "side must be buy or sell"}
	}
	if err := domain.CheckQuantity(quantity); err != nil {
		return engine.QuoteResult{}, err
	}

	book := e.books.GetOrCreate(instrument)
	book.RLock()
	defer book.RUnlock()
	return book.SimulateMarketOrder(side, quantity), nil
}

// Depth returns the top n aggregated price levels per side.
func (e *Exchange) Depth(instrument string, n int) (domain.Depth, error) {
	if !e.registry.Exists(instrument) {
		return domain.Depth{}, domain.ErrInstrumentNotFound
	}

	book := e.books.GetOrCreate(instrument)
	book.RLock()
	defer book.RUnlock()
	return book.Depth(n), nil
}

// BestBid returns the instrument's best bid price, false when the bid
// side is empty.
func (e *Exchange) BestBid(instrument string) (decimal.Decimal, bool, error) {
	return e.bestPrice(instrument, domain.SideBuy)
}

// BestAsk returns the instrument's best ask price, false when the ask
// side is empty.
func (e *Exchange) BestAsk(instrument string) (decimal.Decimal, bool, error) {
	return e.bestPrice(instrument, domain.SideSell)
}

func (e *Exchange) bestPrice(instrument string, side domain.Side) (decimal.Decimal, bool, error) {
	if !e.registry.Exists(instrument) {
		return decimal.Decimal{}, false, domain.ErrInstrumentNotFound
	}

	book := e.books.GetOrCreate(instrument)
	book.RLock()
	defer book.RUnlock()
	if side == domain.SideBuy {
		p, ok := book.BestBid()
		return p, ok, nil
	}
	p, ok := book.BestAsk()
	return p, ok, nil
}

// Spread returns best ask minus best bid, false when either side is
// empty.
func (e *Exchange) Spread(instrument string) (decimal.Decimal, bool, error) {
	if !e.registry.Exists(instrument) {
		return decimal.Decimal{}, false, domain.ErrInstrumentNotFound
	}

	book := e.books.GetOrCreate(instrument)
	book.RLock()
	defer book.RUnlock()
	s, ok := book.Spread()
	return s, ok, nil
}

// LastTradePrice returns the instrument's most recent execution price,
// false until it trades.
func (e *Exchange) LastTradePrice(instrument string) (decimal.Decimal, bool, error) {
	if !e.registry.Exists(instrument) {
		return decimal.Decimal{}, false, domain.ErrInstrumentNotFound
	}

	book := e.books.GetOrCreate(instrument)
	book.RLock()
	defer book.RUnlock()
	p, ok := book.LastTradePrice()
	return p, ok, nil
}

// Trades returns the instrument's trade history in execution order.
func (e *Exchange) Trades(instrument string) ([]*domain.Trade, error) {
	if !e.registry.Exists(instrument) {
		return nil, domain.ErrInstrumentNotFound
	}
	return e.trades.GetByInstrument(instrument), nil
}

// formatDuration renders a duration like "5m" for whole minutes,
// falling back to the standard string form.
func formatDuration(d time.Duration) string {
	if d == 0 {
		return "0s"
	}
	minutes := int(d.Minutes())
	if d == time.Duration(minutes)*time.Minute && minutes > 0 {
		return fmt.Sprintf("%dm", minutes)
	}
	return d.String()
}
