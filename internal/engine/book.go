package engine

import (
	"fmt"
	"sync"
	"time"

	"github.com/google/btree"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/dmorandi/tradecore/internal/domain"
)

// priceLevel holds the resting orders at a single price on one side of
// the book. Orders are kept in submission order, so the slice itself is
// the FIFO queue; total caches the sum of the orders' remaining
// quantities.
type priceLevel struct {
	price  decimal.Decimal
	orders []*domain.Order
	total  decimal.Decimal
}

// bidLevelLess orders the bid side by price descending, so Min() is the
// highest bid.
func bidLevelLess(a, b *priceLevel) bool {
	return a.price.GreaterThan(b.price)
}

// askLevelLess orders the ask side by price ascending, so Min() is the
// lowest ask.
func askLevelLess(a, b *priceLevel) bool {
	return a.price.LessThan(b.price)
}

// OrderBook maintains the bid and ask sides for a single instrument as
// B-trees of FIFO price levels, plus an id index covering every order
// the book has seen (resting and terminal) for O(1) cancel and lookup.
//
// The book does not lock itself: mutating operations require the
// caller to hold Lock, read operations RLock. The orchestrator holds
// the write lock from risk validation through settlement so the whole
// sequence is one critical section per instrument.
type OrderBook struct {
	instrument string
	mu         sync.RWMutex
	bids       *btree.BTreeG[*priceLevel]
	asks       *btree.BTreeG[*priceLevel]
	index      map[string]*domain.Order // order id → order

	lastTradePrice decimal.Decimal
	hasLastTrade   bool
}

// NewOrderBook creates an order book for the given instrument.
func NewOrderBook(instrument string) *OrderBook {
	const degree = 32
	return &OrderBook{
		instrument: instrument,
		bids:       btree.NewG[*priceLevel](degree, bidLevelLess),
		asks:       btree.NewG[*priceLevel](degree, askLevelLess),
		index:      make(map[string]*domain.Order),
	}
}

// Instrument returns the instrument this book trades.
func (ob *OrderBook) Instrument() string {
	return ob.instrument
}

// Lock acquires the write lock on the order book.
func (ob *OrderBook) Lock() {
	ob.mu.Lock()
}

// Unlock releases the write lock on the order book.
func (ob *OrderBook) Unlock() {
	ob.mu.Unlock()
}

// RLock acquires the read lock on the order book.
func (ob *OrderBook) RLock() {
	ob.mu.RLock()
}

// RUnlock releases the read lock on the order book.
func (ob *OrderBook) RUnlock() {
	ob.mu.RUnlock()
}

// Submit matches the order against the opposite side and rests any
// limit remainder. It returns the trades produced, in execution order.
// A market order never rests: with no fills its status becomes
// rejected, with partial fills the remainder is discarded. Malformed
// orders are rejected with ErrInvalidOrder before any state changes.
// The caller must hold the write lock.
func (ob *OrderBook) Submit(o *domain.Order) ([]*domain.Trade, error) {
	if err := ob.checkSubmittable(o); err != nil {
		return nil, err
	}

	ob.index[o.ID] = o
	trades := ob.match(o)

	if o.Remaining().IsPositive() {
		switch o.Type {
		case domain.OrderTypeLimit:
			ob.rest(o)
		case domain.OrderTypeMarket:
			if o.FilledQuantity.IsZero() {
				o.Status = domain.OrderStatusRejected
			}
		}
	}

	return trades, nil
}

// checkSubmittable rejects orders the book cannot process.
func (ob *OrderBook) checkSubmittable(o *domain.Order) error {
	if o.ID == "" {
		return fmt.Errorf("%w: missing order id", domain.ErrInvalidOrder)
	}
	if _, ok := ob.index[o.ID]; ok {
		return fmt.Errorf("%w: duplicate order id %s", domain.ErrInvalidOrder, o.ID)
	}
	if o.Instrument != ob.instrument {
		return fmt.Errorf("%w: order instrument %s does not match book %s", domain.ErrInvalidOrder, o.Instrument, ob.instrument)
	}
	if o.Side != domain.SideBuy && o.Side != domain.SideSell {
		return fmt.Errorf("%w: unknown side %q", domain.ErrInvalidOrder, o.Side)
	}
	if !o.Quantity.IsPositive() {
		return fmt.Errorf("%w: quantity must be positive", domain.ErrInvalidOrder)
	}
	switch o.Type {
	case domain.OrderTypeLimit:
		if !o.Price.IsPositive() {
			return fmt.Errorf("%w: limit order requires a positive price", domain.ErrInvalidOrder)
		}
	case domain.OrderTypeMarket:
		if !o.Price.IsZero() {
			return fmt.Errorf("%w: market order must not carry a price", domain.ErrInvalidOrder)
		}
	default:
		return fmt.Errorf("%w: unknown order type %q", domain.ErrInvalidOrder, o.Type)
	}
	return nil
}

// match runs the taker against the opposite side of the book. The same
// loop serves both sides and both order types: the trees are ordered so
// Min() is always the best opposing level, and crosses() is the only
// side-dependent predicate. Fills execute at the resting order's price
// and respect FIFO within each level; emptied levels are deleted.
func (ob *OrderBook) match(taker *domain.Order) []*domain.Trade {
	opposite := ob.sideTree(taker.Side.Opposite())

	var trades []*domain.Trade
	for taker.Remaining().IsPositive() {
		level, ok := opposite.Min()
		if !ok || !crosses(taker, level.price) {
			break
		}

		for len(level.orders) > 0 && taker.Remaining().IsPositive() {
			maker := level.orders[0]
			qty := decimal.Min(taker.Remaining(), maker.Remaining())
			trades = append(trades, ob.fill(taker, maker, level, qty))

			if maker.Remaining().IsZero() {
				maker.Status = domain.OrderStatusFilled
				level.orders = level.orders[1:]
			}
		}

		if len(level.orders) == 0 {
			opposite.Delete(level)
		}
	}
	return trades
}

// crosses reports whether the taker's price is compatible with the
// given opposing level. Market orders cross any level.
func crosses(taker *domain.Order, levelPrice decimal.Decimal) bool {
	if taker.Type == domain.OrderTypeMarket {
		return true
	}
	if taker.Side == domain.SideBuy {
		return levelPrice.LessThanOrEqual(taker.Price)
	}
	return levelPrice.GreaterThanOrEqual(taker.Price)
}

// fill executes qty between the taker and the maker at the maker's
// price, updates both orders and the level's cached total, and returns
// the trade.
func (ob *OrderBook) fill(taker, maker *domain.Order, level *priceLevel, qty decimal.Decimal) *domain.Trade {
	price := maker.Price

	taker.FilledQuantity = taker.FilledQuantity.Add(qty)
	maker.FilledQuantity = maker.FilledQuantity.Add(qty)
	taker.Status = fillStatus(taker)
	maker.Status = fillStatus(maker)

	level.total = level.total.Sub(qty)
	ob.lastTradePrice = price
	ob.hasLastTrade = true

	buyOrder, sellOrder := taker, maker
	if taker.Side == domain.SideSell {
		buyOrder, sellOrder = maker, taker
	}

	return &domain.Trade{
		ID:            uuid.New().String(),
		Instrument:    ob.instrument,
		Price:         price,
		Quantity:      qty,
		AggressorSide: taker.Side,
		BuyOrderID:    buyOrder.ID,
		SellOrderID:   sellOrder.ID,
		BuyAccountID:  buyOrder.AccountID,
		SellAccountID: sellOrder.AccountID,
		ExecutedAt:    time.Now(),
	}
}

// fillStatus derives the order's status from its remaining quantity.
func fillStatus(o *domain.Order) domain.OrderStatus {
	if o.Remaining().IsZero() {
		return domain.OrderStatusFilled
	}
	return domain.OrderStatusPartiallyFilled
}

// rest appends the order's remainder to its price level, creating the
// level if absent.
func (ob *OrderBook) rest(o *domain.Order) {
	tree := ob.sideTree(o.Side)
	level, ok := tree.Get(&priceLevel{price: o.Price})
	if !ok {
		level = &priceLevel{price: o.Price}
		tree.ReplaceOrInsert(level)
	}
	level.orders = append(level.orders, o)
	level.total = level.total.Add(o.Remaining())
}

// Cancel removes a resting order from the book and marks it canceled.
// It returns ErrUnknownOrder for ids the book has never seen and
// ErrAlreadyTerminal for orders that are filled, canceled, rejected, or
// no longer resting. The caller must hold the write lock.
func (ob *OrderBook) Cancel(orderID string) (*domain.Order, error) {
	o, ok := ob.index[orderID]
	if !ok {
		return nil, domain.ErrUnknownOrder
	}
	if o.Status.Terminal() {
		return nil, domain.ErrAlreadyTerminal
	}

	tree := ob.sideTree(o.Side)
	level, ok := tree.Get(&priceLevel{price: o.Price})
	if !ok {
		return nil, domain.ErrAlreadyTerminal
	}

	removed := false
	for i, resting := range level.orders {
		if resting.ID == orderID {
			level.orders = append(level.orders[:i], level.orders[i+1:]...)
			level.total = level.total.Sub(resting.Remaining())
			removed = true
			break
		}
	}
	if !removed {
		return nil, domain.ErrAlreadyTerminal
	}

	if len(level.orders) == 0 {
		tree.Delete(level)
	}

	o.Status = domain.OrderStatusCanceled
	return o, nil
}

// Order looks up any order the book has seen by id.
// The caller must hold the read lock.
func (ob *OrderBook) Order(orderID string) (*domain.Order, error) {
	o, ok := ob.index[orderID]
	if !ok {
		return nil, domain.ErrUnknownOrder
	}
	return o, nil
}

// BestBid returns the highest bid price, or false when the bid side is
// empty. The caller must hold the read lock.
func (ob *OrderBook) BestBid() (decimal.Decimal, bool) {
	return bestPrice(ob.bids)
}

// BestAsk returns the lowest ask price, or false when the ask side is
// empty. The caller must hold the read lock.
func (ob *OrderBook) BestAsk() (decimal.Decimal, bool) {
	return bestPrice(ob.asks)
}

func bestPrice(tree *btree.BTreeG[*priceLevel]) (decimal.Decimal, bool) {
	level, ok := tree.Min()
	if !ok {
		return decimal.Decimal{}, false
	}
	return level.price, true
}

// Spread returns best ask minus best bid, or false when either side is
// empty. The caller must hold the read lock.
func (ob *OrderBook) Spread() (decimal.Decimal, bool) {
	bid, okBid := ob.BestBid()
	ask, okAsk := ob.BestAsk()
	if !okBid || !okAsk {
		return decimal.Decimal{}, false
	}
	return ask.Sub(bid), true
}

// LastTradePrice returns the price of the book's most recent trade, or
// false when no trade has happened. The caller must hold the read lock.
func (ob *OrderBook) LastTradePrice() (decimal.Decimal, bool) {
	return ob.lastTradePrice, ob.hasLastTrade
}

// Depth returns up to n aggregated price levels per side, best first.
// The caller must hold the read lock.
func (ob *OrderBook) Depth(n int) domain.Depth {
	d := domain.Depth{
		Instrument: ob.instrument,
		Bids:       topLevels(ob.bids, n),
		Asks:       topLevels(ob.asks, n),
	}
	if ob.hasLastTrade {
		d.LastTradePrice = ob.lastTradePrice
	}
	return d
}

// topLevels collects at most n levels from the tree in priority order.
func topLevels(tree *btree.BTreeG[*priceLevel], n int) []domain.PriceLevel {
	if n <= 0 {
		return nil
	}
	levels := make([]domain.PriceLevel, 0, n)
	tree.Ascend(func(level *priceLevel) bool {
		levels = append(levels, domain.PriceLevel{
			Price:         level.price,
			TotalQuantity: level.total,
			OrderCount:    len(level.orders),
		})
		return len(levels) < n
	})
	return levels
}

// QuoteResult is the outcome of simulating a market order against the
// current book without mutating it.
type QuoteResult struct {
	QuantityRequested decimal.Decimal
	QuantityAvailable decimal.Decimal
	FullyFillable     bool
	EstimatedAvgPrice decimal.Decimal // zero when nothing is available
	EstimatedTotal    decimal.Decimal
	Levels            []domain.PriceLevel // levels consumed, best first
}

// SimulateMarketOrder walks the opposite side and reports how a market
// order of the given size would fill right now. Read-only; the caller
// must hold the read lock.
func (ob *OrderBook) SimulateMarketOrder(side domain.Side, quantity decimal.Decimal) QuoteResult {
	result := QuoteResult{QuantityRequested: quantity}
	remaining := quantity

	ob.sideTree(side.Opposite()).Ascend(func(level *priceLevel) bool {
		take := decimal.Min(remaining, level.total)
		if take.IsZero() {
			return false
		}
		result.Levels = append(result.Levels, domain.PriceLevel{
			Price:         level.price,
			TotalQuantity: take,
			OrderCount:    len(level.orders),
		})
		result.QuantityAvailable = result.QuantityAvailable.Add(take)
		result.EstimatedTotal = result.EstimatedTotal.Add(level.price.Mul(take))
		remaining = remaining.Sub(take)
		return remaining.IsPositive()
	})

	result.FullyFillable = result.QuantityAvailable.Equal(quantity)
	if result.QuantityAvailable.IsPositive() {
		result.EstimatedAvgPrice = result.EstimatedTotal.Div(result.QuantityAvailable)
	}
	return result
}

// sideTree returns the tree holding the given side's levels.
func (ob *OrderBook) sideTree(side domain.Side) *btree.BTreeG[*priceLevel] {
	if side == domain.SideBuy {
		return ob.bids
	}
	return ob.asks
}

// BookManager is a thread-safe map of instrument → OrderBook.
type BookManager struct {
	mu    sync.RWMutex
	books map[string]*OrderBook
}

// NewBookManager creates a new BookManager.
func NewBookManager() *BookManager {
	return &BookManager{
		books: make(map[string]*OrderBook),
	}
}

// GetOrCreate returns the order book for the given instrument, creating
// one if it doesn't already exist.
func (bm *BookManager) GetOrCreate(instrument string) *OrderBook {
	bm.mu.RLock()
	book, ok := bm.books[instrument]
	bm.mu.RUnlock()
	if ok {
		return book
	}

	bm.mu.Lock()
	defer bm.mu.Unlock()
	// Double-check after acquiring write lock.
	if book, ok = bm.books[instrument]; ok {
		return book
	}
	book = NewOrderBook(instrument)
	bm.books[instrument] = book
	return book
}
