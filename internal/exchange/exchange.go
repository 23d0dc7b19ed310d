package exchange

import (
	"context"
	"log/slog"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/dmorandi/tradecore/internal/domain"
	"github.com/dmorandi/tradecore/internal/engine"
	"github.com/dmorandi/tradecore/internal/risk"
	"github.com/dmorandi/tradecore/internal/store"
)

// Exchange ties the order books, the risk engine, and the stores into
// one matching flow: admission, matching, settlement, and event
// emission happen under the instrument's write lock, so callers and
// event consumers observe a per-instrument total order.
type Exchange struct {
	books    *engine.BookManager
	risk     *risk.Engine
	orders   *store.OrderStore
	trades   *store.TradeStore
	registry *domain.InstrumentRegistry
	expiry   *ExpirySweeper
	sink     EventSink
	log      *slog.Logger

	vwapWindow time.Duration
	seq        atomic.Uint64
}

// New creates an Exchange with the given dependencies. vwapWindow is
// the trailing window for reference-price queries.
func New(
	books *engine.BookManager,
	riskEngine *risk.Engine,
	orders *store.OrderStore,
	trades *store.TradeStore,
	registry *domain.InstrumentRegistry,
	sink EventSink,
	vwapWindow time.Duration,
	log *slog.Logger,
) *Exchange {
	e := &Exchange{
		books:      books,
		risk:       riskEngine,
		orders:     orders,
		trades:     trades,
		registry:   registry,
		sink:       sink,
		vwapWindow: vwapWindow,
		log:        log,
	}
	e.expiry = newExpirySweeper(e)
	return e
}

// StartExpiry launches the background loop that cancels resting orders
// once their expiration passes. It stops when ctx is cancelled.
func (e *Exchange) StartExpiry(ctx context.Context, interval time.Duration) {
	e.expiry.Start(ctx, interval)
}

// RegisterInstrument adds an instrument to the tradable set.
func (e *Exchange) RegisterInstrument(symbol string) error {
	return e.registry.Register(symbol)
}

// Instruments returns the registered instruments in lexical order.
func (e *Exchange) Instruments() []string {
	return e.registry.List()
}

// CreateAccount registers a trading account with starting cash.
func (e *Exchange) CreateAccount(id string, startingCash decimal.Decimal) (*domain.Account, error) {
	return e.risk.CreateAccount(id, startingCash)
}

// Account retrieves an account by id.
func (e *Exchange) Account(id string) (*domain.Account, error) {
	return e.risk.Account(id)
}

// PlaceOrderRequest is the caller-facing order submission shape. Price
// must be set for limit orders and left zero for market orders.
// ExpiresAt, when set, must lie in the future and applies to limit
// orders only.
type PlaceOrderRequest struct {
	AccountID  string
	Instrument string
	Side       domain.Side
	Type       domain.OrderType
	Price      decimal.Decimal
	Quantity   decimal.Decimal
	ExpiresAt  *time.Time
}

// PlaceOrder runs an order through admission, matching, and settlement.
//
// The request is shape-checked first, then the whole flow runs under
// the instrument's write lock: reference-price lookup, risk checks,
// matching, settlement of every trade, store updates, and event
// emission. Rejections return the rejected order together with the
// typed error. A settlement failure after the book mutated is fatal
// and returned as a *domain.SettlementError.
func (e *Exchange) PlaceOrder(req PlaceOrderRequest) (*domain.Order, error) {
	if err := checkRequest(&req); err != nil {
		return nil, err
	}
	if !e.registry.Exists(req.Instrument) {
		return nil, domain.ErrInstrumentNotFound
	}

	o := &domain.Order{
		ID:          uuid.New().String(),
		Instrument:  req.Instrument,
		Side:        req.Side,
		Type:        req.Type,
		Price:       req.Price,
		Quantity:    req.Quantity,
		Status:      domain.OrderStatusNew,
		AccountID:   req.AccountID,
		SubmittedAt: time.Now(),
	}
	if req.ExpiresAt != nil {
		t := *req.ExpiresAt
		o.ExpiresAt = &t
	}

	book := e.books.GetOrCreate(o.Instrument)
	book.Lock()
	defer book.Unlock()

	// Reference price: a limit order's own price, or the best opposing
	// price for a market order. A market order with no opposing
	// liquidity is rejected before it reaches the book.
	refPrice := o.Price
	if o.Type == domain.OrderTypeMarket {
		best, ok := e.bestOpposing(book, o.Side)
		if !ok {
			return e.reject(o, domain.ErrNoLiquidity)
		}
		refPrice = best
	}

	if err := e.risk.Validate(o, refPrice); err != nil {
		return e.reject(o, err)
	}

	trades, err := book.Submit(o)
	if err != nil {
		return e.reject(o, err)
	}

	for _, t := range trades {
		buyer, err := e.risk.ApplyTrade(t.BuyAccountID, t, domain.SideBuy)
		if err != nil {
			return nil, e.settlementFailure(t, t.BuyAccountID, err)
		}
		seller, err := e.risk.ApplyTrade(t.SellAccountID, t, domain.SideSell)
		if err != nil {
			return nil, e.settlementFailure(t, t.SellAccountID, err)
		}

		e.trades.Append(t.Instrument, t)
		e.retireMaker(book, o, t)

		e.emit(domain.TradeExecuted{EventMeta: e.nextMeta(), Trade: *t})
		e.emit(domain.PositionUpdated{
			EventMeta:  e.nextMeta(),
			AccountID:  buyer.AccountID,
			Instrument: buyer.Instrument,
			Position:   buyer.Position,
			Cash:       buyer.Cash,
		})
		e.emit(domain.PositionUpdated{
			EventMeta:  e.nextMeta(),
			AccountID:  seller.AccountID,
			Instrument: seller.Instrument,
			Position:   seller.Position,
			Cash:       seller.Cash,
		})
	}

	e.orders.Create(o)
	if o.Type == domain.OrderTypeLimit && o.Remaining().IsPositive() {
		e.trackOpenOrder(o.AccountID, o.ID)
		e.expiry.Add(o)
	}

	e.emit(domain.OrderAccepted{EventMeta: e.nextMeta(), Order: o.Snapshot()})
	return o, nil
}

// CancelOrder cancels a resting order. Unknown ids return
// ErrUnknownOrder; orders that already filled, canceled, or never
// rested return ErrAlreadyTerminal.
func (e *Exchange) CancelOrder(orderID string) (*domain.Order, error) {
	o, err := e.orders.Get(orderID)
	if err != nil {
		return nil, err
	}

	book := e.books.GetOrCreate(o.Instrument)
	book.Lock()
	canceled, err := book.Cancel(orderID)
	book.Unlock()
	if err != nil {
		return nil, err
	}

	e.clearOpenOrder(canceled.AccountID, canceled.ID)
	e.expiry.Remove(canceled.ID)
	return canceled, nil
}

// Order retrieves any order the exchange has seen, including rejected
// and canceled ones.
func (e *Exchange) Order(orderID string) (*domain.Order, error) {
	return e.orders.Get(orderID)
}

// OrdersByAccount lists an account's orders newest first, optionally
// filtered by status, with 1-based pagination. It returns the page and
// the total match count.
func (e *Exchange) OrdersByAccount(accountID string, status *domain.OrderStatus, page, limit int) ([]*domain.Order, int, error) {
	if _, err := e.risk.Account(accountID); err != nil {
		return nil, 0, err
	}
	if page < 1 {
		page = 1
	}
	if limit < 1 {
		limit = 20
	}
	orders, total := e.orders.ListByAccount(accountID, status, page, limit)
	return orders, total, nil
}

// UnrealizedPnL reports the account's unrealized PnL against the given
// mark prices.
func (e *Exchange) UnrealizedPnL(accountID string, marks map[string]decimal.Decimal) (decimal.Decimal, error) {
	return e.risk.UnrealizedPnL(accountID, marks)
}

// reject records and reports a rejected order. Caller holds the book
// lock.
func (e *Exchange) reject(o *domain.Order, cause error) (*domain.Order, error) {
	o.Status = domain.OrderStatusRejected
	e.orders.Create(o)
	e.emit(domain.OrderRejected{
		EventMeta: e.nextMeta(),
		Order:     o.Snapshot(),
		Reason:    cause.Error(),
	})
	return o, cause
}

// settlementFailure wraps a post-match settlement error. The book has
// already mutated at this point, so the failure is fatal rather than a
// rejection.
func (e *Exchange) settlementFailure(t *domain.Trade, accountID string, cause error) error {
	serr := &domain.SettlementError{
		TradeID:    t.ID,
		AccountID:  accountID,
		Instrument: t.Instrument,
		Err:        cause,
	}
	e.log.Error("settlement failed",
		slog.String("trade_id", t.ID),
		slog.String("account_id", accountID),
		slog.String("instrument", t.Instrument),
		slog.Any("error", cause),
	)
	return serr
}

// retireMaker drops a filled resting order from its owner's open set
// and the expiry sweeper. Caller holds the book lock.
func (e *Exchange) retireMaker(book *engine.OrderBook, taker *domain.Order, t *domain.Trade) {
	makerID, makerAccount := t.OrderID(taker.Side.Opposite()), t.AccountID(taker.Side.Opposite())
	maker, err := book.Order(makerID)
	if err != nil || !maker.Status.Terminal() {
		return
	}
	e.clearOpenOrder(makerAccount, makerID)
	e.expiry.Remove(makerID)
}

// bestOpposing returns the best price on the side the order would
// trade against. Caller holds the book lock.
func (e *Exchange) bestOpposing(book *engine.OrderBook, side domain.Side) (decimal.Decimal, bool) {
	if side == domain.SideBuy {
		return book.BestAsk()
	}
	return book.BestBid()
}

func (e *Exchange) trackOpenOrder(accountID, orderID string) {
	acct, err := e.risk.Account(accountID)
	if err != nil {
		return
	}
	acct.Mu.Lock()
	acct.OpenOrders[orderID] = struct{}{}
	acct.Mu.Unlock()
}

func (e *Exchange) clearOpenOrder(accountID, orderID string) {
	acct, err := e.risk.Account(accountID)
	if err != nil {
		return
	}
	acct.Mu.Lock()
	delete(acct.OpenOrders, orderID)
	acct.Mu.Unlock()
}

func (e *Exchange) nextMeta() domain.EventMeta {
	return domain.EventMeta{
		Sequence:   e.seq.Add(1),
		OccurredAt: time.Now(),
	}
}

func (e *Exchange) emit(ev domain.Event) {
	e.sink.Publish(ev)
}

// checkRequest validates the request shape before any engine state is
// touched.
func checkRequest(req *PlaceOrderRequest) error {
	if req.AccountID == "" {
		return &domain.ValidationError{Message: "account_id is required"}
	}
	if !domain.ValidSymbol(req.Instrument) {
		return &domain.ValidationError{Message: "instrument must be 1-6 uppercase letters"}
	}
	if req.Side != domain.SideBuy && req.Side != domain.SideSell {
		return &domain.ValidationError{Message: "side must be buy or sell"}
	}

	switch req.Type {
	case domain.OrderTypeLimit:
		if err := domain.CheckPrice(req.Price); err != nil {
			return err
		}
	case domain.OrderTypeMarket:
		if !req.Price.IsZero() {
			return &domain.ValidationError{Message: "market orders must not carry a price"}
		}
		if req.ExpiresAt != nil {
			return &domain.ValidationError{Message: "market orders cannot expire"}
		}
	default:
		return &domain.ValidationError{Message: "type must be market or limit"}
	}

	if err := domain.CheckQuantity(req.Quantity); err != nil {
		return err
	}
	if req.ExpiresAt != nil && !req.ExpiresAt.After(time.Now()) {
		return &domain.ValidationError{Message: "expires_at must be in the future"}
	}
	return nil
}
