package risk

import (
	"github.com/shopspring/decimal"

	"github.com/dmorandi/tradecore/internal/domain"
	"github.com/dmorandi/tradecore/internal/store"
)

// Limits holds the engine's pre-trade limits. A zero value disables
// the corresponding check.
type Limits struct {
	MaxOrderValue   decimal.Decimal
	MaxPositionSize decimal.Decimal
}

// Engine owns the accounts and runs all pre-trade checks and
// settlement. Validation is read-only; only ApplyTrade mutates cash
// and positions.
type Engine struct {
	accounts *store.AccountStore
	limits   Limits
}

// NewEngine creates a risk engine over the given account store.
func NewEngine(accounts *store.AccountStore, limits Limits) *Engine {
	return &Engine{
		accounts: accounts,
		limits:   limits,
	}
}

// CreateAccount registers a new account with the given starting cash.
func (e *Engine) CreateAccount(id string, startingCash decimal.Decimal) (*domain.Account, error) {
	if id == "" {
		return nil, &domain.ValidationError{Message: "account id is required"}
	}
	if startingCash.IsNegative() {
		return nil, &domain.ValidationError{Message: "starting cash must be >= 0"}
	}

	a := domain.NewAccount(id, startingCash)
	if err := e.accounts.Create(a); err != nil {
		return nil, err
	}
	return a, nil
}

// Account retrieves an account by id.
func (e *Engine) Account(id string) (*domain.Account, error) {
	return e.accounts.Get(id)
}

// Accounts returns all registered accounts.
func (e *Engine) Accounts() []*domain.Account {
	return e.accounts.List()
}

// Validate runs the pre-trade checks for an order against the given
// reference price. Checks run in a fixed sequence and the first
// failure is returned: account existence, max order value, available
// cash (buys only), max position size. The position check assumes the
// worst case, a full fill. Validate mutates nothing.
func (e *Engine) Validate(o *domain.Order, refPrice decimal.Decimal) error {
	acct, err := e.accounts.Get(o.AccountID)
	if err != nil {
		return err
	}

	cost := domain.Notional(refPrice, o.Quantity)
	if e.limits.MaxOrderValue.IsPositive() && cost.GreaterThan(e.limits.MaxOrderValue) {
		return domain.ErrOrderValueExceeded
	}

	acct.Mu.Lock()
	defer acct.Mu.Unlock()

	if o.Side == domain.SideBuy && cost.GreaterThan(acct.Cash) {
		return domain.ErrInsufficientFunds
	}

	if e.limits.MaxPositionSize.IsPositive() {
		delta := o.Quantity
		if o.Side == domain.SideSell {
			delta = delta.Neg()
		}
		resulting := acct.PositionQuantity(o.Instrument).Add(delta).Abs()
		if resulting.GreaterThan(e.limits.MaxPositionSize) {
			return domain.ErrPositionLimitExceeded
		}
	}

	return nil
}

// Settlement is the account state right after one side of a trade was
// applied. Position is a detached value copy.
type Settlement struct {
	AccountID  string
	Instrument string
	Position   domain.Position
	Cash       decimal.Decimal
	Realized   decimal.Decimal
}

// ApplyTrade settles one side of a trade: buys pay the notional and
// receive quantity, sells the reverse. The position's basis, realized
// PnL, and the account's cash are updated under the account's lock.
// An unknown account is reported for the caller to escalate, since at
// this point the book has already mutated.
func (e *Engine) ApplyTrade(accountID string, t *domain.Trade, side domain.Side) (Settlement, error) {
	acct, err := e.accounts.Get(accountID)
	if err != nil {
		return Settlement{}, err
	}

	acct.Mu.Lock()
	defer acct.Mu.Unlock()

	notional := t.Notional()
	if side == domain.SideBuy {
		acct.Cash = acct.Cash.Sub(notional)
	} else {
		acct.Cash = acct.Cash.Add(notional)
	}

	pos := acct.PositionFor(t.Instrument)
	realized := pos.ApplyFill(side, t.Quantity, t.Price)

	return Settlement{
		AccountID:  accountID,
		Instrument: t.Instrument,
		Position:   *pos,
		Cash:       acct.Cash,
		Realized:   realized,
	}, nil
}

// UnrealizedPnL computes the account's unrealized PnL over the given
// mark prices. Positions without a mark contribute zero.
func (e *Engine) UnrealizedPnL(accountID string, marks map[string]decimal.Decimal) (decimal.Decimal, error) {
	acct, err := e.accounts.Get(accountID)
	if err != nil {
		return decimal.Decimal{}, err
	}

	acct.Mu.Lock()
	defer acct.Mu.Unlock()
	return acct.UnrealizedPnL(marks), nil
}
