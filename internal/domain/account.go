package domain

import (
	"sync"
	"time"

	"github.com/shopspring/decimal"
)

// Position represents an account's signed exposure to one instrument.
// Quantity > 0 is long, < 0 is short. AvgEntryPrice is the
// volume-weighted basis of the open quantity and is zero when flat.
type Position struct {
	Instrument    string
	Quantity      decimal.Decimal
	AvgEntryPrice decimal.Decimal
	RealizedPnL   decimal.Decimal
}

// ApplyFill mutates the position for a fill of quantity qty at price on
// the given side and returns the realized PnL delta. Increasing the
// position reweights the basis; reducing realizes PnL against it; a
// fill that crosses through zero flips the position with the basis
// reset to the fill price.
func (p *Position) ApplyFill(side Side, qty, price decimal.Decimal) decimal.Decimal {
	delta := qty
	if side == SideSell {
		delta = qty.Neg()
	}
	prev := p.Quantity
	next := prev.Add(delta)
	realized := decimal.Zero

	if prev.IsZero() || prev.Sign() == delta.Sign() {
		// Opening or increasing: basis is the weighted average of the
		// old basis and the fill price.
		weighted := p.AvgEntryPrice.Mul(prev.Abs()).Add(price.Mul(delta.Abs()))
		p.AvgEntryPrice = weighted.Div(next.Abs())
	} else {
		closed := decimal.Min(prev.Abs(), delta.Abs())
		perUnit := price.Sub(p.AvgEntryPrice)
		if prev.Sign() < 0 {
			perUnit = perUnit.Neg()
		}
		realized = perUnit.Mul(closed)
		p.RealizedPnL = p.RealizedPnL.Add(realized)

		switch {
		case next.IsZero():
			p.AvgEntryPrice = decimal.Zero
		case next.Sign() != prev.Sign():
			p.AvgEntryPrice = price
		}
	}

	p.Quantity = next
	return realized
}

// UnrealizedAt returns the position's unrealized PnL against the given
// mark price.
func (p *Position) UnrealizedAt(mark decimal.Decimal) decimal.Decimal {
	return mark.Sub(p.AvgEntryPrice).Mul(p.Quantity)
}

// Account represents a registered trading participant.
type Account struct {
	ID         string
	Cash       decimal.Decimal
	Positions  map[string]*Position // instrument → position
	OpenOrders map[string]struct{}  // resting order ids
	CreatedAt  time.Time
	Mu         sync.Mutex // per-account lock for balance and position mutations
}

// NewAccount creates an account with the given starting cash.
func NewAccount(id string, cash decimal.Decimal) *Account {
	return &Account{
		ID:         id,
		Cash:       cash,
		Positions:  make(map[string]*Position),
		OpenOrders: make(map[string]struct{}),
		CreatedAt:  time.Now(),
	}
}

// PositionFor returns the account's position in the instrument,
// creating a flat one if absent. Callers must hold Mu.
func (a *Account) PositionFor(instrument string) *Position {
	p, ok := a.Positions[instrument]
	if !ok {
		p = &Position{Instrument: instrument}
		a.Positions[instrument] = p
	}
	return p
}

// PositionQuantity returns the signed quantity held in the instrument,
// zero when no position exists. Callers must hold Mu.
func (a *Account) PositionQuantity(instrument string) decimal.Decimal {
	p, ok := a.Positions[instrument]
	if !ok {
		return decimal.Zero
	}
	return p.Quantity
}

// UnrealizedPnL sums unrealized PnL across positions using the given
// mark prices. Instruments without a mark contribute zero. Callers
// must hold Mu.
func (a *Account) UnrealizedPnL(marks map[string]decimal.Decimal) decimal.Decimal {
	total := decimal.Zero
	for instrument, p := range a.Positions {
		mark, ok := marks[instrument]
		if !ok {
			continue
		}
		total = total.Add(p.UnrealizedAt(mark))
	}
	return total
}
