package domain

import (
	"regexp"
	"sort"
	"sync"
)

// symbolPattern constrains instrument symbols to short uppercase tickers.
var symbolPattern = regexp.MustCompile(`^[A-Z]{1,6}$`)

// ValidSymbol reports whether s is a well-formed instrument symbol.
func ValidSymbol(s string) bool {
	return symbolPattern.MatchString(s)
}

// InstrumentRegistry tracks the instruments the exchange trades, in a
// thread-safe manner. Orders for unregistered instruments are rejected.
type InstrumentRegistry struct {
	mu          sync.RWMutex
	instruments map[string]bool
}

// NewInstrumentRegistry creates an empty InstrumentRegistry.
func NewInstrumentRegistry() *InstrumentRegistry {
	return &InstrumentRegistry{
		instruments: make(map[string]bool),
	}
}

// Register adds an instrument to the registry. It returns a
// ValidationError when the symbol is malformed.
func (r *InstrumentRegistry) Register(symbol string) error {
	if !ValidSymbol(symbol) {
		return &ValidationError{Message: "symbol must match " + symbolPattern.String()}
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	r.instruments[symbol] = true
	return nil
}

// Exists returns true if the instrument has been registered.
func (r *InstrumentRegistry) Exists(symbol string) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.instruments[symbol]
}

// List returns all registered instruments in lexical order.
func (r *InstrumentRegistry) List() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]string, 0, len(r.instruments))
	for s := range r.instruments {
		out = append(out, s)
	}
	sort.Strings(out)
	return out
}
