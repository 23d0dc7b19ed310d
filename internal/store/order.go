package store

import (
	"sync"

	"github.com/dmorandi/tradecore/internal/domain"
)

// OrderStore is a thread-safe in-memory store for orders,
// with a primary index by order id and a secondary index by account id.
type OrderStore struct {
	mu            sync.RWMutex
	orders        map[string]*domain.Order
	accountOrders map[string][]*domain.Order // account id → orders (append-only)
}

// NewOrderStore creates an empty OrderStore.
func NewOrderStore() *OrderStore {
	return &OrderStore{
		orders:        make(map[string]*domain.Order),
		accountOrders: make(map[string][]*domain.Order),
	}
}

// Create adds an order to the store and appends it to the
// account's secondary index.
func (s *OrderStore) Create(o *domain.Order) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.orders[o.ID] = o
	s.accountOrders[o.AccountID] = append(s.accountOrders[o.AccountID], o)
}

// Get retrieves an order by ID. It returns
// domain.ErrUnknownOrder if the order does not exist.
func (s *OrderStore) Get(id string) (*domain.Order, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	o, ok := s.orders[id]
	if !ok {
		return nil, domain.ErrUnknownOrder
	}
	return o, nil
}

// ListByAccount returns orders for an account in reverse chronological
// order (newest first). If status is non-nil, only orders matching that
// status are included. Pagination is 1-based. Returns the matching
// orders for the requested page and the total count of matching orders
// (before pagination).
func (s *OrderStore) ListByAccount(accountID string, status *domain.OrderStatus, page, limit int) ([]*domain.Order, int) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	all := s.accountOrders[accountID]

	// Filter by status if provided, collecting in reverse order.
	filtered := make([]*domain.Order, 0)
	for i := len(all) - 1; i >= 0; i-- {
		if status != nil && all[i].Status != *status {
			continue
		}
		filtered = append(filtered, all[i])
	}

	total := len(filtered)

	// Apply pagination.
	start := (page - 1) * limit
	if start >= total {
		return []*domain.Order{}, total
	}
	end := start + limit
	if end > total {
		end = total
	}

	return filtered[start:end], total
}
