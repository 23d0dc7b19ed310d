package store

import (
	"sync"

	"github.com/dmorandi/tradecore/internal/domain"
)

// AccountStore is a thread-safe in-memory store for accounts.
type AccountStore struct {
	mu       sync.RWMutex
	accounts map[string]*domain.Account
}

// NewAccountStore creates an empty AccountStore.
func NewAccountStore() *AccountStore {
	return &AccountStore{
		accounts: make(map[string]*domain.Account),
	}
}

// Create adds an account to the store. It returns
// domain.ErrAccountExists if the id is already taken.
func (s *AccountStore) Create(a *domain.Account) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.accounts[a.ID]; ok {
		return domain.ErrAccountExists
	}
	s.accounts[a.ID] = a
	return nil
}

// Get retrieves an account by ID. It returns
// domain.ErrAccountNotFound if the account does not exist.
func (s *AccountStore) Get(id string) (*domain.Account, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	a, ok := s.accounts[id]
	if !ok {
		return nil, domain.ErrAccountNotFound
	}
	return a, nil
}

// Exists returns true if an account with the given ID exists.
func (s *AccountStore) Exists(id string) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()

	_, ok := s.accounts[id]
	return ok
}

// List returns all accounts in unspecified order.
func (s *AccountStore) List() []*domain.Account {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]*domain.Account, 0, len(s.accounts))
	for _, a := range s.accounts {
		out = append(out, a)
	}
	return out
}
