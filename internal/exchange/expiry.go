package exchange

import (
	"context"
	"errors"
	"log/slog"
	"sort"
	"sync"
	"time"

	"github.com/dmorandi/tradecore/internal/domain"
)

// ExpirySweeper tracks resting orders that carry an expiration and
// cancels them once due. Orders are kept sorted by deadline so each
// sweep only inspects the front of the slice. Cancellation goes
// through the exchange's standard cancel path, which re-checks the
// order's status under the book lock, so entries for orders that
// filled or were canceled in the meantime are skipped harmlessly.
type ExpirySweeper struct {
	ex     *Exchange
	mu     sync.Mutex
	active []*domain.Order // sorted by ExpiresAt ascending
}

func newExpirySweeper(ex *Exchange) *ExpirySweeper {
	return &ExpirySweeper{
		ex:     ex,
		active: make([]*domain.Order, 0),
	}
}

// Add starts tracking a resting order. Orders without an expiration
// are ignored.
func (s *ExpirySweeper) Add(o *domain.Order) {
	if o.ExpiresAt == nil {
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	deadline := *o.ExpiresAt
	idx := sort.Search(len(s.active), func(i int) bool {
		return s.active[i].ExpiresAt.After(deadline)
	})
	s.active = append(s.active, nil)
	copy(s.active[idx+1:], s.active[idx:])
	s.active[idx] = o
}

// Remove stops tracking an order by id.
func (s *ExpirySweeper) Remove(orderID string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	for i, o := range s.active {
		if o.ID == orderID {
			s.active = append(s.active[:i], s.active[i+1:]...)
			return
		}
	}
}

// Start launches a goroutine that sweeps due orders at the given
// interval until ctx is cancelled.
func (s *ExpirySweeper) Start(ctx context.Context, interval time.Duration) {
	go func() {
		ticker := time.NewTicker(interval)
		defer ticker.Stop()

		for {
			select {
			case <-ctx.Done():
				return
			case now := <-ticker.C:
				s.Sweep(now)
			}
		}
	}()
}

// Sweep cancels every tracked order whose expiration is at or before
// now.
func (s *ExpirySweeper) Sweep(now time.Time) {
	s.mu.Lock()
	var due []*domain.Order
	cut := 0
	for cut < len(s.active) {
		o := s.active[cut]
		if o.ExpiresAt.After(now) {
			break
		}
		due = append(due, o)
		cut++
	}
	if cut > 0 {
		s.active = s.active[cut:]
	}
	s.mu.Unlock()

	for _, o := range due {
		if _, err := s.ex.CancelOrder(o.ID); err != nil {
			if errors.Is(err, domain.ErrAlreadyTerminal) {
				continue
			}
			s.ex.log.Warn("expiry cancel failed",
				slog.String("order_id", o.ID),
				slog.Any("error", err),
			)
			continue
		}
		s.ex.log.Debug("order expired",
			slog.String("order_id", o.ID),
			slog.String("instrument", o.Instrument),
		)
	}
}

// ActiveCount returns the number of orders currently tracked.
func (s *ExpirySweeper) ActiveCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.active)
}
