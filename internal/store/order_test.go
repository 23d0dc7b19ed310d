package store

import (
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/shopspring/decimal"

	"github.com/dmorandi/tradecore/internal/domain"
)

func newTestOrder(id, accountID string, submittedAt time.Time) *domain.Order {
	return &domain.Order{
		ID:          id,
		Instrument:  "AAPL",
		Side:        domain.SideBuy,
		Type:        domain.OrderTypeLimit,
		Price:       decimal.NewFromInt(150),
		Quantity:    decimal.NewFromInt(10),
		Status:      domain.OrderStatusNew,
		AccountID:   accountID,
		SubmittedAt: submittedAt,
	}
}

func TestOrderStore_Create_and_Get(t *testing.T) {
	s := NewOrderStore()
	o := newTestOrder("order-1", "acct-1", time.Now())

	s.Create(o)

	got, err := s.Get("order-1")
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	if got.ID != "order-1" {
		t.Fatalf("expected order-1, got %s", got.ID)
	}
	if got.AccountID != "acct-1" {
		t.Fatalf("expected acct-1, got %s", got.AccountID)
	}
}

func TestOrderStore_Get_NotFound(t *testing.T) {
	s := NewOrderStore()

	_, err := s.Get("no-such-order")
	if err != domain.ErrUnknownOrder {
		t.Fatalf("expected ErrUnknownOrder, got %v", err)
	}
}

func TestOrderStore_ListByAccount_ReverseChronological(t *testing.T) {
	s := NewOrderStore()
	base := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)

	for i := 0; i < 5; i++ {
		o := newTestOrder(
			fmt.Sprintf("order-%d", i),
			"acct-1",
			base.Add(time.Duration(i)*time.Minute),
		)
		s.Create(o)
	}

	orders, total := s.ListByAccount("acct-1", nil, 1, 10)
	if total != 5 {
		t.Fatalf("expected total 5, got %d", total)
	}
	if len(orders) != 5 {
		t.Fatalf("expected 5 orders, got %d", len(orders))
	}

	// Should be newest first.
	for i := 0; i < len(orders)-1; i++ {
		if !orders[i].SubmittedAt.After(orders[i+1].SubmittedAt) {
			t.Fatalf("orders not in reverse chronological order at index %d", i)
		}
	}
}

func TestOrderStore_ListByAccount_StatusFilter(t *testing.T) {
	s := NewOrderStore()
	base := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)

	for i := 0; i < 4; i++ {
		o := newTestOrder(fmt.Sprintf("order-%d", i), "acct-1", base.Add(time.Duration(i)*time.Second))
		if i%2 == 0 {
			o.Status = domain.OrderStatusFilled
		}
		s.Create(o)
	}

	filled := domain.OrderStatusFilled
	orders, total := s.ListByAccount("acct-1", &filled, 1, 10)
	if total != 2 {
		t.Fatalf("expected total 2, got %d", total)
	}
	for _, o := range orders {
		if o.Status != domain.OrderStatusFilled {
			t.Fatalf("expected only filled orders, got %s", o.Status)
		}
	}
}

func TestOrderStore_ListByAccount_Pagination(t *testing.T) {
	s := NewOrderStore()
	base := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)

	for i := 0; i < 5; i++ {
		s.Create(newTestOrder(fmt.Sprintf("order-%d", i), "acct-1", base.Add(time.Duration(i)*time.Second)))
	}

	page1, total := s.ListByAccount("acct-1", nil, 1, 2)
	if total != 5 || len(page1) != 2 {
		t.Fatalf("page 1: expected 2 of 5, got %d of %d", len(page1), total)
	}

	page3, _ := s.ListByAccount("acct-1", nil, 3, 2)
	if len(page3) != 1 {
		t.Fatalf("page 3: expected 1 order, got %d", len(page3))
	}

	beyond, _ := s.ListByAccount("acct-1", nil, 4, 2)
	if len(beyond) != 0 {
		t.Fatalf("page 4: expected 0 orders, got %d", len(beyond))
	}
}

func TestOrderStore_ListByAccount_UnknownAccount(t *testing.T) {
	s := NewOrderStore()

	orders, total := s.ListByAccount("nobody", nil, 1, 10)
	if total != 0 || len(orders) != 0 {
		t.Fatalf("expected empty result, got %d of %d", len(orders), total)
	}
}

func TestOrderStore_ConcurrentAccess(t *testing.T) {
	s := NewOrderStore()
	var wg sync.WaitGroup

	for i := 0; i < 100; i++ {
		wg.Add(1)
		go func(n int) {
			defer wg.Done()
			s.Create(newTestOrder(fmt.Sprintf("order-%d", n), "acct-1", time.Now()))
		}(i)
	}
	for i := 0; i < 100; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			s.ListByAccount("acct-1", nil, 1, 10)
		}()
	}
	wg.Wait()

	_, total := s.ListByAccount("acct-1", nil, 1, 1)
	if total != 100 {
		t.Fatalf("expected 100 orders, got %d", total)
	}
}
