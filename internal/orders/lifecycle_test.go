package orders_test

import (
	"context"
	"errors"
	"strings"
	"sync"
	"sync/atomic"
	"testing"

	"github.com/ariefcatur/go-marketplace-orders/internal/apperr"
	"github.com/ariefcatur/go-marketplace-orders/internal/auth"
	"github.com/ariefcatur/go-marketplace-orders/internal/memstore"
	"github.com/ariefcatur/go-marketplace-orders/internal/orders"
)

func TestUpdateStatusLenient(t *testing.T) {
	f := newFixture(t, orders.Options{}, product("a", "s1", 1000, 10))
	o := placeOrder(t, f, 1)

	got, err := f.svc.UpdateStatus(context.Background(), o.ID, "s1", orders.StatusCompleted, "")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got.Status != orders.StatusCompleted || len(got.History) != 2 {
		t.Fatalf("expected completed with 2 history entries, got %s %d", got.Status, len(got.History))
	}
	if got.History[1].Note != "Status updated to completed" {
		t.Fatalf("unexpected default note %q", got.History[1].Note)
	}

	// the lenient policy even allows leaving a terminal state
	got, err = f.svc.UpdateStatus(context.Background(), o.ID, "s1", orders.StatusPending, "reopened")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got.Status != orders.StatusPending || got.History[2].Note != "reopened" {
		t.Fatalf("expected reopened order, got %+v", got)
	}
}

func TestUpdateStatusStrict(t *testing.T) {
	f := newFixture(t, orders.Options{StrictTransitions: true}, product("a", "s1", 1000, 10))
	o := placeOrder(t, f, 1)

	if _, err := f.svc.UpdateStatus(context.Background(), o.ID, "s1", orders.StatusCompleted, ""); !errors.Is(err, apperr.ErrInvalidState) {
		t.Fatalf("expected invalid state for pending->completed, got %v", err)
	}
	for _, next := range []orders.Status{orders.StatusConfirmed, orders.StatusPreparing, orders.StatusReady, orders.StatusCompleted} {
		if _, err := f.svc.UpdateStatus(context.Background(), o.ID, "s1", next, ""); err != nil {
			t.Fatalf("%s: unexpected error: %v", next, err)
		}
	}
	if _, err := f.svc.UpdateStatus(context.Background(), o.ID, "s1", orders.StatusPending, ""); !errors.Is(err, apperr.ErrInvalidState) {
		t.Fatalf("expected terminal order to stay terminal, got %v", err)
	}
	got, _ := f.store.Get(context.Background(), o.ID)
	if len(got.History) != 5 {
		t.Fatalf("expected rejected updates to leave history alone, got %d entries", len(got.History))
	}
}

func TestUpdateStatusRejects(t *testing.T) {
	f := newFixture(t, orders.Options{}, product("a", "s1", 1000, 10))
	o := placeOrder(t, f, 1)

	if _, err := f.svc.UpdateStatus(context.Background(), o.ID, "s2", orders.StatusConfirmed, ""); !errors.Is(err, apperr.ErrUnauthorized) {
		t.Fatalf("expected unauthorized, got %v", err)
	}
	if _, err := f.svc.UpdateStatus(context.Background(), o.ID, "s1", "shipped", ""); !errors.Is(err, apperr.ErrValidation) {
		t.Fatalf("expected validation error, got %v", err)
	}
	if _, err := f.svc.UpdateStatus(context.Background(), "missing", "s1", orders.StatusConfirmed, ""); !errors.Is(err, apperr.ErrNotFound) {
		t.Fatalf("expected not found, got %v", err)
	}
}

func TestVerifyPayment(t *testing.T) {
	f := newFixture(t, orders.Options{}, product("a", "s1", 1000, 10))
	o := placeOrder(t, f, 1)

	got, err := f.svc.VerifyPayment(context.Background(), o.ID, "s1")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !got.PaymentVerified || got.Status != orders.StatusPreparing {
		t.Fatalf("expected verified preparing order, got %+v", got)
	}
	last := got.History[len(got.History)-1]
	if last.Note != "Payment verified, order is being prepared" {
		t.Fatalf("unexpected note %q", last.Note)
	}
	if _, err := f.svc.VerifyPayment(context.Background(), o.ID, "s9"); !errors.Is(err, apperr.ErrUnauthorized) {
		t.Fatalf("expected unauthorized, got %v", err)
	}
}

func TestVerifyPaymentStrictRejectsTerminal(t *testing.T) {
	f := newFixture(t, orders.Options{StrictTransitions: true}, product("a", "s1", 1000, 10))
	o := placeOrder(t, f, 1)
	if _, err := f.svc.CancelByCustomer(context.Background(), o.ID, "b1", ""); err != nil {
		t.Fatalf("cancel: %v", err)
	}
	if _, err := f.svc.VerifyPayment(context.Background(), o.ID, "s1"); !errors.Is(err, apperr.ErrInvalidState) {
		t.Fatalf("expected invalid state, got %v", err)
	}
}

func TestCancelByCustomerRestoresStockOnce(t *testing.T) {
	for _, from := range []orders.Status{orders.StatusPending, orders.StatusConfirmed} {
		t.Run(string(from), func(t *testing.T) {
			f := newFixture(t, orders.Options{}, product("a", "s1", 1000, 10))
			o := placeOrder(t, f, 3)
			if got := f.stock(t, "a"); got != 7 {
				t.Fatalf("expected 7 after checkout, got %d", got)
			}
			if from != orders.StatusPending {
				if _, err := f.svc.UpdateStatus(context.Background(), o.ID, "s1", from, ""); err != nil {
					t.Fatalf("update: %v", err)
				}
			}

			got, err := f.svc.CancelByCustomer(context.Background(), o.ID, "b1", "changed my mind")
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if got.Status != orders.StatusCancelled {
				t.Fatalf("expected cancelled, got %s", got.Status)
			}
			if note := got.History[len(got.History)-1].Note; note != "Cancelled by customer. Reason: changed my mind" {
				t.Fatalf("unexpected note %q", note)
			}
			if got := f.stock(t, "a"); got != 10 {
				t.Fatalf("expected stock back at 10, got %d", got)
			}

			_, err = f.svc.CancelByCustomer(context.Background(), o.ID, "b1", "")
			if !errors.Is(err, apperr.ErrInvalidState) || !strings.Contains(err.Error(), "status: cancelled") {
				t.Fatalf("expected invalid state naming the status, got %v", err)
			}
			if got := f.stock(t, "a"); got != 10 {
				t.Fatalf("expected no second restore, got %d", got)
			}
		})
	}
}

// cancelAfterUpdate cancels the caller's context right after the order write commits.
type cancelAfterUpdate struct {
	*memstore.Orders
	cancel context.CancelFunc
}

func (s *cancelAfterUpdate) Update(ctx context.Context, orderID string, fn func(*orders.Order) error) (orders.Order, error) {
	o, err := s.Orders.Update(ctx, orderID, fn)
	s.cancel()
	return o, err
}

func TestCancelByCustomerRestoresAfterCallerCancel(t *testing.T) {
	f := newFixture(t, orders.Options{}, product("a", "s1", 1000, 10))
	o := placeOrder(t, f, 3)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	f.svc.Store = &cancelAfterUpdate{Orders: f.store, cancel: cancel}
	f.svc.Ledger = &cancellingLedger{Products: f.products, cancel: cancel}

	if _, err := f.svc.CancelByCustomer(ctx, o.ID, "b1", ""); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got := f.stock(t, "a"); got != 10 {
		t.Fatalf("expected stock back at 10, got %d", got)
	}
}

func TestCancelByCustomerRejects(t *testing.T) {
	f := newFixture(t, orders.Options{}, product("a", "s1", 1000, 10))
	o := placeOrder(t, f, 1)

	if _, err := f.svc.CancelByCustomer(context.Background(), o.ID, "b2", ""); !errors.Is(err, apperr.ErrUnauthorized) {
		t.Fatalf("expected unauthorized, got %v", err)
	}
	if _, err := f.svc.UpdateStatus(context.Background(), o.ID, "s1", orders.StatusPreparing, ""); err != nil {
		t.Fatalf("update: %v", err)
	}
	if _, err := f.svc.CancelByCustomer(context.Background(), o.ID, "b1", ""); !errors.Is(err, apperr.ErrInvalidState) {
		t.Fatalf("expected invalid state once preparing, got %v", err)
	}
	if got := f.stock(t, "a"); got != 9 {
		t.Fatalf("expected stock unchanged, got %d", got)
	}
}

func TestCancelByCustomerConcurrent(t *testing.T) {
	f := newFixture(t, orders.Options{}, product("a", "s1", 1000, 10))
	o := placeOrder(t, f, 4)

	var (
		wg sync.WaitGroup
		ok atomic.Int64
	)
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if _, err := f.svc.CancelByCustomer(context.Background(), o.ID, "b1", ""); err == nil {
				ok.Add(1)
			}
		}()
	}
	wg.Wait()

	if ok.Load() != 1 {
		t.Fatalf("expected exactly one successful cancel, got %d", ok.Load())
	}
	if got := f.stock(t, "a"); got != 10 {
		t.Fatalf("expected stock restored once to 10, got %d", got)
	}
}

func TestCancelForRemovedAccount(t *testing.T) {
	f := newFixture(t, orders.Options{}, product("a", "s1", 1000, 10))
	open := placeOrder(t, f, 1)
	done := placeOrder(t, f, 1)
	if _, err := f.svc.UpdateStatus(context.Background(), done.ID, "s1", orders.StatusCompleted, ""); err != nil {
		t.Fatalf("update: %v", err)
	}

	n, err := f.svc.CancelForRemovedAccount(context.Background(), "s1", auth.RoleSeller)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if n != 1 {
		t.Fatalf("expected 1 cancelled order, got %d", n)
	}
	got, _ := f.store.Get(context.Background(), open.ID)
	last := got.History[len(got.History)-1]
	if got.Status != orders.StatusCancelled || last.Note != "Order cancelled by system: seller account was removed" {
		t.Fatalf("unexpected cascaded order: %s %q", got.Status, last.Note)
	}
	if got, _ := f.store.Get(context.Background(), done.ID); got.Status != orders.StatusCompleted {
		t.Fatalf("expected completed order untouched, got %s", got.Status)
	}
	if got := f.stock(t, "a"); got != 8 {
		t.Fatalf("expected no stock restore on cascade, got %d", got)
	}

	if _, err := f.svc.CancelForRemovedAccount(context.Background(), "s1", auth.RoleAdmin); !errors.Is(err, apperr.ErrValidation) {
		t.Fatalf("expected validation error for admin party, got %v", err)
	}
}

func TestListSellerOrdersCounts(t *testing.T) {
	f := newFixture(t, orders.Options{}, product("a", "s1", 1000, 10))
	a := placeOrder(t, f, 1)
	placeOrder(t, f, 1)
	if _, err := f.svc.UpdateStatus(context.Background(), a.ID, "s1", orders.StatusCompleted, ""); err != nil {
		t.Fatalf("update: %v", err)
	}

	pending := orders.StatusPending
	res, err := f.svc.ListSellerOrders(context.Background(), "s1", orders.SellerFilter{Status: &pending})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(res.Orders) != 1 {
		t.Fatalf("expected 1 pending order, got %d", len(res.Orders))
	}
	if res.StatusCounts[orders.StatusPending] != 1 || res.StatusCounts[orders.StatusCompleted] != 1 || res.StatusCounts[orders.StatusReady] != 0 {
		t.Fatalf("unexpected counts %v", res.StatusCounts)
	}

	bad := orders.Status("lost")
	if _, err := f.svc.ListSellerOrders(context.Background(), "s1", orders.SellerFilter{Status: &bad}); !errors.Is(err, apperr.ErrValidation) {
		t.Fatalf("expected validation error, got %v", err)
	}
}
