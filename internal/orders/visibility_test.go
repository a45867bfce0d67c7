package orders_test

import (
	"context"
	"errors"
	"testing"

	"github.com/ariefcatur/go-marketplace-orders/internal/apperr"
	"github.com/ariefcatur/go-marketplace-orders/internal/orders"
)

func complete(t *testing.T, f *fixture, id string) {
	t.Helper()
	if _, err := f.svc.UpdateStatus(context.Background(), id, "s1", orders.StatusCompleted, ""); err != nil {
		t.Fatalf("complete %s: %v", id, err)
	}
}

func TestArchiveOrder(t *testing.T) {
	f := newFixture(t, orders.Options{}, product("a", "s1", 1000, 10))
	o := placeOrder(t, f, 1)

	if _, err := f.svc.ArchiveOrder(context.Background(), o.ID, "s1", true); !errors.Is(err, apperr.ErrInvalidState) {
		t.Fatalf("expected open order to be rejected, got %v", err)
	}
	complete(t, f, o.ID)
	if _, err := f.svc.ArchiveOrder(context.Background(), o.ID, "s2", true); !errors.Is(err, apperr.ErrUnauthorized) {
		t.Fatalf("expected unauthorized, got %v", err)
	}
	got, err := f.svc.ArchiveOrder(context.Background(), o.ID, "s1", true)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !got.Archived {
		t.Fatalf("expected archived order")
	}

	archived := true
	res, _ := f.svc.ListSellerOrders(context.Background(), "s1", orders.SellerFilter{Archived: &archived})
	if len(res.Orders) != 1 {
		t.Fatalf("expected archived order listed, got %d", len(res.Orders))
	}
	if _, err := f.svc.ArchiveOrder(context.Background(), o.ID, "s1", false); err != nil {
		t.Fatalf("unarchive: %v", err)
	}
}

func TestBulkArchiveAllOrNothing(t *testing.T) {
	f := newFixture(t, orders.Options{}, product("a", "s1", 1000, 10), product("x", "s2", 1000, 10))
	a := placeOrder(t, f, 1)
	b := placeOrder(t, f, 1)
	open := placeOrder(t, f, 1)
	complete(t, f, a.ID)
	complete(t, f, b.ID)

	_, err := f.svc.BulkArchive(context.Background(), []string{a.ID, b.ID, open.ID}, "s1", true)
	if !errors.Is(err, apperr.ErrInvalidState) {
		t.Fatalf("expected invalid state, got %v", err)
	}
	for _, id := range []string{a.ID, b.ID} {
		if got, _ := f.store.Get(context.Background(), id); got.Archived {
			t.Fatalf("expected %s left unarchived", id)
		}
	}

	if _, err := f.svc.BulkArchive(context.Background(), []string{a.ID, "ghost"}, "s1", true); !errors.Is(err, apperr.ErrNotFound) {
		t.Fatalf("expected not found, got %v", err)
	}

	foreign, err := f.svc.CreateOrder(context.Background(), cart(line("x", 1)))
	if err != nil {
		t.Fatalf("checkout: %v", err)
	}
	if _, err := f.svc.BulkArchive(context.Background(), []string{a.ID, foreign[0].ID}, "s1", true); !errors.Is(err, apperr.ErrUnauthorized) {
		t.Fatalf("expected unauthorized, got %v", err)
	}

	if _, err := f.svc.BulkArchive(context.Background(), nil, "s1", true); !errors.Is(err, apperr.ErrValidation) {
		t.Fatalf("expected validation error for empty batch, got %v", err)
	}

	n, err := f.svc.BulkArchive(context.Background(), []string{a.ID, b.ID, a.ID}, "s1", true)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if n != 2 {
		t.Fatalf("expected 2 archived, got %d", n)
	}
}

func TestStrictBatchWritesTargetChangedAfterCheck(t *testing.T) {
	f := newFixture(t, orders.Options{}, product("a", "s1", 1000, 10))
	o := placeOrder(t, f, 1)
	complete(t, f, o.ID)

	batch := orders.StrictBatch{
		Load: func(ctx context.Context, ids []string) ([]orders.Order, error) {
			found, err := f.store.ListByIDs(ctx, ids)
			// the order is reopened by a concurrent writer right after it was read
			if _, uerr := f.svc.UpdateStatus(ctx, o.ID, "s1", orders.StatusPreparing, ""); uerr != nil {
				t.Fatalf("reopen: %v", uerr)
			}
			return found, err
		},
		Check: func(o orders.Order) error {
			if !o.Status.Terminal() {
				return apperr.InvalidState("not terminal")
			}
			return nil
		},
		Write: func(ctx context.Context, ids []string) (int64, error) {
			return f.store.SetArchived(ctx, "s1", ids, true)
		},
	}
	n, err := batch.Run(context.Background(), []string{o.ID})
	if err != nil || n != 1 {
		t.Fatalf("expected the stale check to let the write through, got %d, %v", n, err)
	}
	got, _ := f.store.Get(context.Background(), o.ID)
	if !got.Archived || got.Status != orders.StatusPreparing {
		t.Fatalf("expected archived preparing order, got archived=%v status=%s", got.Archived, got.Status)
	}
}

func TestHideForBuyer(t *testing.T) {
	f := newFixture(t, orders.Options{}, product("a", "s1", 1000, 10))
	o := placeOrder(t, f, 1)

	if err := f.svc.HideForBuyer(context.Background(), o.ID, "b1"); !errors.Is(err, apperr.ErrInvalidState) {
		t.Fatalf("expected open order to be rejected, got %v", err)
	}
	if _, err := f.svc.CancelByCustomer(context.Background(), o.ID, "b1", ""); err != nil {
		t.Fatalf("cancel: %v", err)
	}
	if err := f.svc.HideForBuyer(context.Background(), o.ID, "b2"); !errors.Is(err, apperr.ErrUnauthorized) {
		t.Fatalf("expected unauthorized, got %v", err)
	}
	if err := f.svc.HideForBuyer(context.Background(), o.ID, "b1"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	mine, _ := f.svc.ListMyOrders(context.Background(), "b1")
	if len(mine) != 0 {
		t.Fatalf("expected hidden order gone from buyer list, got %d", len(mine))
	}
	// the seller still sees it
	res, _ := f.svc.ListSellerOrders(context.Background(), "s1", orders.SellerFilter{})
	if len(res.Orders) != 1 {
		t.Fatalf("expected seller to keep the order, got %d", len(res.Orders))
	}
}

func TestBulkHideForBuyerBestEffort(t *testing.T) {
	f := newFixture(t, orders.Options{}, product("a", "s1", 1000, 10))
	done := placeOrder(t, f, 1)
	cancelled := placeOrder(t, f, 1)
	open := placeOrder(t, f, 1)
	complete(t, f, done.ID)
	if _, err := f.svc.CancelByCustomer(context.Background(), cancelled.ID, "b1", ""); err != nil {
		t.Fatalf("cancel: %v", err)
	}

	ids := []string{done.ID, cancelled.ID, open.ID, "ghost"}
	n, err := f.svc.BulkHideForBuyer(context.Background(), ids, "b1")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if n != 2 {
		t.Fatalf("expected 2 hidden, got %d", n)
	}

	n, err = f.svc.BulkHideForBuyer(context.Background(), ids, "b1")
	if err != nil || n != 0 {
		t.Fatalf("expected nothing left to hide, got %d, %v", n, err)
	}
	if n, _ := f.svc.BulkHideForBuyer(context.Background(), []string{open.ID}, "b2"); n != 0 {
		t.Fatalf("expected foreign buyer to hide nothing, got %d", n)
	}

	mine, _ := f.svc.ListMyOrders(context.Background(), "b1")
	if len(mine) != 1 || mine[0].ID != open.ID {
		t.Fatalf("expected only the open order visible, got %+v", mine)
	}
}
