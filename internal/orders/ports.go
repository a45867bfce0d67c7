package orders

import (
	"context"

	"github.com/ariefcatur/go-marketplace-orders/internal/auth"
)

// Store persists order aggregates.
type Store interface {
	// CreateOrders inserts every order or none.
	CreateOrders(ctx context.Context, orders []Order) error
	Get(ctx context.Context, orderID string) (Order, error)

	// Update loads one order, applies fn while holding that order's lock and persists the
	// result. Nothing is written when fn returns an error.
	Update(ctx context.Context, orderID string, fn func(*Order) error) (Order, error)

	// ListByBuyer returns the buyer's orders that are not hidden, newest first.
	ListByBuyer(ctx context.Context, buyerID string) ([]Order, error)
	// ListBySeller returns the seller's orders, newest first. A nil archived matches both.
	ListBySeller(ctx context.Context, sellerID string, archived *bool) ([]Order, error)
	ListByIDs(ctx context.Context, ids []string) ([]Order, error)

	// SetArchived flips the archive flag on the seller's orders among ids.
	SetArchived(ctx context.Context, sellerID string, ids []string, archived bool) (int64, error)
	// HideForBuyer hides the buyer's orders among ids whose status is in allowed.
	HideForBuyer(ctx context.Context, buyerID string, ids []string, allowed []Status) (int64, error)
	// CancelOpen forces every order where the account is the given party, and whose status
	// is in open, to cancelled with entry appended to its history.
	CancelOpen(ctx context.Context, party auth.Role, accountID string, open []Status, entry HistoryEntry) (int64, error)
}

// Notifier delivers seller-addressed events. Delivery is fire-and-forget from the caller's
// point of view.
type Notifier interface {
	NewOrder(ctx context.Context, ev NewOrderEvent) error
	LowStock(ctx context.Context, ev LowStockEvent) error
}

// FileStore keeps payment-proof artifacts.
type FileStore interface {
	Save(ctx context.Context, filename string, data []byte) (ref string, err error)
	Delete(ctx context.Context, ref string) error
}

// Recorder receives domain counters.
type Recorder interface {
	OrderCreated(market string)
	StockRejected()
	NotificationFailed(kind string)
}

type nopRecorder struct{}

func (nopRecorder) OrderCreated(string)       {}
func (nopRecorder) StockRejected()            {}
func (nopRecorder) NotificationFailed(string) {}
