package orders

import (
	"context"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"

	"github.com/ariefcatur/go-marketplace-orders/internal/inventory"
)

var tracer = otel.Tracer("github.com/ariefcatur/go-marketplace-orders/internal/orders")

type Options struct {
	// RollbackOnFailure restores the decrements of earlier lines when a cart aborts part way.
	// Off reproduces the legacy behavior where those decrements survive.
	RollbackOnFailure bool
	// StrictTransitions enforces the (status, role) transition table on seller updates.
	// Off only checks enum membership.
	StrictTransitions bool
	DeliveryFeeCents  int64
}

type Service struct {
	Store    Store
	Ledger   inventory.Ledger
	Notifier Notifier
	Files    FileStore
	Metrics  Recorder
	Log      *slog.Logger
	Opts     Options

	Now   func() time.Time
	NewID func() string
}

func (s *Service) now() time.Time {
	if s.Now != nil {
		return s.Now()
	}
	return time.Now().UTC()
}

func (s *Service) newID() string {
	if s.NewID != nil {
		return s.NewID()
	}
	return uuid.NewString()
}

func (s *Service) log() *slog.Logger {
	if s.Log != nil {
		return s.Log
	}
	return slog.Default()
}

func (s *Service) metrics() Recorder {
	if s.Metrics != nil {
		return s.Metrics
	}
	return nopRecorder{}
}

// Notification failures are logged and swallowed; they never fail the order operation.
func (s *Service) notifyNewOrder(ctx context.Context, o Order) {
	if s.Notifier == nil {
		return
	}
	ev := NewOrderEvent{
		OrderID:        o.ID,
		SellerID:       o.SellerID,
		BuyerName:      o.BuyerName,
		ItemCount:      o.ItemCount(),
		TotalCents:     o.TotalCents,
		MarketLocation: o.MarketLocation,
	}
	if err := s.Notifier.NewOrder(ctx, ev); err != nil {
		s.metrics().NotificationFailed(EventOrderCreated)
		s.log().Warn("new-order notification failed", "order_id", o.ID, "seller_id", o.SellerID, "err", err)
	}
}

func (s *Service) notifyLowStock(ctx context.Context, ev LowStockEvent) {
	if s.Notifier == nil {
		return
	}
	if err := s.Notifier.LowStock(ctx, ev); err != nil {
		s.metrics().NotificationFailed(EventStockLow)
		s.log().Warn("low-stock notification failed", "product_id", ev.ProductID, "seller_id", ev.SellerID, "err", err)
	}
}
