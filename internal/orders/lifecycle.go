package orders

import (
	"context"
	"fmt"
	"strings"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/ariefcatur/go-marketplace-orders/internal/apperr"
	"github.com/ariefcatur/go-marketplace-orders/internal/auth"
)

// GetOrder returns the order when requesterID is its buyer or its seller.
func (s *Service) GetOrder(ctx context.Context, orderID, requesterID string) (Order, error) {
	o, err := s.Store.Get(ctx, orderID)
	if err != nil {
		return Order{}, err
	}
	if o.BuyerID != requesterID && o.SellerID != requesterID {
		return Order{}, apperr.Unauthorized("not allowed to view order %s", orderID)
	}
	return o, nil
}

func (s *Service) ListMyOrders(ctx context.Context, buyerID string) ([]Order, error) {
	return s.Store.ListByBuyer(ctx, buyerID)
}

type SellerFilter struct {
	Status   *Status
	Archived *bool
}

type SellerOrders struct {
	Orders       []Order        `json:"orders"`
	StatusCounts map[Status]int `json:"status_counts"`
}

// ListSellerOrders applies the archived filter in storage. Status counts cover every status
// under that archived filter; the status filter narrows only the returned list.
func (s *Service) ListSellerOrders(ctx context.Context, sellerID string, f SellerFilter) (SellerOrders, error) {
	if f.Status != nil && !f.Status.Valid() {
		return SellerOrders{}, apperr.Validation("invalid status %q", *f.Status)
	}
	all, err := s.Store.ListBySeller(ctx, sellerID, f.Archived)
	if err != nil {
		return SellerOrders{}, err
	}

	out := SellerOrders{Orders: make([]Order, 0, len(all)), StatusCounts: make(map[Status]int, len(AllStatuses))}
	for _, st := range AllStatuses {
		out.StatusCounts[st] = 0
	}
	for _, o := range all {
		out.StatusCounts[o.Status]++
		if f.Status == nil || o.Status == *f.Status {
			out.Orders = append(out.Orders, o)
		}
	}
	return out, nil
}

// UpdateStatus lets the seller move the order to any known status. The (status, role) table is
// consulted only under Options.StrictTransitions.
func (s *Service) UpdateStatus(ctx context.Context, orderID, sellerID string, next Status, note string) (Order, error) {
	ctx, span := tracer.Start(ctx, "orders.UpdateStatus", trace.WithAttributes(
		attribute.String("order.id", orderID), attribute.String("order.status", string(next))))
	defer span.End()

	if !next.Valid() {
		return Order{}, apperr.Validation("invalid status %q", next)
	}
	note = strings.TrimSpace(note)
	if note == "" {
		note = fmt.Sprintf("Status updated to %s", next)
	}
	if len([]rune(note)) > MaxNoteLength {
		return Order{}, apperr.Validation("note must be at most %d characters", MaxNoteLength)
	}

	return s.Store.Update(ctx, orderID, func(o *Order) error {
		if o.SellerID != sellerID {
			return apperr.Unauthorized("order %s does not belong to you", orderID)
		}
		if s.Opts.StrictTransitions && !CanTransition(auth.RoleSeller, o.Status, next) {
			return apperr.InvalidState("cannot move order from %s to %s", o.Status, next)
		}
		o.appendHistory(next, s.now(), note)
		return nil
	})
}

// VerifyPayment marks the payment verified and, by business rule, starts preparation.
// Re-verifying is allowed and appends another entry.
func (s *Service) VerifyPayment(ctx context.Context, orderID, sellerID string) (Order, error) {
	ctx, span := tracer.Start(ctx, "orders.VerifyPayment", trace.WithAttributes(attribute.String("order.id", orderID)))
	defer span.End()

	return s.Store.Update(ctx, orderID, func(o *Order) error {
		if o.SellerID != sellerID {
			return apperr.Unauthorized("order %s does not belong to you", orderID)
		}
		if s.Opts.StrictTransitions && o.Status.Terminal() {
			return apperr.InvalidState("cannot verify payment of a %s order", o.Status)
		}
		o.PaymentVerified = true
		o.appendHistory(StatusPreparing, s.now(), "Payment verified, order is being prepared")
		return nil
	})
}

// CancelByCustomer cancels a pending or confirmed order and puts every line's quantity back on
// its product. The status check runs under the order's lock, so of two racing cancels only one
// restores stock.
func (s *Service) CancelByCustomer(ctx context.Context, orderID, buyerID, reason string) (Order, error) {
	ctx, span := tracer.Start(ctx, "orders.CancelByCustomer", trace.WithAttributes(attribute.String("order.id", orderID)))
	defer span.End()

	reason = strings.TrimSpace(reason)
	if len([]rune(reason)) > MaxNoteLength {
		return Order{}, apperr.Validation("reason must be at most %d characters", MaxNoteLength)
	}
	note := "Cancelled by customer"
	if reason != "" {
		note += ". Reason: " + reason
	}

	o, err := s.Store.Update(ctx, orderID, func(o *Order) error {
		if o.BuyerID != buyerID {
			return apperr.Unauthorized("order %s does not belong to you", orderID)
		}
		if !in(o.Status, customerCancelStatuses) {
			return apperr.InvalidState("order can no longer be cancelled (status: %s)", o.Status)
		}
		o.appendHistory(StatusCancelled, s.now(), note)
		return nil
	})
	if err != nil {
		return Order{}, err
	}

	// The order is already cancelled; its stock has to come back even if the caller is gone.
	rctx := context.WithoutCancel(ctx)
	for _, it := range o.Items {
		if err := s.Ledger.Restore(rctx, it.ProductID, it.Quantity); err != nil {
			s.log().Error("restore stock for cancelled order", "order_id", o.ID, "product_id", it.ProductID, "qty", it.Quantity, "err", err)
		}
	}
	s.log().Info("order cancelled by customer", "order_id", o.ID, "buyer_id", buyerID)
	return o, nil
}

// CancelForRemovedAccount is the administrative cascade run when a buyer or seller account is
// removed. Open orders are forced to cancelled; stock is not restored.
func (s *Service) CancelForRemovedAccount(ctx context.Context, accountID string, party auth.Role) (int64, error) {
	if accountID == "" {
		return 0, apperr.Validation("account id is required")
	}
	if party != auth.RoleBuyer && party != auth.RoleSeller {
		return 0, apperr.Validation("party must be buyer or seller, got %q", party)
	}
	entry := HistoryEntry{
		Status: StatusCancelled,
		At:     s.now(),
		Note:   fmt.Sprintf("Order cancelled by system: %s account was removed", party),
	}
	n, err := s.Store.CancelOpen(ctx, party, accountID, openStatuses, entry)
	if err != nil {
		return 0, fmt.Errorf("cascade cancel: %w", err)
	}
	s.log().Info("cascade cancellation", "account_id", accountID, "party", party, "orders", n)
	return n, nil
}
