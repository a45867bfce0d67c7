package orders

import (
	"context"

	"github.com/ariefcatur/go-marketplace-orders/internal/apperr"
)

// StrictBatch validates every target before writing anything; one failing target rejects the
// whole batch.
//
// Check and Write are separate steps. A target whose status changes between them is written
// anyway.
type StrictBatch struct {
	Load  func(ctx context.Context, ids []string) ([]Order, error)
	Check func(Order) error
	Write func(ctx context.Context, ids []string) (int64, error)
}

func (b StrictBatch) Run(ctx context.Context, ids []string) (int64, error) {
	ids = uniqueIDs(ids)
	if len(ids) == 0 {
		return 0, apperr.Validation("order_ids is required")
	}
	found, err := b.Load(ctx, ids)
	if err != nil {
		return 0, err
	}
	byID := make(map[string]Order, len(found))
	for _, o := range found {
		byID[o.ID] = o
	}
	for _, id := range ids {
		o, ok := byID[id]
		if !ok {
			return 0, apperr.NotFound("order %s not found", id)
		}
		if err := b.Check(o); err != nil {
			return 0, err
		}
	}
	return b.Write(ctx, ids)
}

// BestEffortBatch writes to whichever targets qualify and reports how many changed. Targets
// that do not qualify are skipped without error.
type BestEffortBatch struct {
	Write func(ctx context.Context, ids []string) (int64, error)
}

func (b BestEffortBatch) Run(ctx context.Context, ids []string) (int64, error) {
	ids = uniqueIDs(ids)
	if len(ids) == 0 {
		return 0, nil
	}
	return b.Write(ctx, ids)
}

func uniqueIDs(ids []string) []string {
	seen := make(map[string]bool, len(ids))
	out := make([]string, 0, len(ids))
	for _, id := range ids {
		if id == "" || seen[id] {
			continue
		}
		seen[id] = true
		out = append(out, id)
	}
	return out
}

func (s *Service) ArchiveOrder(ctx context.Context, orderID, sellerID string, archive bool) (Order, error) {
	return s.Store.Update(ctx, orderID, func(o *Order) error {
		if err := archivable(*o, sellerID); err != nil {
			return err
		}
		o.Archived = archive
		o.UpdatedAt = s.now()
		return nil
	})
}

// BulkArchive is all-or-nothing.
func (s *Service) BulkArchive(ctx context.Context, orderIDs []string, sellerID string, archive bool) (int64, error) {
	batch := StrictBatch{
		Load:  s.Store.ListByIDs,
		Check: func(o Order) error { return archivable(o, sellerID) },
		Write: func(ctx context.Context, ids []string) (int64, error) {
			return s.Store.SetArchived(ctx, sellerID, ids, archive)
		},
	}
	return batch.Run(ctx, orderIDs)
}

func archivable(o Order, sellerID string) error {
	if o.SellerID != sellerID {
		return apperr.Unauthorized("order %s does not belong to you", o.ID)
	}
	if !o.Status.Terminal() {
		return apperr.InvalidState("only completed or cancelled orders can be archived (order %s is %s)", o.ID, o.Status)
	}
	return nil
}

func (s *Service) HideForBuyer(ctx context.Context, orderID, buyerID string) error {
	_, err := s.Store.Update(ctx, orderID, func(o *Order) error {
		if o.BuyerID != buyerID {
			return apperr.Unauthorized("order %s does not belong to you", orderID)
		}
		if !o.Status.Terminal() {
			return apperr.InvalidState("only completed or cancelled orders can be hidden (status: %s)", o.Status)
		}
		o.HiddenByBuyer = true
		o.UpdatedAt = s.now()
		return nil
	})
	return err
}

// BulkHideForBuyer hides what it can and skips foreign or open orders.
func (s *Service) BulkHideForBuyer(ctx context.Context, orderIDs []string, buyerID string) (int64, error) {
	batch := BestEffortBatch{
		Write: func(ctx context.Context, ids []string) (int64, error) {
			return s.Store.HideForBuyer(ctx, buyerID, ids, terminalStatuses)
		},
	}
	return batch.Run(ctx, orderIDs)
}
