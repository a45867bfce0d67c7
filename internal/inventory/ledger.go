package inventory

import (
	"context"

	"github.com/ariefcatur/go-marketplace-orders/internal/apperr"
)

// Ledger is the single source of truth for sellable stock.
type Ledger interface {
	Get(ctx context.Context, productID string) (Product, error)
	List(ctx context.Context) ([]Product, error)

	// Reserve decrements quantity by qty iff the product is available and has at least qty
	// on hand, as one atomic step. It returns the product as it is after the decrement.
	// Missing products yield apperr NOT_FOUND, short stock INSUFFICIENT_STOCK.
	Reserve(ctx context.Context, productID string, qty int) (Product, error)

	// Restore adds qty back onto the product.
	Restore(ctx context.Context, productID string, qty int) error

	SetStock(ctx context.Context, productID string, qty, lowStockThreshold int) (Product, error)
}

// StockUpdate is a seller restock request. A nil threshold keeps the current one.
type StockUpdate struct {
	Quantity          int
	LowStockThreshold *int
}

type Service struct {
	Ledger Ledger
}

func (s *Service) ListProducts(ctx context.Context) ([]Product, error) {
	return s.Ledger.List(ctx)
}

// Restock sets the on-hand quantity of a product owned by sellerID.
func (s *Service) Restock(ctx context.Context, sellerID, productID string, u StockUpdate) (Product, error) {
	if u.Quantity < 0 {
		return Product{}, apperr.Validation("quantity must be >= 0")
	}
	p, err := s.Ledger.Get(ctx, productID)
	if err != nil {
		return Product{}, err
	}
	if p.SellerID != sellerID {
		return Product{}, apperr.Unauthorized("product %s does not belong to you", productID)
	}
	threshold := p.LowStockThreshold
	if u.LowStockThreshold != nil {
		if *u.LowStockThreshold < 0 {
			return Product{}, apperr.Validation("low stock threshold must be >= 0")
		}
		threshold = *u.LowStockThreshold
	}
	return s.Ledger.SetStock(ctx, productID, u.Quantity, threshold)
}
