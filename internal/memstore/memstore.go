// Package memstore keeps orders and products in process memory. It backs STORAGE_DRIVER=memory
// and the service tests; every method is safe for concurrent use.
package memstore

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/ariefcatur/go-marketplace-orders/internal/apperr"
	"github.com/ariefcatur/go-marketplace-orders/internal/auth"
	"github.com/ariefcatur/go-marketplace-orders/internal/inventory"
	"github.com/ariefcatur/go-marketplace-orders/internal/orders"
)

// Products implements inventory.Ledger.
type Products struct {
	mu    sync.Mutex
	items map[string]inventory.Product
}

func NewProducts(seed ...inventory.Product) *Products {
	p := &Products{items: make(map[string]inventory.Product, len(seed))}
	for _, it := range seed {
		p.items[it.ID] = it
	}
	return p
}

// Put inserts or replaces a product.
func (p *Products) Put(prod inventory.Product) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.items[prod.ID] = prod
}

func (p *Products) Get(_ context.Context, productID string) (inventory.Product, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	prod, ok := p.items[productID]
	if !ok {
		return inventory.Product{}, apperr.NotFound("product %s not found", productID)
	}
	return prod, nil
}

func (p *Products) List(context.Context) ([]inventory.Product, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([]inventory.Product, 0, len(p.items))
	for _, prod := range p.items {
		out = append(out, prod)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out, nil
}

func (p *Products) Reserve(_ context.Context, productID string, qty int) (inventory.Product, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	prod, ok := p.items[productID]
	if !ok {
		return inventory.Product{}, apperr.NotFound("product %s not found", productID)
	}
	if !prod.IsAvailable || prod.Quantity < qty {
		return inventory.Product{}, inventory.Insufficient(prod, qty)
	}
	prod.Quantity -= qty
	prod.UpdatedAt = time.Now().UTC()
	p.items[productID] = prod
	return prod, nil
}

func (p *Products) Restore(_ context.Context, productID string, qty int) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	prod, ok := p.items[productID]
	if !ok {
		return apperr.NotFound("product %s not found", productID)
	}
	prod.Quantity += qty
	prod.UpdatedAt = time.Now().UTC()
	p.items[productID] = prod
	return nil
}

func (p *Products) SetStock(_ context.Context, productID string, qty, lowStockThreshold int) (inventory.Product, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	prod, ok := p.items[productID]
	if !ok {
		return inventory.Product{}, apperr.NotFound("product %s not found", productID)
	}
	prod.Quantity = qty
	prod.LowStockThreshold = lowStockThreshold
	prod.UpdatedAt = time.Now().UTC()
	p.items[productID] = prod
	return prod, nil
}

// Orders implements orders.Store and analytics.Source. Stored values are deep-copied on the
// way in and out so callers can never mutate a persisted snapshot.
type Orders struct {
	mu    sync.Mutex
	items map[string]orders.Order
}

func NewOrders() *Orders {
	return &Orders{items: map[string]orders.Order{}}
}

func clone(o orders.Order) orders.Order {
	o.Items = append([]orders.LineSnapshot(nil), o.Items...)
	o.History = append([]orders.HistoryEntry(nil), o.History...)
	if o.DeliveryAddress != nil {
		a := *o.DeliveryAddress
		o.DeliveryAddress = &a
	}
	return o
}

func newestFirst(list []orders.Order) {
	sort.SliceStable(list, func(i, j int) bool { return list[i].CreatedAt.After(list[j].CreatedAt) })
}

func hasStatus(s orders.Status, set []orders.Status) bool {
	for _, x := range set {
		if x == s {
			return true
		}
	}
	return false
}

func (m *Orders) CreateOrders(_ context.Context, list []orders.Order) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, o := range list {
		if _, dup := m.items[o.ID]; dup {
			return apperr.Internal("duplicate order id %s", o.ID)
		}
	}
	for _, o := range list {
		m.items[o.ID] = clone(o)
	}
	return nil
}

func (m *Orders) Get(_ context.Context, orderID string) (orders.Order, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	o, ok := m.items[orderID]
	if !ok {
		return orders.Order{}, apperr.NotFound("order %s not found", orderID)
	}
	return clone(o), nil
}

// Update runs fn under the store lock, which serializes it against every other write.
func (m *Orders) Update(_ context.Context, orderID string, fn func(*orders.Order) error) (orders.Order, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	cur, ok := m.items[orderID]
	if !ok {
		return orders.Order{}, apperr.NotFound("order %s not found", orderID)
	}
	o := clone(cur)
	if err := fn(&o); err != nil {
		return orders.Order{}, err
	}
	// only the mutable fields survive
	cur.Status = o.Status
	cur.PaymentVerified = o.PaymentVerified
	cur.History = o.History
	cur.Archived = o.Archived
	cur.HiddenByBuyer = o.HiddenByBuyer
	cur.UpdatedAt = o.UpdatedAt
	m.items[orderID] = clone(cur)
	return clone(cur), nil
}

func (m *Orders) filter(keep func(orders.Order) bool) []orders.Order {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []orders.Order
	for _, o := range m.items {
		if keep(o) {
			out = append(out, clone(o))
		}
	}
	return out
}

func (m *Orders) ListByBuyer(_ context.Context, buyerID string) ([]orders.Order, error) {
	out := m.filter(func(o orders.Order) bool { return o.BuyerID == buyerID && !o.HiddenByBuyer })
	newestFirst(out)
	return out, nil
}

func (m *Orders) ListBySeller(_ context.Context, sellerID string, archived *bool) ([]orders.Order, error) {
	out := m.filter(func(o orders.Order) bool {
		return o.SellerID == sellerID && (archived == nil || o.Archived == *archived)
	})
	newestFirst(out)
	return out, nil
}

func (m *Orders) ListByIDs(_ context.Context, ids []string) ([]orders.Order, error) {
	want := make(map[string]bool, len(ids))
	for _, id := range ids {
		want[id] = true
	}
	return m.filter(func(o orders.Order) bool { return want[o.ID] }), nil
}

func (m *Orders) SetArchived(_ context.Context, sellerID string, ids []string, archived bool) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	now := time.Now().UTC()
	var n int64
	for _, id := range ids {
		o, ok := m.items[id]
		if !ok || o.SellerID != sellerID {
			continue
		}
		o.Archived = archived
		o.UpdatedAt = now
		m.items[id] = o
		n++
	}
	return n, nil
}

func (m *Orders) HideForBuyer(_ context.Context, buyerID string, ids []string, allowed []orders.Status) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	now := time.Now().UTC()
	var n int64
	for _, id := range ids {
		o, ok := m.items[id]
		if !ok || o.BuyerID != buyerID || o.HiddenByBuyer || !hasStatus(o.Status, allowed) {
			continue
		}
		o.HiddenByBuyer = true
		o.UpdatedAt = now
		m.items[id] = o
		n++
	}
	return n, nil
}

func (m *Orders) CancelOpen(_ context.Context, party auth.Role, accountID string, open []orders.Status, entry orders.HistoryEntry) (int64, error) {
	if party != auth.RoleBuyer && party != auth.RoleSeller {
		return 0, apperr.Validation("party must be buyer or seller, got %q", party)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	var n int64
	for id, o := range m.items {
		owner := o.SellerID
		if party == auth.RoleBuyer {
			owner = o.BuyerID
		}
		if owner != accountID || !hasStatus(o.Status, open) {
			continue
		}
		o = clone(o)
		o.Status = entry.Status
		o.History = append(o.History, entry)
		o.UpdatedAt = entry.At
		m.items[id] = o
		n++
	}
	return n, nil
}

// SellerOrdersBetween returns the seller's orders created in [from, to], oldest first. A zero
// from is unbounded.
func (m *Orders) SellerOrdersBetween(_ context.Context, sellerID string, from, to time.Time) ([]orders.Order, error) {
	out := m.filter(func(o orders.Order) bool {
		if o.SellerID != sellerID || o.CreatedAt.After(to) {
			return false
		}
		return from.IsZero() || !o.CreatedAt.Before(from)
	})
	sort.SliceStable(out, func(i, j int) bool { return out[i].CreatedAt.Before(out[j].CreatedAt) })
	return out, nil
}

// MarketRevenue totals completed orders in [from, to] by market.
func (m *Orders) MarketRevenue(_ context.Context, from, to time.Time) ([]orders.MarketTotal, error) {
	list := m.filter(func(o orders.Order) bool {
		if o.Status != orders.StatusCompleted || o.CreatedAt.After(to) {
			return false
		}
		return from.IsZero() || !o.CreatedAt.Before(from)
	})
	byMarket := map[string]*orders.MarketTotal{}
	for _, o := range list {
		t, ok := byMarket[o.MarketLocation]
		if !ok {
			t = &orders.MarketTotal{Market: o.MarketLocation}
			byMarket[o.MarketLocation] = t
		}
		t.RevenueCents += o.TotalCents
		t.OrderCount++
	}
	out := make([]orders.MarketTotal, 0, len(byMarket))
	for _, t := range byMarket {
		out = append(out, *t)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Market < out[j].Market })
	return out, nil
}
