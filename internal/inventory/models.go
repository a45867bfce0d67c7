package inventory

import "time"

type Product struct {
	ID                string    `json:"id"`
	SellerID          string    `json:"seller_id"`
	Name              string    `json:"name"`
	PriceCents        int64     `json:"price_cents"`
	Quantity          int       `json:"quantity"`
	Unit              string    `json:"unit"`
	ImageRef          string    `json:"image_ref,omitempty"`
	MarketLocation    string    `json:"market_location"`
	IsAvailable       bool      `json:"is_available"`
	LowStockThreshold int       `json:"low_stock_threshold"`
	CreatedAt         time.Time `json:"created_at"`
	UpdatedAt         time.Time `json:"updated_at"`
}

// LowStock reports whether the quantity sits in (0, threshold]. An empty shelf is not low
// stock; it is sold out.
func (p Product) LowStock() bool {
	return p.Quantity > 0 && p.Quantity <= p.LowStockThreshold
}
