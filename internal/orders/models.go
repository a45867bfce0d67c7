package orders

import "time"

type PaymentMethod string

const (
	PaymentQR  PaymentMethod = "qr"
	PaymentCOD PaymentMethod = "cod"
)

// DefaultPaymentMethod applies to sellers missing from a checkout's payment map.
const DefaultPaymentMethod = PaymentQR

func (m PaymentMethod) Valid() bool { return m == PaymentQR || m == PaymentCOD }

type DeliveryType string

const (
	DeliveryPickup   DeliveryType = "pickup"
	DeliveryDelivery DeliveryType = "delivery"
)

const MaxNoteLength = 500

// LineSnapshot is written once at checkout and never updated, whatever happens to the product.
type LineSnapshot struct {
	ProductID  string `json:"product_id"`
	Name       string `json:"name"`
	PriceCents int64  `json:"price_cents"`
	Quantity   int    `json:"quantity"`
	Unit       string `json:"unit"`
	ImageRef   string `json:"image_ref,omitempty"`
}

func (l LineSnapshot) Subtotal() int64 { return l.PriceCents * int64(l.Quantity) }

type HistoryEntry struct {
	Status Status    `json:"status"`
	At     time.Time `json:"at"`
	Note   string    `json:"note"`
}

type DeliveryAddress struct {
	Recipient string `json:"recipient"`
	Phone     string `json:"phone"`
	Street    string `json:"street"`
	City      string `json:"city,omitempty"`
	Notes     string `json:"notes,omitempty"`
}

type Order struct {
	ID               string           `json:"id"`
	BuyerID          string           `json:"buyer_id"`
	BuyerName        string           `json:"buyer_name,omitempty"`
	SellerID         string           `json:"seller_id"`
	Items            []LineSnapshot   `json:"items"`
	TotalCents       int64            `json:"total_cents"`
	Status           Status           `json:"status"`
	PaymentMethod    PaymentMethod    `json:"payment_method"`
	PaymentProofRef  string           `json:"payment_proof_ref,omitempty"`
	PaymentVerified  bool             `json:"payment_verified"`
	MarketLocation   string           `json:"market_location"`
	Note             string           `json:"note,omitempty"`
	History          []HistoryEntry   `json:"history"`
	Archived         bool             `json:"archived"`
	HiddenByBuyer    bool             `json:"hidden_by_buyer"`
	DeliveryType     DeliveryType     `json:"delivery_type"`
	DeliveryAddress  *DeliveryAddress `json:"delivery_address,omitempty"`
	DeliveryFeeCents int64            `json:"delivery_fee_cents"`
	CreatedAt        time.Time        `json:"created_at"`
	UpdatedAt        time.Time        `json:"updated_at"`
}

// ItemsTotal recomputes Σ price×quantity over the order's own lines.
func (o Order) ItemsTotal() int64 {
	var total int64
	for _, it := range o.Items {
		total += it.Subtotal()
	}
	return total
}

// ItemCount is the number of units across all lines.
func (o Order) ItemCount() int {
	n := 0
	for _, it := range o.Items {
		n += it.Quantity
	}
	return n
}

func (o *Order) appendHistory(s Status, at time.Time, note string) {
	o.Status = s
	o.UpdatedAt = at
	o.History = append(o.History, HistoryEntry{Status: s, At: at, Note: note})
}

// MarketTotal is completed-order revenue for one market across all sellers.
type MarketTotal struct {
	Market       string `json:"market"`
	RevenueCents int64  `json:"revenue_cents"`
	OrderCount   int    `json:"order_count"`
}
