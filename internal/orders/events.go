package orders

import (
	"encoding/json"
	"time"
)

const (
	EventOrderCreated = "OrderCreated"
	EventStockLow     = "StockLow"
)

type Envelope struct {
	EventID       string          `json:"event_id"`      // uuid
	EventType     string          `json:"event_type"`    // one of the consts above
	EventVersion  int             `json:"event_version"` // 1
	OccurredAt    time.Time       `json:"occurred_at"`
	Producer      string          `json:"producer"` // e.g. "order-api"
	TraceID       string          `json:"trace_id,omitempty"`
	CorrelationID string          `json:"correlation_id,omitempty"` // order_id or product_id
	SellerID      string          `json:"seller_id"`                // addressee
	Payload       json.RawMessage `json:"payload"`
}

// NewOrderEvent tells a seller that a checkout produced an order for them.
type NewOrderEvent struct {
	OrderID        string `json:"order_id"`
	SellerID       string `json:"seller_id"`
	BuyerName      string `json:"buyer_name"`
	ItemCount      int    `json:"item_count"`
	TotalCents     int64  `json:"total_cents"`
	MarketLocation string `json:"market_location"`
}

// LowStockEvent fires when a decrement leaves a product in (0, threshold].
type LowStockEvent struct {
	ProductID string `json:"product_id"`
	SellerID  string `json:"seller_id"`
	Name      string `json:"name"`
	Quantity  int    `json:"quantity"`
	Threshold int    `json:"threshold"`
}
