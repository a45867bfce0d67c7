package notify

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/segmentio/kafka-go"
	"github.com/shopspring/decimal"

	kafkax "github.com/ariefcatur/go-marketplace-orders/internal/kafka"
	"github.com/ariefcatur/go-marketplace-orders/internal/orders"
)

// Item is one entry of a seller's notification feed.
type Item struct {
	ID        string    `json:"id"`
	Type      string    `json:"type"`
	Title     string    `json:"title"`
	Message   string    `json:"message"`
	OrderID   string    `json:"order_id,omitempty"`
	ProductID string    `json:"product_id,omitempty"`
	At        time.Time `json:"at"`
}

// FeedStore is satisfied by *redisx.Feed.
type FeedStore interface {
	Push(ctx context.Context, sellerID string, entry []byte) error
	Latest(ctx context.Context, sellerID string, n int) ([][]byte, error)
}

// Deduper is satisfied by *redisx.Deduper.
type Deduper interface {
	Claim(ctx context.Context, eventID string) (bool, error)
	Release(ctx context.Context, eventID string) error
}

func formatCents(c int64) string {
	return decimal.New(c, -2).StringFixed(2)
}

// ItemFrom renders an envelope as a feed entry. ok is false for event types the feed ignores.
func ItemFrom(env orders.Envelope) (item Item, ok bool, err error) {
	item = Item{ID: env.EventID, Type: env.EventType, At: env.OccurredAt}
	switch env.EventType {
	case orders.EventOrderCreated:
		ev, err := kafkax.UnwrapPayload[orders.NewOrderEvent](env.Payload)
		if err != nil {
			return Item{}, false, err
		}
		item.Title = "New order"
		item.Message = fmt.Sprintf("New order from %s: %d item(s), total %s at %s",
			ev.BuyerName, ev.ItemCount, formatCents(ev.TotalCents), ev.MarketLocation)
		item.OrderID = ev.OrderID
	case orders.EventStockLow:
		ev, err := kafkax.UnwrapPayload[orders.LowStockEvent](env.Payload)
		if err != nil {
			return Item{}, false, err
		}
		item.Title = "Low stock"
		item.Message = fmt.Sprintf("%s has only %d left (threshold %d)", ev.Name, ev.Quantity, ev.Threshold)
		item.ProductID = ev.ProductID
	default:
		return Item{}, false, nil
	}
	return item, true, nil
}

// Dispatcher consumes order events and appends them to the addressed seller's feed, at most
// once per event id.
type Dispatcher struct {
	Feed  FeedStore
	Dedup Deduper
	Log   *slog.Logger
}

func (d *Dispatcher) log() *slog.Logger {
	if d.Log != nil {
		return d.Log
	}
	return slog.Default()
}

// Handle is a kafka.Handler. Malformed messages are logged and committed; storage failures are
// returned so the message is redelivered.
func (d *Dispatcher) Handle(ctx context.Context, m kafka.Message) error {
	env, err := kafkax.DecodeEnvelope(m.Value)
	if err != nil {
		d.log().Warn("drop malformed event", "topic", m.Topic, "offset", m.Offset, "err", err)
		return nil
	}
	item, ok, err := ItemFrom(env)
	if err != nil {
		d.log().Warn("drop malformed payload", "event_id", env.EventID, "type", env.EventType, "err", err)
		return nil
	}
	if !ok || env.SellerID == "" {
		return nil
	}

	first, err := d.Dedup.Claim(ctx, env.EventID)
	if err != nil {
		return fmt.Errorf("dedup %s: %w", env.EventID, err)
	}
	if !first {
		d.log().Debug("duplicate event", "event_id", env.EventID)
		return nil
	}

	b, err := json.Marshal(item)
	if err != nil {
		return err
	}
	if err := d.Feed.Push(ctx, env.SellerID, b); err != nil {
		if rerr := d.Dedup.Release(ctx, env.EventID); rerr != nil {
			d.log().Error("release dedup mark", "event_id", env.EventID, "err", rerr)
		}
		return err
	}
	d.log().Info("notification stored", "event_id", env.EventID, "type", env.EventType, "seller_id", env.SellerID)
	return nil
}

// Reader serves a seller's feed back out.
type Reader struct {
	Feed FeedStore
}

func (r *Reader) List(ctx context.Context, sellerID string, limit int) ([]Item, error) {
	raw, err := r.Feed.Latest(ctx, sellerID, limit)
	if err != nil {
		return nil, err
	}
	out := make([]Item, 0, len(raw))
	for _, b := range raw {
		var it Item
		if err := json.Unmarshal(b, &it); err != nil {
			continue
		}
		out = append(out, it)
	}
	return out, nil
}
