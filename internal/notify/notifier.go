// Package notify turns order events into Kafka messages and, on the consuming side, into
// entries of each seller's notification feed.
package notify

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/segmentio/kafka-go"

	kafkax "github.com/ariefcatur/go-marketplace-orders/internal/kafka"
	"github.com/ariefcatur/go-marketplace-orders/internal/orders"
)

// Publisher is satisfied by *kafka.Producer.
type Publisher interface {
	Publish(key, value []byte, headers ...kafka.Header) error
}

// KafkaNotifier implements orders.Notifier. Each event type goes to its own topic, keyed by
// seller so one seller's events stay ordered.
type KafkaNotifier struct {
	Orders   Publisher
	Stock    Publisher
	Producer string
}

func (n *KafkaNotifier) NewOrder(ctx context.Context, ev orders.NewOrderEvent) error {
	return n.publish(ctx, n.Orders, orders.EventOrderCreated, ev.OrderID, ev.SellerID, ev)
}

func (n *KafkaNotifier) LowStock(ctx context.Context, ev orders.LowStockEvent) error {
	return n.publish(ctx, n.Stock, orders.EventStockLow, ev.ProductID, ev.SellerID, ev)
}

func (n *KafkaNotifier) publish(ctx context.Context, p Publisher, eventType, correlationID, sellerID string, payload any) error {
	env, err := kafkax.NewEnvelope(ctx, eventType, n.Producer, correlationID, sellerID, payload)
	if err != nil {
		return err
	}
	b, err := json.Marshal(env)
	if err != nil {
		return fmt.Errorf("encode envelope: %w", err)
	}
	return p.Publish(orders.PartitionKey(sellerID), b, kafka.Header{Key: kafkax.HeaderEventType, Value: []byte(eventType)})
}
