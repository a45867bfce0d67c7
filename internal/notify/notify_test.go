package notify

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"strings"
	"sync"
	"testing"

	"github.com/segmentio/kafka-go"

	kafkax "github.com/ariefcatur/go-marketplace-orders/internal/kafka"
	"github.com/ariefcatur/go-marketplace-orders/internal/orders"
)

type published struct {
	key, value []byte
	headers    []kafka.Header
}

type fakePublisher struct {
	mu   sync.Mutex
	msgs []published
	err  error
}

func (f *fakePublisher) Publish(key, value []byte, headers ...kafka.Header) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return f.err
	}
	f.msgs = append(f.msgs, published{key, value, headers})
	return nil
}

type memFeed struct {
	mu      sync.Mutex
	entries map[string][][]byte
	err     error
}

func (m *memFeed) Push(_ context.Context, sellerID string, entry []byte) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.err != nil {
		return m.err
	}
	if m.entries == nil {
		m.entries = map[string][][]byte{}
	}
	m.entries[sellerID] = append([][]byte{entry}, m.entries[sellerID]...)
	return nil
}

func (m *memFeed) Latest(_ context.Context, sellerID string, n int) ([][]byte, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	all := m.entries[sellerID]
	if n > 0 && n < len(all) {
		all = all[:n]
	}
	return all, nil
}

type memDedup struct {
	mu   sync.Mutex
	seen map[string]bool
}

func (d *memDedup) Claim(_ context.Context, id string) (bool, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.seen == nil {
		d.seen = map[string]bool{}
	}
	if d.seen[id] {
		return false, nil
	}
	d.seen[id] = true
	return true, nil
}

func (d *memDedup) Release(_ context.Context, id string) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	delete(d.seen, id)
	return nil
}

func quietLog() *slog.Logger { return slog.New(slog.NewTextHandler(io.Discard, nil)) }

func TestKafkaNotifierRoutesByEventType(t *testing.T) {
	ordersTopic, stockTopic := &fakePublisher{}, &fakePublisher{}
	n := &KafkaNotifier{Orders: ordersTopic, Stock: stockTopic, Producer: "order-api"}

	err := n.NewOrder(context.Background(), orders.NewOrderEvent{OrderID: "o1", SellerID: "s1", BuyerName: "Sari", ItemCount: 3, TotalCents: 4500})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if err := n.LowStock(context.Background(), orders.LowStockEvent{ProductID: "p1", SellerID: "s2", Quantity: 1, Threshold: 3}); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(ordersTopic.msgs) != 1 || len(stockTopic.msgs) != 1 {
		t.Fatalf("expected one message per topic, got %d and %d", len(ordersTopic.msgs), len(stockTopic.msgs))
	}

	msg := ordersTopic.msgs[0]
	if string(msg.key) != "s1" {
		t.Fatalf("expected seller partition key, got %q", msg.key)
	}
	if len(msg.headers) != 1 || string(msg.headers[0].Value) != orders.EventOrderCreated {
		t.Fatalf("unexpected headers %+v", msg.headers)
	}
	env, err := kafkax.DecodeEnvelope(msg.value)
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	if env.SellerID != "s1" || env.CorrelationID != "o1" || env.Producer != "order-api" {
		t.Fatalf("unexpected envelope %+v", env)
	}
}

func TestKafkaNotifierPropagatesPublishError(t *testing.T) {
	n := &KafkaNotifier{Orders: &fakePublisher{err: kafkax.ErrBufferFull}, Stock: &fakePublisher{}}
	if err := n.NewOrder(context.Background(), orders.NewOrderEvent{SellerID: "s1"}); !errors.Is(err, kafkax.ErrBufferFull) {
		t.Fatalf("expected buffer full, got %v", err)
	}
}

// envelopeMessage builds the message KafkaNotifier would publish.
func envelopeMessage(t *testing.T, eventType, sellerID string, payload any) (kafka.Message, orders.Envelope) {
	t.Helper()
	env, err := kafkax.NewEnvelope(context.Background(), eventType, "test", "c1", sellerID, payload)
	if err != nil {
		t.Fatalf("envelope: %v", err)
	}
	b, _ := json.Marshal(env)
	return kafka.Message{Topic: "t", Value: b}, env
}

func TestDispatcherStoresOnce(t *testing.T) {
	feed := &memFeed{}
	d := &Dispatcher{Feed: feed, Dedup: &memDedup{}, Log: quietLog()}
	msg, env := envelopeMessage(t, orders.EventOrderCreated, "s1", orders.NewOrderEvent{
		OrderID: "o1", SellerID: "s1", BuyerName: "Sari", ItemCount: 2, TotalCents: 12550, MarketLocation: "Pasar Legi",
	})

	for i := 0; i < 2; i++ {
		if err := d.Handle(context.Background(), msg); err != nil {
			t.Fatalf("handle #%d: %v", i, err)
		}
	}

	items, err := (&Reader{Feed: feed}).List(context.Background(), "s1", 10)
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(items) != 1 {
		t.Fatalf("expected one stored item, got %d", len(items))
	}
	it := items[0]
	if it.ID != env.EventID || it.OrderID != "o1" || it.Title != "New order" {
		t.Fatalf("unexpected item %+v", it)
	}
	if !strings.Contains(it.Message, "total 125.50") || !strings.Contains(it.Message, "Sari") {
		t.Fatalf("unexpected message %q", it.Message)
	}
}

func TestDispatcherLowStock(t *testing.T) {
	feed := &memFeed{}
	d := &Dispatcher{Feed: feed, Dedup: &memDedup{}, Log: quietLog()}
	msg, _ := envelopeMessage(t, orders.EventStockLow, "s1", orders.LowStockEvent{ProductID: "p1", SellerID: "s1", Name: "Chili", Quantity: 2, Threshold: 5})
	if err := d.Handle(context.Background(), msg); err != nil {
		t.Fatalf("handle: %v", err)
	}
	items, _ := (&Reader{Feed: feed}).List(context.Background(), "s1", 0)
	if len(items) != 1 || items[0].ProductID != "p1" || items[0].Message != "Chili has only 2 left (threshold 5)" {
		t.Fatalf("unexpected items %+v", items)
	}
}

func TestDispatcherSkipsMalformedAndUnknown(t *testing.T) {
	feed := &memFeed{}
	d := &Dispatcher{Feed: feed, Dedup: &memDedup{}, Log: quietLog()}

	if err := d.Handle(context.Background(), kafka.Message{Value: []byte("{")}); err != nil {
		t.Fatalf("expected malformed message to be dropped, got %v", err)
	}
	msg, _ := envelopeMessage(t, "SomethingElse", "s1", map[string]string{"x": "y"})
	if err := d.Handle(context.Background(), msg); err != nil {
		t.Fatalf("expected unknown type to be ignored, got %v", err)
	}
	if len(feed.entries) != 0 {
		t.Fatalf("expected empty feed, got %v", feed.entries)
	}
}

func TestDispatcherReleasesDedupOnFeedFailure(t *testing.T) {
	feed := &memFeed{err: errors.New("redis down")}
	dedup := &memDedup{}
	d := &Dispatcher{Feed: feed, Dedup: dedup, Log: quietLog()}
	msg, _ := envelopeMessage(t, orders.EventStockLow, "s1", orders.LowStockEvent{ProductID: "p1", SellerID: "s1", Quantity: 1, Threshold: 2})

	if err := d.Handle(context.Background(), msg); err == nil {
		t.Fatalf("expected feed error")
	}
	feed.err = nil
	if err := d.Handle(context.Background(), msg); err != nil {
		t.Fatalf("expected redelivery to succeed, got %v", err)
	}
	if len(feed.entries["s1"]) != 1 {
		t.Fatalf("expected one stored item after redelivery, got %d", len(feed.entries["s1"]))
	}
}
