package redisx

import "time"

const (
	// Checkout idempotency: idem:checkout:{buyer_id}:{idempotency_key} -> created orders (json)
	KeyIdemCheckout = "idem:checkout:%s:%s"

	// Dedup event processing: dedup:{service}:{event_id}
	KeyDedup = "dedup:%s:%s"

	// Seller notification feed, newest first: notify:feed:{seller_id}
	KeyFeed = "notify:feed:%s"
)

var (
	TTLIdempotency = 24 * time.Hour
	TTLInFlight    = 30 * time.Second
	TTLDedup       = 48 * time.Hour
	TTLFeed        = 30 * 24 * time.Hour
)

// FeedSize is how many entries a seller feed keeps.
const FeedSize = 100
