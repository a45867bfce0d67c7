package redisx

import (
	"context"
	"errors"
	"fmt"

	"github.com/redis/go-redis/v9"
)

// ErrInFlight means another request holding the same idempotency key has not finished yet.
var ErrInFlight = errors.New("request with this idempotency key is still in progress")

const inFlight = "in-flight"

// Idempotency remembers the outcome of a keyed request for TTLIdempotency.
type Idempotency struct {
	RDB *redis.Client
}

// Begin claims key. It returns the stored result of an earlier completed request, or
// ErrInFlight while the first one is still running. A nil result with a nil error means the
// caller owns the key and must Complete or Abort it.
func (i *Idempotency) Begin(ctx context.Context, buyerID, key string) ([]byte, error) {
	k := fmt.Sprintf(KeyIdemCheckout, buyerID, key)
	won, err := Claim(ctx, i.RDB, k, inFlight, TTLInFlight)
	if err != nil {
		return nil, fmt.Errorf("claim idempotency key: %w", err)
	}
	if won {
		return nil, nil
	}
	v, err := i.RDB.Get(ctx, k).Bytes()
	if errors.Is(err, redis.Nil) {
		// expired between SETNX and GET; treat as still running
		return nil, ErrInFlight
	}
	if err != nil {
		return nil, fmt.Errorf("read idempotency key: %w", err)
	}
	if string(v) == inFlight {
		return nil, ErrInFlight
	}
	return v, nil
}

func (i *Idempotency) Complete(ctx context.Context, buyerID, key string, result []byte) error {
	return i.RDB.Set(ctx, fmt.Sprintf(KeyIdemCheckout, buyerID, key), result, TTLIdempotency).Err()
}

// Abort releases the key so the request may be retried.
func (i *Idempotency) Abort(ctx context.Context, buyerID, key string) error {
	return i.RDB.Del(ctx, fmt.Sprintf(KeyIdemCheckout, buyerID, key)).Err()
}
