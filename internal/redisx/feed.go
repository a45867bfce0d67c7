package redisx

import (
	"context"
	"fmt"

	"github.com/redis/go-redis/v9"
)

// Feed is a capped newest-first list per seller.
type Feed struct {
	RDB *redis.Client
}

func (f *Feed) Push(ctx context.Context, sellerID string, entry []byte) error {
	k := fmt.Sprintf(KeyFeed, sellerID)
	_, err := f.RDB.TxPipelined(ctx, func(p redis.Pipeliner) error {
		p.LPush(ctx, k, entry)
		p.LTrim(ctx, k, 0, FeedSize-1)
		p.Expire(ctx, k, TTLFeed)
		return nil
	})
	if err != nil {
		return fmt.Errorf("push feed entry: %w", err)
	}
	return nil
}

func (f *Feed) Latest(ctx context.Context, sellerID string, n int) ([][]byte, error) {
	if n <= 0 || n > FeedSize {
		n = FeedSize
	}
	vals, err := f.RDB.LRange(ctx, fmt.Sprintf(KeyFeed, sellerID), 0, int64(n-1)).Result()
	if err != nil {
		return nil, fmt.Errorf("read feed: %w", err)
	}
	out := make([][]byte, len(vals))
	for i, v := range vals {
		out[i] = []byte(v)
	}
	return out, nil
}

// Deduper marks event ids as processed by one service.
type Deduper struct {
	RDB     *redis.Client
	Service string
}

// Claim reports false when eventID was already claimed.
func (d *Deduper) Claim(ctx context.Context, eventID string) (bool, error) {
	return Claim(ctx, d.RDB, fmt.Sprintf(KeyDedup, d.Service, eventID), "1", TTLDedup)
}

// Release removes the mark so a failed event can be processed again.
func (d *Deduper) Release(ctx context.Context, eventID string) error {
	return d.RDB.Del(ctx, fmt.Sprintf(KeyDedup, d.Service, eventID)).Err()
}
