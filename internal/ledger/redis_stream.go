package ledger

import (
	"context"
	"fmt"

	"github.com/redis/go-redis/v9"

	"solana-copy-trader/internal/domain"
)

// DefaultStreamMaxLen caps the stream length (approximate trimming).
const DefaultStreamMaxLen = 100_000

// RedisStreamPublisher appends records to a Redis stream.
type RedisStreamPublisher struct {
	client redis.Cmdable
	stream string
	maxLen int64
}

// NewRedisStreamPublisher creates a publisher on stream. A maxLen <= 0 uses
// DefaultStreamMaxLen.
func NewRedisStreamPublisher(client redis.Cmdable, stream string, maxLen int64) *RedisStreamPublisher {
	if maxLen <= 0 {
		maxLen = DefaultStreamMaxLen
	}
	return &RedisStreamPublisher{client: client, stream: stream, maxLen: maxLen}
}

// Name implements Publisher.
func (p *RedisStreamPublisher) Name() string { return "redis" }

// Publish implements Publisher.
func (p *RedisStreamPublisher) Publish(ctx context.Context, r *domain.TradeRecord) error {
	data, err := encodeRecord(r)
	if err != nil {
		return fmt.Errorf("encode record: %w", err)
	}
	err = p.client.XAdd(ctx, &redis.XAddArgs{
		Stream: p.stream,
		MaxLen: p.maxLen,
		Approx: true,
		Values: map[string]any{
			"event_id": r.EventID,
			"status":   string(r.Status),
			"record":   data,
		},
	}).Err()
	if err != nil {
		return fmt.Errorf("xadd %s: %w", p.stream, err)
	}
	return nil
}

// Close is a no-op; the client is owned by the caller.
func (p *RedisStreamPublisher) Close() error { return nil }
