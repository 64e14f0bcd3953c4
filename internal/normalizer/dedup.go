package normalizer

import (
	"context"
	"fmt"
	"time"

	lru "github.com/hashicorp/golang-lru/v2"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"solana-copy-trader/internal/observability"
)

// DefaultDedupSize is the number of recent keys kept by the local tier.
const DefaultDedupSize = 100_000

// Deduper remembers keys it has been asked about.
// Seen reports true when key was already seen, and marks it seen otherwise.
type Deduper interface {
	Seen(ctx context.Context, key string) (bool, error)
}

// LRUDedup is a bounded in-memory set; the least recently seen key is evicted first.
type LRUDedup struct {
	cache *lru.Cache[string, struct{}]
}

// NewLRUDedup creates a local dedup set holding up to size keys.
func NewLRUDedup(size int) (*LRUDedup, error) {
	if size <= 0 {
		size = DefaultDedupSize
	}
	cache, err := lru.New[string, struct{}](size)
	if err != nil {
		return nil, fmt.Errorf("create lru: %w", err)
	}
	return &LRUDedup{cache: cache}, nil
}

// Seen implements Deduper.
func (d *LRUDedup) Seen(_ context.Context, key string) (bool, error) {
	found, _ := d.cache.ContainsOrAdd(key, struct{}{})
	if found {
		observability.RecordDuplicate("local")
	}
	return found, nil
}

// Len returns the number of keys held.
func (d *LRUDedup) Len() int {
	return d.cache.Len()
}

// RedisDedup shares the seen set across restarts and replicas with SET NX EX.
type RedisDedup struct {
	client redis.Cmdable
	prefix string
	ttl    time.Duration
}

// NewRedisDedup creates a Redis-backed dedup tier. Keys expire after ttl.
func NewRedisDedup(client redis.Cmdable, prefix string, ttl time.Duration) *RedisDedup {
	if prefix == "" {
		prefix = "copytrader:seen:"
	}
	if ttl <= 0 {
		ttl = 24 * time.Hour
	}
	return &RedisDedup{client: client, prefix: prefix, ttl: ttl}
}

// Seen implements Deduper.
func (d *RedisDedup) Seen(ctx context.Context, key string) (bool, error) {
	set, err := d.client.SetNX(ctx, d.prefix+key, 1, d.ttl).Result()
	if err != nil {
		return false, fmt.Errorf("redis setnx: %w", err)
	}
	if !set {
		observability.RecordDuplicate("redis")
	}
	return !set, nil
}

// TieredDedup consults a local set first and a shared set second.
// Errors from the shared tier are logged and treated as unseen; the ledger
// idempotency check still guards against a duplicate submission.
type TieredDedup struct {
	local  Deduper
	shared Deduper
	logger *zap.Logger
}

// NewTieredDedup combines a local and a shared tier. A nil shared tier is allowed.
func NewTieredDedup(local, shared Deduper, logger *zap.Logger) *TieredDedup {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &TieredDedup{local: local, shared: shared, logger: logger}
}

// Seen implements Deduper.
func (d *TieredDedup) Seen(ctx context.Context, key string) (bool, error) {
	seen, err := d.local.Seen(ctx, key)
	if err != nil || seen {
		return seen, err
	}
	if d.shared == nil {
		return false, nil
	}
	seen, err = d.shared.Seen(ctx, key)
	if err != nil {
		d.logger.Warn("shared dedup unavailable", zap.String("key", key), zap.Error(err))
		return false, nil
	}
	return seen, nil
}
