package main

import (
	"context"
	"fmt"
	"strings"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"solana-copy-trader/internal/config"
	"solana-copy-trader/internal/ledger"
	"solana-copy-trader/internal/normalizer"
	"solana-copy-trader/internal/storage"
	badgerstore "solana-copy-trader/internal/storage/badger"
	chstore "solana-copy-trader/internal/storage/clickhouse"
	"solana-copy-trader/internal/storage/memory"
	"solana-copy-trader/internal/storage/migrations"
	pgstore "solana-copy-trader/internal/storage/postgres"
)

func newLogger(cfg config.LogConfig) (*zap.Logger, error) {
	level, err := zapcore.ParseLevel(cfg.Level)
	if err != nil {
		return nil, fmt.Errorf("parse log level: %w", err)
	}

	zcfg := zap.NewProductionConfig()
	if cfg.Development {
		zcfg = zap.NewDevelopmentConfig()
	}
	zcfg.Level = zap.NewAtomicLevelAt(level)
	return zcfg.Build()
}

// infra holds the shared clients a run opened. Close releases them in reverse order.
type infra struct {
	redis   *redis.Client
	closers []func()
}

func (i *infra) Close() {
	for n := len(i.closers) - 1; n >= 0; n-- {
		i.closers[n]()
	}
	i.closers = nil
}

func (i *infra) redisClient(ctx context.Context, addr string) (*redis.Client, error) {
	if i.redis != nil {
		return i.redis, nil
	}
	client := redis.NewClient(&redis.Options{Addr: addr})
	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("ping redis %s: %w", addr, err)
	}
	i.redis = client
	i.closers = append(i.closers, func() { client.Close() })
	return client, nil
}

// openStore opens the configured ledger backend.
func (i *infra) openStore(ctx context.Context, cfg config.LedgerConfig, logger *zap.Logger) (storage.TradeRecordStore, error) {
	switch cfg.Backend {
	case "memory":
		return memory.NewTradeRecordStore(), nil
	case "badger":
		store, err := badgerstore.Open(cfg.Path)
		if err != nil {
			return nil, err
		}
		logger.Info("ledger opened", zap.String("backend", "badger"), zap.String("path", cfg.Path))
		return store, nil
	case "postgres":
		pool, err := pgstore.NewPool(ctx, cfg.PostgresDSN)
		if err != nil {
			return nil, err
		}
		if err := migrations.RunPostgresMigrations(ctx, pool); err != nil {
			pool.Close()
			return nil, err
		}
		i.closers = append(i.closers, pool.Close)
		logger.Info("ledger opened", zap.String("backend", "postgres"))
		return pgstore.NewTradeRecordStore(pool), nil
	default:
		return nil, fmt.Errorf("unknown ledger backend %q", cfg.Backend)
	}
}

// publishers builds the configured downstream sinks.
func (i *infra) publishers(ctx context.Context, cfg *config.Config, logger *zap.Logger) ([]ledger.Publisher, error) {
	var pubs []ledger.Publisher
	closeAll := func() {
		for _, p := range pubs {
			p.Close()
		}
	}

	if len(cfg.Kafka.Brokers) > 0 {
		pubs = append(pubs, ledger.NewKafkaPublisher(cfg.Kafka.Brokers, cfg.Kafka.Topic))
		logger.Info("publishing records to kafka",
			zap.String("brokers", strings.Join(cfg.Kafka.Brokers, ",")),
			zap.String("topic", cfg.Kafka.Topic))
	}

	if cfg.Ledger.RedisStream != "" {
		client, err := i.redisClient(ctx, cfg.Normalizer.RedisAddr)
		if err != nil {
			closeAll()
			return nil, err
		}
		pubs = append(pubs, ledger.NewRedisStreamPublisher(client, cfg.Ledger.RedisStream, 0))
		logger.Info("publishing records to redis stream", zap.String("stream", cfg.Ledger.RedisStream))
	}

	if cfg.Ledger.ClickhouseDSN != "" {
		conn, err := migrations.RunClickhouseMigrations(ctx, cfg.Ledger.ClickhouseDSN)
		if err != nil {
			closeAll()
			return nil, err
		}
		pubs = append(pubs, ledger.NewSinkPublisher("clickhouse", chstore.NewTradeRecordStore(conn), conn.Close))
		logger.Info("mirroring records to clickhouse")
	}

	return pubs, nil
}

// openLedger opens the store and publishers for backend. The ledger is
// closed by infra.Close.
func (i *infra) openLedger(ctx context.Context, cfg *config.Config, backend string, logger *zap.Logger) (*ledger.Ledger, error) {
	lcfg := cfg.Ledger
	lcfg.Backend = backend

	store, err := i.openStore(ctx, lcfg, logger)
	if err != nil {
		return nil, fmt.Errorf("open ledger: %w", err)
	}
	pubs, err := i.publishers(ctx, cfg, logger)
	if err != nil {
		store.Close()
		return nil, fmt.Errorf("open publishers: %w", err)
	}

	l, err := ledger.New(ledger.Options{
		Store:      store,
		Publishers: pubs,
		Logger:     logger,
	})
	if err != nil {
		store.Close()
		return nil, err
	}
	i.closers = append(i.closers, func() {
		if err := l.Close(); err != nil {
			logger.Warn("close ledger", zap.Error(err))
		}
	})
	return l, nil
}

// dedup builds the signature deduper: an in-process LRU, backed by redis
// when an address is configured.
func (i *infra) dedup(ctx context.Context, cfg config.NormalizerConfig, logger *zap.Logger) (normalizer.Deduper, error) {
	local, err := normalizer.NewLRUDedup(cfg.DedupSize)
	if err != nil {
		return nil, err
	}
	if cfg.RedisAddr == "" {
		return local, nil
	}
	client, err := i.redisClient(ctx, cfg.RedisAddr)
	if err != nil {
		return nil, err
	}
	shared := normalizer.NewRedisDedup(client, "copytrader:seen:", cfg.RedisTTL)
	return normalizer.NewTieredDedup(local, shared, logger), nil
}
