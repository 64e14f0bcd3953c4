// Package ledger is the single writer of trade records.
//
// Append is durable before it returns. A store failure flips the ledger into
// a faulted state that rejects further appends until the process restarts;
// callers surface this to the operator. Durable records are then fanned out to
// publishers on a best-effort basis.
package ledger

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"

	"solana-copy-trader/internal/domain"
	"solana-copy-trader/internal/observability"
	"solana-copy-trader/internal/storage"
)

// ErrFaulted is returned by Append and Healthy once a durable write has failed.
var ErrFaulted = errors.New("ledger faulted")

// Options configures a Ledger.
type Options struct {
	Store storage.TradeRecordStore

	// Publishers receive each record after it is durable.
	Publishers []Publisher
	// PublishBuffer bounds records waiting for publication. Default 1024.
	PublishBuffer int
	// PublishTimeout bounds one publish call. Default 5s.
	PublishTimeout time.Duration

	Logger *zap.Logger
}

// Ledger wraps a TradeRecordStore with fault tracking and fan-out.
type Ledger struct {
	store  storage.TradeRecordStore
	logger *zap.Logger

	mu    sync.RWMutex
	fault error

	fanout    *fanout
	closeOnce sync.Once
	closeErr  error
}

// New creates a Ledger.
func New(opts Options) (*Ledger, error) {
	if opts.Store == nil {
		return nil, errors.New("ledger: store is required")
	}
	if opts.Logger == nil {
		opts.Logger = zap.NewNop()
	}
	if opts.PublishBuffer <= 0 {
		opts.PublishBuffer = 1024
	}
	if opts.PublishTimeout <= 0 {
		opts.PublishTimeout = 5 * time.Second
	}

	logger := opts.Logger.Named("ledger")
	l := &Ledger{
		store:  opts.Store,
		logger: logger,
	}
	if len(opts.Publishers) > 0 {
		l.fanout = newFanout(opts.Publishers, opts.PublishBuffer, opts.PublishTimeout, logger)
	}
	return l, nil
}

// Append durably stores r. Records are never updated: appending an event
// that is already stored keeps the first record and returns nil.
func (l *Ledger) Append(ctx context.Context, r *domain.TradeRecord) error {
	if err := l.Healthy(); err != nil {
		return err
	}

	start := time.Now()
	err := l.store.Insert(ctx, r)
	observability.RecordDBQuery("ledger", "append", time.Since(start).Seconds(), err)

	switch {
	case err == nil:
	case errors.Is(err, storage.ErrDuplicateKey):
		l.logger.Warn("record already present, keeping first",
			zap.String("event_id", r.EventID),
			zap.String("status", string(r.Status)),
		)
		return nil
	case errors.Is(err, storage.ErrInvalidInput):
		return fmt.Errorf("append record: %w", err)
	default:
		l.setFault(err)
		l.logger.Error("ledger write failed, refusing further appends",
			zap.String("event_id", r.EventID),
			zap.String("status", string(r.Status)),
			zap.String("copy_signature", r.CopySignature),
			zap.Error(err),
		)
		return fmt.Errorf("%w: %w", ErrFaulted, err)
	}

	var e2e float64
	if r.DetectedAt > 0 {
		e2e = time.Since(time.UnixMilli(r.DetectedAt)).Seconds()
	}
	observability.RecordLedgerAppend(string(r.Status), e2e)

	if l.fanout != nil {
		l.fanout.enqueue(r)
	}
	return nil
}

// HasEvent reports whether a record for eventID is stored.
func (l *Ledger) HasEvent(ctx context.Context, eventID string) (bool, error) {
	_, err := l.store.GetByEventID(ctx, eventID)
	if errors.Is(err, storage.ErrNotFound) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("lookup event %s: %w", eventID, err)
	}
	return true, nil
}

// FindByOriginalSignature returns every record produced by one source transaction.
func (l *Ledger) FindByOriginalSignature(ctx context.Context, signature string) ([]*domain.TradeRecord, error) {
	recs, err := l.store.GetByOriginalSignature(ctx, signature)
	if err != nil {
		return nil, fmt.Errorf("find by signature: %w", err)
	}
	return recs, nil
}

// Recent returns up to limit records, newest first.
func (l *Ledger) Recent(ctx context.Context, limit int) ([]*domain.TradeRecord, error) {
	recs, err := l.store.List(ctx, limit)
	if err != nil {
		return nil, fmt.Errorf("list records: %w", err)
	}
	return recs, nil
}

// Stats summarizes all stored records.
func (l *Ledger) Stats(ctx context.Context) (*domain.LedgerStats, error) {
	stats, err := l.store.Stats(ctx)
	if err != nil {
		return nil, fmt.Errorf("ledger stats: %w", err)
	}
	return stats, nil
}

// Healthy returns nil, or an error wrapping ErrFaulted and the cause.
func (l *Ledger) Healthy() error {
	l.mu.RLock()
	defer l.mu.RUnlock()
	if l.fault != nil {
		return fmt.Errorf("%w: %w", ErrFaulted, l.fault)
	}
	return nil
}

func (l *Ledger) setFault(err error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.fault == nil {
		l.fault = err
		observability.RecordLedgerFault()
	}
}

// Close drains pending publications, then closes publishers and the store.
func (l *Ledger) Close() error {
	l.closeOnce.Do(func() {
		var errs []error
		if l.fanout != nil {
			errs = append(errs, l.fanout.close())
		}
		errs = append(errs, l.store.Close())
		l.closeErr = errors.Join(errs...)
	})
	return l.closeErr
}
