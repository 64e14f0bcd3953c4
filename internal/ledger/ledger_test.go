package ledger

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"solana-copy-trader/internal/domain"
	"solana-copy-trader/internal/executor"
	"solana-copy-trader/internal/observability"
	"solana-copy-trader/internal/storage"
	"solana-copy-trader/internal/storage/memory"
	"solana-copy-trader/internal/storage/storagetest"
)

var _ executor.Recorder = (*Ledger)(nil)

// failingStore fails inserts once armed.
type failingStore struct {
	*memory.TradeRecordStore
	fail    atomic.Bool
	inserts atomic.Int32
}

func (s *failingStore) Insert(ctx context.Context, r *domain.TradeRecord) error {
	s.inserts.Add(1)
	if s.fail.Load() {
		return errors.New("disk full")
	}
	return s.TradeRecordStore.Insert(ctx, r)
}

// capturePublisher records what it receives.
type capturePublisher struct {
	name string
	err  error

	mu      sync.Mutex
	records []*domain.TradeRecord
	closed  bool
}

func (p *capturePublisher) Name() string { return p.name }

func (p *capturePublisher) Publish(_ context.Context, r *domain.TradeRecord) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.records = append(p.records, r)
	return p.err
}

func (p *capturePublisher) Close() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.closed = true
	return nil
}

func (p *capturePublisher) ids() []string {
	p.mu.Lock()
	defer p.mu.Unlock()
	ids := make([]string, len(p.records))
	for i, r := range p.records {
		ids[i] = r.EventID
	}
	return ids
}

func newTestLedger(t *testing.T, store storage.TradeRecordStore, pubs ...Publisher) *Ledger {
	t.Helper()
	l, err := New(Options{Store: store, Publishers: pubs})
	require.NoError(t, err)
	return l
}

func TestNew_RequiresStore(t *testing.T) {
	_, err := New(Options{})
	assert.Error(t, err)
}

func TestLedger_AppendAndLookup(t *testing.T) {
	ctx := context.Background()
	l := newTestLedger(t, memory.NewTradeRecordStore())
	defer l.Close()

	require.NoError(t, l.Append(ctx, storagetest.Record("ev-1", "sig-1", domain.RecordSucceeded, 1000)))
	require.NoError(t, l.Append(ctx, storagetest.Record("ev-2", "sig-1", domain.RecordFailed, 2000)))

	ok, err := l.HasEvent(ctx, "ev-1")
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = l.HasEvent(ctx, "ev-missing")
	require.NoError(t, err)
	assert.False(t, ok)

	recs, err := l.FindByOriginalSignature(ctx, "sig-1")
	require.NoError(t, err)
	require.Len(t, recs, 2)
	assert.Equal(t, "ev-1", recs[0].EventID)

	recent, err := l.Recent(ctx, 1)
	require.NoError(t, err)
	require.Len(t, recent, 1)
	assert.Equal(t, "ev-2", recent[0].EventID)

	stats, err := l.Stats(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(2), stats.Total)
	assert.InDelta(t, 0.5, stats.SuccessRate, 1e-9)
	assert.NoError(t, l.Healthy())
}

func TestLedger_DuplicateAppendKeepsFirst(t *testing.T) {
	ctx := context.Background()
	l := newTestLedger(t, memory.NewTradeRecordStore())
	defer l.Close()

	require.NoError(t, l.Append(ctx, storagetest.Record("ev-1", "sig-1", domain.RecordObservedOnly, 1000)))
	require.NoError(t, l.Append(ctx, storagetest.Record("ev-1", "sig-1", domain.RecordSucceeded, 1000)))

	recs, err := l.FindByOriginalSignature(ctx, "sig-1")
	require.NoError(t, err)
	require.Len(t, recs, 1)
	assert.Equal(t, domain.RecordObservedOnly, recs[0].Status)
	assert.NoError(t, l.Healthy())
}

func TestLedger_InvalidRecordDoesNotFault(t *testing.T) {
	l := newTestLedger(t, memory.NewTradeRecordStore())
	defer l.Close()

	err := l.Append(context.Background(), &domain.TradeRecord{})
	assert.ErrorIs(t, err, storage.ErrInvalidInput)
	assert.NoError(t, l.Healthy())
}

func TestLedger_WriteFailureFaults(t *testing.T) {
	ctx := context.Background()
	store := &failingStore{TradeRecordStore: memory.NewTradeRecordStore()}
	l := newTestLedger(t, store)
	defer l.Close()

	faults := testutil.ToFloat64(observability.DefaultMetrics.LedgerErrors)

	require.NoError(t, l.Append(ctx, storagetest.Record("ev-1", "sig-1", domain.RecordSucceeded, 1000)))

	store.fail.Store(true)
	err := l.Append(ctx, storagetest.Record("ev-2", "sig-2", domain.RecordSucceeded, 2000))
	require.ErrorIs(t, err, ErrFaulted)
	assert.Contains(t, err.Error(), "disk full")
	assert.Equal(t, faults+1, testutil.ToFloat64(observability.DefaultMetrics.LedgerErrors))
	assert.Equal(t, float64(1), testutil.ToFloat64(observability.DefaultMetrics.LedgerFaulted))

	health := l.Healthy()
	require.ErrorIs(t, health, ErrFaulted)

	// Faulted ledger rejects appends without touching the store, even once it recovers.
	store.fail.Store(false)
	before := store.inserts.Load()
	err = l.Append(ctx, storagetest.Record("ev-3", "sig-3", domain.RecordSucceeded, 3000))
	require.ErrorIs(t, err, ErrFaulted)
	assert.Equal(t, before, store.inserts.Load())

	// Reads keep working.
	ok, err := l.HasEvent(ctx, "ev-1")
	require.NoError(t, err)
	assert.True(t, ok)
}

func TestLedger_PublishesAfterAppendInOrder(t *testing.T) {
	ctx := context.Background()
	pub := &capturePublisher{name: "capture"}
	l := newTestLedger(t, memory.NewTradeRecordStore(), pub)

	require.NoError(t, l.Append(ctx, storagetest.Record("ev-1", "sig-1", domain.RecordSucceeded, 1000)))
	require.NoError(t, l.Append(ctx, storagetest.Record("ev-2", "sig-2", domain.RecordFailed, 2000)))
	require.NoError(t, l.Append(ctx, storagetest.Record("ev-2", "sig-2", domain.RecordFailed, 2000)))
	require.NoError(t, l.Close())

	assert.Equal(t, []string{"ev-1", "ev-2"}, pub.ids(), "duplicates are not republished")
	assert.True(t, pub.closed)
}

func TestLedger_FailedStoreIsNotPublished(t *testing.T) {
	ctx := context.Background()
	store := &failingStore{TradeRecordStore: memory.NewTradeRecordStore()}
	store.fail.Store(true)
	pub := &capturePublisher{name: "capture"}
	l := newTestLedger(t, store, pub)

	require.Error(t, l.Append(ctx, storagetest.Record("ev-1", "sig-1", domain.RecordSucceeded, 1000)))
	require.NoError(t, l.Close())

	assert.Empty(t, pub.ids())
}

func TestLedger_PublishFailureIsBestEffort(t *testing.T) {
	ctx := context.Background()
	failing := &capturePublisher{name: "broken", err: errors.New("broker down")}
	ok := &capturePublisher{name: "ok"}
	l := newTestLedger(t, memory.NewTradeRecordStore(), failing, ok)

	counter := observability.DefaultMetrics.PublishErrors.WithLabelValues("broken")
	before := testutil.ToFloat64(counter)

	require.NoError(t, l.Append(ctx, storagetest.Record("ev-1", "sig-1", domain.RecordSucceeded, 1000)))
	require.NoError(t, l.Close())

	assert.Equal(t, before+1, testutil.ToFloat64(counter))
	assert.Equal(t, []string{"ev-1"}, ok.ids())
	assert.NoError(t, l.Healthy())
}

func TestLedger_CloseIsIdempotent(t *testing.T) {
	l := newTestLedger(t, memory.NewTradeRecordStore(), &capturePublisher{name: "capture"})
	require.NoError(t, l.Close())
	require.NoError(t, l.Close())
}
