package badger

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"solana-copy-trader/internal/domain"
	"solana-copy-trader/internal/storage"
	"solana-copy-trader/internal/storage/storagetest"
)

func TestTradeRecordStore_Contract(t *testing.T) {
	storagetest.RunTradeRecordStoreTests(t, func(t *testing.T) storage.TradeRecordStore {
		store, err := Open(t.TempDir())
		require.NoError(t, err)
		t.Cleanup(func() { _ = store.Close() })
		return store
	})
}

func TestTradeRecordStore_InMemory(t *testing.T) {
	store, err := Open("")
	require.NoError(t, err)
	defer store.Close()

	ctx := context.Background()
	require.NoError(t, store.Insert(ctx, storagetest.Record("ev-1", "sig-1", domain.RecordObservedOnly, 1)))

	got, err := store.GetByEventID(ctx, "ev-1")
	require.NoError(t, err)
	assert.Equal(t, "sig-1", got.OriginalSignature)
}

func TestTradeRecordStore_SurvivesReopen(t *testing.T) {
	dir := t.TempDir()
	ctx := context.Background()

	store, err := Open(dir)
	require.NoError(t, err)
	require.NoError(t, store.Insert(ctx, storagetest.Record("ev-1", "sig-1", domain.RecordSucceeded, 1000)))
	require.NoError(t, store.Insert(ctx, storagetest.Record("ev-2", "sig-1", domain.RecordFailed, 2000)))
	require.NoError(t, store.Close())

	reopened, err := Open(dir)
	require.NoError(t, err)
	defer reopened.Close()

	got, err := reopened.GetByOriginalSignature(ctx, "sig-1")
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, "ev-1", got[0].EventID)
	assert.Equal(t, "copy-ev-1", got[0].CopySignature)

	err = reopened.Insert(ctx, storagetest.Record("ev-1", "sig-1", domain.RecordSucceeded, 1000))
	assert.ErrorIs(t, err, storage.ErrDuplicateKey)
}

func TestTradeRecordStore_SignaturePrefixIsExact(t *testing.T) {
	store, err := Open(t.TempDir())
	require.NoError(t, err)
	defer store.Close()

	ctx := context.Background()
	require.NoError(t, store.Insert(ctx, storagetest.Record("ev-1", "abc", domain.RecordObservedOnly, 1)))
	require.NoError(t, store.Insert(ctx, storagetest.Record("ev-2", "abcd", domain.RecordObservedOnly, 2)))

	got, err := store.GetByOriginalSignature(ctx, "abc")
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, "ev-1", got[0].EventID)
}
