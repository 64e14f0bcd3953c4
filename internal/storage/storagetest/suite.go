// Package storagetest holds a behavioral suite shared by every
// storage.TradeRecordStore backend.
package storagetest

import (
	"context"
	"fmt"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"solana-copy-trader/internal/domain"
	"solana-copy-trader/internal/storage"
)

// Record builds a valid record for tests.
func Record(eventID, signature string, status domain.RecordStatus, detectedAt int64) *domain.TradeRecord {
	r := &domain.TradeRecord{
		EventID:           eventID,
		OriginalSignature: signature,
		Wallet:            "7xKXtg2CW87d97TXJSDpbD5jBkheTqA83TZRuJosgAsU",
		Protocol:          domain.ProtocolRaydiumCpmm,
		Direction:         domain.DirectionBuy,
		InputMint:         domain.MintWSOL,
		OutputMint:        domain.MintUSDC,
		InputAmount:       1_000_000_000,
		OutputAmount:      25_000_000,
		Price:             25,
		AmountSOL:         decimal.Zero,
		Status:            status,
		Attempts:          0,
		Slot:              250_000_000,
		DetectedAt:        detectedAt,
		CompletedAt:       detectedAt + 100,
	}
	if status == domain.RecordSucceeded {
		r.CopySignature = "copy-" + eventID
		r.AmountSOL = decimal.RequireFromString("0.25")
		r.Attempts = 1
	}
	if status == domain.RecordFailed {
		r.Error = "slippage tolerance exceeded"
		r.AmountSOL = decimal.RequireFromString("0.25")
		r.Attempts = 3
	}
	return r
}

// RunTradeRecordStoreTests exercises the TradeRecordStore contract against
// a fresh store returned by newStore for each subtest.
func RunTradeRecordStoreTests(t *testing.T, newStore func(t *testing.T) storage.TradeRecordStore) {
	t.Run("InsertAndGet", func(t *testing.T) {
		store := newStore(t)
		ctx := context.Background()

		rec := Record("ev-1", "sig-1", domain.RecordSucceeded, 1000)
		require.NoError(t, store.Insert(ctx, rec))

		got, err := store.GetByEventID(ctx, "ev-1")
		require.NoError(t, err)
		assert.Equal(t, rec.OriginalSignature, got.OriginalSignature)
		assert.Equal(t, rec.CopySignature, got.CopySignature)
		assert.Equal(t, rec.Protocol, got.Protocol)
		assert.Equal(t, rec.Direction, got.Direction)
		assert.Equal(t, rec.InputAmount, got.InputAmount)
		assert.Equal(t, rec.OutputAmount, got.OutputAmount)
		assert.InDelta(t, rec.Price, got.Price, 1e-9)
		assert.True(t, rec.AmountSOL.Equal(got.AmountSOL), "amount_sol: got %s", got.AmountSOL)
		assert.Equal(t, rec.Status, got.Status)
		assert.Equal(t, rec.Attempts, got.Attempts)
		assert.Equal(t, rec.Slot, got.Slot)
		assert.Equal(t, rec.DetectedAt, got.DetectedAt)
		assert.Equal(t, rec.CompletedAt, got.CompletedAt)
	})

	t.Run("DuplicateKey", func(t *testing.T) {
		store := newStore(t)
		ctx := context.Background()

		rec := Record("ev-1", "sig-1", domain.RecordObservedOnly, 1000)
		require.NoError(t, store.Insert(ctx, rec))

		changed := *rec
		changed.Status = domain.RecordFailed
		err := store.Insert(ctx, &changed)
		assert.ErrorIs(t, err, storage.ErrDuplicateKey)

		got, err := store.GetByEventID(ctx, "ev-1")
		require.NoError(t, err)
		assert.Equal(t, domain.RecordObservedOnly, got.Status, "append-only: first write wins")
	})

	t.Run("InvalidInput", func(t *testing.T) {
		store := newStore(t)
		ctx := context.Background()

		assert.ErrorIs(t, store.Insert(ctx, nil), storage.ErrInvalidInput)
		assert.ErrorIs(t, store.Insert(ctx, Record("", "sig", domain.RecordFailed, 1)), storage.ErrInvalidInput)
		bad := Record("ev", "sig", domain.RecordFailed, 1)
		bad.Status = "PENDING"
		assert.ErrorIs(t, store.Insert(ctx, bad), storage.ErrInvalidInput)
	})

	t.Run("NotFound", func(t *testing.T) {
		store := newStore(t)
		_, err := store.GetByEventID(context.Background(), "missing")
		assert.ErrorIs(t, err, storage.ErrNotFound)
	})

	t.Run("GetByOriginalSignature", func(t *testing.T) {
		store := newStore(t)
		ctx := context.Background()

		require.NoError(t, store.Insert(ctx, Record("ev-b", "sig-1", domain.RecordSucceeded, 2000)))
		require.NoError(t, store.Insert(ctx, Record("ev-a", "sig-1", domain.RecordFailed, 2000)))
		require.NoError(t, store.Insert(ctx, Record("ev-c", "sig-1", domain.RecordObservedOnly, 1000)))
		require.NoError(t, store.Insert(ctx, Record("ev-d", "sig-2", domain.RecordObservedOnly, 500)))

		got, err := store.GetByOriginalSignature(ctx, "sig-1")
		require.NoError(t, err)
		require.Len(t, got, 3)
		assert.Equal(t, "ev-c", got[0].EventID)
		assert.Equal(t, "ev-a", got[1].EventID)
		assert.Equal(t, "ev-b", got[2].EventID)

		none, err := store.GetByOriginalSignature(ctx, "sig-missing")
		require.NoError(t, err)
		assert.Empty(t, none)
	})

	t.Run("ListNewestFirst", func(t *testing.T) {
		store := newStore(t)
		ctx := context.Background()

		for i := 0; i < 5; i++ {
			rec := Record(fmt.Sprintf("ev-%d", i), fmt.Sprintf("sig-%d", i), domain.RecordObservedOnly, int64(1000*(i+1)))
			require.NoError(t, store.Insert(ctx, rec))
		}

		got, err := store.List(ctx, 2)
		require.NoError(t, err)
		require.Len(t, got, 2)
		assert.Equal(t, "ev-4", got[0].EventID)
		assert.Equal(t, "ev-3", got[1].EventID)

		all, err := store.List(ctx, 0)
		require.NoError(t, err)
		assert.Len(t, all, 5)
	})

	t.Run("Stats", func(t *testing.T) {
		store := newStore(t)
		ctx := context.Background()

		empty, err := store.Stats(ctx)
		require.NoError(t, err)
		assert.Zero(t, empty.Total)
		assert.Zero(t, empty.SuccessRate)

		require.NoError(t, store.Insert(ctx, Record("ev-1", "sig-1", domain.RecordSucceeded, 1000)))
		require.NoError(t, store.Insert(ctx, Record("ev-2", "sig-2", domain.RecordSucceeded, 2000)))
		require.NoError(t, store.Insert(ctx, Record("ev-3", "sig-3", domain.RecordSucceeded, 3000)))
		require.NoError(t, store.Insert(ctx, Record("ev-4", "sig-4", domain.RecordFailed, 4000)))
		require.NoError(t, store.Insert(ctx, Record("ev-5", "sig-5", domain.RecordObservedOnly, 5000)))
		require.NoError(t, store.Insert(ctx, Record("ev-6", "sig-6", domain.RecordSizingRejected, 6000)))

		stats, err := store.Stats(ctx)
		require.NoError(t, err)
		assert.Equal(t, int64(6), stats.Total)
		assert.Equal(t, int64(3), stats.ByStatus[domain.RecordSucceeded])
		assert.Equal(t, int64(1), stats.ByStatus[domain.RecordFailed])
		assert.Equal(t, int64(1), stats.ByStatus[domain.RecordObservedOnly])
		assert.Equal(t, int64(1), stats.ByStatus[domain.RecordSizingRejected])
		assert.InDelta(t, 0.75, stats.SuccessRate, 1e-9)
		assert.True(t, decimal.RequireFromString("0.75").Equal(stats.CopiedVolume), "copied volume: got %s", stats.CopiedVolume)
		assert.Equal(t, int64(6100), stats.LastRecordedAt)
	})
}
