package executor

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"

	"solana-copy-trader/internal/decoder"
	"solana-copy-trader/internal/domain"
	"solana-copy-trader/internal/normalizer"
	"solana-copy-trader/internal/solana"
)

// memLedger is an in-memory Recorder.
type memLedger struct {
	mu      sync.Mutex
	records []*domain.TradeRecord
	failErr error
}

func (l *memLedger) Append(_ context.Context, r *domain.TradeRecord) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.failErr != nil {
		return l.failErr
	}
	for _, existing := range l.records {
		if existing.EventID == r.EventID {
			return errors.New("duplicate event")
		}
	}
	l.records = append(l.records, r)
	return nil
}

func (l *memLedger) HasEvent(_ context.Context, eventID string) (bool, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	for _, r := range l.records {
		if r.EventID == eventID {
			return true, nil
		}
	}
	return false, nil
}

func (l *memLedger) all() []*domain.TradeRecord {
	l.mu.Lock()
	defer l.mu.Unlock()
	return append([]*domain.TradeRecord(nil), l.records...)
}

func dec(s string) decimal.Decimal {
	return decimal.RequireFromString(s)
}

func testPolicy() domain.ExecutionPolicy {
	return domain.ExecutionPolicy{
		Enabled:            true,
		MinTradeAmount:     dec("0.01"),
		MaxTradeAmount:     dec("10"),
		MaxPositionSize:    dec("1"),
		SlippageTolerance:  dec("0.01"),
		GasPriceMultiplier: dec("1.5"),
		BasePriorityFee:    10_000,
		ComputeUnitLimit:   200_000,
	}
}

// fixtureEvent normalizes a documented decoder fixture.
func fixtureEvent(t *testing.T, name string) *domain.TradeEvent {
	t.Helper()
	n, err := normalizer.New(normalizer.Options{})
	require.NoError(t, err)
	for _, f := range decoder.Fixtures() {
		if f.Name != name {
			continue
		}
		u := f.Update
		events, err := n.Normalize(context.Background(), &u)
		require.NoError(t, err)
		require.Len(t, events, 1)
		return events[0]
	}
	t.Fatalf("fixture %s not found", name)
	return nil
}

func copyWallet(t *testing.T) *solana.Keypair {
	t.Helper()
	kp, err := solana.NewRandomKeypair()
	require.NoError(t, err)
	return kp
}
