package main

import (
	"bytes"
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"solana-copy-trader/internal/config"
	"solana-copy-trader/internal/decoder"
	"solana-copy-trader/internal/domain"
	"solana-copy-trader/internal/pipeline"
)

func testConfig(t *testing.T) *config.Config {
	t.Helper()
	cfg, err := config.Load(config.Options{})
	require.NoError(t, err)
	cfg.Ledger.Backend = "memory"
	return cfg
}

func TestRunTest_AllFixturesPass(t *testing.T) {
	var out bytes.Buffer
	err := runTest(context.Background(), testConfig(t), &out, zap.NewNop())
	require.NoError(t, err, out.String())

	report := out.String()
	assert.Contains(t, report, "FIXTURE")
	assert.NotContains(t, report, "FAIL")
	for _, f := range decoder.Fixtures() {
		assert.Contains(t, report, f.Name)
	}
}

func TestDiffEvent(t *testing.T) {
	want := &decoder.Expected{
		Protocol:     domain.ProtocolRaydiumCpmm,
		Direction:    domain.DirectionBuy,
		InputMint:    domain.MintWSOL,
		OutputMint:   domain.MintUSDC,
		InputAmount:  100,
		OutputAmount: 200,
	}
	ev := &domain.TradeEvent{
		Protocol:     domain.ProtocolRaydiumCpmm,
		Direction:    domain.DirectionBuy,
		InputMint:    domain.MintWSOL,
		OutputMint:   domain.MintUSDC,
		InputAmount:  100,
		OutputAmount: 200,
	}
	assert.Empty(t, diffEvent(want, ev))

	ev.OutputAmount = 199
	assert.Equal(t, "output amount 199, want 200", diffEvent(want, ev))

	ev.Protocol = domain.ProtocolPumpFun
	assert.Contains(t, diffEvent(want, ev), "protocol")
}

func TestPercentile(t *testing.T) {
	assert.Zero(t, percentile(nil, 0.5))

	sorted := make([]time.Duration, 100)
	for i := range sorted {
		sorted[i] = time.Duration(i+1) * time.Millisecond
	}
	assert.Equal(t, 50*time.Millisecond, percentile(sorted, 0.50))
	assert.Equal(t, 95*time.Millisecond, percentile(sorted, 0.95))
	assert.Equal(t, 99*time.Millisecond, percentile(sorted, 0.99))
	assert.Equal(t, 1*time.Millisecond, percentile(sorted[:1], 0.99))
}

func TestBuildPerfReport(t *testing.T) {
	records := []*domain.TradeRecord{
		{DetectedAt: 1000, CompletedAt: 1030},
		{DetectedAt: 1000, CompletedAt: 1010},
		{DetectedAt: 1000, CompletedAt: 1020},
	}
	stats := &domain.LedgerStats{
		Total:    3,
		ByStatus: map[domain.RecordStatus]int64{domain.RecordSucceeded: 3},
	}
	res := &pipeline.RunResult{Events: 3, Duration: time.Second}

	r := buildPerfReport(4, res, records, stats)
	assert.Equal(t, 4, r.Updates)
	assert.Equal(t, int64(3), r.Events)
	assert.Equal(t, 20*time.Millisecond, r.P50)
	assert.Equal(t, 30*time.Millisecond, r.P99)
	assert.Equal(t, int64(3), r.ByStatus[domain.RecordSucceeded])
}

func TestRunPerf_SmallLoad(t *testing.T) {
	var out bytes.Buffer
	err := runPerf(context.Background(), testConfig(t), perfOptions{Count: 40, Wallets: 2}, &out, zap.NewNop())
	require.NoError(t, err)

	report := out.String()
	assert.Contains(t, report, "updates")
	assert.Contains(t, report, "events/s")
	assert.Contains(t, report, "latency p99")
	assert.Contains(t, report, "dropped")
}

func TestRunPerf_RejectsZeroCount(t *testing.T) {
	err := runPerf(context.Background(), testConfig(t), perfOptions{}, &bytes.Buffer{}, zap.NewNop())
	require.Error(t, err)
}

func TestNewLogger(t *testing.T) {
	logger, err := newLogger(config.LogConfig{Level: "debug"})
	require.NoError(t, err)
	assert.True(t, logger.Core().Enabled(zap.DebugLevel))

	_, err = newLogger(config.LogConfig{Level: "loud"})
	require.Error(t, err)
}

func TestRestoreExposure(t *testing.T) {
	ctx := context.Background()
	l, err := newMemoryLedger(zap.NewNop())
	require.NoError(t, err)
	defer l.Close()

	for i, r := range []struct {
		dir    domain.Direction
		status domain.RecordStatus
		sol    string
	}{
		{domain.DirectionBuy, domain.RecordSucceeded, "0.6"},
		{domain.DirectionBuy, domain.RecordSucceeded, "0.3"},
		{domain.DirectionSell, domain.RecordSucceeded, "0.2"},
		{domain.DirectionBuy, domain.RecordFailed, "0.5"},
	} {
		require.NoError(t, l.Append(ctx, &domain.TradeRecord{
			EventID:           fmt.Sprintf("event-%d", i),
			OriginalSignature: fmt.Sprintf("sig-%d", i),
			Direction:         r.dir,
			Status:            r.status,
			AmountSOL:         decimal.RequireFromString(r.sol),
			DetectedAt:        int64(1000 + i),
			CompletedAt:       int64(1000 + i),
		}))
	}

	exposure, err := restoreExposure(ctx, l, zap.NewNop())
	require.NoError(t, err)
	assert.True(t, exposure.Current().Equal(decimal.RequireFromString("0.7")), "got %s", exposure.Current())
	assert.True(t, exposure.Reserved().IsZero())
}
