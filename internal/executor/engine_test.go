package executor

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"solana-copy-trader/internal/domain"
)

func newTestEngine(t *testing.T, policy domain.ExecutionPolicy, sub Submitter, ledger Recorder) *Engine {
	t.Helper()
	e, err := New(Options{
		Policy:               policy,
		Submitter:            sub,
		Ledger:               ledger,
		MaxAttempts:          3,
		RetryInitialInterval: time.Millisecond,
		RetryMaxInterval:     5 * time.Millisecond,
		SubmitTimeout:        time.Second,
		Workers:              4,
	})
	require.NoError(t, err)
	return e
}

func TestEngine_PumpBuyMirrored(t *testing.T) {
	ledger := &memLedger{}
	paper := NewPaperSubmitter(copyWallet(t).PublicKey())
	e := newTestEngine(t, testPolicy(), paper, ledger)

	ev := fixtureEvent(t, "pumpfun_buy")
	rec, err := e.Handle(context.Background(), ev)
	require.NoError(t, err)

	assert.Equal(t, domain.RecordSucceeded, rec.Status)
	assert.True(t, rec.AmountSOL.Equal(dec("0.5")))
	assert.NotEmpty(t, rec.CopySignature)
	assert.Equal(t, 1, rec.Attempts)
	assert.Equal(t, ev.Signature, rec.OriginalSignature)
	assert.Equal(t, domain.DirectionBuy, rec.Direction)

	assert.Equal(t, 1, paper.Attempts())
	assert.Len(t, ledger.all(), 1)
	assert.True(t, e.Exposure().Current().Equal(dec("0.5")))
	assert.True(t, e.Exposure().Reserved().IsZero())
}

func TestEngine_DisabledObservesOnly(t *testing.T) {
	ledger := &memLedger{}
	paper := NewPaperSubmitter(copyWallet(t).PublicKey())
	policy := testPolicy()
	policy.Enabled = false
	e := newTestEngine(t, policy, paper, ledger)

	for _, name := range []string{"pumpfun_buy", "raydium_cpmm_swap_base_input_buy", "raydium_amm_v4_swap_base_in_sell"} {
		rec, err := e.Handle(context.Background(), fixtureEvent(t, name))
		require.NoError(t, err)
		assert.Equal(t, domain.RecordObservedOnly, rec.Status)
		assert.Empty(t, rec.CopySignature)
		assert.Zero(t, rec.Attempts)
	}

	assert.Zero(t, paper.Attempts())
	assert.Len(t, ledger.all(), 3)
}

func TestEngine_DisabledNeedsNoSubmitter(t *testing.T) {
	policy := testPolicy()
	policy.Enabled = false
	_, err := New(Options{Policy: policy, Ledger: &memLedger{}})
	require.NoError(t, err)

	_, err = New(Options{Policy: testPolicy(), Ledger: &memLedger{}})
	require.Error(t, err)
}

func TestEngine_DuplicateEvent(t *testing.T) {
	ledger := &memLedger{}
	paper := NewPaperSubmitter(copyWallet(t).PublicKey())
	e := newTestEngine(t, testPolicy(), paper, ledger)

	ev := fixtureEvent(t, "pumpfun_buy")
	_, err := e.Handle(context.Background(), ev)
	require.NoError(t, err)

	_, err = e.Handle(context.Background(), ev)
	assert.ErrorIs(t, err, ErrAlreadyProcessed)

	assert.Len(t, ledger.all(), 1)
	assert.Len(t, paper.Submitted(), 1)
}

func TestEngine_ConcurrentDuplicates(t *testing.T) {
	ledger := &memLedger{}
	paper := NewPaperSubmitter(copyWallet(t).PublicKey())
	e := newTestEngine(t, testPolicy(), paper, ledger)
	ev := fixtureEvent(t, "pumpfun_buy")

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, _ = e.Handle(context.Background(), ev)
		}()
	}
	wg.Wait()

	assert.Len(t, ledger.all(), 1)
	assert.Len(t, paper.Submitted(), 1)
}

func TestEngine_RetryCap(t *testing.T) {
	ledger := &memLedger{}
	paper := NewPaperSubmitter(copyWallet(t).PublicKey())
	paper.Script(errors.New("timeout"), errors.New("timeout"), errors.New("node is behind"), nil)
	e := newTestEngine(t, testPolicy(), paper, ledger)

	rec, err := e.Handle(context.Background(), fixtureEvent(t, "pumpfun_buy"))
	require.NoError(t, err)

	assert.Equal(t, domain.RecordFailed, rec.Status)
	assert.Equal(t, 3, rec.Attempts)
	assert.Equal(t, "node is behind", rec.Error)
	assert.Empty(t, rec.CopySignature)

	assert.Equal(t, 3, paper.Attempts())
	assert.Empty(t, paper.Submitted())
	assert.Len(t, ledger.all(), 1)
	assert.True(t, e.Exposure().Current().IsZero())
	assert.True(t, e.Exposure().Reserved().IsZero())
}

func TestEngine_TransientThenSuccess(t *testing.T) {
	ledger := &memLedger{}
	paper := NewPaperSubmitter(copyWallet(t).PublicKey())
	paper.Script(errors.New("Blockhash not found"))
	e := newTestEngine(t, testPolicy(), paper, ledger)

	rec, err := e.Handle(context.Background(), fixtureEvent(t, "pumpfun_buy"))
	require.NoError(t, err)

	assert.Equal(t, domain.RecordSucceeded, rec.Status)
	assert.Equal(t, 2, rec.Attempts)
	assert.Len(t, paper.Submitted(), 1)
}

func TestEngine_TerminalNotRetried(t *testing.T) {
	ledger := &memLedger{}
	paper := NewPaperSubmitter(copyWallet(t).PublicKey())
	paper.Script(errors.New("custom program error: 0x1771"))
	e := newTestEngine(t, testPolicy(), paper, ledger)

	rec, err := e.Handle(context.Background(), fixtureEvent(t, "pumpfun_buy"))
	require.NoError(t, err)

	assert.Equal(t, domain.RecordFailed, rec.Status)
	assert.Equal(t, 1, rec.Attempts)
	assert.Equal(t, 1, paper.Attempts())
}

func TestEngine_SizingRejected(t *testing.T) {
	ledger := &memLedger{}
	paper := NewPaperSubmitter(copyWallet(t).PublicKey())
	policy := testPolicy()
	policy.MinTradeAmount = dec("2") // above max position
	e := newTestEngine(t, policy, paper, ledger)

	rec, err := e.Handle(context.Background(), fixtureEvent(t, "pumpfun_buy"))
	require.NoError(t, err)

	assert.Equal(t, domain.RecordSizingRejected, rec.Status)
	assert.Contains(t, rec.Error, ErrSizingRejected.Error())
	assert.Zero(t, paper.Attempts())
	assert.True(t, e.Exposure().Reserved().IsZero())
}

func TestEngine_PositionLimitAcrossEvents(t *testing.T) {
	ledger := &memLedger{}
	paper := NewPaperSubmitter(copyWallet(t).PublicKey())
	e := newTestEngine(t, testPolicy(), paper, ledger)

	// 2 SOL buy is capped to the 1 SOL position
	rec, err := e.Handle(context.Background(), fixtureEvent(t, "raydium_clmm_swap_v2_buy"))
	require.NoError(t, err)
	require.Equal(t, domain.RecordSucceeded, rec.Status)
	assert.True(t, rec.AmountSOL.Equal(dec("1")))

	rec, err = e.Handle(context.Background(), fixtureEvent(t, "pumpfun_buy"))
	require.NoError(t, err)
	assert.Equal(t, domain.RecordSizingRejected, rec.Status)

	// a sell at the limit still unwinds the position
	rec, err = e.Handle(context.Background(), fixtureEvent(t, "pumpfun_sell"))
	require.NoError(t, err)
	require.Equal(t, domain.RecordSucceeded, rec.Status, rec.Error)
	assert.True(t, e.Exposure().Current().Equal(dec("1").Sub(rec.AmountSOL)))

	rec, err = e.Handle(context.Background(), fixtureEvent(t, "raydium_cpmm_swap_base_input_buy"))
	require.NoError(t, err)
	require.Equal(t, domain.RecordSucceeded, rec.Status, "room freed by the sell")
	assert.True(t, rec.AmountSOL.Equal(dec("0.45")))
}

func TestEngine_LedgerFailure(t *testing.T) {
	ledger := &memLedger{failErr: errors.New("disk full")}
	paper := NewPaperSubmitter(copyWallet(t).PublicKey())
	e := newTestEngine(t, testPolicy(), paper, ledger)

	rec, err := e.Handle(context.Background(), fixtureEvent(t, "pumpfun_buy"))
	require.ErrorIs(t, err, ErrLedgerWrite)
	require.NotNil(t, rec)
	assert.Equal(t, domain.RecordSucceeded, rec.Status)
}

func TestEngine_Run(t *testing.T) {
	ledger := &memLedger{}
	paper := NewPaperSubmitter(copyWallet(t).PublicKey())
	e := newTestEngine(t, testPolicy(), paper, ledger)
	// workers run concurrently: the sell must not depend on the buy settling first
	e.exposure = NewExposure(dec("0.5"))

	in := make(chan *domain.TradeEvent, 4)
	in <- fixtureEvent(t, "pumpfun_buy")
	in <- fixtureEvent(t, "pumpfun_buy") // redelivered
	in <- fixtureEvent(t, "raydium_amm_v4_swap_base_in_sell")
	close(in)

	require.NoError(t, e.Run(context.Background(), in))
	assert.Len(t, ledger.all(), 2)
	assert.Len(t, paper.Submitted(), 2)
}

func TestEngine_RunStopsOnLedgerFailure(t *testing.T) {
	ledger := &memLedger{failErr: errors.New("disk full")}
	paper := NewPaperSubmitter(copyWallet(t).PublicKey())
	e := newTestEngine(t, testPolicy(), paper, ledger)

	in := make(chan *domain.TradeEvent, 1)
	in <- fixtureEvent(t, "pumpfun_buy")
	// left open: Run must return on its own

	err := e.Run(context.Background(), in)
	assert.ErrorIs(t, err, ErrLedgerWrite)
}

func TestEngine_ShutdownBetweenRetries(t *testing.T) {
	ledger := &memLedger{}
	paper := NewPaperSubmitter(copyWallet(t).PublicKey())
	paper.Script(errors.New("timeout"), errors.New("timeout"), errors.New("timeout"))

	e, err := New(Options{
		Policy:               testPolicy(),
		Submitter:            paper,
		Ledger:               ledger,
		MaxAttempts:          3,
		RetryInitialInterval: time.Hour,
		RetryMaxInterval:     time.Hour,
	})
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	go func() {
		for paper.Attempts() == 0 {
			time.Sleep(time.Millisecond)
		}
		cancel()
	}()

	rec, err := e.Handle(ctx, fixtureEvent(t, "pumpfun_buy"))
	require.NoError(t, err)
	assert.Equal(t, domain.RecordFailed, rec.Status)
	assert.Equal(t, 1, rec.Attempts)
	assert.Contains(t, rec.Error, "retry abandoned")
	assert.Len(t, ledger.all(), 1, "outcome recorded after shutdown")
}

func TestEngine_RunStartsNothingAfterCancel(t *testing.T) {
	base := fixtureEvent(t, "pumpfun_buy")
	for trial := 0; trial < 20; trial++ {
		ledger := &memLedger{}
		paper := NewPaperSubmitter(copyWallet(t).PublicKey())
		e := newTestEngine(t, testPolicy(), paper, ledger)

		in := make(chan *domain.TradeEvent, 10)
		for i := 0; i < cap(in); i++ {
			ev := *base
			ev.EventID = fmt.Sprintf("%s-%d", base.EventID, i)
			in <- &ev
		}
		close(in)

		ctx, cancel := context.WithCancel(context.Background())
		cancel()

		require.NoError(t, e.Run(ctx, in))
		require.Zero(t, paper.Attempts(), "trial %d", trial)
		require.Empty(t, ledger.all(), "trial %d", trial)
		require.True(t, e.Exposure().Reserved().IsZero())
	}
}

func TestEngine_HandleAfterCancel(t *testing.T) {
	ledger := &memLedger{}
	paper := NewPaperSubmitter(copyWallet(t).PublicKey())
	e := newTestEngine(t, testPolicy(), paper, ledger)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	rec, err := e.Handle(ctx, fixtureEvent(t, "pumpfun_buy"))
	require.ErrorIs(t, err, ErrStopped)
	assert.Nil(t, rec)
	assert.Zero(t, paper.Attempts())
	assert.Empty(t, ledger.all())
}
