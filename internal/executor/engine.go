// Package executor mirrors trade events through the copy wallet.
//
// The engine sizes each event against the execution policy and the wallet's
// exposure, rebuilds the swap for the copy wallet, submits it with bounded
// retries and hands exactly one TradeRecord per event to the ledger.
package executor

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"solana-copy-trader/internal/domain"
	"solana-copy-trader/internal/observability"
)

// Engine errors.
var (
	// ErrAlreadyProcessed is returned for an event that is ledgered or in flight.
	ErrAlreadyProcessed = errors.New("event already processed")

	// ErrLedgerWrite wraps a failed record append. It stops Run.
	ErrLedgerWrite = errors.New("ledger write failed")

	// ErrStopped is returned for an event that arrived after shutdown began.
	// No order is started and nothing is recorded.
	ErrStopped = errors.New("engine stopped")
)

// Recorder is the ledger as seen by the engine.
type Recorder interface {
	Append(ctx context.Context, r *domain.TradeRecord) error
	HasEvent(ctx context.Context, eventID string) (bool, error)
}

// Options configures an Engine.
type Options struct {
	Policy    domain.ExecutionPolicy
	Submitter Submitter
	Ledger    Recorder
	// Exposure defaults to a fresh owner at zero.
	Exposure *Exposure

	// MaxAttempts bounds submissions per order. Default 3.
	MaxAttempts int
	// RetryInitialInterval is the first backoff delay, doubled per retry. Default 500ms.
	RetryInitialInterval time.Duration
	// RetryMaxInterval caps the backoff delay. Default 5s.
	RetryMaxInterval time.Duration
	// SubmitTimeout bounds one attempt. Default 30s.
	SubmitTimeout time.Duration
	// AppendTimeout bounds one ledger write. Default 10s.
	AppendTimeout time.Duration
	// Workers bounds concurrently handled events. Default 4.
	Workers int

	Logger *zap.Logger
}

// Engine is safe for concurrent use.
type Engine struct {
	policy    domain.ExecutionPolicy
	sizer     *Sizer
	exposure  *Exposure
	submitter Submitter
	ledger    Recorder

	maxAttempts   int
	retryInitial  time.Duration
	retryMax      time.Duration
	submitTimeout time.Duration
	appendTimeout time.Duration
	workers       int

	mu       sync.Mutex
	inflight map[string]struct{}

	logger *zap.Logger
}

// New creates an Engine.
func New(opts Options) (*Engine, error) {
	if opts.Ledger == nil {
		return nil, errors.New("executor: ledger is required")
	}
	if opts.Submitter == nil && opts.Policy.Enabled {
		return nil, errors.New("executor: submitter is required when execution is enabled")
	}

	logger := opts.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	exposure := opts.Exposure
	if exposure == nil {
		exposure = NewExposure(decimal.Zero)
	}

	e := &Engine{
		policy:        opts.Policy,
		sizer:         NewSizer(opts.Policy),
		exposure:      exposure,
		submitter:     opts.Submitter,
		ledger:        opts.Ledger,
		maxAttempts:   opts.MaxAttempts,
		retryInitial:  opts.RetryInitialInterval,
		retryMax:      opts.RetryMaxInterval,
		submitTimeout: opts.SubmitTimeout,
		appendTimeout: opts.AppendTimeout,
		workers:       opts.Workers,
		inflight:      make(map[string]struct{}),
		logger:        logger.Named("executor"),
	}
	if e.maxAttempts <= 0 {
		e.maxAttempts = 3
	}
	if e.retryInitial <= 0 {
		e.retryInitial = 500 * time.Millisecond
	}
	if e.retryMax <= 0 {
		e.retryMax = 5 * time.Second
	}
	if e.submitTimeout <= 0 {
		e.submitTimeout = 30 * time.Second
	}
	if e.appendTimeout <= 0 {
		e.appendTimeout = 10 * time.Second
	}
	if e.workers <= 0 {
		e.workers = 4
	}
	return e, nil
}

// Exposure returns the engine's exposure owner.
func (e *Engine) Exposure() *Exposure {
	return e.exposure
}

// Run handles events from in with a bounded worker pool until in is closed or
// ctx is done, then waits for in-flight events to be recorded. Events still
// buffered in `in` at shutdown are not started.
// Returns the first ledger write failure, if any.
func (e *Engine) Run(ctx context.Context, in <-chan *domain.TradeEvent) error {
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(e.workers)

loop:
	for {
		select {
		case <-gctx.Done():
			break loop
		case ev, ok := <-in:
			if !ok || gctx.Err() != nil {
				break loop
			}
			g.Go(func() error {
				_, err := e.Handle(gctx, ev)
				switch {
				case err == nil:
					return nil
				case errors.Is(err, ErrLedgerWrite):
					return err
				case errors.Is(err, ErrStopped):
					e.logger.Debug("event dropped at shutdown", zap.String("event_id", ev.EventID))
				case errors.Is(err, ErrAlreadyProcessed):
					e.logger.Debug("event already processed", zap.String("event_id", ev.EventID))
				default:
					e.logger.Warn("event not handled", zap.String("event_id", ev.EventID), zap.Error(err))
				}
				return nil
			})
		}
	}

	return g.Wait()
}

// Handle takes ev to a terminal record and appends it to the ledger.
//
// Cancelling ctx stops further retries; the attempt in progress runs to its own
// timeout and the outcome is still recorded. An event handed in after ctx is
// done returns ErrStopped.
func (e *Engine) Handle(ctx context.Context, ev *domain.TradeEvent) (*domain.TradeRecord, error) {
	if err := ctx.Err(); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrStopped, err)
	}
	if !e.claim(ev.EventID) {
		return nil, ErrAlreadyProcessed
	}
	defer e.unclaim(ev.EventID)

	done, err := e.ledger.HasEvent(ctx, ev.EventID)
	if err != nil {
		return nil, fmt.Errorf("ledger lookup: %w", err)
	}
	if done {
		return nil, ErrAlreadyProcessed
	}
	// Last point before exposure is reserved.
	if err := ctx.Err(); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrStopped, err)
	}

	started := time.Now()
	rec := e.process(ctx, ev)
	rec.CompletedAt = time.Now().UnixMilli()

	appendCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), e.appendTimeout)
	defer cancel()
	if err := e.ledger.Append(appendCtx, rec); err != nil {
		e.logger.Error("trade record not persisted",
			zap.String("event_id", rec.EventID),
			zap.String("status", string(rec.Status)),
			zap.String("copy_signature", rec.CopySignature),
			zap.Error(err),
		)
		return rec, fmt.Errorf("%w: %w", ErrLedgerWrite, err)
	}

	observability.RecordOrder(string(rec.Status), time.Since(started).Seconds())
	return rec, nil
}

func (e *Engine) process(ctx context.Context, ev *domain.TradeEvent) *domain.TradeRecord {
	rec := newRecord(ev)
	log := e.logger.With(zap.String("event_id", ev.EventID), zap.String("signature", ev.Signature))

	if !e.policy.Enabled {
		rec.Status = domain.RecordObservedOnly
		log.Info("trade observed", zap.String("direction", ev.Direction.String()))
		return rec
	}

	size, err := e.exposure.Reserve(func(current decimal.Decimal) (decimal.Decimal, error) {
		return e.sizer.Size(ev, current)
	})
	if err != nil {
		rec.Status = domain.RecordSizingRejected
		rec.Error = err.Error()
		log.Info("sizing rejected", zap.Error(err))
		return rec
	}

	order, err := PrepareOrder(ev, size, e.policy)
	if err != nil {
		e.exposure.Release(size)
		rec.Status = domain.RecordSizingRejected
		rec.Error = err.Error()
		log.Info("sizing rejected", zap.Error(err))
		return rec
	}

	run := e.execute(ctx, order)
	rec.Attempts = run.Attempts()

	if run.State() == domain.OrderSucceeded {
		e.exposure.Commit(size, order.Direction)
		rec.Status = domain.RecordSucceeded
		rec.CopySignature = run.Signature()
		rec.AmountSOL = size
		log.Info("copy trade submitted",
			zap.String("copy_signature", rec.CopySignature),
			zap.String("size_sol", size.String()),
			zap.Int("attempts", rec.Attempts),
		)
		return rec
	}

	e.exposure.Release(size)
	rec.Status = domain.RecordFailed
	if err := run.LastError(); err != nil {
		rec.Error = err.Error()
	}
	log.Warn("copy trade failed", zap.Int("attempts", rec.Attempts), zap.String("error", rec.Error))
	return rec
}

// execute drives an order through its attempts. Each attempt gets its own
// timeout detached from ctx; ctx only gates the wait before a retry.
func (e *Engine) execute(ctx context.Context, o *domain.ExecutionOrder) *Order {
	order := NewOrder(o, e.maxAttempts)

	b := backoff.NewExponentialBackOff()
	b.InitialInterval = e.retryInitial
	b.MaxInterval = e.retryMax
	b.Multiplier = 2
	b.MaxElapsedTime = 0

	operation := func() error {
		if err := order.BeginAttempt(); err != nil {
			return backoff.Permanent(err)
		}

		attemptCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), e.submitTimeout)
		sig, err := e.submitter.Submit(attemptCtx, o)
		cancel()

		if err == nil {
			observability.RecordSubmitAttempt("success")
			return order.Succeed(sig)
		}

		class := Classify(err)
		observability.RecordSubmitAttempt(class.String())
		if retry, _ := order.Fail(err, class); retry {
			return err
		}
		return backoff.Permanent(err)
	}

	notify := func(err error, wait time.Duration) {
		e.logger.Warn("submission failed, retrying",
			zap.String("event_id", o.EventID),
			zap.Int("attempt", order.Attempts()),
			zap.Duration("backoff", wait),
			zap.Error(err),
		)
	}

	if err := backoff.RetryNotify(operation, backoff.WithContext(b, ctx), notify); err != nil &&
		order.State() == domain.OrderRetrying {
		// shutdown arrived between attempts
		_, _ = order.Fail(fmt.Errorf("retry abandoned: %w (last: %v)", err, order.LastError()), Terminal)
	}
	return order
}

func (e *Engine) claim(eventID string) bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	if _, ok := e.inflight[eventID]; ok {
		return false
	}
	e.inflight[eventID] = struct{}{}
	return true
}

func (e *Engine) unclaim(eventID string) {
	e.mu.Lock()
	defer e.mu.Unlock()
	delete(e.inflight, eventID)
}

func newRecord(ev *domain.TradeEvent) *domain.TradeRecord {
	return &domain.TradeRecord{
		EventID:           ev.EventID,
		OriginalSignature: ev.Signature,
		Wallet:            ev.Wallet,
		Protocol:          ev.Protocol,
		Direction:         ev.Direction,
		InputMint:         ev.InputMint,
		OutputMint:        ev.OutputMint,
		InputAmount:       ev.InputAmount,
		OutputAmount:      ev.OutputAmount,
		Price:             ev.Price,
		AmountSOL:         decimal.Zero,
		Slot:              ev.Slot,
		DetectedAt:        ev.ReceivedAt,
	}
}
