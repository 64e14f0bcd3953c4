// Package pipeline wires Source → Queue → Normalizer → Engine → Ledger.
//
// Cancelling the context passed to Run is the single shutdown signal: the
// source stops, queued updates are abandoned, orders in flight finish their
// current attempt, and Run returns once every record has been written.
// A finite source (test, perf) instead drains the whole pipeline.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"sync/atomic"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"solana-copy-trader/internal/domain"
	"solana-copy-trader/internal/executor"
	"solana-copy-trader/internal/monitor"
	"solana-copy-trader/internal/normalizer"
)

// Options configures a Pipeline.
type Options struct {
	Source     monitor.Source
	Normalizer *normalizer.Normalizer
	Engine     *executor.Engine

	// QueueSize bounds raw updates between source and normalizer.
	QueueSize int
	// EventBuffer bounds trade events between normalizer and engine. Default 256.
	EventBuffer int

	Logger *zap.Logger
}

// Pipeline runs one source through the processing stages.
type Pipeline struct {
	source      monitor.Source
	normalizer  *normalizer.Normalizer
	engine      *executor.Engine
	queue       *monitor.Queue
	eventBuffer int
	logger      *zap.Logger
}

// RunResult summarizes a completed run.
type RunResult struct {
	Source   string
	Events   int64
	Dropped  uint64
	Duration time.Duration
}

// New creates a Pipeline.
func New(opts Options) (*Pipeline, error) {
	if opts.Source == nil {
		return nil, errors.New("pipeline: source is required")
	}
	if opts.Normalizer == nil {
		return nil, errors.New("pipeline: normalizer is required")
	}
	if opts.Engine == nil {
		return nil, errors.New("pipeline: engine is required")
	}
	if opts.Logger == nil {
		opts.Logger = zap.NewNop()
	}
	if opts.EventBuffer <= 0 {
		opts.EventBuffer = 256
	}

	return &Pipeline{
		source:      opts.Source,
		normalizer:  opts.Normalizer,
		engine:      opts.Engine,
		queue:       monitor.NewQueue(opts.QueueSize, opts.Logger),
		eventBuffer: opts.EventBuffer,
		logger:      opts.Logger.Named("pipeline"),
	}, nil
}

// Queue exposes the raw update queue for health reporting.
func (p *Pipeline) Queue() *monitor.Queue {
	return p.queue
}

// Run processes updates until the source is exhausted, ctx is cancelled,
// or a ledger write fails. A ledger failure is returned; shutdown is not an error.
func (p *Pipeline) Run(ctx context.Context) (*RunResult, error) {
	started := time.Now()
	g, gctx := errgroup.WithContext(ctx)

	events := make(chan *domain.TradeEvent, p.eventBuffer)
	toEngine := make(chan *domain.TradeEvent, p.eventBuffer)
	var detected atomic.Int64

	p.logger.Info("pipeline starting", zap.String("source", p.source.Name()))

	g.Go(func() error {
		defer p.queue.Close()
		if err := p.source.Run(gctx, p.queue); err != nil {
			return fmt.Errorf("source %s: %w", p.source.Name(), err)
		}
		p.logger.Info("source stopped", zap.String("source", p.source.Name()))
		return nil
	})

	g.Go(func() error {
		return p.normalizer.Run(gctx, p.queue, events)
	})

	g.Go(func() error {
		defer close(toEngine)
		for ev := range events {
			detected.Add(1)
			select {
			case toEngine <- ev:
			case <-gctx.Done():
				return nil
			}
		}
		return nil
	})

	g.Go(func() error {
		return p.engine.Run(gctx, toEngine)
	})

	err := g.Wait()
	result := &RunResult{
		Source:   p.source.Name(),
		Events:   detected.Load(),
		Dropped:  p.queue.Dropped(),
		Duration: time.Since(started),
	}

	if err != nil {
		p.logger.Error("pipeline stopped on error", zap.Error(err))
		return result, err
	}
	p.logger.Info("pipeline stopped",
		zap.Int64("events", result.Events),
		zap.Uint64("dropped", result.Dropped),
		zap.Duration("duration", result.Duration),
	)
	return result, nil
}
