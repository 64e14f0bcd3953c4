// Package monitor produces RawUpdates for the watched wallets.
//
// A Source is any producer of updates: the live WebSocket subscription in
// production, or a deterministic generator in test, perf and mock modes.
// Sources push into a Sink, normally a bounded Queue drained by the normalizer.
package monitor

import (
	"context"

	"solana-copy-trader/internal/domain"
)

// Sink accepts updates from a source. Push must not block indefinitely.
type Sink interface {
	Push(u *domain.RawUpdate)
}

// Source produces RawUpdates.
type Source interface {
	// Name identifies the source in logs and metrics.
	Name() string

	// Run pushes updates to sink in arrival order until ctx is done or the
	// source is exhausted. Returns nil on exhaustion or cancellation.
	Run(ctx context.Context, sink Sink) error
}

// SinkFunc adapts a function to Sink.
type SinkFunc func(u *domain.RawUpdate)

// Push calls f(u).
func (f SinkFunc) Push(u *domain.RawUpdate) { f(u) }
