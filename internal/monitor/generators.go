package monitor

import (
	"context"
	"time"

	"go.uber.org/zap"

	"solana-copy-trader/internal/domain"
	"solana-copy-trader/internal/observability"
)

// MockSource emits MockCycle trades for one wallet at a fixed interval.
type MockSource struct {
	Wallet   string
	Interval time.Duration
	// Limit stops the source after that many updates. Zero runs until cancelled.
	Limit  int
	Logger *zap.Logger
}

// Compile-time interface check.
var _ Source = (*MockSource)(nil)

// Name implements Source.
func (s *MockSource) Name() string { return "mock" }

// Run implements Source.
func (s *MockSource) Run(ctx context.Context, sink Sink) error {
	logger := s.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	logger = logger.Named("mock-source")

	interval := s.Interval
	if interval <= 0 {
		interval = 5 * time.Second
	}

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for seq := uint64(0); s.Limit == 0 || seq < uint64(s.Limit); seq++ {
		trade := MockCycle[seq%uint64(len(MockCycle))]
		u := SyntheticUpdate(trade, s.Wallet, seq, time.Now())
		logger.Info("emit mock trade", zap.String("trade", trade.String()), zap.String("signature", u.Signature))
		observability.RecordUpdateReceived(s.Name(), u.Slot)
		sink.Push(u)

		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
		}
	}
	return nil
}

// PerfSource emits Count synthetic updates as fast as possible, or at Rate per
// second when Rate is positive. Wallets are used round-robin.
type PerfSource struct {
	Wallets []string
	Count   int
	Rate    int
}

// Compile-time interface check.
var _ Source = (*PerfSource)(nil)

// Name implements Source.
func (s *PerfSource) Name() string { return "perf" }

// Run implements Source.
func (s *PerfSource) Run(ctx context.Context, sink Sink) error {
	if len(s.Wallets) == 0 {
		return nil
	}

	var tick <-chan time.Time
	if s.Rate > 0 {
		ticker := time.NewTicker(time.Second / time.Duration(s.Rate))
		defer ticker.Stop()
		tick = ticker.C
	}

	for i := 0; i < s.Count; i++ {
		if tick != nil {
			select {
			case <-ctx.Done():
				return nil
			case <-tick:
			}
		} else if ctx.Err() != nil {
			return nil
		}

		wallet := s.Wallets[i%len(s.Wallets)]
		trade := MockCycle[i%len(MockCycle)]
		u := SyntheticUpdate(trade, wallet, uint64(i), time.Now())
		sink.Push(u)
	}
	return nil
}

// SliceSource replays a fixed list of updates once.
type SliceSource struct {
	Updates []*domain.RawUpdate
}

// Compile-time interface check.
var _ Source = (*SliceSource)(nil)

// Name implements Source.
func (s *SliceSource) Name() string { return "slice" }

// Run implements Source.
func (s *SliceSource) Run(ctx context.Context, sink Sink) error {
	for _, u := range s.Updates {
		if ctx.Err() != nil {
			return nil
		}
		sink.Push(u)
	}
	return nil
}
