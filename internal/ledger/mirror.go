package ledger

import (
	"context"

	"solana-copy-trader/internal/domain"
	"solana-copy-trader/internal/storage"
)

// SinkPublisher mirrors records into a secondary store such as ClickHouse.
type SinkPublisher struct {
	name  string
	sink  storage.TradeRecordSink
	close func() error
}

// NewSinkPublisher wraps sink. closeFn may be nil.
func NewSinkPublisher(name string, sink storage.TradeRecordSink, closeFn func() error) *SinkPublisher {
	return &SinkPublisher{name: name, sink: sink, close: closeFn}
}

// Name implements Publisher.
func (p *SinkPublisher) Name() string { return p.name }

// Publish implements Publisher.
func (p *SinkPublisher) Publish(ctx context.Context, r *domain.TradeRecord) error {
	return p.sink.Insert(ctx, r)
}

// Close implements Publisher.
func (p *SinkPublisher) Close() error {
	if p.close == nil {
		return nil
	}
	return p.close()
}
