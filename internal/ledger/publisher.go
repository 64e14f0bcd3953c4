package ledger

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"time"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"solana-copy-trader/internal/domain"
	"solana-copy-trader/internal/observability"
)

// Publisher receives records after they are durable. Failures are counted
// and logged but never fault the ledger.
type Publisher interface {
	Name() string
	Publish(ctx context.Context, r *domain.TradeRecord) error
	Close() error
}

// RecordMessage is the wire form of a published record.
type RecordMessage struct {
	EventID           string          `json:"event_id"`
	OriginalSignature string          `json:"original_signature"`
	CopySignature     string          `json:"copy_signature,omitempty"`
	Wallet            string          `json:"wallet"`
	Protocol          string          `json:"protocol"`
	Direction         string          `json:"direction"`
	InputMint         string          `json:"input_mint"`
	OutputMint        string          `json:"output_mint"`
	InputAmount       uint64          `json:"input_amount,string"`
	OutputAmount      uint64          `json:"output_amount,string"`
	Price             float64         `json:"price"`
	AmountSOL         decimal.Decimal `json:"amount_sol"`
	Status            string          `json:"status"`
	Error             string          `json:"error,omitempty"`
	Attempts          int             `json:"attempts"`
	Slot              int64           `json:"slot"`
	DetectedAt        int64           `json:"detected_at"`
	CompletedAt       int64           `json:"completed_at"`
}

// NewRecordMessage converts a record to its wire form.
func NewRecordMessage(r *domain.TradeRecord) RecordMessage {
	return RecordMessage{
		EventID:           r.EventID,
		OriginalSignature: r.OriginalSignature,
		CopySignature:     r.CopySignature,
		Wallet:            r.Wallet,
		Protocol:          string(r.Protocol),
		Direction:         string(r.Direction),
		InputMint:         r.InputMint,
		OutputMint:        r.OutputMint,
		InputAmount:       r.InputAmount,
		OutputAmount:      r.OutputAmount,
		Price:             r.Price,
		AmountSOL:         r.AmountSOL,
		Status:            string(r.Status),
		Error:             r.Error,
		Attempts:          r.Attempts,
		Slot:              r.Slot,
		DetectedAt:        r.DetectedAt,
		CompletedAt:       r.CompletedAt,
	}
}

func encodeRecord(r *domain.TradeRecord) ([]byte, error) {
	return json.Marshal(NewRecordMessage(r))
}

// fanout delivers records to publishers from a single goroutine, in append order.
type fanout struct {
	publishers []Publisher
	timeout    time.Duration
	logger     *zap.Logger

	queue chan *domain.TradeRecord
	wg    sync.WaitGroup

	mu     sync.Mutex
	closed bool
}

func newFanout(publishers []Publisher, buffer int, timeout time.Duration, logger *zap.Logger) *fanout {
	f := &fanout{
		publishers: publishers,
		timeout:    timeout,
		logger:     logger,
		queue:      make(chan *domain.TradeRecord, buffer),
	}
	f.wg.Add(1)
	go f.run()
	return f
}

func (f *fanout) enqueue(r *domain.TradeRecord) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.closed {
		return
	}

	copy := *r
	select {
	case f.queue <- &copy:
	default:
		observability.RecordPublishError("queue_full")
		f.logger.Warn("publish queue full, record not published", zap.String("event_id", r.EventID))
	}
}

func (f *fanout) run() {
	defer f.wg.Done()
	for r := range f.queue {
		for _, p := range f.publishers {
			ctx, cancel := context.WithTimeout(context.Background(), f.timeout)
			err := p.Publish(ctx, r)
			cancel()
			if err != nil {
				observability.RecordPublishError(p.Name())
				f.logger.Warn("record not published",
					zap.String("sink", p.Name()),
					zap.String("event_id", r.EventID),
					zap.Error(err),
				)
			}
		}
	}
}

func (f *fanout) close() error {
	f.mu.Lock()
	if f.closed {
		f.mu.Unlock()
		return nil
	}
	f.closed = true
	close(f.queue)
	f.mu.Unlock()

	f.wg.Wait()

	var errs []error
	for _, p := range f.publishers {
		errs = append(errs, p.Close())
	}
	return errors.Join(errs...)
}
