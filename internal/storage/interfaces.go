package storage

import (
	"context"

	"solana-copy-trader/internal/domain"
)

// TradeRecordStore is the append-only ledger persistence.
// Implementations must make Insert durable before returning nil.
type TradeRecordStore interface {
	// Insert adds a new record. Returns ErrDuplicateKey if event_id exists.
	Insert(ctx context.Context, r *domain.TradeRecord) error

	// GetByEventID retrieves a record by its event ID. Returns ErrNotFound if not exists.
	GetByEventID(ctx context.Context, eventID string) (*domain.TradeRecord, error)

	// GetByOriginalSignature retrieves every record produced by one source
	// transaction, ordered by detected_at ASC, event_id ASC.
	GetByOriginalSignature(ctx context.Context, signature string) ([]*domain.TradeRecord, error)

	// List returns the most recent records, ordered by completed_at DESC.
	// A limit <= 0 returns all records.
	List(ctx context.Context, limit int) ([]*domain.TradeRecord, error)

	// Stats summarizes all stored records.
	Stats(ctx context.Context) (*domain.LedgerStats, error)

	// Close releases the underlying resources.
	Close() error
}

// TradeRecordSink receives copies of records that are already durable elsewhere.
type TradeRecordSink interface {
	Insert(ctx context.Context, r *domain.TradeRecord) error
}

// ValidateRecord checks the fields every store requires.
func ValidateRecord(r *domain.TradeRecord) error {
	if r == nil || r.EventID == "" || r.OriginalSignature == "" || !r.Status.IsValid() {
		return ErrInvalidInput
	}
	return nil
}
