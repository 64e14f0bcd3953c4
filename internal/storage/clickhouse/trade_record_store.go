package clickhouse

import (
	"context"
	"fmt"
	"time"

	"github.com/shopspring/decimal"

	"solana-copy-trader/internal/domain"
	"solana-copy-trader/internal/observability"
	"solana-copy-trader/internal/storage"
)

// TradeRecordStore mirrors ledger records into ClickHouse for analytics.
// It is a storage.TradeRecordSink, not a ledger of record: MergeTree does
// not enforce uniqueness, so a re-sent record is collapsed on merge.
type TradeRecordStore struct {
	conn *Conn
}

// NewTradeRecordStore creates a new TradeRecordStore.
func NewTradeRecordStore(conn *Conn) *TradeRecordStore {
	return &TradeRecordStore{conn: conn}
}

// Compile-time interface check.
var _ storage.TradeRecordSink = (*TradeRecordStore)(nil)

// Insert adds one record.
func (s *TradeRecordStore) Insert(ctx context.Context, r *domain.TradeRecord) error {
	return s.InsertBulk(ctx, []*domain.TradeRecord{r})
}

// InsertBulk adds multiple records in one batch.
func (s *TradeRecordStore) InsertBulk(ctx context.Context, records []*domain.TradeRecord) (err error) {
	start := time.Now()
	defer func() {
		observability.RecordDBQuery("clickhouse", "insert", time.Since(start).Seconds(), err)
	}()

	if len(records) == 0 {
		return nil
	}
	for _, r := range records {
		if err := storage.ValidateRecord(r); err != nil {
			return err
		}
	}

	batch, err := s.conn.PrepareBatch(ctx, `
		INSERT INTO trade_records (
			event_id, original_signature, copy_signature,
			wallet, protocol, direction,
			input_mint, output_mint, input_amount, output_amount, price,
			amount_sol, status, error, attempts,
			slot, detected_at, completed_at
		)
	`)
	if err != nil {
		return fmt.Errorf("prepare batch: %w", err)
	}

	for _, r := range records {
		err = batch.Append(
			r.EventID, r.OriginalSignature, r.CopySignature,
			r.Wallet, string(r.Protocol), string(r.Direction),
			r.InputMint, r.OutputMint, r.InputAmount, r.OutputAmount, r.Price,
			r.AmountSOL, string(r.Status), r.Error, uint32(r.Attempts),
			uint64(r.Slot), uint64(r.DetectedAt), uint64(r.CompletedAt),
		)
		if err != nil {
			return fmt.Errorf("append to batch: %w", err)
		}
	}

	if err := batch.Send(); err != nil {
		return fmt.Errorf("send batch: %w", err)
	}

	return nil
}

// GetByEventID retrieves a mirrored record. Returns ErrNotFound if not exists.
func (s *TradeRecordStore) GetByEventID(ctx context.Context, eventID string) (*domain.TradeRecord, error) {
	rows, err := s.conn.Query(ctx, `
		SELECT
			event_id, original_signature, copy_signature,
			wallet, protocol, direction,
			input_mint, output_mint, input_amount, output_amount, price,
			amount_sol, status, error, attempts,
			slot, detected_at, completed_at
		FROM trade_records FINAL
		WHERE event_id = ?
		LIMIT 1
	`, eventID)
	if err != nil {
		return nil, fmt.Errorf("query trade record: %w", err)
	}
	defer rows.Close()

	if !rows.Next() {
		if err := rows.Err(); err != nil {
			return nil, fmt.Errorf("iterate trade record: %w", err)
		}
		return nil, storage.ErrNotFound
	}

	var (
		r                             domain.TradeRecord
		protocol, direction, status   string
		amountSOL                     decimal.Decimal
		attempts                      uint32
		slot, detectedAt, completedAt uint64
	)
	err = rows.Scan(
		&r.EventID, &r.OriginalSignature, &r.CopySignature,
		&r.Wallet, &protocol, &direction,
		&r.InputMint, &r.OutputMint, &r.InputAmount, &r.OutputAmount, &r.Price,
		&amountSOL, &status, &r.Error, &attempts,
		&slot, &detectedAt, &completedAt,
	)
	if err != nil {
		return nil, fmt.Errorf("scan trade record: %w", err)
	}

	r.Protocol = domain.ProtocolKind(protocol)
	r.Direction = domain.Direction(direction)
	r.Status = domain.RecordStatus(status)
	r.AmountSOL = amountSOL
	r.Attempts = int(attempts)
	r.Slot = int64(slot)
	r.DetectedAt = int64(detectedAt)
	r.CompletedAt = int64(completedAt)
	return &r, nil
}

// CountByStatus returns mirrored record counts per status.
func (s *TradeRecordStore) CountByStatus(ctx context.Context) (map[domain.RecordStatus]uint64, error) {
	rows, err := s.conn.Query(ctx, `
		SELECT status, count() FROM trade_records FINAL GROUP BY status
	`)
	if err != nil {
		return nil, fmt.Errorf("query status counts: %w", err)
	}
	defer rows.Close()

	result := make(map[domain.RecordStatus]uint64)
	for rows.Next() {
		var (
			status string
			count  uint64
		)
		if err := rows.Scan(&status, &count); err != nil {
			return nil, fmt.Errorf("scan status count: %w", err)
		}
		result[domain.RecordStatus(status)] = count
	}
	return result, rows.Err()
}
