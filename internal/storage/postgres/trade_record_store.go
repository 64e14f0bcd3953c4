package postgres

import (
	"context"
	"fmt"
	"math/big"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgtype"
	"github.com/shopspring/decimal"

	"solana-copy-trader/internal/domain"
	"solana-copy-trader/internal/storage"
)

// TradeRecordStore implements storage.TradeRecordStore using PostgreSQL.
type TradeRecordStore struct {
	pool *Pool
}

// NewTradeRecordStore creates a new TradeRecordStore.
func NewTradeRecordStore(pool *Pool) *TradeRecordStore {
	return &TradeRecordStore{pool: pool}
}

// Compile-time interface check.
var _ storage.TradeRecordStore = (*TradeRecordStore)(nil)

const tradeRecordColumns = `
	event_id, original_signature, copy_signature,
	wallet, protocol, direction,
	input_mint, output_mint, input_amount, output_amount, price,
	amount_sol, status, error, attempts,
	slot, detected_at, completed_at
`

// Insert adds a new record. Returns ErrDuplicateKey if event_id exists.
// The row is committed before Insert returns.
func (s *TradeRecordStore) Insert(ctx context.Context, r *domain.TradeRecord) error {
	if err := storage.ValidateRecord(r); err != nil {
		return err
	}

	query := `
		INSERT INTO trade_records (` + tradeRecordColumns + `) VALUES (
			$1, $2, $3,
			$4, $5, $6,
			$7, $8, $9, $10, $11,
			$12, $13, $14, $15,
			$16, $17, $18
		)
	`

	_, err := s.pool.Exec(ctx, query,
		r.EventID, r.OriginalSignature, r.CopySignature,
		r.Wallet, string(r.Protocol), string(r.Direction),
		r.InputMint, r.OutputMint, uint64ToNumeric(r.InputAmount), uint64ToNumeric(r.OutputAmount), r.Price,
		decimalToNumeric(r.AmountSOL), string(r.Status), r.Error, r.Attempts,
		r.Slot, r.DetectedAt, r.CompletedAt,
	)
	if err != nil {
		if isDuplicateKeyError(err) {
			return storage.ErrDuplicateKey
		}
		return fmt.Errorf("insert trade record: %w", err)
	}
	return nil
}

// GetByEventID retrieves a record by its event ID. Returns ErrNotFound if not exists.
func (s *TradeRecordStore) GetByEventID(ctx context.Context, eventID string) (*domain.TradeRecord, error) {
	query := `SELECT ` + tradeRecordColumns + ` FROM trade_records WHERE event_id = $1`

	row := s.pool.QueryRow(ctx, query, eventID)
	r, err := scanTradeRecord(row)
	if err != nil {
		if isNotFoundError(err) {
			return nil, storage.ErrNotFound
		}
		return nil, fmt.Errorf("get trade record by event id: %w", err)
	}
	return r, nil
}

// GetByOriginalSignature retrieves all records for a source transaction.
func (s *TradeRecordStore) GetByOriginalSignature(ctx context.Context, signature string) ([]*domain.TradeRecord, error) {
	query := `
		SELECT ` + tradeRecordColumns + `
		FROM trade_records
		WHERE original_signature = $1
		ORDER BY detected_at ASC, event_id ASC
	`

	rows, err := s.pool.Query(ctx, query, signature)
	if err != nil {
		return nil, fmt.Errorf("query trade records by signature: %w", err)
	}
	defer rows.Close()

	return collectTradeRecords(rows)
}

// List returns the most recent records first.
func (s *TradeRecordStore) List(ctx context.Context, limit int) ([]*domain.TradeRecord, error) {
	query := `
		SELECT ` + tradeRecordColumns + `
		FROM trade_records
		ORDER BY completed_at DESC, event_id ASC
	`
	var args []any
	if limit > 0 {
		query += ` LIMIT $1`
		args = append(args, limit)
	}

	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list trade records: %w", err)
	}
	defer rows.Close()

	return collectTradeRecords(rows)
}

// Stats summarizes all stored records.
func (s *TradeRecordStore) Stats(ctx context.Context) (*domain.LedgerStats, error) {
	query := `
		SELECT
			status,
			COUNT(*),
			COALESCE(MAX(completed_at), 0),
			COALESCE(SUM(amount_sol) FILTER (WHERE status = 'SUCCEEDED'), 0)
		FROM trade_records
		GROUP BY status
	`

	rows, err := s.pool.Query(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("query trade record stats: %w", err)
	}
	defer rows.Close()

	b := storage.NewStatsBuilder()
	for rows.Next() {
		var (
			status    string
			count     int64
			last      int64
			volumeNum pgtype.Numeric
		)
		if err := rows.Scan(&status, &count, &last, &volumeNum); err != nil {
			return nil, fmt.Errorf("scan trade record stats: %w", err)
		}
		b.AddCount(domain.RecordStatus(status), count, last)
		b.AddVolume(numericToDecimal(volumeNum))
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate trade record stats: %w", err)
	}

	return b.Build(), nil
}

// Close is a no-op; the pool is owned by the caller.
func (s *TradeRecordStore) Close() error { return nil }

// scanTradeRecord scans a single row into TradeRecord.
func scanTradeRecord(row pgx.Row) (*domain.TradeRecord, error) {
	var (
		r                         domain.TradeRecord
		protocol, direction       string
		status                    string
		inputAmount, outputAmount pgtype.Numeric
		amountSOL                 pgtype.Numeric
	)

	err := row.Scan(
		&r.EventID, &r.OriginalSignature, &r.CopySignature,
		&r.Wallet, &protocol, &direction,
		&r.InputMint, &r.OutputMint, &inputAmount, &outputAmount, &r.Price,
		&amountSOL, &status, &r.Error, &r.Attempts,
		&r.Slot, &r.DetectedAt, &r.CompletedAt,
	)
	if err != nil {
		return nil, err
	}

	r.Protocol = domain.ProtocolKind(protocol)
	r.Direction = domain.Direction(direction)
	r.Status = domain.RecordStatus(status)
	r.InputAmount = numericToUint64(inputAmount)
	r.OutputAmount = numericToUint64(outputAmount)
	r.AmountSOL = numericToDecimal(amountSOL)
	return &r, nil
}

func collectTradeRecords(rows pgx.Rows) ([]*domain.TradeRecord, error) {
	result := make([]*domain.TradeRecord, 0)
	for rows.Next() {
		r, err := scanTradeRecord(rows)
		if err != nil {
			return nil, fmt.Errorf("scan trade record: %w", err)
		}
		result = append(result, r)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate trade records: %w", err)
	}
	return result, nil
}

func uint64ToNumeric(v uint64) pgtype.Numeric {
	return pgtype.Numeric{Int: new(big.Int).SetUint64(v), Exp: 0, Valid: true}
}

func decimalToNumeric(d decimal.Decimal) pgtype.Numeric {
	return pgtype.Numeric{Int: d.Coefficient(), Exp: d.Exponent(), Valid: true}
}

func numericToDecimal(n pgtype.Numeric) decimal.Decimal {
	if !n.Valid || n.Int == nil {
		return decimal.Zero
	}
	return decimal.NewFromBigInt(n.Int, n.Exp)
}

func numericToUint64(n pgtype.Numeric) uint64 {
	return numericToDecimal(n).BigInt().Uint64()
}
