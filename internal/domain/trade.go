package domain

import "github.com/shopspring/decimal"

// RecordStatus is the terminal outcome of processing a TradeEvent.
type RecordStatus string

const (
	RecordObservedOnly   RecordStatus = "OBSERVED_ONLY"
	RecordSucceeded      RecordStatus = "SUCCEEDED"
	RecordFailed         RecordStatus = "FAILED"
	RecordSizingRejected RecordStatus = "SIZING_REJECTED"
)

// IsValid checks if the status is a known value.
func (s RecordStatus) IsValid() bool {
	switch s {
	case RecordObservedOnly, RecordSucceeded, RecordFailed, RecordSizingRejected:
		return true
	}
	return false
}

// TradeRecord is the persisted outcome of one TradeEvent. Append-only.
// Corresponds to trade_records table.
type TradeRecord struct {
	EventID           string // idempotency key, primary key
	OriginalSignature string
	CopySignature     string // empty when nothing was submitted

	Wallet    string
	Protocol  ProtocolKind
	Direction Direction

	InputMint    string
	OutputMint   string
	InputAmount  uint64 // original, base units
	OutputAmount uint64 // original, base units
	Price        float64

	AmountSOL decimal.Decimal // sized copy amount, zero when not executed
	Status    RecordStatus
	Error     string
	Attempts  int

	Slot        int64
	DetectedAt  int64 // Unix ms
	CompletedAt int64 // Unix ms
}

// LedgerStats summarizes the records held by a ledger.
type LedgerStats struct {
	Total          int64
	ByStatus       map[RecordStatus]int64
	CopiedVolume   decimal.Decimal // SOL, succeeded records only
	SuccessRate    float64         // succeeded / (succeeded + failed)
	LastRecordedAt int64
}
