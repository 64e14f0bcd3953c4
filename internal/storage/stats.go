package storage

import (
	"sort"

	"github.com/shopspring/decimal"

	"solana-copy-trader/internal/domain"
)

// StatsBuilder accumulates LedgerStats over a record scan.
type StatsBuilder struct {
	stats domain.LedgerStats
}

// NewStatsBuilder returns an empty builder.
func NewStatsBuilder() *StatsBuilder {
	return &StatsBuilder{stats: domain.LedgerStats{
		ByStatus:     make(map[domain.RecordStatus]int64),
		CopiedVolume: decimal.Zero,
	}}
}

// Add folds one record into the summary.
func (b *StatsBuilder) Add(r *domain.TradeRecord) {
	b.AddCount(r.Status, 1, r.CompletedAt)
	if r.Status == domain.RecordSucceeded {
		b.stats.CopiedVolume = b.stats.CopiedVolume.Add(r.AmountSOL)
	}
}

// AddCount folds a pre-aggregated status count into the summary.
func (b *StatsBuilder) AddCount(status domain.RecordStatus, n int64, lastCompletedAt int64) {
	b.stats.Total += n
	b.stats.ByStatus[status] += n
	if lastCompletedAt > b.stats.LastRecordedAt {
		b.stats.LastRecordedAt = lastCompletedAt
	}
}

// AddVolume adds copied SOL volume.
func (b *StatsBuilder) AddVolume(v decimal.Decimal) {
	b.stats.CopiedVolume = b.stats.CopiedVolume.Add(v)
}

// Build finalizes the success rate and returns the summary.
func (b *StatsBuilder) Build() *domain.LedgerStats {
	s := b.stats
	ok := s.ByStatus[domain.RecordSucceeded]
	failed := s.ByStatus[domain.RecordFailed]
	if ok+failed > 0 {
		s.SuccessRate = float64(ok) / float64(ok+failed)
	}
	byStatus := make(map[domain.RecordStatus]int64, len(s.ByStatus))
	for k, v := range s.ByStatus {
		byStatus[k] = v
	}
	s.ByStatus = byStatus
	return &s
}

// SortByDetection orders records by detected_at ASC, event_id ASC.
func SortByDetection(records []*domain.TradeRecord) {
	sortRecords(records, func(a, b *domain.TradeRecord) bool {
		if a.DetectedAt != b.DetectedAt {
			return a.DetectedAt < b.DetectedAt
		}
		return a.EventID < b.EventID
	})
}

// SortByCompletionDesc orders records by completed_at DESC, event_id ASC.
func SortByCompletionDesc(records []*domain.TradeRecord) {
	sortRecords(records, func(a, b *domain.TradeRecord) bool {
		if a.CompletedAt != b.CompletedAt {
			return a.CompletedAt > b.CompletedAt
		}
		return a.EventID < b.EventID
	})
}

func sortRecords(records []*domain.TradeRecord, less func(a, b *domain.TradeRecord) bool) {
	sort.Slice(records, func(i, j int) bool { return less(records[i], records[j]) })
}
