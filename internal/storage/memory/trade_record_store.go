package memory

import (
	"context"
	"sync"

	"solana-copy-trader/internal/domain"
	"solana-copy-trader/internal/storage"
)

// TradeRecordStore is an in-memory implementation of storage.TradeRecordStore.
// It is not durable and backs tests and the mock and perf modes.
type TradeRecordStore struct {
	mu    sync.RWMutex
	data  map[string]*domain.TradeRecord // keyed by event_id
	bySig map[string][]string            // original_signature -> event_ids
}

// NewTradeRecordStore creates a new in-memory trade record store.
func NewTradeRecordStore() *TradeRecordStore {
	return &TradeRecordStore{
		data:  make(map[string]*domain.TradeRecord),
		bySig: make(map[string][]string),
	}
}

var _ storage.TradeRecordStore = (*TradeRecordStore)(nil)

// Insert adds a new record. Returns ErrDuplicateKey if event_id exists.
func (s *TradeRecordStore) Insert(_ context.Context, r *domain.TradeRecord) error {
	if err := storage.ValidateRecord(r); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.data[r.EventID]; exists {
		return storage.ErrDuplicateKey
	}

	copy := *r
	s.data[r.EventID] = &copy
	s.bySig[r.OriginalSignature] = append(s.bySig[r.OriginalSignature], r.EventID)
	return nil
}

// GetByEventID retrieves a record by its event ID. Returns ErrNotFound if not exists.
func (s *TradeRecordStore) GetByEventID(_ context.Context, eventID string) (*domain.TradeRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	r, exists := s.data[eventID]
	if !exists {
		return nil, storage.ErrNotFound
	}

	copy := *r
	return &copy, nil
}

// GetByOriginalSignature retrieves all records for a source transaction.
func (s *TradeRecordStore) GetByOriginalSignature(_ context.Context, signature string) ([]*domain.TradeRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	ids := s.bySig[signature]
	result := make([]*domain.TradeRecord, 0, len(ids))
	for _, id := range ids {
		copy := *s.data[id]
		result = append(result, &copy)
	}

	storage.SortByDetection(result)
	return result, nil
}

// List returns the most recent records first.
func (s *TradeRecordStore) List(_ context.Context, limit int) ([]*domain.TradeRecord, error) {
	s.mu.RLock()
	result := make([]*domain.TradeRecord, 0, len(s.data))
	for _, r := range s.data {
		copy := *r
		result = append(result, &copy)
	}
	s.mu.RUnlock()

	storage.SortByCompletionDesc(result)
	if limit > 0 && len(result) > limit {
		result = result[:limit]
	}
	return result, nil
}

// Stats summarizes all stored records.
func (s *TradeRecordStore) Stats(_ context.Context) (*domain.LedgerStats, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	b := storage.NewStatsBuilder()
	for _, r := range s.data {
		b.Add(r)
	}
	return b.Build(), nil
}

// Len returns the number of stored records.
func (s *TradeRecordStore) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.data)
}

// Close is a no-op.
func (s *TradeRecordStore) Close() error { return nil }
