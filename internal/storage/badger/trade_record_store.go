// Package badger is the embedded, single-node ledger backend.
package badger

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/dgraph-io/badger/v3"

	"solana-copy-trader/internal/domain"
	"solana-copy-trader/internal/storage"
)

const (
	recordPrefix    = "rec/"
	signaturePrefix = "sig/"
)

// TradeRecordStore implements storage.TradeRecordStore on BadgerDB.
// Writes are synced to disk before Insert returns.
type TradeRecordStore struct {
	db *badger.DB
}

// Open opens or creates a store at dir. An empty dir opens an in-memory
// database, which is useful for tests but not durable.
func Open(dir string) (*TradeRecordStore, error) {
	opts := badger.DefaultOptions(dir).WithSyncWrites(true)
	if dir == "" {
		opts = badger.DefaultOptions("").WithInMemory(true)
	}
	opts.Logger = nil

	db, err := badger.Open(opts)
	if err != nil {
		return nil, fmt.Errorf("open badger db: %w", err)
	}
	return &TradeRecordStore{db: db}, nil
}

var _ storage.TradeRecordStore = (*TradeRecordStore)(nil)

func recordKey(eventID string) []byte {
	return []byte(recordPrefix + eventID)
}

func signatureKey(signature, eventID string) []byte {
	return []byte(signaturePrefix + signature + "/" + eventID)
}

// Insert adds a new record. Returns ErrDuplicateKey if event_id exists.
func (s *TradeRecordStore) Insert(_ context.Context, r *domain.TradeRecord) error {
	if err := storage.ValidateRecord(r); err != nil {
		return err
	}
	val, err := json.Marshal(r)
	if err != nil {
		return fmt.Errorf("encode trade record: %w", err)
	}

	err = s.db.Update(func(txn *badger.Txn) error {
		_, err := txn.Get(recordKey(r.EventID))
		if err == nil {
			return storage.ErrDuplicateKey
		}
		if !errors.Is(err, badger.ErrKeyNotFound) {
			return err
		}
		if err := txn.Set(recordKey(r.EventID), val); err != nil {
			return err
		}
		return txn.Set(signatureKey(r.OriginalSignature, r.EventID), nil)
	})
	if errors.Is(err, badger.ErrConflict) {
		// A concurrent transaction wrote the same key first.
		return storage.ErrDuplicateKey
	}
	if err != nil && !errors.Is(err, storage.ErrDuplicateKey) {
		return fmt.Errorf("insert trade record: %w", err)
	}
	return err
}

// GetByEventID retrieves a record by its event ID. Returns ErrNotFound if not exists.
func (s *TradeRecordStore) GetByEventID(_ context.Context, eventID string) (*domain.TradeRecord, error) {
	var rec *domain.TradeRecord
	err := s.db.View(func(txn *badger.Txn) error {
		var err error
		rec, err = getRecord(txn, eventID)
		return err
	})
	if err != nil {
		return nil, err
	}
	return rec, nil
}

// GetByOriginalSignature retrieves all records for a source transaction.
func (s *TradeRecordStore) GetByOriginalSignature(_ context.Context, signature string) ([]*domain.TradeRecord, error) {
	result := make([]*domain.TradeRecord, 0)
	prefix := []byte(signaturePrefix + signature + "/")

	err := s.db.View(func(txn *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.PrefetchValues = false
		it := txn.NewIterator(opts)
		defer it.Close()

		for it.Seek(prefix); it.ValidForPrefix(prefix); it.Next() {
			eventID := string(it.Item().Key()[len(prefix):])
			rec, err := getRecord(txn, eventID)
			if err != nil {
				return err
			}
			result = append(result, rec)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	storage.SortByDetection(result)
	return result, nil
}

// List returns the most recent records first.
func (s *TradeRecordStore) List(_ context.Context, limit int) ([]*domain.TradeRecord, error) {
	result := make([]*domain.TradeRecord, 0)
	err := s.scan(func(r *domain.TradeRecord) {
		result = append(result, r)
	})
	if err != nil {
		return nil, err
	}

	storage.SortByCompletionDesc(result)
	if limit > 0 && len(result) > limit {
		result = result[:limit]
	}
	return result, nil
}

// Stats summarizes all stored records.
func (s *TradeRecordStore) Stats(_ context.Context) (*domain.LedgerStats, error) {
	b := storage.NewStatsBuilder()
	if err := s.scan(b.Add); err != nil {
		return nil, err
	}
	return b.Build(), nil
}

// Close flushes and closes the database.
func (s *TradeRecordStore) Close() error {
	return s.db.Close()
}

func (s *TradeRecordStore) scan(fn func(*domain.TradeRecord)) error {
	prefix := []byte(recordPrefix)
	err := s.db.View(func(txn *badger.Txn) error {
		it := txn.NewIterator(badger.DefaultIteratorOptions)
		defer it.Close()

		for it.Seek(prefix); it.ValidForPrefix(prefix); it.Next() {
			var rec domain.TradeRecord
			if err := it.Item().Value(func(v []byte) error { return json.Unmarshal(v, &rec) }); err != nil {
				return fmt.Errorf("decode trade record %s: %w", it.Item().Key(), err)
			}
			fn(&rec)
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("scan trade records: %w", err)
	}
	return nil
}

func getRecord(txn *badger.Txn, eventID string) (*domain.TradeRecord, error) {
	item, err := txn.Get(recordKey(eventID))
	if errors.Is(err, badger.ErrKeyNotFound) {
		return nil, storage.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get trade record: %w", err)
	}

	var rec domain.TradeRecord
	if err := item.Value(func(v []byte) error { return json.Unmarshal(v, &rec) }); err != nil {
		return nil, fmt.Errorf("decode trade record: %w", err)
	}
	return &rec, nil
}
