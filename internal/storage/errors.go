package storage

import "errors"

// Errors shared by every TradeRecordStore backend.
var (
	// ErrNotFound means no record has the requested key.
	ErrNotFound = errors.New("record not found")

	// ErrDuplicateKey means a record with the same event ID is already stored.
	// Records are never overwritten.
	ErrDuplicateKey = errors.New("duplicate event id")

	// ErrInvalidInput means the record failed ValidateRecord.
	ErrInvalidInput = errors.New("invalid record")
)
