// Package idhash computes deterministic identifiers.
package idhash

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
)

// ComputeEventID computes a deterministic event_id using SHA256.
// Formula: SHA256(tx_signature|instruction_index|inner_index)
// inner_index is -1 for top-level instructions.
// Returns hex-encoded hash (64 characters).
func ComputeEventID(
	txSignature string,
	instructionIndex int,
	innerIndex int,
) string {
	data := fmt.Sprintf("%s|%d|%d",
		txSignature,
		instructionIndex,
		innerIndex,
	)

	hash := sha256.Sum256([]byte(data))
	return hex.EncodeToString(hash[:])
}
