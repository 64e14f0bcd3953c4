package solana

import (
	"crypto/sha256"
	"errors"
	"fmt"

	"filippo.io/edwards25519"
	"github.com/mr-tron/base58"
)

// Program IDs needed to derive token accounts.
const (
	TokenProgramID           = "TokenkegQfeZyiNwAJbNbGKPFXCWuBvf9Ss623VQ5DA"
	AssociatedTokenProgramID = "ATokenGPvbdGVxr1b2hvZbsiqW5xWH25efTNsLJA8knL"
)

// ErrNoViableBump is returned when every bump seed lands on the curve.
var ErrNoViableBump = errors.New("no viable bump seed")

// FindProgramAddress derives a Program Derived Address and its bump seed.
// Bumps are tried from 255 down; the first hash that is off the ed25519 curve wins.
func FindProgramAddress(seeds [][]byte, programID string) (string, uint8, error) {
	program, err := decodePubkey(programID)
	if err != nil {
		return "", 0, fmt.Errorf("program id: %w", err)
	}

	for bump := byte(255); bump > 0; bump-- {
		data := make([]byte, 0, 64+len(program)+21)
		for _, seed := range seeds {
			data = append(data, seed...)
		}
		data = append(data, bump)
		data = append(data, program...)
		data = append(data, []byte("ProgramDerivedAddress")...)

		hash := sha256.Sum256(data)
		if !isOnCurve(hash[:]) {
			return base58.Encode(hash[:]), bump, nil
		}
	}

	return "", 0, ErrNoViableBump
}

// FindAssociatedTokenAddress returns the associated token account of wallet for mint
// under the given token program (SPL Token or Token-2022).
func FindAssociatedTokenAddress(wallet, mint, tokenProgram string) (string, error) {
	if tokenProgram == "" {
		tokenProgram = TokenProgramID
	}

	walletKey, err := decodePubkey(wallet)
	if err != nil {
		return "", fmt.Errorf("wallet: %w", err)
	}
	mintKey, err := decodePubkey(mint)
	if err != nil {
		return "", fmt.Errorf("mint: %w", err)
	}
	programKey, err := decodePubkey(tokenProgram)
	if err != nil {
		return "", fmt.Errorf("token program: %w", err)
	}

	addr, _, err := FindProgramAddress([][]byte{walletKey, programKey, mintKey}, AssociatedTokenProgramID)
	return addr, err
}

// IsOnCurve reports whether a base58 address is a valid ed25519 point,
// i.e. whether a private key can exist for it.
func IsOnCurve(address string) bool {
	b, err := decodePubkey(address)
	if err != nil {
		return false
	}
	return isOnCurve(b)
}

func isOnCurve(point []byte) bool {
	if len(point) != 32 {
		return false
	}
	_, err := new(edwards25519.Point).SetBytes(point)
	return err == nil
}

func decodePubkey(address string) ([]byte, error) {
	b, err := base58.Decode(address)
	if err != nil {
		return nil, err
	}
	if len(b) != 32 {
		return nil, fmt.Errorf("invalid public key length %d", len(b))
	}
	return b, nil
}
