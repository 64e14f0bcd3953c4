package solana

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"strings"

	sol "github.com/gagliardetto/solana-go"
)

// ErrInvalidKeypair is returned when key material cannot be parsed.
var ErrInvalidKeypair = errors.New("invalid keypair")

// Keypair is the copy wallet's signing key.
type Keypair struct {
	priv sol.PrivateKey
}

// LoadKeypair parses key material in any of the forms operators commonly hold:
// a base58 secret key, a JSON byte array as written by solana-keygen, or a path
// to such a file.
func LoadKeypair(source string) (*Keypair, error) {
	source = strings.TrimSpace(source)
	if source == "" {
		return nil, fmt.Errorf("%w: empty", ErrInvalidKeypair)
	}

	if strings.HasPrefix(source, "[") {
		return keypairFromJSON([]byte(source))
	}

	if _, err := os.Stat(source); err == nil {
		data, err := os.ReadFile(source)
		if err != nil {
			return nil, fmt.Errorf("read keypair file: %w", err)
		}
		return keypairFromJSON(data)
	}

	priv, err := sol.PrivateKeyFromBase58(source)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidKeypair, err)
	}
	return newKeypair(priv)
}

// NewRandomKeypair generates a throwaway keypair for paper trading and tests.
func NewRandomKeypair() (*Keypair, error) {
	priv, err := sol.NewRandomPrivateKey()
	if err != nil {
		return nil, err
	}
	return &Keypair{priv: priv}, nil
}

// PublicKey returns the base58 wallet address.
func (k *Keypair) PublicKey() string {
	return k.priv.PublicKey().String()
}

func keypairFromJSON(data []byte) (*Keypair, error) {
	var ints []int
	if err := json.Unmarshal(data, &ints); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidKeypair, err)
	}
	raw := make([]byte, len(ints))
	for i, v := range ints {
		if v < 0 || v > 255 {
			return nil, fmt.Errorf("%w: byte %d out of range", ErrInvalidKeypair, i)
		}
		raw[i] = byte(v)
	}
	return newKeypair(sol.PrivateKey(raw))
}

func newKeypair(priv sol.PrivateKey) (*Keypair, error) {
	if len(priv) != 64 {
		return nil, fmt.Errorf("%w: expected 64 bytes, got %d", ErrInvalidKeypair, len(priv))
	}
	return &Keypair{priv: priv}, nil
}
