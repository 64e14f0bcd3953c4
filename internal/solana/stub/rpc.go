package stub

import (
	"context"
	"fmt"
	"sync"

	"github.com/mr-tron/base58"

	"solana-copy-trader/internal/solana"
)

// RPCClient implements solana.RPCClient for testing.
// Send outcomes are scripted per call; once the script runs out every send succeeds.
type RPCClient struct {
	mu sync.Mutex

	Transactions map[string]*solana.Transaction
	// SendErrors is consumed in order, one entry per SendTransaction call. A nil entry succeeds.
	SendErrors []error
	// BlockhashErr, when set, fails every GetLatestBlockhash call.
	BlockhashErr error
	// Balances holds lamports per wallet and token amounts per token account.
	// Unknown keys hold zero.
	Balances map[string]uint64

	sent       [][]byte
	blockhashN int
}

// Compile-time interface check.
var _ solana.RPCClient = (*RPCClient)(nil)

// NewRPCClient creates a new stub RPC client.
func NewRPCClient() *RPCClient {
	return &RPCClient{
		Transactions: make(map[string]*solana.Transaction),
	}
}

// GetTransaction returns nil, nil for unknown signatures, like a node that has
// not indexed the transaction yet.
func (c *RPCClient) GetTransaction(_ context.Context, signature string) (*solana.Transaction, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	return c.Transactions[signature], nil
}

// GetBalance returns the wallet's lamports from Balances.
func (c *RPCClient) GetBalance(_ context.Context, pubkey string) (uint64, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.Balances[pubkey], nil
}

// TokenAccountBalance returns the token account's amount from Balances.
func (c *RPCClient) TokenAccountBalance(_ context.Context, account string) (uint64, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.Balances[account], nil
}

// GetLatestBlockhash returns a fresh deterministic blockhash per call.
func (c *RPCClient) GetLatestBlockhash(_ context.Context) (*solana.Blockhash, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.BlockhashErr != nil {
		return nil, c.BlockhashErr
	}
	c.blockhashN++
	var hash [32]byte
	copy(hash[:], fmt.Sprintf("blockhash-%d", c.blockhashN))
	return &solana.Blockhash{
		Hash:                 base58.Encode(hash[:]),
		LastValidBlockHeight: uint64(1000 + c.blockhashN),
		Slot:                 int64(c.blockhashN),
	}, nil
}

// SendTransaction records the payload and returns the next scripted outcome.
// The returned signature is the transaction's first signature.
func (c *RPCClient) SendTransaction(_ context.Context, raw []byte) (string, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.sent = append(c.sent, append([]byte(nil), raw...))
	if len(c.SendErrors) > 0 {
		err := c.SendErrors[0]
		c.SendErrors = c.SendErrors[1:]
		if err != nil {
			return "", err
		}
	}
	// Wire format: compact-u16 signature count, then 64-byte signatures.
	if len(raw) < 65 {
		return "", fmt.Errorf("transaction too short: %d bytes", len(raw))
	}
	return base58.Encode(raw[1:65]), nil
}

// AddTransaction adds a transaction to the stub store.
func (c *RPCClient) AddTransaction(tx *solana.Transaction) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.Transactions[tx.Signature] = tx
}

// Sent returns copies of every submitted payload in order.
func (c *RPCClient) Sent() [][]byte {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([][]byte, len(c.sent))
	copy(out, c.sent)
	return out
}

// BlockhashCalls returns how many blockhashes were handed out.
func (c *RPCClient) BlockhashCalls() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.blockhashN
}
