package solana

import "context"

// RPCClient defines the Solana JSON-RPC calls the copy trader depends on.
type RPCClient interface {
	// GetTransaction retrieves a confirmed transaction by signature.
	// Returns nil, nil when the node does not know the signature yet.
	GetTransaction(ctx context.Context, signature string) (*Transaction, error)

	// GetLatestBlockhash returns a recent blockhash to bind a transaction to.
	GetLatestBlockhash(ctx context.Context) (*Blockhash, error)

	// SendTransaction submits a signed, serialized transaction and returns its signature.
	// It is never retried internally.
	SendTransaction(ctx context.Context, raw []byte) (string, error)
}

// Transaction represents a Solana transaction with the metadata needed to
// rebuild its instructions and balance movements.
type Transaction struct {
	Slot      int64
	Signature string
	BlockTime int64 // Unix timestamp (seconds)
	Meta      *TransactionMeta
	Message   *TransactionMessage
}

// TransactionMeta contains transaction metadata.
type TransactionMeta struct {
	Err               interface{}
	Fee               uint64
	LogMessages       []string
	PreBalances       []uint64
	PostBalances      []uint64
	PreTokenBalances  []TokenBalance
	PostTokenBalances []TokenBalance
	InnerInstructions []InnerInstructions
	LoadedAddresses   LoadedAddresses
}

// TransactionMessage contains parsed transaction message.
type TransactionMessage struct {
	Header          MessageHeader
	AccountKeys     []string
	RecentBlockhash string
	Instructions    []CompiledInstruction
}

// MessageHeader splits static account keys into signer and read-only groups.
type MessageHeader struct {
	NumRequiredSignatures       int
	NumReadonlySignedAccounts   int
	NumReadonlyUnsignedAccounts int
}

// CompiledInstruction references accounts by index into the full key list.
type CompiledInstruction struct {
	ProgramIDIndex int
	Accounts       []int
	Data           string // base58
}

// InnerInstructions groups CPI instructions under their top-level parent.
type InnerInstructions struct {
	Index        int
	Instructions []CompiledInstruction
}

// LoadedAddresses are keys pulled in through address lookup tables.
type LoadedAddresses struct {
	Writable []string
	Readonly []string
}

// TokenBalance is an SPL token balance entry from pre/postTokenBalances.
type TokenBalance struct {
	AccountIndex int
	Mint         string
	Owner        string
	ProgramID    string
	Amount       string // base units, decimal string
	Decimals     uint8
}

// AllAccountKeys returns static keys followed by loaded writable and readonly keys,
// which is the index space compiled instructions refer to.
func (t *Transaction) AllAccountKeys() []string {
	if t.Message == nil {
		return nil
	}
	keys := make([]string, 0, len(t.Message.AccountKeys))
	keys = append(keys, t.Message.AccountKeys...)
	if t.Meta != nil {
		keys = append(keys, t.Meta.LoadedAddresses.Writable...)
		keys = append(keys, t.Meta.LoadedAddresses.Readonly...)
	}
	return keys
}

// IsWritable reports whether the account at index i of AllAccountKeys is writable.
// Static keys follow the message header; loaded writable keys are writable and
// loaded readonly keys are not.
func (t *Transaction) IsWritable(i int) bool {
	if t.Message == nil || i < 0 {
		return false
	}
	h := t.Message.Header
	static := len(t.Message.AccountKeys)
	if i < static {
		if i < h.NumRequiredSignatures {
			return i < h.NumRequiredSignatures-h.NumReadonlySignedAccounts
		}
		return i < static-h.NumReadonlyUnsignedAccounts
	}
	if t.Meta == nil {
		return false
	}
	return i-static < len(t.Meta.LoadedAddresses.Writable)
}

// Blockhash is a recent blockhash and the last block height it is valid for.
type Blockhash struct {
	Hash                 string
	LastValidBlockHeight uint64
	Slot                 int64
}
