package domain

// RawUpdate is one ledger event delivered by the Stream Monitor.
// It is owned by the monitor until handed to the normalizer.
type RawUpdate struct {
	Signature string
	Slot      int64
	BlockTime int64 // Unix seconds, 0 if unknown

	// Wallet is the watched address whose subscription produced this update.
	Wallet string

	// Instructions holds top-level and inner instructions in execution order.
	Instructions []Instruction

	// Accounts is the full resolved account key list (static + loaded).
	Accounts []string

	// TokenBalances holds pre/post SPL token balances touched by the transaction.
	TokenBalances []TokenBalance

	// Native SOL balance of Wallet before and after, in lamports. Zero when unknown.
	NativePre  uint64
	NativePost uint64
	// Fee paid by the transaction, in lamports.
	Fee uint64

	// ReceivedAt is the monitor's receive time (Unix ms), used for latency metrics.
	ReceivedAt int64
}

// Instruction is a single program invocation inside a transaction.
type Instruction struct {
	ProgramID string
	Data      []byte
	Accounts  []string // resolved addresses, in instruction order
	// Writable flags parallel Accounts. Nil when the source does not know them.
	Writable []bool

	// Index is the top-level instruction position. For inner instructions it is
	// the parent's index and InnerIndex is the position within the parent (>= 0).
	Index      int
	InnerIndex int
}

// AccountWritable reports the writable flag of the i-th account and whether it is known.
func (i Instruction) AccountWritable(idx int) (writable, known bool) {
	if len(i.Writable) != len(i.Accounts) || idx < 0 || idx >= len(i.Writable) {
		return false, false
	}
	return i.Writable[idx], true
}

// IsInner reports whether the instruction was invoked via CPI.
func (i Instruction) IsInner() bool {
	return i.InnerIndex >= 0
}

// TokenBalance is a pre/post SPL token balance for one token account.
type TokenBalance struct {
	Account  string
	Mint     string
	Owner    string
	Decimals uint8
	Pre      uint64
	Post     uint64
}

// Involves reports whether the update mentions address in its account list.
func (u *RawUpdate) Involves(address string) bool {
	for _, a := range u.Accounts {
		if a == address {
			return true
		}
	}
	return false
}

// MintOf returns the mint of a token account, if present in the balance table.
func (u *RawUpdate) MintOf(account string) (TokenBalance, bool) {
	for _, b := range u.TokenBalances {
		if b.Account == account {
			return b, true
		}
	}
	return TokenBalance{}, false
}
