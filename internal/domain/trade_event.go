package domain

// TradeEvent is the canonical, protocol-independent description of one decoded swap.
// EventID is unique per (signature, instruction position) and is the idempotency key.
type TradeEvent struct {
	EventID   string
	Signature string
	Slot      int64
	BlockTime int64

	Wallet    string
	Protocol  ProtocolKind
	Direction Direction

	InputMint      string
	InputAmount    uint64 // base units
	InputDecimals  uint8
	OutputMint     string
	OutputAmount   uint64 // base units
	OutputDecimals uint8

	// Price is output per input in human units at decode time.
	Price float64

	// Route carries what the executor needs to rebuild the swap against the same pool.
	Route Route

	InstructionIndex int
	InnerIndex       int
	ReceivedAt       int64 // Unix ms
}

// Route is the program and account list of the original swap instruction.
type Route struct {
	ProgramID string
	Accounts  []string
	// Writable flags parallel Accounts; nil when unknown.
	Writable []bool
	// Variant is a protocol-specific layout tag (for example "swap_v2" or "17").
	Variant string
	// ExactIn is false when the original fixed the output amount.
	ExactIn bool
}

// TokenMint returns the non-quote side of the trade.
func (e *TradeEvent) TokenMint() string {
	if e.Direction == DirectionBuy {
		return e.OutputMint
	}
	return e.InputMint
}

// SOLValueLamports returns the WSOL leg of the trade, or false when neither side is WSOL.
func (e *TradeEvent) SOLValueLamports() (uint64, bool) {
	switch {
	case e.InputMint == MintWSOL:
		return e.InputAmount, true
	case e.OutputMint == MintWSOL:
		return e.OutputAmount, true
	}
	return 0, false
}
