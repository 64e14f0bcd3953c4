package domain

// ProtocolKind identifies the on-chain AMM format a swap instruction was decoded from.
type ProtocolKind string

const (
	ProtocolRaydiumCpmm  ProtocolKind = "RAYDIUM_CPMM"
	ProtocolRaydiumAmmV4 ProtocolKind = "RAYDIUM_AMM_V4"
	ProtocolRaydiumClmm  ProtocolKind = "RAYDIUM_CLMM"
	ProtocolPumpFun      ProtocolKind = "PUMP_FUN"
)

// AllProtocols lists every supported protocol in registration order.
var AllProtocols = []ProtocolKind{
	ProtocolRaydiumCpmm,
	ProtocolRaydiumAmmV4,
	ProtocolRaydiumClmm,
	ProtocolPumpFun,
}

// String returns the string representation of ProtocolKind.
func (p ProtocolKind) String() string {
	return string(p)
}

// IsValid checks if the protocol is a known value.
func (p ProtocolKind) IsValid() bool {
	switch p {
	case ProtocolRaydiumCpmm, ProtocolRaydiumAmmV4, ProtocolRaydiumClmm, ProtocolPumpFun:
		return true
	}
	return false
}

// Direction is the side of a swap relative to the non-quote token.
type Direction string

const (
	DirectionBuy  Direction = "BUY"
	DirectionSell Direction = "SELL"
)

// String returns the string representation of Direction.
func (d Direction) String() string {
	return string(d)
}

// IsValid checks if the direction is BUY or SELL.
func (d Direction) IsValid() bool {
	return d == DirectionBuy || d == DirectionSell
}

// Well-known mints.
const (
	MintWSOL = "So11111111111111111111111111111111111111112"
	MintUSDC = "EPjFWdd5AufqSSqeM2qN1xzybapC8G4wEGGkZwyTDt1v"
)

// LamportsPerSOL is the number of lamports in one SOL.
const LamportsPerSOL = 1_000_000_000

// IsQuoteMint reports whether mint is treated as the pricing side of a pair.
func IsQuoteMint(mint string) bool {
	return mint == MintWSOL || mint == MintUSDC
}
