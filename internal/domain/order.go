package domain

import "github.com/shopspring/decimal"

// OrderState is the lifecycle state of an ExecutionOrder.
type OrderState string

const (
	OrderPending        OrderState = "PENDING"
	OrderRetrying       OrderState = "RETRYING"
	OrderSucceeded      OrderState = "SUCCEEDED"
	OrderFailedTerminal OrderState = "FAILED_TERMINAL"
)

// IsTerminal reports whether no further transitions are allowed.
func (s OrderState) IsTerminal() bool {
	return s == OrderSucceeded || s == OrderFailedTerminal
}

// ExecutionOrder is a sized, bounded instruction to mirror one TradeEvent.
// Only the execution engine creates orders.
type ExecutionOrder struct {
	EventID   string
	Signature string // original transaction
	Protocol  ProtocolKind
	Direction Direction
	Route     Route

	InputMint  string
	OutputMint string

	// SizeSOL is the SOL-denominated size after clamping.
	SizeSOL decimal.Decimal
	// AmountIn is the exact input in base units (for Pump.fun buys, the SOL cost ceiling).
	AmountIn uint64
	// AmountOut is the minimum acceptable output (for Pump.fun buys, the token amount).
	AmountOut uint64

	SlippageTolerance decimal.Decimal
	PriorityFee       uint64 // micro-lamports per compute unit
	ComputeUnitLimit  uint32
}
