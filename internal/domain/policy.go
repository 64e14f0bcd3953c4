package domain

import "github.com/shopspring/decimal"

// ExecutionPolicy bounds how a TradeEvent is mirrored. Read-only after load.
// Amounts are denominated in SOL.
type ExecutionPolicy struct {
	Enabled            bool
	MinTradeAmount     decimal.Decimal
	MaxTradeAmount     decimal.Decimal
	MaxPositionSize    decimal.Decimal
	SlippageTolerance  decimal.Decimal // fraction, 0.01 = 1%
	GasPriceMultiplier decimal.Decimal

	// BasePriorityFee is the compute-unit price before the multiplier, in micro-lamports.
	BasePriorityFee  uint64
	ComputeUnitLimit uint32
}
