package executor

import (
	"errors"
	"fmt"

	"github.com/shopspring/decimal"

	"solana-copy-trader/internal/domain"
)

// Sizing and policy outcomes.
var (
	// ErrSizingRejected is returned when no amount satisfies the policy bounds.
	ErrSizingRejected = errors.New("sizing rejected")

	// ErrExecutionDisabled is returned when the policy disables mirroring.
	ErrExecutionDisabled = errors.New("execution disabled")
)

var lamportsPerSOL = decimal.NewFromInt(domain.LamportsPerSOL)

// Sizer applies the policy's trade and position bounds.
type Sizer struct {
	policy domain.ExecutionPolicy
}

// NewSizer creates a Sizer for policy.
func NewSizer(policy domain.ExecutionPolicy) *Sizer {
	return &Sizer{policy: policy}
}

// Size returns the SOL amount to mirror ev with, given the copy wallet's current exposure.
//
// The original SOL value is clamped into [min, max]. A buy is capped by the room
// left under max_position_size; a sell unwinds the position and is capped by the
// exposure it can reduce. The trade is rejected when the cap is not positive or
// falls below min.
func (s *Sizer) Size(ev *domain.TradeEvent, exposure decimal.Decimal) (decimal.Decimal, error) {
	lamports, ok := ev.SOLValueLamports()
	if !ok {
		return decimal.Zero, fmt.Errorf("%w: %s/%s has no SOL leg", ErrSizingRejected, ev.InputMint, ev.OutputMint)
	}
	value := lamportsToSOL(lamports)

	p := s.policy
	amount := decimal.Max(value, p.MinTradeAmount)
	amount = decimal.Min(amount, p.MaxTradeAmount)

	var limit decimal.Decimal
	if ev.Direction == domain.DirectionSell {
		limit = decimal.Min(p.MaxTradeAmount, exposure)
		if !limit.IsPositive() {
			return decimal.Zero, fmt.Errorf("%w: no open position to sell", ErrSizingRejected)
		}
	} else {
		limit = decimal.Min(p.MaxTradeAmount, p.MaxPositionSize.Sub(exposure))
		if !limit.IsPositive() {
			return decimal.Zero, fmt.Errorf("%w: position limit reached (exposure %s)", ErrSizingRejected, exposure)
		}
	}
	if p.MinTradeAmount.GreaterThan(limit) {
		return decimal.Zero, fmt.Errorf("%w: minimum %s exceeds cap %s", ErrSizingRejected, p.MinTradeAmount, limit)
	}

	amount = decimal.Min(amount, limit)
	if !amount.IsPositive() {
		return decimal.Zero, fmt.Errorf("%w: non-positive amount %s", ErrSizingRejected, amount)
	}
	return amount, nil
}

func lamportsToSOL(lamports uint64) decimal.Decimal {
	return units(lamports).Div(lamportsPerSOL)
}

// solToLamports truncates toward zero.
func solToLamports(sol decimal.Decimal) uint64 {
	return decimalToUint64(sol.Mul(lamportsPerSOL))
}

func decimalToUint64(d decimal.Decimal) uint64 {
	if !d.IsPositive() {
		return 0
	}
	b := d.Truncate(0).BigInt()
	if !b.IsUint64() {
		return ^uint64(0)
	}
	return b.Uint64()
}
