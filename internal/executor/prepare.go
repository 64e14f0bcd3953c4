package executor

import (
	"fmt"
	"math/big"

	"github.com/shopspring/decimal"

	"solana-copy-trader/internal/domain"
)

// PrepareOrder turns a sized trade event into an ExecutionOrder.
//
// The SOL leg is set to size. The token leg scales the original token amount by
// size over the original SOL value. Slippage loosens the bound the copy is
// willing to accept: the minimum output for exact-input swaps, the maximum SOL
// cost for Pump.fun buys, which fix the token amount instead.
func PrepareOrder(ev *domain.TradeEvent, size decimal.Decimal, policy domain.ExecutionPolicy) (*domain.ExecutionOrder, error) {
	origSOL, ok := ev.SOLValueLamports()
	if !ok || origSOL == 0 {
		return nil, fmt.Errorf("%w: no SOL value to scale from", ErrSizingRejected)
	}

	solIn := ev.InputMint == domain.MintWSOL
	origToken := ev.InputAmount
	if solIn {
		origToken = ev.OutputAmount
	}

	lamports := solToLamports(size)
	ratio := size.Mul(lamportsPerSOL).Div(units(origSOL))
	tokens := decimalToUint64(units(origToken).Mul(ratio))
	if lamports == 0 || tokens == 0 {
		return nil, fmt.Errorf("%w: %s SOL is below one base unit of the pool", ErrSizingRejected, size)
	}

	slip := policy.SlippageTolerance
	below := decimal.NewFromInt(1).Sub(slip)
	above := decimal.NewFromInt(1).Add(slip)

	order := &domain.ExecutionOrder{
		EventID:           ev.EventID,
		Signature:         ev.Signature,
		Protocol:          ev.Protocol,
		Direction:         ev.Direction,
		Route:             ev.Route,
		InputMint:         ev.InputMint,
		OutputMint:        ev.OutputMint,
		SizeSOL:           size,
		SlippageTolerance: slip,
		PriorityFee:       decimalToUint64(units(policy.BasePriorityFee).Mul(policy.GasPriceMultiplier)),
		ComputeUnitLimit:  policy.ComputeUnitLimit,
	}

	switch {
	case solIn && ev.Protocol == domain.ProtocolPumpFun:
		order.AmountOut = tokens
		order.AmountIn = decimalToUint64(units(lamports).Mul(above))
	case solIn:
		order.AmountIn = lamports
		order.AmountOut = decimalToUint64(units(tokens).Mul(below))
	default:
		order.AmountIn = tokens
		order.AmountOut = decimalToUint64(units(lamports).Mul(below))
	}
	return order, nil
}

func units(v uint64) decimal.Decimal {
	return decimal.NewFromBigInt(new(big.Int).SetUint64(v), 0)
}
