package normalizer

import (
	"errors"
	"math/big"

	"github.com/shopspring/decimal"

	"solana-copy-trader/internal/decoder"
	"solana-copy-trader/internal/domain"
)

// ErrDirectionConflict is returned when the wallet's balances moved against the
// instruction's declared roles.
var ErrDirectionConflict = errors.New("balance movement contradicts instruction roles")

// WalletDeltas returns the watched wallet's net balance change per mint, in base units.
// The native SOL change is folded into the WSOL mint, with the fee added back when
// the wallet paid it.
func WalletDeltas(u *domain.RawUpdate) map[string]decimal.Decimal {
	deltas := make(map[string]decimal.Decimal)
	for _, b := range u.TokenBalances {
		if b.Owner != u.Wallet {
			continue
		}
		d := units(b.Post).Sub(units(b.Pre))
		deltas[b.Mint] = deltas[b.Mint].Add(d)
	}

	if u.NativePre != 0 || u.NativePost != 0 {
		native := units(u.NativePost).Sub(units(u.NativePre))
		if len(u.Accounts) > 0 && u.Accounts[0] == u.Wallet {
			native = native.Add(units(u.Fee))
		}
		deltas[domain.MintWSOL] = deltas[domain.MintWSOL].Add(native)
	}
	return deltas
}

// InferDirection decides the side of a swap from inputMint to outputMint.
//
// When the wallet's input balance fell and its output balance rose, or when the
// balances do not settle it (an intermediate hop of a routed swap nets to zero),
// the declared roles stand and the quote-side rule picks Buy or Sell. When both
// balances moved the opposite way, ErrDirectionConflict is returned.
func InferDirection(deltas map[string]decimal.Decimal, inputMint, outputMint string) (domain.Direction, error) {
	in, out := deltas[inputMint], deltas[outputMint]
	if in.IsPositive() && out.IsNegative() {
		return "", ErrDirectionConflict
	}
	return decoder.RoleDirection(inputMint, outputMint), nil
}

func units(v uint64) decimal.Decimal {
	return decimal.NewFromBigInt(new(big.Int).SetUint64(v), 0)
}

// humanAmount scales a base-unit amount by decimals.
func humanAmount(v uint64, decimals uint8) decimal.Decimal {
	return decimal.NewFromBigInt(new(big.Int).SetUint64(v), -int32(decimals))
}
