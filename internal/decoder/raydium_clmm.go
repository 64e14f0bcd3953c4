package decoder

import "solana-copy-trader/internal/domain"

// RaydiumCLMMProgram is the Raydium concentrated-liquidity program ID.
const RaydiumCLMMProgram = "CAMMCzo5YL8w4VFF8KVHrK22GGUsp5VTaW7grrKgrWqK"

var (
	clmmSwap   = [discriminatorLen]byte{248, 198, 158, 145, 225, 117, 135, 200}
	clmmSwapV2 = [discriminatorLen]byte{43, 4, 237, 11, 26, 201, 30, 98}
)

// CLMM swap layout:
//
//	disc[8] amount:u64 other_amount_threshold:u64 sqrt_price_limit_x64:u128 is_base_input:bool
const (
	clmmDataLen = discriminatorLen + 8 + 8 + 16 + 1

	clmmPayer           = 0
	clmmInputTokenAcct  = 3
	clmmOutputTokenAcct = 4
	clmmTokenProgram    = 8
	clmmMinAccounts     = 10

	// swap_v2 only
	clmmV2InputMint   = 11
	clmmV2OutputMint  = 12
	clmmV2MinAccounts = 13
)

// RaydiumCLMM decodes swap and swap_v2.
type RaydiumCLMM struct{}

// NewRaydiumCLMM creates a CLMM decoder.
func NewRaydiumCLMM() *RaydiumCLMM { return &RaydiumCLMM{} }

func (d *RaydiumCLMM) Protocol() domain.ProtocolKind { return domain.ProtocolRaydiumClmm }
func (d *RaydiumCLMM) ProgramID() string             { return RaydiumCLMMProgram }

// Decode decodes a CLMM swap instruction.
func (d *RaydiumCLMM) Decode(data []byte, accounts []string) (*Fragment, error) {
	if len(data) < discriminatorLen {
		return nil, truncated(d.Protocol(), discriminatorLen, len(data))
	}

	var v2 bool
	switch {
	case hasPrefix(data, clmmSwap):
	case hasPrefix(data, clmmSwapV2):
		v2 = true
	default:
		return nil, unknownDiscriminator(d.Protocol(), data[:discriminatorLen])
	}

	if len(data) < clmmDataLen {
		return nil, truncated(d.Protocol(), clmmDataLen, len(data))
	}

	minAccounts := clmmMinAccounts
	if v2 {
		minAccounts = clmmV2MinAccounts
	}
	if len(accounts) < minAccounts {
		return nil, badAccounts(d.Protocol(), minAccounts, len(accounts))
	}

	amount := readUint64LE(data, 8)
	threshold := readUint64LE(data, 16)
	isBaseInput := data[40] != 0

	f := &Fragment{
		Protocol:      d.Protocol(),
		Owner:         accounts[clmmPayer],
		InputAccount:  accounts[clmmInputTokenAcct],
		OutputAccount: accounts[clmmOutputTokenAcct],
		ExactIn:       isBaseInput,
		Variant:       "swap",
	}
	if isBaseInput {
		f.AmountIn, f.AmountOut = amount, threshold
	} else {
		f.AmountIn, f.AmountOut = threshold, amount
	}
	if v2 {
		f.Variant = "swap_v2"
		f.InputMint = accounts[clmmV2InputMint]
		f.OutputMint = accounts[clmmV2OutputMint]
		f.Direction = RoleDirection(f.InputMint, f.OutputMint)
	}
	return f, nil
}

// SqrtPriceLimit returns the sqrt_price_limit_x64 field of a CLMM swap payload.
func SqrtPriceLimit(data []byte) (lo, hi uint64, ok bool) {
	if len(data) < clmmDataLen {
		return 0, 0, false
	}
	lo, hi = readUint128LE(data, 24)
	return lo, hi, true
}

// EncodeCLMMSwap builds exact-input CLMM swap data with no price limit.
// v2 selects the swap_v2 discriminator.
func EncodeCLMMSwap(v2 bool, amountIn, minAmountOut uint64) []byte {
	disc := clmmSwap
	if v2 {
		disc = clmmSwapV2
	}
	data := make([]byte, 0, clmmDataLen)
	data = append(data, disc[:]...)
	data = putUint64LE(data, amountIn)
	data = putUint64LE(data, minAmountOut)
	data = putUint64LE(data, 0)
	data = putUint64LE(data, 0)
	return append(data, 1)
}

// CLMMUserAccounts returns positions of the signer, user token accounts and token program.
func CLMMUserAccounts() (owner, in, out, tokenProgram int) {
	return clmmPayer, clmmInputTokenAcct, clmmOutputTokenAcct, clmmTokenProgram
}
