package decoder

import (
	"strconv"

	"solana-copy-trader/internal/domain"
)

// RaydiumAMMV4Program is the Raydium AMM v4 program ID.
const RaydiumAMMV4Program = "675kPX9MHTjS2zt1qfr1NYHuzeLXfQM9H24wFSUt1Mp8"

// AMM v4 instruction tags.
const (
	ammV4SwapBaseIn  byte = 9
	ammV4SwapBaseOut byte = 11
	ammV4DataLen          = 1 + 16
)

// ammV4Layout holds user-side account positions for one account-list variant.
type ammV4Layout struct {
	source, dest, owner int
}

// The 18-account layout carries target_orders at index 4; the 17-account one drops it.
var ammV4Layouts = map[int]ammV4Layout{
	18: {source: 15, dest: 16, owner: 17},
	17: {source: 14, dest: 15, owner: 16},
}

// RaydiumAMMV4 decodes SwapBaseIn (tag 9) and SwapBaseOut (tag 11).
//
//	tag:u8 amount_in:u64 minimum_amount_out:u64   (SwapBaseIn)
//	tag:u8 max_amount_in:u64 amount_out:u64       (SwapBaseOut)
//
// Mints are not part of the account list; they are resolved downstream
// from the user's source and destination token accounts.
type RaydiumAMMV4 struct{}

// NewRaydiumAMMV4 creates an AMM v4 decoder.
func NewRaydiumAMMV4() *RaydiumAMMV4 { return &RaydiumAMMV4{} }

func (d *RaydiumAMMV4) Protocol() domain.ProtocolKind { return domain.ProtocolRaydiumAmmV4 }
func (d *RaydiumAMMV4) ProgramID() string             { return RaydiumAMMV4Program }

// Decode decodes an AMM v4 swap instruction.
func (d *RaydiumAMMV4) Decode(data []byte, accounts []string) (*Fragment, error) {
	if len(data) < 1 {
		return nil, truncated(d.Protocol(), 1, 0)
	}

	tag := data[0]
	if tag != ammV4SwapBaseIn && tag != ammV4SwapBaseOut {
		return nil, unknownDiscriminator(d.Protocol(), data[:1])
	}
	if len(data) < ammV4DataLen {
		return nil, truncated(d.Protocol(), ammV4DataLen, len(data))
	}

	layout, ok := ammV4Layouts[len(accounts)]
	if !ok {
		return nil, badAccounts(d.Protocol(), 17, len(accounts))
	}

	return &Fragment{
		Protocol:      d.Protocol(),
		Owner:         accounts[layout.owner],
		InputAccount:  accounts[layout.source],
		OutputAccount: accounts[layout.dest],
		AmountIn:      readUint64LE(data, 1),
		AmountOut:     readUint64LE(data, 9),
		ExactIn:       tag == ammV4SwapBaseIn,
		Variant:       strconv.Itoa(len(accounts)),
	}, nil
}

// EncodeAMMV4SwapBaseIn builds SwapBaseIn instruction data.
func EncodeAMMV4SwapBaseIn(amountIn, minAmountOut uint64) []byte {
	data := make([]byte, 0, ammV4DataLen)
	data = append(data, ammV4SwapBaseIn)
	data = putUint64LE(data, amountIn)
	return putUint64LE(data, minAmountOut)
}

// AMMV4UserAccounts returns positions of owner, source and destination for
// an account list of length n.
func AMMV4UserAccounts(n int) (owner, source, dest int, ok bool) {
	l, ok := ammV4Layouts[n]
	return l.owner, l.source, l.dest, ok
}
