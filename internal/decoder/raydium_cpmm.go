package decoder

import "solana-copy-trader/internal/domain"

// RaydiumCPMMProgram is the Raydium constant-product (CP-Swap) program ID.
const RaydiumCPMMProgram = "CPMMoo8L3F4NbTegBCKVNunggL7H1ZpdTHKxQB5qKP1C"

var (
	cpmmSwapBaseInput  = [discriminatorLen]byte{143, 190, 90, 218, 196, 30, 51, 222}
	cpmmSwapBaseOutput = [discriminatorLen]byte{55, 217, 98, 86, 163, 74, 180, 173}
)

// CPMM swap account positions.
const (
	cpmmPayer           = 0
	cpmmInputTokenAcct  = 4
	cpmmOutputTokenAcct = 5
	cpmmInputTokenProg  = 8
	cpmmOutputTokenProg = 9
	cpmmInputMint       = 10
	cpmmOutputMint      = 11
	cpmmMinAccounts     = 13
	cpmmDataLen         = discriminatorLen + 16
)

// RaydiumCPMM decodes swap_base_input and swap_base_output.
//
//	swap_base_input:  disc[8] amount_in:u64 minimum_amount_out:u64
//	swap_base_output: disc[8] max_amount_in:u64 amount_out:u64
type RaydiumCPMM struct{}

// NewRaydiumCPMM creates a CPMM decoder.
func NewRaydiumCPMM() *RaydiumCPMM { return &RaydiumCPMM{} }

func (d *RaydiumCPMM) Protocol() domain.ProtocolKind { return domain.ProtocolRaydiumCpmm }
func (d *RaydiumCPMM) ProgramID() string             { return RaydiumCPMMProgram }

// Decode decodes a CPMM swap instruction.
func (d *RaydiumCPMM) Decode(data []byte, accounts []string) (*Fragment, error) {
	if len(data) < discriminatorLen {
		return nil, truncated(d.Protocol(), discriminatorLen, len(data))
	}

	var exactIn bool
	switch {
	case hasPrefix(data, cpmmSwapBaseInput):
		exactIn = true
	case hasPrefix(data, cpmmSwapBaseOutput):
		exactIn = false
	default:
		return nil, unknownDiscriminator(d.Protocol(), data[:discriminatorLen])
	}

	if len(data) < cpmmDataLen {
		return nil, truncated(d.Protocol(), cpmmDataLen, len(data))
	}
	if len(accounts) < cpmmMinAccounts {
		return nil, badAccounts(d.Protocol(), cpmmMinAccounts, len(accounts))
	}

	f := &Fragment{
		Protocol:      d.Protocol(),
		Owner:         accounts[cpmmPayer],
		InputAccount:  accounts[cpmmInputTokenAcct],
		OutputAccount: accounts[cpmmOutputTokenAcct],
		InputMint:     accounts[cpmmInputMint],
		OutputMint:    accounts[cpmmOutputMint],
		AmountIn:      readUint64LE(data, 8),
		AmountOut:     readUint64LE(data, 16),
		ExactIn:       exactIn,
		Variant:       "swap_base_output",
	}
	if exactIn {
		f.Variant = "swap_base_input"
	}
	f.Direction = RoleDirection(f.InputMint, f.OutputMint)
	return f, nil
}

// EncodeCPMMSwapBaseInput builds swap_base_input instruction data.
func EncodeCPMMSwapBaseInput(amountIn, minAmountOut uint64) []byte {
	data := make([]byte, 0, cpmmDataLen)
	data = append(data, cpmmSwapBaseInput[:]...)
	data = putUint64LE(data, amountIn)
	return putUint64LE(data, minAmountOut)
}

// CPMMUserAccounts returns positions of the signer and user token accounts,
// and the token-program positions that own them.
func CPMMUserAccounts() (owner, in, out, inProg, outProg int) {
	return cpmmPayer, cpmmInputTokenAcct, cpmmOutputTokenAcct, cpmmInputTokenProg, cpmmOutputTokenProg
}
