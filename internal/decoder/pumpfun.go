package decoder

import "solana-copy-trader/internal/domain"

// PumpFunProgram is the pump.fun bonding-curve program ID.
const PumpFunProgram = "6EF8rrecthR5Dkzon8Nwu78hRvfCKubJ14M5uBEwF6P"

var (
	pumpBuy  = [discriminatorLen]byte{102, 6, 61, 18, 1, 218, 235, 234}
	pumpSell = [discriminatorLen]byte{51, 230, 133, 164, 1, 127, 131, 173}
)

// Pump.fun account positions shared by buy and sell.
const (
	pumpMint        = 2
	pumpAssocUser   = 5
	pumpUser        = 6
	pumpMinAccounts = 7
	pumpDataLen     = discriminatorLen + 16
)

// PumpFun decodes bonding-curve buy and sell.
//
//	buy:  disc[8] amount:u64 (tokens out) max_sol_cost:u64
//	sell: disc[8] amount:u64 (tokens in)  min_sol_output:u64
//
// The SOL side is native lamports, reported as the WSOL mint.
type PumpFun struct{}

// NewPumpFun creates a pump.fun decoder.
func NewPumpFun() *PumpFun { return &PumpFun{} }

func (d *PumpFun) Protocol() domain.ProtocolKind { return domain.ProtocolPumpFun }
func (d *PumpFun) ProgramID() string             { return PumpFunProgram }

// Decode decodes a pump.fun buy or sell.
func (d *PumpFun) Decode(data []byte, accounts []string) (*Fragment, error) {
	if len(data) < discriminatorLen {
		return nil, truncated(d.Protocol(), discriminatorLen, len(data))
	}

	var buy bool
	switch {
	case hasPrefix(data, pumpBuy):
		buy = true
	case hasPrefix(data, pumpSell):
	default:
		return nil, unknownDiscriminator(d.Protocol(), data[:discriminatorLen])
	}

	if len(data) < pumpDataLen {
		return nil, truncated(d.Protocol(), pumpDataLen, len(data))
	}
	if len(accounts) < pumpMinAccounts {
		return nil, badAccounts(d.Protocol(), pumpMinAccounts, len(accounts))
	}

	tokenAmount := readUint64LE(data, 8)
	solBound := readUint64LE(data, 16)
	mint := accounts[pumpMint]
	user := accounts[pumpUser]
	userATA := accounts[pumpAssocUser]

	if buy {
		return &Fragment{
			Protocol:      d.Protocol(),
			Direction:     domain.DirectionBuy,
			Owner:         user,
			InputAccount:  user,
			OutputAccount: userATA,
			InputMint:     domain.MintWSOL,
			OutputMint:    mint,
			AmountIn:      solBound,
			AmountOut:     tokenAmount,
			ExactIn:       false,
			Variant:       "buy",
		}, nil
	}

	return &Fragment{
		Protocol:      d.Protocol(),
		Direction:     domain.DirectionSell,
		Owner:         user,
		InputAccount:  userATA,
		OutputAccount: user,
		InputMint:     mint,
		OutputMint:    domain.MintWSOL,
		AmountIn:      tokenAmount,
		AmountOut:     solBound,
		ExactIn:       true,
		Variant:       "sell",
	}, nil
}

// EncodePumpBuy builds buy instruction data.
func EncodePumpBuy(tokenAmount, maxSOLCost uint64) []byte {
	data := make([]byte, 0, pumpDataLen)
	data = append(data, pumpBuy[:]...)
	data = putUint64LE(data, tokenAmount)
	return putUint64LE(data, maxSOLCost)
}

// EncodePumpSell builds sell instruction data.
func EncodePumpSell(tokenAmount, minSOLOutput uint64) []byte {
	data := make([]byte, 0, pumpDataLen)
	data = append(data, pumpSell[:]...)
	data = putUint64LE(data, tokenAmount)
	return putUint64LE(data, minSOLOutput)
}

// PumpUserAccounts returns positions of the mint, the user's token account and the user.
func PumpUserAccounts() (mint, userATA, user int) {
	return pumpMint, pumpAssocUser, pumpUser
}
