package monitor

import (
	"crypto/sha256"
	"encoding/binary"
	"time"

	"github.com/mr-tron/base58"

	"solana-copy-trader/internal/decoder"
	"solana-copy-trader/internal/domain"
)

// SyntheticTrade selects one of the canonical generated swaps.
type SyntheticTrade int

const (
	// SyntheticCPMMBuy swaps 1 SOL for 25 USDC on a Raydium CPMM pool.
	SyntheticCPMMBuy SyntheticTrade = iota
	// SyntheticCPMMSell swaps 25 USDC back to 1 SOL.
	SyntheticCPMMSell
	// SyntheticPumpBuy buys 1,000 tokens for 0.5 SOL on Pump.fun.
	SyntheticPumpBuy
	// SyntheticPumpSell sells 1,000 tokens for 0.5 SOL.
	SyntheticPumpSell
)

// MockCycle is the order in which the mock source emits trades.
var MockCycle = []SyntheticTrade{SyntheticCPMMBuy, SyntheticCPMMSell, SyntheticPumpBuy, SyntheticPumpSell}

func (t SyntheticTrade) String() string {
	switch t {
	case SyntheticCPMMBuy:
		return "cpmm_buy"
	case SyntheticCPMMSell:
		return "cpmm_sell"
	case SyntheticPumpBuy:
		return "pump_buy"
	case SyntheticPumpSell:
		return "pump_sell"
	}
	return "unknown"
}

const (
	syntheticSOL        = 1_000_000_000
	syntheticUSDC       = 25_000_000
	syntheticPumpSOL    = 500_000_000
	syntheticPumpTokens = 1_000_000_000 // 1,000 tokens at 6 decimals
	syntheticFee        = 5000
)

// SyntheticUpdate builds a fully decodable update for wallet. seq makes the
// signature unique; the same (trade, wallet, seq) always yields the same update.
func SyntheticUpdate(trade SyntheticTrade, wallet string, seq uint64, now time.Time) *domain.RawUpdate {
	var (
		ix         domain.Instruction
		balances   []domain.TokenBalance
		nativePre  uint64 = 10 * syntheticSOL
		nativePost        = nativePre - syntheticFee
	)

	key := func(label string) string { return decoder.FixtureKey("synthetic:" + wallet + ":" + label) }
	wsolATA, usdcATA := key("wsol-ata"), key("usdc-ata")
	pumpATA := key("pump-ata")

	switch trade {
	case SyntheticCPMMBuy, SyntheticCPMMSell:
		in, out := wsolATA, usdcATA
		inMint, outMint := domain.MintWSOL, domain.MintUSDC
		amountIn, amountOut := uint64(syntheticSOL), uint64(syntheticUSDC)
		wsolPre, wsolPost := uint64(2*syntheticSOL), uint64(syntheticSOL)
		usdcPre, usdcPost := uint64(0), uint64(syntheticUSDC)
		if trade == SyntheticCPMMSell {
			in, out = usdcATA, wsolATA
			inMint, outMint = domain.MintUSDC, domain.MintWSOL
			amountIn, amountOut = syntheticUSDC, syntheticSOL
			wsolPre, wsolPost = syntheticSOL, 2*syntheticSOL
			usdcPre, usdcPost = syntheticUSDC, 0
		}
		ix = domain.Instruction{
			ProgramID: decoder.RaydiumCPMMProgram,
			Data:      decoder.EncodeCPMMSwapBaseInput(amountIn, amountOut),
			Accounts: []string{
				wallet, decoder.RaydiumCPAuthority, decoder.FixtureKey("cpmm-config"), decoder.FixtureKey("cpmm-wsol-usdc"),
				in, out, decoder.FixtureKey("cpmm-vault-" + inMint), decoder.FixtureKey("cpmm-vault-" + outMint),
				decoder.TokenProgram, decoder.TokenProgram, inMint, outMint, decoder.FixtureKey("cpmm-observation"),
			},
		}
		balances = []domain.TokenBalance{
			{Account: wsolATA, Mint: domain.MintWSOL, Owner: wallet, Decimals: 9, Pre: wsolPre, Post: wsolPost},
			{Account: usdcATA, Mint: domain.MintUSDC, Owner: wallet, Decimals: 6, Pre: usdcPre, Post: usdcPost},
		}

	case SyntheticPumpBuy, SyntheticPumpSell:
		tokenPre, tokenPost := uint64(0), uint64(syntheticPumpTokens)
		data := decoder.EncodePumpBuy(syntheticPumpTokens, syntheticPumpSOL)
		nativePost = nativePre - syntheticPumpSOL - syntheticFee
		if trade == SyntheticPumpSell {
			tokenPre, tokenPost = syntheticPumpTokens, 0
			data = decoder.EncodePumpSell(syntheticPumpTokens, syntheticPumpSOL)
			nativePost = nativePre + syntheticPumpSOL - syntheticFee
		}
		ix = domain.Instruction{
			ProgramID: decoder.PumpFunProgram,
			Data:      data,
			Accounts: []string{
				decoder.PumpGlobal, decoder.PumpFeeRecipient, decoder.FixturePumpMint, decoder.FixtureKey("pump-curve"),
				decoder.FixtureKey("pump-curve-ata"), pumpATA, wallet,
				decoder.SystemProgram, decoder.TokenProgram, decoder.RentSysvar, decoder.PumpEventAuthority, decoder.PumpFunProgram,
			},
		}
		balances = []domain.TokenBalance{
			{Account: pumpATA, Mint: decoder.FixturePumpMint, Owner: wallet, Decimals: 6, Pre: tokenPre, Post: tokenPost},
		}
	}

	ix.Index = 0
	ix.InnerIndex = -1

	accounts := append([]string{}, ix.Accounts...)
	accounts = append(accounts, ix.ProgramID)

	return &domain.RawUpdate{
		Signature:     syntheticSignature(wallet, seq),
		Slot:          300_000_000 + int64(seq),
		BlockTime:     now.Unix(),
		Wallet:        wallet,
		Instructions:  []domain.Instruction{ix},
		Accounts:      accounts,
		TokenBalances: balances,
		NativePre:     nativePre,
		NativePost:    nativePost,
		Fee:           syntheticFee,
		ReceivedAt:    now.UnixMilli(),
	}
}

func syntheticSignature(wallet string, seq uint64) string {
	var n [8]byte
	binary.BigEndian.PutUint64(n[:], seq)
	a := sha256.Sum256(append([]byte("synthetic:"+wallet+":"), n[:]...))
	b := sha256.Sum256(a[:])
	return base58.Encode(append(a[:], b[:]...))
}
