package decoder

import (
	"crypto/sha256"
	"encoding/hex"

	"github.com/mr-tron/base58"

	"solana-copy-trader/internal/domain"
)

// Fixture is a documented raw update with the trade it must decode to.
// Fixtures back the decoder tests and the binary's offline test mode.
type Fixture struct {
	Name   string
	Update domain.RawUpdate
	// Want is nil when the instruction must fail to decode.
	Want    *Expected
	WantErr error
}

// Expected holds the canonical event fields a fixture must produce.
type Expected struct {
	Protocol     domain.ProtocolKind
	Direction    domain.Direction
	InputMint    string
	OutputMint   string
	InputAmount  uint64
	OutputAmount uint64
}

// FixtureKey derives a stable 32-byte address from a label.
func FixtureKey(label string) string {
	sum := sha256.Sum256([]byte("fixture:" + label))
	return base58.Encode(sum[:])
}

// Fixture addresses shared across protocols.
var (
	FixtureWallet    = FixtureKey("wallet")
	FixtureTokenMint = FixtureKey("token-mint")
	FixturePumpMint  = FixtureKey("pump-mint")
)

func mustHex(s string) []byte {
	b, err := hex.DecodeString(s)
	if err != nil {
		panic(err)
	}
	return b
}

func fixtureSignature(name string) string {
	sum := sha256.Sum256([]byte("signature:" + name))
	return base58.Encode(append(sum[:], sum[:]...))
}

func singleInstruction(name string, ix domain.Instruction, balances []domain.TokenBalance, nativePre, nativePost uint64) domain.RawUpdate {
	ix.Index = 0
	ix.InnerIndex = -1
	accounts := append([]string{}, ix.Accounts...)
	accounts = append(accounts, ix.ProgramID)
	return domain.RawUpdate{
		Signature:     fixtureSignature(name),
		Slot:          250_000_000,
		BlockTime:     1_700_000_000,
		Wallet:        FixtureWallet,
		Instructions:  []domain.Instruction{ix},
		Accounts:      accounts,
		TokenBalances: balances,
		NativePre:     nativePre,
		NativePost:    nativePost,
		Fee:           5000,
	}
}

// Fixtures returns fresh copies of all documented fixtures.
func Fixtures() []Fixture {
	return []Fixture{
		cpmmBuyFixture(),
		ammV4SellFixture(),
		clmmV2BuyFixture(),
		pumpBuyFixture(),
		pumpSellFixture(),
		clmmTruncatedFixture(),
	}
}

// cpmmBuyFixture: swap_base_input, 1 SOL in, at least 25 tokens (6 dp) out.
//
//	8fbe5adac41e33de  discriminator swap_base_input
//	00ca9a3b00000000  amount_in          1_000_000_000
//	40787d0100000000  minimum_amount_out    25_000_000
func cpmmBuyFixture() Fixture {
	inATA, outATA := FixtureKey("cpmm-in-ata"), FixtureKey("cpmm-out-ata")
	ix := domain.Instruction{
		ProgramID: RaydiumCPMMProgram,
		Data:      mustHex("8fbe5adac41e33de00ca9a3b0000000040787d0100000000"),
		Accounts: []string{
			FixtureWallet, RaydiumCPAuthority, FixtureKey("cpmm-config"), FixtureKey("cpmm-pool"),
			inATA, outATA, FixtureKey("cpmm-in-vault"), FixtureKey("cpmm-out-vault"),
			TokenProgram, TokenProgram, domain.MintWSOL, FixtureTokenMint, FixtureKey("cpmm-observation"),
		},
	}
	balances := []domain.TokenBalance{
		{Account: inATA, Mint: domain.MintWSOL, Owner: FixtureWallet, Decimals: 9, Pre: 1_500_000_000, Post: 500_000_000},
		{Account: outATA, Mint: FixtureTokenMint, Owner: FixtureWallet, Decimals: 6, Pre: 0, Post: 25_300_000},
	}
	return Fixture{
		Name:   "raydium_cpmm_swap_base_input_buy",
		Update: singleInstruction("cpmm-buy", ix, balances, 0, 0),
		Want: &Expected{
			Protocol: domain.ProtocolRaydiumCpmm, Direction: domain.DirectionBuy,
			InputMint: domain.MintWSOL, OutputMint: FixtureTokenMint,
			InputAmount: 1_000_000_000, OutputAmount: 25_000_000,
		},
	}
}

// ammV4SellFixture: SwapBaseIn over the 18-account layout, 5 tokens in, at least 0.2 SOL out.
// Mints come from the balance table, not the instruction.
//
//	09                tag SwapBaseIn
//	404b4c0000000000  amount_in              5_000_000
//	00c2eb0b00000000  minimum_amount_out   200_000_000
func ammV4SellFixture() Fixture {
	src, dst := FixtureKey("amm-src"), FixtureKey("amm-dst")
	accounts := []string{TokenProgram, FixtureKey("amm-pool"), RaydiumAMMAuthority, FixtureKey("amm-open-orders"),
		FixtureKey("amm-target-orders"), FixtureKey("amm-coin-vault"), FixtureKey("amm-pc-vault"), SerumDEXProgram,
		FixtureKey("serum-market"), FixtureKey("serum-bids"), FixtureKey("serum-asks"), FixtureKey("serum-events"),
		FixtureKey("serum-coin-vault"), FixtureKey("serum-pc-vault"), FixtureKey("serum-signer"),
		src, dst, FixtureWallet}
	ix := domain.Instruction{
		ProgramID: RaydiumAMMV4Program,
		Data:      mustHex("09404b4c000000000000c2eb0b00000000"),
		Accounts:  accounts,
	}
	balances := []domain.TokenBalance{
		{Account: src, Mint: FixtureTokenMint, Owner: FixtureWallet, Decimals: 6, Pre: 10_000_000, Post: 5_000_000},
		{Account: dst, Mint: domain.MintWSOL, Owner: FixtureWallet, Decimals: 9, Pre: 0, Post: 210_000_000},
	}
	return Fixture{
		Name:   "raydium_amm_v4_swap_base_in_sell",
		Update: singleInstruction("amm-sell", ix, balances, 0, 0),
		Want: &Expected{
			Protocol: domain.ProtocolRaydiumAmmV4, Direction: domain.DirectionSell,
			InputMint: FixtureTokenMint, OutputMint: domain.MintWSOL,
			InputAmount: 5_000_000, OutputAmount: 200_000_000,
		},
	}
}

// clmmV2BuyFixture: swap_v2, base input, 2 SOL in, at least 40 tokens out, no price limit.
//
//	2b04ed0b1ac91e62                  discriminator swap_v2
//	0094357700000000                  amount                 2_000_000_000
//	005a620200000000                  other_amount_threshold    40_000_000
//	00000000000000000000000000000000  sqrt_price_limit_x64 0
//	01                                is_base_input
func clmmV2BuyFixture() Fixture {
	inAcct, outAcct := FixtureKey("clmm-in"), FixtureKey("clmm-out")
	ix := domain.Instruction{
		ProgramID: RaydiumCLMMProgram,
		Data:      mustHex("2b04ed0b1ac91e620094357700000000005a6202000000000000000000000000000000000000000001"),
		Accounts: []string{
			FixtureWallet, FixtureKey("clmm-config"), FixtureKey("clmm-pool"), inAcct, outAcct,
			FixtureKey("clmm-in-vault"), FixtureKey("clmm-out-vault"), FixtureKey("clmm-observation"),
			TokenProgram, Token2022Program, MemoProgram, domain.MintWSOL, FixtureTokenMint,
			FixtureKey("clmm-tick-array"),
		},
	}
	balances := []domain.TokenBalance{
		{Account: inAcct, Mint: domain.MintWSOL, Owner: FixtureWallet, Decimals: 9, Pre: 3_000_000_000, Post: 1_000_000_000},
		{Account: outAcct, Mint: FixtureTokenMint, Owner: FixtureWallet, Decimals: 6, Pre: 0, Post: 41_000_000},
	}
	return Fixture{
		Name:   "raydium_clmm_swap_v2_buy",
		Update: singleInstruction("clmm-buy", ix, balances, 0, 0),
		Want: &Expected{
			Protocol: domain.ProtocolRaydiumClmm, Direction: domain.DirectionBuy,
			InputMint: domain.MintWSOL, OutputMint: FixtureTokenMint,
			InputAmount: 2_000_000_000, OutputAmount: 40_000_000,
		},
	}
}

func pumpAccounts() []string {
	return []string{
		PumpGlobal, PumpFeeRecipient, FixturePumpMint, FixtureKey("pump-curve"),
		FixtureKey("pump-curve-ata"), FixtureKey("pump-user-ata"), FixtureWallet,
		SystemProgram, TokenProgram, RentSysvar, PumpEventAuthority, PumpFunProgram,
	}
}

// pumpBuyFixture: buy 1_000_000 token units for at most 0.5 SOL.
//
//	66063d1201daebea  discriminator buy
//	40420f0000000000  amount         1_000_000
//	0065cd1d00000000  max_sol_cost 500_000_000
func pumpBuyFixture() Fixture {
	ix := domain.Instruction{
		ProgramID: PumpFunProgram,
		Data:      mustHex("66063d1201daebea40420f00000000000065cd1d00000000"),
		Accounts:  pumpAccounts(),
	}
	balances := []domain.TokenBalance{
		{Account: FixtureKey("pump-user-ata"), Mint: FixturePumpMint, Owner: FixtureWallet, Decimals: 6, Pre: 0, Post: 1_000_000},
	}
	return Fixture{
		Name:   "pumpfun_buy",
		Update: singleInstruction("pump-buy", ix, balances, 2_000_000_000, 1_510_000_000),
		Want: &Expected{
			Protocol: domain.ProtocolPumpFun, Direction: domain.DirectionBuy,
			InputMint: domain.MintWSOL, OutputMint: FixturePumpMint,
			InputAmount: 500_000_000, OutputAmount: 1_000_000,
		},
	}
}

// pumpSellFixture: sell 1_000_000 token units for at least 0.45 SOL.
//
//	33e685a4017f83ad  discriminator sell
//	40420f0000000000  amount           1_000_000
//	8074d21a00000000  min_sol_output 450_000_000
func pumpSellFixture() Fixture {
	ix := domain.Instruction{
		ProgramID: PumpFunProgram,
		Data:      mustHex("33e685a4017f83ad40420f00000000008074d21a00000000"),
		Accounts:  pumpAccounts(),
	}
	balances := []domain.TokenBalance{
		{Account: FixtureKey("pump-user-ata"), Mint: FixturePumpMint, Owner: FixtureWallet, Decimals: 6, Pre: 1_000_000, Post: 0},
	}
	return Fixture{
		Name:   "pumpfun_sell",
		Update: singleInstruction("pump-sell", ix, balances, 1_000_000_000, 1_459_995_000),
		Want: &Expected{
			Protocol: domain.ProtocolPumpFun, Direction: domain.DirectionSell,
			InputMint: FixturePumpMint, OutputMint: domain.MintWSOL,
			InputAmount: 1_000_000, OutputAmount: 450_000_000,
		},
	}
}

// clmmTruncatedFixture: swap_v2 cut off inside other_amount_threshold.
func clmmTruncatedFixture() Fixture {
	f := clmmV2BuyFixture()
	ix := f.Update.Instructions[0]
	ix.Data = mustHex("2b04ed0b1ac91e620094357700000000005a62")
	return Fixture{
		Name:    "raydium_clmm_truncated",
		Update:  singleInstruction("clmm-truncated", ix, f.Update.TokenBalances, 0, 0),
		WantErr: ErrTruncated,
	}
}
