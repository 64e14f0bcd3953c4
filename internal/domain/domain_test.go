package domain

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const (
	walletA = "9WzDXwBbmkg8ZTbNMqUxvQRAyrZzDsGYdLVL9zYtAWWM"
	walletB = "7xKXtg2CW87d97TXJSDpbD5jBkheTqA83TZRuJosgAsU"
)

func TestNewWatchSet(t *testing.T) {
	ws, err := NewWatchSet([]string{walletA, walletB})
	require.NoError(t, err)

	assert.Equal(t, 2, ws.Len())
	assert.True(t, ws.Contains(walletA))
	assert.False(t, ws.Contains(MintUSDC))
	assert.Equal(t, []string{walletA, walletB}, ws.Wallets())

	// Wallets returns a copy.
	got := ws.Wallets()
	got[0] = "mutated"
	assert.Equal(t, walletA, ws.Wallets()[0])
}

func TestNewWatchSet_Rejects(t *testing.T) {
	_, err := NewWatchSet([]string{walletA, walletA})
	assert.ErrorIs(t, err, ErrDuplicateWallet)

	_, err = NewWatchSet([]string{"not-an-address"})
	assert.Error(t, err)

	// Valid base58 but not 32 bytes.
	_, err = NewWatchSet([]string{"3yZe7d"})
	assert.Error(t, err)
}

func TestTradeEvent_Helpers(t *testing.T) {
	buy := &TradeEvent{
		Direction: DirectionBuy, InputMint: MintWSOL, InputAmount: 500_000_000,
		OutputMint: "token", OutputAmount: 1_000_000,
	}
	assert.Equal(t, "token", buy.TokenMint())
	v, ok := buy.SOLValueLamports()
	assert.True(t, ok)
	assert.Equal(t, uint64(500_000_000), v)

	sell := &TradeEvent{
		Direction: DirectionSell, InputMint: "token", InputAmount: 1_000_000,
		OutputMint: MintWSOL, OutputAmount: 450_000_000,
	}
	assert.Equal(t, "token", sell.TokenMint())
	v, ok = sell.SOLValueLamports()
	assert.True(t, ok)
	assert.Equal(t, uint64(450_000_000), v)

	usdc := &TradeEvent{Direction: DirectionBuy, InputMint: MintUSDC, OutputMint: "token"}
	_, ok = usdc.SOLValueLamports()
	assert.False(t, ok)
}

func TestRawUpdate_Lookups(t *testing.T) {
	u := &RawUpdate{
		Accounts:      []string{walletA, "ata"},
		TokenBalances: []TokenBalance{{Account: "ata", Mint: MintUSDC, Pre: 1, Post: 2}},
	}
	assert.True(t, u.Involves(walletA))
	assert.False(t, u.Involves(walletB))

	b, ok := u.MintOf("ata")
	require.True(t, ok)
	assert.Equal(t, MintUSDC, b.Mint)

	_, ok = u.MintOf("missing")
	assert.False(t, ok)
}

func TestInstruction_AccountWritable(t *testing.T) {
	ix := Instruction{Accounts: []string{"a", "b"}, Writable: []bool{true, false}, InnerIndex: -1}
	w, known := ix.AccountWritable(0)
	assert.True(t, known)
	assert.True(t, w)
	w, known = ix.AccountWritable(1)
	assert.True(t, known)
	assert.False(t, w)
	_, known = ix.AccountWritable(2)
	assert.False(t, known)
	assert.False(t, ix.IsInner())

	_, known = Instruction{Accounts: []string{"a"}}.AccountWritable(0)
	assert.False(t, known)
}

func TestEnums(t *testing.T) {
	for _, p := range AllProtocols {
		assert.True(t, p.IsValid())
	}
	assert.False(t, ProtocolKind("ORCA").IsValid())
	assert.True(t, DirectionSell.IsValid())
	assert.False(t, Direction("HOLD").IsValid())
	assert.True(t, OrderSucceeded.IsTerminal())
	assert.True(t, OrderFailedTerminal.IsTerminal())
	assert.False(t, OrderRetrying.IsTerminal())
	assert.True(t, RecordSizingRejected.IsValid())
}
