package decoder

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"solana-copy-trader/internal/domain"
)

func TestRaydiumCPMM_SwapBaseOutput(t *testing.T) {
	accounts := cpmmBuyFixture().Update.Instructions[0].Accounts
	data := append([]byte{}, cpmmSwapBaseOutput[:]...)
	data = putUint64LE(data, 900)
	data = putUint64LE(data, 100)

	f, err := NewRaydiumCPMM().Decode(data, accounts)
	require.NoError(t, err)

	assert.False(t, f.ExactIn)
	assert.Equal(t, uint64(900), f.AmountIn)
	assert.Equal(t, uint64(100), f.AmountOut)
	assert.Equal(t, "swap_base_output", f.Variant)
}

func TestRaydiumCPMM_Errors(t *testing.T) {
	accounts := cpmmBuyFixture().Update.Instructions[0].Accounts
	d := NewRaydiumCPMM()

	_, err := d.Decode([]byte{1, 2, 3}, accounts)
	assert.ErrorIs(t, err, ErrTruncated)

	_, err = d.Decode(make([]byte, 24), accounts)
	assert.ErrorIs(t, err, ErrUnknownDiscriminator)

	_, err = d.Decode(EncodeCPMMSwapBaseInput(1, 1), accounts[:5])
	assert.ErrorIs(t, err, ErrAccounts)
}

func TestRaydiumAMMV4_SeventeenAccounts(t *testing.T) {
	full := ammV4SellFixture().Update.Instructions[0].Accounts
	// drop target_orders
	accounts := append(append([]string{}, full[:4]...), full[5:]...)

	f, err := NewRaydiumAMMV4().Decode(EncodeAMMV4SwapBaseIn(7, 3), accounts)
	require.NoError(t, err)

	assert.Equal(t, "17", f.Variant)
	assert.Equal(t, FixtureWallet, f.Owner)
	assert.Equal(t, FixtureKey("amm-src"), f.InputAccount)
	assert.Equal(t, FixtureKey("amm-dst"), f.OutputAccount)
	assert.Equal(t, uint64(7), f.AmountIn)
	assert.Equal(t, uint64(3), f.AmountOut)
	assert.Empty(t, f.Direction)
}

func TestRaydiumAMMV4_Errors(t *testing.T) {
	accounts := ammV4SellFixture().Update.Instructions[0].Accounts
	d := NewRaydiumAMMV4()

	_, err := d.Decode(nil, accounts)
	assert.ErrorIs(t, err, ErrTruncated)

	// tag 3 is deposit
	_, err = d.Decode([]byte{3, 0, 0}, accounts)
	assert.ErrorIs(t, err, ErrUnknownDiscriminator)

	_, err = d.Decode([]byte{9, 1, 2}, accounts)
	assert.ErrorIs(t, err, ErrTruncated)

	_, err = d.Decode(EncodeAMMV4SwapBaseIn(1, 1), accounts[:10])
	assert.ErrorIs(t, err, ErrAccounts)
}

func TestRaydiumCLMM_SwapV1BaseOutput(t *testing.T) {
	accounts := clmmV2BuyFixture().Update.Instructions[0].Accounts[:10]
	data := append([]byte{}, clmmSwap[:]...)
	data = putUint64LE(data, 500)  // amount out
	data = putUint64LE(data, 1000) // max in
	data = putUint64LE(data, 11)
	data = putUint64LE(data, 22)
	data = append(data, 0)

	f, err := NewRaydiumCLMM().Decode(data, accounts)
	require.NoError(t, err)

	assert.Equal(t, "swap", f.Variant)
	assert.False(t, f.ExactIn)
	assert.Equal(t, uint64(1000), f.AmountIn)
	assert.Equal(t, uint64(500), f.AmountOut)
	assert.Empty(t, f.InputMint)

	lo, hi, ok := SqrtPriceLimit(data)
	require.True(t, ok)
	assert.Equal(t, uint64(11), lo)
	assert.Equal(t, uint64(22), hi)
}

func TestRaydiumCLMM_EncodeRoundTrip(t *testing.T) {
	accounts := clmmV2BuyFixture().Update.Instructions[0].Accounts

	f, err := NewRaydiumCLMM().Decode(EncodeCLMMSwap(true, 123, 45), accounts)
	require.NoError(t, err)

	assert.True(t, f.ExactIn)
	assert.Equal(t, uint64(123), f.AmountIn)
	assert.Equal(t, uint64(45), f.AmountOut)
	assert.Equal(t, domain.DirectionBuy, f.Direction)
}

func TestRaydiumCLMM_V2NeedsMintAccounts(t *testing.T) {
	accounts := clmmV2BuyFixture().Update.Instructions[0].Accounts[:11]

	_, err := NewRaydiumCLMM().Decode(EncodeCLMMSwap(true, 1, 1), accounts)
	assert.ErrorIs(t, err, ErrAccounts)
}

func TestPumpFun_EncodeDecode(t *testing.T) {
	d := NewPumpFun()

	buy, err := d.Decode(EncodePumpBuy(10, 20), pumpAccounts())
	require.NoError(t, err)
	assert.Equal(t, domain.DirectionBuy, buy.Direction)
	assert.Equal(t, uint64(20), buy.AmountIn)
	assert.Equal(t, uint64(10), buy.AmountOut)

	sell, err := d.Decode(EncodePumpSell(10, 20), pumpAccounts())
	require.NoError(t, err)
	assert.Equal(t, domain.DirectionSell, sell.Direction)
	assert.Equal(t, uint64(10), sell.AmountIn)
	assert.Equal(t, uint64(20), sell.AmountOut)
	assert.Equal(t, FixturePumpMint, sell.InputMint)
}

func TestPumpFun_Errors(t *testing.T) {
	d := NewPumpFun()

	_, err := d.Decode(pumpBuy[:], pumpAccounts())
	assert.ErrorIs(t, err, ErrTruncated)

	_, err = d.Decode(EncodePumpBuy(1, 1), pumpAccounts()[:6])
	assert.ErrorIs(t, err, ErrAccounts)

	// create instruction
	create := []byte{24, 30, 200, 40, 5, 28, 7, 119}
	_, err = d.Decode(create, pumpAccounts())
	assert.ErrorIs(t, err, ErrUnknownDiscriminator)
}

func TestRoleDirection(t *testing.T) {
	token := FixtureTokenMint

	assert.Equal(t, domain.DirectionBuy, RoleDirection(domain.MintWSOL, token))
	assert.Equal(t, domain.DirectionSell, RoleDirection(token, domain.MintWSOL))
	assert.Equal(t, domain.DirectionBuy, RoleDirection(domain.MintUSDC, token))
	assert.Equal(t, domain.DirectionSell, RoleDirection(token, domain.MintUSDC))
	assert.Equal(t, domain.DirectionBuy, RoleDirection(token, FixturePumpMint))
	assert.Equal(t, domain.DirectionBuy, RoleDirection(domain.MintWSOL, domain.MintUSDC))
	assert.Equal(t, domain.DirectionSell, RoleDirection(domain.MintUSDC, domain.MintWSOL))
	assert.Empty(t, RoleDirection("", token))
}
