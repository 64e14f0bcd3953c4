package decoder

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"solana-copy-trader/internal/domain"
)

func TestRegistry_DefaultDecoders(t *testing.T) {
	r := NewRegistry()

	for _, p := range domain.AllProtocols {
		id, ok := r.ProgramFor(p)
		require.True(t, ok, "no program registered for %s", p)

		d, ok := r.Lookup(id)
		require.True(t, ok)
		assert.Equal(t, p, d.Protocol())
	}
	assert.Len(t, r.Programs(), 4)
}

func TestRegistry_UnknownProgram(t *testing.T) {
	r := NewRegistry()

	_, err := r.Decode(domain.Instruction{ProgramID: SystemProgram, Data: []byte{2, 0, 0, 0}})
	assert.ErrorIs(t, err, ErrUnknownProgram)
}

type stubDecoder struct{}

func (stubDecoder) Protocol() domain.ProtocolKind { return "STUB" }
func (stubDecoder) ProgramID() string             { return "stub-program" }
func (stubDecoder) Decode([]byte, []string) (*Fragment, error) {
	return &Fragment{Protocol: "STUB", AmountIn: 1}, nil
}

func TestRegistry_RegisterExtends(t *testing.T) {
	r := NewRegistry()
	r.Register(stubDecoder{})

	f, err := r.Decode(domain.Instruction{ProgramID: "stub-program"})
	require.NoError(t, err)
	assert.Equal(t, domain.ProtocolKind("STUB"), f.Protocol)
	assert.Len(t, r.Programs(), 5)
}

func TestFixtures_Decode(t *testing.T) {
	r := NewRegistry()

	for _, fx := range Fixtures() {
		t.Run(fx.Name, func(t *testing.T) {
			require.Len(t, fx.Update.Instructions, 1)
			f, err := r.Decode(fx.Update.Instructions[0])

			if fx.Want == nil {
				require.Error(t, err)
				assert.True(t, errors.Is(err, fx.WantErr), "got %v", err)
				return
			}
			require.NoError(t, err)

			assert.Equal(t, fx.Want.Protocol, f.Protocol)
			assert.Equal(t, fx.Want.InputAmount, f.AmountIn)
			assert.Equal(t, fx.Want.OutputAmount, f.AmountOut)
			assert.Equal(t, FixtureWallet, f.Owner)
			if f.InputMint != "" {
				assert.Equal(t, fx.Want.InputMint, f.InputMint)
				assert.Equal(t, fx.Want.OutputMint, f.OutputMint)
			}
			if f.Direction != "" {
				assert.Equal(t, fx.Want.Direction, f.Direction)
			}
		})
	}
}

func TestFixtures_DecodeIsPure(t *testing.T) {
	r := NewRegistry()

	for _, fx := range Fixtures() {
		ix := fx.Update.Instructions[0]
		before := append([]byte(nil), ix.Data...)

		a, errA := r.Decode(ix)
		b, errB := r.Decode(ix)

		assert.Equal(t, a, b, fx.Name)
		assert.Equal(t, errA, errB, fx.Name)
		assert.Equal(t, before, ix.Data, "decode mutated payload for %s", fx.Name)
	}
}
