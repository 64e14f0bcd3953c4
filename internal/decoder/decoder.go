// Package decoder turns raw swap instructions of supported AMM programs into
// protocol-independent trade fragments.
package decoder

import (
	"errors"
	"fmt"

	"solana-copy-trader/internal/domain"
)

// Decode errors. All are non-fatal for the stream: the instruction is skipped.
var (
	// ErrUnknownProgram is returned when no decoder is registered for the program.
	ErrUnknownProgram = errors.New("unknown program")

	// ErrUnknownDiscriminator is returned for instructions of a known program
	// that are not swaps (or not a layout we know).
	ErrUnknownDiscriminator = errors.New("unknown discriminator")

	// ErrTruncated is returned when the payload is shorter than the layout requires.
	ErrTruncated = errors.New("truncated payload")

	// ErrAccounts is returned when the account list does not match the layout.
	ErrAccounts = errors.New("malformed account list")
)

// Fragment is the decoded content of a single swap instruction.
// Mints may be empty when the layout does not reference them; the normalizer
// resolves them from the token-balance table through InputAccount/OutputAccount.
type Fragment struct {
	Protocol  domain.ProtocolKind
	Direction domain.Direction // empty when roles alone cannot tell

	Owner         string // signing user
	InputAccount  string // user token account debited
	OutputAccount string // user token account credited
	InputMint     string
	OutputMint    string

	// AmountIn is exact when ExactIn, otherwise the declared maximum.
	AmountIn uint64
	// AmountOut is the declared minimum when ExactIn, otherwise exact.
	AmountOut uint64
	ExactIn   bool

	Variant string
}

// Decoder decodes instructions of one program.
type Decoder interface {
	Protocol() domain.ProtocolKind
	ProgramID() string
	Decode(data []byte, accounts []string) (*Fragment, error)
}

// RoleDirection applies the quote-side rule to declared instruction roles:
// spending a quote mint is a buy of the output, receiving one is a sell of the input.
// WSOL outranks USDC, so a USDC to SOL swap is a sell of USDC.
// Returns empty when either mint is unknown.
func RoleDirection(inputMint, outputMint string) domain.Direction {
	if inputMint == "" || outputMint == "" {
		return ""
	}
	switch {
	case inputMint == domain.MintWSOL:
		return domain.DirectionBuy
	case outputMint == domain.MintWSOL:
		return domain.DirectionSell
	case inputMint == domain.MintUSDC:
		return domain.DirectionBuy
	case outputMint == domain.MintUSDC:
		return domain.DirectionSell
	}
	return domain.DirectionBuy
}

func truncated(protocol domain.ProtocolKind, need, got int) error {
	return fmt.Errorf("%s: %w: need %d bytes, got %d", protocol, ErrTruncated, need, got)
}

func badAccounts(protocol domain.ProtocolKind, need, got int) error {
	return fmt.Errorf("%s: %w: need %d accounts, got %d", protocol, ErrAccounts, need, got)
}

func unknownDiscriminator(protocol domain.ProtocolKind, disc []byte) error {
	return fmt.Errorf("%s: %w: %x", protocol, ErrUnknownDiscriminator, disc)
}
