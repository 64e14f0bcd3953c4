package executor

import (
	"errors"
	"fmt"

	"solana-copy-trader/internal/decoder"
	"solana-copy-trader/internal/domain"
	"solana-copy-trader/internal/solana"
)

// ErrUnsupportedRoute is returned when an order's route cannot be rebuilt.
var ErrUnsupportedRoute = errors.New("unsupported route")

// readOnlyAccounts are never written by a swap. They are used when the original
// transaction did not carry writability flags.
var readOnlyAccounts = map[string]struct{}{
	decoder.SystemProgram:          {},
	decoder.TokenProgram:           {},
	decoder.Token2022Program:       {},
	decoder.AssociatedTokenProgram: {},
	decoder.MemoProgram:            {},
	decoder.RentSysvar:             {},
	decoder.RaydiumAMMAuthority:    {},
	decoder.RaydiumCPAuthority:     {},
	decoder.SerumDEXProgram:        {},
	decoder.PumpGlobal:             {},
	decoder.PumpEventAuthority:     {},
	decoder.RaydiumCPMMProgram:     {},
	decoder.RaydiumAMMV4Program:    {},
	decoder.RaydiumCLMMProgram:     {},
	decoder.PumpFunProgram:         {},
}

// userSlots are the positions in a route the copy wallet takes over.
// A side of -1 is settled in native SOL by the owner itself.
type userSlots struct {
	owner         int
	input, output int
	inputProgram  string
	outputProgram string
}

// Builder rebuilds a swap against the original pool for the copy wallet.
type Builder struct {
	wallet string
}

// NewBuilder creates a builder for the copy wallet's public key.
func NewBuilder(wallet string) *Builder {
	return &Builder{wallet: wallet}
}

// Build returns the instructions of the mirrored transaction: compute budget,
// token account setup, the swap itself and wrapped SOL cleanup.
//
// The route's accounts are reused with the signer replaced by the copy wallet
// and the user token accounts replaced by the copy wallet's associated token
// accounts for the same mints.
func (b *Builder) Build(o *domain.ExecutionOrder) ([]solana.TxInstruction, error) {
	route := o.Route
	slots, err := routeSlots(o)
	if err != nil {
		return nil, err
	}
	data, err := swapData(o)
	if err != nil {
		return nil, err
	}

	subst := map[int]string{slots.owner: b.wallet}
	var inATA, outATA string
	if slots.input >= 0 {
		if inATA, err = b.ata(o.InputMint, slots.inputProgram); err != nil {
			return nil, err
		}
		subst[slots.input] = inATA
	}
	if slots.output >= 0 {
		if outATA, err = b.ata(o.OutputMint, slots.outputProgram); err != nil {
			return nil, err
		}
		subst[slots.output] = outATA
	}

	var ixs []solana.TxInstruction
	if o.ComputeUnitLimit > 0 {
		ixs = append(ixs, solana.SetComputeUnitLimit(o.ComputeUnitLimit))
	}
	if o.PriorityFee > 0 {
		ixs = append(ixs, solana.SetComputeUnitPrice(o.PriorityFee))
	}

	wrapIn := inATA != "" && o.InputMint == domain.MintWSOL
	if wrapIn {
		ixs = append(ixs,
			solana.CreateAssociatedTokenAccountIdempotent(b.wallet, inATA, b.wallet, o.InputMint, slots.inputProgram),
			solana.TransferSOL(b.wallet, inATA, o.AmountIn),
			solana.SyncNative(inATA, slots.inputProgram),
		)
	}
	if outATA != "" {
		ixs = append(ixs, solana.CreateAssociatedTokenAccountIdempotent(b.wallet, outATA, b.wallet, o.OutputMint, slots.outputProgram))
	}

	metas := make([]solana.AccountMeta, len(route.Accounts))
	for i, addr := range route.Accounts {
		if sub, ok := subst[i]; ok {
			metas[i] = solana.AccountMeta{Address: sub, Writable: true, Signer: i == slots.owner}
			continue
		}
		metas[i] = solana.AccountMeta{Address: addr, Writable: writable(o, i, addr)}
	}
	ixs = append(ixs, solana.TxInstruction{ProgramID: route.ProgramID, Accounts: metas, Data: data})

	// unwrap whatever wrapped SOL the swap left or produced
	switch {
	case wrapIn:
		ixs = append(ixs, solana.CloseAccount(inATA, b.wallet, b.wallet, slots.inputProgram))
	case outATA != "" && o.OutputMint == domain.MintWSOL:
		ixs = append(ixs, solana.CloseAccount(outATA, b.wallet, b.wallet, slots.outputProgram))
	}
	return ixs, nil
}

// Funding is what the copy wallet must hold to send an order.
type Funding struct {
	// TokenAccount is empty when the input is paid from native SOL.
	TokenAccount string
	Mint         string
	Amount       uint64
}

// Funding returns the balance an order spends: lamports for SOL input, the
// copy wallet's token account for the input mint otherwise.
func (b *Builder) Funding(o *domain.ExecutionOrder) (Funding, error) {
	if o.InputMint == domain.MintWSOL {
		return Funding{Mint: o.InputMint, Amount: o.AmountIn}, nil
	}
	slots, err := routeSlots(o)
	if err != nil {
		return Funding{}, err
	}
	if slots.input < 0 {
		return Funding{Mint: o.InputMint, Amount: o.AmountIn}, nil
	}
	account, err := b.ata(o.InputMint, slots.inputProgram)
	if err != nil {
		return Funding{}, err
	}
	return Funding{TokenAccount: account, Mint: o.InputMint, Amount: o.AmountIn}, nil
}

func (b *Builder) ata(mint, tokenProgram string) (string, error) {
	addr, err := solana.FindAssociatedTokenAddress(b.wallet, mint, tokenProgram)
	if err != nil {
		return "", fmt.Errorf("derive token account for %s: %w", mint, err)
	}
	return addr, nil
}

func routeSlots(o *domain.ExecutionOrder) (userSlots, error) {
	accounts := o.Route.Accounts
	at := func(i int) string {
		if i < len(accounts) {
			return accounts[i]
		}
		return ""
	}

	var s userSlots
	switch o.Protocol {
	case domain.ProtocolRaydiumCpmm:
		owner, in, out, inProg, outProg := decoder.CPMMUserAccounts()
		s = userSlots{owner: owner, input: in, output: out, inputProgram: at(inProg), outputProgram: at(outProg)}
	case domain.ProtocolRaydiumAmmV4:
		owner, in, out, ok := decoder.AMMV4UserAccounts(len(accounts))
		if !ok {
			return s, fmt.Errorf("%w: amm v4 with %d accounts", ErrUnsupportedRoute, len(accounts))
		}
		s = userSlots{owner: owner, input: in, output: out, inputProgram: at(0), outputProgram: at(0)}
	case domain.ProtocolRaydiumClmm:
		owner, in, out, prog := decoder.CLMMUserAccounts()
		s = userSlots{owner: owner, input: in, output: out, inputProgram: at(prog), outputProgram: at(prog)}
	case domain.ProtocolPumpFun:
		_, userATA, user := decoder.PumpUserAccounts()
		prog := pumpTokenProgram(accounts)
		s = userSlots{owner: user, input: -1, output: userATA, outputProgram: prog}
		if o.Direction == domain.DirectionSell {
			s = userSlots{owner: user, input: userATA, output: -1, inputProgram: prog}
		}
	default:
		return s, fmt.Errorf("%w: protocol %q", ErrUnsupportedRoute, o.Protocol)
	}

	for _, i := range []int{s.owner, s.input, s.output} {
		if i >= len(accounts) {
			return s, fmt.Errorf("%w: %s route has %d accounts", ErrUnsupportedRoute, o.Protocol, len(accounts))
		}
	}
	return s, nil
}

func pumpTokenProgram(accounts []string) string {
	for _, a := range accounts {
		if a == decoder.Token2022Program {
			return a
		}
	}
	return decoder.TokenProgram
}

func swapData(o *domain.ExecutionOrder) ([]byte, error) {
	switch o.Protocol {
	case domain.ProtocolRaydiumCpmm:
		return decoder.EncodeCPMMSwapBaseInput(o.AmountIn, o.AmountOut), nil
	case domain.ProtocolRaydiumAmmV4:
		return decoder.EncodeAMMV4SwapBaseIn(o.AmountIn, o.AmountOut), nil
	case domain.ProtocolRaydiumClmm:
		return decoder.EncodeCLMMSwap(o.Route.Variant == "swap_v2", o.AmountIn, o.AmountOut), nil
	case domain.ProtocolPumpFun:
		if o.Direction == domain.DirectionSell {
			return decoder.EncodePumpSell(o.AmountIn, o.AmountOut), nil
		}
		// buy fixes the token amount and bounds the SOL cost
		return decoder.EncodePumpBuy(o.AmountOut, o.AmountIn), nil
	}
	return nil, fmt.Errorf("%w: protocol %q", ErrUnsupportedRoute, o.Protocol)
}

func writable(o *domain.ExecutionOrder, i int, addr string) bool {
	if len(o.Route.Writable) == len(o.Route.Accounts) {
		return o.Route.Writable[i]
	}
	if _, ok := readOnlyAccounts[addr]; ok {
		return false
	}
	return addr != o.InputMint && addr != o.OutputMint && addr != o.Route.ProgramID
}
