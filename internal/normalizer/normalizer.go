// Package normalizer turns raw updates into canonical trade events.
//
// For every update the normalizer drops redeliveries, decodes each instruction
// through the decoder registry and emits one TradeEvent per swap executed by
// the watched wallet. Decode failures skip the instruction, never the update.
package normalizer

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"solana-copy-trader/internal/decoder"
	"solana-copy-trader/internal/domain"
	"solana-copy-trader/internal/idhash"
	"solana-copy-trader/internal/observability"
)

// Errors returned by Normalize.
var (
	// ErrDuplicate is returned for an update whose signature was already processed.
	ErrDuplicate = errors.New("duplicate update")

	// ErrUnresolvedMint is returned when a swap side's mint cannot be determined.
	ErrUnresolvedMint = errors.New("unresolved mint")

	// ErrForeignOwner is returned when the swap was signed by someone other than the watched wallet.
	ErrForeignOwner = errors.New("swap owner is not the watched wallet")
)

// MintResolver looks up the mint of a token account that is absent from the
// update's balance table.
type MintResolver interface {
	TokenAccountMint(ctx context.Context, tokenAccount string) (string, error)
}

// UpdateSource is drained by Run. monitor.Queue implements it.
type UpdateSource interface {
	Pop(ctx context.Context) (*domain.RawUpdate, bool)
}

// Options configures a Normalizer.
type Options struct {
	// Registry defaults to decoder.NewRegistry().
	Registry *decoder.Registry
	// Dedup defaults to an LRU of DefaultDedupSize.
	Dedup Deduper
	// Resolver is optional.
	Resolver MintResolver
	Logger   *zap.Logger
}

// Normalizer is safe for concurrent use if its Deduper is.
type Normalizer struct {
	registry *decoder.Registry
	dedup    Deduper
	resolver MintResolver
	logger   *zap.Logger
}

// New creates a Normalizer.
func New(opts Options) (*Normalizer, error) {
	logger := opts.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	registry := opts.Registry
	if registry == nil {
		registry = decoder.NewRegistry()
	}
	dedup := opts.Dedup
	if dedup == nil {
		local, err := NewLRUDedup(DefaultDedupSize)
		if err != nil {
			return nil, err
		}
		dedup = local
	}
	return &Normalizer{
		registry: registry,
		dedup:    dedup,
		resolver: opts.Resolver,
		logger:   logger.Named("normalizer"),
	}, nil
}

// DedupKey identifies an update for redelivery checks. A transaction that
// touches two watched wallets arrives once per wallet and is processed for each.
func DedupKey(u *domain.RawUpdate) string {
	return u.Signature + "/" + u.Wallet
}

// Normalize decodes u into zero or more trade events in instruction order.
// Returns ErrDuplicate when u was already normalized.
func (n *Normalizer) Normalize(ctx context.Context, u *domain.RawUpdate) ([]*domain.TradeEvent, error) {
	seen, err := n.dedup.Seen(ctx, DedupKey(u))
	if err != nil {
		return nil, fmt.Errorf("dedup: %w", err)
	}
	if seen {
		return nil, ErrDuplicate
	}

	walletDeltas := WalletDeltas(u)
	var events []*domain.TradeEvent
	for _, ix := range u.Instructions {
		d, ok := n.registry.Lookup(ix.ProgramID)
		if !ok {
			continue
		}
		protocol := d.Protocol()

		frag, err := d.Decode(ix.Data, ix.Accounts)
		if err != nil {
			n.skip(u, ix, protocol, decodeReason(err), err)
			continue
		}

		ev, err := n.assemble(ctx, u, ix, frag, walletDeltas)
		if err != nil {
			n.skip(u, ix, protocol, assembleReason(err), err)
			continue
		}

		observability.RecordTradeEvent(ev.Protocol.String(), ev.Direction.String())
		events = append(events, ev)
	}
	return events, nil
}

func (n *Normalizer) assemble(
	ctx context.Context,
	u *domain.RawUpdate,
	ix domain.Instruction,
	frag *decoder.Fragment,
	deltas map[string]decimal.Decimal,
) (*domain.TradeEvent, error) {
	if frag.Owner != u.Wallet {
		return nil, fmt.Errorf("%w: %s", ErrForeignOwner, frag.Owner)
	}

	inputMint, err := n.resolveMint(ctx, u, frag.InputMint, frag.InputAccount)
	if err != nil {
		return nil, err
	}
	outputMint, err := n.resolveMint(ctx, u, frag.OutputMint, frag.OutputAccount)
	if err != nil {
		return nil, err
	}

	direction, err := InferDirection(deltas, inputMint, outputMint)
	if err != nil {
		return nil, err
	}

	inDecimals := mintDecimals(u, inputMint, frag.Protocol)
	outDecimals := mintDecimals(u, outputMint, frag.Protocol)

	var price float64
	if frag.AmountIn > 0 {
		price = humanAmount(frag.AmountOut, outDecimals).
			Div(humanAmount(frag.AmountIn, inDecimals)).
			InexactFloat64()
	}

	route := domain.Route{
		ProgramID: ix.ProgramID,
		Accounts:  append([]string(nil), ix.Accounts...),
		Variant:   frag.Variant,
		ExactIn:   frag.ExactIn,
	}
	if len(ix.Writable) == len(ix.Accounts) {
		route.Writable = append([]bool(nil), ix.Writable...)
	}

	return &domain.TradeEvent{
		EventID:          idhash.ComputeEventID(u.Signature, ix.Index, ix.InnerIndex),
		Signature:        u.Signature,
		Slot:             u.Slot,
		BlockTime:        u.BlockTime,
		Wallet:           u.Wallet,
		Protocol:         frag.Protocol,
		Direction:        direction,
		InputMint:        inputMint,
		InputAmount:      frag.AmountIn,
		InputDecimals:    inDecimals,
		OutputMint:       outputMint,
		OutputAmount:     frag.AmountOut,
		OutputDecimals:   outDecimals,
		Price:            price,
		Route:            route,
		InstructionIndex: ix.Index,
		InnerIndex:       ix.InnerIndex,
		ReceivedAt:       u.ReceivedAt,
	}, nil
}

// resolveMint prefers the mint named by the instruction, then the balance table,
// then the resolver.
func (n *Normalizer) resolveMint(ctx context.Context, u *domain.RawUpdate, mint, account string) (string, error) {
	if mint != "" {
		return mint, nil
	}
	if b, ok := u.MintOf(account); ok {
		return b.Mint, nil
	}
	if n.resolver == nil {
		return "", fmt.Errorf("%w: %s", ErrUnresolvedMint, account)
	}
	mint, err := n.resolver.TokenAccountMint(ctx, account)
	if err != nil {
		return "", fmt.Errorf("%w: %s: %v", ErrUnresolvedMint, account, err)
	}
	return mint, nil
}

// mintDecimals reads decimals from the balance table, falling back to known mints.
func mintDecimals(u *domain.RawUpdate, mint string, protocol domain.ProtocolKind) uint8 {
	for _, b := range u.TokenBalances {
		if b.Mint == mint {
			return b.Decimals
		}
	}
	switch {
	case mint == domain.MintWSOL:
		return 9
	case mint == domain.MintUSDC:
		return 6
	case protocol == domain.ProtocolPumpFun:
		return 6 // every bonding-curve mint
	}
	return 0
}

func (n *Normalizer) skip(u *domain.RawUpdate, ix domain.Instruction, protocol domain.ProtocolKind, reason string, err error) {
	observability.RecordDecodeError(protocol.String(), reason)
	n.logger.Debug("instruction skipped",
		zap.String("signature", u.Signature),
		zap.String("protocol", protocol.String()),
		zap.Int("index", ix.Index),
		zap.Int("inner_index", ix.InnerIndex),
		zap.String("reason", reason),
		zap.Error(err),
	)
}

func decodeReason(err error) string {
	switch {
	case errors.Is(err, decoder.ErrTruncated):
		return "truncated"
	case errors.Is(err, decoder.ErrUnknownDiscriminator):
		return "unknown_discriminator"
	case errors.Is(err, decoder.ErrAccounts):
		return "accounts"
	}
	return "other"
}

func assembleReason(err error) string {
	switch {
	case errors.Is(err, ErrForeignOwner):
		return "foreign_owner"
	case errors.Is(err, ErrUnresolvedMint):
		return "unresolved_mint"
	case errors.Is(err, ErrDirectionConflict):
		return "direction_conflict"
	}
	return "other"
}

// Run drains src until it is closed or ctx is done, sending every event to out.
// Run closes out when it returns.
func (n *Normalizer) Run(ctx context.Context, src UpdateSource, out chan<- *domain.TradeEvent) error {
	defer close(out)

	for {
		u, ok := src.Pop(ctx)
		if !ok {
			return nil
		}

		started := time.Now()
		events, err := n.Normalize(ctx, u)
		switch {
		case errors.Is(err, ErrDuplicate):
			n.logger.Debug("duplicate update", zap.String("signature", u.Signature), zap.String("wallet", u.Wallet))
			continue
		case err != nil:
			n.logger.Warn("normalize failed", zap.String("signature", u.Signature), zap.Error(err))
			continue
		}

		if len(events) > 0 {
			n.logger.Info("trades detected",
				zap.String("signature", u.Signature),
				zap.String("wallet", u.Wallet),
				zap.Int("events", len(events)),
				zap.Duration("decode_time", time.Since(started)),
			)
		}

		for _, ev := range events {
			select {
			case out <- ev:
			case <-ctx.Done():
				return nil
			}
		}
	}
}
