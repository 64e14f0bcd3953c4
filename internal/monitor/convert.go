package monitor

import (
	"errors"
	"fmt"
	"time"

	"github.com/mr-tron/base58"

	"solana-copy-trader/internal/domain"
	"solana-copy-trader/internal/solana"
)

// ErrMalformedTransaction is returned when a fetched transaction references
// accounts or balances outside its own key list.
var ErrMalformedTransaction = errors.New("malformed transaction")

// ToRawUpdate flattens a fetched transaction into a RawUpdate for wallet.
// Inner instructions follow their parent in execution order.
func ToRawUpdate(tx *solana.Transaction, wallet string, receivedAt time.Time) (*domain.RawUpdate, error) {
	if tx == nil || tx.Message == nil {
		return nil, fmt.Errorf("%w: missing message", ErrMalformedTransaction)
	}

	keys := tx.AllAccountKeys()
	u := &domain.RawUpdate{
		Signature:  tx.Signature,
		Slot:       tx.Slot,
		BlockTime:  tx.BlockTime,
		Wallet:     wallet,
		Accounts:   keys,
		ReceivedAt: receivedAt.UnixMilli(),
	}

	inner := make(map[int][]solana.CompiledInstruction)
	if tx.Meta != nil {
		for _, group := range tx.Meta.InnerInstructions {
			inner[group.Index] = append(inner[group.Index], group.Instructions...)
		}
	}

	for i, ci := range tx.Message.Instructions {
		ix, err := resolveInstruction(tx, keys, ci)
		if err != nil {
			return nil, fmt.Errorf("instruction %d: %w", i, err)
		}
		ix.Index = i
		ix.InnerIndex = -1
		u.Instructions = append(u.Instructions, ix)

		for j, ici := range inner[i] {
			iix, err := resolveInstruction(tx, keys, ici)
			if err != nil {
				return nil, fmt.Errorf("instruction %d.%d: %w", i, j, err)
			}
			iix.Index = i
			iix.InnerIndex = j
			u.Instructions = append(u.Instructions, iix)
		}
	}

	if tx.Meta == nil {
		return u, nil
	}
	u.Fee = tx.Meta.Fee

	balances, err := mergeTokenBalances(keys, tx.Meta.PreTokenBalances, tx.Meta.PostTokenBalances)
	if err != nil {
		return nil, err
	}
	u.TokenBalances = balances

	for i, k := range keys {
		if k != wallet {
			continue
		}
		if i < len(tx.Meta.PreBalances) {
			u.NativePre = tx.Meta.PreBalances[i]
		}
		if i < len(tx.Meta.PostBalances) {
			u.NativePost = tx.Meta.PostBalances[i]
		}
		break
	}

	return u, nil
}

func resolveInstruction(tx *solana.Transaction, keys []string, ci solana.CompiledInstruction) (domain.Instruction, error) {
	if ci.ProgramIDIndex < 0 || ci.ProgramIDIndex >= len(keys) {
		return domain.Instruction{}, fmt.Errorf("%w: program index %d of %d keys",
			ErrMalformedTransaction, ci.ProgramIDIndex, len(keys))
	}

	data, err := base58.Decode(ci.Data)
	if err != nil {
		return domain.Instruction{}, fmt.Errorf("%w: instruction data: %v", ErrMalformedTransaction, err)
	}

	ix := domain.Instruction{
		ProgramID: keys[ci.ProgramIDIndex],
		Data:      data,
		Accounts:  make([]string, len(ci.Accounts)),
		Writable:  make([]bool, len(ci.Accounts)),
	}
	for n, idx := range ci.Accounts {
		if idx < 0 || idx >= len(keys) {
			return domain.Instruction{}, fmt.Errorf("%w: account index %d of %d keys",
				ErrMalformedTransaction, idx, len(keys))
		}
		ix.Accounts[n] = keys[idx]
		ix.Writable[n] = tx.IsWritable(idx)
	}
	return ix, nil
}

// mergeTokenBalances joins pre and post entries by account index. An account
// missing on one side was created or closed by the transaction and counts as zero there.
func mergeTokenBalances(keys []string, pre, post []solana.TokenBalance) ([]domain.TokenBalance, error) {
	byIndex := make(map[int]*domain.TokenBalance)
	var order []int

	add := func(b solana.TokenBalance, isPost bool) error {
		if b.AccountIndex < 0 || b.AccountIndex >= len(keys) {
			return fmt.Errorf("%w: token balance index %d of %d keys",
				ErrMalformedTransaction, b.AccountIndex, len(keys))
		}
		amount, err := solana.ParseAmount(b.Amount)
		if err != nil {
			return fmt.Errorf("%w: token amount %q: %v", ErrMalformedTransaction, b.Amount, err)
		}

		entry, ok := byIndex[b.AccountIndex]
		if !ok {
			entry = &domain.TokenBalance{
				Account:  keys[b.AccountIndex],
				Mint:     b.Mint,
				Owner:    b.Owner,
				Decimals: b.Decimals,
			}
			byIndex[b.AccountIndex] = entry
			order = append(order, b.AccountIndex)
		}
		if isPost {
			entry.Post = amount
		} else {
			entry.Pre = amount
		}
		return nil
	}

	for _, b := range pre {
		if err := add(b, false); err != nil {
			return nil, err
		}
	}
	for _, b := range post {
		if err := add(b, true); err != nil {
			return nil, err
		}
	}

	out := make([]domain.TokenBalance, 0, len(order))
	for _, idx := range order {
		out = append(out, *byIndex[idx])
	}
	return out, nil
}
