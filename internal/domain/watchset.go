package domain

import (
	"errors"
	"fmt"

	"github.com/mr-tron/base58"
)

// ErrDuplicateWallet is returned when two WatchSet entries alias the same address.
var ErrDuplicateWallet = errors.New("duplicate wallet in watch set")

// WatchSet is the immutable set of wallets under observation.
type WatchSet struct {
	wallets []string
	index   map[string]struct{}
}

// NewWatchSet validates addresses and builds a WatchSet.
// Each address must be base58 encoding of 32 bytes and appear once.
func NewWatchSet(addresses []string) (WatchSet, error) {
	ws := WatchSet{index: make(map[string]struct{}, len(addresses))}
	for _, a := range addresses {
		raw, err := base58.Decode(a)
		if err != nil || len(raw) != 32 {
			return WatchSet{}, fmt.Errorf("invalid wallet address %q", a)
		}
		// re-encode to normalize leading-zero forms before checking aliases
		canonical := base58.Encode(raw)
		if _, ok := ws.index[canonical]; ok {
			return WatchSet{}, fmt.Errorf("%w: %s", ErrDuplicateWallet, a)
		}
		ws.index[canonical] = struct{}{}
		ws.wallets = append(ws.wallets, canonical)
	}
	return ws, nil
}

// Contains reports whether address is watched.
func (w WatchSet) Contains(address string) bool {
	_, ok := w.index[address]
	return ok
}

// Wallets returns a copy of the watched addresses in configuration order.
func (w WatchSet) Wallets() []string {
	out := make([]string, len(w.wallets))
	copy(out, w.wallets)
	return out
}

// Len returns the number of watched wallets.
func (w WatchSet) Len() int {
	return len(w.wallets)
}
