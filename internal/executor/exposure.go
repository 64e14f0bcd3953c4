package executor

import (
	"cmp"
	"slices"
	"sync"

	"github.com/shopspring/decimal"

	"solana-copy-trader/internal/domain"
	"solana-copy-trader/internal/observability"
)

// Exposure owns the copy wallet's position counters. All access goes through
// its mutex; nothing else holds exposure state.
//
// Reserved amounts belong to orders in flight and count against the position
// limit until they are committed or released.
type Exposure struct {
	mu        sync.Mutex
	committed decimal.Decimal
	reserved  decimal.Decimal
}

// NewExposure creates an owner starting at initial committed exposure.
func NewExposure(initial decimal.Decimal) *Exposure {
	return &Exposure{committed: initial}
}

// Reserve sizes an order against the current exposure and holds the result,
// atomically with respect to other reservations.
func (e *Exposure) Reserve(size func(current decimal.Decimal) (decimal.Decimal, error)) (decimal.Decimal, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	amount, err := size(e.committed.Add(e.reserved))
	if err != nil {
		return decimal.Zero, err
	}
	e.reserved = e.reserved.Add(amount)
	return amount, nil
}

// Commit settles a reservation after a successful submission. A buy adds to the
// position; a sell reduces it, never below zero.
func (e *Exposure) Commit(amount decimal.Decimal, direction domain.Direction) {
	e.mu.Lock()
	e.reserved = nonNegative(e.reserved.Sub(amount))
	if direction == domain.DirectionSell {
		e.committed = nonNegative(e.committed.Sub(amount))
	} else {
		e.committed = e.committed.Add(amount)
	}
	current := e.committed
	e.mu.Unlock()

	observability.UpdateExposure(current.InexactFloat64())
}

// Release drops a reservation whose order did not execute.
func (e *Exposure) Release(amount decimal.Decimal) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.reserved = nonNegative(e.reserved.Sub(amount))
}

// Current returns committed exposure.
func (e *Exposure) Current() decimal.Decimal {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.committed
}

// Reserved returns the amount held by in-flight orders.
func (e *Exposure) Reserved() decimal.Decimal {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.reserved
}

// ReplayExposure rebuilds committed exposure from ledgered records. Succeeded
// trades are applied oldest first with the same floor as Commit; other statuses
// never moved the position.
func ReplayExposure(records []*domain.TradeRecord) decimal.Decimal {
	ordered := slices.Clone(records)
	slices.SortStableFunc(ordered, func(a, b *domain.TradeRecord) int {
		return cmp.Compare(a.CompletedAt, b.CompletedAt)
	})

	committed := decimal.Zero
	for _, r := range ordered {
		if r.Status != domain.RecordSucceeded {
			continue
		}
		if r.Direction == domain.DirectionSell {
			committed = nonNegative(committed.Sub(r.AmountSOL))
		} else {
			committed = committed.Add(r.AmountSOL)
		}
	}
	return committed
}

func nonNegative(d decimal.Decimal) decimal.Decimal {
	if d.IsNegative() {
		return decimal.Zero
	}
	return d
}
