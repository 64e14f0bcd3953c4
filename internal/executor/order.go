package executor

import (
	"errors"
	"fmt"

	"solana-copy-trader/internal/domain"
)

// ErrInvalidTransition is returned for a state change the order lifecycle forbids.
var ErrInvalidTransition = errors.New("invalid order transition")

// Order tracks one ExecutionOrder through
// Pending -> Retrying(n) -> Succeeded | FailedTerminal.
// It is owned by a single worker and not safe for concurrent use.
type Order struct {
	*domain.ExecutionOrder

	state       domain.OrderState
	attempts    int
	maxAttempts int
	signature   string
	lastErr     error
}

// NewOrder starts an order in Pending with an attempt budget of maxAttempts (at least 1).
func NewOrder(o *domain.ExecutionOrder, maxAttempts int) *Order {
	if maxAttempts < 1 {
		maxAttempts = 1
	}
	return &Order{ExecutionOrder: o, state: domain.OrderPending, maxAttempts: maxAttempts}
}

// BeginAttempt counts a submission attempt.
func (o *Order) BeginAttempt() error {
	if o.state.IsTerminal() {
		return fmt.Errorf("%w: attempt in %s", ErrInvalidTransition, o.state)
	}
	if o.attempts >= o.maxAttempts {
		return fmt.Errorf("%w: attempt budget %d spent", ErrInvalidTransition, o.maxAttempts)
	}
	o.attempts++
	return nil
}

// Succeed moves the order to Succeeded with the copy transaction's signature.
func (o *Order) Succeed(signature string) error {
	if o.state.IsTerminal() {
		return fmt.Errorf("%w: succeed in %s", ErrInvalidTransition, o.state)
	}
	o.state = domain.OrderSucceeded
	o.signature = signature
	o.lastErr = nil
	return nil
}

// Fail records a failed attempt. A transient failure with budget left moves the
// order to Retrying and returns true; anything else is FailedTerminal.
func (o *Order) Fail(err error, class ErrorClass) (retry bool, terr error) {
	if o.state.IsTerminal() {
		return false, fmt.Errorf("%w: fail in %s", ErrInvalidTransition, o.state)
	}
	o.lastErr = err
	if class == Transient && o.attempts < o.maxAttempts {
		o.state = domain.OrderRetrying
		return true, nil
	}
	o.state = domain.OrderFailedTerminal
	return false, nil
}

// State returns the lifecycle state.
func (o *Order) State() domain.OrderState { return o.state }

// Attempts returns the number of attempts begun.
func (o *Order) Attempts() int { return o.attempts }

// Signature returns the copy signature once Succeeded.
func (o *Order) Signature() string { return o.signature }

// LastError returns the most recent failure.
func (o *Order) LastError() error { return o.lastErr }
