package executor

import (
	"context"
	"errors"
	"net"
	"net/http"
	"strings"

	"solana-copy-trader/internal/solana"
)

// ErrorClass tells the engine whether a failed submission may be retried.
type ErrorClass int

const (
	// Terminal failures are recorded immediately.
	Terminal ErrorClass = iota
	// Transient failures are retried within the attempt budget.
	Transient
)

func (c ErrorClass) String() string {
	if c == Transient {
		return "transient"
	}
	return "terminal"
}

// Node error codes that mean "try again".
const (
	rpcCodeBlockNotAvailable = -32004
	rpcCodeNodeUnhealthy     = -32005
)

var transientMessages = []string{
	"blockhash not found",
	"blockhashnotfound",
	"block height exceeded",
	"node is behind",
	"node is unhealthy",
	"too many requests",
	"rate limit",
	"timed out",
	"timeout",
	"connection reset",
	"connection refused",
}

var terminalMessages = []string{
	"insufficient funds",
	"insufficientfunds",
	"insufficient lamports",
	"slippage",
	"exceededslippage",
	"toomuchsolrequired",
	"toolittlesolreceived",
	"custom program error",
	"invalid account data",
	"account not found",
}

// Classify decides whether a submission error is transient or terminal.
//
// Transport failures, deadlines, throttling and stale blockhashes are transient.
// Program rejections, insufficient balance and slippage are terminal, as is
// cancellation. Unknown node errors are terminal so a rejected transaction is
// never resent blindly.
func Classify(err error) ErrorClass {
	if err == nil {
		return Terminal
	}
	if errors.Is(err, context.Canceled) ||
		errors.Is(err, ErrUnsupportedRoute) ||
		errors.Is(err, ErrInsufficientBalance) ||
		errors.Is(err, solana.ErrInvalidKeypair) {
		return Terminal
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return Transient
	}

	msg := strings.ToLower(err.Error())
	for _, m := range terminalMessages {
		if strings.Contains(msg, m) {
			return Terminal
		}
	}
	for _, m := range transientMessages {
		if strings.Contains(msg, m) {
			return Transient
		}
	}

	var rpcErr *solana.RPCError
	if errors.As(err, &rpcErr) {
		if rpcErr.Code == rpcCodeBlockNotAvailable || rpcErr.Code == rpcCodeNodeUnhealthy {
			return Transient
		}
		return Terminal
	}

	var statusErr *solana.HTTPStatusError
	if errors.As(err, &statusErr) {
		if statusErr.StatusCode == http.StatusTooManyRequests || statusErr.StatusCode >= 500 {
			return Transient
		}
		return Terminal
	}

	var netErr net.Error
	if errors.As(err, &netErr) {
		return Transient
	}

	// anything that never reached the node is worth another attempt
	return Transient
}
