package monitor

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/cenkalti/backoff/v4"
	"go.uber.org/zap"

	"solana-copy-trader/internal/domain"
	"solana-copy-trader/internal/observability"
	"solana-copy-trader/internal/solana"
)

// errNotYetAvailable is returned while the node has not indexed a notified transaction.
var errNotYetAvailable = errors.New("transaction not yet available")

// WSWalletSourceOptions configures a WSWalletSource.
type WSWalletSourceOptions struct {
	WS      solana.WSClient
	RPC     solana.RPCClient
	Wallets domain.WatchSet

	// FetchAttempts bounds getTransaction retries per notification. Default 3.
	FetchAttempts int
	// FetchDelay is the first retry delay, doubled per attempt. Default 500ms.
	FetchDelay time.Duration

	Logger *zap.Logger
}

// WSWalletSource subscribes to logs mentioning each watched wallet and fetches
// the full transaction for every notification.
type WSWalletSource struct {
	ws            solana.WSClient
	rpc           solana.RPCClient
	wallets       domain.WatchSet
	fetchAttempts int
	fetchDelay    time.Duration
	logger        *zap.Logger
}

// Compile-time interface check.
var _ Source = (*WSWalletSource)(nil)

// NewWSWalletSource creates a live wallet source.
func NewWSWalletSource(opts WSWalletSourceOptions) *WSWalletSource {
	logger := opts.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	attempts := opts.FetchAttempts
	if attempts <= 0 {
		attempts = 3
	}
	delay := opts.FetchDelay
	if delay <= 0 {
		delay = 500 * time.Millisecond
	}
	return &WSWalletSource{
		ws:            opts.WS,
		rpc:           opts.RPC,
		wallets:       opts.Wallets,
		fetchAttempts: attempts,
		fetchDelay:    delay,
		logger:        logger.Named("ws-source"),
	}
}

// Name implements Source.
func (s *WSWalletSource) Name() string { return "ws" }

type walletNotification struct {
	wallet string
	notif  solana.LogNotification
}

// Run subscribes once per wallet (providers accept a single mentions entry) and
// processes notifications sequentially in arrival order.
func (s *WSWalletSource) Run(ctx context.Context, sink Sink) error {
	if s.wallets.Len() == 0 {
		return fmt.Errorf("no wallets to watch")
	}

	merged := make(chan walletNotification, 1000)
	var wg sync.WaitGroup

	for _, wallet := range s.wallets.Wallets() {
		logsCh, err := s.ws.SubscribeLogs(ctx, solana.LogsFilter{Mentions: []string{wallet}})
		if err != nil {
			return fmt.Errorf("subscribe %s: %w", wallet, err)
		}
		s.logger.Info("subscribed", zap.String("wallet", wallet))

		wg.Add(1)
		go func(wallet string, logsCh <-chan solana.LogNotification) {
			defer wg.Done()
			for notif := range logsCh {
				select {
				case merged <- walletNotification{wallet: wallet, notif: notif}:
				case <-ctx.Done():
					return
				}
			}
		}(wallet, logsCh)
	}

	go func() {
		wg.Wait()
		close(merged)
	}()

	for {
		select {
		case <-ctx.Done():
			return nil
		case wn, ok := <-merged:
			if !ok {
				s.logger.Info("all subscriptions closed")
				return nil
			}
			s.process(ctx, sink, wn)
		}
	}
}

func (s *WSWalletSource) process(ctx context.Context, sink Sink, wn walletNotification) {
	receivedAt := time.Now()

	// Failed transactions move no balances.
	if wn.notif.Err != nil {
		s.logger.Debug("skip failed transaction", zap.String("signature", wn.notif.Signature))
		return
	}

	tx, err := s.fetch(ctx, wn.notif.Signature)
	if err != nil {
		if ctx.Err() == nil {
			s.logger.Warn("fetch transaction failed, update lost",
				zap.String("signature", wn.notif.Signature),
				zap.Int("attempts", s.fetchAttempts),
				zap.Error(err))
		}
		return
	}

	u, err := ToRawUpdate(tx, wn.wallet, receivedAt)
	if err != nil {
		s.logger.Warn("convert transaction", zap.String("signature", wn.notif.Signature), zap.Error(err))
		return
	}

	// Server-side mentions filtering is advisory on some providers.
	if !u.Involves(wn.wallet) {
		observability.RecordUpdateFiltered()
		return
	}

	observability.RecordUpdateReceived(s.Name(), u.Slot)
	sink.Push(u)
}

// fetch retrieves a transaction, retrying transport errors and not-yet-indexed results.
func (s *WSWalletSource) fetch(ctx context.Context, signature string) (*solana.Transaction, error) {
	b := backoff.NewExponentialBackOff()
	b.InitialInterval = s.fetchDelay
	b.Multiplier = 2
	b.MaxElapsedTime = 0
	policy := backoff.WithContext(backoff.WithMaxRetries(b, uint64(s.fetchAttempts-1)), ctx)

	var tx *solana.Transaction
	op := func() error {
		got, err := s.rpc.GetTransaction(ctx, signature)
		if err != nil {
			return err
		}
		if got == nil {
			return errNotYetAvailable
		}
		tx = got
		return nil
	}
	notify := func(err error, d time.Duration) {
		s.logger.Debug("retry getTransaction", zap.String("signature", signature), zap.Duration("delay", d), zap.Error(err))
	}

	if err := backoff.RetryNotify(op, policy, notify); err != nil {
		return nil, err
	}
	return tx, nil
}
