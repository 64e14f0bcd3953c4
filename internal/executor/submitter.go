package executor

import (
	"context"
	"crypto/sha512"
	"errors"
	"fmt"
	"sync"

	"github.com/mr-tron/base58"
	"go.uber.org/zap"

	"solana-copy-trader/internal/domain"
	"solana-copy-trader/internal/solana"
)

// Submitter makes one submission attempt for an order and returns the copy
// transaction's signature.
type Submitter interface {
	Submit(ctx context.Context, o *domain.ExecutionOrder) (string, error)
}

// SendClient is the part of the RPC client a submitter needs.
type SendClient interface {
	GetLatestBlockhash(ctx context.Context) (*solana.Blockhash, error)
	SendTransaction(ctx context.Context, raw []byte) (string, error)
}

// ErrInsufficientBalance is returned when the copy wallet cannot fund an order.
// Nothing is sent.
var ErrInsufficientBalance = errors.New("insufficient balance")

// BalanceClient reads the copy wallet's holdings.
type BalanceClient interface {
	GetBalance(ctx context.Context, pubkey string) (uint64, error)
	TokenAccountBalance(ctx context.Context, account string) (uint64, error)
}

// SubmitterOption configures an RPCSubmitter.
type SubmitterOption func(*RPCSubmitter)

// WithBalanceCheck verifies before every send that the copy wallet holds the
// order's input: lamports for buys, the input token account for sells.
func WithBalanceCheck(c BalanceClient) SubmitterOption {
	return func(s *RPCSubmitter) {
		s.balances = c
	}
}

// RPCSubmitter signs orders with the copy wallet and sends them to a node.
//
// Attempts are serialized: a blockhash is fetched, bound and sent before the
// next attempt for the same wallet may start.
type RPCSubmitter struct {
	rpc      SendClient
	balances BalanceClient
	signer   *solana.Keypair
	builder  *Builder
	logger   *zap.Logger

	mu sync.Mutex
}

// NewRPCSubmitter creates a live submitter.
func NewRPCSubmitter(rpc SendClient, signer *solana.Keypair, logger *zap.Logger, opts ...SubmitterOption) *RPCSubmitter {
	if logger == nil {
		logger = zap.NewNop()
	}
	s := &RPCSubmitter{
		rpc:     rpc,
		signer:  signer,
		builder: NewBuilder(signer.PublicKey()),
		logger:  logger.Named("submitter"),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Submit implements Submitter. Each call binds a fresh blockhash.
func (s *RPCSubmitter) Submit(ctx context.Context, o *domain.ExecutionOrder) (string, error) {
	ixs, err := s.builder.Build(o)
	if err != nil {
		return "", err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.balances != nil {
		if err := s.checkFunding(ctx, o); err != nil {
			return "", err
		}
	}

	bh, err := s.rpc.GetLatestBlockhash(ctx)
	if err != nil {
		return "", fmt.Errorf("get blockhash: %w", err)
	}

	tx, err := solana.BuildSignedTransaction(ixs, bh.Hash, s.signer)
	if err != nil {
		return "", err
	}

	sig, err := s.rpc.SendTransaction(ctx, tx.Raw)
	if err != nil {
		return "", fmt.Errorf("send transaction: %w", err)
	}

	s.logger.Debug("transaction sent",
		zap.String("event_id", o.EventID),
		zap.String("signature", sig),
		zap.String("blockhash", bh.Hash),
	)
	return sig, nil
}

func (s *RPCSubmitter) checkFunding(ctx context.Context, o *domain.ExecutionOrder) error {
	need, err := s.builder.Funding(o)
	if err != nil {
		return err
	}

	var have uint64
	if need.TokenAccount == "" {
		have, err = s.balances.GetBalance(ctx, s.signer.PublicKey())
	} else {
		have, err = s.balances.TokenAccountBalance(ctx, need.TokenAccount)
	}
	if err != nil {
		return fmt.Errorf("check balance: %w", err)
	}
	if have < need.Amount {
		s.logger.Info("order not funded",
			zap.String("event_id", o.EventID),
			zap.String("mint", need.Mint),
			zap.Uint64("have", have),
			zap.Uint64("need", need.Amount),
		)
		return fmt.Errorf("%w: %s holds %d of %d", ErrInsufficientBalance, need.Mint, have, need.Amount)
	}
	return nil
}

// PaperSubmitter builds orders like the live submitter but never sends them.
// Signatures are derived from the event ID and a sequence number.
type PaperSubmitter struct {
	builder *Builder

	mu        sync.Mutex
	script    []error
	attempts  int
	submitted []string
}

// NewPaperSubmitter creates a paper submitter for the copy wallet's public key.
func NewPaperSubmitter(wallet string) *PaperSubmitter {
	return &PaperSubmitter{builder: NewBuilder(wallet)}
}

// Script queues errors returned by the next attempts, one per attempt.
func (p *PaperSubmitter) Script(errs ...error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.script = append(p.script, errs...)
}

// Submit implements Submitter.
func (p *PaperSubmitter) Submit(ctx context.Context, o *domain.ExecutionOrder) (string, error) {
	if _, err := p.builder.Build(o); err != nil {
		return "", err
	}
	if err := ctx.Err(); err != nil {
		return "", err
	}

	p.mu.Lock()
	defer p.mu.Unlock()

	p.attempts++
	if len(p.script) > 0 {
		err := p.script[0]
		p.script = p.script[1:]
		if err != nil {
			return "", err
		}
	}

	p.submitted = append(p.submitted, o.EventID)
	sum := sha512.Sum512([]byte(fmt.Sprintf("paper|%s|%d", o.EventID, len(p.submitted))))
	return base58.Encode(sum[:]), nil
}

// Attempts returns the number of Submit calls that reached the wallet lock.
func (p *PaperSubmitter) Attempts() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.attempts
}

// Submitted returns the event IDs that produced a signature, in order.
func (p *PaperSubmitter) Submitted() []string {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]string(nil), p.submitted...)
}
