package main

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"solana-copy-trader/internal/api"
	"solana-copy-trader/internal/config"
	"solana-copy-trader/internal/executor"
	"solana-copy-trader/internal/ledger"
	"solana-copy-trader/internal/monitor"
	"solana-copy-trader/internal/normalizer"
	"solana-copy-trader/internal/observability"
	"solana-copy-trader/internal/pipeline"
	"solana-copy-trader/internal/solana"
)

// runLive streams the watched wallets and copies their swaps.
func runLive(ctx context.Context, cfg *config.Config, logger *zap.Logger) error {
	if err := cfg.ValidateLive(); err != nil {
		return err
	}
	wallets, err := cfg.WatchSet()
	if err != nil {
		return err
	}

	deps := &infra{}
	defer deps.Close()

	rpc := solana.NewHTTPClient(cfg.RPCURL,
		solana.WithCommitment(cfg.Monitor.Commitment),
		solana.WithObserver(func(method string, d time.Duration, err error) {
			observability.RecordRPCCall(method, d.Seconds(), err)
		}),
	)

	var submitter executor.Submitter
	if cfg.Execution.Enabled {
		signer, err := solana.LoadKeypair(cfg.CopyWalletPrivateKey)
		if err != nil {
			return fmt.Errorf("load copy wallet: %w", err)
		}
		submitter = executor.NewRPCSubmitter(rpc, signer, logger, executor.WithBalanceCheck(rpc))
		logger.Info("execution enabled", zap.String("copy_wallet", signer.PublicKey()))
	} else {
		logger.Info("execution disabled, recording observed trades only")
	}

	wsCfg := solana.DefaultWSConfig()
	wsCfg.ReconnectDelay = cfg.Monitor.ReconnectDelay
	wsCfg.MaxReconnectDelay = cfg.Monitor.MaxReconnectDelay
	wsCfg.PingInterval = cfg.Monitor.PingInterval
	wsCfg.Commitment = cfg.Monitor.Commitment
	wsCfg.Logger = logger
	wsCfg.OnStateChange = func(s solana.ConnStatus) {
		observability.RecordStreamState(int(s.State), s.State == solana.StateReconnecting)
		logger.Info("stream state changed", zap.Stringer("state", s))
	}
	ws, err := solana.NewWSClient(ctx, cfg.WSURL, &wsCfg)
	if err != nil {
		return fmt.Errorf("connect websocket: %w", err)
	}
	deps.closers = append(deps.closers, func() { ws.Close() })

	l, err := deps.openLedger(ctx, cfg, cfg.Ledger.Backend, logger)
	if err != nil {
		return err
	}
	dedup, err := deps.dedup(ctx, cfg.Normalizer, logger)
	if err != nil {
		return err
	}

	source := monitor.NewWSWalletSource(monitor.WSWalletSourceOptions{
		WS:      ws,
		RPC:     rpc,
		Wallets: wallets,
		Logger:  logger,
	})

	return runPipeline(ctx, cfg, pipelineDeps{
		mode:      "live",
		source:    source,
		ledger:    l,
		dedup:     dedup,
		resolver:  rpc,
		submitter: submitter,
	}, logger)
}

type pipelineDeps struct {
	mode      string
	source    monitor.Source
	ledger    *ledger.Ledger
	dedup     normalizer.Deduper
	resolver  normalizer.MintResolver
	submitter executor.Submitter
}

// runPipeline serves the operator API next to the pipeline until either stops.
func runPipeline(ctx context.Context, cfg *config.Config, d pipelineDeps, logger *zap.Logger) error {
	norm, err := normalizer.New(normalizer.Options{
		Dedup:    d.dedup,
		Resolver: d.resolver,
		Logger:   logger,
	})
	if err != nil {
		return err
	}
	exposure, err := restoreExposure(ctx, d.ledger, logger)
	if err != nil {
		return err
	}
	engine, err := newEngine(cfg, d.submitter, d.ledger, exposure, logger)
	if err != nil {
		return err
	}
	p, err := pipeline.New(pipeline.Options{
		Source:     d.source,
		Normalizer: norm,
		Engine:     engine,
		QueueSize:  cfg.Monitor.QueueSize,
		Logger:     logger,
	})
	if err != nil {
		return err
	}

	srv := api.NewServer(api.Options{
		Ledger:   d.ledger,
		Exposure: engine.Exposure(),
		Queue:    p.Queue(),
		Policy:   cfg.Policy(),
		Mode:     d.mode,
		Logger:   logger,
	})

	g, gctx := errgroup.WithContext(ctx)
	apiCtx, stopAPI := context.WithCancel(gctx)
	defer stopAPI()

	g.Go(func() error {
		defer stopAPI()
		res, err := p.Run(gctx)
		if res != nil {
			logger.Info("pipeline finished",
				zap.String("source", res.Source),
				zap.Int64("events", res.Events),
				zap.Uint64("dropped", res.Dropped),
				zap.Duration("duration", res.Duration))
		}
		return err
	})
	g.Go(func() error {
		if err := srv.Run(apiCtx, cfg.HTTP.Addr); err != nil {
			return fmt.Errorf("operator api: %w", err)
		}
		return nil
	})
	return g.Wait()
}

// restoreExposure carries the copy wallet's committed position over from the
// ledger, so a restart cannot exceed max_position_size.
func restoreExposure(ctx context.Context, l *ledger.Ledger, logger *zap.Logger) (*executor.Exposure, error) {
	recs, err := l.Recent(ctx, 0)
	if err != nil {
		return nil, fmt.Errorf("restore exposure: %w", err)
	}
	committed := executor.ReplayExposure(recs)
	observability.UpdateExposure(committed.InexactFloat64())
	logger.Info("exposure restored",
		zap.Int("records", len(recs)),
		zap.String("committed_sol", committed.String()))
	return executor.NewExposure(committed), nil
}

// newEngine builds the engine; a nil exposure starts at zero.
func newEngine(cfg *config.Config, submitter executor.Submitter, rec executor.Recorder, exposure *executor.Exposure, logger *zap.Logger) (*executor.Engine, error) {
	e := cfg.Execution
	return executor.New(executor.Options{
		Policy:               cfg.Policy(),
		Submitter:            submitter,
		Ledger:               rec,
		Exposure:             exposure,
		MaxAttempts:          e.MaxAttempts,
		RetryInitialInterval: e.RetryInitialInterval,
		RetryMaxInterval:     e.RetryMaxInterval,
		SubmitTimeout:        e.SubmitTimeout,
		Workers:              e.Workers,
		Logger:               logger,
	})
}
