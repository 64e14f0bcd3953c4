// Command copytrader mirrors swaps made by watched Solana wallets.
//
// Modes:
//
//	live  stream watched wallets from an RPC node and copy their swaps
//	test  run the documented decoder fixtures through the pipeline offline
//	perf  push synthetic load through the pipeline and report throughput
//	mock  emit a synthetic buy/sell cycle for one wallet and paper-trade it
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"

	"solana-copy-trader/internal/config"
)

const shutdownGrace = 30 * time.Second

func main() {
	configPath := flag.String("config", os.Getenv("COPYTRADER_CONFIG"), "Config file (yaml, toml or json)")
	envFile := flag.String("env-file", ".env", "Dotenv file loaded before the environment is read")
	mode := flag.String("mode", "live", "Run mode: live, test, perf, mock")
	perfCount := flag.Int("perf-count", 10000, "Synthetic updates emitted in perf mode")
	perfRate := flag.Int("perf-rate", 0, "Updates per second in perf mode (0 = unthrottled)")
	perfWallets := flag.Int("perf-wallets", 8, "Synthetic wallets in perf mode")
	mockWallet := flag.String("mock-wallet", "", "Wallet used in mock mode (default: first target wallet)")
	mockInterval := flag.Duration("mock-interval", 5*time.Second, "Delay between mock trades")
	mockLimit := flag.Int("mock-limit", 0, "Stop mock mode after this many trades (0 = run until stopped)")

	flag.Parse()

	cfg, err := config.Load(config.Options{Path: *configPath, EnvFile: *envFile})
	if err != nil {
		fmt.Fprintf(os.Stderr, "copytrader: %v\n", err)
		os.Exit(2)
	}

	logger, err := newLogger(cfg.Log)
	if err != nil {
		fmt.Fprintf(os.Stderr, "copytrader: %v\n", err)
		os.Exit(2)
	}
	defer logger.Sync() //nolint:errcheck

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	done := make(chan struct{})
	go handleSignals(cancel, done, logger)

	switch *mode {
	case "live":
		err = runLive(ctx, cfg, logger)
	case "test":
		err = runTest(ctx, cfg, os.Stdout, logger)
	case "perf":
		err = runPerf(ctx, cfg, perfOptions{
			Count:   *perfCount,
			Rate:    *perfRate,
			Wallets: *perfWallets,
		}, os.Stdout, logger)
	case "mock":
		err = runMock(ctx, cfg, mockOptions{
			Wallet:   *mockWallet,
			Interval: *mockInterval,
			Limit:    *mockLimit,
		}, logger)
	default:
		err = fmt.Errorf("unknown mode %q", *mode)
	}
	close(done)

	if err != nil && !errors.Is(err, context.Canceled) {
		logger.Error("copytrader stopped", zap.String("mode", *mode), zap.Error(err))
		logger.Sync() //nolint:errcheck
		os.Exit(1)
	}
	logger.Info("shutdown complete", zap.String("mode", *mode))
}

// handleSignals cancels ctx on the first SIGINT/SIGTERM and exits on the
// second one or after shutdownGrace.
func handleSignals(cancel context.CancelFunc, done <-chan struct{}, logger *zap.Logger) {
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	defer signal.Stop(sigCh)

	select {
	case sig := <-sigCh:
		logger.Info("received signal, initiating graceful shutdown", zap.String("signal", sig.String()))
		cancel()
	case <-done:
		return
	}

	select {
	case sig := <-sigCh:
		logger.Warn("received second signal, forcing immediate shutdown", zap.String("signal", sig.String()))
		os.Exit(1)
	case <-time.After(shutdownGrace):
		logger.Error("graceful shutdown timed out, forcing exit", zap.Duration("grace", shutdownGrace))
		os.Exit(1)
	case <-done:
	}
}
