package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"slices"
	"text/tabwriter"
	"time"

	"go.uber.org/zap"

	"solana-copy-trader/internal/config"
	"solana-copy-trader/internal/decoder"
	"solana-copy-trader/internal/domain"
	"solana-copy-trader/internal/executor"
	"solana-copy-trader/internal/ledger"
	"solana-copy-trader/internal/monitor"
	"solana-copy-trader/internal/normalizer"
	"solana-copy-trader/internal/pipeline"
	"solana-copy-trader/internal/solana"
	"solana-copy-trader/internal/storage/memory"
)

// paperConfig returns a copy of cfg with execution enabled, so offline modes
// exercise sizing and submission against the paper submitter.
func paperConfig(cfg *config.Config) *config.Config {
	c := *cfg
	c.Execution.Enabled = true
	c.Execution.RetryInitialInterval = time.Millisecond
	c.Execution.RetryMaxInterval = 10 * time.Millisecond
	return &c
}

func newMemoryLedger(logger *zap.Logger) (*ledger.Ledger, error) {
	return ledger.New(ledger.Options{Store: memory.NewTradeRecordStore(), Logger: logger})
}

func paperWallet() (string, error) {
	kp, err := solana.NewRandomKeypair()
	if err != nil {
		return "", err
	}
	return kp.PublicKey(), nil
}

// fixtureResult is one row of the test mode report.
type fixtureResult struct {
	name      string
	protocol  string
	direction string
	input     string
	output    string
	status    string
	problem   string
}

// runTest decodes every documented fixture, checks the canonical event and
// paper-executes it. It fails when any fixture decodes differently.
func runTest(ctx context.Context, cfg *config.Config, out io.Writer, logger *zap.Logger) error {
	cfg = paperConfig(cfg)
	l, err := newMemoryLedger(logger)
	if err != nil {
		return err
	}
	defer l.Close()

	wallet, err := paperWallet()
	if err != nil {
		return err
	}
	engine, err := newEngine(cfg, executor.NewPaperSubmitter(wallet), l, nil, logger)
	if err != nil {
		return err
	}

	fixtures := decoder.Fixtures()
	results := make([]fixtureResult, 0, len(fixtures))
	failed := 0
	for _, f := range fixtures {
		r := checkFixture(ctx, f, engine, logger)
		if r.problem != "" {
			failed++
		}
		results = append(results, r)
	}

	tw := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "FIXTURE\tPROTOCOL\tDIRECTION\tINPUT\tOUTPUT\tRECORD\tRESULT")
	for _, r := range results {
		result := "ok"
		if r.problem != "" {
			result = "FAIL: " + r.problem
		}
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%s\t%s\t%s\n",
			r.name, r.protocol, r.direction, r.input, r.output, r.status, result)
	}
	if err := tw.Flush(); err != nil {
		return err
	}
	fmt.Fprintf(out, "\n%d fixtures, %d failed\n", len(results), failed)

	if failed > 0 {
		return fmt.Errorf("%d of %d fixtures failed", failed, len(results))
	}
	return nil
}

func checkFixture(ctx context.Context, f decoder.Fixture, engine *executor.Engine, logger *zap.Logger) fixtureResult {
	r := fixtureResult{name: f.Name, protocol: "-", direction: "-", input: "-", output: "-", status: "-"}

	norm, err := normalizer.New(normalizer.Options{Logger: logger})
	if err != nil {
		r.problem = err.Error()
		return r
	}
	u := f.Update
	events, err := norm.Normalize(ctx, &u)
	if err != nil {
		r.problem = err.Error()
		return r
	}

	if f.Want == nil {
		if len(events) != 0 {
			r.problem = fmt.Sprintf("expected decode failure, got %d events", len(events))
		}
		r.status = "skipped"
		return r
	}
	if len(events) != 1 {
		r.problem = fmt.Sprintf("expected 1 event, got %d", len(events))
		return r
	}

	ev := events[0]
	r.protocol = ev.Protocol.String()
	r.direction = ev.Direction.String()
	r.input = fmt.Sprintf("%d", ev.InputAmount)
	r.output = fmt.Sprintf("%d", ev.OutputAmount)
	if p := diffEvent(f.Want, ev); p != "" {
		r.problem = p
		return r
	}

	rec, err := engine.Handle(ctx, ev)
	if err != nil {
		r.problem = err.Error()
		return r
	}
	r.status = string(rec.Status)
	return r
}

func diffEvent(want *decoder.Expected, ev *domain.TradeEvent) string {
	switch {
	case want.Protocol != ev.Protocol:
		return fmt.Sprintf("protocol %s, want %s", ev.Protocol, want.Protocol)
	case want.Direction != ev.Direction:
		return fmt.Sprintf("direction %s, want %s", ev.Direction, want.Direction)
	case want.InputMint != ev.InputMint:
		return fmt.Sprintf("input mint %s, want %s", ev.InputMint, want.InputMint)
	case want.OutputMint != ev.OutputMint:
		return fmt.Sprintf("output mint %s, want %s", ev.OutputMint, want.OutputMint)
	case want.InputAmount != ev.InputAmount:
		return fmt.Sprintf("input amount %d, want %d", ev.InputAmount, want.InputAmount)
	case want.OutputAmount != ev.OutputAmount:
		return fmt.Sprintf("output amount %d, want %d", ev.OutputAmount, want.OutputAmount)
	}
	return ""
}

type perfOptions struct {
	Count   int
	Rate    int
	Wallets int
}

// perfReport summarizes one perf run.
type perfReport struct {
	Updates    int
	Events     int64
	Dropped    uint64
	Duration   time.Duration
	P50        time.Duration
	P95        time.Duration
	P99        time.Duration
	ByStatus   map[domain.RecordStatus]int64
	RecordedOK int64
}

// runPerf drives synthetic load through the full pipeline against a memory
// ledger and the paper submitter.
func runPerf(ctx context.Context, cfg *config.Config, opts perfOptions, out io.Writer, logger *zap.Logger) error {
	if opts.Count <= 0 {
		return errors.New("perf-count must be positive")
	}
	if opts.Wallets <= 0 {
		opts.Wallets = 1
	}
	cfg = paperConfig(cfg)
	// Synthetic load must not be dropped by a small configured queue.
	if cfg.Monitor.QueueSize < opts.Count {
		cfg.Monitor.QueueSize = opts.Count
	}

	wallets := make([]string, 0, opts.Wallets)
	for i := 0; i < opts.Wallets; i++ {
		w, err := paperWallet()
		if err != nil {
			return err
		}
		wallets = append(wallets, w)
	}

	l, err := newMemoryLedger(logger)
	if err != nil {
		return err
	}
	defer l.Close()

	copyWallet, err := paperWallet()
	if err != nil {
		return err
	}
	norm, err := normalizer.New(normalizer.Options{Logger: logger})
	if err != nil {
		return err
	}
	engine, err := newEngine(cfg, executor.NewPaperSubmitter(copyWallet), l, nil, logger)
	if err != nil {
		return err
	}
	p, err := pipeline.New(pipeline.Options{
		Source:     &monitor.PerfSource{Wallets: wallets, Count: opts.Count, Rate: opts.Rate},
		Normalizer: norm,
		Engine:     engine,
		QueueSize:  cfg.Monitor.QueueSize,
		Logger:     logger,
	})
	if err != nil {
		return err
	}

	res, err := p.Run(ctx)
	if err != nil {
		return err
	}

	records, err := l.Recent(ctx, 0)
	if err != nil {
		return err
	}
	stats, err := l.Stats(ctx)
	if err != nil {
		return err
	}

	report := buildPerfReport(opts.Count, res, records, stats)
	writePerfReport(out, report)
	return nil
}

func buildPerfReport(updates int, res *pipeline.RunResult, records []*domain.TradeRecord, stats *domain.LedgerStats) perfReport {
	latencies := make([]time.Duration, 0, len(records))
	for _, r := range records {
		latencies = append(latencies, time.Duration(r.CompletedAt-r.DetectedAt)*time.Millisecond)
	}
	slices.Sort(latencies)

	return perfReport{
		Updates:    updates,
		Events:     res.Events,
		Dropped:    res.Dropped,
		Duration:   res.Duration,
		P50:        percentile(latencies, 0.50),
		P95:        percentile(latencies, 0.95),
		P99:        percentile(latencies, 0.99),
		ByStatus:   stats.ByStatus,
		RecordedOK: stats.Total,
	}
}

// percentile uses nearest rank on sorted input.
func percentile(sorted []time.Duration, q float64) time.Duration {
	if len(sorted) == 0 {
		return 0
	}
	idx := int(q*float64(len(sorted))+0.5) - 1
	if idx < 0 {
		idx = 0
	}
	if idx >= len(sorted) {
		idx = len(sorted) - 1
	}
	return sorted[idx]
}

func writePerfReport(out io.Writer, r perfReport) {
	secs := r.Duration.Seconds()
	if secs <= 0 {
		secs = 1e-9
	}
	tw := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	fmt.Fprintf(tw, "updates\t%d\n", r.Updates)
	fmt.Fprintf(tw, "events\t%d\n", r.Events)
	fmt.Fprintf(tw, "records\t%d\n", r.RecordedOK)
	fmt.Fprintf(tw, "dropped\t%d\n", r.Dropped)
	fmt.Fprintf(tw, "duration\t%s\n", r.Duration.Round(time.Millisecond))
	fmt.Fprintf(tw, "updates/s\t%.1f\n", float64(r.Updates)/secs)
	fmt.Fprintf(tw, "events/s\t%.1f\n", float64(r.Events)/secs)
	fmt.Fprintf(tw, "latency p50\t%s\n", r.P50)
	fmt.Fprintf(tw, "latency p95\t%s\n", r.P95)
	fmt.Fprintf(tw, "latency p99\t%s\n", r.P99)
	for _, s := range []domain.RecordStatus{
		domain.RecordSucceeded, domain.RecordFailed, domain.RecordSizingRejected, domain.RecordObservedOnly,
	} {
		fmt.Fprintf(tw, "status %s\t%d\n", s, r.ByStatus[s])
	}
	tw.Flush()
}

type mockOptions struct {
	Wallet   string
	Interval time.Duration
	Limit    int
}

// runMock paper-trades a synthetic buy/sell cycle and serves the operator API.
func runMock(ctx context.Context, cfg *config.Config, opts mockOptions, logger *zap.Logger) error {
	cfg = paperConfig(cfg)

	wallet := opts.Wallet
	if wallet == "" && len(cfg.TargetWallets) > 0 {
		wallet = cfg.TargetWallets[0]
	}
	if wallet == "" {
		w, err := paperWallet()
		if err != nil {
			return err
		}
		wallet = w
	}
	copyWallet, err := paperWallet()
	if err != nil {
		return err
	}

	l, err := newMemoryLedger(logger)
	if err != nil {
		return err
	}
	defer l.Close()

	logger.Info("mock mode", zap.String("wallet", wallet), zap.Duration("interval", opts.Interval))
	return runPipeline(ctx, cfg, pipelineDeps{
		mode: "mock",
		source: &monitor.MockSource{
			Wallet:   wallet,
			Interval: opts.Interval,
			Limit:    opts.Limit,
			Logger:   logger,
		},
		ledger:    l,
		submitter: executor.NewPaperSubmitter(copyWallet),
	}, logger)
}
