// Package orchestrator runs a batch of experiment runs: one player session
// at a time, paced, with live metrics, an optional dashboard and an exit
// summary.
package orchestrator

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"golang.org/x/sync/errgroup"

	"github.com/randomizedcoder/go-abr-harness/internal/analytics"
	"github.com/randomizedcoder/go-abr-harness/internal/browser"
	"github.com/randomizedcoder/go-abr-harness/internal/config"
	"github.com/randomizedcoder/go-abr-harness/internal/engine"
	"github.com/randomizedcoder/go-abr-harness/internal/experiment"
	"github.com/randomizedcoder/go-abr-harness/internal/harness"
	"github.com/randomizedcoder/go-abr-harness/internal/logging"
	"github.com/randomizedcoder/go-abr-harness/internal/metrics"
	"github.com/randomizedcoder/go-abr-harness/internal/netpath"
	"github.com/randomizedcoder/go-abr-harness/internal/player"
	"github.com/randomizedcoder/go-abr-harness/internal/preflight"
	"github.com/randomizedcoder/go-abr-harness/internal/stats"
	"github.com/randomizedcoder/go-abr-harness/internal/tui"
)

// refreshInterval is how often metrics and the dashboard are refreshed.
const refreshInterval = time.Second

// ErrPreflightFailed is returned by Run when a required check fails.
var ErrPreflightFailed = errors.New("preflight checks failed (use --skip-preflight to override)")

// Options carries what the orchestrator needs beyond the configuration.
type Options struct {
	Version string

	// Out receives preflight results, summary documents and the exit
	// summary. Defaults to stdout.
	Out io.Writer

	// Runner replaces the runner selected by the configured mode.
	Runner Runner

	// PathChecker replaces the ping and traceroute implementation.
	PathChecker PathChecker
}

// PathChecker measures the network path before a run.
type PathChecker interface {
	Ping(ctx context.Context, cfg netpath.PingConfig) netpath.PingResult
	Traceroute(ctx context.Context, cfg netpath.TraceConfig) netpath.TraceResult
}

// Orchestrator coordinates all components for a batch of runs.
type Orchestrator struct {
	config *config.Config
	logger *slog.Logger
	opts   Options
	out    io.Writer

	runs           []experiment.RunSpec
	configurations int
	engine         engine.Config

	runner        Runner
	path          PathChecker
	pacer         *Pacer
	collector     *analytics.Collector
	analyticsFile io.Closer
	aggregator    *stats.Aggregator
	metrics       *metrics.Collector
	metricsServer *metrics.Server
	program       *tea.Program

	mu      sync.Mutex
	console *logging.Console

	batchStarted time.Time
}

// New creates an orchestrator for cfg. The configuration must already be
// validated.
func New(cfg *config.Config, logger *slog.Logger, opts Options) (*Orchestrator, error) {
	if logger == nil {
		logger = slog.Default()
	}
	out := opts.Out
	if out == nil {
		out = os.Stdout
	}

	batch, err := config.LoadBatch(cfg)
	if err != nil {
		return nil, err
	}
	var runs []experiment.RunSpec
	for i := 0; i < max(cfg.Repeat, 1); i++ {
		runs = append(runs, batch.Expand()...)
	}

	engineCfg, err := config.EngineConfig(cfg)
	if err != nil {
		return nil, err
	}

	o := &Orchestrator{
		config:         cfg,
		logger:         logger,
		opts:           opts,
		out:            out,
		runs:           runs,
		configurations: len(batch.Runs),
		engine:         engineCfg,
		pacer:          NewPacer(cfg.TimeBetweenRuns, cfg.RunJitter, cfg.Seed),
		aggregator:     stats.NewAggregator(len(runs)),
		metrics: metrics.NewCollector(metrics.CollectorConfig{
			Version:     opts.Version,
			Mode:        cfg.Mode,
			ManifestURL: cfg.ManifestURL,
			PlannedRuns: len(runs),
		}),
	}
	o.path = opts.PathChecker
	if o.path == nil {
		o.path = netpath.New(netpath.Config{
			Privileged: cfg.PingPrivileged,
			Logger:     logger,
		})
	}
	if cfg.MetricsAddr != "" {
		o.metricsServer = metrics.NewServer(cfg.MetricsAddr, o.metrics.Registry(), logger)
	}

	sink, closer, err := openAnalyticsSink(cfg.AnalyticsOut)
	if err != nil {
		return nil, err
	}
	o.analyticsFile = closer
	o.collector = analytics.NewCollector(analytics.CollectorConfig{
		Sink:          sink,
		BufferSize:    cfg.AnalyticsBufferSize,
		DropThreshold: cfg.AnalyticsDropThreshold,
		Logger:        logger,
	})

	switch {
	case opts.Runner != nil:
		o.runner = opts.Runner
	case cfg.Mode == config.ModeBrowser:
		pages := browser.NewPageRunner(browser.Config{
			Stub:       cfg.PageStub,
			ChromePath: cfg.ChromePath,
			DebugURL:   cfg.DebugURL,
			Headless:   cfg.Headless,
			Duration:   cfg.Duration,
			Logger:     logger,
		})
		o.runner = NewBrowserRunner(pages, o.metrics)
	default:
		o.runner = NewHarnessRunner(harness.Config{
			ManifestURI: cfg.ManifestURL,
			LicenseKey:  cfg.LicenseKey,
			Engine:      engineCfg,
			Collector:   o.collector,
			Logger:      logger,
		}, cfg.Duration, o.metrics)
	}
	return o, nil
}

// openAnalyticsSink maps --analytics-out onto a sink. The closer is nil
// unless a file was opened.
func openAnalyticsSink(target string) (analytics.Sink, io.Closer, error) {
	switch target {
	case "":
		return analytics.DiscardSink{}, nil, nil
	case "-":
		return analytics.NewWriterSink(os.Stdout), nil, nil
	default:
		f, err := os.Create(target)
		if err != nil {
			return nil, nil, fmt.Errorf("analytics output: %w", err)
		}
		return analytics.NewWriterSink(f), f, nil
	}
}

// Run executes the batch. It blocks until every run is done, a signal
// arrives or the dashboard is closed.
func (o *Orchestrator) Run(ctx context.Context) error {
	o.batchStarted = time.Now()

	if !o.config.SkipPreflight {
		result := preflight.RunAll(ctx, o.preflightOptions())
		preflight.PrintResults(o.out, result)
		if !result.Passed {
			o.closeAnalytics()
			return ErrPreflightFailed
		}
	}

	ctx, stop := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer stop()
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	if o.metricsServer != nil {
		if err := o.metricsServer.Start(); err != nil {
			o.closeAnalytics()
			return fmt.Errorf("failed to start metrics server: %w", err)
		}
		o.metricsServer.SetReady(true)
	}

	o.collector.Start()

	o.logger.Info("batch_starting",
		"mode", o.config.Mode,
		"runs", len(o.runs),
		"configurations", o.configurations,
		"estimated_duration", o.pacer.EstimatedBatchDuration(len(o.runs), o.config.Duration).String(),
	)

	var docs bytes.Buffer
	docOut := o.out
	if o.config.TUIEnabled {
		// held back until the dashboard has released the terminal
		docOut = &docs
		o.program = tea.NewProgram(tui.New(tui.Config{
			PlannedRuns:   len(o.runs),
			Mode:          o.config.Mode,
			ManifestURL:   o.config.ManifestURL,
			MetricsAddr:   o.config.MetricsAddr,
			StatsSource:   o.aggregator,
			ConsoleSource: o,
		}), tea.WithAltScreen())
	}

	batchDone := make(chan struct{})
	g, gctx := errgroup.WithContext(ctx)

	if o.program != nil {
		g.Go(func() error {
			_, err := o.program.Run()
			// q on the dashboard stops the batch
			cancel()
			return err
		})
	}

	g.Go(func() error {
		o.refresh(gctx, batchDone)
		return nil
	})

	g.Go(func() error {
		defer close(batchDone)
		o.runBatch(gctx, docOut)
		tui.SendQuit(o.program)
		return nil
	})

	if err := g.Wait(); err != nil {
		o.logger.Warn("dashboard_error", "error", err)
	}

	o.collector.Close()
	o.recordAnalytics()
	o.closeAnalytics()

	if o.metricsServer != nil {
		o.metricsServer.SetReady(false)
		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer shutdownCancel()
		if err := o.metricsServer.Shutdown(shutdownCtx); err != nil {
			o.logger.Warn("metrics_server_shutdown_error", "error", err)
		}
	}

	if docs.Len() > 0 {
		if _, err := docs.WriteTo(o.out); err != nil {
			o.logger.Warn("summary_write_failed", "error", err)
		}
	}
	o.printExitSummary()
	if o.config.MetricsDump {
		if err := metrics.WriteText(o.out, o.metrics.Registry()); err != nil {
			o.logger.Warn("metrics_dump_failed", "error", err)
		}
	}
	return nil
}

// preflightOptions selects the checks that apply to this batch.
func (o *Orchestrator) preflightOptions() preflight.Options {
	opts := preflight.Options{
		Browser:     o.config.Mode == config.ModeBrowser,
		ChromePath:  o.config.ChromePath,
		DebugURL:    o.config.DebugURL,
		ManifestURL: o.config.ManifestURL,
		LicenseKey:  o.config.LicenseKey,
	}
	if !opts.Browser {
		opts.Loader = o.engine.Loader
	}
	for _, r := range o.runs {
		if b, err := player.ParseBackend(r.Player); err == nil && b == player.Bitmovin {
			opts.UsesBitmovin = true
			break
		}
	}
	return opts
}

// runBatch executes the runs one after another.
func (o *Orchestrator) runBatch(ctx context.Context, docOut io.Writer) {
	meta := stats.DocumentMeta{
		DataID:           o.config.DataID,
		NodeID:           o.config.NodeID,
		Interface:        o.config.Interface,
		ContainerVersion: o.config.ContainerVersion,
		Stub:             o.config.PageStub,
		Duration:         o.config.Duration,
		TimeBetweenRuns:  o.config.TimeBetweenRuns,
		BatchStarted:     o.batchStarted,
		Randomize:        o.config.Randomize,
		Configurations:   o.configurations,
		Verbose:          o.config.Verbose,
	}

	for i, spec := range o.runs {
		if err := o.pacer.Wait(ctx, i); err != nil {
			o.logger.Info("batch_cancelled", "completed", i, "planned", len(o.runs))
			return
		}

		res, console := o.runOne(ctx, i, spec)
		o.aggregator.Add(res)
		o.metrics.RecordRun(res)

		if o.config.Summary {
			o.writeDocuments(docOut, i, res, console, meta)
		}

		if ctx.Err() != nil {
			o.logger.Info("batch_cancelled", "completed", i+1, "planned", len(o.runs))
			return
		}
	}

	o.logger.Info("batch_complete",
		"runs", len(o.runs),
		"elapsed", time.Since(o.batchStarted).String(),
	)
}

// writeDocuments writes the documents of one run: the summary, the console
// output and, when measured, the ping and traceroute results.
func (o *Orchestrator) writeDocuments(w io.Writer, index int, res stats.RunResult, console *logging.Console, meta stats.DocumentMeta) {
	docs := []stats.Document{
		stats.BuildDocument(res, meta),
		stats.BuildConsoleDocument(res, console.Entries()),
	}
	if res.Ping != nil {
		docs = append(docs, stats.BuildPingDocument(res, *res.Ping))
	}
	if res.Traceroute != nil {
		docs = append(docs, stats.BuildTracerouteDocument(res, *res.Traceroute))
	}

	for _, doc := range docs {
		name := stats.DocumentName(res, meta, doc.Kind())
		if err := stats.WriteDocument(w, doc); err != nil {
			o.logger.Warn("document_write_failed", "run", index, "kind", string(doc.Kind()), "error", err)
			continue
		}
		o.logger.Info("document_written", "run", index, "kind", string(doc.Kind()), "name", name)
	}
}

// checkPath runs the ping and traceroute configured for spec. Results are
// nil when the target is empty.
func (o *Orchestrator) checkPath(ctx context.Context, spec experiment.RunSpec) (*netpath.PingResult, *netpath.TraceResult) {
	var ping *netpath.PingResult
	var trace *netpath.TraceResult
	if spec.PingTarget != "" {
		p := o.path.Ping(ctx, netpath.PingConfig{
			Target:  spec.PingTarget,
			Count:   spec.PingCount,
			Timeout: spec.PingTimeout,
		})
		ping = &p
	}
	if spec.TracerouteTarget != "" {
		tr := o.path.Traceroute(ctx, netpath.TraceConfig{Target: spec.TracerouteTarget})
		trace = &tr
	}
	return ping, trace
}

// runOne executes run index and logs its outcome.
func (o *Orchestrator) runOne(ctx context.Context, index int, spec experiment.RunSpec) (stats.RunResult, *logging.Console) {
	tag := experiment.NewSessionTag()
	console := logging.NewConsole(spec.Player, o.logger, o.config.Verbose)
	o.mu.Lock()
	o.console = console
	o.mu.Unlock()

	o.logger.Info("run_starting",
		"run", index,
		"player", spec.Player,
		"abr", spec.EffectiveABR(),
		"tag", tag,
	)
	tui.SendRunStarted(o.program, index, spec)

	ping, trace := o.checkPath(ctx, spec)
	res, err := o.runner.Run(ctx, Run{
		Index:   index,
		Spec:    spec,
		Params:  spec.Params(tag, o.config.ContainerVersion),
		Console: console,
	})
	res.Ping, res.Traceroute = ping, trace
	if err != nil {
		o.logger.Warn("run_failed",
			"run", index,
			"player", spec.Player,
			"error", err,
		)
		return res, console
	}

	o.logger.Info("run_finished",
		"run", index,
		"player", res.Backend,
		"outcome", string(res.Outcome),
		"session_id", res.SessionID(),
		"strategy", res.Strategy,
		"startup_ms", res.StartupDelay.Milliseconds(),
		"quality_switches", res.QualitySwitches,
		"stalls", res.Stalls,
	)
	return res, console
}

// refresh updates the live metrics and the dashboard until the batch is
// done.
func (o *Orchestrator) refresh(ctx context.Context, done <-chan struct{}) {
	ticker := time.NewTicker(refreshInterval)
	defer ticker.Stop()

	for {
		select {
		case <-done:
			return
		case <-ctx.Done():
			return
		case <-ticker.C:
			o.metrics.UpdateElapsed()
			o.recordAnalytics()
			tui.SendStats(o.program, o.aggregator.Aggregate())
		}
	}
}

// recordAnalytics copies the analytics pipeline counters into metrics.
func (o *Orchestrator) recordAnalytics() {
	p := o.collector.Pipeline()
	fed, dropped, _, _ := p.Stats()
	o.metrics.RecordAnalytics(fed, dropped, p.Degraded())
}

func (o *Orchestrator) closeAnalytics() {
	if o.analyticsFile == nil {
		return
	}
	if err := o.analyticsFile.Close(); err != nil {
		o.logger.Warn("analytics_close_failed", "error", err)
	}
	o.analyticsFile = nil
}

// printExitSummary prints a summary of the batch.
func (o *Orchestrator) printExitSummary() {
	_, dropped, _, _ := o.collector.Pipeline().Stats()
	summary := stats.FormatExitSummary(o.aggregator.Aggregate(), stats.SummaryConfig{
		Mode:             o.config.Mode,
		ManifestURL:      o.config.ManifestURL,
		Duration:         time.Since(o.batchStarted),
		MetricsAddr:      o.config.MetricsAddr,
		ShowRecentRuns:   true,
		AnalyticsDropped: dropped,
	})
	fmt.Fprint(o.out, summary)
}

// RecentLines returns the most recent console lines of the current run.
func (o *Orchestrator) RecentLines(n int) []string {
	o.mu.Lock()
	c := o.console
	o.mu.Unlock()
	if c == nil {
		return nil
	}
	return c.RecentLines(n)
}

// Runs returns the expanded run list.
func (o *Orchestrator) Runs() []experiment.RunSpec {
	return o.runs
}

// Aggregator returns the batch statistics.
func (o *Orchestrator) Aggregator() *stats.Aggregator {
	return o.aggregator
}

// Metrics returns the metrics collector for external access.
func (o *Orchestrator) Metrics() *metrics.Collector {
	return o.metrics
}
