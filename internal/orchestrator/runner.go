package orchestrator

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/randomizedcoder/go-abr-harness/internal/browser"
	"github.com/randomizedcoder/go-abr-harness/internal/experiment"
	"github.com/randomizedcoder/go-abr-harness/internal/harness"
	"github.com/randomizedcoder/go-abr-harness/internal/logging"
	"github.com/randomizedcoder/go-abr-harness/internal/metrics"
	"github.com/randomizedcoder/go-abr-harness/internal/player"
	"github.com/randomizedcoder/go-abr-harness/internal/stats"
)

// Run is one scheduled run of a batch.
type Run struct {
	Index   int
	Spec    experiment.RunSpec
	Params  map[string]string
	Console *logging.Console
}

// Runner executes a single run. The returned result is always filled in;
// the error is the reason the run failed, if it did.
type Runner interface {
	Run(ctx context.Context, run Run) (stats.RunResult, error)
}

// newResult starts the record of a run.
func newResult(run Run) stats.RunResult {
	return stats.RunResult{
		Index:   run.Index,
		Spec:    run.Spec,
		Config:  experiment.Resolve(run.Params),
		Backend: run.Spec.Player,
		Started: time.Now(),
	}
}

// finish stamps the end of a run and classifies it.
func finish(r stats.RunResult, console *logging.Console, err error, played bool) stats.RunResult {
	r.Finished = time.Now()
	r.Outcome = stats.Classify(err, played)
	if err != nil {
		r.Err = err.Error()
	}
	if console != nil {
		if counts := console.CountErrors(); len(counts) > 0 {
			r.ConsoleErrors = counts
		}
	}
	return r
}

// =============================================================================
// Harness mode
// =============================================================================

// HarnessRunner runs sessions in-process against the playback engine.
type HarnessRunner struct {
	base     harness.Config
	duration time.Duration
	metrics  *metrics.Collector
	logger   *slog.Logger
}

// NewHarnessRunner creates a runner. base is copied for every run with
// the run's console wired in; duration caps the wall time of each run.
func NewHarnessRunner(base harness.Config, duration time.Duration, m *metrics.Collector) *HarnessRunner {
	logger := base.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &HarnessRunner{base: base, duration: duration, metrics: m, logger: logger}
}

// Run starts a session, lets it play until it ends, the duration elapses
// or ctx is done, then tears it down.
func (r *HarnessRunner) Run(ctx context.Context, run Run) (stats.RunResult, error) {
	res := newResult(run)

	backend, err := player.ParseBackend(run.Spec.Player)
	if err != nil {
		return finish(res, run.Console, err, false), err
	}
	res.Backend = string(backend)

	cfg := r.base
	cfg.Logger = r.logger.With("run", run.Index, "backend", string(backend))
	cfg.OnCorrelationID = func(_ player.Backend, id string) {
		run.Console.SessionID(id)
	}
	cfg.Observe = consoleHandlers(run.Console)

	sess, err := harness.New(cfg).Start(ctx, backend, run.Params)
	if err != nil {
		return finish(res, run.Console, err, false), err
	}
	if r.metrics != nil {
		r.metrics.SessionStarted()
		defer r.metrics.SessionEnded()
	}
	run.Console.HandleLine(logging.ConsoleLog, "ABR logic = "+sess.Strategy().String())

	ended := sess.Wait(ctx, r.duration)
	sess.Close()

	hr := sess.Result()
	res.Config = hr.Config
	res.Strategy = hr.Strategy.String()
	res.CorrelationID = hr.CorrelationID
	res.State = hr.State.String()
	res.StartupDelay = hr.StartupDelay
	res.QualitySwitches = hr.QualitySwitches
	res.Stalls = hr.Stalls
	res.Started = hr.Started

	cfg.Logger.Debug("session_closed",
		"ended_naturally", ended,
		"state", res.State,
		"played", hr.Played,
	)
	return finish(res, run.Console, nil, hr.Played), nil
}

// consoleHandlers mirrors adapter events into the run's console the way
// the player pages print them.
func consoleHandlers(c *logging.Console) player.Handlers {
	stalls := 0
	return player.Handlers{
		OnQualityChange: func(q player.QualityChange) {
			if q.Initial {
				c.HandleLine(logging.ConsoleLog, "quality ---> "+q.To)
				return
			}
			c.HandleLine(logging.ConsoleLog, fmt.Sprintf("adaptation ---> %s -> %s", q.From, q.To))
		},
		OnPlayStart: func(time.Time) {
			c.HandleLine(logging.ConsoleLog, "PLAY ---> playback started")
		},
		OnStall: func(time.Time) {
			stalls++
			c.HandleLine(logging.ConsoleLog, fmt.Sprintf("STALL ---> #%d", stalls))
		},
		OnStateChange: func(from, to player.State) {
			c.HandleLine(logging.ConsoleDebug, fmt.Sprintf("state ---> %s -> %s", from, to))
		},
	}
}

// =============================================================================
// Browser mode
// =============================================================================

// BrowserRunner runs the deployed player pages in Chrome.
type BrowserRunner struct {
	pages   *browser.PageRunner
	metrics *metrics.Collector
}

// NewBrowserRunner creates a runner around pages.
func NewBrowserRunner(pages *browser.PageRunner, m *metrics.Collector) *BrowserRunner {
	return &BrowserRunner{pages: pages, metrics: m}
}

// Run loads the page for the run's player and keeps it open for the
// configured duration.
func (r *BrowserRunner) Run(ctx context.Context, run Run) (stats.RunResult, error) {
	res := newResult(run)

	backend, err := player.ParseBackend(run.Spec.Player)
	if err != nil {
		return finish(res, run.Console, err, false), err
	}
	res.Backend = string(backend)

	if r.metrics != nil {
		r.metrics.SessionStarted()
		defer r.metrics.SessionEnded()
	}

	pr, err := r.pages.Run(ctx, string(backend), run.Params, run.Console)
	res.CorrelationID = pr.SessionID
	if !pr.Started.IsZero() {
		res.Started = pr.Started
	}
	if err != nil {
		res.State = player.StateFailed.String()
		return finish(res, run.Console, err, false), err
	}
	res.State = player.StateEnded.String()

	res = finish(res, run.Console, nil, true)
	if !pr.Finished.IsZero() {
		res.Finished = pr.Finished
	}
	return res, nil
}
