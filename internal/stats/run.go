// Package stats collects per-run results of a batch and aggregates them
// for the exit summary, the dashboard and the per-run summary documents.
package stats

import (
	"time"

	"github.com/randomizedcoder/go-abr-harness/internal/experiment"
	"github.com/randomizedcoder/go-abr-harness/internal/netpath"
)

// NotAvailable is reported in place of an empty correlation id.
const NotAvailable = "NA"

// Outcome classifies how a run ended.
type Outcome string

const (
	// OutcomeCompleted means playback started and the run reached its end
	// or its time limit.
	OutcomeCompleted Outcome = "completed"

	// OutcomeNoPlayback means the player loaded but never started playing.
	OutcomeNoPlayback Outcome = "no_playback"

	// OutcomeFailed means the run could not be started, for example because
	// the manifest failed to load.
	OutcomeFailed Outcome = "failed"
)

// Outcomes lists every outcome in display order.
var Outcomes = []Outcome{OutcomeCompleted, OutcomeNoPlayback, OutcomeFailed}

// Classify derives the outcome of a run.
func Classify(err error, played bool) Outcome {
	switch {
	case err != nil:
		return OutcomeFailed
	case !played:
		return OutcomeNoPlayback
	default:
		return OutcomeCompleted
	}
}

// RunResult is the record of one run of a batch.
type RunResult struct {
	Index   int
	Spec    experiment.RunSpec
	Config  experiment.Config
	Backend string
	Outcome Outcome

	// Strategy is the resolved ABR strategy name, empty in browser mode.
	Strategy      string
	CorrelationID string
	State         string

	StartupDelay    time.Duration
	QualitySwitches int
	Stalls          int

	Started  time.Time
	Finished time.Time

	Err           string
	ConsoleErrors map[string]int

	// Ping and Traceroute are set when the run measured the network path
	// before loading the player.
	Ping       *netpath.PingResult
	Traceroute *netpath.TraceResult
}

// SessionID returns the correlation id, or NotAvailable when none was
// produced.
func (r RunResult) SessionID() string {
	if r.CorrelationID == "" {
		return NotAvailable
	}
	return r.CorrelationID
}

// Duration returns how long the run took.
func (r RunResult) Duration() time.Duration {
	if r.Finished.Before(r.Started) {
		return 0
	}
	return r.Finished.Sub(r.Started)
}

// Played reports whether playback started during the run.
func (r RunResult) Played() bool {
	return r.Outcome == OutcomeCompleted
}
