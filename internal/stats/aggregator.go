package stats

import (
	"sort"
	"sync"
	"time"

	"github.com/influxdata/tdigest"
)

// RecentRuns is the number of run results kept for the dashboard.
const RecentRuns = 10

// BackendStats holds per-backend counts.
type BackendStats struct {
	Runs       int
	Outcomes   map[Outcome]int
	Strategies map[string]int
	Stalls     int
}

// AggregatedStats is a snapshot of a batch so far. Values are computed at
// the time of the Aggregate call and safe to use afterwards.
type AggregatedStats struct {
	Timestamp time.Time
	Elapsed   time.Duration

	PlannedRuns int
	Runs        int
	Outcomes    map[Outcome]int
	PerBackend  map[string]*BackendStats

	// Startup delay percentiles over runs that started playback.
	StartupSamples int
	StartupP50     time.Duration
	StartupP95     time.Duration
	StartupMax     time.Duration

	// Stalls per run over all runs that did not fail.
	StallsP50            float64
	StallsP95            float64
	TotalStalls          int
	TotalQualitySwitches int

	ConsoleErrors map[string]int

	// Recent holds the most recent results, newest last.
	Recent []RunResult
}

// Backends returns the backend names in sorted order.
func (s *AggregatedStats) Backends() []string {
	names := make([]string, 0, len(s.PerBackend))
	for name := range s.PerBackend {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Aggregator accumulates run results.
//
// Thread-safe: the batch runner adds results while the dashboard and the
// metrics layer read snapshots.
type Aggregator struct {
	mu          sync.RWMutex
	startTime   time.Time
	plannedRuns int

	runs       int
	outcomes   map[Outcome]int
	perBackend map[string]*BackendStats
	consoleErr map[string]int

	startupDigest  *tdigest.TDigest
	startupSamples int
	startupMax     time.Duration

	stallDigest   *tdigest.TDigest
	stallSamples  int
	totalStalls   int
	totalSwitches int

	recent []RunResult
}

// NewAggregator creates an aggregator for a batch of plannedRuns runs.
func NewAggregator(plannedRuns int) *Aggregator {
	a := &Aggregator{plannedRuns: plannedRuns}
	a.reset()
	return a
}

func (a *Aggregator) reset() {
	a.startTime = time.Now()
	a.runs = 0
	a.outcomes = make(map[Outcome]int)
	a.perBackend = make(map[string]*BackendStats)
	a.consoleErr = make(map[string]int)
	a.startupDigest = tdigest.NewWithCompression(100)
	a.startupSamples = 0
	a.startupMax = 0
	a.stallDigest = tdigest.NewWithCompression(100)
	a.stallSamples = 0
	a.totalStalls = 0
	a.totalSwitches = 0
	a.recent = nil
}

// Add records one run result.
func (a *Aggregator) Add(r RunResult) {
	a.mu.Lock()
	defer a.mu.Unlock()

	a.runs++
	a.outcomes[r.Outcome]++

	b := a.perBackend[r.Backend]
	if b == nil {
		b = &BackendStats{
			Outcomes:   make(map[Outcome]int),
			Strategies: make(map[string]int),
		}
		a.perBackend[r.Backend] = b
	}
	b.Runs++
	b.Outcomes[r.Outcome]++
	if r.Strategy != "" {
		b.Strategies[r.Strategy]++
	}
	b.Stalls += r.Stalls

	if r.Played() && r.StartupDelay > 0 {
		a.startupDigest.Add(float64(r.StartupDelay.Nanoseconds()), 1)
		a.startupSamples++
		if r.StartupDelay > a.startupMax {
			a.startupMax = r.StartupDelay
		}
	}
	if r.Outcome != OutcomeFailed {
		a.stallDigest.Add(float64(r.Stalls), 1)
		a.stallSamples++
	}
	a.totalStalls += r.Stalls
	if r.QualitySwitches > 0 {
		a.totalSwitches += r.QualitySwitches
	}
	for pattern, n := range r.ConsoleErrors {
		a.consoleErr[pattern] += n
	}

	a.recent = append(a.recent, r)
	if len(a.recent) > RecentRuns {
		a.recent = a.recent[len(a.recent)-RecentRuns:]
	}
}

// Aggregate returns a snapshot of everything recorded so far.
func (a *Aggregator) Aggregate() *AggregatedStats {
	a.mu.RLock()
	defer a.mu.RUnlock()

	now := time.Now()
	result := &AggregatedStats{
		Timestamp:            now,
		Elapsed:              now.Sub(a.startTime),
		PlannedRuns:          a.plannedRuns,
		Runs:                 a.runs,
		Outcomes:             make(map[Outcome]int, len(a.outcomes)),
		PerBackend:           make(map[string]*BackendStats, len(a.perBackend)),
		StartupSamples:       a.startupSamples,
		StartupMax:           a.startupMax,
		TotalStalls:          a.totalStalls,
		TotalQualitySwitches: a.totalSwitches,
		ConsoleErrors:        make(map[string]int, len(a.consoleErr)),
		Recent:               append([]RunResult(nil), a.recent...),
	}
	for o, n := range a.outcomes {
		result.Outcomes[o] = n
	}
	for name, b := range a.perBackend {
		cp := &BackendStats{
			Runs:       b.Runs,
			Stalls:     b.Stalls,
			Outcomes:   make(map[Outcome]int, len(b.Outcomes)),
			Strategies: make(map[string]int, len(b.Strategies)),
		}
		for o, n := range b.Outcomes {
			cp.Outcomes[o] = n
		}
		for s, n := range b.Strategies {
			cp.Strategies[s] = n
		}
		result.PerBackend[name] = cp
	}
	for p, n := range a.consoleErr {
		result.ConsoleErrors[p] = n
	}

	if a.startupSamples > 0 {
		result.StartupP50 = time.Duration(a.startupDigest.Quantile(0.50))
		result.StartupP95 = time.Duration(a.startupDigest.Quantile(0.95))
	}
	if a.stallSamples > 0 {
		result.StallsP50 = a.stallDigest.Quantile(0.50)
		result.StallsP95 = a.stallDigest.Quantile(0.95)
	}
	return result
}

// PlannedRuns returns the number of runs the batch was created with.
func (a *Aggregator) PlannedRuns() int {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return a.plannedRuns
}

// Runs returns the number of results recorded.
func (a *Aggregator) Runs() int {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return a.runs
}

// StartTime returns when the aggregator was created or last reset.
func (a *Aggregator) StartTime() time.Time {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return a.startTime
}

// Elapsed returns the duration since StartTime.
func (a *Aggregator) Elapsed() time.Duration {
	return time.Since(a.StartTime())
}

// Reset clears all results and restarts the clock.
func (a *Aggregator) Reset() {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.reset()
}
