// Package metrics provides Prometheus metrics for go-abr-harness.
//
// One collector exists per batch. It owns its registry so that several
// batches in one process (and tests) never collide on registration.
package metrics

import (
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/randomizedcoder/go-abr-harness/internal/stats"
)

const namespace = "abr_harness"

// startupBuckets covers sub-second starts up to slow mobile links.
var startupBuckets = []float64{0.1, 0.25, 0.5, 0.75, 1, 1.5, 2, 3, 5, 8, 13, 20}

// CollectorConfig holds configuration for the collector.
type CollectorConfig struct {
	Version     string
	Mode        string
	ManifestURL string
	PlannedRuns int
}

// Collector manages the Prometheus metrics of a batch.
type Collector struct {
	registry  *prometheus.Registry
	startTime time.Time

	// =========================================================================
	// Batch overview
	// =========================================================================
	info           *prometheus.GaugeVec
	plannedRuns    prometheus.Gauge
	elapsedSeconds prometheus.Gauge
	activeSessions prometheus.Gauge

	// =========================================================================
	// Per-run outcomes
	// =========================================================================
	runsTotal            *prometheus.CounterVec
	strategyResolved     *prometheus.CounterVec
	qualitySwitchesTotal *prometheus.CounterVec
	stallsTotal          *prometheus.CounterVec
	startupSeconds       *prometheus.HistogramVec
	runDurationSeconds   *prometheus.HistogramVec
	pingRTTSeconds       *prometheus.HistogramVec

	// =========================================================================
	// Analytics pipeline health
	// =========================================================================
	analyticsSamplesTotal prometheus.Counter
	analyticsDroppedTotal prometheus.Counter
	analyticsDegraded     prometheus.Gauge

	mu          sync.Mutex
	prevFed     int64
	prevDropped int64
	peakActive  int
	active      int
}

// NewCollector creates a collector with its own registry.
func NewCollector(cfg CollectorConfig) *Collector {
	return NewCollectorWithRegistry(cfg, prometheus.NewRegistry())
}

// NewCollectorWithRegistry creates a collector that registers into registry.
func NewCollectorWithRegistry(cfg CollectorConfig, registry *prometheus.Registry) *Collector {
	c := &Collector{
		registry:  registry,
		startTime: time.Now(),

		info: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "info",
			Help:      "Information about the batch (value always 1)",
		}, []string{"version", "mode", "manifest_url"}),
		plannedRuns: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "planned_runs",
			Help:      "Number of runs in the batch",
		}),
		elapsedSeconds: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "batch_elapsed_seconds",
			Help:      "Seconds since the batch started",
		}),
		activeSessions: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "active_sessions",
			Help:      "Player sessions currently running",
		}),

		runsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "runs_total",
			Help:      "Finished runs by player backend and outcome",
		}, []string{"backend", "outcome"}),
		strategyResolved: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "abr_strategy_resolved_total",
			Help:      "Resolved ABR strategies by player backend",
		}, []string{"backend", "strategy"}),
		qualitySwitchesTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "quality_switches_total",
			Help:      "Quality switches observed after the initial selection",
		}, []string{"backend"}),
		stallsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "stalls_total",
			Help:      "Playback stalls observed",
		}, []string{"backend"}),
		startupSeconds: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "startup_seconds",
			Help:      "Time from session start to first playback",
			Buckets:   startupBuckets,
		}, []string{"backend"}),
		runDurationSeconds: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "run_duration_seconds",
			Help:      "Wall-clock duration of a run",
			Buckets:   prometheus.ExponentialBuckets(1, 2, 10),
		}, []string{"backend"}),
		pingRTTSeconds: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "ping_rtt_seconds",
			Help:      "Average ping round trip time measured before a run",
			Buckets:   prometheus.ExponentialBuckets(0.001, 2, 12),
		}, []string{"target"}),

		analyticsSamplesTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "analytics_samples_total",
			Help:      "Analytics samples offered to the pipeline",
		}),
		analyticsDroppedTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "analytics_samples_dropped_total",
			Help:      "Analytics samples dropped because the pipeline was full",
		}),
		analyticsDegraded: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "analytics_degraded",
			Help:      "1 when the analytics drop rate exceeds its threshold",
		}),
	}

	registry.MustRegister(
		c.info,
		c.plannedRuns,
		c.elapsedSeconds,
		c.activeSessions,
		c.runsTotal,
		c.strategyResolved,
		c.qualitySwitchesTotal,
		c.stallsTotal,
		c.startupSeconds,
		c.runDurationSeconds,
		c.pingRTTSeconds,
		c.analyticsSamplesTotal,
		c.analyticsDroppedTotal,
		c.analyticsDegraded,
	)

	version := cfg.Version
	if version == "" {
		version = "dev"
	}
	c.info.WithLabelValues(version, cfg.Mode, cfg.ManifestURL).Set(1)
	c.plannedRuns.Set(float64(cfg.PlannedRuns))

	return c
}

// Registry returns the registry the collector's metrics live in.
func (c *Collector) Registry() *prometheus.Registry {
	return c.registry
}

// =============================================================================
// Event Recording Methods
// =============================================================================

// SessionStarted records that a player session began.
func (c *Collector) SessionStarted() {
	c.mu.Lock()
	c.active++
	if c.active > c.peakActive {
		c.peakActive = c.active
	}
	active := c.active
	c.mu.Unlock()

	c.activeSessions.Set(float64(active))
}

// SessionEnded records that a player session was torn down.
func (c *Collector) SessionEnded() {
	c.mu.Lock()
	if c.active > 0 {
		c.active--
	}
	active := c.active
	c.mu.Unlock()

	c.activeSessions.Set(float64(active))
}

// RecordRun records the outcome of one run.
func (c *Collector) RecordRun(r stats.RunResult) {
	c.runsTotal.WithLabelValues(r.Backend, string(r.Outcome)).Inc()
	if r.Strategy != "" {
		c.strategyResolved.WithLabelValues(r.Backend, r.Strategy).Inc()
	}
	if r.QualitySwitches > 0 {
		c.qualitySwitchesTotal.WithLabelValues(r.Backend).Add(float64(r.QualitySwitches))
	}
	if r.Stalls > 0 {
		c.stallsTotal.WithLabelValues(r.Backend).Add(float64(r.Stalls))
	}
	if r.Played() && r.StartupDelay > 0 {
		c.startupSeconds.WithLabelValues(r.Backend).Observe(r.StartupDelay.Seconds())
	}
	if d := r.Duration(); d > 0 {
		c.runDurationSeconds.WithLabelValues(r.Backend).Observe(d.Seconds())
	}
	if p := r.Ping; p != nil && p.Received > 0 {
		c.pingRTTSeconds.WithLabelValues(p.Target).Observe(p.AvgRTT.Seconds())
	}
}

// RecordAnalytics updates the analytics pipeline counters from cumulative
// totals. Only the delta since the previous call is added.
func (c *Collector) RecordAnalytics(fed, dropped int64, degraded bool) {
	c.mu.Lock()
	fedDelta := fed - c.prevFed
	droppedDelta := dropped - c.prevDropped
	c.prevFed = fed
	c.prevDropped = dropped
	c.mu.Unlock()

	if fedDelta > 0 {
		c.analyticsSamplesTotal.Add(float64(fedDelta))
	}
	if droppedDelta > 0 {
		c.analyticsDroppedTotal.Add(float64(droppedDelta))
	}
	if degraded {
		c.analyticsDegraded.Set(1)
	} else {
		c.analyticsDegraded.Set(0)
	}
}

// UpdateElapsed refreshes the batch elapsed gauge.
func (c *Collector) UpdateElapsed() {
	c.elapsedSeconds.Set(time.Since(c.startTime).Seconds())
}

// PeakActive returns the highest number of concurrent sessions seen.
func (c *Collector) PeakActive() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.peakActive
}
