// Package harness runs one experiment session end to end:
//
//	resolve params -> initialize adapter -> attach analytics
//	  -> apply ABR strategy -> subscribe monitor
//	  -> surface correlation id -> play
//
// Every step completes before the next starts, so the correlation id is
// never read before analytics is attached and no playback event fires
// before the monitor is listening.
package harness

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/randomizedcoder/go-abr-harness/internal/abr"
	"github.com/randomizedcoder/go-abr-harness/internal/analytics"
	"github.com/randomizedcoder/go-abr-harness/internal/engine"
	"github.com/randomizedcoder/go-abr-harness/internal/engine/shaka"
	"github.com/randomizedcoder/go-abr-harness/internal/experiment"
	"github.com/randomizedcoder/go-abr-harness/internal/player"
	"github.com/randomizedcoder/go-abr-harness/internal/session"
)

// DefaultContainer is the player element id.
const DefaultContainer = "player"

// Config configures a Harness.
type Config struct {
	ManifestURI string
	LicenseKey  string
	Container   player.Container

	Engine    engine.Config
	Collector *analytics.Collector
	Shaka     *shaka.Environment

	// OnCorrelationID receives the impression id as soon as analytics is
	// attached.
	OnCorrelationID func(backend player.Backend, id string)

	// Observe is subscribed on every adapter after the monitor. Its
	// callbacks run on the engine's event goroutine.
	Observe player.Handlers

	Logger *slog.Logger
}

// Harness starts sessions. It holds no per-session state and may be used
// for many sessions in sequence.
type Harness struct {
	cfg    Config
	logger *slog.Logger
}

// New creates a harness.
func New(cfg Config) *Harness {
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	if cfg.Container.ID == "" {
		cfg.Container.ID = DefaultContainer
	}
	return &Harness{cfg: cfg, logger: cfg.Logger}
}

// Start runs a session for backend up to the start of playback. A failed
// manifest load is returned as a *player.InitError; the adapter is
// destroyed and the load is not retried.
func (h *Harness) Start(ctx context.Context, backend player.Backend, params map[string]string) (*Session, error) {
	started := time.Now()
	cfg := experiment.Resolve(params)

	adapter, err := player.New(backend, player.Options{
		Logger:     h.logger,
		Engine:     h.cfg.Engine,
		Collector:  h.cfg.Collector,
		Shaka:      h.cfg.Shaka,
		LicenseKey: h.cfg.LicenseKey,
	})
	if err != nil {
		return nil, err
	}

	if err := adapter.Initialize(ctx, h.cfg.Container, h.cfg.ManifestURI, cfg); err != nil {
		adapter.Destroy()
		return nil, err
	}

	as, err := session.Attach(adapter, cfg, h.cfg.LicenseKey)
	if err != nil {
		adapter.Destroy()
		return nil, err
	}

	strategy := abr.Apply(adapter, cfg.ABRAlgorithm)
	h.logger.Info("abr_strategy_resolved",
		"backend", string(backend),
		"requested", cfg.ABRAlgorithm,
		"resolved", strategy.String(),
	)

	s := &Session{
		backend:   backend,
		config:    cfg,
		strategy:  strategy,
		adapter:   adapter,
		analytics: as,
		monitor:   session.NewMonitor(as),
		started:   started,
		logger:    h.logger,
	}
	if err := s.monitor.Subscribe(adapter); err != nil {
		adapter.Destroy()
		return nil, fmt.Errorf("harness: subscribe monitor: %w", err)
	}
	if o := h.cfg.Observe; o.OnQualityChange != nil || o.OnPlayStart != nil || o.OnStall != nil || o.OnStateChange != nil {
		sub, err := adapter.Subscribe(h.cfg.Observe)
		if err != nil {
			s.Close()
			return nil, fmt.Errorf("harness: subscribe observer: %w", err)
		}
		s.observer = sub
	}

	h.logger.Info("session_id",
		"backend", string(backend),
		"impression_id", as.ImpressionID(),
		"probe_uuid", cfg.ProbeUUID,
	)
	if h.cfg.OnCorrelationID != nil {
		h.cfg.OnCorrelationID(backend, as.ImpressionID())
	}

	if err := adapter.Play(); err != nil {
		s.Close()
		return nil, fmt.Errorf("harness: play: %w", err)
	}
	return s, nil
}

// Session is one running experiment session.
type Session struct {
	backend   player.Backend
	config    experiment.Config
	strategy  abr.Strategy
	adapter   player.Adapter
	analytics *session.AnalyticsSession
	monitor   *session.Monitor
	observer  *player.Subscription
	started   time.Time
	logger    *slog.Logger

	closeOnce sync.Once
}

// Backend returns the session's backend.
func (s *Session) Backend() player.Backend { return s.backend }

// Config returns the resolved experiment configuration.
func (s *Session) Config() experiment.Config { return s.config }

// Strategy returns the ABR strategy in effect.
func (s *Session) Strategy() abr.Strategy { return s.strategy }

// CorrelationID returns the analytics impression id.
func (s *Session) CorrelationID() string { return s.analytics.ImpressionID() }

// Analytics returns the monitored session record.
func (s *Session) Analytics() *session.AnalyticsSession { return s.analytics }

// Adapter returns the session's player adapter.
func (s *Session) Adapter() player.Adapter { return s.adapter }

// Wait blocks until playback ends, maxWait elapses (0 = no limit) or ctx
// is done. It reports whether playback ended on its own.
func (s *Session) Wait(ctx context.Context, maxWait time.Duration) bool {
	var limit <-chan time.Time
	if maxWait > 0 {
		timer := time.NewTimer(maxWait)
		defer timer.Stop()
		limit = timer.C
	}
	select {
	case <-s.adapter.Done():
		return true
	case <-limit:
		return false
	case <-ctx.Done():
		return false
	}
}

// Close stops playback and releases the adapter. The analytics record is
// kept for Result.
func (s *Session) Close() {
	s.closeOnce.Do(func() {
		s.observer.Unsubscribe()
		s.monitor.Unsubscribe()
		s.adapter.Destroy()
	})
}

// Result summarizes the session so far.
func (s *Session) Result() Result {
	snap := s.analytics.Snapshot()
	r := Result{
		Backend:         s.backend,
		Config:          s.config,
		Strategy:        s.strategy,
		CorrelationID:   snap.ImpressionID,
		State:           s.adapter.State(),
		QualitySwitches: snap.QualitySwitchCount,
		Stalls:          len(snap.StallEvents),
		Started:         s.started,
	}
	if !snap.StartTime.IsZero() {
		r.Played = true
		r.StartupDelay = snap.StartTime.Sub(s.started)
		if r.StartupDelay < 0 {
			r.StartupDelay = 0
		}
	}
	return r
}

// Result is the outcome of one session.
type Result struct {
	Backend         player.Backend
	Config          experiment.Config
	Strategy        abr.Strategy
	CorrelationID   string
	State           player.State
	Played          bool
	StartupDelay    time.Duration // 0 if playback never started
	QualitySwitches int           // -1 if no quality event was seen
	Stalls          int
	Started         time.Time
}
