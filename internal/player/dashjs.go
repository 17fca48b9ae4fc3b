package player

import (
	"context"
	"strconv"
	"sync"

	"github.com/randomizedcoder/go-abr-harness/internal/abr"
	"github.com/randomizedcoder/go-abr-harness/internal/analytics"
	"github.com/randomizedcoder/go-abr-harness/internal/analytics/integrations"
	"github.com/randomizedcoder/go-abr-harness/internal/engine/dashjs"
	"github.com/randomizedcoder/go-abr-harness/internal/experiment"
)

// dashjsAdapter drives a dash.js MediaPlayer. It is the only backend with
// an ABR switch.
type dashjsAdapter struct {
	*base
	player *dashjs.MediaPlayer
}

var (
	_ Adapter       = (*dashjsAdapter)(nil)
	_ abr.Overrider = (*dashjsAdapter)(nil)
)

func (a *dashjsAdapter) engine() *dashjs.MediaPlayer {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.player
}

func (a *dashjsAdapter) Initialize(ctx context.Context, container Container, manifestURI string, _ experiment.Config) error {
	if err := a.begin(manifestURI); err != nil {
		return err
	}

	p := dashjs.Create(a.opts.Engine)
	a.mu.Lock()
	a.player = p
	a.mu.Unlock()

	p.On(dashjs.EventPlaybackStarted, func(dashjs.Event) { a.transition(StatePlaying) })
	p.On(dashjs.EventBufferStalled, func(dashjs.Event) { a.transition(StateStalled) })
	p.On(dashjs.EventBufferLoaded, func(dashjs.Event) { a.transition(StatePlaying) })
	p.On(dashjs.EventPlaybackEnded, func(dashjs.Event) { a.transition(StateEnded) })

	// dash.js reports the load outcome as events.
	settled := make(chan error, 1)
	var once sync.Once
	p.On(dashjs.EventStreamInitialized, func(dashjs.Event) {
		once.Do(func() {
			a.loadReady()
			settled <- nil
		})
	})
	p.On(dashjs.EventError, func(ev dashjs.Event) {
		once.Do(func() {
			settled <- a.loadFailed(ev.Error, ev.Error, "code", ev.Error.Code)
		})
	})

	p.Initialize(container.ID, manifestURI, false)
	return a.await(ctx, settled)
}

// SetABRStrategy switches the dash.js ABR algorithm. Dynamic is dash.js's
// default and is accepted without touching the player.
func (a *dashjsAdapter) SetABRStrategy(s abr.Strategy) bool {
	p := a.engine()
	if p == nil {
		return false
	}

	var name string
	switch s {
	case abr.Dynamic:
		a.logger.Debug("abr_strategy_default", "backend", string(a.backend), "strategy", s.String())
		return true
	case abr.Bola:
		name = dashjs.ABRBola
	case abr.Throughput:
		name = dashjs.ABRThroughput
	default:
		return false
	}

	if err := p.SetABRStrategy(name); err != nil {
		a.logger.Warn("abr_strategy_rejected", "backend", string(a.backend), "strategy", s.String(), "error", err)
		return false
	}
	a.logger.Info("abr_strategy_set", "backend", string(a.backend), "strategy", s.String())
	return true
}

func (a *dashjsAdapter) AttachAnalytics(cfg analytics.Config) error {
	p := a.engine()
	if p == nil {
		return ErrNotInitialized
	}
	if cfg.Key == "" {
		cfg.Key = a.opts.LicenseKey
	}
	a.mu.Lock()
	start := a.startedAt
	a.mu.Unlock()

	a.addChannel(integrations.NewDashjsAdapter(cfg, p, integrations.DashjsOptions{StartTime: start}, a.collector))
	return nil
}

func (a *dashjsAdapter) Subscribe(h Handlers) (*Subscription, error) {
	p := a.engine()
	if p == nil {
		return nil, ErrNotInitialized
	}
	sub := &Subscription{}
	if h.OnQualityChange != nil {
		sub.offs = append(sub.offs, p.On(dashjs.EventQualityChangeRendered, func(ev dashjs.Event) {
			if ev.MediaType != "video" {
				return
			}
			qc := QualityChange{
				Time:    ev.Time,
				To:      qualityName(ev.NewQuality),
				Bitrate: ev.Bitrate,
				Initial: ev.OldQuality < 0,
			}
			if !qc.Initial {
				qc.From = qualityName(ev.OldQuality)
			}
			h.OnQualityChange(qc)
		}))
	}
	if h.OnPlayStart != nil {
		sub.offs = append(sub.offs, p.On(dashjs.EventPlaybackStarted, func(ev dashjs.Event) {
			h.OnPlayStart(ev.Time)
		}))
	}
	if h.OnStall != nil {
		sub.offs = append(sub.offs, p.On(dashjs.EventBufferStalled, func(ev dashjs.Event) {
			h.OnStall(ev.Time)
		}))
	}
	if h.OnStateChange != nil {
		sub.offs = append(sub.offs, a.onState(h.OnStateChange))
	}
	return sub, nil
}

func (a *dashjsAdapter) Play() error {
	if err := a.checkReady(); err != nil {
		return err
	}
	return a.engine().Play()
}

func (a *dashjsAdapter) Destroy() {
	if !a.beginRelease() {
		return
	}
	if p := a.engine(); p != nil {
		p.Reset()
	}
	a.release()
}

func qualityName(index int) string {
	return "q" + strconv.Itoa(index)
}
