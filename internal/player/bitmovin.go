package player

import (
	"context"
	"errors"

	"github.com/randomizedcoder/go-abr-harness/internal/analytics"
	"github.com/randomizedcoder/go-abr-harness/internal/analytics/integrations"
	"github.com/randomizedcoder/go-abr-harness/internal/engine/bitmovin"
	"github.com/randomizedcoder/go-abr-harness/internal/experiment"
)

// bitmovinAdapter drives a Bitmovin player. It has no ABR switch. The
// impression id lives on the player's analytics sub-object, which only
// exists after AttachAnalytics.
type bitmovinAdapter struct {
	*base
	player *bitmovin.Player
}

var _ Adapter = (*bitmovinAdapter)(nil)

func (a *bitmovinAdapter) engine() *bitmovin.Player {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.player
}

func (a *bitmovinAdapter) Initialize(ctx context.Context, container Container, manifestURI string, cfg experiment.Config) error {
	if err := a.begin(manifestURI); err != nil {
		return err
	}

	p := bitmovin.NewPlayer(container.ID, bitmovin.Config{
		Key:      a.opts.LicenseKey,
		Playback: bitmovin.PlaybackConfig{Muted: true},
		Engine:   a.opts.Engine,
	})
	a.mu.Lock()
	a.player = p
	a.mu.Unlock()

	p.On(bitmovin.EventPlay, func(bitmovin.Event) { a.transition(StatePlaying) })
	p.On(bitmovin.EventStallStarted, func(bitmovin.Event) { a.transition(StateStalled) })
	p.On(bitmovin.EventStallEnded, func(bitmovin.Event) { a.transition(StatePlaying) })
	p.On(bitmovin.EventPlaybackFinished, func(bitmovin.Event) { a.transition(StateEnded) })

	settled := make(chan error, 1)
	result := p.Load(bitmovin.Source{Dash: manifestURI, Title: cfg.Title})
	go func() {
		err := <-result
		if err == nil {
			a.loadReady()
			settled <- nil
			return
		}
		var pe *bitmovin.PlayerError
		if errors.As(err, &pe) {
			settled <- a.loadFailed(pe, err, "code", pe.Code, "name", pe.Name)
			return
		}
		settled <- a.loadFailed(nil, err)
	}()
	return a.await(ctx, settled)
}

func (a *bitmovinAdapter) AttachAnalytics(cfg analytics.Config) error {
	p := a.engine()
	if p == nil {
		return ErrNotInitialized
	}
	if cfg.Key == "" {
		cfg.Key = a.opts.LicenseKey
	}
	p.ConfigureAnalytics(cfg)
	a.addChannel(integrations.NewBitmovin8Adapter(p, a.collector))
	return nil
}

// CorrelationID reads the id from the player's analytics sub-object.
func (a *bitmovinAdapter) CorrelationID() string {
	p := a.engine()
	if p == nil {
		return ""
	}
	if an := p.Analytics(); an != nil {
		return an.GetCurrentImpressionID()
	}
	return ""
}

func (a *bitmovinAdapter) Subscribe(h Handlers) (*Subscription, error) {
	p := a.engine()
	if p == nil {
		return nil, ErrNotInitialized
	}
	sub := &Subscription{}
	if h.OnQualityChange != nil {
		sub.offs = append(sub.offs, p.On(bitmovin.EventVideoDownloadQualityChange, func(ev bitmovin.Event) {
			h.OnQualityChange(QualityChange{
				Time:    ev.Timestamp,
				From:    ev.SourceQuality,
				To:      ev.TargetQuality,
				Bitrate: ev.Bitrate,
				Initial: ev.SourceQuality == "",
			})
		}))
	}
	if h.OnPlayStart != nil {
		sub.offs = append(sub.offs, p.On(bitmovin.EventPlay, func(ev bitmovin.Event) {
			h.OnPlayStart(ev.Timestamp)
		}))
	}
	if h.OnStall != nil {
		sub.offs = append(sub.offs, p.On(bitmovin.EventStallStarted, func(ev bitmovin.Event) {
			h.OnStall(ev.Timestamp)
		}))
	}
	if h.OnStateChange != nil {
		sub.offs = append(sub.offs, a.onState(h.OnStateChange))
	}
	return sub, nil
}

func (a *bitmovinAdapter) Play() error {
	if err := a.checkReady(); err != nil {
		return err
	}
	return a.engine().Play()
}

func (a *bitmovinAdapter) Destroy() {
	if !a.beginRelease() {
		return
	}
	if p := a.engine(); p != nil {
		p.Destroy()
	}
	a.release()
}
