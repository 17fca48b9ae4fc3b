package player

import (
	"context"
	"errors"

	"github.com/randomizedcoder/go-abr-harness/internal/analytics"
	"github.com/randomizedcoder/go-abr-harness/internal/analytics/integrations"
	"github.com/randomizedcoder/go-abr-harness/internal/engine/shaka"
	"github.com/randomizedcoder/go-abr-harness/internal/experiment"
)

// ErrBrowserNotSupported is the InitError cause when the runtime cannot
// play DASH.
var ErrBrowserNotSupported = errors.New("player: browser not supported")

// shakaAdapter drives a Shaka player. It has no ABR switch.
type shakaAdapter struct {
	*base
	player *shaka.Player

	// shaka only reports the new rendition; the previous one is tracked
	// here before subscribers run.
	prevVariant string
	variant     string
}

var _ Adapter = (*shakaAdapter)(nil)

func (a *shakaAdapter) engine() *shaka.Player {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.player
}

func (a *shakaAdapter) Initialize(ctx context.Context, container Container, manifestURI string, _ experiment.Config) error {
	if err := a.begin(manifestURI); err != nil {
		return err
	}

	env := shaka.DefaultEnvironment()
	if a.opts.Shaka != nil {
		env = *a.opts.Shaka
	}
	shaka.InstallPolyfills(&env)
	if !shaka.IsBrowserSupported(env) {
		return a.loadFailed(nil, ErrBrowserNotSupported)
	}

	p := shaka.NewPlayer(container.ID, a.opts.Engine)
	a.mu.Lock()
	a.player = p
	a.mu.Unlock()

	p.AddEventListener(shaka.EventAdaptation, func(ev shaka.Event) {
		a.mu.Lock()
		a.prevVariant, a.variant = a.variant, ev.Variant
		a.mu.Unlock()
	})
	p.AddEventListener(shaka.EventBuffering, func(ev shaka.Event) {
		if ev.Buffering {
			a.transition(StateStalled)
		} else {
			a.transition(StatePlaying)
		}
	})
	p.Video().AddEventListener(shaka.MediaEventPlay, func(shaka.Event) { a.transition(StatePlaying) })
	p.Video().AddEventListener(shaka.MediaEventEnded, func(shaka.Event) { a.transition(StateEnded) })

	settled := make(chan error, 1)
	result := p.Load(manifestURI)
	go func() {
		err := <-result
		if err == nil {
			a.loadReady()
			settled <- nil
			return
		}
		var se *shaka.Error
		if errors.As(err, &se) {
			settled <- a.loadFailed(se, err, "category", se.Category, "code", se.Code)
			return
		}
		settled <- a.loadFailed(nil, err)
	}()
	return a.await(ctx, settled)
}

func (a *shakaAdapter) AttachAnalytics(cfg analytics.Config) error {
	p := a.engine()
	if p == nil {
		return ErrNotInitialized
	}
	if cfg.Key == "" {
		cfg.Key = a.opts.LicenseKey
	}
	a.addChannel(integrations.NewShakaAdapter(cfg, p, a.collector))
	return nil
}

func (a *shakaAdapter) Subscribe(h Handlers) (*Subscription, error) {
	p := a.engine()
	if p == nil {
		return nil, ErrNotInitialized
	}
	sub := &Subscription{}
	if h.OnQualityChange != nil {
		sub.offs = append(sub.offs, p.AddEventListener(shaka.EventAdaptation, func(ev shaka.Event) {
			a.mu.Lock()
			from := a.prevVariant
			a.mu.Unlock()
			h.OnQualityChange(QualityChange{
				Time:    ev.Time,
				From:    from,
				To:      ev.Variant,
				Bitrate: ev.Bandwidth,
				Initial: from == "",
			})
		}))
	}
	if h.OnPlayStart != nil {
		sub.offs = append(sub.offs, p.Video().AddEventListener(shaka.MediaEventPlay, func(ev shaka.Event) {
			h.OnPlayStart(ev.Time)
		}))
	}
	if h.OnStall != nil {
		sub.offs = append(sub.offs, p.AddEventListener(shaka.EventBuffering, func(ev shaka.Event) {
			if ev.Buffering {
				h.OnStall(ev.Time)
			}
		}))
	}
	if h.OnStateChange != nil {
		sub.offs = append(sub.offs, a.onState(h.OnStateChange))
	}
	return sub, nil
}

func (a *shakaAdapter) Play() error {
	if err := a.checkReady(); err != nil {
		return err
	}
	return a.engine().Video().Play()
}

func (a *shakaAdapter) Destroy() {
	if !a.beginRelease() {
		return
	}
	if p := a.engine(); p != nil {
		p.Destroy()
	}
	a.release()
}
