package integrations

import (
	"github.com/randomizedcoder/go-abr-harness/internal/analytics"
	"github.com/randomizedcoder/go-abr-harness/internal/engine/bitmovin"
)

// Bitmovin8Adapter reports a Bitmovin player's events. It reads the
// analytics payload from the player's configuration and installs itself as
// the player's analytics sub-object.
type Bitmovin8Adapter struct {
	*tracker
}

// NewBitmovin8Adapter creates an impression for p and attaches it.
func NewBitmovin8Adapter(p *bitmovin.Player, c *analytics.Collector) *Bitmovin8Adapter {
	var cfg analytics.Config
	if conf := p.Config(); conf.Analytics != nil {
		cfg = *conf.Analytics
		if cfg.Key == "" {
			cfg.Key = conf.Key
		}
	}

	a := &Bitmovin8Adapter{tracker: newTracker(c.NewImpression("bitmovin", cfg), timeNow())}
	imp := a.imp

	a.track(p.On(bitmovin.EventVideoDownloadQualityChange, func(ev bitmovin.Event) {
		imp.Record(analytics.SampleQualityChange, ev.Timestamp, ev.Bitrate, 0)
	}))
	a.track(p.On(bitmovin.EventPlay, func(ev bitmovin.Event) {
		a.startup(ev.Timestamp)
	}))
	a.track(p.On(bitmovin.EventStallStarted, func(ev bitmovin.Event) {
		imp.Record(analytics.SampleStall, ev.Timestamp, 0, 0)
	}))
	a.track(p.On(bitmovin.EventStallEnded, func(ev bitmovin.Event) {
		imp.Record(analytics.SampleStallEnd, ev.Timestamp, 0, 0)
	}))
	a.track(p.On(bitmovin.EventPlaybackFinished, func(ev bitmovin.Event) {
		imp.Record(analytics.SampleEnded, ev.Timestamp, 0, 0)
	}))
	a.track(p.On(bitmovin.EventError, func(ev bitmovin.Event) {
		code := 0
		if ev.Error != nil {
			code = ev.Error.Code
		}
		imp.Record(analytics.SampleError, ev.Timestamp, 0, code)
	}))

	p.AttachAnalytics(a)
	return a
}
