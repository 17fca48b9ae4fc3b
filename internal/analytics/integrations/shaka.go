package integrations

import (
	"github.com/randomizedcoder/go-abr-harness/internal/analytics"
	"github.com/randomizedcoder/go-abr-harness/internal/engine/shaka"
)

// ShakaAdapter reports a Shaka player's events. Playback events come from
// the video element, adaptation and buffering from the player.
type ShakaAdapter struct {
	*tracker
}

// NewShakaAdapter creates an impression carrying cfg for p.
func NewShakaAdapter(cfg analytics.Config, p *shaka.Player, c *analytics.Collector) *ShakaAdapter {
	a := &ShakaAdapter{tracker: newTracker(c.NewImpression("shaka", cfg), timeNow())}
	imp := a.imp

	a.track(p.AddEventListener(shaka.EventAdaptation, func(ev shaka.Event) {
		imp.Record(analytics.SampleQualityChange, ev.Time, ev.Bandwidth, 0)
	}))
	a.track(p.AddEventListener(shaka.EventBuffering, func(ev shaka.Event) {
		if ev.Buffering {
			imp.Record(analytics.SampleStall, ev.Time, 0, 0)
		} else {
			imp.Record(analytics.SampleStallEnd, ev.Time, 0, 0)
		}
	}))
	a.track(p.AddEventListener(shaka.EventError, func(ev shaka.Event) {
		code := 0
		if ev.Detail != nil {
			code = ev.Detail.Code
		}
		imp.Record(analytics.SampleError, ev.Time, 0, code)
	}))
	a.track(p.Video().AddEventListener(shaka.MediaEventPlay, func(ev shaka.Event) {
		a.startup(ev.Time)
	}))
	a.track(p.Video().AddEventListener(shaka.MediaEventEnded, func(ev shaka.Event) {
		imp.Record(analytics.SampleEnded, ev.Time, 0, 0)
	}))
	return a
}
