package integrations

import (
	"time"

	"github.com/randomizedcoder/go-abr-harness/internal/analytics"
	"github.com/randomizedcoder/go-abr-harness/internal/engine/dashjs"
)

// DashjsOptions tunes the dash.js adapter.
type DashjsOptions struct {
	// StartTime is when the page began setting up the player; startup time
	// is measured from here. Zero means adapter construction.
	StartTime time.Time
}

// DashjsAdapter reports a dash.js MediaPlayer's events.
type DashjsAdapter struct {
	*tracker
}

// NewDashjsAdapter creates an impression carrying cfg for p.
func NewDashjsAdapter(cfg analytics.Config, p *dashjs.MediaPlayer, opts DashjsOptions, c *analytics.Collector) *DashjsAdapter {
	start := opts.StartTime
	if start.IsZero() {
		start = timeNow()
	}
	a := &DashjsAdapter{tracker: newTracker(c.NewImpression("dashjs", cfg), start)}
	imp := a.imp

	a.track(p.On(dashjs.EventQualityChangeRendered, func(ev dashjs.Event) {
		if ev.MediaType != "video" {
			return
		}
		imp.Record(analytics.SampleQualityChange, ev.Time, ev.Bitrate, 0)
	}))
	a.track(p.On(dashjs.EventPlaybackStarted, func(ev dashjs.Event) {
		a.startup(ev.Time)
	}))
	a.track(p.On(dashjs.EventBufferStalled, func(ev dashjs.Event) {
		imp.Record(analytics.SampleStall, ev.Time, 0, 0)
	}))
	a.track(p.On(dashjs.EventBufferLoaded, func(ev dashjs.Event) {
		imp.Record(analytics.SampleStallEnd, ev.Time, 0, 0)
	}))
	a.track(p.On(dashjs.EventPlaybackEnded, func(ev dashjs.Event) {
		imp.Record(analytics.SampleEnded, ev.Time, 0, 0)
	}))
	a.track(p.On(dashjs.EventError, func(ev dashjs.Event) {
		code := 0
		if ev.Error != nil {
			code = ev.Error.Code
		}
		imp.Record(analytics.SampleError, ev.Time, 0, code)
	}))
	return a
}
