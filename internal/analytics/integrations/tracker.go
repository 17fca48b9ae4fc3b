// Package integrations holds the analytics adapter objects, one per player
// vendor. Constructing an adapter creates a new impression on the collector
// and subscribes it to the player's events; constructing a second one for
// the same player creates a second, independent impression.
package integrations

import (
	"sync"
	"time"

	"github.com/randomizedcoder/go-abr-harness/internal/analytics"
)

// tracker is the part every vendor adapter shares.
type tracker struct {
	imp     *analytics.Impression
	startAt time.Time

	mu       sync.Mutex
	offs     []func()
	started  bool
	detached bool
}

// timeNow is replaced in tests.
var timeNow = time.Now

func newTracker(imp *analytics.Impression, startAt time.Time) *tracker {
	if startAt.IsZero() {
		startAt = timeNow()
	}
	return &tracker{imp: imp, startAt: startAt}
}

// GetCurrentImpressionID returns the impression id assigned by the collector.
func (t *tracker) GetCurrentImpressionID() string {
	return t.imp.ID()
}

// Detach removes the adapter's listeners. Samples already queued are still
// delivered.
func (t *tracker) Detach() {
	t.mu.Lock()
	offs := t.offs
	t.offs = nil
	t.detached = true
	t.mu.Unlock()
	for _, off := range offs {
		off()
	}
}

func (t *tracker) track(off func()) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.detached {
		off()
		return
	}
	t.offs = append(t.offs, off)
}

// startup records the startup sample once.
func (t *tracker) startup(at time.Time) {
	t.mu.Lock()
	if t.started {
		t.mu.Unlock()
		return
	}
	t.started = true
	t.mu.Unlock()

	d := at.Sub(t.startAt)
	if d < 0 {
		d = 0
	}
	t.imp.RecordStartup(at, d)
}
