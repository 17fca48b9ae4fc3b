// Package shaka exposes the engine through a Shaka Player shaped API:
// a browser support check, promise-style load, numeric error codes, and
// separate player and media element event targets.
package shaka

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/randomizedcoder/go-abr-harness/internal/engine"
)

// Error categories.
const (
	CategoryNetwork  = 1
	CategoryManifest = 4
)

// Error codes.
const (
	BadHTTPStatus          = 1001
	HTTPError              = 1002
	Timeout                = 1003
	DashInvalidXML         = 4001
	DashEmptyAdaptationSet = 4003
)

// Severity values.
const (
	SeverityRecoverable = 1
	SeverityCritical    = 2
)

// Error is a shaka.util.Error.
type Error struct {
	Severity int
	Category int
	Code     int
	Err      error
}

func (e *Error) Error() string {
	return fmt.Sprintf("shaka.util.Error category=%d code=%d: %v", e.Category, e.Code, e.Err)
}

func (e *Error) Unwrap() error { return e.Err }

// FromLoadError maps an engine load failure onto a shaka error code.
func FromLoadError(err error) *Error {
	se := &Error{Severity: SeverityCritical, Category: CategoryNetwork, Code: HTTPError, Err: err}
	var le *engine.LoadError
	if !errors.As(err, &le) {
		return se
	}
	switch {
	case le.Kind == engine.KindDecode:
		se.Category, se.Code = CategoryManifest, DashInvalidXML
	case le.Kind == engine.KindUnsupported:
		se.Category, se.Code = CategoryManifest, DashEmptyAdaptationSet
	case le.StatusCode != 0:
		se.Code = BadHTTPStatus
	case errors.Is(le.Err, context.DeadlineExceeded):
		se.Code = Timeout
	}
	return se
}

// Environment describes what the hosting runtime offers.
type Environment struct {
	MediaSource bool
	Polyfilled  bool
}

// DefaultEnvironment is a runtime with Media Source Extensions.
func DefaultEnvironment() Environment {
	return Environment{MediaSource: true}
}

// InstallPolyfills marks the environment as polyfilled.
func InstallPolyfills(env *Environment) {
	env.Polyfilled = true
}

// IsBrowserSupported reports whether the runtime can play DASH.
func IsBrowserSupported(env Environment) bool {
	return env.MediaSource
}

// Player event names.
const (
	EventAdaptation = "adaptation"
	EventBuffering  = "buffering"
	EventLoaded     = "loaded"
	EventError      = "error"
)

// Media element event names.
const (
	MediaEventPlay    = "play"
	MediaEventPlaying = "playing"
	MediaEventEnded   = "ended"
)

// Event is delivered to listeners.
type Event struct {
	Type      string
	Time      time.Time
	Buffering bool   // EventBuffering
	Variant   string // EventAdaptation: new rendition
	Bandwidth int64  // EventAdaptation
	Detail    *Error // EventError
}

// Player is a shaka.Player attached to one video element.
type Player struct {
	engine *engine.Engine
	video  *Video

	mu  sync.Mutex
	uri string
}

// NewPlayer creates a player bound to the named video element. Shaka's own
// bandwidth estimator drives ABR.
func NewPlayer(video string, cfg engine.Config) *Player {
	cfg.Rule = engine.ThroughputRule{Safety: 0.85}
	e := engine.New(cfg)
	return &Player{
		engine: e,
		video:  &Video{ID: video, engine: e},
	}
}

// Load loads a manifest. The returned channel receives nil or a *Error.
func (p *Player) Load(uri string) <-chan error {
	p.mu.Lock()
	p.uri = uri
	p.mu.Unlock()

	out := make(chan error, 1)
	result := p.engine.Load(uri)
	go func() {
		if err := <-result; err != nil {
			out <- FromLoadError(err)
			return
		}
		out <- nil
	}()
	return out
}

// AssetURI returns the last loaded manifest URI.
func (p *Player) AssetURI() string {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.uri
}

// AddEventListener registers a player event listener and returns a function
// that removes it.
func (p *Player) AddEventListener(eventType string, fn func(Event)) (remove func()) {
	switch eventType {
	case EventAdaptation:
		return p.engine.On(engine.EventQualityChanged, func(ev engine.Event) {
			fn(Event{Type: eventType, Time: ev.Time, Variant: ev.To.ID, Bandwidth: ev.To.Bandwidth})
		})
	case EventBuffering:
		offStart := p.engine.On(engine.EventStallStarted, func(ev engine.Event) {
			fn(Event{Type: eventType, Time: ev.Time, Buffering: true})
		})
		offEnd := p.engine.On(engine.EventStallEnded, func(ev engine.Event) {
			fn(Event{Type: eventType, Time: ev.Time, Buffering: false})
		})
		return func() { offStart(); offEnd() }
	case EventLoaded:
		return p.engine.On(engine.EventLoaded, func(ev engine.Event) {
			fn(Event{Type: eventType, Time: ev.Time})
		})
	case EventError:
		return p.engine.On(engine.EventError, func(ev engine.Event) {
			fn(Event{Type: eventType, Time: ev.Time, Detail: FromLoadError(ev.Err)})
		})
	default:
		return func() {}
	}
}

// Video returns the media element the player is attached to.
func (p *Player) Video() *Video {
	return p.video
}

// Destroy releases the player.
func (p *Player) Destroy() {
	p.engine.Destroy()
}

// Video is the media element. Playback events are raised here rather than
// on the player.
type Video struct {
	ID     string
	engine *engine.Engine
}

// Play starts playback.
func (v *Video) Play() error {
	return v.engine.Play()
}

// Done is closed when playback stops.
func (v *Video) Done() <-chan struct{} {
	return v.engine.Done()
}

// AddEventListener registers a media element listener.
func (v *Video) AddEventListener(eventType string, fn func(Event)) (remove func()) {
	var t engine.EventType
	switch eventType {
	case MediaEventPlay:
		t = engine.EventPlay
	case MediaEventPlaying:
		t = engine.EventStallEnded
	case MediaEventEnded:
		t = engine.EventEnded
	default:
		return func() {}
	}
	return v.engine.On(t, func(ev engine.Event) {
		fn(Event{Type: eventType, Time: ev.Time})
	})
}
