// Package bitmovin exposes the engine through a Bitmovin Player shaped API.
// Analytics is configured on the player, but the analytics sub-object that
// carries the impression id only exists once an analytics adapter has been
// attached.
package bitmovin

import (
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/randomizedcoder/go-abr-harness/internal/analytics"
	"github.com/randomizedcoder/go-abr-harness/internal/engine"
)

// EventName is a player event name.
type EventName string

// Player events.
const (
	EventSourceLoaded               EventName = "sourceloaded"
	EventVideoDownloadQualityChange EventName = "videodownloadqualitychange"
	EventPlay                       EventName = "play"
	EventStallStarted               EventName = "stallstarted"
	EventStallEnded                 EventName = "stallended"
	EventPlaybackFinished           EventName = "playbackfinished"
	EventError                      EventName = "error"
)

// Error codes.
const (
	ErrorSourceCouldNotLoadManifest = 1201
	ErrorSourceManifestInvalid      = 1203
	ErrorSourceNotSupported         = 1206
)

// PlayerError is the payload of a rejected load or an error event.
type PlayerError struct {
	Code int
	Name string
	Err  error
}

func (e *PlayerError) Error() string {
	return fmt.Sprintf("%s (%d): %v", e.Name, e.Code, e.Err)
}

func (e *PlayerError) Unwrap() error { return e.Err }

func toPlayerError(err error) *PlayerError {
	pe := &PlayerError{Code: ErrorSourceCouldNotLoadManifest, Name: "SOURCE_COULD_NOT_LOAD_MANIFEST", Err: err}
	var le *engine.LoadError
	if errors.As(err, &le) {
		switch le.Kind {
		case engine.KindDecode:
			pe.Code, pe.Name = ErrorSourceManifestInvalid, "SOURCE_MANIFEST_INVALID"
		case engine.KindUnsupported:
			pe.Code, pe.Name = ErrorSourceNotSupported, "SOURCE_NOT_SUPPORTED"
		}
	}
	return pe
}

// Event is delivered to listeners.
type Event struct {
	Type      EventName
	Timestamp time.Time

	// videodownloadqualitychange
	SourceQuality string
	TargetQuality string
	Bitrate       int64

	// error
	Error *PlayerError
}

// PlaybackConfig controls playback start.
type PlaybackConfig struct {
	Autoplay bool
	Muted    bool
}

// Config is the player configuration.
type Config struct {
	Key       string
	Playback  PlaybackConfig
	Analytics *analytics.Config
	Engine    engine.Config
}

// Source describes what to load.
type Source struct {
	Dash  string
	Title string
}

// AnalyticsAPI is the analytics sub-object installed by an analytics adapter.
type AnalyticsAPI interface {
	GetCurrentImpressionID() string
}

// Player is a Bitmovin style player.
type Player struct {
	container string
	engine    *engine.Engine

	mu        sync.Mutex
	config    Config
	source    Source
	analytics AnalyticsAPI
}

// NewPlayer creates a player in container. The engine uses the player's
// own adaptive logic.
func NewPlayer(container string, conf Config) *Player {
	ec := conf.Engine
	ec.Rule = engine.NewDynamicRule()
	return &Player{
		container: container,
		engine:    engine.New(ec),
		config:    conf,
	}
}

// Config returns the current configuration.
func (p *Player) Config() Config {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.config
}

// ConfigureAnalytics sets the analytics payload used by adapters attached
// afterwards.
func (p *Player) ConfigureAnalytics(cfg analytics.Config) {
	p.mu.Lock()
	p.config.Analytics = &cfg
	p.mu.Unlock()
}

// AttachAnalytics installs the analytics sub-object. Analytics adapters
// call this when they are constructed.
func (p *Player) AttachAnalytics(a AnalyticsAPI) {
	p.mu.Lock()
	p.analytics = a
	p.mu.Unlock()
}

// Analytics returns the analytics sub-object, or nil before an analytics
// adapter has been attached.
func (p *Player) Analytics() AnalyticsAPI {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.analytics
}

// Load loads a source. The returned channel receives nil or a *PlayerError.
func (p *Player) Load(src Source) <-chan error {
	p.mu.Lock()
	p.source = src
	autoplay := p.config.Playback.Autoplay
	p.mu.Unlock()

	out := make(chan error, 1)
	result := p.engine.Load(src.Dash)
	go func() {
		if err := <-result; err != nil {
			out <- toPlayerError(err)
			return
		}
		if autoplay {
			p.engine.Play()
		}
		out <- nil
	}()
	return out
}

// Source returns the loaded source.
func (p *Player) Source() Source {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.source
}

// Container returns the element id the player renders into.
func (p *Player) Container() string {
	return p.container
}

// On registers a listener and returns a function that removes it.
func (p *Player) On(name EventName, fn func(Event)) (off func()) {
	simple := func(t engine.EventType) func() {
		return p.engine.On(t, func(ev engine.Event) {
			fn(Event{Type: name, Timestamp: ev.Time})
		})
	}
	switch name {
	case EventSourceLoaded:
		return simple(engine.EventLoaded)
	case EventVideoDownloadQualityChange:
		return p.engine.On(engine.EventQualityChanged, func(ev engine.Event) {
			e := Event{Type: name, Timestamp: ev.Time, TargetQuality: ev.To.ID, Bitrate: ev.To.Bandwidth}
			if !ev.InitialPick {
				e.SourceQuality = ev.From.ID
			}
			fn(e)
		})
	case EventPlay:
		return simple(engine.EventPlay)
	case EventStallStarted:
		return simple(engine.EventStallStarted)
	case EventStallEnded:
		return simple(engine.EventStallEnded)
	case EventPlaybackFinished:
		return simple(engine.EventEnded)
	case EventError:
		return p.engine.On(engine.EventError, func(ev engine.Event) {
			fn(Event{Type: name, Timestamp: ev.Time, Error: toPlayerError(ev.Err)})
		})
	default:
		return func() {}
	}
}

// Play starts playback.
func (p *Player) Play() error {
	return p.engine.Play()
}

// Done is closed when playback stops.
func (p *Player) Done() <-chan struct{} {
	return p.engine.Done()
}

// Destroy releases the player.
func (p *Player) Destroy() {
	p.engine.Destroy()
}
