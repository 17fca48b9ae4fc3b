// Package dashjs exposes the engine through a dash.js MediaPlayer shaped API:
// string event names, synchronous initialize with results reported as
// events, and a switchable ABR strategy.
package dashjs

import (
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/randomizedcoder/go-abr-harness/internal/engine"
)

// ABR strategy names accepted by SetABRStrategy.
const (
	ABRDynamic    = "abrDynamic"
	ABRBola       = "abrBola"
	ABRThroughput = "abrThroughput"
)

// MediaPlayer event names.
const (
	EventStreamInitialized     = "streamInitialized"
	EventQualityChangeRendered = "qualityChangeRendered"
	EventPlaybackStarted       = "playbackStarted"
	EventBufferStalled         = "bufferStalled"
	EventBufferLoaded          = "bufferLoaded"
	EventPlaybackEnded         = "playbackEnded"
	EventError                 = "error"
)

// Error codes reported in ErrorEvent.
const (
	ManifestLoaderParsingFailure = 10
	ManifestLoaderLoadingFailure = 11
)

// ErrorEvent is the payload of an "error" event.
type ErrorEvent struct {
	Code    int
	Message string
	Err     error
}

func (e *ErrorEvent) Error() string {
	return fmt.Sprintf("dash.js error %d: %s", e.Code, e.Message)
}

func (e *ErrorEvent) Unwrap() error { return e.Err }

// Event is delivered to listeners registered with On.
type Event struct {
	Type       string
	MediaType  string
	Time       time.Time
	OldQuality int // -1 for the first rendition
	NewQuality int
	Bitrate    int64
	Error      *ErrorEvent
}

// BitrateInfo describes one video rendition.
type BitrateInfo struct {
	QualityIndex int
	Bitrate      int64
	Width        int
	Height       int
}

// MediaPlayer is a dash.js style player.
type MediaPlayer struct {
	engine *engine.Engine

	mu       sync.Mutex
	view     string
	strategy string
	quality  int
}

// Create returns a new MediaPlayer on its own engine. The engine starts on
// the dynamic strategy.
func Create(cfg engine.Config) *MediaPlayer {
	cfg.Rule = engine.NewDynamicRule()
	p := &MediaPlayer{
		engine:   engine.New(cfg),
		strategy: ABRDynamic,
		quality:  -1,
	}
	p.engine.On(engine.EventQualityChanged, func(ev engine.Event) {
		p.mu.Lock()
		p.quality = ev.ToIndex
		p.mu.Unlock()
	})
	return p
}

// Initialize attaches the view and starts loading url. The outcome is
// reported as streamInitialized or error. Playback starts on Play unless
// autoPlay is set.
func (p *MediaPlayer) Initialize(view, url string, autoPlay bool) {
	p.mu.Lock()
	p.view = view
	p.mu.Unlock()

	result := p.engine.Load(url)
	go func() {
		if err := <-result; err != nil {
			return // reported through the engine error event
		}
		if autoPlay {
			p.engine.Play()
		}
	}()
}

// On registers a listener for an event name and returns a function that
// removes it.
func (p *MediaPlayer) On(eventType string, fn func(Event)) (off func()) {
	switch eventType {
	case EventStreamInitialized:
		return p.engine.On(engine.EventLoaded, func(ev engine.Event) {
			fn(Event{Type: eventType, Time: ev.Time})
		})
	case EventQualityChangeRendered:
		return p.engine.On(engine.EventQualityChanged, func(ev engine.Event) {
			fn(Event{
				Type:       eventType,
				MediaType:  "video",
				Time:       ev.Time,
				OldQuality: ev.FromIndex,
				NewQuality: ev.ToIndex,
				Bitrate:    ev.To.Bandwidth,
			})
		})
	case EventPlaybackStarted:
		return p.forward(engine.EventPlay, eventType, fn)
	case EventBufferStalled:
		return p.forward(engine.EventStallStarted, eventType, fn)
	case EventBufferLoaded:
		return p.forward(engine.EventStallEnded, eventType, fn)
	case EventPlaybackEnded:
		return p.forward(engine.EventEnded, eventType, fn)
	case EventError:
		return p.engine.On(engine.EventError, func(ev engine.Event) {
			fn(Event{Type: eventType, Time: ev.Time, Error: toErrorEvent(ev.Err)})
		})
	default:
		return func() {}
	}
}

func (p *MediaPlayer) forward(t engine.EventType, name string, fn func(Event)) func() {
	return p.engine.On(t, func(ev engine.Event) {
		fn(Event{Type: name, MediaType: "video", Time: ev.Time})
	})
}

func toErrorEvent(err error) *ErrorEvent {
	code := ManifestLoaderLoadingFailure
	var le *engine.LoadError
	if errors.As(err, &le) && le.Kind != engine.KindNetwork {
		code = ManifestLoaderParsingFailure
	}
	return &ErrorEvent{Code: code, Message: err.Error(), Err: err}
}

// GetABRStrategy returns the active strategy name.
func (p *MediaPlayer) GetABRStrategy() string {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.strategy
}

// SetABRStrategy switches the ABR algorithm.
func (p *MediaPlayer) SetABRStrategy(strategy string) error {
	var rule engine.Rule
	switch strategy {
	case ABRDynamic:
		rule = engine.NewDynamicRule()
	case ABRBola:
		rule = engine.BufferRule{Reservoir: 0.1}
	case ABRThroughput:
		rule = engine.ThroughputRule{Safety: 0.9}
	default:
		return fmt.Errorf("dash.js: unknown ABR strategy %q", strategy)
	}
	p.engine.SetRule(rule)

	p.mu.Lock()
	p.strategy = strategy
	p.mu.Unlock()
	return nil
}

// GetBitrateInfoListFor returns the renditions for a media type. Only
// "video" is known.
func (p *MediaPlayer) GetBitrateInfoListFor(mediaType string) []BitrateInfo {
	m := p.engine.Manifest()
	if mediaType != "video" || m == nil {
		return nil
	}
	out := make([]BitrateInfo, len(m.Representations))
	for i, r := range m.Representations {
		out[i] = BitrateInfo{QualityIndex: i, Bitrate: r.Bandwidth, Width: r.Width, Height: r.Height}
	}
	return out
}

// GetQualityFor returns the current quality index, -1 before playback.
func (p *MediaPlayer) GetQualityFor(mediaType string) int {
	p.mu.Lock()
	defer p.mu.Unlock()
	if mediaType != "video" {
		return -1
	}
	return p.quality
}

// View returns the element the player was initialized with.
func (p *MediaPlayer) View() string {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.view
}

// Play starts playback.
func (p *MediaPlayer) Play() error {
	return p.engine.Play()
}

// Done is closed when playback stops.
func (p *MediaPlayer) Done() <-chan struct{} {
	return p.engine.Done()
}

// Reset tears the player down.
func (p *MediaPlayer) Reset() {
	p.engine.Destroy()
}
