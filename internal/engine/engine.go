package engine

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"
)

var (
	// ErrNotLoaded is returned by Play before a manifest has loaded.
	ErrNotLoaded = errors.New("engine: manifest not loaded")

	// ErrAlreadyPlaying is returned by a second call to Play.
	ErrAlreadyPlaying = errors.New("engine: already playing")

	// ErrDestroyed is returned after Destroy.
	ErrDestroyed = errors.New("engine: destroyed")
)

// Config holds engine settings. Zero values select defaults.
type Config struct {
	Loader Loader
	Link   Link
	Rule   Rule

	// MaxBuffer is the forward buffer target (default 30s).
	MaxBuffer time.Duration

	// StartThreshold is the buffer needed to start or resume playback
	// (default one segment).
	StartThreshold time.Duration

	// Speed scales virtual time to wall time; 1 is real time, 0 runs as
	// fast as possible.
	Speed float64

	// MaxPlayback ends playback after this much virtual time (0 = whole
	// presentation).
	MaxPlayback time.Duration

	// Now supplies the wall-clock origin for event timestamps.
	Now func() time.Time

	Logger *slog.Logger
}

// DefaultMaxBuffer is the forward buffer target.
const DefaultMaxBuffer = 30 * time.Second

func (c Config) withDefaults() Config {
	if c.Loader == nil {
		c.Loader = NewHTTPLoader(30*time.Second, "")
	}
	if c.Link == nil {
		c.Link = ConstantLink{Bandwidth: 5_000_000}
	}
	if c.Rule == nil {
		c.Rule = NewDynamicRule()
	}
	if c.MaxBuffer <= 0 {
		c.MaxBuffer = DefaultMaxBuffer
	}
	if c.Now == nil {
		c.Now = time.Now
	}
	if c.Logger == nil {
		c.Logger = slog.Default()
	}
	return c
}

type handlerEntry struct {
	id int
	fn Handler
}

// Engine plays one manifest. It is created per session and not reused.
type Engine struct {
	cfg Config

	ctx    context.Context
	cancel context.CancelFunc

	mu       sync.Mutex
	handlers map[EventType][]handlerEntry
	nextID   int
	rule     Rule
	manifest *Manifest
	playing  bool
	done     chan struct{}
	doneOnce sync.Once
}

// New creates an engine.
func New(cfg Config) *Engine {
	cfg = cfg.withDefaults()
	ctx, cancel := context.WithCancel(context.Background())
	return &Engine{
		cfg:      cfg,
		ctx:      ctx,
		cancel:   cancel,
		handlers: make(map[EventType][]handlerEntry),
		rule:     cfg.Rule,
		done:     make(chan struct{}),
	}
}

// On registers h for events of type t and returns a function that removes it.
func (e *Engine) On(t EventType, h Handler) (off func()) {
	e.mu.Lock()
	e.nextID++
	id := e.nextID
	e.handlers[t] = append(e.handlers[t], handlerEntry{id: id, fn: h})
	e.mu.Unlock()

	var once sync.Once
	return func() {
		once.Do(func() {
			e.mu.Lock()
			defer e.mu.Unlock()
			hs := e.handlers[t]
			for i, he := range hs {
				if he.id == id {
					e.handlers[t] = append(hs[:i:i], hs[i+1:]...)
					break
				}
			}
		})
	}
}

func (e *Engine) dispatch(ev Event) {
	e.mu.Lock()
	hs := make([]Handler, 0, len(e.handlers[ev.Type]))
	for _, he := range e.handlers[ev.Type] {
		hs = append(hs, he.fn)
	}
	e.mu.Unlock()

	for _, h := range hs {
		h(ev)
	}
}

// Load fetches the manifest asynchronously. The returned channel receives
// exactly one value: nil on success or the load error. A failure is also
// dispatched as EventError. Loads cannot be cancelled except by Destroy.
func (e *Engine) Load(uri string) <-chan error {
	result := make(chan error, 1)
	go func() {
		m, err := e.cfg.Loader.Load(e.ctx, uri)
		if err != nil {
			e.dispatch(Event{Type: EventError, Time: e.cfg.Now(), Err: err})
			result <- err
			return
		}
		e.mu.Lock()
		e.manifest = m
		e.mu.Unlock()
		e.cfg.Logger.Debug("engine_manifest_loaded",
			"uri", uri,
			"representations", len(m.Representations),
			"duration", m.Duration.String(),
		)
		e.dispatch(Event{Type: EventLoaded, Time: e.cfg.Now()})
		result <- nil
	}()
	return result
}

// Manifest returns the loaded manifest, or nil.
func (e *Engine) Manifest() *Manifest {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.manifest
}

// SetRule replaces the ABR rule. It takes effect at the next segment.
func (e *Engine) SetRule(r Rule) {
	e.mu.Lock()
	e.rule = r
	e.mu.Unlock()
}

// Rule returns the current ABR rule.
func (e *Engine) Rule() Rule {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.rule
}

// Play starts the playback loop on its own goroutine.
func (e *Engine) Play() error {
	e.mu.Lock()
	defer e.mu.Unlock()
	switch {
	case e.ctx.Err() != nil:
		return ErrDestroyed
	case e.manifest == nil:
		return ErrNotLoaded
	case e.playing:
		return ErrAlreadyPlaying
	}
	e.playing = true
	go e.run(e.manifest)
	return nil
}

// Done is closed when the playback loop exits.
func (e *Engine) Done() <-chan struct{} {
	return e.done
}

// Destroy stops loading and playback. It does not wait for the loop; use
// Done for that. Safe to call from a handler.
func (e *Engine) Destroy() {
	e.cancel()
	e.mu.Lock()
	playing := e.playing
	e.playing = true // blocks later Play calls from starting a loop
	e.mu.Unlock()
	if !playing {
		e.finish()
	}
}

func (e *Engine) finish() {
	e.doneOnce.Do(func() { close(e.done) })
}
