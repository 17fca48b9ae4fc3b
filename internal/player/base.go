package player

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/randomizedcoder/go-abr-harness/internal/analytics"
)

// channel is a vendor analytics adapter bound to the engine.
type channel interface {
	GetCurrentImpressionID() string
	Detach()
}

// base carries the lifecycle shared by every backend.
type base struct {
	backend   Backend
	opts      Options
	logger    *slog.Logger
	collector *analytics.Collector
	ownsColl  bool

	mu          sync.Mutex
	state       State
	manifestURI string
	startedAt   time.Time
	stateSubs   map[int]func(old, new State)
	nextSub     int
	channels    []channel
	released    bool

	done     chan struct{}
	doneOnce sync.Once
}

func newBase(backend Backend, opts Options) *base {
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}
	if opts.Engine.Logger == nil {
		opts.Engine.Logger = opts.Logger
	}
	b := &base{
		backend:   backend,
		opts:      opts,
		logger:    opts.Logger,
		collector: opts.Collector,
		stateSubs: make(map[int]func(old, new State)),
		done:      make(chan struct{}),
	}
	if b.collector == nil {
		b.collector = analytics.NewCollector(analytics.CollectorConfig{Logger: opts.Logger})
		b.collector.Start()
		b.ownsColl = true
	}
	return b
}

// Backend returns the backend name.
func (b *base) Backend() Backend {
	return b.backend
}

// State returns the current lifecycle state.
func (b *base) State() State {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.state
}

// ManifestURI returns the manifest passed to Initialize.
func (b *base) ManifestURI() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.manifestURI
}

// Done is closed once the adapter is terminal or destroyed.
func (b *base) Done() <-chan struct{} {
	return b.done
}

// CorrelationID returns the id of the latest analytics channel.
func (b *base) CorrelationID() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	if len(b.channels) == 0 {
		return ""
	}
	return b.channels[len(b.channels)-1].GetCurrentImpressionID()
}

// begin moves Created to Initializing.
func (b *base) begin(manifestURI string) error {
	b.mu.Lock()
	if b.state != StateCreated {
		b.mu.Unlock()
		return ErrAlreadyInitialized
	}
	b.manifestURI = manifestURI
	b.startedAt = time.Now()
	b.mu.Unlock()

	b.transition(StateInitializing)
	return nil
}

// transition applies a lifecycle move. Moves the lifecycle does not allow
// are ignored and reported as false.
func (b *base) transition(next State) bool {
	moved, _ := b.move(next, false)
	return moved
}

// move is transition with an optional release guard. With settling set the
// move is skipped once the adapter has been destroyed, and released reports
// that.
func (b *base) move(next State, settling bool) (moved, released bool) {
	b.mu.Lock()
	if settling && b.released {
		b.mu.Unlock()
		return false, true
	}
	old := b.state
	if !old.CanTransition(next) {
		b.mu.Unlock()
		return false, false
	}
	b.state = next
	subs := make([]func(old, new State), 0, len(b.stateSubs))
	for _, fn := range b.stateSubs {
		subs = append(subs, fn)
	}
	b.mu.Unlock()

	b.logger.Debug("player_state_changed",
		"backend", string(b.backend),
		"from", old.String(),
		"to", next.String(),
	)
	for _, fn := range subs {
		fn(old, next)
	}
	if next.IsTerminal() {
		b.finish()
	}
	return true, false
}

func (b *base) onState(fn func(old, new State)) (off func()) {
	b.mu.Lock()
	b.nextSub++
	id := b.nextSub
	b.stateSubs[id] = fn
	b.mu.Unlock()
	return func() {
		b.mu.Lock()
		delete(b.stateSubs, id)
		b.mu.Unlock()
	}
}

func (b *base) addChannel(ch channel) {
	b.mu.Lock()
	b.channels = append(b.channels, ch)
	b.mu.Unlock()
}

// await waits for the load outcome or ctx, whichever is first.
func (b *base) await(ctx context.Context, settled <-chan error) error {
	select {
	case err := <-settled:
		return err
	case <-ctx.Done():
		b.logger.Warn("player_load_wait_abandoned",
			"backend", string(b.backend),
			"manifest", b.ManifestURI(),
			"error", ctx.Err(),
		)
		return fmt.Errorf("player: %s load still pending: %w", b.backend, ctx.Err())
	}
}

// loadReady settles a successful load. A load that completes after Destroy
// leaves the state alone.
func (b *base) loadReady() {
	b.move(StateReady, true)
}

// loadFailed moves the adapter to Failed and logs the failure. It is the
// only place a load failure is logged. A load that fails because the
// adapter was destroyed while it was pending is not a failure of the
// content: the state is left alone and it is logged at debug.
func (b *base) loadFailed(payload any, err error, attrs ...any) *InitError {
	ie := &InitError{Backend: b.backend, Payload: payload, Err: err}
	if _, released := b.move(StateFailed, true); released {
		b.logger.Debug("player_load_cancelled",
			"backend", string(b.backend),
			"manifest", b.ManifestURI(),
			"error", err,
		)
		return ie
	}

	args := append([]any{
		"backend", string(b.backend),
		"manifest", b.ManifestURI(),
		"error", err,
	}, attrs...)
	b.logger.Error("player_load_failed", args...)
	return ie
}

// checkReady guards Play.
func (b *base) checkReady() error {
	if s := b.State(); s != StateReady {
		return fmt.Errorf("%w: state %s", ErrNotReady, s)
	}
	return nil
}

// beginRelease marks the adapter destroyed before its engine is torn down,
// so a load cancelled by the teardown settles as cancelled. It reports
// false when Destroy already ran.
func (b *base) beginRelease() bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.released {
		return false
	}
	b.released = true
	return true
}

// release detaches analytics and ends the lifecycle. The backend calls it
// after beginRelease and after destroying its engine.
func (b *base) release() {
	b.mu.Lock()
	chans := b.channels
	state := b.state
	b.mu.Unlock()

	for _, ch := range chans {
		ch.Detach()
	}
	if state == StateReady || state == StatePlaying || state == StateStalled {
		b.transition(StateEnded)
	}
	b.finish()
	if b.ownsColl {
		b.collector.Close()
	}
}

func (b *base) finish() {
	b.doneOnce.Do(func() { close(b.done) })
}
