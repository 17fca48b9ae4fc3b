// Package player normalizes the vendor player engines behind one Adapter
// lifecycle:
//
//	Created -> Initializing -> Ready | Failed
//	Ready -> Playing <-> Stalled -> Ended
//
// Each adapter exclusively owns its engine. Callbacks registered through
// Subscribe run on the engine's own event goroutine and must not block.
package player

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/randomizedcoder/go-abr-harness/internal/analytics"
	"github.com/randomizedcoder/go-abr-harness/internal/experiment"
)

var (
	// ErrNotInitialized is returned by operations that need a loaded engine.
	ErrNotInitialized = errors.New("player: not initialized")

	// ErrAlreadyInitialized is returned by a second Initialize.
	ErrAlreadyInitialized = errors.New("player: already initialized")

	// ErrNotReady is returned by Play outside the Ready state.
	ErrNotReady = errors.New("player: not ready")

	// ErrUnknownBackend is returned by ParseBackend and New.
	ErrUnknownBackend = errors.New("player: unknown backend")
)

// Backend names a player engine.
type Backend string

const (
	Bitmovin Backend = "bitmovin"
	Dashjs   Backend = "dashjs"
	Shaka    Backend = "shaka"
)

// Backends lists the supported backends.
var Backends = []Backend{Bitmovin, Dashjs, Shaka}

// ParseBackend maps a player name onto a Backend. "bitdash" is accepted as
// an alias for bitmovin.
func ParseBackend(s string) (Backend, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "bitmovin", "bitdash":
		return Bitmovin, nil
	case "dashjs", "dash.js":
		return Dashjs, nil
	case "shaka":
		return Shaka, nil
	default:
		return "", fmt.Errorf("%w: %q", ErrUnknownBackend, s)
	}
}

// Container is the UI region a player renders into.
type Container struct {
	ID string
}

// QualityChange describes a video rendition switch. The first selection is
// reported too, with Initial set and From empty.
type QualityChange struct {
	Time    time.Time
	From    string
	To      string
	Bitrate int64
	Initial bool
}

// Handlers are the callbacks registered by Subscribe. Nil fields are
// skipped.
type Handlers struct {
	OnQualityChange func(QualityChange)
	OnPlayStart     func(time.Time)
	OnStall         func(time.Time)
	OnStateChange   func(old, new State)
}

// Subscription removes the callbacks registered by one Subscribe.
type Subscription struct {
	offs []func()
}

// Unsubscribe removes the callbacks. Safe to call more than once.
func (s *Subscription) Unsubscribe() {
	if s == nil {
		return
	}
	offs := s.offs
	s.offs = nil
	for _, off := range offs {
		off()
	}
}

// Adapter is one player engine behind the common lifecycle.
type Adapter interface {
	Backend() Backend

	// Initialize creates the engine in container and loads manifestURI.
	// It returns once the load settles or ctx is done. A failed load
	// returns an *InitError and leaves the adapter Failed; it is logged
	// once and never retried. If ctx ends first the load keeps going and
	// the adapter stays Initializing until it settles.
	Initialize(ctx context.Context, container Container, manifestURI string, cfg experiment.Config) error

	// AttachAnalytics binds an analytics channel carrying cfg to the
	// engine. Each call opens a new, independent channel.
	AttachAnalytics(cfg analytics.Config) error

	// CorrelationID returns the impression id of the most recently
	// attached analytics channel, or "" before AttachAnalytics.
	CorrelationID() string

	// Subscribe registers callbacks on the engine's event loop.
	Subscribe(h Handlers) (*Subscription, error)

	// Play starts playback of a Ready adapter.
	Play() error

	State() State
	ManifestURI() string

	// Done is closed when the adapter reaches a terminal state or is
	// destroyed.
	Done() <-chan struct{}

	// Destroy releases the engine and the analytics channels.
	Destroy()
}

// InitError is a failed Initialize. Payload is the backend's own error
// value: *bitmovin.PlayerError, *dashjs.ErrorEvent or *shaka.Error.
type InitError struct {
	Backend Backend
	Payload any
	Err     error
}

func (e *InitError) Error() string {
	return fmt.Sprintf("player: %s initialize failed: %v", e.Backend, e.Err)
}

func (e *InitError) Unwrap() error { return e.Err }
