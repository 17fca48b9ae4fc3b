package player

import (
	"fmt"
	"log/slog"

	"github.com/randomizedcoder/go-abr-harness/internal/analytics"
	"github.com/randomizedcoder/go-abr-harness/internal/engine"
	"github.com/randomizedcoder/go-abr-harness/internal/engine/shaka"
)

// Options configures a new adapter.
type Options struct {
	Logger *slog.Logger

	// Engine configures the engine the adapter creates. The backend picks
	// the ABR rule.
	Engine engine.Config

	// Collector receives analytics. Nil gives the adapter a private
	// collector that discards samples.
	Collector *analytics.Collector

	// Shaka overrides the runtime the shaka backend checks for support.
	Shaka *shaka.Environment

	// LicenseKey is the player/analytics license key.
	LicenseKey string
}

// New creates an adapter for backend.
func New(backend Backend, opts Options) (Adapter, error) {
	switch backend {
	case Bitmovin:
		return &bitmovinAdapter{base: newBase(Bitmovin, opts)}, nil
	case Dashjs:
		return &dashjsAdapter{base: newBase(Dashjs, opts)}, nil
	case Shaka:
		return &shakaAdapter{base: newBase(Shaka, opts)}, nil
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownBackend, string(backend))
	}
}
