package player

import (
	"bytes"
	"context"
	"errors"
	"log/slog"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/randomizedcoder/go-abr-harness/internal/abr"
	"github.com/randomizedcoder/go-abr-harness/internal/analytics"
	"github.com/randomizedcoder/go-abr-harness/internal/engine"
	"github.com/randomizedcoder/go-abr-harness/internal/engine/bitmovin"
	"github.com/randomizedcoder/go-abr-harness/internal/engine/dashjs"
	"github.com/randomizedcoder/go-abr-harness/internal/engine/shaka"
	"github.com/randomizedcoder/go-abr-harness/internal/experiment"
)

// =============================================================================
// Test Helpers
// =============================================================================

// syncBuffer is a log sink safe for the engine goroutines.
type syncBuffer struct {
	mu  sync.Mutex
	buf bytes.Buffer
}

func (b *syncBuffer) Write(p []byte) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.Write(p)
}

func (b *syncBuffer) String() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.String()
}

func testLogger() (*slog.Logger, *syncBuffer) {
	buf := &syncBuffer{}
	return slog.New(slog.NewTextHandler(buf, &slog.HandlerOptions{Level: slog.LevelDebug})), buf
}

func testManifest() *engine.Manifest {
	return &engine.Manifest{
		URI:             "http://cdn.test/stream.mpd",
		Duration:        16 * time.Second,
		SegmentDuration: 4 * time.Second,
		Representations: []engine.Representation{
			{ID: "360p", Bandwidth: 800_000},
			{ID: "720p", Bandwidth: 2_400_000},
			{ID: "1080p", Bandwidth: 4_300_000},
		},
	}
}

func okOptions(logger *slog.Logger) Options {
	return Options{
		Logger: logger,
		Engine: engine.Config{
			Loader: engine.StaticLoader{Manifest: testManifest()},
			Link:   engine.ConstantLink{Bandwidth: 20_000_000},
		},
		LicenseKey: "test-key",
	}
}

func failingOptions(logger *slog.Logger) Options {
	opts := okOptions(logger)
	opts.Engine.Loader = engine.LoaderFunc(func(ctx context.Context, uri string) (*engine.Manifest, error) {
		return nil, &engine.LoadError{Kind: engine.KindNetwork, URI: uri, Err: errors.New("connection refused")}
	})
	return opts
}

func newAdapter(t *testing.T, backend Backend, opts Options) Adapter {
	t.Helper()
	a, err := New(backend, opts)
	if err != nil {
		t.Fatalf("New(%s): %v", backend, err)
	}
	t.Cleanup(a.Destroy)
	return a
}

func initialize(t *testing.T, a Adapter) {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	cfg := experiment.Config{Title: "t1", UserID: "u1", VideoID: "v1"}
	if err := a.Initialize(ctx, Container{ID: "player"}, testManifest().URI, cfg); err != nil {
		t.Fatalf("Initialize: %v", err)
	}
}

func waitDone(t *testing.T, a Adapter) {
	t.Helper()
	select {
	case <-a.Done():
	case <-time.After(5 * time.Second):
		t.Fatalf("%s did not finish, state %s", a.Backend(), a.State())
	}
}

// =============================================================================
// Backend selection
// =============================================================================

func TestParseBackend(t *testing.T) {
	tests := []struct {
		in      string
		want    Backend
		wantErr bool
	}{
		{"bitmovin", Bitmovin, false},
		{"bitdash", Bitmovin, false},
		{"Dashjs", Dashjs, false},
		{"dash.js", Dashjs, false},
		{" shaka ", Shaka, false},
		{"hlsjs", "", true},
		{"", "", true},
	}

	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := ParseBackend(tt.in)
			if (err != nil) != tt.wantErr {
				t.Fatalf("err = %v, wantErr %v", err, tt.wantErr)
			}
			if tt.wantErr && !errors.Is(err, ErrUnknownBackend) {
				t.Errorf("err = %v, want ErrUnknownBackend", err)
			}
			if got != tt.want {
				t.Errorf("ParseBackend(%q) = %q, want %q", tt.in, got, tt.want)
			}
		})
	}
}

func TestNew_UnknownBackend(t *testing.T) {
	if _, err := New("hlsjs", Options{}); !errors.Is(err, ErrUnknownBackend) {
		t.Errorf("err = %v, want ErrUnknownBackend", err)
	}
}

// =============================================================================
// Lifecycle
// =============================================================================

func TestAdapter_Lifecycle(t *testing.T) {
	for _, backend := range Backends {
		t.Run(string(backend), func(t *testing.T) {
			logger, _ := testLogger()
			a := newAdapter(t, backend, okOptions(logger))

			if a.State() != StateCreated {
				t.Fatalf("State = %s, want created", a.State())
			}
			if id := a.CorrelationID(); id != "" {
				t.Errorf("CorrelationID before init = %q, want empty", id)
			}
			if _, err := a.Subscribe(Handlers{}); !errors.Is(err, ErrNotInitialized) {
				t.Errorf("Subscribe before init: %v", err)
			}
			if err := a.AttachAnalytics(analytics.Config{}); !errors.Is(err, ErrNotInitialized) {
				t.Errorf("AttachAnalytics before init: %v", err)
			}
			if err := a.Play(); !errors.Is(err, ErrNotReady) {
				t.Errorf("Play before init: %v", err)
			}

			initialize(t, a)
			if a.State() != StateReady {
				t.Fatalf("State = %s, want ready", a.State())
			}
			if a.ManifestURI() != testManifest().URI {
				t.Errorf("ManifestURI = %q", a.ManifestURI())
			}
			if err := a.Initialize(context.Background(), Container{}, "x", experiment.Config{}); !errors.Is(err, ErrAlreadyInitialized) {
				t.Errorf("second Initialize: %v", err)
			}
			if id := a.CorrelationID(); id != "" {
				t.Errorf("CorrelationID before attach = %q, want empty", id)
			}

			if err := a.AttachAnalytics(analytics.Config{Title: "t1"}); err != nil {
				t.Fatalf("AttachAnalytics: %v", err)
			}
			if a.CorrelationID() == "" {
				t.Fatal("CorrelationID after attach should not be empty")
			}

			var mu sync.Mutex
			var changes []QualityChange
			var plays int
			var states []State
			sub, err := a.Subscribe(Handlers{
				OnQualityChange: func(qc QualityChange) {
					mu.Lock()
					changes = append(changes, qc)
					mu.Unlock()
				},
				OnPlayStart: func(time.Time) {
					mu.Lock()
					plays++
					mu.Unlock()
				},
				OnStateChange: func(_, s State) {
					mu.Lock()
					states = append(states, s)
					mu.Unlock()
				},
			})
			if err != nil {
				t.Fatalf("Subscribe: %v", err)
			}
			defer sub.Unsubscribe()

			if err := a.Play(); err != nil {
				t.Fatalf("Play: %v", err)
			}
			waitDone(t, a)

			if a.State() != StateEnded {
				t.Errorf("State = %s, want ended", a.State())
			}
			mu.Lock()
			defer mu.Unlock()
			if plays != 1 {
				t.Errorf("play starts = %d, want 1", plays)
			}
			if len(changes) == 0 || !changes[0].Initial || changes[0].From != "" || changes[0].To == "" {
				t.Errorf("quality changes = %+v", changes)
			}
			if len(states) < 2 || states[0] != StatePlaying || states[len(states)-1] != StateEnded {
				t.Errorf("states = %v", states)
			}
		})
	}
}

func TestAdapter_AttachTwiceOpensTwoChannels(t *testing.T) {
	for _, backend := range Backends {
		t.Run(string(backend), func(t *testing.T) {
			sink := &analytics.MemorySink{}
			c := analytics.NewCollector(analytics.CollectorConfig{Sink: sink})
			c.Start()
			defer c.Close()

			opts := okOptions(nil)
			opts.Collector = c
			a := newAdapter(t, backend, opts)
			initialize(t, a)

			if err := a.AttachAnalytics(analytics.Config{}); err != nil {
				t.Fatal(err)
			}
			first := a.CorrelationID()
			if err := a.AttachAnalytics(analytics.Config{}); err != nil {
				t.Fatal(err)
			}
			if second := a.CorrelationID(); second == first || second == "" {
				t.Errorf("second attach id = %q, first %q", second, first)
			}
			if c.Impressions() != 2 {
				t.Errorf("Impressions = %d, want 2", c.Impressions())
			}
		})
	}
}

func TestAdapter_LoadFailure(t *testing.T) {
	tests := []struct {
		backend   Backend
		checkType func(any) bool
	}{
		{Bitmovin, func(p any) bool {
			pe, ok := p.(*bitmovin.PlayerError)
			return ok && pe.Code == bitmovin.ErrorSourceCouldNotLoadManifest
		}},
		{Dashjs, func(p any) bool {
			ev, ok := p.(*dashjs.ErrorEvent)
			return ok && ev.Code == dashjs.ManifestLoaderLoadingFailure
		}},
		{Shaka, func(p any) bool { se, ok := p.(*shaka.Error); return ok && se.Code == shaka.HTTPError }},
	}

	for _, tt := range tests {
		t.Run(string(tt.backend), func(t *testing.T) {
			logger, logs := testLogger()
			a := newAdapter(t, tt.backend, failingOptions(logger))

			err := a.Initialize(context.Background(), Container{ID: "player"}, "http://cdn.test/missing.mpd", experiment.Config{})
			var ie *InitError
			if !errors.As(err, &ie) {
				t.Fatalf("err = %v, want *InitError", err)
			}
			if ie.Backend != tt.backend {
				t.Errorf("Backend = %s", ie.Backend)
			}
			if !tt.checkType(ie.Payload) {
				t.Errorf("Payload = %#v", ie.Payload)
			}
			var le *engine.LoadError
			if !errors.As(err, &le) || le.Kind != engine.KindNetwork {
				t.Errorf("InitError should unwrap to the load error, got %v", err)
			}

			if a.State() != StateFailed {
				t.Errorf("State = %s, want failed", a.State())
			}
			waitDone(t, a)
			if id := a.CorrelationID(); id != "" {
				t.Errorf("CorrelationID = %q, want empty", id)
			}
			if err := a.Play(); !errors.Is(err, ErrNotReady) {
				t.Errorf("Play after failure: %v", err)
			}
			if n := strings.Count(logs.String(), "msg=player_load_failed"); n != 1 {
				t.Errorf("player_load_failed logged %d times, want 1\n%s", n, logs.String())
			}
		})
	}
}

func TestShaka_BrowserNotSupported(t *testing.T) {
	opts := okOptions(nil)
	opts.Shaka = &shaka.Environment{}
	a := newAdapter(t, Shaka, opts)

	err := a.Initialize(context.Background(), Container{ID: "video"}, "u", experiment.Config{})
	if !errors.Is(err, ErrBrowserNotSupported) {
		t.Fatalf("err = %v, want ErrBrowserNotSupported", err)
	}
	if a.State() != StateFailed {
		t.Errorf("State = %s, want failed", a.State())
	}
}

func TestAdapter_InitializeWaitAbandoned(t *testing.T) {
	release := make(chan struct{})
	opts := okOptions(nil)
	opts.Engine.Loader = engine.LoaderFunc(func(ctx context.Context, uri string) (*engine.Manifest, error) {
		select {
		case <-release:
			return testManifest(), nil
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	})
	a := newAdapter(t, Dashjs, opts)

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	err := a.Initialize(ctx, Container{ID: "v"}, "u", experiment.Config{})
	if !errors.Is(err, context.DeadlineExceeded) {
		t.Fatalf("err = %v, want deadline exceeded", err)
	}
	if a.State() != StateInitializing {
		t.Fatalf("State = %s, want initializing", a.State())
	}

	close(release)
	deadline := time.Now().Add(5 * time.Second)
	for a.State() != StateReady {
		if time.Now().After(deadline) {
			t.Fatalf("load never settled, state %s", a.State())
		}
		time.Sleep(5 * time.Millisecond)
	}
}

func TestAdapter_DestroyWhileLoading(t *testing.T) {
	for _, backend := range []Backend{Bitmovin, Dashjs, Shaka} {
		t.Run(string(backend), func(t *testing.T) {
			logger, logs := testLogger()
			opts := okOptions(logger)
			opts.Engine.Loader = engine.LoaderFunc(func(ctx context.Context, uri string) (*engine.Manifest, error) {
				<-ctx.Done()
				return nil, &engine.LoadError{Kind: engine.KindNetwork, URI: uri, Err: ctx.Err()}
			})
			a := newAdapter(t, backend, opts)

			ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
			defer cancel()
			if err := a.Initialize(ctx, Container{ID: "v"}, "u", experiment.Config{}); !errors.Is(err, context.DeadlineExceeded) {
				t.Fatalf("err = %v, want deadline exceeded", err)
			}

			a.Destroy()
			waitDone(t, a)

			// The engine teardown fails the pending load; wait for it to settle.
			deadline := time.Now().Add(5 * time.Second)
			for !strings.Contains(logs.String(), "msg=player_load_cancelled") {
				if time.Now().After(deadline) {
					t.Fatalf("pending load never settled\n%s", logs.String())
				}
				time.Sleep(5 * time.Millisecond)
			}

			if a.State() != StateInitializing {
				t.Errorf("State = %s, want initializing", a.State())
			}
			if strings.Contains(logs.String(), "msg=player_load_failed") {
				t.Errorf("a cancelled load should not be logged as a failure\n%s", logs.String())
			}
		})
	}
}

func TestAdapter_StallsReported(t *testing.T) {
	opts := okOptions(nil)
	opts.Engine.Link = engine.ConstantLink{Bandwidth: 300_000}
	a := newAdapter(t, Shaka, opts)
	initialize(t, a)

	var mu sync.Mutex
	var stalls int
	var sawStalled bool
	if _, err := a.Subscribe(Handlers{
		OnStall: func(time.Time) {
			mu.Lock()
			stalls++
			mu.Unlock()
		},
		OnStateChange: func(_, s State) {
			if s == StateStalled {
				mu.Lock()
				sawStalled = true
				mu.Unlock()
			}
		},
	}); err != nil {
		t.Fatal(err)
	}
	if err := a.Play(); err != nil {
		t.Fatal(err)
	}
	waitDone(t, a)

	mu.Lock()
	defer mu.Unlock()
	if stalls == 0 || !sawStalled {
		t.Errorf("stalls = %d, sawStalled = %v", stalls, sawStalled)
	}
}

func TestAdapter_DestroyWhilePlaying(t *testing.T) {
	opts := okOptions(nil)
	opts.Engine.Speed = 1
	a := newAdapter(t, Bitmovin, opts)
	initialize(t, a)

	playing := make(chan struct{})
	var once sync.Once
	if _, err := a.Subscribe(Handlers{OnPlayStart: func(time.Time) { once.Do(func() { close(playing) }) }}); err != nil {
		t.Fatal(err)
	}
	if err := a.Play(); err != nil {
		t.Fatal(err)
	}
	select {
	case <-playing:
	case <-time.After(5 * time.Second):
		t.Fatal("playback never started")
	}

	a.Destroy()
	waitDone(t, a)
	if a.State() != StateEnded {
		t.Errorf("State = %s, want ended", a.State())
	}
}

// =============================================================================
// ABR override capability
// =============================================================================

func TestOverrideCapability(t *testing.T) {
	for _, backend := range Backends {
		a := newAdapter(t, backend, okOptions(nil))
		_, ok := a.(abr.Overrider)
		if want := backend == Dashjs; ok != want {
			t.Errorf("%s implements Overrider = %v, want %v", backend, ok, want)
		}
	}
}

func TestDashjs_SetABRStrategy(t *testing.T) {
	a := newAdapter(t, Dashjs, okOptions(nil))
	o := a.(abr.Overrider)
	if o.SetABRStrategy(abr.Bola) {
		t.Error("override before initialize should be rejected")
	}

	initialize(t, a)
	dj := a.(*dashjsAdapter).engine()

	tests := []struct {
		strategy abr.Strategy
		accepted bool
		active   string
	}{
		{abr.Bola, true, dashjs.ABRBola},
		{abr.Throughput, true, dashjs.ABRThroughput},
		{abr.Dynamic, true, dashjs.ABRThroughput}, // no-op keeps the previous switch
		{abr.Unsupported, false, dashjs.ABRThroughput},
		{abr.Strategy("abrL2A"), false, dashjs.ABRThroughput},
	}
	for _, tt := range tests {
		t.Run(tt.strategy.String(), func(t *testing.T) {
			if got := o.SetABRStrategy(tt.strategy); got != tt.accepted {
				t.Errorf("SetABRStrategy = %v, want %v", got, tt.accepted)
			}
			if got := dj.GetABRStrategy(); got != tt.active {
				t.Errorf("active strategy = %q, want %q", got, tt.active)
			}
		})
	}
}

func TestApply_AcrossBackends(t *testing.T) {
	tests := []struct {
		backend   Backend
		requested string
		want      abr.Strategy
	}{
		{Dashjs, "abrThroughput", abr.Throughput},
		{Dashjs, "abrBola", abr.Bola},
		{Dashjs, "abrDynamic", abr.Unsupported},
		{Dashjs, "unknownValue", abr.Unsupported},
		{Dashjs, "", abr.Unsupported},
		{Shaka, "abrBola", abr.Unsupported},
		{Shaka, "abrThroughput", abr.Unsupported},
		{Bitmovin, "abrBola", abr.Unsupported},
		{Bitmovin, "unknownValue", abr.Unsupported},
	}

	for _, tt := range tests {
		t.Run(string(tt.backend)+"/"+tt.requested, func(t *testing.T) {
			a := newAdapter(t, tt.backend, okOptions(nil))
			initialize(t, a)
			if got := abr.Apply(a, tt.requested); got != tt.want {
				t.Errorf("Apply = %q, want %q", got, tt.want)
			}
			if da, ok := a.(*dashjsAdapter); ok && tt.want == abr.Unsupported {
				if got := da.engine().GetABRStrategy(); got != dashjs.ABRDynamic {
					t.Errorf("engine strategy = %q, want the %q default", got, dashjs.ABRDynamic)
				}
			}
			if a.State() != StateReady {
				t.Errorf("State = %s, want ready", a.State())
			}
		})
	}
}
