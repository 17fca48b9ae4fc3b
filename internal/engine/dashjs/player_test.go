package dashjs

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/randomizedcoder/go-abr-harness/internal/engine"
)

func testConfig() engine.Config {
	return engine.Config{
		Loader: engine.StaticLoader{Manifest: &engine.Manifest{
			Duration:        20 * time.Second,
			SegmentDuration: 4 * time.Second,
			Representations: []engine.Representation{
				{ID: "0", Bandwidth: 500_000},
				{ID: "1", Bandwidth: 2_000_000},
			},
		}},
		Link: engine.ConstantLink{Bandwidth: 10_000_000},
	}
}

func waitFor(t *testing.T, ch <-chan struct{}) {
	t.Helper()
	select {
	case <-ch:
	case <-time.After(5 * time.Second):
		t.Fatal("timed out")
	}
}

func TestMediaPlayer_InitializeAndPlay(t *testing.T) {
	p := Create(testConfig())

	initialized := make(chan struct{})
	var once sync.Once
	p.On(EventStreamInitialized, func(Event) { once.Do(func() { close(initialized) }) })

	var mu sync.Mutex
	var changes []Event
	p.On(EventQualityChangeRendered, func(ev Event) {
		mu.Lock()
		changes = append(changes, ev)
		mu.Unlock()
	})

	p.Initialize("videoPlayer", "http://cdn.test/stream.mpd", false)
	waitFor(t, initialized)

	if p.View() != "videoPlayer" {
		t.Errorf("View = %q", p.View())
	}
	if got := len(p.GetBitrateInfoListFor("video")); got != 2 {
		t.Errorf("bitrate list = %d, want 2", got)
	}
	if p.GetBitrateInfoListFor("audio") != nil {
		t.Error("audio bitrate list should be nil")
	}
	if p.GetQualityFor("video") != -1 {
		t.Error("quality before playback should be -1")
	}

	if err := p.Play(); err != nil {
		t.Fatalf("Play: %v", err)
	}
	waitFor(t, p.Done())

	mu.Lock()
	defer mu.Unlock()
	if len(changes) == 0 {
		t.Fatal("expected quality changes")
	}
	if changes[0].OldQuality != -1 || changes[0].MediaType != "video" {
		t.Errorf("first change = %+v", changes[0])
	}
}

func TestMediaPlayer_SetABRStrategy(t *testing.T) {
	p := Create(testConfig())
	if p.GetABRStrategy() != ABRDynamic {
		t.Errorf("default strategy = %q, want %q", p.GetABRStrategy(), ABRDynamic)
	}

	tests := []struct {
		name     string
		strategy string
		wantRule string
		wantErr  bool
	}{
		{"bola", ABRBola, "buffer", false},
		{"throughput", ABRThroughput, "throughput", false},
		{"dynamic", ABRDynamic, "dynamic", false},
		{"unknown", "abrL2A", "", true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := p.SetABRStrategy(tt.strategy)
			if (err != nil) != tt.wantErr {
				t.Fatalf("err = %v, wantErr %v", err, tt.wantErr)
			}
			if tt.wantErr {
				return
			}
			if p.GetABRStrategy() != tt.strategy {
				t.Errorf("GetABRStrategy = %q", p.GetABRStrategy())
			}
			if got := p.engine.Rule().Name(); got != tt.wantRule {
				t.Errorf("rule = %q, want %q", got, tt.wantRule)
			}
		})
	}
}

func TestMediaPlayer_ErrorEvent(t *testing.T) {
	cfg := testConfig()
	cfg.Loader = engine.LoaderFunc(func(ctx context.Context, uri string) (*engine.Manifest, error) {
		return nil, &engine.LoadError{Kind: engine.KindDecode, URI: uri, Err: errors.New("bad xml")}
	})
	p := Create(cfg)

	got := make(chan Event, 1)
	p.On(EventError, func(ev Event) { got <- ev })
	p.Initialize("v", "http://cdn.test/bad.mpd", true)

	select {
	case ev := <-got:
		if ev.Error == nil || ev.Error.Code != ManifestLoaderParsingFailure {
			t.Errorf("error event = %+v", ev.Error)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("no error event")
	}
}

func TestMediaPlayer_UnknownEventIsNoop(t *testing.T) {
	p := Create(testConfig())
	off := p.On("fragmentLoadingCompleted", func(Event) {})
	off()
}
