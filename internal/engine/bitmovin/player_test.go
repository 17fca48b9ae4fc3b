package bitmovin

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/randomizedcoder/go-abr-harness/internal/analytics"
	"github.com/randomizedcoder/go-abr-harness/internal/engine"
)

type fakeAnalytics struct{ id string }

func (f fakeAnalytics) GetCurrentImpressionID() string { return f.id }

func staticConfig() Config {
	return Config{
		Key: "test-key",
		Engine: engine.Config{
			Loader: engine.StaticLoader{Manifest: &engine.Manifest{
				Duration:        8 * time.Second,
				SegmentDuration: 4 * time.Second,
				Representations: []engine.Representation{{ID: "360p", Bandwidth: 800_000}, {ID: "720p", Bandwidth: 2_400_000}},
			}},
			Link: engine.ConstantLink{Bandwidth: 20_000_000},
		},
	}
}

func TestPlayer_AnalyticsSubObject(t *testing.T) {
	p := NewPlayer("player", staticConfig())
	if p.Analytics() != nil {
		t.Fatal("analytics sub-object must not exist before an adapter is attached")
	}

	p.ConfigureAnalytics(analytics.Config{Title: "t1"})
	if p.Config().Analytics == nil || p.Config().Analytics.Title != "t1" {
		t.Error("ConfigureAnalytics should set the payload")
	}

	p.AttachAnalytics(fakeAnalytics{id: "imp-1"})
	if got := p.Analytics().GetCurrentImpressionID(); got != "imp-1" {
		t.Errorf("impression id = %q", got)
	}
}

func TestPlayer_LoadAndQualityEvents(t *testing.T) {
	p := NewPlayer("player", staticConfig())

	var events []Event
	p.On(EventVideoDownloadQualityChange, func(ev Event) { events = append(events, ev) })
	finished := make(chan struct{})
	p.On(EventPlaybackFinished, func(Event) { close(finished) })

	if err := <-p.Load(Source{Dash: "http://cdn.test/stream.mpd"}); err != nil {
		t.Fatalf("Load: %v", err)
	}
	if p.Source().Dash != "http://cdn.test/stream.mpd" {
		t.Errorf("Source = %+v", p.Source())
	}
	if err := p.Play(); err != nil {
		t.Fatalf("Play: %v", err)
	}
	select {
	case <-finished:
	case <-time.After(5 * time.Second):
		t.Fatal("playback did not finish")
	}
	<-p.Done()

	if len(events) == 0 {
		t.Fatal("expected quality change events")
	}
	if events[0].SourceQuality != "" || events[0].TargetQuality == "" {
		t.Errorf("initial quality event = %+v", events[0])
	}
}

func TestPlayer_Autoplay(t *testing.T) {
	conf := staticConfig()
	conf.Playback.Autoplay = true
	p := NewPlayer("player", conf)

	played := make(chan struct{}, 1)
	p.On(EventPlay, func(Event) { played <- struct{}{} })
	if err := <-p.Load(Source{Dash: "u"}); err != nil {
		t.Fatalf("Load: %v", err)
	}
	select {
	case <-played:
	case <-time.After(5 * time.Second):
		t.Fatal("autoplay did not start playback")
	}
	p.Destroy()
}

func TestPlayer_LoadErrorCodes(t *testing.T) {
	tests := []struct {
		kind engine.ErrorKind
		code int
	}{
		{engine.KindNetwork, ErrorSourceCouldNotLoadManifest},
		{engine.KindDecode, ErrorSourceManifestInvalid},
		{engine.KindUnsupported, ErrorSourceNotSupported},
	}

	for _, tt := range tests {
		t.Run(tt.kind.String(), func(t *testing.T) {
			conf := staticConfig()
			conf.Engine.Loader = engine.LoaderFunc(func(ctx context.Context, uri string) (*engine.Manifest, error) {
				return nil, &engine.LoadError{Kind: tt.kind, URI: uri, Err: errors.New("x")}
			})
			p := NewPlayer("player", conf)
			defer p.Destroy()

			err := <-p.Load(Source{Dash: "u"})
			var pe *PlayerError
			if !errors.As(err, &pe) {
				t.Fatalf("err = %v, want *PlayerError", err)
			}
			if pe.Code != tt.code {
				t.Errorf("Code = %d, want %d", pe.Code, tt.code)
			}
		})
	}
}
