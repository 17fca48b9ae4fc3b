package experiment

import (
	"errors"
	"reflect"
	"strings"
	"testing"
	"time"
)

const batchYAML = `
defaults:
  cdn_provider: akamai
  experiment_name: abr-compare
  title: bbb
randomize: false
runs:
  - player: bitmovin
  - player: dashjs
    abr: abrThroughput
  - player: shaka
    title: override
`

func TestLoadBatch(t *testing.T) {
	b, err := LoadBatch(strings.NewReader(batchYAML))
	if err != nil {
		t.Fatalf("LoadBatch: %v", err)
	}

	runs := b.Expand()
	if len(runs) != 3 {
		t.Fatalf("len(runs) = %d, want 3", len(runs))
	}
	if runs[1].ABR != "abrThroughput" || runs[1].CDNProvider != "akamai" {
		t.Errorf("defaults not merged: %+v", runs[1])
	}
	if runs[2].Title != "override" {
		t.Errorf("run title = %q, want override", runs[2].Title)
	}
	if runs[0].Title != "bbb" {
		t.Errorf("default title = %q, want bbb", runs[0].Title)
	}
}

func TestLoadBatch_NetworkPath(t *testing.T) {
	const input = `
defaults:
  ping_target: cdnjs.cloudflare.com
  ping_count: 5
  ping_timeout: 2s
runs:
  - player: bitmovin
    ping_target: cdn.bitmovin.com
  - player: shaka
    traceroute_target: orf.at
    ping_count: 3
`
	b, err := LoadBatch(strings.NewReader(input))
	if err != nil {
		t.Fatalf("LoadBatch: %v", err)
	}
	runs := b.Expand()

	if runs[0].PingTarget != "cdn.bitmovin.com" || runs[0].PingCount != 5 {
		t.Errorf("run 0 ping = %q x%d", runs[0].PingTarget, runs[0].PingCount)
	}
	if runs[0].PingTimeout != 2*time.Second {
		t.Errorf("run 0 ping timeout = %v, want 2s", runs[0].PingTimeout)
	}
	if runs[1].PingTarget != "cdnjs.cloudflare.com" || runs[1].PingCount != 3 {
		t.Errorf("run 1 ping = %q x%d", runs[1].PingTarget, runs[1].PingCount)
	}
	if runs[0].TracerouteTarget != "" || runs[1].TracerouteTarget != "orf.at" {
		t.Errorf("traceroute targets = %q, %q", runs[0].TracerouteTarget, runs[1].TracerouteTarget)
	}
}

func TestLoadBatch_Errors(t *testing.T) {
	tests := []struct {
		name  string
		input string
		isErr error
	}{
		{"empty document", "", ErrEmptyBatch},
		{"no runs", "defaults:\n  player: shaka\n", ErrEmptyBatch},
		{"unknown field", "runs:\n  - player: shaka\n    colour: red\n", nil},
		{"missing player", "runs:\n  - abr: abrBola\n", nil},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := LoadBatch(strings.NewReader(tt.input))
			if err == nil {
				t.Fatal("expected error")
			}
			if tt.isErr != nil && !errors.Is(err, tt.isErr) {
				t.Errorf("err = %v, want %v", err, tt.isErr)
			}
		})
	}
}

func TestBatch_ExpandRandomizeIsDeterministic(t *testing.T) {
	b := DefaultBatch()
	b.Randomize = true
	b.Seed = 42

	first := b.Expand()
	second := b.Expand()
	if !reflect.DeepEqual(first, second) {
		t.Error("same seed should give the same order")
	}
	if len(first) != len(DefaultBatch().Runs) {
		t.Errorf("len = %d, want %d", len(first), len(DefaultBatch().Runs))
	}

	seen := make(map[RunSpec]bool)
	for _, r := range first {
		seen[r] = true
	}
	for _, r := range DefaultBatch().Runs {
		if !seen[r] {
			t.Errorf("run %+v missing after shuffle", r)
		}
	}
}

func TestDefaultBatch(t *testing.T) {
	runs := DefaultBatch().Expand()
	var dash int
	for _, r := range runs {
		if r.Player == "dashjs" {
			dash++
		}
	}
	if dash != 3 {
		t.Errorf("dashjs runs = %d, want 3", dash)
	}
}
