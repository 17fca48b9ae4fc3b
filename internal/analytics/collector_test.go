package analytics

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strings"
	"testing"
	"time"
)

func sequentialIDs() func() string {
	n := 0
	return func() string {
		n++
		return fmt.Sprintf("imp-%d", n)
	}
}

func TestCollector_ImpressionsAndSamples(t *testing.T) {
	sink := &MemorySink{}
	c := NewCollector(CollectorConfig{Sink: sink, NewID: sequentialIDs()})
	c.Start()

	cfg := Config{Title: "t1", CustomData2: "abrBola"}
	a := c.NewImpression("dashjs", cfg)
	b := c.NewImpression("dashjs", cfg)
	if a.ID() == b.ID() {
		t.Fatal("impressions must have distinct ids")
	}
	if a.ID() != "imp-1" {
		t.Errorf("ID = %q, want imp-1", a.ID())
	}

	now := time.Unix(1700000000, 0)
	a.Record(SampleStartup, now, 0, 0)
	a.Record(SampleQualityChange, now, 2_400_000, 0)
	c.Close()

	samples := sink.Samples()
	if len(samples) != 2 {
		t.Fatalf("len(samples) = %d, want 2", len(samples))
	}
	if samples[0].Sequence != 1 || samples[1].Sequence != 2 {
		t.Errorf("sequences = %d,%d", samples[0].Sequence, samples[1].Sequence)
	}
	if samples[1].Config.CustomData2 != "abrBola" {
		t.Error("custom data should travel with each sample")
	}
	if c.Impressions() != 2 {
		t.Errorf("Impressions = %d, want 2", c.Impressions())
	}
}

func TestCollector_OnDrop(t *testing.T) {
	drops := 0
	c := NewCollector(CollectorConfig{BufferSize: 1, OnDrop: func() { drops++ }})
	imp := c.NewImpression("shaka", Config{})
	imp.Record(SampleStall, time.Now(), 0, 0)
	imp.Record(SampleStall, time.Now(), 0, 0)
	imp.Record(SampleStall, time.Now(), 0, 0)
	if drops != 2 {
		t.Errorf("drops = %d, want 2", drops)
	}
	c.Close()
}

func TestCollector_DefaultIDsAreUUIDs(t *testing.T) {
	c := NewCollector(CollectorConfig{})
	defer c.Close()
	id := c.NewImpression("bitmovin", Config{}).ID()
	if len(id) != 36 || strings.Count(id, "-") != 4 {
		t.Errorf("ID = %q, want a UUID", id)
	}
}

func TestWriterSink_NDJSON(t *testing.T) {
	var buf bytes.Buffer
	sink := NewWriterSink(&buf)
	at := time.UnixMilli(1700000000123)

	samples := []Sample{
		{ImpressionID: "i1", Sequence: 1, Event: SampleStartup, Time: at, Player: "bitmovin",
			Config: Config{Title: "t1", CustomData1: "akamai"}},
		{ImpressionID: "i1", Sequence: 2, Event: SampleQualityChange, Time: at, Bitrate: 800000},
	}
	for _, s := range samples {
		if err := sink.Write(s); err != nil {
			t.Fatalf("Write: %v", err)
		}
	}
	if err := sink.Flush(); err != nil {
		t.Fatalf("Flush: %v", err)
	}

	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	if len(lines) != 2 {
		t.Fatalf("lines = %d, want 2: %q", len(lines), buf.String())
	}

	var first map[string]any
	if err := json.Unmarshal([]byte(lines[0]), &first); err != nil {
		t.Fatalf("line 1 is not JSON: %v", err)
	}
	if first["impressionId"] != "i1" || first["event"] != "startup" {
		t.Errorf("unexpected first sample: %v", first)
	}
	if first["time"] != float64(1700000000123) {
		t.Errorf("time = %v", first["time"])
	}
	cd, ok := first["customData"].(map[string]any)
	if !ok || cd["customData1"] != "akamai" || cd["title"] != "t1" {
		t.Errorf("customData = %v", first["customData"])
	}
	if _, ok := first["videoBitrate"]; ok {
		t.Error("zero bitrate should be omitted")
	}

	var second map[string]any
	if err := json.Unmarshal([]byte(lines[1]), &second); err != nil {
		t.Fatalf("line 2 is not JSON: %v", err)
	}
	if second["videoBitrate"] != float64(800000) {
		t.Errorf("videoBitrate = %v", second["videoBitrate"])
	}
}

func TestImpression_RecordStartup(t *testing.T) {
	sink := &MemorySink{}
	c := NewCollector(CollectorConfig{Sink: sink, NewID: sequentialIDs()})
	c.Start()

	imp := c.NewImpression("dashjs", Config{})
	imp.RecordStartup(time.Unix(1700000000, 0), 1500*time.Millisecond)
	c.Close()

	samples := sink.Samples()
	if len(samples) != 1 {
		t.Fatalf("len(samples) = %d, want 1", len(samples))
	}
	if samples[0].Event != SampleStartup || samples[0].StartupTime != 1500*time.Millisecond {
		t.Errorf("sample = %+v", samples[0])
	}
	if samples[0].Player != "dashjs" || samples[0].ImpressionID != "imp-1" {
		t.Errorf("sample identity = %q/%q", samples[0].Player, samples[0].ImpressionID)
	}
}
