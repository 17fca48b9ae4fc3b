package stats

import (
	"bytes"
	"encoding/json"
	"testing"
	"time"

	"github.com/randomizedcoder/go-abr-harness/internal/experiment"
	"github.com/randomizedcoder/go-abr-harness/internal/logging"
	"github.com/randomizedcoder/go-abr-harness/internal/netpath"
)

func testRun() (RunResult, DocumentMeta) {
	started := time.Date(2026, 5, 4, 10, 30, 15, 0, time.UTC)
	spec := experiment.RunSpec{Player: "dashjs", ABR: "abrBola", CDNProvider: "akamai", ExperimentName: "exp1"}
	params := spec.Params("tag-1", "v0.5")
	r := RunResult{
		Index:           0,
		Spec:            spec,
		Config:          experiment.Resolve(params),
		Backend:         "dashjs",
		Outcome:         OutcomeCompleted,
		Strategy:        "bola",
		CorrelationID:   "0c1d",
		State:           "ended",
		StartupDelay:    1200 * time.Millisecond,
		QualitySwitches: 4,
		Stalls:          1,
		Started:         started,
		Finished:        started.Add(time.Minute),
	}
	meta := DocumentMeta{
		DataID:           "MONROE.EXP.VBIM",
		NodeID:           "7",
		Interface:        "eth0",
		ContainerVersion: "v0.5",
		Stub:             "http://localhost/players",
		Duration:         time.Minute,
		TimeBetweenRuns:  5 * time.Second,
		BatchStarted:     started.Add(-time.Hour),
		Configurations:   5,
		Randomize:        true,
	}
	return r, meta
}

func TestBuildDocument(t *testing.T) {
	r, meta := testRun()
	doc := BuildDocument(r, meta)

	want := map[string]any{
		"document":                 KindSummary,
		"cnf_customdata1":          "akamai",
		"cnf_customdata2":          "abrBola",
		"cnf_customdata3":          "exp1",
		"cnf_customdata4":          "v0.5",
		"cnf_customdata5":          "tag-1",
		"cnf_cdnprovider":          "akamai",
		"cnf_experimentname":       "exp1",
		"cnf_abr":                  "abrBola",
		"cnf_player":               "dashjs",
		"cnf_duration":             60,
		"cnf_time_between_runs":    5,
		"cnf_dataid":               "MONROE.EXP.VBIM",
		"cnf_sessionid":            "0c1d",
		"summary_session_id":       "0c1d",
		"summary_containerversion": "v0.5",
		"summary_time_run":         "20260504-103015",
		"summary_time_batch":       "20260504-093015",
		"summary_outcome":          "completed",
		"summary_abr_strategy":     "bola",
		"summary_startup_ms":       int64(1200),
		"summary_stalls":           1,
		"cnf_multiconfig_enabled":  true,
	}
	for k, v := range want {
		if doc[k] != v {
			t.Errorf("doc[%q] = %#v, want %#v", k, doc[k], v)
		}
	}
	if _, ok := doc["summary_error"]; ok {
		t.Error("summary_error should be absent for a successful run")
	}
	if _, ok := doc["cnf_ping_target"]; ok {
		t.Error("cnf_ping_target should be absent without a ping")
	}
}

func TestBuildDocument_NetworkPath(t *testing.T) {
	r, meta := testRun()
	r.Ping = &netpath.PingResult{
		Target:   "orf.at",
		Count:    11,
		Timeout:  2 * time.Second,
		Received: 10,
		Loss:     9.09,
		AvgRTT:   12500 * time.Microsecond,
	}
	r.Traceroute = &netpath.TraceResult{Target: "orf.at", Hops: make([]netpath.Hop, 6)}

	doc := BuildDocument(r, meta)
	want := map[string]any{
		"cnf_ping_target":         "orf.at",
		"cnf_ping_count":          11,
		"cnf_ping_timeout":        2,
		"cnf_traceroute_target":   "orf.at",
		"summary_ping_received":   10,
		"summary_ping_loss":       9.09,
		"summary_ping_avg_rtt_ms": 12.5,
		"summary_traceroute_hops": 6,
	}
	for k, v := range want {
		if doc[k] != v {
			t.Errorf("doc[%q] = %#v, want %#v", k, doc[k], v)
		}
	}

	r.Ping = &netpath.PingResult{Target: "orf.at", Err: "socket: permission denied"}
	doc = BuildDocument(r, meta)
	if _, ok := doc["summary_ping_avg_rtt_ms"]; ok {
		t.Error("average rtt should be absent without replies")
	}
	if doc["summary_ping_error"] != "socket: permission denied" {
		t.Errorf("summary_ping_error = %v", doc["summary_ping_error"])
	}
}

func TestBuildDocument_MissingSessionID(t *testing.T) {
	r, meta := testRun()
	r.CorrelationID = ""
	r.Outcome = OutcomeFailed
	r.Strategy = ""
	r.Err = "manifest 404"
	meta.Configurations = 1

	doc := BuildDocument(r, meta)
	if doc["cnf_sessionid"] != "NA" || doc["summary_session_id"] != "NA" {
		t.Errorf("session id = %v / %v", doc["cnf_sessionid"], doc["summary_session_id"])
	}
	if doc["summary_error"] != "manifest 404" {
		t.Errorf("summary_error = %v", doc["summary_error"])
	}
	if _, ok := doc["summary_abr_strategy"]; ok {
		t.Error("summary_abr_strategy should be absent without a strategy")
	}
	if _, ok := doc["cnf_multiconfig_enabled"]; ok {
		t.Error("single configuration should not report multiconfig")
	}
}

func TestDocumentName(t *testing.T) {
	r, meta := testRun()
	prefix := "MONROE.EXP.VBIM_NODE.7_INTERFACE.eth0_PLAYER.dashjs_TIME.20260504-103015_SESSION.0c1d_"

	tests := []struct {
		kind DocumentKind
		want string
	}{
		{KindSummary, prefix + "SUMMARY.json"},
		{KindConsoleOutput, prefix + "CONSOLEOUTPUT.json"},
		{KindPing, prefix + "PING.json"},
		{KindTraceroute, prefix + "TRACEROUTE.json"},
	}
	for _, tt := range tests {
		if got := DocumentName(r, meta, tt.kind); got != tt.want {
			t.Errorf("DocumentName(%s) = %q\nwant %q", tt.kind, got, tt.want)
		}
	}

	r.CorrelationID = ""
	if got := DocumentName(r, meta, KindSummary); !bytes.Contains([]byte(got), []byte("_SESSION.NA_SUMMARY.json")) {
		t.Errorf("DocumentName without id = %q", got)
	}
}

func TestBuildConsoleDocument(t *testing.T) {
	r, _ := testRun()
	at := time.Date(2026, 5, 4, 10, 30, 16, 0, time.UTC)
	entries := []logging.ConsoleEntry{
		{Time: at, Type: logging.ConsoleLog, Line: "sessionID = 0c1d"},
		{Time: at.Add(time.Second), Type: logging.ConsoleError, Line: "net::ERR_FAILED"},
	}

	doc := BuildConsoleDocument(r, entries)
	if doc.Kind() != KindConsoleOutput {
		t.Errorf("Kind = %q", doc.Kind())
	}
	if doc["cnf_player"] != "dashjs" || doc["cnf_sessionid"] != "0c1d" {
		t.Errorf("header = %v / %v", doc["cnf_player"], doc["cnf_sessionid"])
	}
	lines, ok := doc["console"].([]map[string]any)
	if !ok || len(lines) != 2 {
		t.Fatalf("console = %#v", doc["console"])
	}
	if lines[1]["type"] != "error" || lines[1]["message"] != "net::ERR_FAILED" {
		t.Errorf("second line = %v", lines[1])
	}
	if lines[0]["timestamp"] != at.UnixMilli() {
		t.Errorf("timestamp = %v", lines[0]["timestamp"])
	}

	empty := BuildConsoleDocument(r, nil)
	var buf bytes.Buffer
	if err := WriteDocument(&buf, empty); err != nil {
		t.Fatal(err)
	}
	if !bytes.Contains(buf.Bytes(), []byte(`"console":[]`)) {
		t.Errorf("empty console should encode as a list: %s", buf.String())
	}
}

func TestBuildPingDocument(t *testing.T) {
	r, _ := testRun()
	start := time.Date(2026, 5, 4, 10, 30, 0, 0, time.UTC)
	p := netpath.PingResult{
		Target:   "orf.at",
		Addr:     "194.232.104.150",
		Count:    3,
		Timeout:  2 * time.Second,
		Sent:     3,
		Received: 2,
		Loss:     33.3,
		MinRTT:   8 * time.Millisecond,
		AvgRTT:   9 * time.Millisecond,
		MaxRTT:   10 * time.Millisecond,
		RTTs:     []time.Duration{8 * time.Millisecond, 10 * time.Millisecond},
		Started:  start,
		Finished: start.Add(3 * time.Second),
	}

	doc := BuildPingDocument(r, p)
	want := map[string]any{
		"document":         KindPing,
		"target":           "orf.at",
		"addr":             "194.232.104.150",
		"packets_sent":     3,
		"packets_received": 2,
		"packet_loss":      33.3,
		"rtt_avg_ms":       9.0,
		"timeout":          2,
		"time_start":       start.Unix(),
		"time_end":         start.Unix() + 3,
	}
	for k, v := range want {
		if doc[k] != v {
			t.Errorf("doc[%q] = %#v, want %#v", k, doc[k], v)
		}
	}
	if rtts, _ := doc["rtts_ms"].([]float64); len(rtts) != 2 || rtts[1] != 10 {
		t.Errorf("rtts_ms = %#v", doc["rtts_ms"])
	}
	if _, ok := doc["error"]; ok {
		t.Error("error should be absent")
	}
}

func TestBuildTracerouteDocument(t *testing.T) {
	r, _ := testRun()
	tr := netpath.TraceResult{
		Target: "orf.at",
		Hops: []netpath.Hop{
			{TTL: 1, Host: "_gateway", Addr: "192.168.1.1", AS: "*", RTTs: []time.Duration{time.Millisecond}},
			{TTL: 2, Timeouts: 3},
		},
		Raw: "traceroute to orf.at",
		Err: "",
	}

	doc := BuildTracerouteDocument(r, tr)
	if doc.Kind() != KindTraceroute || doc["target"] != "orf.at" || doc["raw"] != "traceroute to orf.at" {
		t.Errorf("doc = %v", doc)
	}
	hops, ok := doc["hops"].([]map[string]any)
	if !ok || len(hops) != 2 {
		t.Fatalf("hops = %#v", doc["hops"])
	}
	if hops[0]["addr"] != "192.168.1.1" || hops[1]["timeouts"] != 3 {
		t.Errorf("hops = %v", hops)
	}

	tr.Err = "traceroute: exit status 1"
	if doc := BuildTracerouteDocument(r, tr); doc["error"] != "traceroute: exit status 1" {
		t.Errorf("error = %v", doc["error"])
	}
}

func TestWriteDocument(t *testing.T) {
	r, meta := testRun()
	var buf bytes.Buffer
	if err := WriteDocument(&buf, BuildDocument(r, meta)); err != nil {
		t.Fatal(err)
	}
	if !bytes.HasSuffix(buf.Bytes(), []byte("}\n")) {
		t.Errorf("document should end with a newline: %q", buf.String())
	}

	var decoded map[string]any
	if err := json.Unmarshal(buf.Bytes(), &decoded); err != nil {
		t.Fatalf("document is not valid JSON: %v", err)
	}
	if decoded["summary_session_id"] != "0c1d" {
		t.Errorf("decoded session id = %v", decoded["summary_session_id"])
	}
}
