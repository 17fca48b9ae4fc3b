package stats

import (
	"encoding/json"
	"fmt"
	"io"
	"time"

	"github.com/randomizedcoder/go-abr-harness/internal/logging"
	"github.com/randomizedcoder/go-abr-harness/internal/netpath"
)

// TimeFormat is the timestamp layout used in document names and values.
const TimeFormat = "20060102-150405"

// DocumentMeta carries the batch-wide fields of a summary document.
type DocumentMeta struct {
	DataID           string
	NodeID           string
	Interface        string
	ContainerVersion string
	Stub             string
	Duration         time.Duration
	TimeBetweenRuns  time.Duration
	BatchStarted     time.Time
	Randomize        bool
	Configurations   int
	Verbose          bool
}

// DocumentKind is the last part of a document name. Every document also
// carries it under the "document" key.
type DocumentKind string

const (
	KindSummary       DocumentKind = "SUMMARY"
	KindConsoleOutput DocumentKind = "CONSOLEOUTPUT"
	KindPing          DocumentKind = "PING"
	KindTraceroute    DocumentKind = "TRACEROUTE"
)

// Document is one JSON document written per run. The summary holds the
// run's configuration under cnf_* keys and its outcome under summary_*
// keys; the other kinds hold the console output and the network path.
type Document map[string]any

// Kind returns the document kind.
func (d Document) Kind() DocumentKind {
	k, _ := d["document"].(DocumentKind)
	return k
}

// BuildDocument creates the summary document for one run.
func BuildDocument(r RunResult, meta DocumentMeta) Document {
	cfg := r.Config
	doc := Document{
		"document":              KindSummary,
		"cnf_cdnprovider":       cfg.CDNProviderMirror,
		"cnf_customdata1":       cfg.CDNProvider,
		"cnf_customdata2":       cfg.ABRAlgorithm,
		"cnf_customdata3":       cfg.ExperimentName,
		"cnf_customdata4":       cfg.ContainerVersion,
		"cnf_customdata5":       cfg.ProbeUUID,
		"cnf_experimentname":    cfg.ExperimentNameMirror,
		"cnf_sessionid":         r.SessionID(),
		"cnf_title":             cfg.Title,
		"cnf_userid":            cfg.UserID,
		"cnf_videoid":           cfg.VideoID,
		"cnf_abr":               r.Spec.ABR,
		"cnf_dataid":            meta.DataID,
		"cnf_duration":          int(meta.Duration.Seconds()),
		"cnf_player":            r.Backend,
		"cnf_stub":              meta.Stub,
		"cnf_tag":               cfg.ProbeUUID,
		"cnf_time_between_runs": int(meta.TimeBetweenRuns.Seconds()),
		"cnf_verbosity":         verbosity(meta.Verbose),

		"summary_containerversion": meta.ContainerVersion,
		"summary_interface":        meta.Interface,
		"summary_time_batch":       meta.BatchStarted.UTC().Format(TimeFormat),
		"summary_time_run":         r.Started.UTC().Format(TimeFormat),
		"summary_session_id":       r.SessionID(),
		"summary_outcome":          string(r.Outcome),
		"summary_state":            r.State,
		"summary_quality_switches": r.QualitySwitches,
		"summary_stalls":           r.Stalls,
		"summary_startup_ms":       r.StartupDelay.Milliseconds(),
	}
	if r.Strategy != "" {
		doc["summary_abr_strategy"] = r.Strategy
	}
	if r.Err != "" {
		doc["summary_error"] = r.Err
	}
	if p := r.Ping; p != nil {
		doc["cnf_ping_target"] = p.Target
		doc["cnf_ping_count"] = p.Count
		doc["cnf_ping_timeout"] = int(p.Timeout.Seconds())
		doc["summary_ping_received"] = p.Received
		doc["summary_ping_loss"] = p.Loss
		if p.Received > 0 {
			doc["summary_ping_avg_rtt_ms"] = millis(p.AvgRTT)
		}
		if p.Err != "" {
			doc["summary_ping_error"] = p.Err
		}
	}
	if tr := r.Traceroute; tr != nil {
		doc["cnf_traceroute_target"] = tr.Target
		doc["summary_traceroute_hops"] = len(tr.Hops)
	}
	if meta.Configurations > 1 {
		doc["cnf_multiconfig_enabled"] = true
		doc["cnf_multiconfig_randomize"] = meta.Randomize
		doc["summary_number_of_configurations"] = meta.Configurations
	}
	return doc
}

func verbosity(verbose bool) int {
	if verbose {
		return 2
	}
	return 0
}

// millis converts d to fractional milliseconds.
func millis(d time.Duration) float64 {
	return float64(d) / float64(time.Millisecond)
}

// header returns the keys shared by the console and network documents.
func header(kind DocumentKind, r RunResult) Document {
	return Document{
		"document":      kind,
		"cnf_player":    r.Backend,
		"cnf_sessionid": r.SessionID(),
		"cnf_abr":       r.Spec.ABR,
	}
}

// BuildConsoleDocument creates the console output document of one run.
// Entries are oldest first.
func BuildConsoleDocument(r RunResult, entries []logging.ConsoleEntry) Document {
	lines := make([]map[string]any, 0, len(entries))
	for _, e := range entries {
		lines = append(lines, map[string]any{
			"type":      e.Type,
			"message":   e.Line,
			"timestamp": e.Time.UnixMilli(),
		})
	}
	doc := header(KindConsoleOutput, r)
	doc["console"] = lines
	return doc
}

// BuildPingDocument creates the ping document of one run.
func BuildPingDocument(r RunResult, p netpath.PingResult) Document {
	rtts := make([]float64, 0, len(p.RTTs))
	for _, rtt := range p.RTTs {
		rtts = append(rtts, millis(rtt))
	}
	doc := header(KindPing, r)
	doc["target"] = p.Target
	doc["addr"] = p.Addr
	doc["count"] = p.Count
	doc["timeout"] = int(p.Timeout.Seconds())
	doc["packets_sent"] = p.Sent
	doc["packets_received"] = p.Received
	doc["packets_duplicate"] = p.Duplicates
	doc["packet_loss"] = p.Loss
	doc["rtt_min_ms"] = millis(p.MinRTT)
	doc["rtt_avg_ms"] = millis(p.AvgRTT)
	doc["rtt_max_ms"] = millis(p.MaxRTT)
	doc["rtt_stddev_ms"] = millis(p.StdDevRTT)
	doc["rtts_ms"] = rtts
	doc["time_start"] = p.Started.Unix()
	doc["time_end"] = p.Finished.Unix()
	if p.Err != "" {
		doc["error"] = p.Err
	}
	return doc
}

// BuildTracerouteDocument creates the traceroute document of one run.
func BuildTracerouteDocument(r RunResult, tr netpath.TraceResult) Document {
	hops := make([]map[string]any, 0, len(tr.Hops))
	for _, h := range tr.Hops {
		rtts := make([]float64, 0, len(h.RTTs))
		for _, rtt := range h.RTTs {
			rtts = append(rtts, millis(rtt))
		}
		hops = append(hops, map[string]any{
			"ttl":      h.TTL,
			"host":     h.Host,
			"addr":     h.Addr,
			"as":       h.AS,
			"rtts_ms":  rtts,
			"timeouts": h.Timeouts,
		})
	}
	doc := header(KindTraceroute, r)
	doc["target"] = tr.Target
	doc["hops"] = hops
	doc["raw"] = tr.Raw
	doc["time_start"] = tr.Started.Unix()
	doc["time_end"] = tr.Finished.Unix()
	if tr.Err != "" {
		doc["error"] = tr.Err
	}
	return doc
}

// DocumentName returns the file name for the document of kind for r:
// {dataid}_NODE.{node}_INTERFACE.{if}_PLAYER.{player}_TIME.{ts}_SESSION.{sid}_{kind}.json.
func DocumentName(r RunResult, meta DocumentMeta, kind DocumentKind) string {
	return fmt.Sprintf("%s_NODE.%s_INTERFACE.%s_PLAYER.%s_TIME.%s_SESSION.%s_%s.json",
		meta.DataID,
		meta.NodeID,
		meta.Interface,
		r.Backend,
		r.Started.UTC().Format(TimeFormat),
		r.SessionID(),
		kind,
	)
}

// WriteDocument writes doc as one JSON line. Keys are sorted.
func WriteDocument(w io.Writer, doc Document) error {
	data, err := json.Marshal(doc)
	if err != nil {
		return fmt.Errorf("encode %s document: %w", doc.Kind(), err)
	}
	data = append(data, '\n')
	if _, err := w.Write(data); err != nil {
		return fmt.Errorf("write %s document: %w", doc.Kind(), err)
	}
	return nil
}
