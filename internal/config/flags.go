package config

import (
	"fmt"
	"io"

	"github.com/spf13/pflag"
)

// flagCategories groups the run flags for the usage text.
var flagCategories = []struct {
	title string
	names []string
}{
	{"Experiment", []string{"mode", "batch", "player", "abr", "cdn-provider", "experiment-name", "title", "user-id", "video-id", "container-version", "randomize", "seed", "repeat"}},
	{"Playback", []string{"manifest", "duration", "time-between-runs", "run-jitter", "license-key"}},
	{"Engine", []string{"speed", "link", "link-loop", "link-rtt", "max-buffer", "timeout", "user-agent"}},
	{"Browser Mode", []string{"page-stub", "chrome", "headless", "chrome-debug-url"}},
	{"Network Path", []string{"ping-target", "ping-count", "ping-timeout", "ping-privileged", "traceroute-target"}},
	{"Analytics", []string{"analytics-out", "analytics-buffer"}},
	{"Run Summaries", []string{"summary", "data-id", "node-id", "interface"}},
	{"Observability", []string{"metrics", "metrics-dump", "tui"}},
	{"Diagnostics", []string{"check", "skip-preflight"}},
}

// RegisterFlags binds the run flags to cfg. Defaults are cfg's current
// values.
func RegisterFlags(fs *pflag.FlagSet, cfg *Config) {
	// Experiment
	fs.StringVar(&cfg.Mode, "mode", cfg.Mode, `Run mode: "harness" or "browser"`)
	fs.StringVar(&cfg.BatchFile, "batch", cfg.BatchFile, "YAML batch file (default: the built-in player/ABR matrix)")
	fs.StringVar(&cfg.Player, "player", cfg.Player, "Run a single player: bitmovin, dashjs, shaka")
	fs.StringVar(&cfg.ABR, "abr", cfg.ABR, "ABR algorithm for --player: abrDynamic, abrBola, abrThroughput")
	fs.StringVar(&cfg.CDNProvider, "cdn-provider", cfg.CDNProvider, "CDN provider dimension (customData1)")
	fs.StringVar(&cfg.ExperimentName, "experiment-name", cfg.ExperimentName, "Experiment name dimension (customData3)")
	fs.StringVar(&cfg.Title, "title", cfg.Title, "Session title")
	fs.StringVar(&cfg.UserID, "user-id", cfg.UserID, "Session user id")
	fs.StringVar(&cfg.VideoID, "video-id", cfg.VideoID, "Session video id")
	fs.StringVar(&cfg.ContainerVersion, "container-version", cfg.ContainerVersion, "Container version dimension (customData4)")
	fs.BoolVar(&cfg.Randomize, "randomize", cfg.Randomize, "Shuffle the run order")
	fs.Int64Var(&cfg.Seed, "seed", cfg.Seed, "Seed for --randomize and run jitter")
	fs.IntVar(&cfg.Repeat, "repeat", cfg.Repeat, "Run the batch this many times")

	// Playback
	fs.StringVar(&cfg.ManifestURL, "manifest", cfg.ManifestURL, "DASH manifest URL")
	fs.DurationVar(&cfg.Duration, "duration", cfg.Duration, "Maximum playback time per run")
	fs.DurationVar(&cfg.TimeBetweenRuns, "time-between-runs", cfg.TimeBetweenRuns, "Pause between runs")
	fs.DurationVar(&cfg.RunJitter, "run-jitter", cfg.RunJitter, "Random jitter added to the pause between runs")
	fs.StringVar(&cfg.LicenseKey, "license-key", cfg.LicenseKey, "Player and analytics license key")

	// Engine
	fs.Float64Var(&cfg.Speed, "speed", cfg.Speed, "Playback speed relative to real time (0 = as fast as possible)")
	fs.StringVar(&cfg.LinkProfile, "link", cfg.LinkProfile, `Link bandwidth in kbit/s, or steps "5000:10s,1000:5s"`)
	fs.BoolVar(&cfg.LinkLoop, "link-loop", cfg.LinkLoop, "Repeat the link profile")
	fs.DurationVar(&cfg.LinkRTT, "link-rtt", cfg.LinkRTT, "Link round trip time per request")
	fs.DurationVar(&cfg.MaxBuffer, "max-buffer", cfg.MaxBuffer, "Forward buffer target")
	fs.DurationVar(&cfg.Timeout, "timeout", cfg.Timeout, "Manifest request timeout")
	fs.StringVar(&cfg.UserAgent, "user-agent", cfg.UserAgent, "HTTP User-Agent header")

	// Browser mode
	fs.StringVar(&cfg.PageStub, "page-stub", cfg.PageStub, "Base URL of the deployed player pages")
	fs.StringVar(&cfg.ChromePath, "chrome", cfg.ChromePath, "Path to the Chrome binary (default: search PATH)")
	fs.BoolVar(&cfg.Headless, "headless", cfg.Headless, "Run Chrome headless")
	fs.StringVar(&cfg.DebugURL, "chrome-debug-url", cfg.DebugURL, "Attach to a running Chrome (e.g. http://localhost:9222)")

	// Network path
	fs.StringVar(&cfg.PingTarget, "ping-target", cfg.PingTarget, "Ping this host before each run (batch files may set ping_target per run)")
	fs.IntVar(&cfg.PingCount, "ping-count", cfg.PingCount, "Echo requests per ping")
	fs.DurationVar(&cfg.PingTimeout, "ping-timeout", cfg.PingTimeout, "Wait for each echo reply")
	fs.BoolVar(&cfg.PingPrivileged, "ping-privileged", cfg.PingPrivileged, "Send raw ICMP (needs CAP_NET_RAW) instead of datagram pings")
	fs.StringVar(&cfg.TracerouteTarget, "traceroute-target", cfg.TracerouteTarget, "Run traceroute to this host before each run")

	// Analytics
	fs.StringVar(&cfg.AnalyticsOut, "analytics-out", cfg.AnalyticsOut, `Write analytics samples as NDJSON ("-" for stdout)`)
	fs.IntVar(&cfg.AnalyticsBufferSize, "analytics-buffer", cfg.AnalyticsBufferSize, "Analytics samples to queue before dropping")
	// Hidden advanced flag.
	fs.Float64Var(&cfg.AnalyticsDropThreshold, "analytics-drop-threshold", cfg.AnalyticsDropThreshold, "")
	_ = fs.MarkHidden("analytics-drop-threshold")

	// Run summaries
	fs.BoolVar(&cfg.Summary, "summary", cfg.Summary, "Print a JSON summary document per run on stdout")
	fs.StringVar(&cfg.DataID, "data-id", cfg.DataID, "Data id used in summary names")
	fs.StringVar(&cfg.NodeID, "node-id", cfg.NodeID, "Node id used in summary names")
	fs.StringVar(&cfg.Interface, "interface", cfg.Interface, "Interface name used in summary names")

	// Observability
	fs.StringVar(&cfg.MetricsAddr, "metrics", cfg.MetricsAddr, "Prometheus metrics address (empty = disabled)")
	fs.BoolVar(&cfg.MetricsDump, "metrics-dump", cfg.MetricsDump, "Print the final metrics in text format on exit")
	fs.BoolVar(&cfg.TUIEnabled, "tui", cfg.TUIEnabled, "Show the live terminal dashboard")

	// Diagnostics
	fs.BoolVar(&cfg.Check, "check", cfg.Check, "Validate config and run every player once for 10 seconds")
	fs.BoolVar(&cfg.SkipPreflight, "skip-preflight", cfg.SkipPreflight, "Skip preflight checks")
}

// PrintUsage writes the run flags grouped by category.
func PrintUsage(w io.Writer, fs *pflag.FlagSet) {
	for i, cat := range flagCategories {
		if i > 0 {
			fmt.Fprintln(w)
		}
		fmt.Fprintf(w, "%s Flags:\n", cat.title)
		printFlagCategory(w, fs, cat.names)
	}
}

// printFlagCategory prints the named flags that exist and are not hidden.
func printFlagCategory(w io.Writer, fs *pflag.FlagSet, names []string) {
	for _, name := range names {
		f := fs.Lookup(name)
		if f == nil || f.Hidden {
			continue
		}
		varname, usage := pflag.UnquoteUsage(f)
		fmt.Fprintf(w, "  --%s %s\n    \t%s", f.Name, varname, usage)
		if showDefault(f) {
			fmt.Fprintf(w, " (default %s)", f.DefValue)
		}
		fmt.Fprintln(w)
	}
}

func showDefault(f *pflag.Flag) bool {
	switch f.DefValue {
	case "", "false", "0", "0s", "[]":
		return false
	}
	return true
}
