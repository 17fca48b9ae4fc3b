package stats

import (
	"fmt"
	"sort"
	"strings"
	"time"
)

// SummaryConfig holds configuration for summary formatting.
type SummaryConfig struct {
	// Mode is "harness" or "browser".
	Mode string

	// ManifestURL is the stream the runs played.
	ManifestURL string

	// Duration is the total batch duration
	Duration time.Duration

	// MetricsAddr is the Prometheus metrics endpoint address
	MetricsAddr string

	// ShowRecentRuns lists the most recent runs with their session ids.
	ShowRecentRuns bool

	// AnalyticsDropped is the number of analytics samples the pipeline dropped.
	AnalyticsDropped int64
}

const (
	heavyRule = "═══════════════════════════════════════════════════════════════════════════════\n"
	lightRule = "───────────────────────────────────────────────────────────────────────────────\n"
)

// FormatExitSummary formats aggregated results for display at program exit.
func FormatExitSummary(s *AggregatedStats, cfg SummaryConfig) string {
	var b strings.Builder

	b.WriteString("\n")
	b.WriteString(heavyRule)
	b.WriteString("                          go-abr-harness Exit Summary\n")
	b.WriteString(heavyRule + "\n")

	fmt.Fprintf(&b, "Batch Duration:         %s\n", FormatDuration(cfg.Duration))
	if cfg.Mode != "" {
		fmt.Fprintf(&b, "Mode:                   %s\n", cfg.Mode)
	}
	if cfg.ManifestURL != "" {
		fmt.Fprintf(&b, "Manifest:               %s\n", cfg.ManifestURL)
	}
	if s == nil || s.Runs == 0 {
		b.WriteString("\n(No runs completed)\n\n")
		writeFooter(&b, cfg)
		return b.String()
	}
	fmt.Fprintf(&b, "Runs:                   %d of %d\n\n", s.Runs, s.PlannedRuns)

	section(&b, "Outcomes by Player")
	fmt.Fprintf(&b, "  %-12s %6s %10s %12s %8s %8s\n", "Player", "Runs", "Completed", "No Playback", "Failed", "Stalls")
	b.WriteString("  " + strings.Repeat("─", 62) + "\n")
	for _, name := range s.Backends() {
		bs := s.PerBackend[name]
		fmt.Fprintf(&b, "  %-12s %6d %10d %12d %8d %8d\n",
			name,
			bs.Runs,
			bs.Outcomes[OutcomeCompleted],
			bs.Outcomes[OutcomeNoPlayback],
			bs.Outcomes[OutcomeFailed],
			bs.Stalls,
		)
	}
	b.WriteString("\n")

	if strategies := formatStrategies(s); strategies != "" {
		section(&b, "Resolved ABR Strategies")
		b.WriteString(strategies)
		b.WriteString("\n")
	}

	section(&b, "Playback Health")
	if s.StartupSamples > 0 {
		fmt.Fprintf(&b, "  Startup P50:          %s\n", FormatMs(s.StartupP50))
		fmt.Fprintf(&b, "  Startup P95:          %s\n", FormatMs(s.StartupP95))
		fmt.Fprintf(&b, "  Startup Max:          %s\n", FormatMs(s.StartupMax))
	} else {
		b.WriteString("  Startup:              (no run started playback)\n")
	}
	fmt.Fprintf(&b, "  Stalls per Run P50:   %.1f\n", s.StallsP50)
	fmt.Fprintf(&b, "  Stalls per Run P95:   %.1f\n", s.StallsP95)
	fmt.Fprintf(&b, "  Total Stalls:         %d\n", s.TotalStalls)
	fmt.Fprintf(&b, "  Quality Switches:     %s\n\n", FormatNumber(int64(s.TotalQualitySwitches)))

	if len(s.ConsoleErrors) > 0 {
		section(&b, "Console Errors")
		patterns := make([]string, 0, len(s.ConsoleErrors))
		for p := range s.ConsoleErrors {
			patterns = append(patterns, p)
		}
		sort.Strings(patterns)
		for _, p := range patterns {
			fmt.Fprintf(&b, "  %-32s %d\n", p, s.ConsoleErrors[p])
		}
		b.WriteString("\n")
	}

	if cfg.ShowRecentRuns && len(s.Recent) > 0 {
		section(&b, "Recent Runs")
		for _, r := range s.Recent {
			fmt.Fprintf(&b, "  #%-3d %-9s %-14s %-11s %s\n",
				r.Index+1, r.Backend, strategyLabel(r.Strategy), r.Outcome, r.SessionID())
		}
		b.WriteString("\n")
	}

	writeFooter(&b, cfg)
	return b.String()
}

func section(b *strings.Builder, title string) {
	b.WriteString(lightRule)
	pad := (79 - len(title)) / 2
	if pad < 0 {
		pad = 0
	}
	b.WriteString(strings.Repeat(" ", pad) + title + "\n")
	b.WriteString(lightRule + "\n")
}

func writeFooter(b *strings.Builder, cfg SummaryConfig) {
	if cfg.AnalyticsDropped > 0 {
		fmt.Fprintf(b, "Analytics samples dropped: %s\n", FormatNumber(cfg.AnalyticsDropped))
	}
	if cfg.MetricsAddr != "" {
		fmt.Fprintf(b, "Metrics endpoint was: http://%s/metrics\n", cfg.MetricsAddr)
	}
	b.WriteString(heavyRule)
}

// formatStrategies lists strategy counts per backend.
func formatStrategies(s *AggregatedStats) string {
	var b strings.Builder
	for _, name := range s.Backends() {
		strategies := s.PerBackend[name].Strategies
		if len(strategies) == 0 {
			continue
		}
		keys := make([]string, 0, len(strategies))
		for k := range strategies {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		parts := make([]string, 0, len(keys))
		for _, k := range keys {
			parts = append(parts, fmt.Sprintf("%s=%d", k, strategies[k]))
		}
		fmt.Fprintf(&b, "  %-12s %s\n", name, strings.Join(parts, "  "))
	}
	return b.String()
}

func strategyLabel(s string) string {
	if s == "" {
		return "-"
	}
	return s
}

// =============================================================================
// Formatting Helper Functions (exported for reuse)
// =============================================================================

// FormatDuration formats a duration as HH:MM:SS.
func FormatDuration(d time.Duration) string {
	h := int(d.Hours())
	m := int(d.Minutes()) % 60
	s := int(d.Seconds()) % 60
	return fmt.Sprintf("%02d:%02d:%02d", h, m, s)
}

// FormatNumber formats a number with K/M suffixes for readability.
func FormatNumber(n int64) string {
	if n >= 1_000_000 {
		return fmt.Sprintf("%.1fM", float64(n)/1_000_000)
	}
	if n >= 1_000 {
		return fmt.Sprintf("%.1fK", float64(n)/1_000)
	}
	return fmt.Sprintf("%d", n)
}

// FormatMs formats a duration as milliseconds.
func FormatMs(d time.Duration) string {
	ms := d.Milliseconds()
	if ms == 0 && d > 0 {
		return fmt.Sprintf("%d µs", d.Microseconds())
	}
	return fmt.Sprintf("%d ms", ms)
}

// FormatPercent formats n of total as a percentage.
func FormatPercent(n, total int) string {
	if total <= 0 {
		return "0%"
	}
	return fmt.Sprintf("%d%%", n*100/total)
}
