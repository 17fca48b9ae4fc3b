// Package preflight provides startup validation checks.
package preflight

import (
	"context"
	"fmt"
	"io"
	"os"
	"strings"
	"syscall"

	"github.com/randomizedcoder/go-abr-harness/internal/browser"
	"github.com/randomizedcoder/go-abr-harness/internal/engine"
)

// Check represents the result of a single preflight check.
type Check struct {
	Name     string // Name of the check
	Required int    // Required value (if applicable)
	Actual   int    // Actual value found
	Passed   bool   // Whether the check passed
	Warning  bool   // True if it's a warning (non-fatal)
	Message  string // Additional context
}

// Result holds the results of all preflight checks.
type Result struct {
	Checks []Check
	Passed bool
}

// String returns a human-readable summary of the check.
func (c Check) String() string {
	status := "✓"
	if !c.Passed {
		status = "✗"
	} else if c.Warning {
		status = "⚠"
	}

	if c.Required > 0 {
		return fmt.Sprintf("  %s %s: %d available (need %d)", status, c.Name, c.Actual, c.Required)
	}
	return fmt.Sprintf("  %s %s: %s", status, c.Name, c.Message)
}

// Options selects which checks run and with what inputs.
type Options struct {
	// Browser enables the Chrome and process checks.
	Browser    bool
	ChromePath string
	DebugURL   string

	ManifestURL string
	Loader      engine.Loader

	// UsesBitmovin enables the analytics key warning.
	UsesBitmovin bool
	LicenseKey   string
}

// RunAll executes all preflight checks that apply to opts.
func RunAll(ctx context.Context, opts Options) *Result {
	result := &Result{
		Checks: make([]Check, 0, 5),
		Passed: true,
	}
	add := func(c Check) {
		result.Checks = append(result.Checks, c)
		if !c.Passed {
			result.Passed = false
		}
	}

	add(checkFileDescriptors(opts.Browser))
	if opts.Loader != nil {
		add(checkManifest(ctx, opts.Loader, opts.ManifestURL))
	}
	if opts.Browser {
		add(checkProcessLimit())
		add(checkChrome(opts.ChromePath, opts.DebugURL))
	}
	if opts.UsesBitmovin {
		add(checkLicenseKey(opts.LicenseKey))
	}
	return result
}

// checkFileDescriptors verifies sufficient file descriptors are available.
func checkFileDescriptors(browserMode bool) Check {
	var limit syscall.Rlimit
	if err := syscall.Getrlimit(syscall.RLIMIT_NOFILE, &limit); err != nil {
		return Check{
			Name:    "file_descriptors",
			Passed:  true,
			Warning: true,
			Message: fmt.Sprintf("unable to check: %v", err),
		}
	}

	// Chrome keeps a few hundred descriptors open per browser instance.
	required := 64
	if browserMode {
		required = 1024
	}
	actual := int(limit.Cur)

	return Check{
		Name:     "file_descriptors",
		Required: required,
		Actual:   actual,
		Passed:   actual >= required,
		Message:  fmt.Sprintf("ulimit -n %d (need %d)", actual, required),
	}
}

// checkProcessLimit verifies Chrome can spawn its helper processes.
func checkProcessLimit() Check {
	const required = 256

	data, err := os.ReadFile("/proc/self/limits")
	if err != nil {
		return Check{
			Name:    "process_limit",
			Passed:  true,
			Warning: true,
			Message: "unable to check (non-Linux or restricted)",
		}
	}

	actual := parseMaxProcesses(string(data))
	if actual == 0 {
		return Check{
			Name:    "process_limit",
			Passed:  true,
			Warning: true,
			Message: "unable to determine (assuming OK)",
		}
	}

	return Check{
		Name:     "process_limit",
		Required: required,
		Actual:   actual,
		Passed:   actual >= required,
		Message:  fmt.Sprintf("ulimit -u %d (need %d)", actual, required),
	}
}

// parseMaxProcesses reads the soft "Max processes" limit from the contents
// of /proc/self/limits. It returns 0 when the line is missing.
func parseMaxProcesses(limits string) int {
	for _, line := range strings.Split(limits, "\n") {
		if !strings.HasPrefix(line, "Max processes") {
			continue
		}
		fields := strings.Fields(line)
		if len(fields) < 4 {
			return 0
		}
		if fields[2] == "unlimited" {
			return 1_000_000
		}
		var n int
		fmt.Sscanf(fields[2], "%d", &n)
		return n
	}
	return 0
}

// checkManifest verifies the manifest loads and has video representations.
func checkManifest(ctx context.Context, loader engine.Loader, uri string) Check {
	m, err := loader.Load(ctx, uri)
	if err != nil {
		return Check{
			Name:    "manifest",
			Passed:  false,
			Message: err.Error(),
		}
	}

	labels := make([]string, 0, len(m.Representations))
	for _, r := range m.Representations {
		labels = append(labels, r.String())
	}
	if len(labels) > 4 {
		labels = append(labels[:2], "...", labels[len(labels)-1])
	}
	return Check{
		Name:   "manifest",
		Passed: true,
		Message: fmt.Sprintf("%d representations [%s], %s",
			len(m.Representations), strings.Join(labels, " "), m.Duration),
	}
}

// checkChrome verifies a Chrome binary is available, unless an already
// running instance is used.
func checkChrome(path, debugURL string) Check {
	if debugURL != "" {
		return Check{
			Name:    "chrome",
			Passed:  true,
			Message: "attaching to " + debugURL,
		}
	}
	found, err := browser.FindChrome(path)
	if err != nil {
		return Check{
			Name:    "chrome",
			Passed:  false,
			Message: err.Error(),
		}
	}
	return Check{
		Name:    "chrome",
		Passed:  true,
		Message: "found at " + found,
	}
}

// checkLicenseKey warns when the bitmovin analytics key is missing. The
// player still loads; only the collector rejects the impressions.
func checkLicenseKey(key string) Check {
	if key == "" {
		return Check{
			Name:    "analytics_key",
			Passed:  true,
			Warning: true,
			Message: "no --license-key set; bitmovin impressions are unauthenticated",
		}
	}
	return Check{
		Name:    "analytics_key",
		Passed:  true,
		Message: "set",
	}
}

// PrintResults writes the preflight check results to w.
func PrintResults(w io.Writer, result *Result) {
	fmt.Fprintln(w, "Preflight checks:")
	for _, check := range result.Checks {
		fmt.Fprintln(w, check.String())
		if !check.Passed {
			fmt.Fprintf(w, "    Fix: %s\n", suggestFix(check.Name))
		}
	}
	fmt.Fprintln(w)
}

// suggestFix returns a suggestion for fixing a failed check.
func suggestFix(name string) string {
	switch name {
	case "file_descriptors":
		return "ulimit -n 4096 (or edit /etc/security/limits.conf)"
	case "process_limit":
		return "ulimit -u 4096 (or edit /etc/security/limits.conf)"
	case "manifest":
		return "check --manifest and network access to the CDN"
	case "chrome":
		return "install Chrome or Chromium, or pass --chrome / --chrome-debug-url"
	default:
		return "see documentation"
	}
}
