package tui

import (
	"strings"
	"testing"

	"github.com/randomizedcoder/go-abr-harness/internal/stats"
)

// =============================================================================
// Tests: GetHealthStatus
// =============================================================================

func TestGetHealthStatus(t *testing.T) {
	tests := []struct {
		name        string
		failureRate float64
		want        HealthStatus
	}{
		{"no failures", 0, HealthOK},
		{"one in ten", 0.10, HealthDegraded},
		{"quarter", 0.25, HealthDegraded},
		{"third", 0.34, HealthFailing},
		{"all", 1, HealthFailing},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := GetHealthStatus(tt.failureRate); got != tt.want {
				t.Errorf("GetHealthStatus(%v) = %v, want %v", tt.failureRate, got, tt.want)
			}
		})
	}
}

func TestGetHealthLabel(t *testing.T) {
	tests := []struct {
		failureRate float64
		wantSubstr  string
	}{
		{0, "Healthy"},
		{0.1, "Some runs failed"},
		{0.5, "Runs failing"},
	}

	for _, tt := range tests {
		got := GetHealthLabel(tt.failureRate)
		if !strings.Contains(got, tt.wantSubstr) {
			t.Errorf("GetHealthLabel(%v) = %q, want to contain %q", tt.failureRate, got, tt.wantSubstr)
		}
	}
}

// =============================================================================
// Tests: outcome, stall and console styles
// =============================================================================

func TestGetOutcomeStyle(t *testing.T) {
	tests := []struct {
		outcome stats.Outcome
		want    string
	}{
		{stats.OutcomeCompleted, "good"},
		{stats.OutcomeNoPlayback, "warn"},
		{stats.OutcomeFailed, "bad"},
		{stats.Outcome("other"), "bad"},
	}
	styles := map[string]string{
		"good": valueGoodStyle.Render("x"),
		"warn": valueWarnStyle.Render("x"),
		"bad":  valueBadStyle.Render("x"),
	}

	for _, tt := range tests {
		got := GetOutcomeStyle(tt.outcome).Render("x")
		if got != styles[tt.want] {
			t.Errorf("GetOutcomeStyle(%s) rendered %q, want the %s style", tt.outcome, got, tt.want)
		}
	}
}

func TestGetStallStyle(t *testing.T) {
	tests := []struct {
		stalls int
		want   string
	}{
		{0, valueGoodStyle.Render("x")},
		{1, valueWarnStyle.Render("x")},
		{2, valueWarnStyle.Render("x")},
		{3, valueBadStyle.Render("x")},
	}

	for _, tt := range tests {
		if got := GetStallStyle(tt.stalls).Render("x"); got != tt.want {
			t.Errorf("GetStallStyle(%d) rendered %q, want %q", tt.stalls, got, tt.want)
		}
	}
}

func TestGetConsoleLineStyle(t *testing.T) {
	tests := []struct {
		line string
		want string
	}{
		{"Failed to load manifest", statusError.Render("x")},
		{"shaka.util.Error code 1001", statusError.Render("x")},
		{"STALL ---> #1", statusWarning.Render("x")},
		{"sessionID = abc", statusInfo.Render("x")},
		{"PLAY ---> playback started", mutedStyle.Render("x")},
	}

	for _, tt := range tests {
		if got := GetConsoleLineStyle(tt.line).Render("x"); got != tt.want {
			t.Errorf("GetConsoleLineStyle(%q) rendered %q, want %q", tt.line, got, tt.want)
		}
	}
}

// =============================================================================
// Tests: RenderProgressBar
// =============================================================================

func TestRenderProgressBar(t *testing.T) {
	tests := []struct {
		name        string
		progress    float64
		width       int
		wantPercent string
	}{
		{"empty", 0, 20, "0%"},
		{"half", 0.5, 20, "50%"},
		{"full", 1, 20, "100%"},
		{"over", 1.5, 20, "150%"},
		{"narrow", 0.5, 3, "50%"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := RenderProgressBar(tt.progress, tt.width)
			if !strings.Contains(got, tt.wantPercent) {
				t.Errorf("RenderProgressBar(%v, %d) = %q, want to contain %q", tt.progress, tt.width, got, tt.wantPercent)
			}
		})
	}
}

func TestRepeatChar(t *testing.T) {
	if got := repeatChar('█', 3); got != "███" {
		t.Errorf("repeatChar = %q", got)
	}
	if got := repeatChar('█', 0); got != "" {
		t.Errorf("repeatChar(0) = %q", got)
	}
	if got := repeatChar('█', -1); got != "" {
		t.Errorf("repeatChar(-1) = %q", got)
	}
}

func TestRenderKeyValue(t *testing.T) {
	got := RenderKeyValue("Startup P50", "420 ms")
	if !strings.Contains(got, "Startup P50:") || !strings.Contains(got, "420 ms") {
		t.Errorf("RenderKeyValue = %q", got)
	}
}
