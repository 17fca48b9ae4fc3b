package tui

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/lipgloss"

	"github.com/randomizedcoder/go-abr-harness/internal/stats"
)

// =============================================================================
// Main View Rendering
// =============================================================================

// renderSummaryView renders the main dashboard.
func (m Model) renderSummaryView() string {
	sections := []string{
		m.renderHeader(),
		m.renderProgress(),
	}

	if m.stats != nil && m.stats.Runs > 0 {
		sections = append(sections, m.renderOutcomes())
		sections = append(sections, m.renderPlaybackHealth())
	}
	if len(m.console) > 0 {
		sections = append(sections, m.renderConsole())
	}

	sections = append(sections, m.renderFooter())
	return lipgloss.JoinVertical(lipgloss.Left, sections...)
}

// renderDetailedView renders the recent runs table.
func (m Model) renderDetailedView() string {
	return lipgloss.JoinVertical(lipgloss.Left,
		m.renderHeader(),
		m.renderRunTable(),
		m.renderFooter(),
	)
}

// =============================================================================
// Header
// =============================================================================

func (m Model) renderHeader() string {
	header := fmt.Sprintf(
		" go-abr-harness │ %s │ %s │ Runs: %d/%d │ Elapsed: %s ",
		GetHealthLabel(m.FailureRate()),
		m.mode,
		m.CompletedRuns(),
		m.plannedRuns,
		stats.FormatDuration(m.Elapsed()),
	)
	return headerStyle.Width(m.width).Render(header)
}

// =============================================================================
// Progress Section
// =============================================================================

func (m Model) renderProgress() string {
	barWidth := m.width - 30
	if barWidth < 20 {
		barWidth = 20
	}
	progressBar := RenderProgressBar(m.Progress(), barWidth)

	var status string
	switch {
	case m.plannedRuns > 0 && m.CompletedRuns() >= m.plannedRuns:
		status = statusOK.Render("✓ Batch complete")
	case m.current != nil:
		abr := m.current.Spec.EffectiveABR()
		if abr == "" {
			abr = "default"
		}
		status = statusInfo.Render(fmt.Sprintf("Playing run %d/%d: %s (%s)",
			m.current.Index+1, m.plannedRuns, m.current.Spec.Player, abr))
	default:
		status = statusInfo.Render("Waiting for the first run...")
	}

	content := lipgloss.JoinVertical(lipgloss.Left,
		sectionHeaderStyle.Render("Batch Progress"),
		progressBar,
		status,
	)
	return boxStyle.Width(m.width - 2).Render(content)
}

// =============================================================================
// Outcomes
// =============================================================================

func (m Model) renderOutcomes() string {
	s := m.stats

	header := tableHeaderStyle.Render(fmt.Sprintf("%-10s %5s %10s %12s %7s %7s",
		"Player", "Runs", "Completed", "No Playback", "Failed", "Stalls"))

	rows := []string{header}
	for i, name := range s.Backends() {
		b := s.PerBackend[name]
		rowStyle := tableRowEvenStyle
		if i%2 == 1 {
			rowStyle = tableRowOddStyle
		}
		rows = append(rows, lipgloss.JoinHorizontal(lipgloss.Left,
			rowStyle.Render(fmt.Sprintf("%-10s %5d ", name, b.Runs)),
			GetOutcomeStyle(stats.OutcomeCompleted).Render(fmt.Sprintf("%10d ", b.Outcomes[stats.OutcomeCompleted])),
			GetOutcomeStyle(stats.OutcomeNoPlayback).Render(fmt.Sprintf("%12d ", b.Outcomes[stats.OutcomeNoPlayback])),
			GetOutcomeStyle(stats.OutcomeFailed).Render(fmt.Sprintf("%7d ", b.Outcomes[stats.OutcomeFailed])),
			GetStallStyle(b.Stalls).Render(fmt.Sprintf("%7d", b.Stalls)),
		))
	}

	content := lipgloss.JoinVertical(lipgloss.Left,
		append([]string{sectionHeaderStyle.Render("Outcomes by Player")}, rows...)...,
	)
	return boxStyle.Width(m.width - 2).Render(content)
}

// =============================================================================
// Playback Health
// =============================================================================

func (m Model) renderPlaybackHealth() string {
	s := m.stats

	rows := []string{
		RenderKeyValue("Startup P50", stats.FormatMs(s.StartupP50)),
		RenderKeyValue("Startup P95", stats.FormatMs(s.StartupP95)),
		RenderKeyValue("Startup Max", stats.FormatMs(s.StartupMax)),
		RenderKeyValue("Stalls / run P50", fmt.Sprintf("%.1f", s.StallsP50)),
		RenderKeyValue("Stalls / run P95", fmt.Sprintf("%.1f", s.StallsP95)),
		RenderKeyValue("Quality switches", stats.FormatNumber(int64(s.TotalQualitySwitches))),
	}
	if s.StartupSamples == 0 {
		rows = rows[3:]
	}

	content := lipgloss.JoinVertical(lipgloss.Left,
		append([]string{sectionHeaderStyle.Render("Playback Health")}, rows...)...,
	)
	return boxStyle.Width(m.width - 2).Render(content)
}

// =============================================================================
// Console
// =============================================================================

func (m Model) renderConsole() string {
	maxLen := m.width - 6
	if maxLen < 20 {
		maxLen = 20
	}

	rows := make([]string, 0, len(m.console))
	for _, line := range m.console {
		rows = append(rows, GetConsoleLineStyle(line).Render(truncate(line, maxLen)))
	}

	title := "Console"
	if m.current != nil {
		title = fmt.Sprintf("Console (%s)", m.current.Spec.Player)
	}
	content := lipgloss.JoinVertical(lipgloss.Left,
		append([]string{sectionHeaderStyle.Render(title)}, rows...)...,
	)
	return boxStyle.Width(m.width - 2).Render(content)
}

// =============================================================================
// Recent Runs
// =============================================================================

func (m Model) renderRunTable() string {
	header := tableHeaderStyle.Render(fmt.Sprintf("%-4s %-10s %-14s %-11s %9s %6s %-36s",
		"#", "Player", "Strategy", "Outcome", "Startup", "Stalls", "Session"))

	maxRows := m.height - 10
	if maxRows < 5 {
		maxRows = 5
	}

	recent := m.stats.Recent
	if len(recent) > maxRows {
		recent = recent[len(recent)-maxRows:]
	}

	rows := []string{header}
	for i, r := range recent {
		rowStyle := tableRowEvenStyle
		if i%2 == 1 {
			rowStyle = tableRowOddStyle
		}
		strategy := r.Strategy
		if strategy == "" {
			strategy = "-"
		}
		rows = append(rows, lipgloss.JoinHorizontal(lipgloss.Left,
			rowStyle.Render(fmt.Sprintf("%-4d %-10s %-14s ", r.Index+1, r.Backend, strategy)),
			GetOutcomeStyle(r.Outcome).Render(fmt.Sprintf("%-11s ", r.Outcome)),
			rowStyle.Render(fmt.Sprintf("%9s ", stats.FormatMs(r.StartupDelay))),
			GetStallStyle(r.Stalls).Render(fmt.Sprintf("%6d ", r.Stalls)),
			rowStyle.Render(fmt.Sprintf("%-36s", r.SessionID())),
		))
	}

	content := lipgloss.JoinVertical(lipgloss.Left,
		append([]string{sectionHeaderStyle.Render("Recent Runs")}, rows...)...,
	)
	return boxStyle.Width(m.width - 2).Render(content)
}

// =============================================================================
// Footer
// =============================================================================

func (m Model) renderFooter() string {
	shortcuts := []string{
		"q: quit",
		"d: toggle details",
		"r: refresh",
	}

	right := "Manifest: " + m.manifestURL
	if m.metricsAddr != "" {
		right = "Metrics: http://" + m.metricsAddr + "/metrics"
	}
	maxLen := m.width - 50
	if maxLen > 10 {
		right = truncate(right, maxLen)
	}

	left := dimStyle.Render(strings.Join(shortcuts, " │ "))
	rightText := dimStyle.Render(right)

	padding := m.width - lipgloss.Width(left) - lipgloss.Width(rightText) - 2
	if padding < 1 {
		padding = 1
	}

	return footerStyle.Render(
		lipgloss.JoinHorizontal(lipgloss.Left,
			left,
			strings.Repeat(" ", padding),
			rightText,
		),
	)
}

// truncate shortens s to max runes, marking the cut with "...".
func truncate(s string, max int) string {
	r := []rune(s)
	if len(r) <= max {
		return s
	}
	if max <= 3 {
		return string(r[:max])
	}
	return string(r[:max-3]) + "..."
}
