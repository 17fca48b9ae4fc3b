package tui

import (
	"time"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/randomizedcoder/go-abr-harness/internal/experiment"
	"github.com/randomizedcoder/go-abr-harness/internal/stats"
)

// consoleLines is how many console lines of the current run are shown.
const consoleLines = 8

// =============================================================================
// Messages
// =============================================================================

// TickMsg is sent periodically to update the display.
type TickMsg time.Time

// StatsMsg carries updated statistics.
type StatsMsg struct {
	Stats *stats.AggregatedStats
}

// RunStartedMsg announces the run now playing.
type RunStartedMsg struct {
	Index int
	Spec  experiment.RunSpec
}

// QuitMsg signals the TUI should exit.
type QuitMsg struct{}

// =============================================================================
// Model
// =============================================================================

// Model represents the TUI state.
type Model struct {
	// Configuration
	plannedRuns int
	mode        string
	manifestURL string
	metricsAddr string

	// Current state
	stats        *stats.AggregatedStats
	current      *RunStartedMsg
	console      []string
	startTime    time.Time
	lastUpdate   time.Time
	detailedView bool

	// Display options
	width  int
	height int

	statsSource   StatsSource
	consoleSource ConsoleSource

	quitting bool
}

// StatsSource provides aggregated statistics.
type StatsSource interface {
	Aggregate() *stats.AggregatedStats
}

// ConsoleSource provides the console output of the current run.
type ConsoleSource interface {
	RecentLines(n int) []string
}

// Config holds TUI configuration.
type Config struct {
	PlannedRuns   int
	Mode          string
	ManifestURL   string
	MetricsAddr   string
	StatsSource   StatsSource
	ConsoleSource ConsoleSource
}

// New creates a new TUI model.
func New(cfg Config) Model {
	return Model{
		plannedRuns:   cfg.PlannedRuns,
		mode:          cfg.Mode,
		manifestURL:   cfg.ManifestURL,
		metricsAddr:   cfg.MetricsAddr,
		statsSource:   cfg.StatsSource,
		consoleSource: cfg.ConsoleSource,
		startTime:     time.Now(),
		lastUpdate:    time.Now(),
		width:         80,
		height:        24,
	}
}

// =============================================================================
// Bubble Tea Interface
// =============================================================================

// Init initializes the model.
func (m Model) Init() tea.Cmd {
	return tickCmd()
}

// Update handles messages.
func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		switch msg.String() {
		case "q", "ctrl+c", "esc":
			m.quitting = true
			return m, tea.Quit
		case "d":
			m.detailedView = !m.detailedView
			return m, nil
		case "r":
			m.refresh()
			return m, nil
		}

	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		return m, nil

	case TickMsg:
		m.refresh()
		return m, tickCmd()

	case StatsMsg:
		m.stats = msg.Stats
		m.lastUpdate = time.Now()
		return m, nil

	case RunStartedMsg:
		m.current = &msg
		m.console = nil
		return m, nil

	case QuitMsg:
		m.quitting = true
		return m, tea.Quit
	}

	return m, nil
}

// refresh pulls the latest state from the sources.
func (m *Model) refresh() {
	if m.statsSource != nil {
		m.stats = m.statsSource.Aggregate()
	}
	if m.consoleSource != nil {
		m.console = m.consoleSource.RecentLines(consoleLines)
	}
	m.lastUpdate = time.Now()
}

// View renders the TUI.
func (m Model) View() string {
	if m.quitting {
		return ""
	}

	if m.detailedView && m.stats != nil && len(m.stats.Recent) > 0 {
		return m.renderDetailedView()
	}
	return m.renderSummaryView()
}

// =============================================================================
// Commands
// =============================================================================

// tickCmd returns a command that sends a tick after 500ms.
func tickCmd() tea.Cmd {
	return tea.Tick(500*time.Millisecond, func(t time.Time) tea.Msg {
		return TickMsg(t)
	})
}

// =============================================================================
// Accessors
// =============================================================================

// Elapsed returns the time since the batch started.
func (m Model) Elapsed() time.Duration {
	return time.Since(m.startTime)
}

// CompletedRuns returns the number of finished runs.
func (m Model) CompletedRuns() int {
	if m.stats == nil {
		return 0
	}
	return m.stats.Runs
}

// PlannedRuns returns the number of runs in the batch.
func (m Model) PlannedRuns() int {
	return m.plannedRuns
}

// Progress returns the batch progress (0.0 to 1.0).
func (m Model) Progress() float64 {
	if m.plannedRuns == 0 {
		return 0
	}
	return float64(m.CompletedRuns()) / float64(m.plannedRuns)
}

// FailureRate returns the share of finished runs that failed.
func (m Model) FailureRate() float64 {
	if m.stats == nil || m.stats.Runs == 0 {
		return 0
	}
	return float64(m.stats.Outcomes[stats.OutcomeFailed]) / float64(m.stats.Runs)
}

// =============================================================================
// Helper for external use
// =============================================================================

// SendStats sends a stats update to the TUI.
func SendStats(p *tea.Program, s *stats.AggregatedStats) {
	if p != nil {
		p.Send(StatsMsg{Stats: s})
	}
}

// SendRunStarted tells the TUI which run is playing.
func SendRunStarted(p *tea.Program, index int, spec experiment.RunSpec) {
	if p != nil {
		p.Send(RunStartedMsg{Index: index, Spec: spec})
	}
}

// SendQuit sends a quit message to the TUI.
func SendQuit(p *tea.Program) {
	if p != nil {
		p.Send(QuitMsg{})
	}
}
