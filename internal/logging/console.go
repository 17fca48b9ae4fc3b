package logging

import (
	"context"
	"log/slog"
	"regexp"
	"strings"
	"sync"
	"time"
)

const (
	// MaxLineLength is the maximum length of a console line before truncation.
	MaxLineLength = 4096

	// MaxBufferedLines is the number of recent lines kept per run.
	MaxBufferedLines = 100
)

// Console console types as reported by the page.
const (
	ConsoleLog     = "log"
	ConsoleInfo    = "info"
	ConsoleWarning = "warning"
	ConsoleError   = "error"
	ConsoleDebug   = "debug"
)

// sessionIDPrefix is how player pages print the correlation id.
const sessionIDPrefix = "sessionID = "

// ConsoleEntry is one recorded console line.
type ConsoleEntry struct {
	Time time.Time
	Type string
	Line string
}

// Console collects the console output of one player run. It keeps the
// most recent lines for the exit summary and the dashboard, and logs them
// at a level derived from their content.
type Console struct {
	player  string
	logger  *slog.Logger
	verbose bool

	mu        sync.Mutex
	buffer    []ConsoleEntry
	bufIdx    int
	sessionID string
}

// NewConsole creates a console for one run of player.
func NewConsole(player string, logger *slog.Logger, verbose bool) *Console {
	if logger == nil {
		logger = slog.Default()
	}
	return &Console{
		player:  player,
		logger:  logger,
		verbose: verbose,
		buffer:  make([]ConsoleEntry, MaxBufferedLines),
	}
}

// HandleLine records one console line of the given console type.
func (c *Console) HandleLine(consoleType, line string) {
	if len(line) > MaxLineLength {
		line = line[:MaxLineLength] + "...(truncated)"
	}

	c.mu.Lock()
	c.buffer[c.bufIdx] = ConsoleEntry{Time: time.Now(), Type: consoleType, Line: line}
	c.bufIdx = (c.bufIdx + 1) % MaxBufferedLines
	if id, ok := strings.CutPrefix(line, sessionIDPrefix); ok {
		c.sessionID = strings.TrimSpace(id)
	}
	c.mu.Unlock()

	level := classifyLine(consoleType, line)
	if !c.verbose && level == slog.LevelDebug {
		return
	}
	c.logger.Log(context.Background(), level, "player_console",
		"player", c.player,
		"type", consoleType,
		"line", line,
	)
}

// SessionID records the correlation id line.
func (c *Console) SessionID(id string) {
	c.HandleLine(ConsoleLog, sessionIDPrefix+id)
}

// LastSessionID returns the id from the most recent "sessionID = " line.
func (c *Console) LastSessionID() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.sessionID
}

// classifyLine determines the log level for a console line.
func classifyLine(consoleType, line string) slog.Level {
	switch consoleType {
	case ConsoleError:
		return slog.LevelWarn
	case ConsoleWarning:
		return slog.LevelWarn
	}

	lower := strings.ToLower(line)
	if strings.Contains(lower, "error") ||
		strings.Contains(lower, "failed") ||
		strings.Contains(lower, "net::err_") {
		return slog.LevelWarn
	}
	if strings.HasPrefix(line, sessionIDPrefix) {
		return slog.LevelInfo
	}
	return slog.LevelDebug
}

// RecentLines returns up to n of the most recent lines, oldest first.
func (c *Console) RecentLines(n int) []string {
	c.mu.Lock()
	defer c.mu.Unlock()

	if n > MaxBufferedLines {
		n = MaxBufferedLines
	}

	lines := make([]string, 0, n)
	for _, e := range c.recent(n) {
		lines = append(lines, e.Line)
	}
	return lines
}

// Entries returns every buffered entry, oldest first.
func (c *Console) Entries() []ConsoleEntry {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.recent(MaxBufferedLines)
}

// recent returns up to n of the newest entries. c.mu must be held.
func (c *Console) recent(n int) []ConsoleEntry {
	entries := make([]ConsoleEntry, 0, n)
	for i := 0; i < n; i++ {
		idx := (c.bufIdx - n + i + MaxBufferedLines) % MaxBufferedLines
		if c.buffer[idx].Line != "" {
			entries = append(entries, c.buffer[idx])
		}
	}
	return entries
}

// ErrorPatterns are the console patterns counted for the exit summary.
var ErrorPatterns = []string{
	"MEDIA_ERR",
	"net::ERR_",
	"shaka.util.Error",
	"SOURCE_COULD_NOT_LOAD_MANIFEST",
	"Failed to load",
}

// statusPattern matches HTTP error statuses as whole numbers, so that
// rendition names such as "720p@2500k" are not counted.
var statusPattern = regexp.MustCompile(`\b(403|404|500|503)\b`)

// CountErrors counts occurrences of error patterns in the buffer.
func (c *Console) CountErrors() map[string]int {
	c.mu.Lock()
	defer c.mu.Unlock()

	counts := make(map[string]int)
	for _, e := range c.buffer {
		line := e.Line
		if line == "" {
			continue
		}
		for _, pattern := range ErrorPatterns {
			if strings.Contains(line, pattern) {
				counts[pattern]++
			}
		}
		for _, code := range statusPattern.FindAllString(line, -1) {
			counts[code]++
		}
	}
	return counts
}
