// Package browser runs the deployed player pages in Chrome through the
// DevTools protocol. A run navigates to the page for one player backend,
// lets it play for the configured duration, captures its console output
// and reads the correlation id the page publishes in #sessionID.
package browser

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os/exec"
	"strconv"
	"strings"
	"time"

	"github.com/chromedp/cdproto/runtime"
	"github.com/chromedp/chromedp"

	"github.com/randomizedcoder/go-abr-harness/internal/experiment"
	"github.com/randomizedcoder/go-abr-harness/internal/logging"
)

// ErrChromeNotFound is returned when no Chrome binary can be located.
var ErrChromeNotFound = errors.New("chrome binary not found")

// chromeNames are searched on PATH when no binary is configured.
var chromeNames = []string{
	"google-chrome",
	"google-chrome-stable",
	"chromium",
	"chromium-browser",
	"headless-shell",
	"chrome",
}

// sessionIDScript reads the correlation id field without failing on pages
// that do not have one.
const sessionIDScript = `(function() {
	var el = document.getElementById("sessionID");
	return el && el.value ? String(el.value) : "";
})()`

// Config configures a PageRunner.
type Config struct {
	// Stub is the base URL of the player pages.
	Stub string

	// ChromePath overrides the Chrome binary.
	ChromePath string

	// DebugURL attaches to an already running Chrome instead of starting one.
	DebugURL string

	Headless bool

	// Duration is how long each page is left playing.
	Duration time.Duration

	// SettleTimeout bounds navigation and the session id read.
	SettleTimeout time.Duration

	Logger *slog.Logger
}

// PageResult is the outcome of one page run.
type PageResult struct {
	URL       string
	SessionID string // "" when the page published none
	Started   time.Time
	Finished  time.Time
}

// PageRunner drives player pages in Chrome.
type PageRunner struct {
	cfg    Config
	logger *slog.Logger
}

// NewPageRunner creates a runner.
func NewPageRunner(cfg Config) *PageRunner {
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	if cfg.SettleTimeout <= 0 {
		cfg.SettleTimeout = 30 * time.Second
	}
	return &PageRunner{cfg: cfg, logger: cfg.Logger}
}

// FindChrome returns the configured binary or the first known Chrome
// binary on PATH.
func FindChrome(configured string) (string, error) {
	if configured != "" {
		path, err := exec.LookPath(configured)
		if err != nil {
			return "", fmt.Errorf("%w: %s", ErrChromeNotFound, configured)
		}
		return path, nil
	}
	for _, name := range chromeNames {
		if path, err := exec.LookPath(name); err == nil {
			return path, nil
		}
	}
	return "", ErrChromeNotFound
}

// allocatorOptions builds the exec allocator options for a local Chrome.
func (r *PageRunner) allocatorOptions() []chromedp.ExecAllocatorOption {
	opts := append([]chromedp.ExecAllocatorOption{}, chromedp.DefaultExecAllocatorOptions[:]...)
	opts = append(opts,
		chromedp.Flag("headless", r.cfg.Headless),
		chromedp.Flag("autoplay-policy", "no-user-gesture-required"),
		chromedp.Flag("mute-audio", true),
	)
	if r.cfg.ChromePath != "" {
		opts = append(opts, chromedp.ExecPath(r.cfg.ChromePath))
	}
	return opts
}

// Run loads the page for backend with params and feeds its console output
// into console. The page is closed when Run returns.
func (r *PageRunner) Run(ctx context.Context, backend string, params map[string]string, console *logging.Console) (PageResult, error) {
	result := PageResult{
		URL:     experiment.PlayerURL(r.cfg.Stub, backend, params),
		Started: time.Now(),
	}

	var allocCtx context.Context
	var allocCancel context.CancelFunc
	if r.cfg.DebugURL != "" {
		allocCtx, allocCancel = chromedp.NewRemoteAllocator(ctx, r.cfg.DebugURL)
	} else {
		allocCtx, allocCancel = chromedp.NewExecAllocator(ctx, r.allocatorOptions()...)
	}
	defer allocCancel()

	taskCtx, taskCancel := chromedp.NewContext(allocCtx)
	defer taskCancel()

	chromedp.ListenTarget(taskCtx, func(ev any) {
		switch e := ev.(type) {
		case *runtime.EventConsoleAPICalled:
			console.HandleLine(string(e.Type), consoleText(e.Args))
		case *runtime.EventExceptionThrown:
			console.HandleLine(logging.ConsoleError, exceptionText(e.ExceptionDetails))
		}
	})

	r.logger.Info("page_navigating", "backend", backend, "url", result.URL)

	navCtx, navCancel := context.WithTimeout(taskCtx, r.cfg.SettleTimeout)
	err := chromedp.Run(navCtx, chromedp.Navigate(result.URL))
	navCancel()
	if err != nil {
		result.Finished = time.Now()
		return result, fmt.Errorf("navigate %s: %w", result.URL, err)
	}

	if err := chromedp.Run(taskCtx, chromedp.Sleep(r.cfg.Duration)); err != nil && ctx.Err() == nil {
		r.logger.Warn("page_wait_interrupted", "backend", backend, "error", err)
	}

	var id string
	if ctx.Err() == nil {
		readCtx, readCancel := context.WithTimeout(taskCtx, r.cfg.SettleTimeout)
		if err := chromedp.Run(readCtx, chromedp.Evaluate(sessionIDScript, &id)); err != nil {
			r.logger.Warn("session_id_read_failed", "backend", backend, "error", err)
		}
		readCancel()
	}

	// Fall back to the id the page printed.
	if id == "" {
		id = console.LastSessionID()
	}
	result.SessionID = id
	result.Finished = time.Now()

	r.logger.Info("page_finished",
		"backend", backend,
		"session_id", id,
		"duration", result.Finished.Sub(result.Started),
	)
	return result, nil
}

// consoleText joins console call arguments the way DevTools prints them.
func consoleText(args []*runtime.RemoteObject) string {
	parts := make([]string, 0, len(args))
	for _, arg := range args {
		if arg == nil {
			continue
		}
		parts = append(parts, remoteObjectText(arg))
	}
	return strings.Join(parts, " ")
}

func remoteObjectText(obj *runtime.RemoteObject) string {
	if len(obj.Value) > 0 {
		raw := string(obj.Value)
		if s, err := strconv.Unquote(raw); err == nil {
			return s
		}
		return raw
	}
	if obj.Description != "" {
		return obj.Description
	}
	return string(obj.Type)
}

func exceptionText(d *runtime.ExceptionDetails) string {
	if d == nil {
		return "uncaught exception"
	}
	if d.Exception != nil && d.Exception.Description != "" {
		return d.Exception.Description
	}
	return d.Text
}
