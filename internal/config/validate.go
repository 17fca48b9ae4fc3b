package config

import (
	"errors"
	"fmt"
	"net/url"
	"time"

	"github.com/randomizedcoder/go-abr-harness/internal/engine"
	"github.com/randomizedcoder/go-abr-harness/internal/player"
)

// ValidationError represents a configuration validation error.
type ValidationError struct {
	Field   string
	Message string
}

func (e ValidationError) Error() string {
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

// Validate checks the configuration for errors and inconsistencies.
// Returns nil if valid, or every problem found joined into one error.
func Validate(cfg *Config) error {
	var errs []error

	if cfg.Mode != ModeHarness && cfg.Mode != ModeBrowser {
		errs = append(errs, ValidationError{
			Field:   "mode",
			Message: fmt.Sprintf("must be %q or %q (got %q)", ModeHarness, ModeBrowser, cfg.Mode),
		})
	}

	if cfg.BatchFile != "" && cfg.Player != "" {
		errs = append(errs, ValidationError{
			Field:   "player",
			Message: "--player and --batch are mutually exclusive",
		})
	}
	if cfg.Player != "" {
		if _, err := player.ParseBackend(cfg.Player); err != nil {
			errs = append(errs, ValidationError{Field: "player", Message: err.Error()})
		}
	}

	// Unknown algorithms are not an error; they resolve to unsupported.
	if cfg.ABR != "" && cfg.Player == "" {
		errs = append(errs, ValidationError{
			Field:   "abr",
			Message: "--abr only applies with --player",
		})
	}

	if err := validateURL(cfg.ManifestURL); err != nil {
		errs = append(errs, ValidationError{Field: "manifest_url", Message: err.Error()})
	}

	if cfg.Mode == ModeBrowser {
		if err := validateURL(cfg.PageStub); err != nil {
			errs = append(errs, ValidationError{Field: "page_stub", Message: err.Error()})
		}
		if cfg.DebugURL != "" {
			if err := validateURL(cfg.DebugURL); err != nil {
				errs = append(errs, ValidationError{Field: "chrome_debug_url", Message: err.Error()})
			}
		}
	}

	if cfg.Duration <= 0 {
		errs = append(errs, ValidationError{
			Field:   "duration",
			Message: "must be positive",
		})
	}
	if cfg.TimeBetweenRuns < 0 {
		errs = append(errs, ValidationError{
			Field:   "time_between_runs",
			Message: "must not be negative",
		})
	}
	if cfg.RunJitter < 0 {
		errs = append(errs, ValidationError{
			Field:   "run_jitter",
			Message: "must not be negative",
		})
	}
	if cfg.Repeat < 1 {
		errs = append(errs, ValidationError{
			Field:   "repeat",
			Message: "must be at least 1",
		})
	}

	if cfg.Speed < 0 {
		errs = append(errs, ValidationError{
			Field:   "speed",
			Message: "must not be negative",
		})
	}
	if _, err := engine.ParseProfile(cfg.LinkProfile, cfg.LinkLoop); err != nil {
		errs = append(errs, ValidationError{Field: "link_profile", Message: err.Error()})
	}
	if cfg.MaxBuffer < time.Second {
		errs = append(errs, ValidationError{
			Field:   "max_buffer",
			Message: fmt.Sprintf("must be at least 1s (got %v)", cfg.MaxBuffer),
		})
	}
	if cfg.Timeout <= 0 {
		errs = append(errs, ValidationError{
			Field:   "timeout",
			Message: "must be positive",
		})
	}

	if cfg.PingCount < 1 {
		errs = append(errs, ValidationError{
			Field:   "ping_count",
			Message: "must be at least 1",
		})
	}
	if cfg.PingTimeout <= 0 {
		errs = append(errs, ValidationError{
			Field:   "ping_timeout",
			Message: "must be positive",
		})
	}

	if cfg.AnalyticsBufferSize < 1 {
		errs = append(errs, ValidationError{
			Field:   "analytics_buffer_size",
			Message: "must be at least 1",
		})
	}
	if cfg.AnalyticsDropThreshold <= 0 || cfg.AnalyticsDropThreshold > 1 {
		errs = append(errs, ValidationError{
			Field:   "analytics_drop_threshold",
			Message: fmt.Sprintf("must be in (0, 1] (got %v)", cfg.AnalyticsDropThreshold),
		})
	}

	validFormats := map[string]bool{"json": true, "text": true}
	if !validFormats[cfg.LogFormat] {
		errs = append(errs, ValidationError{
			Field:   "log_format",
			Message: fmt.Sprintf("must be 'json' or 'text' (got %q)", cfg.LogFormat),
		})
	}

	if len(errs) > 0 {
		return errors.Join(errs...)
	}
	return nil
}

// validateURL checks that the URL is absolute http or https.
func validateURL(rawURL string) error {
	if rawURL == "" {
		return errors.New("URL is required")
	}
	u, err := url.Parse(rawURL)
	if err != nil {
		return fmt.Errorf("invalid URL: %w", err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return fmt.Errorf("URL scheme must be http or https (got %q)", u.Scheme)
	}
	if u.Host == "" {
		return errors.New("URL must have a host")
	}
	return nil
}

// ApplyCheckMode modifies config for --check mode: one short pass over the
// batch with no pause between runs.
func ApplyCheckMode(cfg *Config) {
	cfg.Duration = 10 * time.Second
	cfg.TimeBetweenRuns = 0
	cfg.RunJitter = 0
	cfg.Repeat = 1
	cfg.Verbose = true
}
