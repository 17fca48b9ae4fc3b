package cli

import (
	"fmt"
	"io"
	"log/slog"

	"github.com/spf13/cobra"

	"github.com/randomizedcoder/go-abr-harness/internal/config"
	"github.com/randomizedcoder/go-abr-harness/internal/logging"
	"github.com/randomizedcoder/go-abr-harness/internal/orchestrator"
)

// RunOptions holds flags for the run command.
type RunOptions struct {
	*RootOptions
	Config *config.Config
}

// NewRunCommand creates the run command.
func NewRunCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &RunOptions{RootOptions: rootOpts, Config: config.DefaultConfig()}

	cmd := &cobra.Command{
		Use:   "run",
		Short: "Run a batch of player sessions",
		Long: `Run a batch of player sessions one after another and print an exit
summary. Without --batch or --player every backend is run once and dash.js
once per ABR algorithm.

Example:
  go-abr-harness run --player dashjs --abr abrBola --duration 30s
  go-abr-harness run --batch runs.yaml --randomize --summary
  go-abr-harness run --mode browser --page-stub http://localhost/players --tui`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runBatch(cmd, opts)
		},
	}

	config.RegisterFlags(cmd.Flags(), opts.Config)
	cmd.SetUsageFunc(func(c *cobra.Command) error {
		w := c.OutOrStderr()
		fmt.Fprintf(w, "Usage:\n  %s\n\n", c.UseLine())
		config.PrintUsage(w, c.LocalFlags())
		fmt.Fprintf(w, "\nGlobal Flags:\n%s", c.InheritedFlags().FlagUsages())
		return nil
	})

	return cmd
}

func runBatch(cmd *cobra.Command, opts *RunOptions) error {
	cfg := opts.Config
	cfg.Verbose = cfg.Verbose || opts.Verbose
	cfg.LogFormat = opts.LogFormat

	if err := config.Validate(cfg); err != nil {
		return fmt.Errorf("configuration error: %w", err)
	}

	// When the dashboard is up, log lines would tear the terminal
	var logger *slog.Logger
	if cfg.TUIEnabled {
		logger = logging.Discard()
	} else {
		logger = logging.NewLogger(cfg.LogFormat, "info", cfg.Verbose)
	}
	logging.SetDefault(logger)

	if cfg.Check {
		config.ApplyCheckMode(cfg)
		logger.Info("check_mode_enabled", "duration", cfg.Duration)
	}

	logger.Info("starting",
		"version", opts.Version,
		"mode", cfg.Mode,
		"manifest", cfg.ManifestURL,
		"metrics_addr", cfg.MetricsAddr,
	)

	out := cmd.OutOrStdout()
	if !cfg.TUIEnabled {
		printBanner(out, cfg)
	}

	orch, err := orchestrator.New(cfg, logger, orchestrator.Options{
		Version: opts.Version,
		Out:     out,
	})
	if err != nil {
		return err
	}
	return orch.Run(cmd.Context())
}

// printBanner prints the startup banner.
func printBanner(w io.Writer, cfg *config.Config) {
	fmt.Fprintln(w)
	fmt.Fprintln(w, "╔═══════════════════════════════════════════════════════════════════╗")
	fmt.Fprintln(w, "║                         go-abr-harness                            ║")
	fmt.Fprintln(w, "║        Adaptive Bitrate Experiments across DASH Players           ║")
	fmt.Fprintln(w, "╚═══════════════════════════════════════════════════════════════════╝")
	fmt.Fprintln(w)
	fmt.Fprintf(w, "  Mode:        %s\n", cfg.Mode)
	fmt.Fprintf(w, "  Manifest:    %s\n", cfg.ManifestURL)
	switch {
	case cfg.BatchFile != "":
		fmt.Fprintf(w, "  Batch:       %s (x%d)\n", cfg.BatchFile, cfg.Repeat)
	case cfg.Player != "":
		fmt.Fprintf(w, "  Player:      %s %s (x%d)\n", cfg.Player, cfg.ABR, cfg.Repeat)
	default:
		fmt.Fprintf(w, "  Batch:       built-in matrix (x%d)\n", cfg.Repeat)
	}
	fmt.Fprintf(w, "  Per run:     %s, %s between runs\n", cfg.Duration, cfg.TimeBetweenRuns)
	if cfg.Mode == config.ModeBrowser {
		fmt.Fprintf(w, "  Pages:       %s\n", cfg.PageStub)
	}
	if cfg.MetricsAddr != "" {
		fmt.Fprintf(w, "  Metrics:     http://%s/metrics\n", cfg.MetricsAddr)
	}
	fmt.Fprintln(w)
	fmt.Fprintln(w, "Press Ctrl+C to stop.")
	fmt.Fprintln(w)
}
