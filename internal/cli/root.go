// Package cli implements the go-abr-harness command line.
package cli

import (
	"fmt"
	"slices"

	"github.com/spf13/cobra"
)

// RootOptions holds global flags for all commands.
type RootOptions struct {
	Verbose   bool
	LogFormat string // "json" | "text"
	Version   string
}

// ValidFormats defines the allowed log formats.
var ValidFormats = []string{"json", "text"}

// NewRootCommand creates the root command.
func NewRootCommand(version string) *cobra.Command {
	opts := &RootOptions{Version: version}

	cmd := &cobra.Command{
		Use:   "go-abr-harness",
		Short: "Adaptive bitrate experiments across DASH players",
		Long: `go-abr-harness plays a DASH stream through several player backends
with a requested ABR algorithm, tags every session with the experiment's
dimensions and reports how each player behaved.`,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			if !slices.Contains(ValidFormats, opts.LogFormat) {
				return fmt.Errorf("invalid log format %q: must be one of %v", opts.LogFormat, ValidFormats)
			}
			return nil
		},
	}

	cmd.PersistentFlags().BoolVarP(&opts.Verbose, "verbose", "v", false, "verbose output")
	cmd.PersistentFlags().StringVar(&opts.LogFormat, "log-format", "json", "log format (json|text)")

	cmd.AddCommand(NewRunCommand(opts))
	cmd.AddCommand(NewResolveCommand(opts))
	cmd.AddCommand(NewURLCommand(opts))
	cmd.AddCommand(NewVersionCommand(opts))

	return cmd
}
