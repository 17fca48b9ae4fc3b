package cli

import (
	"encoding/json"
	"fmt"
	"net/url"
	"strings"

	"github.com/spf13/cobra"

	"github.com/randomizedcoder/go-abr-harness/internal/abr"
	"github.com/randomizedcoder/go-abr-harness/internal/experiment"
)

// ResolveOptions holds flags for the resolve command.
type ResolveOptions struct {
	*RootOptions
	Query  string
	Output string // "json" | "text"
}

// resolved is what the resolve command prints.
type resolved struct {
	experiment.Config
	Strategy string `json:"abrStrategy"`
}

// NewResolveCommand creates the resolve command.
func NewResolveCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &ResolveOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "resolve [key=value ...]",
		Short: "Show the experiment configuration a parameter set resolves to",
		Long: `Resolve a page parameter set the way a player session does and print
the resulting experiment configuration. Missing parameters resolve to empty
strings and unknown ones are ignored.

Example:
  go-abr-harness resolve title=t1 customData2=abrBola
  go-abr-harness resolve --query 'title=t1&userId=u1&customData1=akamai'`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runResolve(cmd, opts, args)
		},
	}

	cmd.Flags().StringVar(&opts.Query, "query", "", "URL query string to resolve")
	cmd.Flags().StringVarP(&opts.Output, "output", "o", "json", "output format (json|text)")
	return cmd
}

func runResolve(cmd *cobra.Command, opts *ResolveOptions, args []string) error {
	raw, err := parseParams(opts.Query, args)
	if err != nil {
		return err
	}
	cfg := experiment.Resolve(raw)
	r := resolved{Config: cfg, Strategy: abr.Parse(cfg.ABRAlgorithm).String()}

	out := cmd.OutOrStdout()
	switch opts.Output {
	case "json":
		enc := json.NewEncoder(out)
		enc.SetIndent("", "  ")
		return enc.Encode(r)
	case "text":
		params := cfg.Params()
		for _, name := range experiment.ParamNames {
			fmt.Fprintf(out, "%-16s %s\n", name+":", params[name])
		}
		fmt.Fprintf(out, "%-16s %s\n", "abrStrategy:", r.Strategy)
		return nil
	default:
		return fmt.Errorf("invalid output %q: must be json or text", opts.Output)
	}
}

// parseParams merges a query string and key=value arguments. Arguments win.
func parseParams(query string, args []string) (map[string]string, error) {
	raw := make(map[string]string)
	if query != "" {
		values, err := url.ParseQuery(strings.TrimPrefix(query, "?"))
		if err != nil {
			return nil, fmt.Errorf("parse query: %w", err)
		}
		for k := range values {
			raw[k] = values.Get(k)
		}
	}
	for _, arg := range args {
		k, v, ok := strings.Cut(arg, "=")
		if !ok || k == "" {
			return nil, fmt.Errorf("invalid parameter %q: want key=value", arg)
		}
		raw[k] = v
	}
	return raw, nil
}
