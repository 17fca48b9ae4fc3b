package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/randomizedcoder/go-abr-harness/internal/config"
	"github.com/randomizedcoder/go-abr-harness/internal/experiment"
	"github.com/randomizedcoder/go-abr-harness/internal/player"
)

// URLOptions holds flags for the url command.
type URLOptions struct {
	*RootOptions
	Stub             string
	Tag              string
	ContainerVersion string
	Spec             experiment.RunSpec
}

// NewURLCommand creates the url command.
func NewURLCommand(rootOpts *RootOptions) *cobra.Command {
	defaults := config.DefaultConfig()
	opts := &URLOptions{
		RootOptions:      rootOpts,
		Stub:             defaults.PageStub,
		ContainerVersion: defaults.ContainerVersion,
	}

	cmd := &cobra.Command{
		Use:   "url <player>",
		Short: "Print the player page URL for one run",
		Long: `Print the URL of the deployed player page for a run, with the
experiment dimensions encoded as query parameters. A fresh session tag is
generated unless --tag is given.

Example:
  go-abr-harness url dashjs --abr abrThroughput --cdn-provider akamai`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			backend, err := player.ParseBackend(args[0])
			if err != nil {
				return err
			}
			opts.Spec.Player = string(backend)
			tag := opts.Tag
			if tag == "" {
				tag = experiment.NewSessionTag()
			}
			params := opts.Spec.Params(tag, opts.ContainerVersion)
			_, err = fmt.Fprintln(cmd.OutOrStdout(), experiment.PlayerURL(opts.Stub, string(backend), params))
			return err
		},
	}

	f := cmd.Flags()
	f.StringVar(&opts.Stub, "page-stub", opts.Stub, "Base URL of the deployed player pages")
	f.StringVar(&opts.Tag, "tag", "", "Session tag (customData5)")
	f.StringVar(&opts.ContainerVersion, "container-version", opts.ContainerVersion, "Container version (customData4)")
	f.StringVar(&opts.Spec.ABR, "abr", "", "ABR algorithm")
	f.StringVar(&opts.Spec.CDNProvider, "cdn-provider", "", "CDN provider (customData1)")
	f.StringVar(&opts.Spec.ExperimentName, "experiment-name", "", "Experiment name (customData3)")
	f.StringVar(&opts.Spec.Title, "title", "", "Session title")
	f.StringVar(&opts.Spec.UserID, "user-id", "", "Session user id")
	f.StringVar(&opts.Spec.VideoID, "video-id", "", "Session video id")
	return cmd
}
