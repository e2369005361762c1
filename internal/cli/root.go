// Package cli implements pipectl, the operator CLI for the scheduler's
// management API.
package cli

import (
	"os"

	"github.com/spf13/cobra"
)

const defaultServer = "http://localhost:8005"

type options struct {
	server string
	token  string
}

func (o *options) client() *Client {
	return NewClient(o.server, o.token)
}

// NewRootCmd builds the full command tree. PIPECTL_SERVER and PIPECTL_TOKEN
// seed the flag defaults.
func NewRootCmd() *cobra.Command {
	opts := &options{}

	root := &cobra.Command{
		Use:   "pipectl",
		Short: "pipectl - operate the pipeline scheduler",
		Long: `pipectl talks to the pipeline scheduler's management API.

It creates and edits schedules, triggers runs by hand, follows executions
and seeds the demo pipeline schedules.`,
		SilenceUsage: true,
	}

	server := os.Getenv("PIPECTL_SERVER")
	if server == "" {
		server = defaultServer
	}
	root.PersistentFlags().StringVar(&opts.server, "server", server, "scheduler base URL")
	root.PersistentFlags().StringVar(&opts.token, "token", os.Getenv("PIPECTL_TOKEN"), "bearer token for the management API")

	root.AddCommand(
		newSchedulesCmd(opts),
		newExecutionsCmd(opts),
		newStatsCmd(opts),
		newSeedCmd(opts),
	)
	return root
}
