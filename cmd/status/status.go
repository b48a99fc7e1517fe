package status

import (
	"context"
	"time"

	"github.com/spf13/cobra"

	"github.com/bjulian5/cq/internal/treestatus"
	"github.com/bjulian5/cq/internal/ui"
)

// Command reports whether the tree currently accepts commits.
type Command struct {
	// Flags
	URL     string
	Timeout time.Duration
}

// Register registers the command with cobra
func (c *Command) Register(parent *cobra.Command) {
	cmd := &cobra.Command{
		Use:   "status",
		Short: "Check whether the tree is open",
		Long: `Check whether the tree is open or throttled.

With --timeout, a closed tree is re-polled until it opens or the timeout
elapses.

Example:
  cq status
  cq status --timeout 10m`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return c.Run(cmd.Context())
		},
	}

	cmd.Flags().StringVar(&c.URL, "url", treestatus.DefaultURL, "tree status endpoint")
	cmd.Flags().DurationVar(&c.Timeout, "timeout", 0, "how long to wait for the tree to open")

	parent.AddCommand(cmd)
}

// Run executes the command
func (c *Command) Run(ctx context.Context) error {
	gate := treestatus.NewGateForURL(c.URL)
	if gate.IsOpen(c.Timeout) {
		ui.Success("Tree is open.")
		return nil
	}
	ui.Error("Tree is closed.")
	return nil
}
