package show

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/bjulian5/cq/internal/gerrit"
	"github.com/bjulian5/cq/internal/ui"
)

// Command lists the changes currently marked ready for the commit queue.
type Command struct {
	// Flags
	Branch   string
	Internal bool
	Select   bool

	// Clients (can be mocked in tests)
	Review *gerrit.Client
}

// Register registers the command with cobra
func (c *Command) Register(parent *cobra.Command) {
	cmd := &cobra.Command{
		Use:   "show",
		Short: "Show the changes marked ready",
		Long: `Show the changes currently marked ready for the commit queue,
eldest first, in the order the queue would pick them up.

With --select, a fuzzy finder is opened over the candidates and the
chosen change is printed in full.

Example:
  cq show
  cq show --branch release-R20 --select`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			c.Review = gerrit.NewClient(c.Internal)
			return c.Run(cmd.Context())
		},
	}

	cmd.Flags().StringVar(&c.Branch, "branch", "master", "branch to query")
	cmd.Flags().BoolVar(&c.Internal, "internal", false, "use the internal review server")
	cmd.Flags().BoolVar(&c.Select, "select", false, "pick one change interactively")

	parent.AddCommand(cmd)
}

// Run executes the command
func (c *Command) Run(ctx context.Context) error {
	patches, err := c.Review.QueryReadyPatches(c.Branch)
	if err != nil {
		return fmt.Errorf("failed to query ready changes: %w", err)
	}
	if len(patches) == 0 {
		ui.Info("No changes are marked ready.")
		return nil
	}

	if c.Select {
		patch, err := ui.SelectPatch(patches)
		if err != nil {
			return err
		}
		if patch == nil {
			return nil
		}
		ui.Print(ui.FormatPatchPreview(patch))
		return nil
	}

	ui.Header(fmt.Sprintf("%d changes ready on %s", len(patches), c.Branch))
	for _, patch := range patches {
		ui.Print(ui.FormatPatchFinderLine(patch))
	}
	return nil
}
