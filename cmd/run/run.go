package run

import (
	"context"
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/bjulian5/cq/internal/common"
	"github.com/bjulian5/cq/internal/git"
	"github.com/bjulian5/cq/internal/pool"
	"github.com/bjulian5/cq/internal/series"
	"github.com/bjulian5/cq/internal/treestatus"
	"github.com/bjulian5/cq/internal/ui"
)

// Command runs one full commit queue cycle: acquire the ready changes,
// apply them onto the checkout, and submit the survivors.
type Command struct {
	// Flags
	Buildroot   string
	Manifest    string
	Internal    bool
	DryRun      bool
	Master      bool
	BuildNumber int
	BuilderName string
	ApplyOnly   bool

	// Clients (can be mocked in tests)
	Checkout *git.Checkout
	Pool     *pool.Pool
}

// Register registers the command with cobra
func (c *Command) Register(parent *cobra.Command) {
	cmd := &cobra.Command{
		Use:   "run",
		Short: "Run one commit queue cycle",
		Long: `Run one commit queue cycle against a checkout.

The ready changes are collected from the review server, applied together
onto the tracking branches in dependency order, and, on the master
builder, submitted once applied. Changes that cannot apply against the
branch tip are rejected and their authors notified; changes that only
conflict with other in-flight changes are retried on the next cycle.

Example:
  cq run --buildroot /b/cros --manifest manifest.json --master \
      --builder-name x86-generic-paladin --build-number 1203`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return c.Run(cmd.Context())
		},
	}

	cmd.Flags().StringVar(&c.Buildroot, "buildroot", "", "root directory of the checkout")
	cmd.Flags().StringVar(&c.Manifest, "manifest", "", "path to the manifest snapshot")
	cmd.Flags().BoolVar(&c.Internal, "internal", false, "use the internal review server")
	cmd.Flags().BoolVar(&c.DryRun, "dry-run", false, "do not mutate the review server")
	cmd.Flags().BoolVar(&c.Master, "master", false, "this builder owns submission")
	cmd.Flags().IntVar(&c.BuildNumber, "build-number", 0, "build number for author-facing links")
	cmd.Flags().StringVar(&c.BuilderName, "builder-name", "", "builder name for author-facing links")
	cmd.Flags().BoolVar(&c.ApplyOnly, "apply-only", false, "stop after applying, do not submit")
	cmd.MarkFlagRequired("buildroot")
	cmd.MarkFlagRequired("manifest")

	parent.AddCommand(cmd)
}

// Run executes the command
func (c *Command) Run(ctx context.Context) error {
	manifest, checkout, err := common.InitCheckout(c.Buildroot, c.Manifest)
	if err != nil {
		return err
	}
	c.Checkout = checkout
	review, applier := common.InitClients(checkout, c.Internal)

	if err := c.prepareWorkBranches(); err != nil {
		return err
	}

	cfg := pool.Config{
		Internal:    c.Internal,
		BuildNumber: c.BuildNumber,
		BuilderName: c.BuilderName,
		IsMaster:    c.Master,
		DryRun:      c.DryRun,
	}
	c.Pool, err = pool.Acquire(cfg, review, treestatus.NewGate(),
		series.New(applier, review), manifest)
	if err != nil {
		return err
	}

	if len(c.Pool.Changes) == 0 && len(c.Pool.NonManifestChanges) == 0 {
		ui.Info("No changes are marked ready; nothing to do.")
		return nil
	}

	applied, err := c.Pool.ApplyPoolIntoRepo()
	if err != nil {
		return fmt.Errorf("failed to apply the pool: %w", err)
	}
	if !applied && len(c.Pool.NonManifestChanges) == 0 {
		ui.Info("No changes could be applied this cycle.")
		return nil
	}

	if c.ApplyOnly || !c.Master {
		ui.Successf("Applied %d changes into %s", len(c.Pool.Changes), c.Buildroot)
		return nil
	}

	var errs []error
	if len(c.Pool.Changes) > 0 {
		if err := c.Pool.SubmitPool(); err != nil {
			errs = append(errs, err)
		}
	}
	if len(c.Pool.NonManifestChanges) > 0 {
		if err := c.Pool.SubmitNonManifestChanges(); err != nil {
			errs = append(errs, err)
		}
	}
	if err := errors.Join(errs...); err != nil {
		return err
	}

	ui.Successf("Submitted %d changes", len(c.Pool.Changes)+len(c.Pool.NonManifestChanges))
	return nil
}

// prepareWorkBranches gives every project a scratch branch at its
// tracking ref so patches never land on a real branch.
func (c *Command) prepareWorkBranches() error {
	branch := "cq-" + common.GenerateRunID()
	for _, name := range c.Checkout.ProjectNames() {
		client, err := c.Checkout.Project(name)
		if err != nil {
			return err
		}
		trackingRef, err := c.Checkout.TrackingRef(name)
		if err != nil {
			return err
		}
		if err := client.CreateAndCheckoutBranchAt(branch, trackingRef); err != nil {
			return fmt.Errorf("failed to prepare %s: %w", name, err)
		}
	}
	return nil
}
