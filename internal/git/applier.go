package git

import (
	"fmt"

	"github.com/bjulian5/cq/internal/deps"
	"github.com/bjulian5/cq/internal/model"
)

// FetchURLFunc builds the URL a patch's ref is fetched from. Internal
// patches live behind a different, access-restricted server.
type FetchURLFunc func(project string, internal bool) string

// Applier materializes patches into a checkout and applies them. It is
// the production implementation of the apply surface PatchSeries
// consumes.
type Applier struct {
	checkout *Checkout
	fetchURL FetchURLFunc
}

// NewApplier creates an applier over the given checkout.
func NewApplier(checkout *Checkout, fetchURL FetchURLFunc) *Applier {
	return &Applier{checkout: checkout, fetchURL: fetchURL}
}

// Fetch materializes the patch's commit into its project repository and
// records the resulting hash on the patch.
func (a *Applier) Fetch(p *model.Patch) error {
	client, err := a.checkout.Project(p.Project)
	if err != nil {
		return err
	}
	sha, err := client.Fetch(a.fetchURL(p.Project, p.Internal), p.Ref)
	if err != nil {
		return fmt.Errorf("failed to fetch %s: %w", p, err)
	}
	p.SHA1 = sha
	return nil
}

// Apply applies the patch onto its project's working tree. Conflicts are
// returned as classified results; errors are infrastructure failures.
func (a *Applier) Apply(p *model.Patch, trivial bool) (ApplyResult, error) {
	client, err := a.checkout.Project(p.Project)
	if err != nil {
		return ApplyResult{}, err
	}
	trackingRef, err := a.checkout.TrackingRef(p.Project)
	if err != nil {
		return ApplyResult{}, err
	}
	return client.ApplyPatch(p.SHA1, trackingRef, trivial)
}

// StructuralDeps returns the patch's git-ancestry dependencies.
func (a *Applier) StructuralDeps(p *model.Patch) ([]string, error) {
	client, err := a.checkout.Project(p.Project)
	if err != nil {
		return nil, err
	}
	trackingRef, err := a.checkout.TrackingRef(p.Project)
	if err != nil {
		return nil, err
	}
	return deps.Structural(client, p.SHA1, trackingRef, p.Internal)
}

// DeclaredDeps returns the patch's CQ-DEPEND dependencies.
func (a *Applier) DeclaredDeps(p *model.Patch) ([]string, error) {
	client, err := a.checkout.Project(p.Project)
	if err != nil {
		return nil, err
	}
	msg, err := client.CommitMessage(p.SHA1)
	if err != nil {
		return nil, err
	}
	return deps.Declared(msg)
}
