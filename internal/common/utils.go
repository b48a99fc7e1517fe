package common

import (
	"fmt"
	"path/filepath"
	"strings"

	"github.com/google/uuid"

	"github.com/bjulian5/cq/internal/gerrit"
	"github.com/bjulian5/cq/internal/git"
	"github.com/bjulian5/cq/internal/model"
	"github.com/bjulian5/cq/internal/ui"
)

// GenerateRunID generates a 16-character hex identifier for one
// validation run. It names the scratch branches created in each project.
func GenerateRunID() string {
	u := uuid.New()
	hexStr := strings.ReplaceAll(u.String(), "-", "")
	return hexStr[:16]
}

// InitCheckout loads the manifest and opens every tracked project
// repository under the build root.
// Returns an error that is suitable for use in PreRunE hooks.
func InitCheckout(buildroot string, manifestPath string) (*model.Manifest, *git.Checkout, error) {
	manifest, err := model.LoadManifest(manifestPath)
	if err != nil {
		return nil, nil, err
	}

	checkout := git.NewCheckout(buildroot)
	for name, project := range manifest.Projects {
		dir := filepath.Join(buildroot, project.Path)
		if err := checkout.AddProject(name, dir, manifest.BranchFor(name)); err != nil {
			ui.Errorf("Project %s is missing from the build root", name)
			return nil, nil, fmt.Errorf("checkout initialization failed: %w", err)
		}
	}
	return manifest, checkout, nil
}

// InitClients builds the review client and the patch applier over an
// initialized checkout.
func InitClients(checkout *git.Checkout, internal bool) (*gerrit.Client, *git.Applier) {
	review := gerrit.NewClient(internal)
	applier := git.NewApplier(checkout, review.FetchURL)
	return review, applier
}
