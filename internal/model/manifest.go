package model

import (
	"encoding/json"
	"fmt"
	"os"
)

// Manifest describes the set of projects tracked by a checkout and the
// branch each project follows. Patches targeting projects or branches
// outside the manifest are not built; ready patches for untracked
// projects are submitted independently.
type Manifest struct {
	DefaultBranch string                     `json:"default_branch"`
	Projects      map[string]ManifestProject `json:"projects"`
}

// ManifestProject pins an individual project entry.
type ManifestProject struct {
	Path     string `json:"path"`
	Revision string `json:"revision,omitempty"`
}

// LoadManifest reads a manifest snapshot from disk.
func LoadManifest(path string) (*Manifest, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read manifest: %w", err)
	}
	var m Manifest
	if err := json.Unmarshal(data, &m); err != nil {
		return nil, fmt.Errorf("failed to parse manifest: %w", err)
	}
	return &m, nil
}

// HasProject reports whether the manifest tracks the given project.
func (m *Manifest) HasProject(project string) bool {
	_, ok := m.Projects[project]
	return ok
}

// BranchFor returns the branch the manifest tracks for the given project,
// falling back to the manifest default for projects without an explicit
// revision.
func (m *Manifest) BranchFor(project string) string {
	if p, ok := m.Projects[project]; ok && p.Revision != "" {
		return p.Revision
	}
	return m.DefaultBranch
}

// PinnedCommit identifies one patch recorded in a manifest snapshot, used
// to rebuild the same pool on a slave builder.
type PinnedCommit struct {
	Project  string `json:"project"`
	ChangeID string `json:"change_id"`
	Commit   string `json:"commit"`
}
