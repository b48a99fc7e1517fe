package git

import (
	"fmt"
	"sort"
)

// Checkout addresses the per-project repositories of a working source
// tree. It is exclusively owned by one pool cycle at a time.
type Checkout struct {
	root     string
	projects map[string]*projectRepo
}

type projectRepo struct {
	client      *Client
	trackingRef string
}

// NewCheckout creates an empty checkout rooted at the given directory.
func NewCheckout(root string) *Checkout {
	return &Checkout{
		root:     root,
		projects: make(map[string]*projectRepo),
	}
}

// Root returns the checkout's root directory.
func (c *Checkout) Root() string {
	return c.root
}

// AddProject registers a project repository and the ref its patches are
// applied against.
func (c *Checkout) AddProject(name string, dir string, trackingRef string) error {
	client, err := NewClientAt(dir)
	if err != nil {
		return fmt.Errorf("failed to open project %s: %w", name, err)
	}
	c.projects[name] = &projectRepo{client: client, trackingRef: trackingRef}
	return nil
}

// Project returns the git client for the named project.
func (c *Checkout) Project(name string) (*Client, error) {
	repo, ok := c.projects[name]
	if !ok {
		return nil, fmt.Errorf("project %s is not part of this checkout", name)
	}
	return repo.client, nil
}

// TrackingRef returns the ref patches for the named project are applied
// against.
func (c *Checkout) TrackingRef(name string) (string, error) {
	repo, ok := c.projects[name]
	if !ok {
		return "", fmt.Errorf("project %s is not part of this checkout", name)
	}
	return repo.trackingRef, nil
}

// HasProject reports whether the checkout contains the named project.
func (c *Checkout) HasProject(name string) bool {
	_, ok := c.projects[name]
	return ok
}

// ProjectNames returns the registered project names in sorted order.
func (c *Checkout) ProjectNames() []string {
	names := make([]string, 0, len(c.projects))
	for name := range c.projects {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
