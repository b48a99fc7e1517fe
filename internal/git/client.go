package git

import (
	"fmt"
	"os/exec"
	"strings"
)

// Client provides git operations for one project repository.
type Client struct {
	gitRoot string
}

// NewClientAt creates a git client rooted at the given directory.
func NewClientAt(dir string) (*Client, error) {
	cmd := exec.Command("git", "rev-parse", "--show-toplevel")
	cmd.Dir = dir
	output, err := cmd.Output()
	if err != nil {
		return nil, fmt.Errorf("%s is not a git repository: %w", dir, err)
	}
	return &Client{gitRoot: strings.TrimSpace(string(output))}, nil
}

// GitRoot returns the root directory of the repository.
func (c *Client) GitRoot() string {
	return c.gitRoot
}

// run executes a git command in the repository and returns its stdout.
func (c *Client) run(args ...string) (string, error) {
	cmd := exec.Command("git", args...)
	cmd.Dir = c.gitRoot
	output, err := cmd.Output()
	if err != nil {
		if exitErr, ok := err.(*exec.ExitError); ok {
			return "", fmt.Errorf("git %s: %w\n%s", strings.Join(args, " "), err, string(exitErr.Stderr))
		}
		return "", fmt.Errorf("git %s: %w", strings.Join(args, " "), err)
	}
	return strings.TrimSpace(string(output)), nil
}

// GetCommitHash resolves a ref to a commit hash.
func (c *Client) GetCommitHash(ref string) (string, error) {
	hash, err := c.run("rev-parse", ref)
	if err != nil {
		return "", fmt.Errorf("failed to resolve %s: %w", ref, err)
	}
	return hash, nil
}

// HasParent reports whether the commit at ref has a parent commit.
func (c *Client) HasParent(ref string) bool {
	_, err := c.run("rev-parse", "--verify", "--quiet", ref+"^")
	return err == nil
}

// RevList returns the commit hashes selected by the given range
// expression, in parent-first order.
func (c *Client) RevList(revRange string) ([]string, error) {
	output, err := c.run("rev-list", "--reverse", revRange)
	if err != nil {
		return nil, fmt.Errorf("failed to list commits for %s: %w", revRange, err)
	}
	if output == "" {
		return nil, nil
	}
	return strings.Split(output, "\n"), nil
}

// CommitMessage returns the full commit message of the commit at ref.
func (c *Client) CommitMessage(ref string) (string, error) {
	msg, err := c.run("log", "--format=%B", "-n", "1", ref)
	if err != nil {
		return "", fmt.Errorf("failed to read commit message for %s: %w", ref, err)
	}
	return msg, nil
}

// GetCommit returns the parsed commit at ref.
func (c *Client) GetCommit(ref string) (Commit, error) {
	hash, err := c.GetCommitHash(ref)
	if err != nil {
		return Commit{}, err
	}
	msg, err := c.CommitMessage(hash)
	if err != nil {
		return Commit{}, err
	}
	return ParseCommitMessage(hash, msg), nil
}

// GetCurrentBranch returns the current branch name, or "HEAD" when the
// repository is in detached-head state.
func (c *Client) GetCurrentBranch() (string, error) {
	branch, err := c.run("rev-parse", "--abbrev-ref", "HEAD")
	if err != nil {
		return "", fmt.Errorf("failed to get current branch: %w", err)
	}
	return branch, nil
}

// CheckoutBranch checks out the specified branch or ref.
func (c *Client) CheckoutBranch(name string) error {
	if _, err := c.run("checkout", name); err != nil {
		return fmt.Errorf("failed to checkout %s: %w", name, err)
	}
	return nil
}

// CheckoutDetached checks out the given ref without moving any branch.
func (c *Client) CheckoutDetached(ref string) error {
	if _, err := c.run("checkout", "--detach", ref); err != nil {
		return fmt.Errorf("failed to detach at %s: %w", ref, err)
	}
	return nil
}

// CreateAndCheckoutBranchAt creates a branch at a specific commit and
// checks it out. The branch must not already exist.
func (c *Client) CreateAndCheckoutBranchAt(name string, ref string) error {
	if _, err := c.run("checkout", "-b", name, ref); err != nil {
		return fmt.Errorf("failed to create branch %s at %s: %w", name, ref, err)
	}
	return nil
}

// BranchExists checks if a branch or ref exists.
func (c *Client) BranchExists(name string) bool {
	_, err := c.run("rev-parse", "--verify", "--quiet", name)
	return err == nil
}

// ResetHard resets the current branch to a specific ref.
func (c *Client) ResetHard(ref string) error {
	if _, err := c.run("reset", "--hard", ref); err != nil {
		return fmt.Errorf("failed to reset to %s: %w", ref, err)
	}
	return nil
}

// UpdateRef updates a branch reference without checking it out.
func (c *Client) UpdateRef(branchName string, commitHash string) error {
	if _, err := c.run("update-ref", "refs/heads/"+branchName, commitHash); err != nil {
		return fmt.Errorf("failed to update ref %s to %s: %w", branchName, commitHash, err)
	}
	return nil
}

// Fetch fetches a single ref from the given URL into the repository's
// object store and returns the commit hash it resolved to.
func (c *Client) Fetch(url string, ref string) (string, error) {
	if _, err := c.run("fetch", url, ref); err != nil {
		return "", fmt.Errorf("failed to fetch %s from %s: %w", ref, url, err)
	}
	return c.GetCommitHash("FETCH_HEAD")
}
