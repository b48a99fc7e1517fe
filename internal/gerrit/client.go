// Package gerrit talks to the code-review server over its SSH command
// interface, the same way the surrounding tooling does.
package gerrit

import (
	"bufio"
	"bytes"
	"encoding/json"
	"fmt"
	"os/exec"
	"strings"

	"github.com/bjulian5/cq/internal/model"
)

const (
	host    = "gerrit.chromium.org"
	sshPort = "29418"

	intHost    = "gerrit-int.chromium.org"
	intSSHPort = "29418"

	publicHTTPURL  = "https://gerrit.chromium.org/gerrit/p"
	internalSSHURL = "ssh://gerrit-int.chromium.org:29418"
)

// readyQuery selects changes that are approved, verified, and flagged
// ready for the commit queue.
const readyQuery = "status:open AND CodeReview=+2 AND Verified=+1 AND CommitReady=+1 " +
	"AND NOT CodeReview=-2 AND NOT Verified=-1 AND branch:%s"

// Client provides review-server operations for one server, public or
// internal.
type Client struct {
	internal bool
	host     string
	port     string
}

// NewClient creates a client for the public or the internal review
// server.
func NewClient(internal bool) *Client {
	c := &Client{internal: internal, host: host, port: sshPort}
	if internal {
		c.host, c.port = intHost, intSSHPort
	}
	return c
}

// Internal reports whether this client talks to the internal server.
func (c *Client) Internal() bool {
	return c.internal
}

// FetchURL returns the URL a project's patch refs are fetched from.
func (c *Client) FetchURL(project string, internal bool) string {
	if internal {
		return internalSSHURL + "/" + project
	}
	return publicHTTPURL + "/" + project
}

// execGerrit runs a gerrit command over SSH and returns its output.
func (c *Client) execGerrit(args ...string) ([]byte, error) {
	sshArgs := append([]string{"-p", c.port, c.host, "gerrit"}, args...)
	cmd := exec.Command("ssh", sshArgs...)
	output, err := cmd.Output()
	if err != nil {
		if exitErr, ok := err.(*exec.ExitError); ok {
			return nil, fmt.Errorf("gerrit %s: %s", args[0], string(exitErr.Stderr))
		}
		return nil, fmt.Errorf("failed to reach gerrit: %w", err)
	}
	return output, nil
}

// query runs a gerrit query and returns the parsed records.
func (c *Client) query(terms string) ([]*model.PatchRecord, error) {
	output, err := c.execGerrit("query", "--format=JSON", "--current-patch-set",
		"--commit-message", terms)
	if err != nil {
		return nil, err
	}
	return parseQueryOutput(output)
}

// parseQueryOutput parses the line-per-record JSON stream the query
// command emits. The trailing stats line and records without an identity
// are skipped.
func parseQueryOutput(output []byte) ([]*model.PatchRecord, error) {
	var records []*model.PatchRecord
	scanner := bufio.NewScanner(bytes.NewReader(output))
	scanner.Buffer(make([]byte, 0, 1024*1024), 1024*1024)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}
		var rec model.PatchRecord
		if err := json.Unmarshal([]byte(line), &rec); err != nil {
			return nil, fmt.Errorf("failed to parse query result: %w", err)
		}
		if rec.ID == "" {
			continue
		}
		records = append(records, &rec)
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("failed to read query output: %w", err)
	}
	return records, nil
}

// QueryReadyPatches returns the patches currently flagged ready for
// commit on the given branch, eldest first so that older changes get the
// first chance to land.
func (c *Client) QueryReadyPatches(branch string) ([]*model.Patch, error) {
	records, err := c.query(fmt.Sprintf(readyQuery, branch))
	if err != nil {
		return nil, err
	}

	// The server returns newest-first.
	patches := make([]*model.Patch, 0, len(records))
	for i := len(records) - 1; i >= 0; i-- {
		patches = append(patches, model.NewPatchFromRecord(records[i], c.internal))
	}
	return patches, nil
}

// QuerySingleRecord returns the patch for one change identity, or an
// error if the server does not know it.
func (c *Client) QuerySingleRecord(value string) (*model.Patch, error) {
	records, err := c.query(fmt.Sprintf("change:%s", value))
	if err != nil {
		return nil, err
	}
	if len(records) == 0 {
		return nil, fmt.Errorf("change %s not found on server %s", value, c.host)
	}
	return model.NewPatchFromRecord(records[0], c.internal), nil
}

// IsChangeCommitted reports whether the change behind the alias has
// already been merged. Unknown changes are reported as not committed.
func (c *Client) IsChangeCommitted(id model.ChangeID) (bool, error) {
	records, err := c.query(fmt.Sprintf("change:%s", id.Value))
	if err != nil {
		return false, err
	}
	if len(records) == 0 {
		return false, nil
	}
	return records[0].Status == "MERGED", nil
}

// Submit asks the server to submit the patch. Whether the change actually
// merged must be verified afterwards with IsChangeCommitted: submits can
// race with other submitters.
func (c *Client) Submit(p *model.Patch) error {
	_, err := c.execGerrit("review", "--submit", reviewSpec(p))
	if err != nil {
		return fmt.Errorf("failed to submit %s: %w", p, err)
	}
	return nil
}

// PostComment posts a review comment on the patch.
func (c *Client) PostComment(p *model.Patch, msg string) error {
	_, err := c.execGerrit("review", "-m", fmt.Sprintf("%q", msg), reviewSpec(p))
	if err != nil {
		return fmt.Errorf("failed to comment on %s: %w", p, err)
	}
	return nil
}

// RemoveReadyMarker clears the patch's commit-ready flag, forcing the
// author to re-queue explicitly after addressing the failure.
func (c *Client) RemoveReadyMarker(p *model.Patch) error {
	_, err := c.execGerrit("review", "--commit-ready=0", reviewSpec(p))
	if err != nil {
		return fmt.Errorf("failed to remove ready marker on %s: %w", p, err)
	}
	return nil
}

// ContentMergingProjects returns the projects the server is willing to
// content-merge for, keyed by project name.
func (c *Client) ContentMergingProjects() (map[string]bool, error) {
	output, err := c.execGerrit("gsql", "--format=JSON", "-c",
		"SELECT name FROM projects WHERE use_content_merge='Y'")
	if err != nil {
		return nil, err
	}
	return parseContentMergingOutput(output)
}

// parseContentMergingOutput parses the gsql row stream.
func parseContentMergingOutput(output []byte) (map[string]bool, error) {
	projects := make(map[string]bool)
	scanner := bufio.NewScanner(bytes.NewReader(output))
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}
		var row struct {
			Type    string `json:"type"`
			Columns struct {
				Name string `json:"name"`
			} `json:"columns"`
		}
		if err := json.Unmarshal([]byte(line), &row); err != nil {
			return nil, fmt.Errorf("failed to parse project row: %w", err)
		}
		if row.Type == "row" && row.Columns.Name != "" {
			projects[row.Columns.Name] = true
		}
	}
	return projects, scanner.Err()
}

// reviewSpec identifies a specific patch set for the review command.
func reviewSpec(p *model.Patch) string {
	return fmt.Sprintf("%s,%s", p.GerritNumber, p.PatchNumber)
}
