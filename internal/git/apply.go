package git

import (
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
)

// ApplyStatus is the outcome of applying one patch into a checkout.
type ApplyStatus int

const (
	// Applied means the patch is now part of the working tree.
	Applied ApplyStatus = iota

	// ConflictAtTip means the patch conflicts with the tracking branch
	// tip; the author must rebase.
	ConflictAtTip

	// ConflictInflight means the patch applies cleanly on the tracking
	// branch tip but conflicts with another patch applied earlier in the
	// same batch.
	ConflictInflight
)

// ApplyResult is the classified outcome of an apply attempt. Conflicts
// are data, not errors: only infrastructure failures are returned as
// errors from ApplyPatch.
type ApplyResult struct {
	Status ApplyStatus
	Reason string
}

// ApplyPatch applies the commit at sha onto the current HEAD. When
// trivial is true only a clean, fuzz-free apply is accepted; content
// merges are rejected. On conflict the working tree is restored and the
// failure is classified as tip or inflight by test-applying the same
// commit on the clean tracking ref.
func (c *Client) ApplyPatch(sha string, trackingRef string, trivial bool) (ApplyResult, error) {
	if trivial {
		ok, reason, err := c.applyCheck(sha)
		if err != nil {
			return ApplyResult{}, err
		}
		if !ok {
			return c.classifyConflict(sha, trackingRef, trivial, reason)
		}
	}

	if _, err := c.run("cherry-pick", sha); err != nil {
		// Leave the tree the way we found it before classifying.
		_, _ = c.run("cherry-pick", "--abort")
		return c.classifyConflict(sha, trackingRef, trivial, err.Error())
	}
	return ApplyResult{Status: Applied}, nil
}

// applyCheck tests whether the commit at sha applies onto the current
// working tree without any content merging. Returns (false, reason, nil)
// when the patch does not apply trivially.
func (c *Client) applyCheck(sha string) (bool, string, error) {
	patch, err := c.run("show", "--no-color", "--format=", sha)
	if err != nil {
		return false, "", fmt.Errorf("failed to read patch for %s: %w", sha, err)
	}

	short := sha
	if len(short) > 12 {
		short = short[:12]
	}
	patchFile := filepath.Join(os.TempDir(), "cq-apply-"+short+".patch")
	if err := os.WriteFile(patchFile, []byte(patch+"\n"), 0644); err != nil {
		return false, "", fmt.Errorf("failed to stage patch for %s: %w", sha, err)
	}
	defer os.Remove(patchFile)

	cmd := exec.Command("git", "apply", "--check", patchFile)
	cmd.Dir = c.gitRoot
	if output, err := cmd.CombinedOutput(); err != nil {
		return false, string(output), nil
	}
	return true, "", nil
}

// classifyConflict decides whether a failed apply conflicts with the
// tracking branch tip or with patches applied earlier in this batch. The
// same commit is test-applied on a detached checkout of the clean
// tracking ref: if it applies there, the batch composition caused the
// conflict.
func (c *Client) classifyConflict(sha string, trackingRef string, trivial bool, reason string) (ApplyResult, error) {
	origBranch, err := c.GetCurrentBranch()
	if err != nil {
		return ApplyResult{}, err
	}
	if origBranch == "HEAD" {
		// Detached head: come back to the exact commit.
		origBranch, err = c.GetCommitHash("HEAD")
		if err != nil {
			return ApplyResult{}, err
		}
	}

	if err := c.CheckoutDetached(trackingRef); err != nil {
		return ApplyResult{}, err
	}

	appliesOnTip := false
	if trivial {
		ok, _, err := c.applyCheck(sha)
		if err != nil {
			return ApplyResult{}, err
		}
		appliesOnTip = ok
	} else {
		if _, err := c.run("cherry-pick", "--no-commit", sha); err == nil {
			appliesOnTip = true
		} else {
			_, _ = c.run("cherry-pick", "--abort")
		}
		if err := c.ResetHard("HEAD"); err != nil {
			return ApplyResult{}, err
		}
	}

	if err := c.CheckoutBranch(origBranch); err != nil {
		return ApplyResult{}, err
	}

	if appliesOnTip {
		return ApplyResult{Status: ConflictInflight, Reason: reason}, nil
	}
	return ApplyResult{Status: ConflictAtTip, Reason: reason}, nil
}
