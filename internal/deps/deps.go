// Package deps extracts the dependencies of a patch from its git history
// and from CQ-DEPEND annotations in its commit message.
package deps

import (
	"fmt"
	"regexp"

	"github.com/bjulian5/cq/internal/model"
)

// GitClient is the read-only repository surface the extractor needs.
type GitClient interface {
	RevList(revRange string) ([]string, error)
	CommitMessage(ref string) (string, error)
	HasParent(ref string) bool
}

var (
	changeIDRe   = regexp.MustCompile(`(?m)^\s*Change-Id:\s*(\S+)\s*$`)
	validIDRe    = regexp.MustCompile(`^I[0-9a-fA-F]{40}$`)
	cqDependRe   = regexp.MustCompile(`(?m)^\s*CQ-DEPEND=(.*)$`)
	tokenSplitRe = regexp.MustCompile(`[,\s]+`)
	numericRe    = regexp.MustCompile(`^[0-9]+$`)
	fullSHARe    = regexp.MustCompile(`^[0-9a-fA-F]{40}$`)
)

// maxReviewNumberDigits bounds bare review numbers in CQ-DEPEND lines.
// Longer numeric tokens could be mistaken for shortened commit hashes and
// are rejected as ambiguous.
const maxReviewNumberDigits = 6

// BrokenChangeIDError indicates a commit in a patch's ancestry carries a
// malformed Change-Id trailer. This is a hard error: it means the commit
// was corrupted or hand-edited.
type BrokenChangeIDError struct {
	Commit  string
	Trailer string
}

func (e *BrokenChangeIDError) Error() string {
	return fmt.Sprintf("commit %s has a malformed Change-Id %q", e.Commit, e.Trailer)
}

// BrokenCQDependsError indicates a CQ-DEPEND line contains a token that
// is not a change identity or a review number.
type BrokenCQDependsError struct {
	Token  string
	Reason string
}

func (e *BrokenCQDependsError) Error() string {
	return fmt.Sprintf("malformed CQ-DEPEND token %q: %s", e.Token, e.Reason)
}

// Structural returns the dependencies implied by git ancestry: the
// Change-Id of every commit the patch's parent chain adds on top of the
// tracking ref. Commits without a Change-Id trailer fall back to their
// raw hash, pinning the exact commit. Aliases inherit the patch's
// visibility scope.
func Structural(g GitClient, sha1 string, trackingRef string, internal bool) ([]string, error) {
	// The very first commit of a project has no parent and therefore no
	// structural dependencies.
	if !g.HasParent(sha1) {
		return nil, nil
	}

	commits, err := g.RevList(fmt.Sprintf("%s..%s^", trackingRef, sha1))
	if err != nil {
		return nil, fmt.Errorf("failed to walk ancestry of %s: %w", sha1, err)
	}

	var aliases []string
	for _, commit := range commits {
		msg, err := g.CommitMessage(commit)
		if err != nil {
			return nil, err
		}

		value := commit
		if m := changeIDRe.FindStringSubmatch(msg); m != nil {
			if !validIDRe.MatchString(m[1]) {
				return nil, &BrokenChangeIDError{Commit: commit, Trailer: m[1]}
			}
			value = m[1]
		}
		aliases = append(aliases, model.ChangeID{Internal: internal, Value: value}.String())
	}
	return aliases, nil
}

// Declared returns the dependencies stated by the author via CQ-DEPEND
// lines in the commit message. Tokens are separated by commas and/or
// whitespace. Each token must be a change identity, a review number of at
// most six digits, or an internal-prefixed review number; raw commit
// hashes are rejected. The result is de-duplicated, preserving first
// occurrence order.
func Declared(message string) ([]string, error) {
	var deps []string
	seen := make(map[string]bool)

	for _, m := range cqDependRe.FindAllStringSubmatch(message, -1) {
		for _, token := range tokenSplitRe.Split(m[1], -1) {
			if token == "" {
				continue
			}
			if err := validateToken(token); err != nil {
				return nil, err
			}
			if !seen[token] {
				seen[token] = true
				deps = append(deps, token)
			}
		}
	}
	return deps, nil
}

func validateToken(token string) error {
	value := model.ParseAlias(token).Value
	switch {
	case value == "":
		return &BrokenCQDependsError{Token: token, Reason: "empty dependency"}
	case fullSHARe.MatchString(value):
		return &BrokenCQDependsError{
			Token:  token,
			Reason: "dependencies must reference changes, not raw commit hashes",
		}
	case numericRe.MatchString(value):
		if len(value) > maxReviewNumberDigits {
			return &BrokenCQDependsError{
				Token:  token,
				Reason: "numeric dependency is too long to be a review number",
			}
		}
		return nil
	case validIDRe.MatchString(value):
		return nil
	default:
		return &BrokenCQDependsError{
			Token:  token,
			Reason: "not a change identity or review number",
		}
	}
}
