// Package series turns a flat set of ready patches into a dependency
// ordered application plan and applies it against a working checkout,
// partitioning the outcomes into applied, rejected-against-tip, and
// rejected-against-inflight sets.
package series

import (
	"errors"
	"fmt"

	"github.com/bjulian5/cq/internal/deps"
	"github.com/bjulian5/cq/internal/git"
	"github.com/bjulian5/cq/internal/model"
)

// Applier is the checkout surface the series applies patches through.
type Applier interface {
	Fetch(p *model.Patch) error
	Apply(p *model.Patch, trivial bool) (git.ApplyResult, error)
	StructuralDeps(p *model.Patch) ([]string, error)
	DeclaredDeps(p *model.Patch) ([]string, error)
}

// ReviewClient answers whether a change outside the batch has already
// been merged.
type ReviewClient interface {
	IsChangeCommitted(id model.ChangeID) (bool, error)
}

// Series resolves and applies one batch of patches.
type Series struct {
	applier Applier
	review  ReviewClient
}

// New creates a series over the given applier and review client.
func New(applier Applier, review ReviewClient) *Series {
	return &Series{applier: applier, review: review}
}

// Result is the outcome partition of one Apply call. The three sets are
// disjoint; every input patch lands in exactly one of them.
type Result struct {
	Applied        []*model.Patch
	FailedAtTip    []*model.ApplyFailure
	FailedInflight []*model.ApplyFailure
}

// applyState tracks progress through one Apply call.
type applyState struct {
	depsOf  map[*model.Patch][]string
	aliases map[string]*model.Patch
	planned map[*model.Patch]bool
	applied map[*model.Patch]bool
	failed  map[*model.Patch]*model.ApplyFailure
	result  *Result
}

// Apply fetches every patch, resolves dependencies, builds the ordered
// plan, and applies it. Per-patch conflicts and parse failures are data
// in the returned result; only infrastructure failures are returned as
// errors.
func (s *Series) Apply(patches []*model.Patch, dryRun bool, contentMerging map[string]bool) (*Result, error) {
	st := &applyState{
		depsOf:  make(map[*model.Patch][]string),
		aliases: make(map[string]*model.Patch),
		planned: make(map[*model.Patch]bool),
		applied: make(map[*model.Patch]bool),
		failed:  make(map[*model.Patch]*model.ApplyFailure),
		result:  &Result{},
	}

	for _, p := range patches {
		if !p.Fetched {
			if err := s.applier.Fetch(p); err != nil {
				return nil, err
			}
			p.Fetched = true
		}
	}

	// Aliases include commit hashes, so the index is built after fetch.
	for _, p := range patches {
		for _, alias := range p.LookupAliases() {
			st.aliases[alias] = p
		}
	}

	for _, p := range patches {
		if err := s.extractDeps(st, p); err != nil {
			return nil, err
		}
	}

	for _, p := range patches {
		if st.planned[p] || st.applied[p] || st.failed[p] != nil {
			continue
		}
		chain, err := s.resolveChain(st, p, make(map[*model.Patch]bool))
		if err != nil {
			return nil, err
		}
		if chain == nil {
			// The chain is blocked on a missing or failed dependency; the
			// failure has already been recorded.
			continue
		}
		if err := s.applyChain(st, chain, dryRun, contentMerging); err != nil {
			return nil, err
		}
	}

	return st.result, nil
}

// extractDeps computes the union of structural and declared dependencies
// for one patch. Malformed dependency data is recorded as a tip failure
// of that patch, never as a cycle-fatal error.
func (s *Series) extractDeps(st *applyState, p *model.Patch) error {
	structural, err := s.applier.StructuralDeps(p)
	if err == nil {
		var declared []string
		declared, err = s.applier.DeclaredDeps(p)
		if err == nil {
			st.depsOf[p] = append(structural, declared...)
			return nil
		}
	}

	var brokenID *deps.BrokenChangeIDError
	var brokenDep *deps.BrokenCQDependsError
	if errors.As(err, &brokenID) || errors.As(err, &brokenDep) {
		s.fail(st, p, model.ConflictTip, err.Error())
		return nil
	}
	return err
}

// resolveChain produces the patch's application chain: every not yet
// placed in-batch dependency, transitively, followed by the patch itself.
// Returns nil when the chain is blocked; the blocking failure is recorded
// on the affected patches.
func (s *Series) resolveChain(st *applyState, p *model.Patch, visiting map[*model.Patch]bool) ([]*model.Patch, error) {
	if visiting[p] {
		// Dependency cycles are not expected, but never re-process a
		// patch already being placed.
		return []*model.Patch{}, nil
	}
	visiting[p] = true

	var chain []*model.Patch
	for _, alias := range st.depsOf[p] {
		dep, ok := st.aliases[alias]
		if !ok {
			merged, err := s.review.IsChangeCommitted(model.ParseAlias(alias))
			if err != nil {
				return nil, fmt.Errorf("failed to look up dependency %s: %w", alias, err)
			}
			if merged {
				continue
			}
			s.fail(st, p, model.ConflictTip,
				fmt.Sprintf("dependency %s is not in the batch and not ready to be committed", alias))
			return nil, nil
		}

		if st.planned[dep] || st.applied[dep] {
			continue
		}
		if f := st.failed[dep]; f != nil {
			s.fail(st, p, f.Kind, fmt.Sprintf("dependency %s failed to apply", dep))
			return nil, nil
		}

		sub, err := s.resolveChain(st, dep, visiting)
		if err != nil {
			return nil, err
		}
		if sub == nil {
			f := st.failed[dep]
			kind := model.ConflictTip
			if f != nil {
				kind = f.Kind
			}
			s.fail(st, p, kind, fmt.Sprintf("dependency %s could not be applied", dep))
			return nil, nil
		}
		chain = append(chain, sub...)
	}

	return append(chain, p), nil
}

// applyChain applies one chain strictly in order. The first conflict
// abandons every later patch in the chain with the same classification.
func (s *Series) applyChain(st *applyState, chain []*model.Patch, dryRun bool, contentMerging map[string]bool) error {
	for _, p := range chain {
		st.planned[p] = true
	}

	for i, p := range chain {
		if st.applied[p] {
			continue
		}
		if f := st.failed[p]; f != nil {
			s.abandon(st, chain[i+1:], f.Kind, p)
			return nil
		}

		// Dry runs never land anything, so a three-way merge is always
		// safe. Otherwise only content-merging projects get one.
		trivial := !dryRun && !contentMerging[p.Project]
		res, err := s.applier.Apply(p, trivial)
		if err != nil {
			return fmt.Errorf("failed to apply %s: %w", p, err)
		}

		switch res.Status {
		case git.Applied:
			st.applied[p] = true
			st.result.Applied = append(st.result.Applied, p)
		case git.ConflictAtTip:
			s.fail(st, p, model.ConflictTip, conflictReason(res.Reason,
				"change conflicts with the current branch tip"))
			s.abandon(st, chain[i+1:], model.ConflictTip, p)
			return nil
		case git.ConflictInflight:
			s.fail(st, p, model.ConflictInflight, conflictReason(res.Reason,
				"change conflicts with another change being tested"))
			s.abandon(st, chain[i+1:], model.ConflictInflight, p)
			return nil
		}
	}
	return nil
}

// fail records a classified failure for a patch, once.
func (s *Series) fail(st *applyState, p *model.Patch, kind model.ConflictKind, reason string) {
	if st.failed[p] != nil {
		return
	}
	f := &model.ApplyFailure{Patch: p, Kind: kind, Reason: reason}
	st.failed[p] = f
	p.ApplyErrorMessage = reason
	if kind == model.ConflictInflight {
		st.result.FailedInflight = append(st.result.FailedInflight, f)
	} else {
		st.result.FailedAtTip = append(st.result.FailedAtTip, f)
	}
}

// abandon classifies every remaining patch of a chain after one of its
// members failed. The abandoned patches never reach the apply step.
func (s *Series) abandon(st *applyState, rest []*model.Patch, kind model.ConflictKind, failed *model.Patch) {
	for _, p := range rest {
		if st.applied[p] || st.failed[p] != nil {
			continue
		}
		s.fail(st, p, kind, fmt.Sprintf("dependency %s failed to apply", failed))
	}
}

func conflictReason(gitReason, fallback string) string {
	if gitReason == "" {
		return fallback
	}
	return fallback + ": " + gitReason
}
