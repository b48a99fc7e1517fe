// Package pool implements the validation pool: the set of changes that
// are ready to be validated and committed by the commit queue.
package pool

import (
	"errors"
	"fmt"
	"time"

	"github.com/bjulian5/cq/internal/model"
	"github.com/bjulian5/cq/internal/series"
	"github.com/bjulian5/cq/internal/ui"
)

// ErrTreeClosed is returned when the tree is closed and changes were
// about to be landed.
var ErrTreeClosed = errors.New("tree is closed; please set it to open or throttled to commit")

const (
	// acquireTreeTimeout is how long a fresh pool waits for the tree to
	// open. Nothing has been committed to yet, so waiting here saves
	// builder cycles.
	acquireTreeTimeout = time.Hour

	// submitTreeTimeout keeps some robustness against status flakiness
	// at submit time without letting validation results go stale.
	submitTreeTimeout = 10 * time.Minute
)

// ReviewClient is the review-server surface the pool drives.
type ReviewClient interface {
	QueryReadyPatches(branch string) ([]*model.Patch, error)
	QuerySingleRecord(value string) (*model.Patch, error)
	IsChangeCommitted(id model.ChangeID) (bool, error)
	Submit(p *model.Patch) error
	PostComment(p *model.Patch, msg string) error
	RemoveReadyMarker(p *model.Patch) error
	ContentMergingProjects() (map[string]bool, error)
}

// TreeGate answers whether it is currently safe to land changes.
type TreeGate interface {
	IsOpen(maxTimeout time.Duration) bool
}

// PatchSeries resolves and applies one batch of patches.
type PatchSeries interface {
	Apply(patches []*model.Patch, dryRun bool, contentMerging map[string]bool) (*series.Result, error)
}

// Config identifies one validation attempt.
type Config struct {
	Internal    bool
	BuildNumber int
	BuilderName string

	// IsMaster is true for the builder that owns submission. Slave
	// builders apply and validate but never submit or notify.
	IsMaster bool

	// DryRun suppresses every review-server mutation.
	DryRun bool
}

// Pool carries the candidate changes across one validation cycle.
type Pool struct {
	cfg      Config
	buildLog string

	review ReviewClient
	gate   TreeGate
	series PatchSeries

	// Changes are the patches currently believed ready. After
	// ApplyPoolIntoRepo it holds exactly the applied set, in apply order.
	Changes []*model.Patch

	// NonManifestChanges are ready patches for projects outside the
	// manifest. They are submitted independently and never built.
	NonManifestChanges []*model.Patch

	// FailedInflightEarlier holds patches that conflicted with other
	// patches in flight. They did nothing wrong and are retried next
	// cycle without notifying their owners.
	FailedInflightEarlier []*model.Patch

	contentMerging map[string]bool
}

// New creates a pool without acquiring any changes. Use Acquire or
// AcquireFromManifest instead unless rebuilding saved state.
func New(cfg Config, review ReviewClient, gate TreeGate, ps PatchSeries) *Pool {
	return &Pool{
		cfg:      cfg,
		buildLog: buildLogURL(cfg),
		review:   review,
		gate:     gate,
		series:   ps,
	}
}

// Acquire polls the review server for the changes that are ready to be
// committed on the manifest's branches. Only master builders acquire
// directly; the tree must be open first.
func Acquire(cfg Config, review ReviewClient, gate TreeGate, ps PatchSeries, manifest *model.Manifest) (*Pool, error) {
	p := New(cfg, review, gate, ps)
	if !cfg.DryRun && !p.gate.IsOpen(acquireTreeTimeout) {
		return nil, ErrTreeClosed
	}

	raw, err := review.QueryReadyPatches(manifest.DefaultBranch)
	if err != nil {
		return nil, fmt.Errorf("failed to query ready changes: %w", err)
	}
	p.Changes, p.NonManifestChanges = filterManifestChanges(raw, manifest)
	return p, nil
}

// AcquireFromManifest rebuilds the pool a master builder recorded into a
// manifest snapshot, so slave builders validate the identical set.
func AcquireFromManifest(cfg Config, review ReviewClient, gate TreeGate, ps PatchSeries, pinned []model.PinnedCommit) (*Pool, error) {
	p := New(cfg, review, gate, ps)
	for _, pin := range pinned {
		patch, err := review.QuerySingleRecord(pin.ChangeID)
		if err != nil {
			return nil, fmt.Errorf("failed to look up pinned change %s: %w", pin.ChangeID, err)
		}
		p.Changes = append(p.Changes, patch)
	}
	return p, nil
}

// filterManifestChanges splits the raw candidate set into changes on
// manifest projects and ready changes outside the manifest. Changes whose
// target branch differs from the branch the manifest tracks for their
// project are dropped entirely.
func filterManifestChanges(raw []*model.Patch, manifest *model.Manifest) (in, out []*model.Patch) {
	for _, patch := range raw {
		if manifest.BranchFor(patch.Project) != patch.TrackingBranch {
			ui.Infof("Filtered change %s targeting branch %s", patch, patch.TrackingBranch)
			continue
		}
		if manifest.HasProject(patch.Project) {
			in = append(in, patch)
		} else {
			out = append(out, patch)
		}
	}
	return in, out
}

// ApplyPoolIntoRepo applies the pool into the working checkout in
// dependency order and interprets the outcome partition. Returns true if
// at least one change applied, which is what lets the surrounding build
// proceed at all.
func (p *Pool) ApplyPoolIntoRepo() (bool, error) {
	merging, err := p.contentMergingProjects()
	if err != nil {
		return false, err
	}

	res, err := p.series.Apply(p.Changes, p.cfg.DryRun, merging)
	if err != nil {
		return false, err
	}

	for _, patch := range res.Applied {
		ui.Infof("Applied %s", patch)
		if p.cfg.IsMaster {
			p.HandleApplied(patch)
		}
	}

	for _, failure := range res.FailedAtTip {
		ui.Warningf("Change %s did not apply cleanly: %s", failure.Patch, failure.Reason)
		if p.cfg.IsMaster {
			p.HandleCouldNotApply(failure.Patch)
		}
	}

	p.FailedInflightEarlier = p.FailedInflightEarlier[:0]
	for _, failure := range res.FailedInflight {
		// The batch composition was unlucky; retry next cycle without
		// bothering the author.
		p.FailedInflightEarlier = append(p.FailedInflightEarlier, failure.Patch)
	}

	p.Changes = res.Applied
	return len(p.Changes) > 0, nil
}

// SubmitPool submits every applied change. Only master builders may call
// this. Submission is verified after the fact, and a failure on one
// change never pre-empts the attempt on the rest.
func (p *Pool) SubmitPool() error {
	if !p.cfg.IsMaster {
		return errors.New("non-master builder cannot submit the pool")
	}
	return p.submitChanges(p.Changes)
}

// SubmitNonManifestChanges submits the ready changes that are not part
// of the checkout.
func (p *Pool) SubmitNonManifestChanges() error {
	return p.submitChanges(p.NonManifestChanges)
}

func (p *Pool) submitChanges(changes []*model.Patch) error {
	if !p.cfg.DryRun && !p.gate.IsOpen(submitTreeTimeout) {
		return ErrTreeClosed
	}

	var failed []*model.Patch
	for _, patch := range changes {
		ui.Infof("Submitting change %s", patch)
		if p.submitChange(patch) {
			continue
		}
		ui.Errorf("Could not submit %s", patch)
		p.HandleCouldNotSubmit(patch)
		failed = append(failed, patch)
	}

	if len(failed) > 0 {
		return &model.SubmitError{Patches: failed}
	}
	return nil
}

// submitChange submits one change and verifies it actually merged. The
// submit command's exit status alone is not trusted: submitting races
// with other submitters.
func (p *Pool) submitChange(patch *model.Patch) bool {
	if p.cfg.DryRun {
		ui.Infof("(dry run) would have submitted %s", patch)
		return true
	}
	if err := p.review.Submit(patch); err != nil {
		ui.Errorf("Submit failed for %s: %v", patch, err)
		return false
	}
	merged, err := p.review.IsChangeCommitted(patch.ID())
	if err != nil {
		ui.Errorf("Could not verify submission of %s: %v", patch, err)
		return false
	}
	return merged
}

// HandleValidationFailure is invoked when a later build or test stage
// fails the applied set as a whole. The pool has no finer-grained
// attribution at this layer, so every change loses its ready marker.
func (p *Pool) HandleValidationFailure() {
	ui.Warning("Validation failed for all changes.")
	for _, patch := range p.Changes {
		p.notify(patch, couldNotVerifyMessage)
		p.removeReady(patch)
	}
}

// HandleApplied tells the author their change was picked up and where to
// watch it.
func (p *Pool) HandleApplied(patch *model.Patch) {
	p.notify(patch, pickedUpMessage)
}

// HandleCouldNotApply notifies the author that their change must be
// rebased and strips the ready marker so it is not retried as-is.
func (p *Pool) HandleCouldNotApply(patch *model.Patch) {
	detail := patch.ApplyErrorMessage
	if detail == "" {
		detail = defaultApplyErrorAdvice
	}
	p.notify(patch, couldNotApplyMessage, detail)
	p.removeReady(patch)
}

// HandleCouldNotSubmit handles the rare race where a change applied and
// validated but would not submit, e.g. because an admin landed a
// conflicting change around the queue.
func (p *Pool) HandleCouldNotSubmit(patch *model.Patch) {
	p.notify(patch, couldNotSubmitMessage)
	p.removeReady(patch)
}

// contentMergingProjects is fetched once per pool lifetime.
func (p *Pool) contentMergingProjects() (map[string]bool, error) {
	if p.contentMerging == nil {
		merging, err := p.review.ContentMergingProjects()
		if err != nil {
			return nil, fmt.Errorf("failed to find content merging projects: %w", err)
		}
		p.contentMerging = merging
	}
	return p.contentMerging, nil
}

// notify posts an author-facing comment. Notification failures are
// reported but never fail the cycle.
func (p *Pool) notify(patch *model.Patch, template string, detail ...string) {
	msg := formatMessage(template, p.buildLog, detail...)
	if p.cfg.DryRun {
		ui.Infof("(dry run) would have commented on %s: %s", patch, msg)
		return
	}
	if err := p.review.PostComment(patch, msg); err != nil {
		ui.Warningf("Failed to comment on %s: %v", patch, err)
	}
}

func (p *Pool) removeReady(patch *model.Patch) {
	if p.cfg.DryRun {
		ui.Infof("(dry run) would have removed the ready marker on %s", patch)
		return
	}
	if err := p.review.RemoveReadyMarker(patch); err != nil {
		ui.Warningf("Failed to remove ready marker on %s: %v", patch, err)
	}
}
