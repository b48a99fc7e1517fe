package pool

import (
	"fmt"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/bjulian5/cq/internal/model"
	"github.com/bjulian5/cq/internal/series"
)

func newTestPatch(n int, project, branch string) *model.Patch {
	return &model.Patch{
		Project:        project,
		TrackingBranch: branch,
		ChangeID:       fmt.Sprintf("ChangeId%d", n),
		GerritNumber:   fmt.Sprintf("%d", 1000+n),
		PatchNumber:    "2",
		SHA1:           strings.Repeat(fmt.Sprintf("%d", n%10), 40),
		Fetched:        true,
	}
}

func newTestManifest() *model.Manifest {
	return &model.Manifest{
		DefaultBranch: "master",
		Projects: map[string]model.ManifestProject{
			"chromiumos/tacos":    {Path: "src/tacos"},
			"chromiumos/burritos": {Path: "src/burritos"},
		},
	}
}

func masterConfig() Config {
	return Config{BuilderName: "x86-generic-paladin", BuildNumber: 1203, IsMaster: true}
}

func TestAcquire(t *testing.T) {
	inManifest := newTestPatch(1, "chromiumos/tacos", "master")
	outsideManifest := newTestPatch(2, "chromiumos/salsa", "master")
	wrongBranch := newTestPatch(3, "chromiumos/tacos", "release-R20")

	review := new(MockReviewClient)
	gate := new(MockGate)
	gate.On("IsOpen", acquireTreeTimeout).Return(true)
	review.On("QueryReadyPatches", "master").
		Return([]*model.Patch{inManifest, outsideManifest, wrongBranch}, nil)

	p, err := Acquire(masterConfig(), review, gate, new(MockSeries), newTestManifest())
	require.NoError(t, err)

	assert.Equal(t, []*model.Patch{inManifest}, p.Changes)
	assert.Equal(t, []*model.Patch{outsideManifest}, p.NonManifestChanges)
}

func TestAcquireTreeClosed(t *testing.T) {
	review := new(MockReviewClient)
	gate := new(MockGate)
	gate.On("IsOpen", acquireTreeTimeout).Return(false)

	_, err := Acquire(masterConfig(), review, gate, new(MockSeries), newTestManifest())
	assert.ErrorIs(t, err, ErrTreeClosed)
	review.AssertNotCalled(t, "QueryReadyPatches", mock.Anything)
}

func TestAcquireDryRunSkipsGate(t *testing.T) {
	review := new(MockReviewClient)
	gate := new(MockGate)
	review.On("QueryReadyPatches", "master").Return([]*model.Patch{}, nil)

	cfg := masterConfig()
	cfg.DryRun = true
	_, err := Acquire(cfg, review, gate, new(MockSeries), newTestManifest())
	require.NoError(t, err)
	gate.AssertNotCalled(t, "IsOpen", mock.Anything)
}

func TestAcquireFromManifest(t *testing.T) {
	patch := newTestPatch(1, "chromiumos/tacos", "master")
	review := new(MockReviewClient)
	review.On("QuerySingleRecord", "ChangeId1").Return(patch, nil)

	cfg := masterConfig()
	cfg.IsMaster = false
	p, err := AcquireFromManifest(cfg, review, new(MockGate), new(MockSeries),
		[]model.PinnedCommit{{Project: "chromiumos/tacos", ChangeID: "ChangeId1"}})
	require.NoError(t, err)
	assert.Equal(t, []*model.Patch{patch}, p.Changes)
}

func TestApplyPoolIntoRepo(t *testing.T) {
	applied := newTestPatch(1, "chromiumos/tacos", "master")
	atTip := newTestPatch(2, "chromiumos/tacos", "master")
	inflight := newTestPatch(3, "chromiumos/burritos", "master")
	changes := []*model.Patch{applied, atTip, inflight}

	review := new(MockReviewClient)
	gate := new(MockGate)
	ps := new(MockSeries)

	review.On("ContentMergingProjects").Return(map[string]bool{}, nil)
	ps.On("Apply", changes, false, map[string]bool{}).Return(&series.Result{
		Applied: []*model.Patch{applied},
		FailedAtTip: []*model.ApplyFailure{
			{Patch: atTip, Kind: model.ConflictTip, Reason: "patch conflict"},
		},
		FailedInflight: []*model.ApplyFailure{
			{Patch: inflight, Kind: model.ConflictInflight, Reason: "patch conflict"},
		},
	}, nil)
	review.On("PostComment", applied, mock.MatchedBy(func(msg string) bool {
		return strings.Contains(msg, "picked up")
	})).Return(nil)
	review.On("PostComment", atTip, mock.MatchedBy(func(msg string) bool {
		return strings.Contains(msg, "failed to apply")
	})).Return(nil)
	review.On("RemoveReadyMarker", atTip).Return(nil)

	p := New(masterConfig(), review, gate, ps)
	p.Changes = changes

	ok, err := p.ApplyPoolIntoRepo()
	require.NoError(t, err)
	assert.True(t, ok)

	assert.Equal(t, []*model.Patch{applied}, p.Changes)
	assert.Equal(t, []*model.Patch{inflight}, p.FailedInflightEarlier)

	// The inflight conflict is requeued without touching the review server.
	review.AssertNotCalled(t, "PostComment", inflight, mock.Anything)
	review.AssertNotCalled(t, "RemoveReadyMarker", inflight)
	review.AssertExpectations(t)
}

func TestApplyPoolIntoRepoNonMasterIsSilent(t *testing.T) {
	atTip := newTestPatch(1, "chromiumos/tacos", "master")
	changes := []*model.Patch{atTip}

	review := new(MockReviewClient)
	ps := new(MockSeries)
	review.On("ContentMergingProjects").Return(map[string]bool{}, nil)
	ps.On("Apply", changes, false, map[string]bool{}).Return(&series.Result{
		FailedAtTip: []*model.ApplyFailure{
			{Patch: atTip, Kind: model.ConflictTip, Reason: "patch conflict"},
		},
	}, nil)

	cfg := masterConfig()
	cfg.IsMaster = false
	p := New(cfg, review, new(MockGate), ps)
	p.Changes = changes

	ok, err := p.ApplyPoolIntoRepo()
	require.NoError(t, err)
	assert.False(t, ok)
	review.AssertNotCalled(t, "PostComment", mock.Anything, mock.Anything)
	review.AssertNotCalled(t, "RemoveReadyMarker", mock.Anything)
}

func TestSubmitPool(t *testing.T) {
	first := newTestPatch(1, "chromiumos/tacos", "master")
	second := newTestPatch(2, "chromiumos/tacos", "master")
	third := newTestPatch(3, "chromiumos/burritos", "master")

	review := new(MockReviewClient)
	gate := new(MockGate)
	gate.On("IsOpen", submitTreeTimeout).Return(true)

	// All three submits run; the second never shows up as merged.
	review.On("Submit", first).Return(nil)
	review.On("Submit", second).Return(nil)
	review.On("Submit", third).Return(nil)
	review.On("IsChangeCommitted", first.ID()).Return(true, nil)
	review.On("IsChangeCommitted", second.ID()).Return(false, nil)
	review.On("IsChangeCommitted", third.ID()).Return(true, nil)
	review.On("PostComment", second, mock.MatchedBy(func(msg string) bool {
		return strings.Contains(msg, "failed to submit")
	})).Return(nil)
	review.On("RemoveReadyMarker", second).Return(nil)

	p := New(masterConfig(), review, gate, new(MockSeries))
	p.Changes = []*model.Patch{first, second, third}

	err := p.SubmitPool()
	var submitErr *model.SubmitError
	require.ErrorAs(t, err, &submitErr)
	assert.Equal(t, []*model.Patch{second}, submitErr.Patches)
	review.AssertExpectations(t)
}

func TestSubmitPoolNonMaster(t *testing.T) {
	cfg := masterConfig()
	cfg.IsMaster = false
	p := New(cfg, new(MockReviewClient), new(MockGate), new(MockSeries))
	assert.Error(t, p.SubmitPool())
}

func TestSubmitPoolTreeClosed(t *testing.T) {
	review := new(MockReviewClient)
	gate := new(MockGate)
	gate.On("IsOpen", submitTreeTimeout).Return(false)

	p := New(masterConfig(), review, gate, new(MockSeries))
	p.Changes = []*model.Patch{newTestPatch(1, "chromiumos/tacos", "master")}

	assert.ErrorIs(t, p.SubmitPool(), ErrTreeClosed)
	review.AssertNotCalled(t, "Submit", mock.Anything)
}

func TestSubmitPoolDryRun(t *testing.T) {
	review := new(MockReviewClient)
	gate := new(MockGate)

	cfg := masterConfig()
	cfg.DryRun = true
	p := New(cfg, review, gate, new(MockSeries))
	p.Changes = []*model.Patch{newTestPatch(1, "chromiumos/tacos", "master")}

	require.NoError(t, p.SubmitPool())
	gate.AssertNotCalled(t, "IsOpen", mock.Anything)
	review.AssertNotCalled(t, "Submit", mock.Anything)
	review.AssertNotCalled(t, "IsChangeCommitted", mock.Anything)
}

func TestSubmitNonManifestChanges(t *testing.T) {
	outside := newTestPatch(4, "chromiumos/salsa", "master")
	review := new(MockReviewClient)
	gate := new(MockGate)
	gate.On("IsOpen", submitTreeTimeout).Return(true)
	review.On("Submit", outside).Return(nil)
	review.On("IsChangeCommitted", outside.ID()).Return(true, nil)

	p := New(masterConfig(), review, gate, new(MockSeries))
	p.NonManifestChanges = []*model.Patch{outside}
	require.NoError(t, p.SubmitNonManifestChanges())
	review.AssertExpectations(t)
}

func TestHandleValidationFailure(t *testing.T) {
	first := newTestPatch(1, "chromiumos/tacos", "master")
	second := newTestPatch(2, "chromiumos/tacos", "master")

	review := new(MockReviewClient)
	review.On("PostComment", first, mock.MatchedBy(func(msg string) bool {
		return strings.Contains(msg, "failed to verify")
	})).Return(nil)
	review.On("PostComment", second, mock.Anything).Return(nil)
	review.On("RemoveReadyMarker", first).Return(nil)
	review.On("RemoveReadyMarker", second).Return(nil)

	p := New(masterConfig(), review, new(MockGate), new(MockSeries))
	p.Changes = []*model.Patch{first, second}
	p.HandleValidationFailure()
	review.AssertExpectations(t)
}
