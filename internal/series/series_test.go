package series

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/bjulian5/cq/internal/deps"
	"github.com/bjulian5/cq/internal/git"
	"github.com/bjulian5/cq/internal/model"
)

// newTestPatch builds a fetched patch with deterministic identity fields.
func newTestPatch(n int) *model.Patch {
	return &model.Patch{
		Project:        "chromiumos/tacos",
		TrackingBranch: "master",
		ChangeID:       fmt.Sprintf("ChangeId%d", n),
		GerritNumber:   fmt.Sprintf("%d", 1000+n),
		SHA1:           fmt.Sprintf("%040d", n),
		Fetched:        true,
	}
}

// noDeps scripts a patch with no dependencies of either kind.
func noDeps(applier *MockApplier, p *model.Patch) {
	applier.On("StructuralDeps", p).Return([]string{}, nil)
	applier.On("DeclaredDeps", p).Return([]string{}, nil)
}

func applied() git.ApplyResult {
	return git.ApplyResult{Status: git.Applied}
}

func failedPatches(failures []*model.ApplyFailure) []*model.Patch {
	patches := make([]*model.Patch, 0, len(failures))
	for _, f := range failures {
		patches = append(patches, f.Patch)
	}
	return patches
}

func TestApplySimpleChain(t *testing.T) {
	// A depends on B, B depends on C, submitted in order [A, B, C].
	patchA, patchB, patchC := newTestPatch(1), newTestPatch(2), newTestPatch(3)

	applier := &MockApplier{}
	review := &MockReviewClient{}
	applier.On("StructuralDeps", patchA).Return([]string{patchB.ChangeID}, nil)
	applier.On("DeclaredDeps", patchA).Return([]string{}, nil)
	applier.On("StructuralDeps", patchB).Return([]string{patchC.ChangeID}, nil)
	applier.On("DeclaredDeps", patchB).Return([]string{}, nil)
	noDeps(applier, patchC)
	applier.On("Apply", mock.Anything, true).Return(applied(), nil)

	res, err := New(applier, review).Apply([]*model.Patch{patchA, patchB, patchC}, false, nil)
	require.NoError(t, err)

	assert.Equal(t, []*model.Patch{patchC, patchB, patchA}, res.Applied)
	assert.Empty(t, res.FailedAtTip)
	assert.Empty(t, res.FailedInflight)
}

func TestApplyPlanOrderIsDeterministic(t *testing.T) {
	// Same input, same dependency data: the plan order must not vary
	// across runs.
	var orders [][]string
	for run := 0; run < 5; run++ {
		patch1, patch2, patch3, patch4 := newTestPatch(1), newTestPatch(2), newTestPatch(3), newTestPatch(4)

		applier := &MockApplier{}
		review := &MockReviewClient{}
		applier.On("StructuralDeps", patch1).Return([]string{patch3.ChangeID, patch4.ChangeID}, nil)
		applier.On("DeclaredDeps", patch1).Return([]string{}, nil)
		noDeps(applier, patch2)
		noDeps(applier, patch3)
		noDeps(applier, patch4)
		applier.On("Apply", mock.Anything, true).Return(applied(), nil)

		res, err := New(applier, review).Apply([]*model.Patch{patch1, patch2, patch3, patch4}, false, nil)
		require.NoError(t, err)

		order := make([]string, 0, len(res.Applied))
		for _, p := range res.Applied {
			order = append(order, p.ChangeID)
		}
		orders = append(orders, order)
	}

	for _, order := range orders[1:] {
		assert.Equal(t, orders[0], order)
	}
	assert.Equal(t, []string{"ChangeId3", "ChangeId4", "ChangeId1", "ChangeId2"}, orders[0])
}

func TestApplyMissingDependency(t *testing.T) {
	t.Run("NotReady", func(t *testing.T) {
		patchA := newTestPatch(1)

		applier := &MockApplier{}
		review := &MockReviewClient{}
		applier.On("StructuralDeps", patchA).Return([]string{}, nil)
		applier.On("DeclaredDeps", patchA).Return([]string{"X9"}, nil)
		review.On("IsChangeCommitted", model.ChangeID{Value: "X9"}).Return(false, nil)

		res, err := New(applier, review).Apply([]*model.Patch{patchA}, false, nil)
		require.NoError(t, err)

		assert.Empty(t, res.Applied)
		require.Len(t, res.FailedAtTip, 1)
		assert.Same(t, patchA, res.FailedAtTip[0].Patch)
		assert.Contains(t, res.FailedAtTip[0].Reason, "X9")
		applier.AssertNotCalled(t, "Apply", mock.Anything, mock.Anything)
	})

	t.Run("AlreadyMerged", func(t *testing.T) {
		patchA := newTestPatch(1)

		applier := &MockApplier{}
		review := &MockReviewClient{}
		applier.On("StructuralDeps", patchA).Return([]string{}, nil)
		applier.On("DeclaredDeps", patchA).Return([]string{"2023"}, nil)
		review.On("IsChangeCommitted", model.ChangeID{Value: "2023"}).Return(true, nil)
		applier.On("Apply", patchA, true).Return(applied(), nil)

		res, err := New(applier, review).Apply([]*model.Patch{patchA}, false, nil)
		require.NoError(t, err)

		assert.Equal(t, []*model.Patch{patchA}, res.Applied)
		assert.Empty(t, res.FailedAtTip)
	})

	t.Run("LookupErrorIsFatal", func(t *testing.T) {
		patchA := newTestPatch(1)

		applier := &MockApplier{}
		review := &MockReviewClient{}
		applier.On("StructuralDeps", patchA).Return([]string{}, nil)
		applier.On("DeclaredDeps", patchA).Return([]string{"X9"}, nil)
		review.On("IsChangeCommitted", model.ChangeID{Value: "X9"}).
			Return(false, errors.New("gerrit unreachable"))

		_, err := New(applier, review).Apply([]*model.Patch{patchA}, false, nil)
		assert.Error(t, err)
	})
}

func TestApplyTipVersusInflight(t *testing.T) {
	// A conflicts with the branch tip; B conflicts only with a commit
	// introduced earlier in this same plan.
	patchA, patchB, patchC := newTestPatch(1), newTestPatch(2), newTestPatch(3)

	applier := &MockApplier{}
	review := &MockReviewClient{}
	noDeps(applier, patchA)
	noDeps(applier, patchB)
	noDeps(applier, patchC)
	applier.On("Apply", patchA, true).Return(git.ApplyResult{Status: git.ConflictAtTip}, nil)
	applier.On("Apply", patchB, true).Return(git.ApplyResult{Status: git.ConflictInflight}, nil)
	applier.On("Apply", patchC, true).Return(applied(), nil)

	res, err := New(applier, review).Apply([]*model.Patch{patchA, patchB, patchC}, false, nil)
	require.NoError(t, err)

	assert.Equal(t, []*model.Patch{patchC}, res.Applied)
	assert.Equal(t, []*model.Patch{patchA}, failedPatches(res.FailedAtTip))
	assert.Equal(t, []*model.Patch{patchB}, failedPatches(res.FailedInflight))
}

func TestApplyCascade(t *testing.T) {
	t.Run("DependentOfTipFailureNeverApplied", func(t *testing.T) {
		// B depends on A; A fails against the tip.
		patchA, patchB := newTestPatch(1), newTestPatch(2)

		applier := &MockApplier{}
		review := &MockReviewClient{}
		noDeps(applier, patchA)
		applier.On("StructuralDeps", patchB).Return([]string{patchA.ChangeID}, nil)
		applier.On("DeclaredDeps", patchB).Return([]string{}, nil)
		applier.On("Apply", patchA, true).Return(git.ApplyResult{Status: git.ConflictAtTip}, nil)

		res, err := New(applier, review).Apply([]*model.Patch{patchA, patchB}, false, nil)
		require.NoError(t, err)

		assert.Empty(t, res.Applied)
		assert.ElementsMatch(t, []*model.Patch{patchA, patchB}, failedPatches(res.FailedAtTip))
		assert.Empty(t, res.FailedInflight)
		applier.AssertNotCalled(t, "Apply", patchB, mock.Anything)
	})

	t.Run("TransitiveDependentsInheritInflightTag", func(t *testing.T) {
		// C depends on B depends on A; A hits an inflight conflict.
		patchA, patchB, patchC := newTestPatch(1), newTestPatch(2), newTestPatch(3)

		applier := &MockApplier{}
		review := &MockReviewClient{}
		noDeps(applier, patchA)
		applier.On("StructuralDeps", patchB).Return([]string{patchA.ChangeID}, nil)
		applier.On("DeclaredDeps", patchB).Return([]string{}, nil)
		applier.On("StructuralDeps", patchC).Return([]string{patchB.GerritNumber}, nil)
		applier.On("DeclaredDeps", patchC).Return([]string{}, nil)
		applier.On("Apply", patchA, true).Return(git.ApplyResult{Status: git.ConflictInflight}, nil)

		res, err := New(applier, review).Apply([]*model.Patch{patchA, patchB, patchC}, false, nil)
		require.NoError(t, err)

		assert.Empty(t, res.Applied)
		assert.Empty(t, res.FailedAtTip)
		assert.ElementsMatch(t, []*model.Patch{patchA, patchB, patchC},
			failedPatches(res.FailedInflight))
	})
}

func TestApplyPartitionIsDisjoint(t *testing.T) {
	patches := []*model.Patch{newTestPatch(1), newTestPatch(2), newTestPatch(3), newTestPatch(4)}

	applier := &MockApplier{}
	review := &MockReviewClient{}
	for _, p := range patches {
		noDeps(applier, p)
	}
	applier.On("Apply", patches[0], true).Return(applied(), nil)
	applier.On("Apply", patches[1], true).Return(git.ApplyResult{Status: git.ConflictAtTip}, nil)
	applier.On("Apply", patches[2], true).Return(git.ApplyResult{Status: git.ConflictInflight}, nil)
	applier.On("Apply", patches[3], true).Return(applied(), nil)

	res, err := New(applier, review).Apply(patches, false, nil)
	require.NoError(t, err)

	seen := make(map[*model.Patch]int)
	for _, p := range res.Applied {
		seen[p]++
	}
	for _, p := range failedPatches(res.FailedAtTip) {
		seen[p]++
	}
	for _, p := range failedPatches(res.FailedInflight) {
		seen[p]++
	}
	for _, p := range patches {
		assert.Equal(t, 1, seen[p], "patch %s must appear in exactly one set", p)
	}
}

func TestApplyBrokenDependencyData(t *testing.T) {
	patchA, patchB := newTestPatch(1), newTestPatch(2)

	applier := &MockApplier{}
	review := &MockReviewClient{}
	applier.On("StructuralDeps", patchA).Return(nil,
		&deps.BrokenChangeIDError{Commit: "c1", Trailer: "1234abcd"})
	noDeps(applier, patchB)
	applier.On("Apply", patchB, true).Return(applied(), nil)

	res, err := New(applier, review).Apply([]*model.Patch{patchA, patchB}, false, nil)
	require.NoError(t, err)

	assert.Equal(t, []*model.Patch{patchB}, res.Applied)
	assert.Equal(t, []*model.Patch{patchA}, failedPatches(res.FailedAtTip))
	assert.NotEmpty(t, patchA.ApplyErrorMessage)
	applier.AssertNotCalled(t, "Apply", patchA, mock.Anything)
}

func TestApplyMergeStrategy(t *testing.T) {
	t.Run("DryRunAllowsThreeWay", func(t *testing.T) {
		patchA := newTestPatch(1)

		applier := &MockApplier{}
		review := &MockReviewClient{}
		noDeps(applier, patchA)
		applier.On("Apply", patchA, false).Return(applied(), nil)

		_, err := New(applier, review).Apply([]*model.Patch{patchA}, true, nil)
		require.NoError(t, err)
		applier.AssertExpectations(t)
	})

	t.Run("ContentMergingProjectAllowsThreeWay", func(t *testing.T) {
		patchA := newTestPatch(1)

		applier := &MockApplier{}
		review := &MockReviewClient{}
		noDeps(applier, patchA)
		applier.On("Apply", patchA, false).Return(applied(), nil)

		merging := map[string]bool{patchA.Project: true}
		_, err := New(applier, review).Apply([]*model.Patch{patchA}, false, merging)
		require.NoError(t, err)
		applier.AssertExpectations(t)
	})
}

func TestApplyInfrastructureFailureIsFatal(t *testing.T) {
	patchA := newTestPatch(1)

	applier := &MockApplier{}
	review := &MockReviewClient{}
	noDeps(applier, patchA)
	applier.On("Apply", patchA, true).
		Return(git.ApplyResult{}, errors.New("checkout unusable"))

	_, err := New(applier, review).Apply([]*model.Patch{patchA}, false, nil)
	assert.ErrorContains(t, err, "checkout unusable")
}

func TestApplyFetchesUnfetchedPatches(t *testing.T) {
	patchA := newTestPatch(1)
	patchA.Fetched = false

	applier := &MockApplier{}
	review := &MockReviewClient{}
	applier.On("Fetch", patchA).Return(nil)
	noDeps(applier, patchA)
	applier.On("Apply", patchA, true).Return(applied(), nil)

	res, err := New(applier, review).Apply([]*model.Patch{patchA}, false, nil)
	require.NoError(t, err)
	assert.True(t, patchA.Fetched)
	assert.Equal(t, []*model.Patch{patchA}, res.Applied)
	applier.AssertExpectations(t)
}
