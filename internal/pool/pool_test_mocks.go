package pool

import (
	"time"

	"github.com/stretchr/testify/mock"

	"github.com/bjulian5/cq/internal/model"
	"github.com/bjulian5/cq/internal/series"
)

// MockReviewClient is a mock implementation of ReviewClient.
type MockReviewClient struct {
	mock.Mock
}

func (m *MockReviewClient) QueryReadyPatches(branch string) ([]*model.Patch, error) {
	args := m.Called(branch)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*model.Patch), args.Error(1)
}

func (m *MockReviewClient) QuerySingleRecord(value string) (*model.Patch, error) {
	args := m.Called(value)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.Patch), args.Error(1)
}

func (m *MockReviewClient) IsChangeCommitted(id model.ChangeID) (bool, error) {
	args := m.Called(id)
	return args.Bool(0), args.Error(1)
}

func (m *MockReviewClient) Submit(p *model.Patch) error {
	args := m.Called(p)
	return args.Error(0)
}

func (m *MockReviewClient) PostComment(p *model.Patch, msg string) error {
	args := m.Called(p, msg)
	return args.Error(0)
}

func (m *MockReviewClient) RemoveReadyMarker(p *model.Patch) error {
	args := m.Called(p)
	return args.Error(0)
}

func (m *MockReviewClient) ContentMergingProjects() (map[string]bool, error) {
	args := m.Called()
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(map[string]bool), args.Error(1)
}

// MockGate is a mock implementation of TreeGate.
type MockGate struct {
	mock.Mock
}

func (m *MockGate) IsOpen(maxTimeout time.Duration) bool {
	args := m.Called(maxTimeout)
	return args.Bool(0)
}

// MockSeries is a mock implementation of PatchSeries.
type MockSeries struct {
	mock.Mock
}

func (m *MockSeries) Apply(patches []*model.Patch, dryRun bool, contentMerging map[string]bool) (*series.Result, error) {
	args := m.Called(patches, dryRun, contentMerging)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*series.Result), args.Error(1)
}
