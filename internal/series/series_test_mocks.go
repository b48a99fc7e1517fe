package series

import (
	"github.com/stretchr/testify/mock"

	"github.com/bjulian5/cq/internal/git"
	"github.com/bjulian5/cq/internal/model"
)

type MockApplier struct {
	mock.Mock
}

// Fetch implements Applier.
func (m *MockApplier) Fetch(p *model.Patch) error {
	args := m.Called(p)
	return args.Error(0)
}

// Apply implements Applier.
func (m *MockApplier) Apply(p *model.Patch, trivial bool) (git.ApplyResult, error) {
	args := m.Called(p, trivial)
	return args.Get(0).(git.ApplyResult), args.Error(1)
}

// StructuralDeps implements Applier.
func (m *MockApplier) StructuralDeps(p *model.Patch) ([]string, error) {
	args := m.Called(p)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]string), args.Error(1)
}

// DeclaredDeps implements Applier.
func (m *MockApplier) DeclaredDeps(p *model.Patch) ([]string, error) {
	args := m.Called(p)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]string), args.Error(1)
}

type MockReviewClient struct {
	mock.Mock
}

// IsChangeCommitted implements ReviewClient.
func (m *MockReviewClient) IsChangeCommitted(id model.ChangeID) (bool, error) {
	args := m.Called(id)
	return args.Bool(0), args.Error(1)
}
