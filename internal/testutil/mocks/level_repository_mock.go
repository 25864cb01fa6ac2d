package mocks

import (
	"context"

	"github.com/stretchr/testify/mock"
	"github.com/vytor/bizquest/internal/models"
)

// MockLevelRepository is a mock implementation of repository.LevelRepository
type MockLevelRepository struct {
	mock.Mock
}

func (m *MockLevelRepository) ListActive(ctx context.Context) ([]models.Level, error) {
	args := m.Called(ctx)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]models.Level), args.Error(1)
}

func (m *MockLevelRepository) Get(ctx context.Context, id string) (*models.Level, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.Level), args.Error(1)
}

func (m *MockLevelRepository) Prerequisites(ctx context.Context, levelID string) ([]models.Level, error) {
	args := m.Called(ctx, levelID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]models.Level), args.Error(1)
}

func (m *MockLevelRepository) Edges(ctx context.Context) ([]models.Prerequisite, error) {
	args := m.Called(ctx)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]models.Prerequisite), args.Error(1)
}

func (m *MockLevelRepository) Sync(ctx context.Context, levels []models.Level, edges []models.Prerequisite) error {
	args := m.Called(ctx, levels, edges)
	return args.Error(0)
}
