package mocks

import (
	"context"

	"github.com/stretchr/testify/mock"
	"github.com/vytor/bizquest/internal/models"
)

// MockProgressRepository is a mock implementation of repository.ProgressRepository
type MockProgressRepository struct {
	mock.Mock
}

func (m *MockProgressRepository) Get(ctx context.Context, userID, levelID string) (*models.Progress, error) {
	args := m.Called(ctx, userID, levelID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.Progress), args.Error(1)
}

func (m *MockProgressRepository) ListForUser(ctx context.Context, userID string) ([]models.Progress, error) {
	args := m.Called(ctx, userID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]models.Progress), args.Error(1)
}

func (m *MockProgressRepository) Upsert(ctx context.Context, userID, levelID string, status models.ProgressStatus, score int) (*models.Progress, error) {
	args := m.Called(ctx, userID, levelID, status, score)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.Progress), args.Error(1)
}

func (m *MockProgressRepository) Start(ctx context.Context, userID, levelID string, score int) (*models.Progress, bool, error) {
	args := m.Called(ctx, userID, levelID, score)
	if args.Get(0) == nil {
		return nil, args.Bool(1), args.Error(2)
	}
	return args.Get(0).(*models.Progress), args.Bool(1), args.Error(2)
}

func (m *MockProgressRepository) Complete(ctx context.Context, userID, levelID string, score, xpPerLevel int) (*models.CompletionOutcome, error) {
	args := m.Called(ctx, userID, levelID, score, xpPerLevel)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.CompletionOutcome), args.Error(1)
}
