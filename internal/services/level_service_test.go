package services

import (
	"context"
	stderrors "errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/vytor/bizquest/internal/errors"
	"github.com/vytor/bizquest/internal/models"
	"github.com/vytor/bizquest/internal/testutil/mocks"
)

func TestListLevels(t *testing.T) {
	levels := new(mocks.MockLevelRepository)
	progress := new(mocks.MockProgressRepository)
	svc := NewLevelService(levels, progress)

	levels.On("ListActive", mock.Anything).Return(chain(), nil)
	levels.On("Edges", mock.Anything).Return(chainEdges(), nil)
	progress.On("ListForUser", mock.Anything, "u1").Return([]models.Progress{
		{LevelID: "level-1", Status: models.StatusCompleted, Score: 80},
		{LevelID: "level-2", Status: models.StatusInProgress},
	}, nil)

	list, err := svc.ListLevels(context.Background(), "u1")
	require.NoError(t, err)
	require.Len(t, list, 3)

	assert.True(t, list[0].IsCompleted)
	assert.Equal(t, "Completed", list[0].StatusLabel)
	assert.Equal(t, 80, list[0].Score)

	assert.True(t, list[1].IsAccessible)
	assert.Equal(t, models.StatusInProgress, list[1].Status)
	assert.Equal(t, "blue", list[1].StatusColor)

	assert.False(t, list[2].IsAccessible)
	assert.Equal(t, "lock", list[2].StatusIcon)
	assert.Nil(t, list[2].NextLevel)
}

func TestListLevelsRequiresUser(t *testing.T) {
	svc := NewLevelService(new(mocks.MockLevelRepository), new(mocks.MockProgressRepository))
	_, err := svc.ListLevels(context.Background(), "")
	assert.Equal(t, 401, errors.StatusOf(err))
}

func TestListLevelsStoreFailure(t *testing.T) {
	levels := new(mocks.MockLevelRepository)
	progress := new(mocks.MockProgressRepository)
	svc := NewLevelService(levels, progress)

	levels.On("ListActive", mock.Anything).Return(nil, stderrors.New("disk gone"))
	levels.On("Edges", mock.Anything).Return([]models.Prerequisite{}, nil)
	progress.On("ListForUser", mock.Anything, "u1").Return([]models.Progress{}, nil)

	_, err := svc.ListLevels(context.Background(), "u1")
	appErr, ok := errors.As(err)
	require.True(t, ok)
	assert.Equal(t, 500, appErr.Status)
	assert.Equal(t, "Failed to fetch levels", appErr.Message)
}

func TestGetLevelDetail(t *testing.T) {
	levels := new(mocks.MockLevelRepository)
	progress := new(mocks.MockProgressRepository)
	svc := NewLevelService(levels, progress)

	lvl := chain()[1]
	levels.On("Get", mock.Anything, "level-2").Return(&lvl, nil)
	levels.On("Prerequisites", mock.Anything, "level-2").Return([]models.Level{chain()[0]}, nil)
	progress.On("Get", mock.Anything, "u1", "level-2").Return(nil, nil)
	progress.On("ListForUser", mock.Anything, "u1").Return([]models.Progress{}, nil)

	detail, err := svc.GetLevelDetail(context.Background(), "u1", "level-2")
	require.NoError(t, err)
	assert.False(t, detail.IsAccessible)
	assert.Nil(t, detail.Progress)
	require.Len(t, detail.Prerequisites, 1)
	assert.Equal(t, "level-1", detail.Prerequisites[0].ID)
	assert.False(t, detail.Prerequisites[0].IsCompleted)
}

func TestGetLevelDetailInactive(t *testing.T) {
	levels := new(mocks.MockLevelRepository)
	svc := NewLevelService(levels, new(mocks.MockProgressRepository))

	lvl := models.Level{ID: "old", IsActive: false}
	levels.On("Get", mock.Anything, "old").Return(&lvl, nil)

	_, err := svc.GetLevelDetail(context.Background(), "u1", "old")
	assert.Equal(t, 404, errors.StatusOf(err))
}
