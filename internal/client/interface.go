package client

import (
	"context"

	"github.com/vytor/bizquest/internal/models"
)

// LevelsAPI is the slice of the HTTP API the progress cache needs.
type LevelsAPI interface {
	ListLevels(ctx context.Context) ([]models.LevelWithStatus, error)
	StartLevel(ctx context.Context, levelID string) (*models.Progress, error)
	CompleteLevel(ctx context.Context, levelID string, score int) (*models.CompletionResult, error)
}

// Ensure Client implements the interface
var _ LevelsAPI = (*Client)(nil)
