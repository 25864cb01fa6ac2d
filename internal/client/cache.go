package client

import (
	"context"
	"errors"
	"sort"
	"sync"

	"github.com/vytor/bizquest/internal/logger"
	"github.com/vytor/bizquest/internal/models"
	"github.com/vytor/bizquest/internal/progression"
)

// ProgressCache holds the user's level list as last reported by the server.
// It is only ever replaced wholesale by Refresh, never patched locally.
type ProgressCache struct {
	api LevelsAPI

	mu      sync.RWMutex
	levels  []models.LevelWithStatus
	loading bool
	err     string
}

func NewProgressCache(api LevelsAPI) *ProgressCache {
	return &ProgressCache{api: api}
}

func errMessage(err error, fallback string) string {
	var apiErr *APIError
	if errors.As(err, &apiErr) && apiErr.Message != "" {
		return apiErr.Message
	}
	if err != nil && err.Error() != "" {
		return err.Error()
	}
	return fallback
}

func (c *ProgressCache) setErr(msg string) {
	c.mu.Lock()
	c.err = msg
	c.mu.Unlock()
}

// Refresh fetches the full level list and replaces the cache.
func (c *ProgressCache) Refresh(ctx context.Context) error {
	c.mu.Lock()
	c.loading = true
	c.err = ""
	c.mu.Unlock()

	levels, err := c.api.ListLevels(ctx)

	c.mu.Lock()
	defer c.mu.Unlock()
	c.loading = false
	if err != nil {
		logger.FromContext(ctx).WithPrefix("progress_cache").Warn("refresh failed: %v", err)
		c.err = errMessage(err, "Failed to fetch levels")
		return err
	}
	sort.SliceStable(levels, func(i, j int) bool {
		if levels[i].OrderIndex != levels[j].OrderIndex {
			return levels[i].OrderIndex < levels[j].OrderIndex
		}
		return levels[i].ID < levels[j].ID
	})
	c.levels = levels
	return nil
}

// Levels returns a copy of the cached list.
func (c *ProgressCache) Levels() []models.LevelWithStatus {
	c.mu.RLock()
	defer c.mu.RUnlock()
	out := make([]models.LevelWithStatus, len(c.levels))
	copy(out, c.levels)
	return out
}

func (c *ProgressCache) Loading() bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.loading
}

// Err is the message of the last failed operation, or "".
func (c *ProgressCache) Err() string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.err
}

// CurrentLevel is the first level that is accessible and not completed.
func (c *ProgressCache) CurrentLevel() (*models.LevelWithStatus, bool) {
	return progression.Current(c.Levels())
}

// NextLevel is the first level that completing the current level unlocks.
func (c *ProgressCache) NextLevel() (*models.LevelWithStatus, bool) {
	return progression.Next(c.Levels())
}

// Start marks a level in progress and refreshes. Failures land in Err.
func (c *ProgressCache) Start(ctx context.Context, levelID string) bool {
	if _, err := c.api.StartLevel(ctx, levelID); err != nil {
		logger.FromContext(ctx).WithPrefix("progress_cache").Warn("start level %s failed: %v", levelID, err)
		c.setErr(errMessage(err, "Failed to start level"))
		return false
	}
	_ = c.Refresh(ctx)
	return true
}

// Complete submits a completion and refreshes. It returns nil on failure,
// with the reason in Err.
func (c *ProgressCache) Complete(ctx context.Context, levelID string, score int) *models.CompletionResult {
	result, err := c.api.CompleteLevel(ctx, levelID, score)
	if err != nil {
		logger.FromContext(ctx).WithPrefix("progress_cache").Warn("complete level %s failed: %v", levelID, err)
		c.setErr(errMessage(err, "Failed to complete level"))
		return nil
	}
	_ = c.Refresh(ctx)
	return result
}
