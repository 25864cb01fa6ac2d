package services

import (
	"context"
	"encoding/json"
	"time"

	"github.com/vytor/bizquest/internal/errors"
	"github.com/vytor/bizquest/internal/logger"
	"github.com/vytor/bizquest/internal/metrics"
	"github.com/vytor/bizquest/internal/models"
	"github.com/vytor/bizquest/internal/repository"
)

// Criteria types understood by the achievement evaluator.
const (
	CriteriaLevelsCompleted = "levels_completed"
	CriteriaXP              = "xp"
	CriteriaCoins           = "coins"
	CriteriaLevelCompleted  = "level_completed"
)

// Criteria is the decoded form of an achievement's criteria JSON.
type Criteria struct {
	Type    string `json:"type" yaml:"type"`
	Count   int    `json:"count,omitempty" yaml:"count,omitempty"`
	Min     int    `json:"min,omitempty" yaml:"min,omitempty"`
	LevelID string `json:"level_id,omitempty" yaml:"level_id,omitempty"`
}

// Satisfied reports whether stats meet the criteria. Unknown types never match.
func (c Criteria) Satisfied(stats models.AchievementStats) bool {
	switch c.Type {
	case CriteriaLevelsCompleted:
		return stats.LevelsCompleted >= c.Count
	case CriteriaXP:
		return stats.XP >= c.Min
	case CriteriaCoins:
		return stats.Coins >= c.Min
	case CriteriaLevelCompleted:
		return stats.CompletedLevels[c.LevelID]
	}
	return false
}

// Known reports whether the criteria type is one the evaluator handles.
func (c Criteria) Known() bool {
	switch c.Type {
	case CriteriaLevelsCompleted, CriteriaXP, CriteriaCoins, CriteriaLevelCompleted:
		return true
	}
	return false
}

// AchievementService lists badges and unlocks the ones a user has earned
type AchievementService interface {
	ListForUser(ctx context.Context, userID string) ([]models.UserAchievement, error)
	Evaluate(ctx context.Context, userID string) ([]string, error)
}

type achievementService struct {
	repo    repository.AchievementRepository
	metrics *metrics.Metrics
	now     func() time.Time
}

// NewAchievementService creates a new AchievementService
func NewAchievementService(repo repository.AchievementRepository, m *metrics.Metrics) AchievementService {
	return &achievementService{repo: repo, metrics: m, now: time.Now}
}

func (s *achievementService) ListForUser(ctx context.Context, userID string) ([]models.UserAchievement, error) {
	if userID == "" {
		return nil, errors.NewUnauthorizedError("")
	}
	list, err := s.repo.ListForUser(ctx, userID)
	if err != nil {
		logger.FromContext(ctx).Error("failed to list achievements: %v", err)
		return nil, errors.NewStoreError("Failed to fetch achievements", err)
	}
	return list, nil
}

// Evaluate unlocks every achievement whose criteria the user now meets and
// returns the ids that were newly unlocked.
func (s *achievementService) Evaluate(ctx context.Context, userID string) ([]string, error) {
	log := logger.FromContext(ctx).WithField("user_id", userID)

	stats, err := s.repo.Stats(ctx, userID)
	if err != nil {
		return nil, err
	}
	current, err := s.repo.ListForUser(ctx, userID)
	if err != nil {
		return nil, err
	}

	var unlocked []string
	for _, a := range current {
		if a.UnlockedAt != nil {
			continue
		}
		var c Criteria
		if err := json.Unmarshal([]byte(a.Criteria), &c); err != nil || !c.Known() {
			log.Warn("skipping achievement %s with unusable criteria", a.ID)
			continue
		}
		if !c.Satisfied(*stats) {
			continue
		}
		created, err := s.repo.Unlock(ctx, userID, a.ID, s.now())
		if err != nil {
			return unlocked, err
		}
		if created {
			s.metrics.ObserveAchievement()
			unlocked = append(unlocked, a.ID)
		}
	}
	return unlocked, nil
}
