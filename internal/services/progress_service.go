package services

import (
	"context"

	"github.com/vytor/bizquest/internal/errors"
	"github.com/vytor/bizquest/internal/jobs"
	"github.com/vytor/bizquest/internal/logger"
	"github.com/vytor/bizquest/internal/metrics"
	"github.com/vytor/bizquest/internal/models"
	"github.com/vytor/bizquest/internal/progression"
	"github.com/vytor/bizquest/internal/repository"
)

const (
	MessageLevelCompleted    = "Level completed successfully"
	MessageLevelRecompleted  = "Level already completed; score updated"
	MessageLevelInaccessible = "Level is not accessible"
)

// ProgressService drives the level progress state machine
type ProgressService interface {
	// SetStatus writes a non-completion status. in_progress is a start and
	// requires the level to be accessible.
	SetStatus(ctx context.Context, userID, levelID string, status models.ProgressStatus, score int) (*models.Progress, error)
	Start(ctx context.Context, userID, levelID string, score int) (*models.Progress, error)
	Complete(ctx context.Context, userID, levelID string, score int) (*models.CompletionResult, error)
}

type progressService struct {
	levelRepo    repository.LevelRepository
	progressRepo repository.ProgressRepository
	queue        jobs.JobQueue
	metrics      *metrics.Metrics
	xpPerLevel   int
}

// NewProgressService creates a new ProgressService. queue and m may be nil.
func NewProgressService(
	levelRepo repository.LevelRepository,
	progressRepo repository.ProgressRepository,
	queue jobs.JobQueue,
	m *metrics.Metrics,
	xpPerLevel int,
) ProgressService {
	return &progressService{
		levelRepo:    levelRepo,
		progressRepo: progressRepo,
		queue:        queue,
		metrics:      m,
		xpPerLevel:   xpPerLevel,
	}
}

func validateProgressArgs(userID, levelID string, score int) error {
	if userID == "" {
		return errors.NewUnauthorizedError("")
	}
	if levelID == "" {
		return errors.NewBadRequestError("Level ID is required")
	}
	if score < 0 {
		return errors.NewValidationError("score", "must not be negative")
	}
	return nil
}

func (s *progressService) requireLevel(ctx context.Context, levelID string) error {
	level, err := s.levelRepo.Get(ctx, levelID)
	if err != nil {
		return errors.NewStoreError("Failed to update progress", err)
	}
	if level == nil || !level.IsActive {
		return errors.NewNotFoundError("level", levelID)
	}
	return nil
}

func (s *progressService) SetStatus(ctx context.Context, userID, levelID string, status models.ProgressStatus, score int) (*models.Progress, error) {
	log := logger.FromContext(ctx)
	log.Debug("setting progress status: user_id=%s, level_id=%s, status=%s", userID, levelID, status)

	switch status {
	case models.StatusInProgress:
		return s.Start(ctx, userID, levelID, score)
	case models.StatusCompleted:
		return nil, errors.NewBadRequestError("use Complete for status completed")
	case models.StatusNotStarted:
	default:
		return nil, errors.NewValidationError("status", "must be one of not_started, in_progress, completed")
	}

	if err := validateProgressArgs(userID, levelID, score); err != nil {
		return nil, err
	}
	if err := s.requireLevel(ctx, levelID); err != nil {
		return nil, err
	}

	p, err := s.progressRepo.Upsert(ctx, userID, levelID, status, score)
	if err != nil {
		log.Error("failed to upsert progress: %v", err)
		return nil, errors.NewStoreError("Failed to update progress", err)
	}
	return p, nil
}

func (s *progressService) Start(ctx context.Context, userID, levelID string, score int) (*models.Progress, error) {
	log := logger.FromContext(ctx)
	log.Debug("starting level: user_id=%s, level_id=%s", userID, levelID)

	if err := validateProgressArgs(userID, levelID, score); err != nil {
		return nil, err
	}
	if err := s.requireLevel(ctx, levelID); err != nil {
		return nil, err
	}

	p, ok, err := s.progressRepo.Start(ctx, userID, levelID, score)
	if err != nil {
		log.Error("failed to start level: %v", err)
		return nil, errors.NewStoreError("Failed to update progress", err)
	}
	if !ok {
		return nil, errors.NewForbiddenError(MessageLevelInaccessible)
	}
	return p, nil
}

func (s *progressService) Complete(ctx context.Context, userID, levelID string, score int) (*models.CompletionResult, error) {
	log := logger.FromContext(ctx).WithFields(map[string]any{"user_id": userID, "level_id": levelID})
	log.Debug("completing level: score=%d", score)

	if err := validateProgressArgs(userID, levelID, score); err != nil {
		return nil, err
	}

	out, err := s.progressRepo.Complete(ctx, userID, levelID, score, s.xpPerLevel)
	if err != nil {
		log.Error("completion transaction failed: %v", err)
		return nil, errors.NewStoreError("Failed to complete level", err)
	}
	if out == nil {
		return nil, errors.NewNotFoundError("level", levelID)
	}
	if !out.Accessible {
		log.Info("completion rejected, level is locked")
		return &models.CompletionResult{Success: false, Message: MessageLevelInaccessible}, nil
	}

	result := &models.CompletionResult{
		Success:         true,
		Message:         MessageLevelCompleted,
		Rewards:         &models.Rewards{XP: out.Level.XPReward, Coins: out.Level.CoinReward},
		FirstCompletion: out.FirstCompletion,
		Progress:        out.Progress,
	}
	if !out.FirstCompletion {
		result.Message = MessageLevelRecompleted
	}

	s.metrics.ObserveCompletion(out.FirstCompletion, out.Level.XPReward, out.Level.CoinReward)

	if out.FirstCompletion {
		unlocked, err := s.unlockedBy(ctx, userID, levelID)
		if err != nil {
			log.Warn("failed to compute unlocked levels: %v", err)
		}
		result.UnlockedLevels = unlocked

		if s.queue != nil {
			if err := s.queue.EnqueueAchievementCheck(userID); err != nil {
				log.Warn("failed to enqueue achievement check: %v", err)
			}
		}
	}

	log.Info("level completed: first=%t", out.FirstCompletion)
	return result, nil
}

// unlockedBy rebuilds the level map as it was before levelID was completed
// and asks which locked levels that completion opens.
func (s *progressService) unlockedBy(ctx context.Context, userID, levelID string) ([]string, error) {
	levels, err := s.levelRepo.ListActive(ctx)
	if err != nil {
		return nil, err
	}
	edges, err := s.levelRepo.Edges(ctx)
	if err != nil {
		return nil, err
	}
	rows, err := s.progressRepo.ListForUser(ctx, userID)
	if err != nil {
		return nil, err
	}
	before := make([]models.Progress, 0, len(rows))
	for _, p := range rows {
		if p.LevelID == levelID {
			continue
		}
		before = append(before, p)
	}
	return progression.Unlockable(progression.BuildStatuses(levels, edges, before), levelID), nil
}
