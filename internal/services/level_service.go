package services

import (
	"context"

	"golang.org/x/sync/errgroup"

	"github.com/vytor/bizquest/internal/errors"
	"github.com/vytor/bizquest/internal/levelview"
	"github.com/vytor/bizquest/internal/logger"
	"github.com/vytor/bizquest/internal/models"
	"github.com/vytor/bizquest/internal/progression"
	"github.com/vytor/bizquest/internal/repository"
)

// LevelService answers per-user questions about the level catalog
type LevelService interface {
	ListLevels(ctx context.Context, userID string) ([]models.LevelWithStatus, error)
	GetLevelDetail(ctx context.Context, userID, levelID string) (*models.LevelDetail, error)
}

type levelService struct {
	levelRepo    repository.LevelRepository
	progressRepo repository.ProgressRepository
}

// NewLevelService creates a new LevelService
func NewLevelService(levelRepo repository.LevelRepository, progressRepo repository.ProgressRepository) LevelService {
	return &levelService{levelRepo: levelRepo, progressRepo: progressRepo}
}

func (s *levelService) ListLevels(ctx context.Context, userID string) ([]models.LevelWithStatus, error) {
	log := logger.FromContext(ctx)
	log.Debug("listing levels: user_id=%s", userID)

	if userID == "" {
		return nil, errors.NewUnauthorizedError("")
	}

	levels, err := s.snapshot(ctx, userID)
	if err != nil {
		log.Error("failed to load levels: %v", err)
		return nil, errors.NewStoreError("Failed to fetch levels", err)
	}
	return levelview.Decorate(levels), nil
}

// snapshot loads everything BuildStatuses needs.
func (s *levelService) snapshot(ctx context.Context, userID string) ([]models.LevelWithStatus, error) {
	var (
		levels   []models.Level
		edges    []models.Prerequisite
		progress []models.Progress
	)
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() (err error) {
		levels, err = s.levelRepo.ListActive(gctx)
		return err
	})
	g.Go(func() (err error) {
		edges, err = s.levelRepo.Edges(gctx)
		return err
	})
	g.Go(func() (err error) {
		progress, err = s.progressRepo.ListForUser(gctx, userID)
		return err
	})
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return progression.BuildStatuses(levels, edges, progress), nil
}

func (s *levelService) GetLevelDetail(ctx context.Context, userID, levelID string) (*models.LevelDetail, error) {
	log := logger.FromContext(ctx)
	log.Debug("getting level detail: user_id=%s, level_id=%s", userID, levelID)

	if userID == "" {
		return nil, errors.NewUnauthorizedError("")
	}
	if levelID == "" {
		return nil, errors.NewBadRequestError("Level ID is required")
	}

	level, err := s.levelRepo.Get(ctx, levelID)
	if err != nil {
		log.Error("failed to get level: %v", err)
		return nil, errors.NewStoreError("Failed to fetch level", err)
	}
	if level == nil || !level.IsActive {
		return nil, errors.NewNotFoundError("level", levelID)
	}

	var (
		progress *models.Progress
		prereqs  []models.Level
		rows     []models.Progress
	)
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() (err error) {
		progress, err = s.progressRepo.Get(gctx, userID, levelID)
		return err
	})
	g.Go(func() (err error) {
		prereqs, err = s.levelRepo.Prerequisites(gctx, levelID)
		return err
	})
	g.Go(func() (err error) {
		rows, err = s.progressRepo.ListForUser(gctx, userID)
		return err
	})
	if err := g.Wait(); err != nil {
		log.Error("failed to load level detail: %v", err)
		return nil, errors.NewStoreError("Failed to fetch level", err)
	}

	completed := progression.CompletedFrom(rows)
	detail := &models.LevelDetail{
		Level:         *level,
		Progress:      progress,
		Prerequisites: make([]models.PrerequisiteStatus, 0, len(prereqs)),
	}
	ids := make([]string, 0, len(prereqs))
	for _, p := range prereqs {
		ids = append(ids, p.ID)
		detail.Prerequisites = append(detail.Prerequisites, models.PrerequisiteStatus{
			ID:           p.ID,
			Title:        p.Title,
			OrderIndex:   p.OrderIndex,
			ThumbnailURL: p.ThumbnailURL,
			IsCompleted:  completed[p.ID],
		})
	}
	detail.IsAccessible = progression.IsAccessible(ids, completed)
	return detail, nil
}
