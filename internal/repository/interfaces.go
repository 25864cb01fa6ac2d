package repository

import (
	"context"
	"errors"
	"time"

	"github.com/vytor/bizquest/internal/models"
)

// ErrConflict is returned when a write violates a uniqueness constraint.
var ErrConflict = errors.New("conflict")

// Single-row lookups return (nil, nil) when the row does not exist.

// LevelRepository handles level catalog data access
type LevelRepository interface {
	ListActive(ctx context.Context) ([]models.Level, error)
	Get(ctx context.Context, id string) (*models.Level, error)
	Prerequisites(ctx context.Context, levelID string) ([]models.Level, error)
	Edges(ctx context.Context) ([]models.Prerequisite, error)
	Sync(ctx context.Context, levels []models.Level, edges []models.Prerequisite) error
}

// ProgressRepository handles per-user level progress
type ProgressRepository interface {
	Get(ctx context.Context, userID, levelID string) (*models.Progress, error)
	ListForUser(ctx context.Context, userID string) ([]models.Progress, error)
	// Upsert writes a non-completion status. A completed row keeps its status.
	Upsert(ctx context.Context, userID, levelID string, status models.ProgressStatus, score int) (*models.Progress, error)
	// Start checks accessibility and moves the row to in_progress in one transaction.
	Start(ctx context.Context, userID, levelID string, score int) (*models.Progress, bool, error)
	// Complete runs the completion transaction. It returns nil when the level
	// does not exist or is inactive.
	Complete(ctx context.Context, userID, levelID string, score, xpPerLevel int) (*models.CompletionOutcome, error)
}

// UserRepository handles user accounts
type UserRepository interface {
	Create(ctx context.Context, user models.User) (*models.User, error)
	GetByID(ctx context.Context, id string) (*models.User, error)
	GetByEmail(ctx context.Context, email string) (*models.User, error)
	GetByOAuthSubject(ctx context.Context, subject string) (*models.User, error)
	LinkOAuthSubject(ctx context.Context, id, subject string) error
	UpdateProfile(ctx context.Context, id string, update models.ProfileUpdate) (*models.User, error)
	UpdatePassword(ctx context.Context, id, hash string) error
	UpdateAvatar(ctx context.Context, id string, url *string) error
	TouchLastLogin(ctx context.Context, id string, t time.Time) error
}

// SessionRepository persists revocable login sessions
type SessionRepository interface {
	Create(ctx context.Context, session models.Session) error
	Get(ctx context.Context, id string) (*models.Session, error)
	Revoke(ctx context.Context, id string, t time.Time) error
	PurgeExpired(ctx context.Context, now time.Time) (int64, error)
}

// AchievementRepository handles badge definitions and unlocks
type AchievementRepository interface {
	Upsert(ctx context.Context, achievement models.Achievement) error
	List(ctx context.Context) ([]models.Achievement, error)
	ListForUser(ctx context.Context, userID string) ([]models.UserAchievement, error)
	Unlock(ctx context.Context, userID, achievementID string, t time.Time) (bool, error)
	Stats(ctx context.Context, userID string) (*models.AchievementStats, error)
}
