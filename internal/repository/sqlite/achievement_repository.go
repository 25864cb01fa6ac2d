package sqlite

import (
	"context"
	"database/sql"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/vytor/bizquest/internal/logger"
	"github.com/vytor/bizquest/internal/models"
	"github.com/vytor/bizquest/internal/repository"
)

type achievementRepository struct {
	db *sqlx.DB
}

// NewAchievementRepository creates a new AchievementRepository implementation
// on top of sqlx for struct scanning.
func NewAchievementRepository(db *sql.DB) repository.AchievementRepository {
	return &achievementRepository{db: sqlx.NewDb(db, "sqlite3")}
}

func (r *achievementRepository) Upsert(ctx context.Context, a models.Achievement) error {
	log := logger.FromContext(ctx).WithPrefix("achievement_repo")
	log.Debug("upserting achievement: id=%s", a.ID)

	if a.Criteria == "" {
		a.Criteria = "{}"
	}
	_, err := r.db.NamedExecContext(ctx, `
INSERT INTO achievements (id, title, description, badge_url, criteria)
VALUES (:id, :title, :description, :badge_url, :criteria)
ON CONFLICT(id) DO UPDATE SET
    title = excluded.title,
    description = excluded.description,
    badge_url = excluded.badge_url,
    criteria = excluded.criteria,
    updated_at = CURRENT_TIMESTAMP
`, a)
	if err != nil {
		log.Error("failed to upsert achievement: %v", err)
	}
	return err
}

func (r *achievementRepository) List(ctx context.Context) ([]models.Achievement, error) {
	log := logger.FromContext(ctx).WithPrefix("achievement_repo")

	achievements := []models.Achievement{}
	err := r.db.SelectContext(ctx, &achievements, `
SELECT id, title, description, badge_url, criteria, created_at, updated_at
FROM achievements
ORDER BY id
`)
	if err != nil {
		log.Error("failed to list achievements: %v", err)
		return nil, err
	}
	log.Debug("found %d achievements", len(achievements))
	return achievements, nil
}

func (r *achievementRepository) ListForUser(ctx context.Context, userID string) ([]models.UserAchievement, error) {
	log := logger.FromContext(ctx).WithPrefix("achievement_repo")
	log.Debug("listing achievements: user_id=%s", userID)

	out := []models.UserAchievement{}
	err := r.db.SelectContext(ctx, &out, `
SELECT a.id, a.title, a.description, a.badge_url, a.criteria, a.created_at, a.updated_at, ua.unlocked_at
FROM achievements a
LEFT JOIN user_achievements ua ON ua.achievement_id = a.id AND ua.user_id = ?
ORDER BY a.id
`, userID)
	if err != nil {
		log.Error("failed to list user achievements: %v", err)
		return nil, err
	}
	return out, nil
}

// Unlock records the achievement for the user and reports whether it was new.
func (r *achievementRepository) Unlock(ctx context.Context, userID, achievementID string, t time.Time) (bool, error) {
	log := logger.FromContext(ctx).WithPrefix("achievement_repo")

	res, err := r.db.ExecContext(ctx, `
INSERT INTO user_achievements (user_id, achievement_id, unlocked_at)
VALUES (?, ?, ?)
ON CONFLICT(user_id, achievement_id) DO NOTHING
`, userID, achievementID, t.UTC())
	if err != nil {
		log.Error("failed to unlock achievement: %v", err)
		return false, err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	if n > 0 {
		log.Info("achievement %s unlocked for user %s", achievementID, userID)
	}
	return n > 0, nil
}

func (r *achievementRepository) Stats(ctx context.Context, userID string) (*models.AchievementStats, error) {
	log := logger.FromContext(ctx).WithPrefix("achievement_repo")

	var totals struct {
		XP    int `db:"xp"`
		Coins int `db:"coins"`
	}
	if err := r.db.GetContext(ctx, &totals, `SELECT xp, coins FROM users WHERE id = ?`, userID); err != nil {
		log.Error("failed to load user totals: %v", err)
		return nil, err
	}

	var completed []string
	if err := r.db.SelectContext(ctx, &completed, `SELECT level_id FROM progress WHERE user_id = ? AND status = 'completed'`, userID); err != nil {
		log.Error("failed to load completed levels: %v", err)
		return nil, err
	}

	stats := &models.AchievementStats{
		XP:              totals.XP,
		Coins:           totals.Coins,
		LevelsCompleted: len(completed),
		CompletedLevels: make(map[string]bool, len(completed)),
	}
	for _, id := range completed {
		stats.CompletedLevels[id] = true
	}
	return stats, nil
}
