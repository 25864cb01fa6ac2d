package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/vytor/bizquest/internal/logger"
	"github.com/vytor/bizquest/internal/models"
	"github.com/vytor/bizquest/internal/progression"
	"github.com/vytor/bizquest/internal/repository"
)

const progressColumns = `id, user_id, level_id, status, score, completed, last_accessed, completed_at, created_at, updated_at`

type progressRepository struct {
	db  *sql.DB
	now func() time.Time
}

// NewProgressRepository creates a new ProgressRepository implementation
func NewProgressRepository(db *sql.DB) repository.ProgressRepository {
	return &progressRepository{db: db, now: func() time.Time { return time.Now().UTC() }}
}

func scanProgress(row rowScanner) (models.Progress, error) {
	var p models.Progress
	err := row.Scan(&p.ID, &p.UserID, &p.LevelID, &p.Status, &p.Score, &p.Completed,
		&p.LastAccessed, &p.CompletedAt, &p.CreatedAt, &p.UpdatedAt)
	return p, err
}

func getProgress(ctx context.Context, q queryer, userID, levelID string) (*models.Progress, error) {
	p, err := scanProgress(q.QueryRowContext(ctx, `
SELECT `+progressColumns+`
FROM progress
WHERE user_id = ? AND level_id = ?
`, userID, levelID))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &p, nil
}

func completedSet(ctx context.Context, q queryer, userID string) (progression.CompletedSet, error) {
	rows, err := q.QueryContext(ctx, `SELECT level_id FROM progress WHERE user_id = ? AND status = 'completed'`, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	set := progression.CompletedSet{}
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		set[id] = true
	}
	return set, rows.Err()
}

func accessible(ctx context.Context, q queryer, userID, levelID string) (bool, error) {
	ids, err := prerequisiteIDs(ctx, q, levelID)
	if err != nil {
		return false, err
	}
	if len(ids) == 0 {
		return true, nil
	}
	completed, err := completedSet(ctx, q, userID)
	if err != nil {
		return false, err
	}
	return progression.IsAccessible(ids, completed), nil
}

// upsertStatus writes a plain status change. A completed row keeps its
// status and score; the caller must run it inside a transaction.
func upsertStatus(ctx context.Context, q queryer, userID, levelID string, requested models.ProgressStatus, score int, now time.Time) error {
	existing, err := getProgress(ctx, q, userID, levelID)
	if err != nil {
		return err
	}
	current := progression.StatusFor(existing)
	status := progression.NextStatus(current, requested)
	if current == models.StatusCompleted {
		score = existing.Score
	}

	_, err = q.ExecContext(ctx, `
INSERT INTO progress (id, user_id, level_id, status, score, completed, last_accessed)
VALUES (?, ?, ?, ?, ?, 0, ?)
ON CONFLICT(user_id, level_id) DO UPDATE SET
    status = excluded.status,
    score = excluded.score,
    last_accessed = excluded.last_accessed,
    updated_at = CURRENT_TIMESTAMP
`, uuid.NewString(), userID, levelID, status, score, now)
	return err
}

func (r *progressRepository) Get(ctx context.Context, userID, levelID string) (*models.Progress, error) {
	log := logger.FromContext(ctx).WithPrefix("progress_repo")
	log.Debug("getting progress: user_id=%s, level_id=%s", userID, levelID)

	p, err := getProgress(ctx, r.db, userID, levelID)
	if err != nil {
		log.Error("failed to get progress: %v", err)
		return nil, err
	}
	return p, nil
}

func (r *progressRepository) ListForUser(ctx context.Context, userID string) ([]models.Progress, error) {
	log := logger.FromContext(ctx).WithPrefix("progress_repo")
	log.Debug("listing progress: user_id=%s", userID)

	rows, err := r.db.QueryContext(ctx, `
SELECT `+progressColumns+`
FROM progress
WHERE user_id = ?
ORDER BY created_at ASC
`, userID)
	if err != nil {
		log.Error("failed to list progress: %v", err)
		return nil, err
	}
	defer rows.Close()

	var out []models.Progress
	for rows.Next() {
		p, err := scanProgress(rows)
		if err != nil {
			log.Error("failed to scan progress row: %v", err)
			return nil, err
		}
		out = append(out, p)
	}
	log.Debug("found %d progress rows", len(out))
	return out, rows.Err()
}

func (r *progressRepository) Upsert(ctx context.Context, userID, levelID string, status models.ProgressStatus, score int) (*models.Progress, error) {
	log := logger.FromContext(ctx).WithPrefix("progress_repo")
	log.Debug("upserting progress: user_id=%s, level_id=%s, status=%s", userID, levelID, status)

	var p *models.Progress
	err := tx(ctx, r.db, func(tx *sql.Tx) error {
		if err := upsertStatus(ctx, tx, userID, levelID, status, score, r.now()); err != nil {
			return err
		}
		var err error
		p, err = getProgress(ctx, tx, userID, levelID)
		return err
	})
	if err != nil {
		log.Error("failed to upsert progress: %v", err)
		return nil, err
	}
	return p, nil
}

func (r *progressRepository) Start(ctx context.Context, userID, levelID string, score int) (*models.Progress, bool, error) {
	log := logger.FromContext(ctx).WithPrefix("progress_repo")
	log.Debug("starting level: user_id=%s, level_id=%s", userID, levelID)

	var (
		p  *models.Progress
		ok bool
	)
	err := tx(ctx, r.db, func(tx *sql.Tx) error {
		var err error
		ok, err = accessible(ctx, tx, userID, levelID)
		if err != nil || !ok {
			return err
		}
		if err := upsertStatus(ctx, tx, userID, levelID, models.StatusInProgress, score, r.now()); err != nil {
			return err
		}
		p, err = getProgress(ctx, tx, userID, levelID)
		return err
	})
	if err != nil {
		log.Error("failed to start level: %v", err)
		return nil, false, err
	}
	if !ok {
		log.Debug("level %s is locked for user %s", levelID, userID)
	}
	return p, ok, nil
}

func (r *progressRepository) Complete(ctx context.Context, userID, levelID string, score, xpPerLevel int) (*models.CompletionOutcome, error) {
	log := logger.FromContext(ctx).WithPrefix("progress_repo")
	log.Debug("completing level: user_id=%s, level_id=%s, score=%d", userID, levelID, score)

	var out *models.CompletionOutcome
	err := tx(ctx, r.db, func(tx *sql.Tx) error {
		level, err := getLevel(ctx, tx, levelID)
		if err != nil {
			return err
		}
		if level == nil || !level.IsActive {
			return nil
		}
		out = &models.CompletionOutcome{Level: *level}

		ok, err := accessible(ctx, tx, userID, levelID)
		if err != nil {
			return err
		}
		if !ok {
			return nil
		}
		out.Accessible = true

		existing, err := getProgress(ctx, tx, userID, levelID)
		if err != nil {
			return err
		}
		out.FirstCompletion = existing == nil || existing.Status != models.StatusCompleted

		now := r.now()
		_, err = tx.ExecContext(ctx, `
INSERT INTO progress (id, user_id, level_id, status, score, completed, last_accessed, completed_at)
VALUES (?, ?, ?, 'completed', ?, 1, ?, ?)
ON CONFLICT(user_id, level_id) DO UPDATE SET
    status = 'completed',
    completed = 1,
    score = excluded.score,
    last_accessed = excluded.last_accessed,
    completed_at = COALESCE(progress.completed_at, excluded.completed_at),
    updated_at = CURRENT_TIMESTAMP
`, uuid.NewString(), userID, levelID, score, now, now)
		if err != nil {
			return err
		}

		if out.FirstCompletion {
			if err := grantRewards(ctx, tx, userID, level.XPReward, level.CoinReward, xpPerLevel); err != nil {
				return err
			}
		}

		if out.Progress, err = getProgress(ctx, tx, userID, levelID); err != nil {
			return err
		}
		out.User, err = getUser(ctx, tx, "id", userID)
		return err
	})
	if err != nil {
		log.Error("failed to complete level: %v", err)
		return nil, err
	}
	if out != nil && out.Accessible {
		log.Debug("level completed: first=%t", out.FirstCompletion)
	}
	return out, nil
}

func grantRewards(ctx context.Context, q queryer, userID string, xp, coins, xpPerLevel int) error {
	var total int
	err := q.QueryRowContext(ctx, `
UPDATE users
SET xp = xp + ?, coins = coins + ?, updated_at = CURRENT_TIMESTAMP
WHERE id = ?
RETURNING xp
`, xp, coins, userID).Scan(&total)
	if errors.Is(err, sql.ErrNoRows) {
		return errors.New("user not found: " + userID)
	}
	if err != nil {
		return err
	}
	_, err = q.ExecContext(ctx, `UPDATE users SET level = ? WHERE id = ?`,
		progression.UserLevelForXP(total, xpPerLevel), userID)
	return err
}
