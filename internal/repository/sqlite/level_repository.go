package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"

	"github.com/Masterminds/squirrel"
	"github.com/vytor/bizquest/internal/logger"
	"github.com/vytor/bizquest/internal/models"
	"github.com/vytor/bizquest/internal/repository"
)

var levelColumns = []string{
	"l.id", "l.title", "l.description", "l.order_index", "l.thumbnail_url", "l.xp_reward",
	"l.coin_reward", "l.required_level", "l.is_active", "l.content", "l.metadata",
	"l.created_at", "l.updated_at",
}

type levelRepository struct {
	db *sql.DB
}

// NewLevelRepository creates a new LevelRepository implementation
func NewLevelRepository(db *sql.DB) repository.LevelRepository {
	return &levelRepository{db: db}
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanLevel(row rowScanner) (models.Level, error) {
	var (
		l                 models.Level
		content, metadata string
	)
	err := row.Scan(&l.ID, &l.Title, &l.Description, &l.OrderIndex, &l.ThumbnailURL, &l.XPReward,
		&l.CoinReward, &l.RequiredLevel, &l.IsActive, &content, &metadata, &l.CreatedAt, &l.UpdatedAt)
	if err != nil {
		return l, err
	}
	l.Content = json.RawMessage(content)
	l.Metadata = json.RawMessage(metadata)
	return l, nil
}

func queryLevels(ctx context.Context, q queryer, query squirrel.SelectBuilder) ([]models.Level, error) {
	stmt, args, err := query.ToSql()
	if err != nil {
		return nil, err
	}
	rows, err := q.QueryContext(ctx, stmt, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	levels := []models.Level{}
	for rows.Next() {
		l, err := scanLevel(rows)
		if err != nil {
			return nil, err
		}
		levels = append(levels, l)
	}
	return levels, rows.Err()
}

func getLevel(ctx context.Context, q queryer, id string) (*models.Level, error) {
	stmt, args, err := sqlBuilder.Select(levelColumns...).From("levels l").
		Where(squirrel.Eq{"l.id": id}).ToSql()
	if err != nil {
		return nil, err
	}
	l, err := scanLevel(q.QueryRowContext(ctx, stmt, args...))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &l, nil
}

func (r *levelRepository) ListActive(ctx context.Context) ([]models.Level, error) {
	log := logger.FromContext(ctx).WithPrefix("level_repo")
	log.Debug("listing active levels")

	levels, err := queryLevels(ctx, r.db, sqlBuilder.Select(levelColumns...).From("levels l").
		Where(squirrel.Eq{"l.is_active": 1}).
		OrderBy("l.order_index ASC", "l.id ASC"))
	if err != nil {
		log.Error("failed to list levels: %v", err)
		return nil, err
	}
	log.Debug("found %d active levels", len(levels))
	return levels, nil
}

func (r *levelRepository) Get(ctx context.Context, id string) (*models.Level, error) {
	log := logger.FromContext(ctx).WithPrefix("level_repo")
	log.Debug("getting level: id=%s", id)

	l, err := getLevel(ctx, r.db, id)
	if err != nil {
		log.Error("failed to get level: %v", err)
		return nil, err
	}
	if l == nil {
		log.Debug("level not found: id=%s", id)
	}
	return l, nil
}

func (r *levelRepository) Prerequisites(ctx context.Context, levelID string) ([]models.Level, error) {
	log := logger.FromContext(ctx).WithPrefix("level_repo")
	log.Debug("getting prerequisites: level_id=%s", levelID)

	levels, err := queryLevels(ctx, r.db, sqlBuilder.Select(levelColumns...).
		From("level_prerequisites lp").
		Join("levels l ON l.id = lp.prerequisite_id").
		Where(squirrel.Eq{"lp.level_id": levelID}).
		OrderBy("l.order_index ASC", "l.id ASC"))
	if err != nil {
		log.Error("failed to get prerequisites: %v", err)
		return nil, err
	}
	return levels, nil
}

func prerequisiteIDs(ctx context.Context, q queryer, levelID string) ([]string, error) {
	rows, err := q.QueryContext(ctx, `SELECT prerequisite_id FROM level_prerequisites WHERE level_id = ? ORDER BY prerequisite_id`, levelID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	ids := []string{}
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

func (r *levelRepository) Edges(ctx context.Context) ([]models.Prerequisite, error) {
	log := logger.FromContext(ctx).WithPrefix("level_repo")
	log.Debug("listing prerequisite edges")

	rows, err := r.db.QueryContext(ctx, `
SELECT level_id, prerequisite_id
FROM level_prerequisites
ORDER BY level_id, prerequisite_id
`)
	if err != nil {
		log.Error("failed to list prerequisite edges: %v", err)
		return nil, err
	}
	defer rows.Close()

	var edges []models.Prerequisite
	for rows.Next() {
		var e models.Prerequisite
		if err := rows.Scan(&e.LevelID, &e.PrerequisiteID); err != nil {
			log.Error("failed to scan prerequisite row: %v", err)
			return nil, err
		}
		edges = append(edges, e)
	}
	return edges, rows.Err()
}

// Sync upserts the given levels and replaces the prerequisite edges of every
// level in the batch. Levels not in the batch are left untouched.
func (r *levelRepository) Sync(ctx context.Context, levels []models.Level, edges []models.Prerequisite) error {
	log := logger.FromContext(ctx).WithPrefix("level_repo")
	log.Debug("syncing %d levels and %d prerequisite edges", len(levels), len(edges))

	return tx(ctx, r.db, func(tx *sql.Tx) error {
		for _, l := range levels {
			_, err := tx.ExecContext(ctx, `
INSERT INTO levels (id, title, description, order_index, thumbnail_url, xp_reward, coin_reward, required_level, is_active, content, metadata)
VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
ON CONFLICT(id) DO UPDATE SET
    title = excluded.title,
    description = excluded.description,
    order_index = excluded.order_index,
    thumbnail_url = excluded.thumbnail_url,
    xp_reward = excluded.xp_reward,
    coin_reward = excluded.coin_reward,
    required_level = excluded.required_level,
    is_active = excluded.is_active,
    content = excluded.content,
    metadata = excluded.metadata,
    updated_at = CURRENT_TIMESTAMP
`, l.ID, l.Title, l.Description, l.OrderIndex, l.ThumbnailURL, l.XPReward, l.CoinReward,
				l.RequiredLevel, boolToInt(l.IsActive), jsonOrEmpty(l.Content), jsonOrEmpty(l.Metadata))
			if err != nil {
				log.Error("failed to upsert level %s: %v", l.ID, err)
				return err
			}
			if _, err := tx.ExecContext(ctx, `DELETE FROM level_prerequisites WHERE level_id = ?`, l.ID); err != nil {
				log.Error("failed to clear prerequisites for %s: %v", l.ID, err)
				return err
			}
		}

		if len(edges) == 0 {
			return nil
		}
		insert := sqlBuilder.Insert("level_prerequisites").Columns("level_id", "prerequisite_id")
		for _, e := range edges {
			insert = insert.Values(e.LevelID, e.PrerequisiteID)
		}
		stmt, args, err := insert.ToSql()
		if err != nil {
			return err
		}
		if _, err := tx.ExecContext(ctx, stmt, args...); err != nil {
			log.Error("failed to insert prerequisite edges: %v", err)
			return err
		}
		return nil
	})
}
