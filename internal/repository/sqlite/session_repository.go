package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/vytor/bizquest/internal/logger"
	"github.com/vytor/bizquest/internal/models"
	"github.com/vytor/bizquest/internal/repository"
)

type sessionRepository struct {
	db *sql.DB
}

// NewSessionRepository creates a new SessionRepository implementation
func NewSessionRepository(db *sql.DB) repository.SessionRepository {
	return &sessionRepository{db: db}
}

func (r *sessionRepository) Create(ctx context.Context, s models.Session) error {
	log := logger.FromContext(ctx).WithPrefix("session_repo")
	log.Debug("creating session: user_id=%s", s.UserID)

	_, err := r.db.ExecContext(ctx, `
INSERT INTO sessions (id, user_id, expires_at)
VALUES (?, ?, ?)
`, s.ID, s.UserID, s.ExpiresAt.UTC())
	if err != nil {
		log.Error("failed to create session: %v", err)
	}
	return err
}

func (r *sessionRepository) Get(ctx context.Context, id string) (*models.Session, error) {
	log := logger.FromContext(ctx).WithPrefix("session_repo")

	var s models.Session
	err := r.db.QueryRowContext(ctx, `
SELECT id, user_id, expires_at, revoked_at, created_at
FROM sessions
WHERE id = ?
`, id).Scan(&s.ID, &s.UserID, &s.ExpiresAt, &s.RevokedAt, &s.CreatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		log.Debug("session not found")
		return nil, nil
	}
	if err != nil {
		log.Error("failed to get session: %v", err)
		return nil, err
	}
	return &s, nil
}

func (r *sessionRepository) Revoke(ctx context.Context, id string, t time.Time) error {
	log := logger.FromContext(ctx).WithPrefix("session_repo")
	log.Debug("revoking session")

	_, err := r.db.ExecContext(ctx, `UPDATE sessions SET revoked_at = ? WHERE id = ? AND revoked_at IS NULL`, t.UTC(), id)
	if err != nil {
		log.Error("failed to revoke session: %v", err)
	}
	return err
}

func (r *sessionRepository) PurgeExpired(ctx context.Context, now time.Time) (int64, error) {
	log := logger.FromContext(ctx).WithPrefix("session_repo")

	res, err := r.db.ExecContext(ctx, `DELETE FROM sessions WHERE expires_at < ? OR revoked_at IS NOT NULL`, now.UTC())
	if err != nil {
		log.Error("failed to purge sessions: %v", err)
		return 0, err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, err
	}
	log.Debug("purged %d sessions", n)
	return n, nil
}
