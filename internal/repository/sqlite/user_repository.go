package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"strings"
	"time"

	"github.com/Masterminds/squirrel"
	"github.com/google/uuid"
	"github.com/vytor/bizquest/internal/logger"
	"github.com/vytor/bizquest/internal/models"
	"github.com/vytor/bizquest/internal/repository"
)

var userColumns = []string{
	"id", "email", "full_name", "avatar_url", "password_hash", "oauth_subject", "business_type",
	"business_size", "level", "xp", "coins", "created_at", "updated_at", "last_login",
}

type userRepository struct {
	db *sql.DB
}

// NewUserRepository creates a new UserRepository implementation
func NewUserRepository(db *sql.DB) repository.UserRepository {
	return &userRepository{db: db}
}

func getUser(ctx context.Context, q queryer, column, value string) (*models.User, error) {
	stmt, args, err := sqlBuilder.Select(userColumns...).From("users").
		Where(squirrel.Eq{column: value}).ToSql()
	if err != nil {
		return nil, err
	}
	var u models.User
	err = q.QueryRowContext(ctx, stmt, args...).Scan(&u.ID, &u.Email, &u.FullName, &u.AvatarURL,
		&u.PasswordHash, &u.OAuthSubject, &u.BusinessType, &u.BusinessSize, &u.Level, &u.XP,
		&u.Coins, &u.CreatedAt, &u.UpdatedAt, &u.LastLogin)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &u, nil
}

func (r *userRepository) Create(ctx context.Context, u models.User) (*models.User, error) {
	log := logger.FromContext(ctx).WithPrefix("user_repo")

	if u.ID == "" {
		u.ID = uuid.NewString()
	}
	if u.Level <= 0 {
		u.Level = 1
	}
	u.Email = strings.ToLower(strings.TrimSpace(u.Email))
	log.Debug("creating user: email=%s", u.Email)

	_, err := r.db.ExecContext(ctx, `
INSERT INTO users (id, email, full_name, avatar_url, password_hash, oauth_subject, business_type, business_size, level, xp, coins)
VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
`, u.ID, u.Email, u.FullName, u.AvatarURL, u.PasswordHash, u.OAuthSubject, u.BusinessType,
		u.BusinessSize, u.Level, u.XP, u.Coins)
	if err != nil {
		if isUniqueViolation(err) {
			log.Debug("user already exists: email=%s", u.Email)
			return nil, repository.ErrConflict
		}
		log.Error("failed to create user: %v", err)
		return nil, err
	}
	return getUser(ctx, r.db, "id", u.ID)
}

func (r *userRepository) GetByID(ctx context.Context, id string) (*models.User, error) {
	log := logger.FromContext(ctx).WithPrefix("user_repo")
	log.Debug("getting user: id=%s", id)

	u, err := getUser(ctx, r.db, "id", id)
	if err != nil {
		log.Error("failed to get user: %v", err)
	}
	return u, err
}

func (r *userRepository) GetByEmail(ctx context.Context, email string) (*models.User, error) {
	log := logger.FromContext(ctx).WithPrefix("user_repo")
	email = strings.ToLower(strings.TrimSpace(email))
	log.Debug("getting user: email=%s", email)

	u, err := getUser(ctx, r.db, "email", email)
	if err != nil {
		log.Error("failed to get user by email: %v", err)
	}
	return u, err
}

func (r *userRepository) GetByOAuthSubject(ctx context.Context, subject string) (*models.User, error) {
	log := logger.FromContext(ctx).WithPrefix("user_repo")
	log.Debug("getting user by oauth subject")

	u, err := getUser(ctx, r.db, "oauth_subject", subject)
	if err != nil {
		log.Error("failed to get user by oauth subject: %v", err)
	}
	return u, err
}

func (r *userRepository) LinkOAuthSubject(ctx context.Context, id, subject string) error {
	log := logger.FromContext(ctx).WithPrefix("user_repo")
	log.Debug("linking oauth subject: user_id=%s", id)

	_, err := r.db.ExecContext(ctx, `UPDATE users SET oauth_subject = ?, updated_at = CURRENT_TIMESTAMP WHERE id = ?`, subject, id)
	if err != nil {
		if isUniqueViolation(err) {
			return repository.ErrConflict
		}
		log.Error("failed to link oauth subject: %v", err)
	}
	return err
}

func (r *userRepository) UpdateProfile(ctx context.Context, id string, update models.ProfileUpdate) (*models.User, error) {
	log := logger.FromContext(ctx).WithPrefix("user_repo")
	log.Debug("updating profile: user_id=%s", id)

	query := sqlBuilder.Update("users").
		Set("updated_at", squirrel.Expr("CURRENT_TIMESTAMP")).
		Where(squirrel.Eq{"id": id})
	if update.FullName != nil {
		query = query.Set("full_name", strings.TrimSpace(*update.FullName))
	}
	if update.BusinessType != nil {
		query = query.Set("business_type", nullIfEmpty(*update.BusinessType))
	}
	if update.BusinessSize != nil {
		query = query.Set("business_size", nullIfEmpty(*update.BusinessSize))
	}

	stmt, args, err := query.ToSql()
	if err != nil {
		log.Error("failed to build query: %v", err)
		return nil, err
	}
	res, err := r.db.ExecContext(ctx, stmt, args...)
	if err != nil {
		log.Error("failed to update profile: %v", err)
		return nil, err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return nil, nil
	}
	return getUser(ctx, r.db, "id", id)
}

func (r *userRepository) UpdatePassword(ctx context.Context, id, hash string) error {
	log := logger.FromContext(ctx).WithPrefix("user_repo")
	log.Debug("updating password: user_id=%s", id)

	_, err := r.db.ExecContext(ctx, `UPDATE users SET password_hash = ?, updated_at = CURRENT_TIMESTAMP WHERE id = ?`, hash, id)
	if err != nil {
		log.Error("failed to update password: %v", err)
	}
	return err
}

func (r *userRepository) UpdateAvatar(ctx context.Context, id string, url *string) error {
	log := logger.FromContext(ctx).WithPrefix("user_repo")
	log.Debug("updating avatar: user_id=%s", id)

	_, err := r.db.ExecContext(ctx, `UPDATE users SET avatar_url = ?, updated_at = CURRENT_TIMESTAMP WHERE id = ?`, url, id)
	if err != nil {
		log.Error("failed to update avatar: %v", err)
	}
	return err
}

func (r *userRepository) TouchLastLogin(ctx context.Context, id string, t time.Time) error {
	log := logger.FromContext(ctx).WithPrefix("user_repo")
	log.Debug("updating last login: user_id=%s", id)

	_, err := r.db.ExecContext(ctx, `UPDATE users SET last_login = ? WHERE id = ?`, t.UTC(), id)
	if err != nil {
		log.Error("failed to update last login: %v", err)
	}
	return err
}

func nullIfEmpty(s string) *string {
	s = strings.TrimSpace(s)
	if s == "" {
		return nil
	}
	return &s
}
