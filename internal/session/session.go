// Package session issues and verifies login sessions. A session is a signed
// HS256 token carrying the user id and a session id; the session id must also
// be live in a Store so logouts take effect before the token expires.
package session

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"

	"github.com/vytor/bizquest/internal/logger"
	"github.com/vytor/bizquest/internal/models"
)

const issuer = "bizquest"

var ErrInvalidSession = errors.New("invalid session")

// Store persists sessions. repository.SessionRepository satisfies it.
type Store interface {
	Create(ctx context.Context, session models.Session) error
	Get(ctx context.Context, id string) (*models.Session, error)
	Revoke(ctx context.Context, id string, t time.Time) error
	PurgeExpired(ctx context.Context, now time.Time) (int64, error)
}

type Manager struct {
	secret []byte
	ttl    time.Duration
	store  Store
	now    func() time.Time
}

func NewManager(secret string, ttl time.Duration, store Store) *Manager {
	return &Manager{
		secret: []byte(secret),
		ttl:    ttl,
		store:  store,
		now:    time.Now,
	}
}

// WithClock replaces the time source; used by tests.
func (m *Manager) WithClock(now func() time.Time) *Manager {
	m.now = now
	return m
}

func (m *Manager) TTL() time.Duration { return m.ttl }

// Issue creates a session for userID and returns its signed token.
func (m *Manager) Issue(ctx context.Context, userID string) (string, *models.Session, error) {
	log := logger.FromContext(ctx).WithPrefix("session")

	now := m.now().UTC()
	s := models.Session{
		ID:        uuid.NewString(),
		UserID:    userID,
		ExpiresAt: now.Add(m.ttl),
		CreatedAt: now,
	}
	if err := m.store.Create(ctx, s); err != nil {
		log.Error("failed to store session: %v", err)
		return "", nil, err
	}

	claims := jwt.RegisteredClaims{
		Issuer:    issuer,
		Subject:   userID,
		ID:        s.ID,
		IssuedAt:  jwt.NewNumericDate(now),
		ExpiresAt: jwt.NewNumericDate(s.ExpiresAt),
	}
	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(m.secret)
	if err != nil {
		return "", nil, fmt.Errorf("sign session token: %w", err)
	}
	log.Debug("session issued: user_id=%s", userID)
	return token, &s, nil
}

func (m *Manager) parse(token string) (*jwt.RegisteredClaims, error) {
	claims := &jwt.RegisteredClaims{}
	_, err := jwt.ParseWithClaims(token, claims, func(*jwt.Token) (any, error) {
		return m.secret, nil
	},
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithIssuer(issuer),
		jwt.WithExpirationRequired(),
		jwt.WithTimeFunc(m.now),
	)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidSession, err)
	}
	if claims.Subject == "" || claims.ID == "" {
		return nil, ErrInvalidSession
	}
	return claims, nil
}

// Verify checks the token signature and that its session is still live.
func (m *Manager) Verify(ctx context.Context, token string) (*models.Session, error) {
	claims, err := m.parse(token)
	if err != nil {
		return nil, err
	}
	s, err := m.store.Get(ctx, claims.ID)
	if err != nil {
		return nil, err
	}
	if s == nil || s.UserID != claims.Subject || !s.Active(m.now()) {
		return nil, ErrInvalidSession
	}
	return s, nil
}

// Revoke ends the session named by token. Invalid tokens are ignored.
func (m *Manager) Revoke(ctx context.Context, token string) error {
	claims, err := m.parse(token)
	if err != nil {
		return nil
	}
	return m.store.Revoke(ctx, claims.ID, m.now())
}

// Purge removes expired and revoked sessions from the store.
func (m *Manager) Purge(ctx context.Context) (int64, error) {
	return m.store.PurgeExpired(ctx, m.now())
}
