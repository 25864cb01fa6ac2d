package sqlite_test

import (
	"context"
	"database/sql"
	"testing"
	"time"

	"github.com/stretchr/testify/suite"
	"github.com/vytor/bizquest/internal/models"
	"github.com/vytor/bizquest/internal/repository"
	"github.com/vytor/bizquest/internal/repository/sqlite"
	"github.com/vytor/bizquest/internal/testutil"
)

type SessionRepositorySuite struct {
	suite.Suite
	db   *sql.DB
	repo repository.SessionRepository
	user *models.User
}

func (s *SessionRepositorySuite) SetupTest() {
	s.db = testutil.NewTestDB(s.T())
	s.repo = sqlite.NewSessionRepository(s.db)
	s.user = seedUser(s.T(), s.db, "session@example.com")
}

func (s *SessionRepositorySuite) TearDownTest() {
	testutil.MustClose(s.T(), s.db)
}

func (s *SessionRepositorySuite) TestCreateGetRevoke() {
	ctx := context.Background()
	now := time.Now().UTC()
	s.Require().NoError(s.repo.Create(ctx, models.Session{ID: "s1", UserID: s.user.ID, ExpiresAt: now.Add(time.Hour)}))

	got, err := s.repo.Get(ctx, "s1")
	s.Require().NoError(err)
	s.Require().NotNil(got)
	s.Assert().True(got.Active(now))

	s.Require().NoError(s.repo.Revoke(ctx, "s1", now))
	got, err = s.repo.Get(ctx, "s1")
	s.Require().NoError(err)
	s.Assert().False(got.Active(now))
}

func (s *SessionRepositorySuite) TestGet_NotFound() {
	got, err := s.repo.Get(context.Background(), "missing")
	s.Assert().NoError(err)
	s.Assert().Nil(got)
}

func (s *SessionRepositorySuite) TestPurgeExpired() {
	ctx := context.Background()
	now := time.Now().UTC()
	s.Require().NoError(s.repo.Create(ctx, models.Session{ID: "old", UserID: s.user.ID, ExpiresAt: now.Add(-time.Hour)}))
	s.Require().NoError(s.repo.Create(ctx, models.Session{ID: "live", UserID: s.user.ID, ExpiresAt: now.Add(time.Hour)}))
	s.Require().NoError(s.repo.Create(ctx, models.Session{ID: "revoked", UserID: s.user.ID, ExpiresAt: now.Add(time.Hour)}))
	s.Require().NoError(s.repo.Revoke(ctx, "revoked", now))

	n, err := s.repo.PurgeExpired(ctx, now)
	s.Require().NoError(err)
	s.Assert().Equal(int64(2), n)

	live, err := s.repo.Get(ctx, "live")
	s.Require().NoError(err)
	s.Assert().NotNil(live)
}

func TestSessionRepositorySuite(t *testing.T) {
	suite.Run(t, new(SessionRepositorySuite))
}
