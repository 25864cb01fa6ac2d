package sqlite_test

import (
	"context"
	"database/sql"
	"path/filepath"
	"sync"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/stretchr/testify/suite"
	"github.com/vytor/bizquest/internal/db"
	"github.com/vytor/bizquest/internal/models"
	"github.com/vytor/bizquest/internal/repository"
	"github.com/vytor/bizquest/internal/repository/sqlite"
	"github.com/vytor/bizquest/internal/testutil"
)

type ProgressRepositorySuite struct {
	suite.Suite
	db    *sql.DB
	repo  repository.ProgressRepository
	users repository.UserRepository
	user  *models.User
}

func (s *ProgressRepositorySuite) SetupTest() {
	s.db = testutil.NewTestDB(s.T())
	s.repo = sqlite.NewProgressRepository(s.db)
	s.users = sqlite.NewUserRepository(s.db)
	seedLevels(s.T(), s.db)
	s.user = seedUser(s.T(), s.db, "learner@example.com")
}

func (s *ProgressRepositorySuite) TearDownTest() {
	testutil.MustClose(s.T(), s.db)
}

func (s *ProgressRepositorySuite) countRows() int {
	var n int
	s.Require().NoError(s.db.QueryRow(`SELECT COUNT(*) FROM progress WHERE user_id = ?`, s.user.ID).Scan(&n))
	return n
}

func (s *ProgressRepositorySuite) TestGet_NoRow() {
	p, err := s.repo.Get(context.Background(), s.user.ID, "level-1")
	s.Assert().NoError(err)
	s.Assert().Nil(p)
}

func (s *ProgressRepositorySuite) TestStart_CreatesSingleRow() {
	ctx := context.Background()
	p, ok, err := s.repo.Start(ctx, s.user.ID, "level-1", 0)
	s.Require().NoError(err)
	s.Require().True(ok)
	s.Require().NotNil(p)
	s.Assert().Equal(models.StatusInProgress, p.Status)
	s.Assert().Equal(0, p.Score)
	s.Assert().False(p.Completed)
	s.Assert().Nil(p.CompletedAt)

	_, _, err = s.repo.Start(ctx, s.user.ID, "level-1", 0)
	s.Require().NoError(err)
	s.Assert().Equal(1, s.countRows())
}

func (s *ProgressRepositorySuite) TestStart_LockedLevelChangesNothing() {
	p, ok, err := s.repo.Start(context.Background(), s.user.ID, "level-2", 0)
	s.Require().NoError(err)
	s.Assert().False(ok)
	s.Assert().Nil(p)
	s.Assert().Equal(0, s.countRows())
}

func (s *ProgressRepositorySuite) TestComplete_FirstAndRepeat() {
	ctx := context.Background()

	out, err := s.repo.Complete(ctx, s.user.ID, "level-1", 90, 500)
	s.Require().NoError(err)
	s.Require().NotNil(out)
	s.Assert().True(out.Accessible)
	s.Assert().True(out.FirstCompletion)
	s.Assert().Equal(models.StatusCompleted, out.Progress.Status)
	s.Assert().True(out.Progress.Completed)
	s.Assert().Equal(90, out.Progress.Score)
	s.Require().NotNil(out.Progress.CompletedAt)
	s.Assert().Equal(100, out.User.XP)
	s.Assert().Equal(10, out.User.Coins)

	firstCompletedAt := *out.Progress.CompletedAt

	again, err := s.repo.Complete(ctx, s.user.ID, "level-1", 70, 500)
	s.Require().NoError(err)
	s.Assert().True(again.Accessible)
	s.Assert().False(again.FirstCompletion)
	s.Assert().Equal(70, again.Progress.Score)
	s.Assert().Equal(100, again.User.XP, "rewards are granted once")
	s.Assert().Equal(10, again.User.Coins)
	s.Assert().True(firstCompletedAt.Equal(*again.Progress.CompletedAt))
	s.Assert().Equal(1, s.countRows())
}

func (s *ProgressRepositorySuite) TestComplete_Locked() {
	out, err := s.repo.Complete(context.Background(), s.user.ID, "level-2", 50, 500)
	s.Require().NoError(err)
	s.Require().NotNil(out)
	s.Assert().False(out.Accessible)
	s.Assert().Equal(0, s.countRows())

	u, err := s.users.GetByID(context.Background(), s.user.ID)
	s.Require().NoError(err)
	s.Assert().Equal(0, u.XP)
}

func (s *ProgressRepositorySuite) TestComplete_MissingOrInactive() {
	out, err := s.repo.Complete(context.Background(), s.user.ID, "missing", 10, 500)
	s.Assert().NoError(err)
	s.Assert().Nil(out)

	out, err = s.repo.Complete(context.Background(), s.user.ID, "level-x", 10, 500)
	s.Assert().NoError(err)
	s.Assert().Nil(out)
}

func (s *ProgressRepositorySuite) TestComplete_UnlocksDependent() {
	ctx := context.Background()
	_, err := s.repo.Complete(ctx, s.user.ID, "level-1", 90, 500)
	s.Require().NoError(err)

	p, ok, err := s.repo.Start(ctx, s.user.ID, "level-2", 0)
	s.Require().NoError(err)
	s.Assert().True(ok)
	s.Assert().Equal(models.StatusInProgress, p.Status)
}

func (s *ProgressRepositorySuite) TestComplete_RecomputesUserLevel() {
	out, err := s.repo.Complete(context.Background(), s.user.ID, "level-1", 90, 50)
	s.Require().NoError(err)
	s.Assert().Equal(3, out.User.Level)
}

func (s *ProgressRepositorySuite) TestUpsert_NeverDowngradesCompleted() {
	ctx := context.Background()
	_, err := s.repo.Complete(ctx, s.user.ID, "level-1", 90, 500)
	s.Require().NoError(err)

	p, err := s.repo.Upsert(ctx, s.user.ID, "level-1", models.StatusInProgress, 0)
	s.Require().NoError(err)
	s.Assert().Equal(models.StatusCompleted, p.Status)
	s.Assert().Equal(90, p.Score)
}

func (s *ProgressRepositorySuite) TestUpsert_NotStarted() {
	p, err := s.repo.Upsert(context.Background(), s.user.ID, "level-2", models.StatusNotStarted, 0)
	s.Require().NoError(err)
	s.Assert().Equal(models.StatusNotStarted, p.Status)
}

func (s *ProgressRepositorySuite) TestListForUser() {
	ctx := context.Background()
	_, _, err := s.repo.Start(ctx, s.user.ID, "level-1", 0)
	s.Require().NoError(err)

	rows, err := s.repo.ListForUser(ctx, s.user.ID)
	s.Require().NoError(err)
	s.Require().Len(rows, 1)
	s.Assert().Equal("level-1", rows[0].LevelID)
}

func TestProgressRepositorySuite(t *testing.T) {
	suite.Run(t, new(ProgressRepositorySuite))
}

// Double-clicked start and complete buttons arrive as parallel requests
// against the file database the server opens.
func TestProgressRepository_ConcurrentStartAndComplete(t *testing.T) {
	database, err := db.Open(filepath.Join(t.TempDir(), "progress.db"))
	require.NoError(t, err)
	defer testutil.MustClose(t, database)

	seedLevels(t, database.DB)
	user := seedUser(t, database.DB, "clicker@example.com")
	repo := sqlite.NewProgressRepository(database.DB)
	ctx := context.Background()

	const n = 20
	var (
		wg    sync.WaitGroup
		first atomic.Int32
	)
	errs := make(chan error, 2*n)
	for i := 0; i < n; i++ {
		wg.Add(2)
		go func() {
			defer wg.Done()
			if _, _, err := repo.Start(ctx, user.ID, "level-1", 0); err != nil {
				errs <- err
			}
		}()
		go func(score int) {
			defer wg.Done()
			out, err := repo.Complete(ctx, user.ID, "level-1", score, 500)
			if err != nil {
				errs <- err
				return
			}
			if out.FirstCompletion {
				first.Add(1)
			}
		}(50 + i)
	}
	wg.Wait()
	close(errs)
	for err := range errs {
		require.NoError(t, err)
	}

	var rows int
	require.NoError(t, database.QueryRow(`SELECT COUNT(*) FROM progress WHERE user_id = ?`, user.ID).Scan(&rows))
	assert.Equal(t, 1, rows)
	assert.Equal(t, int32(1), first.Load(), "exactly one completion is the first")

	p, err := repo.Get(ctx, user.ID, "level-1")
	require.NoError(t, err)
	assert.Equal(t, models.StatusCompleted, p.Status)

	u, err := sqlite.NewUserRepository(database.DB).GetByID(ctx, user.ID)
	require.NoError(t, err)
	assert.Equal(t, 100, u.XP)
	assert.Equal(t, 10, u.Coins)
}
