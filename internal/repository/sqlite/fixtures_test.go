package sqlite_test

import (
	"context"
	"database/sql"
	"testing"

	"github.com/stretchr/testify/require"
	"github.com/vytor/bizquest/internal/models"
	"github.com/vytor/bizquest/internal/repository/sqlite"
)

func seedUser(t *testing.T, db *sql.DB, email string) *models.User {
	t.Helper()
	u, err := sqlite.NewUserRepository(db).Create(context.Background(), models.User{Email: email, FullName: "Test User"})
	require.NoError(t, err)
	require.NotNil(t, u)
	return u
}

// seedLevels creates level-1 (open), level-2 (requires level-1) and an
// inactive level-x.
func seedLevels(t *testing.T, db *sql.DB) {
	t.Helper()
	levels := []models.Level{
		{ID: "level-1", Title: "Business Basics", OrderIndex: 1, XPReward: 100, CoinReward: 10, IsActive: true},
		{ID: "level-2", Title: "Marketing", OrderIndex: 2, XPReward: 150, CoinReward: 15, IsActive: true},
		{ID: "level-x", Title: "Retired", OrderIndex: 3, XPReward: 1, CoinReward: 1, IsActive: false},
	}
	edges := []models.Prerequisite{{LevelID: "level-2", PrerequisiteID: "level-1"}}
	require.NoError(t, sqlite.NewLevelRepository(db).Sync(context.Background(), levels, edges))
}
