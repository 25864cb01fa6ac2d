package client

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vytor/bizquest/internal/models"
)

// fakeServer serves a three-level chain and applies progress writes.
type fakeServer struct {
	mu        sync.Mutex
	completed map[string]bool
	started   map[string]bool
	failList  bool
}

var chainPrereqs = map[string][]string{"l1": {}, "l2": {"l1"}, "l3": {"l2"}}

func (f *fakeServer) levels() []models.LevelWithStatus {
	var out []models.LevelWithStatus
	// deliberately out of order
	for _, id := range []string{"l3", "l1", "l2"} {
		prereqs := chainPrereqs[id]
		acc := true
		for _, p := range prereqs {
			acc = acc && f.completed[p]
		}
		status := models.StatusNotStarted
		if f.started[id] {
			status = models.StatusInProgress
		}
		if f.completed[id] {
			status = models.StatusCompleted
		}
		order := map[string]int{"l1": 1, "l2": 2, "l3": 3}[id]
		out = append(out, models.LevelWithStatus{
			Level:           models.Level{ID: id, OrderIndex: order},
			Status:          status,
			IsAccessible:    acc,
			IsCompleted:     f.completed[id],
			PrerequisiteIDs: prereqs,
		})
	}
	return out
}

func (f *fakeServer) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	f.mu.Lock()
	defer f.mu.Unlock()
	w.Header().Set("Content-Type", "application/json")

	if r.Header.Get("Authorization") != "Bearer tok" && r.URL.Path != "/auth/login" {
		w.WriteHeader(http.StatusUnauthorized)
		_ = json.NewEncoder(w).Encode(map[string]string{"error": "Unauthorized"})
		return
	}

	switch {
	case r.URL.Path == "/auth/login":
		_ = json.NewEncoder(w).Encode(map[string]any{"token": "tok", "user": models.User{ID: "u1"}})
	case r.URL.Path == "/api/levels":
		if f.failList {
			w.WriteHeader(http.StatusInternalServerError)
			_ = json.NewEncoder(w).Encode(map[string]string{"error": "Failed to fetch levels"})
			return
		}
		_ = json.NewEncoder(w).Encode(f.levels())
	case r.Method == http.MethodPost && len(r.URL.Path) > len("/api/levels/"):
		id := r.URL.Path[len("/api/levels/") : len(r.URL.Path)-len("/progress")]
		var body struct {
			Status models.ProgressStatus `json:"status"`
			Score  int                   `json:"score"`
		}
		_ = json.NewDecoder(r.Body).Decode(&body)
		if id == "l3" && !f.completed["l2"] {
			if body.Status == models.StatusCompleted {
				_ = json.NewEncoder(w).Encode(models.CompletionResult{Success: false, Message: "Level is not accessible"})
				return
			}
			w.WriteHeader(http.StatusForbidden)
			_ = json.NewEncoder(w).Encode(map[string]string{"error": "Level is not accessible"})
			return
		}
		if body.Status == models.StatusCompleted {
			first := !f.completed[id]
			f.completed[id] = true
			_ = json.NewEncoder(w).Encode(models.CompletionResult{
				Success: true, FirstCompletion: first, Rewards: &models.Rewards{XP: 100, Coins: 10},
			})
			return
		}
		f.started[id] = true
		_ = json.NewEncoder(w).Encode(models.Progress{LevelID: id, Status: models.StatusInProgress})
	default:
		http.NotFound(w, r)
	}
}

func newFake(t *testing.T) (*fakeServer, *Client) {
	f := &fakeServer{completed: map[string]bool{}, started: map[string]bool{}}
	srv := httptest.NewServer(f)
	t.Cleanup(srv.Close)
	c := New(srv.URL)
	_, err := c.Login(context.Background(), "ada@example.com", "pw")
	require.NoError(t, err)
	return f, c
}

func TestClientErrorsCarryServerMessage(t *testing.T) {
	f := &fakeServer{completed: map[string]bool{}, started: map[string]bool{}}
	srv := httptest.NewServer(f)
	defer srv.Close()

	_, err := New(srv.URL).ListLevels(context.Background())
	var apiErr *APIError
	require.ErrorAs(t, err, &apiErr)
	assert.Equal(t, http.StatusUnauthorized, apiErr.Status)
	assert.Equal(t, "Unauthorized", apiErr.Message)
}

func TestCacheRefreshSortsAndDerives(t *testing.T) {
	_, c := newFake(t)
	cache := NewProgressCache(c)

	require.NoError(t, cache.Refresh(context.Background()))
	levels := cache.Levels()
	require.Len(t, levels, 3)
	assert.Equal(t, "l1", levels[0].ID)
	assert.False(t, cache.Loading())

	cur, ok := cache.CurrentLevel()
	require.True(t, ok)
	assert.Equal(t, "l1", cur.ID)

	next, ok := cache.NextLevel()
	require.True(t, ok)
	assert.Equal(t, "l2", next.ID)
}

func TestCacheStartAndComplete(t *testing.T) {
	_, c := newFake(t)
	cache := NewProgressCache(c)
	ctx := context.Background()

	assert.True(t, cache.Start(ctx, "l1"))
	assert.Equal(t, models.StatusInProgress, cache.Levels()[0].Status)

	res := cache.Complete(ctx, "l1", 90)
	require.NotNil(t, res)
	assert.True(t, res.Success)
	assert.True(t, res.FirstCompletion)

	cur, ok := cache.CurrentLevel()
	require.True(t, ok)
	assert.Equal(t, "l2", cur.ID)
	next, ok := cache.NextLevel()
	require.True(t, ok)
	assert.Equal(t, "l3", next.ID)
}

func TestCacheStartFailureSetsErr(t *testing.T) {
	_, c := newFake(t)
	cache := NewProgressCache(c)

	assert.False(t, cache.Start(context.Background(), "l3"))
	assert.Equal(t, "Level is not accessible", cache.Err())

	res := cache.Complete(context.Background(), "l3", 10)
	require.NotNil(t, res)
	assert.False(t, res.Success)
}

func TestCacheRefreshFailureKeepsOldList(t *testing.T) {
	f, c := newFake(t)
	cache := NewProgressCache(c)
	require.NoError(t, cache.Refresh(context.Background()))

	f.mu.Lock()
	f.failList = true
	f.mu.Unlock()

	assert.Error(t, cache.Refresh(context.Background()))
	assert.Equal(t, "Failed to fetch levels", cache.Err())
	assert.Len(t, cache.Levels(), 3)
}

func TestCacheNoCurrentLevel(t *testing.T) {
	cache := NewProgressCache(New("http://127.0.0.1:0"))
	_, ok := cache.CurrentLevel()
	assert.False(t, ok)
	_, ok = cache.NextLevel()
	assert.False(t, ok)
}
