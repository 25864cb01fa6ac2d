package api

import (
	"bytes"
	"context"
	"encoding/json"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/stretchr/testify/suite"

	"github.com/vytor/bizquest/internal/metrics"
	"github.com/vytor/bizquest/internal/models"
	"github.com/vytor/bizquest/internal/repository/sqlite"
	"github.com/vytor/bizquest/internal/services"
	"github.com/vytor/bizquest/internal/session"
	"github.com/vytor/bizquest/internal/storage"
	"github.com/vytor/bizquest/internal/testutil"
)

type fakeProvider struct {
	identity *models.ExternalIdentity
	err      error
}

func (f *fakeProvider) AuthCodeURL(state string) string {
	return "https://id.example.com/authorize?state=" + state
}

func (f *fakeProvider) Exchange(context.Context, string) (*models.ExternalIdentity, error) {
	return f.identity, f.err
}

type ServerTestSuite struct {
	suite.Suite
	srv     *Server
	handler http.Handler
	closeDB func()
}

func TestServerTestSuite(t *testing.T) {
	suite.Run(t, new(ServerTestSuite))
}

func (s *ServerTestSuite) SetupTest() {
	t := s.T()
	db := testutil.NewTestDB(t)
	s.closeDB = func() { testutil.MustClose(t, db) }

	levelRepo := sqlite.NewLevelRepository(db)
	progressRepo := sqlite.NewProgressRepository(db)
	userRepo := sqlite.NewUserRepository(db)
	achievementRepo := sqlite.NewAchievementRepository(db)

	ctx := context.Background()
	require.NoError(t, levelRepo.Sync(ctx, []models.Level{
		{ID: "level-1", Title: "Business Basics", OrderIndex: 1, XPReward: 100, CoinReward: 10, IsActive: true},
		{ID: "level-2", Title: "Know Your Customer", OrderIndex: 2, XPReward: 150, CoinReward: 15, IsActive: true},
	}, []models.Prerequisite{{LevelID: "level-2", PrerequisiteID: "level-1"}}))

	uploads := t.TempDir()
	store, err := storage.NewLocal(uploads, "/uploads")
	require.NoError(t, err)
	tmpl, err := LoadTemplates()
	require.NoError(t, err)

	m := metrics.New()
	s.srv = &Server{
		LevelService:       services.NewLevelService(levelRepo, progressRepo),
		ProgressService:    services.NewProgressService(levelRepo, progressRepo, nil, m, 1000),
		AuthService:        services.NewAuthService(userRepo),
		ProfileService:     services.NewProfileService(userRepo, store, 1<<20),
		AchievementService: services.NewAchievementService(achievementRepo, m),
		Sessions:           session.NewManager(strings.Repeat("k", 32), time.Hour, sqlite.NewSessionRepository(db)),
		Metrics:            m,
		DB:                 db,
		Templates:          tmpl,
		UploadsDir:         uploads,
		MaxAvatarBytes:     1 << 20,
	}
	s.handler = s.srv.Routes()
}

func (s *ServerTestSuite) TearDownTest() {
	s.closeDB()
}

func (s *ServerTestSuite) do(method, path, token string, body any) *httptest.ResponseRecorder {
	var buf bytes.Buffer
	if body != nil {
		require.NoError(s.T(), json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	rec := httptest.NewRecorder()
	s.handler.ServeHTTP(rec, req)
	return rec
}

func decode[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &v), rec.Body.String())
	return v
}

func (s *ServerTestSuite) signup(email string) string {
	rec := s.do(http.MethodPost, "/auth/signup", "", map[string]string{
		"email": email, "password": "correct horse", "full_name": "Ada",
	})
	s.Require().Equal(http.StatusCreated, rec.Code, rec.Body.String())
	out := decode[struct {
		Token string       `json:"token"`
		User  *models.User `json:"user"`
	}](s.T(), rec)
	s.Require().NotEmpty(out.Token)
	return out.Token
}

func (s *ServerTestSuite) TestAPIRequiresSession() {
	rec := s.do(http.MethodGet, "/api/levels", "", nil)
	s.Equal(http.StatusUnauthorized, rec.Code)
	s.Equal("application/json", rec.Header().Get("Content-Type"))
	body := decode[map[string]string](s.T(), rec)
	s.NotEmpty(body["error"])
}

func (s *ServerTestSuite) TestSignupAndLogin() {
	s.signup("ada@example.com")

	rec := s.do(http.MethodPost, "/auth/signup", "", map[string]string{"email": "ADA@example.com", "password": "another one"})
	s.Equal(http.StatusConflict, rec.Code)

	rec = s.do(http.MethodPost, "/auth/signup", "", map[string]string{"email": "bob@example.com", "password": "short"})
	s.Equal(http.StatusBadRequest, rec.Code)

	rec = s.do(http.MethodPost, "/auth/login", "", map[string]string{"email": "ada@example.com", "password": "wrong password"})
	s.Equal(http.StatusUnauthorized, rec.Code)

	rec = s.do(http.MethodPost, "/auth/login", "", map[string]string{"email": "ada@example.com", "password": "correct horse"})
	s.Require().Equal(http.StatusOK, rec.Code)
	var cookie *http.Cookie
	for _, c := range rec.Result().Cookies() {
		if c.Name == sessionCookieName {
			cookie = c
		}
	}
	s.Require().NotNil(cookie)
	s.True(cookie.HttpOnly)
}

func (s *ServerTestSuite) TestProgressionEndToEnd() {
	token := s.signup("ada@example.com")
	t := s.T()

	levels := decode[[]models.LevelWithStatus](t, s.do(http.MethodGet, "/api/levels", token, nil))
	s.Require().Len(levels, 2)
	s.True(levels[0].IsAccessible)
	s.False(levels[1].IsAccessible)
	s.Equal("lock", levels[1].StatusIcon)

	rec := s.do(http.MethodPost, "/api/levels/level-2/progress", token, map[string]any{"status": "in_progress"})
	s.Equal(http.StatusForbidden, rec.Code)

	rec = s.do(http.MethodPost, "/api/levels/level-1/progress", token, map[string]any{"status": "in_progress"})
	s.Require().Equal(http.StatusOK, rec.Code, rec.Body.String())
	p := decode[models.Progress](t, rec)
	s.Equal(models.StatusInProgress, p.Status)
	s.Equal(0, p.Score)
	s.False(p.Completed)

	rec = s.do(http.MethodPost, "/api/levels/level-1/progress", token, map[string]any{"status": "completed", "score": 90})
	s.Require().Equal(http.StatusOK, rec.Code, rec.Body.String())
	result := decode[models.CompletionResult](t, rec)
	s.True(result.Success)
	s.True(result.FirstCompletion)
	s.Equal(&models.Rewards{XP: 100, Coins: 10}, result.Rewards)
	s.Equal([]string{"level-2"}, result.UnlockedLevels)

	levels = decode[[]models.LevelWithStatus](t, s.do(http.MethodGet, "/api/levels", token, nil))
	s.True(levels[0].IsCompleted)
	s.True(levels[1].IsAccessible)

	rec = s.do(http.MethodPost, "/api/levels/level-1/progress", token, map[string]any{"status": "completed", "score": 95})
	again := decode[models.CompletionResult](t, rec)
	s.True(again.Success)
	s.False(again.FirstCompletion)

	user := decode[models.User](t, s.do(http.MethodGet, "/api/profile", token, nil))
	s.Equal(100, user.XP)
	s.Equal(10, user.Coins)

	detail := decode[models.LevelDetail](t, s.do(http.MethodGet, "/api/levels/level-1", token, nil))
	s.Require().NotNil(detail.Progress)
	s.Equal(95, detail.Progress.Score)
}

func (s *ServerTestSuite) TestProgressValidation() {
	token := s.signup("ada@example.com")

	rec := s.do(http.MethodPost, "/api/levels/level-1/progress", token, map[string]any{"status": "finished"})
	s.Equal(http.StatusBadRequest, rec.Code)
	s.Contains(decode[map[string]string](s.T(), rec)["error"], "status")

	rec = s.do(http.MethodPost, "/api/levels/level-1/progress", token, map[string]any{"status": "completed", "score": -1})
	s.Equal(http.StatusBadRequest, rec.Code)

	rec = s.do(http.MethodPost, "/api/levels/nope/progress", token, map[string]any{"status": "in_progress"})
	s.Equal(http.StatusNotFound, rec.Code)

	rec = s.do(http.MethodGet, "/api/levels/nope", token, nil)
	s.Equal(http.StatusNotFound, rec.Code)
}

func (s *ServerTestSuite) TestLockedCompletionReportsFailure() {
	token := s.signup("ada@example.com")
	rec := s.do(http.MethodPost, "/api/levels/level-2/progress", token, map[string]any{"status": "completed", "score": 50})
	s.Require().Equal(http.StatusOK, rec.Code)
	result := decode[models.CompletionResult](s.T(), rec)
	s.False(result.Success)
	s.Equal(services.MessageLevelInaccessible, result.Message)
}

func (s *ServerTestSuite) TestLogoutRevokesSession() {
	token := s.signup("ada@example.com")
	s.Equal(http.StatusOK, s.do(http.MethodGet, "/api/profile", token, nil).Code)

	rec := s.do(http.MethodPost, "/auth/logout", token, map[string]any{})
	s.Equal(http.StatusNoContent, rec.Code)
	s.Equal(http.StatusUnauthorized, s.do(http.MethodGet, "/api/profile", token, nil).Code)
}

func (s *ServerTestSuite) TestProfileUpdateAndPassword() {
	token := s.signup("ada@example.com")

	rec := s.do(http.MethodPatch, "/api/profile", token, map[string]any{"business_type": "bakery"})
	s.Require().Equal(http.StatusOK, rec.Code)
	user := decode[models.User](s.T(), rec)
	s.Require().NotNil(user.BusinessType)
	s.Equal("bakery", *user.BusinessType)
	s.Equal("Ada", user.FullName)

	rec = s.do(http.MethodPost, "/api/profile/password", token, map[string]any{
		"current_password": "correct horse", "new_password": "battery staple", "confirm_password": "battery stapler",
	})
	s.Equal(http.StatusBadRequest, rec.Code)

	rec = s.do(http.MethodPost, "/api/profile/password", token, map[string]any{
		"current_password": "nope nope", "new_password": "battery staple", "confirm_password": "battery staple",
	})
	s.Equal(http.StatusUnauthorized, rec.Code)

	rec = s.do(http.MethodPost, "/api/profile/password", token, map[string]any{
		"current_password": "correct horse", "new_password": "battery staple", "confirm_password": "battery staple",
	})
	s.Equal(http.StatusNoContent, rec.Code)
}

func (s *ServerTestSuite) TestAvatarUpload() {
	token := s.signup("ada@example.com")

	var body bytes.Buffer
	mw := multipart.NewWriter(&body)
	fw, err := mw.CreateFormFile("avatar", "me.gif")
	s.Require().NoError(err)
	_, _ = fw.Write([]byte("GIF89a\x01\x00\x01\x00\x00\x00\x00;"))
	s.Require().NoError(mw.Close())

	req := httptest.NewRequest(http.MethodPost, "/api/profile/avatar", &body)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	req.Header.Set("Authorization", "Bearer "+token)
	rec := httptest.NewRecorder()
	s.handler.ServeHTTP(rec, req)
	s.Require().Equal(http.StatusOK, rec.Code, rec.Body.String())

	user := decode[models.User](s.T(), rec)
	s.Require().NotNil(user.AvatarURL)
	s.True(strings.HasPrefix(*user.AvatarURL, "/uploads/avatars/"))

	served := s.do(http.MethodGet, *user.AvatarURL, "", nil)
	s.Equal(http.StatusOK, served.Code)

	rec = s.do(http.MethodDelete, "/api/profile/avatar", token, nil)
	s.Require().Equal(http.StatusOK, rec.Code)
	s.Nil(decode[models.User](s.T(), rec).AvatarURL)
}

func (s *ServerTestSuite) TestOAuthCallback() {
	provider := &fakeProvider{identity: &models.ExternalIdentity{
		Subject: "idp|1", Email: "grace@example.com", PreferredUsername: "grace",
	}}
	s.srv.OAuth = provider
	s.handler = s.srv.Routes()

	start := s.do(http.MethodGet, "/auth/oauth/start?next=/levels", "", nil)
	s.Require().Equal(http.StatusFound, start.Code)
	loc, err := url.Parse(start.Header().Get("Location"))
	s.Require().NoError(err)
	state := loc.Query().Get("state")
	s.Require().NotEmpty(state)

	req := httptest.NewRequest(http.MethodGet, "/auth/callback?code=abc&state="+state, nil)
	for _, c := range start.Result().Cookies() {
		req.AddCookie(c)
	}
	rec := httptest.NewRecorder()
	s.handler.ServeHTTP(rec, req)
	s.Equal(http.StatusSeeOther, rec.Code)
	s.Equal("/levels", rec.Header().Get("Location"))

	var token string
	for _, c := range rec.Result().Cookies() {
		if c.Name == sessionCookieName {
			token = c.Value
		}
	}
	s.Require().NotEmpty(token)
	user := decode[models.User](s.T(), s.do(http.MethodGet, "/api/profile", token, nil))
	s.Equal("grace", user.FullName)
	s.Equal("grace@example.com", user.Email)
}

// callback runs the OAuth start and callback round trip and returns the
// callback response.
func (s *ServerTestSuite) callback(next string) *httptest.ResponseRecorder {
	start := s.do(http.MethodGet, "/auth/oauth/start?next="+url.QueryEscape(next), "", nil)
	s.Require().Equal(http.StatusFound, start.Code)
	loc, err := url.Parse(start.Header().Get("Location"))
	s.Require().NoError(err)

	req := httptest.NewRequest(http.MethodGet, "/auth/callback?code=abc&state="+loc.Query().Get("state"), nil)
	for _, c := range start.Result().Cookies() {
		req.AddCookie(c)
	}
	rec := httptest.NewRecorder()
	s.handler.ServeHTTP(rec, req)
	return rec
}

func (s *ServerTestSuite) TestOAuthCallbackDoesNotTakeOverPasswordAccount() {
	victim := s.signup("victim@example.com")
	owner := decode[models.User](s.T(), s.do(http.MethodGet, "/api/profile", victim, nil))

	for _, verified := range []bool{false, true} {
		s.srv.OAuth = &fakeProvider{identity: &models.ExternalIdentity{
			Subject: "attacker-sub", Email: "victim@example.com", EmailVerified: verified,
		}}
		s.handler = s.srv.Routes()

		rec := s.callback("/levels")
		s.Equal(http.StatusSeeOther, rec.Code)
		for _, c := range rec.Result().Cookies() {
			s.NotEqual(sessionCookieName, c.Name, "verified=%t", verified)
		}
	}

	login := s.do(http.MethodPost, "/auth/login", "", map[string]string{
		"email": "victim@example.com", "password": "correct horse",
	})
	s.Require().Equal(http.StatusOK, login.Code)
	s.Equal(owner.ID, decode[struct {
		User models.User `json:"user"`
	}](s.T(), login).User.ID)
}

func (s *ServerTestSuite) TestOAuthCallbackRejectsBadState() {
	s.srv.OAuth = &fakeProvider{identity: &models.ExternalIdentity{Subject: "idp|1", Email: "g@example.com"}}
	s.handler = s.srv.Routes()

	rec := s.do(http.MethodGet, "/auth/callback?code=abc&state=forged&next=https://evil.example.com", "", nil)
	s.Equal(http.StatusSeeOther, rec.Code)
	s.Equal("/", rec.Header().Get("Location"))
	for _, c := range rec.Result().Cookies() {
		s.NotEqual(sessionCookieName, c.Name)
	}
}

func (s *ServerTestSuite) TestPages() {
	rec := s.do(http.MethodGet, "/levels", "", nil)
	s.Equal(http.StatusSeeOther, rec.Code)
	s.True(strings.HasPrefix(rec.Header().Get("Location"), "/auth/login?next="))

	s.Equal(http.StatusOK, s.do(http.MethodGet, "/auth/login", "", nil).Code)

	token := s.signup("ada@example.com")
	rec = s.do(http.MethodGet, "/levels", token, nil)
	s.Require().Equal(http.StatusOK, rec.Code)
	s.Contains(rec.Body.String(), "Business Basics")
	s.Contains(rec.Body.String(), "0 of 2 levels completed")

	rec = s.do(http.MethodGet, "/profile", token, nil)
	s.Equal(http.StatusOK, rec.Code)
	s.Contains(rec.Body.String(), "ada@example.com")
}

func (s *ServerTestSuite) TestLevelForms() {
	token := s.signup("ada@example.com")

	form := func(path string, values url.Values) *httptest.ResponseRecorder {
		req := httptest.NewRequest(http.MethodPost, path, strings.NewReader(values.Encode()))
		req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
		req.Header.Set("Authorization", "Bearer "+token)
		rec := httptest.NewRecorder()
		s.handler.ServeHTTP(rec, req)
		return rec
	}

	rec := form("/levels/level-1/start", url.Values{})
	s.Equal(http.StatusSeeOther, rec.Code)
	s.Equal("/levels/level-1", rec.Header().Get("Location"))

	rec = form("/levels/level-1/complete", url.Values{"score": {"80"}})
	s.Equal(http.StatusSeeOther, rec.Code)
	s.Contains(rec.Header().Get("Location"), "/levels?flash=")

	rec = form("/levels/level-2/complete", url.Values{"score": {"abc"}})
	s.Equal(http.StatusBadRequest, rec.Code)
}

func (s *ServerTestSuite) TestHealth() {
	s.Equal(http.StatusOK, s.do(http.MethodGet, "/healthz", "", nil).Code)
	s.Equal(http.StatusOK, s.do(http.MethodGet, "/readyz", "", nil).Code)

	rec := s.do(http.MethodGet, "/metrics", "", nil)
	s.Equal(http.StatusOK, rec.Code)
	s.Contains(rec.Body.String(), "bizquest_")
}

func TestSafeNext(t *testing.T) {
	cases := map[string]string{
		"":                      "/",
		"/levels":               "/levels",
		"/levels?x=1":           "/levels?x=1",
		"https://evil.com":      "/",
		"//evil.com/path":       "/",
		"/\\evil.com":           "/",
		"levels":                "/",
		"javascript:alert('x')": "/",
	}
	for in, want := range cases {
		assert.Equal(t, want, safeNext(in), in)
	}
}
