package api

import (
	"context"
	"html/template"

	"github.com/vytor/bizquest/internal/metrics"
	"github.com/vytor/bizquest/internal/oauth"
	"github.com/vytor/bizquest/internal/services"
	"github.com/vytor/bizquest/internal/session"
)

// Pinger is satisfied by *sql.DB.
type Pinger interface {
	PingContext(ctx context.Context) error
}

type Server struct {
	LevelService       services.LevelService
	ProgressService    services.ProgressService
	AuthService        services.AuthService
	ProfileService     services.ProfileService
	AchievementService services.AchievementService
	Sessions           *session.Manager
	// OAuth is nil when no provider is configured.
	OAuth     oauth.Provider
	Metrics   *metrics.Metrics
	DB        Pinger
	Templates *template.Template

	// UploadsDir is served under /uploads/ when avatars are stored locally.
	UploadsDir     string
	CookieSecure   bool
	MaxAvatarBytes int64
}

type pageData map[string]any
