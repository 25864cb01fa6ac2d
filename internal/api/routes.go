package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"
)

func (s *Server) Routes() http.Handler {
	r := chi.NewRouter()
	r.Use(recoveryMiddleware)
	r.Use(loggingMiddleware)
	r.Use(securityHeadersMiddleware)
	r.Use(s.Metrics.Middleware)
	r.Use(s.sessionMiddleware)

	r.Get("/healthz", s.handleHealth)
	r.Get("/readyz", s.handleReady)
	r.Handle("/metrics", s.Metrics.Handler())

	r.Route("/auth", func(r chi.Router) {
		r.Get("/signup", s.handleSignupPage)
		r.Post("/signup", s.handleSignup)
		r.Get("/login", s.handleLoginPage)
		r.Post("/login", s.handleLogin)
		r.Post("/logout", s.handleLogout)
		r.Get("/oauth/start", s.handleOAuthStart)
		r.Get("/callback", s.handleOAuthCallback)
	})

	r.Route("/api", func(r chi.Router) {
		r.Use(requireAPIUser)
		r.Get("/levels", s.handleListLevels)
		r.Get("/levels/{id}", s.handleGetLevel)
		r.Post("/levels/{id}/progress", s.handleUpdateProgress)
		r.Get("/achievements", s.handleListAchievements)
		r.Get("/profile", s.handleGetProfile)
		r.Patch("/profile", s.handleUpdateProfile)
		r.Post("/profile/password", s.handleChangePassword)
		r.Post("/profile/avatar", s.handleUploadAvatar)
		r.Delete("/profile/avatar", s.handleRemoveAvatar)
	})

	r.Group(func(r chi.Router) {
		r.Use(requirePageUser)
		r.Get("/", s.handleHome)
		r.Get("/levels", s.handleLevelsPage)
		r.Get("/levels/{id}", s.handleLevelPage)
		r.Post("/levels/{id}/start", s.handleStartLevelForm)
		r.Post("/levels/{id}/complete", s.handleCompleteLevelForm)
		r.Get("/profile", s.handleProfilePage)
		r.Post("/profile", s.handleProfileForm)
		r.Post("/profile/password", s.handlePasswordForm)
		r.Post("/profile/avatar", s.handleAvatarForm)
		r.Post("/profile/avatar/delete", s.handleAvatarDeleteForm)
	})

	if s.UploadsDir != "" {
		r.Handle("/uploads/*", http.StripPrefix("/uploads/", http.FileServer(http.Dir(s.UploadsDir))))
	}
	return r
}
