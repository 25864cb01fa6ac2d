package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/vytor/bizquest/internal/api"
	"github.com/vytor/bizquest/internal/catalog"
	"github.com/vytor/bizquest/internal/config"
	"github.com/vytor/bizquest/internal/db"
	"github.com/vytor/bizquest/internal/jobs"
	"github.com/vytor/bizquest/internal/logger"
	"github.com/vytor/bizquest/internal/metrics"
	"github.com/vytor/bizquest/internal/oauth"
	"github.com/vytor/bizquest/internal/repository/sqlite"
	"github.com/vytor/bizquest/internal/scheduler"
	"github.com/vytor/bizquest/internal/services"
	"github.com/vytor/bizquest/internal/session"
	"github.com/vytor/bizquest/internal/storage"
	"github.com/vytor/bizquest/internal/worker"
)

func main() {
	cfg := config.Load()

	log := logger.New(
		logger.WithLevel(logger.ParseLevel(cfg.LogLevel)),
		logger.WithFormat(logger.ParseFormat(cfg.LogFormat)),
		logger.WithColors(logger.ParseFormat(cfg.LogFormat) == logger.FormatText),
	)
	logger.SetDefault(log)

	log.Info("===========================================")
	log.Info("BizQuest Server Starting")
	log.Info("===========================================")

	if err := cfg.Validate(); err != nil {
		log.Error("invalid configuration: %v", err)
		os.Exit(1)
	}
	log.Info("configuration loaded")
	log.Debug("addr=%s", cfg.Addr)
	log.Debug("db_path=%s", cfg.DBPath)
	log.Debug("log_level=%s", cfg.LogLevel)
	log.Debug("session_ttl=%s", cfg.SessionTTL)
	log.Debug("session_purge_interval=%s", cfg.SessionPurgeInterval)
	log.Debug("worker_count=%d", cfg.WorkerCount)
	log.Debug("queue_size=%d", cfg.QueueSize)
	log.Debug("xp_per_user_level=%d", cfg.XPPerUserLevel)
	log.Debug("catalog_path=%s", cfg.CatalogPath)
	log.Debug("oauth_enabled=%t", cfg.OAuth.Enabled())

	ctx, cancel := context.WithCancel(logger.NewContext(context.Background(), log))
	defer cancel()

	database, err := db.Open(cfg.DBPath)
	if err != nil {
		log.Error("failed to open database: %v", err)
		os.Exit(1)
	}
	defer func() {
		log.Debug("closing database connection")
		database.Close()
	}()

	m := metrics.New()
	m.RegisterDB(database.DB)

	levelRepo := sqlite.NewLevelRepository(database.DB)
	progressRepo := sqlite.NewProgressRepository(database.DB)
	userRepo := sqlite.NewUserRepository(database.DB)
	achievementRepo := sqlite.NewAchievementRepository(database.DB)

	if cfg.CatalogPath != "" {
		cat, err := catalog.Load(cfg.CatalogPath)
		if err != nil {
			log.Error("failed to load catalog: %v", err)
			os.Exit(1)
		}
		if err := catalog.Seed(ctx, cat, levelRepo, achievementRepo); err != nil {
			log.Error("failed to seed catalog: %v", err)
			os.Exit(1)
		}
	}

	var sessionStore session.Store = sqlite.NewSessionRepository(database.DB)
	if cfg.RedisAddr != "" {
		rs := session.NewRedisStore(cfg.RedisAddr)
		if err := rs.Ping(ctx); err != nil {
			log.Error("failed to reach redis at %s: %v", cfg.RedisAddr, err)
			os.Exit(1)
		}
		defer rs.Close()
		sessionStore = rs
		log.Info("sessions stored in redis at %s", cfg.RedisAddr)
	}
	sessions := session.NewManager(cfg.SessionSecret, cfg.SessionTTL, sessionStore)

	var avatars storage.Storage
	uploadsDir := ""
	if cfg.AvatarGCSBucket != "" {
		gcs, err := storage.NewGCS(ctx, cfg.AvatarGCSBucket)
		if err != nil {
			log.Error("failed to create storage client: %v", err)
			os.Exit(1)
		}
		defer gcs.Close()
		avatars = gcs
		log.Info("avatars stored in gs://%s", cfg.AvatarGCSBucket)
	} else {
		local, err := storage.NewLocal(cfg.AvatarDir, cfg.AvatarBaseURL)
		if err != nil {
			log.Error("failed to prepare avatar dir: %v", err)
			os.Exit(1)
		}
		avatars = local
		uploadsDir = cfg.AvatarDir
	}

	log.Debug("loading templates")
	tmpl, err := api.LoadTemplates()
	if err != nil {
		log.Error("failed to load templates: %v", err)
		os.Exit(1)
	}

	pool := worker.NewPool(cfg.WorkerCount, cfg.QueueSize)
	achievementService := services.NewAchievementService(achievementRepo, m)
	queue := jobs.NewWorkerQueue(pool, achievementService)

	srv := &api.Server{
		LevelService:       services.NewLevelService(levelRepo, progressRepo),
		ProgressService:    services.NewProgressService(levelRepo, progressRepo, queue, m, cfg.XPPerUserLevel),
		AuthService:        services.NewAuthService(userRepo),
		ProfileService:     services.NewProfileService(userRepo, avatars, cfg.AvatarMaxBytes),
		AchievementService: achievementService,
		Sessions:           sessions,
		Metrics:            m,
		DB:                 database,
		Templates:          tmpl,
		UploadsDir:         uploadsDir,
		CookieSecure:       cfg.CookieSecure,
		MaxAvatarBytes:     cfg.AvatarMaxBytes,
	}
	if cfg.OAuth.Enabled() {
		srv.OAuth = oauth.New(cfg.OAuth)
	}

	pool.Start(ctx)

	sched := scheduler.New(ctx, sessions, m, cfg.SessionPurgeInterval)
	if err := sched.Start(); err != nil {
		log.Error("failed to start scheduler: %v", err)
		os.Exit(1)
	}

	httpServer := &http.Server{
		Addr:         cfg.Addr,
		Handler:      srv.Routes(),
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		log.Info("HTTP server listening on %s", cfg.Addr)
		if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Error("HTTP server error: %v", err)
			os.Exit(1)
		}
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)
	sig := <-stop

	log.Info("received signal %v, initiating graceful shutdown", sig)

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer shutdownCancel()

	log.Debug("shutting down HTTP server")
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		log.Error("HTTP server shutdown error: %v", err)
	}

	log.Debug("stopping scheduler")
	sched.Stop()

	log.Debug("stopping worker pool")
	pool.Stop()
	cancel()

	log.Info("===========================================")
	log.Info("BizQuest Server Stopped")
	log.Info("===========================================")
}
