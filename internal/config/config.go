package config

import (
	"errors"
	"fmt"
	"log"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

type Config struct {
	Addr      string
	DBPath    string
	LogLevel  string
	LogFormat string

	SessionSecret        string
	SessionTTL           time.Duration
	SessionPurgeInterval time.Duration
	CookieSecure         bool
	RedisAddr            string

	XPPerUserLevel int
	WorkerCount    int
	QueueSize      int
	CatalogPath    string

	AvatarDir       string
	AvatarBaseURL   string
	AvatarGCSBucket string
	AvatarMaxBytes  int64

	OAuth OAuthConfig
}

// OAuthConfig describes the external identity provider used by /auth/callback.
// It is optional; an empty ClientID disables the OAuth routes.
type OAuthConfig struct {
	ClientID     string
	ClientSecret string
	AuthURL      string
	TokenURL     string
	UserInfoURL  string
	RedirectURL  string
	Scopes       []string
}

// Enabled reports whether an OAuth provider is configured.
func (o OAuthConfig) Enabled() bool {
	return o.ClientID != ""
}

const minSessionSecretLen = 32

// Load reads configuration from a .env file (if present) and environment variables,
// applying defaults when values are missing or invalid.
func Load() Config {
	// Ignore error so the app still starts when .env is absent in production.
	_ = godotenv.Load()

	return Config{
		Addr:      envOr("ADDR", ":8080"),
		DBPath:    envOr("DB_PATH", "file:bizquest.db"),
		LogLevel:  strings.ToUpper(envOr("LOG_LEVEL", "INFO")),
		LogFormat: envOr("LOG_FORMAT", "text"),

		SessionSecret:        os.Getenv("SESSION_SECRET"),
		SessionTTL:           envDurationOr("SESSION_TTL", 7*24*time.Hour),
		SessionPurgeInterval: envDurationOr("SESSION_PURGE_INTERVAL", time.Hour),
		CookieSecure:         envBoolOr("COOKIE_SECURE", false),
		RedisAddr:            os.Getenv("REDIS_ADDR"),

		XPPerUserLevel: envIntOr("XP_PER_USER_LEVEL", 500),
		WorkerCount:    envIntOr("WORKER_COUNT", 2),
		QueueSize:      envIntOr("QUEUE_SIZE", 64),
		CatalogPath:    os.Getenv("CATALOG_PATH"),

		AvatarDir:       envOr("AVATAR_DIR", "data/uploads"),
		AvatarBaseURL:   envOr("AVATAR_BASE_URL", "/uploads"),
		AvatarGCSBucket: os.Getenv("AVATAR_GCS_BUCKET"),
		AvatarMaxBytes:  int64(envIntOr("AVATAR_MAX_BYTES", 5<<20)),

		OAuth: OAuthConfig{
			ClientID:     os.Getenv("OAUTH_CLIENT_ID"),
			ClientSecret: os.Getenv("OAUTH_CLIENT_SECRET"),
			AuthURL:      os.Getenv("OAUTH_AUTH_URL"),
			TokenURL:     os.Getenv("OAUTH_TOKEN_URL"),
			UserInfoURL:  os.Getenv("OAUTH_USERINFO_URL"),
			RedirectURL:  os.Getenv("OAUTH_REDIRECT_URL"),
			Scopes:       splitList(envOr("OAUTH_SCOPES", "openid,email,profile")),
		},
	}
}

// Validate reports every configuration problem at once.
func (c Config) Validate() error {
	var errs []error

	if c.Addr == "" {
		errs = append(errs, errors.New("ADDR cannot be empty"))
	}
	if c.DBPath == "" {
		errs = append(errs, errors.New("DB_PATH cannot be empty"))
	}
	switch strings.ToUpper(c.LogLevel) {
	case "DEBUG", "INFO", "WARN", "ERROR":
	default:
		errs = append(errs, fmt.Errorf("LOG_LEVEL must be one of DEBUG, INFO, WARN, ERROR (got %q)", c.LogLevel))
	}
	if len(c.SessionSecret) < minSessionSecretLen {
		errs = append(errs, fmt.Errorf("SESSION_SECRET must be at least %d bytes", minSessionSecretLen))
	}
	if c.SessionTTL <= 0 {
		errs = append(errs, errors.New("SESSION_TTL must be positive"))
	}
	if c.SessionPurgeInterval <= 0 {
		errs = append(errs, errors.New("SESSION_PURGE_INTERVAL must be positive"))
	}
	if c.XPPerUserLevel <= 0 {
		errs = append(errs, errors.New("XP_PER_USER_LEVEL must be positive"))
	}
	if c.WorkerCount <= 0 {
		errs = append(errs, errors.New("WORKER_COUNT must be positive"))
	}
	if c.QueueSize <= 0 {
		errs = append(errs, errors.New("QUEUE_SIZE must be positive"))
	}
	if c.AvatarMaxBytes <= 0 {
		errs = append(errs, errors.New("AVATAR_MAX_BYTES must be positive"))
	}
	if c.AvatarGCSBucket == "" && c.AvatarDir == "" {
		errs = append(errs, errors.New("AVATAR_DIR cannot be empty when AVATAR_GCS_BUCKET is unset"))
	}
	if c.CatalogPath != "" {
		if _, err := os.Stat(c.CatalogPath); err != nil {
			errs = append(errs, fmt.Errorf("CATALOG_PATH %q: %v", c.CatalogPath, err))
		}
	}
	if c.OAuth.Enabled() {
		if c.OAuth.AuthURL == "" || c.OAuth.TokenURL == "" || c.OAuth.UserInfoURL == "" || c.OAuth.RedirectURL == "" {
			errs = append(errs, errors.New("OAUTH_AUTH_URL, OAUTH_TOKEN_URL, OAUTH_USERINFO_URL and OAUTH_REDIRECT_URL are required when OAUTH_CLIENT_ID is set"))
		}
	}

	return errors.Join(errs...)
}

func envOr(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func envIntOr(key string, def int) int {
	if v := os.Getenv(key); v != "" {
		if i, err := strconv.Atoi(v); err == nil {
			return i
		}
		log.Printf("invalid value for %s=%q, using default %d", key, v, def)
	}
	return def
}

func envBoolOr(key string, def bool) bool {
	if v := os.Getenv(key); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			return b
		}
		log.Printf("invalid value for %s=%q, using default %t", key, v, def)
	}
	return def
}

func envDurationOr(key string, def time.Duration) time.Duration {
	if v := os.Getenv(key); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			return d
		}
		log.Printf("invalid value for %s=%q, using default %s", key, v, def)
	}
	return def
}

func splitList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if p := strings.TrimSpace(part); p != "" {
			out = append(out, p)
		}
	}
	return out
}
