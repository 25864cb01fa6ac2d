package models

import "time"

type User struct {
	ID           string     `json:"id"`
	Email        string     `json:"email"`
	FullName     string     `json:"full_name"`
	AvatarURL    *string    `json:"avatar_url"`
	PasswordHash *string    `json:"-"`
	OAuthSubject *string    `json:"-"`
	BusinessType *string    `json:"business_type"`
	BusinessSize *string    `json:"business_size"`
	Level        int        `json:"level"`
	XP           int        `json:"xp"`
	Coins        int        `json:"coins"`
	CreatedAt    time.Time  `json:"created_at"`
	UpdatedAt    time.Time  `json:"updated_at"`
	LastLogin    *time.Time `json:"last_login"`
}

// ProfileUpdate carries optional profile edits; nil fields are left unchanged.
type ProfileUpdate struct {
	FullName     *string
	BusinessType *string
	BusinessSize *string
}

// ExternalIdentity is what an OAuth provider tells us about a user.
type ExternalIdentity struct {
	Subject           string
	Email             string
	EmailVerified     bool
	FullName          string
	Name              string
	PreferredUsername string
	AvatarURL         string
}

type Session struct {
	ID        string     `json:"id"`
	UserID    string     `json:"user_id"`
	ExpiresAt time.Time  `json:"expires_at"`
	RevokedAt *time.Time `json:"revoked_at"`
	CreatedAt time.Time  `json:"created_at"`
}

// Active reports whether the session can still authenticate requests at t.
func (s Session) Active(t time.Time) bool {
	return s.RevokedAt == nil && t.Before(s.ExpiresAt)
}
