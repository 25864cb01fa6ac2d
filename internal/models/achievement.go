package models

import "time"

type Achievement struct {
	ID          string    `json:"id" db:"id"`
	Title       string    `json:"title" db:"title"`
	Description string    `json:"description" db:"description"`
	BadgeURL    *string   `json:"badge_url" db:"badge_url"`
	Criteria    string    `json:"criteria" db:"criteria"`
	CreatedAt   time.Time `json:"created_at" db:"created_at"`
	UpdatedAt   time.Time `json:"updated_at" db:"updated_at"`
}

// UserAchievement is an achievement definition joined with the user's unlock time.
type UserAchievement struct {
	Achievement
	UnlockedAt *time.Time `json:"unlocked_at" db:"unlocked_at"`
}

// AchievementStats is the user state achievement criteria are evaluated against.
type AchievementStats struct {
	XP              int
	Coins           int
	LevelsCompleted int
	CompletedLevels map[string]bool
}
