package models

import "time"

type ProgressStatus string

const (
	StatusNotStarted ProgressStatus = "not_started"
	StatusInProgress ProgressStatus = "in_progress"
	StatusCompleted  ProgressStatus = "completed"
)

// Valid reports whether s is one of the three known statuses.
func (s ProgressStatus) Valid() bool {
	switch s {
	case StatusNotStarted, StatusInProgress, StatusCompleted:
		return true
	}
	return false
}

type Progress struct {
	ID           string         `json:"id"`
	UserID       string         `json:"user_id"`
	LevelID      string         `json:"level_id"`
	Status       ProgressStatus `json:"status"`
	Score        int            `json:"score"`
	Completed    bool           `json:"completed"`
	LastAccessed time.Time      `json:"last_accessed"`
	CompletedAt  *time.Time     `json:"completed_at"`
	CreatedAt    time.Time      `json:"created_at"`
	UpdatedAt    time.Time      `json:"updated_at"`
}

type Rewards struct {
	XP    int `json:"xp"`
	Coins int `json:"coins"`
}

// CompletionOutcome is what the store reports after the completion transaction.
type CompletionOutcome struct {
	Accessible      bool
	FirstCompletion bool
	Level           Level
	Progress        *Progress
	User            *User
}

// CompletionResult is the API response for status=completed.
type CompletionResult struct {
	Success         bool      `json:"success"`
	Message         string    `json:"message"`
	Rewards         *Rewards  `json:"rewards,omitempty"`
	FirstCompletion bool      `json:"first_completion"`
	UnlockedLevels  []string  `json:"unlocked_levels,omitempty"`
	Progress        *Progress `json:"progress,omitempty"`
}
