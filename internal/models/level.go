package models

import (
	"encoding/json"
	"time"
)

type Level struct {
	ID            string          `json:"id"`
	Title         string          `json:"title"`
	Description   string          `json:"description"`
	OrderIndex    int             `json:"order_index"`
	ThumbnailURL  *string         `json:"thumbnail_url"`
	XPReward      int             `json:"xp_reward"`
	CoinReward    int             `json:"coin_reward"`
	RequiredLevel int             `json:"required_level"`
	IsActive      bool            `json:"is_active"`
	Content       json.RawMessage `json:"content"`
	Metadata      json.RawMessage `json:"metadata"`
	CreatedAt     time.Time       `json:"created_at"`
	UpdatedAt     time.Time       `json:"updated_at"`
}

// Prerequisite is a directed edge: PrerequisiteID must be completed before
// LevelID becomes accessible.
type Prerequisite struct {
	LevelID        string `json:"level_id"`
	PrerequisiteID string `json:"prerequisite_id"`
}

// LevelWithStatus is one row of the level map for a given user.
type LevelWithStatus struct {
	Level
	Status           ProgressStatus `json:"status"`
	IsAccessible     bool           `json:"is_accessible"`
	IsCompleted      bool           `json:"is_completed"`
	PrerequisitesMet bool           `json:"prerequisites_met"`
	NextLevel        *string        `json:"next_level"`
	PrerequisiteIDs  []string       `json:"prerequisite_ids"`
	Score            int            `json:"score"`

	StatusLabel string `json:"statusLabel"`
	StatusColor string `json:"statusColor"`
	StatusIcon  string `json:"statusIcon"`
}

type PrerequisiteStatus struct {
	ID           string  `json:"id"`
	Title        string  `json:"title"`
	OrderIndex   int     `json:"order_index"`
	ThumbnailURL *string `json:"thumbnail_url"`
	IsCompleted  bool    `json:"is_completed"`
}

type LevelDetail struct {
	Level
	Progress      *Progress            `json:"progress"`
	IsAccessible  bool                 `json:"is_accessible"`
	Prerequisites []PrerequisiteStatus `json:"prerequisites"`
}
