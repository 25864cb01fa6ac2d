// Package levelview derives display attributes for a level's status.
package levelview

import "github.com/vytor/bizquest/internal/models"

const (
	IconLock = "lock"
)

// Label returns the human-readable status label.
func Label(status models.ProgressStatus) string {
	switch status {
	case models.StatusCompleted:
		return "Completed"
	case models.StatusInProgress:
		return "In Progress"
	case models.StatusNotStarted:
		return "Not Started"
	default:
		return "Unknown"
	}
}

// Color returns the color token for a status.
func Color(status models.ProgressStatus) string {
	switch status {
	case models.StatusCompleted:
		return "green"
	case models.StatusInProgress:
		return "blue"
	default:
		return "gray"
	}
}

// Icon returns the icon token for a status.
func Icon(status models.ProgressStatus) string {
	switch status {
	case models.StatusCompleted:
		return "check-circle"
	case models.StatusInProgress:
		return "clock"
	default:
		return "circle"
	}
}

// Decorate fills the view fields of every row. Any inaccessible level shows
// the lock icon, completed or not.
func Decorate(levels []models.LevelWithStatus) []models.LevelWithStatus {
	for i := range levels {
		l := &levels[i]
		l.StatusLabel = Label(l.Status)
		l.StatusColor = Color(l.Status)
		l.StatusIcon = Icon(l.Status)
		if !l.IsAccessible {
			l.StatusIcon = IconLock
		}
	}
	return levels
}
