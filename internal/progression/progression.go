// Package progression holds the level progress rules: which levels a user
// may enter, how statuses move, what a completion unlocks, and how xp maps
// to a coarse user level. It is pure; callers supply the data.
package progression

import (
	"fmt"
	"sort"

	"github.com/vytor/bizquest/internal/models"
)

// CompletedSet is the set of level ids a user has completed.
type CompletedSet map[string]bool

// CompletedFrom builds a CompletedSet from progress rows.
func CompletedFrom(rows []models.Progress) CompletedSet {
	set := make(CompletedSet, len(rows))
	for _, p := range rows {
		if p.Status == models.StatusCompleted {
			set[p.LevelID] = true
		}
	}
	return set
}

// IsAccessible reports whether every prerequisite is in completed.
// A level without prerequisites is always accessible.
func IsAccessible(prerequisiteIDs []string, completed CompletedSet) bool {
	for _, id := range prerequisiteIDs {
		if !completed[id] {
			return false
		}
	}
	return true
}

// PrerequisiteMap groups prerequisite edges by the dependent level.
func PrerequisiteMap(edges []models.Prerequisite) map[string][]string {
	m := make(map[string][]string)
	for _, e := range edges {
		m[e.LevelID] = append(m[e.LevelID], e.PrerequisiteID)
	}
	for _, ids := range m {
		sort.Strings(ids)
	}
	return m
}

// StatusFor returns the effective status of a level given the user's row, if any.
func StatusFor(p *models.Progress) models.ProgressStatus {
	if p == nil || !p.Status.Valid() {
		return models.StatusNotStarted
	}
	return p.Status
}

// NextStatus applies a plain (non-completion) status write to the current
// status. A completed level never moves back; only re-completion touches it.
func NextStatus(current, requested models.ProgressStatus) models.ProgressStatus {
	if current == models.StatusCompleted {
		return models.StatusCompleted
	}
	return requested
}

// SortByOrder sorts levels by order_index, breaking ties by id.
func SortByOrder(levels []models.Level) {
	sort.SliceStable(levels, func(i, j int) bool {
		if levels[i].OrderIndex != levels[j].OrderIndex {
			return levels[i].OrderIndex < levels[j].OrderIndex
		}
		return levels[i].ID < levels[j].ID
	})
}

// BuildStatuses computes the per-user level map. levels must already be the
// active set; the result follows order_index.
func BuildStatuses(levels []models.Level, edges []models.Prerequisite, progress []models.Progress) []models.LevelWithStatus {
	sorted := make([]models.Level, len(levels))
	copy(sorted, levels)
	SortByOrder(sorted)

	prereqs := PrerequisiteMap(edges)
	completed := CompletedFrom(progress)
	byLevel := make(map[string]*models.Progress, len(progress))
	for i := range progress {
		byLevel[progress[i].LevelID] = &progress[i]
	}

	out := make([]models.LevelWithStatus, 0, len(sorted))
	for i, lvl := range sorted {
		row := byLevel[lvl.ID]
		status := StatusFor(row)
		ids := prereqs[lvl.ID]
		if ids == nil {
			ids = []string{}
		}
		accessible := IsAccessible(ids, completed)

		item := models.LevelWithStatus{
			Level:            lvl,
			Status:           status,
			IsAccessible:     accessible,
			IsCompleted:      status == models.StatusCompleted,
			PrerequisitesMet: accessible,
			PrerequisiteIDs:  ids,
		}
		if row != nil {
			item.Score = row.Score
		}
		if i+1 < len(sorted) {
			next := sorted[i+1].ID
			item.NextLevel = &next
		}
		out = append(out, item)
	}
	return out
}

// Current returns the first level in order that is accessible and not completed.
func Current(levels []models.LevelWithStatus) (*models.LevelWithStatus, bool) {
	for i := range levels {
		if levels[i].IsAccessible && !levels[i].IsCompleted {
			return &levels[i], true
		}
	}
	return nil, false
}

// Unlockable returns the ids of levels that are locked now and whose
// prerequisites are all satisfied once completedID is also completed.
// Results follow the input order.
func Unlockable(levels []models.LevelWithStatus, completedID string) []string {
	completed := CompletedSet{completedID: true}
	for _, l := range levels {
		if l.IsCompleted {
			completed[l.ID] = true
		}
	}

	var out []string
	for _, l := range levels {
		if l.IsAccessible || l.IsCompleted || l.ID == completedID {
			continue
		}
		if !contains(l.PrerequisiteIDs, completedID) {
			continue
		}
		if IsAccessible(l.PrerequisiteIDs, completed) {
			out = append(out, l.ID)
		}
	}
	return out
}

// Next returns the first level unlocked by completing the current level.
func Next(levels []models.LevelWithStatus) (*models.LevelWithStatus, bool) {
	cur, ok := Current(levels)
	if !ok {
		return nil, false
	}
	ids := Unlockable(levels, cur.ID)
	if len(ids) == 0 {
		return nil, false
	}
	for i := range levels {
		if levels[i].ID == ids[0] {
			return &levels[i], true
		}
	}
	return nil, false
}

// UserLevelForXP maps accumulated xp to the coarse user level (1-based).
func UserLevelForXP(xp, xpPerLevel int) int {
	if xpPerLevel <= 0 || xp < 0 {
		return 1
	}
	return 1 + xp/xpPerLevel
}

// DetectCycle returns an error naming a level on a prerequisite cycle, if any.
func DetectCycle(edges []models.Prerequisite) error {
	graph := PrerequisiteMap(edges)
	const (
		visiting = iota + 1
		done
	)
	state := make(map[string]int)

	var visit func(id string, path []string) error
	visit = func(id string, path []string) error {
		switch state[id] {
		case visiting:
			return fmt.Errorf("prerequisite cycle: %v", append(path, id))
		case done:
			return nil
		}
		state[id] = visiting
		for _, dep := range graph[id] {
			if err := visit(dep, append(path, id)); err != nil {
				return err
			}
		}
		state[id] = done
		return nil
	}

	ids := make([]string, 0, len(graph))
	for id := range graph {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	for _, id := range ids {
		if err := visit(id, nil); err != nil {
			return err
		}
	}
	return nil
}

func contains(ids []string, id string) bool {
	for _, v := range ids {
		if v == id {
			return true
		}
	}
	return false
}
