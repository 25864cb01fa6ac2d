// Package catalog loads the level and achievement definitions from YAML and
// seeds them into the store.
package catalog

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/vytor/bizquest/internal/logger"
	"github.com/vytor/bizquest/internal/models"
	"github.com/vytor/bizquest/internal/progression"
	"github.com/vytor/bizquest/internal/repository"
	"github.com/vytor/bizquest/internal/services"
)

type Catalog struct {
	Levels       []LevelDef       `yaml:"levels"`
	Achievements []AchievementDef `yaml:"achievements"`
}

type LevelDef struct {
	ID            string         `yaml:"id"`
	Title         string         `yaml:"title"`
	Description   string         `yaml:"description"`
	OrderIndex    int            `yaml:"order_index"`
	ThumbnailURL  string         `yaml:"thumbnail_url"`
	XPReward      int            `yaml:"xp_reward"`
	CoinReward    int            `yaml:"coin_reward"`
	RequiredLevel int            `yaml:"required_level"`
	Active        *bool          `yaml:"active"`
	Prerequisites []string       `yaml:"prerequisites"`
	Content       map[string]any `yaml:"content"`
	Metadata      map[string]any `yaml:"metadata"`
}

type AchievementDef struct {
	ID          string            `yaml:"id"`
	Title       string            `yaml:"title"`
	Description string            `yaml:"description"`
	BadgeURL    string            `yaml:"badge_url"`
	Criteria    services.Criteria `yaml:"criteria"`
}

// Load reads and validates a catalog file.
func Load(path string) (*Catalog, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open catalog: %w", err)
	}
	defer f.Close()
	return Parse(f)
}

// Parse decodes and validates a catalog document.
func Parse(r io.Reader) (*Catalog, error) {
	var c Catalog
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)
	if err := dec.Decode(&c); err != nil && err != io.EOF {
		return nil, fmt.Errorf("decode catalog: %w", err)
	}
	if err := c.Validate(); err != nil {
		return nil, err
	}
	return &c, nil
}

// Validate checks ids, rewards, prerequisite references and the graph shape.
// Every problem is reported at once.
func (c *Catalog) Validate() error {
	var problems []string
	levelIDs := make(map[string]bool, len(c.Levels))
	for i, l := range c.Levels {
		switch {
		case l.ID == "":
			problems = append(problems, fmt.Sprintf("levels[%d]: id is required", i))
		case levelIDs[l.ID]:
			problems = append(problems, fmt.Sprintf("levels[%d]: duplicate id %q", i, l.ID))
		}
		levelIDs[l.ID] = true
		if strings.TrimSpace(l.Title) == "" {
			problems = append(problems, fmt.Sprintf("level %q: title is required", l.ID))
		}
		if l.XPReward < 0 || l.CoinReward < 0 {
			problems = append(problems, fmt.Sprintf("level %q: rewards must not be negative", l.ID))
		}
	}
	for _, l := range c.Levels {
		for _, p := range l.Prerequisites {
			if p == l.ID {
				problems = append(problems, fmt.Sprintf("level %q: cannot require itself", l.ID))
			} else if !levelIDs[p] {
				problems = append(problems, fmt.Sprintf("level %q: unknown prerequisite %q", l.ID, p))
			}
		}
	}
	if err := progression.DetectCycle(c.Edges()); err != nil {
		problems = append(problems, err.Error())
	}

	achievementIDs := make(map[string]bool, len(c.Achievements))
	for i, a := range c.Achievements {
		switch {
		case a.ID == "":
			problems = append(problems, fmt.Sprintf("achievements[%d]: id is required", i))
		case achievementIDs[a.ID]:
			problems = append(problems, fmt.Sprintf("achievements[%d]: duplicate id %q", i, a.ID))
		}
		achievementIDs[a.ID] = true
		if !a.Criteria.Known() {
			problems = append(problems, fmt.Sprintf("achievement %q: unknown criteria type %q", a.ID, a.Criteria.Type))
		} else if a.Criteria.Type == services.CriteriaLevelCompleted && !levelIDs[a.Criteria.LevelID] {
			problems = append(problems, fmt.Sprintf("achievement %q: unknown level %q", a.ID, a.Criteria.LevelID))
		}
	}

	if len(problems) > 0 {
		return fmt.Errorf("invalid catalog:\n  - %s", strings.Join(problems, "\n  - "))
	}
	return nil
}

// Edges returns the prerequisite edges declared by the catalog.
func (c *Catalog) Edges() []models.Prerequisite {
	var edges []models.Prerequisite
	for _, l := range c.Levels {
		for _, p := range l.Prerequisites {
			edges = append(edges, models.Prerequisite{LevelID: l.ID, PrerequisiteID: p})
		}
	}
	return edges
}

func toJSON(m map[string]any) (json.RawMessage, error) {
	if len(m) == 0 {
		return json.RawMessage("{}"), nil
	}
	b, err := json.Marshal(m)
	if err != nil {
		return nil, err
	}
	return b, nil
}

func optional(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}

// Models converts the level definitions to store rows.
func (c *Catalog) Models() ([]models.Level, error) {
	levels := make([]models.Level, 0, len(c.Levels))
	for _, l := range c.Levels {
		content, err := toJSON(l.Content)
		if err != nil {
			return nil, fmt.Errorf("level %q content: %w", l.ID, err)
		}
		metadata, err := toJSON(l.Metadata)
		if err != nil {
			return nil, fmt.Errorf("level %q metadata: %w", l.ID, err)
		}
		active := l.Active == nil || *l.Active
		required := l.RequiredLevel
		if required < 1 {
			required = 1
		}
		levels = append(levels, models.Level{
			ID:            l.ID,
			Title:         l.Title,
			Description:   l.Description,
			OrderIndex:    l.OrderIndex,
			ThumbnailURL:  optional(l.ThumbnailURL),
			XPReward:      l.XPReward,
			CoinReward:    l.CoinReward,
			RequiredLevel: required,
			IsActive:      active,
			Content:       content,
			Metadata:      metadata,
		})
	}
	return levels, nil
}

// Seed upserts the catalog. Levels missing from the catalog are left alone.
func Seed(ctx context.Context, c *Catalog, levels repository.LevelRepository, achievements repository.AchievementRepository) error {
	log := logger.FromContext(ctx).WithPrefix("catalog")

	rows, err := c.Models()
	if err != nil {
		return err
	}
	if err := levels.Sync(ctx, rows, c.Edges()); err != nil {
		return fmt.Errorf("sync levels: %w", err)
	}

	for _, a := range c.Achievements {
		criteria, err := json.Marshal(a.Criteria)
		if err != nil {
			return fmt.Errorf("achievement %q criteria: %w", a.ID, err)
		}
		err = achievements.Upsert(ctx, models.Achievement{
			ID:          a.ID,
			Title:       a.Title,
			Description: a.Description,
			BadgeURL:    optional(a.BadgeURL),
			Criteria:    string(criteria),
		})
		if err != nil {
			return fmt.Errorf("upsert achievement %q: %w", a.ID, err)
		}
	}

	log.Info("seeded %d levels and %d achievements", len(rows), len(c.Achievements))
	return nil
}
