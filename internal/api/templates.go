package api

import (
	"embed"
	"encoding/json"
	"html/template"
	"strings"

	"github.com/vytor/bizquest/internal/models"
)

//go:embed templates
var templateFS embed.FS

// contentSection is one block of a level's content JSON.
type contentSection struct {
	Title string `json:"title"`
	Body  string `json:"body"`
}

func LoadTemplates() (*template.Template, error) {
	funcs := template.FuncMap{
		"add": func(a, b int) int { return a + b },
		// percent returns done/total as a whole percentage.
		"percent": func(done, total int) int {
			if total <= 0 {
				return 0
			}
			return done * 100 / total
		},
		"deref": func(s *string) string {
			if s == nil {
				return ""
			}
			return *s
		},
		// sections decodes level content into displayable sections.
		"sections": func(raw json.RawMessage) []contentSection {
			var c struct {
				Sections []contentSection `json:"sections"`
			}
			if err := json.Unmarshal(raw, &c); err != nil {
				return nil
			}
			return c.Sections
		},
		"initial": func(name string) string {
			name = strings.TrimSpace(name)
			if name == "" {
				return "?"
			}
			return strings.ToUpper(name[:1])
		},
		"unlocked": func(a models.UserAchievement) bool { return a.UnlockedAt != nil },
	}

	return template.New("base").Funcs(funcs).ParseFS(templateFS,
		"templates/layouts/*.html",
		"templates/pages/*.html",
	)
}
