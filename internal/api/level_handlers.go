package api

import (
	"bytes"
	"net/http"
	"net/url"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/vytor/bizquest/internal/errors"
	"github.com/vytor/bizquest/internal/logger"
	"github.com/vytor/bizquest/internal/models"
	"github.com/vytor/bizquest/internal/progression"
)

type progressRequest struct {
	Status models.ProgressStatus `json:"status" validate:"required,oneof=not_started in_progress completed"`
	Score  *int                  `json:"score" validate:"omitempty,min=0"`
}

func (s *Server) handleListLevels(w http.ResponseWriter, r *http.Request) {
	levels, err := s.LevelService.ListLevels(r.Context(), userIDFromContext(r.Context()))
	if err != nil {
		handleError(w, r, err)
		return
	}
	writeJSON(w, r, http.StatusOK, levels)
}

func (s *Server) handleGetLevel(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	if id == "" {
		handleError(w, r, errors.NewBadRequestError("Level ID is required"))
		return
	}

	detail, err := s.LevelService.GetLevelDetail(r.Context(), userIDFromContext(r.Context()), id)
	if err != nil {
		handleError(w, r, err)
		return
	}
	writeJSON(w, r, http.StatusOK, detail)
}

// handleUpdateProgress answers with the raw progress row for plain status
// writes and with a CompletionResult for status=completed.
func (s *Server) handleUpdateProgress(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	userID := userIDFromContext(ctx)
	id := chi.URLParam(r, "id")
	if id == "" {
		handleError(w, r, errors.NewBadRequestError("Level ID is required"))
		return
	}

	var req progressRequest
	if err := decodeJSON(r, &req); err != nil {
		handleError(w, r, err)
		return
	}
	score := 0
	if req.Score != nil {
		score = *req.Score
	}

	if req.Status == models.StatusCompleted {
		result, err := s.ProgressService.Complete(ctx, userID, id, score)
		if err != nil {
			handleError(w, r, err)
			return
		}
		writeJSON(w, r, http.StatusOK, result)
		return
	}

	p, err := s.ProgressService.SetStatus(ctx, userID, id, req.Status, score)
	if err != nil {
		handleError(w, r, err)
		return
	}
	writeJSON(w, r, http.StatusOK, p)
}

func (s *Server) handleHome(w http.ResponseWriter, r *http.Request) {
	http.Redirect(w, r, "/levels", http.StatusSeeOther)
}

func (s *Server) handleLevelsPage(w http.ResponseWriter, r *http.Request) {
	log := logger.FromContext(r.Context())
	log.Debug("rendering levels page")

	levels, err := s.LevelService.ListLevels(r.Context(), userIDFromContext(r.Context()))
	if err != nil {
		handleError(w, r, err)
		return
	}

	completed := 0
	for _, l := range levels {
		if l.IsCompleted {
			completed++
		}
	}
	data := pageData{
		"levels":    levels,
		"completed": completed,
		"flash":     r.URL.Query().Get("flash"),
	}
	if cur, ok := progression.Current(levels); ok {
		data["current"] = cur
	}
	if next, ok := progression.Next(levels); ok {
		data["next"] = next
	}
	s.render(w, r, "pages/levels.html", data)
}

func (s *Server) handleLevelPage(w http.ResponseWriter, r *http.Request) {
	detail, err := s.LevelService.GetLevelDetail(r.Context(), userIDFromContext(r.Context()), chi.URLParam(r, "id"))
	if err != nil {
		handleError(w, r, err)
		return
	}
	s.render(w, r, "pages/level.html", pageData{
		"level": detail,
		"flash": r.URL.Query().Get("flash"),
	})
}

func (s *Server) handleStartLevelForm(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	if _, err := s.ProgressService.Start(r.Context(), userIDFromContext(r.Context()), id, 0); err != nil {
		handleError(w, r, err)
		return
	}
	http.Redirect(w, r, "/levels/"+url.PathEscape(id), http.StatusSeeOther)
}

func (s *Server) handleCompleteLevelForm(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	score := 0
	if v := r.FormValue("score"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 0 {
			handleError(w, r, errors.NewValidationError("score", "must be a non-negative number"))
			return
		}
		score = n
	}

	result, err := s.ProgressService.Complete(r.Context(), userIDFromContext(r.Context()), id, score)
	if err != nil {
		handleError(w, r, err)
		return
	}
	if !result.Success {
		http.Redirect(w, r, "/levels/"+url.PathEscape(id)+"?flash="+url.QueryEscape(result.Message), http.StatusSeeOther)
		return
	}

	flash := result.Message
	if result.FirstCompletion && result.Rewards != nil {
		flash = "Level complete! +" + strconv.Itoa(result.Rewards.XP) + " xp, +" + strconv.Itoa(result.Rewards.Coins) + " coins"
	}
	http.Redirect(w, r, "/levels?flash="+url.QueryEscape(flash), http.StatusSeeOther)
}

func (s *Server) render(w http.ResponseWriter, r *http.Request, name string, data pageData) {
	s.renderStatus(w, r, http.StatusOK, name, data)
}

func (s *Server) renderStatus(w http.ResponseWriter, r *http.Request, status int, name string, data pageData) {
	if data == nil {
		data = pageData{}
	}
	if _, ok := data["user"]; !ok {
		data["user"] = userFromContext(r.Context())
	}
	data["oauth"] = s.OAuth != nil

	var buf bytes.Buffer
	if err := s.Templates.ExecuteTemplate(&buf, name, data); err != nil {
		logger.FromContext(r.Context()).Error("failed to render template %s: %v", name, err)
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(status)
	_, _ = buf.WriteTo(w)
}
