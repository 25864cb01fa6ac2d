package api

import "net/http"

func (s *Server) handleListAchievements(w http.ResponseWriter, r *http.Request) {
	list, err := s.AchievementService.ListForUser(r.Context(), userIDFromContext(r.Context()))
	if err != nil {
		handleError(w, r, err)
		return
	}
	writeJSON(w, r, http.StatusOK, list)
}
