// internal/httpserver/routes_daily.go
//
// HTTP routes for the "Daily Challenge" leaderboard.
//   - GET /daily/leaderboard?date=YYYY-MM-DD → top results (default: today, UTC)
//
// Daily games themselves are started through POST /game/new with
// {"mode":"daily"}; their final score is recorded when time runs out.

package httpserver

import (
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog/log"

	"github.com/robalobadob/wordscramble/internal/daily"
)

// mountDaily registers all /daily routes.
func (s *Server) mountDaily(r chi.Router) {
	r.Get("/leaderboard", s.handleLeaderboard)
}

// handleLeaderboard returns the top results for a given date (or today).
func (s *Server) handleLeaderboard(w http.ResponseWriter, r *http.Request) {
	date := r.URL.Query().Get("date")
	if date == "" {
		date = daily.DateKey(s.now())
	} else if _, err := time.Parse("2006-01-02", date); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_date")
		return
	}
	limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))
	if limit > 100 {
		limit = 100
	}

	rows, err := s.daily.Leaderboard(r.Context(), date, limit)
	if err != nil {
		log.Error().Err(err).Str("date", date).Msg("leaderboard query")
		writeError(w, http.StatusInternalServerError, "db_error")
		return
	}
	if rows == nil {
		rows = []daily.LBRow{}
	}
	writeJSON(w, http.StatusOK, map[string]any{"date": date, "rows": rows})
}
