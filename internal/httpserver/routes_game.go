// internal/httpserver/routes_game.go
//
// HTTP routes for scramble sessions. Mounted under /game:
//   - POST   /game/new          → start a session ({"mode":"free"|"daily"})
//   - GET    /game/{id}         → current state
//   - DELETE /game/{id}         → abandon the session
//   - POST   /game/{id}/guess   → {"guess":"..."}
//   - POST   /game/{id}/skip    → spend a skip
//   - POST   /game/{id}/advance → {"input":"..."}; submit, skip or reveal
//   - POST   /game/{id}/reveal  → show the word after time is up
//   - POST   /game/{id}/reset   → new session, same high score (free play only)
//
// Every event for a session runs under the session lock, the same lock the
// countdown callback takes, so the engine never sees concurrent calls.

package httpserver

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"github.com/robalobadob/wordscramble/internal/daily"
	"github.com/robalobadob/wordscramble/internal/game"
	"github.com/robalobadob/wordscramble/internal/store"
	"github.com/robalobadob/wordscramble/internal/timer"
)

const (
	modeFree  = "free"
	modeDaily = "daily"

	// tsLayout sorts lexically in the games table.
	tsLayout = "2006-01-02T15:04:05.000Z"

	finishTimeout = 2 * time.Second
)

// gameRes is the common response body for session endpoints.
type gameRes struct {
	ID    string     `json:"id"`
	Mode  string     `json:"mode"`
	Date  string     `json:"date,omitempty"`
	State game.State `json:"state"`

	Result   game.GuessResult `json:"result,omitempty"`
	Action   game.Action      `json:"action,omitempty"`
	Skipped  *bool            `json:"skipped,omitempty"`
	Revealed *bool            `json:"revealed,omitempty"`
}

// mountGame registers all /game routes.
func (s *Server) mountGame(r chi.Router) {
	r.Post("/new", s.handleNewGame)
	r.Route("/{id}", func(r chi.Router) {
		r.Get("/", s.withSession(func(w http.ResponseWriter, r *http.Request, sess *store.Session) {
			writeJSON(w, http.StatusOK, s.response(sess))
		}))
		r.Delete("/", s.handleDeleteGame)
		r.Post("/guess", s.withSession(s.handleGuess))
		r.Post("/skip", s.withSession(s.handleSkip))
		r.Post("/advance", s.withSession(s.handleAdvance))
		r.Post("/reveal", s.withSession(s.handleReveal))
		r.Post("/reset", s.withSession(s.handleReset))
	})
}

// handleNewGame builds an engine for the caller and registers the session.
// Daily sessions draw from a date-seeded source and may be started once per
// owner and date.
func (s *Server) handleNewGame(w http.ResponseWriter, r *http.Request) {
	var body struct {
		Mode string `json:"mode"`
	}
	if err := decode(r, &body); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_json")
		return
	}
	if body.Mode == "" {
		body.Mode = modeFree
	}
	if body.Mode != modeFree && body.Mode != modeDaily {
		writeError(w, http.StatusBadRequest, "invalid_mode")
		return
	}

	owner := s.ownerID(w, r)
	now := s.now()
	sess := &store.Session{
		ID:        uuid.NewString(),
		PlayID:    uuid.NewString(),
		OwnerID:   owner,
		Mode:      body.Mode,
		CreatedAt: now,
		LastSeen:  now,
	}

	opts := []game.Option{
		game.WithClock(s.now),
		game.WithStore(store.NewSQLKV(s.db, owner)),
		game.WithTimer(timer.New(sess)),
		game.WithLogger(log.With().Str("gameId", sess.ID).Str("mode", sess.Mode).Logger()),
		game.WithTimeUpHook(func(st game.State) { s.recordFinish(sess, st) }),
	}
	if sess.Mode == modeDaily {
		sess.Date = daily.DateKey(now)
		opts = append(opts, game.WithRand(daily.Source(now, s.cfg.DailySalt)))
	}

	// Hold the session lock so an early countdown cannot observe a
	// half-built session.
	sess.Lock()
	eng, err := game.New(s.words.Words(), s.cfg.GameConfig(), opts...)
	if err != nil {
		sess.Unlock()
		log.Error().Err(err).Msg("create engine")
		writeError(w, http.StatusInternalServerError, "no_playable_words")
		return
	}
	sess.Engine = eng
	if sess.Mode == modeDaily {
		// The claim is made before the first word is shown; deleting the game
		// or starting a second one the same day does not free it.
		claimed, err := s.daily.Claim(r.Context(), owner, sess.Date)
		if err != nil || !claimed {
			eng.Stop()
			sess.Unlock()
			if err != nil {
				log.Error().Err(err).Msg("daily claim")
				writeError(w, http.StatusInternalServerError, "db_error")
				return
			}
			writeJSON(w, http.StatusConflict, map[string]string{"error": "already_played", "date": sess.Date})
			return
		}
	}
	s.insertPlay(r.Context(), sess)
	res := s.response(sess)
	sess.Unlock()

	if err := s.store.Save(r.Context(), sess); err != nil {
		eng.Stop()
		writeError(w, http.StatusInternalServerError, "store_error")
		return
	}
	log.Info().Str("gameId", sess.ID).Str("mode", sess.Mode).Msg("game started")
	writeJSON(w, http.StatusCreated, res)
}

func (s *Server) handleDeleteGame(w http.ResponseWriter, r *http.Request) {
	sess, ok := s.lookup(w, r)
	if !ok {
		return
	}
	if err := s.store.Delete(r.Context(), sess.ID); err != nil && !errors.Is(err, store.ErrNotFound) {
		writeError(w, http.StatusInternalServerError, "store_error")
		return
	}
	writeJSON(w, http.StatusOK, map[string]bool{"ok": true})
}

func (s *Server) handleGuess(w http.ResponseWriter, r *http.Request, sess *store.Session) {
	var body struct {
		Guess string `json:"guess"`
	}
	if err := decode(r, &body); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_json")
		return
	}
	result, err := sess.Engine.SubmitGuess(body.Guess)
	res := s.response(sess)
	res.Result = result
	switch {
	case errors.Is(err, game.ErrIncorrectGuess):
		writeJSON(w, http.StatusUnprocessableEntity, errorRes{Error: "incorrect_guess", gameRes: res})
	case errors.Is(err, game.ErrTimeUp):
		writeJSON(w, http.StatusConflict, errorRes{Error: "time_up", gameRes: res})
	case err != nil:
		s.engineError(w, err)
	default:
		writeJSON(w, http.StatusOK, res)
	}
}

func (s *Server) handleSkip(w http.ResponseWriter, r *http.Request, sess *store.Session) {
	ok, err := sess.Engine.Skip()
	if err != nil {
		s.engineError(w, err)
		return
	}
	res := s.response(sess)
	res.Skipped = &ok
	writeJSON(w, http.StatusOK, res)
}

func (s *Server) handleAdvance(w http.ResponseWriter, r *http.Request, sess *store.Session) {
	var body struct {
		Input string `json:"input"`
	}
	if err := decode(r, &body); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_json")
		return
	}
	action, err := sess.Engine.Advance(body.Input)
	if err != nil {
		s.engineError(w, err)
		return
	}
	res := s.response(sess)
	res.Action = action
	writeJSON(w, http.StatusOK, res)
}

func (s *Server) handleReveal(w http.ResponseWriter, r *http.Request, sess *store.Session) {
	ok := sess.Engine.Reveal()
	res := s.response(sess)
	res.Revealed = &ok
	writeJSON(w, http.StatusOK, res)
}

func (s *Server) handleReset(w http.ResponseWriter, r *http.Request, sess *store.Session) {
	if sess.Mode == modeDaily {
		writeError(w, http.StatusConflict, "daily_no_reset")
		return
	}
	if err := sess.Engine.Reset(); err != nil {
		s.engineError(w, err)
		return
	}
	sess.PlayID = uuid.NewString()
	s.insertPlay(r.Context(), sess)
	writeJSON(w, http.StatusOK, s.response(sess))
}

// ------------------------------ helpers ------------------------------------

// errorRes is a game response carrying an error code.
type errorRes struct {
	Error string `json:"error"`
	gameRes
}

// lookup finds the session named in the URL and checks the caller owns it.
// Unknown and foreign sessions both answer 404.
func (s *Server) lookup(w http.ResponseWriter, r *http.Request) (*store.Session, bool) {
	sess, err := s.store.Get(r.Context(), chi.URLParam(r, "id"))
	if err != nil || !s.owns(r, sess) {
		writeError(w, http.StatusNotFound, "game_not_found")
		return nil, false
	}
	return sess, true
}

// owns matches the logged-in user or the guest cookie, so a guest game
// survives logging in mid-session.
func (s *Server) owns(r *http.Request, sess *store.Session) bool {
	if me := userFrom(r.Context()); me != nil && me.ID == sess.OwnerID {
		return true
	}
	c, err := r.Cookie(anonCookieName)
	return err == nil && c.Value != "" && c.Value == sess.OwnerID
}

// withSession runs fn with the session locked, after applying any deadline
// the countdown has not delivered yet.
func (s *Server) withSession(fn func(http.ResponseWriter, *http.Request, *store.Session)) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		sess, ok := s.lookup(w, r)
		if !ok {
			return
		}
		sess.Lock()
		defer sess.Unlock()
		if sess.Engine == nil {
			writeError(w, http.StatusNotFound, "game_not_found")
			return
		}
		sess.Touch(s.now())
		sess.Engine.ExpireIfDue()
		fn(w, r, sess)
	}
}

// response snapshots sess. Call with the session locked.
func (s *Server) response(sess *store.Session) gameRes {
	return gameRes{ID: sess.ID, Mode: sess.Mode, Date: sess.Date, State: sess.Engine.State()}
}

func (s *Server) engineError(w http.ResponseWriter, err error) {
	log.Error().Err(err).Msg("engine event")
	writeError(w, http.StatusInternalServerError, "engine_error")
}

// insertPlay records the start of a play-through. Call with the session locked.
func (s *Server) insertPlay(ctx context.Context, sess *store.Session) {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO games (id, owner_id, mode, started_at) VALUES (?,?,?,?)`,
		sess.PlayID, sess.OwnerID, sess.Mode, s.now().UTC().Format(tsLayout))
	if err != nil {
		log.Warn().Err(err).Str("gameId", sess.ID).Msg("insert game row")
	}
}

// recordFinish is the engine's time-up hook. It runs with the session
// locked, either from the countdown or from a request that noticed the
// deadline first.
func (s *Server) recordFinish(sess *store.Session, st game.State) {
	ctx, cancel := context.WithTimeout(context.Background(), finishTimeout)
	defer cancel()

	l := log.With().Str("gameId", sess.ID).Int("score", st.Score).Logger()
	if _, err := s.db.ExecContext(ctx,
		`UPDATE games SET finished_at=?, score=? WHERE id=?`,
		s.now().UTC().Format(tsLayout), st.Score, sess.PlayID); err != nil {
		l.Warn().Err(err).Msg("finish game row")
	}
	// Guests have no users row; the update simply matches nothing.
	if err := s.bumpStats(ctx, sess.OwnerID, st.Score); err != nil {
		l.Warn().Err(err).Msg("update user stats")
	}
	if sess.Mode == modeDaily {
		if err := s.daily.Finish(ctx, daily.Result{OwnerID: sess.OwnerID, Date: sess.Date, Score: st.Score}); err != nil {
			l.Warn().Err(err).Msg("finish daily result")
		}
	}
	l.Info().Msg("game finished")
}

// decode reads a JSON body; an empty body leaves v untouched.
func decode(r *http.Request, v any) error {
	err := json.NewDecoder(io.LimitReader(r.Body, 1<<16)).Decode(v)
	if errors.Is(err, io.EOF) {
		return nil
	}
	return err
}
