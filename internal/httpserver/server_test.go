package httpserver

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/cookiejar"
	"net/http/httptest"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/robalobadob/wordscramble/internal/config"
	"github.com/robalobadob/wordscramble/internal/db"
	"github.com/robalobadob/wordscramble/internal/game"
	"github.com/robalobadob/wordscramble/internal/store"
	"github.com/robalobadob/wordscramble/internal/words"
)

type testClock struct {
	mu sync.Mutex
	t  time.Time
}

func (c *testClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.t
}

func (c *testClock) Add(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.t = c.t.Add(d)
}

type testEnv struct {
	srv   *Server
	ts    *httptest.Server
	clock *testClock
}

func testConfig() config.Config {
	return config.Config{
		JWTSecret:      "test-secret",
		JWTExpiresDays: 1,
		CookieName:     config.DefaultCookieName,
		ClientOrigin:   "http://localhost:5173",
		DailySalt:      "test-salt",
		InitialSkips:   3,
		RoundDuration:  30 * time.Second,
		SessionTTL:     time.Hour,
	}
}

func newTestEnv(t *testing.T, mutate func(*config.Config)) *testEnv {
	t.Helper()
	cfg := testConfig()
	if mutate != nil {
		mutate(&cfg)
	}
	list, err := words.FromLines([]string{"planet", "tiger", "garden", "orange", "silver", "castle"}, words.Options{})
	if err != nil {
		t.Fatalf("word list: %v", err)
	}
	conn, err := db.Open(filepath.Join(t.TempDir(), "test.db"))
	if err != nil {
		t.Fatalf("open db: %v", err)
	}

	clock := &testClock{t: time.Now()}
	srv := New(cfg, list, store.NewMemoryStore(), conn)
	srv.now = clock.Now
	ts := httptest.NewServer(srv.Router())
	t.Cleanup(func() {
		ts.Close()
		srv.store.Sweep(context.Background(), time.Now().Add(24*time.Hour))
		conn.Close()
	})
	return &testEnv{srv: srv, ts: ts, clock: clock}
}

// client returns a cookie-keeping client, i.e. one player.
func (e *testEnv) client(t *testing.T) *http.Client {
	t.Helper()
	jar, err := cookiejar.New(nil)
	if err != nil {
		t.Fatal(err)
	}
	return &http.Client{Jar: jar}
}

func (e *testEnv) do(t *testing.T, c *http.Client, method, path string, body any) (int, map[string]any) {
	t.Helper()
	var rd io.Reader
	if body != nil {
		b, err := json.Marshal(body)
		if err != nil {
			t.Fatal(err)
		}
		rd = bytes.NewReader(b)
	}
	req, err := http.NewRequest(method, e.ts.URL+path, rd)
	if err != nil {
		t.Fatal(err)
	}
	res, err := c.Do(req)
	if err != nil {
		t.Fatalf("%s %s: %v", method, path, err)
	}
	defer res.Body.Close()
	var out map[string]any
	raw, _ := io.ReadAll(res.Body)
	if len(raw) > 0 && raw[0] == '{' {
		if err := json.Unmarshal(raw, &out); err != nil {
			t.Fatalf("decode %s: %v", raw, err)
		}
	}
	return res.StatusCode, out
}

func (e *testEnv) newGame(t *testing.T, c *http.Client, mode string) (string, map[string]any) {
	t.Helper()
	code, body := e.do(t, c, http.MethodPost, "/game/new", map[string]string{"mode": mode})
	if code != http.StatusCreated {
		t.Fatalf("new game: status %d body %v", code, body)
	}
	return body["id"].(string), body
}

// answer peeks at the secret word the way only the server can.
func (e *testEnv) answer(t *testing.T, id string) string {
	t.Helper()
	sess, err := e.srv.store.Get(context.Background(), id)
	if err != nil {
		t.Fatalf("get session: %v", err)
	}
	sess.Lock()
	defer sess.Unlock()
	return sess.Engine.Round().CurrentWord
}

func state(t *testing.T, body map[string]any) map[string]any {
	t.Helper()
	st, ok := body["state"].(map[string]any)
	if !ok {
		t.Fatalf("no state in %v", body)
	}
	return st
}

func num(v any) int {
	f, _ := v.(float64)
	return int(f)
}

func TestHealthAndNotFound(t *testing.T) {
	e := newTestEnv(t, nil)
	c := e.client(t)

	if code, body := e.do(t, c, http.MethodGet, "/health", nil); code != http.StatusOK || body["ok"] != true {
		t.Fatalf("health: %d %v", code, body)
	}
	if code, body := e.do(t, c, http.MethodGet, "/nope", nil); code != http.StatusNotFound || body["error"] != "not_found" {
		t.Fatalf("not found: %d %v", code, body)
	}
	code, body := e.do(t, c, http.MethodGet, "/debug/words", nil)
	if code != http.StatusOK || num(body["kept"]) != 6 {
		t.Fatalf("debug words: %d %v", code, body)
	}
}

func TestNewGameAndGuess(t *testing.T) {
	e := newTestEnv(t, nil)
	c := e.client(t)
	id, body := e.newGame(t, c, "")

	st := state(t, body)
	if st["phase"] != string(game.PhasePlaying) || num(st["skipsRemaining"]) != 3 || num(st["score"]) != 0 {
		t.Fatalf("initial state: %v", st)
	}
	if _, ok := st["word"]; ok {
		t.Fatalf("word leaked during play: %v", st)
	}
	if body["mode"] != "free" {
		t.Fatalf("mode = %v", body["mode"])
	}

	code, body := e.do(t, c, http.MethodPost, "/game/"+id+"/guess", map[string]string{"guess": "zzzz"})
	if code != http.StatusUnprocessableEntity || body["error"] != "incorrect_guess" {
		t.Fatalf("wrong guess: %d %v", code, body)
	}
	if num(state(t, body)["score"]) != 0 {
		t.Fatalf("wrong guess changed score: %v", body)
	}

	word := e.answer(t, id)
	code, body = e.do(t, c, http.MethodPost, "/game/"+id+"/guess", map[string]string{"guess": "  " + word + " "})
	if code != http.StatusOK || body["result"] != string(game.GuessCorrect) {
		t.Fatalf("right guess: %d %v", code, body)
	}
	st = state(t, body)
	if num(st["score"]) != 1 || num(st["highScore"]) != 1 || st["previousWord"] != word {
		t.Fatalf("after solve: %v", st)
	}

	code, body = e.do(t, c, http.MethodGet, "/game/"+id, nil)
	if code != http.StatusOK || num(state(t, body)["score"]) != 1 {
		t.Fatalf("get: %d %v", code, body)
	}
}

func TestInvalidMode(t *testing.T) {
	e := newTestEnv(t, nil)
	code, body := e.do(t, e.client(t), http.MethodPost, "/game/new", map[string]string{"mode": "blitz"})
	if code != http.StatusBadRequest || body["error"] != "invalid_mode" {
		t.Fatalf("got %d %v", code, body)
	}
}

func TestSkipBudget(t *testing.T) {
	e := newTestEnv(t, nil)
	c := e.client(t)
	id, _ := e.newGame(t, c, "free")

	for i := 3; i > 0; i-- {
		code, body := e.do(t, c, http.MethodPost, "/game/"+id+"/skip", nil)
		if code != http.StatusOK || body["skipped"] != true || num(state(t, body)["skipsRemaining"]) != i-1 {
			t.Fatalf("skip with %d left: %d %v", i, code, body)
		}
	}
	before := e.answer(t, id)
	code, body := e.do(t, c, http.MethodPost, "/game/"+id+"/skip", nil)
	if code != http.StatusOK || body["skipped"] != false || num(state(t, body)["skipsRemaining"]) != 0 {
		t.Fatalf("exhausted skip: %d %v", code, body)
	}
	if e.answer(t, id) != before {
		t.Fatal("exhausted skip changed the word")
	}
}

func TestAdvance(t *testing.T) {
	e := newTestEnv(t, nil)
	c := e.client(t)
	id, _ := e.newGame(t, c, "free")

	word := e.answer(t, id)
	code, body := e.do(t, c, http.MethodPost, "/game/"+id+"/advance", map[string]string{"input": word})
	if code != http.StatusOK || body["action"] != string(game.ActionSubmitted) || num(state(t, body)["score"]) != 1 {
		t.Fatalf("advance with answer: %d %v", code, body)
	}
	code, body = e.do(t, c, http.MethodPost, "/game/"+id+"/advance", nil)
	if code != http.StatusOK || body["action"] != string(game.ActionSkipped) || num(state(t, body)["skipsRemaining"]) != 2 {
		t.Fatalf("advance empty: %d %v", code, body)
	}
}

func TestTimeUpAndReveal(t *testing.T) {
	e := newTestEnv(t, nil)
	c := e.client(t)
	id, _ := e.newGame(t, c, "free")

	word := e.answer(t, id)
	e.do(t, c, http.MethodPost, "/game/"+id+"/guess", map[string]string{"guess": word})

	code, body := e.do(t, c, http.MethodPost, "/game/"+id+"/reveal", nil)
	if code != http.StatusOK || body["revealed"] != false {
		t.Fatalf("reveal during play: %d %v", code, body)
	}

	e.clock.Add(31 * time.Second)
	code, body = e.do(t, c, http.MethodGet, "/game/"+id, nil)
	if code != http.StatusOK || state(t, body)["phase"] != string(game.PhaseTimeUp) {
		t.Fatalf("after deadline: %d %v", code, body)
	}

	word = e.answer(t, id)
	code, body = e.do(t, c, http.MethodPost, "/game/"+id+"/guess", map[string]string{"guess": word})
	if code != http.StatusConflict || body["error"] != "time_up" {
		t.Fatalf("guess after time up: %d %v", code, body)
	}

	code, body = e.do(t, c, http.MethodPost, "/game/"+id+"/advance", nil)
	if code != http.StatusOK || body["action"] != string(game.ActionRevealed) {
		t.Fatalf("advance after time up: %d %v", code, body)
	}
	st := state(t, body)
	if st["word"] != word || st["scrambled"] != word || st["revealed"] != true {
		t.Fatalf("revealed state: %v", st)
	}
	code, body = e.do(t, c, http.MethodPost, "/game/"+id+"/reveal", nil)
	if code != http.StatusOK || body["revealed"] != false {
		t.Fatalf("second reveal: %d %v", code, body)
	}

	var score int
	var finished string
	sess, _ := e.srv.store.Get(context.Background(), id)
	if err := e.srv.db.QueryRow(`SELECT score, COALESCE(finished_at, '') FROM games WHERE id=?`, sess.PlayID).Scan(&score, &finished); err != nil {
		t.Fatalf("games row: %v", err)
	}
	if score != 1 || finished == "" {
		t.Fatalf("games row: score %d finished %q", score, finished)
	}
}

func TestCountdownExpiresSession(t *testing.T) {
	e := newTestEnv(t, func(c *config.Config) { c.RoundDuration = 20 * time.Millisecond })
	c := e.client(t)
	id, _ := e.newGame(t, c, "free")

	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		sess, err := e.srv.store.Get(context.Background(), id)
		if err != nil {
			t.Fatal(err)
		}
		sess.Lock()
		phase := sess.Engine.Session().Phase
		sess.Unlock()
		if phase == game.PhaseTimeUp {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatal("countdown never expired the session")
}

func TestResetAndDelete(t *testing.T) {
	e := newTestEnv(t, nil)
	c := e.client(t)
	id, _ := e.newGame(t, c, "free")

	word := e.answer(t, id)
	e.do(t, c, http.MethodPost, "/game/"+id+"/guess", map[string]string{"guess": word})
	e.do(t, c, http.MethodPost, "/game/"+id+"/skip", nil)
	e.clock.Add(time.Minute)

	code, body := e.do(t, c, http.MethodPost, "/game/"+id+"/reset", nil)
	if code != http.StatusOK {
		t.Fatalf("reset: %d %v", code, body)
	}
	st := state(t, body)
	if st["phase"] != string(game.PhasePlaying) || num(st["score"]) != 0 || num(st["highScore"]) != 1 ||
		num(st["skipsRemaining"]) != 3 || st["previousWord"] != "" {
		t.Fatalf("after reset: %v", st)
	}

	var n int
	e.srv.db.QueryRow(`SELECT COUNT(1) FROM games`).Scan(&n)
	if n != 2 {
		t.Fatalf("games rows = %d, want one per play-through", n)
	}

	if code, _ := e.do(t, c, http.MethodDelete, "/game/"+id, nil); code != http.StatusOK {
		t.Fatalf("delete: %d", code)
	}
	if code, _ := e.do(t, c, http.MethodGet, "/game/"+id, nil); code != http.StatusNotFound {
		t.Fatalf("get after delete: %d", code)
	}
}

func TestForeignSessionIsHidden(t *testing.T) {
	e := newTestEnv(t, nil)
	id, _ := e.newGame(t, e.client(t), "free")

	other := e.client(t)
	code, body := e.do(t, other, http.MethodGet, "/game/"+id, nil)
	if code != http.StatusNotFound || body["error"] != "game_not_found" {
		t.Fatalf("foreign get: %d %v", code, body)
	}
	if code, _ := e.do(t, other, http.MethodPost, "/game/"+id+"/skip", nil); code != http.StatusNotFound {
		t.Fatalf("foreign skip: %d", code)
	}
}

func TestHighScorePersistsAcrossGames(t *testing.T) {
	e := newTestEnv(t, nil)
	c := e.client(t)
	id, _ := e.newGame(t, c, "free")
	for range 2 {
		e.do(t, c, http.MethodPost, "/game/"+id+"/guess", map[string]string{"guess": e.answer(t, id)})
	}

	_, body := e.newGame(t, c, "free")
	if got := num(state(t, body)["highScore"]); got != 2 {
		t.Fatalf("new game high score = %d, want 2", got)
	}
	_, body = e.newGame(t, e.client(t), "free")
	if got := num(state(t, body)["highScore"]); got != 0 {
		t.Fatalf("other player's high score = %d, want 0", got)
	}
}

func TestDailyChallenge(t *testing.T) {
	e := newTestEnv(t, nil)
	alice, bob := e.client(t), e.client(t)

	idA, bodyA := e.newGame(t, alice, "daily")
	_, bodyB := e.newGame(t, bob, "daily")
	if state(t, bodyA)["scrambled"] != state(t, bodyB)["scrambled"] {
		t.Fatalf("daily players got different puzzles: %v vs %v", bodyA, bodyB)
	}
	if bodyA["date"] == "" {
		t.Fatalf("daily game without date: %v", bodyA)
	}

	if code, body := e.do(t, alice, http.MethodPost, "/game/"+idA+"/reset", nil); code != http.StatusConflict || body["error"] != "daily_no_reset" {
		t.Fatalf("daily reset: %d %v", code, body)
	}

	e.do(t, alice, http.MethodPost, "/game/"+idA+"/guess", map[string]string{"guess": e.answer(t, idA)})
	e.clock.Add(31 * time.Second)
	if _, body := e.do(t, alice, http.MethodGet, "/game/"+idA, nil); state(t, body)["phase"] != string(game.PhaseTimeUp) {
		t.Fatalf("daily not over: %v", body)
	}

	code, body := e.do(t, alice, http.MethodPost, "/game/new", map[string]string{"mode": "daily"})
	if code != http.StatusConflict || body["error"] != "already_played" {
		t.Fatalf("second daily: %d %v", code, body)
	}

	code, body = e.do(t, alice, http.MethodGet, "/daily/leaderboard?date="+bodyA["date"].(string), nil)
	if code != http.StatusOK {
		t.Fatalf("leaderboard: %d %v", code, body)
	}
	rows := body["rows"].([]any)
	if len(rows) != 1 {
		t.Fatalf("leaderboard rows = %v", rows)
	}
	row := rows[0].(map[string]any)
	if row["username"] != "guest" || num(row["score"]) != 1 {
		t.Fatalf("leaderboard row = %v", row)
	}

	if code, _ := e.do(t, alice, http.MethodGet, "/daily/leaderboard?date=yesterday", nil); code != http.StatusBadRequest {
		t.Fatalf("bad date: %d", code)
	}
}

func TestRateLimit(t *testing.T) {
	e := newTestEnv(t, func(c *config.Config) {
		c.RateLimitRPS = 1
		c.RateLimitBurst = 1
	})
	c := e.client(t)
	e.newGame(t, c, "free")
	code, body := e.do(t, c, http.MethodPost, "/game/new", nil)
	if code != http.StatusTooManyRequests || body["error"] != "rate_limited" {
		t.Fatalf("second request: %d %v", code, body)
	}
	if code, _ := e.do(t, c, http.MethodGet, "/health", nil); code != http.StatusOK {
		t.Fatalf("health is not limited: %d", code)
	}
}

func TestSweepRemovesIdleSessions(t *testing.T) {
	e := newTestEnv(t, nil)
	c := e.client(t)
	id, _ := e.newGame(t, c, "free")

	if n := e.srv.Sweep(context.Background()); n != 0 {
		t.Fatalf("swept %d fresh sessions", n)
	}
	e.clock.Add(2 * time.Hour)
	if n := e.srv.Sweep(context.Background()); n != 1 {
		t.Fatalf("swept %d, want 1", n)
	}
	if code, _ := e.do(t, c, http.MethodGet, "/game/"+id, nil); code != http.StatusNotFound {
		t.Fatalf("swept session still served: %d", code)
	}
}

func TestDailyCannotBeRestarted(t *testing.T) {
	e := newTestEnv(t, nil)
	c := e.client(t)
	id, body := e.newGame(t, c, "daily")
	date := body["date"].(string)

	// A second daily while the first is still running.
	code, body := e.do(t, c, http.MethodPost, "/game/new", map[string]string{"mode": "daily"})
	if code != http.StatusConflict || body["error"] != "already_played" {
		t.Fatalf("concurrent daily: %d %v", code, body)
	}

	// Abandoning the game does not free the day.
	if code, _ := e.do(t, c, http.MethodDelete, "/game/"+id, nil); code != http.StatusOK {
		t.Fatalf("delete: %d", code)
	}
	code, body = e.do(t, c, http.MethodPost, "/game/new", map[string]string{"mode": "daily"})
	if code != http.StatusConflict || body["error"] != "already_played" {
		t.Fatalf("daily after delete: %d %v", code, body)
	}

	// Unfinished games stay off the leaderboard.
	_, body = e.do(t, c, http.MethodGet, "/daily/leaderboard?date="+date, nil)
	if rows := body["rows"].([]any); len(rows) != 0 {
		t.Fatalf("leaderboard rows = %v, want none", rows)
	}

	// Free play is unaffected.
	e.newGame(t, c, "free")
}

func TestSweepDropsIdleRateLimiters(t *testing.T) {
	e := newTestEnv(t, func(c *config.Config) {
		c.RateLimitRPS = 100
		c.RateLimitBurst = 100
	})
	e.newGame(t, e.client(t), "free")
	if n := e.srv.limiters.len(); n != 1 {
		t.Fatalf("limiters = %d, want 1", n)
	}

	e.srv.Sweep(context.Background())
	if n := e.srv.limiters.len(); n != 1 {
		t.Fatalf("fresh limiter swept, %d left", n)
	}
	e.clock.Add(limiterIdle + time.Minute)
	e.srv.Sweep(context.Background())
	if n := e.srv.limiters.len(); n != 0 {
		t.Fatalf("limiters after sweep = %d, want 0", n)
	}
}
