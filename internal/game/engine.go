// internal/game/engine.go
//
// Core game engine for a single scramble session.
// Responsibilities:
//   - Pick and scramble words from an immutable list.
//   - Validate guesses, keep score and the persisted high score.
//   - Track the skip budget and the Playing → TimeUp transition.
//   - Reveal the answer once time is up.
//
// Notes:
//   - The engine is single-threaded and holds no locks; adapters serialise
//     events (including timer callbacks) before calling in.
//   - Randomness, time, persistence and the countdown are all injected so
//     tests can drive the engine deterministically.
package game

import (
	"errors"
	"math/rand/v2"
	"strconv"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"github.com/samber/lo"
)

var (
	// ErrIncorrectGuess is a recoverable validation failure: nothing changed.
	ErrIncorrectGuess = errors.New("game: incorrect guess")
	// ErrTimeUp rejects guesses once the countdown has expired.
	ErrTimeUp = errors.New("game: time is up")
	// ErrNoPlayableWords means the word list has no word that can be scrambled.
	ErrNoPlayableWords = errors.New("game: no playable words")
)

// Engine is the scramble state machine.
type Engine struct {
	words []string
	cfg   Config

	rng      *rand.Rand
	now      func() time.Time
	store    ScoreStore
	timer    Timer
	log      zerolog.Logger
	onTimeUp func(State)

	round   Round
	session Session
}

// Option configures an Engine.
type Option func(*Engine)

// WithRand sets the randomness source for selection and scrambling.
func WithRand(src rand.Source) Option {
	return func(e *Engine) { e.rng = rand.New(src) }
}

// WithClock overrides time.Now.
func WithClock(now func() time.Time) Option {
	return func(e *Engine) { e.now = now }
}

// WithStore sets the high-score store.
func WithStore(s ScoreStore) Option {
	return func(e *Engine) { e.store = s }
}

// WithTimer sets the countdown collaborator. Without one, the owner must call
// Expire (or ExpireIfDue) itself.
func WithTimer(t Timer) Option {
	return func(e *Engine) { e.timer = t }
}

// WithLogger sets the engine logger.
func WithLogger(l zerolog.Logger) Option {
	return func(e *Engine) { e.log = l }
}

// WithTimeUpHook registers fn to run once each time the session enters TimeUp.
func WithTimeUpHook(fn func(State)) Option {
	return func(e *Engine) { e.onTimeUp = fn }
}

// New builds an engine over list and starts the first session.
// It fails with ErrNoPlayableWords when no word in list can be scrambled.
func New(list []string, cfg Config, opts ...Option) (*Engine, error) {
	normalized := lo.Uniq(lo.Map(list, func(w string, _ int) string { return Sanitize(w) }))
	if !lo.SomeBy(normalized, CanScramble) {
		return nil, ErrNoPlayableWords
	}
	if cfg.InitialSkips < 0 {
		cfg.InitialSkips = 0
	}
	if cfg.Duration <= 0 {
		cfg.Duration = DefaultDuration
	}

	e := &Engine{
		words: normalized,
		cfg:   cfg,
		rng:   rand.New(rand.NewPCG(rand.Uint64(), rand.Uint64())),
		now:   time.Now,
		log:   zerolog.Nop(),
	}
	for _, opt := range opts {
		opt(e)
	}

	e.session.HighScore = e.loadHighScore()
	if err := e.Reset(); err != nil {
		return nil, err
	}
	return e, nil
}

// Reset starts a new session: score zeroed, skips restored, countdown
// restarted, fresh round with no previous word. The high score is kept.
func (e *Engine) Reset() error {
	pick, err := SelectWord(e.words, e.rng)
	if err != nil {
		return err
	}
	e.session.Score = 0
	e.session.SkipsRemaining = e.cfg.InitialSkips
	e.session.Phase = PhasePlaying
	e.session.EndsAt = e.now().Add(e.cfg.Duration)
	e.round = Round{CurrentWord: pick.Word, Scrambled: pick.Scrambled}

	if e.timer != nil {
		e.timer.Schedule(e.session.EndsAt, func() { e.Expire() })
	}
	e.log.Debug().
		Time("endsAt", e.session.EndsAt).
		Int("skips", e.session.SkipsRemaining).
		Msg("session reset")
	return nil
}

// advanceRound replaces the current round, remembering its word.
func (e *Engine) advanceRound() error {
	pick, err := SelectWord(e.words, e.rng)
	if err != nil {
		return err
	}
	e.round = Round{
		CurrentWord:  pick.Word,
		Scrambled:    pick.Scrambled,
		PreviousWord: e.round.CurrentWord,
	}
	return nil
}

// SubmitGuess checks raw against the current word.
// Correct guesses score a point and advance the round. Incorrect guesses
// return ErrIncorrectGuess; guesses after time-up return ErrTimeUp. Neither
// changes any state.
func (e *Engine) SubmitGuess(raw string) (GuessResult, error) {
	if e.session.Phase != PhasePlaying {
		return GuessIncorrect, ErrTimeUp
	}
	if Sanitize(raw) != e.round.CurrentWord {
		return GuessIncorrect, ErrIncorrectGuess
	}
	if err := e.solve(); err != nil {
		return GuessIncorrect, err
	}
	return GuessCorrect, nil
}

func (e *Engine) solve() error {
	solved := e.round.CurrentWord
	if err := e.advanceRound(); err != nil {
		return err
	}
	e.session.Score++
	e.session.HighScore = max(e.session.HighScore, e.session.Score)
	e.saveHighScore()
	e.log.Debug().Str("word", solved).Int("score", e.session.Score).Msg("solved")
	return nil
}

// Skip spends one skip on a new round. It is a silent no-op (false) when the
// budget is exhausted or time is up.
func (e *Engine) Skip() (bool, error) {
	if e.session.Phase != PhasePlaying || e.session.SkipsRemaining <= 0 {
		return false, nil
	}
	skipped := e.round.CurrentWord
	if err := e.advanceRound(); err != nil {
		return false, err
	}
	e.session.SkipsRemaining = max(e.session.SkipsRemaining-1, 0)
	e.log.Debug().Str("word", skipped).Int("skips", e.session.SkipsRemaining).Msg("skipped")
	return true, nil
}

// Expire moves the session to TimeUp. Repeated calls are no-ops (false).
func (e *Engine) Expire() bool {
	if e.session.Phase == PhaseTimeUp {
		return false
	}
	e.session.Phase = PhaseTimeUp
	e.log.Debug().Int("score", e.session.Score).Msg("time up")
	if e.onTimeUp != nil {
		e.onTimeUp(e.State())
	}
	return true
}

// ExpireIfDue expires the session when its deadline has passed according to
// the engine clock. Useful for adapters that cannot rely on timer delivery.
func (e *Engine) ExpireIfDue() bool {
	if e.session.Phase != PhasePlaying || e.now().Before(e.session.EndsAt) {
		return false
	}
	return e.Expire()
}

// Reveal shows the current word after time is up. It only acts once per
// round and never during play.
func (e *Engine) Reveal() bool {
	if e.session.Phase != PhaseTimeUp || e.round.Revealed {
		return false
	}
	e.round.Revealed = true
	e.round.Scrambled = e.round.CurrentWord
	e.log.Debug().Str("word", e.round.CurrentWord).Msg("revealed")
	return true
}

// Advance is the single "space" control. Input the player has typed but not
// submitted wins first: if it already matches the word it counts as a correct
// guess. Otherwise it reveals after time-up and skips during play.
func (e *Engine) Advance(input string) (Action, error) {
	if e.session.Phase == PhasePlaying && Sanitize(input) == e.round.CurrentWord {
		if err := e.solve(); err != nil {
			return ActionNone, err
		}
		return ActionSubmitted, nil
	}
	if e.session.Phase == PhaseTimeUp {
		if e.Reveal() {
			return ActionRevealed, nil
		}
		return ActionNone, nil
	}
	ok, err := e.Skip()
	if err != nil || !ok {
		return ActionNone, err
	}
	return ActionSkipped, nil
}

// Stop cancels the pending countdown, if any.
func (e *Engine) Stop() {
	if e.timer != nil {
		e.timer.Cancel()
	}
}

// State returns a render-ready snapshot.
func (e *Engine) State() State {
	st := State{
		Scrambled:      e.round.Scrambled,
		PreviousWord:   e.round.PreviousWord,
		Revealed:       e.round.Revealed,
		Score:          e.session.Score,
		HighScore:      e.session.HighScore,
		SkipsRemaining: e.session.SkipsRemaining,
		Phase:          e.session.Phase,
		EndsAt:         e.session.EndsAt.UnixMilli(),
	}
	if e.round.Revealed {
		st.Word = e.round.CurrentWord
	}
	return st
}

// Round returns a copy of the current round, including the secret word.
func (e *Engine) Round() Round { return e.round }

// Session returns a copy of the session counters.
func (e *Engine) Session() Session { return e.session }

// Config returns the effective configuration.
func (e *Engine) Config() Config { return e.cfg }

// loadHighScore reads the persisted high score; anything unusable is 0.
func (e *Engine) loadHighScore() int {
	if e.store == nil {
		return 0
	}
	v, ok, err := e.store.Get(HighScoreKey)
	if err != nil {
		e.log.Warn().Err(err).Msg("read high score")
		return 0
	}
	if !ok {
		return 0
	}
	n, err := strconv.Atoi(strings.TrimSpace(v))
	if err != nil || n < 0 {
		e.log.Debug().Str("value", v).Msg("ignoring unparseable high score")
		return 0
	}
	return n
}

// saveHighScore writes the in-memory high score, which stays authoritative.
func (e *Engine) saveHighScore() {
	if e.store == nil {
		return
	}
	if err := e.store.Set(HighScoreKey, strconv.Itoa(e.session.HighScore)); err != nil {
		e.log.Warn().Err(err).Msg("write high score")
	}
}
