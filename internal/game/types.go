// internal/game/types.go
//
// Core type definitions for the scramble engine.
// Defines:
//   - Phase: Playing until the countdown expires, then TimeUp.
//   - GuessResult / Action: transient outcomes of player events.
//   - Round / Session: the engine's two pieces of mutable state.
//   - State: the read-only snapshot handed to adapters.
//   - ScoreStore / Timer: injected collaborators.

package game

import "time"

// Phase is the coarse session state.
type Phase string

const (
	PhasePlaying Phase = "playing"
	PhaseTimeUp  Phase = "time_up"
)

// GuessResult is the outcome of a submitted guess. Never stored.
type GuessResult string

const (
	GuessCorrect   GuessResult = "correct"
	GuessIncorrect GuessResult = "incorrect"
)

// Action reports what the unified advance control ended up doing.
type Action string

const (
	ActionNone      Action = "none"
	ActionSubmitted Action = "submitted"
	ActionSkipped   Action = "skipped"
	ActionRevealed  Action = "revealed"
)

// Round is one word-guessing cycle.
type Round struct {
	CurrentWord  string // secret target, lowercase
	Scrambled    string // what the player sees; equals CurrentWord once revealed
	PreviousWord string // word of the round this one replaced; empty after Reset
	Revealed     bool
}

// Session is one timed play-through.
type Session struct {
	Score          int
	HighScore      int // survives Reset; loaded from and saved to the ScoreStore
	SkipsRemaining int
	Phase          Phase
	EndsAt         time.Time
}

// State is a snapshot suitable for rendering. Word is only set once the
// round has been revealed.
type State struct {
	Scrambled      string `json:"scrambled"`
	Word           string `json:"word,omitempty"`
	PreviousWord   string `json:"previousWord,omitempty"`
	Revealed       bool   `json:"revealed"`
	Score          int    `json:"score"`
	HighScore      int    `json:"highScore"`
	SkipsRemaining int    `json:"skipsRemaining"`
	Phase          Phase  `json:"phase"`
	EndsAt         int64  `json:"endsAt"` // epoch milliseconds
}

// Config holds per-session tuning.
type Config struct {
	InitialSkips int
	Duration     time.Duration
}

const (
	DefaultInitialSkips = 3
	DefaultDuration     = 30 * time.Second
)

// HighScoreKey is the only key the engine reads from or writes to its store.
const HighScoreKey = "highScore"

// ScoreStore is the persistence capability for the high score.
// Get reports ok=false when the key is absent. Errors are never fatal to the
// engine: a failed read counts as absent and a failed write is logged.
type ScoreStore interface {
	Get(key string) (value string, ok bool, err error)
	Set(key, value string) error
}

// Timer is the countdown collaborator. Schedule replaces any pending
// deadline; onExpire runs at most once per Schedule, at or after deadline,
// unless Cancel or another Schedule comes first.
type Timer interface {
	Schedule(deadline time.Time, onExpire func())
	Cancel()
}
