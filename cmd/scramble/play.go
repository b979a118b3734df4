package main

import (
	"bufio"
	"context"
	"database/sql"
	"errors"
	"fmt"
	"io"
	"math/rand/v2"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"github.com/robalobadob/wordscramble/internal/config"
	"github.com/robalobadob/wordscramble/internal/daily"
	"github.com/robalobadob/wordscramble/internal/db"
	"github.com/robalobadob/wordscramble/internal/game"
	"github.com/robalobadob/wordscramble/internal/store"
	"github.com/robalobadob/wordscramble/internal/timer"
	"github.com/robalobadob/wordscramble/internal/words"
)

// cliOwner is the kv owner for terminal play.
const cliOwner = "cli"

// playOptions holds the play command's flags.
type playOptions struct {
	wordsFile string
	minLen    int
	maxLen    int
	skips     int
	duration  time.Duration
	seed      uint64
	daily     bool
	salt      string
	dbPath    string
}

// NewPlayCmd creates the play command.
func NewPlayCmd() *cobra.Command {
	cfg := config.Load()
	opts := playOptions{}

	cmd := &cobra.Command{
		Use:   "play",
		Short: "Play in the terminal",
		Long: `Play in the terminal.

Type a guess and press Enter to submit it. An empty line is the advance
control: it skips the word while the clock runs and reveals it once time is up.

Commands:
  :reset   start a new session (high score is kept)
  :quit    leave the game`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runPlay(cmd.Context(), cmd.InOrStdin(), cmd.OutOrStdout(), opts)
		},
	}

	cmd.Flags().StringVarP(&opts.wordsFile, "words", "w", cfg.WordsFile, "Word list file (default: built-in list)")
	cmd.Flags().IntVar(&opts.minLen, "min-len", cfg.WordMinLen, "Shortest word to play")
	cmd.Flags().IntVar(&opts.maxLen, "max-len", cfg.WordMaxLen, "Longest word to play")
	cmd.Flags().IntVarP(&opts.skips, "skips", "s", cfg.InitialSkips, "Skips per session")
	cmd.Flags().DurationVarP(&opts.duration, "duration", "d", cfg.RoundDuration, "Session length")
	cmd.Flags().Uint64Var(&opts.seed, "seed", 0, "Fixed random seed (0 = random)")
	cmd.Flags().BoolVar(&opts.daily, "daily", false, "Play today's shared puzzle sequence")
	cmd.Flags().StringVar(&opts.salt, "salt", cfg.DailySalt, "Salt for the daily sequence")
	cmd.Flags().StringVar(&opts.dbPath, "db", "", "SQLite file to keep the high score in (default: memory only)")

	return cmd
}

// seedSource returns the source used for a fixed --seed.
func seedSource(seed uint64) rand.Source {
	return rand.NewPCG(seed, seed)
}

// terminal renders engine state. All methods run under the game lock.
type terminal struct {
	out io.Writer
	eng *game.Engine
}

func (t *terminal) status() {
	st := t.eng.State()
	left := max(time.Until(time.UnixMilli(st.EndsAt)).Round(time.Second), 0)
	if st.Phase == game.PhaseTimeUp {
		left = 0
	}
	fmt.Fprintf(t.out, "[score %d | best %d | skips %d | %s] %s\n",
		st.Score, st.HighScore, st.SkipsRemaining, left, st.Scrambled)
}

func (t *terminal) timeUp(st game.State) {
	fmt.Fprintf(t.out, "Time's up! Final score: %d (best %d). Press Enter to reveal the word.\n", st.Score, st.HighScore)
}

func runPlay(ctx context.Context, in io.Reader, out io.Writer, opts playOptions) error {
	list, err := words.Load(opts.wordsFile, words.Options{MinLen: opts.minLen, MaxLen: opts.maxLen})
	if err != nil {
		return fmt.Errorf("load word list: %w", err)
	}

	var scores game.ScoreStore = store.NewMemoryKV()
	if opts.dbPath != "" {
		var conn *sql.DB
		conn, err = db.Open(opts.dbPath)
		if err != nil {
			return fmt.Errorf("open database: %w", err)
		}
		defer conn.Close()
		scores = store.NewSQLKV(conn, cliOwner)
	}

	var mu sync.Mutex
	term := &terminal{out: out}
	gameOpts := []game.Option{
		game.WithStore(scores),
		game.WithTimer(timer.New(&mu)),
		game.WithLogger(log.Logger),
		game.WithTimeUpHook(term.timeUp),
	}
	switch {
	case opts.daily:
		gameOpts = append(gameOpts, game.WithRand(daily.Source(time.Now(), opts.salt)))
		fmt.Fprintf(out, "Daily puzzle for %s\n", daily.DateKey(time.Now()))
	case opts.seed != 0:
		gameOpts = append(gameOpts, game.WithRand(seedSource(opts.seed)))
	}

	mu.Lock()
	eng, err := game.New(list.Words(), game.Config{InitialSkips: opts.skips, Duration: opts.duration}, gameOpts...)
	if err != nil {
		mu.Unlock()
		return err
	}
	term.eng = eng
	defer eng.Stop()
	term.status()
	mu.Unlock()

	lines := bufio.NewScanner(in)
	for lines.Scan() {
		if ctx != nil && ctx.Err() != nil {
			return nil
		}
		quit, err := handleLine(term, &mu, lines.Text())
		if err != nil {
			return err
		}
		if quit {
			break
		}
	}

	mu.Lock()
	defer mu.Unlock()
	st := eng.State()
	fmt.Fprintf(out, "Bye! Score %d, best %d.\n", st.Score, st.HighScore)
	return lines.Err()
}

// handleLine applies one line of input and reports whether to quit.
func handleLine(term *terminal, mu *sync.Mutex, line string) (bool, error) {
	mu.Lock()
	defer mu.Unlock()
	eng := term.eng
	eng.ExpireIfDue()

	switch cmd := strings.TrimSpace(line); cmd {
	case ":quit", ":q":
		return true, nil
	case ":reset":
		if err := eng.Reset(); err != nil {
			return false, err
		}
		fmt.Fprintln(term.out, "New game.")
	case "":
		action, err := eng.Advance("")
		if err != nil {
			return false, err
		}
		switch action {
		case game.ActionSkipped:
			fmt.Fprintf(term.out, "Skipped. The word was %q.\n", eng.Round().PreviousWord)
		case game.ActionRevealed:
			fmt.Fprintf(term.out, "The word was %q. Type :reset to play again.\n", eng.Round().CurrentWord)
			return false, nil
		case game.ActionNone:
			if eng.Session().Phase == game.PhaseTimeUp {
				fmt.Fprintln(term.out, "Type :reset to play again.")
				return false, nil
			}
			fmt.Fprintln(term.out, "No skips left.")
		}
	default:
		_, err := eng.SubmitGuess(line)
		switch {
		case err == nil:
			fmt.Fprintln(term.out, "Correct!")
		case errors.Is(err, game.ErrIncorrectGuess):
			fmt.Fprintln(term.out, "Nope, try again.")
		case errors.Is(err, game.ErrTimeUp):
			fmt.Fprintln(term.out, "Time's up. Press Enter to reveal the word.")
			return false, nil
		default:
			return false, err
		}
	}
	term.status()
	return false, nil
}
