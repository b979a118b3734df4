// internal/words/words.go
//
// Word list loading for the scramble engine.
//
// Responsibilities:
//   - Read a newline-delimited UTF-8 list from a file (WORDS_FILE) or fall back to
//     the embedded default in the assets package.
//   - Normalise every line (NFC, lowercase, trimmed) and drop blanks, comments
//     and duplicates.
//   - Keep only words whose rune length is within [MinLen, MaxLen].
//
// The resulting List is immutable; callers get copies of its contents.
// An empty result is a configuration error reported at load time.

package words

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"
	"unicode"
	"unicode/utf8"

	"github.com/samber/lo"
	"golang.org/x/text/unicode/norm"

	"github.com/robalobadob/wordscramble/assets"
)

// Length bounds applied when Options leaves them zero.
// Words of three runes or fewer have no interior worth shuffling.
const (
	DefaultMinLen = 4
	DefaultMaxLen = 10
)

// ErrEmptyList is returned when no word survives filtering.
var ErrEmptyList = errors.New("words: list is empty")

// Options controls length filtering. Bounds are inclusive and counted in runes.
type Options struct {
	MinLen int
	MaxLen int
}

func (o Options) withDefaults() Options {
	if o.MinLen <= 0 {
		o.MinLen = DefaultMinLen
	}
	if o.MaxLen <= 0 {
		o.MaxLen = DefaultMaxLen
	}
	return o
}

// List is an ordered, immutable, filtered word list.
type List struct {
	words []string
	read  int // non-blank, non-comment lines seen before filtering
}

// Load reads the list at path, or the embedded default when path is empty.
func Load(path string, opts Options) (*List, error) {
	if path == "" {
		f, err := assets.Open()
		if err != nil {
			return nil, fmt.Errorf("words: open embedded list: %w", err)
		}
		defer f.Close()
		return Parse(f, opts)
	}
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("words: open %s: %w", path, err)
	}
	defer f.Close()
	return Parse(f, opts)
}

// Parse reads one word per line from r and applies the length filter.
func Parse(r io.Reader, opts Options) (*List, error) {
	var lines []string
	sc := bufio.NewScanner(r)
	for sc.Scan() {
		lines = append(lines, sc.Text())
	}
	if err := sc.Err(); err != nil {
		return nil, fmt.Errorf("words: read: %w", err)
	}
	return FromLines(lines, opts)
}

// FromLines builds a List from raw lines.
func FromLines(lines []string, opts Options) (*List, error) {
	opts = opts.withDefaults()
	if opts.MinLen > opts.MaxLen {
		return nil, fmt.Errorf("words: min length %d exceeds max length %d", opts.MinLen, opts.MaxLen)
	}

	read := 0
	kept := lo.FilterMap(lines, func(line string, _ int) (string, bool) {
		w := Normalize(line)
		if w == "" || strings.HasPrefix(w, "#") {
			return "", false
		}
		read++
		if strings.ContainsFunc(w, unicode.IsSpace) {
			return "", false
		}
		n := utf8.RuneCountInString(w)
		return w, n >= opts.MinLen && n <= opts.MaxLen
	})
	kept = lo.Uniq(kept)

	if len(kept) == 0 {
		return nil, ErrEmptyList
	}
	return &List{words: kept, read: read}, nil
}

// Normalize applies NFC normalisation, lowercases and trims s.
// Guesses and list entries go through the same function so they compare equal.
func Normalize(s string) string {
	return strings.TrimSpace(strings.ToLower(norm.NFC.String(s)))
}

// Len reports the number of words in the list.
func (l *List) Len() int { return len(l.words) }

// Words returns a copy of the words in list order.
func (l *List) Words() []string {
	return append([]string(nil), l.words...)
}

// Stats returns (lines read, words kept).
func (l *List) Stats() (read int, kept int) {
	return l.read, len(l.words)
}
