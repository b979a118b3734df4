package game

import (
	"math/rand/v2"

	"github.com/robalobadob/wordscramble/internal/words"
)

// scrambleAttempts bounds how many shuffles are tried before a word is
// discarded.
const scrambleAttempts = 10

// Pick is a selected word and its scrambled form.
type Pick struct {
	Word      string
	Scrambled string
}

// Sanitize prepares raw player input for comparison with the target word.
func Sanitize(raw string) string {
	return words.Normalize(raw)
}

// CanScramble reports whether word has an interior (everything but the first
// and last rune) with at least two distinct runes. Only such words can be
// shown in a form that differs from the original.
func CanScramble(word string) bool {
	r := []rune(word)
	if len(r) < 4 {
		return false
	}
	mid := r[1 : len(r)-1]
	for _, c := range mid[1:] {
		if c != mid[0] {
			return true
		}
	}
	return false
}

// Scramble applies one uniform shuffle to the interior runes of word,
// keeping the first and last rune in place. The result may equal word.
func Scramble(word string, rng *rand.Rand) string {
	r := []rune(word)
	if len(r) < 4 {
		return word
	}
	mid := r[1 : len(r)-1]
	rng.Shuffle(len(mid), func(i, j int) { mid[i], mid[j] = mid[j], mid[i] })
	return string(r)
}

// scramble returns a scrambled form of word that differs from it, or
// ok=false when word cannot be scrambled or every attempt came back unchanged.
func scramble(word string, rng *rand.Rand) (string, bool) {
	if !CanScramble(word) {
		return word, false
	}
	for range scrambleAttempts {
		if s := Scramble(word, rng); s != word {
			return s, true
		}
	}
	return word, false
}

// SelectWord draws a uniformly random word from list and scrambles it.
// Words that cannot be scrambled, or that survive every shuffle attempt
// unchanged, are discarded and another word is drawn from the ones not yet
// tried, so the search ends after at most len(list) draws.
// ErrNoPlayableWords means every word was discarded.
func SelectWord(list []string, rng *rand.Rand) (Pick, error) {
	// moved holds the swapped-out tail of a lazy Fisher–Yates over indices.
	var moved map[int]int
	at := func(i int) int {
		if v, ok := moved[i]; ok {
			return v
		}
		return i
	}

	for remaining := len(list); remaining > 0; remaining-- {
		k := rng.IntN(remaining)
		word := list[at(k)]
		if s, ok := scramble(word, rng); ok {
			return Pick{Word: word, Scrambled: s}, nil
		}
		if moved == nil {
			moved = make(map[int]int)
		}
		moved[k] = at(remaining - 1)
	}
	return Pick{}, ErrNoPlayableWords
}
