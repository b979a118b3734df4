// assets/embed.go
//
// Embedded default word list. Used when WORDS_FILE is not configured so the
// server and the CLI always have something to play with.

package assets

import (
	"embed"
	"io"
)

//go:embed wordlist.txt
var FS embed.FS

// DefaultWordList is the name of the embedded newline-delimited word list.
const DefaultWordList = "wordlist.txt"

// Open returns a reader over the embedded default word list.
// Callers must close it.
func Open() (io.ReadCloser, error) {
	return FS.Open(DefaultWordList)
}

