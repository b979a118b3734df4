// Package daily provides the daily-challenge mode: a word sequence that is
// the same for every player on a given UTC date, and a per-date results table.
package daily

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/binary"
	"math/rand/v2"
	"time"
)

// DateKey returns YYYY-MM-DD in UTC.
func DateKey(t time.Time) string {
	return t.UTC().Format("2006-01-02")
}

// Seed derives two PCG seed words from HMAC-SHA256(salt, date key).
// The salt keeps the sequence unguessable from the date alone.
func Seed(date time.Time, salt string) (uint64, uint64) {
	h := hmac.New(sha256.New, []byte(salt))
	h.Write([]byte(DateKey(date)))
	sum := h.Sum(nil)
	return binary.BigEndian.Uint64(sum[:8]), binary.BigEndian.Uint64(sum[8:16])
}

// Source returns a deterministic randomness source for date.
func Source(date time.Time, salt string) rand.Source {
	hi, lo := Seed(date, salt)
	return rand.NewPCG(hi, lo)
}
