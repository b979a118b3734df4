// Package config reads runtime configuration from the environment.
//
// main loads a .env file with godotenv first, so everything here can be set
// either way. Invalid values fall back to defaults with a warning instead of
// aborting startup; Validate catches combinations that cannot work.
package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/robalobadob/wordscramble/internal/game"
	"github.com/robalobadob/wordscramble/internal/words"
)

// Defaults.
const (
	DefaultPort           = "5175"
	DefaultLogLevel       = "info"
	DefaultDBPath         = "./data/scramble.db"
	DefaultJWTExpiresDays = 14
	DefaultCookieName     = "scramble_token"
	DefaultClientOrigin   = "http://localhost:5173"
	DefaultDailySalt      = "local_dev_salt"
	DefaultJWTSecret      = "dev_secret_change_me"
	DefaultRateLimitRPS   = 10
	DefaultRateLimitBurst = 20
	DefaultSessionTTL     = 2 * time.Hour
)

// Config holds all settings for the server and the CLI.
type Config struct {
	Port     string
	LogLevel string
	// Production switches cookies to Secure/SameSite=None and logs to JSON.
	Production bool

	DBPath string

	// WordsFile is a newline-delimited word list; empty means the embedded list.
	WordsFile  string
	WordMinLen int
	WordMaxLen int

	InitialSkips  int
	RoundDuration time.Duration

	JWTSecret      string
	JWTExpiresDays int
	CookieName     string
	ClientOrigin   string
	DailySalt      string

	RateLimitRPS   int
	RateLimitBurst int
	SessionTTL     time.Duration
}

// Load reads the environment.
func Load() Config {
	return Config{
		Port:           getEnv("PORT", DefaultPort),
		LogLevel:       getEnv("LOG_LEVEL", DefaultLogLevel),
		Production:     getEnv("APP_ENV", "") == "production",
		DBPath:         getEnv("DB_PATH", DefaultDBPath),
		WordsFile:      getEnv("WORDS_FILE", ""),
		WordMinLen:     getEnvInt("WORD_MIN_LEN", words.DefaultMinLen),
		WordMaxLen:     getEnvInt("WORD_MAX_LEN", words.DefaultMaxLen),
		InitialSkips:   getEnvInt("INITIAL_SKIPS", game.DefaultInitialSkips),
		RoundDuration:  getEnvDuration("ROUND_DURATION", game.DefaultDuration),
		JWTSecret:      getEnv("JWT_SECRET", DefaultJWTSecret),
		JWTExpiresDays: getEnvInt("JWT_EXPIRES_DAYS", DefaultJWTExpiresDays),
		CookieName:     getEnv("COOKIE_NAME", DefaultCookieName),
		ClientOrigin:   getEnv("CLIENT_ORIGIN", DefaultClientOrigin),
		DailySalt:      getEnv("DAILY_SALT", DefaultDailySalt),
		RateLimitRPS:   getEnvInt("RATE_LIMIT_RPS", DefaultRateLimitRPS),
		RateLimitBurst: getEnvInt("RATE_LIMIT_BURST", DefaultRateLimitBurst),
		SessionTTL:     getEnvDuration("SESSION_TTL", DefaultSessionTTL),
	}
}

// Validate rejects settings the game cannot run with.
func (c Config) Validate() error {
	var errs []error
	if c.WordMinLen < 1 {
		errs = append(errs, fmt.Errorf("WORD_MIN_LEN must be positive, got %d", c.WordMinLen))
	}
	if c.WordMinLen > c.WordMaxLen {
		errs = append(errs, fmt.Errorf("WORD_MIN_LEN %d exceeds WORD_MAX_LEN %d", c.WordMinLen, c.WordMaxLen))
	}
	if c.InitialSkips < 0 {
		errs = append(errs, fmt.Errorf("INITIAL_SKIPS must not be negative, got %d", c.InitialSkips))
	}
	if c.RoundDuration <= 0 {
		errs = append(errs, fmt.Errorf("ROUND_DURATION must be positive, got %v", c.RoundDuration))
	}
	if c.Production && c.JWTSecret == DefaultJWTSecret {
		errs = append(errs, errors.New("JWT_SECRET must be set in production"))
	}
	return errors.Join(errs...)
}

// WordOptions returns the word-list filter.
func (c Config) WordOptions() words.Options {
	return words.Options{MinLen: c.WordMinLen, MaxLen: c.WordMaxLen}
}

// GameConfig returns the per-session engine configuration.
func (c Config) GameConfig() game.Config {
	return game.Config{InitialSkips: c.InitialSkips, Duration: c.RoundDuration}
}

// getEnv returns the value of k or def if unset/empty.
func getEnv(k, def string) string {
	if v := os.Getenv(k); v != "" {
		return v
	}
	return def
}

func getEnvInt(k string, def int) int {
	v := os.Getenv(k)
	if v == "" {
		return def
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		log.Warn().Str("key", k).Str("value", v).Int("default", def).Msg("invalid int, using default")
		return def
	}
	return n
}

func getEnvDuration(k string, def time.Duration) time.Duration {
	v := os.Getenv(k)
	if v == "" {
		return def
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		log.Warn().Str("key", k).Str("value", v).Dur("default", def).Msg("invalid duration, using default")
		return def
	}
	return d
}
