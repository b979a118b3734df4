package config

import (
	"testing"
	"time"
)

func TestLoadDefaults(t *testing.T) {
	for _, k := range []string{"PORT", "WORD_MIN_LEN", "WORD_MAX_LEN", "INITIAL_SKIPS", "ROUND_DURATION", "APP_ENV", "WORDS_FILE"} {
		t.Setenv(k, "")
	}
	c := Load()
	if c.Port != DefaultPort || c.WordMinLen != 4 || c.WordMaxLen != 10 {
		t.Errorf("defaults = %+v", c)
	}
	if c.InitialSkips != 3 || c.RoundDuration != 30*time.Second {
		t.Errorf("game defaults = %d, %v", c.InitialSkips, c.RoundDuration)
	}
	if c.Production {
		t.Error("Production should default to false")
	}
	if err := c.Validate(); err != nil {
		t.Errorf("Validate defaults: %v", err)
	}
}

func TestLoadOverrides(t *testing.T) {
	t.Setenv("PORT", "9000")
	t.Setenv("INITIAL_SKIPS", "5")
	t.Setenv("ROUND_DURATION", "45s")
	t.Setenv("WORDS_FILE", "/tmp/words.txt")
	t.Setenv("APP_ENV", "production")

	c := Load()
	if c.Port != "9000" || c.InitialSkips != 5 || c.RoundDuration != 45*time.Second || c.WordsFile != "/tmp/words.txt" {
		t.Errorf("overrides = %+v", c)
	}
	if !c.Production {
		t.Error("APP_ENV=production not honoured")
	}
	gc := c.GameConfig()
	if gc.InitialSkips != 5 || gc.Duration != 45*time.Second {
		t.Errorf("GameConfig = %+v", gc)
	}
}

func TestLoadInvalidFallsBack(t *testing.T) {
	t.Setenv("INITIAL_SKIPS", "three")
	t.Setenv("ROUND_DURATION", "soon")
	c := Load()
	if c.InitialSkips != 3 || c.RoundDuration != 30*time.Second {
		t.Errorf("fallbacks = %d, %v", c.InitialSkips, c.RoundDuration)
	}
}

func TestValidate(t *testing.T) {
	base := Config{WordMinLen: 4, WordMaxLen: 10, InitialSkips: 3, RoundDuration: time.Second, JWTSecret: "s"}
	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr bool
	}{
		{"ok", func(*Config) {}, false},
		{"inverted range", func(c *Config) { c.WordMinLen = 11 }, true},
		{"zero min", func(c *Config) { c.WordMinLen = 0 }, true},
		{"negative skips", func(c *Config) { c.InitialSkips = -1 }, true},
		{"zero duration", func(c *Config) { c.RoundDuration = 0 }, true},
		{"prod default secret", func(c *Config) { c.Production = true; c.JWTSecret = DefaultJWTSecret }, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := base
			tt.mutate(&c)
			if err := c.Validate(); (err != nil) != tt.wantErr {
				t.Errorf("Validate() = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}
