package db

import (
	"path/filepath"
	"testing"
	"testing/fstest"
)

func TestOpenAppliesMigrations(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "app.db")
	db, err := Open(path)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	defer db.Close()

	for _, table := range []string{"users", "kv", "games", "daily_results"} {
		var name string
		err := db.QueryRow(`SELECT name FROM sqlite_master WHERE type='table' AND name=?`, table).Scan(&name)
		if err != nil {
			t.Errorf("table %s missing: %v", table, err)
		}
	}
}

func TestMigrateIsIdempotent(t *testing.T) {
	db, err := Open(filepath.Join(t.TempDir(), "app.db"))
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	defer db.Close()

	fsys := fstest.MapFS{
		"010_extra.sql": {Data: []byte(`CREATE TABLE extra (id INTEGER PRIMARY KEY);`)},
	}
	if err := Migrate(db, fsys); err != nil {
		t.Fatalf("first Migrate: %v", err)
	}
	// A second run would fail on CREATE TABLE without IF NOT EXISTS if the
	// file were applied again.
	if err := Migrate(db, fsys); err != nil {
		t.Fatalf("second Migrate: %v", err)
	}
	var n int
	if err := db.QueryRow(`SELECT COUNT(1) FROM _migrations`).Scan(&n); err != nil {
		t.Fatal(err)
	}
	if n != 4 {
		t.Errorf("_migrations rows = %d, want 4", n)
	}
}

func TestMigrateRollsBackBrokenFile(t *testing.T) {
	db, err := Open(filepath.Join(t.TempDir(), "app.db"))
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	defer db.Close()

	fsys := fstest.MapFS{"020_bad.sql": {Data: []byte(`CREATE TABLE broken (`)}}
	if err := Migrate(db, fsys); err == nil {
		t.Fatal("expected error for broken migration")
	}
	var n int
	_ = db.QueryRow(`SELECT COUNT(1) FROM _migrations WHERE name='020_bad.sql'`).Scan(&n)
	if n != 0 {
		t.Error("broken migration was recorded")
	}
}
