package store

import (
	"context"
	"database/sql"
	"errors"
	"strconv"
	"sync"
	"time"
)

// queryTimeout bounds each KV statement; the engine calls in without a context.
const queryTimeout = 2 * time.Second

// MemoryKV is a process-local key/value store. It satisfies game.ScoreStore.
type MemoryKV struct {
	mu   sync.RWMutex
	data map[string]string
}

// NewMemoryKV returns an empty MemoryKV.
func NewMemoryKV() *MemoryKV {
	return &MemoryKV{data: make(map[string]string)}
}

func (m *MemoryKV) Get(key string) (string, bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	v, ok := m.data[key]
	return v, ok, nil
}

func (m *MemoryKV) Set(key, value string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.data[key] = value
	return nil
}

// SQLKV stores key/value pairs for one owner in the kv table.
// It satisfies game.ScoreStore.
type SQLKV struct {
	db    *sql.DB
	owner string
}

// NewSQLKV scopes the kv table to ownerID.
func NewSQLKV(db *sql.DB, ownerID string) *SQLKV {
	return &SQLKV{db: db, owner: ownerID}
}

func (s *SQLKV) Get(key string) (string, bool, error) {
	ctx, cancel := context.WithTimeout(context.Background(), queryTimeout)
	defer cancel()
	var v string
	err := s.db.QueryRowContext(ctx, `SELECT value FROM kv WHERE owner_id=? AND key=?`, s.owner, key).Scan(&v)
	if errors.Is(err, sql.ErrNoRows) {
		return "", false, nil
	}
	if err != nil {
		return "", false, err
	}
	return v, true, nil
}

func (s *SQLKV) Set(key, value string) error {
	ctx, cancel := context.WithTimeout(context.Background(), queryTimeout)
	defer cancel()
	_, err := s.db.ExecContext(ctx, `
        INSERT INTO kv (owner_id, key, value, updated_at) VALUES (?, ?, ?, ?)
        ON CONFLICT(owner_id, key) DO UPDATE SET value=excluded.value, updated_at=excluded.updated_at`,
		s.owner, key, value, time.Now().UTC().Format(time.RFC3339),
	)
	return err
}

// MergeMaxInt moves fromOwner's integer value for key onto toOwner, keeping
// the larger of the two, and deletes fromOwner's row. Unparseable values
// count as zero.
func MergeMaxInt(ctx context.Context, db *sql.DB, fromOwner, toOwner, key string) error {
	if fromOwner == "" || toOwner == "" || fromOwner == toOwner {
		return nil
	}
	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback() }()

	read := func(owner string) (int, error) {
		var v string
		err := tx.QueryRowContext(ctx, `SELECT value FROM kv WHERE owner_id=? AND key=?`, owner, key).Scan(&v)
		if errors.Is(err, sql.ErrNoRows) {
			return 0, nil
		}
		if err != nil {
			return 0, err
		}
		n, _ := strconv.Atoi(v)
		return max(n, 0), nil
	}
	from, err := read(fromOwner)
	if err != nil {
		return err
	}
	to, err := read(toOwner)
	if err != nil {
		return err
	}

	if _, err := tx.ExecContext(ctx, `
        INSERT INTO kv (owner_id, key, value, updated_at) VALUES (?, ?, ?, ?)
        ON CONFLICT(owner_id, key) DO UPDATE SET value=excluded.value, updated_at=excluded.updated_at`,
		toOwner, key, strconv.Itoa(max(from, to)), time.Now().UTC().Format(time.RFC3339),
	); err != nil {
		return err
	}
	if _, err := tx.ExecContext(ctx, `DELETE FROM kv WHERE owner_id=? AND key=?`, fromOwner, key); err != nil {
		return err
	}
	return tx.Commit()
}
