package daily

import (
	"context"
	"database/sql"
)

// Result is one owner's final score for a date.
type Result struct {
	OwnerID string `json:"ownerId"`
	Date    string `json:"date"`
	Score   int    `json:"score"`
}

// LBRow is a leaderboard entry. Guests show up as "guest".
type LBRow struct {
	Username string `json:"username"`
	Score    int    `json:"score"`
}

// Store reads and writes daily_results.
type Store struct{ db *sql.DB }

func NewStore(db *sql.DB) *Store { return &Store{db: db} }

// AlreadyPlayed reports whether ownerID has a recorded result for date.
func (s *Store) AlreadyPlayed(ctx context.Context, ownerID, date string) (bool, error) {
	var cnt int
	err := s.db.QueryRowContext(ctx,
		`SELECT COUNT(1) FROM daily_results WHERE owner_id=? AND date=?`,
		ownerID, date,
	).Scan(&cnt)
	return cnt > 0, err
}

// Claim reserves ownerID's play for date with an unfinished row. It reports
// false when the owner already has a row for that date, finished or not.
func (s *Store) Claim(ctx context.Context, ownerID, date string) (bool, error) {
	res, err := s.db.ExecContext(ctx,
		`INSERT OR IGNORE INTO daily_results(owner_id, date, score, finished) VALUES(?,?,0,0)`,
		ownerID, date,
	)
	if err != nil {
		return false, err
	}
	n, err := res.RowsAffected()
	return n == 1, err
}

// Finish records the final score on a claimed row. Rows that are already
// finished keep their score.
func (s *Store) Finish(ctx context.Context, r Result) error {
	_, err := s.db.ExecContext(ctx,
		`UPDATE daily_results SET score=?, finished=1 WHERE owner_id=? AND date=? AND finished=0`,
		r.Score, r.OwnerID, r.Date,
	)
	return err
}

// Leaderboard returns the top finished scores for date, earliest first on ties.
func (s *Store) Leaderboard(ctx context.Context, date string, limit int) ([]LBRow, error) {
	if limit <= 0 {
		limit = 20
	}
	rows, err := s.db.QueryContext(ctx, `
        SELECT COALESCE(u.username, 'guest'), d.score
        FROM daily_results d
        LEFT JOIN users u ON u.id = d.owner_id
        WHERE d.date=? AND d.finished=1
        ORDER BY d.score DESC, d.created_at ASC
        LIMIT ?`, date, limit,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := make([]LBRow, 0, limit)
	for rows.Next() {
		var r LBRow
		if err := rows.Scan(&r.Username, &r.Score); err != nil {
			return nil, err
		}
		out = append(out, r)
	}
	return out, rows.Err()
}
