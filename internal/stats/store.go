// Package stats books finished matches and per-player streaks.
package stats

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"
)

// Reasons a match ended.
const (
	ReasonWord      = "word"      // loser completed a word
	ReasonChallenge = "challenge" // challenge resolved by a submitted word
	ReasonConceded  = "conceded"  // challenged player admitted the bluff
	ReasonTimeout   = "timeout"   // awaited player ran out of time
)

// Result is one finished match.
type Result struct {
	MatchID    string    `json:"matchId"`
	WinnerID   string    `json:"winnerId"`
	LoserID    string    `json:"loserId"`
	Word       string    `json:"word"`
	Superghost bool      `json:"isSuperghost"`
	Reason     string    `json:"reason"`
	FinishedAt time.Time `json:"finishedAt"`
}

// PlayerStats are the running counters of one player.
type PlayerStats struct {
	PlayerID    string `json:"playerId"`
	GamesPlayed int    `json:"gamesPlayed"`
	Wins        int    `json:"wins"`
	Streak      int    `json:"streak"`
	BestStreak  int    `json:"bestStreak"`
}

// timeLayout sorts lexically in UTC.
const timeLayout = "2006-01-02T15:04:05.000000000Z"

type Store struct{ db *sql.DB }

func NewStore(db *sql.DB) *Store { return &Store{db: db} }

// Record stores r and bumps both players' counters in one transaction.
// Recording the same match twice is a no-op.
func (s *Store) Record(ctx context.Context, r Result) error {
	if r.MatchID == "" || r.WinnerID == "" || r.LoserID == "" {
		return errors.New("stats: incomplete result")
	}
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback() }()

	finished := r.FinishedAt.UTC().Format(timeLayout)
	res, err := tx.ExecContext(ctx, `
        INSERT OR IGNORE INTO match_results
            (match_id, winner_id, loser_id, word, superghost, reason, finished_at)
        VALUES (?, ?, ?, ?, ?, ?, ?)`,
		r.MatchID, r.WinnerID, r.LoserID, r.Word, r.Superghost, r.Reason, finished,
	)
	if err != nil {
		return fmt.Errorf("insert result: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return nil
	}
	if err := bump(ctx, tx, r.WinnerID, true, finished); err != nil {
		return fmt.Errorf("bump winner: %w", err)
	}
	if err := bump(ctx, tx, r.LoserID, false, finished); err != nil {
		return fmt.Errorf("bump loser: %w", err)
	}
	return tx.Commit()
}

// bump increments games played; updates wins and streak based on result (within tx).
func bump(ctx context.Context, tx *sql.Tx, playerID string, won bool, at string) error {
	if _, err := tx.ExecContext(ctx,
		`INSERT OR IGNORE INTO players (player_id, updated_at) VALUES (?, ?)`, playerID, at); err != nil {
		return err
	}
	var gp, wins, streak, best int
	row := tx.QueryRowContext(ctx,
		`SELECT games_played, wins, streak, best_streak FROM players WHERE player_id=?`, playerID)
	if err := row.Scan(&gp, &wins, &streak, &best); err != nil {
		return err
	}
	gp++
	if won {
		wins++
		streak++
		if streak > best {
			best = streak
		}
	} else {
		streak = 0
	}
	_, err := tx.ExecContext(ctx,
		`UPDATE players SET games_played=?, wins=?, streak=?, best_streak=?, updated_at=? WHERE player_id=?`,
		gp, wins, streak, best, at, playerID)
	return err
}

// Stats returns the counters of playerID; unknown players have zero stats.
func (s *Store) Stats(ctx context.Context, playerID string) (PlayerStats, error) {
	st := PlayerStats{PlayerID: playerID}
	err := s.db.QueryRowContext(ctx,
		`SELECT games_played, wins, streak, best_streak FROM players WHERE player_id=?`, playerID,
	).Scan(&st.GamesPlayed, &st.Wins, &st.Streak, &st.BestStreak)
	if errors.Is(err, sql.ErrNoRows) {
		return st, nil
	}
	return st, err
}

// Recent lists the latest results involving playerID, newest first.
func (s *Store) Recent(ctx context.Context, playerID string, limit int) ([]Result, error) {
	if limit <= 0 {
		limit = 20
	}
	rows, err := s.db.QueryContext(ctx, `
        SELECT match_id, winner_id, loser_id, word, superghost, reason, finished_at
        FROM match_results
        WHERE winner_id=? OR loser_id=?
        ORDER BY finished_at DESC
        LIMIT ?`, playerID, playerID, limit,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := make([]Result, 0, limit)
	for rows.Next() {
		var (
			r        Result
			finished string
		)
		if err := rows.Scan(&r.MatchID, &r.WinnerID, &r.LoserID, &r.Word, &r.Superghost, &r.Reason, &finished); err != nil {
			return nil, err
		}
		r.FinishedAt, _ = time.Parse(timeLayout, finished)
		out = append(out, r)
	}
	return out, rows.Err()
}
