package repository

import (
	"context"
	"encoding/json"
	"time"

	"rps_arena/internal/domain"

	"github.com/jackc/pgx/v5/pgxpool"
)

type MatchRepository struct {
	db *pgxpool.Pool
}

func NewMatchRepository(db *pgxpool.Pool) *MatchRepository {
	return &MatchRepository{db: db}
}

// Archive stores a terminal match. Archiving the same match twice is a no-op.
func (r *MatchRepository) Archive(ctx context.Context, m *domain.MatchSession) error {
	roundsJSON, err := json.Marshal(m.Rounds)
	if err != nil {
		return err
	}

	endedAt := time.Now()
	if m.EndedAt != nil {
		endedAt = *m.EndedAt
	}

	_, err = r.db.Exec(ctx,
		`INSERT INTO matches (id, mode, first_id, second_id, first_name, second_name, bet, winner_id, reason, rounds, created_at, ended_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)
		 ON CONFLICT (id) DO NOTHING`,
		m.ID,
		string(m.Mode),
		m.Players[0].ID,
		m.Players[1].ID,
		m.Players[0].Name,
		m.Players[1].Name,
		m.Bet,
		m.WinnerID,
		string(m.Reason),
		roundsJSON,
		m.CreatedAt,
		endedAt,
	)
	return err
}

// ListByPlayer returns the most recent archived matches a player took part in
func (r *MatchRepository) ListByPlayer(ctx context.Context, playerID int64, limit int) ([]*domain.MatchSession, error) {
	if limit <= 0 || limit > 100 {
		limit = 100
	}

	rows, err := r.db.Query(ctx,
		`SELECT id, mode, first_id, second_id, first_name, second_name, bet, winner_id, reason, rounds, created_at, ended_at
		 FROM matches
		 WHERE first_id = $1 OR second_id = $1
		 ORDER BY ended_at DESC
		 LIMIT $2`,
		playerID, limit,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var res []*domain.MatchSession
	for rows.Next() {
		var (
			m           domain.MatchSession
			mode        string
			reason      string
			roundsBytes []byte
			endedAt     time.Time
		)

		if err := rows.Scan(
			&m.ID,
			&mode,
			&m.Players[0].ID,
			&m.Players[1].ID,
			&m.Players[0].Name,
			&m.Players[1].Name,
			&m.Bet,
			&m.WinnerID,
			&reason,
			&roundsBytes,
			&m.CreatedAt,
			&endedAt,
		); err != nil {
			return nil, err
		}

		m.Mode = domain.Mode(mode)
		m.Reason = domain.EndReason(reason)
		m.EndedAt = &endedAt
		_ = json.Unmarshal(roundsBytes, &m.Rounds)

		res = append(res, &m)
	}

	return res, rows.Err()
}
