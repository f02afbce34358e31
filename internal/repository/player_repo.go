package repository

import (
	"context"
	"errors"

	"rps_arena/internal/domain"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

var ErrPlayerNotFound = errors.New("player not found")

type PlayerRepository struct {
	db *pgxpool.Pool
}

func NewPlayerRepository(db *pgxpool.Pool) *PlayerRepository {
	return &PlayerRepository{db: db}
}

// Create inserts a player with an opening balance
func (r *PlayerRepository) Create(ctx context.Context, a *domain.Account) error {
	return r.db.QueryRow(ctx,
		`INSERT INTO players (name, balance)
		 VALUES ($1, $2)
		 RETURNING id, created_at`,
		a.Name,
		a.Balance,
	).Scan(&a.ID, &a.CreatedAt)
}

func (r *PlayerRepository) GetByID(ctx context.Context, id int64) (*domain.Account, error) {
	row := r.db.QueryRow(ctx,
		`SELECT id, COALESCE(name, ''), balance, created_at
		 FROM players
		 WHERE id = $1`,
		id,
	)

	var a domain.Account
	if err := row.Scan(&a.ID, &a.Name, &a.Balance, &a.CreatedAt); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrPlayerNotFound
		}
		return nil, err
	}
	return &a, nil
}

// GetBalance returns the spendable balance; escrowed amounts are already deducted
func (r *PlayerRepository) GetBalance(ctx context.Context, id int64) (int64, error) {
	var balance int64
	err := r.db.QueryRow(ctx, `SELECT balance FROM players WHERE id = $1`, id).Scan(&balance)
	if errors.Is(err, pgx.ErrNoRows) {
		return 0, ErrPlayerNotFound
	}
	return balance, err
}
