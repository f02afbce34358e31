package repository

import (
	"context"
	"encoding/json"
	"time"

	"rps_arena/internal/domain"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

type TransactionRepository struct {
	db *pgxpool.Pool
}

func NewTransactionRepository(db *pgxpool.Pool) *TransactionRepository {
	return &TransactionRepository{db: db}
}

// GetByPlayerID returns recent ledger rows for a player
func (r *TransactionRepository) GetByPlayerID(ctx context.Context, playerID int64, limit int) ([]*domain.Transaction, error) {
	if limit <= 0 {
		limit = 100
	}

	rows, err := r.db.Query(ctx,
		`SELECT id, player_id, type, amount, meta, created_at
		 FROM transactions
		 WHERE player_id = $1
		 ORDER BY created_at DESC
		 LIMIT $2`,
		playerID, limit,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	return r.scanRows(rows)
}

// GetByMatchID returns every ledger row tagged with a match id
func (r *TransactionRepository) GetByMatchID(ctx context.Context, matchID string) ([]*domain.Transaction, error) {
	rows, err := r.db.Query(ctx,
		`SELECT id, player_id, type, amount, meta, created_at
		 FROM transactions
		 WHERE meta->>'match_id' = $1
		 ORDER BY id`,
		matchID,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	return r.scanRows(rows)
}

// CreateWithTx inserts a transaction using an existing database transaction
func (r *TransactionRepository) CreateWithTx(ctx context.Context, dbTx pgx.Tx, tx *domain.Transaction) error {
	metaJSON, err := json.Marshal(tx.Meta)
	if err != nil {
		metaJSON = []byte("{}")
	}

	return dbTx.QueryRow(ctx,
		`INSERT INTO transactions (player_id, type, amount, meta)
		 VALUES ($1, $2, $3, $4)
		 RETURNING id, created_at`,
		tx.PlayerID, tx.Type, tx.Amount, metaJSON,
	).Scan(&tx.ID, &tx.CreatedAt)
}

func (r *TransactionRepository) scanRows(rows pgx.Rows) ([]*domain.Transaction, error) {
	var result []*domain.Transaction

	for rows.Next() {
		var (
			tx        domain.Transaction
			metaJSON  []byte
			createdAt time.Time
		)

		if err := rows.Scan(&tx.ID, &tx.PlayerID, &tx.Type, &tx.Amount, &metaJSON, &createdAt); err != nil {
			return nil, err
		}

		tx.CreatedAt = createdAt
		if len(metaJSON) > 0 {
			_ = json.Unmarshal(metaJSON, &tx.Meta)
		}

		result = append(result, &tx)
	}

	return result, rows.Err()
}
