package economy

import (
	"context"
	"errors"
	"fmt"

	"rps_arena/internal/domain"
	"rps_arena/internal/repository"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// Ledger is the Postgres-backed Gateway. Balances live in players.balance,
// holds in match_escrows and the one-shot settlement marker in match_settlements.
type Ledger struct {
	db              *pgxpool.Pool
	playerRepo      *repository.PlayerRepository
	transactionRepo *repository.TransactionRepository
}

func NewLedger(db *pgxpool.Pool) *Ledger {
	return &Ledger{
		db:              db,
		playerRepo:      repository.NewPlayerRepository(db),
		transactionRepo: repository.NewTransactionRepository(db),
	}
}

// Escrow debits amount from the player and records a hold for the match.
func (l *Ledger) Escrow(ctx context.Context, matchID string, playerID, amount int64) error {
	if amount <= 0 {
		return domain.ErrInvalidBet
	}
	if domain.IsHouse(playerID) {
		return nil
	}

	tx, err := l.db.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback(ctx) }()

	tag, err := tx.Exec(ctx,
		`INSERT INTO match_escrows (match_id, player_id, amount, status)
		 VALUES ($1, $2, $3, 'held')
		 ON CONFLICT (match_id, player_id) DO NOTHING`,
		matchID, playerID, amount,
	)
	if err != nil {
		return fmt.Errorf("insert escrow: %w", err)
	}
	if tag.RowsAffected() == 0 {
		// already escrowed for this match
		return tx.Commit(ctx)
	}

	var balance int64
	err = tx.QueryRow(ctx,
		`UPDATE players SET balance = balance - $1 WHERE id = $2 AND balance >= $1 RETURNING balance`,
		amount, playerID,
	).Scan(&balance)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return domain.ErrInsufficientFunds
		}
		return fmt.Errorf("debit escrow: %w", err)
	}

	entry := &domain.Transaction{
		PlayerID: playerID,
		Type:     domain.TxEscrow,
		Amount:   -amount,
		Meta:     map[string]interface{}{"match_id": matchID},
	}
	if err = l.transactionRepo.CreateWithTx(ctx, tx, entry); err != nil {
		return err
	}

	return tx.Commit(ctx)
}

// Settle pays out or refunds a match exactly once.
func (l *Ledger) Settle(ctx context.Context, matchID string, winnerID, amount int64) error {
	tx, err := l.db.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback(ctx) }()

	var winner *int64
	if winnerID != NoWinner {
		winner = &winnerID
	}
	tag, err := tx.Exec(ctx,
		`INSERT INTO match_settlements (match_id, winner_id, amount)
		 VALUES ($1, $2, $3)
		 ON CONFLICT (match_id) DO NOTHING`,
		matchID, winner, amount,
	)
	if err != nil {
		return fmt.Errorf("insert settlement: %w", err)
	}
	if tag.RowsAffected() == 0 {
		// already settled
		return tx.Commit(ctx)
	}

	rows, err := tx.Query(ctx,
		`SELECT player_id, amount FROM match_escrows
		 WHERE match_id = $1 AND status = 'held'
		 FOR UPDATE`,
		matchID,
	)
	if err != nil {
		return err
	}
	held := make(map[int64]int64)
	for rows.Next() {
		var pid, amt int64
		if err := rows.Scan(&pid, &amt); err != nil {
			rows.Close()
			return err
		}
		held[pid] = amt
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return err
	}

	meta := map[string]interface{}{"match_id": matchID}
	status := "paid"

	switch {
	case winnerID == NoWinner:
		status = "refunded"
		for pid, amt := range held {
			if err := l.credit(ctx, tx, pid, amt, domain.TxRefund, meta); err != nil {
				return err
			}
		}
	case domain.IsHouse(winnerID):
		status = "forfeited"
	default:
		if err := l.credit(ctx, tx, winnerID, amount, domain.TxPayout, meta); err != nil {
			return err
		}
	}

	if _, err := tx.Exec(ctx,
		`UPDATE match_escrows SET status = $2 WHERE match_id = $1 AND status = 'held'`,
		matchID, status,
	); err != nil {
		return err
	}

	return tx.Commit(ctx)
}

// Balance returns a player's spendable balance.
func (l *Ledger) Balance(ctx context.Context, playerID int64) (int64, error) {
	return l.playerRepo.GetBalance(ctx, playerID)
}

// Statement lists a player's most recent ledger entries, newest first.
func (l *Ledger) Statement(ctx context.Context, playerID int64, limit int) ([]*domain.Transaction, error) {
	return l.transactionRepo.GetByPlayerID(ctx, playerID, limit)
}

// MatchEntries lists every ledger entry a match produced.
func (l *Ledger) MatchEntries(ctx context.Context, matchID string) ([]*domain.Transaction, error) {
	return l.transactionRepo.GetByMatchID(ctx, matchID)
}

func (l *Ledger) credit(ctx context.Context, tx pgx.Tx, playerID, amount int64, typ string, meta map[string]interface{}) error {
	if amount <= 0 {
		return nil
	}
	tag, err := tx.Exec(ctx, `UPDATE players SET balance = balance + $1 WHERE id = $2`, amount, playerID)
	if err != nil {
		return fmt.Errorf("credit player %d: %w", playerID, err)
	}
	if tag.RowsAffected() == 0 {
		return repository.ErrPlayerNotFound
	}
	return l.transactionRepo.CreateWithTx(ctx, tx, &domain.Transaction{
		PlayerID: playerID,
		Type:     typ,
		Amount:   amount,
		Meta:     meta,
	})
}
