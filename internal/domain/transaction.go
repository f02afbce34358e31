package domain

import "time"

// Ledger transaction types.
const (
	TxEscrow = "match_escrow"
	TxPayout = "match_payout"
	TxRefund = "match_refund"
	TxSeed   = "seed"
)

type Transaction struct {
	ID        int64                  `db:"id" json:"id"`
	PlayerID  int64                  `db:"player_id" json:"player_id"`
	Type      string                 `db:"type" json:"type"`
	Amount    int64                  `db:"amount" json:"amount"`
	Meta      map[string]interface{} `db:"meta" json:"meta,omitempty"`
	CreatedAt time.Time              `db:"created_at" json:"created_at"`
}

// MatchID returns the match an entry belongs to, or "" for entries outside a match.
func (t Transaction) MatchID() string {
	id, _ := t.Meta["match_id"].(string)
	return id
}
