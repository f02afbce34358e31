// Package economy holds the bet escrow and settlement contract consumed by
// the round engine, and its implementations.
package economy

import "context"

// Gateway validates and escrows bets and settles matches.
//
// Escrow is idempotent per (matchID, playerID) and fails with
// domain.ErrInsufficientFunds when the balance does not cover amount. Escrow
// for a house identity is a no-op.
//
// Settle is idempotent per matchID: only the first call moves money.
// winnerID 0 refunds every escrow of the match; a house winnerID keeps the
// escrows; any other winnerID is credited amount.
type Gateway interface {
	Escrow(ctx context.Context, matchID string, playerID, amount int64) error
	Settle(ctx context.Context, matchID string, winnerID, amount int64) error
}

// NoWinner is the winnerID passed to Settle to refund a match.
const NoWinner int64 = 0
