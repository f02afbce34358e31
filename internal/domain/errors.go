package domain

import "errors"

var (
	// ErrInvalidRoomCode covers unknown, expired and already consumed private room codes.
	ErrInvalidRoomCode = errors.New("invalid room code")
	// ErrInsufficientFunds means the bet exceeds the balance at match creation.
	ErrInsufficientFunds = errors.New("insufficient funds")
	// ErrDuplicateMove is a resubmission for a round the player already moved in.
	// It is a benign no-op and never reaches the player.
	ErrDuplicateMove = errors.New("duplicate move")
	// ErrStaleRound is a move for a round index that has already been resolved.
	ErrStaleRound = errors.New("move for resolved round")
	// ErrRoundMismatch is a move for a round that has not started yet.
	ErrRoundMismatch = errors.New("move for future round")
	// ErrUnknownMatch is a stale match id (server restart, eviction, never existed).
	ErrUnknownMatch = errors.New("match not found")
	// ErrMatchOver rejects moves and surrenders for terminal matches.
	ErrMatchOver = errors.New("match is over")
	// ErrOpponentDisconnected resolves to a forfeit win for the remaining player.
	ErrOpponentDisconnected = errors.New("opponent disconnected")

	ErrNotParticipant   = errors.New("player is not in this match")
	ErrInvalidChoice    = errors.New("invalid choice")
	ErrInvalidBet       = errors.New("invalid bet amount")
	ErrAlreadySearching = errors.New("already searching for a match")
	ErrAlreadyInMatch   = errors.New("already in a match")
	ErrNotSearching     = errors.New("not searching for a match")
)
