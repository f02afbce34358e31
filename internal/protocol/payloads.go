package protocol

import (
	"time"

	"rps_arena/internal/domain"
)

// client → server

type SearchRequest struct {
	PlayerID int64  `json:"playerId,omitempty"`
	Name     string `json:"name"`
	Bet      int64  `json:"bet,omitempty"`
}

type JoinPrivateRequest struct {
	PlayerID int64  `json:"playerId,omitempty"`
	Name     string `json:"name"`
	RoomCode string `json:"roomCode"`
}

type MoveRequest struct {
	MatchID string `json:"matchId"`
	Choice  string `json:"choice"`
	Round   int    `json:"round,omitempty"`
}

type SurrenderRequest struct {
	MatchID string `json:"matchId"`
}

// server → client

type QueuedPayload struct {
	Bet int64 `json:"bet"`
}

type PrivateRoomCreatedPayload struct {
	RoomCode  string    `json:"roomCode"`
	Bet       int64     `json:"bet"`
	ExpiresAt time.Time `json:"expiresAt"`
}

type PrivateRoomExpiredPayload struct {
	RoomCode string `json:"roomCode"`
}

type MatchFoundPayload struct {
	MatchID string        `json:"matchId"`
	Mode    domain.Mode   `json:"mode"`
	Bet     int64         `json:"bet"`
	First   domain.Player `json:"first"`
	Second  domain.Player `json:"second"`
}

type OpponentMovedPayload struct {
	MatchID string `json:"matchId"`
	Round   int    `json:"round"`
}

type ScorePair struct {
	First  int `json:"first"`
	Second int `json:"second"`
}

func ScorePairOf(s domain.Score) ScorePair {
	return ScorePair{First: s[0], Second: s[1]}
}

// Seat returns the score of seat 0 or 1.
func (s ScorePair) Seat(seat int) int {
	if seat == 0 {
		return s.First
	}
	return s.Second
}

type RoundResultPayload struct {
	MatchID      string        `json:"matchId"`
	Round        int           `json:"round"`
	FirstChoice  domain.Choice `json:"firstChoice"`
	SecondChoice domain.Choice `json:"secondChoice"`
	Scores       ScorePair     `json:"scores"`
	Winner       string        `json:"winner"` // first | second | draw
}

type NextRoundPayload struct {
	MatchID    string `json:"matchId"`
	RoundIndex int    `json:"roundIndex"`
}

type MatchOverPayload struct {
	MatchID  string           `json:"matchId"`
	Winner   string           `json:"winner"` // first | second | draw
	WinnerID *int64           `json:"winnerId,omitempty"`
	Reason   domain.EndReason `json:"reason"`
	Scores   ScorePair        `json:"scores"`
	Payout   int64            `json:"payout"`
}

type OpponentLeftPayload struct {
	MatchID string `json:"matchId"`
	Payout  int64  `json:"payout"`
}

type ErrorPayload struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// RoundLogEntry is one resolved round from the requesting player's side.
type RoundLogEntry struct {
	Round          int            `json:"round"`
	YourChoice     domain.Choice  `json:"yourChoice"`
	OpponentChoice domain.Choice  `json:"opponentChoice"`
	Outcome        domain.Outcome `json:"outcome"`
}

// SessionStatus answers getSessionStatus. It mirrors authoritative engine state.
type SessionStatus struct {
	MatchID       string           `json:"matchId"`
	Mode          domain.Mode      `json:"mode"`
	Bet           int64            `json:"bet"`
	Role          domain.Role      `json:"role"`
	Opponent      domain.Player    `json:"opponent"`
	RoundsPlayed  int              `json:"roundsPlayed"`
	WinCount      int              `json:"winCount"`
	LossCount     int              `json:"lossCount"`
	RoundLog      []RoundLogEntry  `json:"roundLog"`
	MoveSubmitted bool             `json:"moveSubmitted"`
	Finished      bool             `json:"finished"`
	WinnerID      *int64           `json:"winnerId,omitempty"`
	Reason        domain.EndReason `json:"reason,omitempty"`
}

type SessionStatusPayload struct {
	Status *SessionStatus `json:"status"`
}

// WinnerLabel converts a winner seat (-1 for none) into its wire label.
func WinnerLabel(seat int) string {
	if seat < 0 {
		return "draw"
	}
	return string(domain.RoleOf(seat))
}

// WinnerSeat is the inverse of WinnerLabel.
func WinnerSeat(label string) int {
	switch label {
	case string(domain.RoleFirst):
		return 0
	case string(domain.RoleSecond):
		return 1
	}
	return -1
}
