package domain

import "time"

const (
	// WinThreshold is the number of round wins that ends a match.
	WinThreshold = 3
	// RoundCap is the maximum number of rounds, draws included.
	RoundCap = 5
)

// Mode says how the two players were paired.
type Mode string

const (
	ModePublic   Mode = "public"
	ModePrivate  Mode = "private"
	ModeComputer Mode = "computer"
)

// Role is a seat label used only for display; both seats move simultaneously.
type Role string

const (
	RoleFirst  Role = "first"
	RoleSecond Role = "second"
)

// RoleOf maps a seat index to its role.
func RoleOf(seat int) Role {
	if seat == 0 {
		return RoleFirst
	}
	return RoleSecond
}

// Phase of a match session as seen by one player.
type Phase string

const (
	PhaseIdle      Phase = "IDLE"
	PhaseSearching Phase = "SEARCHING"
	PhaseMatched   Phase = "MATCHED"
	PhaseActive    Phase = "ACTIVE"
	PhaseSettled   Phase = "SETTLED"
	PhaseAbandoned Phase = "ABANDONED"
)

// Terminal reports whether no further transitions except a reset are possible.
func (p Phase) Terminal() bool {
	return p == PhaseSettled || p == PhaseAbandoned
}

// EndReason records why a match terminated.
type EndReason string

const (
	ReasonScore     EndReason = "score"
	ReasonRoundCap  EndReason = "round_cap"
	ReasonForfeit   EndReason = "forfeit"
	ReasonSurrender EndReason = "surrender"
	ReasonTimeout   EndReason = "timeout"
)

// Forfeited reports whether the match ended without being played out.
func (r EndReason) Forfeited() bool {
	return r == ReasonForfeit || r == ReasonSurrender
}

// Round is immutable once appended to a match.
type Round struct {
	Index      int       `json:"index"`
	Moves      [2]Choice `json:"moves"`
	Outcome    Outcome   `json:"outcome"` // relative to the first seat
	ResolvedAt time.Time `json:"resolved_at"`
}

// NewRound resolves a round from both seats' moves.
func NewRound(index int, first, second Choice, at time.Time) Round {
	return Round{
		Index:      index,
		Moves:      [2]Choice{first, second},
		Outcome:    Resolve(first, second),
		ResolvedAt: at,
	}
}

// OutcomeFor returns the round outcome relative to seat.
func (r Round) OutcomeFor(seat int) Outcome {
	if seat == 0 {
		return r.Outcome
	}
	return r.Outcome.Invert()
}

// WinnerSeat returns the seat that won the round, or -1 on a draw.
func (r Round) WinnerSeat() int {
	switch r.Outcome {
	case Win:
		return 0
	case Lose:
		return 1
	}
	return -1
}

// Score is a pair of win counts indexed by seat.
type Score [2]int

// ScoreOf counts round wins per seat. Scores are always derived, never stored.
func ScoreOf(rounds []Round) Score {
	var s Score
	for _, r := range rounds {
		if seat := r.WinnerSeat(); seat >= 0 {
			s[seat]++
		}
	}
	return s
}

// Decide applies the termination rule to a round log. done is false while
// the match should continue; winner is -1 for a tie at the round cap.
func Decide(rounds []Round) (winner int, reason EndReason, done bool) {
	s := ScoreOf(rounds)
	for seat := 0; seat < 2; seat++ {
		if s[seat] >= WinThreshold {
			return seat, ReasonScore, true
		}
	}
	if len(rounds) >= RoundCap {
		switch {
		case s[0] > s[1]:
			return 0, ReasonRoundCap, true
		case s[1] > s[0]:
			return 1, ReasonRoundCap, true
		default:
			return -1, ReasonRoundCap, true
		}
	}
	return -1, "", false
}

// MatchSession is the authoritative record of one match.
type MatchSession struct {
	ID        string     `json:"id"`
	Mode      Mode       `json:"mode"`
	Players   [2]Player  `json:"players"`
	Bet       int64      `json:"bet"`
	Rounds    []Round    `json:"rounds"`
	WinnerID  *int64     `json:"winner_id,omitempty"`
	Reason    EndReason  `json:"reason,omitempty"`
	CreatedAt time.Time  `json:"created_at"`
	EndedAt   *time.Time `json:"ended_at,omitempty"`
}

// Seat returns the seat index of playerID.
func (m *MatchSession) Seat(playerID int64) (int, bool) {
	for i, p := range m.Players {
		if p.ID == playerID {
			return i, true
		}
	}
	return -1, false
}

// Opponent returns the player across from seat.
func (m *MatchSession) Opponent(seat int) Player {
	return m.Players[1-seat]
}

// Scores recomputes win counts from the round log.
func (m *MatchSession) Scores() Score {
	return ScoreOf(m.Rounds)
}

// CurrentRound is the 1-based index of the round awaiting moves.
func (m *MatchSession) CurrentRound() int {
	return len(m.Rounds) + 1
}

// Finished reports whether the match reached a terminal state.
func (m *MatchSession) Finished() bool {
	return m.Reason != ""
}

// Pot is what the winner receives.
func (m *MatchSession) Pot() int64 {
	return 2 * m.Bet
}

// HasComputer reports whether one seat is the house.
func (m *MatchSession) HasComputer() bool {
	return IsHouse(m.Players[0].ID) || IsHouse(m.Players[1].ID)
}

// AppendRound records a resolved round and finishes the match when the
// termination rule is met. It reports whether the match is now over.
func (m *MatchSession) AppendRound(r Round) (bool, error) {
	if m.Finished() {
		return true, ErrMatchOver
	}
	if r.Index != m.CurrentRound() {
		return false, ErrRoundMismatch
	}
	m.Rounds = append(m.Rounds, r)
	if winner, reason, done := Decide(m.Rounds); done {
		m.Finish(winner, reason, r.ResolvedAt)
		return true, nil
	}
	return false, nil
}

// Finish moves the match to a terminal state. winnerSeat is -1 when nobody wins.
// Finishing twice keeps the first result.
func (m *MatchSession) Finish(winnerSeat int, reason EndReason, at time.Time) {
	if m.Finished() {
		return
	}
	if winnerSeat >= 0 {
		id := m.Players[winnerSeat].ID
		m.WinnerID = &id
	}
	m.Reason = reason
	m.EndedAt = &at
}

// Phase derives the server-side phase from the round log and terminal fields.
func (m *MatchSession) Phase() Phase {
	switch {
	case !m.Finished():
		return PhaseActive
	case m.Reason.Forfeited():
		return PhaseAbandoned
	default:
		return PhaseSettled
	}
}

// MatchSnapshot is the persisted form of a live match, including moves that
// are recorded but not yet revealed.
type MatchSnapshot struct {
	Session MatchSession `json:"session"`
	Pending [2]Choice    `json:"pending"`
	Settled bool         `json:"settled"`
}
