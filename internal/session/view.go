package session

import (
	"time"

	"rps_arena/internal/domain"
	"rps_arena/internal/protocol"
)

// Step is the ACTIVE sub-state. It only drives UI feedback.
type Step string

const (
	StepNone             Step = ""
	StepAwaitingOwnMove  Step = "AWAITING_OWN_MOVE"
	StepAwaitingOpponent Step = "AWAITING_OPPONENT"
	StepBothSubmitted    Step = "BOTH_SUBMITTED"
)

// View is a snapshot of one player's session.
//
// Intent is the locally chosen, unconfirmed move of the current round. Wins,
// Losses and Log only ever change from engine events.
type View struct {
	Phase    domain.Phase
	Step     Step
	MatchID  string
	Mode     domain.Mode
	Bet      int64
	Role     domain.Role
	Opponent domain.Player

	RoomCode      string
	RoomExpiresAt time.Time

	Round         int
	Intent        domain.Choice
	MoveSent      bool
	OpponentMoved bool

	Wins   int
	Losses int
	Log    []protocol.RoundLogEntry

	Outcome domain.Outcome
	Reason  domain.EndReason
	Payout  int64

	LastError error
}

// Seat is the player's seat index derived from Role.
func (v View) Seat() int {
	if v.Role == domain.RoleSecond {
		return 1
	}
	return 0
}

func (v View) clone() View {
	v.Log = append([]protocol.RoundLogEntry(nil), v.Log...)
	return v
}

func (v *View) step() {
	switch {
	case v.Phase != domain.PhaseActive:
		v.Step = StepNone
	case v.MoveSent && v.OpponentMoved:
		v.Step = StepBothSubmitted
	case v.MoveSent:
		v.Step = StepAwaitingOpponent
	default:
		v.Step = StepAwaitingOwnMove
	}
}

// Reconstruct rebuilds a view from the engine's session status. Phase, round
// index and scores are derived from the round log and the winner fields;
// RoundsPlayed and WinCount are only used when the log is missing. It has no
// side effects and may be called any number of times.
func Reconstruct(selfID int64, st protocol.SessionStatus) View {
	v := View{
		MatchID:  st.MatchID,
		Mode:     st.Mode,
		Bet:      st.Bet,
		Role:     st.Role,
		Opponent: st.Opponent,
		Log:      append([]protocol.RoundLogEntry(nil), st.RoundLog...),
	}

	played := len(v.Log)
	if played == 0 && st.RoundsPlayed > 0 {
		played = st.RoundsPlayed
		v.Wins, v.Losses = st.WinCount, st.LossCount
	}
	for _, e := range v.Log {
		switch e.Outcome {
		case domain.Win:
			v.Wins++
		case domain.Lose:
			v.Losses++
		}
	}

	decided := v.Wins >= domain.WinThreshold || v.Losses >= domain.WinThreshold || played >= domain.RoundCap
	switch {
	case st.WinnerID != nil || st.Finished || decided:
		v.Reason = st.Reason
		if v.Reason == "" {
			v.Reason = domain.ReasonScore
			if played >= domain.RoundCap && v.Wins < domain.WinThreshold && v.Losses < domain.WinThreshold {
				v.Reason = domain.ReasonRoundCap
			}
		}
		v.Outcome = outcomeFor(selfID, st, v.Wins, v.Losses)
		v.Phase = domain.PhaseSettled
		if v.Reason.Forfeited() {
			v.Phase = domain.PhaseAbandoned
		}
		v.Round = played
		if v.Outcome == domain.Win {
			v.Payout = 2 * v.Bet
		}
	default:
		v.Phase = domain.PhaseActive
		v.Round = played + 1
		v.MoveSent = st.MoveSubmitted
	}
	v.step()
	return v
}

// outcomeFor trusts the engine's winner when the match is flagged finished and
// falls back to the round log when only the log shows it is decided.
func outcomeFor(selfID int64, st protocol.SessionStatus, wins, losses int) domain.Outcome {
	if st.WinnerID != nil {
		if *st.WinnerID == selfID {
			return domain.Win
		}
		return domain.Lose
	}
	if st.Finished {
		return domain.Draw
	}
	switch {
	case wins > losses:
		return domain.Win
	case losses > wins:
		return domain.Lose
	}
	return domain.Draw
}
