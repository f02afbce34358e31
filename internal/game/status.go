package game

import (
	"rps_arena/internal/domain"
	"rps_arena/internal/protocol"
)

// Status answers the session-resume query for playerID. It returns nil when
// the player has no match the engine still remembers.
func (e *Engine) Status(playerID int64) *protocol.SessionStatus {
	m, ok := e.lookupByPlayer(playerID)
	if !ok {
		return nil
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	return statusFor(m, playerID)
}

// StatusByMatch is Status for a known match id.
func (e *Engine) StatusByMatch(matchID string, playerID int64) (*protocol.SessionStatus, error) {
	m, ok := e.lookup(matchID)
	if !ok {
		return nil, domain.ErrUnknownMatch
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	st := statusFor(m, playerID)
	if st == nil {
		return nil, domain.ErrNotParticipant
	}
	return st, nil
}

func statusFor(m *match, playerID int64) *protocol.SessionStatus {
	s := m.session
	seat, ok := s.Seat(playerID)
	if !ok {
		return nil
	}

	log := make([]protocol.RoundLogEntry, 0, len(s.Rounds))
	var wins, losses int
	for _, r := range s.Rounds {
		outcome := r.OutcomeFor(seat)
		switch outcome {
		case domain.Win:
			wins++
		case domain.Lose:
			losses++
		}
		log = append(log, protocol.RoundLogEntry{
			Round:          r.Index,
			YourChoice:     r.Moves[seat],
			OpponentChoice: r.Moves[1-seat],
			Outcome:        outcome,
		})
	}

	return &protocol.SessionStatus{
		MatchID:       s.ID,
		Mode:          s.Mode,
		Bet:           s.Bet,
		Role:          domain.RoleOf(seat),
		Opponent:      s.Opponent(seat),
		RoundsPlayed:  len(s.Rounds),
		WinCount:      wins,
		LossCount:     losses,
		RoundLog:      log,
		MoveSubmitted: m.pending[seat] != "",
		Finished:      s.Finished(),
		WinnerID:      s.WinnerID,
		Reason:        s.Reason,
	}
}
