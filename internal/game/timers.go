package game

import (
	"rps_arena/internal/domain"
	"rps_arena/internal/logger"
)

// armRoundTimer (re)starts the timeout of the current round. Callers hold m.mu.
func (e *Engine) armRoundTimer(m *match) {
	if e.cfg.RoundTimeout <= 0 {
		return
	}
	if m.roundTimer != nil {
		m.roundTimer.Stop()
	}
	m.roundGen++
	gen, round := m.roundGen, m.session.CurrentRound()
	m.roundTimer = e.clock.AfterFunc(e.cfg.RoundTimeout, func() {
		e.onRoundTimeout(m, gen, round)
	})
}

// onRoundTimeout forfeits a player who never moved. If nobody moved the
// match is abandoned and both bets are refunded.
func (e *Engine) onRoundTimeout(m *match, gen uint64, round int) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if gen != m.roundGen || m.session.Finished() || m.session.CurrentRound() != round {
		return
	}
	m.roundTimer = nil

	moved := [2]bool{m.pending[0] != "", m.pending[1] != ""}
	log := logger.ForMatch(m.session.ID)
	now := e.clock.Now()

	switch {
	case moved[0] && !moved[1]:
		log.Info("round timed out", "round", round, "absent", m.session.Players[1].ID)
		m.session.Finish(0, domain.ReasonForfeit, now)
	case moved[1] && !moved[0]:
		log.Info("round timed out", "round", round, "absent", m.session.Players[0].ID)
		m.session.Finish(1, domain.ReasonForfeit, now)
	default:
		log.Info("round timed out with no moves", "round", round)
		m.session.Finish(-1, domain.ReasonTimeout, now)
	}
	e.finalize(m)
}

// PlayerDisconnected starts the reconnect grace period for playerID's
// active match. When it lapses the opponent wins by forfeit.
func (e *Engine) PlayerDisconnected(playerID int64) {
	m, ok := e.lookupByPlayer(playerID)
	if !ok {
		return
	}
	m.mu.Lock()
	defer m.mu.Unlock()

	seat, ok := m.session.Seat(playerID)
	if !ok || m.session.Finished() {
		return
	}
	e.armGrace(m, seat)
}

// PlayerConnected cancels a pending grace period for playerID.
func (e *Engine) PlayerConnected(playerID int64) {
	m, ok := e.lookupByPlayer(playerID)
	if !ok {
		return
	}
	m.mu.Lock()
	defer m.mu.Unlock()

	seat, ok := m.session.Seat(playerID)
	if !ok || !m.disconnected[seat] {
		return
	}
	m.disconnected[seat] = false
	m.graceGen[seat]++
	if m.graceTimers[seat] != nil {
		m.graceTimers[seat].Stop()
		m.graceTimers[seat] = nil
	}
	logger.ForMatch(m.session.ID).Info("player reconnected", "player_id", playerID)
}

// armGrace marks seat disconnected and starts its grace timer. Callers hold m.mu.
func (e *Engine) armGrace(m *match, seat int) {
	m.disconnected[seat] = true
	m.graceGen[seat]++
	if m.graceTimers[seat] != nil {
		m.graceTimers[seat].Stop()
	}
	gen := m.graceGen[seat]
	m.graceTimers[seat] = e.clock.AfterFunc(e.cfg.DisconnectGrace, func() {
		e.onGraceExpired(m, seat, gen)
	})
	logger.ForMatch(m.session.ID).Info("player disconnected",
		"player_id", m.session.Players[seat].ID,
		"grace", e.cfg.DisconnectGrace,
	)
}

func (e *Engine) onGraceExpired(m *match, seat int, gen uint64) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if gen != m.graceGen[seat] || !m.disconnected[seat] || m.session.Finished() {
		return
	}
	m.graceTimers[seat] = nil

	log := logger.ForMatch(m.session.ID)
	now := e.clock.Now()
	if m.disconnected[1-seat] {
		log.Info("both players gone", "round", m.session.CurrentRound())
		m.session.Finish(-1, domain.ReasonTimeout, now)
	} else {
		log.Info("grace expired, opponent wins by forfeit",
			"player_id", m.session.Players[seat].ID,
			"round", m.session.CurrentRound(),
		)
		m.session.Finish(1-seat, domain.ReasonForfeit, now)
	}
	e.finalize(m)
}
