package game

import (
	"context"
	"sync"

	"rps_arena/internal/domain"
	"rps_arena/internal/economy"
	"rps_arena/internal/logger"
	"rps_arena/internal/metrics"
	"rps_arena/internal/protocol"

	"github.com/jonboulle/clockwork"
)

// match is the engine-private state of one MatchSession. Every field is
// guarded by mu.
type match struct {
	mu      sync.Mutex
	session *domain.MatchSession
	pending [2]domain.Choice
	settled bool

	roundTimer clockwork.Timer
	roundGen   uint64

	graceTimers  [2]clockwork.Timer
	graceGen     [2]uint64
	disconnected [2]bool
}

func newMatch(s *domain.MatchSession) *match {
	return &match{session: s}
}

func (m *match) snapshot() *domain.MatchSnapshot {
	s := *m.session
	s.Rounds = append([]domain.Round(nil), m.session.Rounds...)
	return &domain.MatchSnapshot{Session: s, Pending: m.pending, Settled: m.settled}
}

func (m *match) houseSeat() int {
	for i, p := range m.session.Players {
		if domain.IsHouse(p.ID) {
			return i
		}
	}
	return -1
}

func (m *match) stopTimers() {
	m.roundGen++
	if m.roundTimer != nil {
		m.roundTimer.Stop()
		m.roundTimer = nil
	}
	for seat := range m.graceTimers {
		m.graceGen[seat]++
		if m.graceTimers[seat] != nil {
			m.graceTimers[seat].Stop()
			m.graceTimers[seat] = nil
		}
	}
}

// openRound arms the timer for the current round and lets the house pick
// its hidden move. Callers hold m.mu.
func (e *Engine) openRound(m *match) {
	e.armRoundTimer(m)

	seat := m.houseSeat()
	if seat < 0 || m.pending[seat] != "" {
		e.persist(m)
		return
	}
	m.pending[seat] = e.pickMove()
	e.persist(m)
	e.notify(m.session.Opponent(seat).ID, protocol.Event{
		Type:    protocol.MsgOpponentMadeMove,
		Payload: protocol.OpponentMovedPayload{MatchID: m.session.ID, Round: m.session.CurrentRound()},
	})
}

// resolve appends the round made of both pending moves and emits its result.
// Callers hold m.mu and guarantee both moves are present.
func (e *Engine) resolve(m *match) {
	s := m.session
	index := s.CurrentRound()
	round := domain.NewRound(index, m.pending[0], m.pending[1], e.clock.Now())

	done, err := s.AppendRound(round)
	if err != nil {
		// unreachable while SubmitMove holds the lock and checks the index
		logger.ForMatch(s.ID).Error("append round", "round", index, "error", err)
		return
	}
	m.pending = [2]domain.Choice{}
	metrics.RoundsResolved.Inc()

	scores := s.Scores()
	logger.ForMatch(s.ID).Info("round resolved",
		"round", index,
		"first", round.Moves[0],
		"second", round.Moves[1],
		"outcome", round.Outcome,
		"score_first", scores[0],
		"score_second", scores[1],
	)

	e.broadcast(m, protocol.Event{
		Type: protocol.MsgRoundResult,
		Payload: protocol.RoundResultPayload{
			MatchID:      s.ID,
			Round:        index,
			FirstChoice:  round.Moves[0],
			SecondChoice: round.Moves[1],
			Scores:       protocol.ScorePairOf(scores),
			Winner:       protocol.WinnerLabel(round.WinnerSeat()),
		},
	})

	if done {
		e.finalize(m)
		return
	}

	e.broadcast(m, protocol.Event{
		Type:    protocol.MsgNextRound,
		Payload: protocol.NextRoundPayload{MatchID: s.ID, RoundIndex: s.CurrentRound()},
	})
	e.openRound(m)
}

// finalize settles a match that has just become terminal, emits its end
// events and hands it to the archiver. Callers hold m.mu.
func (e *Engine) finalize(m *match) {
	s := m.session
	m.stopTimers()
	m.pending = [2]domain.Choice{}

	e.settle(m)
	e.persist(m)

	winnerSeat := -1
	if s.WinnerID != nil {
		winnerSeat, _ = s.Seat(*s.WinnerID)
	}
	payout := int64(0)
	if winnerSeat >= 0 {
		payout = s.Pot()
	}

	if s.Reason.Forfeited() && winnerSeat >= 0 {
		e.notify(s.Players[winnerSeat].ID, protocol.Event{
			Type:    protocol.MsgOpponentLeft,
			Payload: protocol.OpponentLeftPayload{MatchID: s.ID, Payout: payout},
		})
	}
	e.broadcast(m, protocol.Event{
		Type: protocol.MsgMatchOver,
		Payload: protocol.MatchOverPayload{
			MatchID:  s.ID,
			Winner:   protocol.WinnerLabel(winnerSeat),
			WinnerID: s.WinnerID,
			Reason:   s.Reason,
			Scores:   protocol.ScorePairOf(s.Scores()),
			Payout:   payout,
		},
	})

	metrics.MatchesFinished.WithLabelValues(string(s.Reason)).Inc()
	logger.ForMatch(s.ID).Info("match over",
		"reason", s.Reason,
		"winner", protocol.WinnerLabel(winnerSeat),
		"rounds", len(s.Rounds),
		"payout", payout,
	)

	if e.archiver != nil {
		archived := *m.snapshot()
		go func(ms domain.MatchSession) {
			ctx, cancel := context.WithTimeout(context.Background(), ioTimeout)
			defer cancel()
			if err := e.archiver.Archive(ctx, &ms); err != nil {
				logger.ForMatch(ms.ID).Error("archive match", "error", err)
			}
		}(archived.Session)
	}
}

// settle moves the pot exactly once. A failed settlement leaves settled false
// so the janitor can retry it. Callers hold m.mu.
func (e *Engine) settle(m *match) {
	if m.settled {
		return
	}
	s := m.session

	winnerID, amount := economy.NoWinner, int64(0)
	if s.WinnerID != nil {
		winnerID, amount = *s.WinnerID, s.Pot()
	}

	ctx, cancel := context.WithTimeout(context.Background(), ioTimeout)
	defer cancel()
	if err := e.gateway.Settle(ctx, s.ID, winnerID, amount); err != nil {
		metrics.Settlements.WithLabelValues("error").Inc()
		logger.ForMatch(s.ID).Error("settle match", "winner_id", winnerID, "amount", amount, "error", err)
		return
	}
	m.settled = true

	result := "payout"
	switch {
	case winnerID == economy.NoWinner:
		result = "refund"
	case domain.IsHouse(winnerID):
		result = "house"
	}
	metrics.Settlements.WithLabelValues(result).Inc()
}
