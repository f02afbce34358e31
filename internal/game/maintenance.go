package game

import (
	"context"
	"time"

	"rps_arena/internal/logger"
)

// EvictArchived forgets settled matches that ended more than the retention
// window before now. A later status query for their players returns nil.
func (e *Engine) EvictArchived(now time.Time) int {
	e.mu.Lock()
	defer e.mu.Unlock()

	evicted := 0
	for id, m := range e.matches {
		m.mu.Lock()
		s := m.session
		expired := s.Finished() && m.settled && s.EndedAt != nil && now.Sub(*s.EndedAt) >= e.cfg.ArchiveRetention
		m.mu.Unlock()
		if !expired {
			continue
		}

		delete(e.matches, id)
		for _, p := range s.Players {
			if e.byPlayer[p.ID] == id {
				delete(e.byPlayer, p.ID)
			}
		}
		if e.store != nil {
			ctx, cancel := context.WithTimeout(context.Background(), ioTimeout)
			if err := e.store.Delete(ctx, id); err != nil {
				logger.ForMatch(id).Warn("delete snapshot failed", "error", err)
			}
			cancel()
		}
		evicted++
	}
	if evicted > 0 {
		logger.Debug("evicted archived matches", "count", evicted)
	}
	return evicted
}

// RetrySettlements settles terminal matches whose settlement previously failed.
func (e *Engine) RetrySettlements(ctx context.Context) int {
	e.mu.RLock()
	all := make([]*match, 0, len(e.matches))
	for _, m := range e.matches {
		all = append(all, m)
	}
	e.mu.RUnlock()

	settled := 0
	for _, m := range all {
		if ctx.Err() != nil {
			break
		}
		m.mu.Lock()
		if m.session.Finished() && !m.settled {
			e.settle(m)
			if m.settled {
				settled++
				e.persist(m)
			}
		}
		m.mu.Unlock()
	}
	return settled
}

// Restore reloads unfinished matches from the session store after a restart.
// Bets are not escrowed again. Both players start disconnected and get the
// usual grace period to come back. Finished matches whose settlement failed
// are loaded as terminal so RetrySettlements can still pay them out.
func (e *Engine) Restore(ctx context.Context) (int, error) {
	if e.store == nil {
		return 0, nil
	}
	snaps, err := e.store.LoadAll(ctx)
	if err != nil {
		return 0, err
	}

	restored := 0
	for _, snap := range snaps {
		session := snap.Session
		if session.Finished() && snap.Settled {
			continue
		}
		if _, ok := e.lookup(session.ID); ok {
			continue
		}

		m := newMatch(&session)
		m.pending = snap.Pending
		m.settled = snap.Settled

		e.mu.Lock()
		e.matches[session.ID] = m
		for _, p := range session.Players {
			if _, taken := e.byPlayer[p.ID]; !taken || !session.Finished() {
				e.byPlayer[p.ID] = session.ID
			}
		}
		e.mu.Unlock()

		if session.Finished() {
			// terminal with a failed settlement: no timers, RetrySettlements pays it
			logger.ForMatch(session.ID).Info("unsettled match restored", "reason", session.Reason)
			restored++
			continue
		}

		m.mu.Lock()
		if m.pending[0] != "" && m.pending[1] != "" {
			e.resolve(m)
		} else {
			e.openRound(m)
		}
		if !m.session.Finished() {
			for seat := range session.Players {
				if m.houseSeat() != seat {
					e.armGrace(m, seat)
				}
			}
		}
		m.mu.Unlock()

		logger.ForMatch(session.ID).Info("match restored", "round", session.CurrentRound())
		restored++
	}
	return restored, nil
}
