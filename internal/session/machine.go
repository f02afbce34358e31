package session

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"rps_arena/internal/domain"
	"rps_arena/internal/logger"
	"rps_arena/internal/protocol"
)

// Conn is the connection object owned by the session layer.
type Conn interface {
	// Send transmits one command to the server.
	Send(ctx context.Context, ev protocol.Event) error
	// SessionStatus asks the engine for the authenticated player's match.
	// A nil status means there is none.
	SessionStatus(ctx context.Context) (*protocol.SessionStatus, error)
}

// ErrBusy rejects a search while the player is already searching or playing.
var ErrBusy = errors.New("session is busy")

// Machine is the session state machine of one player.
type Machine struct {
	self domain.Player
	conn Conn
	bus  *Bus

	mu      sync.Mutex
	view    View
	version uint64
	changed chan struct{}
	subs    []*Subscription
	resume  bool
}

type Option func(*Machine)

// WithAutoResume makes the machine query session status every time the
// transport reports ready, i.e. after each (re)connect.
func WithAutoResume() Option {
	return func(m *Machine) { m.resume = true }
}

func NewMachine(self domain.Player, conn Conn, bus *Bus, opts ...Option) *Machine {
	m := &Machine{
		self:    self,
		conn:    conn,
		bus:     bus,
		view:    View{Phase: domain.PhaseIdle},
		changed: make(chan struct{}),
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// Attach registers the machine's handlers on its bus. Attaching twice does
// not register twice.
func (m *Machine) Attach() {
	m.mu.Lock()
	defer m.mu.Unlock()
	if len(m.subs) > 0 {
		return
	}
	handlers := map[string]Handler{
		protocol.MsgQueued:           m.onQueued,
		protocol.MsgPrivateCreated:   m.onRoomCreated,
		protocol.MsgPrivateExpired:   m.onRoomExpired,
		protocol.MsgSearchCancelled:  m.onSearchCancelled,
		protocol.MsgMatchFound:       m.onMatchFound,
		protocol.MsgOpponentMadeMove: m.onOpponentMoved,
		protocol.MsgRoundResult:      m.onRoundResult,
		protocol.MsgNextRound:        m.onNextRound,
		protocol.MsgMatchOver:        m.onMatchOver,
		protocol.MsgOpponentLeft:     m.onOpponentLeft,
		protocol.MsgError:            m.onError,
	}
	if m.resume {
		handlers[protocol.MsgReady] = m.onReady
	}
	for typ, h := range handlers {
		m.subs = append(m.subs, m.bus.Subscribe(typ, h))
	}
}

// Detach removes every handler registered by Attach.
func (m *Machine) Detach() {
	m.mu.Lock()
	subs := m.subs
	m.subs = nil
	m.mu.Unlock()
	for _, s := range subs {
		s.Unsubscribe()
	}
}

// View returns a copy of the current state.
func (m *Machine) View() View {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.view.clone()
}

// Await blocks until cond holds for the current view or ctx is done.
func (m *Machine) Await(ctx context.Context, cond func(View) bool) (View, error) {
	for {
		m.mu.Lock()
		v, ch := m.view.clone(), m.changed
		m.mu.Unlock()
		if cond(v) {
			return v, nil
		}
		select {
		case <-ch:
		case <-ctx.Done():
			return v, ctx.Err()
		}
	}
}

// commitLocked publishes a state change to Await callers. m.mu must be held.
func (m *Machine) commitLocked() {
	m.view.step()
	m.version++
	close(m.changed)
	m.changed = make(chan struct{})
}

// Enqueue joins the public queue.
func (m *Machine) Enqueue(ctx context.Context, bet int64) error {
	return m.search(ctx, protocol.Event{
		Type:    protocol.MsgJoinQueue,
		Payload: protocol.SearchRequest{PlayerID: m.self.ID, Name: m.self.Name, Bet: bet},
	})
}

// CreateRoom asks for a private room code.
func (m *Machine) CreateRoom(ctx context.Context, bet int64) error {
	return m.search(ctx, protocol.Event{
		Type:    protocol.MsgCreatePrivate,
		Payload: protocol.SearchRequest{PlayerID: m.self.ID, Name: m.self.Name, Bet: bet},
	})
}

// JoinRoom joins a friend's private room.
func (m *Machine) JoinRoom(ctx context.Context, code string) error {
	return m.search(ctx, protocol.Event{
		Type:    protocol.MsgJoinPrivate,
		Payload: protocol.JoinPrivateRequest{PlayerID: m.self.ID, Name: m.self.Name, RoomCode: code},
	})
}

// PlayComputer starts a match against the house.
func (m *Machine) PlayComputer(ctx context.Context, bet int64) error {
	return m.search(ctx, protocol.Event{
		Type:    protocol.MsgPlayComputer,
		Payload: protocol.SearchRequest{PlayerID: m.self.ID, Name: m.self.Name, Bet: bet},
	})
}

func (m *Machine) search(ctx context.Context, ev protocol.Event) error {
	m.mu.Lock()
	if m.view.Phase != domain.PhaseIdle && !m.view.Phase.Terminal() {
		m.mu.Unlock()
		return fmt.Errorf("%s: %w (phase %s)", ev.Type, ErrBusy, m.view.Phase)
	}
	m.view = View{Phase: domain.PhaseSearching}
	m.commitLocked()
	m.mu.Unlock()

	if err := m.conn.Send(ctx, ev); err != nil {
		m.mu.Lock()
		if m.view.Phase == domain.PhaseSearching {
			m.view = View{Phase: domain.PhaseIdle, LastError: err}
			m.commitLocked()
		}
		m.mu.Unlock()
		return err
	}
	return nil
}

// Cancel leaves the queue or closes the hosted room. The phase changes when
// the server confirms.
func (m *Machine) Cancel(ctx context.Context) error {
	m.mu.Lock()
	phase := m.view.Phase
	m.mu.Unlock()
	if phase != domain.PhaseSearching {
		return domain.ErrNotSearching
	}
	return m.conn.Send(ctx, protocol.Event{Type: protocol.MsgCancelSearch})
}

// SubmitMove sends the local choice for the current round. The choice is
// kept as intent until the round result arrives; a second call in the same
// round returns domain.ErrDuplicateMove without sending anything.
func (m *Machine) SubmitMove(ctx context.Context, choice domain.Choice) error {
	if !choice.Valid() {
		return domain.ErrInvalidChoice
	}

	m.mu.Lock()
	if m.view.Phase != domain.PhaseActive {
		m.mu.Unlock()
		return domain.ErrMatchOver
	}
	if m.view.MoveSent {
		m.mu.Unlock()
		return domain.ErrDuplicateMove
	}
	matchID, round := m.view.MatchID, m.view.Round
	m.view.Intent, m.view.MoveSent = choice, true
	m.commitLocked()
	m.mu.Unlock()

	err := m.conn.Send(ctx, protocol.Event{
		Type:    protocol.MsgMakeMove,
		Payload: protocol.MoveRequest{MatchID: matchID, Choice: string(choice), Round: round},
	})
	if err != nil {
		m.mu.Lock()
		if m.view.MatchID == matchID && m.view.Round == round && m.view.Phase == domain.PhaseActive {
			m.view.Intent, m.view.MoveSent = "", false
			m.commitLocked()
		}
		m.mu.Unlock()
	}
	return err
}

// Surrender asks the server to forfeit the match. The machine becomes
// ABANDONED once the server's matchOver arrives.
func (m *Machine) Surrender(ctx context.Context) error {
	m.mu.Lock()
	phase, matchID := m.view.Phase, m.view.MatchID
	m.mu.Unlock()

	switch {
	case phase.Terminal():
		return domain.ErrMatchOver
	case phase == domain.PhaseSearching:
		return m.Cancel(ctx)
	case matchID == "":
		return domain.ErrUnknownMatch
	}
	return m.conn.Send(ctx, protocol.Event{
		Type:    protocol.MsgSurrender,
		Payload: protocol.SurrenderRequest{MatchID: matchID},
	})
}

// Resume replaces local state with the engine's view of the player's match.
// Without a match the machine goes to IDLE. Nothing is sent to the server,
// so it is safe to call on every reconnect. A reply that arrives after
// events already changed the view is dropped.
func (m *Machine) Resume(ctx context.Context) (View, error) {
	for attempt := 1; ; attempt++ {
		m.mu.Lock()
		seen := m.version
		m.mu.Unlock()

		st, err := m.conn.SessionStatus(ctx)
		if err != nil && !errors.Is(err, domain.ErrUnknownMatch) {
			return m.View(), fmt.Errorf("session status: %w", err)
		}

		m.mu.Lock()
		if m.version == seen {
			v := m.applyStatusLocked(st)
			m.mu.Unlock()
			return v, nil
		}
		v := m.view.clone()
		m.mu.Unlock()
		logger.Debug("stale session status dropped", "player_id", m.self.ID, "phase", v.Phase, "attempt", attempt)
		if v.Phase.Terminal() || attempt >= resumeAttempts {
			return v, nil
		}
	}
}

const resumeAttempts = 3

func (m *Machine) applyStatusLocked(st *protocol.SessionStatus) View {
	if st == nil {
		if m.view.Phase != domain.PhaseIdle {
			logger.Info("no session on server, resetting", "player_id", m.self.ID, "phase", m.view.Phase)
		}
		m.view = View{Phase: domain.PhaseIdle}
	} else {
		m.view = Reconstruct(m.self.ID, *st)
		logger.Info("session resumed", "player_id", m.self.ID, "match_id", st.MatchID,
			"phase", m.view.Phase, "round", m.view.Round)
	}
	m.commitLocked()
	return m.view.clone()
}

func (m *Machine) onReady(protocol.Envelope) {
	go m.resync("reconnect")
}

func (m *Machine) resync(cause string) {
	if _, err := m.Resume(context.Background()); err != nil {
		logger.Warn("resume failed", "player_id", m.self.ID, "cause", cause, "error", err)
	}
}

func (m *Machine) onQueued(env protocol.Envelope) {
	var p protocol.QueuedPayload
	if env.Bind(&p) != nil {
		return
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.view.Phase == domain.PhaseSearching {
		m.view.Bet = p.Bet
		m.commitLocked()
	}
}

func (m *Machine) onRoomCreated(env protocol.Envelope) {
	var p protocol.PrivateRoomCreatedPayload
	if env.Bind(&p) != nil {
		return
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.view.Phase == domain.PhaseSearching {
		m.view.RoomCode, m.view.RoomExpiresAt, m.view.Bet = p.RoomCode, p.ExpiresAt, p.Bet
		m.commitLocked()
	}
}

func (m *Machine) onRoomExpired(env protocol.Envelope) {
	var p protocol.PrivateRoomExpiredPayload
	if env.Bind(&p) != nil {
		return
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.view.Phase == domain.PhaseSearching && m.view.RoomCode == p.RoomCode {
		m.view = View{Phase: domain.PhaseIdle, LastError: domain.ErrInvalidRoomCode}
		m.commitLocked()
	}
}

func (m *Machine) onSearchCancelled(protocol.Envelope) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.view.Phase == domain.PhaseSearching {
		m.view = View{Phase: domain.PhaseIdle}
		m.commitLocked()
	}
}

func (m *Machine) onMatchFound(env protocol.Envelope) {
	var p protocol.MatchFoundPayload
	if env.Bind(&p) != nil {
		return
	}
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.view.MatchID == p.MatchID {
		return
	}
	if m.view.Phase != domain.PhaseSearching && m.view.Phase != domain.PhaseIdle && !m.view.Phase.Terminal() {
		logger.Warn("matchFound while busy", "player_id", m.self.ID, "match_id", p.MatchID, "phase", m.view.Phase)
		return
	}

	role, opponent := domain.RoleFirst, p.Second
	if p.Second.ID == m.self.ID {
		role, opponent = domain.RoleSecond, p.First
	}
	m.view = View{
		Phase:    domain.PhaseMatched,
		MatchID:  p.MatchID,
		Mode:     p.Mode,
		Bet:      p.Bet,
		Role:     role,
		Opponent: opponent,
	}
	m.commitLocked()

	// MATCHED moves straight on to the first round.
	m.view.Phase, m.view.Round = domain.PhaseActive, 1
	m.commitLocked()
}

func (m *Machine) onOpponentMoved(env protocol.Envelope) {
	var p protocol.OpponentMovedPayload
	if env.Bind(&p) != nil {
		return
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if !m.current(p.MatchID) || (p.Round != 0 && p.Round != m.view.Round) {
		return
	}
	m.view.OpponentMoved = true
	m.commitLocked()
}

func (m *Machine) onRoundResult(env protocol.Envelope) {
	var p protocol.RoundResultPayload
	if env.Bind(&p) != nil {
		return
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if !m.current(p.MatchID) || m.view.Phase != domain.PhaseActive {
		return
	}
	if p.Round < m.view.Round {
		// already applied
		return
	}

	seat := m.view.Seat()
	mine, theirs := p.FirstChoice, p.SecondChoice
	if seat == 1 {
		mine, theirs = theirs, mine
	}
	m.view.Log = append(m.view.Log, protocol.RoundLogEntry{
		Round:          p.Round,
		YourChoice:     mine,
		OpponentChoice: theirs,
		Outcome:        domain.Resolve(mine, theirs),
	})
	m.view.Wins, m.view.Losses = p.Scores.Seat(seat), p.Scores.Seat(1-seat)
	m.view.Intent, m.view.MoveSent, m.view.OpponentMoved = "", false, false

	if m.view.Wins >= domain.WinThreshold || m.view.Losses >= domain.WinThreshold || p.Round >= domain.RoundCap {
		m.view.Phase = domain.PhaseSettled
		m.view.Round = p.Round
		m.view.Outcome = domain.Draw
		switch {
		case m.view.Wins > m.view.Losses:
			m.view.Outcome = domain.Win
		case m.view.Losses > m.view.Wins:
			m.view.Outcome = domain.Lose
		}
	} else {
		m.view.Round = p.Round + 1
	}
	m.commitLocked()
}

func (m *Machine) onNextRound(env protocol.Envelope) {
	var p protocol.NextRoundPayload
	if env.Bind(&p) != nil {
		return
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if !m.current(p.MatchID) || m.view.Phase != domain.PhaseActive || p.RoundIndex <= m.view.Round {
		return
	}
	m.view.Round = p.RoundIndex
	m.view.Intent, m.view.MoveSent, m.view.OpponentMoved = "", false, false
	m.commitLocked()
}

func (m *Machine) onMatchOver(env protocol.Envelope) {
	var p protocol.MatchOverPayload
	if env.Bind(&p) != nil {
		return
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if !m.current(p.MatchID) || m.view.Reason != "" {
		return
	}

	seat := m.view.Seat()
	m.view.Wins, m.view.Losses = p.Scores.Seat(seat), p.Scores.Seat(1-seat)
	m.view.Reason = p.Reason
	m.view.Outcome = domain.Draw
	m.view.Payout = 0
	if p.WinnerID != nil {
		m.view.Outcome = domain.Lose
		if *p.WinnerID == m.self.ID {
			m.view.Outcome = domain.Win
			m.view.Payout = p.Payout
		}
	}
	m.view.Phase = domain.PhaseSettled
	if p.Reason.Forfeited() {
		m.view.Phase = domain.PhaseAbandoned
	}
	m.view.Intent, m.view.MoveSent, m.view.OpponentMoved = "", false, false
	m.commitLocked()
}

func (m *Machine) onOpponentLeft(env protocol.Envelope) {
	var p protocol.OpponentLeftPayload
	if env.Bind(&p) != nil {
		return
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if !m.current(p.MatchID) || m.view.Phase == domain.PhaseSettled {
		return
	}
	m.view.Phase = domain.PhaseAbandoned
	m.view.Outcome = domain.Win
	m.view.Payout = p.Payout
	m.view.LastError = domain.ErrOpponentDisconnected
	m.commitLocked()
}

func (m *Machine) onError(env protocol.Envelope) {
	var p protocol.ErrorPayload
	if env.Bind(&p) != nil {
		return
	}
	err := protocol.ErrFromCode(p.Code)

	m.mu.Lock()
	defer m.mu.Unlock()
	m.view.LastError = err

	switch m.view.Phase {
	case domain.PhaseSearching:
		if !errors.Is(err, domain.ErrNotSearching) {
			m.view = View{Phase: domain.PhaseIdle, LastError: err}
		}
	case domain.PhaseMatched, domain.PhaseActive:
		switch {
		case errors.Is(err, domain.ErrUnknownMatch):
			logger.Info("server lost the match, resetting", "player_id", m.self.ID, "match_id", m.view.MatchID)
			m.view = View{Phase: domain.PhaseIdle, LastError: err}
		case errors.Is(err, domain.ErrMatchOver):
			// the result events are still in flight or were lost
			m.view.Intent, m.view.MoveSent = "", false
			go m.resync("match over")
		case errors.Is(err, domain.ErrInvalidChoice):
			m.view.Intent, m.view.MoveSent = "", false
		}
	}
	m.commitLocked()
}

// current reports whether matchID is the match this machine is tracking.
func (m *Machine) current(matchID string) bool {
	return matchID != "" && matchID == m.view.MatchID
}
