package session

import (
	"context"
	"errors"
	"io"
	"sync"
	"testing"
	"time"

	"rps_arena/internal/domain"
	"rps_arena/internal/economy"
	"rps_arena/internal/game"
	"rps_arena/internal/logger"
	"rps_arena/internal/matchmaking"
	"rps_arena/internal/protocol"

	"github.com/jonboulle/clockwork"
)

func init() {
	logger.InitWriter(io.Discard, "error", false)
}

func publish(t *testing.T, bus *Bus, ev protocol.Event) {
	t.Helper()
	env, err := protocol.ToEnvelope(ev)
	if err != nil {
		t.Fatal(err)
	}
	bus.Publish(env)
}

// fakeConn records commands and answers status queries from a fixed value.
type fakeConn struct {
	mu     sync.Mutex
	sent   []protocol.Event
	status *protocol.SessionStatus
	err    error
}

func (f *fakeConn) Send(_ context.Context, ev protocol.Event) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.sent = append(f.sent, ev)
	return nil
}

func (f *fakeConn) SessionStatus(context.Context) (*protocol.SessionStatus, error) {
	return f.status, f.err
}

func (f *fakeConn) count() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.sent)
}

func newFake(t *testing.T, self int64) (*Machine, *Bus, *fakeConn) {
	t.Helper()
	bus := NewBus()
	conn := &fakeConn{}
	m := NewMachine(domain.Player{ID: self, Name: "me"}, conn, bus)
	m.Attach()
	t.Cleanup(m.Detach)
	return m, bus, conn
}

// activeIn drives a fake machine into round 1 of match m1 against player 2.
func activeIn(t *testing.T, m *Machine, bus *Bus) {
	t.Helper()
	if err := m.Enqueue(context.Background(), 50); err != nil {
		t.Fatal(err)
	}
	publish(t, bus, protocol.Event{Type: protocol.MsgMatchFound, Payload: protocol.MatchFoundPayload{
		MatchID: "m1", Mode: domain.ModePublic, Bet: 50,
		First:  domain.Player{ID: 1, Name: "me"},
		Second: domain.Player{ID: 2, Name: "them"},
	}})
}

func TestBusUnsubscribe(t *testing.T) {
	bus := NewBus()
	var a, b int
	subA := bus.Subscribe(protocol.MsgPong, func(protocol.Envelope) { a++ })
	bus.Subscribe(protocol.MsgPong, func(protocol.Envelope) { b++ })

	bus.Publish(protocol.Envelope{Type: protocol.MsgPong})
	subA.Unsubscribe()
	subA.Unsubscribe()
	bus.Publish(protocol.Envelope{Type: protocol.MsgPong})
	bus.Publish(protocol.Envelope{Type: protocol.MsgReady})

	if a != 1 || b != 2 {
		t.Fatalf("a=%d b=%d; want 1 and 2", a, b)
	}
	if bus.Len() != 1 {
		t.Fatalf("Len = %d; want 1", bus.Len())
	}
}

func TestAttachIsNotRepeated(t *testing.T) {
	bus := NewBus()
	m := NewMachine(domain.Player{ID: 1}, &fakeConn{}, bus)
	m.Attach()
	n := bus.Len()
	m.Attach()
	if bus.Len() != n {
		t.Fatalf("second Attach registered %d more handlers", bus.Len()-n)
	}
	m.Detach()
	if bus.Len() != 0 {
		t.Fatalf("Detach left %d handlers", bus.Len())
	}
}

func TestMatchFoundStartsRoundOne(t *testing.T) {
	m, bus, conn := newFake(t, 2)
	if err := m.Enqueue(context.Background(), 50); err != nil {
		t.Fatal(err)
	}
	if v := m.View(); v.Phase != domain.PhaseSearching {
		t.Fatalf("phase = %s; want SEARCHING", v.Phase)
	}
	if err := m.Enqueue(context.Background(), 50); !errors.Is(err, ErrBusy) {
		t.Fatalf("second enqueue = %v; want ErrBusy", err)
	}

	publish(t, bus, protocol.Event{Type: protocol.MsgMatchFound, Payload: protocol.MatchFoundPayload{
		MatchID: "m1", Mode: domain.ModePublic, Bet: 50,
		First:  domain.Player{ID: 1, Name: "them"},
		Second: domain.Player{ID: 2, Name: "me"},
	}})

	v := m.View()
	if v.Phase != domain.PhaseActive || v.Round != 1 || v.Step != StepAwaitingOwnMove {
		t.Fatalf("view = %+v", v)
	}
	if v.Role != domain.RoleSecond || v.Opponent.ID != 1 || v.Bet != 50 {
		t.Fatalf("role/opponent wrong: %+v", v)
	}
	if conn.count() != 1 {
		t.Fatalf("sent %d commands; want 1", conn.count())
	}
}

func TestLocalIntentIsNotScore(t *testing.T) {
	m, bus, conn := newFake(t, 1)
	activeIn(t, m, bus)
	ctx := context.Background()

	if err := m.SubmitMove(ctx, domain.Rock); err != nil {
		t.Fatal(err)
	}
	if err := m.SubmitMove(ctx, domain.Paper); !errors.Is(err, domain.ErrDuplicateMove) {
		t.Fatalf("second move = %v; want ErrDuplicateMove", err)
	}
	v := m.View()
	if v.Intent != domain.Rock || v.Step != StepAwaitingOpponent || v.Wins != 0 || len(v.Log) != 0 {
		t.Fatalf("view after move = %+v", v)
	}

	publish(t, bus, protocol.Event{Type: protocol.MsgOpponentMadeMove, Payload: protocol.OpponentMovedPayload{MatchID: "m1", Round: 1}})
	if v := m.View(); v.Step != StepBothSubmitted {
		t.Fatalf("step = %s; want BOTH_SUBMITTED", v.Step)
	}

	res := protocol.Event{Type: protocol.MsgRoundResult, Payload: protocol.RoundResultPayload{
		MatchID: "m1", Round: 1, FirstChoice: domain.Rock, SecondChoice: domain.Scissors,
		Scores: protocol.ScorePair{First: 1}, Winner: "first",
	}}
	publish(t, bus, res)
	publish(t, bus, res)

	v = m.View()
	if v.Wins != 1 || v.Round != 2 || len(v.Log) != 1 || v.Intent != "" || v.Step != StepAwaitingOwnMove {
		t.Fatalf("view after result = %+v", v)
	}
	if v.Log[0].Outcome != domain.Win || v.Log[0].OpponentChoice != domain.Scissors {
		t.Fatalf("log = %+v", v.Log)
	}
	// 1 search + 1 move; the duplicate never left the machine
	if conn.count() != 2 {
		t.Fatalf("sent %d commands; want 2", conn.count())
	}
}

func TestForeignMatchEventsIgnored(t *testing.T) {
	m, bus, _ := newFake(t, 1)
	activeIn(t, m, bus)

	publish(t, bus, protocol.Event{Type: protocol.MsgRoundResult, Payload: protocol.RoundResultPayload{
		MatchID: "other", Round: 1, FirstChoice: domain.Rock, SecondChoice: domain.Scissors,
		Scores: protocol.ScorePair{First: 1},
	}})
	publish(t, bus, protocol.Event{Type: protocol.MsgOpponentLeft, Payload: protocol.OpponentLeftPayload{MatchID: "other", Payout: 100}})

	if v := m.View(); v.Phase != domain.PhaseActive || len(v.Log) != 0 || v.MatchID != "m1" {
		t.Fatalf("foreign events changed the view: %+v", v)
	}
}

func TestOpponentLeftAbandons(t *testing.T) {
	m, bus, _ := newFake(t, 1)
	activeIn(t, m, bus)

	publish(t, bus, protocol.Event{Type: protocol.MsgOpponentLeft, Payload: protocol.OpponentLeftPayload{MatchID: "m1", Payout: 100}})
	winner := int64(1)
	publish(t, bus, protocol.Event{Type: protocol.MsgMatchOver, Payload: protocol.MatchOverPayload{
		MatchID: "m1", Winner: "first", WinnerID: &winner, Reason: domain.ReasonForfeit, Payout: 100,
	}})

	v := m.View()
	if v.Phase != domain.PhaseAbandoned || v.Outcome != domain.Win || v.Payout != 100 || v.Reason != domain.ReasonForfeit {
		t.Fatalf("view = %+v", v)
	}
	if err := m.SubmitMove(context.Background(), domain.Rock); !errors.Is(err, domain.ErrMatchOver) {
		t.Fatalf("move after abandon = %v", err)
	}
}

func TestSurrenderWaitsForServer(t *testing.T) {
	m, bus, conn := newFake(t, 1)
	activeIn(t, m, bus)

	if err := m.Surrender(context.Background()); err != nil {
		t.Fatal(err)
	}
	if v := m.View(); v.Phase != domain.PhaseActive {
		t.Fatalf("phase = %s before confirmation; want ACTIVE", v.Phase)
	}
	last := conn.sent[len(conn.sent)-1]
	if last.Type != protocol.MsgSurrender || last.Payload.(protocol.SurrenderRequest).MatchID != "m1" {
		t.Fatalf("last command = %+v", last)
	}

	winner := int64(2)
	publish(t, bus, protocol.Event{Type: protocol.MsgMatchOver, Payload: protocol.MatchOverPayload{
		MatchID: "m1", Winner: "second", WinnerID: &winner, Reason: domain.ReasonSurrender, Payout: 100,
	}})
	v := m.View()
	if v.Phase != domain.PhaseAbandoned || v.Outcome != domain.Lose || v.Payout != 0 {
		t.Fatalf("view = %+v", v)
	}
}

func TestPrivateRoomExpiryReturnsToIdle(t *testing.T) {
	m, bus, _ := newFake(t, 1)
	if err := m.CreateRoom(context.Background(), 50); err != nil {
		t.Fatal(err)
	}
	publish(t, bus, protocol.Event{Type: protocol.MsgPrivateCreated, Payload: protocol.PrivateRoomCreatedPayload{RoomCode: "7TXQ", Bet: 50}})
	if v := m.View(); v.RoomCode != "7TXQ" {
		t.Fatalf("room code = %q", v.RoomCode)
	}

	publish(t, bus, protocol.Event{Type: protocol.MsgPrivateExpired, Payload: protocol.PrivateRoomExpiredPayload{RoomCode: "7TXQ"}})
	v := m.View()
	if v.Phase != domain.PhaseIdle || !errors.Is(v.LastError, domain.ErrInvalidRoomCode) {
		t.Fatalf("view = %+v", v)
	}
}

func TestErrorsReturnToIdle(t *testing.T) {
	cases := []struct {
		name  string
		setup func(*testing.T, *Machine, *Bus)
		code  string
		want  error
	}{
		{
			name:  "bad room code",
			setup: func(t *testing.T, m *Machine, _ *Bus) { _ = m.JoinRoom(context.Background(), "ZZZZ") },
			code:  protocol.CodeInvalidRoomCode,
			want:  domain.ErrInvalidRoomCode,
		},
		{
			name:  "cannot pay",
			setup: func(t *testing.T, m *Machine, _ *Bus) { _ = m.Enqueue(context.Background(), 500) },
			code:  protocol.CodeInsufficientFunds,
			want:  domain.ErrInsufficientFunds,
		},
		{
			name:  "match lost by server",
			setup: activeIn,
			code:  protocol.CodeUnknownMatch,
			want:  domain.ErrUnknownMatch,
		},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			m, bus, _ := newFake(t, 1)
			tc.setup(t, m, bus)
			publish(t, bus, protocol.Fail(tc.code, "nope"))
			v := m.View()
			if v.Phase != domain.PhaseIdle || !errors.Is(v.LastError, tc.want) {
				t.Fatalf("view = %+v; want IDLE with %v", v, tc.want)
			}
		})
	}
}

func TestResumeMidMatch(t *testing.T) {
	m, _, conn := newFake(t, 1)
	conn.status = &protocol.SessionStatus{
		MatchID:      "m9",
		Mode:         domain.ModePublic,
		Bet:          50,
		Role:         domain.RoleFirst,
		Opponent:     domain.Player{ID: 2, Name: "them"},
		RoundsPlayed: 2,
		WinCount:     1,
		LossCount:    1,
	}

	for i := 0; i < 3; i++ {
		v, err := m.Resume(context.Background())
		if err != nil {
			t.Fatal(err)
		}
		if v.Phase != domain.PhaseActive || v.Round != 3 || v.Wins != 1 || v.Losses != 1 || v.MatchID != "m9" {
			t.Fatalf("resume %d: view = %+v", i, v)
		}
	}
	if conn.count() != 0 {
		t.Fatalf("resume sent %d commands; want none", conn.count())
	}
}

func TestResumeWithoutMatchGoesIdle(t *testing.T) {
	m, bus, conn := newFake(t, 1)
	activeIn(t, m, bus)

	conn.err = domain.ErrUnknownMatch
	v, err := m.Resume(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	if v.Phase != domain.PhaseIdle {
		t.Fatalf("phase = %s; want IDLE", v.Phase)
	}

	conn.err = errors.New("connection refused")
	activeIn(t, m, bus)
	if _, err := m.Resume(context.Background()); err == nil {
		t.Fatalf("expected transport error")
	}
	if m.View().Phase != domain.PhaseActive {
		t.Fatalf("transport failure must not reset the session")
	}
}

// slowConn answers status queries with a snapshot taken before release closes.
type slowConn struct {
	fakeConn
	entered chan struct{}
	release chan struct{}
}

func (c *slowConn) SessionStatus(ctx context.Context) (*protocol.SessionStatus, error) {
	st := c.status
	close(c.entered)
	select {
	case <-c.release:
	case <-ctx.Done():
		return nil, ctx.Err()
	}
	return st, nil
}

func roundResult(round, wins int) protocol.Event {
	return protocol.Event{Type: protocol.MsgRoundResult, Payload: protocol.RoundResultPayload{
		MatchID: "m1", Round: round, FirstChoice: domain.Rock, SecondChoice: domain.Scissors,
		Scores: protocol.ScorePair{First: wins}, Winner: "first",
	}}
}

func TestLateStatusDoesNotRewindView(t *testing.T) {
	bus := NewBus()
	conn := &slowConn{entered: make(chan struct{}), release: make(chan struct{})}
	m := NewMachine(domain.Player{ID: 1, Name: "me"}, conn, bus)
	m.Attach()
	t.Cleanup(m.Detach)

	activeIn(t, m, bus)
	publish(t, bus, roundResult(1, 1))
	publish(t, bus, roundResult(2, 2))
	conn.status = &protocol.SessionStatus{
		MatchID: "m1", Mode: domain.ModePublic, Bet: 50, Role: domain.RoleFirst,
		Opponent: domain.Player{ID: 2, Name: "them"}, RoundsPlayed: 2, WinCount: 2,
	}

	done := make(chan View, 1)
	go func() {
		v, err := m.Resume(context.Background())
		if err != nil {
			t.Error(err)
		}
		done <- v
	}()
	<-conn.entered

	winner := int64(1)
	publish(t, bus, roundResult(3, 3))
	publish(t, bus, protocol.Event{Type: protocol.MsgMatchOver, Payload: protocol.MatchOverPayload{
		MatchID: "m1", Winner: "first", WinnerID: &winner, Reason: domain.ReasonScore,
		Scores: protocol.ScorePair{First: 3}, Payout: 100,
	}})
	close(conn.release)

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("resume did not return")
	}
	v := m.View()
	if v.Phase != domain.PhaseSettled || v.Outcome != domain.Win || v.Payout != 100 || v.Wins != 3 {
		t.Fatalf("view = %+v; want SETTLED win with payout 100", v)
	}
}

func TestMatchOverErrorResyncs(t *testing.T) {
	m, bus, conn := newFake(t, 1)
	activeIn(t, m, bus)
	if err := m.SubmitMove(context.Background(), domain.Rock); err != nil {
		t.Fatal(err)
	}

	winner := int64(2)
	conn.status = &protocol.SessionStatus{
		MatchID: "m1", Mode: domain.ModePublic, Bet: 50, Role: domain.RoleFirst,
		Opponent: domain.Player{ID: 2, Name: "them"}, RoundsPlayed: 3, LossCount: 3,
		Finished: true, WinnerID: &winner, Reason: domain.ReasonScore,
	}
	publish(t, bus, protocol.Fail(protocol.CodeMatchOver, "match is over"))

	if v := m.View(); v.Phase == domain.PhaseIdle || v.MatchID != "m1" {
		t.Fatalf("view after error = %+v; want the match kept", v)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	v, err := m.Await(ctx, func(v View) bool { return v.Phase.Terminal() })
	if err != nil {
		t.Fatalf("await settled: %v (view %+v)", err, v)
	}
	if v.Phase != domain.PhaseSettled || v.Outcome != domain.Lose || v.MatchID != "m1" {
		t.Fatalf("view = %+v", v)
	}
}

func TestReconstruct(t *testing.T) {
	me, them := int64(1), int64(2)
	entry := func(r int, o domain.Outcome) protocol.RoundLogEntry {
		return protocol.RoundLogEntry{Round: r, Outcome: o}
	}
	cases := []struct {
		name    string
		st      protocol.SessionStatus
		phase   domain.Phase
		round   int
		outcome domain.Outcome
		step    Step
	}{
		{
			name:  "fresh match",
			st:    protocol.SessionStatus{MatchID: "a", Bet: 50},
			phase: domain.PhaseActive, round: 1, step: StepAwaitingOwnMove,
		},
		{
			name:  "move already sent",
			st:    protocol.SessionStatus{MatchID: "a", RoundLog: []protocol.RoundLogEntry{entry(1, domain.Draw)}, MoveSubmitted: true},
			phase: domain.PhaseActive, round: 2, step: StepAwaitingOpponent,
		},
		{
			name: "log decides over stale flag",
			st: protocol.SessionStatus{MatchID: "a", Bet: 50, RoundLog: []protocol.RoundLogEntry{
				entry(1, domain.Win), entry(2, domain.Win), entry(3, domain.Win),
			}},
			phase: domain.PhaseSettled, round: 3, outcome: domain.Win,
		},
		{
			name:  "won by forfeit",
			st:    protocol.SessionStatus{MatchID: "a", Finished: true, WinnerID: &me, Reason: domain.ReasonForfeit},
			phase: domain.PhaseAbandoned, outcome: domain.Win,
		},
		{
			name:  "lost at round cap",
			st:    protocol.SessionStatus{MatchID: "a", Finished: true, WinnerID: &them, Reason: domain.ReasonRoundCap, RoundsPlayed: 5},
			phase: domain.PhaseSettled, round: 5, outcome: domain.Lose,
		},
		{
			name: "refunded after timeout",
			st: protocol.SessionStatus{MatchID: "a", Finished: true, Reason: domain.ReasonTimeout, RoundLog: []protocol.RoundLogEntry{
				entry(1, domain.Win),
			}},
			phase: domain.PhaseSettled, round: 1, outcome: domain.Draw,
		},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			v := Reconstruct(me, tc.st)
			if v.Phase != tc.phase || v.Round != tc.round || v.Outcome != tc.outcome || v.Step != tc.step {
				t.Fatalf("got phase=%s round=%d outcome=%q step=%q", v.Phase, v.Round, v.Outcome, v.Step)
			}
		})
	}
}

// loopback delivers commands straight to an in-process coordinator and
// engine and routes their events to per-player buses.
type loopback struct {
	self   int64
	engine *game.Engine
	coord  *matchmaking.Coordinator
}

func (l *loopback) Send(ctx context.Context, ev protocol.Event) error {
	switch ev.Type {
	case protocol.MsgJoinQueue:
		req := ev.Payload.(protocol.SearchRequest)
		return l.coord.Enqueue(ctx, domain.Player{ID: l.self, Name: req.Name}, req.Bet)
	case protocol.MsgPlayComputer:
		req := ev.Payload.(protocol.SearchRequest)
		return l.coord.PlayComputer(ctx, domain.Player{ID: l.self, Name: req.Name}, req.Bet)
	case protocol.MsgMakeMove:
		req := ev.Payload.(protocol.MoveRequest)
		choice, err := domain.ParseChoice(req.Choice)
		if err != nil {
			return err
		}
		return l.engine.SubmitMove(ctx, req.MatchID, l.self, req.Round, choice)
	case protocol.MsgSurrender:
		return l.engine.Surrender(ctx, ev.Payload.(protocol.SurrenderRequest).MatchID, l.self)
	case protocol.MsgCancelSearch:
		return l.coord.Cancel(l.self)
	}
	return errors.New("unsupported command " + ev.Type)
}

func (l *loopback) SessionStatus(context.Context) (*protocol.SessionStatus, error) {
	return l.engine.Status(l.self), nil
}

type buses map[int64]*Bus

func (b buses) Notify(playerID int64, ev protocol.Event) {
	if bus := b[playerID]; bus != nil {
		if env, err := protocol.ToEnvelope(ev); err == nil {
			bus.Publish(env)
		}
	}
}

type arena struct {
	bank     *economy.Memory
	engine   *game.Engine
	machines map[int64]*Machine
}

func newArena(t *testing.T, ids ...int64) *arena {
	t.Helper()
	bank := economy.NewMemory()
	bs := buses{}
	engine := game.NewEngine(game.DefaultConfig(), bank, bs, game.WithClock(clockwork.NewFakeClock()))
	coord := matchmaking.NewCoordinator(matchmaking.DefaultConfig(), engine, bs)

	a := &arena{bank: bank, engine: engine, machines: map[int64]*Machine{}}
	for _, id := range ids {
		bank.Deposit(id, 1000)
		bs[id] = NewBus()
		m := NewMachine(domain.Player{ID: id, Name: "p"}, &loopback{self: id, engine: engine, coord: coord}, bs[id])
		m.Attach()
		a.machines[id] = m
	}
	return a
}

func TestTwoMachinesPlayFullMatch(t *testing.T) {
	a := newArena(t, 1, 2)
	alice, bob := a.machines[1], a.machines[2]
	ctx := context.Background()

	if err := alice.Enqueue(ctx, 50); err != nil {
		t.Fatal(err)
	}
	if err := bob.Enqueue(ctx, 50); err != nil {
		t.Fatal(err)
	}
	if alice.View().MatchID == "" || alice.View().MatchID != bob.View().MatchID {
		t.Fatalf("machines not paired: %+v / %+v", alice.View(), bob.View())
	}

	rounds := [][2]domain.Choice{
		{domain.Rock, domain.Scissors},
		{domain.Paper, domain.Paper},
		{domain.Paper, domain.Rock},
		{domain.Scissors, domain.Paper},
	}
	for i, mv := range rounds {
		if err := alice.SubmitMove(ctx, mv[0]); err != nil {
			t.Fatalf("round %d alice: %v", i+1, err)
		}
		if v := bob.View(); !v.OpponentMoved || len(v.Log) != i {
			t.Fatalf("round %d: bob view before his move = %+v", i+1, v)
		}
		if err := bob.SubmitMove(ctx, mv[1]); err != nil {
			t.Fatalf("round %d bob: %v", i+1, err)
		}
	}

	av, bv := alice.View(), bob.View()
	if av.Phase != domain.PhaseSettled || av.Outcome != domain.Win || av.Payout != 100 || av.Wins != 3 {
		t.Fatalf("alice = %+v", av)
	}
	if bv.Phase != domain.PhaseSettled || bv.Outcome != domain.Lose || bv.Losses != 3 || len(bv.Log) != 4 {
		t.Fatalf("bob = %+v", bv)
	}
	if a.bank.Balance(1) != 1050 || a.bank.Balance(2) != 950 {
		t.Fatalf("balances = %d / %d", a.bank.Balance(1), a.bank.Balance(2))
	}

	// reconnect after the match: resume agrees with the live view and moves no money
	rv, err := alice.Resume(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if rv.Phase != av.Phase || rv.Outcome != av.Outcome || rv.Wins != av.Wins {
		t.Fatalf("resumed = %+v; live = %+v", rv, av)
	}
	if a.bank.Balance(1) != 1050 {
		t.Fatalf("resume changed balance to %d", a.bank.Balance(1))
	}
}

func TestMachineAgainstComputer(t *testing.T) {
	a := newArena(t, 1)
	m := a.machines[1]
	ctx := context.Background()

	if err := m.PlayComputer(ctx, 50); err != nil {
		t.Fatal(err)
	}
	if v := m.View(); v.Phase != domain.PhaseActive || v.Opponent.ID != domain.ComputerPlayerID || !v.OpponentMoved {
		t.Fatalf("view = %+v", v)
	}

	waitCtx, cancel := context.WithTimeout(ctx, 2*time.Second)
	defer cancel()
	for i := 0; i < domain.RoundCap && !m.View().Phase.Terminal(); i++ {
		if err := m.SubmitMove(ctx, domain.Rock); err != nil {
			t.Fatalf("round %d: %v", i+1, err)
		}
	}
	v, err := m.Await(waitCtx, func(v View) bool { return v.Phase.Terminal() })
	if err != nil {
		t.Fatalf("match did not end: %+v", v)
	}
	if v.Reason != domain.ReasonScore && v.Reason != domain.ReasonRoundCap {
		t.Fatalf("reason = %s", v.Reason)
	}
}
