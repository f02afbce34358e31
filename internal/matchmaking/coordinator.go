// Package matchmaking pairs players for matches: a FIFO public queue per bet
// amount, private rooms joined by a short code, and games against the house.
package matchmaking

import (
	"context"
	"errors"
	"sync"
	"time"

	"rps_arena/internal/domain"
	"rps_arena/internal/game"
	"rps_arena/internal/logger"
	"rps_arena/internal/metrics"
	"rps_arena/internal/protocol"

	"github.com/jonboulle/clockwork"
)

// MatchStarter is the part of the round engine the coordinator drives.
type MatchStarter interface {
	StartMatch(ctx context.Context, mode domain.Mode, first, second domain.Player, bet int64) (*domain.MatchSession, error)
	BeginMatch(matchID string) error
	ActiveMatch(playerID int64) (string, bool)
}

type Config struct {
	MinBet     int64
	MaxBet     int64
	DefaultBet int64
	RoomTTL    time.Duration
}

func DefaultConfig() Config {
	return Config{MinBet: 10, MaxBet: 100000, DefaultBet: 50, RoomTTL: 5 * time.Minute}
}

type Option func(*Coordinator)

func WithClock(c clockwork.Clock) Option {
	return func(co *Coordinator) { co.clock = c }
}

// WithCodes replaces the room code generator.
func WithCodes(gen func() string) Option {
	return func(co *Coordinator) { co.codeGen = gen }
}

type room struct {
	code      string
	host      domain.Player
	bet       int64
	expiresAt time.Time
	timer     clockwork.Timer
}

type Coordinator struct {
	mu      sync.Mutex
	queues  map[int64][]domain.Player // by bet, oldest first
	queued  map[int64]int64           // player id -> bet
	rooms   map[string]*room
	hosting map[int64]string

	engine   MatchStarter
	notifier game.Notifier
	clock    clockwork.Clock
	cfg      Config
	codeGen  func() string
}

func NewCoordinator(cfg Config, engine MatchStarter, n game.Notifier, opts ...Option) *Coordinator {
	c := &Coordinator{
		queues:   make(map[int64][]domain.Player),
		queued:   make(map[int64]int64),
		rooms:    make(map[string]*room),
		hosting:  make(map[int64]string),
		engine:   engine,
		notifier: n,
		clock:    clockwork.NewRealClock(),
		cfg:      cfg,
		codeGen:  NewRoomCode,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Limits returns the accepted bet range and the default bet.
func (c *Coordinator) Limits() (min, max, def int64) {
	return c.cfg.MinBet, c.cfg.MaxBet, c.cfg.DefaultBet
}

func (c *Coordinator) resolveBet(bet int64) (int64, error) {
	if bet == 0 {
		bet = c.cfg.DefaultBet
	}
	if bet < c.cfg.MinBet || bet > c.cfg.MaxBet {
		return 0, domain.ErrInvalidBet
	}
	return bet, nil
}

// checkFree rejects players who are already searching or seated. Callers hold c.mu.
func (c *Coordinator) checkFree(playerID int64) error {
	if _, ok := c.queued[playerID]; ok {
		return domain.ErrAlreadySearching
	}
	if _, ok := c.hosting[playerID]; ok {
		return domain.ErrAlreadySearching
	}
	if _, ok := c.engine.ActiveMatch(playerID); ok {
		return domain.ErrAlreadyInMatch
	}
	return nil
}

// Enqueue puts p in the public queue for bet and pairs the two longest
// waiting players as soon as there are two.
func (c *Coordinator) Enqueue(ctx context.Context, p domain.Player, bet int64) error {
	bet, err := c.resolveBet(bet)
	if err != nil {
		return err
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	if err := c.checkFree(p.ID); err != nil {
		return err
	}
	c.queues[bet] = append(c.queues[bet], p)
	c.queued[p.ID] = bet
	c.updateDepth()

	logger.Debug("player queued", "player_id", p.ID, "bet", bet)
	c.notify(p.ID, protocol.Event{Type: protocol.MsgQueued, Payload: protocol.QueuedPayload{Bet: bet}})

	c.pair(ctx, bet)
	return nil
}

// pair drains the queue for bet two players at a time. A player whose escrow
// fails is dropped with an error; the other keeps its place. Callers hold c.mu.
func (c *Coordinator) pair(ctx context.Context, bet int64) {
	for len(c.queues[bet]) >= 2 {
		q := c.queues[bet]
		first, second := q[0], q[1]

		m, err := c.engine.StartMatch(ctx, domain.ModePublic, first, second, bet)
		if err != nil {
			failed, ok := game.FailedPlayer(err)
			if !ok {
				logger.Error("start public match", "first", first.ID, "second", second.ID, "error", err)
				c.dequeue(first.ID)
				c.dequeue(second.ID)
				c.notify(first.ID, protocol.ErrorEvent(err))
				c.notify(second.ID, protocol.ErrorEvent(err))
				continue
			}
			logger.Info("dropping player from queue", "player_id", failed, "error", err)
			c.dequeue(failed)
			c.notify(failed, protocol.ErrorEvent(err))
			continue
		}

		c.dequeue(first.ID)
		c.dequeue(second.ID)
		c.announce(m)
	}
	c.updateDepth()
}

// dequeue removes a player from whichever queue holds it. Callers hold c.mu.
func (c *Coordinator) dequeue(playerID int64) bool {
	bet, ok := c.queued[playerID]
	if !ok {
		return false
	}
	delete(c.queued, playerID)

	q := c.queues[bet]
	for i, p := range q {
		if p.ID == playerID {
			q = append(q[:i:i], q[i+1:]...)
			break
		}
	}
	if len(q) == 0 {
		delete(c.queues, bet)
	} else {
		c.queues[bet] = q
	}
	return true
}

// CreatePrivateRoom allocates a room code for host. The room expires after
// the configured TTL and the host is told so.
func (c *Coordinator) CreatePrivateRoom(ctx context.Context, host domain.Player, bet int64) (string, error) {
	bet, err := c.resolveBet(bet)
	if err != nil {
		return "", err
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	if err := c.checkFree(host.ID); err != nil {
		return "", err
	}

	code := ""
	for i := 0; i < 16; i++ {
		candidate := c.codeGen()
		if _, taken := c.rooms[candidate]; !taken {
			code = candidate
			break
		}
	}
	if code == "" {
		return "", errors.New("no free room code")
	}

	r := &room{code: code, host: host, bet: bet, expiresAt: c.clock.Now().Add(c.cfg.RoomTTL)}
	r.timer = c.clock.AfterFunc(c.cfg.RoomTTL, func() { c.expire(r) })
	c.rooms[code] = r
	c.hosting[host.ID] = code

	logger.Info("private room created", "player_id", host.ID, "room", code, "bet", bet)
	c.notify(host.ID, protocol.Event{
		Type:    protocol.MsgPrivateCreated,
		Payload: protocol.PrivateRoomCreatedPayload{RoomCode: code, Bet: bet, ExpiresAt: r.expiresAt},
	})
	return code, nil
}

func (c *Coordinator) expire(r *room) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.rooms[r.code] != r {
		return
	}
	c.closeRoom(r)
	logger.Info("private room expired", "player_id", r.host.ID, "room", r.code)
	c.notify(r.host.ID, protocol.Event{
		Type:    protocol.MsgPrivateExpired,
		Payload: protocol.PrivateRoomExpiredPayload{RoomCode: r.code},
	})
}

// closeRoom invalidates a room code. Callers hold c.mu.
func (c *Coordinator) closeRoom(r *room) {
	if r.timer != nil {
		r.timer.Stop()
	}
	delete(c.rooms, r.code)
	if c.hosting[r.host.ID] == r.code {
		delete(c.hosting, r.host.ID)
	}
}

// JoinPrivateRoom pairs joiner with the host waiting behind code. Unknown,
// expired and consumed codes all fail with domain.ErrInvalidRoomCode.
func (c *Coordinator) JoinPrivateRoom(ctx context.Context, joiner domain.Player, code string) error {
	code, ok := NormalizeCode(code)
	if !ok {
		return domain.ErrInvalidRoomCode
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	r, ok := c.rooms[code]
	if !ok || r.host.ID == joiner.ID {
		return domain.ErrInvalidRoomCode
	}
	if !c.clock.Now().Before(r.expiresAt) {
		c.closeRoom(r)
		c.notify(r.host.ID, protocol.Event{
			Type:    protocol.MsgPrivateExpired,
			Payload: protocol.PrivateRoomExpiredPayload{RoomCode: r.code},
		})
		return domain.ErrInvalidRoomCode
	}
	if err := c.checkFree(joiner.ID); err != nil {
		return err
	}

	m, err := c.engine.StartMatch(ctx, domain.ModePrivate, r.host, joiner, r.bet)
	if err != nil {
		if failed, ok := game.FailedPlayer(err); ok && failed == joiner.ID {
			// the room stays open for someone who can cover the bet
			return err
		}
		logger.Warn("private room closed, host cannot start", "room", code, "player_id", r.host.ID, "error", err)
		c.closeRoom(r)
		c.notify(r.host.ID, protocol.ErrorEvent(err))
		return domain.ErrInvalidRoomCode
	}

	c.closeRoom(r)
	c.announce(m)
	return nil
}

// PlayComputer starts a match against the house.
func (c *Coordinator) PlayComputer(ctx context.Context, p domain.Player, bet int64) error {
	bet, err := c.resolveBet(bet)
	if err != nil {
		return err
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	if err := c.checkFree(p.ID); err != nil {
		return err
	}
	m, err := c.engine.StartMatch(ctx, domain.ModeComputer, p, domain.ComputerPlayer(), bet)
	if err != nil {
		return err
	}
	c.announce(m)
	return nil
}

// Cancel drops playerID from the queue or closes the room it hosts.
func (c *Coordinator) Cancel(playerID int64) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	cancelled := c.dequeue(playerID)
	if code, ok := c.hosting[playerID]; ok {
		c.closeRoom(c.rooms[code])
		cancelled = true
	}
	if !cancelled {
		return domain.ErrNotSearching
	}
	c.updateDepth()

	logger.Debug("search cancelled", "player_id", playerID)
	c.notify(playerID, protocol.Event{Type: protocol.MsgSearchCancelled})
	return nil
}

// Searching reports whether playerID is queued or hosting a room.
func (c *Coordinator) Searching(playerID int64) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	_, queued := c.queued[playerID]
	_, hosting := c.hosting[playerID]
	return queued || hosting
}

// announce sends matchFound to both sides and opens round 1. Callers hold c.mu.
func (c *Coordinator) announce(m *domain.MatchSession) {
	ev := protocol.Event{
		Type: protocol.MsgMatchFound,
		Payload: protocol.MatchFoundPayload{
			MatchID: m.ID,
			Mode:    m.Mode,
			Bet:     m.Bet,
			First:   m.Players[0],
			Second:  m.Players[1],
		},
	}
	for _, p := range m.Players {
		c.notify(p.ID, ev)
	}
	if err := c.engine.BeginMatch(m.ID); err != nil {
		logger.ForMatch(m.ID).Error("begin match", "error", err)
	}
}

func (c *Coordinator) notify(playerID int64, ev protocol.Event) {
	if domain.IsHouse(playerID) || c.notifier == nil {
		return
	}
	c.notifier.Notify(playerID, ev)
}

func (c *Coordinator) updateDepth() {
	metrics.QueueDepth.Set(float64(len(c.queued)))
}
