// Package game is the authoritative round engine. It owns every live match,
// serializes all mutations per match, arbitrates rounds and settles bets
// through the economy gateway.
package game

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math/rand/v2"
	"sync"
	"time"

	"rps_arena/internal/domain"
	"rps_arena/internal/economy"
	"rps_arena/internal/logger"
	"rps_arena/internal/metrics"
	"rps_arena/internal/protocol"

	"github.com/google/uuid"
	"github.com/jonboulle/clockwork"
)

// Notifier delivers an event to one connected player. Implementations must
// not block; events for a player are delivered in call order.
type Notifier interface {
	Notify(playerID int64, ev protocol.Event)
}

// Archiver stores terminal matches for history queries.
type Archiver interface {
	Archive(ctx context.Context, m *domain.MatchSession) error
}

// SessionStore persists live match snapshots across restarts.
type SessionStore interface {
	Save(ctx context.Context, snap *domain.MatchSnapshot) error
	Delete(ctx context.Context, matchID string) error
	LoadAll(ctx context.Context) ([]*domain.MatchSnapshot, error)
}

type Config struct {
	RoundTimeout     time.Duration
	DisconnectGrace  time.Duration
	ArchiveRetention time.Duration
}

func DefaultConfig() Config {
	return Config{
		RoundTimeout:     60 * time.Second,
		DisconnectGrace:  15 * time.Second,
		ArchiveRetention: 10 * time.Minute,
	}
}

const ioTimeout = 5 * time.Second

type Option func(*Engine)

func WithClock(c clockwork.Clock) Option {
	return func(e *Engine) { e.clock = c }
}

func WithArchiver(a Archiver) Option {
	return func(e *Engine) { e.archiver = a }
}

func WithStore(s SessionStore) Option {
	return func(e *Engine) { e.store = s }
}

// WithComputerMoves replaces the random move source of the house player.
func WithComputerMoves(pick func() domain.Choice) Option {
	return func(e *Engine) { e.pickMove = pick }
}

// WithIDs replaces the match id generator.
func WithIDs(next func() string) Option {
	return func(e *Engine) { e.newID = next }
}

type Engine struct {
	mu       sync.RWMutex
	matches  map[string]*match
	byPlayer map[int64]string

	notifier Notifier
	gateway  economy.Gateway
	archiver Archiver
	store    SessionStore
	clock    clockwork.Clock
	cfg      Config

	pickMove func() domain.Choice
	newID    func() string
}

func NewEngine(cfg Config, gw economy.Gateway, n Notifier, opts ...Option) *Engine {
	e := &Engine{
		matches:  make(map[string]*match),
		byPlayer: make(map[int64]string),
		notifier: n,
		gateway:  gw,
		clock:    clockwork.NewRealClock(),
		cfg:      cfg,
		pickMove: func() domain.Choice { return domain.Choices[rand.IntN(len(domain.Choices))] },
		newID:    uuid.NewString,
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// StartMatch escrows the bet of both players and registers a new match.
// Nothing is emitted; the caller announces the match and then calls BeginMatch.
// On escrow failure the returned error is an *EscrowError naming the player
// whose escrow failed; any escrow already taken is refunded.
func (e *Engine) StartMatch(ctx context.Context, mode domain.Mode, first, second domain.Player, bet int64) (*domain.MatchSession, error) {
	if bet <= 0 {
		return nil, domain.ErrInvalidBet
	}
	if first.ID == second.ID {
		return nil, domain.ErrAlreadyInMatch
	}
	for _, p := range []domain.Player{first, second} {
		if _, ok := e.ActiveMatch(p.ID); ok {
			return nil, &EscrowError{PlayerID: p.ID, Err: domain.ErrAlreadyInMatch}
		}
	}

	id := e.newID()
	log := logger.ForMatch(id)

	if err := e.gateway.Escrow(ctx, id, first.ID, bet); err != nil {
		return nil, &EscrowError{PlayerID: first.ID, Err: err}
	}
	if err := e.gateway.Escrow(ctx, id, second.ID, bet); err != nil {
		if rerr := e.gateway.Settle(ctx, id, economy.NoWinner, 0); rerr != nil {
			log.Error("refund after failed escrow", "error", rerr)
		}
		return nil, &EscrowError{PlayerID: second.ID, Err: err}
	}

	session := &domain.MatchSession{
		ID:        id,
		Mode:      mode,
		Players:   [2]domain.Player{first, second},
		Bet:       bet,
		CreatedAt: e.clock.Now(),
	}
	m := newMatch(session)

	e.mu.Lock()
	e.matches[id] = m
	e.byPlayer[first.ID] = id
	e.byPlayer[second.ID] = id
	e.mu.Unlock()

	m.mu.Lock()
	e.persist(m)
	m.mu.Unlock()

	metrics.MatchesStarted.WithLabelValues(string(mode)).Inc()
	log.Info("match started", "mode", mode, "first", first.ID, "second", second.ID, "bet", bet)

	snapshot := *session
	return &snapshot, nil
}

// BeginMatch opens round 1: it arms the round timer and lets the house move.
func (e *Engine) BeginMatch(matchID string) error {
	m, ok := e.lookup(matchID)
	if !ok {
		return domain.ErrUnknownMatch
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.session.Finished() {
		return domain.ErrMatchOver
	}
	e.openRound(m)
	return nil
}

// ActiveMatch returns the id of the unfinished match playerID is seated in.
func (e *Engine) ActiveMatch(playerID int64) (string, bool) {
	m, ok := e.lookupByPlayer(playerID)
	if !ok {
		return "", false
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.session.Finished() {
		return "", false
	}
	return m.session.ID, true
}

// Match returns a copy of the match record.
func (e *Engine) Match(matchID string) (*domain.MatchSession, bool) {
	m, ok := e.lookup(matchID)
	if !ok {
		return nil, false
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	s := *m.session
	s.Rounds = append([]domain.Round(nil), m.session.Rounds...)
	return &s, true
}

// SubmitMove records a player's move for the current round and resolves the
// round once both moves are in. round 0 means the current round.
func (e *Engine) SubmitMove(ctx context.Context, matchID string, playerID int64, round int, choice domain.Choice) error {
	if !choice.Valid() {
		return domain.ErrInvalidChoice
	}
	m, ok := e.lookup(matchID)
	if !ok {
		return domain.ErrUnknownMatch
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	log := logger.ForMatch(matchID).With("player_id", playerID)

	seat, ok := m.session.Seat(playerID)
	if !ok {
		return domain.ErrNotParticipant
	}

	current := m.session.CurrentRound()
	if round == 0 {
		round = current
	}
	switch {
	case m.session.Finished():
		if round < current {
			e.anomaly(log, "stale_round", round)
			return domain.ErrStaleRound
		}
		return domain.ErrMatchOver
	case round < current:
		e.anomaly(log, "stale_round", round)
		return domain.ErrStaleRound
	case round > current:
		e.anomaly(log, "round_mismatch", round)
		return domain.ErrRoundMismatch
	case m.pending[seat] != "":
		e.anomaly(log, "duplicate_move", round)
		return domain.ErrDuplicateMove
	}

	m.pending[seat] = choice
	log.Debug("move recorded", "round", round)

	if m.pending[1-seat] == "" {
		e.persist(m)
		e.notify(m.session.Opponent(seat).ID, protocol.Event{
			Type:    protocol.MsgOpponentMadeMove,
			Payload: protocol.OpponentMovedPayload{MatchID: matchID, Round: round},
		})
		return nil
	}

	e.resolve(m)
	return nil
}

// Surrender ends the match with the opponent of playerID as the winner.
func (e *Engine) Surrender(ctx context.Context, matchID string, playerID int64) error {
	m, ok := e.lookup(matchID)
	if !ok {
		return domain.ErrUnknownMatch
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	seat, ok := m.session.Seat(playerID)
	if !ok {
		return domain.ErrNotParticipant
	}
	if m.session.Finished() {
		return domain.ErrMatchOver
	}

	logger.ForMatch(matchID).Info("player surrendered", "player_id", playerID, "round", m.session.CurrentRound())
	m.session.Finish(1-seat, domain.ReasonSurrender, e.clock.Now())
	e.finalize(m)
	return nil
}

func (e *Engine) anomaly(log *slog.Logger, kind string, round int) {
	metrics.ProtocolAnomalies.WithLabelValues(kind).Inc()
	log.Warn("protocol anomaly absorbed", "anomaly", kind, "round", round)
}

func (e *Engine) lookup(matchID string) (*match, bool) {
	e.mu.RLock()
	defer e.mu.RUnlock()
	m, ok := e.matches[matchID]
	return m, ok
}

func (e *Engine) lookupByPlayer(playerID int64) (*match, bool) {
	e.mu.RLock()
	defer e.mu.RUnlock()
	id, ok := e.byPlayer[playerID]
	if !ok {
		return nil, false
	}
	m, ok := e.matches[id]
	return m, ok
}

func (e *Engine) notify(playerID int64, ev protocol.Event) {
	if domain.IsHouse(playerID) || e.notifier == nil {
		return
	}
	e.notifier.Notify(playerID, ev)
}

func (e *Engine) broadcast(m *match, ev protocol.Event) {
	for _, p := range m.session.Players {
		e.notify(p.ID, ev)
	}
}

// persist writes the match snapshot. Callers hold m.mu.
func (e *Engine) persist(m *match) {
	if e.store == nil {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), ioTimeout)
	defer cancel()
	if err := e.store.Save(ctx, m.snapshot()); err != nil {
		logger.ForMatch(m.session.ID).Warn("save snapshot failed", "error", err)
	}
}

// EscrowError reports which player of a pairing could not be escrowed.
type EscrowError struct {
	PlayerID int64
	Err      error
}

func (e *EscrowError) Error() string {
	return fmt.Sprintf("escrow for player %d: %v", e.PlayerID, e.Err)
}

func (e *EscrowError) Unwrap() error { return e.Err }

// FailedPlayer extracts the failing player from an escrow error.
func FailedPlayer(err error) (int64, bool) {
	var ee *EscrowError
	if errors.As(err, &ee) {
		return ee.PlayerID, true
	}
	return 0, false
}
