package ws

import (
	"context"
	"errors"
	"strconv"
	"time"

	"rps_arena/internal/domain"
	"rps_arena/internal/logger"
	"rps_arena/internal/protocol"
)

const commandTimeout = 5 * time.Second

// Engine is the subset of the round engine reachable from the socket.
type Engine interface {
	SubmitMove(ctx context.Context, matchID string, playerID int64, round int, choice domain.Choice) error
	Surrender(ctx context.Context, matchID string, playerID int64) error
	Status(playerID int64) *protocol.SessionStatus
	PlayerConnected(playerID int64)
	PlayerDisconnected(playerID int64)
}

// Matchmaker is the subset of the coordinator reachable from the socket.
type Matchmaker interface {
	Enqueue(ctx context.Context, p domain.Player, bet int64) error
	CreatePrivateRoom(ctx context.Context, host domain.Player, bet int64) (string, error)
	JoinPrivateRoom(ctx context.Context, joiner domain.Player, code string) error
	PlayComputer(ctx context.Context, p domain.Player, bet int64) error
	Cancel(playerID int64) error
}

type Router struct {
	engine Engine
	mm     Matchmaker
}

func NewRouter(engine Engine, mm Matchmaker) *Router {
	return &Router{engine: engine, mm: mm}
}

// Connected is called once a player's connection is live.
func (r *Router) Connected(playerID int64) {
	r.engine.PlayerConnected(playerID)
}

// Disconnected drops any pending search and starts the engine's grace period.
func (r *Router) Disconnected(playerID int64) {
	if err := r.mm.Cancel(playerID); err == nil {
		logger.Debug("search dropped on disconnect", "player_id", playerID)
	}
	r.engine.PlayerDisconnected(playerID)
}

// Dispatch handles one inbound frame. Replies and failures are sent back on c.
func (r *Router) Dispatch(c *Client, raw []byte) {
	env, err := protocol.Decode(raw)
	if err != nil {
		c.enqueueEvent(protocol.Fail(protocol.CodeBadRequest, "malformed message"))
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), commandTimeout)
	defer cancel()

	if err := r.handle(ctx, c, env); err != nil {
		r.fail(c, env.Type, err)
	}
}

var errUnauthorized = errors.New("player id does not match the session")

type badRequest struct{ err error }

func (b badRequest) Error() string { return b.err.Error() }

func (r *Router) handle(ctx context.Context, c *Client, env protocol.Envelope) error {
	pid := c.PlayerID

	switch env.Type {
	case protocol.MsgJoinQueue, protocol.MsgCreatePrivate, protocol.MsgPlayComputer:
		var req protocol.SearchRequest
		if err := env.Bind(&req); err != nil {
			return badRequest{err}
		}
		if req.PlayerID != 0 && req.PlayerID != pid {
			return errUnauthorized
		}
		p := player(pid, req.Name)
		switch env.Type {
		case protocol.MsgJoinQueue:
			return r.mm.Enqueue(ctx, p, req.Bet)
		case protocol.MsgCreatePrivate:
			_, err := r.mm.CreatePrivateRoom(ctx, p, req.Bet)
			return err
		default:
			return r.mm.PlayComputer(ctx, p, req.Bet)
		}

	case protocol.MsgJoinPrivate:
		var req protocol.JoinPrivateRequest
		if err := env.Bind(&req); err != nil {
			return badRequest{err}
		}
		if req.PlayerID != 0 && req.PlayerID != pid {
			return errUnauthorized
		}
		return r.mm.JoinPrivateRoom(ctx, player(pid, req.Name), req.RoomCode)

	case protocol.MsgCancelSearch:
		return r.mm.Cancel(pid)

	case protocol.MsgMakeMove:
		var req protocol.MoveRequest
		if err := env.Bind(&req); err != nil {
			return badRequest{err}
		}
		choice, err := domain.ParseChoice(req.Choice)
		if err != nil {
			return err
		}
		err = r.engine.SubmitMove(ctx, req.MatchID, pid, req.Round, choice)
		if errors.Is(err, domain.ErrDuplicateMove) || errors.Is(err, domain.ErrStaleRound) {
			return nil
		}
		return err

	case protocol.MsgSurrender:
		var req protocol.SurrenderRequest
		if err := env.Bind(&req); err != nil {
			return badRequest{err}
		}
		return r.engine.Surrender(ctx, req.MatchID, pid)

	case protocol.MsgGetSessionStatus:
		c.enqueueEvent(protocol.Event{
			Type:    protocol.MsgSessionStatus,
			Payload: protocol.SessionStatusPayload{Status: r.engine.Status(pid)},
		})
		return nil

	case protocol.MsgPing:
		c.enqueueEvent(protocol.Event{Type: protocol.MsgPong})
		return nil
	}

	return badRequest{errors.New("unknown message type " + strconv.Quote(env.Type))}
}

func (r *Router) fail(c *Client, typ string, err error) {
	var bad badRequest
	switch {
	case errors.As(err, &bad):
		c.enqueueEvent(protocol.Fail(protocol.CodeBadRequest, bad.Error()))
		return
	case errors.Is(err, errUnauthorized):
		c.enqueueEvent(protocol.Fail(protocol.CodeUnauthorized, err.Error()))
		return
	}

	ev := protocol.ErrorEvent(err)
	if protocol.CodeOf(err) == protocol.CodeInternal {
		logger.Error("command failed", "player_id", c.PlayerID, "type", typ, "error", err)
	} else {
		logger.Debug("command rejected", "player_id", c.PlayerID, "type", typ, "error", err)
	}
	c.enqueueEvent(ev)
}

func player(id int64, name string) domain.Player {
	if name == "" {
		name = "player " + strconv.FormatInt(id, 10)
	}
	return domain.Player{ID: id, Name: name}
}
