package handlers

import (
	"context"
	"net/http"

	"rps_arena/internal/domain"
	"rps_arena/internal/game"
	"rps_arena/internal/http/middleware"
	"rps_arena/internal/matchmaking"
	"rps_arena/internal/protocol"

	"github.com/gin-gonic/gin"
)

// Balances reads a player's spendable balance.
type Balances interface {
	Balance(ctx context.Context, playerID int64) (int64, error)
}

// BalanceFunc adapts a function to Balances.
type BalanceFunc func(ctx context.Context, playerID int64) (int64, error)

func (f BalanceFunc) Balance(ctx context.Context, playerID int64) (int64, error) {
	return f(ctx, playerID)
}

// MatchHistory lists archived matches.
type MatchHistory interface {
	ListByPlayer(ctx context.Context, playerID int64, limit int) ([]*domain.MatchSession, error)
}

// Statements lists ledger entries.
type Statements interface {
	Statement(ctx context.Context, playerID int64, limit int) ([]*domain.Transaction, error)
}

type Handler struct {
	Engine      *game.Engine
	Coordinator *matchmaking.Coordinator
	Balances    Balances
	// History is nil when matches are not persisted.
	History    MatchHistory
	Statements Statements

	AllowedOrigin string
}

// playerID returns the authenticated player set by middleware.JWT.
func playerID(c *gin.Context) (int64, bool) {
	v, ok := c.Get(middleware.CtxPlayerID)
	if !ok {
		return 0, false
	}
	id, ok := v.(int64)
	return id, ok
}

func mustPlayer(c *gin.Context) (int64, bool) {
	id, ok := playerID(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
	}
	return id, ok
}

// fail writes a domain error with the same code the socket would use.
func fail(c *gin.Context, err error) {
	code := protocol.CodeOf(err)
	status := http.StatusBadRequest
	switch code {
	case protocol.CodeUnknownMatch:
		status = http.StatusNotFound
	case protocol.CodeMatchOver:
		status = http.StatusConflict
	case protocol.CodeInternal:
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal error", "code": code})
		return
	}
	c.JSON(status, gin.H{"error": err.Error(), "code": code})
}
