package handlers

import (
	"net/http"

	"rps_arena/internal/domain"
	"rps_arena/internal/http/middleware"
	"rps_arena/internal/logger"

	"github.com/gin-gonic/gin"
)

func (h *Handler) Me(c *gin.Context) {
	pid, ok := mustPlayer(c)
	if !ok {
		return
	}

	balance, err := h.Balances.Balance(c.Request.Context(), pid)
	if err != nil {
		logger.Error("load balance", "player_id", pid, "error", err)
		c.JSON(http.StatusNotFound, gin.H{"error": "player not found"})
		return
	}

	resp := gin.H{
		"id":      pid,
		"name":    c.GetString(middleware.CtxPlayerName),
		"balance": balance,
	}
	if matchID, ok := h.Engine.ActiveMatch(pid); ok {
		resp["active_match"] = matchID
	}
	c.JSON(http.StatusOK, resp)
}

// Transactions lists the caller's ledger entries: escrows, payouts and refunds.
func (h *Handler) Transactions(c *gin.Context) {
	pid, ok := mustPlayer(c)
	if !ok {
		return
	}
	if h.Statements == nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "ledger is not available"})
		return
	}

	list, err := h.Statements.Statement(c.Request.Context(), pid, queryLimit(c, 50))
	if err != nil {
		logger.Error("load statement", "player_id", pid, "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to load transactions"})
		return
	}
	if list == nil {
		list = []*domain.Transaction{}
	}
	c.JSON(http.StatusOK, gin.H{"transactions": list})
}
