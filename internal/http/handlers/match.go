package handlers

import (
	"errors"
	"net/http"
	"strconv"
	"time"

	"rps_arena/internal/domain"
	"rps_arena/internal/logger"
	"rps_arena/internal/protocol"

	"github.com/gin-gonic/gin"
)

// SessionStatus answers GET /match/session. Without matchId it looks the
// match up by the authenticated player. No match is reported as a null
// status, never as an error.
func (h *Handler) SessionStatus(c *gin.Context) {
	pid, ok := mustPlayer(c)
	if !ok {
		return
	}

	var st *protocol.SessionStatus
	if matchID := c.Query("matchId"); matchID != "" {
		s, err := h.Engine.StatusByMatch(matchID, pid)
		switch {
		case errors.Is(err, domain.ErrNotParticipant):
			c.JSON(http.StatusForbidden, gin.H{"error": err.Error()})
			return
		case err == nil:
			st = s
		}
	} else {
		st = h.Engine.Status(pid)
	}
	c.JSON(http.StatusOK, protocol.SessionStatusPayload{Status: st})
}

type surrenderRequest struct {
	MatchID string `json:"matchId"`
}

// Surrender answers POST /match/surrender. matchId defaults to the player's
// active match.
func (h *Handler) Surrender(c *gin.Context) {
	pid, ok := mustPlayer(c)
	if !ok {
		return
	}

	var req surrenderRequest
	if c.Request.ContentLength > 0 {
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid body", "code": protocol.CodeBadRequest})
			return
		}
	}
	if req.MatchID == "" {
		id, ok := h.Engine.ActiveMatch(pid)
		if !ok {
			fail(c, domain.ErrUnknownMatch)
			return
		}
		req.MatchID = id
	}

	if err := h.Engine.Surrender(c.Request.Context(), req.MatchID, pid); err != nil {
		fail(c, err)
		return
	}
	logger.Info("surrendered over http", "player_id", pid, "match_id", req.MatchID)
	c.JSON(http.StatusOK, protocol.SessionStatusPayload{Status: h.Engine.Status(pid)})
}

// Limits answers GET /match/limits.
func (h *Handler) Limits(c *gin.Context) {
	minBet, maxBet, defBet := h.Coordinator.Limits()
	c.JSON(http.StatusOK, gin.H{
		"min_bet":     minBet,
		"max_bet":     maxBet,
		"default_bet": defBet,
		"win_target":  domain.WinThreshold,
		"round_cap":   domain.RoundCap,
	})
}

type matchSummary struct {
	ID       string             `json:"id"`
	Mode     domain.Mode        `json:"mode"`
	Bet      int64              `json:"bet"`
	Opponent domain.Player      `json:"opponent"`
	Outcome  domain.Outcome     `json:"outcome"`
	Reason   domain.EndReason   `json:"reason"`
	Scores   protocol.ScorePair `json:"scores"`
	Rounds   int                `json:"rounds"`
	EndedAt  *time.Time         `json:"ended_at,omitempty"`
}

// Matches answers GET /matches with the player's archived matches, newest first.
func (h *Handler) Matches(c *gin.Context) {
	pid, ok := mustPlayer(c)
	if !ok {
		return
	}
	if h.History == nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "match history is not persisted"})
		return
	}

	list, err := h.History.ListByPlayer(c.Request.Context(), pid, queryLimit(c, 20))
	if err != nil {
		logger.Error("list matches", "player_id", pid, "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to load matches"})
		return
	}

	out := make([]matchSummary, 0, len(list))
	for _, m := range list {
		seat, ok := m.Seat(pid)
		if !ok {
			continue
		}
		score := m.Scores()
		outcome := domain.Draw
		if m.WinnerID != nil {
			outcome = domain.Lose
			if *m.WinnerID == pid {
				outcome = domain.Win
			}
		}
		s := matchSummary{
			ID:       m.ID,
			Mode:     m.Mode,
			Bet:      m.Bet,
			Opponent: m.Opponent(seat),
			Outcome:  outcome,
			Reason:   m.Reason,
			Scores:   protocol.ScorePair{First: score[seat], Second: score[1-seat]},
			Rounds:   len(m.Rounds),
			EndedAt:  m.EndedAt,
		}
		out = append(out, s)
	}
	c.JSON(http.StatusOK, gin.H{"matches": out})
}

// queryLimit reads ?limit=, bounded to 1..100.
func queryLimit(c *gin.Context, def int) int {
	if n, err := strconv.Atoi(c.Query("limit")); err == nil && n > 0 && n <= 100 {
		return n
	}
	return def
}
