package handlers

import (
	"net/http"

	"rps_arena/internal/logger"
	"rps_arena/internal/service"
	"rps_arena/internal/ws"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
)

// WS upgrades GET /ws?token=<jwt> to the session transport.
func (h *Handler) WS(hub *ws.Hub, router *ws.Router) gin.HandlerFunc {
	upgrader := websocket.Upgrader{
		CheckOrigin: func(r *http.Request) bool {
			if h.AllowedOrigin == "" {
				return true
			}
			return r.Header.Get("Origin") == h.AllowedOrigin
		},
	}

	return func(c *gin.Context) {
		token := c.Query("token")
		if token == "" {
			c.JSON(http.StatusUnauthorized, gin.H{"error": "token required"})
			return
		}

		playerID, _, err := service.ParseJWT(token)
		if err != nil {
			c.JSON(http.StatusUnauthorized, gin.H{"error": "invalid token"})
			return
		}

		conn, err := upgrader.Upgrade(c.Writer, c.Request, nil)
		if err != nil {
			logger.Warn("ws upgrade failed", "player_id", playerID, "error", err)
			return
		}

		client := ws.NewClient(playerID, conn, hub, router)
		go client.Run()
	}
}
