package middleware

import (
	"net/http"
	"strings"

	"rps_arena/internal/service"

	"github.com/gin-gonic/gin"
)

const (
	CtxPlayerID   = "player_id"
	CtxPlayerName = "player_name"
)

// JWT authenticates the request from an "Authorization: Bearer" header and
// stores the player id and name in the gin context.
func JWT() gin.HandlerFunc {
	return func(c *gin.Context) {
		header := c.GetHeader("Authorization")
		token, ok := strings.CutPrefix(header, "Bearer ")
		if !ok || token == "" {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "token required"})
			return
		}

		playerID, name, err := service.ParseJWT(token)
		if err != nil {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "invalid token"})
			return
		}

		c.Set(CtxPlayerID, playerID)
		c.Set(CtxPlayerName, name)
		c.Next()
	}
}
