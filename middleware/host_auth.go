package middleware

import (
	"net/http"
	"strings"

	"partygame/services"

	"github.com/gin-gonic/gin"
)

const HostClaimsKey = "host_claims"

// HostAuth guards host-only routes keyed by the :id game parameter. Without
// required, a request with no token passes; a token that is sent must still be
// valid and belong to the game.
func HostAuth(tokens *services.HostTokens, required bool) gin.HandlerFunc {
	return func(c *gin.Context) {
		token := strings.TrimSpace(c.GetHeader("Authorization"))
		token = strings.TrimPrefix(token, "Bearer ")

		if token == "" {
			if required {
				c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "Host token required"})
				return
			}
			c.Next()
			return
		}

		claims, err := tokens.Parse(token)
		if err != nil {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "Invalid host token"})
			return
		}
		if claims.GameID != services.NormalizeGameID(c.Param("id")) {
			c.AbortWithStatusJSON(http.StatusForbidden, gin.H{"error": "Token does not belong to this game"})
			return
		}

		c.Set(HostClaimsKey, claims)
		c.Next()
	}
}
