package middlewares

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/hunttickets/backoffice_backend/config"
	"github.com/hunttickets/backoffice_backend/utils"
)

// SessionMiddleware resolves the "token" header to a username through Redis.
// Requests without a token pass through anonymously; an unknown token is rejected.
func SessionMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		token := c.Request.Header.Get("token")
		if token == "" {
			c.Next()
			return
		}
		username, exists, err := config.GetRedisValue(c.Request.Context(), "Token:"+token)
		if err != nil || !exists {
			if err != nil {
				config.LogError(config.GetLogger(), "middlewares", "SessionMiddleware", "get token", nil, err)
			}
			c.JSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
			c.Abort()
			return
		}

		ctx := utils.SetTokenInContext(c.Request.Context(), token)
		ctx = utils.SetUsernameInContext(ctx, username)
		c.Request = c.Request.WithContext(ctx)
		c.Next()
	}
}

// RequireSession rejects anonymous requests. Mount it on routes that write.
func RequireSession() gin.HandlerFunc {
	return func(c *gin.Context) {
		if name, ok := utils.GetUsernameFromContext(c.Request.Context()); !ok || name == "" {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
			return
		}
		c.Next()
	}
}
