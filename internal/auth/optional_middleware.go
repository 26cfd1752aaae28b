package auth

import (
	"playmatch/matchmaster/pkg/jwt"

	"github.com/gin-gonic/gin"
)

// OptionalAuthMiddleware inspects for a token and sets the userID if present and valid,
// but does not fail if the token is missing or invalid.
func OptionalAuthMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		if tokenString := bearerToken(c); tokenString != "" {
			if userID, err := jwt.ParseToken(tokenString); err == nil {
				c.Set("userID", userID)
			}
		}
		c.Next()
	}
}
