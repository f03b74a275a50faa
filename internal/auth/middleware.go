package auth

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
)

const ctxClaims = "auth_claims"

// Anonymous is reported by Subject when a request carried no token.
const Anonymous = "anonymous"

// RequireToken enforces a valid Bearer token. A nil issuer means auth is
// disabled and every request passes.
func RequireToken(tokens *TokenIssuer) gin.HandlerFunc {
	if tokens == nil {
		return func(c *gin.Context) { c.Next() }
	}
	return func(c *gin.Context) {
		header := c.GetHeader("Authorization")
		if !strings.HasPrefix(header, "Bearer ") {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{
				"error": "Bearer token required",
			})
			return
		}

		claims, err := tokens.Verify(strings.TrimPrefix(header, "Bearer "))
		if err != nil {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{
				"error": "invalid token: " + err.Error(),
			})
			return
		}

		c.Set(ctxClaims, claims)
		c.Next()
	}
}

// Subject returns the token subject of the current request, or Anonymous.
func Subject(c *gin.Context) string {
	v, ok := c.Get(ctxClaims)
	if !ok {
		return Anonymous
	}
	claims, ok := v.(*Claims)
	if !ok || claims.Subject == "" {
		return Anonymous
	}
	return claims.Subject
}
