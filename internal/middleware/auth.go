package middleware

import (
	"net/http"
	"strings"

	"friendmap/config"
	"friendmap/internal/auth"
	apperrors "friendmap/pkg/errors"

	"github.com/gin-gonic/gin"
)

const (
	ctxUID    = "uid"
	ctxEmail  = "email"
	ctxClaims = "claims"
)

// AuthRequired validates the access token and sets uid and email in context.
// The token comes from the Authorization header, or from the token query
// parameter for WebSocket upgrades, which cannot set headers in browsers.
func AuthRequired(cfg *config.JWTConfig) gin.HandlerFunc {
	return func(c *gin.Context) {
		token, msg := bearerToken(c)
		if token == "" {
			abortUnauthorized(c, msg)
			return
		}
		claims, err := auth.ParseAccessToken(cfg, token)
		if err != nil {
			abortUnauthorized(c, "invalid or expired token")
			return
		}
		c.Set(ctxUID, claims.UID)
		c.Set(ctxEmail, claims.Email)
		c.Set(ctxClaims, claims)
		c.Next()
	}
}

func bearerToken(c *gin.Context) (string, string) {
	header := c.GetHeader("Authorization")
	if header == "" {
		if q := c.Query("token"); q != "" {
			return q, ""
		}
		return "", "missing authorization header"
	}
	parts := strings.SplitN(header, " ", 2)
	if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") || parts[1] == "" {
		return "", "invalid authorization format"
	}
	return parts[1], ""
}

func abortUnauthorized(c *gin.Context, msg string) {
	c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": msg, "code": apperrors.ErrCodeUnauthorized})
}

// GetUID returns the authenticated uid from context (must be used after AuthRequired).
func GetUID(c *gin.Context) string {
	return c.GetString(ctxUID)
}
