package auth

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
)

const (
	userIDContextKey   = "auth_user_id"
	usernameContextKey = "auth_username"
	tokenContextKey    = "auth_token"
)

// Middleware validates bearer tokens and stores the authenticated user
// in the context.
func (s *Service) Middleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		tokenString := s.extractToken(c)
		if tokenString == "" {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "authorization required"})
			return
		}
		claims, err := s.ValidateToken(c.Request.Context(), tokenString)
		if err != nil {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": err.Error()})
			return
		}
		c.Set(userIDContextKey, claims.Subject)
		c.Set(usernameContextKey, claims.Username)
		c.Set(tokenContextKey, tokenString)
		c.Next()
	}
}

// UserFromContext retrieves the authenticated user id and name.
func UserFromContext(c *gin.Context) (string, string, bool) {
	idVal, ok := c.Get(userIDContextKey)
	if !ok {
		return "", "", false
	}
	id, ok := idVal.(string)
	if !ok || id == "" {
		return "", "", false
	}
	name, _ := c.Get(usernameContextKey)
	username, _ := name.(string)
	return id, username, true
}

// TokenFromContext retrieves the bearer token captured by the middleware.
func TokenFromContext(c *gin.Context) (string, bool) {
	val, ok := c.Get(tokenContextKey)
	if !ok {
		return "", false
	}
	token, ok := val.(string)
	return token, ok
}

func (s *Service) extractToken(c *gin.Context) string {
	authHeader := c.GetHeader(s.headerName)
	if strings.HasPrefix(strings.ToLower(authHeader), "bearer ") {
		return strings.TrimSpace(authHeader[7:])
	}
	return ""
}
