package middleware

import (
	"strings"

	"github.com/gin-gonic/gin"
)

const (
	// userIDKey is the Gin context key holding the caller's identity.
	userIDKey = "userID"
	// HeaderUserID carries the caller identity set by the upstream gateway.
	HeaderUserID = "X-User-ID"
	// AnonymousUser is used when no identity is available.
	AnonymousUser = "demo-user"
)

// Identity copies X-User-ID into the Gin context unless an earlier
// middleware already set one. Authentication happens upstream; this only
// makes the identity available to rate limiting, idempotency and handlers.
func Identity() gin.HandlerFunc {
	return func(c *gin.Context) {
		if _, ok := c.Get(userIDKey); !ok {
			if h := strings.TrimSpace(c.GetHeader(HeaderUserID)); h != "" {
				c.Set(userIDKey, h)
			}
		}
		c.Next()
	}
}

// UserID returns the caller identity from the Gin context, falling back to
// AnonymousUser.
func UserID(c *gin.Context) string {
	if v, ok := c.Get(userIDKey); ok {
		if s, ok := v.(string); ok && s != "" {
			return s
		}
	}
	return AnonymousUser
}
