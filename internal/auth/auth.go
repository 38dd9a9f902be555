// Package auth guards the admin API with a shared secret.
package auth

import (
	"crypto/subtle"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
)

const (
	// HeaderAdminSecret carries the shared admin secret.
	HeaderAdminSecret = "X-Admin-Secret"
	// HeaderActorID names the operator performing an admin action.
	HeaderActorID = "X-Actor-ID"

	// ContextKeyActorID is the gin context key for the authenticated actor.
	ContextKeyActorID = "actorId"

	defaultActor = "admin"
)

// RequireAdmin rejects requests whose X-Admin-Secret does not match secret.
// An empty secret allows every request (local development only; config
// refuses to start production without one).
func RequireAdmin(secret string) gin.HandlerFunc {
	return func(c *gin.Context) {
		if secret != "" {
			got := c.GetHeader(HeaderAdminSecret)
			if got == "" {
				c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{
					"error":   "unauthorized",
					"message": "admin secret required",
				})
				return
			}
			if subtle.ConstantTimeCompare([]byte(got), []byte(secret)) != 1 {
				c.AbortWithStatusJSON(http.StatusForbidden, gin.H{
					"error":   "forbidden",
					"message": "invalid admin secret",
				})
				return
			}
		}

		actor := strings.TrimSpace(c.GetHeader(HeaderActorID))
		if actor == "" {
			actor = defaultActor
		}
		c.Set(ContextKeyActorID, actor)
		c.Next()
	}
}

// ActorID returns the operator recorded by RequireAdmin.
func ActorID(c *gin.Context) string {
	if v, ok := c.Get(ContextKeyActorID); ok {
		if s, ok := v.(string); ok && s != "" {
			return s
		}
	}
	return defaultActor
}
