package server

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	actordomain "apflow/internal/actor/domain"
)

const actorContextKey = "apflow.actor"

// authRequired validates the bearer token and loads the full profile so
// downstream access rules see display name, programs, and entitlements.
func (s *Server) authRequired() gin.HandlerFunc {
	return func(c *gin.Context) {
		header := c.GetHeader("Authorization")
		token, ok := strings.CutPrefix(header, "Bearer ")
		if !ok || token == "" {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "missing bearer token"})
			return
		}
		actorID, _, _, err := s.tokens.ValidateAccess(token)
		if err != nil {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "invalid token"})
			return
		}
		profile, err := s.profiles.GetByID(c.Request.Context(), actorID)
		if err != nil {
			c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"error": "internal error"})
			return
		}
		if profile == nil || !profile.Active {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "invalid token"})
			return
		}
		c.Set(actorContextKey, profile.Actor())
		c.Next()
	}
}

// currentActor returns the authenticated actor set by authRequired.
func currentActor(c *gin.Context) *actordomain.Actor {
	v, ok := c.Get(actorContextKey)
	if !ok {
		return nil
	}
	actor, _ := v.(*actordomain.Actor)
	return actor
}
