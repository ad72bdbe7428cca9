package server

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"apflow/internal/apperr"
)

// writeError maps the shared error taxonomy to HTTP responses. Unauthorized
// reads arrive here already converted to not found by the services, so no
// existence is leaked; rate limits carry a Retry-After hint in seconds.
func writeError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, apperr.ErrNotFound):
		c.JSON(http.StatusNotFound, gin.H{"error": "not found"})
	case errors.Is(err, apperr.ErrForbidden):
		c.JSON(http.StatusForbidden, gin.H{"error": "forbidden"})
	case errors.Is(err, apperr.ErrInvalidTransition):
		c.JSON(http.StatusConflict, gin.H{"error": "invalid transition"})
	case errors.Is(err, apperr.ErrVersionConflict):
		c.JSON(http.StatusConflict, gin.H{"error": "record changed, please refresh"})
	case errors.Is(err, apperr.ErrRateLimited):
		seconds := int(apperr.RetryAfter(err).Seconds())
		if seconds < 1 {
			seconds = 1
		}
		c.Header("Retry-After", strconv.Itoa(seconds))
		c.JSON(http.StatusTooManyRequests, gin.H{"error": "rate limited", "retry_after_seconds": seconds})
	case errors.Is(err, apperr.ErrUpstreamFailure):
		c.JSON(http.StatusBadGateway, gin.H{"error": "upstream failure"})
	default:
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal error"})
	}
}
