package middleware

import (
	"crypto/subtle"

	"github.com/gin-gonic/gin"

	apperrors "budgetoffice/internal/errors"
)

// PipelineAuthMiddleware guards machine-to-machine export endpoints with the
// X-API-Key header. An empty apiKey disables those endpoints.
func PipelineAuthMiddleware(apiKey string) gin.HandlerFunc {
	return func(c *gin.Context) {
		if apiKey == "" {
			abortWithError(c, apperrors.ErrPipelineNotConfigured)
			return
		}
		key := c.GetHeader("X-API-Key")
		if subtle.ConstantTimeCompare([]byte(key), []byte(apiKey)) != 1 {
			abortWithError(c, apperrors.ErrInvalidAPIKey)
			return
		}
		c.Next()
	}
}
