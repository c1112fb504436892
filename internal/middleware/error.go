package middleware

import (
	"errors"

	"github.com/gin-gonic/gin"

	apperrors "budgetoffice/internal/errors"
	"budgetoffice/internal/logger"
)

// ErrorHandler renders the last error attached to the Gin context, for
// handlers that report failures with c.Error instead of writing a response.
func ErrorHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Next()

		if len(c.Errors) == 0 || c.Writer.Written() {
			return
		}
		WriteError(c, c.Errors.Last().Err)
	}
}

// WriteError writes err as {"error":{"code","message"}}. An *AppError keeps
// its status and code; anything else is logged and reported as INTERNAL_ERROR
// so driver messages never reach the client.
func WriteError(c *gin.Context, err error) {
	appErr := toAppError(c, err)
	c.JSON(appErr.StatusCode, gin.H{
		"error": gin.H{
			"code":    appErr.Code,
			"message": appErr.Message,
		},
	})
}

func abortWithError(c *gin.Context, err error) {
	c.Abort()
	WriteError(c, err)
}

func toAppError(c *gin.Context, err error) *apperrors.AppError {
	var appErr *apperrors.AppError
	if errors.As(err, &appErr) {
		if appErr.Internal != nil {
			logger.Get().Errorw("app error",
				"code", appErr.Code,
				"internal", appErr.Internal.Error(),
				"path", c.Request.URL.Path,
				"request_id", c.GetString(requestIDKey),
			)
		}
		return appErr
	}

	logger.Get().Errorw("unexpected error",
		"error", err.Error(),
		"path", c.Request.URL.Path,
		"method", c.Request.Method,
		"request_id", c.GetString(requestIDKey),
	)
	return apperrors.ErrInternalServer
}
