package middleware

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/yourusername/ytpipe-go/pkg/logger"
)

// RecoveryWithAdapter turns a handler panic into a 500 and records it in the
// access and error logs. A response that has already started (for example an
// upgraded websocket) is only aborted.
func RecoveryWithAdapter(logAdapter *logger.LoggerAdapter) gin.HandlerFunc {
	return func(c *gin.Context) {
		defer func() {
			rec := recover()
			if rec == nil {
				return
			}
			logAdapter.LogError(logger.CategoryAccess, "Panic recovered",
				append(requestFields(c, c.Request.URL.Path, http.StatusInternalServerError),
					zap.Any("panic", rec),
					zap.Stack("stack"),
				)...)

			if c.Writer.Written() {
				c.Abort()
				return
			}
			c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{
				"error": "Internal server error",
			})
		}()
		c.Next()
	}
}
