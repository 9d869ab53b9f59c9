package middleware

import (
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/yourusername/ytpipe-go/pkg/logger"
)

// quietPaths are polled by the CLI while it waits for the server and would
// flood the access log at info level
var quietPaths = map[string]bool{
	"/health": true,
	"/ready":  true,
}

// LoggerWithAdapter returns a gin middleware that writes the access log
// and mirrors error responses into the error log
func LoggerWithAdapter(logAdapter *logger.LoggerAdapter) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		path := c.Request.URL.Path
		query := c.Request.URL.RawQuery

		c.Next()

		status := c.Writer.Status()
		fields := requestFields(c, path, status)

		level := zapcore.InfoLevel
		if quietPaths[path] && status < 400 {
			level = zapcore.DebugLevel
		}
		if ce := logAdapter.WebAccess().Check(level, "HTTP request"); ce != nil {
			ce.Write(append(fields,
				zap.String("query", query),
				zap.Duration("latency", time.Since(start)),
				zap.String("user_agent", c.Request.UserAgent()),
			)...)
		}

		if status >= 500 {
			logAdapter.LogError(logger.CategoryAccess, "HTTP error response",
				append(fields, zap.Strings("errors", c.Errors.Errors()))...)
		}
	}
}

func requestFields(c *gin.Context, path string, status int) []zap.Field {
	return []zap.Field{
		zap.String("method", c.Request.Method),
		zap.String("path", path),
		zap.Int("status", status),
		zap.String("client_ip", c.ClientIP()),
	}
}
