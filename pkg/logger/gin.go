package logger

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

const (
	headerRequestID = "X-Request-Id"
	// Set by Twilio; identical across retries of one webhook delivery.
	headerGatewayToken = "I-Twilio-Idempotency-Token"

	ginLoggerKey = "logger"
)

// Middleware tags each request with a request id, exposes the tagged logger
// through both the gin context and the request context, and writes one
// summary line per request. Level follows the response status.
func Middleware(l *slog.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		rid := requestID(c)
		c.Writer.Header().Set(headerRequestID, rid)

		reqLogger := l.With("request_id", rid)
		if tok := c.GetHeader(headerGatewayToken); tok != "" {
			reqLogger = reqLogger.With("gateway_token", tok)
		}
		c.Set(ginLoggerKey, reqLogger)
		c.Request = c.Request.WithContext(With(c.Request.Context(), reqLogger))

		c.Next()

		route := c.FullPath()
		if route == "" {
			route = c.Request.URL.Path
		}
		status := c.Writer.Status()
		attrs := []slog.Attr{
			slog.String("method", c.Request.Method),
			slog.String("path", route),
			slog.Int("status", status),
			slog.Int64("duration_ms", time.Since(start).Milliseconds()),
		}
		if len(c.Errors) > 0 {
			attrs = append(attrs, slog.String("errors", c.Errors.String()))
		}
		reqLogger.LogAttrs(context.Background(), levelFor(status, len(c.Errors) > 0), "request", attrs...)
	}
}

func requestID(c *gin.Context) string {
	if rid := c.GetHeader(headerRequestID); rid != "" {
		return rid
	}
	return uuid.NewString()
}

func levelFor(status int, hasErrors bool) slog.Level {
	switch {
	case hasErrors || status >= http.StatusInternalServerError:
		return slog.LevelError
	case status >= http.StatusBadRequest:
		return slog.LevelWarn
	default:
		return slog.LevelInfo
	}
}

// FromGin returns the logger Middleware stored on c, or slog.Default.
func FromGin(c *gin.Context) *slog.Logger {
	if l, ok := c.Value(ginLoggerKey).(*slog.Logger); ok && l != nil {
		return l
	}
	return slog.Default()
}
