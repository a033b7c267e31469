package middleware

import (
	"strconv"
	"strings"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/yungbote/ideaforge-backend/internal/observability"
	"github.com/yungbote/ideaforge-backend/internal/platform/ctxutil"
	"github.com/yungbote/ideaforge-backend/internal/platform/logger"
)

// AccessLog logs every request and records API metrics when m is non-nil.
// SSE streams stay open for minutes, so they skip the inflight gauge and the
// latency histogram and log at debug.
func AccessLog(log *logger.Logger, m *observability.Metrics) gin.HandlerFunc {
	if log == nil {
		log = logger.Nop()
	}
	return func(c *gin.Context) {
		start := time.Now()
		stream := isStream(c)
		if !stream {
			m.ApiInflightInc()
			defer m.ApiInflightDec()
		}

		c.Next()

		route := c.FullPath()
		if route == "" {
			route = "unknown"
		}
		status := c.Writer.Status()
		elapsed := time.Since(start)
		if !stream {
			m.ObserveAPI(c.Request.Method, route, strconv.Itoa(status), elapsed)
		}

		fields := []interface{}{
			"method", c.Request.Method,
			"route", route,
			"status", status,
			"duration_ms", elapsed.Milliseconds(),
		}
		if td := ctxutil.GetTraceData(c.Request.Context()); td != nil {
			fields = append(fields, "trace_id", td.TraceID, "request_id", td.RequestID)
		}
		if id := c.Param("id"); id != "" {
			fields = append(fields, "resource_id", id)
		}
		if len(c.Errors) > 0 {
			fields = append(fields, "errors", c.Errors.String())
		}

		switch {
		case status >= 500:
			log.Error("HTTP request", fields...)
		case status >= 400:
			log.Warn("HTTP request", fields...)
		case stream:
			log.Debug("HTTP request", fields...)
		default:
			log.Info("HTTP request", fields...)
		}
	}
}

func isStream(c *gin.Context) bool {
	return strings.HasSuffix(c.FullPath(), "/stream") ||
		strings.Contains(c.GetHeader("Accept"), "text/event-stream")
}
