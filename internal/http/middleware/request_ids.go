package middleware

import (
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/yungbote/ideaforge-backend/internal/platform/ctxutil"
)

const (
	HeaderTraceID   = "X-Trace-Id"
	HeaderRequestID = "X-Request-Id"
)

// RequestIDs resolves a request id (client supplied or generated) and a
// trace id (client supplied, else the active span's, else generated), stores
// both on the request context for logging, and echoes them as headers.
func RequestIDs() gin.HandlerFunc {
	return func(c *gin.Context) {
		ctx := c.Request.Context()
		span := trace.SpanFromContext(ctx)

		reqID := headerOr(c, HeaderRequestID, uuid.NewString)
		traceID := headerOr(c, HeaderTraceID, func() string {
			if sc := span.SpanContext(); sc.HasTraceID() {
				return sc.TraceID().String()
			}
			return uuid.NewString()
		})
		span.SetAttributes(attribute.String("http.request_id", reqID))

		c.Request = c.Request.WithContext(ctxutil.WithTraceData(ctx, &ctxutil.TraceData{
			TraceID:   traceID,
			RequestID: reqID,
		}))
		c.Header(HeaderTraceID, traceID)
		c.Header(HeaderRequestID, reqID)
		c.Next()
	}
}

func headerOr(c *gin.Context, name string, gen func() string) string {
	if v := strings.TrimSpace(c.GetHeader(name)); v != "" {
		return v
	}
	return gen()
}
