package middleware

import (
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/anmilktea/storefront-api/pkg"
)

// TraceID returns Gin middleware to handle trace IDs for observability.
func TraceID() gin.HandlerFunc {
	return func(c *gin.Context) {
		traceID := c.Request.Header.Get(pkg.HeaderTraceId)
		if traceID == "" {
			traceID = uuid.New().String()
		}
		// Set in context for handlers/services and echo back for downstream tracing
		c.Set(pkg.TraceId, traceID)
		c.Writer.Header().Set(pkg.HeaderTraceId, traceID)
		c.Next()
	}
}

// GetTraceID reads the trace ID set by the TraceID middleware.
func GetTraceID(c *gin.Context) string {
	if v, ok := c.Get(pkg.TraceId); ok {
		if s, ok := v.(string); ok {
			return s
		}
	}
	return ""
}
