package middleware

import (
	"context"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

const (
	// RequestIDHeader carries the request identifier in both directions.
	RequestIDHeader = "X-Request-ID"

	// RequestIDKey is the gin.Context key holding the request id.
	RequestIDKey = "request_id"

	// maxRequestIDLen bounds ids accepted from upstream callers.
	maxRequestIDLen = 128
)

type requestIDCtxKey struct{}

// RequestIDMiddleware reuses an inbound X-Request-ID (when present and no longer than
// 128 bytes) or generates a UUID v4. The id is stored under RequestIDKey, attached to
// the request's context.Context for code below the HTTP layer, and echoed back in
// the response header.
//
// Register it early so every later middleware and log line can see the id:
//
//	router.Use(gin.Recovery())
//	router.Use(RequestIDMiddleware())
//	router.Use(MetricsMiddleware())
func RequestIDMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		id := c.GetHeader(RequestIDHeader)
		if id == "" || len(id) > maxRequestIDLen {
			id = uuid.New().String()
		}

		c.Set(RequestIDKey, id)
		c.Request = c.Request.WithContext(context.WithValue(c.Request.Context(), requestIDCtxKey{}, id))
		c.Header(RequestIDHeader, id)

		c.Next()
	}
}

// RequestIDFromContext returns the request id attached by RequestIDMiddleware, or "".
func RequestIDFromContext(ctx context.Context) string {
	id, _ := ctx.Value(requestIDCtxKey{}).(string)
	return id
}
