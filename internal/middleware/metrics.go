package middleware

import (
	"strconv"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/castline/castline/internal/telemetry"
)

// noRoutePath labels requests that matched no route so raw URLs never become label values.
const noRoutePath = "<no-route>"

// MetricsMiddleware records http_requests_total and http_request_duration_seconds
// for every request, labelled by the matched route template (c.FullPath()).
//
// Register it after gin.Recovery() and RequestIDMiddleware so the final status
// written by error handlers is observed.
func MetricsMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()

		c.Next()

		path := c.FullPath()
		if path == "" {
			path = noRoutePath
		}
		method := c.Request.Method

		telemetry.HTTPRequestsTotal.WithLabelValues(method, path, strconv.Itoa(c.Writer.Status())).Inc()
		telemetry.HTTPRequestDuration.WithLabelValues(method, path).Observe(time.Since(start).Seconds())
	}
}
