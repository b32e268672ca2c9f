// Package respond renders engine errors at the HTTP boundary.
package respond

import (
	"log/slog"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/castline/castline/internal/apperr"
)

// Error aborts the request with the status and public message for err. The body is
// {"error": message, "code": KIND}; causes of persistence failures are logged, not returned.
func Error(c *gin.Context, err error) {
	status := apperr.HTTPStatus(err)
	if status >= http.StatusInternalServerError {
		slog.ErrorContext(c.Request.Context(), "request failed",
			"method", c.Request.Method,
			"path", c.FullPath(),
			"request_id", c.GetString("request_id"),
			"error", err,
		)
	}
	c.AbortWithStatusJSON(status, gin.H{
		"error": apperr.PublicMessage(err),
		"code":  apperr.KindOf(err),
	})
}

// BadRequest aborts with an INVALID_INPUT error for a malformed request body or query.
func BadRequest(c *gin.Context, format string, args ...any) {
	Error(c, apperr.InvalidInput(format, args...))
}
