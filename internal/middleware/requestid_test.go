package middleware

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

// newRequestIDRouter echoes the id seen through gin.Context and through the request context.
func newRequestIDRouter() *gin.Engine {
	r := gin.New()
	r.Use(RequestIDMiddleware())
	r.GET("/", func(c *gin.Context) {
		c.Header("X-Gin-Request-ID", c.GetString(RequestIDKey))
		c.Header("X-Ctx-Request-ID", RequestIDFromContext(c.Request.Context()))
		c.Status(http.StatusOK)
	})
	return r
}

func doRequestID(r *gin.Engine, incoming string) http.Header {
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	if incoming != "" {
		req.Header.Set(RequestIDHeader, incoming)
	}
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w.Header()
}

func TestRequestIDMiddleware_GeneratesUUID(t *testing.T) {
	h := doRequestID(newRequestIDRouter(), "")

	id := h.Get(RequestIDHeader)
	if _, err := uuid.Parse(id); err != nil {
		t.Fatalf("X-Request-ID %q is not a UUID: %v", id, err)
	}
	if h.Get("X-Gin-Request-ID") != id || h.Get("X-Ctx-Request-ID") != id {
		t.Errorf("context ids (%q, %q) do not match response id %q",
			h.Get("X-Gin-Request-ID"), h.Get("X-Ctx-Request-ID"), id)
	}
}

func TestRequestIDMiddleware_PropagatesIncomingID(t *testing.T) {
	const upstreamID = "lb-7f3a9c"
	h := doRequestID(newRequestIDRouter(), upstreamID)
	if got := h.Get(RequestIDHeader); got != upstreamID {
		t.Errorf("X-Request-ID = %q, want %q", got, upstreamID)
	}
}

func TestRequestIDMiddleware_ReplacesOversizedID(t *testing.T) {
	oversized := strings.Repeat("x", maxRequestIDLen+1)
	h := doRequestID(newRequestIDRouter(), oversized)
	if got := h.Get(RequestIDHeader); got == oversized {
		t.Error("oversized inbound request id was echoed back")
	}
}

func TestRequestIDMiddleware_DifferentIDsPerRequest(t *testing.T) {
	r := newRequestIDRouter()
	seen := make(map[string]bool)
	for i := range 10 {
		id := doRequestID(r, "").Get(RequestIDHeader)
		if seen[id] {
			t.Errorf("duplicate request ID %q on iteration %d", id, i)
		}
		seen[id] = true
	}
}
