package response

import (
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

// ContextKeyRequestID is the Gin context key for the request ID.
const ContextKeyRequestID = "request_id"

// RequestIDMiddleware attaches a request ID to every request. An
// incoming X-Request-ID header is honored so the SPA can correlate
// failed calls; otherwise a fresh UUID is minted. The ID is echoed in
// the response header and in the envelope metadata.
func RequestIDMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		reqID := c.GetHeader("X-Request-ID")
		if reqID == "" {
			reqID = uuid.New().String()
		}
		c.Set(ContextKeyRequestID, reqID)
		c.Header("X-Request-ID", reqID)
		c.Next()
	}
}

// RequestID returns the request ID for the current request, or "" when
// the middleware did not run.
func RequestID(c *gin.Context) string {
	val, ok := c.Get(ContextKeyRequestID)
	if !ok {
		return ""
	}
	id, _ := val.(string)
	return id
}
