package response

import (
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

// ContextKeyRequestID is the Gin context key for the request ID.
const ContextKeyRequestID = "request_id"

// HeaderRequestID is the header the ID is read from and echoed back on, so
// the portal frontend can correlate a failed call with the server logs.
const HeaderRequestID = "X-Request-ID"

// RequestIDMiddleware tags every request with an ID that ends up in the
// response metadata envelope. An inbound header value is honored only when
// it parses as a UUID; anything else is replaced so clients cannot inject
// arbitrary strings into logs or responses.
func RequestIDMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		reqID := c.GetHeader(HeaderRequestID)
		if _, err := uuid.Parse(reqID); err != nil {
			reqID = uuid.New().String()
		}
		c.Set(ContextKeyRequestID, reqID)
		c.Header(HeaderRequestID, reqID)
		c.Next()
	}
}

// GetRequestID returns the request's ID, generating a fresh one when the
// middleware did not run (direct handler tests).
func GetRequestID(c *gin.Context) string {
	if v, ok := c.Get(ContextKeyRequestID); ok {
		if id, ok := v.(string); ok && id != "" {
			return id
		}
	}
	return uuid.New().String()
}
