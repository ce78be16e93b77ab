package middleware

import (
	"github.com/gin-gonic/gin"

	"ride-relay/internal/observability"
)

// RequestIDContextKey is where the request id is stored on the gin context.
const RequestIDContextKey = "request_id"

// RequestID makes sure every request carries an X-Request-Id, echoing it on
// the response and forwarding it to handlers that read the raw request.
func RequestID() gin.HandlerFunc {
	return func(c *gin.Context) {
		id := observability.RequestIDFromRequest(c.Request)
		c.Request.Header.Set(observability.RequestIDHeader, id)
		c.Set(RequestIDContextKey, id)
		c.Header(observability.RequestIDHeader, id)
		c.Next()
	}
}
