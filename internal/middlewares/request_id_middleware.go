package middlewares

import (
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"schemakit/internal/responses"
)

const RequestIDHeader = "X-Request-ID"

// RequestID reuses the caller's X-Request-ID when it is a UUID and mints a
// new one otherwise. The ID is echoed back and stored for the response
// envelope.
func RequestID(c *gin.Context) {
	id := c.GetHeader(RequestIDHeader)
	if _, err := uuid.Parse(id); err != nil {
		id = uuid.NewString()
	}

	c.Set(responses.RequestIDKey, id)
	c.Header(RequestIDHeader, id)

	c.Next()
}
