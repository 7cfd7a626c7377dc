package respond

import (
	"github.com/gin-gonic/gin"

	"docextract-backend/internal/shared/telemetry"
)

// ErrorResponse is the flat error envelope returned by every failing endpoint.
type ErrorResponse struct {
	Error     string `json:"error"`
	ResetTime int64  `json:"resetTime,omitempty"`
}

// Error sends a standardized error response.
func Error(c *gin.Context, status int, message string) {
	logError(c, status, message)
	c.AbortWithStatusJSON(status, ErrorResponse{Error: message})
}

// RateLimited sends a 429 response carrying the window reset time.
func RateLimited(c *gin.Context, status int, message string, resetTime int64) {
	logError(c, status, message)
	c.AbortWithStatusJSON(status, ErrorResponse{Error: message, ResetTime: resetTime})
}

func logError(c *gin.Context, status int, message string) {
	fields := map[string]any{
		"status":     status,
		"message":    message,
		"path":       c.Request.URL.Path,
		"method":     c.Request.Method,
		"request_id": c.GetString("requestId"),
	}
	if userID := c.GetString("userId"); userID != "" {
		fields["user_id"] = userID
	}
	telemetry.Error("http.error", fields)
}
