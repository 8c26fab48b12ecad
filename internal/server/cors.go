package server

import (
	"net/http"

	"github.com/gin-gonic/gin"
)

// corsMiddleware applies the fixed origin allow-list. Allowed origins are
// echoed back; every other origin, including none at all, gets the sentinel
// "null" so browsers refuse the response cross-origin.
func corsMiddleware(allowed []string) gin.HandlerFunc {
	allowedSet := make(map[string]struct{}, len(allowed))
	for _, origin := range allowed {
		allowedSet[origin] = struct{}{}
	}

	return func(c *gin.Context) {
		origin := c.GetHeader("Origin")
		header := "null"
		if _, ok := allowedSet[origin]; ok {
			header = origin
		}
		c.Header("Access-Control-Allow-Origin", header)
		c.Header("Vary", "Origin")

		if c.Request.Method == http.MethodOptions {
			c.Header("Access-Control-Allow-Methods", "GET, POST, OPTIONS")
			c.Header("Access-Control-Allow-Headers", "Content-Type, If-None-Match")
			c.AbortWithStatus(http.StatusNoContent)
			return
		}
		c.Next()
	}
}
