package api

import (
	"net/http"
	"strings"
	"sync"

	"github.com/gin-gonic/gin"
)

var (
	originMu      sync.RWMutex
	allowedOrigin = "*"
)

// AllowOrigin sets CORS_ORIGIN. "*" reflects the caller's Origin header so
// cookies keep working from the dev frontend.
func AllowOrigin(origin string) {
	origin = strings.TrimSpace(origin)
	if origin == "" {
		origin = "*"
	}
	originMu.Lock()
	allowedOrigin = origin
	originMu.Unlock()
}

func SetHeaders(c *gin.Context) {
	if c == nil {
		return
	}
	originMu.RLock()
	origin := allowedOrigin
	originMu.RUnlock()
	if origin == "*" {
		if requested := strings.TrimSpace(c.GetHeader("Origin")); requested != "" {
			origin = requested
		}
	}
	c.Header("Access-Control-Allow-Origin", origin)
	c.Header("Vary", "Origin")

	requestHeaders := strings.TrimSpace(c.GetHeader("Access-Control-Request-Headers"))
	if requestHeaders == "" {
		requestHeaders = "Content-Type, Authorization, X-Requested-With"
	}
	c.Header("Access-Control-Allow-Headers", requestHeaders)
	c.Header("Access-Control-Allow-Methods", "GET, POST, PUT, DELETE, PATCH, HEAD, OPTIONS")
	c.Header("Access-Control-Allow-Credentials", "true")

	c.Header("X-Content-Type-Options", "nosniff")
	c.Header("X-Frame-Options", "DENY")
	c.Header("Referrer-Policy", "same-origin")
}

// Preflight answers OPTIONS requests so handlers never see them.
func Preflight(c *gin.Context) bool {
	if c.Request.Method == http.MethodOptions {
		c.Status(http.StatusNoContent)
		return true
	}
	return false
}
