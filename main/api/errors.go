package api

import (
	"net/http"
	"runtime/debug"
	"strings"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"lumigente_backend/main/logger"
)

// Fail writes {"error": msg} and aborts the chain.
func Fail(c *gin.Context, status int, msg string, extra ...any) {
	payload := J("error", msg)
	for key, value := range J(extra...) {
		payload[key] = value
	}
	c.AbortWithStatusJSON(status, payload)
}

// Internal logs err and answers with a generic 500.
func Internal(c *gin.Context, msg string, err error) {
	logger.L().Error(msg,
		zap.String("path", c.Request.URL.Path),
		zap.Error(err),
	)
	_ = c.Error(err)
	Fail(c, http.StatusInternalServerError, msg)
}

// NotFound answers unknown API routes with JSON and leaves the rest to the
// static frontend handler.
func NotFound(static gin.HandlerFunc) gin.HandlerFunc {
	return func(c *gin.Context) {
		if strings.HasPrefix(c.Request.URL.Path, "/api/") || static == nil {
			Fail(c, http.StatusNotFound, "Rota não encontrada")
			return
		}
		static(c)
	}
}

func Recovery() gin.HandlerFunc {
	return gin.CustomRecovery(func(c *gin.Context, recovered any) {
		logger.L().Error("panic recovered",
			zap.Any("panic", recovered),
			zap.String("path", c.Request.URL.Path),
			zap.ByteString("stack", debug.Stack()),
		)
		Fail(c, http.StatusInternalServerError, "Erro interno do servidor")
	})
}
