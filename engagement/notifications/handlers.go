package notifications

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"lumigente_backend/main/api"
	"lumigente_backend/main/session"
)

const listLimit = 20

// ListHandler: GET /api/notifications
func ListHandler(c *gin.Context) {
	if api.Preflight(c) {
		return
	}
	list, err := Unread(c.Request.Context(), session.Current(c).ID, listLimit)
	if err != nil {
		api.Internal(c, "Erro ao buscar notificações", err)
		return
	}
	api.Print_json(c, list)
}

// CountHandler: GET /api/notifications/count
func CountHandler(c *gin.Context) {
	if api.Preflight(c) {
		return
	}
	n, err := CountUnread(c.Request.Context(), session.Current(c).ID)
	if err != nil {
		api.Internal(c, "Erro ao contar notificações", err)
		return
	}
	api.Print_json(c, "count", n)
}

// MarkReadHandler: PUT /api/notifications/:id/read
func MarkReadHandler(c *gin.Context) {
	if api.Preflight(c) {
		return
	}
	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil || id <= 0 {
		api.Fail(c, http.StatusBadRequest, "ID de notificação inválido")
		return
	}
	if _, err := MarkRead(c.Request.Context(), session.Current(c).ID, id); err != nil {
		api.Internal(c, "Erro ao marcar notificação como lida", err)
		return
	}
	api.Print_json(c, "success", true)
}

// MarkAllReadHandler: PUT /api/notifications/read-all
func MarkAllReadHandler(c *gin.Context) {
	if api.Preflight(c) {
		return
	}
	if _, err := MarkAllRead(c.Request.Context(), session.Current(c).ID); err != nil {
		api.Internal(c, "Erro ao marcar notificações como lidas", err)
		return
	}
	api.Print_json(c, "success", true)
}
