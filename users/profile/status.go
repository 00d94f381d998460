package profile

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"lumigente_backend/main/api"
	"lumigente_backend/main/play_sql"
	"lumigente_backend/main/session"
)

// StatusHandler: GET /api/users/status?mode=status|overview
//
// mode=status reports the account flags; the default overview adds points
// and unread notifications.
func StatusHandler(c *gin.Context) {
	if api.Preflight(c) {
		return
	}
	u := session.Current(c)
	if u == nil {
		api.Fail(c, http.StatusUnauthorized, "Usuário não autenticado")
		return
	}
	ctx := c.Request.Context()

	row, found, err := play_sql.QueryRow(ctx, `
		SELECT u.UserName, u.NomeCompleto, u.IsActive, u.FirstLogin, u.LastLogin,
			CASE WHEN u.PasswordHash IS NULL OR u.PasswordHash = '' THEN 0 ELSE 1 END AS registered
		FROM Users u
		WHERE u.Id = ?`, u.ID)
	if err != nil {
		api.Internal(c, "Erro ao buscar status do usuário", err)
		return
	}
	if !found {
		api.Fail(c, http.StatusNotFound, "Usuário não encontrado")
		return
	}

	if c.Query("mode") == "status" {
		api.Print_json(c,
			"success", true,
			"isActive", play_sql.ToBool(row["IsActive"]),
			"firstLogin", play_sql.ToBool(row["FirstLogin"]),
			"registered", play_sql.ToBool(row["registered"]),
			"lastLogin", row["LastLogin"],
		)
		return
	}

	points, _, err := play_sql.QueryRow(ctx, "SELECT COALESCE(SUM(TotalPoints), 0) AS total FROM UserPoints WHERE UserId = ?", u.ID)
	if err != nil {
		api.Internal(c, "Erro ao buscar status do usuário", err)
		return
	}
	unread, err := play_sql.Count(ctx, "SELECT COUNT(*) FROM Notifications WHERE UserId = ? AND IsRead = 0", u.ID)
	if err != nil {
		api.Internal(c, "Erro ao buscar status do usuário", err)
		return
	}
	api.Print_json(c,
		"success", true,
		"userName", row["UserName"],
		"nomeCompleto", row["NomeCompleto"],
		"totalPoints", play_sql.ToInt(points["total"]),
		"unreadNotifications", unread,
	)
}
