package profile

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"lumigente_backend/main/api"
	"lumigente_backend/main/logger"
	"lumigente_backend/main/play_sql"
	"lumigente_backend/main/session"
	"lumigente_backend/users/access"
	"lumigente_backend/users/auth"
)

// CurrentUserHandler: GET /api/usuario
// The e-mail is re-read so changes made outside the session show up.
func CurrentUserHandler(c *gin.Context) {
	if api.Preflight(c) {
		return
	}
	u := session.Current(c)
	if u == nil {
		api.Fail(c, http.StatusUnauthorized, "Usuário não autenticado")
		return
	}

	row, found, err := play_sql.QueryRow(c.Request.Context(), "SELECT Email FROM Users WHERE Id = ?", u.ID)
	if err != nil {
		logger.L().Warn("email sync", zap.Int64("user_id", u.ID), zap.Error(err))
	} else if found && row["Email"] != "" && row["Email"] != u.Email {
		updated := *u
		updated.Email = row["Email"]
		if err := session.Replace(c, &updated); err != nil {
			logger.L().Warn("email sync", zap.Int64("user_id", u.ID), zap.Error(err))
		}
		u = &updated
	}
	api.Print_json(c, u)
}

func permissionsOf(u *access.User) access.Permissions {
	if u.CachedPermissions != nil {
		return *u.CachedPermissions
	}
	return access.AllPermissions(u)
}

// PermissionsHandler: GET /api/users/permissions
func PermissionsHandler(c *gin.Context) {
	if api.Preflight(c) {
		return
	}
	u := session.Current(c)
	if u == nil {
		api.Fail(c, http.StatusUnauthorized, "Usuário não autenticado")
		return
	}
	perms := permissionsOf(u)

	departments := []string{}
	paths := []string{}
	if perms.IsManager {
		managed, err := auth.ManagedDepartments(c.Request.Context(), u.Matricula)
		if err != nil {
			api.Internal(c, "Erro interno do servidor", err)
			return
		}
		for _, d := range managed {
			departments = append(departments, d.Depto)
			paths = append(paths, d.Path)
		}
	}

	level := u.HierarchyLevel
	if level < 1 {
		level = 1
	}
	api.Print_json(c,
		"success", true,
		"user", api.J(
			"nome", orDefault(u.Nome, u.NomeCompleto, u.UserName, "Usuário"),
			"departamento", orDefault(u.Departamento, "N/A"),
			"hierarchyLevel", level,
			"role", orDefault(u.Role, "Funcionário"),
			"matricula", orDefault(u.Matricula, "N/A"),
		),
		"permissions", perms,
		"hierarchy", api.J(
			"isManager", perms.IsManager,
			"isFullAccess", perms.IsFullAccess,
			"managerType", perms.ManagerType,
			"hierarchyLevel", level,
			"managedDepartments", departments,
			"hierarchyPaths", paths,
		),
	)
}

// RefreshPermissionsHandler: POST /api/refresh-permissions
func RefreshPermissionsHandler(c *gin.Context) {
	if api.Preflight(c) {
		return
	}
	u := session.Current(c)
	if u == nil {
		api.Fail(c, http.StatusUnauthorized, "Usuário não autenticado")
		return
	}
	fresh, err := auth.Reload(c.Request.Context(), u.ID)
	if err == auth.ErrUserNotFound {
		api.Fail(c, http.StatusNotFound, "Usuário não encontrado")
		return
	}
	if err != nil {
		api.Internal(c, "Erro interno do servidor", err)
		return
	}
	if err := session.Replace(c, fresh); err != nil {
		api.Internal(c, "Erro interno do servidor", err)
		return
	}
	api.Print_json(c,
		"success", true,
		"message", "Permissões atualizadas",
		"user", fresh,
		"permissions", fresh.CachedPermissions,
	)
}

// DebugPermissionsHandler: GET /api/debug-permissions/:matricula
func DebugPermissionsHandler(c *gin.Context) {
	if api.Preflight(c) {
		return
	}
	u := session.Current(c)
	if u == nil {
		api.Fail(c, http.StatusUnauthorized, "Usuário não autenticado")
		return
	}
	if !u.FullAccess() {
		api.Fail(c, http.StatusForbidden, "Acesso negado")
		return
	}

	ctx := c.Request.Context()
	matricula := strings.TrimSpace(c.Param("matricula"))
	row, found, err := play_sql.QueryRow(ctx, `
		SELECT Id, NomeCompleto, Matricula, Departamento, Filial, HierarchyPath, Role
		FROM Users WHERE Matricula = ?
		ORDER BY Id LIMIT 1`, matricula)
	if err != nil {
		api.Internal(c, "Erro interno do servidor", err)
		return
	}
	if !found {
		api.Fail(c, http.StatusNotFound, "Usuário não encontrado")
		return
	}

	responsible, err := auth.IsResponsible(ctx, matricula)
	if err != nil {
		api.Internal(c, "Erro interno do servidor", err)
		return
	}
	level, err := auth.Level(ctx, matricula, row["Filial"])
	if err != nil {
		api.Internal(c, "Erro interno do servidor", err)
		return
	}

	api.Print_json(c,
		"user", api.J(
			"nome", row["NomeCompleto"],
			"matricula", row["Matricula"],
			"departamento", row["Departamento"],
			"hierarchyPath", row["HierarchyPath"],
			"role", row["Role"],
		),
		"permissions", api.J(
			"hierarchyLevel", level,
			"isResponsavel", responsible,
			"hasTeamAccess", level >= 3,
		),
		"debug", api.J(
			"roleCheck", row["Role"] == access.RoleAdmin,
			"responsibilityCheck", responsible,
			"finalLevel", level,
		),
	)
}

// DebugUserPermissionsHandler: GET /api/users/debug/permissions
func DebugUserPermissionsHandler(c *gin.Context) {
	if api.Preflight(c) {
		return
	}
	u := session.Current(c)
	if u == nil {
		api.Fail(c, http.StatusUnauthorized, "Usuário não autenticado")
		return
	}
	isHR, isTD := access.CheckHRTD(u.Departamento)
	level := u.HierarchyLevel
	perms := permissionsOf(u)

	api.Print_json(c,
		"user", api.J(
			"userId", u.ID,
			"nomeCompleto", u.NomeCompleto,
			"departamento", u.Departamento,
			"hierarchyLevel", level,
			"role", orDefault(u.Role, "Funcionário"),
			"HierarchyPath", u.HierarchyPath,
			"Matricula", u.Matricula,
		),
		"analysis", api.J(
			"isHR", isHR,
			"isTD", isTD,
			"isAdministrator", u.IsAdmin(),
			"isManager", level >= 3,
			"isSupervisor", level >= 2,
			"isEmployee", level < 2,
		),
		"permissions", perms,
	)
}

func orDefault(values ...string) string {
	for _, v := range values {
		if strings.TrimSpace(v) != "" {
			return v
		}
	}
	return ""
}
