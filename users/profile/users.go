package profile

import (
	"context"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"lumigente_backend/main/api"
	"lumigente_backend/main/play_sql"
	"lumigente_backend/main/session"
	"lumigente_backend/users/access"
	"lumigente_backend/users/auth"
)

// userColumns selects a Users row in the shape the frontend lists expect,
// plus a flag telling whether the user manages any department.
const userColumns = `u.Id AS userId, u.NomeCompleto AS nomeCompleto, u.Departamento AS departamento,
	u.DescricaoDepartamento AS descricaoDepartamento, u.HierarchyPath AS hierarchyPath, u.Matricula AS Matricula,
	(SELECT COUNT(*) FROM HIERARQUIA_CC r WHERE r.RESPONSAVEL_ATUAL = u.Matricula) AS responsavel`

func listedUser(row map[string]string) api.JsonEncode {
	level := access.LevelFromPath(row["hierarchyPath"], row["departamento"], play_sql.ToInt(row["responsavel"]) > 0)
	return api.J(
		"userId", play_sql.ToInt64(row["userId"]),
		"nomeCompleto", row["nomeCompleto"],
		"departamento", row["departamento"],
		"descricaoDepartamento", row["descricaoDepartamento"],
		"hierarchyPath", row["hierarchyPath"],
		"Matricula", row["Matricula"],
		"hierarchyLevel", level,
	)
}

func listedUsers(rows []map[string]string) []api.JsonEncode {
	out := make([]api.JsonEncode, 0, len(rows))
	for _, row := range rows {
		out = append(out, listedUser(row))
	}
	return out
}

// AccessibleUsers: HR/T&D see every active user, department responsibles see
// their teams and themselves, everybody else only themselves.
func AccessibleUsers(ctx context.Context, u *access.User, department string) ([]map[string]string, error) {
	department = strings.TrimSpace(department)
	filtered := department != "" && department != "Todos"

	if u.FullAccess() {
		query := "SELECT " + userColumns + " FROM Users u WHERE u.IsActive = 1"
		args := []any{}
		if filtered {
			query += " AND u.Departamento = ?"
			args = append(args, department)
		}
		return play_sql.QueryRows(ctx, query+" ORDER BY u.NomeCompleto", args...)
	}

	self := "SELECT " + userColumns + " FROM Users u WHERE u.IsActive = 1 AND u.Id = ?"
	responsible, err := auth.IsResponsible(ctx, u.Matricula)
	if err != nil {
		return nil, err
	}
	if !responsible {
		return play_sql.QueryRows(ctx, self, u.ID)
	}

	query := `SELECT * FROM (
		SELECT ` + userColumns + `
		FROM Users u
		JOIN TAB_HIST_SRA s ON s.MATRICULA = u.Matricula
		JOIN HIERARQUIA_CC h ON h.RESPONSAVEL_ATUAL = ?
		WHERE u.IsActive = 1 AND s.STATUS_GERAL = 'ATIVO'
			AND (TRIM(s.DEPARTAMENTO) = TRIM(h.DEPTO_ATUAL) OR s.MATRICULA = h.RESPONSAVEL_ATUAL)
			AND (h.FILIAL = ? OR ? = '' OR h.FILIAL IS NULL)
		UNION
		` + self + `
	) t`
	args := []any{u.Matricula, u.Filial, u.Filial, u.ID}
	if filtered {
		query += " WHERE TRIM(COALESCE(NULLIF(t.descricaoDepartamento, ''), t.departamento)) = ? OR t.userId = ?"
		args = append(args, department, u.ID)
	}
	return play_sql.QueryRows(ctx, query+" ORDER BY t.nomeCompleto", args...)
}

// ListUsersHandler: GET /api/users/list?department
func ListUsersHandler(c *gin.Context) {
	if api.Preflight(c) {
		return
	}
	u := session.Current(c)
	rows, err := AccessibleUsers(c.Request.Context(), u, c.Query("department"))
	if err != nil {
		api.Internal(c, "Erro ao buscar usuários", err)
		return
	}
	api.Print_json(c, listedUsers(rows))
}

// FeedbackUsersHandler: GET /api/users/feedback
func FeedbackUsersHandler(c *gin.Context) {
	if api.Preflight(c) {
		return
	}
	u := session.Current(c)
	rows, err := play_sql.QueryRows(c.Request.Context(),
		"SELECT "+userColumns+" FROM Users u WHERE u.IsActive = 1 AND u.Id <> ? ORDER BY u.NomeCompleto", u.ID)
	if err != nil {
		api.Internal(c, "Erro interno do servidor", err)
		return
	}
	api.Print_json(c, listedUsers(rows))
}

// SubordinatesHandler: GET /api/users/subordinates
func SubordinatesHandler(c *gin.Context) {
	if api.Preflight(c) {
		return
	}
	u := session.Current(c)
	ctx := c.Request.Context()
	ids, err := auth.TeamUserIDs(ctx, u)
	if err != nil {
		api.Internal(c, "Erro ao buscar subordinados", err)
		return
	}
	if len(ids) == 0 {
		api.Print_json(c, []api.JsonEncode{})
		return
	}
	rows, err := play_sql.QueryRows(ctx, `
		SELECT Id, NomeCompleto, Departamento, HierarchyPath, Matricula, CPF, LastLogin
		FROM Users WHERE Id IN (`+play_sql.InClause(len(ids))+`)
		ORDER BY NomeCompleto`, play_sql.Args(ids)...)
	if err != nil {
		api.Internal(c, "Erro ao buscar subordinados", err)
		return
	}
	out := make([]api.JsonEncode, 0, len(rows))
	for _, row := range rows {
		out = append(out, api.J(
			"Id", play_sql.ToInt64(row["Id"]),
			"NomeCompleto", row["NomeCompleto"],
			"Departamento", row["Departamento"],
			"HierarchyPath", row["HierarchyPath"],
			"Matricula", row["Matricula"],
			"CPF", row["CPF"],
			"LastLogin", row["LastLogin"],
		))
	}
	api.Print_json(c, out)
}

// DepartmentsHandler: GET /api/departments
func DepartmentsHandler(c *gin.Context) {
	if api.Preflight(c) {
		return
	}
	rows, err := play_sql.QueryRows(c.Request.Context(), `
		SELECT DISTINCT Departamento FROM Users
		WHERE Departamento IS NOT NULL AND Departamento <> ''
		ORDER BY Departamento`)
	if err != nil {
		api.Internal(c, "Erro ao buscar departamentos", err)
		return
	}
	out := make([]string, 0, len(rows))
	for _, row := range rows {
		out = append(out, row["Departamento"])
	}
	api.Print_json(c, out)
}

type profilePayload struct {
	NomeCompleto string `json:"nomeCompleto"`
	Nome         string `json:"nome"`
	Email        string `json:"email"`
}

// UpdateProfileHandler: PUT /api/users/profile
func UpdateProfileHandler(c *gin.Context) {
	if api.Preflight(c) {
		return
	}
	u := session.Current(c)
	var payload profilePayload
	_ = c.ShouldBindJSON(&payload)

	updated := *u
	if v := strings.TrimSpace(payload.NomeCompleto); v != "" {
		updated.NomeCompleto = v
	}
	if v := strings.TrimSpace(payload.Nome); v != "" {
		updated.Nome = v
	}
	if v := strings.TrimSpace(payload.Email); v != "" {
		if !strings.Contains(v, "@") || strings.ContainsAny(v, " \t") {
			api.Fail(c, http.StatusBadRequest, "E-mail inválido")
			return
		}
		updated.Email = v
	}

	_, err := play_sql.Exec(c.Request.Context(),
		"UPDATE Users SET NomeCompleto = ?, nome = ?, Email = ?, updated_at = ? WHERE Id = ?",
		updated.NomeCompleto, updated.Nome, updated.Email, play_sql.Now(), u.ID)
	if err != nil {
		api.Internal(c, "Erro ao atualizar perfil", err)
		return
	}
	if err := session.Replace(c, &updated); err != nil {
		api.Internal(c, "Erro ao atualizar perfil", err)
		return
	}
	api.Print_json(c, "success", true, "message", "Perfil atualizado com sucesso")
}

type passwordPayload struct {
	CurrentPassword string `json:"currentPassword"`
	NewPassword     string `json:"newPassword"`
}

// ChangePasswordHandler: PUT /api/users/password
func ChangePasswordHandler(c *gin.Context) {
	if api.Preflight(c) {
		return
	}
	u := session.Current(c)
	var payload passwordPayload
	_ = c.ShouldBindJSON(&payload)
	if payload.CurrentPassword == "" || payload.NewPassword == "" {
		api.Fail(c, http.StatusBadRequest, "Senha atual e nova senha são obrigatórias")
		return
	}

	if err := auth.ChangePassword(c.Request.Context(), u.ID, payload.CurrentPassword, payload.NewPassword); err != nil {
		if auth.IsUserError(err) {
			api.Fail(c, http.StatusBadRequest, err.Error())
			return
		}
		api.Internal(c, "Erro ao alterar senha", err)
		return
	}
	api.Print_json(c, "success", true, "message", "Senha alterada com sucesso")
}
