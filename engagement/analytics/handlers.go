package analytics

import (
	"errors"
	"net/http"
	"slices"
	"strconv"

	"github.com/gin-gonic/gin"

	"lumigente_backend/main/api"
	"lumigente_backend/main/session"
)

// department reads the department filter and checks u may use it. It
// answers 403 itself and returns ok=false when not.
func department(c *gin.Context) (string, bool) {
	dept := Department(c.Query("department"))
	if dept == "" {
		return "", true
	}
	allowed, all, err := AvailableDepartments(c.Request.Context(), session.Current(c))
	if err != nil {
		api.Internal(c, "Erro ao verificar departamentos", err)
		return "", false
	}
	if !all && !slices.Contains(allowed, dept) {
		api.Fail(c, http.StatusForbidden, "Acesso negado a este departamento")
		return "", false
	}
	return dept, true
}

func topFrom(c *gin.Context, key string, def int) int {
	n, err := strconv.Atoi(c.Query(key))
	if err != nil || n <= 0 {
		return def
	}
	return min(n, 500)
}

// DashboardHandler: GET /api/analytics/dashboard?period&department
func DashboardHandler(c *gin.Context) {
	if api.Preflight(c) {
		return
	}
	dept, ok := department(c)
	if !ok {
		return
	}
	d, err := DashboardFor(c.Request.Context(), Period(c.Query("period")), dept, session.Current(c).ID)
	if err != nil {
		api.Internal(c, "Erro ao buscar dashboard de analytics", err)
		return
	}
	api.Print_json(c, d)
}

// UserMetricsHandler: GET /api/analytics/metrics?period
func UserMetricsHandler(c *gin.Context) {
	if api.Preflight(c) {
		return
	}
	m, err := UserMetricsFor(c.Request.Context(), session.Current(c).ID, Period(c.Query("period")))
	if err != nil {
		api.Internal(c, "Erro ao buscar métricas do usuário", err)
		return
	}
	api.Print_json(c, m)
}

// RankingsHandler: GET /api/analytics/rankings?period&department&topUsers
func RankingsHandler(c *gin.Context) {
	if api.Preflight(c) {
		return
	}
	list, err := Rankings(c.Request.Context(), Period(c.Query("period")), Department(c.Query("department")), topFrom(c, "topUsers", 50))
	if err != nil {
		api.Internal(c, "Erro ao buscar rankings", err)
		return
	}
	api.Print_json(c, list)
}

// LeaderboardHandler: GET /api/analytics/gamification-leaderboard?department&topUsers
func LeaderboardHandler(c *gin.Context) {
	if api.Preflight(c) {
		return
	}
	list, err := Leaderboard(c.Request.Context(), Department(c.Query("department")), topFrom(c, "topUsers", 100))
	if err != nil {
		api.Internal(c, "Erro ao buscar leaderboard", err)
		return
	}
	api.Print_json(c, list)
}

// DepartmentAnalyticsHandler: GET /api/analytics/department-analytics?period&department
func DepartmentAnalyticsHandler(c *gin.Context) {
	if api.Preflight(c) {
		return
	}
	dept, ok := department(c)
	if !ok {
		return
	}
	list, err := Departments(c.Request.Context(), Period(c.Query("period")), dept)
	if err != nil {
		api.Internal(c, "Erro ao buscar analytics por departamento", err)
		return
	}
	api.Print_json(c, list)
}

// TrendsHandler: GET /api/analytics/trends?period&department
func TrendsHandler(c *gin.Context) {
	if api.Preflight(c) {
		return
	}
	dept, ok := department(c)
	if !ok {
		return
	}
	t, err := TrendsFor(c.Request.Context(), Period(c.Query("period")), dept)
	if err != nil {
		api.Internal(c, "Erro ao buscar tendências", err)
		return
	}
	api.Print_json(c, t)
}

// ComprehensiveHandler: GET /api/analytics and /api/analytics/comprehensive?period&department
func ComprehensiveHandler(c *gin.Context) {
	if api.Preflight(c) {
		return
	}
	dept, ok := department(c)
	if !ok {
		return
	}
	out, err := ComprehensiveFor(c.Request.Context(), Period(c.Query("period")), dept, session.Current(c).ID)
	if err != nil {
		api.Internal(c, "Erro ao buscar analytics abrangentes", err)
		return
	}
	api.Print_json(c, out)
}

// TemporalHandler: GET /api/analytics/temporal?period&department
func TemporalHandler(c *gin.Context) {
	if api.Preflight(c) {
		return
	}
	dept, ok := department(c)
	if !ok {
		return
	}
	out, err := TemporalFor(c.Request.Context(), Period(c.Query("period")), dept)
	if err != nil {
		api.Internal(c, "Erro ao buscar análise temporal", err)
		return
	}
	api.Print_json(c, out)
}

// DepartmentsListHandler: GET /api/analytics/departments-list
func DepartmentsListHandler(c *gin.Context) {
	if api.Preflight(c) {
		return
	}
	list, err := DepartmentOptions(c.Request.Context())
	if err != nil {
		api.Internal(c, "Erro ao buscar lista de departamentos", err)
		return
	}
	api.Print_json(c, list)
}

// AvailableDepartmentsHandler: GET /api/analytics/available-departments
func AvailableDepartmentsHandler(c *gin.Context) {
	if api.Preflight(c) {
		return
	}
	list, all, err := AvailableDepartments(c.Request.Context(), session.Current(c))
	if err != nil {
		api.Internal(c, "Erro ao buscar departamentos disponíveis", err)
		return
	}
	api.Print_json(c, "departments", list, "canViewAll", all)
}

func scope(c *gin.Context) (Scope, bool) {
	s, err := ScopeFor(c.Request.Context(), session.Current(c))
	if err != nil {
		api.Internal(c, "Erro ao buscar equipe", err)
		return Scope{}, false
	}
	return s, true
}

func teamMembers(c *gin.Context) ([]TeamMember, bool) {
	s, ok := scope(c)
	if !ok {
		return nil, false
	}
	list, err := TeamManagement(c.Request.Context(), s.With(session.Current(c).ID),
		c.Query("status"), Department(c.Query("departamento")))
	if err != nil {
		api.Internal(c, "Erro ao buscar dados de gestão de equipe", err)
		return nil, false
	}
	return list, true
}

// TeamManagementHandler: GET /api/analytics/team-management?status&departamento
func TeamManagementHandler(c *gin.Context) {
	if api.Preflight(c) {
		return
	}
	if list, ok := teamMembers(c); ok {
		api.Print_json(c, list)
	}
}

// TeamMembersHandler: GET /api/team/members?status&departamento
func TeamMembersHandler(c *gin.Context) {
	if api.Preflight(c) {
		return
	}
	if list, ok := teamMembers(c); ok {
		api.Print_json(c, Members(list))
	}
}

// TeamMetricsHandler: GET /api/analytics/team-metrics
func TeamMetricsHandler(c *gin.Context) {
	if api.Preflight(c) {
		return
	}
	s, ok := scope(c)
	if !ok {
		return
	}
	m, err := TeamMetricsFor(c.Request.Context(), s.Without(session.Current(c).ID))
	if err != nil {
		api.Internal(c, "Erro ao buscar métricas da equipe", err)
		return
	}
	api.Print_json(c, m)
}

// TeamStatusHandler: GET /api/analytics/team-status
func TeamStatusHandler(c *gin.Context) {
	if api.Preflight(c) {
		return
	}
	s, ok := scope(c)
	if !ok {
		return
	}
	st, err := TeamStatusFor(c.Request.Context(), s.Without(session.Current(c).ID))
	if err != nil {
		api.Internal(c, "Erro ao buscar status da equipe", err)
		return
	}
	api.Print_json(c, st)
}

// DepartmentsHandler: GET /api/analytics/departments
func DepartmentsHandler(c *gin.Context) {
	if api.Preflight(c) {
		return
	}
	list, err := DepartmentList(c.Request.Context())
	if err != nil {
		api.Internal(c, "Erro ao buscar departamentos", err)
		return
	}
	api.Print_json(c, list)
}

func employee(c *gin.Context) (Scope, int64, bool) {
	id, err := strconv.ParseInt(c.Param("employeeId"), 10, 64)
	if err != nil || id <= 0 {
		api.Fail(c, http.StatusBadRequest, "ID do colaborador inválido")
		return Scope{}, 0, false
	}
	s, ok := scope(c)
	if !ok {
		return Scope{}, 0, false
	}
	return s.With(session.Current(c).ID), id, true
}

// EmployeeInfoHandler: GET /api/analytics/employee-info/:employeeId
func EmployeeInfoHandler(c *gin.Context) {
	if api.Preflight(c) {
		return
	}
	s, id, ok := employee(c)
	if !ok {
		return
	}
	info, err := EmployeeInfo(c.Request.Context(), s, id)
	if errors.Is(err, ErrNotInTeam) {
		api.Fail(c, http.StatusNotFound, "Colaborador não encontrado")
		return
	}
	if err != nil {
		api.Internal(c, "Erro ao buscar dados do colaborador", err)
		return
	}
	api.Print_json(c, info)
}

// EmployeeFeedbacksHandler: GET /api/analytics/employee-feedbacks/:employeeId
func EmployeeFeedbacksHandler(c *gin.Context) {
	if api.Preflight(c) {
		return
	}
	s, id, ok := employee(c)
	if !ok {
		return
	}
	list, err := EmployeeFeedbacks(c.Request.Context(), s, id)
	if errors.Is(err, ErrNotInTeam) {
		api.Fail(c, http.StatusNotFound, "Colaborador não encontrado")
		return
	}
	if err != nil {
		api.Internal(c, "Erro ao buscar feedbacks do colaborador", err)
		return
	}
	api.Print_json(c, list)
}
