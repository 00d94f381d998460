package humor

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"lumigente_backend/main/api"
	"lumigente_backend/main/session"
)

type recordPayload struct {
	Score       int    `json:"score"`
	Description string `json:"description"`
}

// RecordHandler: POST /api/humor
func RecordHandler(c *gin.Context) {
	if api.Preflight(c) {
		return
	}
	var p recordPayload
	_ = c.ShouldBindJSON(&p)
	res, err := Record(c.Request.Context(), session.Current(c), p.Score, p.Description)
	if errors.Is(err, ErrInvalidScore) {
		api.Fail(c, http.StatusBadRequest, "Score deve ser um número entre 1 e 5")
		return
	}
	if err != nil {
		api.Internal(c, "Erro interno do servidor ao registrar humor", err)
		return
	}
	if !res.Created {
		api.Print_json(c, "success", true, "message", "Humor atualizado com sucesso", "pointsEarned", 0)
		return
	}
	api.Print_json(c,
		"success", true,
		"message", "Humor registrado com sucesso",
		"pointsEarned", res.Points.Points,
		"pointsMessage", res.Points.Message,
		http.StatusCreated,
	)
}

// TodayHandler: GET /api/humor
func TodayHandler(c *gin.Context) {
	if api.Preflight(c) {
		return
	}
	m, err := Today(c.Request.Context(), session.Current(c).ID)
	if err != nil {
		api.Internal(c, "Erro interno do servidor ao buscar humor", err)
		return
	}
	// A nil *Mood renders as null.
	api.Print_json(c, m)
}

// ColleaguesTodayHandler: GET /api/humor/colleagues-today
func ColleaguesTodayHandler(c *gin.Context) {
	if api.Preflight(c) {
		return
	}
	list, err := ColleaguesToday(c.Request.Context(), session.Current(c).ID)
	if err != nil {
		api.Internal(c, "Erro ao buscar humor dos colegas", err)
		return
	}
	api.Print_json(c, list)
}

// HistoryHandler: GET /api/humor/history
func HistoryHandler(c *gin.Context) {
	if api.Preflight(c) {
		return
	}
	list, err := History(c.Request.Context(), session.Current(c).ID)
	if err != nil {
		api.Internal(c, "Erro interno do servidor ao buscar histórico de humor", err)
		return
	}
	api.Print_json(c, list)
}

// TeamMetricsHandler: GET /api/humor/team-metrics
func TeamMetricsHandler(c *gin.Context) {
	if api.Preflight(c) {
		return
	}
	m, err := TeamMetricsFor(c.Request.Context(), session.Current(c))
	if err != nil {
		api.Internal(c, "Erro ao buscar métricas da equipe", err)
		return
	}
	api.Print_json(c, m)
}

// TeamHistoryHandler: GET /api/humor/team-history
func TeamHistoryHandler(c *gin.Context) {
	if api.Preflight(c) {
		return
	}
	list, err := TeamHistory(c.Request.Context(), session.Current(c))
	if err != nil {
		api.Internal(c, "Erro ao buscar histórico da equipe", err)
		return
	}
	api.Print_json(c, list)
}

// periodo defaults to 30 days when present but unparsable, and to all time when absent.
func periodFrom(c *gin.Context) int {
	raw, ok := c.GetQuery("periodo")
	if !ok || raw == "" {
		return 0
	}
	days, err := strconv.Atoi(raw)
	if err != nil || days <= 0 {
		return 30
	}
	return days
}

// CompanyHandler: GET /api/humor/empresa?departamento&periodo
func CompanyHandler(c *gin.Context) {
	if api.Preflight(c) {
		return
	}
	s, err := Company(c.Request.Context(), c.Query("departamento"), periodFrom(c))
	if err != nil {
		api.Internal(c, "Erro ao buscar humor da empresa", err)
		return
	}
	api.Print_json(c, s)
}

// MetricsHandler: GET /api/humor/metrics?periodo
func MetricsHandler(c *gin.Context) {
	if api.Preflight(c) {
		return
	}
	list, err := ByDepartment(c.Request.Context(), periodFrom(c))
	if err != nil {
		api.Internal(c, "Erro ao buscar métricas de humor", err)
		return
	}
	api.Print_json(c, list)
}
