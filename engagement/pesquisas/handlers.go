package pesquisas

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"lumigente_backend/engagement/gamification"
	"lumigente_backend/engagement/notifications"
	"lumigente_backend/main/api"
	"lumigente_backend/main/logger"
	"lumigente_backend/main/mailer"
	"lumigente_backend/main/session"
)

func userError(c *gin.Context, err error) bool {
	var e Error
	if errors.As(err, &e) {
		api.Fail(c, http.StatusBadRequest, e.Error())
		return true
	}
	return false
}

// load fetches the survey in the URL as seen by the current user. Only HR
// and T&D reach surveys whose audience they are not part of.
func load(c *gin.Context) (*Survey, bool) {
	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil || id <= 0 {
		api.Fail(c, http.StatusBadRequest, "ID da pesquisa inválido")
		return nil, false
	}
	u := session.Current(c)
	s, err := Get(c.Request.Context(), id, u.ID)
	if errors.Is(err, ErrNotFound) {
		api.Fail(c, http.StatusNotFound, "Pesquisa não encontrada")
		return nil, false
	}
	if err != nil {
		api.Internal(c, "Erro ao buscar pesquisa", err)
		return nil, false
	}
	if !u.FullAccess() && !s.EstaNoPublicoAlvo {
		api.Fail(c, http.StatusForbidden, "Acesso negado a esta pesquisa")
		return nil, false
	}
	return s, true
}

// ListHandler: GET /api/pesquisas?search&status&page&limit
func ListHandler(c *gin.Context) {
	if api.Preflight(c) {
		return
	}
	u := session.Current(c)
	page, _ := strconv.Atoi(c.Query("page"))
	limit, _ := strconv.Atoi(c.Query("limit"))
	res, err := List(c.Request.Context(), u, ListFilter{
		Search: c.Query("search"),
		Status: c.Query("status"),
		Page:   page,
		Limit:  limit,
	})
	if err != nil {
		api.Internal(c, "Erro ao buscar pesquisas", err)
		return
	}
	api.Print_json(c,
		"surveys", res.Surveys,
		"pagination", api.J("page", res.Page, "limit", res.Limit, "total", res.Total, "pages", res.Pages()),
		"user_info", api.J("is_hr_td", u.FullAccess(), "can_create", u.FullAccess()),
	)
}

// CreateHandler: POST /api/pesquisas
func CreateHandler(c *gin.Context) {
	if api.Preflight(c) {
		return
	}
	u := session.Current(c)
	ctx := c.Request.Context()
	var in CreateInput
	_ = c.ShouldBindJSON(&in)
	id, eligible, err := Create(ctx, u.ID, in)
	if userError(c, err) {
		return
	}
	if err != nil {
		api.Internal(c, "Erro ao criar pesquisa", err)
		return
	}
	logger.L().Info("pesquisa criada",
		zap.Int64("survey_id", id), zap.Int64("user_id", u.ID), zap.Int("eligible", len(eligible)))

	titulo := in.Titulo
	notifications.CreateMany(ctx, eligible, notifications.PesquisaNova, "Nova pesquisa disponível: "+titulo, id)
	for _, uid := range eligible {
		notifications.Mail(ctx, uid, func(to, name string) (mailer.Message, error) {
			return mailer.NovaPesquisa(to, name, titulo)
		})
	}
	api.Print_json(c,
		"success", true,
		"surveyId", id,
		"usuarios_elegiveis", len(eligible),
		"message", "Pesquisa criada com sucesso",
		http.StatusCreated,
	)
}

// GetHandler: GET /api/pesquisas/:id
func GetHandler(c *gin.Context) {
	if api.Preflight(c) {
		return
	}
	if s, ok := load(c); ok {
		api.Print_json(c, s)
	}
}

// FormHandler: GET /api/pesquisas/:id/form
func FormHandler(c *gin.Context) {
	if api.Preflight(c) {
		return
	}
	s, ok := load(c)
	if !ok {
		return
	}
	html, err := RenderForm(s)
	if err != nil {
		api.Internal(c, "Erro ao montar formulário", err)
		return
	}
	c.Data(http.StatusOK, "text/html; charset=utf-8", []byte(html))
}

// BuilderQuestionHandler: GET /api/pesquisas/builder/pergunta?number&id
func BuilderQuestionHandler(c *gin.Context) {
	if api.Preflight(c) {
		return
	}
	number, _ := strconv.Atoi(c.Query("number"))
	if number < 1 {
		number = 1
	}
	html, err := RenderForCreation(number, c.Query("id"))
	if err != nil {
		api.Internal(c, "Erro ao montar pergunta", err)
		return
	}
	c.Data(http.StatusOK, "text/html; charset=utf-8", []byte(html))
}

// BuilderOptionsHandler: GET /api/pesquisas/builder/opcoes?id&tipo
func BuilderOptionsHandler(c *gin.Context) {
	if api.Preflight(c) {
		return
	}
	tipo := c.Query("tipo")
	if !validType(tipo) {
		api.Fail(c, http.StatusBadRequest, "Tipo de pergunta inválido")
		return
	}
	html, err := RenderOptionsForType(c.Query("id"), tipo)
	if err != nil {
		api.Internal(c, "Erro ao montar opções", err)
		return
	}
	c.Data(http.StatusOK, "text/html; charset=utf-8", []byte(html))
}

type respondPayload struct {
	Respostas []Answer `json:"respostas"`
}

// RespondHandler: POST /api/pesquisas/:id/responder
func RespondHandler(c *gin.Context) {
	if api.Preflight(c) {
		return
	}
	u := session.Current(c)
	ctx := c.Request.Context()
	s, ok := load(c)
	if !ok {
		return
	}
	var p respondPayload
	_ = c.ShouldBindJSON(&p)
	err := Respond(ctx, s, u.ID, p.Respostas)
	switch {
	case userError(c, err):
		return
	case errors.Is(err, ErrAlreadyAnswered):
		api.Fail(c, http.StatusBadRequest, "Você já respondeu esta pesquisa")
		return
	case errors.Is(err, ErrClosed):
		api.Fail(c, http.StatusForbidden, "Esta pesquisa não está mais ativa")
		return
	case errors.Is(err, ErrNotEligible):
		api.Fail(c, http.StatusForbidden, "Você não faz parte do público alvo desta pesquisa")
		return
	case err != nil:
		api.Internal(c, "Erro ao salvar respostas", err)
		return
	}
	points := gamification.Award(ctx, u.ID, gamification.PesquisaRespondida)
	api.Print_json(c,
		"success", true,
		"message", "Respostas enviadas com sucesso",
		"points", points.Points,
		"pointsMessage", points.Message,
	)
}

// MyResponseHandler: GET /api/pesquisas/:id/my-response
func MyResponseHandler(c *gin.Context) {
	if api.Preflight(c) {
		return
	}
	s, ok := load(c)
	if !ok {
		return
	}
	list, err := MyResponse(c.Request.Context(), s, session.Current(c).ID)
	if errors.Is(err, ErrNotAnswered) {
		api.Fail(c, http.StatusNotFound, "Você ainda não respondeu esta pesquisa")
		return
	}
	if err != nil {
		api.Internal(c, "Erro ao buscar resposta", err)
		return
	}
	api.Print_json(c, "pesquisa", s.ID, "respostas", list)
}

// ResultsHandler: GET /api/pesquisas/:id/resultados
func ResultsHandler(c *gin.Context) {
	if api.Preflight(c) {
		return
	}
	s, ok := load(c)
	if !ok {
		return
	}
	res, err := ResultsFor(c.Request.Context(), s)
	if err != nil {
		api.Internal(c, "Erro ao buscar resultados", err)
		return
	}
	api.Print_json(c, res)
}

type reopenPayload struct {
	DataEncerramento string `json:"nova_data_encerramento"`
}

// ReopenHandler: POST /api/pesquisas/:id/reabrir
func ReopenHandler(c *gin.Context) {
	if api.Preflight(c) {
		return
	}
	s, ok := load(c)
	if !ok {
		return
	}
	var p reopenPayload
	_ = c.ShouldBindJSON(&p)
	fim, err := Reopen(c.Request.Context(), s, p.DataEncerramento)
	if errors.Is(err, ErrNotClosed) {
		api.Fail(c, http.StatusBadRequest, "Apenas pesquisas encerradas podem ser reabertas")
		return
	}
	if userError(c, err) {
		return
	}
	if err != nil {
		api.Internal(c, "Erro ao reabrir pesquisa", err)
		return
	}
	api.Print_json(c, "success", true, "message", "Pesquisa reaberta com sucesso", "data_encerramento", fim)
}

// CloseHandler: POST /api/pesquisas/:id/encerrar
func CloseHandler(c *gin.Context) {
	if api.Preflight(c) {
		return
	}
	s, ok := load(c)
	if !ok {
		return
	}
	err := Close(c.Request.Context(), s)
	if errors.Is(err, ErrAlreadyClosed) {
		api.Fail(c, http.StatusBadRequest, "Esta pesquisa já está encerrada")
		return
	}
	if err != nil {
		api.Internal(c, "Erro ao encerrar pesquisa", err)
		return
	}
	api.Print_json(c, "success", true, "message", "Pesquisa encerrada com sucesso")
}

// StatsHandler: GET /api/pesquisas/stats and /api/pesquisas/stats/user
func StatsHandler(c *gin.Context) {
	if api.Preflight(c) {
		return
	}
	st, err := StatsFor(c.Request.Context(), session.Current(c).ID)
	if err != nil {
		api.Internal(c, "Erro ao buscar estatísticas", err)
		return
	}
	api.Print_json(c, st)
}

// DepartamentosHandler: GET /api/pesquisas/departamentos
func DepartamentosHandler(c *gin.Context) {
	if api.Preflight(c) {
		return
	}
	list, err := Departamentos(c.Request.Context())
	if err != nil {
		api.Internal(c, "Erro ao buscar departamentos", err)
		return
	}
	api.Print_json(c, list)
}

// MetaFiltrosHandler: GET /api/pesquisas/meta/filtros
func MetaFiltrosHandler(c *gin.Context) {
	if api.Preflight(c) {
		return
	}
	m, err := MetaFiltros(c.Request.Context())
	if err != nil {
		api.Internal(c, "Erro ao buscar filtros", err)
		return
	}
	api.Print_json(c, m)
}
