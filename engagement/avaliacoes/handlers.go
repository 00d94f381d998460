package avaliacoes

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"lumigente_backend/engagement/gamification"
	"lumigente_backend/main/api"
	"lumigente_backend/main/logger"
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

func idParam(c *gin.Context, name string) (int64, bool) {
	id, err := strconv.ParseInt(c.Param(name), 10, 64)
	return id, err == nil && id > 0
}

func fetch(c *gin.Context, id int64) (*Avaliacao, bool) {
	u := session.Current(c)
	a, err := Get(c.Request.Context(), id)
	if errors.Is(err, ErrNotFound) {
		api.Fail(c, http.StatusNotFound, "Avaliação não encontrada")
		return nil, false
	}
	if err != nil {
		api.Internal(c, "Erro ao buscar avaliação", err)
		return nil, false
	}
	if !a.Participant(u.ID) && !u.FullAccess() {
		api.Fail(c, http.StatusForbidden, "Você não tem permissão para acessar esta avaliação")
		return nil, false
	}
	return a, true
}

// load fetches the evaluation in the URL. Only its employee, its manager,
// HR and T&D may see it.
func load(c *gin.Context) (*Avaliacao, bool) {
	id, ok := idParam(c, "id")
	if !ok {
		api.Fail(c, http.StatusBadRequest, "ID da avaliação inválido")
		return nil, false
	}
	return fetch(c, id)
}

func tipoParam(c *gin.Context) (int, bool) {
	tipo, ok := TipoFromParam(c.Param("tipo"))
	if !ok {
		api.Fail(c, http.StatusBadRequest, "Tipo de avaliação inválido. Use 45 ou 90")
	}
	return tipo, ok
}

// MinhasHandler: GET /api/avaliacoes/minhas
func MinhasHandler(c *gin.Context) {
	if api.Preflight(c) {
		return
	}
	list, err := Minhas(c.Request.Context(), session.Current(c).ID)
	if err != nil {
		api.Internal(c, "Erro ao buscar avaliações", err)
		return
	}
	api.Print_json(c, list)
}

// TodasHandler: GET /api/avaliacoes/todas
func TodasHandler(c *gin.Context) {
	if api.Preflight(c) {
		return
	}
	list, err := Todas(c.Request.Context())
	if err != nil {
		api.Internal(c, "Erro ao buscar avaliações", err)
		return
	}
	api.Print_json(c, list)
}

// GetHandler: GET /api/avaliacoes/:id
func GetHandler(c *gin.Context) {
	if api.Preflight(c) {
		return
	}
	if a, ok := load(c); ok {
		api.Print_json(c, a)
	}
}

// RespostasHandler: GET /api/avaliacoes/:id/respostas
func RespostasHandler(c *gin.Context) {
	if api.Preflight(c) {
		return
	}
	a, ok := load(c)
	if !ok {
		return
	}
	ctx := c.Request.Context()
	u := session.Current(c)
	perguntas, err := Perguntas(ctx, a.ID)
	if err != nil {
		api.Internal(c, "Erro ao buscar perguntas", err)
		return
	}
	minhas, err := Respostas(ctx, a.ID, u.ID, true)
	if err != nil {
		api.Internal(c, "Erro ao buscar respostas", err)
		return
	}
	outra, err := Respostas(ctx, a.ID, u.ID, false)
	if err != nil {
		api.Internal(c, "Erro ao buscar respostas", err)
		return
	}
	api.Print_json(c,
		"perguntas", perguntas,
		"minhasRespostas", minhas,
		"respostasOutraParte", outra,
	)
}

// RelatorioHandler: GET /api/avaliacoes/:id/relatorio
func RelatorioHandler(c *gin.Context) {
	if api.Preflight(c) {
		return
	}
	a, ok := load(c)
	if !ok {
		return
	}
	ctx := c.Request.Context()
	perguntas, err := Perguntas(ctx, a.ID)
	if err != nil {
		api.Internal(c, "Erro ao buscar perguntas", err)
		return
	}
	// RespondidoPor is never 0, so this lists both parties.
	respostas, err := Respostas(ctx, a.ID, 0, false)
	if err != nil {
		api.Internal(c, "Erro ao buscar respostas", err)
		return
	}
	c.Data(http.StatusOK, "text/html; charset=utf-8", []byte(Relatorio(a, perguntas, respostas)))
}

type respondPayload struct {
	AvaliacaoID     int64         `json:"avaliacaoId"`
	Respostas       []AnswerInput `json:"respostas"`
	TipoRespondente string        `json:"tipoRespondente"`
}

// RespondHandler: POST /api/avaliacoes/responder
func RespondHandler(c *gin.Context) {
	if api.Preflight(c) {
		return
	}
	var p respondPayload
	if err := c.ShouldBindJSON(&p); err != nil || p.AvaliacaoID <= 0 || len(p.Respostas) == 0 {
		api.Fail(c, http.StatusBadRequest, "Dados de resposta inválidos")
		return
	}
	a, ok := fetch(c, p.AvaliacaoID)
	if !ok {
		return
	}
	u := session.Current(c)
	ctx := c.Request.Context()
	party := p.TipoRespondente
	if party == "" {
		party = a.Party(u.ID)
	}
	completed, err := Respond(ctx, a, u.ID, party, p.Respostas)
	if errors.Is(err, ErrWrongParty) {
		api.Fail(c, http.StatusForbidden, "Permissão negada para responder como "+lower(party)+".")
		return
	}
	if userError(c, err) {
		return
	}
	if err != nil {
		api.Internal(c, "Erro ao salvar respostas", err)
		return
	}
	logger.L().Info("avaliação respondida",
		zap.Int64("avaliacao_id", a.ID), zap.Int64("user_id", u.ID), zap.String("respondente", party), zap.Bool("concluida", completed))
	points := gamification.Award(ctx, u.ID, gamification.AvaliacaoRespondida)
	api.Print_json(c,
		"success", true,
		"message", "Respostas salvas com sucesso",
		"concluida", completed,
		"points", points.Points,
		"pointsMessage", points.Message,
	)
}

func lower(party string) string {
	switch party {
	case Colaborador:
		return "colaborador"
	case Gestor:
		return "gestor"
	}
	return "participante"
}

type reopenPayload struct {
	NovaDataLimite string `json:"novaDataLimite"`
}

// ReopenHandler: POST /api/avaliacoes/:id/reabrir
func ReopenHandler(c *gin.Context) {
	if api.Preflight(c) {
		return
	}
	a, ok := load(c)
	if !ok {
		return
	}
	var p reopenPayload
	_ = c.ShouldBindJSON(&p)
	limite, err := Reopen(c.Request.Context(), a, p.NovaDataLimite)
	if errors.Is(err, ErrNotExpired) {
		api.Fail(c, http.StatusBadRequest, "Apenas avaliações expiradas podem ser reabertas")
		return
	}
	if userError(c, err) {
		return
	}
	if err != nil {
		api.Internal(c, "Erro ao reabrir avaliação", err)
		return
	}
	logger.L().Info("avaliação reaberta", zap.Int64("avaliacao_id", a.ID), zap.String("limite", limite))
	api.Print_json(c, "success", true, "message", "Avaliação reaberta com sucesso", "novaDataLimite", limite)
}

// VerifyHandler: POST /api/avaliacoes/verificar runs creation and the
// status sync on demand.
func VerifyHandler(c *gin.Context) {
	if api.Preflight(c) {
		return
	}
	ctx := c.Request.Context()
	created, err := CreateEvaluations(ctx)
	if err != nil {
		api.Internal(c, "Erro ao verificar avaliações", err)
		return
	}
	changes, err := Sync(ctx)
	if err != nil {
		api.Internal(c, "Erro ao verificar avaliações", err)
		return
	}
	api.Print_json(c,
		"success", true,
		"avaliacoes45", created.Avaliacoes45,
		"avaliacoes90", created.Avaliacoes90,
		"abertas", changes.Abertas,
		"expiradas", changes.Expiradas,
		"message", "Verificação concluída",
	)
}

// QuestionarioHandler: GET /api/avaliacoes/questionario/:tipo and
// /api/avaliacoes/templates/:tipo/perguntas
func QuestionarioHandler(c *gin.Context) {
	if api.Preflight(c) {
		return
	}
	tipo, ok := tipoParam(c)
	if !ok {
		return
	}
	ctx := c.Request.Context()
	list, err := Template(ctx, tipo)
	if err != nil {
		api.Internal(c, "Erro ao buscar questionário", err)
		return
	}
	for i := range list {
		if list[i].NumOpcoes == 0 {
			continue
		}
		if list[i].Opcoes, err = TemplateOptions(ctx, list[i].ID); err != nil {
			api.Internal(c, "Erro ao buscar opções", err)
			return
		}
	}
	api.Print_json(c, list)
}

type questionarioPayload struct {
	Perguntas []QuestionInput `json:"perguntas"`
}

// UpdateQuestionarioHandler: PUT /api/avaliacoes/questionario/:tipo
func UpdateQuestionarioHandler(c *gin.Context) {
	if api.Preflight(c) {
		return
	}
	tipo, ok := tipoParam(c)
	if !ok {
		return
	}
	var p questionarioPayload
	_ = c.ShouldBindJSON(&p)
	err := ReplaceTemplate(c.Request.Context(), tipo, p.Perguntas)
	if userError(c, err) {
		return
	}
	if err != nil {
		api.Internal(c, "Erro ao salvar questionário", err)
		return
	}
	api.Print_json(c, "success", true, "message", "Questionário atualizado com sucesso")
}

// OptionsHandler: GET .../:tipo/perguntas/:id/opcoes
func OptionsHandler(c *gin.Context) {
	if api.Preflight(c) {
		return
	}
	id, ok := idParam(c, "id")
	if !ok {
		api.Fail(c, http.StatusBadRequest, "ID da pergunta inválido")
		return
	}
	list, err := TemplateOptions(c.Request.Context(), id)
	if err != nil {
		api.Internal(c, "Erro ao buscar opções", err)
		return
	}
	api.Print_json(c, list)
}

func questionError(c *gin.Context, err error, msg string) bool {
	switch {
	case err == nil:
		return false
	case errors.Is(err, ErrQuestionNotFound):
		api.Fail(c, http.StatusNotFound, "Pergunta não encontrada")
	case userError(c, err):
	default:
		api.Internal(c, msg, err)
	}
	return true
}

// AddQuestionHandler: POST /api/avaliacoes/templates/:tipo/perguntas
func AddQuestionHandler(c *gin.Context) {
	if api.Preflight(c) {
		return
	}
	tipo, ok := tipoParam(c)
	if !ok {
		return
	}
	var in QuestionInput
	_ = c.ShouldBindJSON(&in)
	id, err := AddTemplateQuestion(c.Request.Context(), tipo, in)
	if questionError(c, err, "Erro ao adicionar pergunta") {
		return
	}
	api.Print_json(c, "success", true, "id", id, "message", "Pergunta adicionada com sucesso", http.StatusCreated)
}

// UpdateQuestionHandler: PUT /api/avaliacoes/templates/:tipo/perguntas/:id
func UpdateQuestionHandler(c *gin.Context) {
	if api.Preflight(c) {
		return
	}
	tipo, ok := tipoParam(c)
	if !ok {
		return
	}
	id, ok := idParam(c, "id")
	if !ok {
		api.Fail(c, http.StatusBadRequest, "ID da pergunta inválido")
		return
	}
	var in QuestionInput
	_ = c.ShouldBindJSON(&in)
	err := UpdateTemplateQuestion(c.Request.Context(), tipo, id, in)
	if questionError(c, err, "Erro ao atualizar pergunta") {
		return
	}
	api.Print_json(c, "success", true, "message", "Pergunta atualizada com sucesso")
}

// DeleteQuestionHandler: DELETE /api/avaliacoes/templates/:tipo/perguntas/:id
func DeleteQuestionHandler(c *gin.Context) {
	if api.Preflight(c) {
		return
	}
	tipo, ok := tipoParam(c)
	if !ok {
		return
	}
	id, ok := idParam(c, "id")
	if !ok {
		api.Fail(c, http.StatusBadRequest, "ID da pergunta inválido")
		return
	}
	err := DeleteTemplateQuestion(c.Request.Context(), tipo, id)
	if questionError(c, err, "Erro ao excluir pergunta") {
		return
	}
	api.Print_json(c, "success", true, "message", "Pergunta excluída com sucesso")
}

type reorderPayload struct {
	PerguntasIDs []int64 `json:"perguntasIds"`
}

// ReorderHandler: PUT /api/avaliacoes/templates/:tipo/perguntas/reordenar
func ReorderHandler(c *gin.Context) {
	if api.Preflight(c) {
		return
	}
	tipo, ok := tipoParam(c)
	if !ok {
		return
	}
	var p reorderPayload
	_ = c.ShouldBindJSON(&p)
	err := ReorderTemplate(c.Request.Context(), tipo, p.PerguntasIDs)
	if questionError(c, err, "Erro ao reordenar perguntas") {
		return
	}
	api.Print_json(c, "success", true, "message", "Perguntas reordenadas com sucesso")
}
