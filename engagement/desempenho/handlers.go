package desempenho

import (
	"errors"
	"fmt"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"lumigente_backend/engagement/notifications"
	"lumigente_backend/main/api"
	"lumigente_backend/main/session"
	"lumigente_backend/users/access"
)

// canManage: admins and the HR and T&D departments, by code or description.
func canManage(u *access.User) bool {
	if u == nil {
		return false
	}
	if u.FullAccess() {
		return true
	}
	hr, td := access.CheckHRTD(u.DescricaoDepartamento)
	return hr || td
}

func denyUnlessManager(c *gin.Context) bool {
	if canManage(session.Current(c)) {
		return false
	}
	api.Fail(c, http.StatusForbidden, "Acesso negado")
	return true
}

// failed maps service errors to responses and reports whether it answered.
func failed(c *gin.Context, err error, internal string) bool {
	if err == nil {
		return false
	}
	var e Error
	switch {
	case errors.Is(err, ErrNotFound):
		api.Fail(c, http.StatusNotFound, "Avaliação não encontrada")
	case errors.Is(err, ErrPerguntaNotFound):
		api.Fail(c, http.StatusNotFound, ErrPerguntaNotFound.Error())
	case errors.As(err, &e):
		api.Fail(c, http.StatusBadRequest, e.Error())
	default:
		api.Internal(c, internal, err)
	}
	return true
}

func idParam(c *gin.Context) (int64, bool) {
	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil || id <= 0 {
		api.Fail(c, http.StatusBadRequest, "ID inválido")
		return 0, false
	}
	return id, true
}

// load fetches the evaluation as seen by the current user.
func load(c *gin.Context, internal string) (*Avaliacao, bool) {
	id, ok := idParam(c)
	if !ok {
		return nil, false
	}
	a, err := Get(c.Request.Context(), id, session.Current(c).ID)
	if failed(c, err, internal) {
		return nil, false
	}
	return a, true
}

// visible loads the evaluation and answers 403 unless the user takes part in
// it or manages evaluations.
func visible(c *gin.Context, internal string) (*Avaliacao, bool) {
	a, ok := load(c, internal)
	if !ok {
		return nil, false
	}
	u := session.Current(c)
	if !a.Participant(u.ID) && !canManage(u) {
		api.Fail(c, http.StatusForbidden, "Acesso negado")
		return nil, false
	}
	return a, true
}

// CriarHandler: POST /api/avaliacoes/desempenho/criar
func CriarHandler(c *gin.Context) {
	if api.Preflight(c) {
		return
	}
	if denyUnlessManager(c) {
		return
	}
	ctx := c.Request.Context()
	var in CriarInput
	_ = c.ShouldBindJSON(&in)
	ids, err := Criar(ctx, session.Current(c).ID, in)
	if failed(c, err, "Erro ao criar avaliação") {
		return
	}
	for _, id := range ids {
		a, err := Get(ctx, id, 0)
		if err != nil {
			continue
		}
		msg := "Nova avaliação de desempenho disponível: " + a.Titulo
		notifications.Create(ctx, a.UserID, notifications.AvaliacaoAberta, msg, a.ID)
		if a.GestorID > 0 {
			notifications.Create(ctx, a.GestorID, notifications.AvaliacaoAberta,
				"Avalie "+a.NomeColaborador+": "+a.Titulo, a.ID)
		}
	}
	api.Print_json(c,
		"success", true,
		"message", fmt.Sprintf("%d avaliações criadas com sucesso", len(ids)),
		"ids", ids,
	)
}

// MinhasHandler: GET /api/avaliacoes/desempenho/minhas
func MinhasHandler(c *gin.Context) {
	if api.Preflight(c) {
		return
	}
	ctx := c.Request.Context()
	u := session.Current(c)
	colaborador, err := List(ctx, Filter{UserID: u.ID})
	if failed(c, err, "Erro ao listar avaliações") {
		return
	}
	gestor, err := List(ctx, Filter{GestorID: u.ID})
	if failed(c, err, "Erro ao listar avaliações") {
		return
	}
	api.Print_json(c, "comoColaborador", colaborador, "comoGestor", gestor)
}

// TodasHandler: GET /api/avaliacoes/desempenho/todas?status
func TodasHandler(c *gin.Context) {
	if api.Preflight(c) {
		return
	}
	if denyUnlessManager(c) {
		return
	}
	list, err := List(c.Request.Context(), Filter{Status: c.Query("status")})
	if failed(c, err, "Erro ao listar avaliações") {
		return
	}
	api.Print_json(c, list)
}

// GetHandler: GET /api/avaliacoes/desempenho/:id
func GetHandler(c *gin.Context) {
	if api.Preflight(c) {
		return
	}
	a, ok := visible(c, "Erro ao buscar avaliação")
	if !ok {
		return
	}
	if failed(c, Details(c.Request.Context(), a), "Erro ao buscar avaliação") {
		return
	}
	api.Print_json(c, a)
}

// RespostasHandler: GET /api/avaliacoes/desempenho/:id/respostas
func RespostasHandler(c *gin.Context) {
	if api.Preflight(c) {
		return
	}
	a, ok := visible(c, "Erro ao buscar respostas")
	if !ok {
		return
	}
	list, err := Respostas(c.Request.Context(), a.ID)
	if failed(c, err, "Erro ao buscar respostas") {
		return
	}
	api.Print_json(c, list)
}

// QuestionarioAvaliacaoHandler: GET /api/avaliacoes/desempenho/:id/questionario
func QuestionarioAvaliacaoHandler(c *gin.Context) {
	if api.Preflight(c) {
		return
	}
	a, ok := visible(c, "Erro ao buscar questionário")
	if !ok {
		return
	}
	list, err := PerguntasDaAvaliacao(c.Request.Context(), a.ID)
	if failed(c, err, "Erro ao buscar questionário") {
		return
	}
	api.Print_json(c, list)
}

// ResponderHandler: POST /api/avaliacoes/desempenho/:id/responder
func ResponderHandler(c *gin.Context) {
	if api.Preflight(c) {
		return
	}
	a, ok := load(c, "Erro ao responder avaliação")
	if !ok {
		return
	}
	party := a.Party(session.Current(c).ID)
	if party == "" {
		api.Fail(c, http.StatusForbidden, "Você não é participante desta avaliação")
		return
	}
	var body struct {
		Respostas []RespostaInput `json:"respostas"`
	}
	_ = c.ShouldBindJSON(&body)
	status, err := Responder(c.Request.Context(), a, party, body.Respostas)
	if failed(c, err, "Erro ao responder avaliação") {
		return
	}
	api.Print_json(c, "success", true, "message", "Respostas salvas com sucesso", "status", status)
}

// CalibrarHandler: POST /api/avaliacoes/desempenho/:id/calibrar
func CalibrarHandler(c *gin.Context) {
	if api.Preflight(c) {
		return
	}
	if denyUnlessManager(c) {
		return
	}
	a, ok := load(c, "Erro ao calibrar avaliação")
	if !ok {
		return
	}
	var body struct {
		Respostas           []RespostaInput `json:"respostas"`
		ConsideracoesFinais string          `json:"consideracoesFinais"`
	}
	_ = c.ShouldBindJSON(&body)
	err := Calibrar(c.Request.Context(), a, session.Current(c).ID, body.Respostas, body.ConsideracoesFinais)
	if failed(c, err, "Erro ao calibrar avaliação") {
		return
	}
	api.Print_json(c, "success", true, "message", "Calibragem salva com sucesso")
}

// FeedbackPDIHandler: POST /api/avaliacoes/desempenho/:id/feedback-pdi
func FeedbackPDIHandler(c *gin.Context) {
	if api.Preflight(c) {
		return
	}
	a, ok := load(c, "Erro ao salvar feedback e PDI")
	if !ok {
		return
	}
	u := session.Current(c)
	if (a.GestorID == 0 || a.GestorID != u.ID) && !canManage(u) {
		api.Fail(c, http.StatusForbidden, "Apenas o gestor pode salvar o feedback e PDI")
		return
	}
	var body struct {
		FeedbackGestor string   `json:"feedbackGestor"`
		PDI            PDIInput `json:"pdi"`
	}
	_ = c.ShouldBindJSON(&body)
	ctx := c.Request.Context()
	pdiID, err := FeedbackPDI(ctx, a, u.ID, body.FeedbackGestor, body.PDI)
	if failed(c, err, "Erro ao salvar feedback e PDI") {
		return
	}
	notifications.Create(ctx, a.UserID, notifications.PDICriado,
		"Sua avaliação de desempenho foi concluída e um PDI foi criado", pdiID)
	api.Print_json(c, "success", true, "message", "Feedback e PDI salvos com sucesso!", "pdiId", pdiID)
}

// QuestionarioHandler: GET /api/avaliacoes/desempenho/questionario
func QuestionarioHandler(c *gin.Context) {
	if api.Preflight(c) {
		return
	}
	list, err := Banco(c.Request.Context())
	if failed(c, err, "Erro ao buscar questionário") {
		return
	}
	api.Print_json(c, list)
}

// CriarPerguntaHandler: POST /api/avaliacoes/desempenho/perguntas
func CriarPerguntaHandler(c *gin.Context) {
	if api.Preflight(c) {
		return
	}
	if denyUnlessManager(c) {
		return
	}
	var in PerguntaInput
	_ = c.ShouldBindJSON(&in)
	id, err := CriarPergunta(c.Request.Context(), in)
	if failed(c, err, "Erro ao criar pergunta") {
		return
	}
	api.Print_json(c, "success", true, "id", id)
}

// AtualizarPerguntaHandler: PUT /api/avaliacoes/desempenho/perguntas/:id
func AtualizarPerguntaHandler(c *gin.Context) {
	if api.Preflight(c) {
		return
	}
	if denyUnlessManager(c) {
		return
	}
	id, ok := idParam(c)
	if !ok {
		return
	}
	var in PerguntaInput
	_ = c.ShouldBindJSON(&in)
	if failed(c, AtualizarPergunta(c.Request.Context(), id, in), "Erro ao atualizar pergunta") {
		return
	}
	api.Print_json(c, "success", true)
}

// ExcluirPerguntaHandler: DELETE /api/avaliacoes/desempenho/perguntas/:id
func ExcluirPerguntaHandler(c *gin.Context) {
	if api.Preflight(c) {
		return
	}
	if denyUnlessManager(c) {
		return
	}
	id, ok := idParam(c)
	if !ok {
		return
	}
	if failed(c, ExcluirPergunta(c.Request.Context(), id), "Erro ao excluir pergunta") {
		return
	}
	api.Print_json(c, "success", true)
}

// ReordenarHandler: POST /api/avaliacoes/desempenho/perguntas/reordenar
func ReordenarHandler(c *gin.Context) {
	if api.Preflight(c) {
		return
	}
	if denyUnlessManager(c) {
		return
	}
	var body struct {
		Itens []OrdemItem `json:"itens"`
	}
	_ = c.ShouldBindJSON(&body)
	if failed(c, Reordenar(c.Request.Context(), body.Itens), "Erro ao reordenar perguntas") {
		return
	}
	api.Print_json(c, "success", true)
}
