package desempenho

import (
	"bytes"
	"context"
	"database/sql"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strconv"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/go-cmp/cmp"
	"github.com/jonboulle/clockwork"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"lumigente_backend/engagement/notifications"
	"lumigente_backend/main/database"
	"lumigente_backend/main/play_sql"
	"lumigente_backend/main/session"
	"lumigente_backend/users/access"
)

type fixture struct {
	conn *sql.DB

	gestora, bruno, caio, rh *access.User
}

// Ana manages department 300 where Bruno works. Caio is from another
// department and Rita from T&D.
func setup(t *testing.T) fixture {
	t.Helper()
	conn := database.OpenTest(t)
	play_sql.SetClock(clockwork.NewFakeClockAt(time.Date(2026, 6, 1, 9, 0, 0, 0, time.Local)))
	t.Cleanup(func() { play_sql.SetClock(nil) })

	f := fixture{conn: conn}
	id := database.CreateTestUser(t, conn, database.TestUser{CPF: "111.444.777-35", Matricula: "M100", NomeCompleto: "Ana Gestora", Departamento: "300"})
	f.gestora = &access.User{ID: id, NomeCompleto: "Ana Gestora", Departamento: "300", HierarchyLevel: 3}
	id = database.CreateTestUser(t, conn, database.TestUser{CPF: "529.982.247-25", Matricula: "M200", NomeCompleto: "Bruno Time", Departamento: "300"})
	f.bruno = &access.User{ID: id, NomeCompleto: "Bruno Time", Departamento: "300", HierarchyLevel: 1}
	id = database.CreateTestUser(t, conn, database.TestUser{CPF: "123.456.789-09", Matricula: "M300", NomeCompleto: "Caio Fora", Departamento: "400"})
	f.caio = &access.User{ID: id, NomeCompleto: "Caio Fora", Departamento: "400", HierarchyLevel: 1}
	id = database.CreateTestUser(t, conn, database.TestUser{CPF: "935.411.347-80", Matricula: "M900", NomeCompleto: "Rita TD", Departamento: "900", DescricaoDepartamento: "DEPARTAMENTO TREINAM&DESENVOLV"})
	f.rh = &access.User{ID: id, NomeCompleto: "Rita TD", Departamento: "900", DescricaoDepartamento: "DEPARTAMENTO TREINAM&DESENVOLV", HierarchyLevel: 1}

	database.CreateTestHierarchy(t, conn, database.TestHierarchy{Depto: "300", Responsavel: "M100", Completa: "DIR > 300"})
	return f
}

func router(u *access.User) *gin.Engine {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	g := r.Group("/api/avaliacoes/desempenho", session.WithUser(u))
	g.POST("/criar", CriarHandler)
	g.GET("/minhas", MinhasHandler)
	g.GET("/todas", TodasHandler)
	g.GET("/questionario", QuestionarioHandler)
	g.POST("/perguntas", CriarPerguntaHandler)
	g.POST("/perguntas/reordenar", ReordenarHandler)
	g.PUT("/perguntas/:id", AtualizarPerguntaHandler)
	g.DELETE("/perguntas/:id", ExcluirPerguntaHandler)
	g.GET("/:id", GetHandler)
	g.GET("/:id/respostas", RespostasHandler)
	g.GET("/:id/questionario", QuestionarioAvaliacaoHandler)
	g.POST("/:id/responder", ResponderHandler)
	g.POST("/:id/calibrar", CalibrarHandler)
	g.POST("/:id/feedback-pdi", FeedbackPDIHandler)
	return r
}

func call(r *gin.Engine, method, path string, body any) *httptest.ResponseRecorder {
	var raw []byte
	if body != nil {
		raw, _ = json.Marshal(body)
	}
	req := httptest.NewRequest(method, path, bytes.NewReader(raw))
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func decode[T any](t *testing.T, w *httptest.ResponseRecorder) T {
	t.Helper()
	var out T
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &out), w.Body.String())
	return out
}

func path(id int64, suffix string) string {
	return "/api/avaliacoes/desempenho/" + strconv.FormatInt(id, 10) + suffix
}

func intp(v int) *int { return &v }

func seedBanco(t *testing.T) {
	t.Helper()
	ctx := context.Background()
	_, err := CriarPergunta(ctx, PerguntaInput{Texto: "Entrega resultados?", Tipo: "escala", Obrigatoria: true, Ordem: 1, EscalaMinima: intp(1), EscalaMaxima: intp(5)})
	require.NoError(t, err)
	_, err = CriarPergunta(ctx, PerguntaInput{Texto: "Ponto forte", Tipo: MultiplaEscolha, Ordem: 2, Opcoes: []string{"Comunicação", " Técnica ", ""}})
	require.NoError(t, err)
}

func TestCriarValidation(t *testing.T) {
	f := setup(t)
	ctx := context.Background()

	_, err := Criar(ctx, f.rh.ID, CriarInput{Titulo: "Ciclo 2026"})
	assert.ErrorIs(t, err, ErrDadosInvalidos)
	_, err = Criar(ctx, f.rh.ID, CriarInput{UserIDs: []int64{f.bruno.ID}, Titulo: "  "})
	assert.ErrorIs(t, err, ErrDadosInvalidos)
	_, err = Criar(ctx, f.rh.ID, CriarInput{UserIDs: []int64{f.bruno.ID}, Titulo: "Ciclo 2026", DataLimite: "amanhã"})
	assert.ErrorIs(t, err, ErrDadosInvalidos)
	_, err = Criar(ctx, f.rh.ID, CriarInput{UserIDs: []int64{f.bruno.ID}, Titulo: "Ciclo 2026"})
	assert.ErrorIs(t, err, ErrSemQuestionario)
	_, err = Criar(ctx, f.rh.ID, CriarInput{UserIDs: []int64{f.bruno.ID}, Titulo: "Ciclo 2026", Perguntas: []PerguntaInput{{Texto: "sem tipo"}}})
	assert.ErrorIs(t, err, ErrPerguntaInvalida)

	n, err := play_sql.Count(ctx, "SELECT COUNT(*) FROM AvaliacoesDesempenho")
	require.NoError(t, err)
	assert.Zero(t, n)
}

func TestCriarCopiesQuestionBank(t *testing.T) {
	f := setup(t)
	seedBanco(t)
	ctx := context.Background()

	ids, err := Criar(ctx, f.rh.ID, CriarInput{UserIDs: []int64{f.bruno.ID, f.bruno.ID, f.caio.ID}, Titulo: "Ciclo 2026", DataLimite: "2026-06-30"})
	require.NoError(t, err)
	require.Len(t, ids, 2)

	a, err := Get(ctx, ids[0], 0)
	require.NoError(t, err)
	assert.Equal(t, f.gestora.ID, a.GestorID)
	assert.Equal(t, "Ana Gestora", a.NomeGestor)
	assert.Equal(t, Pendente, a.Status)
	assert.Equal(t, "2026-06-30", a.DataLimiteAutoAvaliacao)
	assert.Equal(t, 2, a.PerguntasCount)

	// Caio's department has no manager registered.
	b, err := Get(ctx, ids[1], 0)
	require.NoError(t, err)
	assert.Zero(t, b.GestorID)

	perguntas, err := PerguntasDaAvaliacao(ctx, ids[0])
	require.NoError(t, err)
	require.Len(t, perguntas, 2)
	assert.Equal(t, []string{"Comunicação", "Técnica"}, perguntas[1].Opcoes)
	assert.Equal(t, 5, *perguntas[0].EscalaMaxima)
	assert.True(t, perguntas[0].Obrigatoria)

	// Changing the bank later does not touch evaluations already created.
	banco, err := Banco(ctx)
	require.NoError(t, err)
	require.NoError(t, ExcluirPergunta(ctx, banco[0].ID))
	perguntas, err = PerguntasDaAvaliacao(ctx, ids[0])
	require.NoError(t, err)
	assert.Len(t, perguntas, 2)
}

func TestFluxoCompleto(t *testing.T) {
	f := setup(t)
	ctx := context.Background()
	ids, err := Criar(ctx, f.rh.ID, CriarInput{
		UserIDs: []int64{f.bruno.ID},
		Titulo:  "Ciclo 2026",
		Perguntas: []PerguntaInput{
			{Texto: "Colabora com o time?", Tipo: "texto"},
			{Texto: "Nota geral", Tipo: "escala", EscalaMinima: intp(1), EscalaMaxima: intp(5)},
		},
	})
	require.NoError(t, err)
	id := ids[0]
	perguntas, err := PerguntasDaAvaliacao(ctx, id)
	require.NoError(t, err)
	p1, p2 := perguntas[0].ID, perguntas[1].ID

	get := func(viewer int64) *Avaliacao {
		a, err := Get(ctx, id, viewer)
		require.NoError(t, err)
		return a
	}

	_, err = Responder(ctx, get(0), Colaborador, nil)
	assert.ErrorIs(t, err, ErrSemRespostas)
	_, err = Responder(ctx, get(0), Colaborador, []RespostaInput{{PerguntaID: p1 + 100, Resposta: "x"}})
	assert.ErrorIs(t, err, ErrRespostaInvalida)

	status, err := Responder(ctx, get(0), Colaborador, []RespostaInput{{PerguntaID: p1, Resposta: "Sim"}})
	require.NoError(t, err)
	assert.Equal(t, Pendente, status)

	status, err = Responder(ctx, get(0), Colaborador, []RespostaInput{{PerguntaID: p2, Resposta: "4"}})
	require.NoError(t, err)
	assert.Equal(t, AguardandoGestor, status)
	assert.Equal(t, Pendente, get(f.gestora.ID).StatusAvaliacao)
	assert.Equal(t, AguardandoGestor, get(f.bruno.ID).StatusAvaliacao)

	require.ErrorIs(t, Calibrar(ctx, get(0), f.rh.ID, nil, "cedo"), ErrNaoCalibravel)

	status, err = Responder(ctx, get(0), Gestor, []RespostaInput{{PerguntaID: p1, Resposta: "Sim"}, {PerguntaID: p2, Resposta: "3"}})
	require.NoError(t, err)
	assert.Equal(t, Calibragem, status)
	assert.Equal(t, EmAndamento, get(f.bruno.ID).StatusAvaliacao)

	_, err = Responder(ctx, get(0), Colaborador, []RespostaInput{{PerguntaID: p1, Resposta: "Não"}})
	assert.ErrorIs(t, err, ErrEncerrada)

	require.NoError(t, Calibrar(ctx, get(0), f.rh.ID, []RespostaInput{{PerguntaID: p2, Resposta: "4", Justificativa: "entregas do semestre"}}, "Bom ciclo"))
	require.NoError(t, Calibrar(ctx, get(0), f.rh.ID, nil, "Ótimo ciclo"))
	assert.Equal(t, AguardandoFeedback, get(0).Status)

	respostas, err := Respostas(ctx, id)
	require.NoError(t, err)
	want := []Resposta{
		{PerguntaID: p1, PerguntaTexto: "Colabora com o time?", TipoPergunta: "texto", RespostaColaborador: "Sim", RespostaGestor: "Sim"},
		{PerguntaID: p2, PerguntaTexto: "Nota geral", TipoPergunta: "escala", RespostaColaborador: "4", RespostaGestor: "3", RespostaCalibrada: "4", JustificativaCalibrada: "entregas do semestre"},
	}
	if diff := cmp.Diff(want, respostas, cmp.FilterPath(func(p cmp.Path) bool { return p.Last().String() == ".ID" }, cmp.Ignore())); diff != "" {
		t.Errorf("respostas mismatch (-want +got):\n%s", diff)
	}

	_, err = FeedbackPDI(ctx, get(0), f.gestora.ID, "", PDIInput{})
	assert.ErrorIs(t, err, ErrFeedbackVazio)
	_, err = FeedbackPDI(ctx, get(0), f.gestora.ID, "Muito bem", PDIInput{Objetivos: "Liderar"})
	assert.ErrorIs(t, err, ErrPDIIncompleto)

	pdiID, err := FeedbackPDI(ctx, get(0), f.gestora.ID, "Muito bem", PDIInput{Objetivos: "Liderar", Acoes: "Curso", PrazoRevisao: "2026-12-01"})
	require.NoError(t, err)
	assert.NotZero(t, pdiID)

	a := get(f.bruno.ID)
	require.NoError(t, Details(ctx, a))
	assert.Equal(t, Concluida, a.StatusAvaliacao)
	require.NotNil(t, a.Calibragem)
	assert.Equal(t, "Ótimo ciclo", a.Calibragem.ConsideracoesFinais)
	require.NotNil(t, a.Feedback)
	assert.Equal(t, "Muito bem", a.Feedback.FeedbackGestor)
	require.Len(t, a.PDIs, 1)
	assert.Equal(t, "PDI - Avaliação "+strconv.FormatInt(id, 10), a.PDIs[0].Titulo)
	assert.Equal(t, "2026-12-01", a.PDIs[0].PrazoConclusao)
	assert.Equal(t, "Ativo", a.PDIs[0].Status)

	_, err = FeedbackPDI(ctx, get(0), f.gestora.ID, "de novo", PDIInput{Objetivos: "x", Acoes: "y", PrazoRevisao: "2026-12-01"})
	assert.ErrorIs(t, err, ErrJaConcluida)
}

func TestNextStatus(t *testing.T) {
	assert.Equal(t, Calibragem, nextStatus(true, true))
	assert.Equal(t, AguardandoGestor, nextStatus(true, false))
	assert.Equal(t, AguardandoColaborador, nextStatus(false, true))
	assert.Equal(t, Pendente, nextStatus(false, false))
}

func TestViewerStatus(t *testing.T) {
	tests := []struct {
		status, party, want string
		gestorDone          bool
	}{
		{status: Calibragem, party: Colaborador, want: EmAndamento},
		{status: AguardandoPDI, party: Colaborador, want: EmAndamento},
		{status: AguardandoColaborador, party: Colaborador, want: Pendente},
		{status: AguardandoGestor, party: Gestor, want: Pendente},
		{status: AguardandoGestor, party: Gestor, gestorDone: true, want: AguardandoGestor},
		{status: Calibragem, party: "", want: Calibragem},
	}
	for _, tt := range tests {
		a := Avaliacao{UserID: 1, GestorID: 2, Status: tt.status, PerguntasCount: 2}
		if tt.gestorDone {
			a.RespostasGestorCount = 2
		}
		viewer := map[string]int64{Colaborador: 1, Gestor: 2, "": 3}[tt.party]
		a.viewedBy(viewer)
		assert.Equal(t, tt.want, a.StatusAvaliacao, "%s as %q", tt.status, tt.party)
	}
}

func TestHandlers(t *testing.T) {
	f := setup(t)
	seedBanco(t)

	w := call(router(f.caio), http.MethodPost, "/api/avaliacoes/desempenho/criar", gin.H{"userIds": []int64{f.bruno.ID}, "titulo": "Ciclo"})
	assert.Equal(t, http.StatusForbidden, w.Code)
	assert.Equal(t, "Acesso negado", decode[map[string]any](t, w)["error"])

	w = call(router(f.rh), http.MethodPost, "/api/avaliacoes/desempenho/criar", gin.H{"titulo": "Ciclo"})
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, "Dados inválidos", decode[map[string]any](t, w)["error"])

	w = call(router(f.rh), http.MethodPost, "/api/avaliacoes/desempenho/criar", gin.H{"userIds": []int64{f.bruno.ID}, "titulo": "Ciclo"})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	created := decode[struct {
		Message string  `json:"message"`
		IDs     []int64 `json:"ids"`
	}](t, w)
	assert.Equal(t, "1 avaliações criadas com sucesso", created.Message)
	require.Len(t, created.IDs, 1)
	id := created.IDs[0]

	unread, err := notifications.Unread(context.Background(), f.gestora.ID, 10)
	require.NoError(t, err)
	require.Len(t, unread, 1)
	assert.Equal(t, notifications.AvaliacaoAberta, unread[0].Type)

	w = call(router(f.gestora), http.MethodGet, "/api/avaliacoes/desempenho/minhas", nil)
	require.Equal(t, http.StatusOK, w.Code)
	minhas := decode[map[string][]Avaliacao](t, w)
	assert.Empty(t, minhas["comoColaborador"])
	require.Len(t, minhas["comoGestor"], 1)
	assert.Equal(t, "Bruno Time", minhas["comoGestor"][0].NomeColaborador)

	w = call(router(f.caio), http.MethodGet, "/api/avaliacoes/desempenho/todas", nil)
	assert.Equal(t, http.StatusForbidden, w.Code)
	w = call(router(f.rh), http.MethodGet, "/api/avaliacoes/desempenho/todas?status=Pendente", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Len(t, decode[[]Avaliacao](t, w), 1)

	w = call(router(f.caio), http.MethodGet, path(id, ""), nil)
	assert.Equal(t, http.StatusForbidden, w.Code)
	w = call(router(f.bruno), http.MethodGet, path(id+50, ""), nil)
	assert.Equal(t, http.StatusNotFound, w.Code)
	assert.Equal(t, "Avaliação não encontrada", decode[map[string]any](t, w)["error"])

	w = call(router(f.bruno), http.MethodGet, path(id, "/questionario"), nil)
	require.Equal(t, http.StatusOK, w.Code)
	perguntas := decode[[]Pergunta](t, w)
	require.Len(t, perguntas, 2)

	w = call(router(f.caio), http.MethodPost, path(id, "/responder"), gin.H{"respostas": []gin.H{{"perguntaId": perguntas[0].ID, "resposta": "5"}}})
	assert.Equal(t, http.StatusForbidden, w.Code)
	assert.Equal(t, "Você não é participante desta avaliação", decode[map[string]any](t, w)["error"])

	answers := []gin.H{{"perguntaId": perguntas[0].ID, "resposta": "5"}, {"perguntaId": perguntas[1].ID, "resposta": "Técnica"}}
	w = call(router(f.bruno), http.MethodPost, path(id, "/responder"), gin.H{"respostas": answers})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	assert.Equal(t, "Respostas salvas com sucesso", decode[map[string]any](t, w)["message"])
	w = call(router(f.gestora), http.MethodPost, path(id, "/responder"), gin.H{"respostas": answers})
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, Calibragem, decode[map[string]any](t, w)["status"])

	w = call(router(f.gestora), http.MethodPost, path(id, "/calibrar"), gin.H{"consideracoesFinais": "ok"})
	assert.Equal(t, http.StatusForbidden, w.Code)
	w = call(router(f.rh), http.MethodPost, path(id, "/calibrar"), gin.H{"consideracoesFinais": "ok"})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	assert.Equal(t, "Calibragem salva com sucesso", decode[map[string]any](t, w)["message"])

	pdi := gin.H{"feedbackGestor": "Parabéns", "pdi": gin.H{"objetivos": "Crescer", "acoes": "Mentoria", "prazoConclusao": "2026-11-30"}}
	w = call(router(f.bruno), http.MethodPost, path(id, "/feedback-pdi"), pdi)
	assert.Equal(t, http.StatusForbidden, w.Code)
	assert.Equal(t, "Apenas o gestor pode salvar o feedback e PDI", decode[map[string]any](t, w)["error"])
	w = call(router(f.gestora), http.MethodPost, path(id, "/feedback-pdi"), pdi)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	assert.Equal(t, "Feedback e PDI salvos com sucesso!", decode[map[string]any](t, w)["message"])

	w = call(router(f.bruno), http.MethodGet, path(id, ""), nil)
	require.Equal(t, http.StatusOK, w.Code)
	got := decode[Avaliacao](t, w)
	assert.Equal(t, Concluida, got.StatusAvaliacao)
	assert.Len(t, got.PDIs, 1)

	w = call(router(f.bruno), http.MethodGet, path(id, "/respostas"), nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Len(t, decode[[]Resposta](t, w), 2)
}

func TestQuestionBankHandlers(t *testing.T) {
	f := setup(t)

	w := call(router(f.bruno), http.MethodPost, "/api/avaliacoes/desempenho/perguntas", gin.H{"texto": "Nova", "tipo": "texto"})
	assert.Equal(t, http.StatusForbidden, w.Code)

	w = call(router(f.rh), http.MethodPost, "/api/avaliacoes/desempenho/perguntas", gin.H{"texto": " "})
	assert.Equal(t, http.StatusBadRequest, w.Code)

	ids := []int64{}
	for _, texto := range []string{"Primeira", "Segunda"} {
		w = call(router(f.rh), http.MethodPost, "/api/avaliacoes/desempenho/perguntas", gin.H{"texto": texto, "tipo": "texto"})
		require.Equal(t, http.StatusOK, w.Code, w.Body.String())
		ids = append(ids, int64(decode[map[string]any](t, w)["id"].(float64)))
	}

	w = call(router(f.rh), http.MethodPost, "/api/avaliacoes/desempenho/perguntas/reordenar",
		gin.H{"itens": []gin.H{{"id": ids[0], "ordem": 2}, {"id": ids[1], "ordem": 1}}})
	require.Equal(t, http.StatusOK, w.Code)

	w = call(router(f.rh), http.MethodPut, "/api/avaliacoes/desempenho/perguntas/"+strconv.FormatInt(ids[1], 10),
		gin.H{"texto": "Segunda editada", "tipo": MultiplaEscolha, "ordem": 1, "opcoes": []string{"A", "B"}})
	require.Equal(t, http.StatusOK, w.Code)

	w = call(router(f.rh), http.MethodDelete, "/api/avaliacoes/desempenho/perguntas/"+strconv.FormatInt(ids[0], 10), nil)
	require.Equal(t, http.StatusOK, w.Code)
	w = call(router(f.rh), http.MethodDelete, "/api/avaliacoes/desempenho/perguntas/"+strconv.FormatInt(ids[0], 10), nil)
	assert.Equal(t, http.StatusNotFound, w.Code)

	w = call(router(f.bruno), http.MethodGet, "/api/avaliacoes/desempenho/questionario", nil)
	require.Equal(t, http.StatusOK, w.Code)
	banco := decode[[]Pergunta](t, w)
	require.Len(t, banco, 1)
	assert.Equal(t, "Segunda editada", banco[0].Texto)
	assert.Equal(t, []string{"A", "B"}, banco[0].Opcoes)
}
