package objetivos

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
	"github.com/jonboulle/clockwork"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"lumigente_backend/engagement/gamification"
	"lumigente_backend/engagement/notifications"
	"lumigente_backend/main/database"
	"lumigente_backend/main/mailer"
	"lumigente_backend/main/play_sql"
	"lumigente_backend/main/session"
	"lumigente_backend/users/access"
)

type fixture struct {
	conn  *sql.DB
	clock *clockwork.FakeClock
	rec   *mailer.Recorder

	gestora, bruno, caio, rh *access.User
}

// Ana manages department 300 where Bruno works. Caio has nothing to do with
// the objectives; Rita is from HR.
func setup(t *testing.T) fixture {
	t.Helper()
	conn := database.OpenTest(t)
	f := fixture{
		conn:  conn,
		clock: clockwork.NewFakeClockAt(time.Date(2026, 6, 1, 9, 0, 0, 0, time.Local)),
		rec:   &mailer.Recorder{},
	}
	play_sql.SetClock(f.clock)
	mailer.SetDefault(f.rec, "http://lumi.test")
	t.Cleanup(func() {
		play_sql.SetClock(nil)
		mailer.SetDefault(nil, "")
	})

	id := database.CreateTestUser(t, conn, database.TestUser{CPF: "111.444.777-35", Matricula: "M100", NomeCompleto: "Ana Gestora", Departamento: "300", Email: "ana@lumi.com"})
	f.gestora = &access.User{ID: id, NomeCompleto: "Ana Gestora", Matricula: "M100", Departamento: "300", HierarchyLevel: 3}
	id = database.CreateTestUser(t, conn, database.TestUser{CPF: "529.982.247-25", Matricula: "M200", NomeCompleto: "Bruno Time", Departamento: "300", Email: "bruno@lumi.com"})
	f.bruno = &access.User{ID: id, NomeCompleto: "Bruno Time", Matricula: "M200", Departamento: "300", HierarchyLevel: 1}
	id = database.CreateTestUser(t, conn, database.TestUser{CPF: "123.456.789-09", Matricula: "M300", NomeCompleto: "Caio Fora", Departamento: "400"})
	f.caio = &access.User{ID: id, NomeCompleto: "Caio Fora", Matricula: "M300", Departamento: "400", HierarchyLevel: 1}
	id = database.CreateTestUser(t, conn, database.TestUser{CPF: "935.411.347-80", Matricula: "M900", NomeCompleto: "Rita RH", Departamento: "RECURSOS HUMANOS"})
	f.rh = &access.User{ID: id, NomeCompleto: "Rita RH", Matricula: "M900", Departamento: "RECURSOS HUMANOS", HierarchyLevel: 1}

	database.CreateTestEmployee(t, conn, database.TestEmployee{CPF: "52998224725", Matricula: "M200", Departamento: "300"})
	database.CreateTestHierarchy(t, conn, database.TestHierarchy{Depto: "300", Responsavel: "M100", Completa: "DIR > 300"})
	return f
}

func router(u *access.User) *gin.Engine {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.Use(session.WithUser(u))
	r.GET("/api/objetivos", ListHandler)
	r.POST("/api/objetivos", CreateHandler)
	r.GET("/api/objetivos/filtros", FiltersHandler)
	r.GET("/api/objetivos/:id", GetHandler)
	r.PUT("/api/objetivos/:id", UpdateHandler)
	r.DELETE("/api/objetivos/:id", DeleteHandler)
	r.POST("/api/objetivos/:id/checkin", CheckinHandler)
	r.GET("/api/objetivos/:id/checkins", CheckinsHandler)
	r.POST("/api/objetivos/:id/approve", ApproveHandler)
	r.POST("/api/objetivos/:id/reject", RejectHandler)
	return r
}

func call(r *gin.Engine, method, path string, body any) *httptest.ResponseRecorder {
	var reader *bytes.Reader
	if body != nil {
		raw, _ := json.Marshal(body)
		reader = bytes.NewReader(raw)
	} else {
		reader = bytes.NewReader(nil)
	}
	req := httptest.NewRequest(method, path, reader)
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

func (f fixture) create(t *testing.T, creator *access.User, titulo, inicio, fim string, responsaveis ...int64) int64 {
	t.Helper()
	id, err := Create(context.Background(), creator.ID, Input{
		Titulo: titulo, DataInicio: inicio, DataFim: fim, ResponsaveisIDs: responsaveis,
	})
	require.NoError(t, err)
	return id
}

func path(id int64, suffix string) string {
	return "/api/objetivos/" + strconv.FormatInt(id, 10) + suffix
}

func TestCreateValidatesAndDerivesStatus(t *testing.T) {
	f := setup(t)
	ctx := context.Background()

	_, err := Create(ctx, f.gestora.ID, Input{Titulo: "Sem responsável", DataInicio: "2026-06-01", DataFim: "2026-06-30"})
	assert.Equal(t, Error("Título, responsável(is), data de início e data de fim são obrigatórios."), err)
	_, err = Create(ctx, f.gestora.ID, Input{Titulo: "Invertido", DataInicio: "2026-06-30", DataFim: "2026-06-01", ResponsaveisIDs: []int64{f.bruno.ID}})
	assert.IsType(t, Error(""), err)

	ativo := f.create(t, f.gestora, "Reduzir retrabalho", "2026-06-01", "2026-06-30", f.bruno.ID, f.bruno.ID)
	agendado := f.create(t, f.gestora, "Planejar Q3", "2026-07-01", "2026-09-30", f.bruno.ID)

	o, err := Get(ctx, ativo)
	require.NoError(t, err)
	assert.Equal(t, Ativo, o.Status)
	require.Len(t, o.Responsaveis, 1)
	assert.Equal(t, "Bruno Time", o.ResponsavelNome)
	assert.Equal(t, "Ana Gestora", o.CriadorNome)
	assert.Equal(t, "2026-06-30", o.DataFim)

	o, err = Get(ctx, agendado)
	require.NoError(t, err)
	assert.Equal(t, Agendado, o.Status)

	_, err = Get(ctx, 999)
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestCreateHandlerNotifiesResponsaveis(t *testing.T) {
	f := setup(t)
	w := call(router(f.gestora), http.MethodPost, "/api/objetivos", gin.H{
		"titulo":           "Treinar equipe",
		"data_inicio":      "2026-06-01",
		"data_fim":         "2026-06-20",
		"responsaveis_ids": []int64{f.bruno.ID, f.gestora.ID},
	})
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())

	list, err := notifications.Unread(context.Background(), f.bruno.ID, 5)
	require.NoError(t, err)
	require.Len(t, list, 1)
	assert.Equal(t, notifications.ObjetivoCriado, list[0].Type)
	assert.Equal(t, `Ana Gestora atribuiu a você o objetivo "Treinar equipe"`, list[0].Message)

	n, _ := notifications.CountUnread(context.Background(), f.gestora.ID)
	assert.Zero(t, n)
	require.Len(t, f.rec.Messages(), 1)
	assert.Equal(t, "bruno@lumi.com", f.rec.Messages()[0].To)
	assert.Contains(t, f.rec.Messages()[0].HTML, "01/06/2026")

	w = call(router(f.gestora), http.MethodPost, "/api/objetivos", gin.H{"titulo": "x"})
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestListScopesAndFilters(t *testing.T) {
	f := setup(t)
	a := f.create(t, f.gestora, "Reduzir custos", "2026-06-01", "2026-06-30", f.bruno.ID)
	f.clock.Advance(time.Minute)
	f.create(t, f.gestora, "Pesquisa de clima", "2026-07-01", "2026-07-30", f.gestora.ID)

	bruno := decode[[]Objetivo](t, call(router(f.bruno), http.MethodGet, "/api/objetivos", nil))
	require.Len(t, bruno, 1)
	assert.Equal(t, a, bruno[0].ID)

	assert.Empty(t, decode[[]Objetivo](t, call(router(f.caio), http.MethodGet, "/api/objetivos", nil)))

	all := decode[[]Objetivo](t, call(router(f.rh), http.MethodGet, "/api/objetivos", nil))
	require.Len(t, all, 2)
	assert.Equal(t, "Pesquisa de clima", all[0].Titulo)

	mine := decode[[]Objetivo](t, call(router(f.gestora), http.MethodGet, "/api/objetivos?status=Agendado", nil))
	require.Len(t, mine, 1)
	assert.Equal(t, "Pesquisa de clima", mine[0].Titulo)

	mine = decode[[]Objetivo](t, call(router(f.gestora), http.MethodGet, "/api/objetivos?search=CUSTOS", nil))
	require.Len(t, mine, 1)

	mine = decode[[]Objetivo](t, call(router(f.gestora), http.MethodGet, "/api/objetivos?responsavel="+strconv.FormatInt(f.bruno.ID, 10), nil))
	require.Len(t, mine, 1)
	assert.Equal(t, a, mine[0].ID)
}

type checkinResponse struct {
	Success       bool   `json:"success"`
	StatusUpdate  string `json:"statusUpdate"`
	NeedsApproval bool   `json:"needsApproval"`
	Points        int    `json:"points"`
}

func TestApprovalFlow(t *testing.T) {
	f := setup(t)
	ctx := context.Background()
	id := f.create(t, f.gestora, "Automatizar relatórios", "2026-06-01", "2026-06-30", f.bruno.ID)
	asBruno, asGestora := router(f.bruno), router(f.gestora)

	assert.Equal(t, http.StatusBadRequest, call(asBruno, http.MethodPost, path(id, "/checkin"), gin.H{"progresso": 120}).Code)
	assert.Equal(t, http.StatusBadRequest, call(asBruno, http.MethodPost, path(id, "/checkin"), gin.H{}).Code)
	assert.Equal(t, http.StatusForbidden, call(router(f.caio), http.MethodPost, path(id, "/checkin"), gin.H{"progresso": 10}).Code)

	w := call(asBruno, http.MethodPost, path(id, "/checkin"), gin.H{"progresso": 40, "observacoes": "Metade dos scripts"})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	res := decode[checkinResponse](t, w)
	assert.False(t, res.NeedsApproval)
	assert.Equal(t, gamification.Points[gamification.CheckinObjetivo], res.Points)

	o, err := Get(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, 40.0, o.Progresso)
	assert.Equal(t, Ativo, o.Status)

	f.clock.Advance(24 * time.Hour)
	w = call(asBruno, http.MethodPost, path(id, "/checkin"), gin.H{"progresso": 100})
	res = decode[checkinResponse](t, w)
	assert.True(t, res.NeedsApproval)
	assert.Equal(t, "Objetivo aguardando aprovação do gestor", res.StatusUpdate)

	o, _ = Get(ctx, id)
	assert.Equal(t, AguardandoAprovacao, o.Status)

	checkins := decode[[]Checkin](t, call(asGestora, http.MethodGet, path(id, "/checkins"), nil))
	require.Len(t, checkins, 3)
	assert.Equal(t, notePending, checkins[0].Observacoes)

	list, err := notifications.Unread(ctx, f.gestora.ID, 5)
	require.NoError(t, err)
	require.Len(t, list, 2)
	assert.Contains(t, list[0].Message, "solicitou aprovação de conclusão")
	require.Len(t, f.rec.Messages(), 1)
	assert.Equal(t, "ana@lumi.com", f.rec.Messages()[0].To)

	assert.Equal(t, http.StatusBadRequest, call(asGestora, http.MethodPost, path(id, "/reject"), gin.H{"motivo": "  "}).Code)
	w = call(asGestora, http.MethodPost, path(id, "/reject"), gin.H{"motivo": "Faltam evidências"})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	assert.Contains(t, w.Body.String(), `"progressoAnterior":40`)

	o, _ = Get(ctx, id)
	assert.Equal(t, Ativo, o.Status)
	assert.Equal(t, 40.0, o.Progresso)

	f.clock.Advance(time.Hour)
	require.Equal(t, http.StatusOK, call(asGestora, http.MethodPost, path(id, "/approve"), nil).Code)
	o, _ = Get(ctx, id)
	assert.Equal(t, Concluido, o.Status)
	assert.Equal(t, 100.0, o.Progresso)

	list, err = notifications.Unread(ctx, f.bruno.ID, 5)
	require.NoError(t, err)
	require.Len(t, list, 2)
	assert.Equal(t, notifications.ObjetivoAprovado, list[0].Type)
	assert.Equal(t, notifications.ObjetivoRejeitado, list[1].Type)
	assert.Contains(t, list[1].Message, "Motivo: Faltam evidências")
}

func TestCreatorConcludesDirectly(t *testing.T) {
	f := setup(t)
	id := f.create(t, f.gestora, "Documentar processos", "2026-06-01", "2026-06-30", f.bruno.ID)
	o, err := Get(context.Background(), id)
	require.NoError(t, err)

	res, err := RecordCheckin(context.Background(), o, f.gestora.ID, 100, "")
	require.NoError(t, err)
	assert.Equal(t, CheckinResult{StatusUpdate: "Objetivo concluído!"}, res)

	o, _ = Get(context.Background(), id)
	assert.Equal(t, Concluido, o.Status)
	checkins, err := Checkins(context.Background(), id)
	require.NoError(t, err)
	assert.Len(t, checkins, 1)
}

func TestUpdateAndDelete(t *testing.T) {
	f := setup(t)
	id := f.create(t, f.gestora, "Onboarding", "2026-06-01", "2026-06-30", f.bruno.ID)
	update := gin.H{
		"titulo":           "Onboarding 2.0",
		"data_inicio":      "2026-05-01",
		"data_fim":         "2026-05-20",
		"responsaveis_ids": []int64{f.bruno.ID, f.gestora.ID},
	}

	assert.Equal(t, http.StatusForbidden, call(router(f.bruno), http.MethodPut, path(id, ""), update).Code)

	w := call(router(f.gestora), http.MethodPut, path(id, ""), update)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	assert.Contains(t, w.Body.String(), `"status":"Expirado"`)

	o := decode[Objetivo](t, call(router(f.bruno), http.MethodGet, path(id, ""), nil))
	assert.Equal(t, "Onboarding 2.0", o.Titulo)
	assert.Len(t, o.Responsaveis, 2)

	_, err := RecordCheckin(context.Background(), &o, f.bruno.ID, 10, "")
	require.NoError(t, err)

	assert.Equal(t, http.StatusForbidden, call(router(f.caio), http.MethodDelete, path(id, ""), nil).Code)
	require.Equal(t, http.StatusOK, call(router(f.rh), http.MethodDelete, path(id, ""), nil).Code)
	assert.Equal(t, http.StatusNotFound, call(router(f.rh), http.MethodGet, path(id, ""), nil).Code)

	n, err := play_sql.Count(context.Background(), "SELECT COUNT(*) AS total FROM ObjetivoCheckins")
	require.NoError(t, err)
	assert.Zero(t, n)
	assert.Equal(t, http.StatusBadRequest, call(router(f.rh), http.MethodGet, "/api/objetivos/abc", nil).Code)
}

func TestFilters(t *testing.T) {
	f := setup(t)
	f.create(t, f.gestora, "Um", "2026-06-01", "2026-06-30", f.bruno.ID)
	f.create(t, f.gestora, "Dois", "2026-08-01", "2026-08-30", f.bruno.ID)

	type filters struct {
		Status       []string      `json:"status"`
		Responsaveis []Responsavel `json:"responsaveis"`
	}
	got := decode[filters](t, call(router(f.gestora), http.MethodGet, "/api/objetivos/filtros", nil))
	assert.Equal(t, []string{Agendado, Ativo}, got.Status)
	require.Len(t, got.Responsaveis, 2)
	assert.Equal(t, "Ana Gestora", got.Responsaveis[0].NomeCompleto)
	assert.Equal(t, "Bruno Time", got.Responsaveis[1].NomeCompleto)

	got = decode[filters](t, call(router(f.bruno), http.MethodGet, "/api/objetivos/filtros", nil))
	require.Len(t, got.Responsaveis, 1)
	assert.Equal(t, f.bruno.ID, got.Responsaveis[0].ID)
}

func TestStatusJobs(t *testing.T) {
	f := setup(t)
	ctx := context.Background()
	agendado := f.create(t, f.gestora, "Futuro", "2026-06-03", "2026-06-10", f.bruno.ID)
	ativo := f.create(t, f.gestora, "Curto", "2026-06-01", "2026-06-02", f.bruno.ID)

	_, err := f.conn.Exec(`INSERT INTO PDIs (UserId, Titulo, Objetivos, Acoes, PrazoConclusao, Status) VALUES
		(?, 'Vencido', 'o', 'a', '2026-06-01', 'Ativo'),
		(?, 'Concluído', 'o', 'a', '2026-05-01', 'Concluído'),
		(?, 'No prazo', 'o', 'a', '2026-07-01', 'Ativo')`, f.bruno.ID, f.bruno.ID, f.bruno.ID)
	require.NoError(t, err)

	f.clock.Advance(2 * 24 * time.Hour)
	require.NoError(t, UpdateStatus(ctx))
	require.NoError(t, ExpirePDIs(ctx))

	o, _ := Get(ctx, agendado)
	assert.Equal(t, Ativo, o.Status)
	o, _ = Get(ctx, ativo)
	assert.Equal(t, Expirado, o.Status)

	rows, err := play_sql.QueryRows(ctx, "SELECT Titulo, Status FROM PDIs ORDER BY Id")
	require.NoError(t, err)
	got := map[string]string{}
	for _, r := range rows {
		got[r["Titulo"]] = r["Status"]
	}
	assert.Equal(t, map[string]string{"Vencido": "Expirado", "Concluído": "Concluído", "No prazo": "Ativo"}, got)
}
