package historico

import (
	"bytes"
	"context"
	"database/sql"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/go-cmp/cmp"
	"github.com/jonboulle/clockwork"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"

	"lumigente_backend/main/api"
	"lumigente_backend/main/database"
	"lumigente_backend/main/play_sql"
)

func writeWorkbook(t *testing.T, path string, rows [][]any) {
	t.Helper()
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
	f := excelize.NewFile()
	defer func() { _ = f.Close() }()
	sheet := f.GetSheetName(0)
	for i, row := range rows {
		if row == nil {
			continue
		}
		cell, err := excelize.CoordinatesToCellName(1, i+1)
		require.NoError(t, err)
		require.NoError(t, f.SetSheetRow(sheet, cell, &row))
	}
	require.NoError(t, f.SaveAs(path))
}

var humorRows = [][]any{
	{"Colaborador", "Departamento", "Data", "Matrícula", "Humor"},
	{"Ana", "Comercial", 44927, "1234.0", "Feliz"},
	nil,
	{"Bia", "Financeiro", "15/03/2024", "88", "Neutro"},
	{"Caio", "comercial externo", "N/A", "99", "Triste"},
}

var feedbackRows = [][]any{
	{"De", "Para", "Para Departamento", "Data de criação", "Mensagem"},
	{"Ana", "Bia", "Financeiro", "2025-02-09 10:00", `Ótimo trabalho, "parabéns"`},
}

func workbooks(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	writeWorkbook(t, filepath.Join(dir, DefaultFiles["humor"]), humorRows)
	writeWorkbook(t, filepath.Join(dir, DefaultFiles["feedback"]), feedbackRows)
	return dir
}

func TestExtractYears(t *testing.T) {
	for _, tc := range []struct {
		in   string
		want []string
	}{
		{"15/03/2024", []string{"2024"}},
		{"2019-12-31 a 2024-05-01, 2024", []string{"2024"}},
		{"jan/2021 - 20251", []string{"2021", "2025"}},
		{"2031", nil},
		{"", nil},
	} {
		if diff := cmp.Diff(tc.want, ExtractYears(tc.in)); diff != "" {
			t.Errorf("ExtractYears(%q) mismatch (-want +got):\n%s", tc.in, diff)
		}
	}
}

func TestReadWorkbook(t *testing.T) {
	dir := workbooks(t)
	s, err := ReadWorkbook(filepath.Join(dir, DefaultFiles["humor"]))
	require.NoError(t, err)

	want := Section{
		Dados: []Row{
			{"Colaborador": "Ana", "Departamento": "Comercial", "Data": "01/01/2023", "Matrícula": "1234", "Humor": "Feliz"},
			{"Colaborador": "Bia", "Departamento": "Financeiro", "Data": "15/03/2024", "Matrícula": "88", "Humor": "Neutro"},
			{"Colaborador": "Caio", "Departamento": "comercial externo", "Data": "N/A", "Matrícula": "99", "Humor": "Triste"},
		},
		Metadados: Metadados{
			Colunas:      []string{"Colaborador", "Departamento", "Data", "Matrícula", "Humor"},
			TotalLinhas:  3,
			TotalColunas: 5,
		},
	}
	if diff := cmp.Diff(want, s); diff != "" {
		t.Errorf("section mismatch (-want +got):\n%s", diff)
	}
}

func TestFilterAndOptions(t *testing.T) {
	dir := workbooks(t)
	l := NewLoader(dir)
	all, err := l.All(context.Background())
	require.NoError(t, err)
	require.Len(t, all, 2, "missing spreadsheets are skipped")

	names := func(rows []Row, col string) []string {
		var out []string
		for _, r := range rows {
			out = append(out, r[col])
		}
		return out
	}
	humor := all["humor"].Dados
	assert.Equal(t, []string{"Ana", "Caio"}, names(Filter(humor, Filters{Departamento: "COMERCIAL"}), "Colaborador"))
	assert.Equal(t, []string{"Bia"}, names(Filter(humor, Filters{Periodo: "2024"}), "Colaborador"))
	assert.Len(t, Filter(humor, Filters{Periodo: Todos, Departamento: Todos}), 3)
	assert.Empty(t, Filter(humor, Filters{Periodo: "2024", Departamento: "comercial"}))
	assert.Len(t, Filter(all["feedback"].Dados, Filters{Departamento: "finan"}), 1)

	want := Opcoes{
		Departamentos: []string{"Comercial", "Financeiro", "comercial externo"},
		Periodos:      []string{"2025", "2024", "2023"},
	}
	if diff := cmp.Diff(want, Options(all)); diff != "" {
		t.Errorf("options mismatch (-want +got):\n%s", diff)
	}
}

func TestLoaderCache(t *testing.T) {
	dir := workbooks(t)
	clock := clockwork.NewFakeClock()
	l := NewLoader(dir, WithClock(clock))
	ctx := context.Background()

	s, err := l.Section(ctx, "humor")
	require.NoError(t, err)
	require.Len(t, s.Dados, 3)

	writeWorkbook(t, filepath.Join(dir, DefaultFiles["humor"]), humorRows[:2])
	s, err = l.Section(ctx, "humor")
	require.NoError(t, err)
	assert.Len(t, s.Dados, 3, "served from cache")

	clock.Advance(6 * time.Minute)
	s, err = l.Section(ctx, "humor")
	require.NoError(t, err)
	assert.Len(t, s.Dados, 1)

	var wg sync.WaitGroup
	results := make([]int, 8)
	l.Invalidate()
	for i := range results {
		wg.Add(1)
		go func() {
			defer wg.Done()
			s, err := l.Section(ctx, "humor")
			if err == nil {
				results[i] = len(s.Dados)
			}
		}()
	}
	wg.Wait()
	assert.Equal(t, []int{1, 1, 1, 1, 1, 1, 1, 1}, results)

	_, err = l.Section(ctx, "turnover")
	assert.ErrorIs(t, err, ErrNoFile)
	_, err = l.Section(ctx, "nada")
	assert.ErrorIs(t, err, ErrUnknownTipo)
}

func TestLoaderWithTTL(t *testing.T) {
	dir := workbooks(t)
	clock := clockwork.NewFakeClock()
	l := NewLoader(dir, WithClock(clock), WithTTL(time.Minute))
	ctx := context.Background()

	_, err := l.Section(ctx, "humor")
	require.NoError(t, err)
	writeWorkbook(t, filepath.Join(dir, DefaultFiles["humor"]), humorRows[:2])

	clock.Advance(59 * time.Second)
	s, err := l.Section(ctx, "humor")
	require.NoError(t, err)
	assert.Len(t, s.Dados, 3)

	clock.Advance(time.Second)
	s, err = l.Section(ctx, "humor")
	require.NoError(t, err)
	assert.Len(t, s.Dados, 1)
}

func TestLoadFiles(t *testing.T) {
	path := filepath.Join(t.TempDir(), "historico.yaml")
	require.NoError(t, os.WriteFile(path, []byte("dir: /srv/feedz\narquivos:\n  humor: humor_2026.xlsx\n"), 0o644))
	dir, files, err := LoadFiles(path)
	require.NoError(t, err)
	assert.Equal(t, "/srv/feedz", dir)
	assert.Equal(t, "humor_2026.xlsx", files["humor"])
	assert.Equal(t, DefaultFiles["feedback"], files["feedback"])
	assert.Equal(t, "relatorio_historico_humor_20250209.xlsx", DefaultFiles["humor"], "defaults untouched")

	require.NoError(t, os.WriteFile(path, []byte("arquivos:\n  salarios: x.xlsx\n"), 0o644))
	_, _, err = LoadFiles(path)
	assert.ErrorIs(t, err, ErrUnknownTipo)
}

func TestPaginate(t *testing.T) {
	_, ok := Paginate(50, 1, PerPage)
	assert.False(t, ok)

	p, ok := Paginate(500, 5, PerPage)
	require.True(t, ok)
	assert.Equal(t, "Mostrando 201-250 de 500 registros", p.Info())
	want := []PageLink{
		{Number: 1}, {Ellipsis: true},
		{Number: 3}, {Number: 4}, {Number: 5, Active: true}, {Number: 6}, {Number: 7},
		{Ellipsis: true}, {Number: 10},
	}
	if diff := cmp.Diff(want, p.Links); diff != "" {
		t.Errorf("links mismatch (-want +got):\n%s", diff)
	}
	assert.True(t, p.HasPrev())
	assert.True(t, p.HasNext())

	p, _ = Paginate(120, 9, PerPage)
	assert.Equal(t, 3, p.Page)
	assert.Equal(t, "Mostrando 101-120 de 120 registros", p.Info())
	assert.Equal(t, []PageLink{{Number: 1}, {Number: 2}, {Number: 3, Active: true}}, p.Links)
	assert.False(t, p.HasNext())

	p, _ = Paginate(200, 3, PerPage)
	assert.Equal(t, []PageLink{{Number: 1}, {Number: 2}, {Number: 3, Active: true}, {Number: 4}}, p.Links)
}

func TestWriteCSV(t *testing.T) {
	var buf bytes.Buffer
	rows := []Row{
		{"Nome": "Ana", "Obs": `disse "oi", tchau`},
		{"Nome": "Bia"},
		{"Nome": "Caio", "Obs": "linha1\nlinha2"},
		{"Nome": " Duda", "Obs": "ok"},
	}
	require.NoError(t, WriteCSV(&buf, []string{"Nome", "Obs"}, rows))
	want := "\uFEFFNome,Obs\nAna,\"disse \"\"oi\"\", tchau\"\nBia,\nCaio,\"linha1\nlinha2\"\n\" Duda\",ok\n"
	assert.Equal(t, want, buf.String())

	at := time.Date(2026, 6, 1, 9, 5, 7, 0, time.Local)
	assert.Equal(t, "historico_humor_2026-06-01_09-05-07.csv", CSVFileName("humor", at))
}

func TestRenderTable(t *testing.T) {
	cols := []string{"A", "B", "C", "D", "E", "F", "G"}
	var rows []Row
	for i := 1; i <= 120; i++ {
		r := Row{}
		for _, c := range cols {
			r[c] = c + strconv.Itoa(i)
		}
		rows = append(rows, r)
	}
	rows[50]["A"] = "<script>x</script>"
	s := Section{Dados: rows, Metadados: Metadados{Colunas: cols}}

	html, err := RenderTable("resumo", s, Filters{}, 2)
	require.NoError(t, err)
	out := string(html)
	assert.Contains(t, out, "table-scroll-horizontal")
	assert.Contains(t, out, "Mostrando 51-100 de 120 registros")
	assert.Contains(t, out, "&lt;script&gt;")
	assert.NotContains(t, out, "<script>")
	assert.Contains(t, out, `class="pagination-btn active" data-tipo="resumo" data-pagina="2">2</button>`)
	assert.Contains(t, out, "Anterior")
	assert.Contains(t, out, "Próximo")
	assert.Equal(t, 50, strings.Count(out, "<tr><td>"))

	narrow := Section{Dados: []Row{{"A": "1"}}, Metadados: Metadados{Colunas: []string{"A"}}}
	html, err = RenderTable("resumo", narrow, Filters{}, 1)
	require.NoError(t, err)
	assert.NotContains(t, string(html), "table-scroll-horizontal")
	assert.NotContains(t, string(html), "pagination-container")

	html, err = RenderTable("resumo", narrow, Filters{Departamento: "rh"}, 1)
	require.NoError(t, err)
	assert.Contains(t, string(html), "Nenhum dado encontrado")
	assert.Contains(t, string(html), "Não há dados para exibir com os filtros selecionados.")
}

func router() *gin.Engine {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	g := r.Group("/api/historico")
	g.GET("/dados", DadosHandler)
	g.GET("/opcoes", OpcoesHandler)
	g.GET("/export", ExportHandler)
	g.GET("/tabela", TabelaHandler)
	g.GET("/rh/objetivos", ObjetivosHandler)
	g.GET("/rh/feedbacks", FeedbacksHandler)
	g.GET("/rh/feedbacks/:id/mensagens", FeedbackMessagesHandler)
	g.GET("/rh/reconhecimentos", ReconhecimentosHandler)
	g.GET("/rh/humor", HumorHandler)
	g.GET("/rh/pdis", PDIsHandler)
	return r
}

func get(r *gin.Engine, path string) *httptest.ResponseRecorder {
	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, path, nil))
	return w
}

func TestSpreadsheetHandlers(t *testing.T) {
	SetDefault(NewLoader(workbooks(t)))
	t.Cleanup(func() { SetDefault(NewLoader("historico_feedz")) })
	clock := clockwork.NewFakeClockAt(time.Date(2026, 6, 1, 9, 0, 0, 0, time.Local))
	play_sql.SetClock(clock)
	t.Cleanup(func() { play_sql.SetClock(nil) })
	r := router()

	w := get(r, "/api/historico/dados?departamento=comercial")
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	var body struct {
		Success          bool               `json:"success"`
		FiltrosAplicados Filters            `json:"filtrosAplicados"`
		Dados            map[string]Section `json:"dados"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	assert.True(t, body.Success)
	assert.Equal(t, Filters{Periodo: Todos, Tipo: Todos, Departamento: "comercial"}, body.FiltrosAplicados)
	require.Contains(t, body.Dados, "humor")
	assert.Len(t, body.Dados["humor"].Dados, 2)
	assert.Equal(t, 2, body.Dados["humor"].Metadados.TotalLinhas)
	assert.Empty(t, body.Dados["feedback"].Dados)

	w = get(r, "/api/historico/dados?tipo=feedback")
	require.Equal(t, http.StatusOK, w.Code)
	body.Dados = nil
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	assert.Len(t, body.Dados, 1)
	assert.Contains(t, body.Dados, "feedback")

	w = get(r, "/api/historico/dados?tipo=turnover")
	assert.Equal(t, http.StatusNotFound, w.Code)

	w = get(r, "/api/historico/opcoes")
	require.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"success":true,"departamentos":["Comercial","Financeiro","comercial externo"],
		"periodos":["2025","2024","2023"],"tipos":["feedback","humor"]}`, w.Body.String())

	w = get(r, "/api/historico/export?tipo=humor&periodo=2024")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, `attachment; filename="historico_humor_2026-06-01_09-00-00.csv"`, w.Header().Get("Content-Disposition"))
	assert.Equal(t, "\uFEFFColaborador,Departamento,Data,Matrícula,Humor\nBia,Financeiro,15/03/2024,88,Neutro\n", w.Body.String())

	assert.Equal(t, http.StatusBadRequest, get(r, "/api/historico/export").Code)
	assert.Equal(t, http.StatusBadRequest, get(r, "/api/historico/export?tipo=salarios").Code)
	assert.Equal(t, http.StatusNotFound, get(r, "/api/historico/export?tipo=humor&periodo=2029").Code)

	w = get(r, "/api/historico/tabela?tipo=humor&pagina=1")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Header().Get("Content-Type"), "text/html")
	assert.Contains(t, w.Body.String(), "<th>Matrícula</th>")
}

type rhFixture struct {
	conn          *sql.DB
	ana, bia, rui int64
}

func exec(t *testing.T, conn *sql.DB, q string, args ...any) int64 {
	t.Helper()
	res, err := conn.Exec(q, args...)
	require.NoError(t, err)
	id, err := res.LastInsertId()
	require.NoError(t, err)
	return id
}

func setupRH(t *testing.T) rhFixture {
	t.Helper()
	conn := database.OpenTest(t)
	f := rhFixture{conn: conn}
	f.ana = database.CreateTestUser(t, conn, database.TestUser{CPF: "111.444.777-35", NomeCompleto: "Ana Lima", Departamento: "COMERCIAL"})
	f.bia = database.CreateTestUser(t, conn, database.TestUser{CPF: "529.982.247-25", NomeCompleto: "Bia Souza", Departamento: "FINANCEIRO"})
	f.rui = database.CreateTestUser(t, conn, database.TestUser{CPF: "123.456.789-09", NomeCompleto: "Rui Antigo", Departamento: "COMERCIAL", Inactive: true})

	o1 := exec(t, conn, `INSERT INTO Objetivos (titulo, descricao, data_inicio, data_fim, status, progresso, criado_por, created_at)
		VALUES ('Aumentar vendas', 'Meta do trimestre', '2026-01-01', '2026-03-31', 'Concluído', 100, ?, '2026-01-01 08:00:00')`, f.ana)
	o2 := exec(t, conn, `INSERT INTO Objetivos (titulo, descricao, data_inicio, data_fim, status, progresso, criado_por, created_at)
		VALUES ('Fechar balanço', NULL, '2026-04-01', '2026-06-30', 'Ativo', 40, ?, '2026-04-01 08:00:00')`, f.bia)
	exec(t, conn, "INSERT INTO ObjetivoResponsaveis (objetivo_id, responsavel_id) VALUES (?, ?)", o1, f.ana)
	exec(t, conn, "INSERT INTO ObjetivoResponsaveis (objetivo_id, responsavel_id) VALUES (?, ?)", o1, f.bia)
	exec(t, conn, "INSERT INTO ObjetivoResponsaveis (objetivo_id, responsavel_id) VALUES (?, ?)", o2, f.bia)
	exec(t, conn, "INSERT INTO ObjetivoCheckins (objetivo_id, user_id, progresso, created_at) VALUES (?, ?, 50, '2026-02-01 10:00:00')", o1, f.ana)
	exec(t, conn, "INSERT INTO ObjetivoCheckins (objetivo_id, user_id, progresso, created_at) VALUES (?, ?, 100, '2026-03-01 10:00:00')", o1, f.bia)

	fb1 := exec(t, conn, `INSERT INTO Feedbacks (from_user_id, to_user_id, type, category, message, created_at)
		VALUES (?, ?, 'Positivo', 'Técnico', 'Excelente análise', '2026-05-10 09:00:00')`, f.ana, f.bia)
	exec(t, conn, `INSERT INTO Feedbacks (from_user_id, to_user_id, type, category, message, created_at)
		VALUES (?, ?, 'Desenvolvimento', 'Comunicação', 'Podemos alinhar melhor', '2026-05-20 09:00:00')`, f.bia, f.ana)
	exec(t, conn, "INSERT INTO FeedbackReplies (feedback_id, user_id, reply_text, created_at) VALUES (?, ?, 'Obrigada!', '2026-05-10 10:00:00')", fb1, f.bia)
	exec(t, conn, `INSERT INTO FeedbackReplies (feedback_id, user_id, reply_text, reply_to_id, reply_to_message, reply_to_user, created_at)
		VALUES (?, ?, 'De nada', 1, 'Obrigada!', 'Bia Souza', '2026-05-10 11:00:00')`, fb1, f.ana)

	for _, badge := range []string{"Inovador", "Parceiro", "Dedicado"} {
		exec(t, conn, `INSERT INTO Recognitions (from_user_id, to_user_id, badge, message, points, created_at)
			VALUES (?, ?, ?, 'Valeu pela ajuda', 5, '2026-05-01 12:00:00')`, f.ana, f.bia, badge)
	}

	exec(t, conn, "INSERT INTO DailyMood (user_id, score, description, created_at) VALUES (?, 5, 'ótimo dia', '2026-05-30 09:00:00')", f.ana)
	exec(t, conn, "INSERT INTO DailyMood (user_id, score, description, created_at) VALUES (?, 2, 'cansada', '2026-05-31 09:00:00')", f.bia)
	exec(t, conn, "INSERT INTO DailyMood (user_id, score, description, created_at) VALUES (?, 4, NULL, '2026-05-31 09:00:00')", f.rui)

	exec(t, conn, `INSERT INTO PDIs (UserId, GestorId, Titulo, Objetivos, Acoes, PrazoConclusao, Status, Progresso, DataCriacao)
		VALUES (?, ?, 'Liderança', 'Liderar equipe', 'Curso', '2026-12-31', 'Ativo', 10, '2026-05-05 10:00:00')`, f.bia, f.ana)
	return f
}

func TestRHViews(t *testing.T) {
	f := setupRH(t)
	ctx := context.Background()

	objs, err := Objetivos(ctx, RHFilter{})
	require.NoError(t, err)
	require.Len(t, objs, 2)
	assert.Equal(t, "Fechar balanço", objs[0]["titulo"])
	assert.Equal(t, "Ana Lima; Bia Souza", objs[1]["responsaveis"])
	assert.Equal(t, 2, objs[1]["total_checkins"])
	assert.Equal(t, "Ana Lima", objs[1]["criador_nome"])

	objs, err = Objetivos(ctx, RHFilter{ResponsavelID: f.ana, Status: Todos})
	require.NoError(t, err)
	require.Len(t, objs, 1)
	assert.Equal(t, "Aumentar vendas", objs[0]["titulo"])

	objs, err = Objetivos(ctx, RHFilter{Status: "ativo"})
	require.NoError(t, err)
	require.Len(t, objs, 1)

	objs, err = Objetivos(ctx, RHFilter{Search: "TRIMESTRE"})
	require.NoError(t, err)
	require.Len(t, objs, 1)

	objs, err = Objetivos(ctx, RHFilter{DateStart: "2026-02-01", DateEnd: "2026-06-30"})
	require.NoError(t, err)
	require.Len(t, objs, 1)
	assert.Equal(t, "Fechar balanço", objs[0]["titulo"])

	fbs, err := Feedbacks(ctx, RHFilter{})
	require.NoError(t, err)
	require.Len(t, fbs, 2)
	assert.Equal(t, 0, fbs[0]["replies_count"])
	assert.Equal(t, 2, fbs[1]["replies_count"])
	assert.Equal(t, "FINANCEIRO", fbs[1]["to_department"])

	fbs, err = Feedbacks(ctx, RHFilter{Type: "positivo", Category: Todos})
	require.NoError(t, err)
	require.Len(t, fbs, 1)

	fbs, err = Feedbacks(ctx, RHFilter{DateStart: "2026-05-15"})
	require.NoError(t, err)
	require.Len(t, fbs, 1)
	assert.Equal(t, "Podemos alinhar melhor", fbs[0]["message"])

	fbs, err = Feedbacks(ctx, RHFilter{DateEnd: "2026-05-10"})
	require.NoError(t, err)
	require.Len(t, fbs, 1)
	assert.Equal(t, "Excelente análise", fbs[0]["message"])

	msgs, err := FeedbackMessages(ctx, 1)
	require.NoError(t, err)
	require.Len(t, msgs, 2)
	assert.Equal(t, "Obrigada!", msgs[0]["message"])
	assert.Nil(t, msgs[0]["reply_to_id"])
	assert.Equal(t, int64(1), msgs[1]["reply_to_id"])
	assert.Equal(t, "Bia Souza", msgs[1]["reply_to_user"])

	recs, err := Reconhecimentos(ctx, RHFilter{Badge: "Outros"})
	require.NoError(t, err)
	require.Len(t, recs, 1)
	assert.Equal(t, "Parceiro", recs[0]["badge"])
	recs, err = Reconhecimentos(ctx, RHFilter{Badge: "dedicado"})
	require.NoError(t, err)
	require.Len(t, recs, 1)

	moods, err := Humor(ctx, RHFilter{})
	require.NoError(t, err)
	require.Len(t, moods, 2, "inactive users are left out")
	assert.Equal(t, "Bia Souza", moods[0]["user_name"])

	moods, err = Humor(ctx, RHFilter{MinScore: 3})
	require.NoError(t, err)
	require.Len(t, moods, 1)
	assert.Equal(t, 5, moods[0]["score"])

	moods, err = Humor(ctx, RHFilter{Department: "FINANCEIRO", MaxScore: 3, Search: "cansada"})
	require.NoError(t, err)
	require.Len(t, moods, 1)

	pdis, err := PDIs(ctx, RHFilter{Search: "liderar"})
	require.NoError(t, err)
	require.Len(t, pdis, 1)
	assert.Equal(t, "Ana Lima", pdis[0]["gestor_nome"])
	assert.Equal(t, "2026-12-31", pdis[0]["prazo_revisao"])
}

func TestRHHandlers(t *testing.T) {
	setupRH(t)
	r := router()

	w := get(r, "/api/historico/rh/reconhecimentos?badge=Inovador")
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	var recs []api.JsonEncode
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &recs))
	require.Len(t, recs, 1)
	assert.Equal(t, "Inovador", recs[0]["badge"])

	w = get(r, "/api/historico/rh/humor?minScore=abc")
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = get(r, "/api/historico/rh/feedbacks/1/mensagens")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "De nada")

	assert.Equal(t, http.StatusBadRequest, get(r, "/api/historico/rh/feedbacks/x/mensagens").Code)

	w = get(r, "/api/historico/rh/objetivos?status=todos&search=vendas")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "Aumentar vendas")
	assert.NotContains(t, w.Body.String(), "Fechar balanço")
}
