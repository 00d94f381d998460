package historico

import (
	"context"
	"errors"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"lumigente_backend/main/api"
	"lumigente_backend/main/play_sql"
)

func filtersFrom(c *gin.Context) Filters {
	return Filters{
		Periodo:      c.Query("periodo"),
		Tipo:         c.Query("tipo"),
		Departamento: c.Query("departamento"),
	}.Normalize()
}

// sections loads what f selects: one section for a specific tipo, all of
// them otherwise.
func sections(ctx context.Context, f Filters) (map[string]Section, error) {
	l := Default()
	if f.Tipo == Todos {
		return l.All(ctx)
	}
	s, err := l.Section(ctx, f.Tipo)
	if err != nil {
		return nil, err
	}
	return map[string]Section{f.Tipo: s}, nil
}

func loadError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, ErrUnknownTipo):
		api.Fail(c, http.StatusBadRequest, "Tipo de relatório inválido")
	case errors.Is(err, ErrNoFile):
		api.Fail(c, http.StatusNotFound, "Planilha do histórico não encontrada")
	default:
		api.Internal(c, "Erro ao carregar dados do histórico", err)
	}
}

// DadosHandler: GET /api/historico/dados
func DadosHandler(c *gin.Context) {
	if api.Preflight(c) {
		return
	}
	f := filtersFrom(c)
	all, err := sections(c.Request.Context(), f)
	if err != nil {
		loadError(c, err)
		return
	}
	dados := make(map[string]Section, len(all))
	for tipo, s := range all {
		if !f.Shows(tipo) {
			continue
		}
		rows := Filter(s.Dados, f)
		meta := s.Metadados
		meta.Colunas = s.Columns()
		meta.TotalLinhas = len(rows)
		dados[tipo] = Section{Dados: rows, Metadados: meta}
	}
	api.Print_json(c,
		"success", true,
		"filtrosAplicados", f,
		"dados", dados,
	)
}

// OpcoesHandler: GET /api/historico/opcoes
func OpcoesHandler(c *gin.Context) {
	if api.Preflight(c) {
		return
	}
	all, err := Default().All(c.Request.Context())
	if err != nil {
		loadError(c, err)
		return
	}
	opts := Options(all)
	tipos := make([]string, 0, len(all))
	for _, t := range Tipos {
		if _, ok := all[t]; ok {
			tipos = append(tipos, t)
		}
	}
	api.Print_json(c,
		"success", true,
		"departamentos", opts.Departamentos,
		"periodos", opts.Periodos,
		"tipos", tipos,
	)
}

// ExportHandler: GET /api/historico/export
func ExportHandler(c *gin.Context) {
	if api.Preflight(c) {
		return
	}
	f := filtersFrom(c)
	if f.Tipo == Todos {
		api.Fail(c, http.StatusBadRequest, "Informe o tipo de relatório a exportar")
		return
	}
	s, err := Default().Section(c.Request.Context(), f.Tipo)
	if err != nil {
		loadError(c, err)
		return
	}
	rows := Filter(s.Dados, f)
	if len(rows) == 0 {
		api.Fail(c, http.StatusNotFound, "Nenhum dado disponível para exportar")
		return
	}
	name := CSVFileName(f.Tipo, play_sql.Clock().Now())
	c.Header("Content-Type", "text/csv; charset=utf-8")
	c.Header("Content-Disposition", `attachment; filename="`+name+`"`)
	c.Header("X-Total-Count", strconv.Itoa(len(rows)))
	c.Status(http.StatusOK)
	if err := WriteCSV(c.Writer, s.Columns(), rows); err != nil {
		_ = c.Error(err)
	}
}

// TabelaHandler: GET /api/historico/tabela
func TabelaHandler(c *gin.Context) {
	if api.Preflight(c) {
		return
	}
	f := filtersFrom(c)
	if f.Tipo == Todos {
		api.Fail(c, http.StatusBadRequest, "Informe o tipo de relatório")
		return
	}
	s, err := Default().Section(c.Request.Context(), f.Tipo)
	if err != nil {
		loadError(c, err)
		return
	}
	page, _ := strconv.Atoi(c.DefaultQuery("pagina", "1"))
	html, err := RenderTable(f.Tipo, s, f, page)
	if err != nil {
		api.Internal(c, "Erro ao renderizar tabela do histórico", err)
		return
	}
	c.Data(http.StatusOK, "text/html; charset=utf-8", []byte(html))
}

func rhFilter(c *gin.Context) (RHFilter, bool) {
	var f RHFilter
	if err := c.ShouldBindQuery(&f); err != nil {
		api.Fail(c, http.StatusBadRequest, "Filtros inválidos")
		return f, false
	}
	return f, true
}

func rhView(list func(context.Context, RHFilter) ([]api.JsonEncode, error), msg string) gin.HandlerFunc {
	return func(c *gin.Context) {
		if api.Preflight(c) {
			return
		}
		f, ok := rhFilter(c)
		if !ok {
			return
		}
		out, err := list(c.Request.Context(), f)
		if err != nil {
			api.Internal(c, msg, err)
			return
		}
		api.Print_json(c, out)
	}
}

var (
	// ObjetivosHandler: GET /api/historico/rh/objetivos
	ObjetivosHandler = rhView(Objetivos, "Erro ao buscar objetivos.")
	// FeedbacksHandler: GET /api/historico/rh/feedbacks
	FeedbacksHandler = rhView(Feedbacks, "Erro ao buscar feedbacks.")
	// ReconhecimentosHandler: GET /api/historico/rh/reconhecimentos
	ReconhecimentosHandler = rhView(Reconhecimentos, "Erro ao buscar reconhecimentos.")
	// HumorHandler: GET /api/historico/rh/humor
	HumorHandler = rhView(Humor, "Erro ao buscar dados de humor.")
	// PDIsHandler: GET /api/historico/rh/pdis
	PDIsHandler = rhView(PDIs, "Erro ao buscar PDIs.")
)

// FeedbackMessagesHandler: GET /api/historico/rh/feedbacks/:id/mensagens
func FeedbackMessagesHandler(c *gin.Context) {
	if api.Preflight(c) {
		return
	}
	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil || id <= 0 {
		api.Fail(c, http.StatusBadRequest, "ID do feedback inválido")
		return
	}
	out, err := FeedbackMessages(c.Request.Context(), id)
	if err != nil {
		api.Internal(c, "Erro ao buscar mensagens de feedback.", err)
		return
	}
	api.Print_json(c, out)
}
