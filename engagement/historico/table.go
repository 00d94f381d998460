package historico

import (
	"bytes"
	"html/template"
)

var tableTemplate = template.Must(template.New("tabela").Parse(`
{{- define "empty" -}}
<div class="historico-empty">
  <i class="fas fa-inbox"></i>
  <h4>Nenhum dado encontrado</h4>
  <p>Não há dados para exibir com os filtros selecionados.</p>
</div>
{{- end -}}

{{- define "tabela" -}}
<div class="table-wrapper{{if .Scroll}} table-scroll-horizontal{{end}}">
  <table class="historico-table">
    <thead>
      <tr>{{range .Columns}}<th>{{.}}</th>{{end}}</tr>
    </thead>
    <tbody>
    {{- range $row := .Rows}}
      <tr>{{range $.Columns}}<td>{{index $row .}}</td>{{end}}</tr>
    {{- end}}
    </tbody>
  </table>
</div>
{{- if .Paged}}
{{- with .Pagination}}
<div class="pagination-container">
  <div class="pagination-info">{{.Info}}</div>
  <div class="pagination-controls">
    {{- if .HasPrev}}
    <button class="pagination-btn" data-tipo="{{$.Tipo}}" data-pagina="{{.Prev}}"><i class="fas fa-chevron-left"></i> Anterior</button>
    {{- end}}
    {{- range .Links}}
    {{- if .Ellipsis}}
    <span class="pagination-ellipsis">...</span>
    {{- else}}
    <button class="pagination-btn{{if .Active}} active{{end}}" data-tipo="{{$.Tipo}}" data-pagina="{{.Number}}">{{.Number}}</button>
    {{- end}}
    {{- end}}
    {{- if .HasNext}}
    <button class="pagination-btn" data-tipo="{{$.Tipo}}" data-pagina="{{.Next}}">Próximo <i class="fas fa-chevron-right"></i></button>
    {{- end}}
  </div>
</div>
{{- end}}
{{- end}}
{{- end -}}
`))

type tableView struct {
	Tipo       string
	Columns    []string
	Rows       []Row
	Scroll     bool
	Paged      bool
	Pagination Pagination
}

// RenderTable renders page of section s after applying f. Tables wider than
// six columns scroll horizontally.
func RenderTable(tipo string, s Section, f Filters, page int) (template.HTML, error) {
	rows := Filter(s.Dados, f)
	var buf bytes.Buffer
	if len(rows) == 0 {
		if err := tableTemplate.ExecuteTemplate(&buf, "empty", nil); err != nil {
			return "", err
		}
		return template.HTML(buf.String()), nil
	}
	cols := s.Columns()
	p, paged := Paginate(len(rows), page, PerPage)
	v := tableView{
		Tipo:       tipo,
		Columns:    cols,
		Rows:       PageRows(rows, p.Page, PerPage),
		Scroll:     len(cols) > 6,
		Paged:      paged,
		Pagination: p,
	}
	if err := tableTemplate.ExecuteTemplate(&buf, "tabela", v); err != nil {
		return "", err
	}
	return template.HTML(buf.String()), nil
}
