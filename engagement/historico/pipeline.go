package historico

import (
	"encoding/csv"
	"io"
	"regexp"
	"slices"
	"strconv"
	"strings"
	"time"
)

const (
	Todos   = "todos"
	PerPage = 50
)

var (
	yearPattern = regexp.MustCompile(`20\d{2}`)

	// dateColumns are the headers searched for a year, in the spellings the
	// exports use.
	dateColumns = []string{
		"Data", "data", "Data Admissão", "Data de Nascimento", "Data de Cadastro",
		"Último Acesso", "Data do turnover", "Data Ínicio", "Data Final",
		"Data de criação", "Última atualização",
		"Período inicial avaliado da última avaliação de desempenho",
		"Período final avaliado da última avaliação de desempenho",
	}
	// periodColumns feed the year options; the evaluation periods are matched
	// by the filter but never offered as a choice.
	periodColumns = dateColumns[:11]

	departmentColumns = []string{"Departamento", "departamento", "Para Departamento", "Depto", "Setor"}
)

// ExtractYears returns the distinct years between 2020 and 2030 that appear
// in s, in order of appearance.
func ExtractYears(s string) []string {
	var out []string
	for _, y := range yearPattern.FindAllString(s, -1) {
		n, _ := strconv.Atoi(y)
		if n < 2020 || n > 2030 || slices.Contains(out, y) {
			continue
		}
		out = append(out, y)
	}
	return out
}

func usableDate(v string) (string, bool) {
	v = strings.TrimSpace(v)
	return v, v != "" && v != "-" && v != "N/A"
}

// ItemHasYear reports whether any date column of row mentions year.
func ItemHasYear(row Row, year string) bool {
	for _, col := range dateColumns {
		v, ok := usableDate(row[col])
		if !ok {
			continue
		}
		if slices.Contains(ExtractYears(v), year) {
			return true
		}
	}
	return false
}

type Filters struct {
	Periodo      string `json:"periodo" form:"periodo"`
	Tipo         string `json:"tipo" form:"tipo"`
	Departamento string `json:"departamento" form:"departamento"`
}

// Normalize fills blank filters with Todos.
func (f Filters) Normalize() Filters {
	for _, p := range []*string{&f.Periodo, &f.Tipo, &f.Departamento} {
		*p = strings.TrimSpace(*p)
		if *p == "" {
			*p = Todos
		}
	}
	return f
}

// Shows reports whether section tipo is part of the selection.
func (f Filters) Shows(tipo string) bool {
	return f.Tipo == "" || f.Tipo == Todos || f.Tipo == tipo
}

func matchesDepartment(row Row, dept string) bool {
	dept = strings.ToLower(dept)
	for _, col := range departmentColumns {
		if v := row[col]; v != "" && strings.Contains(strings.ToLower(v), dept) {
			return true
		}
	}
	return false
}

// Filter keeps the rows matching the department and period filters.
func Filter(rows []Row, f Filters) []Row {
	f = f.Normalize()
	out := make([]Row, 0, len(rows))
	for _, r := range rows {
		if f.Departamento != Todos && !matchesDepartment(r, f.Departamento) {
			continue
		}
		if f.Periodo != Todos && !ItemHasYear(r, f.Periodo) {
			continue
		}
		out = append(out, r)
	}
	return out
}

type Opcoes struct {
	Departamentos []string `json:"departamentos"`
	Periodos      []string `json:"periodos"`
}

// Options collects the departments (sorted) and years (newest first) found
// across sections.
func Options(sections map[string]Section) Opcoes {
	depts := map[string]bool{}
	years := map[string]bool{}
	for _, s := range sections {
		for _, r := range s.Dados {
			for _, col := range departmentColumns {
				if v := strings.TrimSpace(r[col]); v != "" {
					depts[v] = true
				}
			}
			for _, col := range periodColumns {
				v, ok := usableDate(r[col])
				if !ok {
					continue
				}
				for _, y := range ExtractYears(v) {
					years[y] = true
				}
			}
		}
	}
	out := Opcoes{Departamentos: []string{}, Periodos: []string{}}
	for d := range depts {
		out.Departamentos = append(out.Departamentos, d)
	}
	for y := range years {
		out.Periodos = append(out.Periodos, y)
	}
	slices.Sort(out.Departamentos)
	slices.Sort(out.Periodos)
	slices.Reverse(out.Periodos)
	return out
}

type PageLink struct {
	Number   int
	Active   bool
	Ellipsis bool
}

type Pagination struct {
	Page       int
	PerPage    int
	Total      int
	TotalPages int
	// Start and End are the 1-based positions of the rows shown.
	Start int
	End   int
	Links []PageLink
}

func (p Pagination) Info() string {
	return "Mostrando " + strconv.Itoa(p.Start) + "-" + strconv.Itoa(p.End) +
		" de " + strconv.Itoa(p.Total) + " registros"
}

func (p Pagination) HasPrev() bool { return p.Page > 1 }
func (p Pagination) HasNext() bool { return p.Page < p.TotalPages }
func (p Pagination) Prev() int     { return p.Page - 1 }
func (p Pagination) Next() int     { return p.Page + 1 }

func pages(total, perPage int) int {
	if perPage <= 0 {
		perPage = PerPage
	}
	return (total + perPage - 1) / perPage
}

// Paginate lays out the page bar for total rows. Pages two away from the
// current one are linked, plus the first and last with ellipses for the
// gaps. It returns false when everything fits on one page.
func Paginate(total, page, perPage int) (Pagination, bool) {
	if perPage <= 0 {
		perPage = PerPage
	}
	n := pages(total, perPage)
	page = clampPage(page, n)
	p := Pagination{
		Page:       page,
		PerPage:    perPage,
		Total:      total,
		TotalPages: n,
		Start:      (page-1)*perPage + 1,
		End:        min(page*perPage, total),
	}
	if n <= 1 {
		return p, false
	}
	first, last := max(1, page-2), min(n, page+2)
	if first > 1 {
		p.Links = append(p.Links, PageLink{Number: 1})
		if first > 2 {
			p.Links = append(p.Links, PageLink{Ellipsis: true})
		}
	}
	for i := first; i <= last; i++ {
		p.Links = append(p.Links, PageLink{Number: i, Active: i == page})
	}
	if last < n {
		if last < n-1 {
			p.Links = append(p.Links, PageLink{Ellipsis: true})
		}
		p.Links = append(p.Links, PageLink{Number: n})
	}
	return p, true
}

func clampPage(page, n int) int {
	if page > n {
		page = n
	}
	if page < 1 {
		page = 1
	}
	return page
}

// PageRows returns the rows of page.
func PageRows(rows []Row, page, perPage int) []Row {
	if perPage <= 0 {
		perPage = PerPage
	}
	page = clampPage(page, pages(len(rows), perPage))
	start := (page - 1) * perPage
	if start >= len(rows) {
		return nil
	}
	return rows[start:min(start+perPage, len(rows))]
}

// WriteCSV writes a UTF-8 BOM, the header and one record per row.
func WriteCSV(w io.Writer, columns []string, rows []Row) error {
	if _, err := io.WriteString(w, "\uFEFF"); err != nil {
		return err
	}
	cw := csv.NewWriter(w)
	if err := cw.Write(columns); err != nil {
		return err
	}
	record := make([]string, len(columns))
	for _, r := range rows {
		for i, c := range columns {
			record[i] = r[c]
		}
		if err := cw.Write(record); err != nil {
			return err
		}
	}
	cw.Flush()
	return cw.Error()
}

func CSVFileName(tipo string, t time.Time) string {
	return "historico_" + tipo + "_" + t.Format("2006-01-02_15-04-05") + ".csv"
}
