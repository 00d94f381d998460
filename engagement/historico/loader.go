package historico

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"slices"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/xuri/excelize/v2"
	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"
	"gopkg.in/yaml.v3"

	"lumigente_backend/main/cache"
	"lumigente_backend/main/logger"
)

// Tipos lists the sections in display order.
var Tipos = []string{
	"avaliacao", "feedback", "humor", "colaboradores", "medias",
	"ranking", "resumo", "turnover", "pdi", "pesquisas",
}

// DefaultFiles maps each tipo to the spreadsheet exported by the old
// platform, relative to the historico directory.
var DefaultFiles = map[string]string{
	"avaliacao":     "relatorio_avaliacao_desempenho_por_colaborador - 2025-09-02.xlsx",
	"feedback":      "relatorio_conteudo_feedbacks-20250209.xlsx",
	"humor":         "relatorio_historico_humor_20250209.xlsx",
	"colaboradores": "relatorio_listagem_colaboradores.xlsx",
	"medias":        "relatorio_medias_feedbacks-20250209.xlsx",
	"ranking":       "relatorio_ranking_gamificacao-20250209.xlsx",
	"resumo":        "relatorio_resumo_de_atividades_02_09_2025_16_17_45.xlsx",
	"turnover":      "relatorio_turnovers_20250209.xlsx",
	"pdi":           "relatorios_pdi/relatorio_plano-de-desenvolvimento-colaboradores-ativos-02_09_2025_15_08_18.xlsx",
	"pesquisas":     "relatorios_pesquisas_rapidas/relatorio_pesquisa_rapida-20230408.xlsx",
}

var (
	ErrUnknownTipo = errors.New("historico: tipo desconhecido")
	ErrNoFile      = errors.New("historico: planilha não encontrada")
)

type Row = map[string]string

type Metadados struct {
	Colunas      []string `json:"colunas"`
	TotalLinhas  int      `json:"total_linhas"`
	TotalColunas int      `json:"total_colunas"`
}

// Section is one spreadsheet: rows keyed by the original header text.
type Section struct {
	Dados     []Row     `json:"dados"`
	Metadados Metadados `json:"metadados"`
}

// Columns returns the header order, falling back to the keys of the first
// row when the metadata is empty.
func (s Section) Columns() []string {
	if len(s.Metadados.Colunas) > 0 || len(s.Dados) == 0 {
		return s.Metadados.Colunas
	}
	cols := make([]string, 0, len(s.Dados[0]))
	for k := range s.Dados[0] {
		cols = append(cols, k)
	}
	slices.Sort(cols)
	return cols
}

type filesConfig struct {
	Dir      string            `yaml:"dir"`
	Arquivos map[string]string `yaml:"arquivos"`
}

// LoadFiles reads a historico.yaml override. Tipos it does not name keep
// their default file. The returned dir is empty unless the file sets one.
func LoadFiles(path string) (string, map[string]string, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return "", nil, err
	}
	var cfg filesConfig
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return "", nil, fmt.Errorf("parse %s: %w", path, err)
	}
	files := make(map[string]string, len(DefaultFiles))
	for k, v := range DefaultFiles {
		files[k] = v
	}
	for k, v := range cfg.Arquivos {
		if _, ok := files[k]; !ok {
			return "", nil, fmt.Errorf("%s: %w: %s", path, ErrUnknownTipo, k)
		}
		files[k] = v
	}
	return cfg.Dir, files, nil
}

// Loader reads the historico spreadsheets and keeps each parsed section for
// a short while. Concurrent loads of the same tipo share one read.
type Loader struct {
	dir   string
	files map[string]string
	ttl   time.Duration
	clock clockwork.Clock

	cache *cache.TTLCache[string, Section]
	group singleflight.Group
}

type Option func(*Loader)

func WithClock(c clockwork.Clock) Option { return func(l *Loader) { l.clock = c } }

func WithTTL(d time.Duration) Option { return func(l *Loader) { l.ttl = d } }

func WithFiles(files map[string]string) Option {
	return func(l *Loader) {
		if len(files) > 0 {
			l.files = files
		}
	}
}

func NewLoader(dir string, opts ...Option) *Loader {
	l := &Loader{
		dir:   dir,
		files: DefaultFiles,
		ttl:   5 * time.Minute,
		clock: clockwork.NewRealClock(),
	}
	for _, opt := range opts {
		opt(l)
	}
	l.cache = cache.NewTTL[string, Section](l.ttl, l.clock)
	return l
}

func (l *Loader) Dir() string { return l.dir }

// Path returns the spreadsheet path of tipo.
func (l *Loader) Path(tipo string) (string, error) {
	file, ok := l.files[tipo]
	if !ok {
		return "", fmt.Errorf("%w: %s", ErrUnknownTipo, tipo)
	}
	return filepath.Join(l.dir, filepath.FromSlash(file)), nil
}

// Section returns the parsed spreadsheet of tipo.
func (l *Loader) Section(ctx context.Context, tipo string) (Section, error) {
	path, err := l.Path(tipo)
	if err != nil {
		return Section{}, err
	}
	if s, ok := l.cache.Get(tipo); ok {
		return s, nil
	}

	v, err, _ := l.group.Do(tipo, func() (any, error) {
		if _, err := os.Stat(path); err != nil {
			if errors.Is(err, os.ErrNotExist) {
				return nil, fmt.Errorf("%w: %s", ErrNoFile, path)
			}
			return nil, err
		}
		s, err := ReadWorkbook(path)
		if err != nil {
			return nil, err
		}
		l.cache.Set(tipo, s)
		logger.L().Debug("historico carregado",
			zap.String("tipo", tipo), zap.Int("linhas", s.Metadados.TotalLinhas))
		return s, nil
	})
	if err != nil {
		return Section{}, err
	}
	return v.(Section), ctx.Err()
}

// All loads every configured section. A missing spreadsheet leaves its
// section out instead of failing the whole load.
func (l *Loader) All(ctx context.Context) (map[string]Section, error) {
	out := make(map[string]Section, len(l.files))
	for _, tipo := range Tipos {
		if _, ok := l.files[tipo]; !ok {
			continue
		}
		s, err := l.Section(ctx, tipo)
		if errors.Is(err, ErrNoFile) {
			logger.L().Warn("planilha do histórico ausente", zap.String("tipo", tipo), zap.Error(err))
			continue
		}
		if err != nil {
			return nil, fmt.Errorf("%s: %w", tipo, err)
		}
		out[tipo] = s
	}
	return out, nil
}

// Invalidate drops every cached section.
func (l *Loader) Invalidate() {
	l.cache.Clear()
}

// ReadWorkbook parses the first sheet of the workbook at path. The first row
// is the header; fully blank rows are dropped.
func ReadWorkbook(path string) (Section, error) {
	f, err := excelize.OpenFile(path)
	if err != nil {
		return Section{}, err
	}
	defer func() { _ = f.Close() }()

	sheet := f.GetSheetName(0)
	if sheet == "" {
		return Section{}, fmt.Errorf("%s: no worksheet found", path)
	}
	rows, err := f.GetRows(sheet)
	if err != nil {
		return Section{}, err
	}
	s := Section{Dados: []Row{}, Metadados: Metadados{Colunas: []string{}}}
	if len(rows) == 0 {
		return s, nil
	}

	header := make([]string, len(rows[0]))
	for i, h := range rows[0] {
		h = strings.TrimSpace(h)
		if h == "" {
			h = "Unnamed: " + strconv.Itoa(i)
		}
		header[i] = h
	}
	for _, raw := range rows[1:] {
		blank := true
		row := make(Row, len(header))
		for i, col := range header {
			v := ""
			if i < len(raw) {
				v = cellValue(col, raw[i])
			}
			if v != "" {
				blank = false
			}
			row[col] = v
		}
		if !blank {
			s.Dados = append(s.Dados, row)
		}
	}
	s.Metadados = Metadados{Colunas: header, TotalLinhas: len(s.Dados), TotalColunas: len(header)}
	return s, nil
}

func cellValue(col, v string) string {
	v = strings.TrimSpace(v)
	if v == "" {
		return ""
	}
	lower := strings.ToLower(col)
	if strings.Contains(lower, "matrícula") || strings.Contains(lower, "matricula") {
		return strings.TrimSuffix(v, ".0")
	}
	if isDateColumn(lower) {
		if serial, err := strconv.ParseFloat(v, 64); err == nil && serial >= 1 && serial < 100000 {
			if t, err := excelize.ExcelDateToTime(serial, false); err == nil {
				return t.Format("02/01/2006")
			}
		}
	}
	return v
}

func isDateColumn(lower string) bool {
	for _, p := range []string{"data", "período", "periodo", "último acesso", "última atualização"} {
		if strings.Contains(lower, p) {
			return true
		}
	}
	return false
}

var (
	defaultMu     sync.RWMutex
	defaultLoader = NewLoader("historico_feedz")
)

func SetDefault(l *Loader) {
	if l == nil {
		return
	}
	defaultMu.Lock()
	defaultLoader = l
	defaultMu.Unlock()
}

func Default() *Loader {
	defaultMu.RLock()
	defer defaultMu.RUnlock()
	return defaultLoader
}
