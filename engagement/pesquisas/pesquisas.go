package pesquisas

import (
	"context"
	"database/sql"
	"errors"
	"strconv"
	"strings"

	"go.uber.org/zap"

	"lumigente_backend/main/logger"
	"lumigente_backend/main/play_sql"
	"lumigente_backend/users/access"
)

// Survey statuses. The effective one is always derived from the dates.
const (
	Agendada  = "Agendada"
	Ativa     = "Ativa"
	Encerrada = "Encerrada"
)

// Question types.
const (
	TextoLivre      = "texto_livre"
	MultiplaEscolha = "multipla_escolha"
	Escala          = "escala"
	SimNao          = "sim_nao"
)

var (
	ErrNotFound         = errors.New("pesquisa não encontrada")
	ErrNotEligible      = errors.New("usuário fora do público alvo")
	ErrClosed           = errors.New("pesquisa não está ativa")
	ErrAlreadyAnswered  = errors.New("pesquisa já respondida")
	ErrNotAnswered      = errors.New("pesquisa ainda não respondida")
	ErrNotClosed        = errors.New("pesquisa não está encerrada")
	ErrAlreadyClosed    = errors.New("pesquisa já encerrada")
	errUnknownQuestion  = Error("Resposta para pergunta inexistente nesta pesquisa.")
	errAnswersRequired  = Error("Respostas são obrigatórias")
	errInvalidQuestions = Error("Título e pelo menos uma pergunta são obrigatórios")
)

// Error is a validation failure shown to the user as is.
type Error string

func (e Error) Error() string { return string(e) }

type Option struct {
	ID    int64  `json:"Id"`
	Opcao string `json:"opcao"`
	Ordem int    `json:"ordem"`
}

type Question struct {
	ID          int64    `json:"Id"`
	SurveyID    int64    `json:"survey_id"`
	Pergunta    string   `json:"pergunta"`
	Tipo        string   `json:"tipo"`
	Obrigatoria bool     `json:"obrigatoria"`
	Ordem       int      `json:"ordem"`
	EscalaMin   int      `json:"escala_min"`
	EscalaMax   int      `json:"escala_max"`
	Opcoes      []Option `json:"opcoes"`
}

func (q Question) option(id int64) (Option, bool) {
	for _, o := range q.Opcoes {
		if o.ID == id {
			return o, true
		}
	}
	return Option{}, false
}

type Survey struct {
	ID               int64  `json:"Id"`
	Titulo           string `json:"titulo"`
	Descricao        string `json:"descricao"`
	Status           string `json:"status"`
	StatusCalculado  string `json:"status_calculado"`
	Anonima          bool   `json:"anonima"`
	DataInicio       string `json:"data_inicio"`
	DataEncerramento string `json:"data_encerramento"`
	CriadoPor        int64  `json:"criado_por"`
	CriadorNome      string `json:"criador_nome"`
	DataCriacao      string `json:"data_criacao"`
	TotalPerguntas   int    `json:"total_perguntas"`
	TotalElegiveis   int    `json:"total_usuarios_elegiveis"`
	TotalRespostas   int    `json:"total_respostas"`

	JaRespondeu         bool       `json:"ja_respondeu"`
	PodeResponder       bool       `json:"pode_responder"`
	EstaNoPublicoAlvo   bool       `json:"esta_no_publico_alvo"`
	PublicoAlvo         string     `json:"publico_alvo,omitempty"`
	FiliaisFiltro       []string   `json:"filiais_filtro,omitempty"`
	DepartamentosFiltro []string   `json:"departamentos_filtro,omitempty"`
	Perguntas           []Question `json:"perguntas,omitempty"`
}

// summary computes per viewer the effective status and counters of every
// survey. It takes (now, now, viewerID, viewerID) as its first arguments.
const summary = `(
	SELECT s.Id, s.titulo, s.descricao, s.status, s.anonima, s.data_inicio, s.data_encerramento,
		s.criado_por, s.data_criacao, c.NomeCompleto AS criador_nome,
		CASE
			WHEN s.data_encerramento IS NOT NULL AND s.data_encerramento <= ? THEN 'Encerrada'
			WHEN s.data_inicio IS NOT NULL AND s.data_inicio > ? THEN 'Agendada'
			ELSE 'Ativa'
		END AS status_calculado,
		(SELECT COUNT(*) FROM SurveyQuestions q WHERE q.survey_id = s.Id) AS total_perguntas,
		(SELECT COUNT(*) FROM SurveyEligibleUsers e WHERE e.survey_id = s.Id) AS total_usuarios_elegiveis,
		(SELECT COUNT(DISTINCT r.user_id) FROM SurveyResponses r WHERE r.survey_id = s.Id) AS total_respostas,
		(SELECT COUNT(*) FROM SurveyResponses r WHERE r.survey_id = s.Id AND r.user_id = ?) AS respondidas,
		(SELECT COUNT(*) FROM SurveyEligibleUsers e WHERE e.survey_id = s.Id AND e.user_id = ?) AS elegivel
	FROM Surveys s
	LEFT JOIN Users c ON c.Id = s.criado_por
) v`

func summaryArgs(viewerID int64) []any {
	now := play_sql.Now()
	return []any{now, now, viewerID, viewerID}
}

func surveyFrom(row map[string]string) Survey {
	s := Survey{
		ID:                play_sql.ToInt64(row["Id"]),
		Titulo:            row["titulo"],
		Descricao:         row["descricao"],
		Status:            row["status"],
		StatusCalculado:   row["status_calculado"],
		Anonima:           play_sql.ToBool(row["anonima"]),
		DataInicio:        row["data_inicio"],
		DataEncerramento:  row["data_encerramento"],
		CriadoPor:         play_sql.ToInt64(row["criado_por"]),
		CriadorNome:       row["criador_nome"],
		DataCriacao:       row["data_criacao"],
		TotalPerguntas:    play_sql.ToInt(row["total_perguntas"]),
		TotalElegiveis:    play_sql.ToInt(row["total_usuarios_elegiveis"]),
		TotalRespostas:    play_sql.ToInt(row["total_respostas"]),
		JaRespondeu:       play_sql.ToInt(row["respondidas"]) > 0,
		EstaNoPublicoAlvo: play_sql.ToInt(row["elegivel"]) > 0,
	}
	s.PodeResponder = s.StatusCalculado == Ativa && !s.JaRespondeu && s.EstaNoPublicoAlvo
	return s
}

type ListFilter struct {
	Search string
	Status string
	Page   int
	Limit  int
}

type Page struct {
	Surveys []Survey
	Page    int
	Limit   int
	Total   int
}

func (p Page) Pages() int {
	if p.Limit <= 0 {
		return 0
	}
	return (p.Total + p.Limit - 1) / p.Limit
}

// List pages through the surveys visible to u, newest first. Only HR and
// T&D see scheduled surveys and surveys they are not targeted by.
func List(ctx context.Context, u *access.User, f ListFilter) (Page, error) {
	if f.Page < 1 {
		f.Page = 1
	}
	if f.Limit < 1 {
		f.Limit = 20
	}
	where := " WHERE 1 = 1"
	args := summaryArgs(u.ID)
	if s := strings.TrimSpace(f.Search); s != "" {
		where += " AND (LOWER(v.titulo) LIKE LOWER(?) OR LOWER(v.descricao) LIKE LOWER(?))"
		args = append(args, "%"+s+"%", "%"+s+"%")
	}
	if f.Status != "" {
		where += " AND v.status_calculado = ?"
		args = append(args, f.Status)
	}
	if !u.FullAccess() {
		where += " AND v.elegivel > 0 AND v.status_calculado IN ('Ativa', 'Encerrada')"
	}

	total, err := play_sql.Count(ctx, "SELECT COUNT(*) AS total FROM "+summary+where, args...)
	if err != nil {
		return Page{}, err
	}
	rows, err := play_sql.QueryRows(ctx,
		"SELECT * FROM "+summary+where+" ORDER BY v.data_criacao DESC, v.Id DESC LIMIT ? OFFSET ?",
		append(args, f.Limit, (f.Page-1)*f.Limit)...)
	if err != nil {
		return Page{}, err
	}
	page := Page{Surveys: make([]Survey, 0, len(rows)), Page: f.Page, Limit: f.Limit, Total: total}
	for _, r := range rows {
		s := surveyFrom(r)
		if err := s.loadAudience(ctx); err != nil {
			return Page{}, err
		}
		page.Surveys = append(page.Surveys, s)
	}
	return page, nil
}

func (s *Survey) loadAudience(ctx context.Context) error {
	filiais, err := play_sql.QueryRows(ctx, `
		SELECT DISTINCT TRIM(filial_nome) AS nome FROM SurveyFilialFilters
		WHERE survey_id = ? AND TRIM(filial_nome) <> '' ORDER BY nome`, s.ID)
	if err != nil {
		return err
	}
	deps, err := play_sql.QueryRows(ctx, `
		SELECT DISTINCT TRIM(departamento_nome) AS nome FROM SurveyDepartamentoFilters
		WHERE survey_id = ? AND TRIM(departamento_nome) <> '' ORDER BY nome`, s.ID)
	if err != nil {
		return err
	}
	s.FiliaisFiltro = names(filiais)
	s.DepartamentosFiltro = names(deps)
	s.PublicoAlvo = PublicoAlvo(s.FiliaisFiltro, s.DepartamentosFiltro)
	return nil
}

func names(rows []map[string]string) []string {
	out := make([]string, 0, len(rows))
	for _, r := range rows {
		out = append(out, r["nome"])
	}
	return out
}

// PublicoAlvo describes who a survey targets.
func PublicoAlvo(filiais, departamentos []string) string {
	parts := []string{}
	switch len(filiais) {
	case 0:
	case 1:
		parts = append(parts, "Filial: "+filiais[0])
	default:
		parts = append(parts, strconv.Itoa(len(filiais))+" filiais")
	}
	switch len(departamentos) {
	case 0:
	case 1:
		parts = append(parts, "Departamento: "+departamentos[0])
	default:
		parts = append(parts, strconv.Itoa(len(departamentos))+" departamentos")
	}
	if len(parts) == 0 {
		return "Todos os colaboradores"
	}
	return strings.Join(parts, " | ")
}

// Get loads a survey as seen by viewerID, with its questions.
func Get(ctx context.Context, id, viewerID int64) (*Survey, error) {
	row, found, err := play_sql.QueryRow(ctx, "SELECT * FROM "+summary+" WHERE v.Id = ?", append(summaryArgs(viewerID), id)...)
	if err != nil {
		return nil, err
	}
	if !found {
		return nil, ErrNotFound
	}
	s := surveyFrom(row)
	if err := s.loadAudience(ctx); err != nil {
		return nil, err
	}
	if s.Perguntas, err = questions(ctx, s.ID); err != nil {
		return nil, err
	}
	return &s, nil
}

func questions(ctx context.Context, surveyID int64) ([]Question, error) {
	rows, err := play_sql.QueryRows(ctx, `
		SELECT Id, survey_id, pergunta, tipo, obrigatoria, ordem, escala_min, escala_max
		FROM SurveyQuestions WHERE survey_id = ? ORDER BY ordem, Id`, surveyID)
	if err != nil {
		return nil, err
	}
	opts, err := play_sql.QueryRows(ctx, `
		SELECT o.Id, o.question_id, o.opcao, o.ordem
		FROM SurveyQuestionOptions o
		JOIN SurveyQuestions q ON q.Id = o.question_id
		WHERE q.survey_id = ?
		ORDER BY o.question_id, o.ordem, o.Id`, surveyID)
	if err != nil {
		return nil, err
	}
	byQuestion := map[int64][]Option{}
	for _, o := range opts {
		qid := play_sql.ToInt64(o["question_id"])
		byQuestion[qid] = append(byQuestion[qid], Option{
			ID:    play_sql.ToInt64(o["Id"]),
			Opcao: o["opcao"],
			Ordem: play_sql.ToInt(o["ordem"]),
		})
	}
	out := make([]Question, 0, len(rows))
	for _, r := range rows {
		q := Question{
			ID:          play_sql.ToInt64(r["Id"]),
			SurveyID:    play_sql.ToInt64(r["survey_id"]),
			Pergunta:    r["pergunta"],
			Tipo:        r["tipo"],
			Obrigatoria: play_sql.ToBool(r["obrigatoria"]),
			Ordem:       play_sql.ToInt(r["ordem"]),
			EscalaMin:   play_sql.ToInt(r["escala_min"]),
			EscalaMax:   play_sql.ToInt(r["escala_max"]),
			Opcoes:      byQuestion[play_sql.ToInt64(r["Id"])],
		}
		out = append(out, q)
	}
	return out, nil
}

type NewQuestion struct {
	Texto       string   `json:"texto"`
	Tipo        string   `json:"tipo"`
	Obrigatoria bool     `json:"obrigatoria"`
	EscalaMin   int      `json:"escala_min"`
	EscalaMax   int      `json:"escala_max"`
	Opcoes      []string `json:"opcoes"`
}

type FilialFilter struct {
	Codigo string `json:"codigo"`
	Nome   string `json:"nome"`
}

type DepartamentoFilter struct {
	DepartamentoUnico string `json:"departamento_unico"`
	Nome              string `json:"nome"`
}

type CreateInput struct {
	Titulo             string              `json:"titulo"`
	Descricao          string              `json:"descricao"`
	Perguntas          []NewQuestion       `json:"perguntas"`
	FilialFiltro       *FilialFilter       `json:"filial_filtro"`
	DepartamentoFiltro *DepartamentoFilter `json:"departamento_filtro"`
	DataInicio         string              `json:"data_inicio"`
	DataEncerramento   string              `json:"data_encerramento"`
	Anonima            bool                `json:"anonima"`
}

func validType(tipo string) bool {
	switch tipo {
	case TextoLivre, MultiplaEscolha, Escala, SimNao:
		return true
	}
	return false
}

// optionalTime parses an optional date input into a DATETIME value.
func optionalTime(raw string) (any, bool) {
	if strings.TrimSpace(raw) == "" {
		return nil, true
	}
	t, ok := play_sql.ParseTime(raw)
	if !ok {
		return nil, false
	}
	return t.Format(play_sql.DateTimeLayout), true
}

func (in *CreateInput) normalize() (inicio, fim any, err error) {
	in.Titulo = strings.TrimSpace(in.Titulo)
	if in.Titulo == "" || len(in.Perguntas) == 0 {
		return nil, nil, errInvalidQuestions
	}
	if in.FilialFiltro != nil && in.DepartamentoFiltro != nil {
		return nil, nil, Error("Selecione apenas um tipo de filtro: filial OU departamento")
	}
	var ok bool
	if inicio, ok = optionalTime(in.DataInicio); !ok {
		return nil, nil, Error("Data de início inválida")
	}
	if fim, ok = optionalTime(in.DataEncerramento); !ok {
		return nil, nil, Error("Data de encerramento inválida")
	}
	if inicio != nil && fim != nil && fim.(string) < inicio.(string) {
		return nil, nil, Error("A data de encerramento deve ser maior ou igual à data de início")
	}
	for i := range in.Perguntas {
		q := &in.Perguntas[i]
		q.Texto = strings.TrimSpace(q.Texto)
		n := strconv.Itoa(i + 1)
		if q.Texto == "" || !validType(q.Tipo) {
			return nil, nil, Error("Pergunta " + n + " inválida: informe o texto e um tipo válido.")
		}
		switch q.Tipo {
		case MultiplaEscolha:
			opts := []string{}
			for _, o := range q.Opcoes {
				if o = strings.TrimSpace(o); o != "" {
					opts = append(opts, o)
				}
			}
			if len(opts) < 2 {
				return nil, nil, Error("Pergunta " + n + ": informe pelo menos duas opções.")
			}
			q.Opcoes = opts
		case Escala:
			if q.EscalaMin == 0 {
				q.EscalaMin = 1
			}
			if q.EscalaMax == 0 {
				q.EscalaMax = 5
			}
			if q.EscalaMin >= q.EscalaMax {
				return nil, nil, Error("Pergunta " + n + ": a escala mínima deve ser menor que a máxima.")
			}
		}
	}
	return inicio, fim, nil
}

// statusAt is the status a survey with these bounds has now.
func statusAt(inicio, fim any) string {
	now := play_sql.Now()
	if f, ok := fim.(string); ok && f <= now {
		return Encerrada
	}
	if i, ok := inicio.(string); ok && i > now {
		return Agendada
	}
	return Ativa
}

// Create stores the survey, its questions and its audience in one
// transaction. It returns the new id and the eligible user ids.
func Create(ctx context.Context, creatorID int64, in CreateInput) (int64, []int64, error) {
	inicio, fim, err := in.normalize()
	if err != nil {
		return 0, nil, err
	}
	now := play_sql.Now()
	var id int64
	var eligible []int64
	err = play_sql.WithTx(ctx, func(tx *sql.Tx) error {
		var err error
		id, err = play_sql.InsertOn(ctx, tx, `
			INSERT INTO Surveys (titulo, descricao, status, anonima, data_inicio, data_encerramento, criado_por, data_criacao, data_atualizacao)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
			in.Titulo, strings.TrimSpace(in.Descricao), statusAt(inicio, fim), boolInt(in.Anonima), inicio, fim, creatorID, now, now)
		if err != nil {
			return err
		}
		for i, q := range in.Perguntas {
			var min, max any
			if q.Tipo == Escala {
				min, max = q.EscalaMin, q.EscalaMax
			}
			qid, err := play_sql.InsertOn(ctx, tx, `
				INSERT INTO SurveyQuestions (survey_id, pergunta, tipo, obrigatoria, ordem, escala_min, escala_max)
				VALUES (?, ?, ?, ?, ?, ?, ?)`,
				id, q.Texto, q.Tipo, boolInt(q.Obrigatoria), i+1, min, max)
			if err != nil {
				return err
			}
			if q.Tipo != MultiplaEscolha {
				continue
			}
			for j, o := range q.Opcoes {
				if _, err := play_sql.ExecOn(ctx, tx,
					"INSERT INTO SurveyQuestionOptions (question_id, opcao, ordem) VALUES (?, ?, ?)", qid, o, j+1); err != nil {
					return err
				}
			}
		}
		eligible, err = storeAudience(ctx, tx, id, in)
		return err
	})
	if err != nil {
		return 0, nil, err
	}
	return id, eligible, nil
}

func boolInt(v bool) int {
	if v {
		return 1
	}
	return 0
}

// storeAudience records the filter and the users it selects: active users of
// the filial or of the department, every active user without a filter.
func storeAudience(ctx context.Context, tx *sql.Tx, surveyID int64, in CreateInput) ([]int64, error) {
	query := "SELECT Id FROM Users WHERE IsActive = 1"
	args := []any{}
	motivo := "Todos"
	switch {
	case in.FilialFiltro != nil:
		f := in.FilialFiltro
		nome := strings.TrimSpace(f.Nome)
		if nome == "" {
			nome = strings.TrimSpace(f.Codigo)
		}
		if _, err := play_sql.ExecOn(ctx, tx,
			"INSERT INTO SurveyFilialFilters (survey_id, filial_codigo, filial_nome) VALUES (?, ?, ?)",
			surveyID, strings.TrimSpace(f.Codigo), nome); err != nil {
			return nil, err
		}
		query += " AND UPPER(TRIM(Filial)) = UPPER(TRIM(?))"
		args = append(args, f.Codigo)
		motivo = "Filial"
	case in.DepartamentoFiltro != nil:
		d := in.DepartamentoFiltro
		nome := strings.TrimSpace(d.Nome)
		if nome == "" {
			nome = strings.TrimSpace(d.DepartamentoUnico)
		}
		if _, err := play_sql.ExecOn(ctx, tx,
			"INSERT INTO SurveyDepartamentoFilters (survey_id, departamento_codigo, departamento_nome) VALUES (?, ?, ?)",
			surveyID, strings.TrimSpace(d.DepartamentoUnico), nome); err != nil {
			return nil, err
		}
		match := []string{}
		if code := strings.TrimSpace(d.DepartamentoUnico); code != "" {
			match = append(match, "TRIM(Departamento) = ?")
			args = append(args, code)
		}
		if desc := strings.TrimSpace(d.Nome); desc != "" {
			match = append(match, "UPPER(TRIM(DescricaoDepartamento)) = UPPER(?)")
			args = append(args, desc)
		}
		if len(match) == 0 {
			return nil, Error("Informe o departamento do filtro")
		}
		query += " AND (" + strings.Join(match, " OR ") + ")"
		motivo = "Departamento"
	}
	rows, err := play_sql.Rows(ctx, tx, query+" ORDER BY Id", args...)
	if err != nil {
		return nil, err
	}
	now := play_sql.Now()
	ids := make([]int64, 0, len(rows))
	for _, r := range rows {
		uid := play_sql.ToInt64(r["Id"])
		if _, err := play_sql.ExecOn(ctx, tx,
			"INSERT INTO SurveyEligibleUsers (survey_id, user_id, data_calculo, motivo_inclusao) VALUES (?, ?, ?, ?)",
			surveyID, uid, now, motivo); err != nil {
			return nil, err
		}
		ids = append(ids, uid)
	}
	return ids, nil
}

type Answer struct {
	QuestionID       int64  `json:"question_id"`
	RespostaTexto    string `json:"resposta_texto"`
	RespostaNumerica *int   `json:"resposta_numerica"`
	OptionID         *int64 `json:"option_id"`
}

type answerRow struct {
	questionID int64
	texto      any
	numerica   any
	optionID   any
}

// check validates the answers against the questions and returns the rows to store.
func check(qs []Question, answers []Answer) ([]answerRow, error) {
	byID := map[int64]Question{}
	for _, q := range qs {
		byID[q.ID] = q
	}
	given := map[int64]answerRow{}
	for _, a := range answers {
		q, ok := byID[a.QuestionID]
		if !ok {
			return nil, errUnknownQuestion
		}
		n := strconv.Itoa(q.Ordem)
		row := answerRow{questionID: q.ID}
		switch q.Tipo {
		case TextoLivre:
			if t := strings.TrimSpace(a.RespostaTexto); t != "" {
				row.texto = t
			}
		case MultiplaEscolha:
			if a.OptionID != nil {
				o, ok := q.option(*a.OptionID)
				if !ok {
					return nil, Error("Pergunta " + n + ": opção inválida.")
				}
				row.optionID = o.ID
				row.texto = o.Opcao
			}
		case Escala:
			if a.RespostaNumerica != nil {
				v := *a.RespostaNumerica
				if v < q.EscalaMin || v > q.EscalaMax {
					return nil, Error("Pergunta " + n + ": valor fora da escala.")
				}
				row.numerica = v
			}
		case SimNao:
			switch strings.ToLower(strings.TrimSpace(a.RespostaTexto)) {
			case "":
			case "sim":
				row.texto = "sim"
			case "nao", "não":
				row.texto = "nao"
			default:
				return nil, Error("Pergunta " + n + ": responda sim ou não.")
			}
		}
		if row.texto != nil || row.numerica != nil || row.optionID != nil {
			given[q.ID] = row
		}
	}
	out := []answerRow{}
	for _, q := range qs {
		row, ok := given[q.ID]
		if !ok {
			if q.Obrigatoria {
				return nil, Error("A pergunta " + strconv.Itoa(q.Ordem) + " é obrigatória.")
			}
			continue
		}
		out = append(out, row)
	}
	if len(out) == 0 {
		return nil, errAnswersRequired
	}
	return out, nil
}

// Respond stores userID's answers. A survey is answered once, while active,
// by someone in its audience.
func Respond(ctx context.Context, s *Survey, userID int64, answers []Answer) error {
	if len(answers) == 0 {
		return errAnswersRequired
	}
	if s.JaRespondeu {
		return ErrAlreadyAnswered
	}
	if !s.EstaNoPublicoAlvo {
		return ErrNotEligible
	}
	if s.StatusCalculado != Ativa {
		return ErrClosed
	}
	rows, err := check(s.Perguntas, answers)
	if err != nil {
		return err
	}
	now := play_sql.Now()
	return play_sql.WithTx(ctx, func(tx *sql.Tx) error {
		_, found, err := play_sql.RowOn(ctx, tx,
			"SELECT Id FROM SurveyResponses WHERE survey_id = ? AND user_id = ? LIMIT 1", s.ID, userID)
		if err != nil {
			return err
		}
		if found {
			return ErrAlreadyAnswered
		}
		for _, r := range rows {
			if _, err := play_sql.ExecOn(ctx, tx, `
				INSERT INTO SurveyResponses (survey_id, question_id, user_id, resposta_texto, resposta_numerica, option_id, data_resposta)
				VALUES (?, ?, ?, ?, ?, ?, ?)`,
				s.ID, r.questionID, userID, r.texto, r.numerica, r.optionID, now); err != nil {
				return err
			}
		}
		return nil
	})
}

// Reopen gives a closed survey a new end date.
func Reopen(ctx context.Context, s *Survey, novaData string) (string, error) {
	if s.StatusCalculado != Encerrada {
		return "", ErrNotClosed
	}
	t, ok := play_sql.ParseTime(novaData)
	if !ok {
		return "", Error("Nova data de encerramento é obrigatória")
	}
	fim := t.Format(play_sql.DateTimeLayout)
	if fim <= play_sql.Now() {
		return "", Error("A nova data de encerramento deve ser futura")
	}
	var inicio any
	if s.DataInicio != "" {
		inicio = s.DataInicio
	}
	_, err := play_sql.Exec(ctx,
		"UPDATE Surveys SET data_encerramento = ?, status = ?, data_atualizacao = ? WHERE Id = ?",
		fim, statusAt(inicio, fim), play_sql.Now(), s.ID)
	return fim, err
}

// Close ends the survey now.
func Close(ctx context.Context, s *Survey) error {
	if s.StatusCalculado == Encerrada {
		return ErrAlreadyClosed
	}
	now := play_sql.Now()
	_, err := play_sql.Exec(ctx,
		"UPDATE Surveys SET status = ?, data_encerramento = ?, data_atualizacao = ? WHERE Id = ?",
		Encerrada, now, now, s.ID)
	return err
}

type Stats struct {
	ActiveSurveys  int `json:"activeSurveys"`
	UserResponses  int `json:"userResponses"`
	PendingSurveys int `json:"pendingSurveys"`
}

func StatsFor(ctx context.Context, userID int64) (Stats, error) {
	args := summaryArgs(userID)
	row, _, err := play_sql.QueryRow(ctx, `
		SELECT
			SUM(CASE WHEN v.status_calculado = 'Ativa' THEN 1 ELSE 0 END) AS active,
			SUM(CASE WHEN v.status_calculado = 'Ativa' AND v.elegivel > 0 AND v.respondidas = 0 THEN 1 ELSE 0 END) AS pending
		FROM `+summary, args...)
	if err != nil {
		return Stats{}, err
	}
	answered, err := play_sql.Count(ctx,
		"SELECT COUNT(DISTINCT survey_id) AS total FROM SurveyResponses WHERE user_id = ?", userID)
	if err != nil {
		return Stats{}, err
	}
	return Stats{
		ActiveSurveys:  play_sql.ToInt(row["active"]),
		UserResponses:  answered,
		PendingSurveys: play_sql.ToInt(row["pending"]),
	}, nil
}

// UpdateStatus moves the stored status along with the dates. Runs as
// pesquisa_status.
func UpdateStatus(ctx context.Context) error {
	now := play_sql.Now()
	started, err := play_sql.Exec(ctx, `
		UPDATE Surveys SET status = 'Ativa', data_atualizacao = ?
		WHERE status = 'Agendada' AND data_inicio IS NOT NULL AND data_inicio <= ?
			AND (data_encerramento IS NULL OR data_encerramento > ?)`, now, now, now)
	if err != nil {
		return err
	}
	closed, err := play_sql.Exec(ctx, `
		UPDATE Surveys SET status = 'Encerrada', data_atualizacao = ?
		WHERE status IN ('Ativa', 'Agendada') AND data_encerramento IS NOT NULL AND data_encerramento <= ?`, now, now)
	if err != nil {
		return err
	}
	if started > 0 || closed > 0 {
		logger.L().Info("pesquisas status", zap.Int64("ativadas", started), zap.Int64("encerradas", closed))
	}
	return nil
}
