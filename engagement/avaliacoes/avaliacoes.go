package avaliacoes

import (
	"context"
	"database/sql"
	"errors"
	"strconv"
	"strings"
	"time"

	"lumigente_backend/main/play_sql"
)

// Evaluation types, as seeded in TiposAvaliacao.
const (
	Tipo45 = 1
	Tipo90 = 2
)

const (
	Agendada  = "Agendada"
	Pendente  = "Pendente"
	Concluida = "Concluída"
	Expirada  = "Expirada"
)

// Who answers.
const (
	Colaborador = "Colaborador"
	Gestor      = "Gestor"
)

// Question types.
const (
	Texto           = "texto"
	MultiplaEscolha = "multipla_escolha"
	Escala          = "escala"
	SimNao          = "sim_nao"
)

// graceDays is added to the 45 or 90 days to give the deadline.
const graceDays = 15

var (
	ErrNotFound    = errors.New("avaliação não encontrada")
	ErrNotExpired  = errors.New("avaliação não está expirada")
	ErrWrongParty  = errors.New("usuário não é a parte indicada da avaliação")
	ErrUnknownType = errors.New("tipo de avaliação inválido")
)

// Error is a validation failure shown to the user as is.
type Error string

func (e Error) Error() string { return string(e) }

// TipoFromParam maps the "45" and "90" URL segments to type ids.
func TipoFromParam(p string) (int, bool) {
	switch strings.TrimSpace(p) {
	case "45", "1":
		return Tipo45, true
	case "90", "2":
		return Tipo90, true
	}
	return 0, false
}

// Dias is the length of the experience period a type evaluates.
func Dias(tipo int) int {
	if tipo == Tipo45 {
		return 45
	}
	return 90
}

// Label names the type in messages: "45 dias".
func Label(tipo int) string {
	return strconv.Itoa(Dias(tipo)) + " dias"
}

// Deadline is the last day to answer an evaluation of tipo.
func Deadline(admissao time.Time, tipo int) time.Time {
	return admissao.AddDate(0, 0, Dias(tipo)+graceDays)
}

type Avaliacao struct {
	ID                           int64  `json:"Id"`
	UserID                       int64  `json:"UserId"`
	GestorID                     int64  `json:"GestorId"`
	TipoAvaliacaoID              int    `json:"TipoAvaliacaoId"`
	TipoAvaliacao                string `json:"TipoAvaliacao"`
	Matricula                    string `json:"Matricula"`
	DataAdmissao                 string `json:"DataAdmissao"`
	DataLimiteResposta           string `json:"DataLimiteResposta"`
	StatusAvaliacao              string `json:"StatusAvaliacao"`
	RespostaColaboradorConcluida bool   `json:"RespostaColaboradorConcluida"`
	RespostaGestorConcluida      bool   `json:"RespostaGestorConcluida"`
	DataRespostaColaborador      string `json:"DataRespostaColaborador"`
	DataRespostaGestor           string `json:"DataRespostaGestor"`
	Observacoes                  string `json:"Observacoes"`
	NomeCompleto                 string `json:"NomeCompleto"`
	Departamento                 string `json:"Departamento"`
	NomeGestor                   string `json:"NomeGestor"`
	CriadoEm                     string `json:"DataCriacao"`
}

// Participant reports whether userID is the evaluated employee or their manager.
func (a *Avaliacao) Participant(userID int64) bool {
	return a.UserID == userID || (a.GestorID != 0 && a.GestorID == userID)
}

// Party is the role userID answers as, empty when not a participant.
func (a *Avaliacao) Party(userID int64) string {
	switch {
	case a.UserID == userID:
		return Colaborador
	case a.GestorID != 0 && a.GestorID == userID:
		return Gestor
	}
	return ""
}

const selectAvaliacao = `
	SELECT a.Id, a.UserId, a.GestorId, a.TipoAvaliacaoId, t.Nome AS TipoAvaliacao, a.Matricula,
		a.DataAdmissao, a.DataLimiteResposta, a.StatusAvaliacao,
		a.RespostaColaboradorConcluida, a.RespostaGestorConcluida,
		a.DataRespostaColaborador, a.DataRespostaGestor, a.Observacoes, a.CriadoEm,
		u.NomeCompleto, COALESCE(NULLIF(u.DescricaoDepartamento, ''), u.Departamento) AS Departamento,
		g.NomeCompleto AS NomeGestor
	FROM Avaliacoes a
	LEFT JOIN TiposAvaliacao t ON t.Id = a.TipoAvaliacaoId
	JOIN Users u ON u.Id = a.UserId
	LEFT JOIN Users g ON g.Id = a.GestorId`

func avaliacaoFrom(r map[string]string) Avaliacao {
	return Avaliacao{
		ID:                           play_sql.ToInt64(r["Id"]),
		UserID:                       play_sql.ToInt64(r["UserId"]),
		GestorID:                     play_sql.ToInt64(r["GestorId"]),
		TipoAvaliacaoID:              play_sql.ToInt(r["TipoAvaliacaoId"]),
		TipoAvaliacao:                r["TipoAvaliacao"],
		Matricula:                    r["Matricula"],
		DataAdmissao:                 r["DataAdmissao"],
		DataLimiteResposta:           r["DataLimiteResposta"],
		StatusAvaliacao:              r["StatusAvaliacao"],
		RespostaColaboradorConcluida: play_sql.ToBool(r["RespostaColaboradorConcluida"]),
		RespostaGestorConcluida:      play_sql.ToBool(r["RespostaGestorConcluida"]),
		DataRespostaColaborador:      r["DataRespostaColaborador"],
		DataRespostaGestor:           r["DataRespostaGestor"],
		Observacoes:                  r["Observacoes"],
		NomeCompleto:                 r["NomeCompleto"],
		Departamento:                 r["Departamento"],
		NomeGestor:                   r["NomeGestor"],
		CriadoEm:                     r["CriadoEm"],
	}
}

func list(ctx context.Context, query string, args ...any) ([]Avaliacao, error) {
	rows, err := play_sql.QueryRows(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	out := make([]Avaliacao, 0, len(rows))
	for _, r := range rows {
		out = append(out, avaliacaoFrom(r))
	}
	return out, nil
}

// Minhas lists the evaluations userID takes part in, as employee or manager.
func Minhas(ctx context.Context, userID int64) ([]Avaliacao, error) {
	return list(ctx, selectAvaliacao+`
		WHERE a.UserId = ? OR a.GestorId = ?
		ORDER BY a.StatusAvaliacao, a.DataLimiteResposta, a.Id`, userID, userID)
}

// Todas lists every evaluation, newest first.
func Todas(ctx context.Context) ([]Avaliacao, error) {
	return list(ctx, selectAvaliacao+" ORDER BY a.CriadoEm DESC, a.Id DESC")
}

func Get(ctx context.Context, id int64) (*Avaliacao, error) {
	row, found, err := play_sql.QueryRow(ctx, selectAvaliacao+" WHERE a.Id = ?", id)
	if err != nil {
		return nil, err
	}
	if !found {
		return nil, ErrNotFound
	}
	a := avaliacaoFrom(row)
	return &a, nil
}

type Opcao struct {
	ID         int64  `json:"Id"`
	TextoOpcao string `json:"TextoOpcao"`
	Ordem      int    `json:"Ordem"`
}

// Pergunta is a question frozen into an evaluation when it was created.
type Pergunta struct {
	ID                int64   `json:"Id"`
	AvaliacaoID       int64   `json:"AvaliacaoId"`
	Ordem             int     `json:"Ordem"`
	Pergunta          string  `json:"Pergunta"`
	TipoPergunta      string  `json:"TipoPergunta"`
	Obrigatoria       bool    `json:"Obrigatoria"`
	EscalaMinima      int     `json:"EscalaMinima"`
	EscalaMaxima      int     `json:"EscalaMaxima"`
	EscalaLabelMinima string  `json:"EscalaLabelMinima"`
	EscalaLabelMaxima string  `json:"EscalaLabelMaxima"`
	Opcoes            []Opcao `json:"Opcoes"`
}

func (p Pergunta) opcao(raw string) (Opcao, bool) {
	raw = strings.TrimSpace(raw)
	for _, o := range p.Opcoes {
		if strconv.FormatInt(o.ID, 10) == raw || strings.EqualFold(o.TextoOpcao, raw) {
			return o, true
		}
	}
	return Opcao{}, false
}

// Perguntas returns the questions of evaluation id in order.
func Perguntas(ctx context.Context, id int64) ([]Pergunta, error) {
	rows, err := play_sql.QueryRows(ctx, `
		SELECT Id, AvaliacaoId, Ordem, Pergunta, TipoPergunta, Obrigatoria,
			EscalaMinima, EscalaMaxima, EscalaLabelMinima, EscalaLabelMaxima
		FROM PerguntasAvaliacao WHERE AvaliacaoId = ? ORDER BY Ordem, Id`, id)
	if err != nil {
		return nil, err
	}
	opts, err := play_sql.QueryRows(ctx, `
		SELECT o.Id, o.PerguntaAvaliacaoId, o.TextoOpcao, o.Ordem
		FROM OpcoesPerguntasAvaliacao o
		JOIN PerguntasAvaliacao p ON p.Id = o.PerguntaAvaliacaoId
		WHERE p.AvaliacaoId = ?
		ORDER BY o.PerguntaAvaliacaoId, o.Ordem, o.Id`, id)
	if err != nil {
		return nil, err
	}
	byQuestion := map[int64][]Opcao{}
	for _, o := range opts {
		qid := play_sql.ToInt64(o["PerguntaAvaliacaoId"])
		byQuestion[qid] = append(byQuestion[qid], Opcao{
			ID:         play_sql.ToInt64(o["Id"]),
			TextoOpcao: o["TextoOpcao"],
			Ordem:      play_sql.ToInt(o["Ordem"]),
		})
	}
	out := make([]Pergunta, 0, len(rows))
	for _, r := range rows {
		id := play_sql.ToInt64(r["Id"])
		out = append(out, Pergunta{
			ID:                id,
			AvaliacaoID:       play_sql.ToInt64(r["AvaliacaoId"]),
			Ordem:             play_sql.ToInt(r["Ordem"]),
			Pergunta:          r["Pergunta"],
			TipoPergunta:      r["TipoPergunta"],
			Obrigatoria:       play_sql.ToBool(r["Obrigatoria"]),
			EscalaMinima:      play_sql.ToInt(r["EscalaMinima"]),
			EscalaMaxima:      play_sql.ToInt(r["EscalaMaxima"]),
			EscalaLabelMinima: r["EscalaLabelMinima"],
			EscalaLabelMaxima: r["EscalaLabelMaxima"],
			Opcoes:            byQuestion[id],
		})
	}
	return out, nil
}

type Resposta struct {
	ID                 int64  `json:"Id"`
	AvaliacaoID        int64  `json:"AvaliacaoId"`
	PerguntaID         int64  `json:"PerguntaId"`
	Pergunta           string `json:"Pergunta"`
	TipoPergunta       string `json:"TipoPergunta"`
	Resposta           string `json:"Resposta"`
	OpcaoSelecionadaID int64  `json:"OpcaoSelecionadaId"`
	RespondidoPor      int64  `json:"RespondidoPor"`
	TipoRespondente    string `json:"TipoRespondente"`
	DataResposta       string `json:"DataResposta"`
}

// Respostas returns the answers of evaluation id given by userID when mine is
// true, or by anyone else otherwise.
func Respostas(ctx context.Context, id, userID int64, mine bool) ([]Resposta, error) {
	op := "="
	if !mine {
		op = "<>"
	}
	rows, err := play_sql.QueryRows(ctx, `
		SELECT Id, AvaliacaoId, PerguntaId, Pergunta, TipoPergunta, Resposta, OpcaoSelecionadaId,
			RespondidoPor, TipoRespondente, DataResposta
		FROM RespostasAvaliacoes
		WHERE AvaliacaoId = ? AND RespondidoPor `+op+` ?
		ORDER BY PerguntaId, Id`, id, userID)
	if err != nil {
		return nil, err
	}
	out := make([]Resposta, 0, len(rows))
	for _, r := range rows {
		out = append(out, Resposta{
			ID:                 play_sql.ToInt64(r["Id"]),
			AvaliacaoID:        play_sql.ToInt64(r["AvaliacaoId"]),
			PerguntaID:         play_sql.ToInt64(r["PerguntaId"]),
			Pergunta:           r["Pergunta"],
			TipoPergunta:       r["TipoPergunta"],
			Resposta:           r["Resposta"],
			OpcaoSelecionadaID: play_sql.ToInt64(r["OpcaoSelecionadaId"]),
			RespondidoPor:      play_sql.ToInt64(r["RespondidoPor"]),
			TipoRespondente:    r["TipoRespondente"],
			DataResposta:       r["DataResposta"],
		})
	}
	return out, nil
}

type AnswerInput struct {
	PerguntaID int64  `json:"perguntaId"`
	Resposta   string `json:"resposta"`
}

type answerRow struct {
	p       Pergunta
	texto   string
	opcaoID any
}

func check(perguntas []Pergunta, answers []AnswerInput) ([]answerRow, error) {
	byID := map[int64]Pergunta{}
	for _, p := range perguntas {
		byID[p.ID] = p
	}
	given := map[int64]answerRow{}
	for _, a := range answers {
		p, ok := byID[a.PerguntaID]
		if !ok {
			return nil, Error("Resposta para pergunta que não pertence a esta avaliação.")
		}
		texto := strings.TrimSpace(a.Resposta)
		if texto == "" {
			continue
		}
		n := strconv.Itoa(p.Ordem)
		row := answerRow{p: p, texto: texto}
		switch p.TipoPergunta {
		case MultiplaEscolha:
			if len(p.Opcoes) > 0 {
				o, ok := p.opcao(texto)
				if !ok {
					return nil, Error("Pergunta " + n + ": opção inválida.")
				}
				row.texto, row.opcaoID = o.TextoOpcao, o.ID
			}
		case Escala:
			v, err := strconv.Atoi(texto)
			min, max := scaleBounds(p)
			if err != nil || v < min || v > max {
				return nil, Error("Pergunta " + n + ": valor fora da escala.")
			}
		case SimNao:
			switch strings.ToLower(texto) {
			case "sim":
				row.texto = "Sim"
			case "não", "nao":
				row.texto = "Não"
			default:
				return nil, Error("Pergunta " + n + ": responda Sim ou Não.")
			}
		}
		given[p.ID] = row
	}
	out := make([]answerRow, 0, len(given))
	for _, p := range perguntas {
		row, ok := given[p.ID]
		if !ok {
			if p.Obrigatoria {
				return nil, Error("A pergunta " + strconv.Itoa(p.Ordem) + " é obrigatória.")
			}
			continue
		}
		out = append(out, row)
	}
	return out, nil
}

func scaleBounds(p Pergunta) (int, int) {
	min, max := p.EscalaMinima, p.EscalaMaxima
	if min == 0 && max == 0 {
		min, max = 1, 5
	}
	return min, max
}

// Respond stores the answers userID gives as party. Each party answers once,
// while the evaluation is Pendente and before its deadline. The evaluation
// is Concluída once both parties answered.
func Respond(ctx context.Context, a *Avaliacao, userID int64, party string, answers []AnswerInput) (completed bool, err error) {
	if party != Colaborador && party != Gestor {
		return false, Error("Tipo de respondente inválido")
	}
	if a.StatusAvaliacao != Pendente {
		return false, Error(`Esta avaliação está com status "` + a.StatusAvaliacao + `" e não pode ser respondida.`)
	}
	if a.DataLimiteResposta != "" && play_sql.Today() > day(a.DataLimiteResposta) {
		return false, Error("O prazo para responder esta avaliação expirou.")
	}
	if a.Party(userID) != party {
		return false, ErrWrongParty
	}
	if party == Colaborador && a.RespostaColaboradorConcluida {
		return false, Error("Você já concluiu esta avaliação.")
	}
	if party == Gestor && a.RespostaGestorConcluida {
		return false, Error("Você já concluiu esta avaliação como gestor.")
	}
	if len(answers) == 0 {
		return false, Error("Dados de resposta inválidos")
	}
	perguntas, err := Perguntas(ctx, a.ID)
	if err != nil {
		return false, err
	}
	rows, err := check(perguntas, answers)
	if err != nil {
		return false, err
	}

	flag, when := "RespostaColaboradorConcluida", "DataRespostaColaborador"
	if party == Gestor {
		flag, when = "RespostaGestorConcluida", "DataRespostaGestor"
	}
	now := play_sql.Now()
	err = play_sql.WithTx(ctx, func(tx *sql.Tx) error {
		for _, r := range rows {
			if _, err := play_sql.ExecOn(ctx, tx, `
				INSERT INTO RespostasAvaliacoes
					(AvaliacaoId, PerguntaId, Pergunta, TipoPergunta, Resposta, OpcaoSelecionadaId, RespondidoPor, TipoRespondente, DataResposta)
				VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
				a.ID, r.p.ID, r.p.Pergunta, r.p.TipoPergunta, r.texto, r.opcaoID, userID, party, now); err != nil {
				return err
			}
		}
		n, err := play_sql.ExecOn(ctx, tx,
			"UPDATE Avaliacoes SET "+flag+" = 1, "+when+" = ?, AtualizadoEm = ? WHERE Id = ? AND "+flag+" = 0",
			now, now, a.ID)
		if err != nil {
			return err
		}
		if n == 0 {
			return Error("Você já concluiu esta avaliação.")
		}
		row, _, err := play_sql.RowOn(ctx, tx,
			"SELECT RespostaColaboradorConcluida, RespostaGestorConcluida FROM Avaliacoes WHERE Id = ?", a.ID)
		if err != nil {
			return err
		}
		if play_sql.ToBool(row["RespostaColaboradorConcluida"]) && play_sql.ToBool(row["RespostaGestorConcluida"]) {
			completed = true
			_, err = play_sql.ExecOn(ctx, tx, "UPDATE Avaliacoes SET StatusAvaliacao = ? WHERE Id = ?", Concluida, a.ID)
		}
		return err
	})
	return completed, err
}

// day trims a DATE or DATETIME value to YYYY-MM-DD.
func day(v string) string {
	if len(v) > len(play_sql.DateLayout) {
		return v[:len(play_sql.DateLayout)]
	}
	return v
}

// Reopen gives an expired evaluation a new deadline, today or later.
func Reopen(ctx context.Context, a *Avaliacao, novaData string) (string, error) {
	if a.StatusAvaliacao != Expirada {
		return "", ErrNotExpired
	}
	t, ok := play_sql.ParseTime(novaData)
	if !ok {
		return "", Error("Nova data limite é obrigatória")
	}
	limite := t.Format(play_sql.DateLayout)
	if limite < play_sql.Today() {
		return "", Error("A nova data limite não pode estar no passado")
	}
	_, err := play_sql.Exec(ctx,
		"UPDATE Avaliacoes SET DataLimiteResposta = ?, StatusAvaliacao = ?, AtualizadoEm = ? WHERE Id = ? AND StatusAvaliacao = ?",
		limite, Pendente, play_sql.Now(), a.ID, Expirada)
	return limite, err
}
