package avaliacoes

import (
	"context"
	"database/sql"
	"errors"
	"strings"

	"lumigente_backend/main/database"
	"lumigente_backend/main/play_sql"
)

var ErrQuestionNotFound = errors.New("pergunta não encontrada")

// TemplateQuestion is a question of the standard questionnaire of a type.
// New evaluations copy the active ones.
type TemplateQuestion struct {
	ID                int64   `json:"Id"`
	TipoAvaliacaoID   int     `json:"TipoAvaliacaoId"`
	Ordem             int     `json:"Ordem"`
	TipoPergunta      string  `json:"TipoPergunta"`
	Pergunta          string  `json:"Pergunta"`
	Obrigatoria       bool    `json:"Obrigatoria"`
	EscalaMinima      int     `json:"EscalaMinima"`
	EscalaMaxima      int     `json:"EscalaMaxima"`
	EscalaLabelMinima string  `json:"EscalaLabelMinima"`
	EscalaLabelMaxima string  `json:"EscalaLabelMaxima"`
	NumOpcoes         int     `json:"NumOpcoes"`
	Opcoes            []Opcao `json:"Opcoes,omitempty"`
}

// QuestionInput is a question sent by the questionnaire editor.
type QuestionInput struct {
	Pergunta          string   `json:"pergunta"`
	TipoPergunta      string   `json:"tipoPergunta"`
	Obrigatoria       *bool    `json:"obrigatoria"`
	EscalaMinima      int      `json:"escalaMinima"`
	EscalaMaxima      int      `json:"escalaMaxima"`
	EscalaLabelMinima string   `json:"escalaLabelMinima"`
	EscalaLabelMaxima string   `json:"escalaLabelMaxima"`
	Opcoes            []string `json:"opcoes"`
}

func validQuestionType(t string) bool {
	switch t {
	case Texto, MultiplaEscolha, Escala, SimNao:
		return true
	}
	return false
}

func (in *QuestionInput) normalize() error {
	in.Pergunta = strings.TrimSpace(in.Pergunta)
	in.TipoPergunta = strings.TrimSpace(in.TipoPergunta)
	if in.Pergunta == "" || in.TipoPergunta == "" {
		return Error("Pergunta e tipo são obrigatórios")
	}
	if !validQuestionType(in.TipoPergunta) {
		return Error("Tipo de pergunta inválido")
	}
	opts := in.Opcoes[:0]
	for _, o := range in.Opcoes {
		if o = strings.TrimSpace(o); o != "" {
			opts = append(opts, o)
		}
	}
	in.Opcoes = opts
	switch in.TipoPergunta {
	case MultiplaEscolha:
		if len(in.Opcoes) < 2 {
			return Error("Perguntas de múltipla escolha precisam de pelo menos duas opções")
		}
	case Escala:
		if in.EscalaMinima == 0 && in.EscalaMaxima == 0 {
			in.EscalaMinima, in.EscalaMaxima = 1, 5
		}
		if in.EscalaMaxima <= in.EscalaMinima {
			return Error("Escala máxima deve ser maior que a mínima")
		}
	default:
		in.Opcoes = nil
	}
	return nil
}

func (in *QuestionInput) required() bool {
	return in.Obrigatoria == nil || *in.Obrigatoria
}

func (in *QuestionInput) scale() (any, any) {
	if in.TipoPergunta != Escala {
		return nil, nil
	}
	return in.EscalaMinima, in.EscalaMaxima
}

func templateFrom(r map[string]string) TemplateQuestion {
	return TemplateQuestion{
		ID:                play_sql.ToInt64(r["Id"]),
		TipoAvaliacaoID:   play_sql.ToInt(r["TipoAvaliacaoId"]),
		Ordem:             play_sql.ToInt(r["Ordem"]),
		TipoPergunta:      r["TipoPergunta"],
		Pergunta:          r["Pergunta"],
		Obrigatoria:       play_sql.ToBool(r["Obrigatoria"]),
		EscalaMinima:      play_sql.ToInt(r["EscalaMinima"]),
		EscalaMaxima:      play_sql.ToInt(r["EscalaMaxima"]),
		EscalaLabelMinima: r["EscalaLabelMinima"],
		EscalaLabelMaxima: r["EscalaLabelMaxima"],
		NumOpcoes:         play_sql.ToInt(r["NumOpcoes"]),
	}
}

// Template lists the active questions of the questionnaire of tipo.
func Template(ctx context.Context, tipo int) ([]TemplateQuestion, error) {
	conn, err := database.Open()
	if err != nil {
		return nil, err
	}
	return templateOn(ctx, conn, tipo)
}

func templateOn(ctx context.Context, q play_sql.Querier, tipo int) ([]TemplateQuestion, error) {
	rows, err := play_sql.Rows(ctx, q, `
		SELECT p.Id, p.TipoAvaliacaoId, p.Ordem, p.TipoPergunta, p.Pergunta, p.Obrigatoria,
			p.EscalaMinima, p.EscalaMaxima, p.EscalaLabelMinima, p.EscalaLabelMaxima,
			(SELECT COUNT(*) FROM OpcoesQuestionarioPadrao o WHERE o.PerguntaId = p.Id) AS NumOpcoes
		FROM QuestionarioPadrao p
		WHERE p.TipoAvaliacaoId = ? AND p.Ativo = 1
		ORDER BY p.Ordem, p.Id`, tipo)
	if err != nil {
		return nil, err
	}
	out := make([]TemplateQuestion, 0, len(rows))
	for _, r := range rows {
		out = append(out, templateFrom(r))
	}
	return out, nil
}

// TemplateOptions lists the options of template question id.
func TemplateOptions(ctx context.Context, id int64) ([]Opcao, error) {
	conn, err := database.Open()
	if err != nil {
		return nil, err
	}
	return templateOptionsOn(ctx, conn, id)
}

func templateOptionsOn(ctx context.Context, q play_sql.Querier, id int64) ([]Opcao, error) {
	rows, err := play_sql.Rows(ctx, q,
		"SELECT Id, TextoOpcao, Ordem FROM OpcoesQuestionarioPadrao WHERE PerguntaId = ? ORDER BY Ordem, Id", id)
	if err != nil {
		return nil, err
	}
	out := make([]Opcao, 0, len(rows))
	for _, r := range rows {
		out = append(out, Opcao{
			ID:         play_sql.ToInt64(r["Id"]),
			TextoOpcao: r["TextoOpcao"],
			Ordem:      play_sql.ToInt(r["Ordem"]),
		})
	}
	return out, nil
}

func insertTemplateQuestion(ctx context.Context, tx *sql.Tx, tipo, ordem int, in QuestionInput) (int64, error) {
	now := play_sql.Now()
	min, max := in.scale()
	id, err := play_sql.InsertOn(ctx, tx, `
		INSERT INTO QuestionarioPadrao
			(TipoAvaliacaoId, Ordem, TipoPergunta, Pergunta, Obrigatoria, Ativo,
			 EscalaMinima, EscalaMaxima, EscalaLabelMinima, EscalaLabelMaxima, CriadoEm, AtualizadoEm)
		VALUES (?, ?, ?, ?, ?, 1, ?, ?, ?, ?, ?, ?)`,
		tipo, ordem, in.TipoPergunta, in.Pergunta, in.required(),
		min, max, in.EscalaLabelMinima, in.EscalaLabelMaxima, now, now)
	if err != nil {
		return 0, err
	}
	return id, insertTemplateOptions(ctx, tx, id, in.Opcoes)
}

func insertTemplateOptions(ctx context.Context, tx *sql.Tx, id int64, opts []string) error {
	for i, o := range opts {
		if _, err := play_sql.ExecOn(ctx, tx,
			"INSERT INTO OpcoesQuestionarioPadrao (PerguntaId, TextoOpcao, Ordem) VALUES (?, ?, ?)", id, o, i+1); err != nil {
			return err
		}
	}
	return nil
}

// ReplaceTemplate swaps the whole questionnaire of tipo. Previous questions
// are deactivated, evaluations already created keep their copy.
func ReplaceTemplate(ctx context.Context, tipo int, questions []QuestionInput) error {
	if len(questions) == 0 {
		return Error("Informe pelo menos uma pergunta")
	}
	for i := range questions {
		if err := questions[i].normalize(); err != nil {
			return err
		}
	}
	return play_sql.WithTx(ctx, func(tx *sql.Tx) error {
		if _, err := play_sql.ExecOn(ctx, tx,
			"UPDATE QuestionarioPadrao SET Ativo = 0, AtualizadoEm = ? WHERE TipoAvaliacaoId = ? AND Ativo = 1",
			play_sql.Now(), tipo); err != nil {
			return err
		}
		for i, q := range questions {
			if _, err := insertTemplateQuestion(ctx, tx, tipo, i+1, q); err != nil {
				return err
			}
		}
		return nil
	})
}

// AddTemplateQuestion appends a question to the questionnaire of tipo.
func AddTemplateQuestion(ctx context.Context, tipo int, in QuestionInput) (int64, error) {
	if err := in.normalize(); err != nil {
		return 0, err
	}
	var id int64
	err := play_sql.WithTx(ctx, func(tx *sql.Tx) error {
		row, _, err := play_sql.RowOn(ctx, tx,
			"SELECT COALESCE(MAX(Ordem), 0) AS ordem FROM QuestionarioPadrao WHERE TipoAvaliacaoId = ? AND Ativo = 1", tipo)
		if err != nil {
			return err
		}
		id, err = insertTemplateQuestion(ctx, tx, tipo, play_sql.ToInt(row["ordem"])+1, in)
		return err
	})
	return id, err
}

func templateQuestionOn(ctx context.Context, q play_sql.Querier, tipo int, id int64) (TemplateQuestion, error) {
	row, found, err := play_sql.RowOn(ctx, q, `
		SELECT Id, TipoAvaliacaoId, Ordem, TipoPergunta, Pergunta, Obrigatoria,
			EscalaMinima, EscalaMaxima, EscalaLabelMinima, EscalaLabelMaxima, 0 AS NumOpcoes
		FROM QuestionarioPadrao WHERE Id = ? AND TipoAvaliacaoId = ? AND Ativo = 1`, id, tipo)
	if err != nil {
		return TemplateQuestion{}, err
	}
	if !found {
		return TemplateQuestion{}, ErrQuestionNotFound
	}
	return templateFrom(row), nil
}

// UpdateTemplateQuestion rewrites question id and replaces its options.
func UpdateTemplateQuestion(ctx context.Context, tipo int, id int64, in QuestionInput) error {
	if err := in.normalize(); err != nil {
		return err
	}
	return play_sql.WithTx(ctx, func(tx *sql.Tx) error {
		if _, err := templateQuestionOn(ctx, tx, tipo, id); err != nil {
			return err
		}
		min, max := in.scale()
		if _, err := play_sql.ExecOn(ctx, tx, `
			UPDATE QuestionarioPadrao SET TipoPergunta = ?, Pergunta = ?, Obrigatoria = ?,
				EscalaMinima = ?, EscalaMaxima = ?, EscalaLabelMinima = ?, EscalaLabelMaxima = ?, AtualizadoEm = ?
			WHERE Id = ?`,
			in.TipoPergunta, in.Pergunta, in.required(),
			min, max, in.EscalaLabelMinima, in.EscalaLabelMaxima, play_sql.Now(), id); err != nil {
			return err
		}
		if _, err := play_sql.ExecOn(ctx, tx, "DELETE FROM OpcoesQuestionarioPadrao WHERE PerguntaId = ?", id); err != nil {
			return err
		}
		return insertTemplateOptions(ctx, tx, id, in.Opcoes)
	})
}

// DeleteTemplateQuestion removes question id and closes the gap in Ordem.
func DeleteTemplateQuestion(ctx context.Context, tipo int, id int64) error {
	return play_sql.WithTx(ctx, func(tx *sql.Tx) error {
		q, err := templateQuestionOn(ctx, tx, tipo, id)
		if err != nil {
			return err
		}
		if _, err := play_sql.ExecOn(ctx, tx, "DELETE FROM OpcoesQuestionarioPadrao WHERE PerguntaId = ?", id); err != nil {
			return err
		}
		if _, err := play_sql.ExecOn(ctx, tx, "DELETE FROM QuestionarioPadrao WHERE Id = ?", id); err != nil {
			return err
		}
		_, err = play_sql.ExecOn(ctx, tx,
			"UPDATE QuestionarioPadrao SET Ordem = Ordem - 1 WHERE TipoAvaliacaoId = ? AND Ativo = 1 AND Ordem > ?",
			tipo, q.Ordem)
		return err
	})
}

// ReorderTemplate sets Ordem from the position of each id in ids. Every
// active question of tipo must be listed exactly once.
func ReorderTemplate(ctx context.Context, tipo int, ids []int64) error {
	return play_sql.WithTx(ctx, func(tx *sql.Tx) error {
		current, err := templateOn(ctx, tx, tipo)
		if err != nil {
			return err
		}
		known := make(map[int64]bool, len(current))
		for _, q := range current {
			known[q.ID] = true
		}
		if len(ids) != len(current) {
			return Error("A lista deve conter todas as perguntas do questionário")
		}
		for _, id := range ids {
			if !known[id] {
				return Error("A lista deve conter todas as perguntas do questionário")
			}
			delete(known, id)
		}
		for i, id := range ids {
			if _, err := play_sql.ExecOn(ctx, tx,
				"UPDATE QuestionarioPadrao SET Ordem = ?, AtualizadoEm = ? WHERE Id = ?", i+1, play_sql.Now(), id); err != nil {
				return err
			}
		}
		return nil
	})
}
