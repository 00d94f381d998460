package desempenho

import (
	"context"
	"database/sql"
	"encoding/json"
	"strings"

	"lumigente_backend/main/play_sql"
)

type Pergunta struct {
	ID                int64    `json:"Id"`
	Texto             string   `json:"Texto"`
	Tipo              string   `json:"Tipo"`
	Opcoes            []string `json:"Opcoes"`
	Obrigatoria       bool     `json:"Obrigatoria"`
	Ordem             int      `json:"Ordem"`
	EscalaMinima      *int     `json:"EscalaMinima"`
	EscalaMaxima      *int     `json:"EscalaMaxima"`
	EscalaLabelMinima string   `json:"EscalaLabelMinima"`
	EscalaLabelMaxima string   `json:"EscalaLabelMaxima"`
}

type PerguntaInput struct {
	Texto             string   `json:"texto"`
	Tipo              string   `json:"tipo"`
	Opcoes            []string `json:"opcoes"`
	Obrigatoria       bool     `json:"obrigatoria"`
	Ordem             int      `json:"ordem"`
	EscalaMinima      *int     `json:"escalaMinima"`
	EscalaMaxima      *int     `json:"escalaMaxima"`
	EscalaLabelMinima string   `json:"escalaLabelMinima"`
	EscalaLabelMaxima string   `json:"escalaLabelMaxima"`
}

func (in PerguntaInput) normalize() (Pergunta, error) {
	p := Pergunta{
		Texto:             strings.TrimSpace(in.Texto),
		Tipo:              strings.TrimSpace(in.Tipo),
		Obrigatoria:       in.Obrigatoria,
		Ordem:             in.Ordem,
		EscalaMinima:      in.EscalaMinima,
		EscalaMaxima:      in.EscalaMaxima,
		EscalaLabelMinima: strings.TrimSpace(in.EscalaLabelMinima),
		EscalaLabelMaxima: strings.TrimSpace(in.EscalaLabelMaxima),
		Opcoes:            []string{},
	}
	if p.Texto == "" || p.Tipo == "" {
		return p, ErrPerguntaInvalida
	}
	for _, o := range in.Opcoes {
		if o = strings.TrimSpace(o); o != "" {
			p.Opcoes = append(p.Opcoes, o)
		}
	}
	return p, nil
}

func perguntaFrom(r map[string]string) Pergunta {
	return Pergunta{
		ID:                play_sql.ToInt64(r["Id"]),
		Texto:             r["Texto"],
		Tipo:              r["Tipo"],
		Opcoes:            decodeOpcoes(r["Opcoes"]),
		Obrigatoria:       play_sql.ToBool(r["Obrigatoria"]),
		Ordem:             play_sql.ToInt(r["Ordem"]),
		EscalaMinima:      intPtr(r["EscalaMinima"]),
		EscalaMaxima:      intPtr(r["EscalaMaxima"]),
		EscalaLabelMinima: r["EscalaLabelMinima"],
		EscalaLabelMaxima: r["EscalaLabelMaxima"],
	}
}

// Banco lists the active questions of the default questionnaire.
func Banco(ctx context.Context) ([]Pergunta, error) {
	rows, err := play_sql.QueryRows(ctx, `
		SELECT Id, Texto, Tipo, Opcoes, Obrigatoria, Ordem, EscalaMinima, EscalaMaxima, EscalaLabelMinima, EscalaLabelMaxima
		FROM PerguntasDesempenho WHERE Ativo = 1 ORDER BY Ordem, Id`)
	if err != nil {
		return nil, err
	}
	out := make([]Pergunta, 0, len(rows))
	for _, r := range rows {
		out = append(out, perguntaFrom(r))
	}
	return out, nil
}

func encodeOpcoes(p Pergunta) any {
	if len(p.Opcoes) == 0 {
		return nil
	}
	raw, _ := json.Marshal(p.Opcoes)
	return string(raw)
}

func CriarPergunta(ctx context.Context, in PerguntaInput) (int64, error) {
	p, err := in.normalize()
	if err != nil {
		return 0, err
	}
	return play_sql.Insert(ctx, `
		INSERT INTO PerguntasDesempenho
			(Texto, Tipo, Opcoes, Obrigatoria, Ordem, EscalaMinima, EscalaMaxima, EscalaLabelMinima, EscalaLabelMaxima, Ativo)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, 1)`,
		p.Texto, p.Tipo, encodeOpcoes(p), flag(p.Obrigatoria), p.Ordem,
		nullInt(p.EscalaMinima), nullInt(p.EscalaMaxima), nullString(p.EscalaLabelMinima), nullString(p.EscalaLabelMaxima))
}

func perguntaExists(ctx context.Context, id int64) error {
	n, err := play_sql.Count(ctx, "SELECT COUNT(*) FROM PerguntasDesempenho WHERE Id = ? AND Ativo = 1", id)
	if err != nil {
		return err
	}
	if n == 0 {
		return ErrPerguntaNotFound
	}
	return nil
}

func AtualizarPergunta(ctx context.Context, id int64, in PerguntaInput) error {
	p, err := in.normalize()
	if err != nil {
		return err
	}
	if err := perguntaExists(ctx, id); err != nil {
		return err
	}
	_, err = play_sql.Exec(ctx, `
		UPDATE PerguntasDesempenho
		SET Texto = ?, Tipo = ?, Opcoes = ?, Obrigatoria = ?, Ordem = ?,
		    EscalaMinima = ?, EscalaMaxima = ?, EscalaLabelMinima = ?, EscalaLabelMaxima = ?
		WHERE Id = ?`,
		p.Texto, p.Tipo, encodeOpcoes(p), flag(p.Obrigatoria), p.Ordem,
		nullInt(p.EscalaMinima), nullInt(p.EscalaMaxima), nullString(p.EscalaLabelMinima), nullString(p.EscalaLabelMaxima), id)
	return err
}

// ExcluirPergunta deactivates the question. Evaluations already created keep
// their own copy.
func ExcluirPergunta(ctx context.Context, id int64) error {
	if err := perguntaExists(ctx, id); err != nil {
		return err
	}
	_, err := play_sql.Exec(ctx, "UPDATE PerguntasDesempenho SET Ativo = 0 WHERE Id = ?", id)
	return err
}

type OrdemItem struct {
	ID    int64 `json:"id"`
	Ordem int   `json:"ordem"`
}

func Reordenar(ctx context.Context, itens []OrdemItem) error {
	if len(itens) == 0 {
		return ErrDadosInvalidos
	}
	return play_sql.WithTx(ctx, func(tx *sql.Tx) error {
		for _, it := range itens {
			if _, err := play_sql.ExecOn(ctx, tx, "UPDATE PerguntasDesempenho SET Ordem = ? WHERE Id = ?", it.Ordem, it.ID); err != nil {
				return err
			}
		}
		return nil
	})
}

// PerguntasDaAvaliacao returns the questions copied into the evaluation with
// the options of the multiple choice ones.
func PerguntasDaAvaliacao(ctx context.Context, avaliacaoID int64) ([]Pergunta, error) {
	rows, err := play_sql.QueryRows(ctx, `
		SELECT Id, Texto, Tipo, Obrigatoria, Ordem, EscalaMinima, EscalaMaxima, EscalaLabelMinima, EscalaLabelMaxima
		FROM PerguntasAvaliacaoDesempenho WHERE AvaliacaoId = ? ORDER BY Ordem, Id`, avaliacaoID)
	if err != nil {
		return nil, err
	}
	if len(rows) == 0 {
		return nil, ErrSemPerguntas
	}
	out := make([]Pergunta, 0, len(rows))
	for _, r := range rows {
		p := perguntaFrom(r)
		if p.Tipo == MultiplaEscolha {
			opts, err := play_sql.QueryRows(ctx,
				"SELECT TextoOpcao FROM OpcoesPerguntasAvaliacaoDesempenho WHERE PerguntaId = ? ORDER BY Ordem", p.ID)
			if err != nil {
				return nil, err
			}
			for _, o := range opts {
				p.Opcoes = append(p.Opcoes, o["TextoOpcao"])
			}
		}
		out = append(out, p)
	}
	return out, nil
}
