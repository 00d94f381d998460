package pesquisas

import (
	"context"
	"math"
	"strconv"

	"lumigente_backend/main/play_sql"
)

type OptionCount struct {
	ID          int64   `json:"Id"`
	Opcao       string  `json:"opcao"`
	Count       int     `json:"count"`
	Porcentagem float64 `json:"porcentagem"`
}

type Statistics struct {
	TotalRespostas         int            `json:"total_respostas"`
	PorcentagemResponderam float64        `json:"porcentagem_responderam"`
	Opcoes                 []OptionCount  `json:"opcoes,omitempty"`
	Media                  *float64       `json:"media,omitempty"`
	Distribuicao           map[string]int `json:"distribuicao,omitempty"`
	Sim                    int            `json:"sim"`
	Nao                    int            `json:"nao"`
}

type ResponseEntry struct {
	UserID           int64  `json:"user_id,omitempty"`
	Usuario          string `json:"usuario"`
	RespostaTexto    string `json:"resposta_texto,omitempty"`
	RespostaNumerica *int   `json:"resposta_numerica,omitempty"`
	OptionID         int64  `json:"option_id,omitempty"`
	DataResposta     string `json:"data_resposta"`
}

type QuestionResult struct {
	Question
	Estatisticas Statistics      `json:"estatisticas"`
	Respostas    []ResponseEntry `json:"respostas"`
}

type Results struct {
	Survey       *Survey          `json:"pesquisa"`
	Perguntas    []QuestionResult `json:"perguntas"`
	Respondentes int              `json:"total_respondentes"`
	Elegiveis    int              `json:"total_elegiveis"`
	TaxaResposta float64          `json:"taxa_resposta"`
}

func round2(v float64) float64 {
	return math.Round(v*100) / 100
}

func pct(part, total int) float64 {
	if total == 0 {
		return 0
	}
	return round2(float64(part) * 100 / float64(total))
}

// ResultsFor aggregates the answers of s per question. Anonymous surveys
// never expose who answered.
func ResultsFor(ctx context.Context, s *Survey) (*Results, error) {
	rows, err := play_sql.QueryRows(ctx, `
		SELECT r.question_id, r.user_id, r.resposta_texto, r.resposta_numerica, r.option_id, r.data_resposta,
			u.NomeCompleto AS usuario
		FROM SurveyResponses r
		LEFT JOIN Users u ON u.Id = r.user_id
		WHERE r.survey_id = ?
		ORDER BY r.data_resposta, r.Id`, s.ID)
	if err != nil {
		return nil, err
	}
	byQuestion := map[int64][]map[string]string{}
	respondents := map[string]bool{}
	for _, r := range rows {
		qid := play_sql.ToInt64(r["question_id"])
		byQuestion[qid] = append(byQuestion[qid], r)
		respondents[r["user_id"]] = true
	}

	res := &Results{
		Survey:       s,
		Perguntas:    make([]QuestionResult, 0, len(s.Perguntas)),
		Respondentes: len(respondents),
		Elegiveis:    s.TotalElegiveis,
	}
	res.TaxaResposta = pct(res.Respondentes, res.Elegiveis)

	for _, q := range s.Perguntas {
		answers := byQuestion[q.ID]
		qr := QuestionResult{Question: q, Respostas: make([]ResponseEntry, 0, len(answers))}
		qr.Estatisticas = statistics(q, answers, res.Respondentes)
		for _, a := range answers {
			e := ResponseEntry{
				Usuario:       a["usuario"],
				RespostaTexto: a["resposta_texto"],
				OptionID:      play_sql.ToInt64(a["option_id"]),
				DataResposta:  a["data_resposta"],
			}
			if a["resposta_numerica"] != "" {
				v := play_sql.ToInt(a["resposta_numerica"])
				e.RespostaNumerica = &v
			}
			if s.Anonima {
				e.Usuario = "Anônimo"
			} else {
				e.UserID = play_sql.ToInt64(a["user_id"])
			}
			qr.Respostas = append(qr.Respostas, e)
		}
		res.Perguntas = append(res.Perguntas, qr)
	}
	return res, nil
}

func statistics(q Question, answers []map[string]string, respondents int) Statistics {
	st := Statistics{
		TotalRespostas:         len(answers),
		PorcentagemResponderam: pct(len(answers), respondents),
	}
	switch q.Tipo {
	case MultiplaEscolha:
		counts := map[int64]int{}
		for _, a := range answers {
			counts[play_sql.ToInt64(a["option_id"])]++
		}
		for _, o := range q.Opcoes {
			st.Opcoes = append(st.Opcoes, OptionCount{
				ID:          o.ID,
				Opcao:       o.Opcao,
				Count:       counts[o.ID],
				Porcentagem: pct(counts[o.ID], len(answers)),
			})
		}
	case Escala:
		st.Distribuicao = map[string]int{}
		for v := q.EscalaMin; v <= q.EscalaMax; v++ {
			st.Distribuicao[strconv.Itoa(v)] = 0
		}
		sum := 0
		for _, a := range answers {
			v := play_sql.ToInt(a["resposta_numerica"])
			sum += v
			st.Distribuicao[strconv.Itoa(v)]++
		}
		if len(answers) > 0 {
			m := round2(float64(sum) / float64(len(answers)))
			st.Media = &m
		}
	case SimNao:
		for _, a := range answers {
			if a["resposta_texto"] == "sim" {
				st.Sim++
			} else {
				st.Nao++
			}
		}
	}
	return st
}

// MyResponse returns userID's answers to s in question order.
func MyResponse(ctx context.Context, s *Survey, userID int64) ([]ResponseEntry, error) {
	rows, err := play_sql.QueryRows(ctx, `
		SELECT r.question_id, r.resposta_texto, r.resposta_numerica, r.option_id, r.data_resposta
		FROM SurveyResponses r
		JOIN SurveyQuestions q ON q.Id = r.question_id
		WHERE r.survey_id = ? AND r.user_id = ?
		ORDER BY q.ordem, r.Id`, s.ID, userID)
	if err != nil {
		return nil, err
	}
	if len(rows) == 0 {
		return nil, ErrNotAnswered
	}
	out := make([]ResponseEntry, 0, len(rows))
	for _, r := range rows {
		e := ResponseEntry{
			RespostaTexto: r["resposta_texto"],
			OptionID:      play_sql.ToInt64(r["option_id"]),
			DataResposta:  r["data_resposta"],
		}
		if r["resposta_numerica"] != "" {
			v := play_sql.ToInt(r["resposta_numerica"])
			e.RespostaNumerica = &v
		}
		out = append(out, e)
	}
	return out, nil
}

type Departamento struct {
	Codigo    string `json:"codigo"`
	Descricao string `json:"descricao"`
}

// Departamentos lists the departments of the cost center hierarchy.
func Departamentos(ctx context.Context) ([]Departamento, error) {
	rows, err := play_sql.QueryRows(ctx, `
		SELECT DISTINCT TRIM(DEPTO_ATUAL) AS codigo, TRIM(DESCRICAO_ATUAL) AS descricao
		FROM HIERARQUIA_CC
		WHERE DEPTO_ATUAL IS NOT NULL AND TRIM(DEPTO_ATUAL) <> ''
		ORDER BY descricao, codigo`)
	if err != nil {
		return nil, err
	}
	out := make([]Departamento, 0, len(rows))
	for _, r := range rows {
		out = append(out, Departamento{Codigo: r["codigo"], Descricao: r["descricao"]})
	}
	return out, nil
}

type Meta struct {
	Filiais       []string       `json:"filiais"`
	Departamentos []Departamento `json:"departamentos"`
}

// MetaFiltros lists the filiais and departments active users belong to.
func MetaFiltros(ctx context.Context) (Meta, error) {
	filiais, err := play_sql.QueryRows(ctx, `
		SELECT DISTINCT TRIM(Filial) AS nome FROM Users
		WHERE IsActive = 1 AND Filial IS NOT NULL AND TRIM(Filial) <> ''
		ORDER BY nome`)
	if err != nil {
		return Meta{}, err
	}
	deps, err := play_sql.QueryRows(ctx, `
		SELECT DISTINCT TRIM(Departamento) AS codigo, TRIM(DescricaoDepartamento) AS descricao FROM Users
		WHERE IsActive = 1 AND Departamento IS NOT NULL AND TRIM(Departamento) <> ''
		ORDER BY descricao, codigo`)
	if err != nil {
		return Meta{}, err
	}
	m := Meta{Filiais: names(filiais), Departamentos: make([]Departamento, 0, len(deps))}
	for _, r := range deps {
		m.Departamentos = append(m.Departamentos, Departamento{Codigo: r["codigo"], Descricao: r["descricao"]})
	}
	return m, nil
}
