package avaliacoes

import (
	"bytes"
	"html/template"
	"strconv"
	"strings"
)

var answers *template.Template

func init() {
	answers = template.Must(template.New("avaliacoes").Funcs(template.FuncMap{
		"answer": FormatAnswer,
		"br":     brDate,
	}).Parse(answerTemplates))
}

const answerTemplates = `
{{define "missing"}}<p class="answer-missing" style="color: #9ca3af; font-style: italic;">Não respondida</p>{{end}}

{{define "multipla_escolha"}}
<div class="answer-options">
{{- range .Options}}
  {{- if .Selected}}
  <div class="answer-option selected" style="padding: 6px 10px; border: 1px solid #0d556d; background: #e6f2f5; border-radius: 6px; margin-bottom: 4px;">&#10003; {{.Text}}</div>
  {{- else}}
  <div class="answer-option" style="padding: 6px 10px; border: 1px solid #e5e7eb; border-radius: 6px; margin-bottom: 4px; color: #6b7280;">{{.Text}}</div>
  {{- end}}
{{- end}}
</div>
{{end}}

{{define "escala"}}
<div class="answer-scale" style="display: flex; align-items: center; gap: 6px;">
  {{- if .MinLabel}}<span class="scale-label" style="font-size: 12px; color: #6b7280;">{{.MinLabel}}</span>{{end}}
  {{- range .Options}}
  {{- if .Selected}}
  <span class="scale-box selected" style="width: 32px; height: 32px; line-height: 32px; text-align: center; border-radius: 6px; background: #0d556d; color: #fff; font-weight: bold;">{{.Text}}</span>
  {{- else}}
  <span class="scale-box" style="width: 32px; height: 32px; line-height: 32px; text-align: center; border-radius: 6px; border: 1px solid #e5e7eb; color: #6b7280;">{{.Text}}</span>
  {{- end}}
  {{- end}}
  {{- if .MaxLabel}}<span class="scale-label" style="font-size: 12px; color: #6b7280;">{{.MaxLabel}}</span>{{end}}
</div>
{{end}}

{{define "sim_nao"}}
<div class="answer-yes-no" style="display: flex; gap: 8px;">
{{- range .Options}}
  {{- if .Selected}}
  <span class="yes-no-box selected" style="padding: 6px 16px; border-radius: 6px; background: #0d556d; color: #fff; font-weight: bold;">{{.Text}}</span>
  {{- else}}
  <span class="yes-no-box" style="padding: 6px 16px; border-radius: 6px; border: 1px solid #e5e7eb; color: #6b7280;">{{.Text}}</span>
  {{- end}}
{{- end}}
</div>
{{end}}

{{define "texto"}}<p class="answer-text" style="white-space: pre-wrap; margin: 0;">{{.Text}}</p>{{end}}

{{define "relatorio"}}
<div class="avaliacao-relatorio" data-avaliacao-id="{{.A.ID}}">
  <h2>{{.A.TipoAvaliacao}}</h2>
  <p><strong>Colaborador:</strong> {{.A.NomeCompleto}}{{if .A.Departamento}} ({{.A.Departamento}}){{end}}</p>
  {{- if .A.NomeGestor}}
  <p><strong>Gestor:</strong> {{.A.NomeGestor}}</p>
  {{- end}}
  <p><strong>Admissão:</strong> {{br .A.DataAdmissao}} &middot; <strong>Prazo:</strong> {{br .A.DataLimiteResposta}} &middot; <strong>Status:</strong> {{.A.StatusAvaliacao}}</p>
  {{- range .Items}}
  <section class="relatorio-pergunta">
    <h4>{{.P.Ordem}}. {{.P.Pergunta}}</h4>
    <div class="relatorio-parte"><h5>Colaborador</h5>{{answer .Colaborador .P}}</div>
    <div class="relatorio-parte"><h5>Gestor</h5>{{answer .Gestor .P}}</div>
  </section>
  {{- end}}
</div>
{{end}}
`

type choice struct {
	Text     string
	Selected bool
}

type answerView struct {
	Text     string
	Options  []choice
	MinLabel string
	MaxLabel string
}

// FormatAnswer renders r, an answer to p, for read only display. Choices that
// were not picked are shown too so the reader sees the whole question. A nil
// answer renders as "Não respondida".
func FormatAnswer(r *Resposta, p Pergunta) template.HTML {
	if r == nil {
		return execute("missing", nil)
	}
	v := answerView{Text: r.Resposta}
	tipo := p.TipoPergunta
	if tipo == "" {
		tipo = r.TipoPergunta
	}
	switch tipo {
	case MultiplaEscolha:
		for _, o := range p.Opcoes {
			selected := (r.OpcaoSelecionadaID != 0 && o.ID == r.OpcaoSelecionadaID) ||
				strings.EqualFold(strings.TrimSpace(o.TextoOpcao), strings.TrimSpace(r.Resposta))
			v.Options = append(v.Options, choice{Text: o.TextoOpcao, Selected: selected})
		}
		if len(v.Options) == 0 {
			return execute(Texto, v)
		}
	case Escala:
		min, max := scaleBounds(p)
		for i := min; i <= max; i++ {
			s := strconv.Itoa(i)
			v.Options = append(v.Options, choice{Text: s, Selected: s == strings.TrimSpace(r.Resposta)})
		}
		v.MinLabel, v.MaxLabel = p.EscalaLabelMinima, p.EscalaLabelMaxima
	case SimNao:
		yes := strings.EqualFold(strings.TrimSpace(r.Resposta), "sim")
		v.Options = []choice{{Text: "Sim", Selected: yes}, {Text: "Não", Selected: !yes}}
	default:
		tipo = Texto
	}
	return execute(tipo, v)
}

func execute(name string, data any) template.HTML {
	var buf bytes.Buffer
	if err := answers.ExecuteTemplate(&buf, name, data); err != nil {
		return template.HTML(template.HTMLEscapeString(name + ": " + err.Error()))
	}
	return template.HTML(buf.String())
}

type relatorioItem struct {
	P           Pergunta
	Colaborador *Resposta
	Gestor      *Resposta
}

// Relatorio renders evaluation a with both parties' answers side by side.
func Relatorio(a *Avaliacao, perguntas []Pergunta, respostas []Resposta) template.HTML {
	items := make([]relatorioItem, 0, len(perguntas))
	for _, p := range perguntas {
		item := relatorioItem{P: p}
		for i := range respostas {
			r := &respostas[i]
			if r.PerguntaID != p.ID {
				continue
			}
			if r.TipoRespondente == Gestor {
				item.Gestor = r
			} else {
				item.Colaborador = r
			}
		}
		items = append(items, item)
	}
	return execute("relatorio", struct {
		A     *Avaliacao
		Items []relatorioItem
	}{a, items})
}
