package pesquisas

import (
	"bytes"
	"html/template"
	"strconv"
)

// Fragments used by the survey pages. Inputs are named the way the
// responder endpoint expects them: q_<question id>.
var fragments = template.Must(template.New("pesquisas").Funcs(template.FuncMap{
	"scale": func(min, max int) []int {
		out := make([]int, 0, max-min+1)
		for v := min; v <= max; v++ {
			out = append(out, v)
		}
		return out
	},
	"inc":  func(i int) int { return i + 1 },
	"item": func(q Question, i int) responseView { return responseView{Q: q, Index: i} },
}).Parse(`
{{define "options"}}
{{- if eq .Tipo "multipla_escolha"}}
<div class="question-options" id="options-{{.ID}}">
  <label>Opções</label>
  <div class="option-list">
    <input type="text" class="option-input" placeholder="Opção 1">
    <input type="text" class="option-input" placeholder="Opção 2">
  </div>
  <button type="button" class="btn-add-option" data-question="{{.ID}}">Adicionar opção</button>
</div>
{{- else if eq .Tipo "escala"}}
<div class="question-options" id="options-{{.ID}}">
  <label>Escala</label>
  <input type="number" class="scale-min" value="1" min="0">
  <span>até</span>
  <input type="number" class="scale-max" value="5" min="1">
</div>
{{- else if eq .Tipo "sim_nao"}}
<div class="question-options" id="options-{{.ID}}"><small>Respostas: Sim ou Não</small></div>
{{- end}}
{{end}}

{{define "creation"}}
<div class="question-builder" id="{{.ID}}">
  <div class="question-header">
    <span class="question-number">Pergunta {{.Number}}</span>
    <button type="button" class="btn-remove-question" data-question="{{.ID}}">Remover</button>
  </div>
  <input type="text" class="question-text" placeholder="Digite a pergunta">
  <select class="question-type" data-question="{{.ID}}">
    <option value="texto_livre">Texto livre</option>
    <option value="multipla_escolha">Múltipla escolha</option>
    <option value="escala">Escala</option>
    <option value="sim_nao">Sim / Não</option>
  </select>
  <label><input type="checkbox" class="question-required"> Obrigatória</label>
  <div class="question-options-slot"></div>
</div>
{{end}}

{{define "response"}}
<div class="survey-question" data-question-id="{{.Q.ID}}" data-type="{{.Q.Tipo}}">
  <p class="question-title">{{inc .Index}}. {{.Q.Pergunta}}{{if .Q.Obrigatoria}} <span class="required">*</span>{{end}}</p>
  {{- if eq .Q.Tipo "texto_livre"}}
  <textarea name="q_{{.Q.ID}}" rows="3"{{if .Q.Obrigatoria}} required{{end}}></textarea>
  {{- else if eq .Q.Tipo "multipla_escolha"}}
  {{- range .Q.Opcoes}}
  <label class="option"><input type="radio" name="q_{{$.Q.ID}}" value="{{.ID}}"{{if $.Q.Obrigatoria}} required{{end}}> {{.Opcao}}</label>
  {{- end}}
  {{- else if eq .Q.Tipo "escala"}}
  <div class="scale">
  {{- range scale .Q.EscalaMin .Q.EscalaMax}}
    <label class="scale-value"><input type="radio" name="q_{{$.Q.ID}}" value="{{.}}"{{if $.Q.Obrigatoria}} required{{end}}> {{.}}</label>
  {{- end}}
  </div>
  {{- else if eq .Q.Tipo "sim_nao"}}
  <label class="option"><input type="radio" name="q_{{.Q.ID}}" value="sim"{{if .Q.Obrigatoria}} required{{end}}> Sim</label>
  <label class="option"><input type="radio" name="q_{{.Q.ID}}" value="nao"{{if .Q.Obrigatoria}} required{{end}}> Não</label>
  {{- end}}
</div>
{{end}}

{{define "form"}}
<form class="survey-form" data-survey-id="{{.S.ID}}">
  <h2>{{.S.Titulo}}</h2>
  {{- if .S.Descricao}}
  <p class="survey-description">{{.S.Descricao}}</p>
  {{- end}}
  {{- if .S.Anonima}}
  <p class="survey-anonymous">Esta pesquisa é anônima.</p>
  {{- end}}
  {{- range $i, $q := .S.Perguntas}}
  {{template "response" (item $q $i)}}
  {{- end}}
  <button type="submit" class="btn-submit-survey">Enviar respostas</button>
</form>
{{end}}
`))

type responseView struct {
	Q     Question
	Index int
}

func execute(name string, data any) (string, error) {
	var buf bytes.Buffer
	if err := fragments.ExecuteTemplate(&buf, name, data); err != nil {
		return "", err
	}
	return buf.String(), nil
}

// RenderForResponse renders question q as the index-th (zero based) input of
// the answer form.
func RenderForResponse(q Question, index int) (string, error) {
	return execute("response", responseView{Q: q, Index: index})
}

// RenderForCreation renders an empty question block for the survey builder.
func RenderForCreation(number int, id string) (string, error) {
	if id == "" {
		id = "question-" + strconv.Itoa(number)
	}
	return execute("creation", struct {
		ID     string
		Number int
	}{id, number})
}

// RenderOptionsForType renders the type specific settings of a question in
// the builder. Free text questions have none.
func RenderOptionsForType(id, tipo string) (string, error) {
	return execute("options", struct{ ID, Tipo string }{id, tipo})
}

// RenderForm renders the whole answer form of s.
func RenderForm(s *Survey) (string, error) {
	return execute("form", struct{ S *Survey }{s})
}
