package mailer

import (
	"bytes"
	"html/template"
)

var layout = template.Must(template.New("mail").Parse(`<!DOCTYPE html>
<html lang="pt-BR">
<body style="font-family: Arial, sans-serif; color: #1f2937;">
  <div style="max-width: 560px; margin: 0 auto; padding: 24px;">
    <h2 style="color: #0d556d;">{{.Title}}</h2>
    <p>Olá, {{.Name}}!</p>
    <p>{{.Body}}</p>
    {{if .Link}}<p><a href="{{.Link}}" style="background: #0d556d; color: #fff; padding: 10px 18px; border-radius: 6px; text-decoration: none;">Acessar LumiGente</a></p>{{end}}
    <p style="font-size: 12px; color: #6b7280;">Esta é uma mensagem automática, não responda.</p>
  </div>
</body>
</html>`))

type view struct {
	Title string
	Name  string
	Body  string
	Link  string
}

func render(to, subject string, v view) (Message, error) {
	var buf bytes.Buffer
	if err := layout.Execute(&buf, v); err != nil {
		return Message{}, err
	}
	return Message{To: to, Subject: subject, HTML: buf.String()}, nil
}

func FeedbackReceived(to, name, fromName string) (Message, error) {
	return render(to, "Você recebeu um novo feedback", view{
		Title: "Novo feedback",
		Name:  name,
		Body:  fromName + " enviou um feedback para você.",
		Link:  AppURL() + "/index.html#feedbacks",
	})
}

func AvaliacaoAberta(to, name, tipo, prazo string) (Message, error) {
	return render(to, "Avaliação de "+tipo+" disponível", view{
		Title: "Avaliação disponível",
		Name:  name,
		Body:  "Sua avaliação de " + tipo + " está disponível para resposta até " + prazo + ".",
		Link:  AppURL() + "/index.html#avaliacoes",
	})
}

func AvaliacaoLembrete(to, name, tipo string) (Message, error) {
	return render(to, "Lembrete: avaliação de "+tipo, view{
		Title: "Lembrete de avaliação",
		Name:  name,
		Body:  "Sua avaliação de " + tipo + " expira em 3 dias.",
		Link:  AppURL() + "/index.html#avaliacoes",
	})
}

func AvaliacaoExpirada(to, name, tipo string) (Message, error) {
	return render(to, "Avaliação de "+tipo+" expirada", view{
		Title: "Avaliação expirada",
		Name:  name,
		Body:  "Sua avaliação de " + tipo + " expirou. Procure o RH caso precise reabri-la.",
	})
}

func NovaPesquisa(to, name, titulo string) (Message, error) {
	return render(to, "Nova pesquisa: "+titulo, view{
		Title: "Nova pesquisa disponível",
		Name:  name,
		Body:  "A pesquisa \"" + titulo + "\" está disponível para você responder.",
		Link:  AppURL() + "/index.html#pesquisas",
	})
}

func RecognitionReceived(to, name, fromName, badge string) (Message, error) {
	return render(to, "Você foi reconhecido!", view{
		Title: "Novo reconhecimento",
		Name:  name,
		Body:  fromName + " reconheceu você com o badge \"" + badge + "\".",
		Link:  AppURL() + "/index.html#recognitions",
	})
}

func ObjetivoAtribuido(to, name, creatorName, titulo, inicio, fim string) (Message, error) {
	return render(to, "Novo objetivo: "+titulo, view{
		Title: "Você tem um novo objetivo",
		Name:  name,
		Body:  creatorName + " atribuiu a você o objetivo \"" + titulo + "\", de " + inicio + " a " + fim + ".",
		Link:  AppURL() + "/index.html#objetivos",
	})
}

func ObjetivoAprovacao(to, name, actorName, titulo string) (Message, error) {
	return render(to, "Aprovação pendente: "+titulo, view{
		Title: "Conclusão aguardando aprovação",
		Name:  name,
		Body:  actorName + " registrou 100% no objetivo \"" + titulo + "\" e aguarda sua aprovação.",
		Link:  AppURL() + "/index.html#objetivos",
	})
}

func ExternoCadastrado(to, name, cpf string) (Message, error) {
	return render(to, "Bem-vindo ao LumiGente - Cadastro Confirmado", view{
		Title: "Cadastro confirmado",
		Name:  name,
		Body:  "Seu acesso ao LumiGente foi criado. Entre com o CPF " + cpf + " e a senha definida no cadastro.",
		Link:  AppURL() + "/login.html",
	})
}
