package desempenho

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"strings"

	"go.uber.org/zap"

	"lumigente_backend/main/logger"
	"lumigente_backend/main/play_sql"
	"lumigente_backend/users/auth"
)

// Status values stored in AvaliacoesDesempenho.Status.
const (
	Pendente              = "Pendente"
	AguardandoGestor      = "Aguardando Gestor"
	AguardandoColaborador = "Aguardando Colaborador"
	Calibragem            = "Calibragem"
	AguardandoFeedback    = "Aguardando Feedback"
	AguardandoPDI         = "Aguardando PDI"
	Concluida             = "Concluida"

	// EmAndamento is only shown to the collaborator while HR and the manager
	// work on the evaluation.
	EmAndamento = "Em Andamento"
)

const (
	Colaborador = "colaborador"
	Gestor      = "gestor"
)

const MultiplaEscolha = "multipla_escolha"

var ErrNotFound = errors.New("avaliação de desempenho não encontrada")

// Error is a validation failure whose text is shown to the user as is.
type Error string

func (e Error) Error() string { return string(e) }

const (
	ErrDadosInvalidos   Error = "Dados inválidos"
	ErrSemQuestionario  Error = "Nenhuma pergunta foi adicionada e não há questionário padrão definido."
	ErrSemPerguntas     Error = "Avaliação sem perguntas cadastradas"
	ErrPerguntaInvalida Error = "Texto e tipo da pergunta são obrigatórios"
	ErrSemRespostas     Error = "Nenhuma resposta enviada"
	ErrRespostaInvalida Error = "Resposta para pergunta que não pertence a esta avaliação"
	ErrEncerrada        Error = "Esta avaliação não aceita mais respostas"
	ErrNaoCalibravel    Error = "A avaliação ainda não está pronta para calibragem"
	ErrJaConcluida      Error = "Esta avaliação já foi concluída"
	ErrFeedbackVazio    Error = "O feedback do gestor é obrigatório"
	ErrPDIIncompleto    Error = "Objetivos, ações e prazo do PDI são obrigatórios"
	ErrPerguntaNotFound Error = "Pergunta não encontrada"
)

type Avaliacao struct {
	ID                      int64  `json:"Id"`
	UserID                  int64  `json:"UserId"`
	GestorID                int64  `json:"GestorId"`
	Titulo                  string `json:"Titulo"`
	DataLimiteAutoAvaliacao string `json:"DataLimiteAutoAvaliacao"`
	DataLimiteGestor        string `json:"DataLimiteGestor"`
	CriadoPor               int64  `json:"CriadoPor"`
	Status                  string `json:"Status"`
	DataCriacao             string `json:"DataCriacao"`
	NomeColaborador         string `json:"NomeColaborador"`
	NomeGestor              string `json:"NomeGestor"`
	Departamento            string `json:"Departamento"`

	RespostasColaboradorCount    int  `json:"RespostasColaboradorCount"`
	RespostasGestorCount         int  `json:"RespostasGestorCount"`
	PerguntasCount               int  `json:"PerguntasEspecificasCount"`
	RespostaColaboradorConcluida bool `json:"RespostaColaboradorConcluida"`
	RespostaGestorConcluida      bool `json:"RespostaGestorConcluida"`

	// StatusAvaliacao is Status as seen by the viewer.
	StatusAvaliacao string `json:"StatusAvaliacao"`

	Calibragem *Consideracoes `json:"calibragem,omitempty"`
	Feedback   *Feedback      `json:"feedback,omitempty"`
	PDIs       []PDI          `json:"pdis,omitempty"`
}

// Participant reports whether the user is the evaluated collaborator or the manager.
func (a *Avaliacao) Participant(userID int64) bool {
	return a.UserID == userID || (a.GestorID != 0 && a.GestorID == userID)
}

// Party is colaborador, gestor or "" for anybody else.
func (a *Avaliacao) Party(userID int64) string {
	switch {
	case a.UserID == userID:
		return Colaborador
	case a.GestorID != 0 && a.GestorID == userID:
		return Gestor
	}
	return ""
}

func (a *Avaliacao) viewedBy(viewerID int64) {
	total := a.PerguntasCount
	if total == 0 {
		total = 1
	}
	a.RespostaColaboradorConcluida = a.RespostasColaboradorCount >= total
	a.RespostaGestorConcluida = a.RespostasGestorCount >= total

	a.StatusAvaliacao = a.Status
	switch a.Party(viewerID) {
	case Colaborador:
		switch a.Status {
		case Calibragem, AguardandoFeedback, AguardandoPDI:
			a.StatusAvaliacao = EmAndamento
		case AguardandoColaborador:
			a.StatusAvaliacao = Pendente
		}
	case Gestor:
		if a.Status == AguardandoGestor && !a.RespostaGestorConcluida {
			a.StatusAvaliacao = Pendente
		}
	}
}

type Consideracoes struct {
	ID                  int64  `json:"Id"`
	ConsideracoesFinais string `json:"ConsideracoesFinais"`
	CriadoPor           int64  `json:"CriadoPor"`
	DataCriacao         string `json:"DataCriacao"`
	DataAtualizacao     string `json:"DataAtualizacao"`
}

type Feedback struct {
	ID             int64  `json:"Id"`
	FeedbackGestor string `json:"FeedbackGestor"`
	GestorID       int64  `json:"GestorId"`
	DataCriacao    string `json:"DataCriacao"`
}

type PDI struct {
	ID             int64  `json:"Id"`
	Titulo         string `json:"Titulo"`
	Objetivos      string `json:"Objetivos"`
	Acoes          string `json:"Acoes"`
	PrazoConclusao string `json:"PrazoConclusao"`
	Status         string `json:"Status"`
	DataCriacao    string `json:"DataCriacao"`
}

const selectAvaliacao = `
	SELECT a.Id, a.UserId, a.GestorId, a.Titulo, a.DataLimiteAutoAvaliacao, a.DataLimiteGestor,
	       a.CriadoPor, a.Status, a.DataCriacao,
	       u.NomeCompleto AS NomeColaborador, g.NomeCompleto AS NomeGestor,
	       COALESCE(NULLIF(u.DescricaoDepartamento, ''), u.Departamento) AS Departamento,
	       (SELECT COUNT(*) FROM RespostasDesempenho r WHERE r.AvaliacaoId = a.Id AND r.RespostaColaborador IS NOT NULL) AS RespostasColaborador,
	       (SELECT COUNT(*) FROM RespostasDesempenho r WHERE r.AvaliacaoId = a.Id AND r.RespostaGestor IS NOT NULL) AS RespostasGestor,
	       (SELECT COUNT(*) FROM PerguntasAvaliacaoDesempenho p WHERE p.AvaliacaoId = a.Id) AS Perguntas
	FROM AvaliacoesDesempenho a
	JOIN Users u ON u.Id = a.UserId
	LEFT JOIN Users g ON g.Id = a.GestorId`

func avaliacaoFrom(r map[string]string) Avaliacao {
	return Avaliacao{
		ID:                        play_sql.ToInt64(r["Id"]),
		UserID:                    play_sql.ToInt64(r["UserId"]),
		GestorID:                  play_sql.ToInt64(r["GestorId"]),
		Titulo:                    r["Titulo"],
		DataLimiteAutoAvaliacao:   day(r["DataLimiteAutoAvaliacao"]),
		DataLimiteGestor:          day(r["DataLimiteGestor"]),
		CriadoPor:                 play_sql.ToInt64(r["CriadoPor"]),
		Status:                    r["Status"],
		DataCriacao:               r["DataCriacao"],
		NomeColaborador:           r["NomeColaborador"],
		NomeGestor:                r["NomeGestor"],
		Departamento:              r["Departamento"],
		RespostasColaboradorCount: play_sql.ToInt(r["RespostasColaborador"]),
		RespostasGestorCount:      play_sql.ToInt(r["RespostasGestor"]),
		PerguntasCount:            play_sql.ToInt(r["Perguntas"]),
	}
}

func day(v string) string {
	if t, ok := play_sql.ParseTime(v); ok {
		return t.Format(play_sql.DateLayout)
	}
	return v
}

type Filter struct {
	UserID   int64
	GestorID int64
	Status   string
}

// List returns the evaluations matching f, newest first. The viewer for
// StatusAvaliacao is the collaborator or manager the filter names.
func List(ctx context.Context, f Filter) ([]Avaliacao, error) {
	query := selectAvaliacao + " WHERE 1=1"
	args := []any{}
	if f.UserID > 0 {
		query += " AND a.UserId = ?"
		args = append(args, f.UserID)
	}
	if f.GestorID > 0 {
		query += " AND a.GestorId = ?"
		args = append(args, f.GestorID)
	}
	if f.Status != "" {
		query += " AND a.Status = ?"
		args = append(args, f.Status)
	}
	query += " ORDER BY a.DataCriacao DESC, a.Id DESC"

	rows, err := play_sql.QueryRows(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	viewer := f.UserID
	if viewer == 0 {
		viewer = f.GestorID
	}
	out := make([]Avaliacao, 0, len(rows))
	for _, r := range rows {
		a := avaliacaoFrom(r)
		a.viewedBy(viewer)
		out = append(out, a)
	}
	return out, nil
}

func Get(ctx context.Context, id, viewerID int64) (*Avaliacao, error) {
	row, found, err := play_sql.QueryRow(ctx, selectAvaliacao+" WHERE a.Id = ?", id)
	if err != nil {
		return nil, err
	}
	if !found {
		return nil, ErrNotFound
	}
	a := avaliacaoFrom(row)
	a.viewedBy(viewerID)
	return &a, nil
}

// Details loads the calibration notes, the manager feedback and the PDIs
// created from the evaluation.
func Details(ctx context.Context, a *Avaliacao) error {
	row, found, err := play_sql.QueryRow(ctx, `
		SELECT Id, ConsideracoesFinais, CriadoPor, DataCriacao, DataAtualizacao
		FROM CalibragemConsideracoes WHERE AvaliacaoId = ? ORDER BY DataCriacao DESC LIMIT 1`, a.ID)
	if err != nil {
		return err
	}
	if found {
		a.Calibragem = &Consideracoes{
			ID:                  play_sql.ToInt64(row["Id"]),
			ConsideracoesFinais: row["ConsideracoesFinais"],
			CriadoPor:           play_sql.ToInt64(row["CriadoPor"]),
			DataCriacao:         row["DataCriacao"],
			DataAtualizacao:     row["DataAtualizacao"],
		}
	}

	row, found, err = play_sql.QueryRow(ctx, `
		SELECT Id, FeedbackGestor, GestorId, DataCriacao
		FROM FeedbacksAvaliacaoDesempenho WHERE AvaliacaoId = ? ORDER BY DataCriacao DESC, Id DESC LIMIT 1`, a.ID)
	if err != nil {
		return err
	}
	if found {
		a.Feedback = &Feedback{
			ID:             play_sql.ToInt64(row["Id"]),
			FeedbackGestor: row["FeedbackGestor"],
			GestorID:       play_sql.ToInt64(row["GestorId"]),
			DataCriacao:    row["DataCriacao"],
		}
	}

	rows, err := play_sql.QueryRows(ctx, `
		SELECT Id, Titulo, Objetivos, Acoes, PrazoConclusao, Status, DataCriacao
		FROM PDIs WHERE AvaliacaoId = ? ORDER BY DataCriacao, Id`, a.ID)
	if err != nil {
		return err
	}
	for _, r := range rows {
		a.PDIs = append(a.PDIs, PDI{
			ID:             play_sql.ToInt64(r["Id"]),
			Titulo:         r["Titulo"],
			Objetivos:      r["Objetivos"],
			Acoes:          r["Acoes"],
			PrazoConclusao: day(r["PrazoConclusao"]),
			Status:         r["Status"],
			DataCriacao:    r["DataCriacao"],
		})
	}
	return nil
}

// CriarInput is the body of POST /avaliacoes/desempenho/criar. Without
// Perguntas the active question bank is copied.
type CriarInput struct {
	UserIDs    []int64         `json:"userIds"`
	Titulo     string          `json:"titulo"`
	DataLimite string          `json:"dataLimite"`
	Perguntas  []PerguntaInput `json:"perguntas"`
}

// Criar opens one evaluation per collaborator, each with its own copy of the
// questions, and returns the ids. Nothing is stored when any insert fails.
func Criar(ctx context.Context, criadoPor int64, in CriarInput) ([]int64, error) {
	in.Titulo = strings.TrimSpace(in.Titulo)
	userIDs := uniqueIDs(in.UserIDs)
	if len(userIDs) == 0 || in.Titulo == "" {
		return nil, ErrDadosInvalidos
	}
	var limite any
	if in.DataLimite != "" {
		t, ok := play_sql.ParseTime(in.DataLimite)
		if !ok {
			return nil, ErrDadosInvalidos
		}
		limite = t.Format(play_sql.DateLayout)
	}

	perguntas := make([]Pergunta, 0, len(in.Perguntas))
	for i, p := range in.Perguntas {
		q, err := p.normalize()
		if err != nil {
			return nil, err
		}
		if q.Ordem == 0 {
			q.Ordem = i + 1
		}
		perguntas = append(perguntas, q)
	}
	if len(perguntas) == 0 {
		banco, err := Banco(ctx)
		if err != nil {
			return nil, err
		}
		if len(banco) == 0 {
			return nil, ErrSemQuestionario
		}
		perguntas = banco
	}

	gestores := map[int64]int64{}
	for _, userID := range userIDs {
		gestorID, err := gestorOf(ctx, userID)
		if err != nil {
			logger.L().Warn("gestor da avaliação de desempenho não encontrado", zap.Int64("user_id", userID), zap.Error(err))
		}
		gestores[userID] = gestorID
	}

	ids := make([]int64, 0, len(userIDs))
	err := play_sql.WithTx(ctx, func(tx *sql.Tx) error {
		now := play_sql.Now()
		for _, userID := range userIDs {
			var gestor any
			if g := gestores[userID]; g > 0 {
				gestor = g
			}
			id, err := play_sql.InsertOn(ctx, tx, `
				INSERT INTO AvaliacoesDesempenho
					(UserId, GestorId, Titulo, DataLimiteAutoAvaliacao, DataLimiteGestor, CriadoPor, Status, DataCriacao)
				VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
				userID, gestor, in.Titulo, limite, limite, criadoPor, Pendente, now)
			if err != nil {
				return err
			}
			for _, p := range perguntas {
				if err := copyPergunta(ctx, tx, id, p); err != nil {
					return err
				}
			}
			ids = append(ids, id)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return ids, nil
}

// gestorOf resolves the manager of the user's cost center. Zero means none.
func gestorOf(ctx context.Context, userID int64) (int64, error) {
	row, found, err := play_sql.QueryRow(ctx, "SELECT Departamento FROM Users WHERE Id = ?", userID)
	if err != nil || !found {
		return 0, err
	}
	dep := strings.TrimSpace(row["Departamento"])
	if dep == "" {
		return 0, nil
	}
	gestorID, found, err := auth.ManagerUserID(ctx, dep, dep)
	if err != nil || !found || gestorID == userID {
		return 0, err
	}
	return gestorID, nil
}

func copyPergunta(ctx context.Context, tx *sql.Tx, avaliacaoID int64, p Pergunta) error {
	pid, err := play_sql.InsertOn(ctx, tx, `
		INSERT INTO PerguntasAvaliacaoDesempenho
			(AvaliacaoId, Texto, Tipo, Obrigatoria, Ordem, EscalaMinima, EscalaMaxima, EscalaLabelMinima, EscalaLabelMaxima)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		avaliacaoID, p.Texto, p.Tipo, flag(p.Obrigatoria), p.Ordem,
		nullInt(p.EscalaMinima), nullInt(p.EscalaMaxima), nullString(p.EscalaLabelMinima), nullString(p.EscalaLabelMaxima))
	if err != nil {
		return err
	}
	if p.Tipo != MultiplaEscolha {
		return nil
	}
	for i, opcao := range p.Opcoes {
		if _, err := play_sql.ExecOn(ctx, tx,
			"INSERT INTO OpcoesPerguntasAvaliacaoDesempenho (PerguntaId, TextoOpcao, Ordem) VALUES (?, ?, ?)",
			pid, opcao, i+1); err != nil {
			return err
		}
	}
	return nil
}

type RespostaInput struct {
	PerguntaID    int64  `json:"perguntaId"`
	Resposta      string `json:"resposta"`
	Justificativa string `json:"justificativa"`
}

// Responder stores the answers of one side and moves the evaluation to the
// status that follows from who has answered every question.
func Responder(ctx context.Context, a *Avaliacao, party string, respostas []RespostaInput) (string, error) {
	switch a.Status {
	case Calibragem, AguardandoFeedback, AguardandoPDI, Concluida:
		return "", ErrEncerrada
	}
	if len(respostas) == 0 {
		return "", ErrSemRespostas
	}
	campo, data := "RespostaColaborador", "DataRespostaColaborador"
	if party == Gestor {
		campo, data = "RespostaGestor", "DataRespostaGestor"
	}

	var status string
	err := play_sql.WithTx(ctx, func(tx *sql.Tx) error {
		validas, err := perguntaIDsOn(ctx, tx, a.ID)
		if err != nil {
			return err
		}
		now := play_sql.Now()
		for _, r := range respostas {
			if !validas[r.PerguntaID] {
				return ErrRespostaInvalida
			}
			row, found, err := play_sql.RowOn(ctx, tx,
				"SELECT Id FROM RespostasDesempenho WHERE AvaliacaoId = ? AND PerguntaId = ?", a.ID, r.PerguntaID)
			if err != nil {
				return err
			}
			if found {
				_, err = play_sql.ExecOn(ctx, tx,
					"UPDATE RespostasDesempenho SET "+campo+" = ?, "+data+" = ? WHERE Id = ?",
					r.Resposta, now, play_sql.ToInt64(row["Id"]))
			} else {
				_, err = play_sql.ExecOn(ctx, tx,
					"INSERT INTO RespostasDesempenho (AvaliacaoId, PerguntaId, "+campo+", "+data+") VALUES (?, ?, ?, ?)",
					a.ID, r.PerguntaID, r.Resposta, now)
			}
			if err != nil {
				return err
			}
		}

		row, _, err := play_sql.RowOn(ctx, tx, `
			SELECT
				(SELECT COUNT(*) FROM PerguntasAvaliacaoDesempenho WHERE AvaliacaoId = ?) AS total,
				(SELECT COUNT(*) FROM RespostasDesempenho WHERE AvaliacaoId = ? AND RespostaColaborador IS NOT NULL) AS colaborador,
				(SELECT COUNT(*) FROM RespostasDesempenho WHERE AvaliacaoId = ? AND RespostaGestor IS NOT NULL) AS gestor`,
			a.ID, a.ID, a.ID)
		if err != nil {
			return err
		}
		total := play_sql.ToInt(row["total"])
		status = nextStatus(play_sql.ToInt(row["colaborador"]) >= total, play_sql.ToInt(row["gestor"]) >= total)
		_, err = play_sql.ExecOn(ctx, tx, "UPDATE AvaliacoesDesempenho SET Status = ? WHERE Id = ?", status, a.ID)
		return err
	})
	if err != nil {
		return "", err
	}
	return status, nil
}

func nextStatus(colaborador, gestor bool) string {
	switch {
	case colaborador && gestor:
		return Calibragem
	case colaborador:
		return AguardandoGestor
	case gestor:
		return AguardandoColaborador
	}
	return Pendente
}

func perguntaIDsOn(ctx context.Context, q play_sql.Querier, avaliacaoID int64) (map[int64]bool, error) {
	rows, err := play_sql.Rows(ctx, q, "SELECT Id FROM PerguntasAvaliacaoDesempenho WHERE AvaliacaoId = ?", avaliacaoID)
	if err != nil {
		return nil, err
	}
	out := make(map[int64]bool, len(rows))
	for _, r := range rows {
		out[play_sql.ToInt64(r["Id"])] = true
	}
	return out, nil
}

// Calibrar records HR's calibrated answers and final notes. The evaluation
// then waits for the manager feedback.
func Calibrar(ctx context.Context, a *Avaliacao, criadoPor int64, respostas []RespostaInput, consideracoes string) error {
	if a.Status != Calibragem && a.Status != AguardandoFeedback {
		return ErrNaoCalibravel
	}
	consideracoes = strings.TrimSpace(consideracoes)
	return play_sql.WithTx(ctx, func(tx *sql.Tx) error {
		now := play_sql.Now()
		for _, r := range respostas {
			if _, err := play_sql.ExecOn(ctx, tx, `
				UPDATE RespostasDesempenho
				SET RespostaCalibrada = ?, JustificativaCalibrada = ?, DataRespostaCalibrada = ?
				WHERE AvaliacaoId = ? AND PerguntaId = ?`,
				r.Resposta, nullString(r.Justificativa), now, a.ID, r.PerguntaID); err != nil {
				return err
			}
		}
		if consideracoes != "" {
			n, err := play_sql.ExecOn(ctx, tx,
				"UPDATE CalibragemConsideracoes SET ConsideracoesFinais = ?, DataAtualizacao = ? WHERE AvaliacaoId = ?",
				consideracoes, now, a.ID)
			if err != nil {
				return err
			}
			if n == 0 {
				if _, err := play_sql.ExecOn(ctx, tx, `
					INSERT INTO CalibragemConsideracoes (AvaliacaoId, ConsideracoesFinais, CriadoPor, DataCriacao, DataAtualizacao)
					VALUES (?, ?, ?, ?, ?)`, a.ID, consideracoes, criadoPor, now, now); err != nil {
					return err
				}
			}
		}
		_, err := play_sql.ExecOn(ctx, tx, "UPDATE AvaliacoesDesempenho SET Status = ? WHERE Id = ?", AguardandoFeedback, a.ID)
		return err
	})
}

type PDIInput struct {
	Titulo         string `json:"titulo"`
	Objetivos      string `json:"objetivos"`
	Acoes          string `json:"acoes"`
	PrazoRevisao   string `json:"prazoRevisao"`
	PrazoConclusao string `json:"prazoConclusao"`
}

// FeedbackPDI stores the manager feedback, opens the PDI linked to the
// evaluation and concludes it. It returns the PDI id.
func FeedbackPDI(ctx context.Context, a *Avaliacao, gestorID int64, feedback string, pdi PDIInput) (int64, error) {
	if a.Status == Concluida {
		return 0, ErrJaConcluida
	}
	feedback = strings.TrimSpace(feedback)
	if feedback == "" {
		return 0, ErrFeedbackVazio
	}
	prazo := pdi.PrazoRevisao
	if prazo == "" {
		prazo = pdi.PrazoConclusao
	}
	t, ok := play_sql.ParseTime(prazo)
	if strings.TrimSpace(pdi.Objetivos) == "" || strings.TrimSpace(pdi.Acoes) == "" || !ok {
		return 0, ErrPDIIncompleto
	}
	titulo := strings.TrimSpace(pdi.Titulo)
	if titulo == "" {
		titulo = "PDI - Avaliação " + play_sql.ToString(a.ID)
	}

	var gestor any
	if a.GestorID > 0 {
		gestor = a.GestorID
	}
	var pdiID int64
	err := play_sql.WithTx(ctx, func(tx *sql.Tx) error {
		now := play_sql.Now()
		if _, err := play_sql.ExecOn(ctx, tx,
			"INSERT INTO FeedbacksAvaliacaoDesempenho (AvaliacaoId, FeedbackGestor, GestorId, DataCriacao) VALUES (?, ?, ?, ?)",
			a.ID, feedback, gestorID, now); err != nil {
			return err
		}
		var err error
		pdiID, err = play_sql.InsertOn(ctx, tx, `
			INSERT INTO PDIs (UserId, GestorId, AvaliacaoId, Titulo, Objetivos, Acoes, PrazoConclusao, Status, Progresso, DataCriacao, DataAtualizacao)
			VALUES (?, ?, ?, ?, ?, ?, ?, 'Ativo', 0, ?, ?)`,
			a.UserID, gestor, a.ID, titulo, strings.TrimSpace(pdi.Objetivos), strings.TrimSpace(pdi.Acoes),
			t.Format(play_sql.DateLayout), now, now)
		if err != nil {
			return err
		}
		_, err = play_sql.ExecOn(ctx, tx, "UPDATE AvaliacoesDesempenho SET Status = ? WHERE Id = ?", Concluida, a.ID)
		return err
	})
	if err != nil {
		return 0, err
	}
	return pdiID, nil
}

type Resposta struct {
	ID                     int64  `json:"Id"`
	PerguntaID             int64  `json:"PerguntaId"`
	PerguntaTexto          string `json:"PerguntaTexto"`
	TipoPergunta           string `json:"TipoPergunta"`
	RespostaColaborador    string `json:"RespostaColaborador"`
	RespostaGestor         string `json:"RespostaGestor"`
	RespostaCalibrada      string `json:"RespostaCalibrada"`
	JustificativaCalibrada string `json:"JustificativaCalibrada"`
}

// Respostas lists the answers joined with their questions in question order.
func Respostas(ctx context.Context, avaliacaoID int64) ([]Resposta, error) {
	rows, err := play_sql.QueryRows(ctx, `
		SELECT r.Id, r.PerguntaId, p.Texto AS PerguntaTexto, p.Tipo AS TipoPergunta,
		       r.RespostaColaborador, r.RespostaGestor, r.RespostaCalibrada, r.JustificativaCalibrada
		FROM RespostasDesempenho r
		JOIN PerguntasAvaliacaoDesempenho p ON p.Id = r.PerguntaId
		WHERE r.AvaliacaoId = ?
		ORDER BY p.Ordem, p.Id`, avaliacaoID)
	if err != nil {
		return nil, err
	}
	out := make([]Resposta, 0, len(rows))
	for _, r := range rows {
		out = append(out, Resposta{
			ID:                     play_sql.ToInt64(r["Id"]),
			PerguntaID:             play_sql.ToInt64(r["PerguntaId"]),
			PerguntaTexto:          r["PerguntaTexto"],
			TipoPergunta:           r["TipoPergunta"],
			RespostaColaborador:    r["RespostaColaborador"],
			RespostaGestor:         r["RespostaGestor"],
			RespostaCalibrada:      r["RespostaCalibrada"],
			JustificativaCalibrada: r["JustificativaCalibrada"],
		})
	}
	return out, nil
}

func uniqueIDs(ids []int64) []int64 {
	seen := map[int64]bool{}
	out := []int64{}
	for _, id := range ids {
		if id > 0 && !seen[id] {
			seen[id] = true
			out = append(out, id)
		}
	}
	return out
}

func flag(v bool) int {
	if v {
		return 1
	}
	return 0
}

func nullInt(v *int) any {
	if v == nil {
		return nil
	}
	return *v
}

func nullString(v string) any {
	if v == "" {
		return nil
	}
	return v
}

func intPtr(raw string) *int {
	if raw == "" {
		return nil
	}
	v := play_sql.ToInt(raw)
	return &v
}

func decodeOpcoes(raw string) []string {
	out := []string{}
	if raw == "" {
		return out
	}
	if err := json.Unmarshal([]byte(raw), &out); err != nil {
		return []string{}
	}
	return out
}
