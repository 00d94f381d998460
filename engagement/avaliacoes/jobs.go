package avaliacoes

import (
	"context"
	"database/sql"
	"time"

	"go.uber.org/zap"

	"lumigente_backend/engagement/notifications"
	"lumigente_backend/main/logger"
	"lumigente_backend/main/mailer"
	"lumigente_backend/main/play_sql"
	"lumigente_backend/users/auth"
)

const (
	// lookback bounds the admissions checked for missing evaluations.
	lookback = 100
	// openBefore is how many days before the deadline an evaluation opens.
	openBefore   = 10
	remindBefore = 3
)

type Created struct {
	Avaliacoes45 int `json:"avaliacoes45"`
	Avaliacoes90 int `json:"avaliacoes90"`
}

// CreateEvaluations creates the 45 and 90 day evaluations missing for recent
// admissions. Employees without a registered user or manager are skipped, as
// are evaluations whose deadline already passed.
func CreateEvaluations(ctx context.Context) (Created, error) {
	var out Created
	now := play_sql.Clock().Now()
	since := now.AddDate(0, 0, -lookback).Format(play_sql.DateLayout)
	today := now.Format(play_sql.DateLayout)

	rows, err := play_sql.QueryRows(ctx, `
		SELECT u.Id AS UserId, s.MATRICULA, s.DTA_ADMISSAO, s.CENTRO_CUSTO, s.DEPARTAMENTO
		FROM TAB_HIST_SRA s
		JOIN Users u ON u.Matricula = s.MATRICULA AND u.IsActive = 1
		WHERE s.STATUS_GERAL = 'ATIVO' AND s.DTA_ADMISSAO >= ?
		ORDER BY s.DTA_ADMISSAO DESC, u.Id`, since)
	if err != nil {
		return out, err
	}

	seen := map[int64]bool{}
	for _, r := range rows {
		userID := play_sql.ToInt64(r["UserId"])
		if seen[userID] {
			continue
		}
		seen[userID] = true
		admissao, ok := play_sql.ParseTime(r["DTA_ADMISSAO"])
		if !ok {
			continue
		}
		gestorID, found, err := auth.ManagerUserID(ctx, r["CENTRO_CUSTO"], r["DEPARTAMENTO"])
		if err != nil {
			return out, err
		}
		if !found || gestorID == userID {
			logger.L().Debug("avaliação sem gestor", zap.Int64("user_id", userID), zap.String("matricula", r["MATRICULA"]))
			continue
		}
		for _, tipo := range []int{Tipo45, Tipo90} {
			limite := Deadline(admissao, tipo).Format(play_sql.DateLayout)
			if limite < today {
				continue
			}
			n, err := play_sql.Count(ctx,
				"SELECT COUNT(*) FROM Avaliacoes WHERE UserId = ? AND TipoAvaliacaoId = ?", userID, tipo)
			if err != nil {
				return out, err
			}
			if n > 0 {
				continue
			}
			if _, err := create(ctx, userID, gestorID, tipo, r["MATRICULA"], admissao, limite); err != nil {
				return out, err
			}
			if tipo == Tipo45 {
				out.Avaliacoes45++
			} else {
				out.Avaliacoes90++
			}
		}
	}
	return out, nil
}

// create stores an Agendada evaluation with a copy of the active
// questionnaire of tipo.
func create(ctx context.Context, userID, gestorID int64, tipo int, matricula string, admissao time.Time, limite string) (int64, error) {
	var id int64
	err := play_sql.WithTx(ctx, func(tx *sql.Tx) error {
		now := play_sql.Now()
		var err error
		id, err = play_sql.InsertOn(ctx, tx, `
			INSERT INTO Avaliacoes
				(UserId, GestorId, TipoAvaliacaoId, Matricula, DataAdmissao, DataLimiteResposta, StatusAvaliacao,
				 RespostaColaboradorConcluida, RespostaGestorConcluida, CriadoEm, AtualizadoEm)
			VALUES (?, ?, ?, ?, ?, ?, ?, 0, 0, ?, ?)`,
			userID, gestorID, tipo, matricula, admissao.Format(play_sql.DateLayout), limite, Agendada, now, now)
		if err != nil {
			return err
		}
		questions, err := templateOn(ctx, tx, tipo)
		if err != nil {
			return err
		}
		for _, q := range questions {
			var min, max any
			if q.TipoPergunta == Escala {
				min, max = q.EscalaMinima, q.EscalaMaxima
			}
			pid, err := play_sql.InsertOn(ctx, tx, `
				INSERT INTO PerguntasAvaliacao
					(AvaliacaoId, Ordem, Pergunta, TipoPergunta, Obrigatoria,
					 EscalaMinima, EscalaMaxima, EscalaLabelMinima, EscalaLabelMaxima, CriadoEm)
				VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
				id, q.Ordem, q.Pergunta, q.TipoPergunta, q.Obrigatoria,
				min, max, q.EscalaLabelMinima, q.EscalaLabelMaxima, now)
			if err != nil {
				return err
			}
			if q.NumOpcoes == 0 {
				continue
			}
			opts, err := templateOptionsOn(ctx, tx, q.ID)
			if err != nil {
				return err
			}
			for _, o := range opts {
				if _, err := play_sql.ExecOn(ctx, tx,
					"INSERT INTO OpcoesPerguntasAvaliacao (PerguntaAvaliacaoId, TextoOpcao, Ordem) VALUES (?, ?, ?)",
					pid, o.TextoOpcao, o.Ordem); err != nil {
					return err
				}
			}
		}
		return nil
	})
	return id, err
}

// CreateJob runs CreateEvaluations as avaliacao_criar.
func CreateJob(ctx context.Context) error {
	c, err := CreateEvaluations(ctx)
	if err != nil {
		return err
	}
	logger.L().Info("avaliações criadas", zap.Int("45_dias", c.Avaliacoes45), zap.Int("90_dias", c.Avaliacoes90))
	return nil
}

type StatusChanges struct {
	Abertas   int
	Lembretes int
	Expiradas int
}

type pending struct {
	id          int64
	userID      int64
	gestorID    int64
	tipo        int
	limite      string
	colaborador bool
	gestor      bool
}

// waiting lists the parties that still have to answer.
func (p pending) waiting() []int64 {
	var out []int64
	if !p.colaborador {
		out = append(out, p.userID)
	}
	if !p.gestor && p.gestorID != 0 {
		out = append(out, p.gestorID)
	}
	return out
}

func pendingRows(ctx context.Context, where string, args ...any) ([]pending, error) {
	rows, err := play_sql.QueryRows(ctx, `
		SELECT Id, UserId, GestorId, TipoAvaliacaoId, DataLimiteResposta,
			RespostaColaboradorConcluida, RespostaGestorConcluida
		FROM Avaliacoes WHERE `+where+` ORDER BY Id`, args...)
	if err != nil {
		return nil, err
	}
	out := make([]pending, 0, len(rows))
	for _, r := range rows {
		out = append(out, pending{
			id:          play_sql.ToInt64(r["Id"]),
			userID:      play_sql.ToInt64(r["UserId"]),
			gestorID:    play_sql.ToInt64(r["GestorId"]),
			tipo:        play_sql.ToInt(r["TipoAvaliacaoId"]),
			limite:      day(r["DataLimiteResposta"]),
			colaborador: play_sql.ToBool(r["RespostaColaboradorConcluida"]),
			gestor:      play_sql.ToBool(r["RespostaGestorConcluida"]),
		})
	}
	return out, nil
}

func brDate(date string) string {
	t, ok := play_sql.ParseTime(date)
	if !ok {
		return date
	}
	return t.Format("02/01/2006")
}

// Sync moves evaluations along their lifecycle: Agendada ones open ten days
// before the deadline, parties still owing an answer are reminded three days
// before it, and anything open past the deadline becomes Expirada.
func Sync(ctx context.Context) (StatusChanges, error) {
	var ch StatusChanges
	now := play_sql.Clock().Now()
	today := now.Format(play_sql.DateLayout)
	openUntil := now.AddDate(0, 0, openBefore).Format(play_sql.DateLayout)
	remindOn := now.AddDate(0, 0, remindBefore).Format(play_sql.DateLayout)

	opening, err := pendingRows(ctx, "StatusAvaliacao = ? AND DataLimiteResposta >= ? AND DataLimiteResposta <= ?",
		Agendada, today, openUntil)
	if err != nil {
		return ch, err
	}
	for _, p := range opening {
		n, err := play_sql.Exec(ctx,
			"UPDATE Avaliacoes SET StatusAvaliacao = ?, AtualizadoEm = ? WHERE Id = ? AND StatusAvaliacao = ?",
			Pendente, play_sql.Now(), p.id, Agendada)
		if err != nil {
			return ch, err
		}
		if n == 0 {
			continue
		}
		ch.Abertas++
		label, prazo := Label(p.tipo), brDate(p.limite)
		notify(ctx, p.waiting(), notifications.AvaliacaoAberta,
			"Sua avaliação de "+label+" está disponível para resposta", p.id,
			func(to, name string) (mailer.Message, error) { return mailer.AvaliacaoAberta(to, name, label, prazo) })
	}

	reminding, err := pendingRows(ctx, "StatusAvaliacao = ? AND DataLimiteResposta = ?", Pendente, remindOn)
	if err != nil {
		return ch, err
	}
	for _, p := range reminding {
		label := Label(p.tipo)
		for _, uid := range p.waiting() {
			sent, err := play_sql.Count(ctx,
				"SELECT COUNT(*) FROM Notifications WHERE UserId = ? AND Type = ? AND RelatedId = ?",
				uid, notifications.AvaliacaoLembrete, p.id)
			if err != nil {
				return ch, err
			}
			if sent > 0 {
				continue
			}
			ch.Lembretes++
			notify(ctx, []int64{uid}, notifications.AvaliacaoLembrete,
				"Lembrete: Sua avaliação de "+label+" expira em 3 dias", p.id,
				func(to, name string) (mailer.Message, error) { return mailer.AvaliacaoLembrete(to, name, label) })
		}
	}

	expiring, err := pendingRows(ctx, "StatusAvaliacao IN (?, ?) AND DataLimiteResposta < ?", Agendada, Pendente, today)
	if err != nil {
		return ch, err
	}
	for _, p := range expiring {
		n, err := play_sql.Exec(ctx,
			"UPDATE Avaliacoes SET StatusAvaliacao = ?, AtualizadoEm = ? WHERE Id = ? AND StatusAvaliacao IN (?, ?)",
			Expirada, play_sql.Now(), p.id, Agendada, Pendente)
		if err != nil {
			return ch, err
		}
		if n == 0 {
			continue
		}
		ch.Expiradas++
		label := Label(p.tipo)
		notify(ctx, p.waiting(), notifications.AvaliacaoExpirada,
			"Sua avaliação de "+label+" expirou", p.id,
			func(to, name string) (mailer.Message, error) { return mailer.AvaliacaoExpirada(to, name, label) })
	}
	return ch, nil
}

func notify(ctx context.Context, userIDs []int64, typ, msg string, relatedID int64, compose notifications.Compose) {
	notifications.CreateMany(ctx, userIDs, typ, msg, relatedID)
	for _, uid := range userIDs {
		notifications.Mail(ctx, uid, compose)
	}
}

// UpdateStatus runs Sync as avaliacao_status.
func UpdateStatus(ctx context.Context) error {
	ch, err := Sync(ctx)
	if err != nil {
		return err
	}
	logger.L().Info("avaliações status",
		zap.Int("abertas", ch.Abertas), zap.Int("lembretes", ch.Lembretes), zap.Int("expiradas", ch.Expiradas))
	return nil
}
