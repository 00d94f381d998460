package objetivos

import (
	"context"
	"database/sql"
	"errors"
	"sort"
	"strings"

	"lumigente_backend/main/play_sql"
	"lumigente_backend/users/access"
	"lumigente_backend/users/auth"
)

const (
	Agendado            = "Agendado"
	Ativo               = "Ativo"
	Concluido           = "Concluído"
	AguardandoAprovacao = "Aguardando Aprovação"
	Expirado            = "Expirado"
)

var ErrNotFound = errors.New("objetivo não encontrado")

// Error is a validation failure whose text is shown to the user as is.
type Error string

func (e Error) Error() string { return string(e) }

type Responsavel struct {
	ID                    int64  `json:"Id"`
	NomeCompleto          string `json:"NomeCompleto"`
	Departamento          string `json:"Departamento"`
	DescricaoDepartamento string `json:"DescricaoDepartamento"`
}

type Objetivo struct {
	ID           int64         `json:"Id"`
	Titulo       string        `json:"titulo"`
	Descricao    string        `json:"descricao"`
	CriadoPor    int64         `json:"criado_por"`
	CriadorNome  string        `json:"criador_nome"`
	DataInicio   string        `json:"data_inicio"`
	DataFim      string        `json:"data_fim"`
	Status       string        `json:"status"`
	Progresso    float64       `json:"progresso"`
	CreatedAt    string        `json:"created_at"`
	UpdatedAt    string        `json:"updated_at"`
	Responsaveis []Responsavel `json:"shared_responsaveis"`

	// First responsible, kept flat for the list cards.
	ResponsavelID   int64  `json:"responsavel_id,omitempty"`
	ResponsavelNome string `json:"responsavel_nome,omitempty"`
}

// Participant reports whether the user created the objective or is one of its responsáveis.
func (o *Objetivo) Participant(userID int64) bool {
	if o.CriadoPor == userID {
		return true
	}
	for _, r := range o.Responsaveis {
		if r.ID == userID {
			return true
		}
	}
	return false
}

// recipients are the creator and the responsáveis, the actor excluded.
func (o *Objetivo) recipients(actorID int64) []int64 {
	seen := map[int64]bool{actorID: true}
	out := []int64{}
	for _, id := range append([]int64{o.CriadoPor}, responsavelIDs(o.Responsaveis)...) {
		if !seen[id] {
			seen[id] = true
			out = append(out, id)
		}
	}
	return out
}

func responsavelIDs(list []Responsavel) []int64 {
	out := make([]int64, 0, len(list))
	for _, r := range list {
		out = append(out, r.ID)
	}
	return out
}

// Input is the body of create and update.
type Input struct {
	Titulo          string  `json:"titulo"`
	Descricao       string  `json:"descricao"`
	DataInicio      string  `json:"data_inicio"`
	DataFim         string  `json:"data_fim"`
	ResponsaveisIDs []int64 `json:"responsaveis_ids"`
}

func (in *Input) normalize() error {
	in.Titulo = strings.TrimSpace(in.Titulo)
	in.Descricao = strings.TrimSpace(in.Descricao)
	in.ResponsaveisIDs = uniqueIDs(in.ResponsaveisIDs)
	if in.Titulo == "" || len(in.ResponsaveisIDs) == 0 || in.DataInicio == "" || in.DataFim == "" {
		return Error("Título, responsável(is), data de início e data de fim são obrigatórios.")
	}
	inicio, ok1 := play_sql.ParseTime(in.DataInicio)
	fim, ok2 := play_sql.ParseTime(in.DataFim)
	if !ok1 || !ok2 {
		return Error("Datas inválidas.")
	}
	if fim.Before(inicio) {
		return Error("A data de fim deve ser igual ou posterior à data de início.")
	}
	in.DataInicio = inicio.Format(play_sql.DateLayout)
	in.DataFim = fim.Format(play_sql.DateLayout)
	return nil
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

// statusFor derives the status from the dates. Dates are YYYY-MM-DD so they
// compare as strings.
func statusFor(inicio, fim string) string {
	today := play_sql.Today()
	switch {
	case inicio > today:
		return Agendado
	case fim < today:
		return Expirado
	}
	return Ativo
}

// Create stores the objective with its responsáveis and returns its id.
func Create(ctx context.Context, creatorID int64, in Input) (int64, error) {
	if err := in.normalize(); err != nil {
		return 0, err
	}
	status := Ativo
	if in.DataInicio > play_sql.Today() {
		status = Agendado
	}
	now := play_sql.Now()
	var id int64
	err := play_sql.WithTx(ctx, func(tx *sql.Tx) error {
		var err error
		id, err = play_sql.InsertOn(ctx, tx, `
			INSERT INTO Objetivos (titulo, descricao, data_inicio, data_fim, status, progresso, criado_por, created_at, updated_at)
			VALUES (?, ?, ?, ?, ?, 0, ?, ?, ?)`,
			in.Titulo, in.Descricao, in.DataInicio, in.DataFim, status, creatorID, now, now)
		if err != nil {
			return err
		}
		return setResponsaveis(ctx, tx, id, in.ResponsaveisIDs)
	})
	return id, err
}

func setResponsaveis(ctx context.Context, tx *sql.Tx, objetivoID int64, ids []int64) error {
	if _, err := play_sql.ExecOn(ctx, tx, "DELETE FROM ObjetivoResponsaveis WHERE objetivo_id = ?", objetivoID); err != nil {
		return err
	}
	now := play_sql.Now()
	for _, rid := range ids {
		if _, err := play_sql.ExecOn(ctx, tx,
			"INSERT INTO ObjetivoResponsaveis (objetivo_id, responsavel_id, created_at) VALUES (?, ?, ?)",
			objetivoID, rid, now); err != nil {
			return err
		}
	}
	return nil
}

const selectObjetivo = `
	SELECT o.Id, o.titulo, o.descricao, o.criado_por, o.data_inicio, o.data_fim, o.status,
		o.progresso, o.created_at, o.updated_at, c.NomeCompleto AS criador_nome
	FROM Objetivos o
	LEFT JOIN Users c ON o.criado_por = c.Id`

func objetivoFrom(row map[string]string) Objetivo {
	return Objetivo{
		ID:          play_sql.ToInt64(row["Id"]),
		Titulo:      row["titulo"],
		Descricao:   row["descricao"],
		CriadoPor:   play_sql.ToInt64(row["criado_por"]),
		CriadorNome: row["criador_nome"],
		DataInicio:  dateOnly(row["data_inicio"]),
		DataFim:     dateOnly(row["data_fim"]),
		Status:      row["status"],
		Progresso:   play_sql.ToFloat(row["progresso"]),
		CreatedAt:   row["created_at"],
		UpdatedAt:   row["updated_at"],
	}
}

func dateOnly(raw string) string {
	if t, ok := play_sql.ParseTime(raw); ok {
		return t.Format(play_sql.DateLayout)
	}
	return raw
}

func (o *Objetivo) loadResponsaveis(ctx context.Context) error {
	rows, err := play_sql.QueryRows(ctx, `
		SELECT u.Id, u.NomeCompleto, u.Departamento, u.DescricaoDepartamento
		FROM ObjetivoResponsaveis r
		JOIN Users u ON u.Id = r.responsavel_id
		WHERE r.objetivo_id = ?
		ORDER BY r.Id`, o.ID)
	if err != nil {
		return err
	}
	o.Responsaveis = make([]Responsavel, 0, len(rows))
	for _, r := range rows {
		o.Responsaveis = append(o.Responsaveis, Responsavel{
			ID:                    play_sql.ToInt64(r["Id"]),
			NomeCompleto:          r["NomeCompleto"],
			Departamento:          r["Departamento"],
			DescricaoDepartamento: r["DescricaoDepartamento"],
		})
	}
	if len(o.Responsaveis) > 0 {
		o.ResponsavelID = o.Responsaveis[0].ID
		o.ResponsavelNome = o.Responsaveis[0].NomeCompleto
	}
	return nil
}

// Get loads one objective with its responsáveis.
func Get(ctx context.Context, id int64) (*Objetivo, error) {
	row, found, err := play_sql.QueryRow(ctx, selectObjetivo+" WHERE o.Id = ?", id)
	if err != nil {
		return nil, err
	}
	if !found {
		return nil, ErrNotFound
	}
	o := objetivoFrom(row)
	if err := o.loadResponsaveis(ctx); err != nil {
		return nil, err
	}
	return &o, nil
}

type Filter struct {
	Status      string
	Responsavel int64
	Search      string
}

// List returns the objectives the user created or is responsible for, newest
// first. Full access users see every objective.
func List(ctx context.Context, u *access.User, f Filter) ([]Objetivo, error) {
	query := selectObjetivo + " WHERE 1 = 1"
	args := []any{}
	if !u.FullAccess() {
		query += ` AND (o.criado_por = ? OR o.Id IN (SELECT objetivo_id FROM ObjetivoResponsaveis WHERE responsavel_id = ?))`
		args = append(args, u.ID, u.ID)
	}
	if f.Status != "" {
		query += " AND o.status = ?"
		args = append(args, f.Status)
	}
	if f.Responsavel > 0 {
		query += " AND o.Id IN (SELECT objetivo_id FROM ObjetivoResponsaveis WHERE responsavel_id = ?)"
		args = append(args, f.Responsavel)
	}
	if s := strings.TrimSpace(f.Search); s != "" {
		query += " AND (LOWER(o.titulo) LIKE LOWER(?) OR LOWER(o.descricao) LIKE LOWER(?))"
		args = append(args, "%"+s+"%", "%"+s+"%")
	}
	query += " ORDER BY o.created_at DESC, o.Id DESC"

	rows, err := play_sql.QueryRows(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	out := make([]Objetivo, 0, len(rows))
	for _, r := range rows {
		o := objetivoFrom(r)
		if err := o.loadResponsaveis(ctx); err != nil {
			return nil, err
		}
		out = append(out, o)
	}
	return out, nil
}

// Update rewrites the objective and returns its new status. Concluded and
// pending approval objectives keep their status; the rest follow the dates.
func Update(ctx context.Context, o *Objetivo, in Input) (string, error) {
	if err := in.normalize(); err != nil {
		return "", err
	}
	status := o.Status
	if status != Concluido && status != AguardandoAprovacao {
		status = statusFor(in.DataInicio, in.DataFim)
	}
	err := play_sql.WithTx(ctx, func(tx *sql.Tx) error {
		if _, err := play_sql.ExecOn(ctx, tx, `
			UPDATE Objetivos SET titulo = ?, descricao = ?, data_inicio = ?, data_fim = ?, status = ?, updated_at = ?
			WHERE Id = ?`,
			in.Titulo, in.Descricao, in.DataInicio, in.DataFim, status, play_sql.Now(), o.ID); err != nil {
			return err
		}
		return setResponsaveis(ctx, tx, o.ID, in.ResponsaveisIDs)
	})
	return status, err
}

// Delete removes the objective with its check-ins and responsáveis.
func Delete(ctx context.Context, id int64) error {
	return play_sql.WithTx(ctx, func(tx *sql.Tx) error {
		for _, q := range []string{
			"DELETE FROM ObjetivoCheckins WHERE objetivo_id = ?",
			"DELETE FROM ObjetivoResponsaveis WHERE objetivo_id = ?",
			"DELETE FROM Objetivos WHERE Id = ?",
		} {
			if _, err := play_sql.ExecOn(ctx, tx, q, id); err != nil {
				return err
			}
		}
		return nil
	})
}

type Checkin struct {
	ID          int64   `json:"Id"`
	ObjetivoID  int64   `json:"objetivo_id"`
	UserID      int64   `json:"user_id"`
	UserName    string  `json:"user_name"`
	Progresso   float64 `json:"progresso"`
	Observacoes string  `json:"observacoes"`
	CreatedAt   string  `json:"created_at"`
}

// Check-in notes written by the system rather than a person.
const (
	notePending  = "[SISTEMA] Check-in de 100% enviado para aprovação do gestor."
	noteApproved = "[SISTEMA] Conclusão aprovada pelo gestor."
	noteRejected = "[SISTEMA] Conclusão rejeitada pelo gestor. Motivo: "
)

func addCheckin(ctx context.Context, tx *sql.Tx, objetivoID, userID int64, progresso float64, note string) error {
	_, err := play_sql.ExecOn(ctx, tx,
		"INSERT INTO ObjetivoCheckins (objetivo_id, user_id, progresso, observacoes, created_at) VALUES (?, ?, ?, ?, ?)",
		objetivoID, userID, progresso, note, play_sql.Now())
	return err
}

type CheckinResult struct {
	StatusUpdate  string
	NeedsApproval bool
}

// RecordCheckin stores a progress update. Reaching 100% concludes the
// objective when the creator reports it; anyone else sends it for approval.
func RecordCheckin(ctx context.Context, o *Objetivo, userID int64, progresso float64, observacoes string) (CheckinResult, error) {
	if progresso < 0 || progresso > 100 {
		return CheckinResult{}, Error("Progresso deve ser entre 0 e 100")
	}
	var res CheckinResult
	err := play_sql.WithTx(ctx, func(tx *sql.Tx) error {
		if err := addCheckin(ctx, tx, o.ID, userID, progresso, strings.TrimSpace(observacoes)); err != nil {
			return err
		}
		status := o.Status
		switch {
		case progresso >= 100 && userID == o.CriadoPor:
			status = Concluido
			res.StatusUpdate = "Objetivo concluído!"
		case progresso >= 100:
			status = AguardandoAprovacao
			res.StatusUpdate = "Objetivo aguardando aprovação do gestor"
			res.NeedsApproval = true
			if err := addCheckin(ctx, tx, o.ID, userID, progresso, notePending); err != nil {
				return err
			}
		}
		_, err := play_sql.ExecOn(ctx, tx,
			"UPDATE Objetivos SET status = ?, progresso = ?, updated_at = ? WHERE Id = ?",
			status, progresso, play_sql.Now(), o.ID)
		return err
	})
	return res, err
}

// Checkins lists the objective's check-ins, newest first.
func Checkins(ctx context.Context, objetivoID int64) ([]Checkin, error) {
	rows, err := play_sql.QueryRows(ctx, `
		SELECT oc.Id, oc.objetivo_id, oc.user_id, oc.progresso, oc.observacoes, oc.created_at, u.NomeCompleto AS user_name
		FROM ObjetivoCheckins oc
		JOIN Users u ON oc.user_id = u.Id
		WHERE oc.objetivo_id = ?
		ORDER BY oc.created_at DESC, oc.Id DESC`, objetivoID)
	if err != nil {
		return nil, err
	}
	out := make([]Checkin, 0, len(rows))
	for _, r := range rows {
		out = append(out, Checkin{
			ID:          play_sql.ToInt64(r["Id"]),
			ObjetivoID:  play_sql.ToInt64(r["objetivo_id"]),
			UserID:      play_sql.ToInt64(r["user_id"]),
			UserName:    r["user_name"],
			Progresso:   play_sql.ToFloat(r["progresso"]),
			Observacoes: r["observacoes"],
			CreatedAt:   r["created_at"],
		})
	}
	return out, nil
}

// Approve concludes the objective at 100%.
func Approve(ctx context.Context, o *Objetivo, approverID int64) error {
	return play_sql.WithTx(ctx, func(tx *sql.Tx) error {
		if _, err := play_sql.ExecOn(ctx, tx,
			"UPDATE Objetivos SET status = ?, progresso = 100, updated_at = ? WHERE Id = ?",
			Concluido, play_sql.Now(), o.ID); err != nil {
			return err
		}
		return addCheckin(ctx, tx, o.ID, approverID, 100, noteApproved)
	})
}

// Reject puts the objective back to Ativo at the latest progress reported
// below 100% and returns that progress.
func Reject(ctx context.Context, o *Objetivo, approverID int64, motivo string) (float64, error) {
	motivo = strings.TrimSpace(motivo)
	if motivo == "" {
		return 0, Error("Informe o motivo da rejeição.")
	}
	var previous float64
	err := play_sql.WithTx(ctx, func(tx *sql.Tx) error {
		row, found, err := play_sql.RowOn(ctx, tx, `
			SELECT progresso FROM ObjetivoCheckins
			WHERE objetivo_id = ? AND progresso < 100
			ORDER BY created_at DESC, Id DESC
			LIMIT 1`, o.ID)
		if err != nil {
			return err
		}
		if found {
			previous = play_sql.ToFloat(row["progresso"])
		}
		if _, err := play_sql.ExecOn(ctx, tx,
			"UPDATE Objetivos SET status = ?, progresso = ?, updated_at = ? WHERE Id = ?",
			Ativo, previous, play_sql.Now(), o.ID); err != nil {
			return err
		}
		return addCheckin(ctx, tx, o.ID, approverID, previous, noteRejected+motivo+".")
	})
	return previous, err
}

// Filters lists the statuses in use and who the user may assign objectives
// to: themselves, plus their team when they manage one.
func Filters(ctx context.Context, u *access.User) ([]string, []Responsavel, error) {
	rows, err := play_sql.QueryRows(ctx,
		"SELECT DISTINCT status FROM Objetivos WHERE status IS NOT NULL AND status <> '' ORDER BY status")
	if err != nil {
		return nil, nil, err
	}
	statuses := make([]string, 0, len(rows))
	for _, r := range rows {
		statuses = append(statuses, r["status"])
	}

	ids := []int64{u.ID}
	if u.IsManager() {
		team, err := auth.TeamUserIDs(ctx, u)
		if err != nil {
			return nil, nil, err
		}
		ids = append(ids, team...)
	}
	rows, err = play_sql.QueryRows(ctx, `
		SELECT Id, NomeCompleto, Departamento, DescricaoDepartamento FROM Users
		WHERE Id IN (`+play_sql.InClause(len(ids))+`)`, play_sql.Args(ids)...)
	if err != nil {
		return nil, nil, err
	}
	people := make([]Responsavel, 0, len(rows))
	for _, r := range rows {
		people = append(people, Responsavel{
			ID:                    play_sql.ToInt64(r["Id"]),
			NomeCompleto:          r["NomeCompleto"],
			Departamento:          r["Departamento"],
			DescricaoDepartamento: r["DescricaoDepartamento"],
		})
	}
	sort.SliceStable(people, func(i, j int) bool {
		return strings.ToLower(people[i].NomeCompleto) < strings.ToLower(people[j].NomeCompleto)
	})
	return statuses, people, nil
}
