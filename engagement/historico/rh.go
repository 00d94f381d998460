package historico

import (
	"context"
	"strings"

	"lumigente_backend/main/api"
	"lumigente_backend/main/play_sql"
)

const rhLimit = 500

// standardBadges are the badges the recognition form offers; "Outros"
// selects everything else.
var standardBadges = []string{"Inovador", "Colaborativo", "Dedicado", "Criativo"}

// RHFilter is the query string shared by the RH history views. Unused
// fields are ignored by each view.
type RHFilter struct {
	Status        string `form:"status"`
	ResponsavelID int64  `form:"responsavelId"`
	Type          string `form:"type"`
	Category      string `form:"category"`
	Badge         string `form:"badge"`
	Department    string `form:"department"`
	MinScore      int    `form:"minScore"`
	MaxScore      int    `form:"maxScore"`
	Search        string `form:"search"`
	DateStart     string `form:"dateStart"`
	DateEnd       string `form:"dateEnd"`
}

func selected(v string) bool {
	v = strings.TrimSpace(v)
	return v != "" && !strings.EqualFold(v, Todos)
}

type where struct {
	conds []string
	args  []any
}

func (w *where) add(cond string, args ...any) {
	w.conds = append(w.conds, cond)
	w.args = append(w.args, args...)
}

// search matches s against any of cols.
func (w *where) search(s string, cols ...string) {
	s = strings.TrimSpace(s)
	if s == "" {
		return
	}
	parts := make([]string, len(cols))
	for i, c := range cols {
		parts[i] = "LOWER(" + c + ") LIKE LOWER(?)"
		w.args = append(w.args, "%"+s+"%")
	}
	w.conds = append(w.conds, "("+strings.Join(parts, " OR ")+")")
}

// created bounds a DATETIME column by whole days.
func (w *where) created(col, start, end string) {
	if s, ok := play_sql.DayStart(start); ok {
		w.add(col+" >= ?", s)
	}
	if e, ok := play_sql.DayAfter(end); ok {
		w.add(col+" < ?", e)
	}
}

func (w where) clause() string {
	if len(w.conds) == 0 {
		return ""
	}
	return " WHERE " + strings.Join(w.conds, " AND ")
}

func day(v string) (string, bool) {
	t, ok := play_sql.ParseTime(v)
	if !ok {
		return "", false
	}
	return t.Format(play_sql.DateLayout), true
}

// Objetivos lists every objective for the HR history, newest first.
func Objetivos(ctx context.Context, f RHFilter) ([]api.JsonEncode, error) {
	var w where
	if selected(f.Status) {
		w.add("LOWER(o.status) = LOWER(?)", strings.TrimSpace(f.Status))
	}
	if f.ResponsavelID > 0 {
		w.add("EXISTS (SELECT 1 FROM ObjetivoResponsaveis ors WHERE ors.objetivo_id = o.Id AND ors.responsavel_id = ?)", f.ResponsavelID)
	}
	if d, ok := day(f.DateStart); ok {
		w.add("o.data_inicio >= ?", d)
	}
	if d, ok := day(f.DateEnd); ok {
		w.add("o.data_fim <= ?", d)
	}
	w.search(f.Search, "o.titulo", "o.descricao", "c.NomeCompleto")

	rows, err := play_sql.QueryRows(ctx, `
		SELECT o.Id, o.titulo, o.descricao, o.status, o.data_inicio, o.data_fim, o.progresso,
			o.created_at, o.updated_at, c.NomeCompleto AS criador_nome,
			(SELECT COUNT(*) FROM ObjetivoCheckins oc WHERE oc.objetivo_id = o.Id) AS total_checkins
		FROM Objetivos o
		LEFT JOIN Users c ON o.criado_por = c.Id`+w.clause()+`
		ORDER BY o.created_at DESC, o.Id DESC
		LIMIT ?`, append(w.args, rhLimit)...)
	if err != nil {
		return nil, err
	}
	ids := make([]int64, len(rows))
	for i, r := range rows {
		ids[i] = play_sql.ToInt64(r["Id"])
	}
	names, err := responsaveis(ctx, ids)
	if err != nil {
		return nil, err
	}
	out := make([]api.JsonEncode, 0, len(rows))
	for i, r := range rows {
		out = append(out, api.J(
			"Id", ids[i],
			"titulo", r["titulo"],
			"descricao", r["descricao"],
			"status", r["status"],
			"data_inicio", r["data_inicio"],
			"data_fim", r["data_fim"],
			"progresso", play_sql.ToFloat(r["progresso"]),
			"created_at", r["created_at"],
			"updated_at", r["updated_at"],
			"criador_nome", r["criador_nome"],
			"responsaveis", strings.Join(names[ids[i]], "; "),
			"total_checkins", play_sql.ToInt(r["total_checkins"]),
		))
	}
	return out, nil
}

func responsaveis(ctx context.Context, ids []int64) (map[int64][]string, error) {
	out := map[int64][]string{}
	if len(ids) == 0 {
		return out, nil
	}
	rows, err := play_sql.QueryRows(ctx, `
		SELECT ors.objetivo_id, u.NomeCompleto
		FROM ObjetivoResponsaveis ors
		JOIN Users u ON u.Id = ors.responsavel_id
		WHERE ors.objetivo_id IN (`+play_sql.InClause(len(ids))+`)
		ORDER BY ors.objetivo_id, ors.Id`, play_sql.Args(ids)...)
	if err != nil {
		return nil, err
	}
	for _, r := range rows {
		id := play_sql.ToInt64(r["objetivo_id"])
		out[id] = append(out[id], r["NomeCompleto"])
	}
	return out, nil
}

// Feedbacks lists every feedback for the HR history, newest first.
func Feedbacks(ctx context.Context, f RHFilter) ([]api.JsonEncode, error) {
	var w where
	if selected(f.Type) {
		w.add("LOWER(f.type) = LOWER(?)", strings.TrimSpace(f.Type))
	}
	if selected(f.Category) {
		w.add("LOWER(f.category) = LOWER(?)", strings.TrimSpace(f.Category))
	}
	w.created("f.created_at", f.DateStart, f.DateEnd)
	w.search(f.Search, "f.message", "uFrom.NomeCompleto", "uTo.NomeCompleto")

	rows, err := play_sql.QueryRows(ctx, `
		SELECT f.Id, f.type, f.category, f.message, f.created_at, f.from_user_id, f.to_user_id,
			uFrom.NomeCompleto AS from_name, uTo.NomeCompleto AS to_name,
			uFrom.Departamento AS from_department, uTo.Departamento AS to_department,
			(SELECT COUNT(*) FROM FeedbackReplies fr WHERE fr.feedback_id = f.Id) AS replies_count
		FROM Feedbacks f
		JOIN Users uFrom ON uFrom.Id = f.from_user_id
		JOIN Users uTo ON uTo.Id = f.to_user_id`+w.clause()+`
		ORDER BY f.created_at DESC, f.Id DESC
		LIMIT ?`, append(w.args, rhLimit)...)
	if err != nil {
		return nil, err
	}
	out := make([]api.JsonEncode, 0, len(rows))
	for _, r := range rows {
		out = append(out, api.J(
			"Id", play_sql.ToInt64(r["Id"]),
			"type", r["type"],
			"category", r["category"],
			"message", r["message"],
			"created_at", r["created_at"],
			"from_user_id", play_sql.ToInt64(r["from_user_id"]),
			"to_user_id", play_sql.ToInt64(r["to_user_id"]),
			"from_name", r["from_name"],
			"to_name", r["to_name"],
			"from_department", r["from_department"],
			"to_department", r["to_department"],
			"replies_count", play_sql.ToInt(r["replies_count"]),
		))
	}
	return out, nil
}

// FeedbackMessages returns the reply thread of a feedback, oldest first.
func FeedbackMessages(ctx context.Context, feedbackID int64) ([]api.JsonEncode, error) {
	rows, err := play_sql.QueryRows(ctx, `
		SELECT fr.Id, fr.user_id, fr.reply_text, fr.created_at,
			u.NomeCompleto AS user_name, u.Departamento AS department,
			fr.reply_to_id, fr.reply_to_message, fr.reply_to_user
		FROM FeedbackReplies fr
		JOIN Users u ON u.Id = fr.user_id
		WHERE fr.feedback_id = ?
		ORDER BY fr.created_at ASC, fr.Id ASC`, feedbackID)
	if err != nil {
		return nil, err
	}
	out := make([]api.JsonEncode, 0, len(rows))
	for _, r := range rows {
		var replyTo any
		if r["reply_to_id"] != "" {
			replyTo = play_sql.ToInt64(r["reply_to_id"])
		}
		out = append(out, api.J(
			"Id", play_sql.ToInt64(r["Id"]),
			"user_id", play_sql.ToInt64(r["user_id"]),
			"message", r["reply_text"],
			"created_at", r["created_at"],
			"user_name", r["user_name"],
			"department", r["department"],
			"reply_to_id", replyTo,
			"reply_to_message", r["reply_to_message"],
			"reply_to_user", r["reply_to_user"],
		))
	}
	return out, nil
}

// Reconhecimentos lists every recognition for the HR history, newest first.
func Reconhecimentos(ctx context.Context, f RHFilter) ([]api.JsonEncode, error) {
	var w where
	switch badge := strings.TrimSpace(f.Badge); {
	case badge == "Outros":
		w.add("r.badge NOT IN ("+play_sql.InClause(len(standardBadges))+")", play_sql.Args(standardBadges)...)
	case selected(badge):
		w.add("LOWER(r.badge) = LOWER(?)", badge)
	}
	w.search(f.Search, "r.message", "uFrom.NomeCompleto", "uTo.NomeCompleto")
	w.created("r.created_at", f.DateStart, f.DateEnd)

	rows, err := play_sql.QueryRows(ctx, `
		SELECT r.Id, r.badge, r.message, r.points, r.created_at,
			uFrom.NomeCompleto AS from_name, uFrom.Departamento AS from_department,
			uTo.NomeCompleto AS to_name, uTo.Departamento AS to_department
		FROM Recognitions r
		JOIN Users uFrom ON uFrom.Id = r.from_user_id
		JOIN Users uTo ON uTo.Id = r.to_user_id`+w.clause()+`
		ORDER BY r.created_at DESC, r.Id DESC
		LIMIT ?`, append(w.args, rhLimit)...)
	if err != nil {
		return nil, err
	}
	out := make([]api.JsonEncode, 0, len(rows))
	for _, r := range rows {
		out = append(out, api.J(
			"Id", play_sql.ToInt64(r["Id"]),
			"badge", r["badge"],
			"message", r["message"],
			"points", play_sql.ToInt(r["points"]),
			"created_at", r["created_at"],
			"from_name", r["from_name"],
			"from_department", r["from_department"],
			"to_name", r["to_name"],
			"to_department", r["to_department"],
		))
	}
	return out, nil
}

// Humor lists mood entries of active users for the HR history, newest first.
func Humor(ctx context.Context, f RHFilter) ([]api.JsonEncode, error) {
	var w where
	w.add("u.IsActive = 1")
	if selected(f.Department) {
		w.add("u.Departamento = ?", strings.TrimSpace(f.Department))
	}
	if f.MinScore > 0 {
		w.add("dm.score >= ?", f.MinScore)
	}
	if f.MaxScore > 0 {
		w.add("dm.score <= ?", f.MaxScore)
	}
	w.created("dm.created_at", f.DateStart, f.DateEnd)
	w.search(f.Search, "u.NomeCompleto", "dm.description")

	rows, err := play_sql.QueryRows(ctx, `
		SELECT dm.Id, dm.score, dm.description, dm.created_at,
			u.NomeCompleto AS user_name, u.Departamento AS department
		FROM DailyMood dm
		JOIN Users u ON u.Id = dm.user_id`+w.clause()+`
		ORDER BY dm.created_at DESC, dm.Id DESC
		LIMIT ?`, append(w.args, rhLimit)...)
	if err != nil {
		return nil, err
	}
	out := make([]api.JsonEncode, 0, len(rows))
	for _, r := range rows {
		out = append(out, api.J(
			"Id", play_sql.ToInt64(r["Id"]),
			"score", play_sql.ToInt(r["score"]),
			"description", r["description"],
			"created_at", r["created_at"],
			"user_name", r["user_name"],
			"department", r["department"],
		))
	}
	return out, nil
}

// PDIs lists development plans for the HR history, newest first.
func PDIs(ctx context.Context, f RHFilter) ([]api.JsonEncode, error) {
	var w where
	if selected(f.Status) {
		w.add("LOWER(p.Status) = LOWER(?)", strings.TrimSpace(f.Status))
	}
	w.search(f.Search, "p.Titulo", "p.Objetivos", "p.Acoes", "uColab.NomeCompleto", "uGestor.NomeCompleto")
	w.created("p.DataCriacao", f.DateStart, f.DateEnd)

	rows, err := play_sql.QueryRows(ctx, `
		SELECT p.Id, p.UserId, p.GestorId, p.Titulo, p.Objetivos, p.Acoes, p.PrazoConclusao,
			p.Status, p.Progresso, p.DataCriacao,
			uColab.NomeCompleto AS colaborador_nome, uColab.Departamento AS colaborador_departamento,
			uGestor.NomeCompleto AS gestor_nome
		FROM PDIs p
		JOIN Users uColab ON uColab.Id = p.UserId
		LEFT JOIN Users uGestor ON uGestor.Id = p.GestorId`+w.clause()+`
		ORDER BY p.DataCriacao DESC, p.Id DESC
		LIMIT ?`, append(w.args, rhLimit)...)
	if err != nil {
		return nil, err
	}
	out := make([]api.JsonEncode, 0, len(rows))
	for _, r := range rows {
		out = append(out, api.J(
			"Id", play_sql.ToInt64(r["Id"]),
			"UserId", play_sql.ToInt64(r["UserId"]),
			"GestorId", play_sql.ToInt64(r["GestorId"]),
			"titulo", r["Titulo"],
			"colaborador_nome", r["colaborador_nome"],
			"colaborador_departamento", r["colaborador_departamento"],
			"gestor_nome", r["gestor_nome"],
			"objetivos", r["Objetivos"],
			"acoes", r["Acoes"],
			"prazo_revisao", r["PrazoConclusao"],
			"status", r["Status"],
			"progresso", play_sql.ToFloat(r["Progresso"]),
			"criado_em", r["DataCriacao"],
		))
	}
	return out, nil
}
