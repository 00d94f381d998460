package analytics

import (
	"context"
	"errors"
	"slices"
	"time"

	"lumigente_backend/main/api"
	"lumigente_backend/main/play_sql"
	"lumigente_backend/users/access"
	"lumigente_backend/users/auth"
)

var ErrNotInTeam = errors.New("analytics: employee outside the team")

const (
	teamWindowDays = 30
	onlineWindow   = 30 * time.Minute
)

// Scope is the set of users someone may look at. All means every user.
type Scope struct {
	All bool
	IDs []int64
}

// ScopeFor resolves whom u manages. Full access users see everyone.
func ScopeFor(ctx context.Context, u *access.User) (Scope, error) {
	if u.FullAccess() {
		return Scope{All: true}, nil
	}
	ids, err := auth.TeamUserIDs(ctx, u)
	if err != nil {
		return Scope{}, err
	}
	return Scope{IDs: ids}, nil
}

// Contains reports whether id is visible in the scope.
func (s Scope) Contains(id int64) bool {
	return s.All || slices.Contains(s.IDs, id)
}

// With returns the scope plus id.
func (s Scope) With(id int64) Scope {
	if s.All || slices.Contains(s.IDs, id) {
		return s
	}
	return Scope{IDs: append(slices.Clone(s.IDs), id)}
}

// Without returns the scope minus id.
func (s Scope) Without(id int64) Scope {
	if s.All {
		return s
	}
	out := make([]int64, 0, len(s.IDs))
	for _, v := range s.IDs {
		if v != id {
			out = append(out, v)
		}
	}
	return Scope{IDs: out}
}

// condition restricts column col to the scope. An empty scope matches nothing.
func (s Scope) condition(col string) (string, []any) {
	if s.All {
		return "1 = 1", nil
	}
	if len(s.IDs) == 0 {
		return "1 = 0", nil
	}
	return col + " IN (" + play_sql.InClause(len(s.IDs)) + ")", play_sql.Args(s.IDs)
}

// TeamMember is one row of the team management screen.
type TeamMember struct {
	ID                    int64    `json:"Id"`
	NomeCompleto          string   `json:"NomeCompleto"`
	Departamento          string   `json:"Departamento"`
	DescricaoDepartamento string   `json:"DescricaoDepartamento"`
	LastLogin             *string  `json:"LastLogin"`
	IsActive              bool     `json:"IsActive"`
	LastMood              *float64 `json:"lastMood"`
	RecentFeedbacks       int      `json:"recentFeedbacks"`
	ActiveObjectives      int      `json:"activeObjectives"`
}

// TeamManagement lists the scope's users with their last 30 days of mood
// and received feedback. status is "ativo", "inativo" or empty for both.
func TeamManagement(ctx context.Context, s Scope, status, dept string) ([]TeamMember, error) {
	from := since(teamWindowDays)
	cond, scopeArgs := s.condition("u.Id")
	args := append([]any{from, from}, scopeArgs...)
	switch status {
	case "ativo":
		cond += " AND u.IsActive = 1"
	case "inativo":
		cond += " AND u.IsActive = 0"
	}
	if dept != "" {
		cond += " AND u.Departamento = ?"
		args = append(args, dept)
	}
	rows, err := play_sql.QueryRows(ctx, `
		SELECT u.Id, u.NomeCompleto, u.Departamento, u.DescricaoDepartamento, u.LastLogin, u.IsActive,
			(SELECT AVG(dm.score) FROM DailyMood dm WHERE dm.user_id = u.Id AND dm.created_at >= ?) AS last_mood,
			(SELECT COUNT(*) FROM Feedbacks f WHERE f.to_user_id = u.Id AND f.created_at >= ?) AS recent_feedbacks,
			(SELECT COUNT(DISTINCT o.Id) FROM Objetivos o JOIN ObjetivoResponsaveis r ON r.objetivo_id = o.Id
				WHERE r.responsavel_id = u.Id AND o.status = 'Ativo') AS active_objectives
		FROM Users u
		WHERE `+cond+`
		ORDER BY u.NomeCompleto`, args...)
	if err != nil {
		return nil, err
	}
	out := make([]TeamMember, 0, len(rows))
	for _, r := range rows {
		m := TeamMember{
			ID:                    play_sql.ToInt64(r["Id"]),
			NomeCompleto:          r["NomeCompleto"],
			Departamento:          r["Departamento"],
			DescricaoDepartamento: r["DescricaoDepartamento"],
			IsActive:              play_sql.ToBool(r["IsActive"]),
			RecentFeedbacks:       play_sql.ToInt(r["recent_feedbacks"]),
			ActiveObjectives:      play_sql.ToInt(r["active_objectives"]),
		}
		if v := r["LastLogin"]; v != "" {
			m.LastLogin = &v
		}
		if v := r["last_mood"]; v != "" {
			avg := round1(play_sql.ToFloat(v))
			m.LastMood = &avg
		}
		out = append(out, m)
	}
	return out, nil
}

// Members reshapes team management rows into the team screen's format.
func Members(list []TeamMember) []api.JsonEncode {
	out := make([]api.JsonEncode, 0, len(list))
	for _, m := range list {
		out = append(out, api.J(
			"id", m.ID,
			"nomeCompleto", m.NomeCompleto,
			"departamento", m.Departamento,
			"descricaoDepartamento", m.DescricaoDepartamento,
			"ultimoAcesso", m.LastLogin,
			"ativo", m.IsActive,
			"humorMedio", m.LastMood,
			"feedbacksRecentes", m.RecentFeedbacks,
			"objetivosAtivos", m.ActiveObjectives,
		))
	}
	return out
}

type TeamMetrics struct {
	TotalMembers      int     `json:"totalMembers"`
	ActiveMembers     int     `json:"activeMembers"`
	TotalFeedbacks    int     `json:"totalFeedbacks"`
	TotalRecognitions int     `json:"totalRecognitions"`
	AvgMood           float64 `json:"avgMood"`
	ActiveObjectives  int     `json:"activeObjectives"`
}

// TeamMetricsFor sums the last 30 days of the scope. Feedbacks and
// recognitions count when a member sent or received them.
func TeamMetricsFor(ctx context.Context, s Scope) (TeamMetrics, error) {
	var m TeamMetrics
	if !s.All && len(s.IDs) == 0 {
		return m, nil
	}
	from := since(teamWindowDays)
	cond, args := s.condition("u.Id")
	row, _, err := play_sql.QueryRow(ctx, `
		SELECT COUNT(*) AS total, SUM(CASE WHEN u.IsActive = 1 THEN 1 ELSE 0 END) AS active
		FROM Users u WHERE `+cond, args...)
	if err != nil {
		return m, err
	}
	m.TotalMembers = play_sql.ToInt(row["total"])
	m.ActiveMembers = play_sql.ToInt(row["active"])

	fromCond, fromArgs := s.condition("from_user_id")
	toCond, toArgs := s.condition("to_user_id")
	both := append(append([]any{from}, fromArgs...), toArgs...)
	if m.TotalFeedbacks, err = play_sql.Count(ctx,
		"SELECT COUNT(*) FROM Feedbacks WHERE created_at >= ? AND ("+fromCond+" OR "+toCond+")", both...); err != nil {
		return m, err
	}
	if m.TotalRecognitions, err = play_sql.Count(ctx,
		"SELECT COUNT(*) FROM Recognitions WHERE created_at >= ? AND ("+fromCond+" OR "+toCond+")", both...); err != nil {
		return m, err
	}

	moodCond, moodArgs := s.condition("user_id")
	row, _, err = play_sql.QueryRow(ctx,
		"SELECT AVG(score) AS media FROM DailyMood WHERE created_at >= ? AND "+moodCond,
		append([]any{from}, moodArgs...)...)
	if err != nil {
		return m, err
	}
	m.AvgMood = round1(play_sql.ToFloat(row["media"]))

	creatorCond, creatorArgs := s.condition("o.criado_por")
	respCond, respArgs := s.condition("r.responsavel_id")
	if m.ActiveObjectives, err = play_sql.Count(ctx, `
		SELECT COUNT(*) FROM Objetivos o
		WHERE o.status = 'Ativo' AND (`+creatorCond+` OR EXISTS (
			SELECT 1 FROM ObjetivoResponsaveis r WHERE r.objetivo_id = o.Id AND `+respCond+`))`,
		append(creatorArgs, respArgs...)...); err != nil {
		return m, err
	}
	return m, nil
}

type TeamStatus struct {
	Online   int `json:"online"`
	Offline  int `json:"offline"`
	Active   int `json:"active"`
	Inactive int `json:"inactive"`
}

// TeamStatusFor counts who logged in during the last 30 minutes.
func TeamStatusFor(ctx context.Context, s Scope) (TeamStatus, error) {
	var st TeamStatus
	if !s.All && len(s.IDs) == 0 {
		return st, nil
	}
	cond, args := s.condition("Id")
	rows, err := play_sql.QueryRows(ctx, "SELECT LastLogin, IsActive FROM Users WHERE "+cond, args...)
	if err != nil {
		return st, err
	}
	cutoff := play_sql.Clock().Now().Add(-onlineWindow)
	for _, r := range rows {
		if t, ok := play_sql.ParseTime(r["LastLogin"]); ok && !t.Before(cutoff) {
			st.Online++
		} else {
			st.Offline++
		}
		if play_sql.ToBool(r["IsActive"]) {
			st.Active++
		} else {
			st.Inactive++
		}
	}
	return st, nil
}

type DepartmentCount struct {
	Departamento string `json:"Departamento"`
	TotalUsers   int    `json:"totalUsers"`
}

// DepartmentList counts active users per department.
func DepartmentList(ctx context.Context) ([]DepartmentCount, error) {
	rows, err := play_sql.QueryRows(ctx, `
		SELECT Departamento, COUNT(*) AS total
		FROM Users
		WHERE IsActive = 1 AND Departamento IS NOT NULL AND Departamento <> ''
		GROUP BY Departamento
		ORDER BY Departamento`)
	if err != nil {
		return nil, err
	}
	out := make([]DepartmentCount, 0, len(rows))
	for _, r := range rows {
		out = append(out, DepartmentCount{Departamento: r["Departamento"], TotalUsers: play_sql.ToInt(r["total"])})
	}
	return out, nil
}

// EmployeeInfo returns the basic record of an employee in the scope.
func EmployeeInfo(ctx context.Context, s Scope, id int64) (api.JsonEncode, error) {
	if !s.Contains(id) {
		return nil, ErrNotInTeam
	}
	row, found, err := play_sql.QueryRow(ctx,
		"SELECT Id, NomeCompleto, Departamento, DescricaoDepartamento, LastLogin, IsActive FROM Users WHERE Id = ?", id)
	if err != nil {
		return nil, err
	}
	if !found {
		return nil, ErrNotInTeam
	}
	var last any
	if v := row["LastLogin"]; v != "" {
		last = v
	}
	return api.J(
		"Id", play_sql.ToInt64(row["Id"]),
		"NomeCompleto", row["NomeCompleto"],
		"Departamento", row["Departamento"],
		"DescricaoDepartamento", row["DescricaoDepartamento"],
		"LastLogin", last,
		"IsActive", play_sql.ToBool(row["IsActive"]),
	), nil
}

// EmployeeFeedbacks lists what the employee sent and received, newest first.
func EmployeeFeedbacks(ctx context.Context, s Scope, id int64) ([]api.JsonEncode, error) {
	if !s.Contains(id) {
		return nil, ErrNotInTeam
	}
	rows, err := play_sql.QueryRows(ctx, `
		SELECT f.Id, f.from_user_id, f.to_user_id, f.type, f.category, f.message, f.created_at,
			u1.NomeCompleto AS from_name, u2.NomeCompleto AS to_name
		FROM Feedbacks f
		JOIN Users u1 ON f.from_user_id = u1.Id
		JOIN Users u2 ON f.to_user_id = u2.Id
		WHERE f.to_user_id = ? OR f.from_user_id = ?
		ORDER BY f.created_at DESC, f.Id DESC`, id, id)
	if err != nil {
		return nil, err
	}
	out := make([]api.JsonEncode, 0, len(rows))
	for _, r := range rows {
		direction := "sent"
		if play_sql.ToInt64(r["to_user_id"]) == id {
			direction = "received"
		}
		out = append(out, api.J(
			"Id", play_sql.ToInt64(r["Id"]),
			"from_user_id", play_sql.ToInt64(r["from_user_id"]),
			"to_user_id", play_sql.ToInt64(r["to_user_id"]),
			"type", r["type"],
			"category", r["category"],
			"message", r["message"],
			"created_at", r["created_at"],
			"from_name", r["from_name"],
			"to_name", r["to_name"],
			"direction", direction,
		))
	}
	return out, nil
}
