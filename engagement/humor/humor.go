package humor

import (
	"context"
	"errors"
	"math"
	"strings"

	"lumigente_backend/engagement/gamification"
	"lumigente_backend/engagement/notifications"
	"lumigente_backend/main/play_sql"
	"lumigente_backend/users/access"
	"lumigente_backend/users/auth"
)

var ErrInvalidScore = errors.New("humor: score out of range")

const historyDays = 7

type Mood struct {
	Score       int    `json:"score"`
	Description string `json:"description"`
	CreatedAt   string `json:"created_at"`
	UserName    string `json:"user_name,omitempty"`
	Department  string `json:"department,omitempty"`
}

func moodFrom(row map[string]string) Mood {
	return Mood{
		Score:       play_sql.ToInt(row["score"]),
		Description: row["description"],
		CreatedAt:   row["created_at"],
		UserName:    row["user_name"],
		Department:  row["department"],
	}
}

func today() (string, string) {
	day := play_sql.Today()
	start, _ := play_sql.DayStart(day)
	end, _ := play_sql.DayAfter(day)
	return start, end
}

// RecordResult tells the handler whether the day's answer was created or
// replaced, and the points it earned.
type RecordResult struct {
	Created bool
	Points  gamification.Result
}

// Record stores today's mood of u. A second answer on the same day replaces
// the first and earns nothing. A first answer earns points and tells the
// active colleagues of the same department.
func Record(ctx context.Context, u *access.User, score int, description string) (RecordResult, error) {
	if score < 1 || score > 5 {
		return RecordResult{}, ErrInvalidScore
	}
	var desc any
	if d := strings.TrimSpace(description); d != "" {
		desc = d
	}

	start, end := today()
	now := play_sql.Now()
	row, found, err := play_sql.QueryRow(ctx,
		"SELECT Id FROM DailyMood WHERE user_id = ? AND created_at >= ? AND created_at < ?", u.ID, start, end)
	if err != nil {
		return RecordResult{}, err
	}
	if found {
		_, err = play_sql.Exec(ctx,
			"UPDATE DailyMood SET score = ?, description = ?, updated_at = ? WHERE Id = ?",
			score, desc, now, play_sql.ToInt64(row["Id"]))
		return RecordResult{}, err
	}

	if _, err := play_sql.Insert(ctx,
		"INSERT INTO DailyMood (user_id, score, description, created_at, updated_at) VALUES (?, ?, ?, ?, ?)",
		u.ID, score, desc, now, now); err != nil {
		return RecordResult{}, err
	}
	res := RecordResult{Created: true, Points: gamification.Award(ctx, u.ID, gamification.HumorRespondido)}

	colleagues, err := departmentColleagues(ctx, u)
	if err != nil {
		return res, err
	}
	notifications.CreateMany(ctx, colleagues, notifications.MoodUpdate, u.DisplayName()+" registrou o humor do dia", 0)
	return res, nil
}

func departmentColleagues(ctx context.Context, u *access.User) ([]int64, error) {
	rows, err := play_sql.QueryRows(ctx, `
		SELECT c.Id FROM Users c
		JOIN Users me ON me.Id = ?
		WHERE c.Departamento = me.Departamento AND c.Departamento IS NOT NULL AND c.Departamento <> ''
			AND c.Id <> me.Id AND c.IsActive = 1
		ORDER BY c.Id`, u.ID)
	if err != nil {
		return nil, err
	}
	out := make([]int64, 0, len(rows))
	for _, r := range rows {
		out = append(out, play_sql.ToInt64(r["Id"]))
	}
	return out, nil
}

// Today returns the user's answer of the day, nil when there is none.
func Today(ctx context.Context, userID int64) (*Mood, error) {
	start, end := today()
	row, found, err := play_sql.QueryRow(ctx, `
		SELECT score, description, created_at FROM DailyMood
		WHERE user_id = ? AND created_at >= ? AND created_at < ?`, userID, start, end)
	if err != nil || !found {
		return nil, err
	}
	m := moodFrom(row)
	return &m, nil
}

func moods(ctx context.Context, query string, args ...any) ([]Mood, error) {
	rows, err := play_sql.QueryRows(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	out := make([]Mood, 0, len(rows))
	for _, r := range rows {
		out = append(out, moodFrom(r))
	}
	return out, nil
}

// ColleaguesToday lists today's answers of the user's department, the user excluded.
func ColleaguesToday(ctx context.Context, userID int64) ([]Mood, error) {
	start, end := today()
	return moods(ctx, `
		SELECT dm.score, dm.description, dm.created_at, u.NomeCompleto AS user_name
		FROM DailyMood dm
		JOIN Users u ON dm.user_id = u.Id
		JOIN Users me ON me.Id = ?
		WHERE u.Departamento = me.Departamento AND u.Id <> me.Id AND u.IsActive = 1
			AND dm.created_at >= ? AND dm.created_at < ?
		ORDER BY u.NomeCompleto`, userID, start, end)
}

// History is the user's last seven days, newest first.
func History(ctx context.Context, userID int64) ([]Mood, error) {
	since, _ := play_sql.DayStart(play_sql.Clock().Now().AddDate(0, 0, -historyDays).Format(play_sql.DateLayout))
	return moods(ctx, `
		SELECT score, description, created_at FROM DailyMood
		WHERE user_id = ? AND created_at >= ?
		ORDER BY created_at DESC`, userID, since)
}

// team is the manager plus the people of the departments they manage. A
// manager without hierarchy rows falls back to their own department.
func team(ctx context.Context, manager *access.User) ([]int64, error) {
	ids, err := auth.TeamUserIDs(ctx, manager)
	if err != nil {
		return nil, err
	}
	if len(ids) == 0 {
		if ids, err = departmentColleagues(ctx, manager); err != nil {
			return nil, err
		}
	}
	return append(ids, manager.ID), nil
}

type TeamMetrics struct {
	TeamAverage    float64 `json:"teamAverage"`
	TeamMembers    int     `json:"teamMembers"`
	TodayResponses int     `json:"todayResponses"`
}

func round1(v float64) float64 {
	return math.Round(v*10) / 10
}

// TeamMetricsFor summarises the last seven days of the manager's team.
func TeamMetricsFor(ctx context.Context, manager *access.User) (TeamMetrics, error) {
	ids, err := team(ctx, manager)
	if err != nil {
		return TeamMetrics{}, err
	}
	since, _ := play_sql.DayStart(play_sql.Clock().Now().AddDate(0, 0, -historyDays).Format(play_sql.DateLayout))
	in := play_sql.InClause(len(ids))
	args := append(play_sql.Args(ids), since)
	row, _, err := play_sql.QueryRow(ctx, `
		SELECT AVG(dm.score) AS avg_score, COUNT(DISTINCT dm.user_id) AS members
		FROM DailyMood dm
		JOIN Users u ON dm.user_id = u.Id
		WHERE u.IsActive = 1 AND dm.user_id IN (`+in+`) AND dm.created_at >= ?`, args...)
	if err != nil {
		return TeamMetrics{}, err
	}
	start, end := today()
	responses, err := play_sql.Count(ctx, `
		SELECT COUNT(*) AS total FROM DailyMood
		WHERE user_id IN (`+in+`) AND created_at >= ? AND created_at < ?`,
		append(play_sql.Args(ids), start, end)...)
	if err != nil {
		return TeamMetrics{}, err
	}
	return TeamMetrics{
		TeamAverage:    round1(play_sql.ToFloat(row["avg_score"])),
		TeamMembers:    play_sql.ToInt(row["members"]),
		TodayResponses: responses,
	}, nil
}

// TeamHistory lists the team's answers of the last seven days, newest first.
func TeamHistory(ctx context.Context, manager *access.User) ([]Mood, error) {
	ids, err := team(ctx, manager)
	if err != nil {
		return nil, err
	}
	since, _ := play_sql.DayStart(play_sql.Clock().Now().AddDate(0, 0, -historyDays).Format(play_sql.DateLayout))
	return moods(ctx, `
		SELECT dm.score, dm.description, dm.created_at, u.NomeCompleto AS user_name, u.Departamento AS department
		FROM DailyMood dm
		JOIN Users u ON dm.user_id = u.Id
		WHERE u.IsActive = 1 AND dm.user_id IN (`+play_sql.InClause(len(ids))+`) AND dm.created_at >= ?
		ORDER BY dm.created_at DESC, u.NomeCompleto`, append(play_sql.Args(ids), since)...)
}

type CompanySummary struct {
	AvgScore     float64 `json:"avgScore"`
	TotalRecords int     `json:"totalRecords"`
	UniqueUsers  int     `json:"uniqueUsers"`
}

// Company summarises every active user's answers of the last periodDays
// (all time when zero), optionally for one department.
func Company(ctx context.Context, department string, periodDays int) (CompanySummary, error) {
	query := `
		SELECT AVG(dm.score) AS avg_score, COUNT(*) AS total, COUNT(DISTINCT dm.user_id) AS users
		FROM DailyMood dm
		JOIN Users u ON dm.user_id = u.Id
		WHERE u.IsActive = 1`
	args := []any{}
	if periodDays > 0 {
		query += " AND dm.created_at >= ?"
		args = append(args, play_sql.DaysAgo(periodDays))
	}
	if department != "" && !strings.EqualFold(department, "todos") {
		query += " AND u.Departamento = ?"
		args = append(args, department)
	}
	row, _, err := play_sql.QueryRow(ctx, query, args...)
	if err != nil {
		return CompanySummary{}, err
	}
	return CompanySummary{
		AvgScore:     round1(play_sql.ToFloat(row["avg_score"])),
		TotalRecords: play_sql.ToInt(row["total"]),
		UniqueUsers:  play_sql.ToInt(row["users"]),
	}, nil
}

type DepartmentMood struct {
	Departamento string  `json:"Departamento"`
	AvgScore     float64 `json:"avgScore"`
	TotalRecords int     `json:"totalRecords"`
}

// ByDepartment ranks departments by average mood over the last periodDays.
func ByDepartment(ctx context.Context, periodDays int) ([]DepartmentMood, error) {
	query := `
		SELECT u.Departamento AS departamento, AVG(dm.score) AS avg_score, COUNT(*) AS total
		FROM DailyMood dm
		JOIN Users u ON dm.user_id = u.Id
		WHERE u.IsActive = 1`
	args := []any{}
	if periodDays > 0 {
		query += " AND dm.created_at >= ?"
		args = append(args, play_sql.DaysAgo(periodDays))
	}
	query += " GROUP BY u.Departamento ORDER BY avg_score DESC, u.Departamento"
	rows, err := play_sql.QueryRows(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	out := make([]DepartmentMood, 0, len(rows))
	for _, r := range rows {
		out = append(out, DepartmentMood{
			Departamento: r["departamento"],
			AvgScore:     round1(play_sql.ToFloat(r["avg_score"])),
			TotalRecords: play_sql.ToInt(r["total"]),
		})
	}
	return out, nil
}
