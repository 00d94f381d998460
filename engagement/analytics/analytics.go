package analytics

import (
	"context"
	"math"
	"slices"
	"strconv"
	"strings"
	"time"

	"golang.org/x/sync/errgroup"

	"lumigente_backend/main/play_sql"
	"lumigente_backend/users/access"
	"lumigente_backend/users/auth"
)

const (
	DefaultPeriod = 30
	maxPeriod     = 365
)

// Ranking weights: a feedback sent is worth the most, a mood entry the least.
const (
	feedbackWeight    = 10
	recognitionWeight = 5
	moodWeight        = 2
)

// Period parses the period query parameter in days.
func Period(raw string) int {
	n, err := strconv.Atoi(strings.TrimSpace(raw))
	if err != nil || n <= 0 {
		return DefaultPeriod
	}
	return min(n, maxPeriod)
}

// Department turns the department filter into "" when it means everyone.
func Department(raw string) string {
	raw = strings.TrimSpace(raw)
	if strings.EqualFold(raw, "todos") {
		return ""
	}
	return raw
}

func since(period int) string {
	return play_sql.DaysAgo(period)
}

func round1(v float64) float64 {
	return math.Round(v*10) / 10
}

// deptFilter appends the department condition on alias u when dept is set.
func deptFilter(dept string, args []any) (string, []any) {
	if dept == "" {
		return "", args
	}
	return " AND u.Departamento = ?", append(args, dept)
}

type Ranking struct {
	UserID                  int64  `json:"userId"`
	NomeCompleto            string `json:"NomeCompleto"`
	Departamento            string `json:"Departamento"`
	FeedbacksEnviados       int    `json:"feedbacks_enviados"`
	ReconhecimentosEnviados int    `json:"reconhecimentos_enviados"`
	HumorRegistrado         int    `json:"humor_registrado"`
	Score                   int    `json:"score"`
}

// Rankings scores active users by what they did in the period, best first.
func Rankings(ctx context.Context, period int, dept string, top int) ([]Ranking, error) {
	from := since(period)
	cond, args := deptFilter(dept, []any{from, from, from})
	rows, err := play_sql.QueryRows(ctx, `
		SELECT u.Id, u.NomeCompleto, u.Departamento,
			(SELECT COUNT(*) FROM Feedbacks f WHERE f.from_user_id = u.Id AND f.created_at >= ?) AS feedbacks,
			(SELECT COUNT(*) FROM Recognitions r WHERE r.from_user_id = u.Id AND r.created_at >= ?) AS recognitions,
			(SELECT COUNT(*) FROM DailyMood dm WHERE dm.user_id = u.Id AND dm.created_at >= ?) AS moods
		FROM Users u
		WHERE u.IsActive = 1`+cond, args...)
	if err != nil {
		return nil, err
	}
	out := make([]Ranking, 0, len(rows))
	for _, r := range rows {
		rk := Ranking{
			UserID:                  play_sql.ToInt64(r["Id"]),
			NomeCompleto:            r["NomeCompleto"],
			Departamento:            r["Departamento"],
			FeedbacksEnviados:       play_sql.ToInt(r["feedbacks"]),
			ReconhecimentosEnviados: play_sql.ToInt(r["recognitions"]),
			HumorRegistrado:         play_sql.ToInt(r["moods"]),
		}
		rk.Score = rk.FeedbacksEnviados*feedbackWeight + rk.ReconhecimentosEnviados*recognitionWeight + rk.HumorRegistrado*moodWeight
		out = append(out, rk)
	}
	slices.SortStableFunc(out, func(a, b Ranking) int {
		if a.Score != b.Score {
			return b.Score - a.Score
		}
		return strings.Compare(a.NomeCompleto, b.NomeCompleto)
	})
	if top > 0 && len(out) > top {
		out = out[:top]
	}
	return out, nil
}

type LeaderboardEntry struct {
	UserID       int64  `json:"userId"`
	NomeCompleto string `json:"NomeCompleto"`
	Departamento string `json:"Departamento"`
	TotalPontos  int    `json:"total_pontos"`
}

// Leaderboard lists active users by accumulated points.
func Leaderboard(ctx context.Context, dept string, top int) ([]LeaderboardEntry, error) {
	if top <= 0 {
		top = 100
	}
	cond, args := deptFilter(dept, nil)
	rows, err := play_sql.QueryRows(ctx, `
		SELECT u.Id, u.NomeCompleto, u.Departamento, up.TotalPoints
		FROM UserPoints up
		JOIN Users u ON up.UserId = u.Id
		WHERE u.IsActive = 1`+cond+`
		ORDER BY up.TotalPoints DESC, u.NomeCompleto
		LIMIT ?`, append(args, top)...)
	if err != nil {
		return nil, err
	}
	out := make([]LeaderboardEntry, 0, len(rows))
	for _, r := range rows {
		out = append(out, LeaderboardEntry{
			UserID:       play_sql.ToInt64(r["Id"]),
			NomeCompleto: r["NomeCompleto"],
			Departamento: r["Departamento"],
			TotalPontos:  play_sql.ToInt(r["TotalPoints"]),
		})
	}
	return out, nil
}

type DepartmentStats struct {
	Departamento         string   `json:"Departamento"`
	TotalUsuarios        int      `json:"total_usuarios"`
	MediaHumor           *float64 `json:"media_humor"`
	TotalFeedbacks       int      `json:"total_feedbacks"`
	TotalReconhecimentos int      `json:"total_reconhecimentos"`
}

// Departments summarises the period per department of active users,
// largest departments first.
func Departments(ctx context.Context, period int, dept string) ([]DepartmentStats, error) {
	from := since(period)
	cond, args := deptFilter(dept, []any{from, from, from})
	rows, err := play_sql.QueryRows(ctx, `
		SELECT u.Departamento, COUNT(*) AS total_usuarios,
			(SELECT AVG(dm.score) FROM DailyMood dm JOIN Users x ON x.Id = dm.user_id
				WHERE x.IsActive = 1 AND x.Departamento = u.Departamento AND dm.created_at >= ?) AS media_humor,
			(SELECT COUNT(*) FROM Feedbacks f JOIN Users x ON x.Id = f.from_user_id
				WHERE x.IsActive = 1 AND x.Departamento = u.Departamento AND f.created_at >= ?) AS total_feedbacks,
			(SELECT COUNT(*) FROM Recognitions r JOIN Users x ON x.Id = r.from_user_id
				WHERE x.IsActive = 1 AND x.Departamento = u.Departamento AND r.created_at >= ?) AS total_reconhecimentos
		FROM Users u
		WHERE u.IsActive = 1 AND u.Departamento IS NOT NULL AND u.Departamento <> ''`+cond+`
		GROUP BY u.Departamento
		ORDER BY total_usuarios DESC, u.Departamento`, args...)
	if err != nil {
		return nil, err
	}
	out := make([]DepartmentStats, 0, len(rows))
	for _, r := range rows {
		d := DepartmentStats{
			Departamento:         r["Departamento"],
			TotalUsuarios:        play_sql.ToInt(r["total_usuarios"]),
			TotalFeedbacks:       play_sql.ToInt(r["total_feedbacks"]),
			TotalReconhecimentos: play_sql.ToInt(r["total_reconhecimentos"]),
		}
		if r["media_humor"] != "" {
			avg := round1(play_sql.ToFloat(r["media_humor"]))
			d.MediaHumor = &avg
		}
		out = append(out, d)
	}
	return out, nil
}

type DayPoint struct {
	Date            string  `json:"date"`
	AvgMood         float64 `json:"avg_mood"`
	Entries         int     `json:"entries"`
	Feedbacks       int     `json:"feedbacks"`
	Reconhecimentos int     `json:"reconhecimentos"`
}

type WeekPoint struct {
	Year    int     `json:"year"`
	Week    int     `json:"week"`
	AvgMood float64 `json:"avg_mood"`
	Entries int     `json:"entries"`
}

type Trends struct {
	Daily  []DayPoint  `json:"daily"`
	Weekly []WeekPoint `json:"weekly"`
}

func dailyCounts(ctx context.Context, table, userCol, from, dept string, avg bool) (map[string][2]float64, error) {
	cond, args := deptFilter(dept, []any{from})
	sel := "0"
	if avg {
		sel = "SUM(t.score)"
	}
	rows, err := play_sql.QueryRows(ctx, `
		SELECT DATE(t.created_at) AS dia, COUNT(*) AS total, `+sel+` AS soma
		FROM `+table+` t
		JOIN Users u ON u.Id = t.`+userCol+`
		WHERE t.created_at >= ?`+cond+`
		GROUP BY DATE(t.created_at)`, args...)
	if err != nil {
		return nil, err
	}
	out := make(map[string][2]float64, len(rows))
	for _, r := range rows {
		out[day(r["dia"])] = [2]float64{play_sql.ToFloat(r["total"]), play_sql.ToFloat(r["soma"])}
	}
	return out, nil
}

func day(v string) string {
	if len(v) > 10 {
		return v[:10]
	}
	return v
}

// TrendsFor returns daily mood, feedback and recognition activity of the
// period, plus the mood per ISO week.
func TrendsFor(ctx context.Context, period int, dept string) (Trends, error) {
	from := since(period)
	moods, err := dailyCounts(ctx, "DailyMood", "user_id", from, dept, true)
	if err != nil {
		return Trends{}, err
	}
	feedbacks, err := dailyCounts(ctx, "Feedbacks", "from_user_id", from, dept, false)
	if err != nil {
		return Trends{}, err
	}
	recognitions, err := dailyCounts(ctx, "Recognitions", "from_user_id", from, dept, false)
	if err != nil {
		return Trends{}, err
	}

	days := map[string]bool{}
	for _, m := range []map[string][2]float64{moods, feedbacks, recognitions} {
		for d := range m {
			days[d] = true
		}
	}
	out := Trends{Daily: []DayPoint{}, Weekly: []WeekPoint{}}
	for d := range days {
		p := DayPoint{
			Date:            d,
			Entries:         int(moods[d][0]),
			Feedbacks:       int(feedbacks[d][0]),
			Reconhecimentos: int(recognitions[d][0]),
		}
		if p.Entries > 0 {
			p.AvgMood = round1(moods[d][1] / moods[d][0])
		}
		out.Daily = append(out.Daily, p)
	}
	slices.SortFunc(out.Daily, func(a, b DayPoint) int { return strings.Compare(a.Date, b.Date) })

	type acc struct{ sum, n float64 }
	weeks := map[[2]int]*acc{}
	var order [][2]int
	for _, p := range out.Daily {
		if p.Entries == 0 {
			continue
		}
		t, err := time.Parse(play_sql.DateLayout, p.Date)
		if err != nil {
			continue
		}
		y, w := t.ISOWeek()
		k := [2]int{y, w}
		if weeks[k] == nil {
			weeks[k] = &acc{}
			order = append(order, k)
		}
		weeks[k].sum += moods[p.Date][1]
		weeks[k].n += moods[p.Date][0]
	}
	for _, k := range order {
		a := weeks[k]
		out.Weekly = append(out.Weekly, WeekPoint{Year: k[0], Week: k[1], AvgMood: round1(a.sum / a.n), Entries: int(a.n)})
	}
	return out, nil
}

type Satisfaction struct {
	Promotores float64 `json:"promotores_perc"`
	Detratores float64 `json:"detratores_perc"`
	MediaHumor float64 `json:"media_humor"`
	ENPS       float64 `json:"enps"`
	Respostas  int     `json:"respostas"`
}

// SatisfactionFor treats moods of 4 and 5 as promoters and 1 and 2 as
// detractors.
func SatisfactionFor(ctx context.Context, period int, dept string) (Satisfaction, error) {
	cond, args := deptFilter(dept, []any{since(period)})
	row, _, err := play_sql.QueryRow(ctx, `
		SELECT COUNT(*) AS total,
			SUM(CASE WHEN dm.score >= 4 THEN 1 ELSE 0 END) AS promotores,
			SUM(CASE WHEN dm.score <= 2 THEN 1 ELSE 0 END) AS detratores,
			AVG(dm.score) AS media
		FROM DailyMood dm
		JOIN Users u ON dm.user_id = u.Id
		WHERE dm.created_at >= ?`+cond, args...)
	if err != nil {
		return Satisfaction{}, err
	}
	total := play_sql.ToInt(row["total"])
	if total == 0 {
		return Satisfaction{}, nil
	}
	prom := play_sql.ToFloat(row["promotores"]) * 100 / float64(total)
	det := play_sql.ToFloat(row["detratores"]) * 100 / float64(total)
	return Satisfaction{
		Promotores: round1(prom),
		Detratores: round1(det),
		MediaHumor: round1(play_sql.ToFloat(row["media"])),
		ENPS:       round1(prom - det),
		Respostas:  total,
	}, nil
}

type Performance struct {
	UsuariosAtivosHumor    int     `json:"usuarios_ativos_humor"`
	UsuariosAtivosFeedback int     `json:"usuarios_ativos_feedback"`
	Participantes          int     `json:"participantes"`
	TotalUsuarios          int     `json:"total_usuarios"`
	Engajamento            float64 `json:"engajamento"`
}

// PerformanceFor measures engagement: active users who recorded a mood,
// sent a feedback or sent a recognition in the period.
func PerformanceFor(ctx context.Context, period int, dept string) (Performance, error) {
	from := since(period)
	cond, _ := deptFilter(dept, nil)
	withDept := func(args ...any) []any {
		if dept != "" {
			args = append(args, dept)
		}
		return args
	}
	var p Performance
	var err error
	if p.UsuariosAtivosHumor, err = play_sql.Count(ctx, `
		SELECT COUNT(DISTINCT dm.user_id) FROM DailyMood dm JOIN Users u ON u.Id = dm.user_id
		WHERE u.IsActive = 1 AND dm.created_at >= ?`+cond, withDept(from)...); err != nil {
		return p, err
	}
	if p.UsuariosAtivosFeedback, err = play_sql.Count(ctx, `
		SELECT COUNT(DISTINCT f.from_user_id) FROM Feedbacks f JOIN Users u ON u.Id = f.from_user_id
		WHERE u.IsActive = 1 AND f.created_at >= ?`+cond, withDept(from)...); err != nil {
		return p, err
	}
	if p.Participantes, err = play_sql.Count(ctx, `
		SELECT COUNT(*) FROM Users u
		WHERE u.IsActive = 1`+cond+` AND (
			EXISTS (SELECT 1 FROM DailyMood dm WHERE dm.user_id = u.Id AND dm.created_at >= ?)
			OR EXISTS (SELECT 1 FROM Feedbacks f WHERE f.from_user_id = u.Id AND f.created_at >= ?)
			OR EXISTS (SELECT 1 FROM Recognitions r WHERE r.from_user_id = u.Id AND r.created_at >= ?))`,
		append(withDept(), from, from, from)...); err != nil {
		return p, err
	}
	if p.TotalUsuarios, err = play_sql.Count(ctx,
		"SELECT COUNT(*) FROM Users u WHERE u.IsActive = 1"+cond, withDept()...); err != nil {
		return p, err
	}
	if p.TotalUsuarios > 0 {
		p.Engajamento = round1(float64(p.Participantes) * 100 / float64(p.TotalUsuarios))
	}
	return p, nil
}

// countBy counts the period's rows of table per column value.
func countBy(ctx context.Context, table, userCol, col string, period int, dept string) (map[string]int, error) {
	cond, args := deptFilter(dept, []any{since(period)})
	rows, err := play_sql.QueryRows(ctx, `
		SELECT t.`+col+` AS chave, COUNT(*) AS total
		FROM `+table+` t
		JOIN Users u ON u.Id = t.`+userCol+`
		WHERE t.created_at >= ?`+cond+`
		GROUP BY t.`+col, args...)
	if err != nil {
		return nil, err
	}
	out := make(map[string]int, len(rows))
	for _, r := range rows {
		out[r["chave"]] = play_sql.ToInt(r["total"])
	}
	return out, nil
}

type UserMetrics struct {
	FeedbacksEnviados        int `json:"feedbacks_enviados"`
	FeedbacksRecebidos       int `json:"feedbacks_recebidos"`
	ReconhecimentosEnviados  int `json:"reconhecimentos_enviados"`
	ReconhecimentosRecebidos int `json:"reconhecimentos_recebidos"`
	HumorRegistros           int `json:"humor_registros"`
}

// UserMetricsFor counts one user's activity in the period.
func UserMetricsFor(ctx context.Context, userID int64, period int) (UserMetrics, error) {
	from := since(period)
	var m UserMetrics
	for _, q := range []struct {
		dst   *int
		query string
	}{
		{&m.FeedbacksEnviados, "SELECT COUNT(*) FROM Feedbacks WHERE from_user_id = ? AND created_at >= ?"},
		{&m.FeedbacksRecebidos, "SELECT COUNT(*) FROM Feedbacks WHERE to_user_id = ? AND created_at >= ?"},
		{&m.ReconhecimentosEnviados, "SELECT COUNT(*) FROM Recognitions WHERE from_user_id = ? AND created_at >= ?"},
		{&m.ReconhecimentosRecebidos, "SELECT COUNT(*) FROM Recognitions WHERE to_user_id = ? AND created_at >= ?"},
		{&m.HumorRegistros, "SELECT COUNT(*) FROM DailyMood WHERE user_id = ? AND created_at >= ?"},
	} {
		n, err := play_sql.Count(ctx, q.query, userID, from)
		if err != nil {
			return m, err
		}
		*q.dst = n
	}
	return m, nil
}

type Dashboard struct {
	Performance  Performance       `json:"performance"`
	Rankings     DashboardRankings `json:"rankings"`
	Departments  []DepartmentStats `json:"departments"`
	Trends       Trends            `json:"trends"`
	Satisfaction Satisfaction      `json:"satisfaction"`
	Feedbacks    map[string]int    `json:"feedbacksPorTipo"`
	Badges       map[string]int    `json:"reconhecimentosPorBadge"`
	UserMetrics  *UserMetrics      `json:"userMetrics"`
	Period       int               `json:"period"`
	Department   string            `json:"department"`
	GeneratedAt  string            `json:"generatedAt"`
}

type DashboardRankings struct {
	TopUsers     []Ranking          `json:"topUsers"`
	Gamification []LeaderboardEntry `json:"gamification"`
}

// DashboardFor gathers every indicator of the period concurrently. userID,
// when not zero, adds that user's own metrics.
func DashboardFor(ctx context.Context, period int, dept string, userID int64) (*Dashboard, error) {
	d := &Dashboard{
		Period:      period,
		Department:  dept,
		GeneratedAt: play_sql.Clock().Now().UTC().Format(time.RFC3339),
	}
	if d.Department == "" {
		d.Department = "Todos"
	}

	eg, egCtx := errgroup.WithContext(ctx)
	eg.Go(func() (err error) {
		d.Performance, err = PerformanceFor(egCtx, period, dept)
		return err
	})
	eg.Go(func() (err error) {
		d.Rankings.TopUsers, err = Rankings(egCtx, period, dept, 5)
		return err
	})
	eg.Go(func() (err error) {
		d.Rankings.Gamification, err = Leaderboard(egCtx, dept, 5)
		return err
	})
	eg.Go(func() (err error) {
		d.Departments, err = Departments(egCtx, period, dept)
		return err
	})
	eg.Go(func() (err error) {
		d.Trends, err = TrendsFor(egCtx, period, dept)
		return err
	})
	eg.Go(func() (err error) {
		d.Satisfaction, err = SatisfactionFor(egCtx, period, dept)
		return err
	})
	eg.Go(func() (err error) {
		d.Feedbacks, err = countBy(egCtx, "Feedbacks", "from_user_id", "type", period, dept)
		return err
	})
	eg.Go(func() (err error) {
		d.Badges, err = countBy(egCtx, "Recognitions", "from_user_id", "badge", period, dept)
		return err
	})
	if userID > 0 {
		eg.Go(func() error {
			m, err := UserMetricsFor(egCtx, userID, period)
			d.UserMetrics = &m
			return err
		})
	}
	if err := eg.Wait(); err != nil {
		return nil, err
	}
	return d, nil
}

// AvailableDepartments lists the departments u may filter analytics by.
// Full access users see every department of active users.
func AvailableDepartments(ctx context.Context, u *access.User) ([]string, bool, error) {
	if u.FullAccess() {
		rows, err := play_sql.QueryRows(ctx, `
			SELECT DISTINCT Departamento FROM Users
			WHERE IsActive = 1 AND Departamento IS NOT NULL AND Departamento <> ''
			ORDER BY Departamento`)
		if err != nil {
			return nil, false, err
		}
		out := make([]string, 0, len(rows))
		for _, r := range rows {
			out = append(out, r["Departamento"])
		}
		return out, true, nil
	}
	out := []string{}
	if d := strings.TrimSpace(u.Departamento); d != "" {
		out = append(out, d)
	}
	managed, err := auth.ManagedDepartments(ctx, u.Matricula)
	if err != nil {
		return nil, false, err
	}
	for _, m := range managed {
		if m.Depto != "" && !slices.Contains(out, m.Depto) {
			out = append(out, m.Depto)
		}
	}
	slices.Sort(out)
	return out, false, nil
}
