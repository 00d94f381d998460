package analytics

import (
	"context"
	"slices"
	"strings"
	"time"

	"golang.org/x/sync/errgroup"

	"lumigente_backend/main/play_sql"
)

// moodTrendDelta is how far the last week's mood must move from the first
// one before the trend stops being stable.
const moodTrendDelta = 0.3

type EngagementSummary struct {
	ParticipationRate float64 `json:"participationRate"`
	ActiveUsers       int     `json:"activeUsers"`
	TotalUsers        int     `json:"totalUsers"`
	MoodEntries       int     `json:"moodEntries"`
	MoodUsers         int     `json:"moodUsers"`
	FeedbackCount     int     `json:"feedbackCount"`
	FeedbackUsers     int     `json:"feedbackUsers"`
	RecognitionCount  int     `json:"recognitionCount"`
	RecognitionUsers  int     `json:"recognitionUsers"`
}

type MoodDistribution struct {
	Happy   int `json:"happy"`
	Neutral int `json:"neutral"`
	Sad     int `json:"sad"`
}

type MoodSummary struct {
	AverageScore float64          `json:"averageScore"`
	TotalEntries int              `json:"totalEntries"`
	Trend        string           `json:"trend"`
	Distribution MoodDistribution `json:"distribution"`
}

type FeedbackSummary struct {
	TotalFeedbacks    int `json:"totalFeedbacks"`
	PositiveFeedbacks int `json:"positiveFeedbacks"`
	NegativeFeedbacks int `json:"negativeFeedbacks"`
	TotalRecognitions int `json:"totalRecognitions"`
}

type GamificationSummary struct {
	TotalPoints int                `json:"totalPoints"`
	ActiveUsers int                `json:"activeUsers"`
	TopUsers    []LeaderboardEntry `json:"topUsers"`
}

type ObjectivesSummary struct {
	TotalObjectives     int `json:"totalObjectives"`
	CompletedObjectives int `json:"completedObjectives"`
	PendingObjectives   int `json:"pendingObjectives"`
	OverdueObjectives   int `json:"overdueObjectives"`
}

// Comprehensive is the dashboard plus the summary blocks the analytics page
// renders as cards.
type Comprehensive struct {
	*Dashboard
	Engagement   EngagementSummary   `json:"engagement"`
	Mood         MoodSummary         `json:"mood"`
	Feedback     FeedbackSummary     `json:"feedback"`
	Gamification GamificationSummary `json:"gamification"`
	Objectives   ObjectivesSummary   `json:"objectives"`
	TopUsers     []Ranking           `json:"topUsers"`
}

func ComprehensiveFor(ctx context.Context, period int, dept string, userID int64) (*Comprehensive, error) {
	d, err := DashboardFor(ctx, period, dept, userID)
	if err != nil {
		return nil, err
	}
	out := &Comprehensive{Dashboard: d, TopUsers: d.Rankings.TopUsers}

	out.Engagement.ParticipationRate = d.Performance.Engajamento
	out.Engagement.ActiveUsers = d.Performance.Participantes
	out.Engagement.TotalUsers = d.Performance.TotalUsuarios

	for k, n := range d.Feedbacks {
		out.Feedback.TotalFeedbacks += n
		if strings.EqualFold(k, "Positivo") {
			out.Feedback.PositiveFeedbacks += n
		}
	}
	out.Feedback.NegativeFeedbacks = out.Feedback.TotalFeedbacks - out.Feedback.PositiveFeedbacks
	for _, n := range d.Badges {
		out.Feedback.TotalRecognitions += n
	}

	out.Mood.AverageScore = d.Satisfaction.MediaHumor
	out.Mood.TotalEntries = d.Satisfaction.Respostas
	out.Mood.Trend = moodTrend(d.Trends.Weekly)
	out.Gamification.TopUsers = d.Rankings.Gamification

	eg, egCtx := errgroup.WithContext(ctx)
	eg.Go(func() (err error) {
		out.Engagement.MoodEntries, out.Engagement.MoodUsers, err = activity(egCtx, "DailyMood", "user_id", period, dept)
		return err
	})
	eg.Go(func() (err error) {
		out.Engagement.FeedbackCount, out.Engagement.FeedbackUsers, err = activity(egCtx, "Feedbacks", "from_user_id", period, dept)
		return err
	})
	eg.Go(func() (err error) {
		out.Engagement.RecognitionCount, out.Engagement.RecognitionUsers, err = activity(egCtx, "Recognitions", "from_user_id", period, dept)
		return err
	})
	eg.Go(func() (err error) {
		out.Mood.Distribution, err = moodDistribution(egCtx, period, dept)
		return err
	})
	eg.Go(func() (err error) {
		out.Gamification.TotalPoints, out.Gamification.ActiveUsers, err = pointsSummary(egCtx, dept)
		return err
	})
	eg.Go(func() (err error) {
		out.Objectives, err = objectivesSummary(egCtx, dept)
		return err
	})
	if err := eg.Wait(); err != nil {
		return nil, err
	}
	return out, nil
}

func moodTrend(weeks []WeekPoint) string {
	if len(weeks) < 2 {
		return "stable"
	}
	delta := weeks[len(weeks)-1].AvgMood - weeks[0].AvgMood
	switch {
	case delta >= moodTrendDelta:
		return "up"
	case delta <= -moodTrendDelta:
		return "down"
	}
	return "stable"
}

// activity counts the period's rows of table and the distinct users behind them.
func activity(ctx context.Context, table, userCol string, period int, dept string) (int, int, error) {
	cond, args := deptFilter(dept, []any{since(period)})
	row, _, err := play_sql.QueryRow(ctx, `
		SELECT COUNT(*) AS total, COUNT(DISTINCT t.`+userCol+`) AS users
		FROM `+table+` t
		JOIN Users u ON u.Id = t.`+userCol+`
		WHERE t.created_at >= ?`+cond, args...)
	if err != nil {
		return 0, 0, err
	}
	return play_sql.ToInt(row["total"]), play_sql.ToInt(row["users"]), nil
}

func moodDistribution(ctx context.Context, period int, dept string) (MoodDistribution, error) {
	cond, args := deptFilter(dept, []any{since(period)})
	row, _, err := play_sql.QueryRow(ctx, `
		SELECT SUM(CASE WHEN dm.score >= 4 THEN 1 ELSE 0 END) AS happy,
			SUM(CASE WHEN dm.score = 3 THEN 1 ELSE 0 END) AS neutral,
			SUM(CASE WHEN dm.score <= 2 THEN 1 ELSE 0 END) AS sad
		FROM DailyMood dm
		JOIN Users u ON u.Id = dm.user_id
		WHERE dm.created_at >= ?`+cond, args...)
	if err != nil {
		return MoodDistribution{}, err
	}
	return MoodDistribution{
		Happy:   play_sql.ToInt(row["happy"]),
		Neutral: play_sql.ToInt(row["neutral"]),
		Sad:     play_sql.ToInt(row["sad"]),
	}, nil
}

func pointsSummary(ctx context.Context, dept string) (int, int, error) {
	cond, args := deptFilter(dept, nil)
	row, _, err := play_sql.QueryRow(ctx, `
		SELECT COALESCE(SUM(p.TotalPoints), 0) AS total,
			SUM(CASE WHEN p.TotalPoints > 0 THEN 1 ELSE 0 END) AS users
		FROM UserPoints p
		JOIN Users u ON u.Id = p.UserId
		WHERE u.IsActive = 1`+cond, args...)
	if err != nil {
		return 0, 0, err
	}
	return play_sql.ToInt(row["total"]), play_sql.ToInt(row["users"]), nil
}

// objectivesSummary counts the objectives created by the department.
// Overdue are the expired ones plus open ones past their end date.
func objectivesSummary(ctx context.Context, dept string) (ObjectivesSummary, error) {
	today := play_sql.Today()
	cond, args := deptFilter(dept, []any{today, today})
	row, _, err := play_sql.QueryRow(ctx, `
		SELECT COUNT(*) AS total,
			SUM(CASE WHEN o.status = 'Concluído' THEN 1 ELSE 0 END) AS completed,
			SUM(CASE WHEN o.status IN ('Ativo', 'Agendado', 'Aguardando Aprovação') AND o.data_fim >= ? THEN 1 ELSE 0 END) AS pending,
			SUM(CASE WHEN o.status = 'Expirado' OR (o.status <> 'Concluído' AND o.data_fim < ?) THEN 1 ELSE 0 END) AS overdue
		FROM Objetivos o
		JOIN Users u ON u.Id = o.criado_por
		WHERE 1=1`+cond, args...)
	if err != nil {
		return ObjectivesSummary{}, err
	}
	return ObjectivesSummary{
		TotalObjectives:     play_sql.ToInt(row["total"]),
		CompletedObjectives: play_sql.ToInt(row["completed"]),
		PendingObjectives:   play_sql.ToInt(row["pending"]),
		OverdueObjectives:   play_sql.ToInt(row["overdue"]),
	}, nil
}

type DailyCount struct {
	Date  string `json:"date"`
	Count int    `json:"count"`
}

type DailyMoodPoint struct {
	Date    string  `json:"date"`
	AvgMood float64 `json:"avg_mood"`
	Entries int     `json:"entries"`
}

type Temporal struct {
	DailyMood    []DailyMoodPoint `json:"dailyMood"`
	Feedbacks    []DailyCount     `json:"feedbacks"`
	Recognitions []DailyCount     `json:"recognitions"`
	Objectives   []DailyCount     `json:"objectives"`
	Period       int              `json:"period"`
	Department   string           `json:"department"`
	GeneratedAt  string           `json:"generatedAt"`
	Message      string           `json:"message"`
}

// TemporalFor returns one series per activity, each sorted by day.
func TemporalFor(ctx context.Context, period int, dept string) (*Temporal, error) {
	from := since(period)
	out := &Temporal{
		Period:      period,
		Department:  dept,
		GeneratedAt: play_sql.Clock().Now().UTC().Format(time.RFC3339),
		Message:     "Dados temporais carregados com sucesso",
	}
	if out.Department == "" {
		out.Department = "Todos"
	}

	moods, err := dailyCounts(ctx, "DailyMood", "user_id", from, dept, true)
	if err != nil {
		return nil, err
	}
	out.DailyMood = []DailyMoodPoint{}
	for _, d := range sortedDays(moods) {
		v := moods[d]
		out.DailyMood = append(out.DailyMood, DailyMoodPoint{Date: d, AvgMood: round1(v[1] / v[0]), Entries: int(v[0])})
	}

	for _, s := range []struct {
		dst            *[]DailyCount
		table, userCol string
	}{
		{&out.Feedbacks, "Feedbacks", "from_user_id"},
		{&out.Recognitions, "Recognitions", "from_user_id"},
		{&out.Objectives, "Objetivos", "criado_por"},
	} {
		counts, err := dailyCounts(ctx, s.table, s.userCol, from, dept, false)
		if err != nil {
			return nil, err
		}
		series := []DailyCount{}
		for _, d := range sortedDays(counts) {
			series = append(series, DailyCount{Date: d, Count: int(counts[d][0])})
		}
		*s.dst = series
	}
	return out, nil
}

func sortedDays(m map[string][2]float64) []string {
	out := make([]string, 0, len(m))
	for d := range m {
		out = append(out, d)
	}
	slices.Sort(out)
	return out
}

type DepartmentOption struct {
	Name      string `json:"name"`
	Value     string `json:"value"`
	UserCount int    `json:"userCount"`
}

// DepartmentOptions is the department filter of the analytics page.
func DepartmentOptions(ctx context.Context) ([]DepartmentOption, error) {
	list, err := DepartmentList(ctx)
	if err != nil {
		return nil, err
	}
	out := make([]DepartmentOption, 0, len(list))
	for _, d := range list {
		out = append(out, DepartmentOption{Name: d.Departamento, Value: d.Departamento, UserCount: d.TotalUsers})
	}
	return out, nil
}
