package recognitions

import (
	"context"
	"sort"
	"strings"

	"lumigente_backend/engagement/gamification"
	"lumigente_backend/main/play_sql"
)

// Badges offered by the frontend. Anything else is filed under "Outros".
var Badges = []string{"Inovador", "Colaborativo", "Dedicado", "Criativo"}

const Others = "Outros"

const (
	DirectionReceived = "received"
	DirectionGiven    = "given"
)

type Recognition struct {
	ID           int64  `json:"Id"`
	FromUserID   int64  `json:"from_user_id"`
	ToUserID     int64  `json:"to_user_id"`
	Badge        string `json:"badge"`
	Message      string `json:"message"`
	Points       int    `json:"points"`
	CreatedAt    string `json:"created_at"`
	FromName     string `json:"from_name"`
	ToName       string `json:"to_name"`
	Direction    string `json:"direction,omitempty"`
	EarnedPoints *bool  `json:"earned_points,omitempty"`
}

const pointsPerRecognition = 5

func Create(ctx context.Context, from, to int64, badge, message string) (int64, error) {
	return play_sql.Insert(ctx, `
		INSERT INTO Recognitions (from_user_id, to_user_id, badge, message, points, created_at)
		VALUES (?, ?, ?, ?, ?, ?)`, from, to, badge, message, pointsPerRecognition, play_sql.Now())
}

type Filter struct {
	DateStart string
	DateEnd   string
	Badge     string
}

func (f Filter) apply(query string, args []any) (string, []any) {
	if start, ok := play_sql.DayStart(f.DateStart); ok {
		query += " AND r.created_at >= ?"
		args = append(args, start)
	}
	if end, ok := play_sql.DayAfter(f.DateEnd); ok {
		query += " AND r.created_at < ?"
		args = append(args, end)
	}
	switch badge := strings.TrimSpace(f.Badge); badge {
	case "":
	case Others:
		query += " AND r.badge NOT IN (" + play_sql.InClause(len(Badges)) + ")"
		args = append(args, play_sql.Args(Badges)...)
	default:
		query += " AND r.badge = ?"
		args = append(args, badge)
	}
	return query, args
}

func list(ctx context.Context, column string, userID int64, f Filter) ([]Recognition, error) {
	query, args := f.apply(`
		SELECT r.Id, r.from_user_id, r.to_user_id, r.badge, r.message, r.points, r.created_at,
		       u1.NomeCompleto AS from_name, u2.NomeCompleto AS to_name
		FROM Recognitions r
		JOIN Users u1 ON r.from_user_id = u1.Id
		JOIN Users u2 ON r.to_user_id = u2.Id
		WHERE r.`+column+` = ?`, []any{userID})
	rows, err := play_sql.QueryRows(ctx, query+" ORDER BY r.created_at DESC, r.Id DESC", args...)
	if err != nil {
		return nil, err
	}
	out := make([]Recognition, 0, len(rows))
	for _, row := range rows {
		out = append(out, Recognition{
			ID:         play_sql.ToInt64(row["Id"]),
			FromUserID: play_sql.ToInt64(row["from_user_id"]),
			ToUserID:   play_sql.ToInt64(row["to_user_id"]),
			Badge:      row["badge"],
			Message:    row["message"],
			Points:     play_sql.ToInt(row["points"]),
			CreatedAt:  row["created_at"],
			FromName:   row["from_name"],
			ToName:     row["to_name"],
		})
	}
	return out, nil
}

// Received lists what userID was recognised for, newest first.
func Received(ctx context.Context, userID int64, f Filter) ([]Recognition, error) {
	return list(ctx, "to_user_id", userID, f)
}

// Given lists what userID handed out, newest first.
func Given(ctx context.Context, userID int64, f Filter) ([]Recognition, error) {
	return list(ctx, "from_user_id", userID, f)
}

// awardDays returns the days on which userID earned points for action.
func awardDays(ctx context.Context, userID int64, action string) (map[string]bool, error) {
	rows, err := play_sql.QueryRows(ctx,
		"SELECT CreatedAt FROM Gamification WHERE UserId = ? AND Action = ?", userID, action)
	if err != nil {
		return nil, err
	}
	out := map[string]bool{}
	for _, r := range rows {
		if d := r["CreatedAt"]; len(d) >= 10 {
			out[d[:10]] = true
		}
	}
	return out, nil
}

// All merges received and given recognitions, tagging each with its direction
// and whether points were earned for that kind of recognition on its day.
func All(ctx context.Context, userID int64, f Filter) ([]Recognition, error) {
	received, err := Received(ctx, userID, f)
	if err != nil {
		return nil, err
	}
	given, err := Given(ctx, userID, f)
	if err != nil {
		return nil, err
	}
	receivedDays, err := awardDays(ctx, userID, gamification.ReconhecimentoRecebido)
	if err != nil {
		return nil, err
	}
	givenDays, err := awardDays(ctx, userID, gamification.ReconhecimentoEnviado)
	if err != nil {
		return nil, err
	}

	tag := func(r Recognition, direction string, days map[string]bool) Recognition {
		earned := len(r.CreatedAt) >= 10 && days[r.CreatedAt[:10]]
		r.Direction = direction
		r.EarnedPoints = &earned
		return r
	}
	out := make([]Recognition, 0, len(received)+len(given))
	for _, r := range received {
		out = append(out, tag(r, DirectionReceived, receivedDays))
	}
	for _, r := range given {
		out = append(out, tag(r, DirectionGiven, givenDays))
	}
	sort.SliceStable(out, func(i, j int) bool {
		if out[i].CreatedAt != out[j].CreatedAt {
			return out[i].CreatedAt > out[j].CreatedAt
		}
		return out[i].ID > out[j].ID
	})
	return out, nil
}
