package gamification

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strconv"

	"go.uber.org/zap"

	"lumigente_backend/main/logger"
	"lumigente_backend/main/play_sql"
)

const (
	FeedbackEnviado        = "feedback_enviado"
	FeedbackRespondido     = "feedback_respondido"
	ReconhecimentoEnviado  = "reconhecimento_enviado"
	ReconhecimentoRecebido = "reconhecimento_recebido"
	HumorRespondido        = "humor_respondido"
	CheckinObjetivo        = "checkin_objetivo"
	PesquisaRespondida     = "pesquisa_respondida"
	AvaliacaoRespondida    = "avaliacao_respondida"
)

// Points per action.
var Points = map[string]int{
	FeedbackEnviado:        10,
	FeedbackRespondido:     10,
	ReconhecimentoEnviado:  5,
	ReconhecimentoRecebido: 5,
	HumorRespondido:        5,
	CheckinObjetivo:        5,
	PesquisaRespondida:     10,
	AvaliacaoRespondida:    10,
}

// Result is embedded as-is in the API responses of the actions that award points.
type Result struct {
	Success bool   `json:"success"`
	Points  int    `json:"points"`
	Message string `json:"message"`
}

const alreadyAwarded = "Pontos para esta ação já concedidos hoje."

// dayBounds returns [today 00:00, tomorrow 00:00) as DATETIME strings.
func dayBounds() (string, string) {
	now := play_sql.Clock().Now()
	start := now.Format(play_sql.DateLayout) + " 00:00:00"
	end := now.AddDate(0, 0, 1).Format(play_sql.DateLayout) + " 00:00:00"
	return start, end
}

var errAwarded = errors.New("already awarded today")

// awardedToday reports whether userID already earned points for action today.
func awardedToday(ctx context.Context, q play_sql.Querier, userID int64, action string) (bool, error) {
	start, end := dayBounds()
	row, _, err := play_sql.RowOn(ctx, q, `
		SELECT COUNT(*) AS total FROM Gamification
		WHERE UserId = ? AND Action = ? AND CreatedAt >= ? AND CreatedAt < ?`,
		userID, action, start, end)
	if err != nil {
		return false, err
	}
	return play_sql.ToInt(row["total"]) > 0, nil
}

// AddPoints credits points once per user, action and day. Failures are logged
// and reported in the Result, never returned.
//
// The UserPoints row is touched first so concurrent awards for the same user
// queue behind its row lock before the daily check runs.
func AddPoints(ctx context.Context, userID int64, action string, points int) Result {
	now := play_sql.Now()
	err := play_sql.WithTx(ctx, func(tx *sql.Tx) error {
		n, err := play_sql.ExecOn(ctx, tx,
			"UPDATE UserPoints SET LastUpdated = ? WHERE UserId = ?", now, userID)
		if err != nil {
			return fmt.Errorf("lock points: %w", err)
		}
		if n == 0 {
			if _, err := play_sql.ExecOn(ctx, tx,
				"INSERT INTO UserPoints (UserId, TotalPoints, LastUpdated) VALUES (?, 0, ?)",
				userID, now); err != nil {
				return fmt.Errorf("insert points: %w", err)
			}
		}

		done, err := awardedToday(ctx, tx, userID, action)
		if err != nil {
			return fmt.Errorf("gamification lookup: %w", err)
		}
		if done {
			return errAwarded
		}

		if _, err := play_sql.ExecOn(ctx, tx,
			"INSERT INTO Gamification (UserId, Action, Points, CreatedAt) VALUES (?, ?, ?, ?)",
			userID, action, points, now); err != nil {
			return fmt.Errorf("insert gamification: %w", err)
		}
		if _, err := play_sql.ExecOn(ctx, tx,
			"UPDATE UserPoints SET TotalPoints = TotalPoints + ? WHERE UserId = ?",
			points, userID); err != nil {
			return fmt.Errorf("update points: %w", err)
		}
		return nil
	})
	if errors.Is(err, errAwarded) {
		return Result{Message: alreadyAwarded}
	}
	if err != nil {
		logger.L().Error("gamification award", zap.Int64("user_id", userID), zap.String("action", action), zap.Error(err))
		return Result{Message: "Erro ao adicionar pontos."}
	}
	return Result{Success: true, Points: points, Message: "+" + strconv.Itoa(points) + " pontos!"}
}

// Award uses the configured points of action.
func Award(ctx context.Context, userID int64, action string) Result {
	return AddPoints(ctx, userID, action, Points[action])
}

// Total is the user's accumulated points, zero when none.
func Total(ctx context.Context, userID int64) (int, bool, error) {
	row, found, err := play_sql.QueryRow(ctx, "SELECT TotalPoints FROM UserPoints WHERE UserId = ?", userID)
	if err != nil || !found {
		return 0, false, err
	}
	return play_sql.ToInt(row["TotalPoints"]), true, nil
}

type LeaderboardEntry struct {
	ID                    int64  `json:"Id"`
	NomeCompleto          string `json:"NomeCompleto"`
	DescricaoDepartamento string `json:"DescricaoDepartamento"`
	Departamento          string `json:"Departamento"`
	TotalPoints           int    `json:"TotalPoints"`
}

type Ranking struct {
	Position    int  `json:"position"`
	TotalPoints int  `json:"totalPoints"`
	HasPoints   bool `json:"hasPoints"`
}

// Leaderboard returns the top users by points. department narrows it when set.
func Leaderboard(ctx context.Context, top int, department string) ([]LeaderboardEntry, error) {
	if top <= 0 {
		top = 10
	}
	query := `
		SELECT u.Id, u.NomeCompleto, u.DescricaoDepartamento, u.Departamento, up.TotalPoints
		FROM UserPoints up
		JOIN Users u ON up.UserId = u.Id
		WHERE u.IsActive = 1`
	args := []any{}
	if department != "" && department != "Todos" {
		query += " AND u.Departamento = ?"
		args = append(args, department)
	}
	query += " ORDER BY up.TotalPoints DESC, u.NomeCompleto LIMIT ?"
	args = append(args, top)

	rows, err := play_sql.QueryRows(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	out := make([]LeaderboardEntry, 0, len(rows))
	for _, row := range rows {
		out = append(out, LeaderboardEntry{
			ID:                    play_sql.ToInt64(row["Id"]),
			NomeCompleto:          row["NomeCompleto"],
			DescricaoDepartamento: row["DescricaoDepartamento"],
			Departamento:          row["Departamento"],
			TotalPoints:           play_sql.ToInt(row["TotalPoints"]),
		})
	}
	return out, nil
}

// RankOf is 1 + the number of users with strictly more points.
func RankOf(ctx context.Context, userID int64) (Ranking, error) {
	total, has, err := Total(ctx, userID)
	if err != nil {
		return Ranking{}, err
	}
	above, err := play_sql.Count(ctx, "SELECT COUNT(*) AS total FROM UserPoints WHERE TotalPoints > ?", total)
	if err != nil {
		return Ranking{}, err
	}
	return Ranking{Position: above + 1, TotalPoints: total, HasPoints: has}, nil
}
