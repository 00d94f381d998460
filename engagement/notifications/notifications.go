package notifications

import (
	"context"
	"strings"

	"go.uber.org/zap"

	"lumigente_backend/main/logger"
	"lumigente_backend/main/mailer"
	"lumigente_backend/main/metrics"
	"lumigente_backend/main/play_sql"
)

// Notification types stored in Notifications.Type.
const (
	FeedbackReceived    = "feedback_received"
	FeedbackReply       = "feedback_reply"
	FeedbackUseful      = "feedback_useful"
	RecognitionReceived = "recognition_received"
	MoodUpdate          = "mood_update"
	ObjetivoCheckin     = "objetivo_checkin"
	ObjetivoCriado      = "objetivo_criado"
	ObjetivoAprovado    = "objetivo_aprovado"
	ObjetivoRejeitado   = "objetivo_rejeitado"
	PesquisaNova        = "nova_pesquisa"
	AvaliacaoAberta     = "avaliacao_aberta"
	AvaliacaoLembrete   = "avaliacao_lembrete"
	AvaliacaoExpirada   = "avaliacao_expirada"
	PDICriado           = "pdi_criado"
)

const maxMessage = 500

type Notification struct {
	ID        int64  `json:"Id"`
	UserID    int64  `json:"UserId"`
	Type      string `json:"Type"`
	Message   string `json:"Message"`
	RelatedID int64  `json:"RelatedId"`
	IsRead    bool   `json:"IsRead"`
	CreatedAt string `json:"CreatedAt"`
}

// Create stores a notification and returns its id, or 0 when it could not be
// stored. The error is only logged: a failed notification never fails the
// action that triggered it.
func Create(ctx context.Context, userID int64, typ, message string, relatedID int64) int64 {
	if len([]rune(message)) > maxMessage {
		message = string([]rune(message)[:maxMessage])
	}
	var related any
	if relatedID > 0 {
		related = relatedID
	}
	id, err := play_sql.Insert(ctx,
		"INSERT INTO Notifications (UserId, Type, Message, RelatedId, IsRead, CreatedAt) VALUES (?, ?, ?, ?, 0, ?)",
		userID, typ, message, related, play_sql.Now())
	if err != nil {
		logger.L().Error("create notification", zap.Int64("user_id", userID), zap.String("type", typ), zap.Error(err))
		return 0
	}
	metrics.NotificationsCreated.WithLabelValues(typ).Inc()
	return id
}

// CreateMany notifies every user in userIDs and returns how many were stored.
func CreateMany(ctx context.Context, userIDs []int64, typ, message string, relatedID int64) int {
	n := 0
	for _, id := range userIDs {
		if Create(ctx, id, typ, message, relatedID) > 0 {
			n++
		}
	}
	return n
}

// Compose builds the mail for a recipient given their address and first name.
type Compose func(to, name string) (mailer.Message, error)

// Mail sends compose's message to userID through the default mailer. Users
// without an e-mail are skipped. Failures are logged.
func Mail(ctx context.Context, userID int64, compose Compose) bool {
	row, found, err := play_sql.QueryRow(ctx,
		"SELECT Email, nome, NomeCompleto FROM Users WHERE Id = ? AND IsActive = 1", userID)
	if err != nil {
		logger.L().Warn("mail recipient lookup", zap.Int64("user_id", userID), zap.Error(err))
		return false
	}
	if !found || strings.TrimSpace(row["Email"]) == "" {
		return false
	}
	name := firstName(row["nome"], row["NomeCompleto"])
	msg, err := compose(strings.TrimSpace(row["Email"]), name)
	if err != nil {
		logger.L().Warn("render mail", zap.Int64("user_id", userID), zap.Error(err))
		return false
	}
	if err := mailer.Default().Send(ctx, msg); err != nil {
		logger.L().Warn("send mail", zap.Int64("user_id", userID), zap.String("subject", msg.Subject), zap.Error(err))
		return false
	}
	return true
}

func firstName(values ...string) string {
	for _, v := range values {
		if fields := strings.Fields(v); len(fields) > 0 {
			return fields[0]
		}
	}
	return "colaborador"
}

// Unread returns the newest unread notifications of userID.
func Unread(ctx context.Context, userID int64, limit int) ([]Notification, error) {
	rows, err := play_sql.QueryRows(ctx, `
		SELECT Id, UserId, Type, Message, RelatedId, IsRead, CreatedAt
		FROM Notifications
		WHERE UserId = ? AND IsRead = 0
		ORDER BY CreatedAt DESC, Id DESC
		LIMIT ?`, userID, limit)
	if err != nil {
		return nil, err
	}
	out := make([]Notification, 0, len(rows))
	for _, row := range rows {
		out = append(out, Notification{
			ID:        play_sql.ToInt64(row["Id"]),
			UserID:    play_sql.ToInt64(row["UserId"]),
			Type:      row["Type"],
			Message:   row["Message"],
			RelatedID: play_sql.ToInt64(row["RelatedId"]),
			IsRead:    play_sql.ToBool(row["IsRead"]),
			CreatedAt: row["CreatedAt"],
		})
	}
	return out, nil
}

func CountUnread(ctx context.Context, userID int64) (int, error) {
	return play_sql.Count(ctx, "SELECT COUNT(*) AS total FROM Notifications WHERE UserId = ? AND IsRead = 0", userID)
}

// MarkRead only touches notifications owned by userID.
func MarkRead(ctx context.Context, userID, id int64) (bool, error) {
	n, err := play_sql.Exec(ctx, "UPDATE Notifications SET IsRead = 1 WHERE Id = ? AND UserId = ?", id, userID)
	return n > 0, err
}

func MarkAllRead(ctx context.Context, userID int64) (int64, error) {
	return play_sql.Exec(ctx, "UPDATE Notifications SET IsRead = 1 WHERE UserId = ? AND IsRead = 0", userID)
}
