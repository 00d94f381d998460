package feedbacks

import (
	"context"
	"errors"
	"math"
	"strings"

	"lumigente_backend/engagement/gamification"
	"lumigente_backend/main/api"
	"lumigente_backend/main/play_sql"
)

var (
	ErrNotFound        = errors.New("feedback não encontrado")
	ErrMessageNotFound = errors.New("mensagem não encontrada")
)

// Filter narrows the received and sent lists. Dates are YYYY-MM-DD and inclusive.
type Filter struct {
	Search    string
	Type      string
	Category  string
	DateStart string
	DateEnd   string
}

const (
	Received = "received"
	Sent     = "sent"
)

const listColumns = `f.Id, f.from_user_id, f.to_user_id, f.type, f.category, f.message,
	f.viewed, f.viewed_at, f.created_at,
	u1.NomeCompleto AS from_name, u2.NomeCompleto AS to_name,
	(SELECT COUNT(*) FROM FeedbackReplies fr WHERE fr.feedback_id = f.Id) AS replies_count,
	(SELECT COUNT(*) FROM FeedbackReactions r WHERE r.feedback_id = f.Id AND r.reaction_type = 'useful') AS useful_count,
	(SELECT COUNT(*) FROM FeedbackReactions r WHERE r.feedback_id = f.Id AND r.reaction_type = 'useful' AND r.user_id = ?) AS user_reacted,
	(SELECT COUNT(*) FROM FeedbackReactions r WHERE r.feedback_id = f.Id AND r.reaction_type <> 'viewed') AS has_reactions`

// List returns the feedbacks userID received or sent, newest first.
func List(ctx context.Context, userID int64, direction string, f Filter) ([]api.JsonEncode, error) {
	own, counterpart := "f.to_user_id", "u1.NomeCompleto"
	if direction == Sent {
		own, counterpart = "f.from_user_id", "u2.NomeCompleto"
	}
	query := `SELECT ` + listColumns + `
		FROM Feedbacks f
		JOIN Users u1 ON f.from_user_id = u1.Id
		JOIN Users u2 ON f.to_user_id = u2.Id
		WHERE ` + own + ` = ?`
	args := []any{userID, userID}

	if s := strings.TrimSpace(f.Search); s != "" {
		query += " AND (LOWER(f.message) LIKE LOWER(?) OR LOWER(" + counterpart + ") LIKE LOWER(?))"
		args = append(args, "%"+s+"%", "%"+s+"%")
	}
	if f.Type != "" {
		query += " AND f.type = ?"
		args = append(args, f.Type)
	}
	if f.Category != "" {
		query += " AND f.category = ?"
		args = append(args, f.Category)
	}
	if start, ok := play_sql.DayStart(f.DateStart); ok {
		query += " AND f.created_at >= ?"
		args = append(args, start)
	}
	if end, ok := play_sql.DayAfter(f.DateEnd); ok {
		query += " AND f.created_at < ?"
		args = append(args, end)
	}
	query += " ORDER BY f.created_at DESC, f.Id DESC"

	rows, err := play_sql.QueryRows(ctx, query, args...)
	if err != nil {
		return nil, err
	}

	var earned map[int64]bool
	if direction == Sent {
		if earned, err = pointedFeedbacks(ctx, userID); err != nil {
			return nil, err
		}
	}

	out := make([]api.JsonEncode, 0, len(rows))
	for _, row := range rows {
		id := play_sql.ToInt64(row["Id"])
		item := api.J(
			"Id", id,
			"from_user_id", play_sql.ToInt64(row["from_user_id"]),
			"to_user_id", play_sql.ToInt64(row["to_user_id"]),
			"type", row["type"],
			"category", row["category"],
			"message", row["message"],
			"created_at", row["created_at"],
			"from_name", row["from_name"],
			"to_name", row["to_name"],
			"replies_count", play_sql.ToInt(row["replies_count"]),
			"useful_count", play_sql.ToInt(row["useful_count"]),
			"viewed", play_sql.ToBool(row["viewed"]),
			"viewed_at", row["viewed_at"],
			"user_reacted", play_sql.ToInt(row["user_reacted"]) > 0,
			"has_reactions", play_sql.ToInt(row["has_reactions"]) > 0,
		)
		if direction == Sent {
			item["earned_points"] = earned[id]
		}
		out = append(out, item)
	}
	return out, nil
}

// pointedFeedbacks marks, for each day the sender was awarded feedback points,
// the first feedback sent that day.
func pointedFeedbacks(ctx context.Context, userID int64) (map[int64]bool, error) {
	awards, err := play_sql.QueryRows(ctx,
		"SELECT CreatedAt FROM Gamification WHERE UserId = ? AND Action = ?", userID, gamification.FeedbackEnviado)
	if err != nil {
		return nil, err
	}
	days := map[string]bool{}
	for _, a := range awards {
		days[day(a["CreatedAt"])] = true
	}

	sent, err := play_sql.QueryRows(ctx,
		"SELECT Id, created_at FROM Feedbacks WHERE from_user_id = ? ORDER BY created_at, Id", userID)
	if err != nil {
		return nil, err
	}
	out := map[int64]bool{}
	seen := map[string]bool{}
	for _, s := range sent {
		d := day(s["created_at"])
		if seen[d] {
			continue
		}
		seen[d] = true
		if days[d] {
			out[play_sql.ToInt64(s["Id"])] = true
		}
	}
	return out, nil
}

func day(datetime string) string {
	if len(datetime) >= 10 {
		return datetime[:10]
	}
	return datetime
}

// Feedback is the header shown above a feedback thread.
type Feedback struct {
	ID         int64  `json:"Id"`
	FromUserID int64  `json:"from_user_id"`
	ToUserID   int64  `json:"to_user_id"`
	Type       string `json:"type"`
	Category   string `json:"category"`
	Message    string `json:"message"`
	CreatedAt  string `json:"created_at"`
	FromName   string `json:"from_name"`
	ToName     string `json:"to_name"`
	Viewed     bool   `json:"viewed"`
}

// Participant reports whether userID sent or received the feedback.
func (f *Feedback) Participant(userID int64) bool {
	return f.FromUserID == userID || f.ToUserID == userID
}

func Get(ctx context.Context, id int64) (*Feedback, error) {
	row, found, err := play_sql.QueryRow(ctx, `
		SELECT f.Id, f.from_user_id, f.to_user_id, f.type, f.category, f.message, f.created_at, f.viewed,
		       u1.NomeCompleto AS from_name, u2.NomeCompleto AS to_name
		FROM Feedbacks f
		JOIN Users u1 ON f.from_user_id = u1.Id
		JOIN Users u2 ON f.to_user_id = u2.Id
		WHERE f.Id = ?`, id)
	if err != nil {
		return nil, err
	}
	if !found {
		return nil, ErrNotFound
	}
	return &Feedback{
		ID:         play_sql.ToInt64(row["Id"]),
		FromUserID: play_sql.ToInt64(row["from_user_id"]),
		ToUserID:   play_sql.ToInt64(row["to_user_id"]),
		Type:       row["type"],
		Category:   row["category"],
		Message:    row["message"],
		CreatedAt:  row["created_at"],
		FromName:   row["from_name"],
		ToName:     row["to_name"],
		Viewed:     play_sql.ToBool(row["viewed"]),
	}, nil
}

// Create stores a feedback and returns its id.
func Create(ctx context.Context, from, to int64, typ, category, message string) (int64, error) {
	now := play_sql.Now()
	return play_sql.Insert(ctx, `
		INSERT INTO Feedbacks (from_user_id, to_user_id, type, category, message, viewed, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, 0, ?, ?)`, from, to, typ, category, message, now, now)
}

// MarkViewed flags a feedback as read by its recipient. It is a no-op when
// already viewed.
func MarkViewed(ctx context.Context, id int64) error {
	_, err := play_sql.Exec(ctx,
		"UPDATE Feedbacks SET viewed = 1, viewed_at = ? WHERE Id = ? AND (viewed = 0 OR viewed IS NULL)",
		play_sql.Now(), id)
	return err
}

type Reaction struct {
	Emoji       string `json:"emoji"`
	Count       int    `json:"count"`
	UserReacted bool   `json:"userReacted"`
}

type Message struct {
	ID             int64      `json:"Id"`
	UserID         int64      `json:"user_id"`
	Message        string     `json:"message"`
	CreatedAt      string     `json:"created_at"`
	UserName       string     `json:"user_name"`
	UserFirstName  string     `json:"user_first_name"`
	ReplyToID      int64      `json:"reply_to_id,omitempty"`
	ReplyToMessage string     `json:"reply_to_message,omitempty"`
	ReplyToUser    string     `json:"reply_to_user,omitempty"`
	Reactions      []Reaction `json:"reactions"`
}

const messageColumns = `fr.Id, fr.user_id, fr.reply_text, fr.created_at,
	u.NomeCompleto AS user_name, u.nome AS user_first_name,
	fr.reply_to_id, fr.reply_to_message, fr.reply_to_user`

func messageFrom(row map[string]string) Message {
	return Message{
		ID:             play_sql.ToInt64(row["Id"]),
		UserID:         play_sql.ToInt64(row["user_id"]),
		Message:        row["reply_text"],
		CreatedAt:      row["created_at"],
		UserName:       row["user_name"],
		UserFirstName:  row["user_first_name"],
		ReplyToID:      play_sql.ToInt64(row["reply_to_id"]),
		ReplyToMessage: row["reply_to_message"],
		ReplyToUser:    row["reply_to_user"],
		Reactions:      []Reaction{},
	}
}

// Messages returns the thread of a feedback in chronological order with the
// emoji reactions of each message as seen by viewerID.
func Messages(ctx context.Context, feedbackID, viewerID int64) ([]Message, error) {
	rows, err := play_sql.QueryRows(ctx, `SELECT `+messageColumns+`
		FROM FeedbackReplies fr
		JOIN Users u ON fr.user_id = u.Id
		WHERE fr.feedback_id = ?
		ORDER BY fr.created_at, fr.Id`, feedbackID)
	if err != nil {
		return nil, err
	}
	out := make([]Message, 0, len(rows))
	index := map[int64]int{}
	ids := make([]int64, 0, len(rows))
	for _, row := range rows {
		m := messageFrom(row)
		index[m.ID] = len(out)
		ids = append(ids, m.ID)
		out = append(out, m)
	}
	if len(ids) == 0 {
		return out, nil
	}

	args := append([]any{viewerID}, play_sql.Args(ids)...)
	reactions, err := play_sql.QueryRows(ctx, `
		SELECT reply_id, emoji, COUNT(*) AS total,
		       SUM(CASE WHEN user_id = ? THEN 1 ELSE 0 END) AS mine
		FROM FeedbackReplyReactions
		WHERE reply_id IN (`+play_sql.InClause(len(ids))+`)
		GROUP BY reply_id, emoji
		ORDER BY reply_id, emoji`, args...)
	if err != nil {
		return nil, err
	}
	for _, r := range reactions {
		i, ok := index[play_sql.ToInt64(r["reply_id"])]
		if !ok {
			continue
		}
		out[i].Reactions = append(out[i].Reactions, Reaction{
			Emoji:       r["emoji"],
			Count:       play_sql.ToInt(r["total"]),
			UserReacted: play_sql.ToInt(r["mine"]) > 0,
		})
	}
	return out, nil
}

// Reply appends a message to the thread. replyTo quotes an earlier message of
// the same feedback and is ignored when it does not belong to it.
func Reply(ctx context.Context, feedbackID, userID int64, text string, replyTo int64) (Message, error) {
	var (
		quotedID   any
		quotedText any
		quotedUser any
	)
	if replyTo > 0 {
		row, found, err := play_sql.QueryRow(ctx, `
			SELECT fr.reply_text, u.NomeCompleto
			FROM FeedbackReplies fr
			JOIN Users u ON fr.user_id = u.Id
			WHERE fr.Id = ? AND fr.feedback_id = ?`, replyTo, feedbackID)
		if err != nil {
			return Message{}, err
		}
		if found {
			quotedID, quotedText, quotedUser = replyTo, row["reply_text"], row["NomeCompleto"]
		}
	}

	id, err := play_sql.Insert(ctx, `
		INSERT INTO FeedbackReplies (feedback_id, user_id, reply_text, reply_to_id, reply_to_message, reply_to_user, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)`,
		feedbackID, userID, text, quotedID, quotedText, quotedUser, play_sql.Now())
	if err != nil {
		return Message{}, err
	}
	row, found, err := play_sql.QueryRow(ctx, `SELECT `+messageColumns+`
		FROM FeedbackReplies fr
		JOIN Users u ON fr.user_id = u.Id
		WHERE fr.Id = ?`, id)
	if err != nil {
		return Message{}, err
	}
	if !found {
		return Message{}, ErrMessageNotFound
	}
	return messageFrom(row), nil
}

// ToggleReaction adds the reaction when absent and removes it otherwise. It
// reports whether the reaction is now present.
func ToggleReaction(ctx context.Context, feedbackID, userID int64, reaction string) (bool, error) {
	row, found, err := play_sql.QueryRow(ctx,
		"SELECT Id FROM FeedbackReactions WHERE feedback_id = ? AND user_id = ? AND reaction_type = ?",
		feedbackID, userID, reaction)
	if err != nil {
		return false, err
	}
	if found {
		_, err = play_sql.Exec(ctx, "DELETE FROM FeedbackReactions WHERE Id = ?", play_sql.ToInt64(row["Id"]))
		return false, err
	}
	_, err = play_sql.Insert(ctx,
		"INSERT INTO FeedbackReactions (feedback_id, user_id, reaction_type, created_at) VALUES (?, ?, ?, ?)",
		feedbackID, userID, reaction, play_sql.Now())
	return err == nil, err
}

// ToggleMessageReaction is ToggleReaction for one emoji on a thread message.
func ToggleMessageReaction(ctx context.Context, messageID, userID int64, emoji string) (bool, error) {
	exists, err := play_sql.Count(ctx, "SELECT COUNT(*) AS total FROM FeedbackReplies WHERE Id = ?", messageID)
	if err != nil {
		return false, err
	}
	if exists == 0 {
		return false, ErrMessageNotFound
	}
	row, found, err := play_sql.QueryRow(ctx,
		"SELECT Id FROM FeedbackReplyReactions WHERE reply_id = ? AND user_id = ? AND emoji = ?",
		messageID, userID, emoji)
	if err != nil {
		return false, err
	}
	if found {
		_, err = play_sql.Exec(ctx, "DELETE FROM FeedbackReplyReactions WHERE Id = ?", play_sql.ToInt64(row["Id"]))
		return false, err
	}
	_, err = play_sql.Insert(ctx,
		"INSERT INTO FeedbackReplyReactions (reply_id, user_id, emoji, created_at) VALUES (?, ?, ?, ?)",
		messageID, userID, emoji, play_sql.Now())
	return err == nil, err
}

// Filters lists the distinct types and categories in use.
func Filters(ctx context.Context) ([]string, []string, error) {
	distinct := func(column string) ([]string, error) {
		rows, err := play_sql.QueryRows(ctx,
			"SELECT DISTINCT "+column+" AS v FROM Feedbacks WHERE "+column+" IS NOT NULL AND "+column+" <> '' ORDER BY "+column)
		if err != nil {
			return nil, err
		}
		out := make([]string, 0, len(rows))
		for _, r := range rows {
			out = append(out, r["v"])
		}
		return out, nil
	}
	types, err := distinct("type")
	if err != nil {
		return nil, nil, err
	}
	categories, err := distinct("category")
	if err != nil {
		return nil, nil, err
	}
	return types, categories, nil
}

type Metrics struct {
	FeedbacksReceived    int     `json:"feedbacksReceived"`
	FeedbacksSent        int     `json:"feedbacksSent"`
	RecognitionsReceived int     `json:"recognitionsReceived"`
	AvgScore             float64 `json:"avgScore"`
}

const metricsWindowDays = 30

// MetricsFor summarises the last 30 days of userID. AvgScore is the mean of the
// user's daily mood answers in the same window, one decimal.
func MetricsFor(ctx context.Context, userID int64) (Metrics, error) {
	since := play_sql.DaysAgo(metricsWindowDays)
	var m Metrics
	var err error
	if m.FeedbacksReceived, err = play_sql.Count(ctx,
		"SELECT COUNT(*) AS total FROM Feedbacks WHERE to_user_id = ? AND created_at >= ?", userID, since); err != nil {
		return m, err
	}
	if m.FeedbacksSent, err = play_sql.Count(ctx,
		"SELECT COUNT(*) AS total FROM Feedbacks WHERE from_user_id = ? AND created_at >= ?", userID, since); err != nil {
		return m, err
	}
	if m.RecognitionsReceived, err = play_sql.Count(ctx,
		"SELECT COUNT(*) AS total FROM Recognitions WHERE to_user_id = ? AND created_at >= ?", userID, since); err != nil {
		return m, err
	}
	row, found, err := play_sql.QueryRow(ctx,
		"SELECT AVG(score) AS avg_score FROM DailyMood WHERE user_id = ? AND created_at >= ?", userID, since)
	if err != nil {
		return m, err
	}
	if found {
		m.AvgScore = math.Round(play_sql.ToFloat(row["avg_score"])*10) / 10
	}
	return m, nil
}
