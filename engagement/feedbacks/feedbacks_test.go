package feedbacks

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"net/url"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/jonboulle/clockwork"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"lumigente_backend/engagement/notifications"
	"lumigente_backend/main/database"
	"lumigente_backend/main/mailer"
	"lumigente_backend/main/play_sql"
	"lumigente_backend/main/session"
	"lumigente_backend/users/access"
)

type fixture struct {
	clock      *clockwork.FakeClock
	ana, bruno int64
	caio       int64
	rec        *mailer.Recorder
}

func setup(t *testing.T) fixture {
	t.Helper()
	conn := database.OpenTest(t)
	f := fixture{
		clock: clockwork.NewFakeClockAt(time.Date(2026, 3, 10, 9, 0, 0, 0, time.Local)),
		rec:   &mailer.Recorder{},
	}
	play_sql.SetClock(f.clock)
	mailer.SetDefault(f.rec, "http://lumi.test")
	t.Cleanup(func() {
		play_sql.SetClock(nil)
		mailer.SetDefault(nil, "")
	})
	f.ana = database.CreateTestUser(t, conn, database.TestUser{CPF: "111.444.777-35", NomeCompleto: "Ana Souza", Email: "ana@lumi.com"})
	f.bruno = database.CreateTestUser(t, conn, database.TestUser{CPF: "529.982.247-25", NomeCompleto: "Bruno Lima", Email: "bruno@lumi.com"})
	f.caio = database.CreateTestUser(t, conn, database.TestUser{CPF: "123.456.789-09", NomeCompleto: "Caio Reis"})
	return f
}

func router(u *access.User) *gin.Engine {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.Use(session.WithUser(u))
	r.GET("/api/feedbacks/received", ReceivedHandler)
	r.GET("/api/feedbacks/sent", SentHandler)
	r.GET("/api/feedbacks/filters", FiltersHandler)
	r.POST("/api/feedbacks", CreateHandler)
	r.GET("/api/feedbacks/:id/info", InfoHandler)
	r.GET("/api/feedbacks/:id/messages", MessagesHandler)
	r.POST("/api/feedbacks/:id/messages", PostMessageHandler)
	r.POST("/api/feedbacks/:id/react", ReactHandler)
	r.POST("/api/feedbacks/messages/:messageId/react", ReactMessageHandler)
	r.GET("/api/metrics", MetricsHandler)
	return r
}

func call(r *gin.Engine, method, path string, body any) *httptest.ResponseRecorder {
	var buf bytes.Buffer
	if body != nil {
		_ = json.NewEncoder(&buf).Encode(body)
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func decode[T any](t *testing.T, w *httptest.ResponseRecorder) T {
	t.Helper()
	var out T
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &out), w.Body.String())
	return out
}

func (f fixture) asAna() *access.User { return &access.User{ID: f.ana, NomeCompleto: "Ana Souza"} }
func (f fixture) asBruno() *access.User { return &access.User{ID: f.bruno, NomeCompleto: "Bruno Lima"} }

func TestCreateValidation(t *testing.T) {
	f := setup(t)
	r := router(f.asAna())

	w := call(r, http.MethodPost, "/api/feedbacks", gin.H{"to_user_id": f.bruno, "type": "Positivo"})
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Contains(t, w.Body.String(), "Todos os campos são obrigatórios")

	w = call(r, http.MethodPost, "/api/feedbacks", gin.H{"to_user_id": f.ana, "type": "Positivo", "category": "Técnico", "message": "oi"})
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = call(r, http.MethodPost, "/api/feedbacks", gin.H{"to_user_id": 999, "type": "Positivo", "category": "Técnico", "message": "oi"})
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestCreateAwardsNotifiesAndMails(t *testing.T) {
	f := setup(t)
	ctx := context.Background()
	r := router(f.asAna())

	w := call(r, http.MethodPost, "/api/feedbacks", gin.H{"to_user_id": f.bruno, "type": "Positivo", "category": "Técnico", "message": "Ótimo trabalho"})
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	body := decode[struct {
		Success       bool   `json:"success"`
		ID            int64  `json:"id"`
		PointsEarned  int    `json:"pointsEarned"`
		PointsMessage string `json:"pointsMessage"`
	}](t, w)
	assert.True(t, body.Success)
	assert.Positive(t, body.ID)
	assert.Equal(t, 10, body.PointsEarned)

	// Second feedback on the same day earns nothing.
	w = call(r, http.MethodPost, "/api/feedbacks", gin.H{"to_user_id": f.caio, "type": "Construtivo", "category": "Comunicação", "message": "Podemos alinhar"})
	require.Equal(t, http.StatusCreated, w.Code)
	assert.Contains(t, w.Body.String(), `"pointsEarned":0`)

	list, err := notifications.Unread(ctx, f.bruno, 10)
	require.NoError(t, err)
	require.Len(t, list, 1)
	assert.Equal(t, "Ana Souza enviou um feedback para você", list[0].Message)
	assert.Equal(t, body.ID, list[0].RelatedID)

	sent := f.rec.Messages()
	require.Len(t, sent, 1, "Caio has no e-mail")
	assert.Equal(t, "bruno@lumi.com", sent[0].To)
}

func TestReceivedAndSentLists(t *testing.T) {
	f := setup(t)
	ctx := context.Background()
	r := router(f.asAna())

	call(r, http.MethodPost, "/api/feedbacks", gin.H{"to_user_id": f.bruno, "type": "Positivo", "category": "Técnico", "message": "Primeiro"})
	f.clock.Advance(time.Hour)
	call(r, http.MethodPost, "/api/feedbacks", gin.H{"to_user_id": f.bruno, "type": "Construtivo", "category": "Comunicação", "message": "Segundo"})
	f.clock.Advance(24 * time.Hour)
	call(r, http.MethodPost, "/api/feedbacks", gin.H{"to_user_id": f.caio, "type": "Positivo", "category": "Técnico", "message": "Terceiro"})

	type row struct {
		Message      string `json:"message"`
		ToName       string `json:"to_name"`
		EarnedPoints bool   `json:"earned_points"`
	}
	sent := decode[[]row](t, call(r, http.MethodGet, "/api/feedbacks/sent", nil))
	require.Len(t, sent, 3)
	assert.Equal(t, []row{
		{Message: "Terceiro", ToName: "Caio Reis", EarnedPoints: true},
		{Message: "Segundo", ToName: "Bruno Lima", EarnedPoints: false},
		{Message: "Primeiro", ToName: "Bruno Lima", EarnedPoints: true},
	}, sent)

	sent = decode[[]row](t, call(r, http.MethodGet, "/api/feedbacks/sent?search=caio", nil))
	assert.Len(t, sent, 1)
	sent = decode[[]row](t, call(r, http.MethodGet, "/api/feedbacks/sent?type=Positivo&dateEnd=2026-03-10", nil))
	require.Len(t, sent, 1)
	assert.Equal(t, "Primeiro", sent[0].Message)

	received := decode[[]map[string]any](t, call(router(f.asBruno()), http.MethodGet, "/api/feedbacks/received?category="+url.QueryEscape("Técnico"), nil))
	require.Len(t, received, 1)
	assert.Equal(t, "Ana Souza", received[0]["from_name"])
	assert.Equal(t, false, received[0]["viewed"])
	_, hasEarned := received[0]["earned_points"]
	assert.False(t, hasEarned)

	filters := decode[map[string][]string](t, call(r, http.MethodGet, "/api/feedbacks/filters", nil))
	assert.Equal(t, []string{"Construtivo", "Positivo"}, filters["types"])
	assert.Equal(t, []string{"Comunicação", "Técnico"}, filters["categories"])

	n, err := play_sql.Count(ctx, "SELECT COUNT(*) FROM Feedbacks")
	require.NoError(t, err)
	assert.Equal(t, 3, n)
}

func TestThread(t *testing.T) {
	f := setup(t)
	ctx := context.Background()
	id, err := Create(ctx, f.ana, f.bruno, "Positivo", "Técnico", "Bom trabalho")
	require.NoError(t, err)
	path := fmt.Sprintf("/api/feedbacks/%d", id)

	outsider := router(&access.User{ID: f.caio})
	assert.Equal(t, http.StatusForbidden, call(outsider, http.MethodGet, path+"/messages", nil).Code)
	assert.Equal(t, http.StatusNotFound, call(outsider, http.MethodGet, "/api/feedbacks/999/info", nil).Code)

	ana, bruno := router(f.asAna()), router(f.asBruno())

	// The sender reading does not mark it viewed.
	call(ana, http.MethodGet, path+"/messages", nil)
	fb, err := Get(ctx, id)
	require.NoError(t, err)
	assert.False(t, fb.Viewed)

	assert.JSONEq(t, `[]`, call(bruno, http.MethodGet, path+"/messages", nil).Body.String())
	fb, err = Get(ctx, id)
	require.NoError(t, err)
	assert.True(t, fb.Viewed)

	assert.Equal(t, http.StatusBadRequest, call(bruno, http.MethodPost, path+"/messages", gin.H{"message": "   "}).Code)

	w := call(bruno, http.MethodPost, path+"/messages", gin.H{"message": "Obrigado!"})
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	first := decode[struct {
		Message      Message `json:"message"`
		PointsEarned int     `json:"pointsEarned"`
	}](t, w)
	assert.Equal(t, "Obrigado!", first.Message.Message)
	assert.Equal(t, "Bruno Lima", first.Message.UserName)
	assert.Equal(t, 10, first.PointsEarned)

	w = call(ana, http.MethodPost, path+"/messages", gin.H{"message": "De nada", "reply_to": first.Message.ID})
	require.Equal(t, http.StatusCreated, w.Code)
	assert.NotContains(t, w.Body.String(), "pointsEarned")

	replies, err := notifications.Unread(ctx, f.ana, 10)
	require.NoError(t, err)
	require.Len(t, replies, 1)
	assert.Equal(t, notifications.FeedbackReply, replies[0].Type)

	w = call(ana, http.MethodPost, fmt.Sprintf("/api/feedbacks/messages/%d/react", first.Message.ID), gin.H{"emoji": "👍"})
	assert.JSONEq(t, `{"success":true,"action":"added","emoji":"👍"}`, w.Body.String())

	msgs := decode[[]Message](t, call(ana, http.MethodGet, path+"/messages", nil))
	require.Len(t, msgs, 2)
	assert.Equal(t, []Reaction{{Emoji: "👍", Count: 1, UserReacted: true}}, msgs[0].Reactions)
	assert.Equal(t, first.Message.ID, msgs[1].ReplyToID)
	assert.Equal(t, "Obrigado!", msgs[1].ReplyToMessage)
	assert.Equal(t, "Bruno Lima", msgs[1].ReplyToUser)

	w = call(ana, http.MethodPost, fmt.Sprintf("/api/feedbacks/messages/%d/react", first.Message.ID), gin.H{"emoji": "👍"})
	assert.Contains(t, w.Body.String(), `"removed"`)
	w = call(ana, http.MethodPost, "/api/feedbacks/messages/999/react", gin.H{"emoji": "👍"})
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestUsefulReaction(t *testing.T) {
	f := setup(t)
	ctx := context.Background()
	id, err := Create(ctx, f.ana, f.bruno, "Positivo", "Técnico", "Bom trabalho")
	require.NoError(t, err)
	bruno := router(f.asBruno())
	path := fmt.Sprintf("/api/feedbacks/%d/react", id)

	assert.Equal(t, http.StatusBadRequest, call(bruno, http.MethodPost, path, gin.H{}).Code)
	assert.JSONEq(t, `{"success":true,"action":"added","reaction":"useful"}`, call(bruno, http.MethodPost, path, gin.H{"reaction": "useful"}).Body.String())

	received := decode[[]map[string]any](t, call(bruno, http.MethodGet, "/api/feedbacks/received", nil))
	require.Len(t, received, 1)
	assert.Equal(t, float64(1), received[0]["useful_count"])
	assert.Equal(t, true, received[0]["user_reacted"])
	assert.Equal(t, true, received[0]["has_reactions"])

	list, err := notifications.Unread(ctx, f.ana, 10)
	require.NoError(t, err)
	require.Len(t, list, 1)
	assert.Equal(t, "Bruno Lima marcou seu feedback como útil", list[0].Message)

	assert.Contains(t, call(bruno, http.MethodPost, path, gin.H{"reaction": "useful"}).Body.String(), `"removed"`)
}

func TestMetrics(t *testing.T) {
	f := setup(t)
	ctx := context.Background()
	old := f.clock.Now()
	_, err := Create(ctx, f.bruno, f.ana, "Positivo", "Técnico", "antigo")
	require.NoError(t, err)
	f.clock.Advance(40 * 24 * time.Hour)

	_, err = Create(ctx, f.bruno, f.ana, "Positivo", "Técnico", "novo")
	require.NoError(t, err)
	_, err = Create(ctx, f.ana, f.bruno, "Positivo", "Técnico", "enviado")
	require.NoError(t, err)
	_, err = play_sql.Insert(ctx, "INSERT INTO Recognitions (from_user_id, to_user_id, badge, message, points, created_at) VALUES (?, ?, ?, ?, 5, ?)",
		f.bruno, f.ana, "Inovador", "valeu", play_sql.Now())
	require.NoError(t, err)
	for _, score := range []int{4, 5} {
		_, err = play_sql.Insert(ctx, "INSERT INTO DailyMood (user_id, score, created_at) VALUES (?, ?, ?)", f.ana, score, play_sql.Now())
		require.NoError(t, err)
	}
	_, err = play_sql.Insert(ctx, "INSERT INTO DailyMood (user_id, score, created_at) VALUES (?, ?, ?)", f.ana, 1, old.Format(play_sql.DateTimeLayout))
	require.NoError(t, err)

	w := call(router(f.asAna()), http.MethodGet, "/api/metrics", nil)
	assert.JSONEq(t, `{"feedbacksReceived":1,"feedbacksSent":1,"recognitionsReceived":1,"avgScore":4.5}`, w.Body.String())
}
