package feedbacks

import (
	"errors"
	"net/http"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"

	"lumigente_backend/engagement/gamification"
	"lumigente_backend/engagement/notifications"
	"lumigente_backend/main/api"
	"lumigente_backend/main/mailer"
	"lumigente_backend/main/play_sql"
	"lumigente_backend/main/session"
	"lumigente_backend/users/access"
)

func filterFrom(c *gin.Context) Filter {
	return Filter{
		Search:    c.Query("search"),
		Type:      c.Query("type"),
		Category:  c.Query("category"),
		DateStart: c.Query("dateStart"),
		DateEnd:   c.Query("dateEnd"),
	}
}

func listHandler(direction string) gin.HandlerFunc {
	return func(c *gin.Context) {
		if api.Preflight(c) {
			return
		}
		rows, err := List(c.Request.Context(), session.Current(c).ID, direction, filterFrom(c))
		if err != nil {
			api.Internal(c, "Erro interno do servidor", err)
			return
		}
		api.Print_json(c, rows)
	}
}

// ReceivedHandler: GET /api/feedbacks/received
var ReceivedHandler = listHandler(Received)

// SentHandler: GET /api/feedbacks/sent
var SentHandler = listHandler(Sent)

type createPayload struct {
	ToUserID int64  `json:"to_user_id"`
	Type     string `json:"type"`
	Category string `json:"category"`
	Message  string `json:"message"`
}

// CreateHandler: POST /api/feedbacks
func CreateHandler(c *gin.Context) {
	if api.Preflight(c) {
		return
	}
	u := session.Current(c)
	ctx := c.Request.Context()

	var p createPayload
	_ = c.ShouldBindJSON(&p)
	p.Type, p.Category, p.Message = strings.TrimSpace(p.Type), strings.TrimSpace(p.Category), strings.TrimSpace(p.Message)
	if p.ToUserID <= 0 || p.Type == "" || p.Category == "" || p.Message == "" {
		api.Fail(c, http.StatusBadRequest, "Todos os campos são obrigatórios")
		return
	}
	if p.ToUserID == u.ID {
		api.Fail(c, http.StatusBadRequest, "Você não pode enviar feedback para si mesmo")
		return
	}
	active, err := play_sql.Count(ctx, "SELECT COUNT(*) AS total FROM Users WHERE Id = ? AND IsActive = 1", p.ToUserID)
	if err != nil {
		api.Internal(c, "Erro ao criar feedback", err)
		return
	}
	if active == 0 {
		api.Fail(c, http.StatusNotFound, "Usuário destinatário não encontrado")
		return
	}

	id, err := Create(ctx, u.ID, p.ToUserID, p.Type, p.Category, p.Message)
	if err != nil {
		api.Internal(c, "Erro ao criar feedback", err)
		return
	}
	points := gamification.Award(ctx, u.ID, gamification.FeedbackEnviado)

	from := u.DisplayName()
	notifications.Create(ctx, p.ToUserID, notifications.FeedbackReceived, from+" enviou um feedback para você", id)
	notifications.Mail(ctx, p.ToUserID, func(to, name string) (mailer.Message, error) {
		return mailer.FeedbackReceived(to, name, from)
	})

	api.Print_json(c,
		"success", true,
		"id", id,
		"pointsEarned", points.Points,
		"pointsMessage", points.Message,
		http.StatusCreated,
	)
}

// loadFeedback resolves :id and checks the session user may read the thread.
func loadFeedback(c *gin.Context, u *access.User) (*Feedback, bool) {
	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil || id <= 0 {
		api.Fail(c, http.StatusBadRequest, "ID de feedback inválido")
		return nil, false
	}
	f, err := Get(c.Request.Context(), id)
	if errors.Is(err, ErrNotFound) {
		api.Fail(c, http.StatusNotFound, "Feedback não encontrado")
		return nil, false
	}
	if err != nil {
		api.Internal(c, "Erro interno do servidor", err)
		return nil, false
	}
	if !f.Participant(u.ID) && !u.FullAccess() {
		api.Fail(c, http.StatusForbidden, "Acesso negado")
		return nil, false
	}
	return f, true
}

// InfoHandler: GET /api/feedbacks/:id/info
func InfoHandler(c *gin.Context) {
	if api.Preflight(c) {
		return
	}
	f, ok := loadFeedback(c, session.Current(c))
	if !ok {
		return
	}
	api.Print_json(c, f)
}

// MessagesHandler: GET /api/feedbacks/:id/messages
func MessagesHandler(c *gin.Context) {
	if api.Preflight(c) {
		return
	}
	u := session.Current(c)
	f, ok := loadFeedback(c, u)
	if !ok {
		return
	}
	ctx := c.Request.Context()
	if f.ToUserID == u.ID && !f.Viewed {
		if err := MarkViewed(ctx, f.ID); err != nil {
			api.Internal(c, "Erro ao buscar mensagens", err)
			return
		}
	}
	msgs, err := Messages(ctx, f.ID, u.ID)
	if err != nil {
		api.Internal(c, "Erro ao buscar mensagens", err)
		return
	}
	api.Print_json(c, msgs)
}

type replyPayload struct {
	Message string `json:"message"`
	ReplyTo int64  `json:"reply_to"`
}

// PostMessageHandler: POST /api/feedbacks/:id/messages
func PostMessageHandler(c *gin.Context) {
	if api.Preflight(c) {
		return
	}
	u := session.Current(c)
	var p replyPayload
	_ = c.ShouldBindJSON(&p)
	text := strings.TrimSpace(p.Message)
	if text == "" {
		api.Fail(c, http.StatusBadRequest, "A mensagem não pode estar vazia")
		return
	}
	f, ok := loadFeedback(c, u)
	if !ok {
		return
	}
	ctx := c.Request.Context()
	msg, err := Reply(ctx, f.ID, u.ID, text, p.ReplyTo)
	if err != nil {
		api.Internal(c, "Erro ao enviar mensagem", err)
		return
	}

	resp := api.J("success", true, "message", msg)
	if f.ToUserID == u.ID {
		points := gamification.Award(ctx, u.ID, gamification.FeedbackRespondido)
		resp["pointsEarned"] = points.Points
		resp["pointsMessage"] = points.Message
		notifications.Create(ctx, f.FromUserID, notifications.FeedbackReply, u.DisplayName()+" respondeu ao seu feedback", f.ID)
	}
	api.Print_json(c, resp, http.StatusCreated)
}

// ReactMessageHandler: POST /api/feedbacks/messages/:messageId/react
func ReactMessageHandler(c *gin.Context) {
	if api.Preflight(c) {
		return
	}
	var p struct {
		Emoji string `json:"emoji"`
	}
	_ = c.ShouldBindJSON(&p)
	if strings.TrimSpace(p.Emoji) == "" {
		api.Fail(c, http.StatusBadRequest, "Emoji é obrigatório")
		return
	}
	id, err := strconv.ParseInt(c.Param("messageId"), 10, 64)
	if err != nil || id <= 0 {
		api.Fail(c, http.StatusBadRequest, "ID de mensagem inválido")
		return
	}
	added, err := ToggleMessageReaction(c.Request.Context(), id, session.Current(c).ID, p.Emoji)
	if errors.Is(err, ErrMessageNotFound) {
		api.Fail(c, http.StatusNotFound, "Mensagem não encontrada")
		return
	}
	if err != nil {
		api.Internal(c, "Erro ao reagir à mensagem", err)
		return
	}
	api.Print_json(c, "success", true, "action", action(added), "emoji", p.Emoji)
}

func action(added bool) string {
	if added {
		return "added"
	}
	return "removed"
}

// ReactHandler: POST /api/feedbacks/:id/react
func ReactHandler(c *gin.Context) {
	if api.Preflight(c) {
		return
	}
	u := session.Current(c)
	var p struct {
		Reaction string `json:"reaction"`
	}
	_ = c.ShouldBindJSON(&p)
	if strings.TrimSpace(p.Reaction) == "" {
		api.Fail(c, http.StatusBadRequest, "Tipo de reação é obrigatório")
		return
	}
	f, ok := loadFeedback(c, u)
	if !ok {
		return
	}
	ctx := c.Request.Context()
	added, err := ToggleReaction(ctx, f.ID, u.ID, p.Reaction)
	if err != nil {
		api.Internal(c, "Erro ao reagir ao feedback", err)
		return
	}
	if added && p.Reaction == "useful" && f.FromUserID != u.ID {
		notifications.Create(ctx, f.FromUserID, notifications.FeedbackUseful, u.DisplayName()+" marcou seu feedback como útil", f.ID)
	}
	api.Print_json(c, "success", true, "action", action(added), "reaction", p.Reaction)
}

// FiltersHandler: GET /api/feedbacks/filters
func FiltersHandler(c *gin.Context) {
	if api.Preflight(c) {
		return
	}
	types, categories, err := Filters(c.Request.Context())
	if err != nil {
		api.Internal(c, "Erro ao buscar filtros", err)
		return
	}
	api.Print_json(c, "types", types, "categories", categories)
}

// MetricsHandler: GET /api/metrics
func MetricsHandler(c *gin.Context) {
	if api.Preflight(c) {
		return
	}
	m, err := MetricsFor(c.Request.Context(), session.Current(c).ID)
	if err != nil {
		api.Internal(c, "Erro ao buscar métricas", err)
		return
	}
	api.Print_json(c, m)
}
