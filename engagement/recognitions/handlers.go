package recognitions

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"lumigente_backend/engagement/gamification"
	"lumigente_backend/engagement/notifications"
	"lumigente_backend/main/api"
	"lumigente_backend/main/mailer"
	"lumigente_backend/main/play_sql"
	"lumigente_backend/main/session"
)

type createPayload struct {
	ToUserID int64  `json:"to_user_id"`
	Badge    string `json:"badge"`
	Message  string `json:"message"`
}

// CreateHandler: POST /api/recognitions
func CreateHandler(c *gin.Context) {
	if api.Preflight(c) {
		return
	}
	u := session.Current(c)
	ctx := c.Request.Context()

	var p createPayload
	_ = c.ShouldBindJSON(&p)
	p.Badge, p.Message = strings.TrimSpace(p.Badge), strings.TrimSpace(p.Message)
	if p.ToUserID <= 0 || p.Badge == "" || p.Message == "" {
		api.Fail(c, http.StatusBadRequest, "Todos os campos são obrigatórios.")
		return
	}
	if p.ToUserID == u.ID {
		api.Fail(c, http.StatusBadRequest, "Você não pode reconhecer a si mesmo.")
		return
	}
	active, err := play_sql.Count(ctx, "SELECT COUNT(*) AS total FROM Users WHERE Id = ? AND IsActive = 1", p.ToUserID)
	if err != nil {
		api.Internal(c, "Erro ao criar reconhecimento.", err)
		return
	}
	if active == 0 {
		api.Fail(c, http.StatusNotFound, "Usuário destinatário não encontrado.")
		return
	}

	id, err := Create(ctx, u.ID, p.ToUserID, p.Badge, p.Message)
	if err != nil {
		api.Internal(c, "Erro ao criar reconhecimento.", err)
		return
	}
	sent := gamification.Award(ctx, u.ID, gamification.ReconhecimentoEnviado)
	received := gamification.Award(ctx, p.ToUserID, gamification.ReconhecimentoRecebido)

	from := u.DisplayName()
	notifications.Create(ctx, p.ToUserID, notifications.RecognitionReceived,
		from+` reconheceu você com o badge "`+p.Badge+`"`, id)
	notifications.Mail(ctx, p.ToUserID, func(to, name string) (mailer.Message, error) {
		return mailer.RecognitionReceived(to, name, from, p.Badge)
	})

	api.Print_json(c,
		"success", true,
		"id", id,
		"pointsSent", sent.Points,
		"pointsReceived", received.Points,
		http.StatusCreated,
	)
}

func filterFrom(c *gin.Context) Filter {
	return Filter{DateStart: c.Query("dateStart"), DateEnd: c.Query("dateEnd"), Badge: c.Query("badge")}
}

// ReceivedHandler: GET /api/recognitions/received (also /api/recognitions)
func ReceivedHandler(c *gin.Context) {
	if api.Preflight(c) {
		return
	}
	rows, err := Received(c.Request.Context(), session.Current(c).ID, filterFrom(c))
	if err != nil {
		api.Internal(c, "Erro ao buscar reconhecimentos.", err)
		return
	}
	api.Print_json(c, rows)
}

// GivenHandler: GET /api/recognitions/given
func GivenHandler(c *gin.Context) {
	if api.Preflight(c) {
		return
	}
	rows, err := Given(c.Request.Context(), session.Current(c).ID, filterFrom(c))
	if err != nil {
		api.Internal(c, "Erro ao buscar reconhecimentos.", err)
		return
	}
	api.Print_json(c, rows)
}

// AllHandler: GET /api/recognitions/all
func AllHandler(c *gin.Context) {
	if api.Preflight(c) {
		return
	}
	rows, err := All(c.Request.Context(), session.Current(c).ID, filterFrom(c))
	if err != nil {
		api.Internal(c, "Erro ao buscar reconhecimentos.", err)
		return
	}
	api.Print_json(c, rows)
}
