package objetivos

import (
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"

	"lumigente_backend/engagement/gamification"
	"lumigente_backend/engagement/notifications"
	"lumigente_backend/main/api"
	"lumigente_backend/main/mailer"
	"lumigente_backend/main/session"
)

// userError answers 400 for validation errors and reports whether it did.
func userError(c *gin.Context, err error) bool {
	var e Error
	if errors.As(err, &e) {
		api.Fail(c, http.StatusBadRequest, e.Error())
		return true
	}
	return false
}

func load(c *gin.Context) (*Objetivo, bool) {
	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil || id <= 0 {
		api.Fail(c, http.StatusBadRequest, "ID do objetivo inválido")
		return nil, false
	}
	o, err := Get(c.Request.Context(), id)
	if errors.Is(err, ErrNotFound) {
		api.Fail(c, http.StatusNotFound, "Objetivo não encontrado")
		return nil, false
	}
	if err != nil {
		api.Internal(c, "Erro ao buscar objetivo", err)
		return nil, false
	}
	return o, true
}

// ListHandler: GET /api/objetivos?status&responsavel&search
func ListHandler(c *gin.Context) {
	if api.Preflight(c) {
		return
	}
	responsavel, _ := strconv.ParseInt(c.Query("responsavel"), 10, 64)
	list, err := List(c.Request.Context(), session.Current(c), Filter{
		Status:      c.Query("status"),
		Responsavel: responsavel,
		Search:      c.Query("search"),
	})
	if err != nil {
		api.Internal(c, "Erro interno do servidor ao buscar objetivos.", err)
		return
	}
	api.Print_json(c, list)
}

// CreateHandler: POST /api/objetivos
func CreateHandler(c *gin.Context) {
	if api.Preflight(c) {
		return
	}
	u := session.Current(c)
	ctx := c.Request.Context()

	var in Input
	_ = c.ShouldBindJSON(&in)
	id, err := Create(ctx, u.ID, in)
	if userError(c, err) {
		return
	}
	if err != nil {
		api.Internal(c, "Erro interno do servidor ao criar objetivo.", err)
		return
	}

	o, err := Get(ctx, id)
	if err == nil {
		creator := u.DisplayName()
		inicio, fim := brDate(o.DataInicio), brDate(o.DataFim)
		for _, rid := range o.recipients(u.ID) {
			notifications.Create(ctx, rid, notifications.ObjetivoCriado,
				fmt.Sprintf("%s atribuiu a você o objetivo \"%s\"", creator, o.Titulo), id)
			notifications.Mail(ctx, rid, func(to, name string) (mailer.Message, error) {
				return mailer.ObjetivoAtribuido(to, name, creator, o.Titulo, inicio, fim)
			})
		}
	}
	api.Print_json(c, "success", true, "id", id, "message", "Objetivo criado com sucesso.", http.StatusCreated)
}

// brDate renders YYYY-MM-DD as DD/MM/YYYY.
func brDate(date string) string {
	if len(date) != len("2006-01-02") {
		return date
	}
	return date[8:10] + "/" + date[5:7] + "/" + date[0:4]
}

// GetHandler: GET /api/objetivos/:id
func GetHandler(c *gin.Context) {
	if api.Preflight(c) {
		return
	}
	if o, ok := load(c); ok {
		api.Print_json(c, o)
	}
}

func canManage(c *gin.Context, o *Objetivo, denied string) bool {
	u := session.Current(c)
	if o.CriadoPor == u.ID || u.FullAccess() {
		return true
	}
	api.Fail(c, http.StatusForbidden, denied)
	return false
}

// UpdateHandler: PUT /api/objetivos/:id
func UpdateHandler(c *gin.Context) {
	if api.Preflight(c) {
		return
	}
	o, ok := load(c)
	if !ok || !canManage(c, o, "Apenas o criador ou usuários com acesso total podem editar o objetivo.") {
		return
	}
	var in Input
	_ = c.ShouldBindJSON(&in)
	status, err := Update(c.Request.Context(), o, in)
	if userError(c, err) {
		return
	}
	if err != nil {
		api.Internal(c, "Erro ao atualizar objetivo", err)
		return
	}
	api.Print_json(c, "success", true, "message", "Objetivo atualizado com sucesso", "status", status)
}

// DeleteHandler: DELETE /api/objetivos/:id
func DeleteHandler(c *gin.Context) {
	if api.Preflight(c) {
		return
	}
	o, ok := load(c)
	if !ok || !canManage(c, o, "Sem permissão para excluir: apenas o criador ou RH/T&D/Admin.") {
		return
	}
	if err := Delete(c.Request.Context(), o.ID); err != nil {
		api.Internal(c, "Erro ao deletar objetivo", err)
		return
	}
	api.Print_json(c, "success", true, "message", "Objetivo excluído com sucesso")
}

type checkinPayload struct {
	Progresso   *float64 `json:"progresso"`
	Observacoes string   `json:"observacoes"`
}

// CheckinHandler: POST /api/objetivos/:id/checkin
func CheckinHandler(c *gin.Context) {
	if api.Preflight(c) {
		return
	}
	u := session.Current(c)
	ctx := c.Request.Context()
	o, ok := load(c)
	if !ok {
		return
	}
	if !o.Participant(u.ID) && !u.FullAccess() {
		api.Fail(c, http.StatusForbidden, "Apenas os responsáveis podem registrar check-ins neste objetivo.")
		return
	}
	var p checkinPayload
	_ = c.ShouldBindJSON(&p)
	if p.Progresso == nil {
		api.Fail(c, http.StatusBadRequest, "Progresso deve ser entre 0 e 100")
		return
	}
	res, err := RecordCheckin(ctx, o, u.ID, *p.Progresso, p.Observacoes)
	if userError(c, err) {
		return
	}
	if err != nil {
		api.Internal(c, "Erro ao registrar check-in", err)
		return
	}
	points := gamification.Award(ctx, u.ID, gamification.CheckinObjetivo)

	actor := u.DisplayName()
	msg := fmt.Sprintf("%s registrou um check-in de %s%% no objetivo \"%s\".", actor, percent(*p.Progresso), o.Titulo)
	if res.NeedsApproval {
		msg = fmt.Sprintf("%s registrou 100%% no objetivo \"%s\" e solicitou aprovação de conclusão.", actor, o.Titulo)
		notifications.Mail(ctx, o.CriadoPor, func(to, name string) (mailer.Message, error) {
			return mailer.ObjetivoAprovacao(to, name, actor, o.Titulo)
		})
	}
	notifications.CreateMany(ctx, o.recipients(u.ID), notifications.ObjetivoCheckin, msg, o.ID)

	api.Print_json(c,
		"success", true,
		"message", "Check-in registrado com sucesso",
		"statusUpdate", res.StatusUpdate,
		"needsApproval", res.NeedsApproval,
		"points", points.Points,
		"pointsMessage", points.Message,
	)
}

func percent(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}

// CheckinsHandler: GET /api/objetivos/:id/checkins
func CheckinsHandler(c *gin.Context) {
	if api.Preflight(c) {
		return
	}
	o, ok := load(c)
	if !ok {
		return
	}
	list, err := Checkins(c.Request.Context(), o.ID)
	if err != nil {
		api.Internal(c, "Erro ao buscar check-ins", err)
		return
	}
	api.Print_json(c, list)
}

// ApproveHandler: POST /api/objetivos/:id/approve (managers)
func ApproveHandler(c *gin.Context) {
	if api.Preflight(c) {
		return
	}
	u := session.Current(c)
	ctx := c.Request.Context()
	o, ok := load(c)
	if !ok {
		return
	}
	if err := Approve(ctx, o, u.ID); err != nil {
		api.Internal(c, "Erro ao aprovar objetivo", err)
		return
	}
	notifications.CreateMany(ctx, o.recipients(u.ID), notifications.ObjetivoAprovado,
		fmt.Sprintf("%s aprovou a conclusão do objetivo \"%s\".", u.DisplayName(), o.Titulo), o.ID)
	api.Print_json(c, "success", true, "message", "Objetivo aprovado e concluído com sucesso")
}

type rejectPayload struct {
	Motivo string `json:"motivo"`
}

const maxMotivo = 250

// RejectHandler: POST /api/objetivos/:id/reject (managers)
func RejectHandler(c *gin.Context) {
	if api.Preflight(c) {
		return
	}
	u := session.Current(c)
	ctx := c.Request.Context()
	o, ok := load(c)
	if !ok {
		return
	}
	var p rejectPayload
	_ = c.ShouldBindJSON(&p)
	p.Motivo = strings.TrimSpace(p.Motivo)
	previous, err := Reject(ctx, o, u.ID, p.Motivo)
	if userError(c, err) {
		return
	}
	if err != nil {
		api.Internal(c, "Erro ao rejeitar objetivo", err)
		return
	}

	motivo := []rune(p.Motivo)
	short := string(motivo)
	if len(motivo) > maxMotivo {
		short = string(motivo[:maxMotivo-3]) + "..."
	}
	notifications.CreateMany(ctx, o.recipients(u.ID), notifications.ObjetivoRejeitado,
		fmt.Sprintf("%s rejeitou a conclusão do objetivo \"%s\". Motivo: %s", u.DisplayName(), o.Titulo, short), o.ID)

	api.Print_json(c,
		"success", true,
		"message", "Objetivo rejeitado e revertido para "+percent(previous)+"%",
		"motivo", p.Motivo,
		"progressoAnterior", previous,
	)
}

// FiltersHandler: GET /api/objetivos/filtros
func FiltersHandler(c *gin.Context) {
	if api.Preflight(c) {
		return
	}
	statuses, people, err := Filters(c.Request.Context(), session.Current(c))
	if err != nil {
		api.Internal(c, "Erro ao buscar filtros", err)
		return
	}
	api.Print_json(c, "status", statuses, "responsaveis", people)
}
