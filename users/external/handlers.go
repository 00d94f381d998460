package external

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"lumigente_backend/main/api"
	"lumigente_backend/main/logger"
	"lumigente_backend/main/mailer"
)

func idParam(c *gin.Context) (int64, bool) {
	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil || id <= 0 {
		api.Fail(c, http.StatusBadRequest, "ID inválido")
		return 0, false
	}
	return id, true
}

// failed maps service errors to responses and reports whether it answered.
func failed(c *gin.Context, err error, internal string) bool {
	if err == nil {
		return false
	}
	var e Error
	switch {
	case errors.As(err, &e):
		api.Fail(c, http.StatusBadRequest, e.Error())
	case errors.Is(err, ErrNotFound):
		api.Fail(c, http.StatusNotFound, "Usuário externo não encontrado")
	default:
		api.Internal(c, internal, err)
	}
	return true
}

// ListHandler: GET /api/external-users?status=active|inactive
func ListHandler(c *gin.Context) {
	if api.Preflight(c) {
		return
	}
	list, err := List(c.Request.Context(), c.Query("status"))
	if failed(c, err, "Erro ao buscar usuários externos") {
		return
	}
	api.Print_json(c, list)
}

// GetHandler: GET /api/external-users/:id
func GetHandler(c *gin.Context) {
	if api.Preflight(c) {
		return
	}
	id, ok := idParam(c)
	if !ok {
		return
	}
	u, err := Get(c.Request.Context(), id)
	if failed(c, err, "Erro ao buscar usuário externo") {
		return
	}
	api.Print_json(c, u)
}

// CreateHandler: POST /api/external-users
func CreateHandler(c *gin.Context) {
	if api.Preflight(c) {
		return
	}
	ctx := c.Request.Context()
	var in CreateInput
	_ = c.ShouldBindJSON(&in)
	u, err := Create(ctx, in)
	if failed(c, err, "Erro ao criar usuário externo") {
		return
	}

	if msg, err := mailer.ExternoCadastrado(u.Email, firstName(u.NomeCompleto), u.CPF); err == nil {
		if err := mailer.Default().Send(ctx, msg); err != nil {
			logger.L().Warn("external user confirmation mail", zap.Int64("user_id", u.ID), zap.Error(err))
		}
	}
	api.Print_json(c, api.J(
		"success", true,
		"message", "Usuário externo cadastrado com sucesso",
		"user", u,
	), http.StatusCreated)
}

// UpdateHandler: PUT /api/external-users/:id
func UpdateHandler(c *gin.Context) {
	if api.Preflight(c) {
		return
	}
	id, ok := idParam(c)
	if !ok {
		return
	}
	var in UpdateInput
	_ = c.ShouldBindJSON(&in)
	u, err := Update(c.Request.Context(), id, in)
	if failed(c, err, "Erro ao atualizar usuário externo") {
		return
	}
	api.Print_json(c, "success", true, "message", "Usuário externo atualizado com sucesso", "user", u)
}

// DeactivateHandler: DELETE /api/external-users/:id
func DeactivateHandler(c *gin.Context) {
	if api.Preflight(c) {
		return
	}
	id, ok := idParam(c)
	if !ok {
		return
	}
	if failed(c, SetActive(c.Request.Context(), id, false), "Erro ao desativar usuário externo") {
		return
	}
	api.Print_json(c, "success", true, "message", "Usuário externo desativado com sucesso")
}

// ActivateHandler: POST /api/external-users/:id/activate
func ActivateHandler(c *gin.Context) {
	if api.Preflight(c) {
		return
	}
	id, ok := idParam(c)
	if !ok {
		return
	}
	if failed(c, SetActive(c.Request.Context(), id, true), "Erro ao reativar usuário externo") {
		return
	}
	api.Print_json(c, "success", true, "message", "Usuário externo reativado com sucesso")
}
