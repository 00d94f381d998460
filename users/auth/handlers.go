package auth

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"lumigente_backend/main/api"
	"lumigente_backend/main/session"
)

type loginPayload struct {
	CPF      string `json:"cpf"`
	Password string `json:"password"`
}

// LoginHandler: POST /api/login
func LoginHandler(c *gin.Context) {
	if api.Preflight(c) {
		return
	}
	var payload loginPayload
	_ = c.ShouldBindJSON(&payload)

	result, err := Login(c.Request.Context(), payload.CPF, payload.Password)
	if err != nil {
		switch {
		case err == ErrInvalidLogin:
			api.Fail(c, http.StatusBadRequest, err.Error())
		case IsUserError(err):
			api.Fail(c, http.StatusUnauthorized, err.Error())
		default:
			api.Internal(c, "Erro interno do servidor", err)
		}
		return
	}
	if result.NeedsRegistration {
		api.Print_json(c, "needsRegistration", true, "error", result.Message)
		return
	}

	m, ok := session.From(c)
	if !ok {
		api.Internal(c, "Erro ao criar sessão", errNoSessionManager)
		return
	}
	if err := m.Start(c, result.User); err != nil {
		api.Internal(c, "Erro ao criar sessão", err)
		return
	}
	api.Print_json(c, "success", true, "user", result.User)
}

type registerPayload struct {
	CPF          string `json:"cpf"`
	Password     string `json:"password"`
	NomeCompleto string `json:"nomeCompleto"`
}

// RegisterHandler: POST /api/register
func RegisterHandler(c *gin.Context) {
	if api.Preflight(c) {
		return
	}
	var payload registerPayload
	_ = c.ShouldBindJSON(&payload)

	if err := Register(c.Request.Context(), payload.CPF, payload.Password, payload.NomeCompleto); err != nil {
		if IsUserError(err) {
			api.Fail(c, http.StatusBadRequest, err.Error())
			return
		}
		api.Internal(c, "Erro interno do servidor", err)
		return
	}
	api.Print_json(c, "success", true, "message", "Registro realizado com sucesso", http.StatusCreated)
}

// CheckCPFHandler: POST /api/check-cpf
func CheckCPFHandler(c *gin.Context) {
	if api.Preflight(c) {
		return
	}
	var payload loginPayload
	_ = c.ShouldBindJSON(&payload)

	status, err := CheckCPF(c.Request.Context(), payload.CPF)
	if err != nil {
		if IsUserError(err) {
			api.Fail(c, http.StatusBadRequest, err.Error())
			return
		}
		api.Internal(c, "Erro interno do servidor", err)
		return
	}
	api.Print_json(c, status)
}

// LogoutHandler: POST /api/logout
func LogoutHandler(c *gin.Context) {
	if api.Preflight(c) {
		return
	}
	if m, ok := session.From(c); ok {
		if err := m.Destroy(c); err != nil {
			api.Internal(c, "Erro ao fazer logout", err)
			return
		}
	}
	api.Print_json(c, "success", true, "message", "Logout realizado com sucesso")
}
