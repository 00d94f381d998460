package auth

import (
	"errors"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"lumigente_backend/main/api"
	"lumigente_backend/main/logger"
	"lumigente_backend/main/session"
	"lumigente_backend/users/access"
)

var errNoSessionManager = errors.New("session manager not installed")

const msgUnauthenticated = "Usuário não autenticado"

// RequireFeature guards a feature area (analytics, pesquisas, historico, ...).
func RequireFeature(feature string) gin.HandlerFunc {
	return func(c *gin.Context) {
		u := session.Current(c)
		if u == nil {
			api.Fail(c, http.StatusUnauthorized, msgUnauthenticated)
			return
		}
		d := access.Feature(u, feature, c.Request.Method, c.Request.URL.Path)
		if !d.Allowed {
			logger.L().Info("feature denied",
				zap.String("feature", feature),
				zap.Int64("user_id", u.ID),
				zap.Int("level", u.HierarchyLevel),
			)
			api.Fail(c, http.StatusForbidden,
				"Acesso negado. Você não tem permissão para acessar "+feature+".",
				"requiredLevel", d.RequiredLevel,
			)
			return
		}
		c.Next()
	}
}

// RequireManager lets through admins, HR/T&D, department responsibles and
// anyone from level 3 up.
func RequireManager() gin.HandlerFunc {
	return func(c *gin.Context) {
		u := session.Current(c)
		if u == nil {
			api.Fail(c, http.StatusUnauthorized, msgUnauthenticated)
			return
		}
		if u.IsAdmin() || u.FullAccess() {
			c.Next()
			return
		}
		if strings.TrimSpace(u.Matricula) == "" {
			api.Fail(c, http.StatusForbidden, "Acesso negado. Usuário sem matrícula válida.")
			return
		}
		responsible, err := IsResponsible(c.Request.Context(), u.Matricula)
		if err != nil {
			api.Internal(c, "Erro ao verificar permissões. Tente novamente.", err)
			return
		}
		if responsible || u.HierarchyLevel >= 3 {
			c.Next()
			return
		}
		api.Fail(c, http.StatusForbidden, "Acesso negado. Apenas gestores, RH e T&D podem acessar este recurso.")
	}
}

// RequireHR restricts to the HR and T&D departments.
func RequireHR() gin.HandlerFunc {
	return func(c *gin.Context) {
		u := session.Current(c)
		if u == nil {
			api.Fail(c, http.StatusUnauthorized, msgUnauthenticated)
			return
		}
		if !u.IsHRTD() && !u.IsAdmin() {
			api.Fail(c, http.StatusForbidden,
				"Acesso negado. Apenas usuários do RH e Treinamento & Desenvolvimento podem realizar esta ação.",
				"userDepartment", u.Departamento,
			)
			return
		}
		c.Next()
	}
}

// RequireExternalAdmin guards the external users screens.
func RequireExternalAdmin() gin.HandlerFunc {
	return func(c *gin.Context) {
		u := session.Current(c)
		if u == nil {
			api.Fail(c, http.StatusUnauthorized, msgUnauthenticated)
			return
		}
		if !u.CanManageExternal() {
			api.Fail(c, http.StatusForbidden,
				"Acesso negado. Apenas usuários do DEPARTAMENTO TREINAM&DESENVOLV ou SUPERVISAO RH podem acessar esta funcionalidade.",
				"userDepartment", strings.ToUpper(strings.TrimSpace(u.DescricaoDepartamento)),
			)
			return
		}
		c.Next()
	}
}
