package api

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func serve(t *testing.T, r *gin.Engine, method, path string) (*httptest.ResponseRecorder, map[string]any) {
	t.Helper()
	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(method, path, nil))
	var body map[string]any
	if w.Body.Len() > 0 {
		require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	}
	return w, body
}

func TestPrintJSON(t *testing.T) {
	gin.SetMode(gin.TestMode)

	tests := []struct {
		name   string
		args   []any
		status int
		body   map[string]any
	}{
		{name: "empty", status: http.StatusOK, body: map[string]any{}},
		{name: "payload", args: []any{gin.H{"a": 1}}, status: http.StatusOK, body: map[string]any{"a": float64(1)}},
		{name: "payload with status", args: []any{gin.H{"id": 3}, http.StatusCreated}, status: http.StatusCreated, body: map[string]any{"id": float64(3)}},
		{name: "pairs", args: []any{"success", true, "count", 5}, status: http.StatusOK, body: map[string]any{"success": true, "count": float64(5)}},
		{name: "pairs with status", args: []any{"message", "ok", http.StatusAccepted}, status: http.StatusAccepted, body: map[string]any{"message": "ok"}},
		{name: "single pair ending in int", args: []any{"count", 5}, status: http.StatusOK, body: map[string]any{"count": float64(5)}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := gin.New()
			r.GET("/", func(c *gin.Context) { Print_json(c, tt.args...) })
			w, body := serve(t, r, http.MethodGet, "/")
			assert.Equal(t, tt.status, w.Code)
			assert.Equal(t, tt.body, body)
		})
	}
}

func TestJSkipsBadKeys(t *testing.T) {
	assert.Equal(t, JsonEncode{"a": 1}, J("a", 1, 2, "x", "", "y", "dangling"))
}

func TestFailAbortsWithExtraFields(t *testing.T) {
	gin.SetMode(gin.TestMode)
	reached := false
	r := gin.New()
	r.GET("/", func(c *gin.Context) {
		Fail(c, http.StatusForbidden, "Acesso negado", "userDepartment", "TI")
	}, func(c *gin.Context) { reached = true })

	w, body := serve(t, r, http.MethodGet, "/")
	assert.Equal(t, http.StatusForbidden, w.Code)
	assert.Equal(t, map[string]any{"error": "Acesso negado", "userDepartment": "TI"}, body)
	assert.False(t, reached)
}

func TestNotFoundAndRecovery(t *testing.T) {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.Use(Recovery())
	r.GET("/api/panic", func(c *gin.Context) { panic("boom") })
	r.NoRoute(NotFound(func(c *gin.Context) { c.String(http.StatusOK, "index") }))

	w, body := serve(t, r, http.MethodGet, "/api/nada")
	assert.Equal(t, http.StatusNotFound, w.Code)
	assert.Equal(t, "Rota não encontrada", body["error"])

	w = httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/dashboard", nil))
	assert.Equal(t, "index", w.Body.String())

	w, body = serve(t, r, http.MethodGet, "/api/panic")
	assert.Equal(t, http.StatusInternalServerError, w.Code)
	assert.Equal(t, "Erro interno do servidor", body["error"])
}

func TestSetHeadersReflectsOrigin(t *testing.T) {
	gin.SetMode(gin.TestMode)
	t.Cleanup(func() { AllowOrigin("") })

	r := gin.New()
	r.Use(SetHeaders)
	r.Any("/", func(c *gin.Context) {
		if Preflight(c) {
			return
		}
		c.Status(http.StatusOK)
	})

	req := httptest.NewRequest(http.MethodOptions, "/", nil)
	req.Header.Set("Origin", "http://localhost:5173")
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	assert.Equal(t, http.StatusNoContent, w.Code)
	assert.Equal(t, "http://localhost:5173", w.Header().Get("Access-Control-Allow-Origin"))
	assert.Equal(t, "true", w.Header().Get("Access-Control-Allow-Credentials"))

	AllowOrigin("https://rh.empresa.com")
	w = httptest.NewRecorder()
	r.ServeHTTP(w, req)
	assert.Equal(t, "https://rh.empresa.com", w.Header().Get("Access-Control-Allow-Origin"))
}
