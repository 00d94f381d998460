package logger

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
)

func observe(t *testing.T) *observer.ObservedLogs {
	t.Helper()
	core, logs := observer.New(zapcore.DebugLevel)
	Set(zap.New(core))
	t.Cleanup(func() { Set(nil) })
	return logs
}

func TestParseLevel(t *testing.T) {
	assert.Equal(t, zapcore.DebugLevel, parseLevel(" DEBUG "))
	assert.Equal(t, zapcore.WarnLevel, parseLevel("warning"))
	assert.Equal(t, zapcore.ErrorLevel, parseLevel("error"))
	assert.Equal(t, zapcore.InfoLevel, parseLevel(""))
	assert.Equal(t, zapcore.InfoLevel, parseLevel("verbose"))
}

func TestInitSetsLevel(t *testing.T) {
	t.Cleanup(func() {
		Set(nil)
		SetLevel("info")
	})

	built, err := Init("warn", false)
	require.NoError(t, err)
	assert.Same(t, built, L())
	assert.False(t, built.Core().Enabled(zapcore.InfoLevel))
	assert.True(t, built.Core().Enabled(zapcore.WarnLevel))

	SetLevel("debug")
	assert.True(t, built.Core().Enabled(zapcore.DebugLevel))
}

func TestSetNilFallsBackToNop(t *testing.T) {
	Set(nil)
	require.NotNil(t, L())
	L().Info("dropped")
}

func TestRequests(t *testing.T) {
	gin.SetMode(gin.TestMode)
	logs := observe(t)

	r := gin.New()
	r.Use(func(c *gin.Context) { c.Set("user_id", int64(7)) }, Requests())
	r.GET("/ok", func(c *gin.Context) { c.Status(http.StatusNoContent) })
	r.GET("/boom", func(c *gin.Context) { c.Status(http.StatusInternalServerError) })

	r.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/ok", nil))
	r.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/boom", nil))

	entries := logs.FilterMessage("request").All()
	require.Len(t, entries, 2)

	ok := entries[0]
	assert.Equal(t, zapcore.InfoLevel, ok.Level)
	fields := ok.ContextMap()
	assert.Equal(t, "GET", fields["method"])
	assert.Equal(t, "/ok", fields["path"])
	assert.EqualValues(t, http.StatusNoContent, fields["status"])
	assert.EqualValues(t, 7, fields["user_id"])

	assert.Equal(t, zapcore.ErrorLevel, entries[1].Level)
	assert.EqualValues(t, http.StatusInternalServerError, entries[1].ContextMap()["status"])
}

func TestAudit(t *testing.T) {
	gin.SetMode(gin.TestMode)
	logs := observe(t)

	r := gin.New()
	r.POST("/login", Audit("LOGIN_ATTEMPT"), func(c *gin.Context) { c.Status(http.StatusUnauthorized) })

	req := httptest.NewRequest(http.MethodPost, "/login", nil)
	req.Header.Set("User-Agent", "tests")
	r.ServeHTTP(httptest.NewRecorder(), req)

	entries := logs.FilterMessage("audit").All()
	require.Len(t, entries, 1)
	fields := entries[0].ContextMap()
	assert.Equal(t, "LOGIN_ATTEMPT", fields["action"])
	assert.EqualValues(t, http.StatusUnauthorized, fields["status"])
	assert.Equal(t, "tests", fields["user_agent"])
	assert.NotContains(t, fields, "user_id")
}
