package ratelimit

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strconv"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/jonboulle/clockwork"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"

	"lumigente_backend/main/config"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

func newRouter(l *Limiter) *gin.Engine {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.POST("/login", l.Middleware(), func(c *gin.Context) {
		if c.Query("ok") == "1" {
			c.JSON(http.StatusOK, gin.H{"success": true})
			return
		}
		c.JSON(http.StatusUnauthorized, gin.H{"error": "Senha incorreta"})
	})
	return r
}

func send(r *gin.Engine, path, remote string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodPost, path, nil)
	req.RemoteAddr = remote
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func TestLoginLimiterOnlyCountsFailures(t *testing.T) {
	clock := clockwork.NewFakeClock()
	l := New(Rule{
		Name:           "login",
		Message:        "Muitas tentativas de login. Tente novamente mais tarde.",
		Window:         15 * time.Minute,
		Max:            5,
		SkipSuccessful: true,
	}, nil, WithClock(clock))
	r := newRouter(l)

	for i := 0; i < 10; i++ {
		w := send(r, "/login?ok=1", "192.0.2.10:4000")
		require.Equal(t, http.StatusOK, w.Code, "success %d", i)
	}
	for i := 0; i < 5; i++ {
		w := send(r, "/login", "192.0.2.10:4000")
		require.Equal(t, http.StatusUnauthorized, w.Code, "failure %d", i)
	}

	w := send(r, "/login", "192.0.2.10:4000")
	assert.Equal(t, http.StatusTooManyRequests, w.Code)
	assert.JSONEq(t, `{"error":"Muitas tentativas de login. Tente novamente mais tarde."}`, w.Body.String())
	retry, err := strconv.Atoi(w.Header().Get("Retry-After"))
	require.NoError(t, err)
	assert.InDelta(t, 180, retry, 1)

	// another address has its own bucket
	assert.Equal(t, http.StatusUnauthorized, send(r, "/login", "192.0.2.11:4000").Code)

	clock.Advance(4 * time.Minute)
	assert.Equal(t, http.StatusUnauthorized, send(r, "/login", "192.0.2.10:4000").Code)
}

func TestCompanyAddressUsesCompanyMaximum(t *testing.T) {
	clock := clockwork.NewFakeClock()
	l := New(Rule{
		Name:       "create",
		Message:    "Muitas criações. Aguarde um momento.",
		Window:     time.Minute,
		Max:        2,
		CompanyMax: 5,
	}, []string{" 10.0.0.1 ", ""}, WithClock(clock))
	r := newRouter(l)

	for i := 0; i < 5; i++ {
		require.Equal(t, http.StatusOK, send(r, "/login?ok=1", "10.0.0.1:1000").Code, "company %d", i)
	}
	assert.Equal(t, http.StatusTooManyRequests, send(r, "/login?ok=1", "10.0.0.1:1000").Code)

	for i := 0; i < 2; i++ {
		require.Equal(t, http.StatusOK, send(r, "/login?ok=1", "198.51.100.7:1000").Code, "outside %d", i)
	}
	w := send(r, "/login?ok=1", "198.51.100.7:1000")
	assert.Equal(t, http.StatusTooManyRequests, w.Code)
	assert.Contains(t, w.Body.String(), "Muitas criações")

	clock.Advance(time.Minute)
	assert.Equal(t, http.StatusOK, send(r, "/login?ok=1", "198.51.100.7:1000").Code)
}

func TestRemainingHeader(t *testing.T) {
	l := New(Rule{Name: "api", Message: "x", Window: time.Minute, Max: 3}, nil, WithClock(clockwork.NewFakeClock()))
	r := newRouter(l)

	w := send(r, "/login?ok=1", "192.0.2.1:1")
	assert.Equal(t, "3", w.Header().Get("RateLimit-Limit"))
	assert.Equal(t, "2", w.Header().Get("RateLimit-Remaining"))
}

func TestStoreJanitorDropsIdleKeys(t *testing.T) {
	clock := clockwork.NewFakeClock()
	s := NewStore(10, 30*time.Second, WithClock(clock), WithCleanupEvery(time.Minute))
	s.Get("a")
	s.Get("b")
	require.Equal(t, 2, s.Len())

	ctx, cancel := context.WithCancel(context.Background())
	done := s.StartJanitor(ctx)
	require.NoError(t, clock.BlockUntilContext(ctx, 1))

	clock.Advance(time.Minute)
	require.Eventually(t, func() bool { return s.Len() == 0 }, time.Second, 5*time.Millisecond)

	cancel()
	<-done
}

func TestFromConfig(t *testing.T) {
	cfg := &config.Config{
		CompanyIP:               "10.1.1.1,10.1.1.2",
		RateLimitWindowMS:       900000,
		RateLimitMaxRequests:    500,
		RateLimitCompanyMax:     10000,
		RateLimitLoginMax:       5,
		RateLimitCompanyLogin:   1000,
		RateLimitCreateWindowMS: 60000,
		RateLimitCreateMax:      10,
		RateLimitCompanyCreate:  1000,
		RateLimitTokenWindowMS:  300000,
		RateLimitTokenMax:       5,
		RateLimitCompanyToken:   20,
	}
	set := FromConfig(cfg, WithClock(clockwork.NewFakeClock()), WithCleanupEvery(0))

	assert.Equal(t, 5, set.Login.normal.Burst())
	assert.Equal(t, 1000, set.Login.company.Burst())
	assert.True(t, set.Login.rule.SkipSuccessful)
	assert.Same(t, set.Create.company, set.Create.storeFor("::ffff:10.1.1.2"))
	assert.Same(t, set.API.normal, set.API.storeFor("10.1.1.3"))
	assert.Equal(t, "Muitas tentativas de verificação. Aguarde 5 minutos.", set.Token.rule.Message)

	ctx, cancel := context.WithCancel(context.Background())
	done := set.StartJanitors(ctx)
	cancel()
	<-done
}
