package main

import (
	"bytes"
	"context"
	"net/http"
	"net/http/httptest"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/jonboulle/clockwork"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"lumigente_backend/client"
)

type syncBuffer struct {
	mu  sync.Mutex
	buf bytes.Buffer
}

func (b *syncBuffer) Write(p []byte) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.Write(p)
}

func (b *syncBuffer) String() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.String()
}

func notificationServer(t *testing.T, unread *atomic.Int64, logouts *atomic.Int32) *client.Client {
	t.Helper()
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.POST("/api/login", func(c *gin.Context) {
		var p struct {
			CPF      string `json:"cpf"`
			Password string `json:"password"`
		}
		_ = c.ShouldBindJSON(&p)
		if p.CPF != "111.444.777-35" || p.Password != "segredo" {
			c.JSON(http.StatusUnauthorized, gin.H{"error": "CPF ou senha incorretos"})
			return
		}
		c.JSON(http.StatusOK, gin.H{"success": true, "user": gin.H{"userId": 3, "nomeCompleto": "Helena Prado"}})
	})
	r.GET("/api/users/list", func(c *gin.Context) {
		c.JSON(http.StatusOK, []gin.H{{"userId": 3}, {"userId": 4}, {"userId": 5}})
	})
	r.GET("/api/notifications/count", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"count": unread.Load()})
	})
	r.POST("/api/logout", func(c *gin.Context) {
		logouts.Add(1)
		c.JSON(http.StatusOK, gin.H{"success": true})
	})
	srv := httptest.NewServer(r)
	c, err := client.New(srv.URL, client.WithLogger(zap.NewNop()))
	require.NoError(t, err)
	t.Cleanup(func() {
		c.Close()
		srv.Close()
	})
	return c
}

func TestWatchNotificationsOnce(t *testing.T) {
	var unread atomic.Int64
	var logouts atomic.Int32
	unread.Store(2)
	c := notificationServer(t, &unread, &logouts)

	var out bytes.Buffer
	err := WatchNotifications(context.Background(), &out, c, watchOptions{CPF: "111.444.777-35", Senha: "segredo", Once: true})
	require.NoError(t, err)
	assert.Equal(t, "Helena Prado conectado (3 colaboradores visíveis)\nnotificações não lidas: 2\n", out.String())
	assert.EqualValues(t, 1, logouts.Load())

	err = WatchNotifications(context.Background(), &out, c, watchOptions{CPF: "111.444.777-35", Senha: "errada", Once: true})
	assert.ErrorIs(t, err, client.ErrUnauthenticated)
}

func TestWatchNotificationsFollowsCounter(t *testing.T) {
	var unread atomic.Int64
	var logouts atomic.Int32
	unread.Store(1)
	c := notificationServer(t, &unread, &logouts)
	clock := clockwork.NewFakeClock()

	ctx, cancel := context.WithCancel(context.Background())
	out := &syncBuffer{}
	done := make(chan error, 1)
	go func() {
		done <- WatchNotifications(ctx, out, c, watchOptions{
			CPF: "111.444.777-35", Senha: "segredo", Interval: time.Minute, Clock: clock,
		})
	}()

	require.Eventually(t, func() bool {
		return bytes.Contains([]byte(out.String()), []byte("não lidas: 1\n"))
	}, 2*time.Second, 10*time.Millisecond)

	unread.Store(4)
	require.NoError(t, clock.BlockUntilContext(ctx, 1))
	clock.Advance(time.Minute)
	require.Eventually(t, func() bool {
		return bytes.Contains([]byte(out.String()), []byte("não lidas: 4\n"))
	}, 2*time.Second, 10*time.Millisecond)

	cancel()
	select {
	case err := <-done:
		require.NoError(t, err)
	case <-time.After(2 * time.Second):
		t.Fatal("watch did not stop")
	}
	assert.EqualValues(t, 1, logouts.Load())
}
