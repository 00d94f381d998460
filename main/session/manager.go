package session

import (
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/gorilla/sessions"
	"github.com/jonboulle/clockwork"
	"go.uber.org/zap"

	"lumigente_backend/main/logger"
	"lumigente_backend/users/access"
)

const (
	sessionIDKey = "sid"

	ctxManager   = "session_manager"
	ctxUser      = "session_user"
	ctxSessionID = "session_id"
	// ctxUserID is read by the request logger.
	ctxUserID = "user_id"
)

type Options struct {
	CookieName string
	Secret     string
	MaxAge     time.Duration
	Secure     bool
	HTTPOnly   bool
	Clock      clockwork.Clock
}

// Manager ties the signed session cookie to the server-side Store.
type Manager struct {
	cookies *sessions.CookieStore
	store   Store
	name    string
	maxAge  time.Duration
	clock   clockwork.Clock
}

func NewManager(store Store, opts Options) *Manager {
	if opts.CookieName == "" {
		opts.CookieName = "lumigente.sid"
	}
	if opts.MaxAge <= 0 {
		opts.MaxAge = 8 * time.Hour
	}
	if opts.Clock == nil {
		opts.Clock = clockwork.NewRealClock()
	}

	cookies := sessions.NewCookieStore([]byte(opts.Secret))
	cookies.Options = &sessions.Options{
		Path:     "/",
		HttpOnly: opts.HTTPOnly,
		Secure:   opts.Secure,
		SameSite: http.SameSiteStrictMode,
	}
	cookies.MaxAge(int(opts.MaxAge.Seconds()))

	return &Manager{
		cookies: cookies,
		store:   store,
		name:    opts.CookieName,
		maxAge:  opts.MaxAge,
		clock:   opts.Clock,
	}
}

func (m *Manager) Store() Store { return m.store }

func (m *Manager) CookieName() string { return m.name }

// Load resolves the session cookie and, when it points at a live session,
// extends it and puts the user in the context. It never rejects a request.
func (m *Manager) Load() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Set(ctxManager, m)
		sess, _ := m.cookies.Get(c.Request, m.name)
		id, _ := sess.Values[sessionIDKey].(string)
		if id == "" {
			c.Next()
			return
		}

		ctx := c.Request.Context()
		data, err := m.store.Get(ctx, id)
		if err != nil {
			if !errors.Is(err, ErrNotFound) {
				logger.L().Warn("session lookup failed", zap.Error(err))
			}
			c.Next()
			return
		}

		data.LastSeen = m.clock.Now()
		if err := m.store.Save(ctx, id, data, m.maxAge); err != nil {
			logger.L().Warn("session refresh failed", zap.Error(err))
		}
		if err := sess.Save(c.Request, c.Writer); err != nil {
			logger.L().Warn("session cookie refresh failed", zap.Error(err))
		}

		m.bind(c, id, data.User)
		c.Next()
	}
}

func (m *Manager) bind(c *gin.Context, id string, user *access.User) {
	c.Set(ctxSessionID, id)
	c.Set(ctxUser, user)
	if user != nil {
		c.Set(ctxUserID, user.ID)
	}
}

// Start opens a fresh session for user, dropping any previous one.
func (m *Manager) Start(c *gin.Context, user *access.User) error {
	ctx := c.Request.Context()
	if old := c.GetString(ctxSessionID); old != "" {
		_ = m.store.Delete(ctx, old)
	}

	sess, _ := m.cookies.Get(c.Request, m.name)
	if !sess.IsNew {
		if old, _ := sess.Values[sessionIDKey].(string); old != "" {
			_ = m.store.Delete(ctx, old)
		}
	}

	id := uuid.NewString()
	now := m.clock.Now()
	if err := m.store.Save(ctx, id, &Data{User: user, CreatedAt: now, LastSeen: now}, m.maxAge); err != nil {
		return err
	}
	sess.Values = map[any]any{sessionIDKey: id}
	if err := sess.Save(c.Request, c.Writer); err != nil {
		return err
	}
	m.bind(c, id, user)
	return nil
}

// Update replaces the user stored in the current session.
func (m *Manager) Update(c *gin.Context, user *access.User) error {
	id := c.GetString(ctxSessionID)
	if id == "" {
		return ErrNotFound
	}
	ctx := c.Request.Context()
	data, err := m.store.Get(ctx, id)
	if err != nil {
		return err
	}
	data.User = user
	data.LastSeen = m.clock.Now()
	if err := m.store.Save(ctx, id, data, m.maxAge); err != nil {
		return err
	}
	m.bind(c, id, user)
	return nil
}

// Destroy removes the session and expires the cookie.
func (m *Manager) Destroy(c *gin.Context) error {
	ctx := c.Request.Context()
	sess, _ := m.cookies.Get(c.Request, m.name)
	id := c.GetString(ctxSessionID)
	if id == "" {
		id, _ = sess.Values[sessionIDKey].(string)
	}
	if id != "" {
		if err := m.store.Delete(ctx, id); err != nil {
			return err
		}
	}

	opts := *m.cookies.Options
	opts.MaxAge = -1
	sess.Options = &opts
	sess.Values = map[any]any{}
	c.Set(ctxUser, (*access.User)(nil))
	c.Set(ctxSessionID, "")
	return sess.Save(c.Request, c.Writer)
}

// From returns the Manager installed by Load.
func From(c *gin.Context) (*Manager, bool) {
	v, ok := c.Get(ctxManager)
	if !ok {
		return nil, false
	}
	m, ok := v.(*Manager)
	return m, ok && m != nil
}

// Current returns the session user or nil.
func Current(c *gin.Context) *access.User {
	v, ok := c.Get(ctxUser)
	if !ok {
		return nil
	}
	u, _ := v.(*access.User)
	return u
}

// RequireAuth rejects requests without a session user.
func RequireAuth() gin.HandlerFunc {
	return func(c *gin.Context) {
		if Current(c) == nil {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "Usuário não autenticado"})
			return
		}
		c.Next()
	}
}

// WithUser is used by handler tests to skip the cookie round trip.
func WithUser(u *access.User) gin.HandlerFunc {
	return func(c *gin.Context) {
		if u != nil {
			c.Set(ctxUser, u)
			c.Set(ctxUserID, u.ID)
		}
		c.Next()
	}
}

// Replace swaps the session user for the rest of the request and, when a
// Manager is installed, in the store as well.
func Replace(c *gin.Context, u *access.User) error {
	if m, ok := From(c); ok && c.GetString(ctxSessionID) != "" {
		return m.Update(c, u)
	}
	c.Set(ctxUser, u)
	if u != nil {
		c.Set(ctxUserID, u.ID)
	}
	return nil
}
