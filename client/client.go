// Package client talks to the LumiGente API the way the web frontend does:
// one cookie session, JSON in and out.
package client

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/http/cookiejar"
	"net/url"
	"strings"
	"time"

	"github.com/jonboulle/clockwork"
	"go.uber.org/zap"

	"lumigente_backend/main/cache"
	"lumigente_backend/main/logger"
	"lumigente_backend/users/access"
)

var ErrUnauthenticated = errors.New("client: not authenticated")

// APIError is a non-2xx answer. Message comes from the body's "message" or
// "error" field.
type APIError struct {
	Status  int
	Message string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("api: %d %s", e.Status, e.Message)
}

type Client struct {
	base  string
	http  *http.Client
	log   *zap.Logger
	users *cache.TTLCache[string, []UserSummary]
}

type Option func(*Client)

func WithHTTPClient(h *http.Client) Option {
	return func(c *Client) { c.http = h }
}

func WithTimeout(d time.Duration) Option {
	return func(c *Client) { c.http.Timeout = d }
}

func WithLogger(l *zap.Logger) Option {
	return func(c *Client) { c.log = l }
}

// WithUsersCache changes how long Users keeps a list.
func WithUsersCache(ttl time.Duration, clock clockwork.Clock) Option {
	return func(c *Client) { c.users = cache.NewTTL[string, []UserSummary](ttl, clock) }
}

// New returns a client for the server at baseURL with its own cookie jar.
func New(baseURL string, opts ...Option) (*Client, error) {
	u, err := url.Parse(baseURL)
	if err != nil || u.Scheme == "" || u.Host == "" {
		return nil, fmt.Errorf("client: invalid base url %q", baseURL)
	}
	jar, err := cookiejar.New(nil)
	if err != nil {
		return nil, err
	}
	c := &Client{
		base: strings.TrimRight(baseURL, "/"),
		http:  &http.Client{Jar: jar, Timeout: 30 * time.Second},
		log:   logger.L(),
		users: cache.NewTTL[string, []UserSummary](cache.DefaultTTL, nil),
	}
	for _, opt := range opts {
		opt(c)
	}
	if c.http.Jar == nil {
		c.http.Jar = jar
	}
	return c, nil
}

// Close drops idle keep-alive connections.
func (c *Client) Close() {
	c.http.CloseIdleConnections()
}

func (c *Client) Get(ctx context.Context, path string, params url.Values, out any) error {
	if len(params) > 0 {
		path += "?" + params.Encode()
	}
	return c.do(ctx, http.MethodGet, path, nil, out)
}

func (c *Client) Post(ctx context.Context, path string, body, out any) error {
	return c.do(ctx, http.MethodPost, path, body, out)
}

func (c *Client) Put(ctx context.Context, path string, body, out any) error {
	return c.do(ctx, http.MethodPut, path, body, out)
}

func (c *Client) Delete(ctx context.Context, path string, out any) error {
	return c.do(ctx, http.MethodDelete, path, nil, out)
}

func (c *Client) do(ctx context.Context, method, path string, body, out any) error {
	var reader io.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("client: encode %s %s: %w", method, path, err)
		}
		reader = bytes.NewReader(raw)
	}
	req, err := http.NewRequestWithContext(ctx, method, c.base+path, reader)
	if err != nil {
		return err
	}
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("client: %s %s: %w", method, path, err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("client: read %s %s: %w", method, path, err)
	}
	if resp.StatusCode == http.StatusUnauthorized {
		return ErrUnauthenticated
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		apiErr := &APIError{Status: resp.StatusCode, Message: errorMessage(raw)}
		if apiErr.Message == "" {
			apiErr.Message = fmt.Sprintf("HTTP %d", resp.StatusCode)
		}
		c.log.Debug("api error", zap.String("method", method), zap.String("path", path),
			zap.Int("status", resp.StatusCode), zap.String("message", apiErr.Message))
		return apiErr
	}
	if out == nil || len(bytes.TrimSpace(raw)) == 0 {
		return nil
	}
	if err := json.Unmarshal(raw, out); err != nil {
		return fmt.Errorf("client: decode %s %s: %w", method, path, err)
	}
	return nil
}

func errorMessage(raw []byte) string {
	var body struct {
		Message string `json:"message"`
		Error   string `json:"error"`
	}
	if json.Unmarshal(raw, &body) != nil {
		return ""
	}
	if body.Message != "" {
		return body.Message
	}
	return body.Error
}

// Login opens a session. The session cookie stays in the client's jar.
func (c *Client) Login(ctx context.Context, cpf, password string) (*access.User, error) {
	var out struct {
		Success           bool         `json:"success"`
		NeedsRegistration bool         `json:"needsRegistration"`
		Error             string       `json:"error"`
		User              *access.User `json:"user"`
	}
	if err := c.Post(ctx, "/api/login", map[string]string{"cpf": cpf, "password": password}, &out); err != nil {
		return nil, err
	}
	if out.NeedsRegistration {
		return nil, &APIError{Status: http.StatusOK, Message: out.Error}
	}
	if out.User == nil {
		return nil, ErrUnauthenticated
	}
	return out.User, nil
}

func (c *Client) Logout(ctx context.Context) error {
	c.users.Clear()
	return c.Post(ctx, "/api/logout", nil, nil)
}

// Users lists the users the session may see, optionally narrowed to one
// department. Lists are cached per department.
func (c *Client) Users(ctx context.Context, department string) ([]UserSummary, error) {
	if list, ok := c.users.Get(department); ok {
		return list, nil
	}
	var params url.Values
	if department != "" {
		params = url.Values{"department": {department}}
	}
	var list []UserSummary
	if err := c.Get(ctx, "/api/users/list", params, &list); err != nil {
		return nil, err
	}
	c.users.Set(department, list)
	return list, nil
}

// NotificationCount reads the unread notification counter.
func (c *Client) NotificationCount(ctx context.Context) (int, error) {
	var out struct {
		Count int `json:"count"`
	}
	if err := c.Get(ctx, "/api/notifications/count", nil, &out); err != nil {
		return 0, err
	}
	return out.Count, nil
}
