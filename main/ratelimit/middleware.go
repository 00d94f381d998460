package ratelimit

import (
	"context"
	"fmt"
	"math"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/jonboulle/clockwork"
	"go.uber.org/zap"

	"lumigente_backend/main/config"
	"lumigente_backend/main/logger"
	"lumigente_backend/main/metrics"
)

// Rule describes one limiter. CompanyMax applies to requests coming from the
// company's public addresses.
type Rule struct {
	Name           string
	Message        string
	Window         time.Duration
	Max            int
	CompanyMax     int
	SkipSuccessful bool
}

type Limiter struct {
	rule      Rule
	normal    *Store
	company   *Store
	companyIP map[string]bool
	clock     clockwork.Clock
}

func New(rule Rule, companyIPs []string, opts ...StoreOption) *Limiter {
	if rule.CompanyMax <= 0 {
		rule.CompanyMax = rule.Max
	}
	l := &Limiter{
		rule:      rule,
		normal:    NewStore(rule.Max, rule.Window, opts...),
		company:   NewStore(rule.CompanyMax, rule.Window, opts...),
		companyIP: map[string]bool{},
	}
	l.clock = l.normal.clock
	for _, ip := range companyIPs {
		if ip = normalizeIP(ip); ip != "" {
			l.companyIP[ip] = true
		}
	}
	return l
}

func normalizeIP(ip string) string {
	return strings.TrimPrefix(strings.TrimSpace(ip), "::ffff:")
}

func (l *Limiter) Name() string { return l.rule.Name }

func (l *Limiter) storeFor(ip string) *Store {
	if l.companyIP[normalizeIP(ip)] {
		return l.company
	}
	return l.normal
}

// Middleware takes one token per request. With SkipSuccessful the token is
// given back when the handler answers below 400, so only failures count.
func (l *Limiter) Middleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		if c.Request.Method == http.MethodOptions {
			c.Next()
			return
		}

		ip := c.ClientIP()
		store := l.storeFor(ip)
		lim := store.Get(ip)
		now := l.clock.Now()

		r := lim.ReserveN(now, 1)
		if !r.OK() {
			l.reject(c, ip, l.rule.Window)
			return
		}
		if delay := r.DelayFrom(now); delay > 0 {
			r.CancelAt(now)
			l.reject(c, ip, delay)
			return
		}

		c.Header("RateLimit-Limit", strconv.Itoa(store.Burst()))
		c.Header("RateLimit-Remaining", strconv.Itoa(int(math.Max(0, lim.TokensAt(now)))))

		c.Next()

		if l.rule.SkipSuccessful && c.Writer.Status() < http.StatusBadRequest {
			r.CancelAt(now)
		}
	}
}

func (l *Limiter) reject(c *gin.Context, ip string, retry time.Duration) {
	metrics.RateLimitRejections.WithLabelValues(l.rule.Name).Inc()
	logger.L().Warn("rate limit exceeded",
		zap.String("limiter", l.rule.Name),
		zap.String("ip", ip),
		zap.String("path", c.Request.URL.Path),
	)
	c.Header("Retry-After", strconv.Itoa(int(math.Ceil(retry.Seconds()))))
	c.AbortWithStatusJSON(http.StatusTooManyRequests, gin.H{"error": l.rule.Message})
}

// Set is the group of limiters mounted by the router.
type Set struct {
	API    *Limiter
	Login  *Limiter
	Create *Limiter
	Token  *Limiter
}

func FromConfig(cfg *config.Config, opts ...StoreOption) *Set {
	ips := strings.Split(cfg.CompanyIP, ",")
	tokenMinutes := int(math.Ceil(cfg.TokenWindow().Minutes()))
	return &Set{
		API: New(Rule{
			Name:       "api",
			Message:    "Muitas requisições. Tente novamente mais tarde.",
			Window:     cfg.RateLimitWindow(),
			Max:        cfg.RateLimitMaxRequests,
			CompanyMax: cfg.RateLimitCompanyMax,
		}, ips, opts...),
		Login: New(Rule{
			Name:           "login",
			Message:        "Muitas tentativas de login. Tente novamente mais tarde.",
			Window:         cfg.RateLimitWindow(),
			Max:            cfg.RateLimitLoginMax,
			CompanyMax:     cfg.RateLimitCompanyLogin,
			SkipSuccessful: true,
		}, ips, opts...),
		Create: New(Rule{
			Name:       "create",
			Message:    "Muitas criações. Aguarde um momento.",
			Window:     cfg.CreateWindow(),
			Max:        cfg.RateLimitCreateMax,
			CompanyMax: cfg.RateLimitCompanyCreate,
		}, ips, opts...),
		Token: New(Rule{
			Name:           "token",
			Message:        fmt.Sprintf("Muitas tentativas de verificação. Aguarde %d minutos.", tokenMinutes),
			Window:         cfg.TokenWindow(),
			Max:            cfg.RateLimitTokenMax,
			CompanyMax:     cfg.RateLimitCompanyToken,
			SkipSuccessful: true,
		}, ips, opts...),
	}
}

func (s *Set) all() []*Limiter {
	return []*Limiter{s.API, s.Login, s.Create, s.Token}
}

// StartJanitors starts the idle-key cleanup of every store. The returned
// channel is closed once all of them stopped.
func (s *Set) StartJanitors(ctx context.Context) <-chan struct{} {
	var waits []<-chan struct{}
	for _, l := range s.all() {
		if l == nil {
			continue
		}
		waits = append(waits, l.normal.StartJanitor(ctx), l.company.StartJanitor(ctx))
	}
	done := make(chan struct{})
	go func() {
		defer close(done)
		for _, w := range waits {
			<-w
		}
	}()
	return done
}
