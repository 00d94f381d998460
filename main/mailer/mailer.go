package mailer

import (
	"context"
	"crypto/tls"
	"fmt"
	"sync"

	"go.uber.org/zap"
	"gopkg.in/gomail.v2"

	"lumigente_backend/main/logger"
	"lumigente_backend/main/metrics"
)

type Message struct {
	To      string
	Subject string
	HTML    string
}

type Mailer interface {
	Send(ctx context.Context, msg Message) error
}

type Config struct {
	Host string
	Port int
	User string
	Pass string
	From string
}

// SMTP delivers through a gomail dialer.
type SMTP struct {
	dialer *gomail.Dialer
	from   string
}

func NewSMTP(cfg Config) *SMTP {
	dialer := gomail.NewDialer(cfg.Host, cfg.Port, cfg.User, cfg.Pass)
	dialer.TLSConfig = &tls.Config{ServerName: cfg.Host}
	if cfg.Port == 465 {
		dialer.SSL = true
	}
	return &SMTP{dialer: dialer, from: cfg.From}
}

func (s *SMTP) Send(ctx context.Context, msg Message) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if msg.To == "" {
		return fmt.Errorf("mailer: empty recipient")
	}
	m := gomail.NewMessage()
	m.SetHeader("From", s.from)
	m.SetHeader("To", msg.To)
	m.SetHeader("Subject", msg.Subject)
	m.SetBody("text/html", msg.HTML)

	if err := s.dialer.DialAndSend(m); err != nil {
		metrics.MailsSent.WithLabelValues("error").Inc()
		return fmt.Errorf("send mail to %s: %w", msg.To, err)
	}
	metrics.MailsSent.WithLabelValues("success").Inc()
	return nil
}

// Noop is used when SMTP_HOST is empty.
type Noop struct{}

func (Noop) Send(ctx context.Context, msg Message) error {
	logger.L().Debug("mail skipped, smtp disabled", zap.String("to", msg.To), zap.String("subject", msg.Subject))
	return nil
}

// Recorder keeps every message in memory.
type Recorder struct {
	mu   sync.Mutex
	Sent []Message
}

func (r *Recorder) Send(ctx context.Context, msg Message) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.Sent = append(r.Sent, msg)
	return nil
}

func (r *Recorder) Messages() []Message {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]Message, len(r.Sent))
	copy(out, r.Sent)
	return out
}

var (
	mu      sync.RWMutex
	current Mailer = Noop{}
	appURL         = "http://localhost:3057"
)

// New picks SMTP when a host is configured.
func New(cfg Config) Mailer {
	if cfg.Host == "" {
		return Noop{}
	}
	return NewSMTP(cfg)
}

func SetDefault(m Mailer, url string) {
	if m == nil {
		m = Noop{}
	}
	mu.Lock()
	current = m
	if url != "" {
		appURL = url
	}
	mu.Unlock()
}

func Default() Mailer {
	mu.RLock()
	defer mu.RUnlock()
	return current
}

func AppURL() string {
	mu.RLock()
	defer mu.RUnlock()
	return appURL
}
