package client

import (
	"context"
	"errors"
	"time"

	"github.com/jonboulle/clockwork"
	"go.uber.org/zap"
)

const DefaultPollInterval = 30 * time.Second

// NotificationPoller reads the unread counter periodically and calls
// OnChange whenever it differs from the last value seen.
type NotificationPoller struct {
	client   *Client
	interval time.Duration
	clock    clockwork.Clock
	onChange func(count int)
	last     int
}

type PollerOption func(*NotificationPoller)

func WithInterval(d time.Duration) PollerOption {
	return func(p *NotificationPoller) { p.interval = d }
}

func WithPollClock(c clockwork.Clock) PollerOption {
	return func(p *NotificationPoller) { p.clock = c }
}

func NewNotificationPoller(c *Client, onChange func(count int), opts ...PollerOption) *NotificationPoller {
	p := &NotificationPoller{
		client:   c,
		interval: DefaultPollInterval,
		clock:    clockwork.NewRealClock(),
		onChange: onChange,
		last:     -1,
	}
	for _, opt := range opts {
		opt(p)
	}
	if p.interval <= 0 {
		p.interval = DefaultPollInterval
	}
	return p
}

func (p *NotificationPoller) poll(ctx context.Context) error {
	n, err := p.client.NotificationCount(ctx)
	if err != nil {
		return err
	}
	if n != p.last {
		p.last = n
		if p.onChange != nil {
			p.onChange(n)
		}
	}
	return nil
}

// Start polls once right away and then every interval until ctx is done or
// the session expires. The returned channel is closed when polling stopped.
func (p *NotificationPoller) Start(ctx context.Context) <-chan struct{} {
	done := make(chan struct{})
	t := p.clock.NewTicker(p.interval)
	go func() {
		defer close(done)
		defer t.Stop()
		for {
			if err := p.poll(ctx); err != nil {
				if errors.Is(err, ErrUnauthenticated) {
					p.client.log.Info("notification polling stopped: session expired")
					return
				}
				if ctx.Err() != nil {
					return
				}
				p.client.log.Warn("notification poll failed", zap.Error(err))
			}
			select {
			case <-ctx.Done():
				return
			case <-t.Chan():
			}
		}
	}()
	return done
}
