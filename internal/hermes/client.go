package hermes

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/nats-io/nats.go"
)

// Handler processes one message. Handlers run on worker goroutines, never on
// the NATS delivery goroutine.
type Handler func(subject string, data []byte)

type Client struct {
	conn   *nats.Conn
	logger *slog.Logger

	mu    sync.Mutex
	subs  []*nats.Subscription
	pools []*workerPool
}

func NewClient(ctx context.Context, url, token string, logger *slog.Logger) (*Client, error) {
	opts := []nats.Option{
		nats.Name("courier"),
		nats.RetryOnFailedConnect(true),
		nats.MaxReconnects(60),
		nats.ReconnectWait(2 * time.Second),
		nats.DisconnectErrHandler(func(_ *nats.Conn, err error) {
			if err != nil {
				logger.Warn("nats disconnected", "error", err)
			}
		}),
		nats.ReconnectHandler(func(_ *nats.Conn) {
			logger.Info("nats reconnected")
		}),
		nats.ErrorHandler(func(_ *nats.Conn, sub *nats.Subscription, err error) {
			subject := ""
			if sub != nil {
				subject = sub.Subject
			}
			logger.Error("nats async error", "subject", subject, "error", err)
		}),
	}
	if token != "" {
		opts = append(opts, nats.Token(token))
	}

	nc, err := nats.Connect(url, opts...)
	if err != nil {
		return nil, fmt.Errorf("nats connect: %w", err)
	}

	return &Client{conn: nc, logger: logger}, nil
}

func (c *Client) Publish(subject string, data any) error {
	payload, err := json.Marshal(data)
	if err != nil {
		return fmt.Errorf("marshal payload: %w", err)
	}
	return c.conn.Publish(subject, payload)
}

// QueueSubscribe joins queue on subject, so each message reaches one member
// of the group, and runs handler on up to workers goroutines. While every
// worker is busy, delivery for this subscription waits.
func (c *Client) QueueSubscribe(subject, queue string, workers int, handler Handler) error {
	pool := newWorkerPool(workers, c.logger)
	sub, err := c.conn.QueueSubscribe(subject, queue, func(msg *nats.Msg) {
		pool.dispatch(msg.Subject, msg.Data, handler)
	})
	if err != nil {
		return fmt.Errorf("queue subscribe %s: %w", subject, err)
	}

	c.mu.Lock()
	c.subs = append(c.subs, sub)
	c.pools = append(c.pools, pool)
	c.mu.Unlock()

	c.logger.Info("subscribed", "subject", subject, "queue", queue, "workers", pool.size)
	return nil
}

// Close stops delivery, waits for running handlers so their replies can
// still be published, then drains the connection.
func (c *Client) Close() {
	c.mu.Lock()
	subs, pools := c.subs, c.pools
	c.subs, c.pools = nil, nil
	c.mu.Unlock()

	for _, sub := range subs {
		_ = sub.Unsubscribe()
	}
	for _, p := range pools {
		p.wait()
	}
	if err := c.conn.Drain(); err != nil {
		c.logger.Warn("nats drain failed", "error", err)
		c.conn.Close()
	}
}
