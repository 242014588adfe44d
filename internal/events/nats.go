// Package events publishes ledger changes to NATS subjects.
package events

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/nats-io/nats.go"
)

// Config describes the NATS connection.
type Config struct {
	URL           string
	Name          string
	ReconnectWait time.Duration
	MaxReconnects int
}

// DefaultConfig returns connection defaults for url.
func DefaultConfig(url string) Config {
	return Config{
		URL:           url,
		Name:          "carebook",
		ReconnectWait: 2 * time.Second,
		MaxReconnects: 60,
	}
}

type conn interface {
	Publish(subject string, data []byte) error
	Drain() error
}

// Publisher marshals payloads as JSON and publishes them on a NATS connection.
// Publish only buffers; the client's flusher sends in the background and
// Close drains whatever is still pending.
type Publisher struct {
	conn   conn
	logger *slog.Logger
}

// Connect dials NATS and returns a publisher on the connection.
func Connect(cfg Config, logger *slog.Logger) (*Publisher, error) {
	if logger == nil {
		logger = slog.Default()
	}
	logger = logger.With("component", "events")

	nc, err := nats.Connect(cfg.URL,
		nats.Name(cfg.Name),
		nats.ReconnectWait(cfg.ReconnectWait),
		nats.MaxReconnects(cfg.MaxReconnects),
		nats.DisconnectErrHandler(func(_ *nats.Conn, err error) {
			if err != nil {
				logger.Warn("nats disconnected", "error", err)
			}
		}),
		nats.ReconnectHandler(func(c *nats.Conn) {
			logger.Info("nats reconnected", "url", c.ConnectedUrl())
		}),
		nats.ErrorHandler(func(_ *nats.Conn, _ *nats.Subscription, err error) {
			logger.Warn("nats async error", "error", err)
		}),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to NATS at %s: %w", cfg.URL, err)
	}

	logger.Info("connected to NATS", "url", nc.ConnectedUrl())
	return newPublisher(nc, logger), nil
}

func newPublisher(c conn, logger *slog.Logger) *Publisher {
	if logger == nil {
		logger = slog.Default()
	}
	return &Publisher{conn: c, logger: logger}
}

// Publish encodes payload and hands it to the connection's outbound buffer.
// It does not wait for the server.
func (p *Publisher) Publish(ctx context.Context, subject string, payload any) error {
	data, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("failed to marshal %s payload: %w", subject, err)
	}

	if err := p.conn.Publish(subject, data); err != nil {
		return fmt.Errorf("failed to publish to subject %s: %w", subject, err)
	}

	p.logger.DebugContext(ctx, "published event", "subject", subject, "bytes", len(data))
	return nil
}

// Close drains pending messages and closes the connection.
func (p *Publisher) Close() error {
	if p == nil || p.conn == nil {
		return nil
	}
	return p.conn.Drain()
}

// Noop discards every event. It is used when no NATS URL is configured.
type Noop struct{}

// Publish implements the publisher contract without sending anything.
func (Noop) Publish(context.Context, string, any) error { return nil }

// Close is a no-op.
func (Noop) Close() error { return nil }
