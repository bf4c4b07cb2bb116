// Package events carries match outcomes over NATS.
package events

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/nats-io/nats.go"

	"pong/internal/stats"
)

// DefaultSubject is where finished matches are published.
const DefaultSubject = "pong.match.finished"

// Connect dials NATS and keeps reconnecting forever.
func Connect(url, name string, logger *slog.Logger) (*nats.Conn, error) {
	conn, err := nats.Connect(url,
		nats.Name(name),
		nats.MaxReconnects(-1),
		nats.ReconnectWait(time.Second),
		nats.PingInterval(20*time.Second),
		nats.DisconnectErrHandler(func(_ *nats.Conn, err error) {
			if err != nil {
				logger.Warn("nats disconnected", "error", err)
			}
		}),
		nats.ReconnectHandler(func(c *nats.Conn) {
			logger.Info("nats reconnected", "url", c.ConnectedUrl())
		}),
	)
	if err != nil {
		return nil, fmt.Errorf("connect nats %s: %w", url, err)
	}
	return conn, nil
}

// Healthy reports an error unless conn is connected.
func Healthy(conn *nats.Conn) error {
	if status := conn.Status(); status != nats.CONNECTED {
		return fmt.Errorf("nats status %s", status)
	}
	return nil
}

type msgPublisher interface {
	Publish(subject string, data []byte) error
}

// Publisher implements stats.Publisher on a NATS subject.
type Publisher struct {
	conn    msgPublisher
	subject string
}

func NewPublisher(conn *nats.Conn, subject string) *Publisher {
	if subject == "" {
		subject = DefaultSubject
	}
	return &Publisher{conn: conn, subject: subject}
}

func (p *Publisher) Publish(ctx context.Context, o stats.Outcome) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	data, err := json.Marshal(o)
	if err != nil {
		return fmt.Errorf("encode outcome: %w", err)
	}
	if err := p.conn.Publish(p.subject, data); err != nil {
		return fmt.Errorf("publish outcome %s: %w", o.MatchID, err)
	}
	return nil
}

// OutcomeHandler processes one received outcome.
type OutcomeHandler func(ctx context.Context, o stats.Outcome) error

// Subscribe delivers outcomes from subject to handle. Subscribers sharing queue
// split the stream between them.
func Subscribe(conn *nats.Conn, subject, queue string, timeout time.Duration, handle OutcomeHandler, logger *slog.Logger) (*nats.Subscription, error) {
	if subject == "" {
		subject = DefaultSubject
	}
	sub, err := conn.QueueSubscribe(subject, queue, msgHandler(timeout, handle, logger))
	if err != nil {
		return nil, fmt.Errorf("subscribe %s: %w", subject, err)
	}
	return sub, nil
}

func msgHandler(timeout time.Duration, handle OutcomeHandler, logger *slog.Logger) nats.MsgHandler {
	return func(msg *nats.Msg) {
		var o stats.Outcome
		if err := json.Unmarshal(msg.Data, &o); err != nil {
			logger.Warn("dropping malformed outcome", "subject", msg.Subject, "error", err)
			return
		}
		ctx, cancel := context.WithTimeout(context.Background(), timeout)
		defer cancel()
		if err := handle(ctx, o); err != nil {
			logger.Error("failed to handle outcome", "match", o.MatchID, "error", err)
		}
	}
}
