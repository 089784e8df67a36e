// Package nats publishes encoded change records to a NATS subject.
package nats

import (
	"fmt"
	"time"

	"github.com/nats-io/nats.go"
	"github.com/sirupsen/logrus"
)

// Publisher sends payloads to one subject over a reconnecting connection.
type Publisher struct {
	conn    *nats.Conn
	subject string
	logger  *logrus.Logger
}

// NewPublisher connects to url and publishes to subject.
func NewPublisher(url, subject string, maxReconnect int, reconnectWait time.Duration, logger *logrus.Logger) (*Publisher, error) {
	opts := []nats.Option{
		nats.Name("tabletrace"),
		nats.MaxReconnects(maxReconnect),
		nats.ReconnectWait(reconnectWait),
		nats.DisconnectErrHandler(func(nc *nats.Conn, err error) {
			if err != nil {
				logger.Warnf("NATS disconnected: %v", err)
			}
		}),
		nats.ReconnectHandler(func(nc *nats.Conn) {
			logger.Infof("NATS reconnected to %s", nc.ConnectedUrl())
		}),
		nats.ClosedHandler(func(nc *nats.Conn) {
			logger.Warn("NATS connection closed")
		}),
	}

	conn, err := nats.Connect(url, opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to NATS: %w", err)
	}
	logger.Infof("Connected to NATS at %s", url)

	return &Publisher{
		conn:    conn,
		subject: subject,
		logger:  logger,
	}, nil
}

// Send publishes one payload.
func (p *Publisher) Send(data []byte) error {
	if err := p.conn.Publish(p.subject, data); err != nil {
		return fmt.Errorf("failed to publish to NATS: %w", err)
	}
	p.logger.Debugf("Published %d bytes to %s", len(data), p.subject)
	return nil
}

// Close drains pending messages and closes the connection.
func (p *Publisher) Close() {
	if p.conn == nil {
		return
	}
	if err := p.conn.Drain(); err != nil {
		p.logger.Debugf("NATS drain failed: %v", err)
		p.conn.Close()
	}
}

// Conn returns the underlying connection for script bindings. A nil
// publisher has no connection.
func (p *Publisher) Conn() *nats.Conn {
	if p == nil {
		return nil
	}
	return p.conn
}
