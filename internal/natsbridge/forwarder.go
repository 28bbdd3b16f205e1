// ABOUTME: Forwards broadcast credential events to a NATS subject as JSON
// ABOUTME: Headers carry event id, type and host so consumers can filter without decoding

package natsbridge

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/nats-io/nats.go"

	"github.com/2389/printauth/internal/broadcast"
)

const (
	// DefaultSubject is used when no subject is configured.
	DefaultSubject = "printauth.events"
	// ConnectTimeout bounds the initial connection.
	ConnectTimeout = 10 * time.Second
	// ReconnectWait is the pause between reconnect attempts.
	ReconnectWait = 5 * time.Second
)

// Header names set on every forwarded message.
const (
	HeaderEventID   = "x-event-id"
	HeaderEventType = "x-event-type"
	HeaderHost      = "x-host"
	HeaderTimestamp = "x-timestamp"
)

// msgPublisher is the part of *nats.Conn the forwarder uses.
type msgPublisher interface {
	PublishMsg(msg *nats.Msg) error
}

// Forwarder publishes events to NATS.
type Forwarder struct {
	pub     msgPublisher
	conn    *nats.Conn
	subject string
	logger  *slog.Logger
}

// Connect dials the NATS server at url. The client reconnects on its own
// for the life of the process.
func Connect(url, subject string, logger *slog.Logger) (*Forwarder, error) {
	if logger == nil {
		logger = slog.Default()
	}
	logger = logger.With("component", "natsbridge")

	conn, err := nats.Connect(url,
		nats.Name("printauth"),
		nats.Timeout(ConnectTimeout),
		nats.ReconnectWait(ReconnectWait),
		nats.MaxReconnects(-1),
		nats.DisconnectErrHandler(func(_ *nats.Conn, err error) {
			if err != nil {
				logger.Warn("disconnected from NATS", "error", err)
			}
		}),
		nats.ReconnectHandler(func(c *nats.Conn) {
			logger.Info("reconnected to NATS", "url", c.ConnectedUrl())
		}),
	)
	if err != nil {
		return nil, fmt.Errorf("connecting to NATS at %s: %w", url, err)
	}

	f := newForwarder(conn, subject, logger)
	f.conn = conn
	logger.Info("NATS forwarder connected", "url", url, "subject", f.subject)
	return f, nil
}

func newForwarder(pub msgPublisher, subject string, logger *slog.Logger) *Forwarder {
	if subject == "" {
		subject = DefaultSubject
	}
	return &Forwarder{
		pub:     pub,
		subject: subject,
		logger:  logger,
	}
}

// Subject returns the subject events are published on.
func (f *Forwarder) Subject() string {
	return f.subject
}

// Forward publishes one event.
func (f *Forwarder) Forward(e *broadcast.Event) error {
	data, err := json.Marshal(e)
	if err != nil {
		return fmt.Errorf("encoding event: %w", err)
	}

	msg := nats.NewMsg(f.subject)
	msg.Data = data
	msg.Header.Set(HeaderEventID, e.ID)
	msg.Header.Set(HeaderEventType, string(e.Type))
	if e.Host != "" {
		msg.Header.Set(HeaderHost, e.Host)
	}
	msg.Header.Set(HeaderTimestamp, e.Timestamp.Format(time.RFC3339Nano))

	if err := f.pub.PublishMsg(msg); err != nil {
		return fmt.Errorf("publishing event %s: %w", e.ID, err)
	}
	f.logger.Debug("event forwarded", "event_id", e.ID, "type", e.Type, "subject", f.subject)
	return nil
}

// Run forwards events until ctx is cancelled or events is closed. Publish
// failures are logged and do not stop forwarding.
func (f *Forwarder) Run(ctx context.Context, events <-chan *broadcast.Event) error {
	for {
		select {
		case <-ctx.Done():
			return nil
		case e, ok := <-events:
			if !ok {
				return nil
			}
			if err := f.Forward(e); err != nil {
				f.logger.Error("forwarding event failed", "error", err)
			}
		}
	}
}

// Close flushes pending messages and closes the connection.
func (f *Forwarder) Close() error {
	if f.conn == nil {
		return nil
	}
	err := f.conn.Drain()
	if errors.Is(err, nats.ErrConnectionClosed) {
		return nil
	}
	return err
}
