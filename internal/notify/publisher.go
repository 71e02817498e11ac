package notify

import (
	"context"
	"fmt"

	"github.com/nats-io/nats.go"
	"github.com/rs/zerolog"
)

// RealtimePublisher pushes an event to a recipient's connected sessions.
// Implementations must be non-fatal: delivery is best effort.
type RealtimePublisher interface {
	PushToUser(ctx context.Context, userID string, data []byte) error
}

// NATSPublisher publishes per-user notification events to NATS.
//
// Subject convention: notifications.user.<user_id>
//
// Publish failures are the caller's to log; the dispatcher treats them as
// warnings, never as errors.
type NATSPublisher struct {
	conn *nats.Conn
	log  zerolog.Logger
}

// NewNATSPublisher connects to the given NATS URL.
func NewNATSPublisher(url string, log zerolog.Logger) (*NATSPublisher, error) {
	conn, err := nats.Connect(url, nats.Name("workflow-core"))
	if err != nil {
		return nil, fmt.Errorf("connect to nats: %w", err)
	}
	return &NATSPublisher{conn: conn, log: log}, nil
}

// PushToUser publishes the payload on the user's notification subject.
func (p *NATSPublisher) PushToUser(_ context.Context, userID string, data []byte) error {
	subject := fmt.Sprintf("notifications.user.%s", userID)
	if err := p.conn.Publish(subject, data); err != nil {
		return fmt.Errorf("publish %s: %w", subject, err)
	}
	return nil
}

// Close drains and closes the connection.
func (p *NATSPublisher) Close() {
	if err := p.conn.Drain(); err != nil {
		p.log.Warn().Err(err).Msg("notify: nats drain failed")
	}
}

// NoopPublisher is used when no real-time transport is configured.
// Notifications are still persisted; only the push is skipped.
type NoopPublisher struct{}

// PushToUser does nothing.
func (NoopPublisher) PushToUser(context.Context, string, []byte) error { return nil }
