// Package notify delivers notifications to users and role audiences. The
// Dispatcher is the only component that creates notification records; every
// other component goes through it.
package notify

import (
	"context"
	"encoding/json"
	"time"

	"github.com/rs/zerolog"

	"github.com/ningxiarongchen-lgtm/project-ark-sub004/internal/repository"
)

// NotificationStore persists notification records.
type NotificationStore interface {
	Create(ctx context.Context, n *repository.Notification) error
}

// RoleResolver resolves a role set to the users holding any of those roles.
type RoleResolver interface {
	ListByRoles(ctx context.Context, roles ...string) ([]string, error)
}

// Input describes one logical notification event. Fan-out to a role produces
// one stored record per role holder.
type Input struct {
	Title    string
	Message  string
	Link     string
	Type     string
	Priority repository.NotificationPriority
}

// Dispatcher delivers notifications: one record per recipient, plus a
// best-effort real-time push per recipient.
type Dispatcher struct {
	store     NotificationStore
	users     RoleResolver
	publisher RealtimePublisher
	log       zerolog.Logger
}

// NewDispatcher creates a Dispatcher.
func NewDispatcher(store NotificationStore, users RoleResolver, publisher RealtimePublisher, log zerolog.Logger) *Dispatcher {
	if publisher == nil {
		publisher = NoopPublisher{}
	}
	return &Dispatcher{store: store, users: users, publisher: publisher, log: log}
}

// NotifyUser delivers one notification to one user.
func (d *Dispatcher) NotifyUser(ctx context.Context, userID string, in Input) error {
	if in.Priority == "" {
		in.Priority = repository.PriorityNormal
	}

	n := &repository.Notification{
		RecipientID: userID,
		Title:       in.Title,
		Message:     in.Message,
		Link:        in.Link,
		Priority:    in.Priority,
		Type:        in.Type,
	}
	if err := d.store.Create(ctx, n); err != nil {
		return err
	}

	d.push(ctx, n)
	return nil
}

// NotifyUsers delivers the notification to each listed user. Per-recipient
// store failures are logged and skipped; the count of delivered records is
// returned.
func (d *Dispatcher) NotifyUsers(ctx context.Context, userIDs []string, in Input) int {
	delivered := 0
	for _, id := range userIDs {
		if err := d.NotifyUser(ctx, id, in); err != nil {
			d.log.Warn().Err(err).
				Str("recipient_id", id).
				Str("type", in.Type).
				Msg("notify: failed to deliver notification")
			continue
		}
		delivered++
	}
	return delivered
}

// NotifyRole fans the notification out to every user holding any of the given
// roles. An empty audience is a warning, not an error.
func (d *Dispatcher) NotifyRole(ctx context.Context, in Input, roles ...string) (int, error) {
	userIDs, err := d.users.ListByRoles(ctx, roles...)
	if err != nil {
		return 0, err
	}
	if len(userIDs) == 0 {
		d.log.Warn().
			Strs("roles", roles).
			Str("type", in.Type).
			Msg("notify: no users hold the target roles; nothing delivered")
		return 0, nil
	}
	return d.NotifyUsers(ctx, userIDs, in), nil
}

// pushEvent is the JSON schema pushed to connected sessions.
type pushEvent struct {
	ID        string    `json:"id"`
	Title     string    `json:"title"`
	Message   string    `json:"message"`
	Link      string    `json:"link,omitempty"`
	Priority  string    `json:"priority"`
	Type      string    `json:"type"`
	CreatedAt time.Time `json:"created_at"`
}

// push sends the real-time event. Failures are logged and swallowed so a dead
// transport never fails a workflow transition.
func (d *Dispatcher) push(ctx context.Context, n *repository.Notification) {
	data, err := json.Marshal(pushEvent{
		ID:        n.ID,
		Title:     n.Title,
		Message:   n.Message,
		Link:      n.Link,
		Priority:  string(n.Priority),
		Type:      n.Type,
		CreatedAt: n.CreatedAt,
	})
	if err != nil {
		d.log.Warn().Err(err).Str("notification_id", n.ID).Msg("notify: failed to marshal push event")
		return
	}
	if err := d.publisher.PushToUser(ctx, n.RecipientID, data); err != nil {
		d.log.Warn().Err(err).
			Str("recipient_id", n.RecipientID).
			Msg("notify: failed to push real-time event (non-fatal)")
	}
}
