package notify

import (
	"context"
	stderrors "errors"
	"sync"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ningxiarongchen-lgtm/project-ark-sub004/internal/repository"
	"github.com/ningxiarongchen-lgtm/project-ark-sub004/internal/repository/memory"
)

type recordingPublisher struct {
	mu     sync.Mutex
	pushes map[string]int
}

func (p *recordingPublisher) PushToUser(_ context.Context, userID string, _ []byte) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.pushes == nil {
		p.pushes = make(map[string]int)
	}
	p.pushes[userID]++
	return nil
}

type failingPublisher struct{}

func (failingPublisher) PushToUser(context.Context, string, []byte) error {
	return stderrors.New("transport down")
}

func addUser(users *memory.UserRepository, name string, roles ...string) string {
	user := &repository.User{Name: name, Roles: roles}
	users.Add(user)
	return user.ID
}

func TestNotifyRoleFansOutOneRecordPerHolder(t *testing.T) {
	store := memory.NewNotificationRepository()
	users := memory.NewUserRepository()
	publisher := &recordingPublisher{}
	d := NewDispatcher(store, users, publisher, zerolog.Nop())

	admin1 := addUser(users, "Admin One", repository.RoleAdmin)
	admin2 := addUser(users, "Admin Two", repository.RoleAdmin)
	commercial := addUser(users, "Commercial", repository.RoleCommercial)

	delivered, err := d.NotifyRole(context.Background(), Input{
		Title:   "Purchase order awaiting approval",
		Message: "PO-1 needs review",
		Type:    "admin_approval_requested",
	}, repository.RoleAdmin)
	require.NoError(t, err)
	assert.Equal(t, 2, delivered)

	for _, id := range []string{admin1, admin2} {
		inbox, err := store.ListByRecipient(context.Background(), id, false)
		require.NoError(t, err)
		require.Len(t, inbox, 1)
		assert.Equal(t, id, inbox[0].RecipientID)
		assert.False(t, inbox[0].Read)
		assert.Equal(t, repository.PriorityNormal, inbox[0].Priority)
		assert.Equal(t, 1, publisher.pushes[id])
	}

	inbox, err := store.ListByRecipient(context.Background(), commercial, false)
	require.NoError(t, err)
	assert.Empty(t, inbox)
}

func TestNotifyRoleEmptyAudienceIsNotAnError(t *testing.T) {
	store := memory.NewNotificationRepository()
	d := NewDispatcher(store, memory.NewUserRepository(), nil, zerolog.Nop())

	delivered, err := d.NotifyRole(context.Background(), Input{
		Title: "Materials fully available",
		Type:  "materials_ready",
	}, repository.RoleProductionPlanner)
	require.NoError(t, err)
	assert.Zero(t, delivered)
	assert.Empty(t, store.All())
}

func TestPushFailureDoesNotFailDelivery(t *testing.T) {
	store := memory.NewNotificationRepository()
	users := memory.NewUserRepository()
	d := NewDispatcher(store, users, failingPublisher{}, zerolog.Nop())

	id := addUser(users, "Admin", repository.RoleAdmin)
	err := d.NotifyUser(context.Background(), id, Input{
		Title: "Purchase order approved",
		Type:  "purchase_order_approved",
	})
	require.NoError(t, err)

	// The record is persisted even when the real-time transport is down.
	inbox, err := store.ListByRecipient(context.Background(), id, false)
	require.NoError(t, err)
	assert.Len(t, inbox, 1)
}

func TestMarkReadFiltersUnread(t *testing.T) {
	store := memory.NewNotificationRepository()
	users := memory.NewUserRepository()
	d := NewDispatcher(store, users, nil, zerolog.Nop())
	ctx := context.Background()

	id := addUser(users, "Admin", repository.RoleAdmin)
	require.NoError(t, d.NotifyUser(ctx, id, Input{Title: "first", Type: "t"}))
	require.NoError(t, d.NotifyUser(ctx, id, Input{Title: "second", Type: "t"}))

	inbox, err := store.ListByRecipient(ctx, id, true)
	require.NoError(t, err)
	require.Len(t, inbox, 2)

	require.NoError(t, store.MarkRead(ctx, inbox[0].ID, id))

	unread, err := store.ListByRecipient(ctx, id, true)
	require.NoError(t, err)
	assert.Len(t, unread, 1)
}
