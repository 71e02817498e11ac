package memory

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/ningxiarongchen-lgtm/project-ark-sub004/internal/errors"
	"github.com/ningxiarongchen-lgtm/project-ark-sub004/internal/repository"
)

// SupplierRepository is an in-memory SupplierStore.
type SupplierRepository struct {
	mu        sync.RWMutex
	suppliers map[string]*repository.Supplier
}

// NewSupplierRepository creates an empty in-memory store.
func NewSupplierRepository() *SupplierRepository {
	return &SupplierRepository{suppliers: make(map[string]*repository.Supplier)}
}

// Create stores the supplier, assigning id and timestamps.
func (r *SupplierRepository) Create(_ context.Context, supplier *repository.Supplier) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	supplier.ID = uuid.NewString()
	now := time.Now()
	supplier.CreatedAt = now
	supplier.UpdatedAt = now
	c := *supplier
	r.suppliers[supplier.ID] = &c
	return nil
}

// GetByID returns a copy of the stored supplier.
func (r *SupplierRepository) GetByID(_ context.Context, id string) (*repository.Supplier, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	supplier, ok := r.suppliers[id]
	if !ok {
		return nil, errors.NotFound("supplier", id)
	}
	c := *supplier
	return &c, nil
}

// List returns all suppliers ordered by name.
func (r *SupplierRepository) List(_ context.Context) ([]*repository.Supplier, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var out []*repository.Supplier
	for _, supplier := range r.suppliers {
		c := *supplier
		out = append(out, &c)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out, nil
}

// UserRepository is an in-memory user directory.
type UserRepository struct {
	mu    sync.RWMutex
	users map[string]*repository.User
}

// NewUserRepository creates an empty in-memory directory.
func NewUserRepository() *UserRepository {
	return &UserRepository{users: make(map[string]*repository.User)}
}

// Add seeds a user.
func (r *UserRepository) Add(user *repository.User) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if user.ID == "" {
		user.ID = uuid.NewString()
	}
	c := *user
	c.Roles = append([]string(nil), user.Roles...)
	r.users[user.ID] = &c
}

// GetByID returns a copy of the stored user.
func (r *UserRepository) GetByID(_ context.Context, id string) (*repository.User, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	user, ok := r.users[id]
	if !ok {
		return nil, errors.NotFound("user", id)
	}
	c := *user
	c.Roles = append([]string(nil), user.Roles...)
	return &c, nil
}

// ListByRoles returns IDs of users holding any of the given roles.
func (r *UserRepository) ListByRoles(_ context.Context, roles ...string) ([]string, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	wanted := make(map[string]struct{}, len(roles))
	for _, role := range roles {
		wanted[role] = struct{}{}
	}

	var ids []string
	for _, user := range r.users {
		for _, role := range user.Roles {
			if _, ok := wanted[role]; ok {
				ids = append(ids, user.ID)
				break
			}
		}
	}
	sort.Strings(ids)
	return ids, nil
}

// NotificationRepository is an in-memory NotificationStore.
type NotificationRepository struct {
	mu            sync.RWMutex
	notifications []*repository.Notification
}

// NewNotificationRepository creates an empty in-memory store.
func NewNotificationRepository() *NotificationRepository {
	return &NotificationRepository{}
}

// Create stores one notification record.
func (r *NotificationRepository) Create(_ context.Context, n *repository.Notification) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	n.ID = uuid.NewString()
	n.CreatedAt = time.Now()
	c := *n
	r.notifications = append(r.notifications, &c)
	return nil
}

// ListByRecipient returns a user's notifications, newest first.
func (r *NotificationRepository) ListByRecipient(_ context.Context, recipientID string, unreadOnly bool) ([]*repository.Notification, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var out []*repository.Notification
	for _, n := range r.notifications {
		if n.RecipientID != recipientID {
			continue
		}
		if unreadOnly && n.Read {
			continue
		}
		c := *n
		out = append(out, &c)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	return out, nil
}

// MarkRead flags one notification as read for its recipient.
func (r *NotificationRepository) MarkRead(_ context.Context, id, recipientID string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	for _, n := range r.notifications {
		if n.ID == id && n.RecipientID == recipientID {
			n.Read = true
			return nil
		}
	}
	return errors.NotFound("notification", id)
}

// All returns every stored notification. Test helper.
func (r *NotificationRepository) All() []*repository.Notification {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]*repository.Notification, 0, len(r.notifications))
	for _, n := range r.notifications {
		c := *n
		out = append(out, &c)
	}
	return out
}
