package repository

import (
	"context"

	"github.com/jackc/pgx/v5"

	"github.com/ningxiarongchen-lgtm/project-ark-sub004/internal/database"
	"github.com/ningxiarongchen-lgtm/project-ark-sub004/internal/errors"
)

// UserRepository resolves users and role audiences. User management itself is
// owned elsewhere; the workflow core only reads.
type UserRepository struct {
	db *database.DB
}

// NewUserRepository creates a new user repository.
func NewUserRepository(db *database.DB) *UserRepository {
	return &UserRepository{db: db}
}

// GetByID retrieves a user by primary key.
func (r *UserRepository) GetByID(ctx context.Context, id string) (*User, error) {
	query := `SELECT id, name, roles, created_at FROM users WHERE id = $1`

	user := &User{}
	err := r.db.QueryRow(ctx, query, id).Scan(&user.ID, &user.Name, &user.Roles, &user.CreatedAt)
	if err == pgx.ErrNoRows {
		return nil, errors.NotFound("user", id)
	}
	if err != nil {
		return nil, errors.Wrap(err, errors.ErrCodeInternal, "failed to get user")
	}
	return user, nil
}

// ListByRoles returns the IDs of all users holding any of the given roles.
func (r *UserRepository) ListByRoles(ctx context.Context, roles ...string) ([]string, error) {
	query := `SELECT id FROM users WHERE roles && $1 ORDER BY id`

	rows, err := r.db.Query(ctx, query, roles)
	if err != nil {
		return nil, errors.Wrap(err, errors.ErrCodeInternal, "failed to list users by role")
	}
	defer rows.Close()

	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, errors.Wrap(err, errors.ErrCodeInternal, "failed to scan user id")
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}
