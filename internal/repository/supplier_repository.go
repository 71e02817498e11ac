package repository

import (
	"context"

	"github.com/jackc/pgx/v5"

	"github.com/ningxiarongchen-lgtm/project-ark-sub004/internal/database"
	"github.com/ningxiarongchen-lgtm/project-ark-sub004/internal/errors"
)

// SupplierRepository handles supplier data operations.
type SupplierRepository struct {
	db *database.DB
}

// NewSupplierRepository creates a new supplier repository.
func NewSupplierRepository(db *database.DB) *SupplierRepository {
	return &SupplierRepository{db: db}
}

// Create inserts a supplier.
func (r *SupplierRepository) Create(ctx context.Context, supplier *Supplier) error {
	query := `
		INSERT INTO suppliers (name, classification, contact_name, contact_phone)
		VALUES ($1, $2, $3, $4)
		RETURNING id, created_at, updated_at
	`

	err := r.db.QueryRow(ctx, query,
		supplier.Name,
		supplier.Classification,
		supplier.ContactName,
		supplier.ContactPhone,
	).Scan(&supplier.ID, &supplier.CreatedAt, &supplier.UpdatedAt)
	if err != nil {
		return errors.Wrap(err, errors.ErrCodeInternal, "failed to create supplier")
	}
	return nil
}

// GetByID retrieves a supplier by primary key.
func (r *SupplierRepository) GetByID(ctx context.Context, id string) (*Supplier, error) {
	query := `
		SELECT id, name, classification, contact_name, contact_phone, created_at, updated_at
		FROM suppliers
		WHERE id = $1
	`

	supplier := &Supplier{}
	err := r.db.QueryRow(ctx, query, id).Scan(
		&supplier.ID,
		&supplier.Name,
		&supplier.Classification,
		&supplier.ContactName,
		&supplier.ContactPhone,
		&supplier.CreatedAt,
		&supplier.UpdatedAt,
	)
	if err == pgx.ErrNoRows {
		return nil, errors.NotFound("supplier", id)
	}
	if err != nil {
		return nil, errors.Wrap(err, errors.ErrCodeInternal, "failed to get supplier")
	}
	return supplier, nil
}

// List returns all suppliers ordered by name.
func (r *SupplierRepository) List(ctx context.Context) ([]*Supplier, error) {
	query := `
		SELECT id, name, classification, contact_name, contact_phone, created_at, updated_at
		FROM suppliers
		ORDER BY name ASC
	`

	rows, err := r.db.Query(ctx, query)
	if err != nil {
		return nil, errors.Wrap(err, errors.ErrCodeInternal, "failed to list suppliers")
	}
	defer rows.Close()

	var suppliers []*Supplier
	for rows.Next() {
		supplier := &Supplier{}
		err := rows.Scan(
			&supplier.ID,
			&supplier.Name,
			&supplier.Classification,
			&supplier.ContactName,
			&supplier.ContactPhone,
			&supplier.CreatedAt,
			&supplier.UpdatedAt,
		)
		if err != nil {
			return nil, errors.Wrap(err, errors.ErrCodeInternal, "failed to scan supplier")
		}
		suppliers = append(suppliers, supplier)
	}
	return suppliers, rows.Err()
}
