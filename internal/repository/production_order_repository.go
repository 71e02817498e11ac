package repository

import (
	"context"
	"encoding/json"

	"github.com/jackc/pgx/v5"

	"github.com/ningxiarongchen-lgtm/project-ark-sub004/internal/database"
	"github.com/ningxiarongchen-lgtm/project-ark-sub004/internal/errors"
)

// ProductionOrderRepository handles production order data operations.
// Required materials are stored as a JSONB array on the order row.
type ProductionOrderRepository struct {
	db *database.DB
}

// NewProductionOrderRepository creates a new production order repository.
func NewProductionOrderRepository(db *database.DB) *ProductionOrderRepository {
	return &ProductionOrderRepository{db: db}
}

// Create inserts a production order.
func (r *ProductionOrderRepository) Create(ctx context.Context, order *ProductionOrder) error {
	materialsJSON, err := json.Marshal(order.RequiredMaterials)
	if err != nil {
		return errors.Wrap(err, errors.ErrCodeInternal, "failed to marshal required materials")
	}

	query := `
		INSERT INTO production_orders
		    (order_number, project_id, project_name, status, material_readiness,
		     required_materials, status_note, created_by)
		VALUES ($1, $2, $3, $4::production_order_status, $5::material_readiness, $6, $7, $8)
		RETURNING id, created_at, updated_at
	`

	err = r.db.QueryRow(ctx, query,
		order.OrderNumber,
		order.ProjectID,
		order.ProjectName,
		order.Status,
		order.MaterialReadiness,
		materialsJSON,
		order.StatusNote,
		order.CreatedBy,
	).Scan(&order.ID, &order.CreatedAt, &order.UpdatedAt)
	if err != nil {
		return errors.Wrap(err, errors.ErrCodeInternal, "failed to create production order")
	}
	return nil
}

const productionOrderColumns = `
	id, order_number, project_id, project_name, status, material_readiness,
	required_materials, status_note, created_by, created_at, updated_at
`

// GetByID retrieves a production order by primary key.
func (r *ProductionOrderRepository) GetByID(ctx context.Context, id string) (*ProductionOrder, error) {
	query := `SELECT ` + productionOrderColumns + ` FROM production_orders WHERE id = $1`

	order, err := r.scanOrder(r.db.QueryRow(ctx, query, id))
	if err == pgx.ErrNoRows {
		return nil, errors.NotFound("production_order", id)
	}
	return order, err
}

// ListOpen returns all production orders in the open status set, optionally
// restricted to those requiring at least one of the given materials. The
// material filter is evaluated in Go: the requirement list is JSONB and small.
func (r *ProductionOrderRepository) ListOpen(ctx context.Context, materials []string) ([]*ProductionOrder, error) {
	query := `
		SELECT ` + productionOrderColumns + `
		FROM production_orders
		WHERE status IN ('pending', 'scheduled', 'in_production')
		ORDER BY created_at ASC
	`

	rows, err := r.db.Query(ctx, query)
	if err != nil {
		return nil, errors.Wrap(err, errors.ErrCodeInternal, "failed to list open production orders")
	}
	defer rows.Close()

	wanted := make(map[string]struct{}, len(materials))
	for _, m := range materials {
		wanted[m] = struct{}{}
	}

	var orders []*ProductionOrder
	for rows.Next() {
		order, err := r.scanOrder(rows)
		if err != nil {
			return nil, errors.Wrap(err, errors.ErrCodeInternal, "failed to scan production order")
		}
		if len(wanted) > 0 && !requiresAny(order, wanted) {
			continue
		}
		orders = append(orders, order)
	}
	return orders, rows.Err()
}

// requiresAny reports whether the order needs at least one of the materials.
func requiresAny(order *ProductionOrder, materials map[string]struct{}) bool {
	for _, req := range order.RequiredMaterials {
		if _, ok := materials[req.MaterialName]; ok {
			return true
		}
	}
	return false
}

// List returns all production orders, newest first.
func (r *ProductionOrderRepository) List(ctx context.Context) ([]*ProductionOrder, error) {
	query := `SELECT ` + productionOrderColumns + ` FROM production_orders ORDER BY created_at DESC`

	rows, err := r.db.Query(ctx, query)
	if err != nil {
		return nil, errors.Wrap(err, errors.ErrCodeInternal, "failed to list production orders")
	}
	defer rows.Close()

	var orders []*ProductionOrder
	for rows.Next() {
		order, err := r.scanOrder(rows)
		if err != nil {
			return nil, errors.Wrap(err, errors.ErrCodeInternal, "failed to scan production order")
		}
		orders = append(orders, order)
	}
	return orders, rows.Err()
}

// UpdateReadiness persists a recomputed material readiness value.
func (r *ProductionOrderRepository) UpdateReadiness(ctx context.Context, id string, readiness MaterialReadiness) error {
	query := `
		UPDATE production_orders
		SET material_readiness = $2::material_readiness,
		    updated_at         = NOW()
		WHERE id = $1
		RETURNING id
	`

	var returnedID string
	err := r.db.QueryRow(ctx, query, id, readiness).Scan(&returnedID)
	if err == pgx.ErrNoRows {
		return errors.NotFound("production_order", id)
	}
	if err != nil {
		return errors.Wrap(err, errors.ErrCodeInternal, "failed to update material readiness")
	}
	return nil
}

// UpdateStatus sets the order status and an optional status note.
func (r *ProductionOrderRepository) UpdateStatus(ctx context.Context, id string, status ProductionOrderStatus, note *string) error {
	query := `
		UPDATE production_orders
		SET status      = $2::production_order_status,
		    status_note = COALESCE($3, status_note),
		    updated_at  = NOW()
		WHERE id = $1
		RETURNING id
	`

	var returnedID string
	err := r.db.QueryRow(ctx, query, id, status, note).Scan(&returnedID)
	if err == pgx.ErrNoRows {
		return errors.NotFound("production_order", id)
	}
	if err != nil {
		return errors.Wrap(err, errors.ErrCodeInternal, "failed to update production order status")
	}
	return nil
}

// ── scan helper ──────────────────────────────────────────────────────────────

type orderScanner interface {
	Scan(dest ...any) error
}

func (r *ProductionOrderRepository) scanOrder(row orderScanner) (*ProductionOrder, error) {
	order := &ProductionOrder{}
	var materialsJSON []byte

	err := row.Scan(
		&order.ID,
		&order.OrderNumber,
		&order.ProjectID,
		&order.ProjectName,
		&order.Status,
		&order.MaterialReadiness,
		&materialsJSON,
		&order.StatusNote,
		&order.CreatedBy,
		&order.CreatedAt,
		&order.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}

	if err := json.Unmarshal(materialsJSON, &order.RequiredMaterials); err != nil {
		return nil, errors.Wrap(err, errors.ErrCodeInternal, "failed to unmarshal required materials")
	}
	return order, nil
}
