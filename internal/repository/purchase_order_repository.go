package repository

import (
	"context"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/shopspring/decimal"

	"github.com/ningxiarongchen-lgtm/project-ark-sub004/internal/database"
	"github.com/ningxiarongchen-lgtm/project-ark-sub004/internal/errors"
)

// PurchaseOrderRepository handles purchase order data operations.
type PurchaseOrderRepository struct {
	db *database.DB
}

// NewPurchaseOrderRepository creates a new purchase order repository.
func NewPurchaseOrderRepository(db *database.DB) *PurchaseOrderRepository {
	return &PurchaseOrderRepository{db: db}
}

// Create inserts a purchase order and its lines in one transaction.
func (r *PurchaseOrderRepository) Create(ctx context.Context, order *PurchaseOrder) error {
	return r.db.InTransaction(ctx, func(tx pgx.Tx) error {
		query := `
			INSERT INTO purchase_orders
			    (order_number, supplier_id, project_id, status, total_amount,
			     delivery_terms, routing_note, created_by)
			VALUES ($1, $2, $3, $4::purchase_order_status, $5, $6, $7, $8)
			RETURNING id, created_at, updated_at
		`

		err := tx.QueryRow(ctx, query,
			order.OrderNumber,
			order.SupplierID,
			order.ProjectID,
			order.Status,
			order.TotalAmount,
			order.DeliveryTerms,
			order.RoutingNote,
			order.CreatedBy,
		).Scan(&order.ID, &order.CreatedAt, &order.UpdatedAt)
		if err != nil {
			return errors.Wrap(err, errors.ErrCodeInternal, "failed to create purchase order")
		}

		return r.insertLines(ctx, tx, order)
	})
}

// insertLines inserts the order's lines within the given transaction.
func (r *PurchaseOrderRepository) insertLines(ctx context.Context, tx pgx.Tx, order *PurchaseOrder) error {
	query := `
		INSERT INTO purchase_order_lines
		    (order_id, line_number, material_name, model, quantity, unit_price, line_amount)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		RETURNING id
	`
	for _, line := range order.Lines {
		line.OrderID = order.ID
		err := tx.QueryRow(ctx, query,
			line.OrderID,
			line.LineNumber,
			line.MaterialName,
			line.Model,
			line.Quantity,
			line.UnitPrice,
			line.LineAmount,
		).Scan(&line.ID)
		if err != nil {
			return errors.Wrap(err, errors.ErrCodeInternal, "failed to create purchase order line")
		}
	}
	return nil
}

// GetByID retrieves a purchase order with its lines.
func (r *PurchaseOrderRepository) GetByID(ctx context.Context, id string) (*PurchaseOrder, error) {
	query := `
		SELECT id, order_number, supplier_id, project_id, status, total_amount,
		       delivery_terms, routing_note, created_by,
		       approved_by, approved_at, rejected_by, rejected_reason, rejected_at,
		       created_at, updated_at
		FROM purchase_orders
		WHERE id = $1
	`

	order := &PurchaseOrder{}
	err := r.db.QueryRow(ctx, query, id).Scan(
		&order.ID,
		&order.OrderNumber,
		&order.SupplierID,
		&order.ProjectID,
		&order.Status,
		&order.TotalAmount,
		&order.DeliveryTerms,
		&order.RoutingNote,
		&order.CreatedBy,
		&order.ApprovedBy,
		&order.ApprovedAt,
		&order.RejectedBy,
		&order.RejectedReason,
		&order.RejectedAt,
		&order.CreatedAt,
		&order.UpdatedAt,
	)
	if err == pgx.ErrNoRows {
		return nil, errors.NotFound("purchase_order", id)
	}
	if err != nil {
		return nil, errors.Wrap(err, errors.ErrCodeInternal, "failed to get purchase order")
	}

	order.Lines, err = r.getLines(ctx, id)
	if err != nil {
		return nil, err
	}
	return order, nil
}

// getLines loads the lines of one order in line-number order.
func (r *PurchaseOrderRepository) getLines(ctx context.Context, orderID string) ([]*PurchaseOrderLine, error) {
	query := `
		SELECT id, order_id, line_number, material_name, model, quantity, unit_price, line_amount
		FROM purchase_order_lines
		WHERE order_id = $1
		ORDER BY line_number ASC
	`

	rows, err := r.db.Query(ctx, query, orderID)
	if err != nil {
		return nil, errors.Wrap(err, errors.ErrCodeInternal, "failed to load purchase order lines")
	}
	defer rows.Close()

	var lines []*PurchaseOrderLine
	for rows.Next() {
		line := &PurchaseOrderLine{}
		err := rows.Scan(
			&line.ID,
			&line.OrderID,
			&line.LineNumber,
			&line.MaterialName,
			&line.Model,
			&line.Quantity,
			&line.UnitPrice,
			&line.LineAmount,
		)
		if err != nil {
			return nil, errors.Wrap(err, errors.ErrCodeInternal, "failed to scan purchase order line")
		}
		lines = append(lines, line)
	}
	return lines, rows.Err()
}

// List returns purchase orders, optionally filtered by status, newest first.
func (r *PurchaseOrderRepository) List(ctx context.Context, status *PurchaseOrderStatus) ([]*PurchaseOrder, error) {
	query := `
		SELECT id, order_number, supplier_id, project_id, status, total_amount,
		       delivery_terms, routing_note, created_by,
		       approved_by, approved_at, rejected_by, rejected_reason, rejected_at,
		       created_at, updated_at
		FROM purchase_orders
	`
	args := []any{}
	if status != nil {
		query += " WHERE status = $1::purchase_order_status"
		args = append(args, *status)
	}
	query += " ORDER BY created_at DESC"

	rows, err := r.db.Query(ctx, query, args...)
	if err != nil {
		return nil, errors.Wrap(err, errors.ErrCodeInternal, "failed to list purchase orders")
	}
	defer rows.Close()

	var orders []*PurchaseOrder
	for rows.Next() {
		order := &PurchaseOrder{}
		err := rows.Scan(
			&order.ID,
			&order.OrderNumber,
			&order.SupplierID,
			&order.ProjectID,
			&order.Status,
			&order.TotalAmount,
			&order.DeliveryTerms,
			&order.RoutingNote,
			&order.CreatedBy,
			&order.ApprovedBy,
			&order.ApprovedAt,
			&order.RejectedBy,
			&order.RejectedReason,
			&order.RejectedAt,
			&order.CreatedAt,
			&order.UpdatedAt,
		)
		if err != nil {
			return nil, errors.Wrap(err, errors.ErrCodeInternal, "failed to scan purchase order")
		}
		orders = append(orders, order)
	}
	return orders, rows.Err()
}

// UpdateLines replaces the editable fields and lines of an order in one transaction.
func (r *PurchaseOrderRepository) UpdateLines(ctx context.Context, order *PurchaseOrder) error {
	return r.db.InTransaction(ctx, func(tx pgx.Tx) error {
		query := `
			UPDATE purchase_orders
			SET total_amount   = $2,
			    delivery_terms = $3,
			    updated_at     = NOW()
			WHERE id = $1
			RETURNING updated_at
		`
		err := tx.QueryRow(ctx, query, order.ID, order.TotalAmount, order.DeliveryTerms).Scan(&order.UpdatedAt)
		if err == pgx.ErrNoRows {
			return errors.NotFound("purchase_order", order.ID)
		}
		if err != nil {
			return errors.Wrap(err, errors.ErrCodeInternal, "failed to update purchase order")
		}

		if _, err := tx.Exec(ctx, `DELETE FROM purchase_order_lines WHERE order_id = $1`, order.ID); err != nil {
			return errors.Wrap(err, errors.ErrCodeInternal, "failed to replace purchase order lines")
		}
		return r.insertLines(ctx, tx, order)
	})
}

// UpdateStatus sets the order status and an optional routing note.
func (r *PurchaseOrderRepository) UpdateStatus(ctx context.Context, id string, status PurchaseOrderStatus, note *string) error {
	query := `
		UPDATE purchase_orders
		SET status       = $2::purchase_order_status,
		    routing_note = COALESCE($3, routing_note),
		    updated_at   = NOW()
		WHERE id = $1
		RETURNING id
	`

	var returnedID string
	err := r.db.QueryRow(ctx, query, id, status, note).Scan(&returnedID)
	if err == pgx.ErrNoRows {
		return errors.NotFound("purchase_order", id)
	}
	if err != nil {
		return errors.Wrap(err, errors.ErrCodeInternal, "failed to update purchase order status")
	}
	return nil
}

// Approve moves an order out of pending_admin_approval and stamps the audit
// fields. The status check is part of the UPDATE so the transition is atomic;
// zero rows means the order was not in the expected state (or does not exist).
func (r *PurchaseOrderRepository) Approve(ctx context.Context, id, approvedBy string, approvedAt time.Time) error {
	query := `
		UPDATE purchase_orders
		SET status      = $2::purchase_order_status,
		    approved_by = $3,
		    approved_at = $4,
		    updated_at  = NOW()
		WHERE id = $1 AND status = $5::purchase_order_status
		RETURNING id
	`

	var returnedID string
	err := r.db.QueryRow(ctx, query, id, POPendingContractDraft, approvedBy, approvedAt, POPendingAdminApproval).Scan(&returnedID)
	if err == pgx.ErrNoRows {
		return errors.Conflict("purchase order is not pending admin approval")
	}
	if err != nil {
		return errors.Wrap(err, errors.ErrCodeInternal, "failed to approve purchase order")
	}
	return nil
}

// Reject moves an order out of pending_admin_approval into rejected and stamps
// the audit fields. Same atomicity contract as Approve.
func (r *PurchaseOrderRepository) Reject(ctx context.Context, id, rejectedBy, reason string, rejectedAt time.Time) error {
	query := `
		UPDATE purchase_orders
		SET status          = $2::purchase_order_status,
		    rejected_by     = $3,
		    rejected_reason = $4,
		    rejected_at     = $5,
		    updated_at      = NOW()
		WHERE id = $1 AND status = $6::purchase_order_status
		RETURNING id
	`

	var returnedID string
	err := r.db.QueryRow(ctx, query, id, PORejected, rejectedBy, reason, rejectedAt, POPendingAdminApproval).Scan(&returnedID)
	if err == pgx.ErrNoRows {
		return errors.Conflict("purchase order is not pending admin approval")
	}
	if err != nil {
		return errors.Wrap(err, errors.ErrCodeInternal, "failed to reject purchase order")
	}
	return nil
}

// AvailableQuantities sums line quantities per material across purchase orders
// whose status makes the material usable (received or inspection passed).
// When materials is non-empty, the result is restricted to those names.
func (r *PurchaseOrderRepository) AvailableQuantities(ctx context.Context, materials []string) (map[string]decimal.Decimal, error) {
	query := `
		SELECT l.material_name, COALESCE(SUM(l.quantity), 0)
		FROM purchase_order_lines l
		JOIN purchase_orders o ON o.id = l.order_id
		WHERE o.status IN ('received', 'inspection_passed')
	`
	args := []any{}
	if len(materials) > 0 {
		query += " AND l.material_name = ANY($1)"
		args = append(args, materials)
	}
	query += " GROUP BY l.material_name"

	rows, err := r.db.Query(ctx, query, args...)
	if err != nil {
		return nil, errors.Wrap(err, errors.ErrCodeInternal, "failed to sum available material quantities")
	}
	defer rows.Close()

	quantities := make(map[string]decimal.Decimal)
	for rows.Next() {
		var name string
		var qty decimal.Decimal
		if err := rows.Scan(&name, &qty); err != nil {
			return nil, errors.Wrap(err, errors.ErrCodeInternal, "failed to scan material quantity")
		}
		quantities[name] = qty
	}
	return quantities, rows.Err()
}
