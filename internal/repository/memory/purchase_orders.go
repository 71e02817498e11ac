// Package memory provides in-memory repository implementations used by
// service tests and local development. They mirror the behavior of the
// Postgres repositories, including the conditional-update semantics the
// approval transitions rely on.
package memory

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/ningxiarongchen-lgtm/project-ark-sub004/internal/errors"
	"github.com/ningxiarongchen-lgtm/project-ark-sub004/internal/repository"
)

// PurchaseOrderRepository is an in-memory PurchaseOrderStore.
type PurchaseOrderRepository struct {
	mu     sync.RWMutex
	orders map[string]*repository.PurchaseOrder
}

// NewPurchaseOrderRepository creates an empty in-memory store.
func NewPurchaseOrderRepository() *PurchaseOrderRepository {
	return &PurchaseOrderRepository{orders: make(map[string]*repository.PurchaseOrder)}
}

// Create stores the order, assigning id and timestamps.
func (r *PurchaseOrderRepository) Create(_ context.Context, order *repository.PurchaseOrder) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	order.ID = uuid.NewString()
	now := time.Now()
	order.CreatedAt = now
	order.UpdatedAt = now
	for _, line := range order.Lines {
		line.ID = uuid.NewString()
		line.OrderID = order.ID
	}
	r.orders[order.ID] = clonePurchaseOrder(order)
	return nil
}

// GetByID returns a copy of the stored order.
func (r *PurchaseOrderRepository) GetByID(_ context.Context, id string) (*repository.PurchaseOrder, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	order, ok := r.orders[id]
	if !ok {
		return nil, errors.NotFound("purchase_order", id)
	}
	return clonePurchaseOrder(order), nil
}

// List returns orders, optionally filtered by status, newest first.
func (r *PurchaseOrderRepository) List(_ context.Context, status *repository.PurchaseOrderStatus) ([]*repository.PurchaseOrder, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var out []*repository.PurchaseOrder
	for _, order := range r.orders {
		if status != nil && order.Status != *status {
			continue
		}
		out = append(out, clonePurchaseOrder(order))
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	return out, nil
}

// UpdateLines replaces the editable fields and lines of an order.
func (r *PurchaseOrderRepository) UpdateLines(_ context.Context, order *repository.PurchaseOrder) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	stored, ok := r.orders[order.ID]
	if !ok {
		return errors.NotFound("purchase_order", order.ID)
	}
	stored.TotalAmount = order.TotalAmount
	stored.DeliveryTerms = order.DeliveryTerms
	stored.Lines = nil
	for _, line := range order.Lines {
		c := *line
		if c.ID == "" {
			c.ID = uuid.NewString()
		}
		c.OrderID = order.ID
		stored.Lines = append(stored.Lines, &c)
	}
	stored.UpdatedAt = time.Now()
	return nil
}

// UpdateStatus sets the status and an optional routing note.
func (r *PurchaseOrderRepository) UpdateStatus(_ context.Context, id string, status repository.PurchaseOrderStatus, note *string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	order, ok := r.orders[id]
	if !ok {
		return errors.NotFound("purchase_order", id)
	}
	order.Status = status
	if note != nil {
		order.RoutingNote = note
	}
	order.UpdatedAt = time.Now()
	return nil
}

// Approve applies the admin approval transition; conditional on the order
// still being pending admin approval, matching the SQL implementation.
func (r *PurchaseOrderRepository) Approve(_ context.Context, id, approvedBy string, approvedAt time.Time) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	order, ok := r.orders[id]
	if !ok || order.Status != repository.POPendingAdminApproval {
		return errors.Conflict("purchase order is not pending admin approval")
	}
	order.Status = repository.POPendingContractDraft
	order.ApprovedBy = &approvedBy
	order.ApprovedAt = &approvedAt
	order.UpdatedAt = time.Now()
	return nil
}

// Reject applies the admin rejection transition with the same guard.
func (r *PurchaseOrderRepository) Reject(_ context.Context, id, rejectedBy, reason string, rejectedAt time.Time) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	order, ok := r.orders[id]
	if !ok || order.Status != repository.POPendingAdminApproval {
		return errors.Conflict("purchase order is not pending admin approval")
	}
	order.Status = repository.PORejected
	order.RejectedBy = &rejectedBy
	order.RejectedReason = &reason
	order.RejectedAt = &rejectedAt
	order.UpdatedAt = time.Now()
	return nil
}

// AvailableQuantities sums line quantities per material across orders whose
// material is usable (received or inspection passed).
func (r *PurchaseOrderRepository) AvailableQuantities(_ context.Context, materials []string) (map[string]decimal.Decimal, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	wanted := make(map[string]struct{}, len(materials))
	for _, m := range materials {
		wanted[m] = struct{}{}
	}

	quantities := make(map[string]decimal.Decimal)
	for _, order := range r.orders {
		if order.Status != repository.POReceived && order.Status != repository.POInspectionPassed {
			continue
		}
		for _, line := range order.Lines {
			if len(wanted) > 0 {
				if _, ok := wanted[line.MaterialName]; !ok {
					continue
				}
			}
			quantities[line.MaterialName] = quantities[line.MaterialName].Add(line.Quantity)
		}
	}
	return quantities, nil
}

func clonePurchaseOrder(order *repository.PurchaseOrder) *repository.PurchaseOrder {
	c := *order
	c.Lines = make([]*repository.PurchaseOrderLine, len(order.Lines))
	for i, line := range order.Lines {
		l := *line
		c.Lines[i] = &l
	}
	return &c
}
