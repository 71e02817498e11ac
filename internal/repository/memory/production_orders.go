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

// ProductionOrderRepository is an in-memory ProductionOrderStore.
type ProductionOrderRepository struct {
	mu     sync.RWMutex
	orders map[string]*repository.ProductionOrder
}

// NewProductionOrderRepository creates an empty in-memory store.
func NewProductionOrderRepository() *ProductionOrderRepository {
	return &ProductionOrderRepository{orders: make(map[string]*repository.ProductionOrder)}
}

// Create stores the order, assigning id and timestamps.
func (r *ProductionOrderRepository) Create(_ context.Context, order *repository.ProductionOrder) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	order.ID = uuid.NewString()
	now := time.Now()
	order.CreatedAt = now
	order.UpdatedAt = now
	r.orders[order.ID] = cloneProductionOrder(order)
	return nil
}

// GetByID returns a copy of the stored order.
func (r *ProductionOrderRepository) GetByID(_ context.Context, id string) (*repository.ProductionOrder, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	order, ok := r.orders[id]
	if !ok {
		return nil, errors.NotFound("production_order", id)
	}
	return cloneProductionOrder(order), nil
}

// List returns all orders, newest first.
func (r *ProductionOrderRepository) List(_ context.Context) ([]*repository.ProductionOrder, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var out []*repository.ProductionOrder
	for _, order := range r.orders {
		out = append(out, cloneProductionOrder(order))
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	return out, nil
}

// ListOpen returns open orders, optionally filtered to those requiring any of
// the given materials, oldest first to match the scan order of the SQL store.
func (r *ProductionOrderRepository) ListOpen(_ context.Context, materials []string) ([]*repository.ProductionOrder, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	wanted := make(map[string]struct{}, len(materials))
	for _, m := range materials {
		wanted[m] = struct{}{}
	}

	var out []*repository.ProductionOrder
	for _, order := range r.orders {
		if !isOpen(order.Status) {
			continue
		}
		if len(wanted) > 0 && !requiresAny(order, wanted) {
			continue
		}
		out = append(out, cloneProductionOrder(order))
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.Before(out[j].CreatedAt) })
	return out, nil
}

// UpdateReadiness persists a recomputed readiness value.
func (r *ProductionOrderRepository) UpdateReadiness(_ context.Context, id string, readiness repository.MaterialReadiness) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	order, ok := r.orders[id]
	if !ok {
		return errors.NotFound("production_order", id)
	}
	order.MaterialReadiness = readiness
	order.UpdatedAt = time.Now()
	return nil
}

// UpdateStatus sets the status and an optional note.
func (r *ProductionOrderRepository) UpdateStatus(_ context.Context, id string, status repository.ProductionOrderStatus, note *string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	order, ok := r.orders[id]
	if !ok {
		return errors.NotFound("production_order", id)
	}
	order.Status = status
	if note != nil {
		order.StatusNote = note
	}
	order.UpdatedAt = time.Now()
	return nil
}

func isOpen(status repository.ProductionOrderStatus) bool {
	for _, open := range repository.OpenProductionStatuses {
		if status == open {
			return true
		}
	}
	return false
}

func requiresAny(order *repository.ProductionOrder, materials map[string]struct{}) bool {
	for _, req := range order.RequiredMaterials {
		if _, ok := materials[req.MaterialName]; ok {
			return true
		}
	}
	return false
}

func cloneProductionOrder(order *repository.ProductionOrder) *repository.ProductionOrder {
	c := *order
	c.RequiredMaterials = append([]repository.RequiredMaterial(nil), order.RequiredMaterials...)
	return &c
}
