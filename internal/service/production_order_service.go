package service

import (
	"context"
	"fmt"
	"strings"

	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"

	"github.com/ningxiarongchen-lgtm/project-ark-sub004/internal/auth"
	"github.com/ningxiarongchen-lgtm/project-ark-sub004/internal/errors"
	"github.com/ningxiarongchen-lgtm/project-ark-sub004/internal/repository"
)

// ProductionOrderService handles production order creation and the
// production-completion event that opens the final product inspection.
type ProductionOrderService struct {
	orders ProductionOrderStore
	checks QualityCheckStore
	log    zerolog.Logger
}

// NewProductionOrderService creates a ProductionOrderService.
func NewProductionOrderService(orders ProductionOrderStore, checks QualityCheckStore, log zerolog.Logger) *ProductionOrderService {
	return &ProductionOrderService{orders: orders, checks: checks, log: log}
}

// CreateProductionOrderRequest is the payload for creating a production order.
type CreateProductionOrderRequest struct {
	ProjectID         *string                       `json:"project_id,omitempty"`
	ProjectName       string                        `json:"project_name"`
	RequiredMaterials []repository.RequiredMaterial `json:"required_materials"`
}

// Create validates and persists a production order in pending status with no
// material availability. Readiness is derived later by the cascade, never set
// directly.
func (s *ProductionOrderService) Create(ctx context.Context, req *CreateProductionOrderRequest, actor *auth.Actor) (*repository.ProductionOrder, error) {
	if strings.TrimSpace(req.ProjectName) == "" {
		return nil, errors.InvalidInput("project_name", "project name is required")
	}
	for i, req := range req.RequiredMaterials {
		if strings.TrimSpace(req.MaterialName) == "" {
			return nil, errors.InvalidInput("material_name", fmt.Sprintf("required material %d: name is required", i+1))
		}
		if !req.Quantity.GreaterThan(decimal.Zero) {
			return nil, errors.InvalidInput("quantity", fmt.Sprintf("required material %d: quantity must be positive", i+1))
		}
	}

	order := &repository.ProductionOrder{
		OrderNumber:       newOrderNumber("MO"),
		ProjectID:         req.ProjectID,
		ProjectName:       strings.TrimSpace(req.ProjectName),
		Status:            repository.ProdPending,
		MaterialReadiness: repository.ReadinessNone,
		RequiredMaterials: req.RequiredMaterials,
		CreatedBy:         actor.ID,
	}
	if err := s.orders.Create(ctx, order); err != nil {
		return nil, err
	}

	s.log.Info().
		Str("order_id", order.ID).
		Str("order_number", order.OrderNumber).
		Str("project_name", order.ProjectName).
		Msg("production order created")

	return order, nil
}

// Get retrieves a production order.
func (s *ProductionOrderService) Get(ctx context.Context, id string) (*repository.ProductionOrder, error) {
	return s.orders.GetByID(ctx, id)
}

// List returns all production orders.
func (s *ProductionOrderService) List(ctx context.Context) ([]*repository.ProductionOrder, error) {
	return s.orders.List(ctx)
}

// UpdateStatus moves the order along its transition graph. The inspection
// outcome statuses belong to the quality gate and cannot be entered manually.
func (s *ProductionOrderService) UpdateStatus(ctx context.Context, id string, next repository.ProductionOrderStatus) (*repository.ProductionOrder, error) {
	order, err := s.orders.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}

	if next == repository.ProdAwaitingFinalPayment || next == repository.ProdFailedFinalInspection {
		return nil, errors.Conflict(fmt.Sprintf(
			"status %q is set by the final inspection verdict and cannot be entered manually", next))
	}
	if !order.Status.CanTransitionTo(next) {
		return nil, errors.Conflict(fmt.Sprintf(
			"cannot transition production order from %q to %q", order.Status, next))
	}

	if err := s.orders.UpdateStatus(ctx, id, next, nil); err != nil {
		return nil, err
	}

	s.log.Info().
		Str("order_id", id).
		Str("from", string(order.Status)).
		Str("to", string(next)).
		Msg("production order status updated")

	return s.orders.GetByID(ctx, id)
}

// FinishProduction records the production-completion event for an order in
// production and opens the final product inspection. The order status only
// advances once the inspection verdict comes back through the quality gate.
func (s *ProductionOrderService) FinishProduction(ctx context.Context, id string, actor *auth.Actor) (*repository.QualityCheck, error) {
	order, err := s.orders.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if order.Status != repository.ProdInProduction {
		return nil, errors.Conflict(fmt.Sprintf(
			"production order is %q; only orders in production can finish", order.Status))
	}

	check, err := s.checks.GetOpenBySource(ctx, repository.SourceProductionOrder, id)
	if err != nil {
		return nil, err
	}
	if check != nil {
		return check, nil
	}

	check = &repository.QualityCheck{
		CheckType:  repository.CheckFinalProduct,
		SourceType: repository.SourceProductionOrder,
		SourceID:   id,
		Status:     repository.CheckPending,
	}
	if err := s.checks.Create(ctx, check); err != nil {
		return nil, err
	}

	s.log.Info().
		Str("production_order_id", id).
		Str("quality_check_id", check.ID).
		Msg("final product inspection opened")

	return check, nil
}
