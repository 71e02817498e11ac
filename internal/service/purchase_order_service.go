package service

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"

	"github.com/ningxiarongchen-lgtm/project-ark-sub004/internal/auth"
	"github.com/ningxiarongchen-lgtm/project-ark-sub004/internal/errors"
	"github.com/ningxiarongchen-lgtm/project-ark-sub004/internal/notify"
	"github.com/ningxiarongchen-lgtm/project-ark-sub004/internal/repository"
)

// PurchaseOrderService handles purchase order business logic: creation with
// risk routing, updates that trigger the readiness cascade, and receiving.
type PurchaseOrderService struct {
	orders     PurchaseOrderStore
	suppliers  SupplierStore
	checks     QualityCheckStore
	dispatcher Notifier
	readiness  *ReadinessCascade
	threshold  decimal.Decimal
	log        zerolog.Logger
}

// NewPurchaseOrderService creates a PurchaseOrderService.
func NewPurchaseOrderService(orders PurchaseOrderStore, suppliers SupplierStore, checks QualityCheckStore, dispatcher Notifier, readiness *ReadinessCascade, threshold decimal.Decimal, log zerolog.Logger) *PurchaseOrderService {
	return &PurchaseOrderService{
		orders:     orders,
		suppliers:  suppliers,
		checks:     checks,
		dispatcher: dispatcher,
		readiness:  readiness,
		threshold:  threshold,
		log:        log,
	}
}

// PurchaseOrderLineRequest is one requested line item.
type PurchaseOrderLineRequest struct {
	MaterialName string          `json:"material_name"`
	Model        *string         `json:"model,omitempty"`
	Quantity     decimal.Decimal `json:"quantity"`
	UnitPrice    decimal.Decimal `json:"unit_price"`
}

// CreatePurchaseOrderRequest is the payload for creating a purchase order.
type CreatePurchaseOrderRequest struct {
	SupplierID    string                      `json:"supplier_id"`
	ProjectID     *string                     `json:"project_id,omitempty"`
	DeliveryTerms *string                     `json:"delivery_terms,omitempty"`
	Lines         []*PurchaseOrderLineRequest `json:"lines"`
}

// CreatePurchaseOrderResult pairs the created order with the routing echo.
type CreatePurchaseOrderResult struct {
	Order       *repository.PurchaseOrder
	RiskControl RiskControl
}

// Create validates the request, runs risk routing and persists the order in
// the routed status. The supplier classification is checked before the
// routing engine ever runs; an unknown tier fails fast.
func (s *PurchaseOrderService) Create(ctx context.Context, req *CreatePurchaseOrderRequest, actor *auth.Actor) (*CreatePurchaseOrderResult, error) {
	if req.SupplierID == "" {
		return nil, errors.InvalidInput("supplier_id", "supplier is required")
	}
	if len(req.Lines) == 0 {
		return nil, errors.InvalidInput("lines", "at least one line item is required")
	}

	supplier, err := s.suppliers.GetByID(ctx, req.SupplierID)
	if err != nil {
		return nil, err
	}
	if !supplier.Classification.Valid() {
		return nil, errors.InvalidInput("supplier_classification", fmt.Sprintf(
			"supplier %s has classification %q; only partner or temporary suppliers can receive purchase orders",
			supplier.Name, supplier.Classification))
	}

	lines, total, err := buildLines(req.Lines)
	if err != nil {
		return nil, err
	}

	decision, err := DecideRoute(supplier.Classification, total, s.threshold)
	if err != nil {
		return nil, err
	}

	order := &repository.PurchaseOrder{
		OrderNumber:   newOrderNumber("PO"),
		SupplierID:    supplier.ID,
		ProjectID:     req.ProjectID,
		Status:        decision.NextStatus,
		TotalAmount:   total,
		DeliveryTerms: req.DeliveryTerms,
		RoutingNote:   &decision.Rationale,
		CreatedBy:     actor.ID,
		Lines:         lines,
	}
	if err := s.orders.Create(ctx, order); err != nil {
		return nil, err
	}

	s.log.Info().
		Str("order_id", order.ID).
		Str("order_number", order.OrderNumber).
		Str("status", string(order.Status)).
		Str("supplier_classification", string(supplier.Classification)).
		Str("total_amount", total.String()).
		Msg("purchase order created")

	if decision.NeedsAdminApproval {
		s.notifyAdmins(ctx, order, supplier)
	}

	return &CreatePurchaseOrderResult{
		Order:       order,
		RiskControl: BuildRiskControl(supplier.Classification, total, s.threshold, decision),
	}, nil
}

// Get retrieves a purchase order.
func (s *PurchaseOrderService) Get(ctx context.Context, id string) (*repository.PurchaseOrder, error) {
	return s.orders.GetByID(ctx, id)
}

// List returns purchase orders, optionally filtered by status.
func (s *PurchaseOrderService) List(ctx context.Context, status *repository.PurchaseOrderStatus) ([]*repository.PurchaseOrder, error) {
	return s.orders.List(ctx, status)
}

// UpdateLinesRequest replaces an order's line items and delivery terms.
type UpdateLinesRequest struct {
	DeliveryTerms *string                     `json:"delivery_terms,omitempty"`
	Lines         []*PurchaseOrderLineRequest `json:"lines"`
}

// Update replaces the order's lines, then triggers the scoped readiness
// cascade in the background. The response never waits on the cascade.
func (s *PurchaseOrderService) Update(ctx context.Context, id string, req *UpdateLinesRequest) (*repository.PurchaseOrder, error) {
	if len(req.Lines) == 0 {
		return nil, errors.InvalidInput("lines", "at least one line item is required")
	}

	order, err := s.orders.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}

	lines, total, err := buildLines(req.Lines)
	if err != nil {
		return nil, err
	}
	order.Lines = lines
	order.TotalAmount = total
	if req.DeliveryTerms != nil {
		order.DeliveryTerms = req.DeliveryTerms
	}

	if err := s.orders.UpdateLines(ctx, order); err != nil {
		return nil, err
	}

	s.readiness.RunAsync(id)
	return s.orders.GetByID(ctx, id)
}

// UpdateStatus moves the order along its transition graph, then triggers the
// scoped readiness cascade. The admin-approval branch is off limits here: its
// only exits are the approval endpoints.
func (s *PurchaseOrderService) UpdateStatus(ctx context.Context, id string, next repository.PurchaseOrderStatus) (*repository.PurchaseOrder, error) {
	order, err := s.orders.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}

	if order.Status == repository.POPendingAdminApproval {
		return nil, errors.Conflict("purchase order is pending admin approval; use the admin-approve or admin-reject endpoint")
	}
	if !order.Status.CanTransitionTo(next) {
		return nil, errors.Conflict(fmt.Sprintf(
			"cannot transition purchase order from %q to %q", order.Status, next))
	}
	if next == repository.POPendingAdminApproval {
		return nil, errors.Conflict("admin approval routing is decided at creation time and cannot be entered manually")
	}

	if err := s.orders.UpdateStatus(ctx, id, next, nil); err != nil {
		return nil, err
	}

	s.log.Info().
		Str("order_id", id).
		Str("from", string(order.Status)).
		Str("to", string(next)).
		Msg("purchase order status updated")

	s.readiness.RunAsync(id)
	return s.orders.GetByID(ctx, id)
}

// Receive marks a shipped order as received and opens the incoming
// inspection. Received material counts toward availability, so the scoped
// readiness cascade runs after the status write.
func (s *PurchaseOrderService) Receive(ctx context.Context, id string, actor *auth.Actor) (*repository.PurchaseOrder, *repository.QualityCheck, error) {
	order, err := s.orders.GetByID(ctx, id)
	if err != nil {
		return nil, nil, err
	}
	if !order.Status.CanTransitionTo(repository.POReceived) {
		return nil, nil, errors.Conflict(fmt.Sprintf(
			"cannot receive purchase order in status %q", order.Status))
	}

	if err := s.orders.UpdateStatus(ctx, id, repository.POReceived, nil); err != nil {
		return nil, nil, err
	}
	s.readiness.RunAsync(id)

	check, err := s.checks.GetOpenBySource(ctx, repository.SourcePurchaseOrder, id)
	if err != nil {
		return nil, nil, err
	}
	if check == nil {
		check = &repository.QualityCheck{
			CheckType:  repository.CheckIncomingInspection,
			SourceType: repository.SourcePurchaseOrder,
			SourceID:   id,
			Status:     repository.CheckPending,
		}
		if err := s.checks.Create(ctx, check); err != nil {
			return nil, nil, err
		}
		s.log.Info().
			Str("order_id", id).
			Str("quality_check_id", check.ID).
			Msg("incoming inspection opened for received purchase order")
	}

	updated, err := s.orders.GetByID(ctx, id)
	if err != nil {
		return nil, nil, err
	}
	return updated, check, nil
}

// notifyAdmins fans the approval request out to admin users. Non-fatal.
func (s *PurchaseOrderService) notifyAdmins(ctx context.Context, order *repository.PurchaseOrder, supplier *repository.Supplier) {
	_, err := s.dispatcher.NotifyRole(ctx, notify.Input{
		Title:    "Purchase order awaiting approval",
		Message:  fmt.Sprintf("Purchase order %s (%s, supplier %s) exceeds the approval threshold and needs review.", order.OrderNumber, order.TotalAmount.String(), supplier.Name),
		Link:     "/purchase-orders/" + order.ID,
		Type:     "admin_approval_requested",
		Priority: repository.PriorityHigh,
	}, repository.RoleAdmin)
	if err != nil {
		s.log.Warn().Err(err).
			Str("order_id", order.ID).
			Msg("failed to notify admins of pending approval")
	}
}

// buildLines validates the requested lines and computes line amounts and the
// order total.
func buildLines(reqs []*PurchaseOrderLineRequest) ([]*repository.PurchaseOrderLine, decimal.Decimal, error) {
	lines := make([]*repository.PurchaseOrderLine, 0, len(reqs))
	total := decimal.Zero

	for i, req := range reqs {
		if strings.TrimSpace(req.MaterialName) == "" {
			return nil, decimal.Zero, errors.InvalidInput("material_name", fmt.Sprintf("line %d: material name is required", i+1))
		}
		if !req.Quantity.GreaterThan(decimal.Zero) {
			return nil, decimal.Zero, errors.InvalidInput("quantity", fmt.Sprintf("line %d: quantity must be positive", i+1))
		}
		if req.UnitPrice.LessThan(decimal.Zero) {
			return nil, decimal.Zero, errors.InvalidInput("unit_price", fmt.Sprintf("line %d: unit price cannot be negative", i+1))
		}

		amount := req.Quantity.Mul(req.UnitPrice)
		lines = append(lines, &repository.PurchaseOrderLine{
			LineNumber:   i + 1,
			MaterialName: strings.TrimSpace(req.MaterialName),
			Model:        req.Model,
			Quantity:     req.Quantity,
			UnitPrice:    req.UnitPrice,
			LineAmount:   amount,
		})
		total = total.Add(amount)
	}
	return lines, total, nil
}

// newOrderNumber builds a readable unique document number.
func newOrderNumber(prefix string) string {
	return fmt.Sprintf("%s-%s-%s", prefix, time.Now().Format("20060102"), strings.ToUpper(uuid.NewString()[:8]))
}
