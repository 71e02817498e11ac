package service

import (
	"context"
	"fmt"
	"sync"

	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
	"golang.org/x/sync/errgroup"

	"github.com/ningxiarongchen-lgtm/project-ark-sub004/internal/errors"
	"github.com/ningxiarongchen-lgtm/project-ark-sub004/internal/notify"
	"github.com/ningxiarongchen-lgtm/project-ark-sub004/internal/repository"
)

// Outcome reports the per-document results of one cascade run. It is consumed
// by the async runner for operational visibility and never surfaced to the
// request that triggered the cascade.
type Outcome struct {
	Succeeded []string
	Failed    []Failure
}

// Failure pairs a document id with the error that stopped its recomputation.
type Failure struct {
	OrderID string
	Err     error
}

// ReadinessCascade recomputes material readiness across open production
// orders after purchase order mutations.
//
// Scoped runs (a purchase order id) touch only open production orders whose
// required materials intersect that order's lines; global runs touch all open
// production orders. Recomputation is idempotent: unchanged inputs yield the
// same readiness and no notification.
type ReadinessCascade struct {
	purchaseOrders   PurchaseOrderStore
	productionOrders ProductionOrderStore
	dispatcher       Notifier
	concurrency      int
	log              zerolog.Logger
}

// NewReadinessCascade creates a ReadinessCascade. concurrency bounds the
// per-order fan-out; values below 1 are clamped to 1.
func NewReadinessCascade(purchaseOrders PurchaseOrderStore, productionOrders ProductionOrderStore, dispatcher Notifier, concurrency int, log zerolog.Logger) *ReadinessCascade {
	if concurrency < 1 {
		concurrency = 1
	}
	return &ReadinessCascade{
		purchaseOrders:   purchaseOrders,
		productionOrders: productionOrders,
		dispatcher:       dispatcher,
		concurrency:      concurrency,
		log:              log,
	}
}

// RunAsync dispatches a cascade run decoupled from the caller's request.
// There is no cancellation: a running scan completes to exhaustion.
func (c *ReadinessCascade) RunAsync(purchaseOrderID string) {
	go func() {
		outcome := c.Run(context.Background(), purchaseOrderID)
		c.logOutcome(purchaseOrderID, outcome)
	}()
}

// Run executes one cascade sweep. purchaseOrderID selects the scoped mode;
// an empty id runs the global scan. A failure on one production order never
// aborts the others.
func (c *ReadinessCascade) Run(ctx context.Context, purchaseOrderID string) Outcome {
	var materials []string
	if purchaseOrderID != "" {
		order, err := c.purchaseOrders.GetByID(ctx, purchaseOrderID)
		if err != nil {
			return Outcome{Failed: []Failure{{OrderID: purchaseOrderID, Err: err}}}
		}
		for _, line := range order.Lines {
			materials = append(materials, line.MaterialName)
		}
		if len(materials) == 0 {
			return Outcome{}
		}
	}

	orders, err := c.productionOrders.ListOpen(ctx, materials)
	if err != nil {
		return Outcome{Failed: []Failure{{OrderID: purchaseOrderID, Err: err}}}
	}
	if len(orders) == 0 {
		return Outcome{}
	}

	// One availability snapshot per run covering every required material in
	// the selected set. Each order is still re-read before its own write.
	required := make(map[string]struct{})
	for _, order := range orders {
		for _, req := range order.RequiredMaterials {
			required[req.MaterialName] = struct{}{}
		}
	}
	names := make([]string, 0, len(required))
	for name := range required {
		names = append(names, name)
	}

	available, err := c.purchaseOrders.AvailableQuantities(ctx, names)
	if err != nil {
		return Outcome{Failed: []Failure{{OrderID: purchaseOrderID, Err: err}}}
	}

	var (
		mu      sync.Mutex
		outcome Outcome
	)

	g := &errgroup.Group{}
	g.SetLimit(c.concurrency)
	for _, order := range orders {
		id := order.ID
		g.Go(func() error {
			err := c.recomputeOne(ctx, id, available)
			mu.Lock()
			defer mu.Unlock()
			if err != nil {
				outcome.Failed = append(outcome.Failed, Failure{OrderID: id, Err: err})
			} else {
				outcome.Succeeded = append(outcome.Succeeded, id)
			}
			return nil
		})
	}
	_ = g.Wait()

	return outcome
}

// recomputeOne is the per-document unit of atomicity: re-read, recompute,
// persist only on change, and notify only on a transition into full
// availability.
func (c *ReadinessCascade) recomputeOne(ctx context.Context, orderID string, available map[string]decimal.Decimal) error {
	order, err := c.productionOrders.GetByID(ctx, orderID)
	if errors.IsNotFound(err) {
		// Gone since the listing; nothing to recompute.
		return nil
	}
	if err != nil {
		return err
	}

	previous := order.MaterialReadiness
	next := ComputeReadiness(order.RequiredMaterials, available)
	if next == previous {
		return nil
	}

	if err := c.productionOrders.UpdateReadiness(ctx, orderID, next); err != nil {
		return err
	}

	c.log.Info().
		Str("production_order_id", orderID).
		Str("previous", string(previous)).
		Str("readiness", string(next)).
		Msg("material readiness changed")

	if next == repository.ReadinessFull {
		c.notifyFullyAvailable(ctx, order)
	}
	return nil
}

// notifyFullyAvailable fans out the readiness notification to production
// planning and admin users. Failures are warnings, never cascade errors.
func (c *ReadinessCascade) notifyFullyAvailable(ctx context.Context, order *repository.ProductionOrder) {
	delivered, err := c.dispatcher.NotifyRole(ctx, notify.Input{
		Title:    "Materials fully available",
		Message:  fmt.Sprintf("All required materials for production order %s (%s) are now available.", order.OrderNumber, order.ProjectName),
		Link:     "/production-orders/" + order.ID,
		Type:     "materials_ready",
		Priority: repository.PriorityHigh,
	}, repository.RoleProductionPlanner, repository.RoleAdmin)
	if err != nil {
		c.log.Warn().Err(err).
			Str("production_order_id", order.ID).
			Msg("failed to notify material readiness")
		return
	}
	c.log.Info().
		Str("production_order_id", order.ID).
		Int("recipients", delivered).
		Msg("material readiness notification dispatched")
}

// logOutcome reports a finished async run.
func (c *ReadinessCascade) logOutcome(purchaseOrderID string, outcome Outcome) {
	event := c.log.Info()
	if len(outcome.Failed) > 0 {
		event = c.log.Error()
	}
	event.
		Str("trigger_purchase_order_id", purchaseOrderID).
		Int("succeeded", len(outcome.Succeeded)).
		Int("failed", len(outcome.Failed)).
		Msg("readiness cascade finished")

	for _, failure := range outcome.Failed {
		c.log.Error().Err(failure.Err).
			Str("production_order_id", failure.OrderID).
			Msg("readiness recomputation failed")
	}
}

// ComputeReadiness derives a production order's readiness from the available
// quantities of received purchase order material. Pure.
func ComputeReadiness(required []repository.RequiredMaterial, available map[string]decimal.Decimal) repository.MaterialReadiness {
	if len(required) == 0 {
		return repository.ReadinessFull
	}

	covered := 0
	anyStock := false
	for _, req := range required {
		qty, ok := available[req.MaterialName]
		if !ok {
			continue
		}
		if qty.GreaterThan(decimal.Zero) {
			anyStock = true
		}
		if qty.GreaterThanOrEqual(req.Quantity) {
			covered++
		}
	}

	switch {
	case covered == len(required):
		return repository.ReadinessFull
	case covered > 0 || anyStock:
		return repository.ReadinessPartial
	default:
		return repository.ReadinessNone
	}
}
