package service

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"github.com/ningxiarongchen-lgtm/project-ark-sub004/internal/auth"
	"github.com/ningxiarongchen-lgtm/project-ark-sub004/internal/errors"
	"github.com/ningxiarongchen-lgtm/project-ark-sub004/internal/notify"
	"github.com/ningxiarongchen-lgtm/project-ark-sub004/internal/repository"
)

// QualityGateService owns the quality check lifecycle and routes completed
// verdicts onto the source documents. Completion is terminal; the routed
// status update always re-reads the current source snapshot first.
type QualityGateService struct {
	checks           QualityCheckStore
	purchaseOrders   PurchaseOrderStore
	productionOrders ProductionOrderStore
	dispatcher       Notifier
	readiness        *ReadinessCascade
	log              zerolog.Logger
}

// NewQualityGateService creates a QualityGateService.
func NewQualityGateService(checks QualityCheckStore, purchaseOrders PurchaseOrderStore, productionOrders ProductionOrderStore, dispatcher Notifier, readiness *ReadinessCascade, log zerolog.Logger) *QualityGateService {
	return &QualityGateService{
		checks:           checks,
		purchaseOrders:   purchaseOrders,
		productionOrders: productionOrders,
		dispatcher:       dispatcher,
		readiness:        readiness,
		log:              log,
	}
}

// Get retrieves a quality check.
func (s *QualityGateService) Get(ctx context.Context, id string) (*repository.QualityCheck, error) {
	return s.checks.GetByID(ctx, id)
}

// List returns all quality checks, newest first.
func (s *QualityGateService) List(ctx context.Context) ([]*repository.QualityCheck, error) {
	return s.checks.List(ctx)
}

// AdvanceForPurchaseOrder records checklist progress against the open incoming
// inspection of a purchase order, opening one first if the order has been
// received without an inspection yet.
func (s *QualityGateService) AdvanceForPurchaseOrder(ctx context.Context, orderID string, actor *auth.Actor, checklist []repository.ChecklistItem) (*repository.QualityCheck, error) {
	order, err := s.purchaseOrders.GetByID(ctx, orderID)
	if err != nil {
		return nil, err
	}

	check, err := s.checks.GetOpenBySource(ctx, repository.SourcePurchaseOrder, orderID)
	if err != nil {
		return nil, err
	}
	if check == nil {
		if order.Status != repository.POReceived {
			return nil, errors.Conflict(fmt.Sprintf(
				"purchase order is %q; no incoming inspection is open", order.Status))
		}
		check = &repository.QualityCheck{
			CheckType:  repository.CheckIncomingInspection,
			SourceType: repository.SourcePurchaseOrder,
			SourceID:   orderID,
			Status:     repository.CheckPending,
		}
		if err := s.checks.Create(ctx, check); err != nil {
			return nil, err
		}
	}

	return s.Advance(ctx, check.ID, actor, checklist)
}

// Advance records checklist progress on a pending or in-progress check.
// A passing incoming-inspection item set gets a production-readiness hint in
// the logs; the final verdict still comes through Complete.
func (s *QualityGateService) Advance(ctx context.Context, checkID string, actor *auth.Actor, checklist []repository.ChecklistItem) (*repository.QualityCheck, error) {
	check, err := s.checks.GetByID(ctx, checkID)
	if err != nil {
		return nil, err
	}
	if check.Status == repository.CheckCompleted {
		return nil, errors.Conflict(fmt.Sprintf(
			"quality check is %q; completed checks cannot be modified", check.Status))
	}

	if err := s.checks.UpdateProgress(ctx, checkID, checklist, actor.ID); err != nil {
		return nil, err
	}

	if check.CheckType == repository.CheckIncomingInspection && allPassed(checklist) {
		s.log.Info().
			Str("quality_check_id", checkID).
			Str("purchase_order_id", check.SourceID).
			Msg("incoming inspection passing so far; material may unlock production readiness")
	}

	return s.checks.GetByID(ctx, checkID)
}

// Complete finalizes a quality check and routes the verdict to the source
// document. The check transition itself is synchronous; downstream routing
// failures are logged, not surfaced, so a stuck source document never blocks
// recording the inspection result.
func (s *QualityGateService) Complete(ctx context.Context, checkID string, actor *auth.Actor, checklist []repository.ChecklistItem, overall repository.QualityResult) (*repository.QualityCheck, error) {
	if overall != repository.ResultPass && overall != repository.ResultFail {
		return nil, errors.InvalidInput("overall_result", fmt.Sprintf("overall result must be %q or %q", repository.ResultPass, repository.ResultFail))
	}

	check, err := s.checks.GetByID(ctx, checkID)
	if err != nil {
		return nil, err
	}
	if check.Status == repository.CheckCompleted {
		return nil, errors.Conflict("quality check is already completed")
	}

	if len(checklist) == 0 {
		checklist = check.Checklist
	}
	if err := s.checks.Complete(ctx, checkID, overall, checklist, actor.ID, time.Now()); err != nil {
		return nil, err
	}

	completed, err := s.checks.GetByID(ctx, checkID)
	if err != nil {
		return nil, err
	}

	s.routeResult(ctx, completed, overall)
	return completed, nil
}

// routeResult updates the source document for a completed check. Failures are
// logged with the source id and swallowed.
func (s *QualityGateService) routeResult(ctx context.Context, check *repository.QualityCheck, overall repository.QualityResult) {
	var err error
	switch {
	case check.CheckType == repository.CheckIncomingInspection && check.SourceType == repository.SourcePurchaseOrder:
		err = s.routeIncomingInspection(ctx, check, overall)
	case check.CheckType == repository.CheckFinalProduct && check.SourceType == repository.SourceProductionOrder:
		err = s.routeFinalProduct(ctx, check, overall)
	default:
		err = errors.New(errors.ErrCodeInternal, fmt.Sprintf(
			"no route for check type %q on source type %q", check.CheckType, check.SourceType))
	}
	if err != nil {
		s.log.Error().Err(err).
			Str("quality_check_id", check.ID).
			Str("source_type", string(check.SourceType)).
			Str("source_id", check.SourceID).
			Msg("failed to route quality check result")
	}
}

// routeIncomingInspection moves the originating purchase order to its
// inspection outcome status. A pass makes the received material count toward
// production readiness, so the scoped cascade is triggered.
func (s *QualityGateService) routeIncomingInspection(ctx context.Context, check *repository.QualityCheck, overall repository.QualityResult) error {
	// Current snapshot; the order may have changed since the check was created.
	order, err := s.purchaseOrders.GetByID(ctx, check.SourceID)
	if err != nil {
		return err
	}

	if overall == repository.ResultPass {
		if err := s.purchaseOrders.UpdateStatus(ctx, order.ID, repository.POInspectionPassed, nil); err != nil {
			return err
		}
		s.log.Info().
			Str("purchase_order_id", order.ID).
			Msg("incoming inspection passed")
		s.readiness.RunAsync(order.ID)
		return nil
	}

	note := fmt.Sprintf("incoming inspection failed with %d defect(s)", check.DefectCount())
	if err := s.purchaseOrders.UpdateStatus(ctx, order.ID, repository.POInspectionFailed, &note); err != nil {
		return err
	}
	s.log.Info().
		Str("purchase_order_id", order.ID).
		Int("defects", check.DefectCount()).
		Msg("incoming inspection failed")
	return nil
}

// routeFinalProduct moves the originating production order to the
// payment-gated shipping entry point on pass, and fans the payment request
// out to the commercial role.
func (s *QualityGateService) routeFinalProduct(ctx context.Context, check *repository.QualityCheck, overall repository.QualityResult) error {
	order, err := s.productionOrders.GetByID(ctx, check.SourceID)
	if err != nil {
		return err
	}

	if overall == repository.ResultFail {
		note := fmt.Sprintf("final inspection failed with %d defect(s)", check.DefectCount())
		return s.productionOrders.UpdateStatus(ctx, order.ID, repository.ProdFailedFinalInspection, &note)
	}

	if err := s.productionOrders.UpdateStatus(ctx, order.ID, repository.ProdAwaitingFinalPayment, nil); err != nil {
		return err
	}

	delivered, err := s.dispatcher.NotifyRole(ctx, notify.Input{
		Title:    "Final inspection passed",
		Message:  fmt.Sprintf("Production order %s for project %s passed final inspection. Please confirm final payment to release shipping.", order.OrderNumber, order.ProjectName),
		Link:     "/production-orders/" + order.ID,
		Type:     "final_payment_requested",
		Priority: repository.PriorityHigh,
	}, repository.RoleCommercial)
	if err != nil {
		s.log.Warn().Err(err).
			Str("production_order_id", order.ID).
			Msg("failed to notify commercial users for final payment")
	} else {
		s.log.Info().
			Str("production_order_id", order.ID).
			Int("recipients", delivered).
			Msg("final payment confirmation requested")
	}
	return nil
}

// allPassed reports whether every checklist item passed so far.
func allPassed(checklist []repository.ChecklistItem) bool {
	if len(checklist) == 0 {
		return false
	}
	for _, item := range checklist {
		if !item.Passed {
			return false
		}
	}
	return true
}
