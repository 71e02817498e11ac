package service

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/ningxiarongchen-lgtm/project-ark-sub004/internal/auth"
	"github.com/ningxiarongchen-lgtm/project-ark-sub004/internal/errors"
	"github.com/ningxiarongchen-lgtm/project-ark-sub004/internal/notify"
	"github.com/ningxiarongchen-lgtm/project-ark-sub004/internal/repository"
)

// ApprovalService owns the admin-approval branch of the purchase order graph.
// pending_admin_approval can only be left through Approve or Reject; both are
// terminal for that branch (a rejected order cannot be resubmitted here).
type ApprovalService struct {
	orders     PurchaseOrderStore
	dispatcher Notifier
	log        zerolog.Logger
}

// NewApprovalService creates an ApprovalService.
func NewApprovalService(orders PurchaseOrderStore, dispatcher Notifier, log zerolog.Logger) *ApprovalService {
	return &ApprovalService{orders: orders, dispatcher: dispatcher, log: log}
}

// Approve moves a purchase order from pending_admin_approval to
// pending_contract_draft, stamping the approval audit fields.
func (s *ApprovalService) Approve(ctx context.Context, orderID string, actor *auth.Actor) (*repository.PurchaseOrder, error) {
	order, err := s.orders.GetByID(ctx, orderID)
	if err != nil {
		return nil, err
	}
	if order.Status != repository.POPendingAdminApproval {
		return nil, errors.Conflict(fmt.Sprintf(
			"purchase order cannot be approved from status %q; expected %q",
			order.Status, repository.POPendingAdminApproval))
	}

	if err := s.orders.Approve(ctx, orderID, actor.ID, time.Now()); err != nil {
		return nil, err
	}

	s.log.Info().
		Str("order_id", orderID).
		Str("approved_by", actor.ID).
		Msg("purchase order approved by admin")

	s.notifyCreator(ctx, order, notify.Input{
		Title:    "Purchase order approved",
		Message:  fmt.Sprintf("Purchase order %s was approved and moved to contract drafting.", order.OrderNumber),
		Link:     "/purchase-orders/" + order.ID,
		Type:     "purchase_order_approved",
		Priority: repository.PriorityNormal,
	})

	return s.orders.GetByID(ctx, orderID)
}

// Reject moves a purchase order from pending_admin_approval to rejected. The
// reason is required; whitespace does not count.
func (s *ApprovalService) Reject(ctx context.Context, orderID string, actor *auth.Actor, reason string) (*repository.PurchaseOrder, error) {
	if strings.TrimSpace(reason) == "" {
		return nil, errors.InvalidInput("rejection_reason", "rejection reason is required")
	}

	order, err := s.orders.GetByID(ctx, orderID)
	if err != nil {
		return nil, err
	}
	if order.Status != repository.POPendingAdminApproval {
		return nil, errors.Conflict(fmt.Sprintf(
			"purchase order cannot be rejected from status %q; expected %q",
			order.Status, repository.POPendingAdminApproval))
	}

	if err := s.orders.Reject(ctx, orderID, actor.ID, reason, time.Now()); err != nil {
		return nil, err
	}

	s.log.Info().
		Str("order_id", orderID).
		Str("rejected_by", actor.ID).
		Str("reason", reason).
		Msg("purchase order rejected by admin")

	s.notifyCreator(ctx, order, notify.Input{
		Title:    "Purchase order rejected",
		Message:  fmt.Sprintf("Purchase order %s was rejected: %s", order.OrderNumber, reason),
		Link:     "/purchase-orders/" + order.ID,
		Type:     "purchase_order_rejected",
		Priority: repository.PriorityHigh,
	})

	return s.orders.GetByID(ctx, orderID)
}

// notifyCreator tells the order's creator about the outcome. Non-fatal.
func (s *ApprovalService) notifyCreator(ctx context.Context, order *repository.PurchaseOrder, in notify.Input) {
	if err := s.dispatcher.NotifyUser(ctx, order.CreatedBy, in); err != nil {
		s.log.Warn().Err(err).
			Str("order_id", order.ID).
			Str("recipient_id", order.CreatedBy).
			Msg("failed to notify order creator")
	}
}
