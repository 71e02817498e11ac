package service

import (
	"context"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ningxiarongchen-lgtm/project-ark-sub004/internal/errors"
	"github.com/ningxiarongchen-lgtm/project-ark-sub004/internal/repository"
)

func lineReq(material string, quantity, unitPrice int64) *PurchaseOrderLineRequest {
	return &PurchaseOrderLineRequest{
		MaterialName: material,
		Quantity:     decimal.NewFromInt(quantity),
		UnitPrice:    decimal.NewFromInt(unitPrice),
	}
}

func TestCreateRoutesTemporarySupplierOverThreshold(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	admin1 := env.addUser(t, "Admin One", repository.RoleAdmin)
	admin2 := env.addUser(t, "Admin Two", repository.RoleAdmin)
	supplier := env.addSupplier(t, "Casting Works", repository.SupplierTemporary)

	result, err := env.purchaseOrderService.Create(ctx, &CreatePurchaseOrderRequest{
		SupplierID: supplier.ID,
		Lines:      []*PurchaseOrderLineRequest{lineReq("carbon steel body", 50, 10000)},
	}, testActor("buyer-1"))
	require.NoError(t, err)

	assert.Equal(t, repository.POPendingAdminApproval, result.Order.Status)
	assert.True(t, result.Order.TotalAmount.Equal(decimal.NewFromInt(500000)))
	require.NotNil(t, result.Order.RoutingNote)

	assert.False(t, result.RiskControl.IsPartnerSupplier)
	assert.True(t, result.RiskControl.IsOverThreshold)
	assert.True(t, result.RiskControl.NeedsAdminApproval)

	// Both admins get the approval request.
	for _, id := range []string{admin1, admin2} {
		inbox, err := env.notifications.ListByRecipient(ctx, id, false)
		require.NoError(t, err)
		require.Len(t, inbox, 1)
		assert.Equal(t, "admin_approval_requested", inbox[0].Type)
	}
}

func TestCreatePartnerSupplierBypassesApproval(t *testing.T) {
	env := newTestEnv(t)
	env.addUser(t, "Admin", repository.RoleAdmin)
	supplier := env.addSupplier(t, "Longtime Forge", repository.SupplierPartner)

	result, err := env.purchaseOrderService.Create(context.Background(), &CreatePurchaseOrderRequest{
		SupplierID: supplier.ID,
		Lines:      []*PurchaseOrderLineRequest{lineReq("carbon steel body", 50, 10000)},
	}, testActor("buyer-1"))
	require.NoError(t, err)

	assert.Equal(t, repository.POPendingCommercialReview, result.Order.Status)
	assert.True(t, result.RiskControl.IsPartnerSupplier)
	assert.True(t, result.RiskControl.IsOverThreshold)
	assert.False(t, result.RiskControl.NeedsAdminApproval)

	// Bypass means no approval request for anyone.
	assert.Empty(t, env.notifications.All())
}

func TestCreatePurchaseOrderValidation(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	supplier := env.addSupplier(t, "Casting Works", repository.SupplierTemporary)
	actor := testActor("buyer-1")

	_, err := env.purchaseOrderService.Create(ctx, &CreatePurchaseOrderRequest{
		Lines: []*PurchaseOrderLineRequest{lineReq("bolts", 1, 1)},
	}, actor)
	assert.Equal(t, errors.ErrCodeInvalidInput, errors.Code(err))

	_, err = env.purchaseOrderService.Create(ctx, &CreatePurchaseOrderRequest{
		SupplierID: supplier.ID,
	}, actor)
	assert.Equal(t, errors.ErrCodeInvalidInput, errors.Code(err))

	_, err = env.purchaseOrderService.Create(ctx, &CreatePurchaseOrderRequest{
		SupplierID: supplier.ID,
		Lines:      []*PurchaseOrderLineRequest{lineReq("bolts", 0, 1)},
	}, actor)
	assert.Equal(t, errors.ErrCodeInvalidInput, errors.Code(err))

	_, err = env.purchaseOrderService.Create(ctx, &CreatePurchaseOrderRequest{
		SupplierID: "missing",
		Lines:      []*PurchaseOrderLineRequest{lineReq("bolts", 1, 1)},
	}, actor)
	assert.Equal(t, errors.ErrCodeNotFound, errors.Code(err))
}

func TestUpdateReplacesLinesAndTotal(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	order := env.addPurchaseOrder(t, repository.POPendingCommercialReview, line("bolts", 10, 3))

	terms := "FOB Shanghai"
	updated, err := env.purchaseOrderService.Update(ctx, order.ID, &UpdateLinesRequest{
		DeliveryTerms: &terms,
		Lines: []*PurchaseOrderLineRequest{
			lineReq("bolts", 20, 3),
			lineReq("seals", 5, 8),
		},
	})
	require.NoError(t, err)

	require.Len(t, updated.Lines, 2)
	assert.True(t, updated.TotalAmount.Equal(decimal.NewFromInt(100)))
	require.NotNil(t, updated.DeliveryTerms)
	assert.Equal(t, terms, *updated.DeliveryTerms)
}

func TestUpdateStatusFollowsTransitionGraph(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	order := env.addPurchaseOrder(t, repository.POInProgress, line("bolts", 10, 3))
	updated, err := env.purchaseOrderService.UpdateStatus(ctx, order.ID, repository.POShipped)
	require.NoError(t, err)
	assert.Equal(t, repository.POShipped, updated.Status)

	// Backwards is not in the graph.
	_, err = env.purchaseOrderService.UpdateStatus(ctx, order.ID, repository.POInProgress)
	require.Error(t, err)
	assert.Equal(t, errors.ErrCodeConflict, errors.Code(err))
}

func TestUpdateStatusGuardsAdminApprovalBranch(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	// The admin branch can only be left through the approval endpoints.
	pending := env.addPurchaseOrder(t, repository.POPendingAdminApproval, line("bolts", 10, 3))
	_, err := env.purchaseOrderService.UpdateStatus(ctx, pending.ID, repository.POPendingContractDraft)
	require.Error(t, err)
	assert.Equal(t, errors.ErrCodeConflict, errors.Code(err))
	assert.Contains(t, err.Error(), "admin-approve")

	// And it can only be entered by the routing decision at creation time.
	draft := env.addPurchaseOrder(t, repository.PODraft, line("bolts", 10, 3))
	_, err = env.purchaseOrderService.UpdateStatus(ctx, draft.ID, repository.POPendingAdminApproval)
	require.Error(t, err)
	assert.Equal(t, errors.ErrCodeConflict, errors.Code(err))
}

func TestReceiveOpensIncomingInspection(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	order := env.addPurchaseOrder(t, repository.POShipped, line("bolts", 10, 3))

	received, check, err := env.purchaseOrderService.Receive(ctx, order.ID, testActor("warehouse-1"))
	require.NoError(t, err)

	assert.Equal(t, repository.POReceived, received.Status)
	require.NotNil(t, check)
	assert.Equal(t, repository.CheckIncomingInspection, check.CheckType)
	assert.Equal(t, repository.SourcePurchaseOrder, check.SourceType)
	assert.Equal(t, order.ID, check.SourceID)
	assert.Equal(t, repository.CheckPending, check.Status)

	// Receiving twice is a precondition failure.
	_, _, err = env.purchaseOrderService.Receive(ctx, order.ID, testActor("warehouse-1"))
	require.Error(t, err)
	assert.Equal(t, errors.ErrCodeConflict, errors.Code(err))
}

func TestReceiveTriggersReadinessCascade(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	prod := env.addProductionOrder(t, repository.ProdPending, repository.ReadinessNone, material("bolts", 10))
	order := env.addPurchaseOrder(t, repository.POShipped, line("bolts", 10, 3))

	_, _, err := env.purchaseOrderService.Receive(ctx, order.ID, testActor("warehouse-1"))
	require.NoError(t, err)

	// Received material counts toward availability; the production order whose
	// requirement it completes must not stay stale waiting for an unrelated
	// mutation.
	assert.Eventually(t, func() bool {
		current, err := env.productionOrders.GetByID(ctx, prod.ID)
		return err == nil && current.MaterialReadiness == repository.ReadinessFull
	}, 2*time.Second, 10*time.Millisecond)
}
