package service

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ningxiarongchen-lgtm/project-ark-sub004/internal/errors"
	"github.com/ningxiarongchen-lgtm/project-ark-sub004/internal/repository"
)

func TestCreateProductionOrderDefaults(t *testing.T) {
	env := newTestEnv(t)

	order, err := env.productionOrderService.Create(context.Background(), &CreateProductionOrderRequest{
		ProjectName:       "Refinery Valve Retrofit",
		RequiredMaterials: []repository.RequiredMaterial{material("bolts", 100)},
	}, testActor("planner-1", repository.RoleProductionPlanner))
	require.NoError(t, err)

	assert.Equal(t, repository.ProdPending, order.Status)
	assert.Equal(t, repository.ReadinessNone, order.MaterialReadiness)
	assert.NotEmpty(t, order.OrderNumber)
	assert.Equal(t, "planner-1", order.CreatedBy)
}

func TestCreateProductionOrderValidation(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	actor := testActor("planner-1")

	_, err := env.productionOrderService.Create(ctx, &CreateProductionOrderRequest{
		ProjectName: "   ",
	}, actor)
	assert.Equal(t, errors.ErrCodeInvalidInput, errors.Code(err))

	_, err = env.productionOrderService.Create(ctx, &CreateProductionOrderRequest{
		ProjectName:       "Refinery Valve Retrofit",
		RequiredMaterials: []repository.RequiredMaterial{material("bolts", 0)},
	}, actor)
	assert.Equal(t, errors.ErrCodeInvalidInput, errors.Code(err))
}

func TestUpdateProductionOrderStatus(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	order := env.addProductionOrder(t, repository.ProdPending, repository.ReadinessFull, material("bolts", 10))

	updated, err := env.productionOrderService.UpdateStatus(ctx, order.ID, repository.ProdScheduled)
	require.NoError(t, err)
	assert.Equal(t, repository.ProdScheduled, updated.Status)

	updated, err = env.productionOrderService.UpdateStatus(ctx, order.ID, repository.ProdInProduction)
	require.NoError(t, err)
	assert.Equal(t, repository.ProdInProduction, updated.Status)

	// Not in the graph.
	_, err = env.productionOrderService.UpdateStatus(ctx, order.ID, repository.ProdPending)
	require.Error(t, err)
	assert.Equal(t, errors.ErrCodeConflict, errors.Code(err))

	// Inspection outcomes belong to the quality gate.
	_, err = env.productionOrderService.UpdateStatus(ctx, order.ID, repository.ProdAwaitingFinalPayment)
	require.Error(t, err)
	assert.Equal(t, errors.ErrCodeConflict, errors.Code(err))
}

func TestFinishProductionOpensFinalInspection(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	order := env.addProductionOrder(t, repository.ProdInProduction, repository.ReadinessFull, material("bolts", 10))
	actor := testActor("planner-1", repository.RoleProductionPlanner)

	check, err := env.productionOrderService.FinishProduction(ctx, order.ID, actor)
	require.NoError(t, err)
	assert.Equal(t, repository.CheckFinalProduct, check.CheckType)
	assert.Equal(t, repository.SourceProductionOrder, check.SourceType)
	assert.Equal(t, order.ID, check.SourceID)

	// The order status only moves once the inspection verdict comes back.
	current, err := env.productionOrders.GetByID(ctx, order.ID)
	require.NoError(t, err)
	assert.Equal(t, repository.ProdInProduction, current.Status)

	// Finishing again reuses the open inspection instead of opening a second one.
	again, err := env.productionOrderService.FinishProduction(ctx, order.ID, actor)
	require.NoError(t, err)
	assert.Equal(t, check.ID, again.ID)
}

func TestFinishProductionRequiresInProduction(t *testing.T) {
	env := newTestEnv(t)
	order := env.addProductionOrder(t, repository.ProdScheduled, repository.ReadinessFull, material("bolts", 10))

	_, err := env.productionOrderService.FinishProduction(context.Background(), order.ID, testActor("planner-1"))
	require.Error(t, err)
	assert.Equal(t, errors.ErrCodeConflict, errors.Code(err))
}
