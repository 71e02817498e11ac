package service

import (
	"context"
	stderrors "errors"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ningxiarongchen-lgtm/project-ark-sub004/internal/errors"
	"github.com/ningxiarongchen-lgtm/project-ark-sub004/internal/repository"
)

func TestComputeReadiness(t *testing.T) {
	qty := func(s string) decimal.Decimal { return decimal.RequireFromString(s) }

	tests := []struct {
		name      string
		required  []repository.RequiredMaterial
		available map[string]decimal.Decimal
		want      repository.MaterialReadiness
	}{
		{
			name:     "no required materials is fully available",
			required: nil,
			want:     repository.ReadinessFull,
		},
		{
			name:      "all covered",
			required:  []repository.RequiredMaterial{material("bolts", 100), material("seals", 20)},
			available: map[string]decimal.Decimal{"bolts": qty("100"), "seals": qty("25")},
			want:      repository.ReadinessFull,
		},
		{
			name:      "one of two covered",
			required:  []repository.RequiredMaterial{material("bolts", 100), material("seals", 20)},
			available: map[string]decimal.Decimal{"bolts": qty("100")},
			want:      repository.ReadinessPartial,
		},
		{
			name:      "some stock but nothing covered",
			required:  []repository.RequiredMaterial{material("bolts", 100)},
			available: map[string]decimal.Decimal{"bolts": qty("40")},
			want:      repository.ReadinessPartial,
		},
		{
			name:      "nothing available",
			required:  []repository.RequiredMaterial{material("bolts", 100)},
			available: map[string]decimal.Decimal{},
			want:      repository.ReadinessNone,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, ComputeReadiness(tt.required, tt.available))
		})
	}
}

func TestCascadeNotifiesOnlyOnTransitionToFull(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	env.addUser(t, "Planner", repository.RoleProductionPlanner)
	env.addUser(t, "Admin", repository.RoleAdmin)

	prod := env.addProductionOrder(t, repository.ProdPending, repository.ReadinessNone, material("bolts", 100))
	env.addPurchaseOrder(t, repository.POInspectionPassed, line("bolts", 100, 3))

	outcome := env.readiness.Run(ctx, "")
	require.Empty(t, outcome.Failed)
	assert.Equal(t, []string{prod.ID}, outcome.Succeeded)

	current, err := env.productionOrders.GetByID(ctx, prod.ID)
	require.NoError(t, err)
	assert.Equal(t, repository.ReadinessFull, current.MaterialReadiness)

	// One record per role holder.
	assert.Len(t, env.notifications.All(), 2)

	// Re-running with unchanged inputs is a no-op: same readiness, no new
	// notifications.
	env.readiness.Run(ctx, "")
	assert.Len(t, env.notifications.All(), 2)
}

func TestCascadePartialAvailabilityDoesNotNotify(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	env.addUser(t, "Planner", repository.RoleProductionPlanner)

	prod := env.addProductionOrder(t, repository.ProdPending, repository.ReadinessNone, material("bolts", 100))
	env.addPurchaseOrder(t, repository.POReceived, line("bolts", 40, 3))

	env.readiness.Run(ctx, "")

	current, err := env.productionOrders.GetByID(ctx, prod.ID)
	require.NoError(t, err)
	assert.Equal(t, repository.ReadinessPartial, current.MaterialReadiness)
	assert.Empty(t, env.notifications.All())

	// Topping up the stock completes the coverage; the full transition
	// notifies exactly once.
	env.addPurchaseOrder(t, repository.POReceived, line("bolts", 60, 3))
	env.readiness.Run(ctx, "")

	current, err = env.productionOrders.GetByID(ctx, prod.ID)
	require.NoError(t, err)
	assert.Equal(t, repository.ReadinessFull, current.MaterialReadiness)
	assert.Len(t, env.notifications.All(), 1)
}

func TestScopedCascadeSkipsUnrelatedOrders(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	boltsOrder := env.addProductionOrder(t, repository.ProdPending, repository.ReadinessNone, material("bolts", 10))
	sealsOrder := env.addProductionOrder(t, repository.ProdScheduled, repository.ReadinessNone, material("seals", 10))

	boltsPO := env.addPurchaseOrder(t, repository.POInspectionPassed, line("bolts", 10, 3))
	env.addPurchaseOrder(t, repository.POInspectionPassed, line("seals", 10, 8))

	outcome := env.readiness.Run(ctx, boltsPO.ID)
	require.Empty(t, outcome.Failed)
	assert.Equal(t, []string{boltsOrder.ID}, outcome.Succeeded)

	current, err := env.productionOrders.GetByID(ctx, boltsOrder.ID)
	require.NoError(t, err)
	assert.Equal(t, repository.ReadinessFull, current.MaterialReadiness)

	// The seals order intersects nothing in the trigger document; the scoped
	// run must not touch it even though its material is in stock.
	current, err = env.productionOrders.GetByID(ctx, sealsOrder.ID)
	require.NoError(t, err)
	assert.Equal(t, repository.ReadinessNone, current.MaterialReadiness)

	// A global run picks it up.
	env.readiness.Run(ctx, "")
	current, err = env.productionOrders.GetByID(ctx, sealsOrder.ID)
	require.NoError(t, err)
	assert.Equal(t, repository.ReadinessFull, current.MaterialReadiness)
}

func TestScopedCascadeWithNoLinesIsNoOp(t *testing.T) {
	env := newTestEnv(t)
	env.addProductionOrder(t, repository.ProdPending, repository.ReadinessNone, material("bolts", 10))
	po := env.addPurchaseOrder(t, repository.PODraft)

	outcome := env.readiness.Run(context.Background(), po.ID)
	assert.Empty(t, outcome.Succeeded)
	assert.Empty(t, outcome.Failed)
}

// flakyProductionStore fails readiness writes for one order id.
type flakyProductionStore struct {
	ProductionOrderStore
	failID string
}

func (s *flakyProductionStore) UpdateReadiness(ctx context.Context, id string, readiness repository.MaterialReadiness) error {
	if id == s.failID {
		return stderrors.New("write failed")
	}
	return s.ProductionOrderStore.UpdateReadiness(ctx, id, readiness)
}

// vanishingProductionStore returns not-found on the re-read of one order id,
// simulating an order removed between the listing and its recomputation.
type vanishingProductionStore struct {
	ProductionOrderStore
	goneID string
}

func (s *vanishingProductionStore) GetByID(ctx context.Context, id string) (*repository.ProductionOrder, error) {
	if id == s.goneID {
		return nil, errors.NotFound("production_order", id)
	}
	return s.ProductionOrderStore.GetByID(ctx, id)
}

func TestCascadeSkipsOrdersGoneSinceListing(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	gone := env.addProductionOrder(t, repository.ProdPending, repository.ReadinessNone, material("bolts", 10))
	healthy := env.addProductionOrder(t, repository.ProdPending, repository.ReadinessNone, material("bolts", 5))
	env.addPurchaseOrder(t, repository.POInspectionPassed, line("bolts", 50, 3))

	cascade := NewReadinessCascade(
		env.purchaseOrders,
		&vanishingProductionStore{ProductionOrderStore: env.productionOrders, goneID: gone.ID},
		env.dispatcher, 2, env.readiness.log)

	// A vanished order is a skip, not a failure.
	outcome := cascade.Run(ctx, "")
	assert.Empty(t, outcome.Failed)
	assert.Contains(t, outcome.Succeeded, healthy.ID)

	current, err := env.productionOrders.GetByID(ctx, healthy.ID)
	require.NoError(t, err)
	assert.Equal(t, repository.ReadinessFull, current.MaterialReadiness)

	current, err = env.productionOrders.GetByID(ctx, gone.ID)
	require.NoError(t, err)
	assert.Equal(t, repository.ReadinessNone, current.MaterialReadiness)
}

func TestCascadeIsolatesPerOrderFailures(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	broken := env.addProductionOrder(t, repository.ProdPending, repository.ReadinessNone, material("bolts", 10))
	healthy := env.addProductionOrder(t, repository.ProdPending, repository.ReadinessNone, material("bolts", 5))
	env.addPurchaseOrder(t, repository.POInspectionPassed, line("bolts", 50, 3))

	cascade := NewReadinessCascade(
		env.purchaseOrders,
		&flakyProductionStore{ProductionOrderStore: env.productionOrders, failID: broken.ID},
		env.dispatcher, 2, env.readiness.log)

	outcome := cascade.Run(ctx, "")
	require.Len(t, outcome.Failed, 1)
	assert.Equal(t, broken.ID, outcome.Failed[0].OrderID)
	assert.Equal(t, []string{healthy.ID}, outcome.Succeeded)

	// The healthy order's recomputation landed despite the sibling failure.
	current, err := env.productionOrders.GetByID(ctx, healthy.ID)
	require.NoError(t, err)
	assert.Equal(t, repository.ReadinessFull, current.MaterialReadiness)
}
