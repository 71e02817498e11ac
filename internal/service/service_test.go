package service

import (
	"context"
	"testing"

	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"

	"github.com/ningxiarongchen-lgtm/project-ark-sub004/internal/auth"
	"github.com/ningxiarongchen-lgtm/project-ark-sub004/internal/notify"
	"github.com/ningxiarongchen-lgtm/project-ark-sub004/internal/repository"
	"github.com/ningxiarongchen-lgtm/project-ark-sub004/internal/repository/memory"
)

// testEnv wires the services onto in-memory stores.
type testEnv struct {
	purchaseOrders   *memory.PurchaseOrderRepository
	productionOrders *memory.ProductionOrderRepository
	checks           *memory.QualityCheckRepository
	suppliers        *memory.SupplierRepository
	users            *memory.UserRepository
	notifications    *memory.NotificationRepository
	dispatcher       *notify.Dispatcher

	readiness              *ReadinessCascade
	purchaseOrderService   *PurchaseOrderService
	productionOrderService *ProductionOrderService
	approvals              *ApprovalService
	quality                *QualityGateService
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	log := zerolog.Nop()

	env := &testEnv{
		purchaseOrders:   memory.NewPurchaseOrderRepository(),
		productionOrders: memory.NewProductionOrderRepository(),
		checks:           memory.NewQualityCheckRepository(),
		suppliers:        memory.NewSupplierRepository(),
		users:            memory.NewUserRepository(),
		notifications:    memory.NewNotificationRepository(),
	}
	env.dispatcher = notify.NewDispatcher(env.notifications, env.users, nil, log)
	env.readiness = NewReadinessCascade(env.purchaseOrders, env.productionOrders, env.dispatcher, 2, log)
	env.purchaseOrderService = NewPurchaseOrderService(env.purchaseOrders, env.suppliers, env.checks, env.dispatcher, env.readiness, decimal.NewFromInt(100000), log)
	env.productionOrderService = NewProductionOrderService(env.productionOrders, env.checks, log)
	env.approvals = NewApprovalService(env.purchaseOrders, env.dispatcher, log)
	env.quality = NewQualityGateService(env.checks, env.purchaseOrders, env.productionOrders, env.dispatcher, env.readiness, log)
	return env
}

func (e *testEnv) addUser(t *testing.T, name string, roles ...string) string {
	t.Helper()
	user := &repository.User{Name: name, Roles: roles}
	e.users.Add(user)
	return user.ID
}

func (e *testEnv) addSupplier(t *testing.T, name string, classification repository.SupplierClassification) *repository.Supplier {
	t.Helper()
	supplier := &repository.Supplier{Name: name, Classification: classification}
	require.NoError(t, e.suppliers.Create(context.Background(), supplier))
	return supplier
}

func (e *testEnv) addPurchaseOrder(t *testing.T, status repository.PurchaseOrderStatus, lines ...*repository.PurchaseOrderLine) *repository.PurchaseOrder {
	t.Helper()
	total := decimal.Zero
	for i, line := range lines {
		line.LineNumber = i + 1
		line.LineAmount = line.Quantity.Mul(line.UnitPrice)
		total = total.Add(line.LineAmount)
	}
	order := &repository.PurchaseOrder{
		OrderNumber: "PO-TEST",
		SupplierID:  "supplier-1",
		Status:      status,
		TotalAmount: total,
		CreatedBy:   "creator-1",
		Lines:       lines,
	}
	require.NoError(t, e.purchaseOrders.Create(context.Background(), order))
	return order
}

func (e *testEnv) addProductionOrder(t *testing.T, status repository.ProductionOrderStatus, readiness repository.MaterialReadiness, materials ...repository.RequiredMaterial) *repository.ProductionOrder {
	t.Helper()
	order := &repository.ProductionOrder{
		OrderNumber:       "MO-TEST",
		ProjectName:       "Refinery Valve Retrofit",
		Status:            status,
		MaterialReadiness: readiness,
		RequiredMaterials: materials,
		CreatedBy:         "creator-1",
	}
	require.NoError(t, e.productionOrders.Create(context.Background(), order))
	return order
}

func line(material string, quantity, unitPrice int64) *repository.PurchaseOrderLine {
	return &repository.PurchaseOrderLine{
		MaterialName: material,
		Quantity:     decimal.NewFromInt(quantity),
		UnitPrice:    decimal.NewFromInt(unitPrice),
	}
}

func material(name string, quantity int64) repository.RequiredMaterial {
	return repository.RequiredMaterial{MaterialName: name, Quantity: decimal.NewFromInt(quantity)}
}

func testActor(id string, roles ...string) *auth.Actor {
	return &auth.Actor{ID: id, Name: "Test User", Roles: roles}
}
