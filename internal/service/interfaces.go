package service

import (
	"context"
	"time"

	"github.com/shopspring/decimal"

	"github.com/ningxiarongchen-lgtm/project-ark-sub004/internal/notify"
	"github.com/ningxiarongchen-lgtm/project-ark-sub004/internal/repository"
)

// Capability interfaces the services depend on. The pgx repositories satisfy
// them in production; the memory repositories satisfy them in tests.

// PurchaseOrderStore persists purchase orders.
type PurchaseOrderStore interface {
	Create(ctx context.Context, order *repository.PurchaseOrder) error
	GetByID(ctx context.Context, id string) (*repository.PurchaseOrder, error)
	List(ctx context.Context, status *repository.PurchaseOrderStatus) ([]*repository.PurchaseOrder, error)
	UpdateLines(ctx context.Context, order *repository.PurchaseOrder) error
	UpdateStatus(ctx context.Context, id string, status repository.PurchaseOrderStatus, note *string) error
	Approve(ctx context.Context, id, approvedBy string, approvedAt time.Time) error
	Reject(ctx context.Context, id, rejectedBy, reason string, rejectedAt time.Time) error
	AvailableQuantities(ctx context.Context, materials []string) (map[string]decimal.Decimal, error)
}

// ProductionOrderStore persists production orders.
type ProductionOrderStore interface {
	Create(ctx context.Context, order *repository.ProductionOrder) error
	GetByID(ctx context.Context, id string) (*repository.ProductionOrder, error)
	List(ctx context.Context) ([]*repository.ProductionOrder, error)
	ListOpen(ctx context.Context, materials []string) ([]*repository.ProductionOrder, error)
	UpdateReadiness(ctx context.Context, id string, readiness repository.MaterialReadiness) error
	UpdateStatus(ctx context.Context, id string, status repository.ProductionOrderStatus, note *string) error
}

// QualityCheckStore persists quality checks.
type QualityCheckStore interface {
	Create(ctx context.Context, check *repository.QualityCheck) error
	GetByID(ctx context.Context, id string) (*repository.QualityCheck, error)
	GetOpenBySource(ctx context.Context, sourceType repository.SourceDocumentType, sourceID string) (*repository.QualityCheck, error)
	List(ctx context.Context) ([]*repository.QualityCheck, error)
	UpdateProgress(ctx context.Context, id string, checklist []repository.ChecklistItem, inspectedBy string) error
	Complete(ctx context.Context, id string, result repository.QualityResult, checklist []repository.ChecklistItem, inspectedBy string, completedAt time.Time) error
}

// SupplierStore reads suppliers.
type SupplierStore interface {
	GetByID(ctx context.Context, id string) (*repository.Supplier, error)
}

// Notifier is the dispatch capability the services use. Only the notify
// package writes notification records.
type Notifier interface {
	NotifyUser(ctx context.Context, userID string, in notify.Input) error
	NotifyRole(ctx context.Context, in notify.Input, roles ...string) (int, error)
}
