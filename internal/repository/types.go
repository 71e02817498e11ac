package repository

import (
	"time"

	"github.com/shopspring/decimal"
)

// ── Supplier ─────────────────────────────────────────────────────────────────

// SupplierClassification is the trust tier of a supplier. The set is closed:
// only partner and temporary suppliers may be referenced by new purchase
// orders; any other value fails validation at creation time.
type SupplierClassification string

const (
	SupplierPartner   SupplierClassification = "partner"
	SupplierTemporary SupplierClassification = "temporary"
)

// Valid reports whether the classification is one of the allowed tiers.
func (c SupplierClassification) Valid() bool {
	return c == SupplierPartner || c == SupplierTemporary
}

// Supplier is a counterparty for purchase orders. The classification is read
// at routing-decision time, never cached on the order.
type Supplier struct {
	ID             string
	Name           string
	Classification SupplierClassification
	ContactName    *string
	ContactPhone   *string
	CreatedAt      time.Time
	UpdatedAt      time.Time
}

// ── Purchase order ───────────────────────────────────────────────────────────

// PurchaseOrderStatus is one node in the purchase order's state graph.
type PurchaseOrderStatus string

const (
	PODraft                     PurchaseOrderStatus = "draft"
	POPendingAdminApproval      PurchaseOrderStatus = "pending_admin_approval"
	PORejected                  PurchaseOrderStatus = "rejected"
	POPendingContractDraft      PurchaseOrderStatus = "pending_contract_draft"
	POPendingCommercialReview   PurchaseOrderStatus = "pending_commercial_review"
	POPendingSupplierConfirm    PurchaseOrderStatus = "pending_supplier_confirmation"
	POInProgress                PurchaseOrderStatus = "in_progress"
	POShipped                   PurchaseOrderStatus = "shipped"
	POReceived                  PurchaseOrderStatus = "received"
	POInspectionPassed          PurchaseOrderStatus = "inspection_passed"
	POInspectionFailed          PurchaseOrderStatus = "inspection_failed"
)

// poTransitions is the directed transition graph for purchase orders.
// Orders created through the service are born in their routed status; the
// draft node covers rows staged outside it (data imports, upstream systems)
// and is validated here so such rows can enter the normal flow.
// The pending_admin_approval exits are owned by the approval service and are
// listed here so graph validation and the approval preconditions agree.
var poTransitions = map[PurchaseOrderStatus][]PurchaseOrderStatus{
	PODraft:                   {POPendingAdminApproval, POPendingCommercialReview},
	POPendingAdminApproval:    {POPendingContractDraft, PORejected},
	POPendingContractDraft:    {POPendingCommercialReview},
	POPendingCommercialReview: {POPendingSupplierConfirm},
	POPendingSupplierConfirm:  {POInProgress},
	POInProgress:              {POShipped},
	POShipped:                 {POReceived},
	POReceived:                {POInspectionPassed, POInspectionFailed},
}

// CanTransitionTo reports whether the graph permits moving from s to next.
func (s PurchaseOrderStatus) CanTransitionTo(next PurchaseOrderStatus) bool {
	for _, allowed := range poTransitions[s] {
		if allowed == next {
			return true
		}
	}
	return false
}

// PurchaseOrderLine is one item on a purchase order. MaterialName is what the
// readiness cascade matches against production order requirements.
type PurchaseOrderLine struct {
	ID           string
	OrderID      string
	LineNumber   int
	MaterialName string
	Model        *string
	Quantity     decimal.Decimal
	UnitPrice    decimal.Decimal
	LineAmount   decimal.Decimal
}

// PurchaseOrder is an order placed with a supplier for actuator materials.
type PurchaseOrder struct {
	ID             string
	OrderNumber    string
	SupplierID     string
	ProjectID      *string
	Status         PurchaseOrderStatus
	TotalAmount    decimal.Decimal
	DeliveryTerms  *string
	RoutingNote    *string
	CreatedBy      string
	ApprovedBy     *string
	ApprovedAt     *time.Time
	RejectedBy     *string
	RejectedReason *string
	RejectedAt     *time.Time
	CreatedAt      time.Time
	UpdatedAt      time.Time
	Lines          []*PurchaseOrderLine
}

// ── Production order ─────────────────────────────────────────────────────────

// ProductionOrderStatus is one node in the production order's state graph.
type ProductionOrderStatus string

const (
	ProdPending               ProductionOrderStatus = "pending"
	ProdScheduled             ProductionOrderStatus = "scheduled"
	ProdInProduction          ProductionOrderStatus = "in_production"
	ProdAwaitingFinalPayment  ProductionOrderStatus = "awaiting_final_payment"
	ProdFailedFinalInspection ProductionOrderStatus = "failed_final_inspection"
	ProdCompleted             ProductionOrderStatus = "completed"
	ProdShipped               ProductionOrderStatus = "shipped"
)

// OpenProductionStatuses is the status set the readiness cascade scans.
var OpenProductionStatuses = []ProductionOrderStatus{ProdPending, ProdScheduled, ProdInProduction}

// prodTransitions is the directed transition graph for production orders. The
// inspection outcomes (awaiting_final_payment, failed_final_inspection) are
// entered only by the quality gate; a failed order goes back into production
// for rework.
var prodTransitions = map[ProductionOrderStatus][]ProductionOrderStatus{
	ProdPending:               {ProdScheduled, ProdInProduction},
	ProdScheduled:             {ProdInProduction},
	ProdAwaitingFinalPayment:  {ProdCompleted},
	ProdFailedFinalInspection: {ProdInProduction},
	ProdCompleted:             {ProdShipped},
}

// CanTransitionTo reports whether the graph permits moving from s to next.
func (s ProductionOrderStatus) CanTransitionTo(next ProductionOrderStatus) bool {
	for _, allowed := range prodTransitions[s] {
		if allowed == next {
			return true
		}
	}
	return false
}

// MaterialReadiness is the derived availability of a production order's
// required materials. Never mutated directly by a user action.
type MaterialReadiness string

const (
	ReadinessNone    MaterialReadiness = "none_available"
	ReadinessPartial MaterialReadiness = "partially_available"
	ReadinessFull    MaterialReadiness = "fully_available"
)

// RequiredMaterial is one material a production order needs before work can start.
type RequiredMaterial struct {
	MaterialName string          `json:"material_name"`
	Quantity     decimal.Decimal `json:"quantity"`
}

// ProductionOrder is a manufacturing order for a sales project.
type ProductionOrder struct {
	ID                string
	OrderNumber       string
	ProjectID         *string
	ProjectName       string
	Status            ProductionOrderStatus
	MaterialReadiness MaterialReadiness
	RequiredMaterials []RequiredMaterial
	StatusNote        *string
	CreatedBy         string
	CreatedAt         time.Time
	UpdatedAt         time.Time
}

// ── Quality check ────────────────────────────────────────────────────────────

// QualityCheckType distinguishes the two inspection kinds.
type QualityCheckType string

const (
	CheckIncomingInspection QualityCheckType = "incoming_inspection"
	CheckFinalProduct       QualityCheckType = "final_product"
)

// QualityCheckStatus is the check lifecycle. Completed is terminal.
type QualityCheckStatus string

const (
	CheckPending    QualityCheckStatus = "pending"
	CheckInProgress QualityCheckStatus = "in_progress"
	CheckCompleted  QualityCheckStatus = "completed"
)

// QualityResult is the overall verdict of a completed check.
type QualityResult string

const (
	ResultPass QualityResult = "pass"
	ResultFail QualityResult = "fail"
)

// SourceDocumentType identifies what kind of document a check inspects.
type SourceDocumentType string

const (
	SourcePurchaseOrder   SourceDocumentType = "purchase_order"
	SourceProductionOrder SourceDocumentType = "production_order"
)

// ChecklistItem is one inspected criterion and its outcome.
type ChecklistItem struct {
	Name        string `json:"name"`
	Passed      bool   `json:"passed"`
	DefectCount int    `json:"defect_count"`
	Remark      string `json:"remark,omitempty"`
}

// QualityCheck inspects a source document and carries a pass/fail verdict.
type QualityCheck struct {
	ID            string
	CheckType     QualityCheckType
	SourceType    SourceDocumentType
	SourceID      string
	Status        QualityCheckStatus
	OverallResult *QualityResult
	Checklist     []ChecklistItem
	InspectedBy   *string
	CompletedAt   *time.Time
	CreatedAt     time.Time
	UpdatedAt     time.Time
}

// DefectCount sums defects across the checklist.
func (qc *QualityCheck) DefectCount() int {
	total := 0
	for _, item := range qc.Checklist {
		total += item.DefectCount
	}
	return total
}

// ── Notification ─────────────────────────────────────────────────────────────

// NotificationPriority orders notifications in the inbox.
type NotificationPriority string

const (
	PriorityNormal NotificationPriority = "normal"
	PriorityHigh   NotificationPriority = "high"
)

// Notification is an immutable per-recipient record. Role fan-out produces one
// record per role holder, not one shared record.
type Notification struct {
	ID          string
	RecipientID string
	Title       string
	Message     string
	Link        string
	Priority    NotificationPriority
	Type        string
	Read        bool
	CreatedAt   time.Time
}

// ── User ─────────────────────────────────────────────────────────────────────

// Role names used for notification fan-out and endpoint gating.
const (
	RoleAdmin             = "admin"
	RoleProductionPlanner = "production_planner"
	RoleCommercial        = "commercial"
	RoleQualityInspector  = "quality_inspector"
)

// User is a platform account. Authentication lives outside the core; users are
// read here only to resolve role-targeted notification audiences.
type User struct {
	ID        string
	Name      string
	Roles     []string
	CreatedAt time.Time
}
