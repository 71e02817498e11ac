package handler

import (
	"context"
	"encoding/json"
	stderrors "errors"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog"

	"github.com/ningxiarongchen-lgtm/project-ark-sub004/internal/auth"
	"github.com/ningxiarongchen-lgtm/project-ark-sub004/internal/errors"
	"github.com/ningxiarongchen-lgtm/project-ark-sub004/internal/repository"
	"github.com/ningxiarongchen-lgtm/project-ark-sub004/internal/service"
)

// SupplierDirectory is the supplier surface the handler needs.
type SupplierDirectory interface {
	Create(ctx context.Context, supplier *repository.Supplier) error
	GetByID(ctx context.Context, id string) (*repository.Supplier, error)
	List(ctx context.Context) ([]*repository.Supplier, error)
}

// NotificationInbox is the per-user notification surface the handler needs.
type NotificationInbox interface {
	ListByRecipient(ctx context.Context, recipientID string, unreadOnly bool) ([]*repository.Notification, error)
	MarkRead(ctx context.Context, id, recipientID string) error
}

// HTTPHandler handles HTTP requests for the workflow core.
type HTTPHandler struct {
	purchaseOrders   *service.PurchaseOrderService
	productionOrders *service.ProductionOrderService
	approvals        *service.ApprovalService
	quality          *service.QualityGateService
	suppliers        SupplierDirectory
	inbox            NotificationInbox
	log              zerolog.Logger
}

// NewHTTPHandler creates a new HTTP handler.
func NewHTTPHandler(
	purchaseOrders *service.PurchaseOrderService,
	productionOrders *service.ProductionOrderService,
	approvals *service.ApprovalService,
	quality *service.QualityGateService,
	suppliers SupplierDirectory,
	inbox NotificationInbox,
	log zerolog.Logger,
) *HTTPHandler {
	return &HTTPHandler{
		purchaseOrders:   purchaseOrders,
		productionOrders: productionOrders,
		approvals:        approvals,
		quality:          quality,
		suppliers:        suppliers,
		inbox:            inbox,
		log:              log,
	}
}

// Routes registers all authenticated routes on the router.
func (h *HTTPHandler) Routes(r chi.Router) {
	r.Route("/purchase-orders", func(r chi.Router) {
		r.Post("/", h.CreatePurchaseOrder)
		r.Get("/", h.ListPurchaseOrders)
		r.Get("/{id}", h.GetPurchaseOrder)
		r.Put("/{id}", h.UpdatePurchaseOrder)
		r.Patch("/{id}/status", h.UpdatePurchaseOrderStatus)
		r.Post("/{id}/receive", h.ReceivePurchaseOrder)
		r.Patch("/{id}/quality-check", h.AdvancePurchaseOrderCheck)

		r.With(auth.RequireRole(repository.RoleAdmin)).Post("/{id}/admin-approve", h.AdminApprove)
		r.With(auth.RequireRole(repository.RoleAdmin)).Post("/{id}/admin-reject", h.AdminReject)
	})

	r.Route("/production-orders", func(r chi.Router) {
		r.Post("/", h.CreateProductionOrder)
		r.Get("/", h.ListProductionOrders)
		r.Get("/{id}", h.GetProductionOrder)
		r.Patch("/{id}/status", h.UpdateProductionOrderStatus)
		r.Post("/{id}/finish", h.FinishProduction)
	})

	r.Route("/quality-checks", func(r chi.Router) {
		r.Get("/", h.ListQualityChecks)
		r.Get("/{id}", h.GetQualityCheck)
		r.Post("/{id}/complete", h.CompleteQualityCheck)
	})

	r.Route("/suppliers", func(r chi.Router) {
		r.Post("/", h.CreateSupplier)
		r.Get("/", h.ListSuppliers)
	})

	r.Route("/notifications", func(r chi.Router) {
		r.Get("/", h.ListNotifications)
		r.Post("/{id}/read", h.MarkNotificationRead)
	})
}

// ── Purchase orders ──────────────────────────────────────────────────────────

// CreatePurchaseOrder handles POST /purchase-orders.
func (h *HTTPHandler) CreatePurchaseOrder(w http.ResponseWriter, r *http.Request) {
	var req service.CreatePurchaseOrderRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, errors.InvalidInput("body", "invalid request body"))
		return
	}

	result, err := h.purchaseOrders.Create(r.Context(), &req, auth.FromContext(r.Context()))
	if err != nil {
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusCreated, map[string]any{
		"order":       result.Order,
		"status":      result.Order.Status,
		"riskControl": result.RiskControl,
	})
}

// GetPurchaseOrder handles GET /purchase-orders/{id}.
func (h *HTTPHandler) GetPurchaseOrder(w http.ResponseWriter, r *http.Request) {
	order, err := h.purchaseOrders.Get(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, order)
}

// ListPurchaseOrders handles GET /purchase-orders.
func (h *HTTPHandler) ListPurchaseOrders(w http.ResponseWriter, r *http.Request) {
	var status *repository.PurchaseOrderStatus
	if s := r.URL.Query().Get("status"); s != "" {
		v := repository.PurchaseOrderStatus(s)
		status = &v
	}

	orders, err := h.purchaseOrders.List(r.Context(), status)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"orders": orders, "total": len(orders)})
}

// UpdatePurchaseOrder handles PUT /purchase-orders/{id}. The readiness
// cascade runs in the background after the write; the response never waits.
func (h *HTTPHandler) UpdatePurchaseOrder(w http.ResponseWriter, r *http.Request) {
	var req service.UpdateLinesRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, errors.InvalidInput("body", "invalid request body"))
		return
	}

	order, err := h.purchaseOrders.Update(r.Context(), chi.URLParam(r, "id"), &req)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, order)
}

// UpdatePurchaseOrderStatus handles PATCH /purchase-orders/{id}/status.
func (h *HTTPHandler) UpdatePurchaseOrderStatus(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Status repository.PurchaseOrderStatus `json:"status"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, errors.InvalidInput("body", "invalid request body"))
		return
	}
	if req.Status == "" {
		writeError(w, errors.InvalidInput("status", "status is required"))
		return
	}

	order, err := h.purchaseOrders.UpdateStatus(r.Context(), chi.URLParam(r, "id"), req.Status)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, order)
}

// ReceivePurchaseOrder handles POST /purchase-orders/{id}/receive.
func (h *HTTPHandler) ReceivePurchaseOrder(w http.ResponseWriter, r *http.Request) {
	order, check, err := h.purchaseOrders.Receive(r.Context(), chi.URLParam(r, "id"), auth.FromContext(r.Context()))
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"order": order, "qualityCheck": check})
}

// AdvancePurchaseOrderCheck handles PATCH /purchase-orders/{id}/quality-check.
func (h *HTTPHandler) AdvancePurchaseOrderCheck(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Checklist []repository.ChecklistItem `json:"checklist"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, errors.InvalidInput("body", "invalid request body"))
		return
	}

	check, err := h.quality.AdvanceForPurchaseOrder(r.Context(), chi.URLParam(r, "id"), auth.FromContext(r.Context()), req.Checklist)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, check)
}

// AdminApprove handles POST /purchase-orders/{id}/admin-approve.
func (h *HTTPHandler) AdminApprove(w http.ResponseWriter, r *http.Request) {
	order, err := h.approvals.Approve(r.Context(), chi.URLParam(r, "id"), auth.FromContext(r.Context()))
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, order)
}

// AdminReject handles POST /purchase-orders/{id}/admin-reject.
func (h *HTTPHandler) AdminReject(w http.ResponseWriter, r *http.Request) {
	var req struct {
		RejectionReason string `json:"rejection_reason"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, errors.InvalidInput("body", "invalid request body"))
		return
	}

	order, err := h.approvals.Reject(r.Context(), chi.URLParam(r, "id"), auth.FromContext(r.Context()), req.RejectionReason)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, order)
}

// ── Production orders ────────────────────────────────────────────────────────

// CreateProductionOrder handles POST /production-orders.
func (h *HTTPHandler) CreateProductionOrder(w http.ResponseWriter, r *http.Request) {
	var req service.CreateProductionOrderRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, errors.InvalidInput("body", "invalid request body"))
		return
	}

	order, err := h.productionOrders.Create(r.Context(), &req, auth.FromContext(r.Context()))
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, order)
}

// GetProductionOrder handles GET /production-orders/{id}.
func (h *HTTPHandler) GetProductionOrder(w http.ResponseWriter, r *http.Request) {
	order, err := h.productionOrders.Get(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, order)
}

// ListProductionOrders handles GET /production-orders.
func (h *HTTPHandler) ListProductionOrders(w http.ResponseWriter, r *http.Request) {
	orders, err := h.productionOrders.List(r.Context())
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"orders": orders, "total": len(orders)})
}

// UpdateProductionOrderStatus handles PATCH /production-orders/{id}/status.
func (h *HTTPHandler) UpdateProductionOrderStatus(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Status repository.ProductionOrderStatus `json:"status"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, errors.InvalidInput("body", "invalid request body"))
		return
	}
	if req.Status == "" {
		writeError(w, errors.InvalidInput("status", "status is required"))
		return
	}

	order, err := h.productionOrders.UpdateStatus(r.Context(), chi.URLParam(r, "id"), req.Status)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, order)
}

// FinishProduction handles POST /production-orders/{id}/finish.
func (h *HTTPHandler) FinishProduction(w http.ResponseWriter, r *http.Request) {
	check, err := h.productionOrders.FinishProduction(r.Context(), chi.URLParam(r, "id"), auth.FromContext(r.Context()))
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"qualityCheck": check})
}

// ── Quality checks ───────────────────────────────────────────────────────────

// GetQualityCheck handles GET /quality-checks/{id}.
func (h *HTTPHandler) GetQualityCheck(w http.ResponseWriter, r *http.Request) {
	check, err := h.quality.Get(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, check)
}

// ListQualityChecks handles GET /quality-checks.
func (h *HTTPHandler) ListQualityChecks(w http.ResponseWriter, r *http.Request) {
	checks, err := h.quality.List(r.Context())
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"checks": checks, "total": len(checks)})
}

// CompleteQualityCheck handles POST /quality-checks/{id}/complete.
func (h *HTTPHandler) CompleteQualityCheck(w http.ResponseWriter, r *http.Request) {
	var req struct {
		OverallResult repository.QualityResult   `json:"overall_result"`
		Checklist     []repository.ChecklistItem `json:"checklist"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, errors.InvalidInput("body", "invalid request body"))
		return
	}

	check, err := h.quality.Complete(r.Context(), chi.URLParam(r, "id"), auth.FromContext(r.Context()), req.Checklist, req.OverallResult)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, check)
}

// ── Suppliers ────────────────────────────────────────────────────────────────

// CreateSupplier handles POST /suppliers.
func (h *HTTPHandler) CreateSupplier(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Name           string                            `json:"name"`
		Classification repository.SupplierClassification `json:"classification"`
		ContactName    *string                           `json:"contact_name,omitempty"`
		ContactPhone   *string                           `json:"contact_phone,omitempty"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, errors.InvalidInput("body", "invalid request body"))
		return
	}
	if req.Name == "" {
		writeError(w, errors.InvalidInput("name", "supplier name is required"))
		return
	}
	if !req.Classification.Valid() {
		writeError(w, errors.InvalidInput("classification", "classification must be partner or temporary"))
		return
	}

	supplier := &repository.Supplier{
		Name:           req.Name,
		Classification: req.Classification,
		ContactName:    req.ContactName,
		ContactPhone:   req.ContactPhone,
	}
	if err := h.suppliers.Create(r.Context(), supplier); err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, supplier)
}

// ListSuppliers handles GET /suppliers.
func (h *HTTPHandler) ListSuppliers(w http.ResponseWriter, r *http.Request) {
	suppliers, err := h.suppliers.List(r.Context())
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"suppliers": suppliers, "total": len(suppliers)})
}

// ── Notifications ────────────────────────────────────────────────────────────

// ListNotifications handles GET /notifications for the acting user.
func (h *HTTPHandler) ListNotifications(w http.ResponseWriter, r *http.Request) {
	actor := auth.FromContext(r.Context())
	unreadOnly := r.URL.Query().Get("unread") == "true"

	notifications, err := h.inbox.ListByRecipient(r.Context(), actor.ID, unreadOnly)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"notifications": notifications, "total": len(notifications)})
}

// MarkNotificationRead handles POST /notifications/{id}/read.
func (h *HTTPHandler) MarkNotificationRead(w http.ResponseWriter, r *http.Request) {
	actor := auth.FromContext(r.Context())
	if err := h.inbox.MarkRead(r.Context(), chi.URLParam(r, "id"), actor.ID); err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "read"})
}

// ── helpers ──────────────────────────────────────────────────────────────────

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, err error) {
	body := map[string]any{
		"error": err.Error(),
		"code":  errors.Code(err),
	}
	var appErr *errors.AppError
	if stderrors.As(err, &appErr) && appErr.Field != "" {
		body["field"] = appErr.Field
	}
	writeJSON(w, errors.HTTPStatus(err), body)
}
