package service

import (
	"fmt"

	"github.com/shopspring/decimal"

	"github.com/ningxiarongchen-lgtm/project-ark-sub004/internal/errors"
	"github.com/ningxiarongchen-lgtm/project-ark-sub004/internal/repository"
)

// RouteDecision is the outcome of risk routing for a new purchase order.
type RouteDecision struct {
	NextStatus         repository.PurchaseOrderStatus
	Rationale          string
	NeedsAdminApproval bool
}

// RiskControl echoes the routing inputs and outcome back to the caller.
type RiskControl struct {
	IsPartnerSupplier  bool            `json:"isPartnerSupplier"`
	TotalAmount        decimal.Decimal `json:"totalAmount"`
	AmountThreshold    decimal.Decimal `json:"amountThreshold"`
	IsOverThreshold    bool            `json:"isOverThreshold"`
	NeedsAdminApproval bool            `json:"needsAdminApproval"`
}

// routingInput carries the facts a routing rule may inspect.
type routingInput struct {
	classification repository.SupplierClassification
	total          decimal.Decimal
	threshold      decimal.Decimal
}

// overThreshold is strict: a total exactly at the threshold is not over it.
func (in routingInput) overThreshold() bool {
	return in.total.GreaterThan(in.threshold)
}

// routingRule is one entry in the routing precedence list.
type routingRule struct {
	name    string
	matches func(routingInput) bool
	decide  func(routingInput) RouteDecision
}

// routingRules is evaluated in order; the first matching rule wins. This list
// is the single place the routing precedence lives — the approval service's
// precondition (pending_admin_approval as sole entry to the admin branch)
// relies on it.
var routingRules = []routingRule{
	{
		name: "partner_bypass",
		matches: func(in routingInput) bool {
			return in.classification == repository.SupplierPartner
		},
		decide: func(in routingInput) RouteDecision {
			return RouteDecision{
				NextStatus:         repository.POPendingCommercialReview,
				Rationale:          "partner supplier: admin approval bypassed regardless of amount",
				NeedsAdminApproval: false,
			}
		},
	},
	{
		name: "temporary_over_threshold",
		matches: func(in routingInput) bool {
			return in.classification == repository.SupplierTemporary && in.overThreshold()
		},
		decide: func(in routingInput) RouteDecision {
			return RouteDecision{
				NextStatus: repository.POPendingAdminApproval,
				Rationale: fmt.Sprintf("temporary supplier with total %s over threshold %s: admin approval required",
					in.total.String(), in.threshold.String()),
				NeedsAdminApproval: true,
			}
		},
	},
	{
		name: "temporary_within_threshold",
		matches: func(in routingInput) bool {
			return in.classification == repository.SupplierTemporary
		},
		decide: func(in routingInput) RouteDecision {
			return RouteDecision{
				NextStatus: repository.POPendingCommercialReview,
				Rationale: fmt.Sprintf("temporary supplier with total %s at or below threshold %s: no admin approval needed",
					in.total.String(), in.threshold.String()),
				NeedsAdminApproval: false,
			}
		},
	},
}

// DecideRoute returns the approval path for a new purchase order. Pure and
// side-effect free. Callers must validate the supplier classification before
// invoking; an unknown classification is still rejected here rather than
// falling through silently.
func DecideRoute(classification repository.SupplierClassification, total, threshold decimal.Decimal) (RouteDecision, error) {
	in := routingInput{classification: classification, total: total, threshold: threshold}

	for _, rule := range routingRules {
		if rule.matches(in) {
			return rule.decide(in), nil
		}
	}
	return RouteDecision{}, errors.InvalidInput("supplier_classification",
		fmt.Sprintf("unknown supplier classification %q", classification))
}

// BuildRiskControl assembles the response echo block for a routing decision.
func BuildRiskControl(classification repository.SupplierClassification, total, threshold decimal.Decimal, decision RouteDecision) RiskControl {
	return RiskControl{
		IsPartnerSupplier:  classification == repository.SupplierPartner,
		TotalAmount:        total,
		AmountThreshold:    threshold,
		IsOverThreshold:    total.GreaterThan(threshold),
		NeedsAdminApproval: decision.NeedsAdminApproval,
	}
}
