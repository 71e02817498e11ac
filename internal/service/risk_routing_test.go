package service

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ningxiarongchen-lgtm/project-ark-sub004/internal/errors"
	"github.com/ningxiarongchen-lgtm/project-ark-sub004/internal/repository"
)

func TestDecideRoute(t *testing.T) {
	threshold := decimal.NewFromInt(100000)

	tests := []struct {
		name           string
		classification repository.SupplierClassification
		total          decimal.Decimal
		wantStatus     repository.PurchaseOrderStatus
		wantApproval   bool
	}{
		{
			name:           "partner small order bypasses admin approval",
			classification: repository.SupplierPartner,
			total:          decimal.NewFromInt(500),
			wantStatus:     repository.POPendingCommercialReview,
			wantApproval:   false,
		},
		{
			name:           "partner far over threshold still bypasses admin approval",
			classification: repository.SupplierPartner,
			total:          decimal.NewFromInt(500000),
			wantStatus:     repository.POPendingCommercialReview,
			wantApproval:   false,
		},
		{
			name:           "temporary under threshold goes to commercial review",
			classification: repository.SupplierTemporary,
			total:          decimal.RequireFromString("99999.99"),
			wantStatus:     repository.POPendingCommercialReview,
			wantApproval:   false,
		},
		{
			name:           "temporary exactly at threshold does not need approval",
			classification: repository.SupplierTemporary,
			total:          decimal.NewFromInt(100000),
			wantStatus:     repository.POPendingCommercialReview,
			wantApproval:   false,
		},
		{
			name:           "temporary one cent over threshold needs approval",
			classification: repository.SupplierTemporary,
			total:          decimal.RequireFromString("100000.01"),
			wantStatus:     repository.POPendingAdminApproval,
			wantApproval:   true,
		},
		{
			name:           "temporary far over threshold needs approval",
			classification: repository.SupplierTemporary,
			total:          decimal.NewFromInt(500000),
			wantStatus:     repository.POPendingAdminApproval,
			wantApproval:   true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			decision, err := DecideRoute(tt.classification, tt.total, threshold)
			require.NoError(t, err)
			assert.Equal(t, tt.wantStatus, decision.NextStatus)
			assert.Equal(t, tt.wantApproval, decision.NeedsAdminApproval)
			assert.NotEmpty(t, decision.Rationale)
		})
	}
}

func TestDecideRouteUnknownClassification(t *testing.T) {
	_, err := DecideRoute("blacklisted", decimal.NewFromInt(10), decimal.NewFromInt(100000))
	require.Error(t, err)
	assert.Equal(t, errors.ErrCodeInvalidInput, errors.Code(err))
}

func TestBuildRiskControl(t *testing.T) {
	threshold := decimal.NewFromInt(100000)
	total := decimal.NewFromInt(500000)

	decision, err := DecideRoute(repository.SupplierPartner, total, threshold)
	require.NoError(t, err)

	rc := BuildRiskControl(repository.SupplierPartner, total, threshold, decision)
	assert.True(t, rc.IsPartnerSupplier)
	assert.True(t, rc.IsOverThreshold)
	assert.False(t, rc.NeedsAdminApproval)
	assert.True(t, rc.TotalAmount.Equal(total))
	assert.True(t, rc.AmountThreshold.Equal(threshold))

	decision, err = DecideRoute(repository.SupplierTemporary, total, threshold)
	require.NoError(t, err)

	rc = BuildRiskControl(repository.SupplierTemporary, total, threshold, decision)
	assert.False(t, rc.IsPartnerSupplier)
	assert.True(t, rc.IsOverThreshold)
	assert.True(t, rc.NeedsAdminApproval)
}
