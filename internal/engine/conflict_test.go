package engine

import (
	"fmt"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/greyfinance/limitguard/internal/domain"
)

func walletLimit(category domain.Category, limitType domain.LimitType, walletID uuid.UUID) *domain.MerchantLimit {
	l := merchantLimit(category, domain.ScopeWallet, uuid.New(), walletID)
	l.LimitType = limitType
	return l
}

func TestResolveConflictsRiskOverridesGlobalRisk(t *testing.T) {
	walletID := uuid.New()
	risk := walletLimit(domain.CategoryRisk, domain.LimitMaxOperationsBurst, walletID)
	global := walletLimit(domain.CategoryGlobalRisk, domain.LimitMaxOperationsBurst, walletID)

	kept, removals := resolveConflicts([]domain.Limit{risk, global})

	require.Len(t, kept, 1)
	assert.Same(t, risk, kept[0])
	require.Len(t, removals, 1)
	assert.Same(t, global, removals[0].Limit)
	assert.Equal(t, "risk_over_global_risk", removals[0].Stage)
	assert.Equal(t,
		fmt.Sprintf("overridden by risk limit of same type (%s)", domain.LimitMaxOperationsBurst),
		removals[0].Reason)
}

func TestResolveConflictsGlobalRiskSurvivesDifferentType(t *testing.T) {
	walletID := uuid.New()
	risk := walletLimit(domain.CategoryRisk, domain.LimitMaxOperationsBurst, walletID)
	global := walletLimit(domain.CategoryGlobalRisk, domain.LimitMaxWithdrawalToDepositRatio, walletID)

	kept, removals := resolveConflicts([]domain.Limit{risk, global})

	assert.Len(t, kept, 2)
	assert.Empty(t, removals)
}

func TestResolveConflictsMerchantScopeGlobalRiskUnaffected(t *testing.T) {
	walletID := uuid.New()
	risk := walletLimit(domain.CategoryRisk, domain.LimitMaxOperationsBurst, walletID)
	global := merchantLimit(domain.CategoryGlobalRisk, domain.ScopeMerchant, uuid.New(), uuid.Nil)
	global.LimitType = domain.LimitMaxOperationsBurst

	kept, removals := resolveConflicts([]domain.Limit{risk, global})

	assert.Len(t, kept, 2)
	assert.Empty(t, removals)
}

func TestResolveConflictsCustomerBoundsSupersedeMerchantSingleOperation(t *testing.T) {
	customer := customerLimit(uuid.New(), domain.CategoryBusiness)
	customer.MinOperationAmount = dec("5.00")
	customer.MaxOperationAmount = dec("500.00")

	minLimit := walletLimit(domain.CategoryBusiness, domain.LimitMinAmountSingleOperation, uuid.New())
	maxLimit := walletLimit(domain.CategoryBusiness, domain.LimitMaxAmountSingleOperation, uuid.New())
	burst := walletLimit(domain.CategoryBusiness, domain.LimitMaxOperationsBurst, uuid.New())

	kept, removals := resolveConflicts([]domain.Limit{customer, minLimit, maxLimit, burst})

	require.Len(t, kept, 2)
	assert.Same(t, customer, kept[0])
	assert.Same(t, burst, kept[1])

	require.Len(t, removals, 2)
	for _, removal := range removals {
		assert.Equal(t, "customer_operation_bounds", removal.Stage)
	}
	assert.Equal(t, "superseded by customer limit with min_operation_amount", removals[0].Reason)
	assert.Equal(t, "superseded by customer limit with max_operation_amount", removals[1].Reason)
}

func TestResolveConflictsCustomerMinOnlyKeepsMerchantMax(t *testing.T) {
	customer := customerLimit(uuid.New(), domain.CategoryBusiness)
	customer.MinOperationAmount = dec("5.00")

	minLimit := walletLimit(domain.CategoryBusiness, domain.LimitMinAmountSingleOperation, uuid.New())
	maxLimit := walletLimit(domain.CategoryBusiness, domain.LimitMaxAmountSingleOperation, uuid.New())

	kept, removals := resolveConflicts([]domain.Limit{customer, minLimit, maxLimit})

	require.Len(t, kept, 2)
	assert.Same(t, maxLimit, kept[1])
	require.Len(t, removals, 1)
	assert.Same(t, minLimit, removals[0].Limit)
}

func TestResolveConflictsCustomerWithoutBoundsRemovesNothing(t *testing.T) {
	customer := customerLimit(uuid.New(), domain.CategoryBusiness)
	customer.MaxSuccessfulOperations = i64(10)

	minLimit := walletLimit(domain.CategoryBusiness, domain.LimitMinAmountSingleOperation, uuid.New())

	kept, removals := resolveConflicts([]domain.Limit{customer, minLimit})

	assert.Len(t, kept, 2)
	assert.Empty(t, removals)
}

// The second pass must run on the output of the first: a global-risk
// MIN_AMOUNT limit overridden in pass one never reaches pass two.
func TestResolveConflictsStagesRunInOrder(t *testing.T) {
	walletID := uuid.New()
	customer := customerLimit(uuid.New(), domain.CategoryBusiness)
	customer.MinOperationAmount = dec("5.00")

	risk := walletLimit(domain.CategoryRisk, domain.LimitMinAmountSingleOperation, walletID)
	global := walletLimit(domain.CategoryGlobalRisk, domain.LimitMinAmountSingleOperation, walletID)

	kept, removals := resolveConflicts([]domain.Limit{customer, risk, global})

	require.Len(t, kept, 1)
	assert.Same(t, customer, kept[0])

	require.Len(t, removals, 2)
	assert.Equal(t, "risk_over_global_risk", removals[0].Stage)
	assert.Same(t, global, removals[0].Limit)
	assert.Equal(t, "customer_operation_bounds", removals[1].Stage)
	assert.Same(t, risk, removals[1].Limit)
}
