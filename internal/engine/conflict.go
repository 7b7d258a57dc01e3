package engine

import (
	"fmt"

	"github.com/greyfinance/limitguard/internal/domain"
)

// Removal records a limit dropped by the conflict resolver, for audit
// logging.
type Removal struct {
	Limit  domain.Limit
	Stage  string
	Reason string
}

// conflictStage is one pure pass over the surviving limit set.
type conflictStage struct {
	name  string
	apply func(limits []domain.Limit) ([]domain.Limit, []Removal)
}

// conflictPipeline runs in fixed order: the customer operation-bound pass
// operates on the output of the risk precedence pass.
var conflictPipeline = []conflictStage{
	{name: "risk_over_global_risk", apply: resolveRiskOverGlobalRisk},
	{name: "customer_operation_bounds", apply: resolveCustomerOperationBounds},
}

// resolveConflicts removes limits superseded by higher-precedence limits
// before evaluation.
func resolveConflicts(limits []domain.Limit) ([]domain.Limit, []Removal) {
	var removals []Removal
	for _, stage := range conflictPipeline {
		var removed []Removal
		limits, removed = stage.apply(limits)
		for i := range removed {
			removed[i].Stage = stage.name
		}
		removals = append(removals, removed...)
	}
	return limits, removals
}

// resolveRiskOverGlobalRisk drops every wallet-scope GLOBAL_RISK limit whose
// limit type is also covered by a wallet-scope RISK limit.
func resolveRiskOverGlobalRisk(limits []domain.Limit) ([]domain.Limit, []Removal) {
	riskTypes := make(map[domain.LimitType]struct{})
	for _, l := range limits {
		if m, ok := l.(*domain.MerchantLimit); ok &&
			m.Scope == domain.ScopeWallet && m.Category == domain.CategoryRisk {
			riskTypes[m.LimitType] = struct{}{}
		}
	}
	if len(riskTypes) == 0 {
		return limits, nil
	}

	var kept []domain.Limit
	var removals []Removal
	for _, l := range limits {
		m, ok := l.(*domain.MerchantLimit)
		if ok && m.Scope == domain.ScopeWallet && m.Category == domain.CategoryGlobalRisk {
			if _, overridden := riskTypes[m.LimitType]; overridden {
				removals = append(removals, Removal{
					Limit:  l,
					Reason: fmt.Sprintf("overridden by risk limit of same type (%s)", m.LimitType),
				})
				continue
			}
		}
		kept = append(kept, l)
	}
	return kept, removals
}

// resolveCustomerOperationBounds gives customer per-operation bounds
// precedence over the merchant single-operation limits of the same kind.
func resolveCustomerOperationBounds(limits []domain.Limit) ([]domain.Limit, []Removal) {
	var customerHasMin, customerHasMax bool
	for _, l := range limits {
		if c, ok := l.(*domain.CustomerLimit); ok {
			customerHasMin = customerHasMin || c.MinOperationAmount != nil
			customerHasMax = customerHasMax || c.MaxOperationAmount != nil
		}
	}
	if !customerHasMin && !customerHasMax {
		return limits, nil
	}

	var kept []domain.Limit
	var removals []Removal
	for _, l := range limits {
		if m, ok := l.(*domain.MerchantLimit); ok {
			if customerHasMin && m.LimitType == domain.LimitMinAmountSingleOperation {
				removals = append(removals, Removal{
					Limit:  l,
					Reason: "superseded by customer limit with min_operation_amount",
				})
				continue
			}
			if customerHasMax && m.LimitType == domain.LimitMaxAmountSingleOperation {
				removals = append(removals, Removal{
					Limit:  l,
					Reason: "superseded by customer limit with max_operation_amount",
				})
				continue
			}
		}
		kept = append(kept, l)
	}
	return kept, removals
}
