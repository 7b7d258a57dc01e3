package engine

import (
	"context"
	"fmt"

	"github.com/google/uuid"

	"github.com/greyfinance/limitguard/internal/domain"
)

// Skip records a limit that was filtered out before evaluation, with a
// human-readable reason for the structured skip log.
type Skip struct {
	Limit  domain.Limit
	Reason string
}

// grayListMemo evaluates the gray-list oracle lazily and at most once per
// transaction; every RISK customer limit in the pass reuses the result.
type grayListMemo struct {
	oracle  GrayList
	checked bool
	member  bool
}

func (m *grayListMemo) isMember(ctx context.Context, customerID uuid.UUID) (bool, error) {
	if m.checked {
		return m.member, nil
	}
	member, err := m.oracle.IsInGrayList(ctx, customerID)
	if err != nil {
		return false, fmt.Errorf("gray-list lookup for customer %s: %w", customerID, err)
	}
	m.checked = true
	m.member = member
	return member, nil
}

// shouldCheckCustomerLimit decides whether a customer limit is eligible for
// evaluation against the transaction.
func shouldCheckCustomerLimit(ctx context.Context, l *domain.CustomerLimit, trx *domain.Transaction, gray *grayListMemo) (bool, string, error) {
	if trx.Customer == nil {
		return false, "transaction has no customer", nil
	}
	if trx.Customer.ID != l.CustomerID {
		return false, fmt.Sprintf("limit belongs to customer %s, not %s", l.CustomerID, trx.Customer.ID), nil
	}

	switch l.Category {
	case domain.CategoryBusiness:
		return true, "", nil
	case domain.CategoryRisk:
		if !trx.Customer.RiskControlEnabled {
			return false, "risk control disabled for customer", nil
		}
		member, err := gray.isMember(ctx, trx.Customer.ID)
		if err != nil {
			return false, "", err
		}
		if !member {
			return false, "customer is not gray-listed", nil
		}
		return true, "", nil
	default:
		return false, "", fmt.Errorf("limit %s: unknown customer limit category %q: %w", l.ID, l.Category, domain.ErrLimitConfig)
	}
}

// shouldCheckMerchantLimit decides whether a merchant limit is eligible for
// evaluation against the transaction.
func shouldCheckMerchantLimit(l *domain.MerchantLimit, trx *domain.Transaction) (bool, string, error) {
	switch l.Scope {
	case domain.ScopeMerchant:
		if l.MerchantID != trx.Merchant.ID {
			return false, fmt.Sprintf("limit belongs to merchant %s, not %s", l.MerchantID, trx.Merchant.ID), nil
		}
	case domain.ScopeWallet:
		if l.WalletID != trx.Wallet.ID {
			return false, fmt.Sprintf("limit belongs to wallet %s, not %s", l.WalletID, trx.Wallet.ID), nil
		}
	default:
		return false, "", fmt.Errorf("limit %s: unknown scope %q: %w", l.ID, l.Scope, domain.ErrLimitConfig)
	}

	switch l.Category {
	case domain.CategoryBusiness:
		return true, "", nil
	case domain.CategoryRisk, domain.CategoryGlobalRisk:
		riskControlled := trx.Merchant.RiskControlEnabled
		if l.Scope == domain.ScopeWallet {
			riskControlled = trx.Wallet.RiskControlEnabled
		}
		if !riskControlled {
			if l.Category == domain.CategoryGlobalRisk {
				return false, fmt.Sprintf("global risk control disabled for %s", l.ScopeLabel()), nil
			}
			return false, fmt.Sprintf("risk control disabled for %s", l.ScopeLabel()), nil
		}
		return true, "", nil
	default:
		return false, "", fmt.Errorf("limit %s: unknown merchant limit category %q: %w", l.ID, l.Category, domain.ErrLimitConfig)
	}
}

// filterApplicable partitions the active limit set into limits to evaluate
// and skipped limits. Skips are not errors; unknown categories and scopes
// are.
func filterApplicable(ctx context.Context, limits []domain.Limit, trx *domain.Transaction, oracle GrayList) ([]domain.Limit, []Skip, error) {
	gray := &grayListMemo{oracle: oracle}

	var applicable []domain.Limit
	var skips []Skip
	for _, l := range limits {
		var (
			check  bool
			reason string
			err    error
		)
		switch lim := l.(type) {
		case *domain.CustomerLimit:
			check, reason, err = shouldCheckCustomerLimit(ctx, lim, trx, gray)
		case *domain.MerchantLimit:
			check, reason, err = shouldCheckMerchantLimit(lim, trx)
		default:
			err = fmt.Errorf("unknown limit kind %T: %w", l, domain.ErrLimitConfig)
		}
		if err != nil {
			return nil, nil, err
		}
		if !check {
			skips = append(skips, Skip{Limit: l, Reason: reason})
			continue
		}
		applicable = append(applicable, l)
	}
	return applicable, skips, nil
}
