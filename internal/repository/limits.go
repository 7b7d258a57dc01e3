package repository

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"

	"github.com/shopspring/decimal"

	"github.com/greyfinance/limitguard/internal/domain"
	"github.com/greyfinance/limitguard/internal/limits"
)

// LimitRepository loads the configured limit set. It backs the TTL cache;
// the engine never reads it directly.
type LimitRepository struct {
	store *Store
}

var _ limits.Source = (*LimitRepository)(nil)

func NewLimitRepository(store *Store) *LimitRepository {
	return &LimitRepository{store: store}
}

// LoadActiveLimits reads all active customer and merchant limits.
func (r *LimitRepository) LoadActiveLimits(ctx context.Context) ([]domain.Limit, error) {
	customer, err := r.loadCustomerLimits(ctx)
	if err != nil {
		return nil, err
	}
	merchant, err := r.loadMerchantLimits(ctx)
	if err != nil {
		return nil, err
	}

	all := make([]domain.Limit, 0, len(customer)+len(merchant))
	for _, l := range customer {
		all = append(all, l)
	}
	for _, l := range merchant {
		all = append(all, l)
	}
	return all, nil
}

func (r *LimitRepository) loadCustomerLimits(ctx context.Context) ([]*domain.CustomerLimit, error) {
	query := `
		SELECT id, active, category, decline_on_exceed, is_critical,
		       slack_channel_override, notification_groups, period, customer_id,
		       min_operation_amount, max_operation_amount,
		       max_successful_operations, max_failed_operations,
		       total_successful_amount, updated_at
		FROM customer_limits
		WHERE active
	`
	rows, err := r.store.db.Query(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("query customer limits: %w", err)
	}
	defer rows.Close()

	var result []*domain.CustomerLimit
	for rows.Next() {
		var (
			l        domain.CustomerLimit
			override sql.NullString
			groups   []byte
			period   sql.NullString
			minOp    decimal.NullDecimal
			maxOp    decimal.NullDecimal
			maxSucc  sql.NullInt64
			maxFail  sql.NullInt64
			totSucc  decimal.NullDecimal
		)
		if err := rows.Scan(
			&l.ID, &l.Active, &l.Category, &l.DeclineOnExceed, &l.IsCritical,
			&override, &groups, &period, &l.CustomerID,
			&minOp, &maxOp, &maxSucc, &maxFail, &totSucc, &l.UpdatedAt,
		); err != nil {
			return nil, fmt.Errorf("scan customer limit: %w", err)
		}

		l.SlackChannelOverride = override.String
		l.Period = nullPeriod(period)
		l.MinOperationAmount = nullDec(minOp)
		l.MaxOperationAmount = nullDec(maxOp)
		l.MaxSuccessfulOperations = nullInt(maxSucc)
		l.MaxFailedOperations = nullInt(maxFail)
		l.TotalSuccessfulAmount = nullDec(totSucc)
		if err := unmarshalGroups(groups, &l.NotificationGroups); err != nil {
			return nil, fmt.Errorf("customer limit %s: %w", l.ID, err)
		}
		result = append(result, &l)
	}
	return result, rows.Err()
}

func (r *LimitRepository) loadMerchantLimits(ctx context.Context) ([]*domain.MerchantLimit, error) {
	query := `
		SELECT id, active, category, decline_on_exceed, is_critical,
		       slack_channel_override, notification_groups, period,
		       limit_type, scope, merchant_id, wallet_id,
		       min_amount, max_amount, max_operations,
		       max_overall_decline_percent, max_withdrawal_decline_percent,
		       max_deposit_decline_percent, total_amount, max_ratio,
		       burst_minutes, updated_at
		FROM merchant_limits
		WHERE active
	`
	rows, err := r.store.db.Query(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("query merchant limits: %w", err)
	}
	defer rows.Close()

	var result []*domain.MerchantLimit
	for rows.Next() {
		var (
			l        domain.MerchantLimit
			override sql.NullString
			groups   []byte
			period   sql.NullString
			minAmt   decimal.NullDecimal
			maxAmt   decimal.NullDecimal
			maxOps   sql.NullInt64
			overall  decimal.NullDecimal
			withdr   decimal.NullDecimal
			deposit  decimal.NullDecimal
			totAmt   decimal.NullDecimal
			maxRatio decimal.NullDecimal
			burst    sql.NullInt64
		)
		if err := rows.Scan(
			&l.ID, &l.Active, &l.Category, &l.DeclineOnExceed, &l.IsCritical,
			&override, &groups, &period,
			&l.LimitType, &l.Scope, &l.MerchantID, &l.WalletID,
			&minAmt, &maxAmt, &maxOps,
			&overall, &withdr, &deposit, &totAmt, &maxRatio,
			&burst, &l.UpdatedAt,
		); err != nil {
			return nil, fmt.Errorf("scan merchant limit: %w", err)
		}

		l.SlackChannelOverride = override.String
		l.Period = nullPeriod(period)
		l.MinAmount = nullDec(minAmt)
		l.MaxAmount = nullDec(maxAmt)
		l.MaxOperations = nullInt(maxOps)
		l.MaxOverallDeclinePercent = nullDec(overall)
		l.MaxWithdrawalDeclinePercent = nullDec(withdr)
		l.MaxDepositDeclinePercent = nullDec(deposit)
		l.TotalAmount = nullDec(totAmt)
		l.MaxRatio = nullDec(maxRatio)
		l.BurstMinutes = nullInt(burst)
		if err := unmarshalGroups(groups, &l.NotificationGroups); err != nil {
			return nil, fmt.Errorf("merchant limit %s: %w", l.ID, err)
		}
		result = append(result, &l)
	}
	return result, rows.Err()
}

func nullDec(v decimal.NullDecimal) *decimal.Decimal {
	if !v.Valid {
		return nil
	}
	d := v.Decimal
	return &d
}

func nullInt(v sql.NullInt64) *int64 {
	if !v.Valid {
		return nil
	}
	n := v.Int64
	return &n
}

func nullPeriod(v sql.NullString) *domain.Period {
	if !v.Valid || v.String == "" {
		return nil
	}
	p := domain.Period(v.String)
	return &p
}

func unmarshalGroups(raw []byte, dst *[]domain.GroupRef) error {
	if len(raw) == 0 {
		return nil
	}
	if err := json.Unmarshal(raw, dst); err != nil {
		return fmt.Errorf("decode notification groups: %w", err)
	}
	return nil
}
