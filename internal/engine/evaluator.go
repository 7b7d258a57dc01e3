package engine

import (
	"context"
	"fmt"
	"time"

	"github.com/shopspring/decimal"

	"github.com/greyfinance/limitguard/internal/domain"
)

// Trigger data keys. Each key maps to the human-readable description of the
// exceeded threshold; merchant triggers additionally carry a "scope" key.
const (
	keyMinSingleOperation    = "Minimum amount for a single operation"
	keyMaxSingleOperation    = "Maximum amount for a single operation"
	keyMaxSuccessfulOps      = "Maximum number of successful operations"
	keyMaxFailedOps          = "Maximum number of failed operations"
	keyTotalSuccessful       = "Total successful amount"
	keyMaxOperationsBurst    = "Maximum operations in burst window"
	keyMaxSuccessfulDeposits = "Maximum number of successful deposits"
	keyOverallDecline        = "Maximum overall decline percent"
	keyWithdrawalDecline     = "Maximum withdrawal decline percent"
	keyDepositDecline        = "Maximum deposit decline percent"
	keyTotalDeposits         = "Total amount of deposits for period"
	keyTotalWithdrawals      = "Total amount of withdrawals for period"
	keyWithdrawalRatio       = "Maximum withdrawal to deposit ratio"
	keyScope                 = "scope"
)

// settledStatuses is the status population for windowed aggregates.
var settledStatuses = []domain.TxStatus{domain.TxStatusSuccess, domain.TxStatusFailed}

// evaluator computes windowed aggregates and applies per-type trigger
// formulas. It holds no per-transaction state.
type evaluator struct {
	querier TransactionQuerier
}

// evaluateLimit returns the trigger data for the limit, or an empty map when
// the limit did not trigger. Multiple thresholds of one limit may co-trigger.
func (e *evaluator) evaluateLimit(ctx context.Context, l domain.Limit, trx *domain.Transaction) (map[string]string, error) {
	switch lim := l.(type) {
	case *domain.CustomerLimit:
		return e.evaluateCustomerLimit(ctx, lim, trx)
	case *domain.MerchantLimit:
		return e.evaluateMerchantLimit(ctx, lim, trx)
	default:
		return nil, fmt.Errorf("unknown limit kind %T: %w", l, domain.ErrLimitConfig)
	}
}

func (e *evaluator) evaluateCustomerLimit(ctx context.Context, l *domain.CustomerLimit, trx *domain.Transaction) (map[string]string, error) {
	triggers := make(map[string]string)

	if l.MinOperationAmount != nil && trx.Amount.LessThan(*l.MinOperationAmount) {
		triggers[keyMinSingleOperation] = fmt.Sprintf(
			"Transaction amount %s is less than limit %s",
			domain.FormatAmount(trx.Amount), domain.FormatAmount(*l.MinOperationAmount))
	}
	if l.MaxOperationAmount != nil && trx.Amount.GreaterThan(*l.MaxOperationAmount) {
		triggers[keyMaxSingleOperation] = fmt.Sprintf(
			"Transaction amount %s is greater than limit %s",
			domain.FormatAmount(trx.Amount), domain.FormatAmount(*l.MaxOperationAmount))
	}

	if l.Period == nil {
		return triggers, nil
	}

	window, err := PeriodWindow(*l.Period, trx.CreatedAt)
	if err != nil {
		return nil, err
	}
	records, err := e.querier.QueryTransactions(ctx, TransactionFilter{
		CustomerID: &l.CustomerID,
		Statuses:   settledStatuses,
		From:       window.Start,
		To:         window.End,
	})
	if err != nil {
		return nil, fmt.Errorf("query customer %s transactions: %w", l.CustomerID, err)
	}

	succeeded := countByStatus(records, domain.TxStatusSuccess)
	failed := countByStatus(records, domain.TxStatusFailed)

	if l.MaxSuccessfulOperations != nil && succeeded >= *l.MaxSuccessfulOperations {
		triggers[keyMaxSuccessfulOps] = fmt.Sprintf(
			"Number of successful operations %d has exceeded limit %d",
			succeeded, *l.MaxSuccessfulOperations)
	}
	if l.MaxFailedOperations != nil && failed >= *l.MaxFailedOperations {
		triggers[keyMaxFailedOps] = fmt.Sprintf(
			"Number of failed operations %d has exceeded limit %d",
			failed, *l.MaxFailedOperations)
	}
	if l.TotalSuccessfulAmount != nil {
		// The current transaction is not settled yet, so the stored sum
		// excludes it; the prospective total includes it.
		sum := sumAmounts(records, domain.TxStatusSuccess, "")
		if sum.Add(trx.Amount).GreaterThan(*l.TotalSuccessfulAmount) {
			triggers[keyTotalSuccessful] = fmt.Sprintf(
				"Total successful amount %s with transaction amount %s is greater than limit %s",
				domain.FormatAmount(sum), domain.FormatAmount(trx.Amount),
				domain.FormatAmount(*l.TotalSuccessfulAmount))
		}
	}

	return triggers, nil
}

// merchantEvalFunc evaluates one merchant limit type.
type merchantEvalFunc func(ctx context.Context, e *evaluator, l *domain.MerchantLimit, trx *domain.Transaction) (map[string]string, error)

// merchantEvaluators is the closed dispatch table over merchant limit
// types; adding a type means adding one entry here.
var merchantEvaluators = map[domain.LimitType]merchantEvalFunc{
	domain.LimitMinAmountSingleOperation:     evalMinAmountSingleOperation,
	domain.LimitMaxAmountSingleOperation:     evalMaxAmountSingleOperation,
	domain.LimitMaxOperationsBurst:           evalMaxOperationsBurst,
	domain.LimitMaxSuccessfulDeposits:        evalMaxSuccessfulDeposits,
	domain.LimitMaxOverallDeclinePercent:     evalOverallDeclinePercent,
	domain.LimitMaxWithdrawalDeclinePercent:  evalWithdrawalDeclinePercent,
	domain.LimitMaxDepositDeclinePercent:     evalDepositDeclinePercent,
	domain.LimitTotalAmountDepositsPeriod:    evalTotalDepositsPeriod,
	domain.LimitTotalAmountWithdrawalsPeriod: evalTotalWithdrawalsPeriod,
	domain.LimitMaxWithdrawalToDepositRatio:  evalWithdrawalToDepositRatio,
}

func (e *evaluator) evaluateMerchantLimit(ctx context.Context, l *domain.MerchantLimit, trx *domain.Transaction) (map[string]string, error) {
	eval, ok := merchantEvaluators[l.LimitType]
	if !ok {
		return nil, fmt.Errorf("limit %s: unknown merchant limit type %q: %w", l.ID, l.LimitType, domain.ErrLimitConfig)
	}

	triggers, err := eval(ctx, e, l, trx)
	if err != nil {
		return nil, err
	}
	if len(triggers) > 0 {
		triggers[keyScope] = l.ScopeLabel()
	}
	return triggers, nil
}

// scopeFilter selects the limit's transaction population: all wallets under
// the merchant for MERCHANT scope, the single wallet for WALLET scope.
func scopeFilter(l *domain.MerchantLimit) (TransactionFilter, error) {
	switch l.Scope {
	case domain.ScopeMerchant:
		id := l.MerchantID
		return TransactionFilter{MerchantID: &id}, nil
	case domain.ScopeWallet:
		id := l.WalletID
		return TransactionFilter{WalletID: &id}, nil
	default:
		return TransactionFilter{}, fmt.Errorf("limit %s: unknown scope %q: %w", l.ID, l.Scope, domain.ErrLimitConfig)
	}
}

// queryPeriod fetches the settled scope-matching transactions in the
// limit's period window.
func (e *evaluator) queryPeriod(ctx context.Context, l *domain.MerchantLimit, trx *domain.Transaction) ([]domain.TransactionRecord, error) {
	window, err := PeriodWindow(*l.Period, trx.CreatedAt)
	if err != nil {
		return nil, err
	}
	filter, err := scopeFilter(l)
	if err != nil {
		return nil, err
	}
	filter.Statuses = settledStatuses
	filter.From = window.Start
	filter.To = window.End

	records, err := e.querier.QueryTransactions(ctx, filter)
	if err != nil {
		return nil, fmt.Errorf("query %s transactions for limit %s: %w", l.ScopeLabel(), l.ID, err)
	}
	return records, nil
}

func evalMinAmountSingleOperation(_ context.Context, _ *evaluator, l *domain.MerchantLimit, trx *domain.Transaction) (map[string]string, error) {
	bound, err := domain.RequireDecimal(l.MinAmount, l.ID, "min_amount")
	if err != nil {
		return nil, err
	}
	if trx.Amount.LessThan(bound) {
		return map[string]string{keyMinSingleOperation: fmt.Sprintf(
			"Transaction amount %s is less than limit %s",
			domain.FormatAmount(trx.Amount), domain.FormatAmount(bound))}, nil
	}
	return nil, nil
}

func evalMaxAmountSingleOperation(_ context.Context, _ *evaluator, l *domain.MerchantLimit, trx *domain.Transaction) (map[string]string, error) {
	bound, err := domain.RequireDecimal(l.MaxAmount, l.ID, "max_amount")
	if err != nil {
		return nil, err
	}
	if trx.Amount.GreaterThan(bound) {
		return map[string]string{keyMaxSingleOperation: fmt.Sprintf(
			"Transaction amount %s is greater than limit %s",
			domain.FormatAmount(trx.Amount), domain.FormatAmount(bound))}, nil
	}
	return nil, nil
}

// evalMaxOperationsBurst counts transactions of any status in the rolling
// burst window (trx.created_at - burst_minutes, trx.created_at]. Once the
// triggering transaction is persisted the count includes it.
func evalMaxOperationsBurst(ctx context.Context, e *evaluator, l *domain.MerchantLimit, trx *domain.Transaction) (map[string]string, error) {
	maxOps, err := domain.RequireInt(l.MaxOperations, l.ID, "max_operations")
	if err != nil {
		return nil, err
	}
	burstMinutes, err := domain.RequireInt(l.BurstMinutes, l.ID, "burst_minutes")
	if err != nil {
		return nil, err
	}

	filter, err := scopeFilter(l)
	if err != nil {
		return nil, err
	}
	filter.From = trx.CreatedAt.Add(-time.Duration(burstMinutes) * time.Minute)
	filter.To = trx.CreatedAt
	filter.FromExclusive = true

	records, err := e.querier.QueryTransactions(ctx, filter)
	if err != nil {
		return nil, fmt.Errorf("query burst window for limit %s: %w", l.ID, err)
	}

	count := int64(len(records))
	if count > maxOps {
		return map[string]string{keyMaxOperationsBurst: fmt.Sprintf(
			"Number of operations %d within %d minutes has exceeded limit %d",
			count, burstMinutes, maxOps)}, nil
	}
	return nil, nil
}

func evalMaxSuccessfulDeposits(ctx context.Context, e *evaluator, l *domain.MerchantLimit, trx *domain.Transaction) (map[string]string, error) {
	maxOps, err := domain.RequireInt(l.MaxOperations, l.ID, "max_operations")
	if err != nil {
		return nil, err
	}
	if l.Period == nil {
		return nil, nil
	}
	records, err := e.queryPeriod(ctx, l, trx)
	if err != nil {
		return nil, err
	}

	deposits := countWhere(records, domain.TxStatusSuccess, domain.TxTypeDeposit)
	if deposits >= maxOps {
		return map[string]string{keyMaxSuccessfulDeposits: fmt.Sprintf(
			"Number of successful deposits %d has exceeded limit %d",
			deposits, maxOps)}, nil
	}
	return nil, nil
}

func evalOverallDeclinePercent(ctx context.Context, e *evaluator, l *domain.MerchantLimit, trx *domain.Transaction) (map[string]string, error) {
	return evalDeclinePercent(ctx, e, l, trx, "", l.MaxOverallDeclinePercent,
		"max_overall_decline_percent", keyOverallDecline, "Overall decline percent")
}

func evalWithdrawalDeclinePercent(ctx context.Context, e *evaluator, l *domain.MerchantLimit, trx *domain.Transaction) (map[string]string, error) {
	return evalDeclinePercent(ctx, e, l, trx, domain.TxTypeWithdrawal, l.MaxWithdrawalDeclinePercent,
		"max_withdrawal_decline_percent", keyWithdrawalDecline, "Withdrawal decline percent")
}

func evalDepositDeclinePercent(ctx context.Context, e *evaluator, l *domain.MerchantLimit, trx *domain.Transaction) (map[string]string, error) {
	return evalDeclinePercent(ctx, e, l, trx, domain.TxTypeDeposit, l.MaxDepositDeclinePercent,
		"max_deposit_decline_percent", keyDepositDecline, "Deposit decline percent")
}

// evalDeclinePercent applies the shared failed/(success+failed) formula,
// optionally restricted to one transaction direction.
func evalDeclinePercent(ctx context.Context, e *evaluator, l *domain.MerchantLimit, trx *domain.Transaction, txType domain.TxType, threshold *decimal.Decimal, field, key, label string) (map[string]string, error) {
	bound, err := domain.RequireDecimal(threshold, l.ID, field)
	if err != nil {
		return nil, err
	}
	if l.Period == nil {
		return nil, nil
	}
	records, err := e.queryPeriod(ctx, l, trx)
	if err != nil {
		return nil, err
	}

	succeeded := countWhere(records, domain.TxStatusSuccess, txType)
	failed := countWhere(records, domain.TxStatusFailed, txType)

	percent := domain.DeclinePercent(failed, succeeded)
	if percent.GreaterThan(bound) {
		return map[string]string{key: fmt.Sprintf(
			"%s %s is greater than limit %s",
			label, percent.StringFixed(2), bound.StringFixed(2))}, nil
	}
	return nil, nil
}

func evalTotalDepositsPeriod(ctx context.Context, e *evaluator, l *domain.MerchantLimit, trx *domain.Transaction) (map[string]string, error) {
	return evalTotalAmountPeriod(ctx, e, l, trx, domain.TxTypeDeposit,
		keyTotalDeposits, "Total deposits amount")
}

func evalTotalWithdrawalsPeriod(ctx context.Context, e *evaluator, l *domain.MerchantLimit, trx *domain.Transaction) (map[string]string, error) {
	return evalTotalAmountPeriod(ctx, e, l, trx, domain.TxTypeWithdrawal,
		keyTotalWithdrawals, "Total withdrawals amount")
}

// evalTotalAmountPeriod applies only to transactions of the limit's
// direction; the prospective total includes the current transaction.
func evalTotalAmountPeriod(ctx context.Context, e *evaluator, l *domain.MerchantLimit, trx *domain.Transaction, txType domain.TxType, key, label string) (map[string]string, error) {
	bound, err := domain.RequireDecimal(l.TotalAmount, l.ID, "total_amount")
	if err != nil {
		return nil, err
	}
	if trx.Type != txType || l.Period == nil {
		return nil, nil
	}
	records, err := e.queryPeriod(ctx, l, trx)
	if err != nil {
		return nil, err
	}

	sum := sumAmounts(records, "", txType)
	if sum.Add(trx.Amount).GreaterThan(bound) {
		return map[string]string{key: fmt.Sprintf(
			"%s %s with transaction amount %s is greater than limit %s",
			label, domain.FormatAmount(sum), domain.FormatAmount(trx.Amount),
			domain.FormatAmount(bound))}, nil
	}
	return nil, nil
}

func evalWithdrawalToDepositRatio(ctx context.Context, e *evaluator, l *domain.MerchantLimit, trx *domain.Transaction) (map[string]string, error) {
	bound, err := domain.RequireDecimal(l.MaxRatio, l.ID, "max_ratio")
	if err != nil {
		return nil, err
	}
	if l.Period == nil {
		return nil, nil
	}
	records, err := e.queryPeriod(ctx, l, trx)
	if err != nil {
		return nil, err
	}

	withdrawals := sumAmounts(records, "", domain.TxTypeWithdrawal)
	deposits := sumAmounts(records, "", domain.TxTypeDeposit)

	ratio := domain.WithdrawalToDepositRatio(withdrawals, deposits)
	if ratio.GreaterThan(bound) {
		return map[string]string{keyWithdrawalRatio: fmt.Sprintf(
			"Withdrawal to deposit ratio %s is greater than limit %s",
			ratio.StringFixed(2), bound.StringFixed(2))}, nil
	}
	return nil, nil
}

func countByStatus(records []domain.TransactionRecord, status domain.TxStatus) int64 {
	return countWhere(records, status, "")
}

// countWhere counts records matching the status and type; an empty value
// matches everything.
func countWhere(records []domain.TransactionRecord, status domain.TxStatus, txType domain.TxType) int64 {
	var n int64
	for _, r := range records {
		if (status == "" || r.Status == status) && (txType == "" || r.Type == txType) {
			n++
		}
	}
	return n
}

// sumAmounts totals record amounts matching the status and type; an empty
// value matches everything.
func sumAmounts(records []domain.TransactionRecord, status domain.TxStatus, txType domain.TxType) decimal.Decimal {
	sum := decimal.Zero
	for _, r := range records {
		if (status == "" || r.Status == status) && (txType == "" || r.Type == txType) {
			sum = sum.Add(r.Amount)
		}
	}
	return sum
}
