package domain

import (
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// ErrLimitConfig marks a fatal limit configuration problem: an unknown
// category, scope, period or limit type, or a threshold field that is
// required by the limit type but missing. Evaluation aborts on these.
var ErrLimitConfig = errors.New("limit configuration error")

// Category controls when a limit is enforced.
type Category string

const (
	CategoryBusiness   Category = "BUSINESS"
	CategoryRisk       Category = "RISK"
	CategoryGlobalRisk Category = "GLOBAL_RISK"
)

// Scope is the granularity at which a merchant limit gathers transactions.
type Scope string

const (
	ScopeMerchant Scope = "MERCHANT"
	ScopeWallet   Scope = "WALLET"
)

// Period is the look-back window kind for windowed aggregates.
type Period string

const (
	PeriodOneHour         Period = "ONE_HOUR"
	PeriodTwentyFourHours Period = "TWENTY_FOUR_HOURS"
	PeriodBeginningOfHour Period = "BEGINNING_OF_HOUR"
	PeriodBeginningOfDay  Period = "BEGINNING_OF_DAY"
)

// LimitType enumerates the merchant limit trigger formulas.
type LimitType string

const (
	LimitMinAmountSingleOperation     LimitType = "MIN_AMOUNT_SINGLE_OPERATION"
	LimitMaxAmountSingleOperation     LimitType = "MAX_AMOUNT_SINGLE_OPERATION"
	LimitMaxOperationsBurst           LimitType = "MAX_OPERATIONS_BURST"
	LimitMaxSuccessfulDeposits        LimitType = "MAX_SUCCESSFUL_DEPOSITS"
	LimitMaxOverallDeclinePercent     LimitType = "MAX_OVERALL_DECLINE_PERCENT"
	LimitMaxWithdrawalDeclinePercent  LimitType = "MAX_WITHDRAWAL_DECLINE_PERCENT"
	LimitMaxDepositDeclinePercent     LimitType = "MAX_DEPOSIT_DECLINE_PERCENT"
	LimitTotalAmountDepositsPeriod    LimitType = "TOTAL_AMOUNT_DEPOSITS_PERIOD"
	LimitTotalAmountWithdrawalsPeriod LimitType = "TOTAL_AMOUNT_WITHDRAWALS_PERIOD"
	LimitMaxWithdrawalToDepositRatio  LimitType = "MAX_WITHDRAWAL_TO_DEPOSIT_RATIO"
)

// GroupRef identifies a notification group configured by administrators.
type GroupRef struct {
	ID   uuid.UUID `json:"id"`
	Name string    `json:"name"`
}

// LimitCore carries the fields shared by both limit kinds.
type LimitCore struct {
	ID                   uuid.UUID
	Active               bool
	Category             Category
	DeclineOnExceed      bool
	IsCritical           bool
	SlackChannelOverride string // empty means no override
	NotificationGroups   []GroupRef
	Period               *Period
	UpdatedAt            time.Time
}

// Limit is the sealed union of the two limit kinds. The only
// implementations are *CustomerLimit and *MerchantLimit; type switches over
// Limit must treat any other value as a configuration error.
type Limit interface {
	Core() *LimitCore
	isLimit()
}

// CustomerLimit is a quota rule scoped to a single customer.
type CustomerLimit struct {
	LimitCore
	CustomerID uuid.UUID

	MinOperationAmount      *decimal.Decimal
	MaxOperationAmount      *decimal.Decimal
	MaxSuccessfulOperations *int64
	MaxFailedOperations     *int64
	TotalSuccessfulAmount   *decimal.Decimal
}

func (l *CustomerLimit) Core() *LimitCore { return &l.LimitCore }
func (l *CustomerLimit) isLimit()         {}

// MerchantLimit is a quota rule scoped to a merchant or a single wallet.
type MerchantLimit struct {
	LimitCore
	LimitType  LimitType
	Scope      Scope
	MerchantID uuid.UUID
	WalletID   uuid.UUID // meaningful only for Scope == WALLET

	MinAmount                   *decimal.Decimal
	MaxAmount                   *decimal.Decimal
	MaxOperations               *int64
	MaxOverallDeclinePercent    *decimal.Decimal
	MaxWithdrawalDeclinePercent *decimal.Decimal
	MaxDepositDeclinePercent    *decimal.Decimal
	TotalAmount                 *decimal.Decimal
	MaxRatio                    *decimal.Decimal
	BurstMinutes                *int64
}

func (l *MerchantLimit) Core() *LimitCore { return &l.LimitCore }
func (l *MerchantLimit) isLimit()         {}

// ScopeLabel is the lowercase scope value written into alert extras.
func (l *MerchantLimit) ScopeLabel() string {
	switch l.Scope {
	case ScopeMerchant:
		return "merchant"
	case ScopeWallet:
		return "wallet"
	default:
		return string(l.Scope)
	}
}

// RequireDecimal returns the threshold or a configuration error naming the
// missing field.
func RequireDecimal(v *decimal.Decimal, limitID uuid.UUID, field string) (decimal.Decimal, error) {
	if v == nil {
		return decimal.Decimal{}, fmt.Errorf("limit %s: missing required field %q: %w", limitID, field, ErrLimitConfig)
	}
	return *v, nil
}

// RequireInt returns the threshold or a configuration error naming the
// missing field.
func RequireInt(v *int64, limitID uuid.UUID, field string) (int64, error) {
	if v == nil {
		return 0, fmt.Errorf("limit %s: missing required field %q: %w", limitID, field, ErrLimitConfig)
	}
	return *v, nil
}
