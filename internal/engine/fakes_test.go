package engine

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/greyfinance/limitguard/internal/domain"
)

func dec(s string) *decimal.Decimal {
	d := decimal.RequireFromString(s)
	return &d
}

func i64(n int64) *int64 {
	return &n
}

func period(p domain.Period) *domain.Period {
	return &p
}

func record(status domain.TxStatus, txType domain.TxType, amount string, at time.Time) domain.TransactionRecord {
	return domain.TransactionRecord{
		Status:    status,
		Type:      txType,
		Amount:    decimal.RequireFromString(amount),
		CreatedAt: at,
	}
}

// pendingTransaction builds a deposit under evaluation. Tests mutate the
// returned value for other directions and amounts.
func pendingTransaction(amount string) *domain.Transaction {
	return &domain.Transaction{
		ID:        uuid.New(),
		Customer:  &domain.CustomerRef{ID: uuid.New(), RiskControlEnabled: true},
		Wallet:    domain.WalletRef{ID: uuid.New(), RiskControlEnabled: true},
		Merchant:  domain.MerchantRef{ID: uuid.New(), RiskControlEnabled: true},
		Amount:    decimal.RequireFromString(amount),
		Type:      domain.TxTypeDeposit,
		Status:    domain.TxStatusPending,
		CreatedAt: time.Date(2026, 3, 14, 15, 30, 45, 0, time.UTC),
	}
}

type stubLimitSource struct {
	limits []domain.Limit
	err    error
}

func (s *stubLimitSource) GetActiveLimits(context.Context) ([]domain.Limit, error) {
	return s.limits, s.err
}

type stubGrayList struct {
	member bool
	err    error
	calls  int
}

func (s *stubGrayList) IsInGrayList(context.Context, uuid.UUID) (bool, error) {
	s.calls++
	return s.member, s.err
}

type stubQuerier struct {
	records []domain.TransactionRecord
	err     error
	filters []TransactionFilter
}

func (s *stubQuerier) QueryTransactions(_ context.Context, f TransactionFilter) ([]domain.TransactionRecord, error) {
	s.filters = append(s.filters, f)
	return s.records, s.err
}

type failedTransition struct {
	trx           *domain.Transaction
	declineCode   string
	declineReason string
}

type auditEntry struct {
	trxID       uuid.UUID
	eventType   string
	description string
	extra       map[string]string
}

// stubController records the outcome side effects without a database.
type stubController struct {
	saved       []*domain.LimitAlert
	transitions []failedTransition
	audits      []auditEntry
	err         error
	invoked     bool
}

func (s *stubController) Atomically(_ context.Context, fn func(tx ControllerTx) error) error {
	s.invoked = true
	if s.err != nil {
		return s.err
	}
	return fn(&stubControllerTx{ctrl: s})
}

type stubControllerTx struct {
	ctrl *stubController
}

func (t *stubControllerTx) SaveAlerts(_ context.Context, alerts []*domain.LimitAlert) error {
	t.ctrl.saved = append(t.ctrl.saved, alerts...)
	return nil
}

func (t *stubControllerTx) FailTransaction(_ context.Context, trx *domain.Transaction, declineCode, declineReason string) error {
	t.ctrl.transitions = append(t.ctrl.transitions, failedTransition{
		trx:           trx,
		declineCode:   declineCode,
		declineReason: declineReason,
	})
	return nil
}

func (t *stubControllerTx) RecordAuditLog(_ context.Context, trxID uuid.UUID, eventType, description string, extra map[string]string) error {
	t.ctrl.audits = append(t.ctrl.audits, auditEntry{
		trxID:       trxID,
		eventType:   eventType,
		description: description,
		extra:       extra,
	})
	return nil
}
