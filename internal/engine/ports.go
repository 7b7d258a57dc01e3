package engine

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/greyfinance/limitguard/internal/domain"
)

// LimitSource supplies the active rule set. Implementations are expected to
// be snapshot caches with a short TTL, invalidated on limit writes.
type LimitSource interface {
	GetActiveLimits(ctx context.Context) ([]domain.Limit, error)
}

// GrayList is the external risk-list membership oracle. The engine calls it
// at most once per evaluation.
type GrayList interface {
	IsInGrayList(ctx context.Context, customerID uuid.UUID) (bool, error)
}

// TransactionFilter selects the transaction population for a windowed
// aggregate. Exactly one of CustomerID/WalletID/MerchantID is set. From/To
// bound created_at; To is always inclusive, From is inclusive unless
// FromExclusive is set (burst windows are half-open on the left).
type TransactionFilter struct {
	CustomerID *uuid.UUID
	WalletID   *uuid.UUID
	MerchantID *uuid.UUID

	Statuses []domain.TxStatus // empty means any status

	From          time.Time
	To            time.Time
	FromExclusive bool
}

// TransactionQuerier is the windowed aggregate source.
type TransactionQuerier interface {
	QueryTransactions(ctx context.Context, f TransactionFilter) ([]domain.TransactionRecord, error)
}

// Controller applies the outcome of an evaluation. Atomically runs fn in a
// single transactional unit; alert persistence and the decline side effect
// must either both apply or neither.
type Controller interface {
	Atomically(ctx context.Context, fn func(tx ControllerTx) error) error
}

// ControllerTx is the transactional slice of the controller. FailTransaction
// must hold at least row-level isolation on the transaction being declined.
type ControllerTx interface {
	SaveAlerts(ctx context.Context, alerts []*domain.LimitAlert) error
	FailTransaction(ctx context.Context, trx *domain.Transaction, declineCode, declineReason string) error
	RecordAuditLog(ctx context.Context, trxID uuid.UUID, eventType, description string, extra map[string]string) error
}
