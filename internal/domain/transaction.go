package domain

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// TxType is the direction of a payment transaction.
type TxType string

const (
	TxTypeDeposit    TxType = "DEPOSIT"
	TxTypeWithdrawal TxType = "WITHDRAWAL"
)

// TxStatus is the lifecycle state of a payment transaction.
type TxStatus string

const (
	TxStatusPending TxStatus = "PENDING"
	TxStatusSuccess TxStatus = "SUCCESS"
	TxStatusFailed  TxStatus = "FAILED"
)

// CustomerRef is the slice of the customer entity the engine reads.
type CustomerRef struct {
	ID                 uuid.UUID
	RiskControlEnabled bool
}

// WalletRef is the slice of the wallet entity the engine reads.
type WalletRef struct {
	ID                 uuid.UUID
	RiskControlEnabled bool
}

// MerchantRef is the slice of the merchant entity the engine reads.
type MerchantRef struct {
	ID                 uuid.UUID
	RiskControlEnabled bool
}

// Transaction is the payment transaction under evaluation. It is owned by
// the payment state machine and read-only to the limits engine.
type Transaction struct {
	ID        uuid.UUID
	Customer  *CustomerRef // nil for anonymous operations
	Wallet    WalletRef
	Merchant  MerchantRef
	Amount    decimal.Decimal
	Type      TxType
	Status    TxStatus
	CreatedAt time.Time
}

// TransactionRecord is the projection returned by windowed aggregate
// queries; the evaluator never needs the full transaction row.
type TransactionRecord struct {
	Status    TxStatus
	Amount    decimal.Decimal
	Type      TxType
	CreatedAt time.Time
}
