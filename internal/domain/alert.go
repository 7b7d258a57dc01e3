package domain

import (
	"fmt"

	"github.com/google/uuid"
)

// DeclineCodeLimitExceeded is the fixed code applied to transactions
// declined by the limits engine.
const DeclineCodeLimitExceeded = "LIMIT_EXCEEDED"

// LimitAlert records a single limit trigger for a transaction. Exactly one
// of CustomerLimit/MerchantLimit is set, never both, never neither.
type LimitAlert struct {
	ID            uuid.UUID
	CustomerLimit *CustomerLimit
	MerchantLimit *MerchantLimit
	TransactionID uuid.UUID
	IsActive      bool
	IsCritical    bool
	Extra         map[string]string
	Groups        []GroupRef

	// NotificationText is attached once by the notification router after
	// dispatch grouping; alerts are otherwise immutable after creation.
	NotificationText string
}

// Limit returns whichever limit the alert references.
func (a *LimitAlert) Limit() Limit {
	if a.CustomerLimit != nil {
		return a.CustomerLimit
	}
	return a.MerchantLimit
}

// LimitID returns the id of the referenced limit.
func (a *LimitAlert) LimitID() uuid.UUID {
	return a.Limit().Core().ID
}

// DeclinesTransaction reports whether this alert's limit fails the
// transaction rather than alerting only.
func (a *LimitAlert) DeclinesTransaction() bool {
	return a.Limit().Core().DeclineOnExceed
}

// Validate enforces the exactly-one-limit-ref invariant.
func (a *LimitAlert) Validate() error {
	if a.CustomerLimit != nil && a.MerchantLimit != nil {
		return fmt.Errorf("alert %s references both limit kinds", a.ID)
	}
	if a.CustomerLimit == nil && a.MerchantLimit == nil {
		return fmt.Errorf("alert %s references no limit", a.ID)
	}
	return nil
}
