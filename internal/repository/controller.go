package repository

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/greyfinance/limitguard/internal/domain"
	"github.com/greyfinance/limitguard/internal/engine"
)

// OutcomeController applies evaluation outcomes. Alert persistence, the
// decline transition and the audit entry run inside one database
// transaction, so alerts never exist without the decline having been
// applied.
type OutcomeController struct {
	store *Store
}

var _ engine.Controller = (*OutcomeController)(nil)

func NewOutcomeController(store *Store) *OutcomeController {
	return &OutcomeController{store: store}
}

// Atomically runs fn within one database transaction.
func (c *OutcomeController) Atomically(ctx context.Context, fn func(tx engine.ControllerTx) error) error {
	return c.store.RunInTx(ctx, func(tx pgx.Tx) error {
		return fn(&outcomeTx{tx: tx})
	})
}

type outcomeTx struct {
	tx pgx.Tx
}

// SaveAlerts inserts one row per alert, enforcing the
// exactly-one-limit-ref invariant before touching the database.
func (t *outcomeTx) SaveAlerts(ctx context.Context, alerts []*domain.LimitAlert) error {
	const query = `
		INSERT INTO limit_alerts (
			id, customer_limit_id, merchant_limit_id, transaction_id,
			is_active, is_critical, extra, notification_groups, created_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, NOW())
	`
	for _, alert := range alerts {
		if err := alert.Validate(); err != nil {
			return err
		}

		var customerLimitID, merchantLimitID *uuid.UUID
		if alert.CustomerLimit != nil {
			customerLimitID = &alert.CustomerLimit.ID
		}
		if alert.MerchantLimit != nil {
			merchantLimitID = &alert.MerchantLimit.ID
		}

		extra, err := json.Marshal(alert.Extra)
		if err != nil {
			return fmt.Errorf("encode alert extra: %w", err)
		}
		groups, err := json.Marshal(alert.Groups)
		if err != nil {
			return fmt.Errorf("encode alert notification groups: %w", err)
		}

		if _, err := t.tx.Exec(ctx, query,
			alert.ID, customerLimitID, merchantLimitID, alert.TransactionID,
			alert.IsActive, alert.IsCritical, extra, groups,
		); err != nil {
			return fmt.Errorf("insert limit alert %s: %w", alert.ID, err)
		}
	}
	return nil
}

// FailTransaction transitions the transaction to FAILED under a row lock,
// so a concurrent status update on the same transaction cannot race the
// decline.
func (t *outcomeTx) FailTransaction(ctx context.Context, trx *domain.Transaction, declineCode, declineReason string) error {
	var current string
	err := t.tx.QueryRow(ctx,
		`SELECT status FROM transactions WHERE id = $1 FOR UPDATE`, trx.ID,
	).Scan(&current)
	if err != nil {
		return fmt.Errorf("lock transaction %s: %w", trx.ID, err)
	}
	if domain.TxStatus(current) != domain.TxStatusPending {
		return fmt.Errorf("transaction %s is %s, cannot decline", trx.ID, current)
	}

	tag, err := t.tx.Exec(ctx,
		`UPDATE transactions SET status = $1, decline_code = $2, decline_reason = $3 WHERE id = $4`,
		domain.TxStatusFailed, declineCode, declineReason, trx.ID,
	)
	if err != nil {
		return fmt.Errorf("decline transaction %s: %w", trx.ID, err)
	}
	return requireExactlyOne(tag.RowsAffected(), "decline transaction")
}

// RecordAuditLog stores one immutable audit entry.
func (t *outcomeTx) RecordAuditLog(ctx context.Context, trxID uuid.UUID, eventType, description string, extra map[string]string) error {
	payload, err := json.Marshal(extra)
	if err != nil {
		return fmt.Errorf("encode audit extra: %w", err)
	}
	if _, err := t.tx.Exec(ctx,
		`INSERT INTO audit_log (transaction_id, event_type, description, extra, created_at)
		 VALUES ($1, $2, $3, $4, NOW())`,
		trxID, eventType, description, payload,
	); err != nil {
		return fmt.Errorf("insert audit log: %w", err)
	}
	return nil
}
