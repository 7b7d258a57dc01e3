package engine

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/greyfinance/limitguard/internal/domain"
	"github.com/greyfinance/limitguard/internal/observability"
)

const auditEventLimitsDeclined = "limits_declined"

// Result is the outcome of evaluating one transaction against the active
// limit set.
type Result struct {
	Declined bool
	Alerts   []*domain.LimitAlert
	Skips    []Skip
	Removals []Removal
}

// Engine decides which limits apply to a transaction, resolves conflicts,
// evaluates each surviving limit and renders the accept/decline verdict.
// It is stateless across transactions and safe for concurrent use.
type Engine struct {
	limits    LimitSource
	grayList  GrayList
	evaluator *evaluator
}

// New wires the engine to its collaborators.
func New(limits LimitSource, grayList GrayList, querier TransactionQuerier) *Engine {
	return &Engine{
		limits:    limits,
		grayList:  grayList,
		evaluator: &evaluator{querier: querier},
	}
}

// Evaluate runs the full admission-control pipeline for the transaction and
// returns the verdict plus the alerts it produced. It performs no side
// effects; persistence and the decline transition belong to
// CheckAndMaybeDecline.
func (e *Engine) Evaluate(ctx context.Context, trx *domain.Transaction) (*Result, error) {
	active, err := e.limits.GetActiveLimits(ctx)
	if err != nil {
		return nil, fmt.Errorf("load active limits: %w", err)
	}
	if len(active) == 0 {
		return &Result{}, nil
	}

	applicable, skips, err := filterApplicable(ctx, active, trx, e.grayList)
	if err != nil {
		return nil, err
	}
	for _, skip := range skips {
		zap.L().Debug("limit skipped",
			zap.String("limit_id", skip.Limit.Core().ID.String()),
			zap.String("transaction_id", trx.ID.String()),
			zap.String("reason", skip.Reason),
		)
	}

	surviving, removals := resolveConflicts(applicable)
	for _, removal := range removals {
		observability.IncrementConflictRemoval(removal.Stage)
		zap.L().Info("limit removed by conflict resolver",
			zap.String("limit_id", removal.Limit.Core().ID.String()),
			zap.String("transaction_id", trx.ID.String()),
			zap.String("stage", removal.Stage),
			zap.String("reason", removal.Reason),
		)
	}

	result := &Result{Skips: skips, Removals: removals}
	for _, l := range surviving {
		triggers, err := e.evaluator.evaluateLimit(ctx, l, trx)
		if err != nil {
			return nil, err
		}
		if len(triggers) == 0 {
			continue
		}
		alert, err := buildAlert(l, trx, triggers)
		if err != nil {
			return nil, err
		}
		result.Alerts = append(result.Alerts, alert)
		if alert.DeclinesTransaction() {
			result.Declined = true
		}
		observability.IncrementLimitAlert(string(l.Core().Category), alert.DeclinesTransaction())
	}

	observability.IncrementEvaluation(result.Declined)
	return result, nil
}

// CheckAndMaybeDecline evaluates the transaction and applies the outcome:
// alerts are persisted and, when the verdict is a decline, the transaction
// is failed and an audit entry recorded, all in one atomic unit. The
// returned result carries the persisted alerts for notification routing.
func (e *Engine) CheckAndMaybeDecline(ctx context.Context, trx *domain.Transaction, ctrl Controller) (*Result, error) {
	result, err := e.Evaluate(ctx, trx)
	if err != nil {
		return nil, err
	}
	if len(result.Alerts) == 0 {
		return result, nil
	}

	err = ctrl.Atomically(ctx, func(tx ControllerTx) error {
		if err := tx.SaveAlerts(ctx, result.Alerts); err != nil {
			return fmt.Errorf("save limit alerts: %w", err)
		}
		if !result.Declined {
			return nil
		}

		declining := decliningAlerts(result.Alerts)
		reason := declineReason(declining)
		if err := tx.FailTransaction(ctx, trx, domain.DeclineCodeLimitExceeded, reason); err != nil {
			return fmt.Errorf("fail transaction %s: %w", trx.ID, err)
		}

		extra, err := auditExtra(declining)
		if err != nil {
			return err
		}
		if err := tx.RecordAuditLog(ctx, trx.ID, auditEventLimitsDeclined, reason, extra); err != nil {
			return fmt.Errorf("record audit log for %s: %w", trx.ID, err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	if result.Declined {
		zap.L().Warn("transaction declined by limits",
			zap.String("transaction_id", trx.ID.String()),
			zap.Int("alerts", len(result.Alerts)),
		)
	}
	return result, nil
}

func buildAlert(l domain.Limit, trx *domain.Transaction, triggers map[string]string) (*domain.LimitAlert, error) {
	core := l.Core()
	alert := &domain.LimitAlert{
		ID:            uuid.New(),
		TransactionID: trx.ID,
		IsActive:      true,
		IsCritical:    core.IsCritical,
		Extra:         triggers,
		Groups:        core.NotificationGroups,
	}
	switch lim := l.(type) {
	case *domain.CustomerLimit:
		alert.CustomerLimit = lim
	case *domain.MerchantLimit:
		alert.MerchantLimit = lim
	default:
		return nil, fmt.Errorf("unknown limit kind %T: %w", l, domain.ErrLimitConfig)
	}
	if err := alert.Validate(); err != nil {
		return nil, err
	}
	return alert, nil
}

func decliningAlerts(alerts []*domain.LimitAlert) []*domain.LimitAlert {
	var declining []*domain.LimitAlert
	for _, a := range alerts {
		if a.DeclinesTransaction() {
			declining = append(declining, a)
		}
	}
	return declining
}

func declineReason(declining []*domain.LimitAlert) string {
	ids := make([]string, 0, len(declining))
	for _, a := range declining {
		ids = append(ids, a.LimitID().String())
	}
	return "transaction declined by limits: " + strings.Join(ids, ", ")
}

// auditExtra indexes the extra map of each declining alert; non-declining
// alerts are persisted but excluded from the audit payload.
func auditExtra(declining []*domain.LimitAlert) (map[string]string, error) {
	extra := make(map[string]string, len(declining))
	for i, a := range declining {
		payload, err := json.Marshal(a.Extra)
		if err != nil {
			return nil, fmt.Errorf("encode audit extra for alert %s: %w", a.ID, err)
		}
		extra[strconv.Itoa(i)] = string(payload)
	}
	return extra, nil
}
