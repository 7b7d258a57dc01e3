package handler

import (
	"errors"
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/greyfinance/limitguard/internal/domain"
	"github.com/greyfinance/limitguard/internal/engine"
	"github.com/greyfinance/limitguard/internal/notify"
)

// EvaluateHandler exposes the admission-control decision to the payment
// pipeline. The caller submits the pending transaction; the response carries
// the verdict and the alerts that fired.
type EvaluateHandler struct {
	engine *engine.Engine
	ctrl   engine.Controller
	router *notify.Router
}

func NewEvaluateHandler(eng *engine.Engine, ctrl engine.Controller, router *notify.Router) *EvaluateHandler {
	return &EvaluateHandler{engine: eng, ctrl: ctrl, router: router}
}

type entityRefRequest struct {
	ID                 string `json:"id"`
	RiskControlEnabled bool   `json:"risk_control_enabled"`
}

type evaluateRequest struct {
	TransactionID string            `json:"transaction_id"`
	Amount        string            `json:"amount"`
	Type          string            `json:"type"`
	CreatedAt     *time.Time        `json:"created_at,omitempty"`
	Customer      *entityRefRequest `json:"customer,omitempty"`
	Wallet        entityRefRequest  `json:"wallet"`
	Merchant      entityRefRequest  `json:"merchant"`
}

type alertResponse struct {
	ID                  uuid.UUID         `json:"id"`
	LimitID             uuid.UUID         `json:"limit_id"`
	IsCritical          bool              `json:"is_critical"`
	DeclinesTransaction bool              `json:"declines_transaction"`
	Extra               map[string]string `json:"extra"`
}

type evaluateResponse struct {
	TransactionID uuid.UUID       `json:"transaction_id"`
	Declined      bool            `json:"declined"`
	DeclineCode   string          `json:"decline_code,omitempty"`
	Alerts        []alertResponse `json:"alerts"`
}

// Evaluate runs the limit pipeline for a pending transaction and applies the
// outcome. Triggered alerts are dispatched to their notification channels
// after the outcome is persisted.
func (h *EvaluateHandler) Evaluate(w http.ResponseWriter, r *http.Request) {
	var req evaluateRequest
	if err := DecodeJSON(r, &req); err != nil {
		RespondError(w, r, http.StatusBadRequest, "evaluate/invalid-body", "invalid request body")
		return
	}

	trx, err := req.toTransaction()
	if err != nil {
		RespondError(w, r, http.StatusBadRequest, "evaluate/invalid-transaction", err.Error())
		return
	}

	result, err := h.engine.CheckAndMaybeDecline(r.Context(), trx, h.ctrl)
	if err != nil {
		if errors.Is(err, domain.ErrLimitConfig) {
			zap.L().Error("limit configuration error",
				zap.String("transaction_id", trx.ID.String()),
				zap.Error(err),
			)
			RespondError(w, r, http.StatusUnprocessableEntity, "evaluate/limit-config", "limit configuration error")
			return
		}
		zap.L().Error("evaluation failed",
			zap.String("transaction_id", trx.ID.String()),
			zap.Error(err),
		)
		RespondError(w, r, http.StatusInternalServerError, "evaluate/internal", "evaluation failed")
		return
	}

	if len(result.Alerts) > 0 {
		if err := h.router.Route(r.Context(), result.Alerts); err != nil {
			// The verdict is already persisted; notification delivery is
			// retryable and must not flip an accept into an error.
			zap.L().Error("alert notification routing failed",
				zap.String("transaction_id", trx.ID.String()),
				zap.Error(err),
			)
		}
	}

	resp := evaluateResponse{
		TransactionID: trx.ID,
		Declined:      result.Declined,
		Alerts:        make([]alertResponse, 0, len(result.Alerts)),
	}
	if result.Declined {
		resp.DeclineCode = domain.DeclineCodeLimitExceeded
	}
	for _, alert := range result.Alerts {
		resp.Alerts = append(resp.Alerts, alertResponse{
			ID:                  alert.ID,
			LimitID:             alert.LimitID(),
			IsCritical:          alert.IsCritical,
			DeclinesTransaction: alert.DeclinesTransaction(),
			Extra:               alert.Extra,
		})
	}
	RespondJSON(w, http.StatusOK, resp)
}

func (req *evaluateRequest) toTransaction() (*domain.Transaction, error) {
	trxID, err := uuid.Parse(req.TransactionID)
	if err != nil {
		return nil, errors.New("transaction_id must be a valid UUID")
	}

	amount, err := decimal.NewFromString(req.Amount)
	if err != nil {
		return nil, errors.New("amount must be a decimal string")
	}
	if amount.IsNegative() || amount.IsZero() {
		return nil, errors.New("amount must be positive")
	}

	txType := domain.TxType(req.Type)
	if txType != domain.TxTypeDeposit && txType != domain.TxTypeWithdrawal {
		return nil, errors.New("type must be DEPOSIT or WITHDRAWAL")
	}

	walletID, err := uuid.Parse(req.Wallet.ID)
	if err != nil {
		return nil, errors.New("wallet.id must be a valid UUID")
	}
	merchantID, err := uuid.Parse(req.Merchant.ID)
	if err != nil {
		return nil, errors.New("merchant.id must be a valid UUID")
	}

	createdAt := time.Now().UTC()
	if req.CreatedAt != nil {
		createdAt = *req.CreatedAt
	}

	trx := &domain.Transaction{
		ID:        trxID,
		Wallet:    domain.WalletRef{ID: walletID, RiskControlEnabled: req.Wallet.RiskControlEnabled},
		Merchant:  domain.MerchantRef{ID: merchantID, RiskControlEnabled: req.Merchant.RiskControlEnabled},
		Amount:    amount,
		Type:      txType,
		Status:    domain.TxStatusPending,
		CreatedAt: createdAt,
	}
	if req.Customer != nil {
		customerID, err := uuid.Parse(req.Customer.ID)
		if err != nil {
			return nil, errors.New("customer.id must be a valid UUID")
		}
		trx.Customer = &domain.CustomerRef{ID: customerID, RiskControlEnabled: req.Customer.RiskControlEnabled}
	}
	return trx, nil
}
