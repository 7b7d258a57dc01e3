package repository

import (
	"context"
	"fmt"
	"strings"

	"github.com/greyfinance/limitguard/internal/domain"
	"github.com/greyfinance/limitguard/internal/engine"
)

// TransactionRepository is the windowed aggregate source for the evaluator.
type TransactionRepository struct {
	store *Store
}

var _ engine.TransactionQuerier = (*TransactionRepository)(nil)

func NewTransactionRepository(store *Store) *TransactionRepository {
	return &TransactionRepository{store: store}
}

// QueryTransactions fetches the status/amount/type/created_at projection of
// transactions matching the filter.
func (r *TransactionRepository) QueryTransactions(ctx context.Context, f engine.TransactionFilter) ([]domain.TransactionRecord, error) {
	query, args := buildTransactionQuery(f)

	rows, err := r.store.db.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query transactions: %w", err)
	}
	defer rows.Close()

	var records []domain.TransactionRecord
	for rows.Next() {
		var rec domain.TransactionRecord
		if err := rows.Scan(&rec.Status, &rec.Amount, &rec.Type, &rec.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan transaction record: %w", err)
		}
		records = append(records, rec)
	}
	return records, rows.Err()
}

// buildTransactionQuery assembles the dynamic WHERE clause for a filter.
// Kept pure so the SQL shape is unit-testable without a database.
func buildTransactionQuery(f engine.TransactionFilter) (string, []any) {
	var (
		conds []string
		args  []any
	)
	arg := func(v any) string {
		args = append(args, v)
		return fmt.Sprintf("$%d", len(args))
	}

	switch {
	case f.CustomerID != nil:
		conds = append(conds, "customer_id = "+arg(*f.CustomerID))
	case f.WalletID != nil:
		conds = append(conds, "wallet_id = "+arg(*f.WalletID))
	case f.MerchantID != nil:
		conds = append(conds, "merchant_id = "+arg(*f.MerchantID))
	}

	if len(f.Statuses) > 0 {
		placeholders := make([]string, 0, len(f.Statuses))
		for _, s := range f.Statuses {
			placeholders = append(placeholders, arg(string(s)))
		}
		conds = append(conds, "status IN ("+strings.Join(placeholders, ", ")+")")
	}

	fromOp := ">="
	if f.FromExclusive {
		fromOp = ">"
	}
	conds = append(conds, "created_at "+fromOp+" "+arg(f.From))
	conds = append(conds, "created_at <= "+arg(f.To))

	query := "SELECT status, amount, type, created_at FROM transactions WHERE " +
		strings.Join(conds, " AND ")
	return query, args
}
