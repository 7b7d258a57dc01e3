package repository

import (
	"context"
	"fmt"

	"github.com/google/uuid"

	"github.com/greyfinance/limitguard/internal/notify"
)

// AlertRepository covers the one mutation alerts allow after creation:
// attaching the rendered notification text.
type AlertRepository struct {
	store *Store
}

var _ notify.TextWriter = (*AlertRepository)(nil)

func NewAlertRepository(store *Store) *AlertRepository {
	return &AlertRepository{store: store}
}

// SetNotificationText writes the rendered channel message back onto the
// alerts of one dispatch group. Overwriting is safe; re-dispatch renders
// the same text.
func (r *AlertRepository) SetNotificationText(ctx context.Context, alertIDs []uuid.UUID, text string) error {
	if len(alertIDs) == 0 {
		return nil
	}
	if _, err := r.store.db.Exec(ctx,
		`UPDATE limit_alerts SET notification_text = $1 WHERE id = ANY($2)`,
		text, alertIDs,
	); err != nil {
		return fmt.Errorf("set notification text: %w", err)
	}
	return nil
}
