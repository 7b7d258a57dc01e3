package notify

import (
	"context"
	"fmt"
	"sort"
	"strings"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/greyfinance/limitguard/internal/domain"
)

// Notifier dispatches one grouped message to a channel. Dispatch is
// fire-and-forget from the router's point of view.
type Notifier interface {
	Notify(ctx context.Context, channel, message string, alertIDs []uuid.UUID) error
}

// TextWriter persists the rendered notification text onto alerts after
// dispatch grouping.
type TextWriter interface {
	SetNotificationText(ctx context.Context, alertIDs []uuid.UUID, text string) error
}

// Router groups triggered alerts by destination channel and emits one
// message per channel. Re-routing an already-dispatched group is safe: it
// only re-renders and overwrites the notification text.
type Router struct {
	regularChannel  string
	criticalChannel string
	notifier        Notifier
	texts           TextWriter
}

// NewRouter wires the router to its destination channels and collaborators.
func NewRouter(regularChannel, criticalChannel string, notifier Notifier, texts TextWriter) *Router {
	return &Router{
		regularChannel:  regularChannel,
		criticalChannel: criticalChannel,
		notifier:        notifier,
		texts:           texts,
	}
}

// Route fans the alerts out to their channels. Channels with zero alerts
// produce no dispatch call. Alert creation happened upstream, exactly once
// per evaluation; routing never creates alert records.
func (r *Router) Route(ctx context.Context, alerts []*domain.LimitAlert) error {
	groups := r.groupByChannel(alerts)

	// Deterministic dispatch order.
	channels := make([]string, 0, len(groups))
	for channel := range groups {
		channels = append(channels, channel)
	}
	sort.Strings(channels)

	for _, channel := range channels {
		group := groups[channel]
		message := renderMessage(group)

		ids := make([]uuid.UUID, 0, len(group))
		for _, alert := range group {
			alert.NotificationText = message
			ids = append(ids, alert.ID)
		}
		if r.texts != nil {
			if err := r.texts.SetNotificationText(ctx, ids, message); err != nil {
				return fmt.Errorf("attach notification text for channel %s: %w", channel, err)
			}
		}

		if err := r.notifier.Notify(ctx, channel, message, ids); err != nil {
			return fmt.Errorf("dispatch to channel %s: %w", channel, err)
		}
		zap.L().Info("alert group dispatched",
			zap.String("channel", channel),
			zap.Int("alerts", len(group)),
		)
	}
	return nil
}

// groupByChannel applies the destination precedence: a limit's channel
// override wins, then critical alerts go to the critical channel, the rest
// to the regular channel.
func (r *Router) groupByChannel(alerts []*domain.LimitAlert) map[string][]*domain.LimitAlert {
	groups := make(map[string][]*domain.LimitAlert)
	for _, alert := range alerts {
		channel := alert.Limit().Core().SlackChannelOverride
		if channel == "" {
			if alert.IsCritical {
				channel = r.criticalChannel
			} else {
				channel = r.regularChannel
			}
		}
		groups[channel] = append(groups[channel], alert)
	}
	return groups
}

// renderMessage builds the grouped channel message, one block per alert
// with its trigger descriptions in stable order.
func renderMessage(alerts []*domain.LimitAlert) string {
	var b strings.Builder
	for i, alert := range alerts {
		if i > 0 {
			b.WriteString("\n")
		}
		fmt.Fprintf(&b, "Limit %s triggered by transaction %s", alert.LimitID(), alert.TransactionID)

		keys := make([]string, 0, len(alert.Extra))
		for key := range alert.Extra {
			keys = append(keys, key)
		}
		sort.Strings(keys)
		for _, key := range keys {
			fmt.Fprintf(&b, "\n  %s: %s", key, alert.Extra[key])
		}
	}
	return b.String()
}
