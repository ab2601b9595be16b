package notify

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/hibiken/asynq"
	"github.com/rs/zerolog"

	"github.com/noah-isme/taxestimator-api/internal/common"
	"github.com/noah-isme/taxestimator-api/internal/obs"
	"github.com/noah-isme/taxestimator-api/internal/reminder"
)

// Channel delivers a reminder notification to its owner.
type Channel interface {
	Name() string
	Send(ctx context.Context, due reminder.Due) error
}

// Notifier handles TypeReminderNotify tasks.
type Notifier struct {
	Store    reminder.Store
	Channels []Channel
	// Deliveries is optional. Without it a retry re-sends through every channel.
	Deliveries DeliveryLog
	Now        func() time.Time
	Logger     zerolog.Logger
}

// HandleNotify is the asynq handler for TypeReminderNotify. Any channel
// failure returns an error so asynq retries the task; channels recorded in
// Deliveries are not sent again. The reminder is only marked notified once
// every channel succeeded.
func (n *Notifier) HandleNotify(ctx context.Context, task *asynq.Task) error {
	p, err := parseNotifyPayload(task)
	if err != nil {
		obs.IncReminderNotification("invalid")
		return err
	}
	return n.Notify(ctx, p.ReminderID)
}

// Notify sends the reminder identified by id through every channel.
func (n *Notifier) Notify(ctx context.Context, id string) error {
	if n.Store == nil {
		return errors.New("notify: notifier not configured")
	}
	logger := obs.LoggerFrom(ctx, n.Logger).With().Str("reminder_id", id).Logger()

	due, err := n.Store.GetDue(ctx, id)
	if err != nil {
		if errors.Is(err, common.ErrNotFound) {
			obs.IncReminderNotification("skipped")
			logger.Info().Msg("reminder gone before notification")
			return nil
		}
		return err
	}
	if due.Completed || due.NotifiedAt != nil {
		obs.IncReminderNotification("skipped")
		logger.Debug().Bool("completed", due.Completed).Msg("reminder needs no notification")
		return nil
	}

	var errs error
	for _, ch := range n.Channels {
		if err := n.send(ctx, ch, due, logger); err != nil {
			logger.Warn().Err(err).Str("channel", ch.Name()).Msg("reminder notification failed")
			errs = errors.Join(errs, fmt.Errorf("%s: %w", ch.Name(), err))
		}
	}
	if errs != nil {
		obs.IncReminderNotification("failed")
		return errs
	}

	now := time.Now
	if n.Now != nil {
		now = n.Now
	}
	if err := n.Store.MarkNotified(ctx, id, now().UTC()); err != nil {
		obs.IncReminderNotification("failed")
		return err
	}
	obs.IncReminderNotification("sent")
	logger.Info().Int("channels", len(n.Channels)).Msg("reminder notification sent")
	return nil
}

func (n *Notifier) send(ctx context.Context, ch Channel, due reminder.Due, logger zerolog.Logger) error {
	if n.Deliveries == nil {
		return ch.Send(ctx, due)
	}
	key := deliveryKey(due, ch.Name())
	done, err := n.Deliveries.Delivered(ctx, key)
	if err != nil {
		return fmt.Errorf("check delivery: %w", err)
	}
	if done {
		logger.Debug().Str("channel", ch.Name()).Msg("channel already delivered")
		return nil
	}
	if err := ch.Send(ctx, due); err != nil {
		return err
	}
	if err := n.Deliveries.MarkDelivered(ctx, key); err != nil {
		logger.Warn().Err(err).Str("channel", ch.Name()).Msg("record delivery failed")
	}
	return nil
}
