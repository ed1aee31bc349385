package service

import (
	"context"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/rs/zerolog"

	"github.com/tenantry/message-service/internal/domain"
	"github.com/tenantry/message-service/internal/logger"
	"github.com/tenantry/message-service/internal/repository"
)

// Notifier hands a notification to the external delivery collaborator
// (push, email, SMS). Implementations decide the channel.
type Notifier interface {
	Notify(ctx context.Context, n *domain.Notification) error
}

// LogNotifier is the default sink: it only logs. Useful for development and
// as the fallback when no delivery channel is configured.
type LogNotifier struct {
	log zerolog.Logger
}

func NewLogNotifier() *LogNotifier {
	return &LogNotifier{log: logger.Module("notifier")}
}

func (n *LogNotifier) Notify(ctx context.Context, notification *domain.Notification) error {
	n.log.Info().
		Str("notification_id", notification.ID).
		Str("user_id", notification.UserID).
		Str("conversation_id", notification.ConversationID).
		Msg("notification delivered")
	return nil
}

// Dispatcher drains pending notification records to the Notifier in the
// background. Delivery is best-effort: a notification that keeps failing is
// marked failed and never touches the message it was created for.
type Dispatcher struct {
	repos    *repository.Repositories
	notifier Notifier
	interval time.Duration
	batch    int
	log      zerolog.Logger
}

func NewDispatcher(repos *repository.Repositories, notifier Notifier, interval time.Duration) *Dispatcher {
	if interval <= 0 {
		interval = time.Second
	}
	return &Dispatcher{
		repos:    repos,
		notifier: notifier,
		interval: interval,
		batch:    50,
		log:      logger.Module("notification-dispatcher"),
	}
}

// Run polls until the context is canceled.
func (d *Dispatcher) Run(ctx context.Context) {
	ticker := time.NewTicker(d.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			d.Drain(ctx)
		}
	}
}

// Drain delivers one batch of pending notifications. Exposed separately so
// tests and the seed command can flush synchronously.
func (d *Dispatcher) Drain(ctx context.Context) {
	pending, err := d.repos.Notifications.ListPending(ctx, d.batch)
	if err != nil {
		d.log.Error().Err(err).Msg("failed to list pending notifications")
		return
	}

	for _, n := range pending {
		if err := d.deliver(ctx, n); err != nil {
			d.log.Warn().Err(err).
				Str("notification_id", n.ID).
				Msg("notification delivery failed")
			if err := d.repos.Notifications.MarkFailed(ctx, n.ID); err != nil {
				d.log.Error().Err(err).Str("notification_id", n.ID).Msg("failed to mark notification failed")
			}
			continue
		}
		if err := d.repos.Notifications.MarkSent(ctx, n.ID, time.Now().UTC()); err != nil {
			d.log.Error().Err(err).Str("notification_id", n.ID).Msg("failed to mark notification sent")
		}
	}
}

func (d *Dispatcher) deliver(ctx context.Context, n *domain.Notification) error {
	policy := backoff.WithContext(
		backoff.WithMaxRetries(backoff.NewExponentialBackOff(), 3),
		ctx,
	)
	return backoff.Retry(func() error {
		return d.notifier.Notify(ctx, n)
	}, policy)
}
