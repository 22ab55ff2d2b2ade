package service

import (
	"context"

	"github.com/cockroachdb/errors"

	"vehicle-booking-engine/internal/domain"
	"vehicle-booking-engine/internal/logger"
)

// notifyUser tries every channel the user can be reached on. Channels fail
// independently; the user counts as notified when at least one succeeds.
func notifyUser(ctx context.Context, notifier Notifier, user *domain.User, n domain.Notification) error {
	var errs error
	delivered := 0
	for _, ch := range domain.ChannelsFor(user) {
		if err := ctx.Err(); err != nil {
			errs = errors.CombineErrors(errs, err)
			break
		}
		if err := notifier.Notify(ctx, user, ch, n); err != nil {
			logger.Warn("Notification channel failed", "user_id", user.ID, "channel", ch, "type", n.Type, "error", err)
			errs = errors.CombineErrors(errs, errors.Wrapf(err, "%s", ch))
			continue
		}
		delivered++
	}
	if delivered > 0 {
		return nil
	}
	if errs == nil {
		errs = errors.New("no channel available")
	}
	return errors.Mark(errors.Wrapf(errs, "notify user %d", user.ID), domain.ErrNotifierDeliveryFailed)
}
