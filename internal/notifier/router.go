package notifier

import (
	"context"

	"github.com/cockroachdb/errors"

	"vehicle-booking-engine/internal/domain"
	"vehicle-booking-engine/internal/logger"
)

// Deliverer sends a notification to one user over a single transport.
type Deliverer interface {
	Deliver(ctx context.Context, user *domain.User, n domain.Notification) error
}

// Router dispatches notifications to the deliverer registered for the
// requested channel.
type Router struct {
	channels map[domain.Channel]Deliverer
}

func NewRouter() *Router {
	return &Router{channels: make(map[domain.Channel]Deliverer)}
}

// Register installs d for channel. A nil deliverer leaves the channel
// unconfigured.
func (r *Router) Register(channel domain.Channel, d Deliverer) *Router {
	if d != nil {
		r.channels[channel] = d
	}
	return r
}

func (r *Router) Configured(channel domain.Channel) bool {
	_, ok := r.channels[channel]
	return ok
}

func (r *Router) Notify(ctx context.Context, user *domain.User, channel domain.Channel, n domain.Notification) error {
	if user == nil {
		return errors.Mark(errors.New("notification without recipient"), domain.ErrNotifierDeliveryFailed)
	}
	d, ok := r.channels[channel]
	if !ok {
		return errors.Mark(errors.Newf("channel %s is not configured", channel), domain.ErrNotifierDeliveryFailed)
	}

	logger.ExternalServiceCall("notifier", string(channel), "user_id", user.ID, "type", n.Type)
	err := d.Deliver(ctx, user, n)
	logger.ExternalServiceResult("notifier", string(channel), err, "user_id", user.ID)
	if err != nil {
		return errors.Mark(errors.Wrapf(err, "deliver %s to user %d", channel, user.ID), domain.ErrNotifierDeliveryFailed)
	}
	return nil
}
