package notifier

import (
	"context"

	firebase "firebase.google.com/go/v4"
	"firebase.google.com/go/v4/messaging"
	"github.com/cockroachdb/errors"
	"google.golang.org/api/option"

	"vehicle-booking-engine/internal/domain"
)

// MessageSender is the part of the FCM client the push channel uses.
type MessageSender interface {
	Send(ctx context.Context, message *messaging.Message) (string, error)
}

type PushChannel struct {
	client MessageSender
}

func NewPushChannel(client MessageSender) *PushChannel {
	return &PushChannel{client: client}
}

// NewFirebasePushChannel builds a push channel backed by Firebase Cloud
// Messaging using a service account credentials file.
func NewFirebasePushChannel(ctx context.Context, credentialsFile string) (*PushChannel, error) {
	app, err := firebase.NewApp(ctx, nil, option.WithCredentialsFile(credentialsFile))
	if err != nil {
		return nil, errors.Wrap(err, "failed to initialize firebase app")
	}
	client, err := app.Messaging(ctx)
	if err != nil {
		return nil, errors.Wrap(err, "failed to create messaging client")
	}
	return NewPushChannel(client), nil
}

func (c *PushChannel) Deliver(ctx context.Context, user *domain.User, n domain.Notification) error {
	if user.PushToken == nil || *user.PushToken == "" {
		return errors.Newf("user %d has no push token", user.ID)
	}
	msg := &messaging.Message{
		Token: *user.PushToken,
		Notification: &messaging.Notification{
			Title: subject(n),
			Body:  n.Message,
		},
		Data: data(n),
	}
	if _, err := c.client.Send(ctx, msg); err != nil {
		return errors.Wrap(err, "failed to send push notification")
	}
	return nil
}
