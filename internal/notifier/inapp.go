package notifier

import (
	"context"
	"encoding/json"
	"strconv"
	"time"

	"github.com/IBM/sarama"
	"github.com/cockroachdb/errors"
	"github.com/google/uuid"

	"vehicle-booking-engine/internal/config"
	"vehicle-booking-engine/internal/domain"
	"vehicle-booking-engine/internal/utils"
)

// InAppEvent is the record published for the in-app inbox consumer.
type InAppEvent struct {
	EventID      string              `json:"event_id"`
	UserID       int32               `json:"user_id"`
	Notification domain.Notification `json:"notification"`
	CreatedAt    time.Time           `json:"created_at"`
}

// InAppChannel publishes notifications to a Kafka topic keyed by user so a
// user's events stay ordered on one partition.
type InAppChannel struct {
	producer sarama.SyncProducer
	topic    string
	clock    utils.Clock
}

func NewInAppChannel(producer sarama.SyncProducer, topic string, clock utils.Clock) *InAppChannel {
	return &InAppChannel{producer: producer, topic: topic, clock: clock}
}

// NewKafkaProducer creates the sync producer used by the in-app channel.
func NewKafkaProducer(cfg config.KafkaConfig) (sarama.SyncProducer, error) {
	saramaConfig := sarama.NewConfig()
	saramaConfig.Producer.Return.Successes = true
	saramaConfig.Producer.Return.Errors = true
	saramaConfig.Producer.RequiredAcks = sarama.WaitForAll
	saramaConfig.Producer.Retry.Max = cfg.RetryMax
	saramaConfig.Producer.Idempotent = cfg.Idempotent
	if cfg.Idempotent {
		saramaConfig.Net.MaxOpenRequests = 1
	}
	saramaConfig.Producer.Partitioner = sarama.NewHashPartitioner

	producer, err := sarama.NewSyncProducer(cfg.Brokers, saramaConfig)
	if err != nil {
		return nil, errors.Wrap(err, "failed to create kafka producer")
	}
	return producer, nil
}

func (c *InAppChannel) Deliver(ctx context.Context, user *domain.User, n domain.Notification) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	event := InAppEvent{
		EventID:      uuid.NewString(),
		UserID:       user.ID,
		Notification: n,
		CreatedAt:    c.clock.Now(),
	}
	payload, err := json.Marshal(event)
	if err != nil {
		return errors.Wrap(err, "failed to marshal in-app event")
	}

	msg := &sarama.ProducerMessage{
		Topic: c.topic,
		Key:   sarama.StringEncoder(strconv.Itoa(int(user.ID))),
		Value: sarama.ByteEncoder(payload),
		Headers: []sarama.RecordHeader{
			{Key: []byte("event_id"), Value: []byte(event.EventID)},
			{Key: []byte("type"), Value: []byte(n.Type)},
		},
	}
	if _, _, err := c.producer.SendMessage(msg); err != nil {
		return errors.Wrapf(err, "failed to publish to %s", c.topic)
	}
	return nil
}

func (c *InAppChannel) Close() error {
	return c.producer.Close()
}
