package queue

import (
	"context"
	"errors"
	"fmt"
	"log"
	"time"

	"github.com/confluentinc/confluent-kafka-go/v2/kafka"

	"github.com/codesage/codesage/internal/domain"
)

const pollTimeout = 500 * time.Millisecond

// Handler processes one analysis event. Handlers own their failure handling:
// the consumer commits the offset after the handler returns either way, so
// delivery is at least once and redelivery happens only on crashes.
type Handler func(ctx context.Context, ev domain.AnalysisEvent)

// Consumer pulls analysis events from Kafka and dispatches them to a handler.
type Consumer struct {
	consumer *kafka.Consumer
	topic    string
}

// NewConsumer joins the consumer group with auto-commit disabled. Offsets
// are committed manually after each message is handled.
func NewConsumer(bootstrapServers, topic, groupID string) (*Consumer, error) {
	c, err := kafka.NewConsumer(&kafka.ConfigMap{
		"bootstrap.servers":  bootstrapServers,
		"group.id":           groupID,
		"auto.offset.reset":  "earliest",
		"enable.auto.commit": false,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create consumer: %w", err)
	}

	return &Consumer{consumer: c, topic: topic}, nil
}

// Run subscribes and processes messages until the context is cancelled.
// Malformed messages are logged and committed so they are never redelivered.
func (c *Consumer) Run(ctx context.Context, handle Handler) error {
	if err := c.consumer.Subscribe(c.topic, nil); err != nil {
		return fmt.Errorf("failed to subscribe to %s: %w", c.topic, err)
	}

	log.Printf("[INFO] queue: consuming from topic %q", c.topic)

	for {
		select {
		case <-ctx.Done():
			log.Printf("[INFO] queue: consumer stopping")
			return ctx.Err()
		default:
		}

		msg, err := c.consumer.ReadMessage(pollTimeout)
		if err != nil {
			var kafkaErr kafka.Error
			if errors.As(err, &kafkaErr) && kafkaErr.Code() == kafka.ErrTimedOut {
				continue
			}
			log.Printf("[ERROR] queue: read failed: %v", err)
			continue
		}

		ev, err := DecodeEvent(msg.Value)
		if err != nil {
			log.Printf("[WARN] queue: dropping malformed message at offset %v: %v",
				msg.TopicPartition.Offset, err)
			c.commit(msg)
			continue
		}

		handle(ctx, ev)
		c.commit(msg)
	}
}

func (c *Consumer) commit(msg *kafka.Message) {
	if _, err := c.consumer.CommitMessage(msg); err != nil {
		log.Printf("[ERROR] queue: offset commit failed: %v", err)
	}
}

// Close leaves the consumer group.
func (c *Consumer) Close() error {
	return c.consumer.Close()
}
