package queue

import (
	"fmt"
	"log"

	"github.com/confluentinc/confluent-kafka-go/v2/kafka"

	"github.com/codesage/codesage/internal/domain"
)

// Producer publishes analysis events to the queue topic.
type Producer struct {
	producer *kafka.Producer
	topic    string
}

// NewProducer connects to the brokers and returns a producer bound to the
// given topic.
func NewProducer(bootstrapServers, topic string) (*Producer, error) {
	p, err := kafka.NewProducer(&kafka.ConfigMap{
		"bootstrap.servers": bootstrapServers,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create producer: %w", err)
	}

	return &Producer{producer: p, topic: topic}, nil
}

// Enqueue publishes the event and waits for broker acknowledgement. The
// message is keyed by repository so one PR's events stay ordered.
func (p *Producer) Enqueue(ev domain.AnalysisEvent) error {
	value, err := EncodeEvent(ev)
	if err != nil {
		return fmt.Errorf("failed to encode event: %w", err)
	}

	deliveryChan := make(chan kafka.Event, 1)
	defer close(deliveryChan)

	err = p.producer.Produce(&kafka.Message{
		TopicPartition: kafka.TopicPartition{
			Topic:     &p.topic,
			Partition: kafka.PartitionAny,
		},
		Key:   []byte(fmt.Sprintf("%s/%s", ev.RepositoryOwner, ev.RepositoryName)),
		Value: value,
	}, deliveryChan)
	if err != nil {
		return fmt.Errorf("failed to produce event: %w", err)
	}

	e := <-deliveryChan
	m := e.(*kafka.Message)
	if m.TopicPartition.Error != nil {
		return fmt.Errorf("delivery failed: %w", m.TopicPartition.Error)
	}

	log.Printf("[INFO] queue: enqueued %s/%s#%d at offset %v",
		ev.RepositoryOwner, ev.RepositoryName, ev.PRNumber, m.TopicPartition.Offset)
	return nil
}

// Close flushes pending messages and releases the producer.
func (p *Producer) Close() {
	p.producer.Flush(5000)
	p.producer.Close()
}
