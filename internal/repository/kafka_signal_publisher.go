package repository

import (
	"context"

	"MarketSweep/internal/domain/models"
	pkgkafka "MarketSweep/pkg/kafka"
)

// KafkaSignalPublisher fans scan signals out to downstream consumers.
// Messages are keyed by symbol so one symbol's signals stay ordered within a
// partition.
type KafkaSignalPublisher struct {
	producer *pkgkafka.Producer
	topic    string
}

func NewKafkaSignalPublisher(producer *pkgkafka.Producer, topic string) *KafkaSignalPublisher {
	return &KafkaSignalPublisher{producer: producer, topic: topic}
}

func (p *KafkaSignalPublisher) PublishSignals(ctx context.Context, signals []models.Signal) error {
	if len(signals) == 0 {
		return nil
	}
	msgs := make([]pkgkafka.Message, 0, len(signals))
	for _, sig := range signals {
		msgs = append(msgs, pkgkafka.Message{Key: []byte(sig.Symbol), Value: sig})
	}
	return p.producer.PublishBatch(ctx, p.topic, msgs)
}

func (p *KafkaSignalPublisher) Close() error {
	return p.producer.Close()
}

// NopSignalPublisher is used when Kafka is disabled.
type NopSignalPublisher struct{}

func (NopSignalPublisher) PublishSignals(context.Context, []models.Signal) error { return nil }
func (NopSignalPublisher) Close() error                                          { return nil }
