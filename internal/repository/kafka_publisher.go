package repository

import (
	"context"

	"Wonderland/internal/domain/models"
	domrepo "Wonderland/internal/domain/repository"
	pkgkafka "Wonderland/pkg/kafka"
)

// BatchWriter is the part of the Kafka producer the publisher needs.
type BatchWriter interface {
	PublishBatch(ctx context.Context, topic string, messages []pkgkafka.Message) error
}

// KafkaEventPublisher streams events keyed by type so one type stays
// ordered within its partition.
type KafkaEventPublisher struct {
	w     BatchWriter
	topic string
}

var _ domrepo.EventPublisher = (*KafkaEventPublisher)(nil)

func NewKafkaEventPublisher(w BatchWriter, topic string) *KafkaEventPublisher {
	return &KafkaEventPublisher{w: w, topic: topic}
}

func (p *KafkaEventPublisher) PublishEvents(ctx context.Context, events []models.Event) error {
	if len(events) == 0 {
		return nil
	}
	msgs := make([]pkgkafka.Message, 0, len(events))
	for _, e := range events {
		msgs = append(msgs, pkgkafka.Message{Key: []byte(e.Type), Value: e})
	}
	return p.w.PublishBatch(ctx, p.topic, msgs)
}
