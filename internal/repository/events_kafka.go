package repository

import (
	"context"

	"SigCast/internal/domain/models"
	drepo "SigCast/internal/domain/repository"
	pkgkafka "SigCast/pkg/kafka"
)

// KafkaEvents mirrors finalized execution records onto the executions
// topic. Messages are keyed by signal id so one signal's events stay
// ordered within a partition.
type KafkaEvents struct {
	producer *pkgkafka.Producer
	topic    string
}

func NewKafkaEvents(producer *pkgkafka.Producer, topic string) *KafkaEvents {
	return &KafkaEvents{producer: producer, topic: topic}
}

type eventEnvelope struct {
	Type    string      `json:"type"`
	Payload interface{} `json:"payload"`
}

func (e *KafkaEvents) PublishAttempt(ctx context.Context, attempt models.ExecutionAttempt) error {
	return e.producer.Publish(ctx, e.topic, []byte(attempt.SignalID), eventEnvelope{
		Type:    "execution_attempt",
		Payload: attempt,
	})
}

func (e *KafkaEvents) PublishSummary(ctx context.Context, summary models.ExecutionSummary) error {
	return e.producer.Publish(ctx, e.topic, []byte(summary.SignalID), eventEnvelope{
		Type:    "execution_summary",
		Payload: summary,
	})
}

func (e *KafkaEvents) Close() error {
	return e.producer.Close()
}

var _ drepo.EventPublisher = (*KafkaEvents)(nil)
