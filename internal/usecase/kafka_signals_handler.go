package usecase

import (
	"context"
	"encoding/json"
	"fmt"

	"SigCast/internal/handler/intake"
	pkgkafka "SigCast/pkg/kafka"
	"SigCast/pkg/logger"

	"github.com/creasty/defaults"
)

// KafkaSignalsHandler consumes raw signal payloads from the signals
// topic and runs them through the coordinator. It is the streaming twin
// of the webhook intake; both produce the same canonical Signal.
type KafkaSignalsHandler struct {
	topic       string
	coordinator *Coordinator
	log         *logger.Logger
}

func NewKafkaSignalsHandler(topic string, coordinator *Coordinator, log *logger.Logger) *KafkaSignalsHandler {
	if log == nil {
		log = logger.Nop()
	}
	return &KafkaSignalsHandler{topic: topic, coordinator: coordinator, log: log}
}

func (h *KafkaSignalsHandler) Topic() string { return h.topic }

func (h *KafkaSignalsHandler) Handle(ctx context.Context, b []byte) error {
	var p intake.Payload
	if err := json.Unmarshal(b, &p); err != nil {
		// malformed payloads are not retryable; let the consumer
		// dead-letter them
		return fmt.Errorf("decode signal payload: %w", err)
	}
	if p.Source == "" {
		p.Source = "kafka"
	}
	_ = defaults.Set(&p)

	signal, err := intake.Normalize(p, b)
	if err != nil {
		return fmt.Errorf("normalize signal: %w", err)
	}

	if _, err := h.coordinator.Execute(ctx, signal); err != nil {
		h.log.Error("signal execution failed",
			logger.Error(err), logger.String("signal_id", signal.ID))
		// execution-level failures are already audited; do not replay the
		// signal, a retry would need a fresh idempotence decision upstream
	}
	return nil
}

var _ pkgkafka.MessageHandler = (*KafkaSignalsHandler)(nil)
