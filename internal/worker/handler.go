package worker

import (
	"context"
	"fmt"
	"log"

	"nostrpush/internal/model"
	"nostrpush/internal/queue"
	"nostrpush/internal/service"
)

// EventProcessor is the fan-out entry point the worker drives.
// *service.FanoutService satisfies it.
type EventProcessor interface {
	Process(ctx context.Context, event *model.Event) (*service.FanoutResult, error)
}

// Handler turns queued envelopes into fan-out invocations.
type Handler struct {
	processor EventProcessor
}

func NewHandler(processor EventProcessor) *Handler {
	return &Handler{processor: processor}
}

// HandleEnvelope decodes the carried event and runs the fan-out for it.
func (h *Handler) HandleEnvelope(ctx context.Context, envelope queue.EventEnvelope) error {
	event, err := envelope.DecodeEvent()
	if err != nil {
		return fmt.Errorf("decode envelope %s: %w", envelope.ID, err)
	}

	result, err := h.processor.Process(ctx, event)
	if err != nil {
		return fmt.Errorf("process event %s: %w", event.ID, err)
	}

	log.Printf("[Handler] Processed event=%s status=%s notified=%d", event.ID, result.Status, result.Notified)
	return nil
}
