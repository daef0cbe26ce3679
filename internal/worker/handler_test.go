package worker

import (
	"context"
	"encoding/json"
	"errors"
	"testing"

	"github.com/nbd-wtf/go-nostr"

	"nostrpush/internal/model"
	"nostrpush/internal/queue"
	"nostrpush/internal/service"
)

type mockProcessor struct {
	processed []string
	failWith  error
}

func (m *mockProcessor) Process(ctx context.Context, event *model.Event) (*service.FanoutResult, error) {
	if m.failWith != nil {
		return nil, m.failWith
	}
	m.processed = append(m.processed, event.ID)
	return &service.FanoutResult{Status: service.StatusCompleted, Notified: 1}, nil
}

func TestHandler_ProcessesDecodedEvent(t *testing.T) {
	processor := &mockProcessor{}
	h := NewHandler(processor)

	envelope, err := queue.NewEventEnvelope(&nostr.Event{
		ID:     "e1",
		PubKey: "alice",
		Kind:   nostr.KindTextNote,
	})
	if err != nil {
		t.Fatalf("NewEventEnvelope: %v", err)
	}

	if err := h.HandleEnvelope(context.Background(), envelope); err != nil {
		t.Fatalf("HandleEnvelope: %v", err)
	}
	if len(processor.processed) != 1 || processor.processed[0] != "e1" {
		t.Errorf("processed = %v, want [e1]", processor.processed)
	}
}

func TestHandler_RejectsMalformedEnvelope(t *testing.T) {
	processor := &mockProcessor{}
	h := NewHandler(processor)

	envelope := queue.EventEnvelope{
		ID:    "env-1",
		Event: json.RawMessage(`{not json`),
	}

	if err := h.HandleEnvelope(context.Background(), envelope); err == nil {
		t.Fatal("expected error for malformed envelope")
	}
	if len(processor.processed) != 0 {
		t.Errorf("processed = %v, want none", processor.processed)
	}
}

func TestHandler_WrapsProcessorError(t *testing.T) {
	cause := errors.New("ledger unavailable")
	h := NewHandler(&mockProcessor{failWith: cause})

	envelope, err := queue.NewEventEnvelope(&nostr.Event{ID: "e1", Kind: nostr.KindTextNote})
	if err != nil {
		t.Fatalf("NewEventEnvelope: %v", err)
	}

	if err := h.HandleEnvelope(context.Background(), envelope); !errors.Is(err, cause) {
		t.Errorf("err = %v, want wrapped %v", err, cause)
	}
}
