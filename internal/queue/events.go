package queue

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/nbd-wtf/go-nostr"

	"nostrpush/internal/model"
)

// Stream carrying inbound relay events toward the fan-out workers.
const (
	StreamEvents = "stream:events"
)

// Consumer group name for fan-out workers.
const (
	ConsumerGroupFanout = "fanout_workers"
)

// EventEnvelope wraps one inbound relay event for transit through the
// stream. The nostr event travels as raw JSON so nothing is lost between
// the relay and the dispatch payload.
type EventEnvelope struct {
	ID         string          `json:"id"`          // envelope id, distinct from the event id
	ReceivedAt int64           `json:"received_at"` // unix seconds at ingestion
	Event      json.RawMessage `json:"event"`
}

// NewEventEnvelope wraps a relay event for publishing.
func NewEventEnvelope(ev *nostr.Event) (EventEnvelope, error) {
	raw, err := json.Marshal(ev)
	if err != nil {
		return EventEnvelope{}, fmt.Errorf("marshal event: %w", err)
	}
	return EventEnvelope{
		ID:         uuid.NewString(),
		ReceivedAt: time.Now().Unix(),
		Event:      raw,
	}, nil
}

// DecodeEvent unpacks the carried nostr event.
func (e EventEnvelope) DecodeEvent() (*model.Event, error) {
	var ev nostr.Event
	if err := json.Unmarshal(e.Event, &ev); err != nil {
		return nil, fmt.Errorf("unmarshal event: %w", err)
	}
	return model.NewEvent(ev), nil
}

// ToMap converts the envelope to a map for Redis XADD. Streams store
// field-value pairs, so the envelope is serialized into a "data" field.
func (e EventEnvelope) ToMap() (map[string]interface{}, error) {
	data, err := json.Marshal(e)
	if err != nil {
		return nil, fmt.Errorf("marshal envelope: %w", err)
	}
	return map[string]interface{}{
		"id":   e.ID,
		"data": string(data),
	}, nil
}

// ParseEventEnvelope parses an EventEnvelope from Redis stream message values.
func ParseEventEnvelope(values map[string]interface{}) (EventEnvelope, error) {
	data, ok := values["data"].(string)
	if !ok {
		return EventEnvelope{}, fmt.Errorf("missing or invalid 'data' field")
	}

	var envelope EventEnvelope
	if err := json.Unmarshal([]byte(data), &envelope); err != nil {
		return EventEnvelope{}, fmt.Errorf("unmarshal envelope: %w", err)
	}
	return envelope, nil
}
