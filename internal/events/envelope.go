package events

import (
	"encoding/json"
	"fmt"
	"time"
)

// Envelope is the wire form of an event on Redis and on websockets.
type Envelope struct {
	EventType     EventType       `json:"event_type"`
	AggregateType string          `json:"aggregate_type"`
	AggregateID   string          `json:"aggregate_id"`
	OccurredAt    time.Time       `json:"occurred_at"`
	Payload       json.RawMessage `json:"payload"`
}

func NewEnvelope(event Event) (Envelope, error) {
	payload, err := json.Marshal(event)
	if err != nil {
		return Envelope{}, fmt.Errorf("marshal %s: %w", event.EventType(), err)
	}
	return Envelope{
		EventType:     event.EventType(),
		AggregateType: AggregateTypeMessage,
		AggregateID:   event.AggregateID(),
		OccurredAt:    event.OccurredAt(),
		Payload:       payload,
	}, nil
}

// Decode rebuilds the typed event carried by the envelope.
func (e Envelope) Decode() (Event, error) {
	switch e.EventType {
	case EventMessageAppended:
		var ev MessageAppendedEvent
		if err := json.Unmarshal(e.Payload, &ev); err != nil {
			return nil, err
		}
		return &ev, nil
	}
	return nil, fmt.Errorf("unknown event type %q", e.EventType)
}
